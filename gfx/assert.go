package gfx

import (
	"GPU_scene_renderer/logging"

	"github.com/pkg/errors"
)

// Check aborts on an unrecoverable environment error, e.g. a failed handle creation. The error is logged before the
// panic so it ends up in the log even when the panic is recovered further up.
func Check(err error, msg string) {
	if err == nil {
		return
	}
	wrapped := errors.Wrap(err, msg)
	logging.Logger().Error(msg, "err", err)
	panic(wrapped)
}

// Assert aborts on a broken programming contract, e.g. an out of range frame slot.
func Assert(cond bool, format string, args ...any) {
	if cond {
		return
	}
	err := errors.Errorf(format, args...)
	logging.Logger().Error("Assertion failed", "err", err)
	panic(err)
}
