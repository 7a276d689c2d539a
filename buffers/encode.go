package buffers

import (
	"bytes"
	"encoding/binary"

	"GPU_scene_renderer/gfx"

	"github.com/pkg/errors"
)

// Encode lays out fixed-size values the way the shaders read them: tightly packed, little endian.
func Encode[T any](items []T) ([]byte, error) {
	if len(items) == 0 {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, items); err != nil {
		return nil, errors.Wrapf(err, "encode %d items of %T", len(items), items[0])
	}
	return buf.Bytes(), nil
}

// Upload encodes items into w. Encoding only fails for types without a fixed size, which is a programming error.
func Upload[T any](w Writer, items []T) {
	data, err := Encode(items)
	gfx.Check(err, "Failed to encode buffer data")
	w.SetData(data)
}
