package gfx

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestResultNeedsResize(t *testing.T) {
	assert.False(t, Success.NeedsResize())
	assert.True(t, Suboptimal.NeedsResize())
	assert.True(t, OutOfDate.NeedsResize())
	assert.False(t, Failure.NeedsResize())
	assert.Equal(t, "out-of-date", OutOfDate.String())
}

func TestCheck(t *testing.T) {
	assert.NotPanics(t, func() { Check(nil, "Failed to create swapchain") })
	assert.PanicsWithError(t, "Failed to create swapchain: device lost", func() {
		Check(errors.New("device lost"), "Failed to create swapchain")
	})
}

func TestAssert(t *testing.T) {
	assert.NotPanics(t, func() { Assert(true, "never") })
	assert.PanicsWithError(t, "frame 4 out of range", func() { Assert(false, "frame %d out of range", 4) })
}

func TestBindingKindIsTexture(t *testing.T) {
	assert.True(t, BindTexture.IsTexture())
	assert.True(t, BindTextureArray.IsTexture())
	assert.False(t, BindUniform.IsTexture())
	assert.False(t, BindStorage.IsTexture())
}

func TestExtentAspect(t *testing.T) {
	assert.Equal(t, float32(2), Extent{Width: 200, Height: 100}.Aspect())
	assert.Equal(t, float32(1), Extent{}.Aspect())
}
