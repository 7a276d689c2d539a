package model

import (
	"bytes"
	"encoding/binary"

	"github.com/go-gl/mathgl/mgl32"
)

// CameraUniform is bound as UBCamera by every scene pass.
type CameraUniform struct {
	View       mgl32.Mat4
	Projection mgl32.Mat4
	Position   mgl32.Vec4
}

// CameraUniformSize is the byte size of CameraUniform: two 4x4 matrices and one vec4.
const CameraUniformSize = 144

func (u *CameraUniform) Bytes() []byte {
	var buf bytes.Buffer
	buf.Grow(CameraUniformSize)
	// fixed-size value into a bytes.Buffer, cannot fail
	_ = binary.Write(&buf, binary.LittleEndian, u)
	return buf.Bytes()
}
