package model

import (
	"math"

	"GPU_scene_renderer/logging"

	"github.com/go-gl/mathgl/mgl32"
)

type Projection int

const (
	PerspectiveProjection Projection = iota
	OrthographicProjection
)

type Camera struct {
	Projection Projection

	Fov    float32 // degrees
	Aspect float32
	Near   float32
	Far    float32

	Pos        mgl32.Vec3
	LookDir    mgl32.Vec3
	LookTarget *mgl32.Vec3
	Up         mgl32.Vec3
}

// NewCamera looks down +Z. Up is -Y because Vulkan's clip space Y axis points down.
func NewCamera(fov float32, near float32, far float32) *Camera {
	return &Camera{
		Fov:     fov,
		Aspect:  1,
		Near:    near,
		Far:     far,
		LookDir: mgl32.Vec3{0, 0, 1},
		Up:      mgl32.Vec3{0, -1, 0},
	}
}

func (c *Camera) Move(v mgl32.Vec3) {
	c.Pos = c.Pos.Add(v)
}

// Turn rotates the look direction by deg degrees around axis.
func (c *Camera) Turn(deg float32, axis mgl32.Vec3) {
	if axis.Len() == 0 {
		return
	}
	q := mgl32.QuatRotate(mgl32.DegToRad(deg), axis.Normalize())
	c.LookDir = q.Rotate(c.LookDir)
}

func (c *Camera) SetTarget(v mgl32.Vec3) {
	c.LookTarget = &v
}

func (c *Camera) ClearTarget() {
	c.LookTarget = nil
}

func (c *Camera) Position() mgl32.Vec4 {
	return c.Pos.Vec4(1)
}

func (c *Camera) GetProjection() mgl32.Mat4 {
	switch c.Projection {
	case PerspectiveProjection:
		return newPerspectiveProjection(mgl32.DegToRad(c.Fov), c.Aspect, c.Near, c.Far)
	case OrthographicProjection:
		return newOrthographicProjection(mgl32.Vec3{-c.Aspect, 1, c.Near}, mgl32.Vec3{c.Aspect, -1, c.Far})
	default:
		logging.Logger().Warn("Failed to select projection type, returning identity", "projection", c.Projection)
		return mgl32.Ident4()
	}
}

func (c *Camera) GetView() mgl32.Mat4 {
	if c.LookTarget != nil {
		return NewTargetView(c.Pos, *c.LookTarget, c.Up)
	}
	return NewDirectionView(c.Pos, c.LookDir, c.Up)
}

// newPerspectiveProjection maps the view frustum onto Vulkan's canonical view volume with depth in [0, 1].
func newPerspectiveProjection(fovy float32, aspect float32, near float32, far float32) mgl32.Mat4 {
	focalLen := float32(1 / math.Tan(float64(fovy)/2))
	return mgl32.Mat4{
		focalLen / aspect, 0, 0, 0,
		0, focalLen, 0, 0,
		0, 0, far / (far - near), 1,
		0, 0, -(far * near) / (far - near), 0,
	}
}

// newOrthographicProjection maps the cuboid spanning lbn (left, bottom, near) to rtf (right, top, far) onto the
// canonical view volume. Keeping right - left = aspect * (bottom - top) avoids stretching.
func newOrthographicProjection(lbn mgl32.Vec3, rtf mgl32.Vec3) mgl32.Mat4 {
	l, b, n := lbn.X(), lbn.Y(), lbn.Z()
	r, t, f := rtf.X(), rtf.Y(), rtf.Z()
	return mgl32.Mat4{
		2 / (r - l), 0, 0, 0,
		0, 2 / (b - t), 0, 0,
		0, 0, 1 / (f - n), 0,
		-(r + l) / (r - l), -(b + t) / (b - t), -n / (f - n), 1,
	}
}

func NewDirectionView(pos mgl32.Vec3, dir mgl32.Vec3, up mgl32.Vec3) mgl32.Mat4 {
	// orthonormal basis, w looks along dir
	w := dir.Normalize()
	u := w.Cross(up).Normalize()
	v := w.Cross(u)
	return mgl32.Mat4{
		u.X(), v.X(), w.X(), 0,
		u.Y(), v.Y(), w.Y(), 0,
		u.Z(), v.Z(), w.Z(), 0,
		-u.Dot(pos), -v.Dot(pos), -w.Dot(pos), 1,
	}
}

func NewTargetView(pos mgl32.Vec3, target mgl32.Vec3, up mgl32.Vec3) mgl32.Mat4 {
	d := target.Sub(pos)
	if d.Len() == 0 {
		logging.Logger().Warn("Failed to calculate view direction, target equals position; using the z-axis")
		d = mgl32.Vec3{0, 0, 1}
	}
	return NewDirectionView(pos, d, up)
}
