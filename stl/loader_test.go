package stl

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encode(t *testing.T, triangles [][4]mgl32.Vec3) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.Write(make([]byte, headerSize))
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(len(triangles))))
	for _, tri := range triangles {
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, tri))
		buf.Write([]byte{0, 0})
	}
	return buf.Bytes()
}

var twoTriangles = [][4]mgl32.Vec3{
	{{0, 0, 1}, {0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
	{{0, 0, -1}, {1, 1, 0}, {1, 0, 0}, {0, 1, 0}},
}

func TestRead(t *testing.T) {
	m, err := Read(bytes.NewReader(encode(t, twoTriangles)))
	require.NoError(t, err)

	assert.Len(t, m.Vertices, 6)
	assert.Equal(t, []uint32{0, 1, 2, 3, 4, 5}, m.Indices)
	assert.Equal(t, mgl32.Vec3{1, 0, 0}, m.Vertices[1].Position)
	assert.Equal(t, mgl32.Vec3{0, 0, -1}, m.Vertices[4].Normal)
}

func TestReadTruncated(t *testing.T) {
	data := encode(t, twoTriangles)

	_, err := Read(bytes.NewReader(data[:len(data)-10]))
	assert.ErrorContains(t, err, "declares 2 triangles")

	_, err = Read(bytes.NewReader(data[:40]))
	assert.ErrorContains(t, err, "stl header")
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tri.stl")
	require.NoError(t, os.WriteFile(path, encode(t, twoTriangles[:1]), 0o644))

	m, err := ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, m.Indices, 3)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.stl"))
	assert.Error(t, err)
}
