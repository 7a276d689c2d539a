// Package stl reads binary STL meshes.
package stl

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"os"

	"GPU_scene_renderer/logging"
	"GPU_scene_renderer/model"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

const (
	headerSize = 80
	facetSize  = 50
)

// ReadFile reads the binary STL file at path.
func ReadFile(path string) (*model.Mesh, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read stl file")
	}
	m, err := Read(bytes.NewReader(b))
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	logging.Logger().Info("Successfully read stl file", "path", path, "triangles", len(m.Indices)/3,
		"KiB", len(b)/1024)
	return m, nil
}

// Read decodes a binary STL stream. Every triangle gets its own three vertices carrying the facet normal, indices
// are sequential.
func Read(r io.Reader) (*model.Mesh, error) {
	header := make([]byte, headerSize+4)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, errors.Wrap(err, "stl header")
	}
	count := binary.LittleEndian.Uint32(header[headerSize:])

	body := make([]byte, int(count)*facetSize)
	if n, err := io.ReadFull(r, body); err != nil {
		return nil, errors.Wrapf(err, "stl declares %d triangles but holds %d bytes of facets", count, n)
	}
	return toMesh(body, count), nil
}

func toMesh(b []byte, triangleCnt uint32) *model.Mesh {
	v := make([]model.Vertex, 0, triangleCnt*3)
	id := make([]uint32, 0, triangleCnt*3)

	for i := 0; i+facetSize <= len(b); i += facetSize {
		normal := toVec3(b[i : i+12])
		for c := 0; c < 3; c++ {
			off := i + 12 + c*12
			id = append(id, uint32(len(v)))
			v = append(v, model.Vertex{Position: toVec3(b[off : off+12]), Normal: normal})
		}
		// the two attribute bytes at i+48 are unused
	}
	return model.NewMesh(v, id)
}

func toVec3(b []byte) mgl32.Vec3 {
	return mgl32.Vec3{toFloat32(b[:4]), toFloat32(b[4:8]), toFloat32(b[8:12])}
}

func toFloat32(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}
