package model

// SkyCubemap returns six RGBA8 faces of a vertical gradient, ordered +X, -X, +Y, -Y, +Z, -Z.
func SkyCubemap(size int) []byte {
	face := size * size * 4
	pixels := make([]byte, 0, face*6)
	zenith := [3]float32{40, 90, 190}
	horizon := [3]float32{200, 220, 240}
	ground := [3]float32{70, 65, 60}
	for f := 0; f < 6; f++ {
		for y := 0; y < size; y++ {
			// t runs from 0 at the top row to 1 at the bottom row
			t := float32(y) / float32(max(size-1, 1))
			var c [3]float32
			switch f {
			case 2:
				c = zenith
			case 3:
				c = ground
			default:
				c = lerp3(zenith, horizon, t)
			}
			for x := 0; x < size; x++ {
				pixels = append(pixels, byte(c[0]), byte(c[1]), byte(c[2]), 255)
			}
		}
	}
	return pixels
}

// Checker returns a size x size RGBA8 checkerboard with cells of cell pixels.
func Checker(size, cell int, a, b [4]byte) []byte {
	cell = max(cell, 1)
	pixels := make([]byte, 0, size*size*4)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			c := a
			if (x/cell+y/cell)%2 == 1 {
				c = b
			}
			pixels = append(pixels, c[:]...)
		}
	}
	return pixels
}

func lerp3(a, b [3]float32, t float32) [3]float32 {
	return [3]float32{a[0] + (b[0]-a[0])*t, a[1] + (b[1]-a[1])*t, a[2] + (b[2]-a[2])*t}
}
