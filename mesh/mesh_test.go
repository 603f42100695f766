package mesh

import (
	"github.com/go-gl/mathgl/mgl64"
)

// squareMesh returns an n×n quad grid of side size in the xz plane, split
// into 2n² consistently oriented triangles. Texture space mirrors world space.
func squareMesh(n int, size float64) ([]mgl64.Vec3, []mgl64.Vec2, []Face, []TexFace) {
	step := size / float64(n)
	var x []mgl64.Vec3
	var uv []mgl64.Vec2
	for j := 0; j <= n; j++ {
		for i := 0; i <= n; i++ {
			x = append(x, mgl64.Vec3{float64(i) * step, 0, float64(j) * step})
			uv = append(uv, mgl64.Vec2{float64(i) * step, float64(j) * step})
		}
	}
	id := func(i, j int) int { return j*(n+1) + i }

	var faces []Face
	var tex []TexFace
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			a, b, c, d := id(i, j), id(i+1, j), id(i+1, j+1), id(i, j+1)
			faces = append(faces, Face{V: [3]int{a, c, b}}, Face{V: [3]int{a, d, c}})
			tex = append(tex, TexFace{V: [3]int{a, c, b}}, TexFace{V: [3]int{a, d, c}})
		}
	}
	return x, uv, faces, tex
}
