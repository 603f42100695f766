package mesh

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestPieces(t *testing.T) {
	m := &ClothMesh{
		Name:      "shirt",
		Positions: []mgl64.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {5, 0, 0}, {6, 0, 0}, {5, 1, 0}},
		TexCoords: []mgl64.Vec2{{0, 0}, {1, 0}, {0, 1}, {0, 0}, {1, 0}, {0, 1}},
		Faces:     []Face{{V: [3]int{3, 4, 5}, Piece: 1}, {V: [3]int{0, 1, 2}, Piece: 0}},
		TexFaces:  []TexFace{{V: [3]int{3, 4, 5}, VertStart: 3}, {V: [3]int{0, 1, 2}}},
	}
	pieces := m.Pieces()
	if len(pieces) != 2 {
		t.Fatalf("pieces = %d, want 2", len(pieces))
	}
	if pieces[0].Name != "shirt.piece0" || pieces[1].Name != "shirt.piece1" {
		t.Errorf("names %q %q", pieces[0].Name, pieces[1].Name)
	}
	back := pieces[1]
	if len(back.Positions) != 3 || back.Positions[0] != (mgl64.Vec3{5, 0, 0}) {
		t.Errorf("piece 1 positions = %v", back.Positions)
	}
	if back.Faces[0].V != [3]int{0, 1, 2} || back.TexFaces[0].V != [3]int{0, 1, 2} {
		t.Errorf("piece 1 not renumbered: %v %v", back.Faces, back.TexFaces)
	}
	if back.TexFaces[0].VertStart != 0 {
		t.Errorf("VertStart = %d, want 0", back.TexFaces[0].VertStart)
	}
}
