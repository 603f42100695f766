package mesh

import (
	"fmt"
	"io"
	"slices"

	"github.com/go-gl/mathgl/mgl64"
)

// ClothMesh is the exported state handed to a rendering collaborator. It uses
// the input (unmerged) vertex numbering, so seams stay split as authored.
type ClothMesh struct {
	Name      string
	Positions []mgl64.Vec3
	TexCoords []mgl64.Vec2
	Faces     []Face
	TexFaces  []TexFace
}

// Pieces splits the mesh by Face.Piece. Each piece gets its own compact vertex
// numbering; pieces are returned in increasing piece id.
func (m *ClothMesh) Pieces() []*ClothMesh {
	byPiece := map[int][]int{}
	for f, face := range m.Faces {
		byPiece[face.Piece] = append(byPiece[face.Piece], f)
	}
	ids := make([]int, 0, len(byPiece))
	for id := range byPiece {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	out := make([]*ClothMesh, 0, len(ids))
	for _, id := range ids {
		piece := &ClothMesh{Name: fmt.Sprintf("%s.piece%d", m.Name, id)}
		remap := map[int]int{}
		texRemap := map[int]int{}
		for _, f := range byPiece[id] {
			face := m.Faces[f]
			for k, v := range face.V {
				nv, ok := remap[v]
				if !ok {
					nv = len(piece.Positions)
					remap[v] = nv
					piece.Positions = append(piece.Positions, m.Positions[v])
				}
				face.V[k] = nv
			}
			piece.Faces = append(piece.Faces, face)

			if f < len(m.TexFaces) {
				tf := m.TexFaces[f]
				for k, v := range tf.V {
					nv, ok := texRemap[v]
					if !ok {
						nv = len(piece.TexCoords)
						texRemap[v] = nv
						piece.TexCoords = append(piece.TexCoords, m.TexCoords[v])
					}
					tf.V[k] = nv
				}
				tf.VertStart = 0
				piece.TexFaces = append(piece.TexFaces, tf)
			}
		}
		out = append(out, piece)
	}
	return out
}

// DumpEdgeData writes one line per edge record.
func DumpEdgeData(w io.Writer, name string, edges []EdgeData) error {
	if _, err := fmt.Fprintf(w, "%s: %d edges\n", name, len(edges)); err != nil {
		return err
	}
	for i, e := range edges {
		_, err := fmt.Fprintf(w, "  [%d] verts=%v tex=%v faces=%v len2=(%.6g, %.6g) uv=(%.4f, %.4f) ideal=%.4f init=%.4f\n",
			i, e.Verts, e.TexVerts, e.Faces, e.RestLengthSqr[0], e.RestLengthSqr[1],
			e.ThetaUV[0], e.ThetaUV[1], e.IdealDihedral, e.InitialDihedral)
		if err != nil {
			return err
		}
	}
	return nil
}
