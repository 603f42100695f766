// Package export writes simulated cloth as glTF 2.0.
package export

import (
	"fmt"
	"io"
	"math"

	"github.com/akmonengine/weave/mesh"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

// Document builds a glTF document with one mesh and one node per cloth piece.
// Vertices are split where the texture layout is, so every corner keeps its
// texture coordinate.
func Document(m *mesh.ClothMesh) *gltf.Document {
	doc := gltf.NewDocument()
	for _, piece := range m.Pieces() {
		addPiece(doc, piece)
	}
	return doc
}

func addPiece(doc *gltf.Document, piece *mesh.ClothMesh) {
	positions, texCoords, indices := flatten(piece)

	prim := &gltf.Primitive{
		Mode: gltf.PrimitiveTriangles,
		Attributes: map[string]int{
			gltf.POSITION: modeler.WritePosition(doc, positions),
			gltf.NORMAL:   modeler.WriteNormal(doc, vertexNormals(positions, indices)),
		},
	}
	if texCoords != nil {
		prim.Attributes[gltf.TEXCOORD_0] = modeler.WriteTextureCoord(doc, texCoords)
	}
	prim.Indices = gltf.Index(modeler.WriteIndices(doc, indices))

	doc.Meshes = append(doc.Meshes, &gltf.Mesh{Name: piece.Name, Primitives: []*gltf.Primitive{prim}})
	doc.Nodes = append(doc.Nodes, &gltf.Node{Name: piece.Name, Mesh: gltf.Index(len(doc.Meshes) - 1)})
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, len(doc.Nodes)-1)
}

// flatten emits one vertex per distinct (world, texture) corner.
func flatten(piece *mesh.ClothMesh) ([][3]float32, [][2]float32, []uint32) {
	hasTex := len(piece.TexFaces) == len(piece.Faces) && len(piece.TexCoords) > 0

	var positions [][3]float32
	var texCoords [][2]float32
	indices := make([]uint32, 0, 3*len(piece.Faces))
	corners := make(map[[2]int]uint32)
	for f, face := range piece.Faces {
		for k, v := range face.V {
			key := [2]int{v, -1}
			if hasTex {
				key[1] = piece.TexFaces[f].V[k]
			}
			idx, ok := corners[key]
			if !ok {
				idx = uint32(len(positions))
				corners[key] = idx
				p := piece.Positions[v]
				positions = append(positions, [3]float32{float32(p.X()), float32(p.Y()), float32(p.Z())})
				if hasTex {
					uv := piece.TexCoords[key[1]]
					texCoords = append(texCoords, [2]float32{float32(uv.X()), float32(uv.Y())})
				}
			}
			indices = append(indices, idx)
		}
	}
	return positions, texCoords, indices
}

// vertexNormals averages the face normals around each vertex, weighted by area.
func vertexNormals(positions [][3]float32, indices []uint32) [][3]float32 {
	acc := make([][3]float64, len(positions))
	for t := 0; t+2 < len(indices); t += 3 {
		a, b, c := positions[indices[t]], positions[indices[t+1]], positions[indices[t+2]]
		var e1, e2 [3]float64
		for k := 0; k < 3; k++ {
			e1[k] = float64(b[k] - a[k])
			e2[k] = float64(c[k] - a[k])
		}
		n := [3]float64{
			e1[1]*e2[2] - e1[2]*e2[1],
			e1[2]*e2[0] - e1[0]*e2[2],
			e1[0]*e2[1] - e1[1]*e2[0],
		}
		for _, i := range indices[t : t+3] {
			for k := 0; k < 3; k++ {
				acc[i][k] += n[k]
			}
		}
	}

	out := make([][3]float32, len(positions))
	for i, n := range acc {
		l := n[0]*n[0] + n[1]*n[1] + n[2]*n[2]
		if l == 0 {
			out[i] = [3]float32{0, 1, 0}
			continue
		}
		inv := 1 / math.Sqrt(l)
		out[i] = [3]float32{float32(n[0] * inv), float32(n[1] * inv), float32(n[2] * inv)}
	}
	return out
}

// Write encodes the mesh as a binary glTF (.glb) to w.
func Write(w io.Writer, m *mesh.ClothMesh) error {
	enc := gltf.NewEncoder(w)
	enc.AsBinary = true
	if err := enc.Encode(Document(m)); err != nil {
		return fmt.Errorf("encode gltf: %w", err)
	}
	return nil
}

// Save writes the mesh to path as a binary glTF.
func Save(path string, m *mesh.ClothMesh) error {
	if err := gltf.SaveBinary(Document(m), path); err != nil {
		return fmt.Errorf("save gltf %q: %w", path, err)
	}
	return nil
}
