package weave

import (
	"github.com/akmonengine/weave/mesh"
	"github.com/go-gl/mathgl/mgl64"
)

// Garment is the raw cloth handed to Init. Vertex indices in Faces, Stitches
// and pins refer to Positions; TexFaces index TexCoords.
type Garment struct {
	Name      string
	Positions []mgl64.Vec3
	TexCoords []mgl64.Vec2
	Faces     []mesh.Face
	TexFaces  []mesh.TexFace
	// MaterialNames has one entry per face, or is nil for a uniform material.
	MaterialNames []string
	Stitches      []mesh.StitchPair
}

func (g Garment) clone() Garment {
	return Garment{
		Name:          g.Name,
		Positions:     append([]mgl64.Vec3(nil), g.Positions...),
		TexCoords:     append([]mgl64.Vec2(nil), g.TexCoords...),
		Faces:         append([]mesh.Face(nil), g.Faces...),
		TexFaces:      append([]mesh.TexFace(nil), g.TexFaces...),
		MaterialNames: append([]string(nil), g.MaterialNames...),
		Stitches:      append([]mesh.StitchPair(nil), g.Stitches...),
	}
}
