package mesh

import (
	"fmt"
	"math"
	"slices"

	"github.com/akmonengine/weave/parallel"
	"github.com/akmonengine/weave/sparse"
	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/multierr"
)

// StretchStiffness holds the membrane stiffness (N/m) of a woven material along
// the warp (u) and weft (v) directions, the warp/weft coupling and the shear term.
// Curve scales all four by the strain magnitude of the face.
type StretchStiffness struct {
	Warp     float64 `yaml:"warp"`
	Weft     float64 `yaml:"weft"`
	Coupling float64 `yaml:"coupling"`
	Shear    float64 `yaml:"shear"`
	Curve    Curve   `yaml:"curve,omitempty"`
}

// Scale returns the stiffness multiplied by m. The curve is shared.
func (s StretchStiffness) Scale(m float64) StretchStiffness {
	return StretchStiffness{Warp: s.Warp * m, Weft: s.Weft * m, Coupling: s.Coupling * m, Shear: s.Shear * m, Curve: s.Curve}
}

// Material is the physical description of a cloth.
type Material struct {
	Density float64          `yaml:"density"` // kg/m² in material space
	Stretch StretchStiffness `yaml:"stretch"`
	Bend    float64          `yaml:"bend"` // N·m
	// BendCurve scales Bend by the curvature of the bend edge.
	BendCurve Curve `yaml:"bend_curve,omitempty"`
}

// Validate checks the stiffness curves.
func (m Material) Validate() error {
	var err error
	if e := m.Stretch.Curve.Validate(); e != nil {
		err = multierr.Append(err, fmt.Errorf("stretch curve: %w", e))
	}
	if e := m.BendCurve.Validate(); e != nil {
		err = multierr.Append(err, fmt.Errorf("bend curve: %w", e))
	}
	return err
}

// MaterialTable maps the material name of a face to its material.
type MaterialTable map[string]Material

// DefaultMaterial is a mid-weight cotton.
func DefaultMaterial() Material {
	return Material{
		Density: 0.15,
		Stretch: StretchStiffness{Warp: 2000, Weft: 2000, Coupling: 0, Shear: 400},
		Bend:    2e-5,
	}
}

// FaceMaterial is the per-face record used by the stretch and bend kernels.
type FaceMaterial struct {
	Area      float64
	Mass      float64
	Stretch   StretchStiffness
	Bend      float64
	BendCurve Curve
}

// NodeMaterial is the per-vertex lumped area and mass.
type NodeMaterial struct {
	Area float64
	Mass float64
}

func (n NodeMaterial) add(o NodeMaterial) NodeMaterial {
	return NodeMaterial{Area: n.Area + o.Area, Mass: n.Mass + o.Mass}
}

// MaterialMap is the output of MapMaterials.
type MaterialMap struct {
	Faces []FaceMaterial
	Nodes []NodeMaterial
	// Missing lists the referenced names absent from the table, sorted. Their
	// faces use the default material.
	Missing []string
}

// MapMaterials resolves the material of every face, by name through table, or
// uniform for all faces when names is nil. Vertex records are the sum of one
// third of every incident face, reduced through a scatter plan.
func MapMaterials(workers int, topo *Topology, texCoords []mgl64.Vec2, names []string, table MaterialTable, uniform *Material) (*MaterialMap, error) {
	nFaces := len(topo.Faces)
	if names != nil && len(names) != nFaces {
		return nil, fmt.Errorf("%w: %d material names for %d faces", ErrTopology, len(names), nFaces)
	}

	def := DefaultMaterial()
	if uniform != nil {
		def = *uniform
	}
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("%w: default: %w", ErrMaterial, err)
	}

	resolved := make([]Material, nFaces)
	missing := map[string]bool{}
	checked := map[string]bool{}
	for f := range resolved {
		resolved[f] = def
		if names == nil || uniform != nil {
			continue
		}
		m, ok := table[names[f]]
		if !ok {
			missing[names[f]] = true
			continue
		}
		if !checked[names[f]] {
			if err := m.Validate(); err != nil {
				return nil, fmt.Errorf("%w: %q: %w", ErrMaterial, names[f], err)
			}
			checked[names[f]] = true
		}
		resolved[f] = m
	}

	mm := &MaterialMap{
		Faces: make([]FaceMaterial, nFaces),
		Nodes: make([]NodeMaterial, topo.NumVerts),
	}
	for name := range missing {
		mm.Missing = append(mm.Missing, name)
	}
	slices.Sort(mm.Missing)

	parallel.For(workers, nFaces, func(f int) {
		t := topo.TexFaces[f].V
		area := TexArea(texCoords[t[0]], texCoords[t[1]], texCoords[t[2]])
		m := resolved[f]
		mm.Faces[f] = FaceMaterial{
			Area:      area,
			Mass:      area * m.Density,
			Stretch:   m.Stretch,
			Bend:      m.Bend,
			BendCurve: m.BendCurve,
		}
	})

	keys := make([]uint64, 0, 3*nFaces+topo.NumVerts)
	for _, face := range topo.Faces {
		for _, v := range face.V {
			keys = append(keys, uint64(v))
		}
	}
	for v := 0; v < topo.NumVerts; v++ {
		keys = append(keys, uint64(v))
	}
	plan := sparse.BuildScatterPlan(keys)

	scratch := make([]NodeMaterial, len(keys))
	parallel.For(workers, nFaces, func(f int) {
		share := NodeMaterial{Area: mm.Faces[f].Area / 3, Mass: mm.Faces[f].Mass / 3}
		for k := 0; k < 3; k++ {
			scratch[3*f+k] = share
		}
	})
	sparse.Gather(plan, workers, scratch, mm.Nodes, NodeMaterial.add)

	return mm, nil
}

// TexArea returns the unsigned area of a texture-space triangle.
func TexArea(a, b, c mgl64.Vec2) float64 {
	e1, e2 := b.Sub(a), c.Sub(a)
	return math.Abs(e1.X()*e2.Y()-e1.Y()*e2.X()) / 2
}
