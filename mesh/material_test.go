package mesh

import (
	"errors"
	"math"
	"testing"
)

func TestMapMaterials(t *testing.T) {
	x, uv, faces, tex := squareMesh(2, 2)
	topo, err := BuildTopology(x, uv, faces, tex)
	if err != nil {
		t.Fatal(err)
	}
	silk := Material{Density: 0.05, Stretch: StretchStiffness{Warp: 10, Weft: 20, Shear: 3}, Bend: 1e-6}
	table := MaterialTable{"silk": silk}

	names := make([]string, len(faces))
	for i := range names {
		names[i] = "silk"
	}
	names[3] = "denim"
	names[5] = "denim"
	names[6] = "wool"

	tests := []struct {
		name    string
		workers int
		names   []string
		uniform *Material
		missing []string
		density float64
	}{
		{"named", 1, names, nil, []string{"denim", "wool"}, 0},
		{"named parallel", 4, names, nil, []string{"denim", "wool"}, 0},
		{"uniform", 2, nil, &silk, nil, silk.Density},
		{"uniform default", 1, nil, nil, nil, DefaultMaterial().Density},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mm, err := MapMaterials(tt.workers, topo, uv, tt.names, table, tt.uniform)
			if err != nil {
				t.Fatal(err)
			}
			if len(mm.Missing) != len(tt.missing) {
				t.Fatalf("missing = %v, want %v", mm.Missing, tt.missing)
			}
			for i := range tt.missing {
				if mm.Missing[i] != tt.missing[i] {
					t.Errorf("missing = %v, want %v", mm.Missing, tt.missing)
				}
			}

			var faceArea, faceMass, nodeArea, nodeMass float64
			for f, fm := range mm.Faces {
				if math.Abs(fm.Area-0.5) > 1e-12 {
					t.Errorf("face %d area = %g, want 0.5", f, fm.Area)
				}
				if tt.density > 0 && math.Abs(fm.Mass-fm.Area*tt.density) > 1e-12 {
					t.Errorf("face %d mass = %g", f, fm.Mass)
				}
				faceArea += fm.Area
				faceMass += fm.Mass
			}
			for _, nm := range mm.Nodes {
				nodeArea += nm.Area
				nodeMass += nm.Mass
			}
			if math.Abs(faceArea-4) > 1e-9 || math.Abs(nodeArea-faceArea) > 1e-9 {
				t.Errorf("area faces=%g nodes=%g, want 4", faceArea, nodeArea)
			}
			if math.Abs(nodeMass-faceMass) > 1e-9 {
				t.Errorf("mass faces=%g nodes=%g", faceMass, nodeMass)
			}
		})
	}
}

func TestMapMaterialsFallback(t *testing.T) {
	x, uv, faces, tex := squareMesh(1, 1)
	topo, err := BuildTopology(x, uv, faces, tex)
	if err != nil {
		t.Fatal(err)
	}
	mm, err := MapMaterials(1, topo, uv, []string{"", "none"}, MaterialTable{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	def := DefaultMaterial()
	for f, fm := range mm.Faces {
		if fm.Stretch.Warp != def.Stretch.Warp || fm.Stretch.Shear != def.Stretch.Shear || fm.Bend != def.Bend {
			t.Errorf("face %d did not fall back to the default material", f)
		}
	}
	// corner 0 touches both triangles, corner 1 only one
	if math.Abs(mm.Nodes[0].Area-1.0/3) > 1e-12 || math.Abs(mm.Nodes[1].Area-1.0/6) > 1e-12 {
		t.Errorf("node areas = %v", mm.Nodes)
	}

	if _, err := MapMaterials(1, topo, uv, []string{"x"}, nil, nil); !errors.Is(err, ErrTopology) {
		t.Errorf("name count mismatch: got %v", err)
	}
}

func TestStretchScale(t *testing.T) {
	curve := Curve{{X: 0, Scale: 1}, {X: 1, Scale: 2}}
	s := StretchStiffness{Warp: 1, Weft: 2, Coupling: 3, Shear: 4, Curve: curve}.Scale(2)
	if s.Warp != 2 || s.Weft != 4 || s.Coupling != 6 || s.Shear != 8 {
		t.Errorf("got %+v", s)
	}
	if len(s.Curve) != 2 || s.Curve.At(0.5) != 1.5 {
		t.Errorf("curve not kept: %v", s.Curve)
	}
}
