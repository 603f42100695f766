package weave

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/akmonengine/weave/levelset"
	"github.com/akmonengine/weave/mesh"
	"github.com/akmonengine/weave/parallel"
	"github.com/akmonengine/weave/pcg"
	"github.com/akmonengine/weave/sparse"
	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const DEFAULT_WORKERS = parallel.DEFAULT_WORKERS

var (
	ErrNotInitialized = errors.New("simulation not initialized")
	ErrInvalidPin     = errors.New("invalid pin")
	ErrInvalidParam   = errors.New("invalid simulation parameter")
	ErrInvalidState   = errors.New("invalid state buffer")
)

type dirtyFlags uint8

const (
	dirtyTopology dirtyFlags = 1 << iota
	dirtyLevelSet
	dirtyMaterial
	dirtyStitch
	dirtySparse
	dirtyRestart
	dirtyExport
)

// pin holds a vertex, in garment numbering, on its target. weight scales the
// handle stiffness.
type pin struct {
	id     int
	target mgl64.Vec3
	weight float64
}

// Sim advances one garment with implicit steps.
//
// Structural changes (topology, stitches, materials, body) are requested with
// the Set/Update methods and applied together by Resolve, which RunOneStep calls
// first. A failed rebuild keeps the previous structures.
type Sim struct {
	Events Events

	logger      *zap.Logger
	param       SimParam
	garment     Garment
	initialized bool

	materials       mesh.MaterialTable
	uniform         *mesh.Material
	warnedMaterials map[string]bool
	pendingBody     *levelset.Grid
	pins            []pin

	// stitch pairs waiting for the next rebuild, committed to the garment
	// only when it succeeds
	pendingStitches []mesh.StitchPair
	stitchesPending bool

	dirty   dirtyFlags
	lastErr error

	// structures, swapped in whole by Resolve
	stitch    *mesh.Stitch
	topo      *mesh.Topology
	kept      []int
	faceNames []string
	mats      *mesh.MaterialMap
	structure *sparse.Structure
	body      *levelset.Grid

	// state, in simulation numbering
	x, lastX, xInit []mgl64.Vec3
	v, lastV        []mgl64.Vec3
	pinned          []bool
	pinTarget       []mgl64.Vec3
	pinWeight       []float64
	bodyContact     []bool

	// linear system
	a            *sparse.Matrix
	blockScratch []mgl64.Mat3
	rhsScratch   []mgl64.Vec3
	rhs          []mgl64.Vec3
	b, dv        []float64
	solver       *pcg.Solver
	solverResult pcg.Result

	grid     *SpatialGrid
	contacts []selfContact

	shrink  float64
	simTime float64
	fps     float64
	result  *mesh.ClothMesh
}

// NewSim returns an empty simulation. A nil logger discards everything.
func NewSim(logger *zap.Logger) *Sim {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sim{
		Events:          NewEvents(),
		logger:          logger,
		param:           DefaultSimParam(),
		materials:       mesh.MaterialTable{},
		warnedMaterials: map[string]bool{},
		solver:          pcg.NewSolver(DEFAULT_WORKERS),
	}
}

// Init loads a garment, dropping any previous state and pins, and builds every
// structure. The error reports the rebuilds that failed.
func (s *Sim) Init(g Garment) error {
	if g.MaterialNames != nil && len(g.MaterialNames) != len(g.Faces) {
		return fmt.Errorf("%w: %d material names for %d faces", mesh.ErrTopology, len(g.MaterialNames), len(g.Faces))
	}

	s.garment = g.clone()
	s.initialized = true
	s.pins = nil
	s.pendingStitches, s.stitchesPending = nil, false
	s.stitch, s.topo, s.mats, s.structure = nil, nil, nil, nil
	s.x, s.xInit, s.v = nil, nil, nil
	s.simTime, s.shrink = 0, 0
	s.Events.reset()
	s.dirty |= dirtyStitch | dirtyTopology | dirtyMaterial | dirtySparse | dirtyRestart | dirtyExport

	return s.Resolve()
}

// SetLevelSet replaces the collision body. nil removes it.
func (s *Sim) SetLevelSet(body *levelset.Grid) {
	s.pendingBody = body
	s.dirty |= dirtyLevelSet
}

// SetMaterials replaces the material table used for named faces.
func (s *Sim) SetMaterials(table mesh.MaterialTable) {
	s.materials = table
	clear(s.warnedMaterials)
	s.dirty |= dirtyMaterial
}

// SetUniformMaterial gives every face the same material. nil goes back to the
// material table.
func (s *Sim) SetUniformMaterial(m *mesh.Material) {
	s.uniform = m
	s.dirty |= dirtyMaterial
}

// SetStitches replaces the stitch pairs of the garment on the next Resolve.
// Pairs the rebuild rejects are dropped and the previous ones stay.
func (s *Sim) SetStitches(pairs []mesh.StitchPair) {
	s.pendingStitches = slices.Clone(pairs)
	s.stitchesPending = true
	s.dirty |= dirtyStitch
}

// UpdateParam validates and applies p from the next step on.
func (s *Sim) UpdateParam(p SimParam) error {
	if err := p.Validate(); err != nil {
		return err
	}
	p.Workers = max(DEFAULT_WORKERS, p.Workers)
	s.param = p
	return nil
}

// Param returns the current settings.
func (s *Sim) Param() SimParam {
	return s.param
}

func (s *Sim) UpdateTopology() { s.dirty |= dirtyTopology }
func (s *Sim) UpdateStitch()   { s.dirty |= dirtyStitch }
func (s *Sim) UpdateMaterial() { s.dirty |= dirtyMaterial }

// Restart puts every vertex back on its initial position at rest.
func (s *Sim) Restart() { s.dirty |= dirtyRestart }

// SetFixPositions pins the garment vertices ids on targets with unit weight.
// An empty list releases every pin.
func (s *Sim) SetFixPositions(ids []int, targets []mgl64.Vec3) error {
	return s.SetWeightedFixPositions(ids, targets, nil)
}

// SetWeightedFixPositions pins the garment vertices ids on targets. weights
// scale HandleStiffness per pin; nil means 1 for every pin. Pinned vertices
// still land exactly on their target.
func (s *Sim) SetWeightedFixPositions(ids []int, targets []mgl64.Vec3, weights []float64) error {
	if !s.initialized {
		return ErrNotInitialized
	}
	if len(ids) != len(targets) {
		return fmt.Errorf("%w: %d ids for %d targets", ErrInvalidPin, len(ids), len(targets))
	}
	if weights != nil && len(weights) != len(ids) {
		return fmt.Errorf("%w: %d weights for %d ids", ErrInvalidPin, len(weights), len(ids))
	}
	var err error
	for i, id := range ids {
		if id < 0 || id >= len(s.garment.Positions) {
			err = multierr.Append(err, fmt.Errorf("vertex %d out of range [0,%d)", id, len(s.garment.Positions)))
		}
		if weights != nil && !(weights[i] >= 0 && !math.IsInf(weights[i], 1)) {
			err = multierr.Append(err, fmt.Errorf("vertex %d weight %g must be finite and not negative", id, weights[i]))
		}
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPin, err)
	}

	s.pins = make([]pin, len(ids))
	for i := range ids {
		s.pins[i] = pin{id: ids[i], target: targets[i], weight: 1}
		if weights != nil {
			s.pins[i].weight = weights[i]
		}
	}
	if s.stitch != nil && s.x != nil {
		s.applyPins()
	}
	return nil
}

// Resolve applies the pending structural changes in dependency order:
// stitches, topology, materials, sparse structure, body, restart. Every
// requested rebuild is attempted once; failures are logged and returned, and
// the previous structures stay in use.
func (s *Sim) Resolve() error {
	if !s.initialized {
		return ErrNotInitialized
	}
	if s.dirty&^dirtyExport == 0 {
		return nil
	}

	var errs error
	if s.dirty&(dirtyStitch|dirtyTopology) != 0 {
		if err := s.rebuildMesh(); err != nil {
			errs = multierr.Append(errs, s.fail("rebuild", err))
		}
		s.pendingStitches, s.stitchesPending = nil, false
		s.dirty &^= dirtyStitch | dirtyTopology
	}
	if s.dirty&dirtyMaterial != 0 && s.topo != nil {
		if err := s.rebuildMaterial(); err != nil {
			errs = multierr.Append(errs, s.fail("material", err))
		}
	}
	s.dirty &^= dirtyMaterial
	if s.dirty&dirtySparse != 0 && s.topo != nil {
		s.rebuildSparse()
	}
	s.dirty &^= dirtySparse
	if s.dirty&dirtyLevelSet != 0 {
		s.body = s.pendingBody
		s.dirty &^= dirtyLevelSet
	}
	if s.dirty&dirtyRestart != 0 && s.x != nil {
		s.restart()
	}
	s.dirty &^= dirtyRestart

	s.lastErr = errs
	return errs
}

func (s *Sim) fail(stage string, err error) error {
	s.logger.Warn("rebuild failed, keeping previous structures", zap.String("stage", stage), zap.Error(err))
	return fmt.Errorf("%s: %w", stage, err)
}

// rebuildMesh rebuilds the stitch (when asked or missing) and the topology on
// the merged vertices. Both are committed together, and the state is carried
// over when the merge map changed. Springs keep their current rest length
// across the rebuild.
func (s *Sim) rebuildMesh() error {
	g := s.garment
	if err := mesh.ValidateFaces(len(g.Positions), len(g.TexCoords), g.Faces, g.TexFaces); err != nil {
		return err
	}
	positions := s.inputPositions()

	pairs := g.Stitches
	if s.stitchesPending {
		pairs = s.pendingStitches
	}
	stitch := s.stitch
	rebuilt := false
	if s.dirty&dirtyStitch != 0 || stitch == nil {
		var rest map[mesh.StitchPair]float64
		if s.stitch != nil {
			rest = s.stitch.RestLengths(s.shrink)
		}
		st, err := mesh.BuildStitch(len(g.Positions), pairs, positions, s.param.StitchMergeDistance, rest)
		if err != nil {
			return err
		}
		stitch, rebuilt = st, true
	}

	faces, texFaces, kept := stitch.RemapFaces(s.garment.Faces, s.garment.TexFaces)
	merged := mergeValues(stitch, func(m int) mgl64.Vec3 { return positions[m] })
	topo, err := mesh.BuildTopology(merged, s.garment.TexCoords, faces, texFaces)
	if err != nil {
		return err
	}
	if topo.NonManifoldEdges > 0 {
		s.logger.Warn("non-manifold edges only bend between their first two faces", zap.Int("edges", topo.NonManifoldEdges))
	}

	old := s.stitch
	s.stitch, s.topo, s.kept = stitch, topo, kept
	s.garment.Stitches = pairs
	s.faceNames = nil
	if s.garment.MaterialNames != nil {
		s.faceNames = make([]string, len(kept))
		for i, f := range kept {
			s.faceNames[i] = s.garment.MaterialNames[f]
		}
	}
	if rebuilt {
		s.shrink = 0
	}
	if old == nil || s.x == nil || !slices.Equal(old.MergeMap, stitch.MergeMap) {
		s.remapState(old)
	}
	s.dirty |= dirtyMaterial | dirtySparse | dirtyExport

	s.logger.Debug("mesh rebuilt",
		zap.Int("vertices", topo.NumVerts),
		zap.Int("faces", len(topo.Faces)),
		zap.Int("bends", len(topo.Bends)),
		zap.Int("stitches", len(stitch.Edges)))
	return nil
}

// inputPositions returns the current positions in garment numbering.
func (s *Sim) inputPositions() []mgl64.Vec3 {
	if s.stitch == nil || s.x == nil {
		return s.garment.Positions
	}
	out := make([]mgl64.Vec3, len(s.stitch.MergeMap))
	for i, o := range s.stitch.MergeMap {
		out[i] = s.x[o]
	}
	return out
}

// mergeValues averages value over the garment vertices of every simulation vertex.
func mergeValues(stitch *mesh.Stitch, value func(m int) mgl64.Vec3) []mgl64.Vec3 {
	out := make([]mgl64.Vec3, stitch.NumMerged)
	for o, members := range stitch.Members() {
		var sum mgl64.Vec3
		for _, m := range members {
			sum = sum.Add(value(m))
		}
		out[o] = sum.Mul(1 / float64(len(members)))
	}
	return out
}

// remapState moves the state from the numbering of old to the current stitch.
// Without a previous state, vertices start on the garment at rest.
func (s *Sim) remapState(old *mesh.Stitch) {
	carry := old != nil && s.x != nil
	from := func(src []mgl64.Vec3, fallback func(m int) mgl64.Vec3) []mgl64.Vec3 {
		return mergeValues(s.stitch, func(m int) mgl64.Vec3 {
			if carry {
				return src[old.MergeMap[m]]
			}
			return fallback(m)
		})
	}
	garment := func(m int) mgl64.Vec3 { return s.garment.Positions[m] }
	rest := func(int) mgl64.Vec3 { return mgl64.Vec3{} }

	s.x = from(s.x, garment)
	s.xInit = from(s.xInit, garment)
	s.v = from(s.v, rest)

	n := s.stitch.NumMerged
	s.lastX = slices.Clone(s.x)
	s.lastV = slices.Clone(s.v)
	s.bodyContact = make([]bool, n)
	s.applyPins()
	s.Events.reset()
}

func (s *Sim) applyPins() {
	n := s.stitch.NumMerged
	s.pinned = make([]bool, n)
	s.pinTarget = make([]mgl64.Vec3, n)
	s.pinWeight = make([]float64, n)
	for _, p := range s.pins {
		o := s.stitch.MergeMap[p.id]
		s.pinned[o] = true
		s.pinTarget[o] = p.target
		s.pinWeight[o] = p.weight
	}
}

func (s *Sim) rebuildMaterial() error {
	mm, err := mesh.MapMaterials(s.param.Workers, s.topo, s.garment.TexCoords, s.faceNames, s.materials, s.uniform)
	if err != nil {
		return err
	}
	for _, name := range mm.Missing {
		if s.warnedMaterials[name] {
			continue
		}
		s.warnedMaterials[name] = true
		s.logger.Warn("unknown material, using default", zap.String("material", name))
	}
	s.mats = mm
	return nil
}

func (s *Sim) rebuildSparse() {
	st := sparse.BuildStructure(s.topo.NumVerts, s.topo.FaceIndices(), s.topo.BendIndices(), s.stitch.EdgeIndices())
	s.structure = st
	s.a = st.Pattern.WithSamePattern()
	s.blockScratch = make([]mgl64.Mat3, st.NumBlockSlots())
	s.rhsScratch = make([]mgl64.Vec3, st.NumRHSSlots())
	s.rhs = make([]mgl64.Vec3, st.N)
	s.b = make([]float64, 3*st.N)
	s.dv = make([]float64, 3*st.N)
	s.grid = nil

	s.logger.Debug("sparse structure rebuilt", zap.Int("blocks", st.Pattern.NNZ()), zap.Int("slots", st.NumBlockSlots()))
}

func (s *Sim) restart() {
	copy(s.x, s.xInit)
	clear(s.v)
	copy(s.lastX, s.x)
	clear(s.lastV)
	s.simTime = 0
	s.shrink = 0
	s.Events.reset()
	s.dirty |= dirtyExport
}

// ready reports whether every structure matches the state.
func (s *Sim) ready() bool {
	if s.topo == nil || s.stitch == nil || s.mats == nil || s.structure == nil || s.x == nil {
		return false
	}
	n := len(s.x)
	return s.topo.NumVerts == n &&
		len(s.mats.Nodes) == n &&
		len(s.mats.Faces) == len(s.topo.Faces) &&
		s.structure.N == n &&
		s.structure.NumFaces == len(s.topo.Faces) &&
		s.structure.NumBends == len(s.topo.Bends) &&
		s.structure.NumStitches == len(s.stitch.Edges)
}

// RunOneStep resolves pending changes and advances the cloth by one Dt.
// Rebuild failures do not stop the step, see LastError. It only fails when no
// valid structure exists.
func (s *Sim) RunOneStep() error {
	start := time.Now()
	if s.dirty&^dirtyExport != 0 {
		_ = s.Resolve()
	}
	if !s.initialized || !s.ready() {
		return ErrNotInitialized
	}

	s.assemble()
	s.contacts = nil
	if s.param.EnableSelfCollision {
		s.collideSelf()
	}
	s.solve()
	s.integrate()
	s.projectOutside()
	s.advanceStitches()

	s.Events.recordBodyContacts(s.bodyContact)
	s.Events.recordSelfContacts(s.contacts)
	s.Events.flush()

	s.simTime += s.param.Dt
	s.dirty |= dirtyExport
	if elapsed := time.Since(start).Seconds(); elapsed > 0 {
		s.fps = 1 / elapsed
	}
	return nil
}

// Clear drops the garment and every structure. Settings, materials and event
// listeners are kept.
func (s *Sim) Clear() {
	*s = Sim{
		Events:          s.Events,
		logger:          s.logger,
		param:           s.param,
		materials:       s.materials,
		uniform:         s.uniform,
		warnedMaterials: map[string]bool{},
		solver:          s.solver,
	}
	s.Events.reset()
}

// LastError returns the failures of the last Resolve, nil when all rebuilds
// succeeded.
func (s *Sim) LastError() error {
	return s.lastErr
}

// CurrentPositions returns a copy of the positions, in simulation numbering.
func (s *Sim) CurrentPositions() []mgl64.Vec3 {
	return slices.Clone(s.x)
}

// InitPositions returns a copy of the restart positions, in simulation numbering.
func (s *Sim) InitPositions() []mgl64.Vec3 {
	return slices.Clone(s.xInit)
}

// Velocities returns a copy of the velocities, in simulation numbering.
func (s *Sim) Velocities() []mgl64.Vec3 {
	return slices.Clone(s.v)
}

func (s *Sim) SetCurrentPositions(x []mgl64.Vec3) error {
	if err := s.checkState(x); err != nil {
		return err
	}
	copy(s.x, x)
	s.dirty |= dirtyExport
	return nil
}

func (s *Sim) SetInitPositions(x []mgl64.Vec3) error {
	if err := s.checkState(x); err != nil {
		return err
	}
	copy(s.xInit, x)
	return nil
}

func (s *Sim) checkState(x []mgl64.Vec3) error {
	if s.x == nil {
		return ErrNotInitialized
	}
	if len(x) != len(s.x) {
		return fmt.Errorf("%w: %d positions for %d vertices", ErrInvalidState, len(x), len(s.x))
	}
	return nil
}

func (s *Sim) TexCoords() []mgl64.Vec2 {
	return slices.Clone(s.garment.TexCoords)
}

// Faces returns the simulated faces, in simulation numbering.
func (s *Sim) Faces() []mesh.Face {
	if s.topo == nil {
		return nil
	}
	return slices.Clone(s.topo.Faces)
}

// VertMergeMap maps every garment vertex to its simulation vertex.
func (s *Sim) VertMergeMap() []int {
	if s.stitch == nil {
		return nil
	}
	return slices.Clone(s.stitch.MergeMap)
}

func (s *Sim) FPS() float64            { return s.fps }
func (s *Sim) StepTime() float64       { return s.param.Dt }
func (s *Sim) SimulationTime() float64 { return s.simTime }

// SolverInfo describes the last linear solve.
func (s *Sim) SolverInfo() string {
	return s.solverResult.String()
}

func (s *Sim) SolverResult() pcg.Result {
	return s.solverResult
}

// ResultMesh returns the cloth in garment numbering, faces welded by stitches
// left out. The mesh is rebuilt only after the state changed.
func (s *Sim) ResultMesh() *mesh.ClothMesh {
	if s.stitch == nil || s.x == nil {
		return nil
	}
	if s.result != nil && s.dirty&dirtyExport == 0 {
		return s.result
	}

	m := &mesh.ClothMesh{
		Name:      s.garment.Name,
		Positions: s.inputPositions(),
		TexCoords: slices.Clone(s.garment.TexCoords),
		Faces:     make([]mesh.Face, len(s.kept)),
		TexFaces:  make([]mesh.TexFace, len(s.kept)),
	}
	for i, f := range s.kept {
		m.Faces[i] = s.garment.Faces[f]
		m.TexFaces[i] = s.garment.TexFaces[f]
	}
	s.result = m
	s.dirty &^= dirtyExport
	return m
}

// ResultPieces returns the result mesh split by cloth piece.
func (s *Sim) ResultPieces() []*mesh.ClothMesh {
	m := s.ResultMesh()
	if m == nil {
		return nil
	}
	return m.Pieces()
}
