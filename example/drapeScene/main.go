package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/akmonengine/weave"
	"github.com/akmonengine/weave/config"
	"github.com/akmonengine/weave/export"
	"github.com/akmonengine/weave/internal/logger"
	"github.com/akmonengine/weave/levelset"
	"github.com/akmonengine/weave/mesh"
	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"
)

func main() {
	flags := config.RegisterFlags(flag.CommandLine)
	flag.Parse()

	cfg, err := config.Load(flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.Logging.Level, cfg.Logging.LogFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	if flags.SaveConfig() {
		if err := cfg.Save(); err != nil {
			log.Fatal("saving config failed", zap.Error(err))
		}
		log.Info("config saved", zap.String("dir", config.ConfigDir()))
	}

	if err := run(cfg, log); err != nil {
		log.Fatal("drape failed", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	scene := cfg.Scene

	sim := weave.NewSim(log)
	if err := sim.UpdateParam(cfg.Sim); err != nil {
		return err
	}
	sim.SetMaterials(cfg.Materials)
	sim.SetUniformMaterial(&cfg.Material)

	sim.Events.Subscribe(weave.STITCH_CLOSED, func(e weave.Event) {
		c := e.(weave.StitchClosedEvent)
		log.Debug("stitch closed", zap.Int("stitch", c.Stitch), zap.Int("a", c.A), zap.Int("b", c.B))
	})
	touching := 0
	sim.Events.Subscribe(weave.BODY_CONTACT_ENTER, func(weave.Event) { touching++ })
	sim.Events.Subscribe(weave.BODY_CONTACT_EXIT, func(weave.Event) { touching-- })

	g := square(scene.Resolution, scene.Size, scene.Height)
	if err := sim.Init(g); err != nil {
		return err
	}

	margin := mgl64.Vec3{scene.VoxelSize, scene.VoxelSize, scene.VoxelSize}.Mul(4)
	r := mgl64.Vec3{scene.SphereRadius, scene.SphereRadius, scene.SphereRadius}
	sphere, err := levelset.Bake(cfg.Sim.Workers, levelset.Sphere{Radius: scene.SphereRadius},
		levelset.AABB{Min: r.Mul(-1).Sub(margin), Max: r.Add(margin)}, scene.VoxelSize)
	if err != nil {
		return err
	}
	sim.SetLevelSet(sphere)

	if scene.PinCorners {
		back := scene.Resolution * (scene.Resolution + 1)
		ids := []int{back, back + scene.Resolution}
		if err := sim.SetFixPositions(ids, []mgl64.Vec3{g.Positions[ids[0]], g.Positions[ids[1]]}); err != nil {
			return err
		}
	}

	for step := 1; step <= scene.Steps; step++ {
		if err := sim.RunOneStep(); err != nil {
			return err
		}
		if step%50 == 0 || step == scene.Steps {
			log.Info("step",
				zap.Int("step", step),
				zap.Float64("time", sim.SimulationTime()),
				zap.Float64("fps", sim.FPS()),
				zap.Int("touching", touching),
				zap.String("solver", sim.SolverInfo()))
		}
	}

	if scene.Output == "" {
		return nil
	}
	if err := export.Save(scene.Output, sim.ResultMesh()); err != nil {
		return err
	}
	log.Info("exported", zap.String("path", scene.Output))
	return nil
}

// square is a res×res grid of quads in the xz plane at the given height.
func square(res int, size, height float64) weave.Garment {
	g := weave.Garment{Name: "drape"}
	step := size / float64(res)
	for j := 0; j <= res; j++ {
		for i := 0; i <= res; i++ {
			u, v := float64(i)*step, float64(j)*step
			g.Positions = append(g.Positions, mgl64.Vec3{u - size/2, height, v - size/2})
			g.TexCoords = append(g.TexCoords, mgl64.Vec2{u, v})
		}
	}
	idx := func(i, j int) int { return j*(res+1) + i }
	for j := 0; j < res; j++ {
		for i := 0; i < res; i++ {
			a, b, c, d := idx(i, j), idx(i+1, j), idx(i+1, j+1), idx(i, j+1)
			for _, f := range [][3]int{{a, c, b}, {a, d, c}} {
				g.Faces = append(g.Faces, mesh.Face{V: f})
				g.TexFaces = append(g.TexFaces, mesh.TexFace{V: f})
			}
		}
	}
	return g
}
