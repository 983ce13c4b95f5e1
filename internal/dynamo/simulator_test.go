package dynamo_test

import (
	"context"
	"errors"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/gassim/internal/dynamo"
	"github.com/san-kum/gassim/internal/physics"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/spatial/r2"
)

var exampleParams = physics.Params{Count: 4, Mass: 1, Radius: 1, BoxSize: 10, InitialSpeed: 2}

func newGas(p physics.Params, rule physics.CollisionRule, seed uint64) *physics.Gas {
	g, err := physics.NewGas(p, rule, rand.New(rand.NewSource(seed)))
	Expect(err).NotTo(HaveOccurred())
	return g
}

type countingObserver struct{ steps []int }

func (c *countingObserver) OnStep(f dynamo.Frame) { c.steps = append(c.steps, f.Step) }

// blowUp turns its single particle's position into NaN at a given step.
type blowUp struct {
	pos, vel []r2.Vec
	at, step int
}

func (b *blowUp) Len() int             { return 1 }
func (b *blowUp) Positions() []r2.Vec  { return b.pos }
func (b *blowUp) Velocities() []r2.Vec { return b.vel }

func (b *blowUp) Step(dt float64) dynamo.StepStats {
	if b.step == b.at {
		b.pos[0].X = math.NaN()
	}
	b.step++
	return dynamo.StepStats{}
}

var _ = Describe("Simulator", func() {
	Describe("end-to-end example run", func() {
		var result *dynamo.Result

		BeforeEach(func() {
			sim := dynamo.New(newGas(exampleParams, physics.RuleElastic, 42))
			var err error
			result, err = sim.Run(context.Background(), dynamo.Config{Dt: 0.01, Steps: 100, ValidateState: true})
			Expect(err).NotTo(HaveOccurred())
		})

		It("records one snapshot per step", func() {
			traj := result.Trajectory
			Expect(traj.Positions).To(HaveLen(100))
			Expect(traj.Speeds).To(HaveLen(100))
			for k := range traj.Positions {
				Expect(traj.Positions[k]).To(HaveLen(4))
				Expect(traj.Speeds[k]).To(HaveLen(4))
			}
			Expect(result.StepsTaken).To(Equal(100))
		})

		It("records the initial state before advancing", func() {
			first := result.Trajectory.Positions[0]
			Expect(first).To(Equal(physics.GridPositions(4, 1, 10)))
			for _, s := range result.Trajectory.Speeds[0] {
				Expect(s).To(BeNumerically("~", 2.0, 1e-12))
			}
		})

		It("never lets particles overlap beyond a small tolerance", func() {
			const eps = 0.1
			for k, snap := range result.Trajectory.Positions {
				Expect(physics.MinSeparation(snap)).To(BeNumerically(">=", 2*exampleParams.Radius-eps),
					"snapshot %d", k)
			}
		})

		It("conserves kinetic energy", func() {
			traj := result.Trajectory
			first := traj.KineticEnergy(0, exampleParams.Mass)
			last := traj.KineticEnergy(traj.Len()-1, exampleParams.Mass)
			Expect(last).To(BeNumerically("~", first, 1e-9))
			Expect(result.EnergyDrift).To(BeNumerically("<", 1e-9))
		})
	})

	It("produces identical trajectories for identical seeds", func() {
		cfg := dynamo.Config{Dt: 0.05, Steps: 200}
		p := physics.Params{Count: 20, Mass: 1, Radius: 0.2, BoxSize: 10, InitialSpeed: 3}

		a, err := dynamo.New(newGas(p, physics.RuleElastic, 7)).Run(context.Background(), cfg)
		Expect(err).NotTo(HaveOccurred())
		b, err := dynamo.New(newGas(p, physics.RuleElastic, 7)).Run(context.Background(), cfg)
		Expect(err).NotTo(HaveOccurred())

		Expect(a.Trajectory.Positions).To(Equal(b.Trajectory.Positions))
		Expect(a.Trajectory.Speeds).To(Equal(b.Trajectory.Speeds))
		Expect(a.Collisions).To(Equal(b.Collisions))
	})

	It("derives the timestep from duration and steps", func() {
		res, err := dynamo.New(newGas(exampleParams, physics.RuleElastic, 1)).
			Run(context.Background(), dynamo.Config{Duration: 10, Steps: 750})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Trajectory.Dt).To(BeNumerically("~", 10.0/750, 1e-15))
		Expect(res.Trajectory.Len()).To(Equal(750))
	})

	It("keeps a particle aimed at a wall inside the box", func() {
		p := physics.Params{Count: 1, Mass: 1, Radius: 1, BoxSize: 10}
		g, err := physics.NewGasFromState(p, physics.RuleElastic,
			[]r2.Vec{{X: 2, Y: 5}}, []r2.Vec{{X: -4, Y: 0}})
		Expect(err).NotTo(HaveOccurred())

		dt := 0.3
		res, err := dynamo.New(g).Run(context.Background(), dynamo.Config{Dt: dt, Steps: 100})
		Expect(err).NotTo(HaveOccurred())

		for _, snap := range res.Trajectory.Positions {
			Expect(snap[0].X).To(BeNumerically(">=", -4*dt))
			Expect(snap[0].X).To(BeNumerically("<=", p.BoxSize+4*dt))
		}
		Expect(res.Collisions.WallHits).To(BeNumerically(">", 0))
	})

	It("notifies observers once per step in order", func() {
		obs := &countingObserver{}
		sim := dynamo.New(newGas(exampleParams, physics.RuleElastic, 3))
		sim.AddObserver(obs)

		_, err := sim.Run(context.Background(), dynamo.Config{Dt: 0.01, Steps: 25})
		Expect(err).NotTo(HaveOccurred())
		Expect(obs.steps).To(HaveLen(25))
		Expect(obs.steps[0]).To(Equal(0))
		Expect(obs.steps[24]).To(Equal(24))
	})

	DescribeTable("rejects invalid step configuration",
		func(cfg dynamo.Config) {
			_, err := dynamo.New(newGas(exampleParams, physics.RuleElastic, 1)).Run(context.Background(), cfg)
			Expect(err).To(MatchError(dynamo.ErrInvalidStep))
		},
		Entry("zero steps", dynamo.Config{Dt: 0.01, Steps: 0}),
		Entry("negative dt", dynamo.Config{Dt: -0.01, Steps: 10}),
		Entry("no dt and no duration", dynamo.Config{Steps: 10}),
	)

	It("stops with SimulationDiverged when state turns non-finite", func() {
		sys := &blowUp{pos: []r2.Vec{{X: 1, Y: 1}}, vel: []r2.Vec{{}}, at: 3}
		res, err := dynamo.New(sys).Run(context.Background(), dynamo.Config{Dt: 0.1, Steps: 10, ValidateState: true})

		Expect(err).To(MatchError(dynamo.ErrSimulationDiverged))
		var simErr *dynamo.SimulationError
		Expect(errors.As(err, &simErr)).To(BeTrue())
		Expect(simErr.Step).To(Equal(3))
		Expect(res.Trajectory.Len()).To(Equal(4))
	})

	It("lets non-finite state propagate when validation is off", func() {
		sys := &blowUp{pos: []r2.Vec{{X: 1, Y: 1}}, vel: []r2.Vec{{}}, at: 3}
		res, err := dynamo.New(sys).Run(context.Background(), dynamo.Config{Dt: 0.1, Steps: 10})

		Expect(err).NotTo(HaveOccurred())
		Expect(res.Trajectory.Len()).To(Equal(10))
		Expect(math.IsNaN(res.Trajectory.Positions[9][0].X)).To(BeTrue())
	})

	It("returns the partial result when the context is canceled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		res, err := dynamo.New(newGas(exampleParams, physics.RuleElastic, 1)).
			Run(ctx, dynamo.Config{Dt: 0.01, Steps: 10})
		Expect(err).To(MatchError(dynamo.ErrContextCanceled))
		Expect(errors.Is(err, context.Canceled)).To(BeTrue())
		Expect(res.Trajectory.Len()).To(Equal(0))
	})
})

var _ = Describe("Ensemble", func() {
	It("runs one seeded system per run", func() {
		p := physics.Params{Count: 9, Mass: 1, Radius: 0.5, BoxSize: 10, InitialSpeed: 1}
		factory := func(seed int64) (dynamo.System, error) {
			return physics.NewGas(p, physics.RuleElastic, rand.New(rand.NewSource(uint64(seed))))
		}

		cfg := dynamo.Config{Dt: 0.02, Steps: 50}
		results, err := dynamo.NewEnsemble(factory, 4, 100).Run(context.Background(), cfg)
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(4))

		single, err := dynamo.New(newGas(p, physics.RuleElastic, 102)).Run(context.Background(), cfg)
		Expect(err).NotTo(HaveOccurred())
		Expect(results[2].Trajectory.Speeds).To(Equal(single.Trajectory.Speeds))
	})

	DescribeTable("rejects run counts below one",
		func(runs int) {
			factory := func(seed int64) (dynamo.System, error) {
				Fail("factory must not be called")
				return nil, nil
			}
			results, err := dynamo.NewEnsemble(factory, runs, 0).Run(context.Background(), dynamo.Config{Dt: 0.1, Steps: 1})
			Expect(err).To(MatchError(dynamo.ErrInvalidConfiguration))
			Expect(results).To(BeNil())
		},
		Entry("zero", 0),
		Entry("negative", -1),
	)

	It("surfaces factory errors", func() {
		boom := errors.New("boom")
		factory := func(seed int64) (dynamo.System, error) { return nil, boom }

		_, err := dynamo.NewEnsemble(factory, 2, 0).Run(context.Background(), dynamo.Config{Dt: 0.1, Steps: 1})
		Expect(err).To(MatchError(boom))
	})
})
