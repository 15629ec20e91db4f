package adaptivity

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/notargets/femkernel/element"
	"github.com/notargets/femkernel/fem"
	"github.com/notargets/femkernel/function"
	"github.com/notargets/femkernel/generation"
	"github.com/notargets/femkernel/mesh"
	"github.com/notargets/femkernel/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// fakeSolver solves on a box mesh of n×1×1 hexahedra; AdaptProblem switches
// to the refined mesh
type fakeSolver struct {
	m       *mesh.Mesh
	solves  int
	adapted int
	goals   []float64 // functional value per solve, last one repeats
}

func newFakeSolver(goals ...float64) *fakeSolver {
	return &fakeSolver{m: generation.BoxMesh(1, 1, 1), goals: goals}
}

func (s *fakeSolver) SolvePrimal() (*function.Function, error) {
	s.solves++
	V := fem.NewFunctionSpace(s.m, element.NewLagrange(s.m.CellType(), 1))
	return function.NewFunction(V, "u"), nil
}

func (s *fakeSolver) ExtractBCs() []BoundaryCondition { return []BoundaryCondition{"wall"} }

func (s *fakeSolver) EvaluateGoal(_ Form, _ *function.Function) (float64, error) {
	i := s.solves - 1
	if i >= len(s.goals) {
		i = len(s.goals) - 1
	}
	return s.goals[i], nil
}

func (s *fakeSolver) AdaptProblem(m *mesh.Mesh) error {
	s.adapted++
	s.m = m
	return nil
}

// fakeControl returns the estimates in order, last one repeats
type fakeControl struct {
	estimates []float64
	calls     int
	bcs       []BoundaryCondition
}

func (c *fakeControl) EstimateError(_ *function.Function, bcs []BoundaryCondition) (float64, error) {
	c.bcs = bcs
	i := c.calls
	if i >= len(c.estimates) {
		i = len(c.estimates) - 1
	}
	c.calls++
	return c.estimates[i], nil
}

func (c *fakeControl) ComputeIndicators(u *function.Function) ([]float64, error) {
	n := u.Space().Mesh().NumCells()
	ind := make([]float64, n)
	for i := range ind {
		ind[i] = float64(i + 1)
	}
	return ind, nil
}

// boxRefiner doubles the box resolution in x whatever the markers
type boxRefiner struct {
	nx     int
	marked []int
}

func (r *boxRefiner) Refine(m *mesh.Mesh, markers []bool) (*mesh.Mesh, error) {
	if len(markers) != m.NumCells() {
		return nil, errors.New("marker count mismatch")
	}
	r.marked = append(r.marked, CountMarked(markers))
	if r.nx == 0 {
		r.nx = 1
	}
	r.nx *= 2
	return generation.BoxMesh(r.nx, 1, 1), nil
}

func TestStop(t *testing.T) {
	p := DefaultParameters()
	stop, reason := Stop(10, 1e-4, 1e-3, 0, p)
	assert.True(t, stop)
	assert.Equal(t, BelowTolerance, reason)

	stop, reason = Stop(10, 1, 1e-3, 0, p)
	assert.False(t, stop)
	assert.Equal(t, Continue, reason)

	p.MaxDimension = 10
	stop, reason = Stop(11, 1, 1e-3, 0, p)
	assert.True(t, stop)
	assert.Equal(t, MaxDimension, reason)
	// Tolerance wins over the dimension limit
	_, reason = Stop(11, 1e-6, 1e-3, 0, p)
	assert.Equal(t, BelowTolerance, reason)

	p.MaxDimension = 0
	stop, reason = Stop(1<<20, 1, 1e-3, 19, p)
	assert.True(t, stop)
	assert.Equal(t, MaxIterations, reason)
	stop, _ = Stop(1<<20, 1, 1e-3, 18, p)
	assert.False(t, stop)
}

func TestSolveConvergesOnTolerance(t *testing.T) {
	solver := newFakeSolver(1.0, 1.5, 1.75)
	control := &fakeControl{estimates: []float64{1, 0.1, 1e-4}}
	refiner := &boxRefiner{}
	d, err := NewDriver(solver, refiner, DefaultParameters())
	require.NoError(t, err)
	assert.Equal(t, Initial, d.State())

	res, err := d.Solve(context.Background(), 1e-3, "goal", control)
	require.NoError(t, err)
	assert.Equal(t, Converged, res.State)
	assert.Equal(t, Converged, d.State())
	require.Len(t, res.Data, 3)
	assert.Equal(t, 3, solver.solves)
	assert.Equal(t, 2, solver.adapted)
	assert.Equal(t, []BoundaryCondition{"wall"}, control.bcs)

	for i, datum := range res.Data {
		assert.Equal(t, i, datum.Iteration)
		assert.Equal(t, 1e-3, datum.Tolerance)
	}
	assert.Equal(t, 6, res.Data[0].NumCells)
	assert.Equal(t, 12, res.Data[1].NumCells)
	assert.Equal(t, 24, res.Data[2].NumCells)
	assert.Equal(t, 1.75, res.Data[2].FunctionalValue)
	assert.Equal(t, 0, res.Data[2].NumMarked)
	assert.NotZero(t, res.Data[0].NumMarked)
	assert.Equal(t, []int{res.Data[0].NumMarked, res.Data[1].NumMarked}, refiner.marked)
	assert.Same(t, solver.m, res.Solution.Space().Mesh())
}

func TestSolveMaxIterations(t *testing.T) {
	p := DefaultParameters()
	p.MaxIterations = 3
	solver := newFakeSolver(1)
	d, err := NewDriver(solver, &boxRefiner{}, p)
	require.NoError(t, err)
	res, err := d.Solve(context.Background(), 1e-8, nil, &fakeControl{estimates: []float64{1}})
	require.NoError(t, err)
	assert.Equal(t, MaxIterationsReached, res.State)
	assert.Len(t, res.Data, 3)
	assert.Equal(t, 2, solver.adapted)
}

func TestSolveMaxDimension(t *testing.T) {
	p := DefaultParameters()
	// BoxMesh(1,1,1) has 8 P1 dofs, BoxMesh(2,1,1) 12
	p.MaxDimension = 10
	d, err := NewDriver(newFakeSolver(1), &boxRefiner{}, p)
	require.NoError(t, err)
	res, err := d.Solve(context.Background(), 1e-8, nil, &fakeControl{estimates: []float64{1}})
	require.NoError(t, err)
	assert.Equal(t, MaxDimensionReached, res.State)
	require.Len(t, res.Data, 2)
	assert.Equal(t, 12, res.Data[1].NumDofs)
}

func TestSolveCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d, err := NewDriver(newFakeSolver(1), &boxRefiner{}, DefaultParameters())
	require.NoError(t, err)
	res, err := d.Solve(ctx, 1e-8, nil, &fakeControl{estimates: []float64{1}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, res.Data)
}

type failingRefiner struct{}

func (failingRefiner) Refine(*mesh.Mesh, []bool) (*mesh.Mesh, error) {
	return nil, errors.New("no refinement")
}

func TestSolveRefineError(t *testing.T) {
	d, err := NewDriver(newFakeSolver(1), failingRefiner{}, DefaultParameters())
	require.NoError(t, err)
	res, err := d.Solve(context.Background(), 1e-8, nil, &fakeControl{estimates: []float64{1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no refinement")
	assert.Equal(t, Refine, res.State)
	assert.Len(t, res.Data, 1)
}

func TestNewDriverValidation(t *testing.T) {
	_, err := NewDriver(nil, &boxRefiner{}, DefaultParameters())
	assert.Error(t, err)
	p := DefaultParameters()
	p.MarkingStrategy = "random"
	_, err = NewDriver(newFakeSolver(1), &boxRefiner{}, p)
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}

func TestMark(t *testing.T) {
	ind := []float64{1, 4, 2, 3}

	m, err := Mark(ind, Dorfler, 0.5)
	require.NoError(t, err)
	// 4+3 = 7 >= 5
	assert.Equal(t, []bool{false, true, false, true}, m)

	m, err = Mark(ind, Dorfler, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, CountMarked(m))

	m, err = Mark(ind, Dorfler, 1)
	require.NoError(t, err)
	assert.Equal(t, 4, CountMarked(m))

	m, err = Mark(ind, Maximum, 0.75)
	require.NoError(t, err)
	assert.Equal(t, []bool{false, true, false, true}, m)

	// mean 2.5
	m, err = Mark(ind, Equidistribution, 1)
	require.NoError(t, err)
	assert.Equal(t, []bool{false, true, false, true}, m)

	m, err = Mark(nil, Maximum, 0.5)
	require.NoError(t, err)
	assert.Empty(t, m)

	_, err = Mark(ind, "bisect", 0.5)
	assert.ErrorIs(t, err, ErrUnknownStrategy)
	_, err = Mark(ind, Dorfler, 1.5)
	assert.Error(t, err)
}

func TestParameters(t *testing.T) {
	p, err := ParseParameters([]byte("max_iterations: 5\nmarking_strategy: maximum\nreference: 0.25\n"))
	require.NoError(t, err)
	assert.Equal(t, 5, p.MaxIterations)
	assert.Equal(t, Maximum, p.MarkingStrategy)
	assert.Equal(t, 0.25, p.Reference)
	assert.Equal(t, 0.5, p.MarkingFraction)
	assert.Equal(t, 0, p.MaxDimension)

	_, err = ParseParameters([]byte("marking_fraction: 2\n"))
	assert.Error(t, err)
	_, err = ParseParameters([]byte("marking_strategy: [\n"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "adapt.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_dimension: 1000\nplot_mesh: true\n"), 0o644))
	p, err = LoadParameters(path)
	require.NoError(t, err)
	assert.Equal(t, 1000, p.MaxDimension)
	assert.True(t, p.PlotMesh)
	assert.Equal(t, 20, p.MaxIterations)

	_, err = LoadParameters(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	p := DefaultParameters()
	p.MaxIterations = 2
	d, err := NewDriver(newFakeSolver(3, 4), &boxRefiner{}, p)
	require.NoError(t, err)
	d.Metrics = metrics
	_, err = d.Solve(context.Background(), 1e-8, nil, &fakeControl{estimates: []float64{0.5, 0.25}})
	require.NoError(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.Iterations))
	assert.Equal(t, 0.25, testutil.ToFloat64(metrics.ErrorEstimate))
	assert.Equal(t, 4.0, testutil.ToFloat64(metrics.FunctionalValue))
	assert.Equal(t, 12.0, testutil.ToFloat64(metrics.Dofs))
	assert.Equal(t, 12.0, testutil.ToFloat64(metrics.Cells))
	assert.Equal(t, 6, testutil.CollectAndCount(reg))
}

func TestSummary(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	prev := utils.SetLogger(zap.New(core))
	defer utils.SetLogger(prev)

	p := DefaultParameters()
	p.MaxIterations = 2
	p.Reference = 2
	p.PlotMesh = true
	d, err := NewDriver(newFakeSolver(1.5, 1.9), &boxRefiner{}, p)
	require.NoError(t, err)
	res, err := d.Solve(context.Background(), 1e-8, nil, &fakeControl{estimates: []float64{1, 0.2}})
	require.NoError(t, err)

	assert.Equal(t, 2, logs.FilterMessage("adaptive iteration").Len())
	assert.Equal(t, 2, logs.FilterMessage("mesh").Len())
	assert.Equal(t, 1, logs.FilterMessage("adaptive summary").Len())
	levels := logs.FilterMessage("level").All()
	require.Len(t, levels, 2)
	fields := levels[1].ContextMap()
	assert.InDelta(t, 0.1, fields["error"], 1e-12)
	assert.InDelta(t, 2.0, fields["efficiency"], 1e-9)
	assert.InDelta(t, 2.0, res.Data[1].Efficiency(), 1e-9)

	logs.TakeAll()
	Summary(zap.New(core), []Datum{{Iteration: 0, NumDofs: 4}})
	entry := logs.FilterMessage("level").All()
	require.Len(t, entry, 1)
	_, hasError := entry[0].ContextMap()["error"]
	assert.False(t, hasError)
}
