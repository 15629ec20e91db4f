package adaptivity

import (
	"context"
	"fmt"
	"math"

	"github.com/notargets/femkernel/function"
	"github.com/notargets/femkernel/mesh"
	"github.com/notargets/femkernel/utils"
	"go.uber.org/zap"
)

// Form is a goal functional. Its representation belongs to the Solver
// that evaluates it.
type Form any

// BoundaryCondition is a boundary condition of the primal problem, passed
// through from the Solver to the ErrorControl
type BoundaryCondition any

// Solver is the problem specific part of the adaptive loop
type Solver interface {
	SolvePrimal() (*function.Function, error)
	ExtractBCs() []BoundaryCondition
	EvaluateGoal(goal Form, u *function.Function) (float64, error)
	// AdaptProblem moves the problem onto the refined mesh
	AdaptProblem(m *mesh.Mesh) error
}

// ErrorControl estimates the error in the goal functional
type ErrorControl interface {
	EstimateError(u *function.Function, bcs []BoundaryCondition) (float64, error)
	// ComputeIndicators returns one non-negative indicator per cell
	ComputeIndicators(u *function.Function) ([]float64, error)
}

// Refiner returns a new mesh with the flagged cells refined
type Refiner interface {
	Refine(m *mesh.Mesh, markers []bool) (*mesh.Mesh, error)
}

// State is a step of the adaptive loop
type State uint8

const (
	Initial State = iota
	SolvePrimal
	EvaluateGoal
	EstimateError
	CheckStop
	Refine
	Converged
	MaxIterationsReached
	MaxDimensionReached
)

func (s State) String() string {
	switch s {
	case Initial:
		return "initial"
	case SolvePrimal:
		return "solve-primal"
	case EvaluateGoal:
		return "evaluate-goal"
	case EstimateError:
		return "estimate-error"
	case CheckStop:
		return "check-stop"
	case Refine:
		return "refine"
	case Converged:
		return "converged"
	case MaxIterationsReached:
		return "max-iterations-reached"
	case MaxDimensionReached:
		return "max-dimension-reached"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Terminal reports whether the loop ends in s
func (s State) Terminal() bool {
	return s == Converged || s == MaxIterationsReached || s == MaxDimensionReached
}

// StopReason explains a Stop decision
type StopReason uint8

const (
	Continue StopReason = iota
	BelowTolerance
	MaxDimension
	MaxIterations
)

func (r StopReason) String() string {
	switch r {
	case Continue:
		return "continue"
	case BelowTolerance:
		return "error estimate below tolerance"
	case MaxDimension:
		return "maximal number of dofs reached"
	case MaxIterations:
		return "maximal number of iterations reached"
	default:
		return fmt.Sprintf("StopReason(%d)", uint8(r))
	}
}

func (r StopReason) state() State {
	switch r {
	case BelowTolerance:
		return Converged
	case MaxDimension:
		return MaxDimensionReached
	case MaxIterations:
		return MaxIterationsReached
	default:
		return CheckStop
	}
}

// Stop decides whether the loop ends after iteration (zero based) with a
// space of dim DOFs. The tolerance test comes first, then the dimension
// limit, then the iteration limit.
func Stop(dim int, errorEstimate, tol float64, iteration int, p Parameters) (bool, StopReason) {
	if math.Abs(errorEstimate) < tol {
		return true, BelowTolerance
	}
	if p.MaxDimension > 0 && dim > p.MaxDimension {
		return true, MaxDimension
	}
	if iteration+1 >= p.MaxIterations {
		return true, MaxIterations
	}
	return false, Continue
}

// Datum records one iteration of the adaptive loop
type Datum struct {
	Iteration       int
	NumDofs         int
	NumCells        int
	ErrorEstimate   float64
	Tolerance       float64
	FunctionalValue float64
	Reference       float64 // 0 when no reference value is configured
	NumMarked       int     // cells flagged for refinement, 0 on the last iteration
}

// Error returns |FunctionalValue - Reference|, or NaN without a reference
func (d Datum) Error() float64 {
	if d.Reference == 0 {
		return math.NaN()
	}
	return math.Abs(d.FunctionalValue - d.Reference)
}

// Efficiency returns ErrorEstimate / Error, or NaN without a reference
func (d Datum) Efficiency() float64 {
	e := d.Error()
	if math.IsNaN(e) || e == 0 {
		return math.NaN()
	}
	return d.ErrorEstimate / e
}

// Result is the outcome of Driver.Solve
type Result struct {
	State    State
	Data     []Datum
	Solution *function.Function
}

// Driver runs the adaptive loop
type Driver struct {
	Solver  Solver
	Refiner Refiner
	Params  Parameters
	Metrics *Metrics // optional

	logger *zap.Logger
	state  State
}

// NewDriver validates p and returns a driver in the Initial state
func NewDriver(s Solver, r Refiner, p Parameters) (*Driver, error) {
	if s == nil || r == nil {
		return nil, fmt.Errorf("adaptive driver needs a solver and a refiner")
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Driver{Solver: s, Refiner: r, Params: p, logger: utils.Logger(), state: Initial}, nil
}

// State returns the current step of the loop
func (d *Driver) State() State { return d.state }

// Solve refines until the error estimate in goal drops below tol or a
// limit from the parameters is reached. Cancelling ctx stops the loop
// between steps; the data gathered so far is returned with the error.
func (d *Driver) Solve(ctx context.Context, tol float64, goal Form, control ErrorControl) (Result, error) {
	var (
		res      Result
		u        *function.Function
		datum    Datum
		iter     int
		indicate []float64
	)
	d.state = SolvePrimal

	for !d.state.Terminal() {
		if err := ctx.Err(); err != nil {
			res.State = d.state
			return res, fmt.Errorf("adaptive solve interrupted in %s: %w", d.state, err)
		}

		switch d.state {
		case SolvePrimal:
			d.logger.Info("solving primal problem", zap.Int("iteration", iter))
			var err error
			if u, err = d.Solver.SolvePrimal(); err != nil {
				return d.fail(res, err)
			}
			res.Solution = u
			V := u.Space()
			datum = Datum{
				Iteration: iter,
				NumDofs:   V.Dim(),
				NumCells:  V.Mesh().NumCells(),
				Tolerance: tol,
				Reference: d.Params.Reference,
			}
			if d.Params.PlotMesh {
				d.logger.Info("mesh", zap.Int("iteration", iter), zap.Stringer("mesh", V.Mesh()))
			}
			d.state = EvaluateGoal

		case EvaluateGoal:
			value, err := d.Solver.EvaluateGoal(goal, u)
			if err != nil {
				return d.fail(res, err)
			}
			datum.FunctionalValue = value
			d.state = EstimateError

		case EstimateError:
			est, err := control.EstimateError(u, d.Solver.ExtractBCs())
			if err != nil {
				return d.fail(res, err)
			}
			datum.ErrorEstimate = est
			d.state = CheckStop

		case CheckStop:
			stop, reason := Stop(datum.NumDofs, datum.ErrorEstimate, tol, iter, d.Params)
			if stop {
				res.Data = append(res.Data, datum)
				d.observe(datum)
				d.logger.Info("stopping adaptive loop", zap.Stringer("reason", reason))
				d.state = reason.state()
				break
			}
			d.state = Refine

		case Refine:
			var err error
			if indicate, err = control.ComputeIndicators(u); err != nil {
				return d.fail(res, err)
			}
			m := u.Space().Mesh()
			if len(indicate) != m.NumCells() {
				return d.fail(res, fmt.Errorf("%d error indicators for %d cells", len(indicate), m.NumCells()))
			}
			markers, err := Mark(indicate, d.Params.MarkingStrategy, d.Params.MarkingFraction)
			if err != nil {
				return d.fail(res, err)
			}
			datum.NumMarked = CountMarked(markers)
			res.Data = append(res.Data, datum)
			d.observe(datum)

			refined, err := d.Refiner.Refine(m, markers)
			if err != nil {
				return d.fail(res, fmt.Errorf("refine mesh: %w", err))
			}
			if err := d.Solver.AdaptProblem(refined); err != nil {
				return d.fail(res, fmt.Errorf("adapt problem: %w", err))
			}
			iter++
			d.state = SolvePrimal
		}
	}

	res.State = d.state
	Summary(d.logger, res.Data)
	return res, nil
}

func (d *Driver) fail(res Result, err error) (Result, error) {
	res.State = d.state
	return res, fmt.Errorf("adaptive solve failed in %s: %w", d.state, err)
}

func (d *Driver) observe(datum Datum) {
	d.logger.Info("adaptive iteration",
		zap.Int("iteration", datum.Iteration),
		zap.Int("dofs", datum.NumDofs),
		zap.Int("cells", datum.NumCells),
		zap.Float64("functional", datum.FunctionalValue),
		zap.Float64("error_estimate", datum.ErrorEstimate),
		zap.Int("marked", datum.NumMarked))
	if d.Metrics != nil {
		d.Metrics.Observe(datum)
	}
}
