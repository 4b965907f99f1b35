// Package timefunc implements a component's time submodel: the four
// parametric shapes (velocity/step/ramp/decay), their validity range, and
// the per-(date, baseDate) memoised evaluation a component asks for on every
// setDate call.
package timefunc

import (
	"fmt"
	"math"

	"github.com/geocrust/defmodel/internal/dmerrors"
	"github.com/geocrust/defmodel/internal/timeval"
)

// Shape identifies which of the four parametric time models a TimeFunction
// evaluates.
type Shape int

const (
	Velocity Shape = iota
	Step
	Ramp
	Decay
)

func (s Shape) String() string {
	switch s {
	case Velocity:
		return "velocity"
	case Step:
		return "step"
	case Ramp:
		return "ramp"
	case Decay:
		return "decay"
	default:
		return "unknown"
	}
}

const daysInYear = 365.2425

// Params are the raw (time_function, factor0, time0, factor1, time1, decay)
// fields of a component row, plus the validity window and completeness flag
// carried alongside them.
type Params struct {
	Shape        Shape
	Factor0      float64
	Factor0Set   bool
	Time0        timeval.Time
	Factor1      float64
	Factor1Set   bool
	Time1        timeval.Time
	Decay        float64
	DecaySet     bool
	MinDate      timeval.Time
	MaxDate      timeval.Time
	TimeComplete bool
}

// calc is the pure scale-factor function at an instant, bound by New once
// parameters are validated.
type calc func(t timeval.Time) float64

// TimeFunction is the shared, hash-keyed time submodel: one instance per
// distinct (shape, factor0, time0, factor1, time1, decay) signature, reused
// across every component row with that signature. It memoises the last
// (date, baseDate) evaluation, matching the single-slot cache the source
// relies on: within one Model.calcDeformation call every active component is
// driven from the same (date, baseDate) pair.
type TimeFunction struct {
	params Params
	fn     calc

	calcDate     timeval.Time
	calcBaseDate timeval.Time
	haveCalc     bool
	calcValue    float64
	calcError    float64
	calcErr      error
}

// SquareVarianceFactor reports whether this shape squares its error factor a
// second time (true only for velocity) — see the doc comment on Eval.
func (tf *TimeFunction) SquareVarianceFactor() bool { return tf.params.Shape == Velocity }

// New validates params for its declared Shape and builds the bound scale
// function, failing with a ModelDefinitionError exactly as the source's
// TimeModel constructor does per shape.
func New(p Params) (*TimeFunction, error) {
	fn, err := build(p)
	if err != nil {
		return nil, err
	}
	return &TimeFunction{params: p, fn: fn}, nil
}

func build(p Params) (calc, error) {
	switch p.Shape {
	case Velocity:
		if !p.Time0.Present() {
			return nil, dmerrors.NewDefinition("reference time missing for velocity time model")
		}
		time0 := p.Time0
		return func(t timeval.Time) float64 {
			return t.DaysAfter(time0) / daysInYear
		}, nil

	case Step:
		if !p.Time0.Present() {
			return nil, dmerrors.NewDefinition("reference time missing for step time model")
		}
		if !p.Factor0Set || !p.Factor1Set {
			return nil, dmerrors.NewDefinition("initial or final scale factor missing for step time model")
		}
		time0, f0, f1 := p.Time0, p.Factor0, p.Factor1
		return func(t timeval.Time) float64 {
			if t.Before(time0) {
				return f0
			}
			return f1
		}, nil

	case Ramp:
		if !p.Time0.Present() || !p.Time1.Present() {
			return nil, dmerrors.NewDefinition("reference time missing for ramp time model")
		}
		if p.Time0.After(p.Time1) {
			return nil, dmerrors.NewDefinition("end time before start time for ramp time model")
		}
		if !p.Factor0Set || !p.Factor1Set {
			return nil, dmerrors.NewDefinition("initial or final scale factor missing for ramp time model")
		}
		time0, time1, f0, f1 := p.Time0, p.Time1, p.Factor0, p.Factor1
		vel := 0.0
		if time1.After(time0) {
			vel = (f1 - f0) / time1.DaysAfter(time0)
		}
		return func(t timeval.Time) float64 {
			switch {
			case !t.After(time0):
				return f0
			case !t.Before(time1):
				return f1
			default:
				return f0 + t.DaysAfter(time0)*vel
			}
		}, nil

	case Decay:
		if !p.Time0.Present() {
			return nil, dmerrors.NewDefinition("reference time missing for decay time model")
		}
		if p.Time1.Present() && p.Time0.After(p.Time1) {
			return nil, dmerrors.NewDefinition("end time before start time for decay time model")
		}
		if !p.Factor0Set || !p.Factor1Set {
			return nil, dmerrors.NewDefinition("initial or final scale factor missing for decay time model")
		}
		if !p.DecaySet || p.Decay <= 0 {
			return nil, dmerrors.NewDefinition("decay rate missing or not greater than 0 for decay time model")
		}
		time0, f0, f1, decayRate := p.Time0, p.Factor0, p.Factor1, p.Decay
		fdiff := f1 - f0
		if !p.Time1.Present() {
			return func(t timeval.Time) float64 {
				if !t.After(time0) {
					return f0
				}
				return f0 + fdiff*(1-math.Exp(decayRate*(time0.DaysAfter(t)/daysInYear)))
			}, nil
		}
		time1 := p.Time1
		fdiff /= 1 - math.Exp(decayRate*(time0.DaysAfter(time1)/daysInYear))
		return func(t timeval.Time) float64 {
			switch {
			case !t.After(time0):
				return f0
			case !t.Before(time1):
				return f1
			default:
				return f0 + fdiff*(1-math.Exp(decayRate*(time0.DaysAfter(t)/daysInYear)))
			}
		}, nil

	default:
		return nil, dmerrors.NewDefinition("invalid temporal model type %q", p.Shape)
	}
}

// inRange reports whether d falls inside [MinDate, MaxDate] when both are
// present; an absent bound is unconstrained on that side.
func (tf *TimeFunction) inRange(d timeval.Time) bool {
	if tf.params.MinDate.Present() && d.Before(tf.params.MinDate) {
		return false
	}
	if tf.params.MaxDate.Present() && d.After(tf.params.MaxDate) {
		return false
	}
	return true
}

// Eval returns (factor, errorFactor) for f(date) − f(baseDate) when baseDate
// is present, or f(date) alone otherwise — matching the source's
// accumulate-by-subtraction loop over (baseDate, date). Out-of-range dates
// on a non-time_complete function fail the whole call with OutOfRangeError.
//
// errorFactor is |factor|, squared an additional time when this shape is
// velocity (SquareVarianceFactor): this retains the source's
// quartic-for-velocity error scaling exactly as observed, on top of the
// single squaring DeformationList.Finalize already applies to eh/ev node
// values — the double squaring is intentional, not a bug to silently fix.
func (tf *TimeFunction) Eval(date, baseDate timeval.Time) (factor, errorFactor float64, err error) {
	if tf.haveCalc && tf.calcDate == date && tf.calcBaseDate == baseDate {
		return tf.calcValue, tf.calcError, tf.calcErr
	}

	tf.calcDate = date
	tf.calcBaseDate = baseDate
	tf.haveCalc = true

	value := 0.0
	for _, d := range [2]timeval.Time{baseDate, date} {
		if !d.Present() {
			continue
		}
		f := 0.0
		if !tf.inRange(d) {
			if !tf.params.TimeComplete {
				tf.calcValue, tf.calcError = 0, 0
				tf.calcErr = dmerrors.NewOutOfRange("date %s outside valid range of time function", d)
				return 0, 0, tf.calcErr
			}
		} else {
			f = tf.fn(d)
		}
		value = f - value
	}

	errVal := math.Abs(value)
	if tf.SquareVarianceFactor() {
		errVal *= errVal
	}

	tf.calcValue, tf.calcError, tf.calcErr = value, errVal, nil
	return value, errVal, nil
}

// HashKey identifies the (shape, factor0, time0, factor1, time1, decay)
// signature two component rows must share to be served by the same pooled
// TimeFunction instance (§3 invariant 2).
func HashKey(p Params) string {
	return fmt.Sprintf("%s:%v:%s:%v:%s:%v", p.Shape, p.Factor0, p.Time0, p.Factor1, p.Time1, p.Decay)
}
