package callback

import (
	"fmt"
	"math"

	"github.com/xyzhou-puck/LightGBM/config"
)

// Schedule yields a parameter value for a round. round is relative to the
// first round of the run and total is the run's round budget.
type Schedule interface {
	Value(round, total int) (float64, error)
}

// NamedSchedule is a Schedule that reports its name for logging.
type NamedSchedule interface {
	Schedule
	Name() string
}

// NewSchedule builds the decay schedule described by c.
func NewSchedule(c config.LRSchedule) (NamedSchedule, error) {
	switch c.Type {
	case config.ScheduleStep:
		return NewStepDecay(c.Base, c.StepSize, c.Gamma), nil
	case config.ScheduleExponential:
		return NewExponentialDecay(c.Base, c.Gamma), nil
	case config.ScheduleCosine:
		return NewCosineAnnealing(c.Base, c.TMax, c.EtaMin), nil
	}
	return nil, fmt.Errorf("%w: unknown lr_schedule type %q", config.ErrInvalidConfig, c.Type)
}

// ListSchedule gives one value per round; its length must equal the budget.
type ListSchedule []float64

// Value returns the entry for round.
func (s ListSchedule) Value(round, total int) (float64, error) {
	if len(s) != total {
		return 0, fmt.Errorf("length of list %d has to equal to 'num_boost_round' %d", len(s), total)
	}
	return s[round], nil
}

// FuncSchedule computes the value from the relative round.
type FuncSchedule func(round int) float64

// Value calls the function.
func (f FuncSchedule) Value(round, _ int) (float64, error) {
	return f(round), nil
}

// StepDecay reduces Base by a factor every StepSize rounds.
type StepDecay struct {
	Base     float64
	StepSize int     // Rounds between reductions
	Gamma    float64 // Multiplicative factor of decay
}

// NewStepDecay creates a step decay schedule
func NewStepDecay(base float64, stepSize int, gamma float64) *StepDecay {
	if stepSize <= 0 {
		stepSize = 30
	}
	if gamma <= 0 || gamma >= 1 {
		gamma = 0.1
	}
	return &StepDecay{Base: base, StepSize: stepSize, Gamma: gamma}
}

func (s *StepDecay) Value(round, _ int) (float64, error) {
	times := round / s.StepSize
	return s.Base * math.Pow(s.Gamma, float64(times)), nil
}

func (s *StepDecay) Name() string {
	return "StepDecay"
}

// ExponentialDecay multiplies Base by Gamma every round.
type ExponentialDecay struct {
	Base  float64
	Gamma float64
}

// NewExponentialDecay creates an exponential decay schedule
func NewExponentialDecay(base, gamma float64) *ExponentialDecay {
	if gamma <= 0 || gamma >= 1 {
		gamma = 0.95
	}
	return &ExponentialDecay{Base: base, Gamma: gamma}
}

func (s *ExponentialDecay) Value(round, _ int) (float64, error) {
	return s.Base * math.Pow(s.Gamma, float64(round)), nil
}

func (s *ExponentialDecay) Name() string {
	return "ExponentialDecay"
}

// CosineAnnealing anneals from Base to EtaMin over TMax rounds. A zero TMax
// anneals over the whole run.
type CosineAnnealing struct {
	Base   float64
	TMax   int
	EtaMin float64
}

// NewCosineAnnealing creates a cosine annealing schedule
func NewCosineAnnealing(base float64, tMax int, etaMin float64) *CosineAnnealing {
	if tMax < 0 {
		tMax = 0
	}
	if etaMin < 0 {
		etaMin = 0
	}
	return &CosineAnnealing{Base: base, TMax: tMax, EtaMin: etaMin}
}

func (s *CosineAnnealing) Value(round, total int) (float64, error) {
	tMax := s.TMax
	if tMax == 0 {
		tMax = total
	}
	if tMax <= 0 || round >= tMax {
		return s.EtaMin, nil
	}
	return s.EtaMin + (s.Base-s.EtaMin)*(1+math.Cos(math.Pi*float64(round)/float64(tMax)))/2, nil
}

func (s *CosineAnnealing) Name() string {
	return "CosineAnnealing"
}
