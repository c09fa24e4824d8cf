package callback

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
)

// BestIterationAttr is the model attribute set when early stopping fires.
const BestIterationAttr = "best_iteration"

// ErrNoEvaluation is returned by early stopping when a round produced no
// evaluation results to monitor.
var ErrNoEvaluation = errors.New("for early stopping, at least one dataset and eval metric is required for evaluation")

// EarlyStopping returns a callback that stops training once none of the
// monitored results improved during the last rounds rounds. Every result slot
// is tracked separately and the first one to stall stops the run.
func EarlyStopping(rounds int, verbose bool, w io.Writer) Callback {
	if w == nil {
		w = os.Stdout
	}
	var (
		bestScore []float64
		bestIter  []int
		bestMsg   []string
		bestRes   [][]EvalResult
		factor    []float64
	)

	initialize := func(env *Env) error {
		if len(env.EvaluationResults) == 0 {
			return ErrNoEvaluation
		}
		if verbose {
			fmt.Fprintf(w, "Train until valid scores didn't improve in %d rounds.\n", rounds)
		}
		n := len(env.EvaluationResults)
		bestScore = make([]float64, n)
		bestIter = make([]int, n)
		bestMsg = make([]string, n)
		bestRes = make([][]EvalResult, n)
		factor = make([]float64, n)
		for i, r := range env.EvaluationResults {
			bestScore[i] = math.Inf(-1)
			factor[i] = -1
			if r.HigherBetter {
				factor[i] = 1
			}
		}
		return nil
	}

	return New(func(env *Env) error {
		if bestScore == nil {
			if err := initialize(env); err != nil {
				return err
			}
		}
		for i := range bestScore {
			if i >= len(env.EvaluationResults) {
				break
			}
			score := env.EvaluationResults[i].Value * factor[i]
			if score > bestScore[i] {
				bestScore[i] = score
				bestIter[i] = env.Iteration
				bestRes[i] = append([]EvalResult(nil), env.EvaluationResults...)
				if verbose {
					bestMsg[i] = fmt.Sprintf("[%d]\t%s", env.Iteration+1, formatResults(env.EvaluationResults, true))
				}
				continue
			}
			if env.Iteration-bestIter[i] >= rounds {
				if env.Model != nil {
					env.Model.SetAttr(BestIterationAttr, strconv.Itoa(bestIter[i]))
				}
				if verbose {
					fmt.Fprintf(w, "Early stopping, best iteration is:\n%s\n", bestMsg[i])
				}
				return &EarlyStopError{BestIteration: bestIter[i], BestScore: bestRes[i]}
			}
		}
		return nil
	}, WithOrder(30))
}
