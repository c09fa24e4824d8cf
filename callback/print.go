package callback

import (
	"fmt"
	"io"
	"os"
)

// PrintEvaluation returns a callback that writes the round's evaluation
// results every period rounds. Standard deviations of aggregates are shown
// when showStdv is set. A nil writer prints to stdout.
func PrintEvaluation(period int, showStdv bool, w io.Writer) Callback {
	if w == nil {
		w = os.Stdout
	}
	return New(func(env *Env) error {
		if period <= 0 || len(env.EvaluationResults) == 0 || (env.Iteration+1)%period != 0 {
			return nil
		}
		_, err := fmt.Fprintf(w, "[%d]\t%s\n", env.Iteration+1, formatResults(env.EvaluationResults, showStdv))
		return err
	}, WithOrder(10))
}
