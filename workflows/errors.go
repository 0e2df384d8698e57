package workflows

import "fmt"

// AggregateError reports parallel branch failures. Partial successes from
// sibling branches are discarded; Failed counts the branches that returned
// errors.
type AggregateError struct {
	Failed int
	Total  int
	Errs   []error
}

func newAggregateError(total int, branchErrs []error) *AggregateError {
	agg := &AggregateError{Total: total}
	for _, err := range branchErrs {
		if err != nil {
			agg.Failed++
			agg.Errs = append(agg.Errs, err)
		}
	}
	return agg
}

func (e *AggregateError) Error() string {
	if e.Failed == 1 {
		return fmt.Sprintf("parallel step failed: 1 of %d branches failed: %v", e.Total, e.Errs[0])
	}
	return fmt.Sprintf("parallel step failed: %d of %d branches failed", e.Failed, e.Total)
}

// Unwrap returns the underlying branch errors for errors.Is and errors.As.
func (e *AggregateError) Unwrap() []error {
	return e.Errs
}
