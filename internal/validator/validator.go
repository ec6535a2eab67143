// Where: internal/validator/validator.go
// What: Shared validation result type.
// Why: Generation loops only need pass/fail plus diagnostics to feed
//      back into the next correction round.
package validator

// Result is the outcome of one validation round. Feedback carries the
// diagnostics a correction round needs; it is empty when OK.
type Result struct {
	OK       bool
	Feedback string
}

func pass() Result {
	return Result{OK: true}
}

func fail(feedback string) Result {
	return Result{OK: false, Feedback: feedback}
}
