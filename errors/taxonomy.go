package errors

import "fmt"

// The error types below form the training error taxonomy. They are all
// raised synchronously at phase start, never partway through a phase, and
// none of them is retried.

// ConfigurationError indicates invalid or contradictory hyperparameters,
// e.g. a non-positive iteration count.
type ConfigurationError struct {
	Reason string
}

// Error implements error
func (e ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s", e.Reason)
}

// InsufficientDataError indicates a corpus that cannot produce training
// pairs: it is empty or has fewer than 2 classes.
type InsufficientDataError struct {
	Reason string
}

// Error implements error
func (e InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: %s", e.Reason)
}

// InvalidPolicyError indicates an unrecognized pair sampling strategy.
type InvalidPolicyError struct {
	Policy string
}

// Error implements error
func (e InvalidPolicyError) Error() string {
	return fmt.Sprintf("unknown sampling strategy %q", e.Policy)
}

// LabelRangeError indicates a differentiable head was given a label outside
// [0, NumClasses).
type LabelRangeError struct {
	Label      int
	NumClasses int
}

// Error implements error
func (e LabelRangeError) Error() string {
	return fmt.Sprintf("label %d out of range for %d-class head", e.Label, e.NumClasses)
}
