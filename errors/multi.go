package errors

import "strings"

// Errors aggregates multiple errors behind a single error value. A non-nil
// Errors always holds at least one error, so callers may compare against nil
// to check for failures.
type Errors interface {
	error
	// Slice returns a copy of the underlying errors.
	Slice() []error
	// Len is always > 0 for a non-nil Errors.
	Len() int
}

type errorList []error

func (l errorList) Error() string {
	parts := make([]string, 0, len(l))
	for _, err := range l {
		parts = append(parts, err.Error())
	}
	return strings.Join(parts, "\n")
}

func (l errorList) Slice() []error {
	return append([]error(nil), l...)
}

func (l errorList) Len() int {
	return len(l)
}

// Append adds err to errs, flattening nested Errors values. A nil err leaves
// errs unchanged; a nil errs starts a fresh list. The input list is never
// mutated.
func Append(errs Errors, err error) Errors {
	if err == nil {
		return errs
	}
	var list errorList
	if errs != nil {
		list = errorList(errs.Slice())
	}
	if nested, ok := err.(Errors); ok {
		return errorList(append(list, nested.Slice()...))
	}
	return append(list, err)
}

// Combine merges two possibly-nil errors into one.
func Combine(e, f error) error {
	if e == nil {
		return f
	}
	if f == nil {
		return e
	}
	return Append(Append(nil, e), f)
}

// Defer folds the error of a deferred call (typically a Close) into err.
func Defer(err *error, f func() error) {
	*err = Combine(*err, f())
}
