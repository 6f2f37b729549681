package bundlegate

import "fmt"

// EmptyNameError means After("") or As("") was passed to Manage.
type EmptyNameError struct {
	Field string
}

func (e EmptyNameError) Error() string {
	return fmt.Sprintf("bundle name is empty: field=%q", e.Field)
}

// NilCallbackError means Manage was called without a callback.
type NilCallbackError struct {
	Bundle string
}

func (e NilCallbackError) Error() string {
	return fmt.Sprintf("callback is nil for bundle %s", e.Bundle)
}
