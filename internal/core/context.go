package core

import "errors"

// ErrNotElevated is returned by stores when an operation that needs
// elevated privilege is called with an ordinary scope.
var ErrNotElevated = errors.New("operation requires an elevated scope")

// Scope is the execution context of one batch: the storefront the rows are
// written to, who approves them, and whether privileged operations such as
// deleting a customer are allowed. It is passed explicitly to every store
// call that depends on it.
type Scope struct {
	StoreID    int64
	WebsiteID  int64
	StoreName  string
	Currency   string
	ApproverID int64
	Elevated   bool
}

// Elevate returns a copy of the scope allowed to run privileged operations.
func (s Scope) Elevate() Scope {
	s.Elevated = true
	return s
}

// RequireElevated returns ErrNotElevated unless the scope is elevated.
func (s Scope) RequireElevated() error {
	if !s.Elevated {
		return ErrNotElevated
	}
	return nil
}
