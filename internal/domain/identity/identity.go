package identity

import "errors"

// ErrPermissionDenied is returned when a principal without the admin
// capability invokes an admin-gated operation.
var ErrPermissionDenied = errors.New("identity: permission denied")

// Principal is the authenticated caller as seen by the core. Sessions and
// credential handling live in the calling layer; the core only needs a stable
// identifier and the pre-validated admin capability.
type Principal struct {
	ID    string
	Admin bool
}

// RequireAdmin guards admin-only operations.
func (p Principal) RequireAdmin() error {
	if !p.Admin {
		return ErrPermissionDenied
	}
	return nil
}
