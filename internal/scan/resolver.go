package scan

import (
	"schoolattend/internal/registry"
)

// Resolver maps a scanned or hand-typed token string back to a
// student. It does not care how the string was captured; the camera
// and the manual-entry fallback both end up here.
type Resolver struct {
	reg *registry.Registry
}

// NewResolver creates a resolver over the given registry.
func NewResolver(reg *registry.Registry) *Resolver {
	return &Resolver{reg: reg}
}

// Resolve finds the student whose QR code equals token exactly. No
// fuzzy matching; tokens are expected verbatim as derived. An empty or
// garbage string is an ordinary miss. Never mutates the registry.
func (r *Resolver) Resolve(token string) (registry.Student, bool) {
	if token == "" {
		return registry.Student{}, false
	}
	for _, s := range r.reg.Students() {
		if s.QRCode == token {
			return s, true
		}
	}
	return registry.Student{}, false
}
