package domain

// Principal is the authenticated user a request acts on behalf of.
type Principal struct {
	ID            string
	Authenticated bool
}

// IsAuthenticated is false for nil and anonymous principals.
func (p *Principal) IsAuthenticated() bool {
	return p != nil && p.Authenticated && p.ID != ""
}
