// Package auth is the boundary to the authentication collaborator. The core
// only needs a synchronous current-user lookup, used for attribution on
// created records and for preserve-on-cleanup decisions.
package auth

// Provider answers who is performing the current operation, if anyone.
type Provider interface {
	CurrentUser() (userID string, ok bool)
}

// Static is a fixed-identity provider, typically fed from SERVICE_USER.
type Static struct {
	userID string
}

// NewStatic returns a provider that always reports userID. An empty id means
// anonymous: CurrentUser reports not-ok.
func NewStatic(userID string) *Static {
	return &Static{userID: userID}
}

// CurrentUser implements Provider.
func (s *Static) CurrentUser() (string, bool) {
	if s == nil || s.userID == "" {
		return "", false
	}
	return s.userID, true
}

// Anonymous is a provider with no user.
var Anonymous Provider = (*Static)(nil)

// UserOrEmpty is a convenience for attribution fields.
func UserOrEmpty(p Provider) string {
	if p == nil {
		return ""
	}
	if id, ok := p.CurrentUser(); ok {
		return id
	}
	return ""
}
