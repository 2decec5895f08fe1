package tenancy

// Session identifies the authenticated caller. UserID is the stable subject
// issued by the identity provider.
type Session struct {
	UserID string
	Email  string
}
