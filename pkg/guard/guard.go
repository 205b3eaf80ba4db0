// Package guard decides what a navigation target may render based on
// session state. Guards are pure functions with no state of their own.
package guard

// Session is the slice of session state the guards read.
// Matched by *session.Store.
type Session interface {
	IsLoading() bool
	IsAuthenticated() bool
}

// Action is the outcome of a guard decision.
type Action int

const (
	// ActionAllow renders the requested destination.
	ActionAllow Action = iota
	// ActionLoading renders a loading placeholder while the session
	// initializes.
	ActionLoading
	// ActionRedirect navigates to RedirectTo instead.
	ActionRedirect
)

// Decision is a guard's verdict for one navigation.
type Decision struct {
	Action     Action
	RedirectTo string
	// ReturnTo carries the originally requested destination so a
	// successful login can navigate back.
	ReturnTo string
}

// Protected gates destinations that require authentication. Unauthenticated
// visitors are redirected to loginPath, preserving the requested
// destination for the post-login return.
func Protected(s Session, loginPath, requested string) Decision {
	if s.IsLoading() {
		return Decision{Action: ActionLoading}
	}
	if !s.IsAuthenticated() {
		return Decision{Action: ActionRedirect, RedirectTo: loginPath, ReturnTo: requested}
	}
	return Decision{Action: ActionAllow}
}

// PublicOnly gates destinations meant for logged-out visitors (login,
// register). Authenticated users are redirected to dashboardPath.
func PublicOnly(s Session, dashboardPath string) Decision {
	if s.IsLoading() {
		return Decision{Action: ActionLoading}
	}
	if s.IsAuthenticated() {
		return Decision{Action: ActionRedirect, RedirectTo: dashboardPath}
	}
	return Decision{Action: ActionAllow}
}
