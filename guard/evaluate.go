package guard

import "github.com/MrEthical07/carebook/session"

// State is the render state of a protected view.
type State int

const (
	Pending State = iota
	Unauthorized
	Authorized
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Unauthorized:
		return "unauthorized"
	case Authorized:
		return "authorized"
	default:
		return "unknown"
	}
}

// Input is what a guard observes.
type Input struct {
	Ready         bool
	Authenticated bool
	Role          session.Role
	// Internal marks a framework re-fetch of the current page rather than a user navigation.
	Internal bool
}

// InputFrom builds an Input from a bootstrapper readiness flag and a store snapshot.
func InputFrom(ready bool, st session.State, internal bool) Input {
	return Input{
		Ready:         ready,
		Authenticated: st.IsAuthenticated,
		Role:          st.Role(),
		Internal:      internal,
	}
}

// Decision is the outcome of [Evaluate].
//
// Redirect is the destination the viewer should be sent to. When Suppressed is true the
// redirect was withheld because the request is internal; the view still renders the
// placeholder.
type Decision struct {
	State      State
	Redirect   Destination
	Suppressed bool
}

// Renders reports whether protected content may be shown.
func (d Decision) Renders() bool {
	return d.State == Authorized
}

// Navigates reports whether the decision calls for an actual navigation.
func (d Decision) Navigates() bool {
	return d.Redirect != None && !d.Suppressed
}

// Evaluate applies the guard rule. An empty required role admits any authenticated user.
func Evaluate(required session.Role, in Input) Decision {
	if !in.Ready {
		return Decision{State: Pending}
	}
	if !in.Authenticated {
		return Decision{State: Unauthorized, Redirect: Login, Suppressed: in.Internal}
	}
	if required != "" && in.Role != required {
		return Decision{State: Unauthorized, Redirect: HomeFor(in.Role), Suppressed: in.Internal}
	}
	return Decision{State: Authorized}
}

// Shell is the application-level forward for the login and registration pages: an
// authenticated viewer goes to their home. It returns [None] until ready.
func Shell(in Input) Destination {
	if !in.Ready || !in.Authenticated {
		return None
	}
	return HomeFor(in.Role)
}
