package flow

// State is where a page load stands with respect to authentication.
type State int

const (
	StateUnauthenticated State = iota
	StatePendingValidation
	StateAuthenticated
	StateError
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StatePendingValidation:
		return "pending_validation"
	case StateAuthenticated:
		return "authenticated"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Event moves a load between states.
type Event int

const (
	EventNoSession     Event = iota // store holds no session
	EventExpired                    // stored session is past its expiry
	EventLocalSession               // redirect or store produced a session
	EventServerValid                // /user/profile answered 2xx
	EventRejected                   // /user/profile answered 401
	EventInconclusive               // any other answer, or none
	EventExchanged                  // code traded for a session
	EventCallbackError              // OAuth error or failed exchange
	EventLogout
)

// Transition returns the state after e. Events that do not apply to s leave it unchanged.
func Transition(s State, e Event) State {
	switch e {
	case EventNoSession, EventExpired, EventRejected, EventLogout:
		return StateUnauthenticated
	case EventCallbackError:
		return StateError
	}

	switch s {
	case StateUnauthenticated:
		switch e {
		case EventLocalSession:
			return StatePendingValidation
		case EventExchanged:
			return StateAuthenticated
		}
	case StatePendingValidation:
		switch e {
		case EventServerValid:
			return StateAuthenticated
		case EventInconclusive:
			return StateError
		}
	case StateError:
		if e == EventLocalSession {
			return StatePendingValidation
		}
	}
	return s
}
