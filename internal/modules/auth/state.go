package auth

// State is a node of the login and refresh state machines.
type State string

const (
	StateUnauthenticated      State = "UNAUTHENTICATED"
	StateCheckingRateLimit    State = "CHECKING_RATE_LIMIT"
	StateVerifyingCredentials State = "VERIFYING_CREDENTIALS"
	StateIssuingTokens        State = "ISSUING_TOKENS"
	StateAuthenticated        State = "AUTHENTICATED"

	StatePresentingRefresh State = "PRESENTING_REFRESH"
	StateValidating        State = "VALIDATING"
	StateRotating          State = "ROTATING"
	StateRefreshInvalid    State = "REFRESH_INVALID"
)

// transitions lists the legal successors of each state.
var transitions = map[State][]State{
	StateUnauthenticated:      {StateCheckingRateLimit},
	StateCheckingRateLimit:    {StateVerifyingCredentials, StateUnauthenticated},
	StateVerifyingCredentials: {StateIssuingTokens, StateUnauthenticated},
	StateIssuingTokens:        {StateAuthenticated, StateUnauthenticated},

	StatePresentingRefresh: {StateValidating, StateRefreshInvalid},
	StateValidating:        {StateRotating, StateRefreshInvalid},
	StateRotating:          {StateAuthenticated, StateRefreshInvalid},
}

func canTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// machine records the path a single attempt takes.
type machine struct {
	current State
	trace   []State
}

func newMachine(start State) *machine {
	return &machine{current: start, trace: []State{start}}
}

func (m *machine) to(next State) {
	if !canTransition(m.current, next) {
		panic("auth: illegal transition " + string(m.current) + " -> " + string(next))
	}
	m.current = next
	m.trace = append(m.trace, next)
}
