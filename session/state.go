package session

// State is a stage of the session lifecycle.
type State int

const (
	Idle State = iota
	AwaitingQuestion
	Retrieving
	Generating
	Terminated
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingQuestion:
		return "awaiting-question"
	case Retrieving:
		return "retrieving"
	case Generating:
		return "generating"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// EmptyResultPolicy decides what happens when no chunk clears the
// similarity threshold.
type EmptyResultPolicy int

const (
	// Refuse answers with core.ErrEmptyResult without calling the generator.
	Refuse EmptyResultPolicy = iota
	// Forward asks the generator anyway, with an empty context.
	Forward
)

func (p EmptyResultPolicy) String() string {
	if p == Forward {
		return "forward"
	}
	return "refuse"
}

// ParseEmptyResultPolicy parses "refuse" or "forward".
func ParseEmptyResultPolicy(s string) (EmptyResultPolicy, bool) {
	switch s {
	case "refuse", "":
		return Refuse, true
	case "forward":
		return Forward, true
	default:
		return Refuse, false
	}
}
