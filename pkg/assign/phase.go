package assign

import "fmt"

// Phase is the state of a Store.
//
//	Loaded -> Assigning (repeatable) -> Validating -> Compositing -> Done
//	                 ^                       |              |
//	                 +------ conflict -------+---- failure --+
type Phase int

const (
	Loaded Phase = iota
	Assigning
	Validating
	Compositing
	Done
)

func (p Phase) String() string {
	switch p {
	case Loaded:
		return "loaded"
	case Assigning:
		return "assigning"
	case Validating:
		return "validating"
	case Compositing:
		return "compositing"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// beginEdit moves the store into Assigning, refusing edits while a validated
// plan is pending or being composited.
func (s *Store) beginEdit() error {
	switch s.phase {
	case Loaded, Assigning:
		s.phase = Assigning
		return nil
	default:
		return fmt.Errorf("%w: store is %s", ErrLocked, s.phase)
	}
}

// BeginCompositing hands the validated plan to the compositor. The plan must
// be the one the last successful ValidateAll returned.
func (s *Store) BeginCompositing(plan *Plan) error {
	if s.phase != Validating {
		return &TransitionError{From: s.phase, Op: "begin compositing"}
	}
	if plan == nil || plan != s.plan {
		return fmt.Errorf("plan was not produced by the last validation")
	}
	s.phase = Compositing
	return nil
}

// EndCompositing records the compositor outcome. A failure returns the store
// to Assigning with every assignment kept.
func (s *Store) EndCompositing(err error) error {
	if s.phase != Compositing {
		return &TransitionError{From: s.phase, Op: "end compositing"}
	}
	if err != nil {
		s.phase = Assigning
		s.plan = nil
		return nil
	}
	s.phase = Done
	return nil
}

// Reopen unlocks a validated or finished store for further editing.
func (s *Store) Reopen() error {
	switch s.phase {
	case Validating, Done:
		s.phase = Assigning
		s.plan = nil
		return nil
	case Loaded, Assigning:
		return nil
	default:
		return &TransitionError{From: s.phase, Op: "reopen"}
	}
}
