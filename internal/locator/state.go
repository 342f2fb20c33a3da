package locator

// State is a step of the location picking flow.
type State int

const (
	Idle State = iota
	Typing
	CandidatesShown
	LocationSelected
	Saving
	Saved
	SaveFailed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Typing:
		return "typing"
	case CandidatesShown:
		return "candidates_shown"
	case LocationSelected:
		return "location_selected"
	case Saving:
		return "saving"
	case Saved:
		return "saved"
	case SaveFailed:
		return "save_failed"
	}
	return "unknown"
}
