package editor

// Phase is the single scheduling state of a Session. Illegal combinations
// such as a pending debounce during a manual save cannot be represented.
type Phase int

const (
	// PhaseIdle means no timer is armed and no save is running.
	PhaseIdle Phase = iota
	// PhasePending means a debounce timer is armed.
	PhasePending
	// PhaseSaving means a debounced save is in flight.
	PhaseSaving
	// PhaseManualSaving means an explicit save is in flight.
	PhaseManualSaving
	// PhaseClosing means the session was closed while a save was in flight;
	// the teardown flush is decided when that save releases.
	PhaseClosing
	// PhaseClosed is terminal.
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePending:
		return "pending"
	case PhaseSaving:
		return "saving"
	case PhaseManualSaving:
		return "manual_saving"
	case PhaseClosing:
		return "closing"
	case PhaseClosed:
		return "closed"
	default:
		return "unknown"
	}
}

func (p Phase) inFlight() bool {
	return p == PhaseSaving || p == PhaseManualSaving || p == PhaseClosing
}

func (p Phase) closed() bool {
	return p == PhaseClosing || p == PhaseClosed
}

// SaveState is the user-facing classification of a draft.
type SaveState string

const (
	SaveStateClean  SaveState = "clean"
	SaveStateDirty  SaveState = "dirty"
	SaveStateSaving SaveState = "saving"
)

// Trigger names what started a save.
type Trigger string

const (
	TriggerDebounce Trigger = "debounce"
	TriggerManual   Trigger = "manual"
)
