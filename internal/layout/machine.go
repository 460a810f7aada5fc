package layout

// Mode is the active rendering mode.
type Mode int

const (
	ModeGrid Mode = iota
	ModePinned
	ModePresenting
)

func (m Mode) String() string {
	switch m {
	case ModePinned:
		return "pinned"
	case ModePresenting:
		return "presenting"
	default:
		return "grid"
	}
}

// Machine is the precedence state machine between grid, pinned and
// presenting modes. Screen share always wins the hero slot; a pin made while
// presenting is kept and takes over once the share ends.
type Machine struct {
	mode      Mode
	pinned    string
	presenter string
}

// NewMachine returns a machine in ModeGrid.
func NewMachine() *Machine { return &Machine{} }

func (m *Machine) Mode() Mode        { return m.mode }
func (m *Machine) Pinned() string    { return m.pinned }
func (m *Machine) Presenter() string { return m.presenter }

// Hero returns the identity rendered in the hero slot, "" in grid mode.
func (m *Machine) Hero() string {
	switch m.mode {
	case ModePresenting:
		return m.presenter
	case ModePinned:
		return m.pinned
	default:
		return ""
	}
}

// TogglePin pins id, or unpins it when it is already pinned.
func (m *Machine) TogglePin(id string) Mode {
	if id == "" || m.pinned == id {
		m.pinned = ""
	} else {
		m.pinned = id
	}
	return m.settle()
}

// SetPresenter records the current screen-share presenter; "" means the
// share ended.
func (m *Machine) SetPresenter(id string) Mode {
	m.presenter = id
	return m.settle()
}

// ParticipantLeft clears any pin or presenter state held by id.
func (m *Machine) ParticipantLeft(id string) Mode {
	if m.pinned == id {
		m.pinned = ""
	}
	if m.presenter == id {
		m.presenter = ""
	}
	return m.settle()
}

func (m *Machine) settle() Mode {
	switch {
	case m.presenter != "":
		m.mode = ModePresenting
	case m.pinned != "":
		m.mode = ModePinned
	default:
		m.mode = ModeGrid
	}
	return m.mode
}
