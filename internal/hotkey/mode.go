package hotkey

// Mode selects how a finished dictation is handed to downstream text
// processing. It is resolved once, from the modifier snapshot taken at
// hotkey press time, and never changes mid-recording.
type Mode int

const (
	ModeBasic Mode = iota
	ModeRaw
	ModeReformulate
	ModeTranslate
	ModeActOnText
	ModeTranslateReformat
)

func (m Mode) String() string {
	switch m {
	case ModeBasic:
		return "basic"
	case ModeRaw:
		return "raw"
	case ModeReformulate:
		return "reformulate"
	case ModeTranslate:
		return "translate"
	case ModeActOnText:
		return "act_on_text"
	case ModeTranslateReformat:
		return "translate_reformat"
	}
	return "unknown"
}

// Modifier identifies a tracked modifier key.
type Modifier int

const (
	ModifierShift Modifier = iota
	ModifierCtrl
	ModifierAlt
	ModifierSpace
)

// Modifiers is a snapshot of the modifier keys held at hotkey press time.
type Modifiers struct {
	Shift bool
	Ctrl  bool
	Alt   bool
	Space bool
}

// ResolveMode maps a modifier snapshot to a processing mode. Shift is the
// designated act-on-text modifier and wins over everything else; the
// ctrl+alt combination comes next, then single modifiers, then the bare key.
func ResolveMode(m Modifiers) Mode {
	switch {
	case m.Shift:
		return ModeActOnText
	case m.Ctrl && m.Alt:
		return ModeTranslateReformat
	case m.Ctrl:
		return ModeTranslate
	case m.Alt:
		return ModeReformulate
	case m.Space:
		return ModeRaw
	default:
		return ModeBasic
	}
}
