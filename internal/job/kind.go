package job

// Kind identifies the category of background work. Every kind maps to
// exactly one queue; the mapping is fixed at startup.
type Kind string

const (
	KindReminder Kind = "reminder"
	KindNurture  Kind = "nurture"
	KindDunning  Kind = "dunning"
	KindSnapshot Kind = "snapshot"
)

// Kinds returns all recognized job kinds in queue-registration order.
func Kinds() []Kind {
	return []Kind{KindReminder, KindNurture, KindDunning, KindSnapshot}
}

// Valid reports whether k is a recognized job kind.
func (k Kind) Valid() bool {
	switch k {
	case KindReminder, KindNurture, KindDunning, KindSnapshot:
		return true
	}
	return false
}
