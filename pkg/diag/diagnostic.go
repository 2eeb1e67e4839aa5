package diag

// Severity is the severity level of a diagnostic.
type Severity int

const (
	Error Severity = iota
	Warning
	Note
	Help
)

func (s Severity) String() string {
	switch s {
	case Error:
		return "error"
	case Warning:
		return "warning"
	case Note:
		return "note"
	case Help:
		return "help"
	default:
		return "unknown"
	}
}

// Span addresses a run of source text for a label.
type Span struct {
	File   string
	Line   int // 1-based
	Column int // 1-based
	Length int // runes; at least 1
}

// LabelStyle distinguishes the main error location from supporting context.
type LabelStyle int

const (
	Primary   LabelStyle = iota // marked with ^^^
	Secondary                   // marked with ---
)

// Label is a labeled span attached to a diagnostic.
type Label struct {
	Span    Span
	Message string
	Style   LabelStyle
}

// Diagnostic is one structured record emitted by a pipeline stage.
type Diagnostic struct {
	Code     string
	Severity Severity
	Message  string
	Labels   []Label
	Notes    []string
	Help     string
}

// NewError creates an error diagnostic.
func NewError(message string) *Diagnostic {
	return &Diagnostic{Severity: Error, Message: message}
}

// NewWarning creates a warning diagnostic.
func NewWarning(message string) *Diagnostic {
	return &Diagnostic{Severity: Warning, Message: message}
}

// WithCode sets the diagnostic code.
func (d *Diagnostic) WithCode(code string) *Diagnostic {
	d.Code = code
	return d
}

// WithPrimaryLabel attaches the main location. The first primary label wins;
// renderers rely on it appearing before any secondary label.
func (d *Diagnostic) WithPrimaryLabel(span Span, message string) *Diagnostic {
	for _, label := range d.Labels {
		if label.Style == Primary {
			return d
		}
	}
	d.Labels = append([]Label{{Span: span, Message: message, Style: Primary}}, d.Labels...)
	return d
}

// WithSecondaryLabel attaches a supporting location.
func (d *Diagnostic) WithSecondaryLabel(span Span, message string) *Diagnostic {
	d.Labels = append(d.Labels, Label{Span: span, Message: message, Style: Secondary})
	return d
}

// WithNote appends a free-form note.
func (d *Diagnostic) WithNote(message string) *Diagnostic {
	d.Notes = append(d.Notes, message)
	return d
}

// WithHelp sets the fix suggestion.
func (d *Diagnostic) WithHelp(help string) *Diagnostic {
	d.Help = help
	return d
}

// PrimarySpan returns the span of the primary label, if any.
func (d *Diagnostic) PrimarySpan() (Span, bool) {
	for _, label := range d.Labels {
		if label.Style == Primary {
			return label.Span, true
		}
	}
	return Span{}, false
}
