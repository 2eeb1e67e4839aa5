package diag

// Engine accumulates diagnostics across pipeline stages. Evaluation is
// single-threaded, so no locking is involved; "shared" here means every
// stage emits into the same engine for one run.
type Engine struct {
	diagnostics []*Diagnostic
	errorCount  int
	warnCount   int
	sources     map[string]string
}

// NewEngine creates an empty engine.
func NewEngine() *Engine {
	return &Engine{sources: make(map[string]string)}
}

// AddSource registers source text for a file path so renderers can quote
// the offending lines (also used for in-memory input like the REPL).
func (e *Engine) AddSource(file, content string) {
	e.sources[file] = content
}

// Source returns previously registered source text.
func (e *Engine) Source(file string) (string, bool) {
	content, ok := e.sources[file]
	return content, ok
}

// Emit records a diagnostic.
func (e *Engine) Emit(d *Diagnostic) {
	e.diagnostics = append(e.diagnostics, d)
	switch d.Severity {
	case Error:
		e.errorCount++
	case Warning:
		e.warnCount++
	}
}

// HasErrors reports whether any error has been emitted.
func (e *Engine) HasErrors() bool {
	return e.errorCount > 0
}

// HasWarnings reports whether any warning has been emitted.
func (e *Engine) HasWarnings() bool {
	return e.warnCount > 0
}

// ErrorCount returns the number of errors emitted so far.
func (e *Engine) ErrorCount() int {
	return e.errorCount
}

// WarningCount returns the number of warnings emitted so far.
func (e *Engine) WarningCount() int {
	return e.warnCount
}

// Diagnostics returns the accumulated diagnostics in emission order.
func (e *Engine) Diagnostics() []*Diagnostic {
	out := make([]*Diagnostic, len(e.diagnostics))
	copy(out, e.diagnostics)
	return out
}

// Reset clears accumulated diagnostics but keeps registered sources.
// The REPL resets between lines so one bad line does not poison the next.
func (e *Engine) Reset() {
	e.diagnostics = nil
	e.errorCount = 0
	e.warnCount = 0
}
