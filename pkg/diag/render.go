package diag

import (
	"fmt"
	"io"
	"strings"
)

// Emitter renders diagnostics as plain text in a rustc-like layout. Color
// handling stays out of the core; callers that want ANSI output can wrap
// the writer.
type Emitter struct {
	engine  *Engine
	writer  io.Writer
	emitted int
}

// NewEmitter creates an emitter that quotes source lines registered on the
// given engine.
func NewEmitter(engine *Engine, w io.Writer) *Emitter {
	return &Emitter{engine: engine, writer: w}
}

// EmitAll renders accumulated diagnostics not yet emitted, followed by a
// summary line. Calling it repeatedly during one pipeline run is safe;
// already-rendered diagnostics are skipped.
func (em *Emitter) EmitAll() {
	diags := em.engine.Diagnostics()
	if em.emitted >= len(diags) {
		return
	}
	for _, d := range diags[em.emitted:] {
		em.Emit(d)
	}
	em.emitted = len(diags)
	em.emitSummary()
}

// Reset forgets which diagnostics were already rendered. Callers pair this
// with Engine.Reset when starting a fresh run.
func (em *Emitter) Reset() {
	em.emitted = 0
}

// Emit renders a single diagnostic.
func (em *Emitter) Emit(d *Diagnostic) {
	if d.Code != "" {
		fmt.Fprintf(em.writer, "%s[%s]: %s\n", d.Severity, d.Code, d.Message)
	} else {
		fmt.Fprintf(em.writer, "%s: %s\n", d.Severity, d.Message)
	}

	gutter := em.gutterWidth(d)
	for idx, label := range d.Labels {
		em.emitLabel(label, idx == 0, gutter)
	}
	for _, note := range d.Notes {
		fmt.Fprintf(em.writer, "%s= note: %s\n", strings.Repeat(" ", gutter+1), note)
	}
	if d.Help != "" {
		fmt.Fprintf(em.writer, "%s= help: %s\n", strings.Repeat(" ", gutter+1), d.Help)
	}
	fmt.Fprintln(em.writer)
}

func (em *Emitter) emitLabel(label Label, first bool, gutter int) {
	span := label.Span
	pad := strings.Repeat(" ", gutter)
	arrow := "-->"
	if !first {
		arrow = ":::"
	}
	fmt.Fprintf(em.writer, "%s%s %s:%d:%d\n", pad, arrow, span.File, span.Line, span.Column)

	line, ok := em.sourceLine(span.File, span.Line)
	if !ok {
		return
	}
	line = strings.TrimRight(line, "\r\n\t ")

	marker := "^"
	if label.Style == Secondary {
		marker = "-"
	}
	length := span.Length
	if length < 1 {
		length = 1
	}
	underline := strings.Repeat(" ", span.Column-1) + strings.Repeat(marker, length)
	if label.Message != "" {
		underline += " " + label.Message
	}

	fmt.Fprintf(em.writer, "%s|\n", pad+" ")
	fmt.Fprintf(em.writer, "%*d | %s\n", gutter, span.Line, line)
	fmt.Fprintf(em.writer, "%s| %s\n", pad+" ", underline)
}

func (em *Emitter) sourceLine(file string, line int) (string, bool) {
	content, ok := em.engine.Source(file)
	if !ok || line < 1 {
		return "", false
	}
	lines := strings.Split(content, "\n")
	if line > len(lines) {
		return "", false
	}
	return lines[line-1], true
}

func (em *Emitter) gutterWidth(d *Diagnostic) int {
	width := 1
	for _, label := range d.Labels {
		if w := len(fmt.Sprintf("%d", label.Span.Line)); w > width {
			width = w
		}
	}
	return width
}

func (em *Emitter) emitSummary() {
	errs := em.engine.ErrorCount()
	warns := em.engine.WarningCount()
	switch {
	case errs > 0 && warns > 0:
		fmt.Fprintf(em.writer, "%d error(s), %d warning(s) emitted\n", errs, warns)
	case errs > 0:
		fmt.Fprintf(em.writer, "%d error(s) emitted\n", errs)
	case warns > 0:
		fmt.Fprintf(em.writer, "%d warning(s) emitted\n", warns)
	}
}
