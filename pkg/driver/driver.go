package driver

import (
	"fmt"
	"io"
	"os"

	"slate/interpreter-go/pkg/diag"
	"slate/interpreter-go/pkg/interpreter"
	"slate/interpreter-go/pkg/lexer"
	"slate/interpreter-go/pkg/parser"
	"slate/interpreter-go/pkg/resolver"
	"slate/interpreter-go/pkg/runtime"
)

// Exit statuses follow the sysexits convention.
const (
	StatusOK           = 0
	StatusUsage        = 64
	StatusCompileError = 65
	StatusNoInput      = 66
	StatusRuntimeError = 70
)

// Session owns one interpreter instance and the diagnostic plumbing around
// it. A script run uses a fresh session; the REPL keeps one session alive
// across lines so definitions accumulate.
type Session struct {
	engine  *diag.Engine
	emitter *diag.Emitter
	interp  *interpreter.Interpreter
	stdout  io.Writer
	stderr  io.Writer

	replSeq int
}

// NewSession builds a session with the standard natives installed.
func NewSession(stdout, stderr io.Writer) *Session {
	engine := diag.NewEngine()
	s := &Session{
		engine:  engine,
		emitter: diag.NewEmitter(engine, stderr),
		interp:  interpreter.New(engine),
		stdout:  stdout,
		stderr:  stderr,
	}
	registerBuiltins(s.interp, stdout, os.Stdin)
	return s
}

// Interpreter exposes the session's interpreter, mainly so callers can
// install extra natives before running anything.
func (s *Session) Interpreter() *interpreter.Interpreter {
	return s.interp
}

// RunFile loads and executes a script from disk.
func (s *Session) RunFile(path string) int {
	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(s.stderr, "slate: cannot open %s: %v\n", path, err)
		return StatusNoInput
	}
	_, status := s.run(string(source), path, true)
	return status
}

// RunSource executes source attributed to the given file name.
func (s *Session) RunSource(source, file string) int {
	_, status := s.run(source, file, true)
	return status
}

// EvalLine executes one REPL line. It returns the rendered value of the
// line's final expression ("" when the line produced nothing worth
// echoing) and a status. Diagnostics go to the session's stderr; unlike a
// script run, a failed line leaves the session usable.
func (s *Session) EvalLine(line string) (string, int) {
	s.replSeq++
	file := fmt.Sprintf("repl:%d", s.replSeq)
	value, status := s.run(line, file, false)
	if status != StatusOK || value == nil {
		return "", status
	}
	if _, isNil := value.(runtime.NilValue); isNil {
		return "", StatusOK
	}
	return interpreter.Stringify(value), StatusOK
}

// run pushes source through the full pipeline: scan, parse, resolve,
// interpret. Each front-end stage gets a chance to report before the next
// one starts, and any error stops the pipeline before execution.
func (s *Session) run(source, file string, warnUnused bool) (runtime.Value, int) {
	s.engine.Reset()
	s.emitter.Reset()
	s.engine.AddSource(file, source)

	tokens := lexer.Scan(source, file, s.engine)
	if s.engine.HasErrors() {
		s.emitter.EmitAll()
		return nil, StatusCompileError
	}

	program := parser.Parse(tokens, file, s.engine)
	if s.engine.HasErrors() {
		s.emitter.EmitAll()
		return nil, StatusCompileError
	}

	res := resolver.New(file, s.engine)
	res.WarnUnused = warnUnused
	table := res.Run(program)
	if s.engine.HasErrors() {
		s.emitter.EmitAll()
		return nil, StatusCompileError
	}
	if s.engine.HasWarnings() {
		s.emitter.EmitAll()
	}

	s.interp.SetFile(file)
	value, err := s.interp.Run(program, table)
	if err != nil {
		s.emitter.EmitAll()
		return nil, StatusRuntimeError
	}
	return value, StatusOK
}
