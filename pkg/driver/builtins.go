package driver

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"slate/interpreter-go/pkg/interpreter"
	"slate/interpreter-go/pkg/runtime"
)

// registerBuiltins installs the host functions every session starts with.
func registerBuiltins(interp *interpreter.Interpreter, stdout io.Writer, stdin io.Reader) {
	start := time.Now()
	reader := bufio.NewReader(stdin)

	interp.RegisterNative("clock", 0, func(args []runtime.Value) (runtime.Value, error) {
		return runtime.NumberValue{Val: time.Since(start).Seconds()}, nil
	})

	interp.RegisterNative("print", runtime.VariadicArity, func(args []runtime.Value) (runtime.Value, error) {
		fmt.Fprint(stdout, renderArgs(args))
		return runtime.NilValue{}, nil
	})

	interp.RegisterNative("println", runtime.VariadicArity, func(args []runtime.Value) (runtime.Value, error) {
		fmt.Fprintln(stdout, renderArgs(args))
		return runtime.NilValue{}, nil
	})

	interp.RegisterNative("str", 1, func(args []runtime.Value) (runtime.Value, error) {
		return runtime.StringValue{Val: interpreter.Stringify(args[0])}, nil
	})

	interp.RegisterNative("len", 1, func(args []runtime.Value) (runtime.Value, error) {
		str, ok := args[0].(runtime.StringValue)
		if !ok {
			return nil, fmt.Errorf("len expects a string, got %s", args[0].Kind())
		}
		return runtime.NumberValue{Val: float64(utf8.RuneCountInString(str.Val))}, nil
	})

	interp.RegisterNative("readLine", 0, func(args []runtime.Value) (runtime.Value, error) {
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			if err == io.EOF {
				return runtime.NilValue{}, nil
			}
			return nil, fmt.Errorf("readLine: %v", err)
		}
		return runtime.StringValue{Val: strings.TrimRight(line, "\r\n")}, nil
	})
}

// renderArgs joins stringified arguments with single spaces.
func renderArgs(args []runtime.Value) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = interpreter.Stringify(arg)
	}
	return strings.Join(parts, " ")
}
