package interpreter

import (
	"fmt"
	"strconv"

	"slate/interpreter-go/pkg/runtime"
)

// Stringify renders a runtime value the way print and the REPL echo it.
func Stringify(val runtime.Value) string {
	switch v := val.(type) {
	case runtime.NilValue:
		return "nil"
	case runtime.BoolValue:
		if v.Val {
			return "true"
		}
		return "false"
	case runtime.NumberValue:
		return formatNumber(v.Val)
	case runtime.StringValue:
		return v.Val
	case *runtime.FunctionValue:
		return fmt.Sprintf("<fn %s>", v.Declaration.Name.Lexeme)
	case runtime.NativeFunctionValue:
		return fmt.Sprintf("<native fn %s>", v.Name)
	case *runtime.ClassValue:
		return fmt.Sprintf("<class %s>", v.Name)
	case *runtime.InstanceValue:
		return fmt.Sprintf("<%s instance>", v.Class.Name)
	default:
		return fmt.Sprintf("[%s]", val.Kind())
	}
}

// formatNumber uses the shortest representation that round-trips, so
// integral values print without a trailing fraction.
func formatNumber(val float64) string {
	return strconv.FormatFloat(val, 'g', -1, 64)
}
