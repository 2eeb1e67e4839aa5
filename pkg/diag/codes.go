package diag

// Diagnostic codes, one per kind. Codes are unique across the whole
// pipeline; the stage prefix is only a reading aid.
const (
	// Lexer (L prefix)
	CodeInvalidCharacter   = "L0001"
	CodeUnterminatedString = "L0002"
	CodeInvalidNumber      = "L0003"

	// Parser (P prefix)
	CodeUnexpectedToken         = "P0001"
	CodeExpectedExpression      = "P0002"
	CodeMissingClosingParen     = "P0003"
	CodeMissingClosingBrace     = "P0004"
	CodeMissingSemicolon        = "P0005"
	CodeInvalidAssignmentTarget = "P0006"
	CodeExpectedIdentifier      = "P0007"
	CodeTooManyArguments        = "P0008"

	// Resolver (R prefix)
	CodeDuplicateDeclaration = "R0001"
	CodeUnusedVariable       = "R0002"
	CodeSelfReference        = "R0003"
	CodeInvalidThis          = "R0004"
	CodeInvalidSuper         = "R0005"
	CodeSelfInheritance      = "R0006"
	CodeReturnNotInFunction  = "R0007"
	CodeBreakOutsideLoop     = "R0008"
	CodeContinueOutsideLoop  = "R0009"
	CodeReturnInInitializer  = "R0010"

	// Interpreter (E prefix)
	CodeUndeclaredVariable     = "E0001"
	CodeTypeError              = "E0002"
	CodeDivisionByZero         = "E0003"
	CodeWrongNumberOfArguments = "E0004"
	CodeNotCallable            = "E0005"
	CodeUndefinedProperty      = "E0006"
	CodeInvalidSuperclass      = "E0007"
	CodeInvalidOperator        = "E0008"
	CodeInvalidPropertyTarget  = "E0009"
)
