package validation

import "fmt"

// Violation is a single rule failure reported back to the caller.
// Code has the form "<rule>|<columnName>"; the column part may be empty.
type Violation struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

func violation(rule, column, format string, args ...interface{}) Violation {
	return Violation{
		Message: fmt.Sprintf(format, args...),
		Code:    rule + "|" + column,
	}
}
