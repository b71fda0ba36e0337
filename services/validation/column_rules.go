package validation

import (
	"slices"

	"dataprofileservice/models"
)

var (
	stringTypes   = []models.DataType{models.DataTypeChar, models.DataTypeVarchar}
	temporalTypes = []models.DataType{models.DataTypeDate, models.DataTypeTimestamp, models.DataTypeTimestampTZ}
	numericTypes  = []models.DataType{models.DataTypeInt, models.DataTypeNumeric}
)

// operationRule checks a derived column against one operation. Rules return nil
// when the column's operation is not the one they cover.
type operationRule func(column models.Column, idx int, operandTypes map[string]models.DataType) []Violation

// operationRules run in this order for every derived column.
var operationRules = []operationRule{
	concatenateRule,
	ageRule,
	modRule,
	divideRule,
	sumRule,
	diffRule,
	productRule,
}

// ValidateOperation applies every per-operation rule to the derived column at position idx
// and returns all violations found. operandTypes resolves operand names to their dataType;
// names missing from it never satisfy a type constraint.
func ValidateOperation(column models.Column, idx int, operandTypes map[string]models.DataType) []Violation {
	var violations []Violation
	for _, rule := range operationRules {
		violations = append(violations, rule(column, idx, operandTypes)...)
	}
	return violations
}

func concatenateRule(column models.Column, idx int, operandTypes map[string]models.DataType) []Violation {
	if column.Op() != models.OperationConcatenate {
		return nil
	}
	var violations []Violation
	if column.DataType != models.DataTypeVarchar {
		violations = append(violations, violation("concatenate-datatype-error", column.ColumnName,
			"For CONCATENATE operation, derivedColumns[%d].'%s' must be VARCHAR", idx, column.ColumnName))
	}
	for _, name := range column.OnColumns {
		if !slices.Contains(stringTypes, operandTypes[name]) {
			violations = append(violations, violation("concatenate-operation-error", name,
				"For CONCATENATE operation, onColumns derivedColumns[%d].'%s' must be CHAR or VARCHAR", idx, name))
		}
	}
	return violations
}

func ageRule(column models.Column, idx int, operandTypes map[string]models.DataType) []Violation {
	if column.Op() != models.OperationAge {
		return nil
	}
	var violations []Violation
	if column.DataType != models.DataTypeInt {
		violations = append(violations, violation("age-datatype-error", column.ColumnName,
			"For AGE operation, derivedColumns[%d].'%s' must be INT", idx, column.ColumnName))
	}
	if column.OnValue != nil {
		violations = append(violations, violation("age-onValue-error", column.ColumnName,
			"For AGE operation, onValue is not allowed"))
	}
	if len(column.OnColumns) != 1 {
		violations = append(violations, violation("age-onColumn-error", column.ColumnName,
			"For AGE operation, only one onColumn is allowed"))
	}
	for _, name := range column.OnColumns {
		if !slices.Contains(temporalTypes, operandTypes[name]) {
			violations = append(violations, violation("age-onColumns-datatype-error", name,
				"For AGE operation, onColumns derivedColumns[%d].'%s' must be ('DATE', 'TIMESTAMP', 'TIMESTAMP_TZ')", idx, name))
		}
	}
	return violations
}

// operandCount enforces the binary-operation arity: two operand columns without
// onValue, exactly one when onValue supplies the second operand.
func operandCount(column models.Column, prefix, label string) []Violation {
	if column.OnValue == nil {
		if len(column.OnColumns) != 2 {
			return []Violation{violation(prefix+"-onValue-null-columns-error", column.ColumnName,
				"For %s operation with onValue null, exactly two onColumns are allowed", label)}
		}
		return nil
	}
	if len(column.OnColumns) != 1 {
		return []Violation{violation(prefix+"-onValue-columns-error", column.ColumnName,
			"For %s operation with onValue, only one onColumn is allowed", label)}
	}
	return nil
}

func modRule(column models.Column, idx int, operandTypes map[string]models.DataType) []Violation {
	if column.Op() != models.OperationMod {
		return nil
	}
	var violations []Violation
	if !slices.Contains(numericTypes, column.DataType) {
		violations = append(violations, violation("mod-datatype-error", column.ColumnName,
			"For MOD operation, derivedColumns[%d].'%s' must be INT or NUMERIC", idx, column.ColumnName))
	}
	violations = append(violations, operandCount(column, "mod", "MOD")...)
	for _, name := range column.OnColumns {
		operandType := operandTypes[name]
		switch {
		case column.DataType == models.DataTypeInt && operandType != models.DataTypeInt:
			violations = append(violations, violation("mod-mathematical-operation-error-int", name,
				"For MOD operation, onColumns derivedColumns[%d].'%s' must be INT", idx, name))
		case column.DataType == models.DataTypeNumeric && !slices.Contains(numericTypes, operandType):
			violations = append(violations, violation("mod-mathematical-operation-error-num-int", name,
				"For MOD operation, onColumns derivedColumns[%d].'%s' must be NUMERIC or INT", idx, name))
		}
	}
	return violations
}

func divideRule(column models.Column, idx int, operandTypes map[string]models.DataType) []Violation {
	if column.Op() != models.OperationDivide {
		return nil
	}
	violations := operandCount(column, "divide", "DIVIDE")
	if column.DataType != models.DataTypeNumeric {
		violations = append(violations, violation("divide-datatype-error", column.ColumnName,
			"For DIVIDE operation, derivedColumns[%d].'%s' must be NUMERIC", idx, column.ColumnName))
	}
	for _, name := range column.OnColumns {
		if !slices.Contains(numericTypes, operandTypes[name]) {
			violations = append(violations, violation("divide-onColumns-datatype-error", name,
				"For DIVIDE operation, onColumns derivedColumns[%d].'%s' must be NUMERIC or INT", idx, name))
		}
	}
	return violations
}

func sumRule(column models.Column, idx int, operandTypes map[string]models.DataType) []Violation {
	if column.Op() != models.OperationSum {
		return nil
	}
	return aggregateRule(column, idx, operandTypes, "sum", "SUM")
}

func productRule(column models.Column, idx int, operandTypes map[string]models.DataType) []Violation {
	if column.Op() != models.OperationProduct {
		return nil
	}
	return aggregateRule(column, idx, operandTypes, "product", "PRODUCT")
}

// aggregateRule covers SUM and PRODUCT, which accept any number of operands.
func aggregateRule(column models.Column, idx int, operandTypes map[string]models.DataType, prefix, label string) []Violation {
	var violations []Violation
	if !slices.Contains(numericTypes, column.DataType) {
		violations = append(violations, violation(prefix+"-datatype-error", column.ColumnName,
			"For %s operation, derivedColumns[%d].'%s' must be INT or NUMERIC", label, idx, column.ColumnName))
	}
	for _, name := range column.OnColumns {
		operandType := operandTypes[name]
		switch {
		case column.DataType == models.DataTypeInt && operandType != models.DataTypeInt:
			violations = append(violations, violation(prefix+"-onColumns-int-datatype-error", name,
				"For %s operation with INT type, onColumns derivedColumns[%d].'%s' must be INT", label, idx, name))
		case column.DataType == models.DataTypeNumeric && !slices.Contains(numericTypes, operandType):
			violations = append(violations, violation(prefix+"-onColumns-numeric-datatype-error", name,
				"For %s operation with NUMERIC type, onColumns derivedColumns[%d].'%s' must be INT or NUMERIC", label, idx, name))
		}
	}
	return violations
}

func diffRule(column models.Column, idx int, operandTypes map[string]models.DataType) []Violation {
	if column.Op() != models.OperationDiff {
		return nil
	}
	var violations []Violation
	if !slices.Contains(numericTypes, column.DataType) {
		violations = append(violations, violation("diff-datatype-error", column.ColumnName,
			"For DIFF operation, derivedColumns[%d].'%s' must be INT or NUMERIC", idx, column.ColumnName))
	}
	violations = append(violations, operandCount(column, "diff", "DIFF")...)
	for _, name := range column.OnColumns {
		operandType := operandTypes[name]
		switch {
		case column.DataType == models.DataTypeInt && operandType != models.DataTypeInt:
			violations = append(violations, violation("diff-onColumns-int-datatype-error", name,
				"For DIFF operation, onColumns derivedColumns[%d].'%s' must be INT", idx, name))
		case column.DataType == models.DataTypeNumeric && !slices.Contains(numericTypes, operandType):
			violations = append(violations, violation("diff-onColumns-numeric-datatype-error", name,
				"For DIFF operation, onColumns derivedColumns[%d].'%s' must be NUMERIC or INT", idx, name))
		}
	}
	return violations
}
