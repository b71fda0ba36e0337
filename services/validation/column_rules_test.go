package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"dataprofileservice/models"
)

func op(o models.Operation) *models.Operation { return &o }

func codes(violations []Violation) []string {
	out := make([]string, 0, len(violations))
	for _, v := range violations {
		out = append(out, v.Code)
	}
	return out
}

var operandTypes = map[string]models.DataType{
	"id":      models.DataTypeInt,
	"qty":     models.DataTypeInt,
	"price":   models.DataTypeNumeric,
	"name":    models.DataTypeVarchar,
	"initial": models.DataTypeChar,
	"born":    models.DataTypeDate,
	"seen":    models.DataTypeTimestampTZ,
	"flag":    models.DataTypeBoolean,
}

func TestValidateOperation(t *testing.T) {
	tests := []struct {
		name   string
		column models.Column
		want   []string
	}{
		{
			name:   "no operation is a no-op",
			column: models.Column{ColumnName: "c", DataType: models.DataTypeBoolean, OnColumns: []string{"flag"}},
			want:   []string{},
		},
		{
			name:   "concatenate valid",
			column: models.Column{ColumnName: "full", DataType: models.DataTypeVarchar, Operation: op(models.OperationConcatenate), OnColumns: []string{"name", "initial"}},
			want:   []string{},
		},
		{
			name:   "concatenate wrong result and operand",
			column: models.Column{ColumnName: "full", DataType: models.DataTypeChar, Operation: op(models.OperationConcatenate), OnColumns: []string{"name", "qty"}},
			want:   []string{"concatenate-datatype-error|full", "concatenate-operation-error|qty"},
		},
		{
			name:   "age valid",
			column: models.Column{ColumnName: "age", DataType: models.DataTypeInt, Operation: op(models.OperationAge), OnColumns: []string{"born"}},
			want:   []string{},
		},
		{
			name:   "age with onValue and two operands",
			column: models.Column{ColumnName: "age", DataType: models.DataTypeNumeric, Operation: op(models.OperationAge), OnValue: 3.0, OnColumns: []string{"born", "name"}},
			want: []string{
				"age-datatype-error|age",
				"age-onValue-error|age",
				"age-onColumn-error|age",
				"age-onColumns-datatype-error|name",
			},
		},
		{
			name:   "mod without onValue needs two operands",
			column: models.Column{ColumnName: "m", DataType: models.DataTypeInt, Operation: op(models.OperationMod), OnColumns: []string{"qty"}},
			want:   []string{"mod-onValue-null-columns-error|m"},
		},
		{
			name:   "mod with onValue needs one operand",
			column: models.Column{ColumnName: "m", DataType: models.DataTypeInt, Operation: op(models.OperationMod), OnValue: 2.0, OnColumns: []string{"qty", "id"}},
			want:   []string{"mod-onValue-columns-error|m"},
		},
		{
			name:   "mod int result rejects numeric operand",
			column: models.Column{ColumnName: "m", DataType: models.DataTypeInt, Operation: op(models.OperationMod), OnColumns: []string{"qty", "price"}},
			want:   []string{"mod-mathematical-operation-error-int|price"},
		},
		{
			name:   "mod numeric result rejects varchar operand",
			column: models.Column{ColumnName: "m", DataType: models.DataTypeNumeric, Operation: op(models.OperationMod), OnColumns: []string{"price", "name"}},
			want:   []string{"mod-mathematical-operation-error-num-int|name"},
		},
		{
			name:   "mod varchar result",
			column: models.Column{ColumnName: "m", DataType: models.DataTypeVarchar, Operation: op(models.OperationMod), OnColumns: []string{"qty", "id"}},
			want:   []string{"mod-datatype-error|m"},
		},
		{
			name:   "divide requires numeric result",
			column: models.Column{ColumnName: "d", DataType: models.DataTypeInt, Operation: op(models.OperationDivide), OnColumns: []string{"qty", "id"}},
			want:   []string{"divide-datatype-error|d"},
		},
		{
			name:   "divide arity checked before result type",
			column: models.Column{ColumnName: "d", DataType: models.DataTypeInt, Operation: op(models.OperationDivide), OnColumns: []string{"qty"}},
			want:   []string{"divide-onValue-null-columns-error|d", "divide-datatype-error|d"},
		},
		{
			name:   "divide operand type",
			column: models.Column{ColumnName: "d", DataType: models.DataTypeNumeric, Operation: op(models.OperationDivide), OnValue: 10.0, OnColumns: []string{"born"}},
			want:   []string{"divide-onColumns-datatype-error|born"},
		},
		{
			name:   "sum accepts many operands",
			column: models.Column{ColumnName: "s", DataType: models.DataTypeNumeric, Operation: op(models.OperationSum), OnColumns: []string{"qty", "price", "id"}},
			want:   []string{},
		},
		{
			name:   "sum int rejects numeric operand",
			column: models.Column{ColumnName: "s", DataType: models.DataTypeInt, Operation: op(models.OperationSum), OnColumns: []string{"qty", "price"}},
			want:   []string{"sum-onColumns-int-datatype-error|price"},
		},
		{
			name:   "sum numeric rejects unknown operand",
			column: models.Column{ColumnName: "s", DataType: models.DataTypeNumeric, Operation: op(models.OperationSum), OnColumns: []string{"ghost"}},
			want:   []string{"sum-onColumns-numeric-datatype-error|ghost"},
		},
		{
			name:   "sum date result",
			column: models.Column{ColumnName: "s", DataType: models.DataTypeDate, Operation: op(models.OperationSum), OnColumns: []string{"qty"}},
			want:   []string{"sum-datatype-error|s"},
		},
		{
			name:   "diff arity and type",
			column: models.Column{ColumnName: "df", DataType: models.DataTypeInt, Operation: op(models.OperationDiff), OnColumns: []string{"price"}},
			want:   []string{"diff-onValue-null-columns-error|df", "diff-onColumns-int-datatype-error|price"},
		},
		{
			name:   "diff numeric with onValue",
			column: models.Column{ColumnName: "df", DataType: models.DataTypeNumeric, Operation: op(models.OperationDiff), OnValue: 1.5, OnColumns: []string{"name"}},
			want:   []string{"diff-onColumns-numeric-datatype-error|name"},
		},
		{
			name:   "product int result",
			column: models.Column{ColumnName: "p", DataType: models.DataTypeBoolean, Operation: op(models.OperationProduct), OnColumns: []string{"qty"}},
			want:   []string{"product-datatype-error|p"},
		},
		{
			name:   "product int rejects numeric operand",
			column: models.Column{ColumnName: "p", DataType: models.DataTypeInt, Operation: op(models.OperationProduct), OnColumns: []string{"price"}},
			want:   []string{"product-onColumns-int-datatype-error|price"},
		},
		{
			name:   "product numeric rejects char operand",
			column: models.Column{ColumnName: "p", DataType: models.DataTypeNumeric, Operation: op(models.OperationProduct), OnColumns: []string{"initial"}},
			want:   []string{"product-onColumns-numeric-datatype-error|initial"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidateOperation(tt.column, 0, operandTypes)
			assert.Equal(t, tt.want, codes(got))
		})
	}
}

func TestValidateOperation_MessagesCarryIndex(t *testing.T) {
	column := models.Column{ColumnName: "full", DataType: models.DataTypeInt, Operation: op(models.OperationConcatenate), OnColumns: []string{"qty"}}

	got := ValidateOperation(column, 3, operandTypes)

	if assert.Len(t, got, 2) {
		assert.Equal(t, "For CONCATENATE operation, derivedColumns[3].'full' must be VARCHAR", got[0].Message)
		assert.Equal(t, "For CONCATENATE operation, onColumns derivedColumns[3].'qty' must be CHAR or VARCHAR", got[1].Message)
	}
}

// AGE passes iff result INT, no onValue, one operand, operand temporal.
func TestAgeRule_Exhaustive(t *testing.T) {
	for _, result := range models.AllDataTypes {
		for operand, operandType := range operandTypes {
			for _, onValue := range []interface{}{nil, 1.0} {
				column := models.Column{
					ColumnName: "age",
					DataType:   result,
					Operation:  op(models.OperationAge),
					OnValue:    onValue,
					OnColumns:  []string{operand},
				}
				wantValid := result == models.DataTypeInt && onValue == nil &&
					(operandType == models.DataTypeDate || operandType == models.DataTypeTimestamp || operandType == models.DataTypeTimestampTZ)

				got := ValidateOperation(column, 0, operandTypes)
				assert.Equal(t, wantValid, len(got) == 0, "result=%s operand=%s onValue=%v", result, operandType, onValue)
			}
		}
	}
}

// CONCATENATE passes iff result VARCHAR and every operand CHAR or VARCHAR.
func TestConcatenateRule_Exhaustive(t *testing.T) {
	for _, result := range models.AllDataTypes {
		for a, aType := range operandTypes {
			for b, bType := range operandTypes {
				column := models.Column{
					ColumnName: "c",
					DataType:   result,
					Operation:  op(models.OperationConcatenate),
					OnColumns:  []string{a, b},
				}
				isString := func(dt models.DataType) bool {
					return dt == models.DataTypeChar || dt == models.DataTypeVarchar
				}
				wantValid := result == models.DataTypeVarchar && isString(aType) && isString(bType)

				got := ValidateOperation(column, 0, operandTypes)
				assert.Equal(t, wantValid, len(got) == 0, "result=%s operands=%s,%s", result, aType, bType)
			}
		}
	}
}
