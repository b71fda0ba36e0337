package models

// DataType is the declared SQL type of a profile column.
type DataType string

// Supported column data types.
const (
	DataTypeInt         DataType = "INT"
	DataTypeVarchar     DataType = "VARCHAR"
	DataTypeTimestamp   DataType = "TIMESTAMP"
	DataTypeDate        DataType = "DATE"
	DataTypeTimestampTZ DataType = "TIMESTAMP_TZ"
	DataTypeNumeric     DataType = "NUMERIC"
	DataTypeBoolean     DataType = "BOOLEAN"
	DataTypeChar        DataType = "CHAR"
)

// AllDataTypes lists every accepted dataType value.
var AllDataTypes = []DataType{
	DataTypeInt,
	DataTypeVarchar,
	DataTypeTimestamp,
	DataTypeDate,
	DataTypeTimestampTZ,
	DataTypeNumeric,
	DataTypeBoolean,
	DataTypeChar,
}

// Operation is the computation applied by a derived column.
type Operation string

// Supported derived-column operations. OperationNone marks a derived column without computation.
const (
	OperationConcatenate Operation = "CONCATENATE"
	OperationSum         Operation = "SUM"
	OperationDiff        Operation = "DIFF"
	OperationProduct     Operation = "PRODUCT"
	OperationMod         Operation = "MOD"
	OperationDivide      Operation = "DIVIDE"
	OperationAge         Operation = "AGE"
	OperationNone        Operation = ""
)

// AllOperations lists every accepted operation value, including the empty one.
var AllOperations = []Operation{
	OperationConcatenate,
	OperationSum,
	OperationDiff,
	OperationProduct,
	OperationMod,
	OperationDivide,
	OperationAge,
	OperationNone,
}

// MaxOnColumns is the upper bound of operands a derived column may reference.
const MaxOnColumns = 4

// Column groups inside a ColumnDef. The names double as error message fragments.
const (
	GroupIndexColumns   = "indexColumns"
	GroupRegularColumns = "regularColumns"
	GroupDerivedColumns = "derivedColumns"
)

// Reference is an optional foreign-key pointer from a column to another table.
type Reference struct {
	TableName  string `json:"tableName"`
	ColumnName string `json:"columnName"`
}

// Column is one field of a profile's schema. Fields that only apply to one group
// (isPrimary, isUnique, operation, onValue, onColumns) are omitted elsewhere.
type Column struct {
	ColumnName      string      `json:"columnName"`
	DataType        DataType    `json:"dataType"`
	NotNull         bool        `json:"notNull"`
	Regex           *string     `json:"regex,omitempty"`
	MaxAllowedChars *int        `json:"maxAllowedChars"`
	DefaultValue    interface{} `json:"defaultValue,omitempty"`
	References      *Reference  `json:"references,omitempty"`
	IsPrimary       *bool       `json:"isPrimary,omitempty"`
	IsUnique        *bool       `json:"isUnique,omitempty"`
	Operation       *Operation  `json:"operation,omitempty"`
	OnValue         interface{} `json:"onValue,omitempty"`
	OnColumns       []string    `json:"onColumns,omitempty"`
}

// Primary reports whether the column is flagged as the primary key.
func (c Column) Primary() bool {
	return c.IsPrimary != nil && *c.IsPrimary
}

// Op returns the derived-column operation, OperationNone when unset.
func (c Column) Op() Operation {
	if c.Operation == nil {
		return OperationNone
	}
	return *c.Operation
}

// ColumnDef holds the three disjoint column groups of a profile.
type ColumnDef struct {
	IndexColumns   []Column `json:"indexColumns"`
	RegularColumns []Column `json:"regularColumns"`
	DerivedColumns []Column `json:"derivedColumns"`
}

// DataTypesByName maps every index and regular column name to its dataType.
// Derived columns are excluded since they cannot be operands.
func (d ColumnDef) DataTypesByName() map[string]DataType {
	types := make(map[string]DataType, len(d.IndexColumns)+len(d.RegularColumns))
	for _, c := range d.IndexColumns {
		types[c.ColumnName] = c.DataType
	}
	for _, c := range d.RegularColumns {
		types[c.ColumnName] = c.DataType
	}
	return types
}

// ProfileDef is the persisted profile definition document.
type ProfileDef struct {
	Schema    string    `json:"schema"`
	ColumnDef ColumnDef `json:"columnDef"`
}
