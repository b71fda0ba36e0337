package validation

import (
	"slices"

	"dataprofileservice/models"
)

// Stage names one structural check. Checks run in declaration order.
type Stage string

// Structural validation stages.
const (
	StagePrimaryColumn   Stage = "primary-column"
	StageDuplicateNames  Stage = "duplicate-column-names"
	StageReferences      Stage = "references"
	StageOnColumnsCount  Stage = "on-columns-count"
	StageOnColumnsNames  Stage = "on-columns-names"
	StageOperationTypes  Stage = "operation-types"
	StageMaxAllowedChars Stage = "max-allowed-chars"
)

// Failure carries the violations of the first stage that rejected a ColumnDef.
type Failure struct {
	Stage      Stage
	Violations []Violation
}

type check struct {
	stage Stage
	run   func(def models.ColumnDef) []Violation
}

var checks = []check{
	{StagePrimaryColumn, CheckPrimaryColumn},
	{StageDuplicateNames, CheckDuplicateColumnNames},
	{StageReferences, CheckReferences},
	{StageOnColumnsCount, CheckOnColumnsCount},
	{StageOnColumnsNames, CheckOnColumnsNames},
	{StageOperationTypes, CheckOperationTypes},
	{StageMaxAllowedChars, CheckMaxAllowedChars},
}

// Validate runs every structural check in order and stops at the first stage
// reporting violations. It returns nil when the definition is valid.
func Validate(def models.ColumnDef) *Failure {
	for _, c := range checks {
		if violations := c.run(def); len(violations) > 0 {
			return &Failure{Stage: c.stage, Violations: violations}
		}
	}
	return nil
}

var (
	primaryKeyTypes  = []models.DataType{models.DataTypeInt, models.DataTypeVarchar}
	referenceTypes   = []models.DataType{models.DataTypeVarchar, models.DataTypeChar, models.DataTypeInt}
	unsizedDataTypes = []models.DataType{
		models.DataTypeDate,
		models.DataTypeTimestamp,
		models.DataTypeTimestampTZ,
		models.DataTypeInt,
		models.DataTypeNumeric,
	}
)

// CheckPrimaryColumn requires exactly one primary index column of type INT or VARCHAR
// without a default value. It reports at most one violation.
func CheckPrimaryColumn(def models.ColumnDef) []Violation {
	primaries := 0
	for _, c := range def.IndexColumns {
		if c.Primary() {
			primaries++
		}
	}
	switch {
	case primaries > 1:
		return []Violation{violation("more-than-one-isPrimary-error", "", "More than one column is primary")}
	case primaries == 0:
		return []Violation{violation("atleast-one-isPrimary-error", "", "At least one column should be primary")}
	}

	for _, c := range def.IndexColumns {
		if c.Primary() && !slices.Contains(primaryKeyTypes, c.DataType) {
			return []Violation{violation("dataType-isPrimary-error", c.ColumnName,
				"Only INT and VARCHAR must be selected for Primary Column")}
		}
	}
	for _, c := range def.IndexColumns {
		if c.Primary() && c.DefaultValue != nil {
			return []Violation{violation("no-defaultvalue-isPrimary-error", c.ColumnName,
				"Default Value not allowed for primary column")}
		}
	}
	return nil
}

// eachGroup visits the column groups in index, regular, derived order.
func eachGroup(def models.ColumnDef, fn func(group string, columns []models.Column)) {
	fn(models.GroupIndexColumns, def.IndexColumns)
	fn(models.GroupRegularColumns, def.RegularColumns)
	fn(models.GroupDerivedColumns, def.DerivedColumns)
}

// CheckDuplicateColumnNames reports every repeated column name across all groups.
// The first occurrence wins; later ones are attributed to their own group.
func CheckDuplicateColumnNames(def models.ColumnDef) []Violation {
	seen := make(map[string]struct{})
	var violations []Violation
	eachGroup(def, func(group string, columns []models.Column) {
		for _, c := range columns {
			if _, ok := seen[c.ColumnName]; ok {
				violations = append(violations, violation("duplicate-columnName-"+group, c.ColumnName,
					"Duplicate column '%s' in %s", c.ColumnName, group))
				continue
			}
			seen[c.ColumnName] = struct{}{}
		}
	})
	return violations
}

// CheckReferences allows foreign-key references only on VARCHAR, CHAR and INT columns.
func CheckReferences(def models.ColumnDef) []Violation {
	var violations []Violation
	eachGroup(def, func(group string, columns []models.Column) {
		for _, c := range columns {
			if c.References != nil && !slices.Contains(referenceTypes, c.DataType) {
				violations = append(violations, violation("references-not-allowed", c.ColumnName,
					"references not allowed for '%s' in %s (Only allowed when dataType is 'VARCHAR', 'CHAR', 'INT')",
					c.ColumnName, group))
			}
		}
	})
	return violations
}

// CheckOnColumnsCount caps the operand list of every derived column.
func CheckOnColumnsCount(def models.ColumnDef) []Violation {
	var violations []Violation
	for _, c := range def.DerivedColumns {
		if len(c.OnColumns) > models.MaxOnColumns {
			violations = append(violations, violation("max-onColumns-exceeded", c.ColumnName,
				"Exceeded maximum allowed onColumns for derivedColumn"))
		}
	}
	return violations
}

// CheckOnColumnsNames requires every operand to name an index or regular column.
// One violation is reported per offending derived column.
func CheckOnColumnsNames(def models.ColumnDef) []Violation {
	known := def.DataTypesByName()
	var violations []Violation
	for _, c := range def.DerivedColumns {
		for _, name := range c.OnColumns {
			if _, ok := known[name]; !ok {
				violations = append(violations, violation("invalid-onColumns", c.ColumnName,
					"Invalid onColumns in '%s' within derivedColumns", c.ColumnName))
				break
			}
		}
	}
	return violations
}

// CheckOperationTypes applies the per-operation rules to every derived column.
func CheckOperationTypes(def models.ColumnDef) []Violation {
	operandTypes := def.DataTypesByName()
	var violations []Violation
	for idx, c := range def.DerivedColumns {
		violations = append(violations, ValidateOperation(c, idx, operandTypes)...)
	}
	return violations
}

// CheckMaxAllowedChars rejects a length limit on types that carry no length.
func CheckMaxAllowedChars(def models.ColumnDef) []Violation {
	var violations []Violation
	eachGroup(def, func(group string, columns []models.Column) {
		for _, c := range columns {
			if c.MaxAllowedChars != nil && slices.Contains(unsizedDataTypes, c.DataType) {
				violations = append(violations, violation("maxAllowedChars-null-error", c.ColumnName,
					"maxAllowedChars in %s.%s must be null for (DATE, TIMESTAMP, TIMESTAMP_TZ, INT, NUMERIC)",
					group, c.ColumnName))
			}
		}
	})
	return violations
}
