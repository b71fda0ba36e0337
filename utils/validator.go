package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"

	"dataprofileservice/models"
	"dataprofileservice/services/dto"
)

var validate *validator.Validate

var (
	disallowedNameChars       = regexp.MustCompile(`[{$()}<>!@%^&*()=\-+,.\/?]`)
	disallowedColumnNameChars = regexp.MustCompile(`[{$()}<>!@%^&*()=\-+,.\/?\s]`)
	columnPath                = regexp.MustCompile(`(indexColumns|regularColumns|derivedColumns)\[(\d+)\](?:\.onColumns\[(\d+)\])?`)
	unknownFieldError         = regexp.MustCompile(`^json: unknown field "(.+)"$`)
)

// Numeric precision accepted for NUMERIC default values.
const numericPrecision = 10

var isoDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

func init() {
	binding.EnableDecoderDisallowUnknownFields = true

	validate = validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	mustRegister("safe_name", func(fl validator.FieldLevel) bool {
		return !disallowedNameChars.MatchString(fl.Field().String())
	})
	mustRegister("safe_column_name", func(fl validator.FieldLevel) bool {
		return !disallowedColumnNameChars.MatchString(fl.Field().String())
	})
	mustRegister("iso_date", func(fl validator.FieldLevel) bool {
		_, err := ParseISODate(fl.Field().String())
		return err == nil
	})
	mustRegister("data_type", func(fl validator.FieldLevel) bool {
		return slices.Contains(models.AllDataTypes, models.DataType(fl.Field().String()))
	})
	mustRegister("profile_operation", func(fl validator.FieldLevel) bool {
		return slices.Contains(models.AllOperations, models.Operation(fl.Field().String()))
	})
	mustRegister("sort_by", func(fl validator.FieldLevel) bool {
		_, err := dto.ParseSortBy(fl.Field().String())
		return err == nil
	})

	validate.RegisterStructValidation(indexColumnLevel, dto.IndexColumnRequest{})
	validate.RegisterStructValidation(regularColumnLevel, dto.RegularColumnRequest{})
	validate.RegisterStructValidation(derivedColumnLevel, dto.DerivedColumnRequest{})
}

func mustRegister(tag string, fn validator.Func) {
	if err := validate.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register validation %s: %v", tag, err))
	}
}

// ParseISODate parses an ISO 8601 date or timestamp.
func ParseISODate(value string) (time.Time, error) {
	for _, layout := range isoDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid ISO 8601 date: %q", value)
}

// ColumnResolver maps a column position inside a payload to its columnName.
// onColumn is negative unless the position is inside an onColumns list.
type ColumnResolver interface {
	ResolveColumnName(group string, index, onColumn int) string
}

// ValidateStruct runs shape validation over obj. Every violation is returned as
// one ErrorDetail of a shape-validation AppError with code "<rule>|<columnName>".
func ValidateStruct(obj interface{}) error {
	err := validate.Struct(obj)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	resolver, _ := obj.(ColumnResolver)
	details := make([]ErrorDetail, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		details = append(details, shapeDetail(fe, resolver))
	}
	return NewShapeValidationError(details)
}

// BindError converts a JSON binding failure into an AppError.
func BindError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		rule := jsonKindRule(typeErr.Type.Kind())
		return NewShapeValidationError([]ErrorDetail{{
			Message: fmt.Sprintf("%s must be a %s", typeErr.Field, strings.TrimSuffix(rule, ".base")),
			Code:    rule + "|",
		}})
	}
	if m := unknownFieldError.FindStringSubmatch(err.Error()); m != nil {
		return NewShapeValidationError([]ErrorDetail{{
			Message: fmt.Sprintf("%s is not allowed", m[1]),
			Code:    "object.unknown|",
		}})
	}
	var numErr *strconv.NumError
	if errors.As(err, &numErr) {
		return NewShapeValidationError([]ErrorDetail{{
			Message: fmt.Sprintf("%s must be a number", numErr.Num),
			Code:    "number.base|",
		}})
	}
	return NewBadRequestError("Invalid Request Structure", CodeInvalidStructure)
}

func jsonKindRule(kind reflect.Kind) string {
	switch kind {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return "number.base"
	case reflect.Bool:
		return "boolean.base"
	case reflect.String:
		return "string.base"
	case reflect.Slice, reflect.Array:
		return "array.base"
	default:
		return "object.base"
	}
}

func shapeDetail(fe validator.FieldError, resolver ColumnResolver) ErrorDetail {
	label := fe.Namespace()
	if i := strings.Index(label, "."); i >= 0 {
		label = label[i+1:]
	}
	rule, message := describe(fe, label)
	return ErrorDetail{Message: message, Code: rule + "|" + columnNameAt(fe.Namespace(), resolver)}
}

func columnNameAt(namespace string, resolver ColumnResolver) string {
	if resolver == nil {
		return ""
	}
	m := columnPath.FindStringSubmatch(namespace)
	if m == nil {
		return ""
	}
	index, _ := strconv.Atoi(m[2])
	onColumn := -1
	if m[3] != "" {
		onColumn, _ = strconv.Atoi(m[3])
	}
	return resolver.ResolveColumnName(m[1], index, onColumn)
}

func describe(fe validator.FieldError, label string) (string, string) {
	isList := fe.Kind() == reflect.Slice || fe.Kind() == reflect.Array
	switch fe.Tag() {
	case "required":
		return "any.required", label + " is required"
	case "data_type":
		return "any.only", fmt.Sprintf("%s must be one of [%s]", label, joinValues(models.AllDataTypes))
	case "profile_operation":
		return "any.only", fmt.Sprintf("%s must be one of [%s]", label, joinValues(models.AllOperations))
	case "min":
		if isList {
			return "array.min", fmt.Sprintf("%s must contain at least %s items", label, fe.Param())
		}
		return "number.min", fmt.Sprintf("%s must be greater than or equal to %s", label, fe.Param())
	case "max":
		if isList {
			return "array.max", fmt.Sprintf("%s must contain less than or equal to %s items", label, fe.Param())
		}
		return "number.max", fmt.Sprintf("%s must be less than or equal to %s", label, fe.Param())
	case "safe_name":
		return "string.pattern.invert.base", fmt.Sprintf("%s with value %v matches the inverted pattern: %s",
			label, fe.Value(), disallowedNameChars.String())
	case "safe_column_name":
		return "string.pattern.invert.base", fmt.Sprintf("%s with value %v matches the inverted pattern: %s",
			label, fe.Value(), disallowedColumnNameChars.String())
	case "iso_date", "date.format":
		return "date.format", label + " must be in ISO 8601 date format"
	case "sort_by":
		return "string.pattern.base", fmt.Sprintf(`%s with value %v fails to match the required pattern: {"column":"<column>","order":"asc|desc"}`,
			label, fe.Value())
	case "number.base":
		if strings.HasSuffix(label, "maxAllowedChars") {
			return "number.base", "maxAllowedChars must be defined"
		}
		return "number.base", label + " must be a number"
	case "string.base":
		return "string.base", label + " must be a string"
	case "boolean.base":
		return "boolean.base", label + " must be a boolean"
	case "date.base":
		return "date.base", label + " must be a valid date"
	case "number.precision":
		return "number.precision", fmt.Sprintf("%s must have no more than %d decimal places", label, numericPrecision)
	case "string.length":
		return "string.length", label + " length must be 1 characters long"
	case "number.max":
		return "number.max", fmt.Sprintf("%s must be less than or equal to %s", label, fe.Param())
	case "number.min":
		return "number.min", fmt.Sprintf("%s must be greater than or equal to %s", label, fe.Param())
	}
	return fe.Tag(), fmt.Sprintf("%s failed on the %s rule", label, fe.Tag())
}

func joinValues[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}

func indexColumnLevel(sl validator.StructLevel) {
	c := sl.Current().Interface().(dto.IndexColumnRequest)
	checkDefaultValue(sl, models.DataType(c.DataType), c.DefaultValue)
	checkMaxAllowedChars(sl, models.DataType(c.DataType), c.MaxAllowedChars)
}

func regularColumnLevel(sl validator.StructLevel) {
	c := sl.Current().Interface().(dto.RegularColumnRequest)
	checkDefaultValue(sl, models.DataType(c.DataType), c.DefaultValue)
	checkMaxAllowedChars(sl, models.DataType(c.DataType), c.MaxAllowedChars)
}

func derivedColumnLevel(sl validator.StructLevel) {
	c := sl.Current().Interface().(dto.DerivedColumnRequest)
	checkMaxAllowedChars(sl, models.DataType(c.DataType), c.MaxAllowedChars)
	if c.OnValue == nil || c.Operation == nil {
		return
	}
	if models.Operation(*c.Operation) == models.OperationConcatenate {
		if _, ok := c.OnValue.(string); !ok {
			sl.ReportError(c.OnValue, "onValue", "OnValue", "string.base", "")
		}
		return
	}
	if !isNumber(c.OnValue) {
		sl.ReportError(c.OnValue, "onValue", "OnValue", "number.base", "")
	}
}

// checkDefaultValue types a non-null defaultValue by the column's dataType.
func checkDefaultValue(sl validator.StructLevel, dataType models.DataType, value interface{}) {
	if value == nil {
		return
	}
	report := func(tag string) {
		sl.ReportError(value, "defaultValue", "DefaultValue", tag, "")
	}
	switch dataType {
	case models.DataTypeInt:
		if !isNumber(value) {
			report("number.base")
		}
	case models.DataTypeNumeric:
		if !isNumber(value) {
			report("number.base")
			return
		}
		if d, err := decimal.NewFromString(cast.ToString(value)); err != nil || d.Exponent() < -numericPrecision {
			report("number.precision")
		}
	case models.DataTypeVarchar:
		if _, ok := value.(string); !ok {
			report("string.base")
		}
	case models.DataTypeChar:
		s, ok := value.(string)
		if !ok {
			report("string.base")
			return
		}
		if utf8.RuneCountInString(s) != 1 {
			report("string.length")
		}
	case models.DataTypeBoolean:
		switch v := value.(type) {
		case bool:
		case string:
			if v != "true" && v != "false" {
				report("boolean.base")
			}
		default:
			report("boolean.base")
		}
	case models.DataTypeDate, models.DataTypeTimestamp, models.DataTypeTimestampTZ:
		s, ok := value.(string)
		if !ok {
			report("date.base")
			return
		}
		if _, err := ParseISODate(s); err != nil {
			report("date.format")
		}
	}
}

// checkMaxAllowedChars bounds maxAllowedChars by dataType. VARCHAR requires a value.
func checkMaxAllowedChars(sl validator.StructLevel, dataType models.DataType, maxChars *int) {
	switch dataType {
	case models.DataTypeVarchar:
		if maxChars == nil {
			sl.ReportError(maxChars, "maxAllowedChars", "MaxAllowedChars", "number.base", "")
		}
	case models.DataTypeChar:
		if maxChars != nil && *maxChars > 1 {
			sl.ReportError(*maxChars, "maxAllowedChars", "MaxAllowedChars", "number.max", "1")
		}
	default:
		if maxChars != nil && *maxChars < 1 {
			sl.ReportError(*maxChars, "maxAllowedChars", "MaxAllowedChars", "number.min", "1")
		}
	}
}

// isNumber accepts JSON numbers and numeric strings. Booleans are rejected even
// though cast would coerce them.
func isNumber(value interface{}) bool {
	switch v := value.(type) {
	case bool:
		return false
	case string:
		_, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return err == nil
	case json.Number:
		_, err := v.Float64()
		return err == nil
	}
	_, err := cast.ToFloat64E(value)
	return err == nil
}
