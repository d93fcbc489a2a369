// Package filter translates AIP-160 filter expressions into SQL conditions for
// the admin changelists' advanced filter box.
package filter

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"go.einride.tech/aip/filtering"
	expr "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

// TimestampLayout is how timestamp columns are stored. The fraction is
// fixed-width so text order matches time order.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// FieldType is the declared type of a filterable field.
type FieldType int

const (
	TypeString FieldType = iota
	TypeInt
	TypeBool
	TypeTimestamp
	TypeDate
)

// Field maps a filter identifier to a scalar SQL expression.
type Field struct {
	Name   string
	Column string
	Type   FieldType
}

// SQLCondition represents a SQL WHERE clause fragment with parameters.
type SQLCondition struct {
	// Clause is the SQL WHERE clause (e.g., "cases.name = ?").
	Clause string
	// Params are the positional parameters for the clause.
	Params []any
}

// Empty reports whether the condition filters nothing.
func (c SQLCondition) Empty() bool {
	return strings.TrimSpace(c.Clause) == ""
}

// Schema holds the declarations for one model's filterable fields.
type Schema struct {
	fields map[string]Field
	decls  *filtering.Declarations
}

// NewSchema declares fields for parsing.
func NewSchema(fields ...Field) (*Schema, error) {
	opts := []filtering.DeclarationOption{filtering.DeclareStandardFunctions()}
	mapped := make(map[string]Field, len(fields))
	for _, f := range fields {
		if _, dup := mapped[f.Name]; dup {
			return nil, fmt.Errorf("duplicate filter field %q", f.Name)
		}
		mapped[f.Name] = f
		opts = append(opts, filtering.DeclareIdent(f.Name, declType(f.Type)))
	}
	decls, err := filtering.NewDeclarations(opts...)
	if err != nil {
		return nil, fmt.Errorf("create declarations: %w", err)
	}
	return &Schema{fields: mapped, decls: decls}, nil
}

// MustSchema is NewSchema for package-level declarations.
func MustSchema(fields ...Field) *Schema {
	s, err := NewSchema(fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// FieldNames returns the declared identifiers, sorted.
func (s *Schema) FieldNames() []string {
	names := make([]string, 0, len(s.fields))
	for name := range s.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func declType(t FieldType) *expr.Type {
	switch t {
	case TypeInt:
		return filtering.TypeInt
	case TypeBool:
		return filtering.TypeBool
	case TypeTimestamp:
		return filtering.TypeTimestamp
	default:
		return filtering.TypeString
	}
}

// Parse parses an AIP-160 filter expression and returns a SQL condition.
// Returns an empty condition for an empty filter string.
func (s *Schema) Parse(filterStr string) (SQLCondition, error) {
	if strings.TrimSpace(filterStr) == "" {
		return SQLCondition{}, nil
	}
	filter, err := filtering.ParseFilterString(filterStr, s.decls)
	if err != nil {
		return SQLCondition{}, fmt.Errorf("parse filter: %w", err)
	}
	return s.translateExpr(filter.CheckedExpr.GetExpr())
}

// translateExpr translates a CEL expression to a SQL condition.
func (s *Schema) translateExpr(e *expr.Expr) (SQLCondition, error) {
	if e == nil {
		return SQLCondition{}, nil
	}

	switch kind := e.ExprKind.(type) {
	case *expr.Expr_CallExpr:
		return s.translateCall(kind.CallExpr)
	case *expr.Expr_IdentExpr:
		// A bare boolean identifier: "active".
		field, ok := s.fields[kind.IdentExpr.Name]
		if !ok || field.Type != TypeBool {
			return SQLCondition{}, fmt.Errorf("unsupported bare identifier: %s", kind.IdentExpr.Name)
		}
		return SQLCondition{Clause: field.Column + " = ?", Params: []any{true}}, nil
	default:
		return SQLCondition{}, fmt.Errorf("unsupported expression type: %T", kind)
	}
}

// translateCall translates a CEL function call to a SQL condition.
func (s *Schema) translateCall(call *expr.Expr_Call) (SQLCondition, error) {
	switch call.Function {
	case "_&&_", filtering.FunctionAnd, filtering.FunctionFuzzyAnd:
		return s.translateJunction(call.Args, "AND")
	case "_||_", filtering.FunctionOr:
		return s.translateJunction(call.Args, "OR")
	case filtering.FunctionNot, "-":
		return s.translateNot(call.Args)
	case filtering.FunctionEquals:
		return s.translateComparison(call.Args, "=")
	case filtering.FunctionNotEquals:
		return s.translateComparison(call.Args, "!=")
	case filtering.FunctionLessThan:
		return s.translateComparison(call.Args, "<")
	case filtering.FunctionLessEquals:
		return s.translateComparison(call.Args, "<=")
	case filtering.FunctionGreaterThan:
		return s.translateComparison(call.Args, ">")
	case filtering.FunctionGreaterEquals:
		return s.translateComparison(call.Args, ">=")
	case filtering.FunctionHas:
		return s.translateHas(call.Args)
	default:
		return SQLCondition{}, fmt.Errorf("unsupported function: %s", call.Function)
	}
}

func (s *Schema) translateJunction(args []*expr.Expr, op string) (SQLCondition, error) {
	if len(args) < 2 {
		return SQLCondition{}, fmt.Errorf("%s requires at least 2 arguments", op)
	}
	clauses := make([]string, 0, len(args))
	var params []any
	for _, arg := range args {
		cond, err := s.translateExpr(arg)
		if err != nil {
			return SQLCondition{}, err
		}
		clauses = append(clauses, cond.Clause)
		params = append(params, cond.Params...)
	}
	return SQLCondition{
		Clause: "(" + strings.Join(clauses, " "+op+" ") + ")",
		Params: params,
	}, nil
}

func (s *Schema) translateNot(args []*expr.Expr) (SQLCondition, error) {
	if len(args) != 1 {
		return SQLCondition{}, fmt.Errorf("NOT requires 1 argument")
	}
	inner, err := s.translateExpr(args[0])
	if err != nil {
		return SQLCondition{}, err
	}
	return SQLCondition{Clause: "NOT " + inner.Clause, Params: inner.Params}, nil
}

func (s *Schema) translateComparison(args []*expr.Expr, op string) (SQLCondition, error) {
	if len(args) != 2 {
		return SQLCondition{}, fmt.Errorf("comparison requires 2 arguments")
	}

	field, err := s.resolveField(args[0])
	if err != nil {
		return SQLCondition{}, err
	}

	value, err := extractValue(args[1], field.Type)
	if err != nil {
		return SQLCondition{}, err
	}

	return SQLCondition{
		Clause: fmt.Sprintf("%s %s ?", field.Column, op),
		Params: []any{value},
	}, nil
}

// translateHas maps "name:foo" to a case-insensitive substring match.
func (s *Schema) translateHas(args []*expr.Expr) (SQLCondition, error) {
	if len(args) != 2 {
		return SQLCondition{}, fmt.Errorf("has requires 2 arguments")
	}
	field, err := s.resolveField(args[0])
	if err != nil {
		return SQLCondition{}, err
	}
	if field.Type != TypeString {
		return SQLCondition{}, fmt.Errorf("has is only supported on text fields: %s", field.Name)
	}
	value, err := extractValue(args[1], TypeString)
	if err != nil {
		return SQLCondition{}, err
	}
	text, _ := value.(string)
	return SQLCondition{
		Clause: fmt.Sprintf("casefold(%s) LIKE ? ESCAPE '\\'", field.Column),
		Params: []any{ContainsPattern(text)},
	}, nil
}

func (s *Schema) resolveField(e *expr.Expr) (Field, error) {
	name, err := extractFieldName(e)
	if err != nil {
		return Field{}, err
	}
	field, ok := s.fields[name]
	if !ok {
		return Field{}, fmt.Errorf("unknown field: %s", name)
	}
	return field, nil
}

func extractFieldName(e *expr.Expr) (string, error) {
	if e == nil {
		return "", fmt.Errorf("nil expression")
	}

	switch kind := e.ExprKind.(type) {
	case *expr.Expr_IdentExpr:
		return kind.IdentExpr.Name, nil
	default:
		return "", fmt.Errorf("expected identifier, got %T", kind)
	}
}

func extractValue(e *expr.Expr, fieldType FieldType) (any, error) {
	if e == nil {
		return nil, fmt.Errorf("nil expression")
	}

	switch kind := e.ExprKind.(type) {
	case *expr.Expr_ConstExpr:
		value, err := extractConstValue(kind.ConstExpr)
		if err != nil {
			return nil, err
		}
		if fieldType == TypeDate {
			text, ok := value.(string)
			if !ok {
				return nil, fmt.Errorf("date value must be a string")
			}
			if _, err := time.Parse("2006-01-02", text); err != nil {
				return nil, fmt.Errorf("invalid date format: %s", text)
			}
		}
		return value, nil
	case *expr.Expr_CallExpr:
		// timestamp("...") literals compare against TimestampLayout text columns.
		if kind.CallExpr.Function == filtering.FunctionTimestamp && len(kind.CallExpr.Args) == 1 {
			return extractTimestampValue(kind.CallExpr.Args[0])
		}
		return nil, fmt.Errorf("unsupported function in value position: %s", kind.CallExpr.Function)
	default:
		return nil, fmt.Errorf("expected constant or timestamp, got %T", kind)
	}
}

func extractConstValue(c *expr.Constant) (any, error) {
	if c == nil {
		return nil, fmt.Errorf("nil constant")
	}

	switch kind := c.ConstantKind.(type) {
	case *expr.Constant_StringValue:
		return kind.StringValue, nil
	case *expr.Constant_Int64Value:
		return kind.Int64Value, nil
	case *expr.Constant_Uint64Value:
		return kind.Uint64Value, nil
	case *expr.Constant_DoubleValue:
		return kind.DoubleValue, nil
	case *expr.Constant_BoolValue:
		return kind.BoolValue, nil
	default:
		return nil, fmt.Errorf("unsupported constant type: %T", kind)
	}
}

func extractTimestampValue(e *expr.Expr) (string, error) {
	if e == nil {
		return "", fmt.Errorf("nil timestamp argument")
	}

	kind, ok := e.ExprKind.(*expr.Expr_ConstExpr)
	if !ok {
		return "", fmt.Errorf("timestamp argument must be a constant string")
	}
	strVal, ok := kind.ConstExpr.ConstantKind.(*expr.Constant_StringValue)
	if !ok {
		return "", fmt.Errorf("timestamp argument must be a string")
	}
	t, err := time.Parse(time.RFC3339Nano, strVal.StringValue)
	if err != nil {
		return "", fmt.Errorf("invalid timestamp format: %s", strVal.StringValue)
	}
	return t.UTC().Format(TimestampLayout), nil
}

// ContainsPattern builds a LIKE pattern matching text anywhere, case-folded
// and with LIKE wildcards escaped by a backslash.
func ContainsPattern(text string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + replacer.Replace(strings.ToLower(text)) + "%"
}
