package engine

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Condition operators. Numeric and date fields accept the ordering set;
// string fields (and tags, elementwise) accept the string set.
const (
	OpEquals             = "equals"
	OpNotEquals          = "not_equals"
	OpGreaterThan        = "greater_than"
	OpGreaterThanOrEqual = "greater_than_or_equal"
	OpLessThan           = "less_than"
	OpLessThanOrEqual    = "less_than_or_equal"
	OpBetween            = "between"
	OpContains           = "contains"
	OpNotContains        = "not_contains"
	OpStartsWith         = "starts_with"
	OpEndsWith           = "ends_with"
	OpRegex              = "regex"
	OpWildcard           = "wildcard"
	OpIsEmpty            = "is_empty"
	OpIsNotEmpty         = "is_not_empty"
	OpIn                 = "in"
	OpNotIn              = "not_in"
)

var orderingOperators = []string{
	OpEquals, OpNotEquals,
	OpGreaterThan, OpGreaterThanOrEqual,
	OpLessThan, OpLessThanOrEqual,
	OpBetween,
}

var stringOperators = []string{
	OpEquals, OpNotEquals,
	OpContains, OpNotContains,
	OpStartsWith, OpEndsWith,
	OpRegex, OpWildcard,
	OpIsEmpty, OpIsNotEmpty,
	OpIn, OpNotIn,
}

// OperatorsForKind is the field-kind to allowed-operator table, consulted at
// rule validation time and served to the UI options endpoint. Pure data.
func OperatorsForKind(kind Kind) []string {
	switch kind {
	case KindNumber, KindDate:
		return orderingOperators
	case KindString, KindStringList:
		return stringOperators
	}
	return nil
}

// OperatorValidForField reports whether an operator may be used on a field.
func OperatorValidForField(field, op string) bool {
	kind, ok := fieldKinds[field]
	if !ok {
		return false
	}
	for _, allowed := range OperatorsForKind(kind) {
		if allowed == op {
			return true
		}
	}
	return false
}

const dateLayout = "2006-01-02"

// Evaluate applies one operator to an extracted field value. Negation is
// applied by the caller so it composes uniformly with every operator.
// A returned error marks a rule-configuration problem (malformed pattern,
// unparseable comparison value); the caller degrades it to a non-match plus
// a diagnostic, never a batch abort.
func Evaluate(fieldValue Value, op, compare string, caseSensitive bool) (bool, error) {
	switch fieldValue.Kind {
	case KindNumber:
		return evaluateNumber(fieldValue.Number, op, compare)
	case KindDate:
		return evaluateDate(fieldValue.Date, op, compare)
	case KindString:
		return evaluateString(fieldValue.Str, op, compare, caseSensitive)
	case KindStringList:
		return evaluateList(fieldValue.List, op, compare, caseSensitive)
	}
	return false, fmt.Errorf("unsupported value kind %s", fieldValue.Kind)
}

func evaluateNumber(v decimal.Decimal, op, compare string) (bool, error) {
	if op == OpBetween {
		min, max, err := parseBetweenDecimals(compare)
		if err != nil {
			return false, err
		}
		// min > max is never-matching bad user data, not an error
		if min.GreaterThan(max) {
			return false, nil
		}
		return v.GreaterThanOrEqual(min) && v.LessThanOrEqual(max), nil
	}

	cmp, err := decimal.NewFromString(strings.TrimSpace(compare))
	if err != nil {
		return false, fmt.Errorf("invalid numeric comparison value %q", compare)
	}
	switch op {
	case OpEquals:
		return v.Equal(cmp), nil
	case OpNotEquals:
		return !v.Equal(cmp), nil
	case OpGreaterThan:
		return v.GreaterThan(cmp), nil
	case OpGreaterThanOrEqual:
		return v.GreaterThanOrEqual(cmp), nil
	case OpLessThan:
		return v.LessThan(cmp), nil
	case OpLessThanOrEqual:
		return v.LessThanOrEqual(cmp), nil
	}
	return false, fmt.Errorf("operator %q not valid for numeric fields", op)
}

func evaluateDate(v time.Time, op, compare string) (bool, error) {
	day := truncateToDay(v)
	if op == OpBetween {
		minStr, maxStr, err := splitBetween(compare)
		if err != nil {
			return false, err
		}
		min, err := parseDay(minStr)
		if err != nil {
			return false, err
		}
		max, err := parseDay(maxStr)
		if err != nil {
			return false, err
		}
		if min.After(max) {
			return false, nil
		}
		return !day.Before(min) && !day.After(max), nil
	}

	cmp, err := parseDay(compare)
	if err != nil {
		return false, err
	}
	switch op {
	case OpEquals:
		return day.Equal(cmp), nil
	case OpNotEquals:
		return !day.Equal(cmp), nil
	case OpGreaterThan:
		return day.After(cmp), nil
	case OpGreaterThanOrEqual:
		return !day.Before(cmp), nil
	case OpLessThan:
		return day.Before(cmp), nil
	case OpLessThanOrEqual:
		return !day.After(cmp), nil
	}
	return false, fmt.Errorf("operator %q not valid for date fields", op)
}

func evaluateString(v, op, compare string, caseSensitive bool) (bool, error) {
	subject, needle := v, compare
	if !caseSensitive {
		subject = strings.ToLower(subject)
		needle = strings.ToLower(needle)
	}

	switch op {
	case OpEquals:
		return subject == needle, nil
	case OpNotEquals:
		return subject != needle, nil
	case OpContains:
		return strings.Contains(subject, needle), nil
	case OpNotContains:
		return !strings.Contains(subject, needle), nil
	case OpStartsWith:
		return strings.HasPrefix(subject, needle), nil
	case OpEndsWith:
		return strings.HasSuffix(subject, needle), nil
	case OpIsEmpty:
		return v == "", nil
	case OpIsNotEmpty:
		return v != "", nil
	case OpRegex:
		re, err := compilePattern(compare, caseSensitive)
		if err != nil {
			return false, err
		}
		return re.MatchString(v), nil
	case OpWildcard:
		re, err := compilePattern(wildcardToRegex(compare), caseSensitive)
		if err != nil {
			return false, err
		}
		return re.MatchString(v), nil
	case OpIn, OpNotIn:
		found := false
		for _, item := range splitList(compare) {
			if caseSensitive {
				if v == item {
					found = true
					break
				}
			} else if strings.EqualFold(v, item) {
				found = true
				break
			}
		}
		if op == OpIn {
			return found, nil
		}
		return !found, nil
	}
	return false, fmt.Errorf("operator %q not valid for string fields", op)
}

// evaluateList applies a string operator elementwise: the list matches when
// any element satisfies the operator. Emptiness checks look at the list
// itself, not its elements.
func evaluateList(items []string, op, compare string, caseSensitive bool) (bool, error) {
	switch op {
	case OpIsEmpty:
		return len(items) == 0, nil
	case OpIsNotEmpty:
		return len(items) > 0, nil
	}
	for _, item := range items {
		ok, err := evaluateString(item, op, compare, caseSensitive)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// compilePattern guards user-supplied regular expressions: a malformed
// pattern surfaces as a configuration error, never a panic.
func compilePattern(pattern string, caseSensitive bool) (*regexp.Regexp, error) {
	if !caseSensitive {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %v", pattern, err)
	}
	return re, nil
}

// wildcardToRegex translates */? glob syntax into an anchored regex.
func wildcardToRegex(pattern string) string {
	quoted := regexp.QuoteMeta(pattern)
	quoted = strings.ReplaceAll(quoted, `\*`, ".*")
	quoted = strings.ReplaceAll(quoted, `\?`, ".")
	return "^" + quoted + "$"
}

func splitList(compare string) []string {
	parts := strings.Split(compare, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

func splitBetween(compare string) (string, string, error) {
	parts := strings.SplitN(compare, ",", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("between expects %q, got %q", "min,max", compare)
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), nil
}

func parseBetweenDecimals(compare string) (decimal.Decimal, decimal.Decimal, error) {
	minStr, maxStr, err := splitBetween(compare)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	min, err := decimal.NewFromString(minStr)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("invalid between minimum %q", minStr)
	}
	max, err := decimal.NewFromString(maxStr)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("invalid between maximum %q", maxStr)
	}
	return min, max, nil
}

func parseDay(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date comparison value %q", s)
	}
	return t, nil
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
