package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func num(s string) Value {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return numberValue(d)
}

func day(s string) Value {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return dateValue(t)
}

func TestEvaluateNumber(t *testing.T) {
	tests := []struct {
		name    string
		value   Value
		op      string
		compare string
		want    bool
		wantErr bool
	}{
		{"equals", num("42.50"), OpEquals, "42.5", true, false},
		{"equals trailing zeros", num("10"), OpEquals, "10.00", true, false},
		{"not equals", num("42.50"), OpNotEquals, "42.5", false, false},
		{"greater than", num("100"), OpGreaterThan, "99.99", true, false},
		{"greater than equal boundary", num("100"), OpGreaterThanOrEqual, "100", true, false},
		{"less than", num("-5"), OpLessThan, "0", true, false},
		{"less than equal boundary", num("0"), OpLessThanOrEqual, "0", true, false},
		{"between inclusive low", num("10"), OpBetween, "10, 20", true, false},
		{"between inclusive high", num("20"), OpBetween, "10, 20", true, false},
		{"between outside", num("20.01"), OpBetween, "10, 20", false, false},
		{"between min greater than max never matches", num("15"), OpBetween, "20, 10", false, false},
		{"between malformed range", num("15"), OpBetween, "10", false, true},
		{"between bad minimum", num("15"), OpBetween, "abc, 20", false, true},
		{"invalid comparison value", num("15"), OpEquals, "abc", false, true},
		{"string operator on number", num("15"), OpContains, "1", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Evaluate(tt.value, tt.op, tt.compare, false)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Evaluate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Evaluate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluateDate(t *testing.T) {
	tests := []struct {
		name    string
		value   Value
		op      string
		compare string
		want    bool
		wantErr bool
	}{
		{"equals", day("2026-03-15"), OpEquals, "2026-03-15", true, false},
		{"not equals", day("2026-03-15"), OpNotEquals, "2026-03-16", true, false},
		{"after", day("2026-03-15"), OpGreaterThan, "2026-03-14", true, false},
		{"before", day("2026-03-15"), OpLessThan, "2026-03-16", true, false},
		{"between inclusive", day("2026-03-01"), OpBetween, "2026-03-01, 2026-03-31", true, false},
		{"between reversed never matches", day("2026-03-15"), OpBetween, "2026-03-31, 2026-03-01", false, false},
		{"bad comparison date", day("2026-03-15"), OpEquals, "not-a-date", false, true},
		{"string operator on date", day("2026-03-15"), OpContains, "2026", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Evaluate(tt.value, tt.op, tt.compare, false)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Evaluate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Evaluate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluateDateIgnoresTimeOfDay(t *testing.T) {
	v := dateValue(time.Date(2026, 3, 15, 23, 45, 0, 0, time.UTC))
	got, err := Evaluate(v, OpEquals, "2026-03-15", false)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if !got {
		t.Error("date comparison should truncate to day precision")
	}
}

func TestEvaluateString(t *testing.T) {
	tests := []struct {
		name          string
		value         string
		op            string
		compare       string
		caseSensitive bool
		want          bool
		wantErr       bool
	}{
		{"equals case insensitive", "REWE Berlin", OpEquals, "rewe berlin", false, true, false},
		{"equals case sensitive", "REWE Berlin", OpEquals, "rewe berlin", true, false, false},
		{"not equals", "REWE", OpNotEquals, "EDEKA", false, true, false},
		{"contains", "REWE Markt Berlin", OpContains, "markt", false, true, false},
		{"contains case sensitive miss", "REWE Markt", OpContains, "markt", true, false, false},
		{"not contains", "REWE Markt", OpNotContains, "EDEKA", false, true, false},
		{"starts with", "REWE Markt", OpStartsWith, "rewe", false, true, false},
		{"ends with", "REWE Markt", OpEndsWith, "MARKT", false, true, false},
		{"is empty on empty", "", OpIsEmpty, "", false, true, false},
		{"is empty on non-empty", "x", OpIsEmpty, "", false, false, false},
		{"is not empty", "x", OpIsNotEmpty, "", false, true, false},
		{"regex", "PayPal *STEAM 123", OpRegex, `paypal \*steam \d+`, false, true, false},
		{"regex case sensitive", "PayPal", OpRegex, "paypal", true, false, false},
		{"regex invalid pattern", "x", OpRegex, "([", false, false, true},
		{"wildcard star", "AMZN Mktp DE*123", OpWildcard, "amzn*", false, true, false},
		{"wildcard question mark", "tx42", OpWildcard, "tx4?", false, true, false},
		{"wildcard anchored", "my AMZN order", OpWildcard, "amzn*", false, false, false},
		{"wildcard literal dot", "a.b", OpWildcard, "a.b", false, true, false},
		{"in list", "groceries", OpIn, "rent, groceries, fuel", false, true, false},
		{"in list miss", "travel", OpIn, "rent, groceries, fuel", false, false, false},
		{"in list case sensitive", "Groceries", OpIn, "groceries", true, false, false},
		{"not in list", "travel", OpNotIn, "rent, groceries", false, true, false},
		{"number operator on string", "abc", OpGreaterThan, "5", false, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Evaluate(stringValue(tt.value), tt.op, tt.compare, tt.caseSensitive)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Evaluate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Evaluate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluateList(t *testing.T) {
	tags := listValue([]string{"food", "recurring"})

	tests := []struct {
		name    string
		value   Value
		op      string
		compare string
		want    bool
	}{
		{"contains any element", tags, OpEquals, "food", true},
		{"no element matches", tags, OpEquals, "travel", false},
		{"elementwise contains", tags, OpContains, "recur", true},
		{"is empty on empty list", listValue(nil), OpIsEmpty, "", true},
		{"is empty on populated list", tags, OpIsEmpty, "", false},
		{"is not empty", tags, OpIsNotEmpty, "", true},
		{"in across elements", tags, OpIn, "travel, recurring", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Evaluate(tt.value, tt.op, tt.compare, false)
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Evaluate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOperatorValidForField(t *testing.T) {
	tests := []struct {
		field string
		op    string
		want  bool
	}{
		{FieldAmount, OpBetween, true},
		{FieldAmount, OpContains, false},
		{FieldDate, OpLessThan, true},
		{FieldDate, OpRegex, false},
		{FieldDescription, OpWildcard, true},
		{FieldDescription, OpGreaterThan, false},
		{FieldTags, OpIsEmpty, true},
		{"no_such_field", OpEquals, false},
	}
	for _, tt := range tests {
		if got := OperatorValidForField(tt.field, tt.op); got != tt.want {
			t.Errorf("OperatorValidForField(%s, %s) = %v, want %v", tt.field, tt.op, got, tt.want)
		}
	}
}
