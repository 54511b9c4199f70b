package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind tags the comparison value produced by field extraction.
type Kind int

const (
	KindNumber Kind = iota
	KindString
	KindDate
	KindStringList
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindDate:
		return "date"
	case KindStringList:
		return "string_list"
	}
	return "unknown"
}

// Value is the tagged comparison value a condition operates on. Exactly one
// of the payload fields is meaningful, selected by Kind.
type Value struct {
	Kind   Kind
	Number decimal.Decimal
	Str    string
	Date   time.Time
	List   []string
}

func numberValue(d decimal.Decimal) Value { return Value{Kind: KindNumber, Number: d} }
func stringValue(s string) Value          { return Value{Kind: KindString, Str: s} }
func dateValue(t time.Time) Value         { return Value{Kind: KindDate, Date: t} }
func listValue(l []string) Value          { return Value{Kind: KindStringList, List: l} }
