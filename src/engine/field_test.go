package engine

import (
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"ledger-server/src/models"
)

func sampleTransaction() *models.Transaction {
	category := "Groceries"
	return &models.Transaction{
		ID:           1,
		UserID:       7,
		AccountID:    3,
		AccountName:  "Checking",
		Amount:       decimal.RequireFromString("23.45"),
		Description:  "REWE Markt",
		Partner:      "REWE",
		Type:         models.TransactionTypeWithdrawal,
		Note:         "weekly shop",
		Place:        "Berlin",
		Date:         time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		CategoryName: &category,
		Tags:         []string{"food"},
	}
}

func TestExtract(t *testing.T) {
	txn := sampleTransaction()

	tests := []struct {
		field    string
		wantKind Kind
		wantStr  string
	}{
		{FieldAmount, KindNumber, ""},
		{FieldDescription, KindString, "REWE Markt"},
		{FieldPartner, KindString, "REWE"},
		{FieldCategory, KindString, "Groceries"},
		{FieldMerchant, KindString, ""}, // unset reference reads as empty
		{FieldAccount, KindString, "Checking"},
		{FieldType, KindString, "withdrawal"},
		{FieldNote, KindString, "weekly shop"},
		{FieldPlace, KindString, "Berlin"},
		{FieldDate, KindDate, ""},
		{FieldTags, KindStringList, ""},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			v, err := Extract(txn, tt.field)
			if err != nil {
				t.Fatalf("Extract(%s) error = %v", tt.field, err)
			}
			if v.Kind != tt.wantKind {
				t.Errorf("Extract(%s) kind = %s, want %s", tt.field, v.Kind, tt.wantKind)
			}
			if tt.wantKind == KindString && v.Str != tt.wantStr {
				t.Errorf("Extract(%s) = %q, want %q", tt.field, v.Str, tt.wantStr)
			}
		})
	}
}

func TestExtractUnknownField(t *testing.T) {
	if _, err := Extract(sampleTransaction(), "balance"); err == nil {
		t.Error("expected error for unknown field")
	}
}

func TestExtractNilReferenceIsEmpty(t *testing.T) {
	txn := sampleTransaction()
	txn.CategoryName = nil

	v, err := Extract(txn, FieldCategory)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	ok, err := Evaluate(v, OpIsEmpty, "", false)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if !ok {
		t.Error("unset category should satisfy is_empty")
	}
}

func TestFieldsCoverEveryKind(t *testing.T) {
	fields := Fields()
	if !sort.StringsAreSorted(fields) {
		t.Error("Fields() should be sorted")
	}
	if len(fields) != 14 {
		t.Errorf("Fields() returned %d fields, want 14", len(fields))
	}
	for _, f := range fields {
		if _, ok := FieldKind(f); !ok {
			t.Errorf("FieldKind(%s) missing", f)
		}
	}
}
