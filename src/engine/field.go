package engine

import (
	"fmt"
	"sort"

	"ledger-server/src/models"
)

// Condition fields. Entity-referencing fields (category, merchant, account)
// extract the referenced entity's display name so conditions compare against
// human-readable text, not ids.
const (
	FieldAmount        = "amount"
	FieldDescription   = "description"
	FieldPartner       = "partner"
	FieldCategory      = "category"
	FieldMerchant      = "merchant"
	FieldAccount       = "account"
	FieldType          = "type"
	FieldNote          = "note"
	FieldRecipientNote = "recipient_note"
	FieldPlace         = "place"
	FieldTargetIBAN    = "target_iban"
	FieldSourceIBAN    = "source_iban"
	FieldDate          = "date"
	FieldTags          = "tags"
)

var fieldKinds = map[string]Kind{
	FieldAmount:        KindNumber,
	FieldDescription:   KindString,
	FieldPartner:       KindString,
	FieldCategory:      KindString,
	FieldMerchant:      KindString,
	FieldAccount:       KindString,
	FieldType:          KindString,
	FieldNote:          KindString,
	FieldRecipientNote: KindString,
	FieldPlace:         KindString,
	FieldTargetIBAN:    KindString,
	FieldSourceIBAN:    KindString,
	FieldDate:          KindDate,
	FieldTags:          KindStringList,
}

// FieldKind reports the value kind a field extracts to.
func FieldKind(field string) (Kind, bool) {
	k, ok := fieldKinds[field]
	return k, ok
}

// Fields returns all known condition fields in stable order.
func Fields() []string {
	out := make([]string, 0, len(fieldKinds))
	for f := range fieldKinds {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Extract produces the comparison value for one field of a transaction.
// Missing or null underlying values become an empty string so is_empty and
// is_not_empty behave correctly. Unknown fields are a configuration error.
func Extract(txn *models.Transaction, field string) (Value, error) {
	switch field {
	case FieldAmount:
		return numberValue(txn.Amount), nil
	case FieldDescription:
		return stringValue(txn.Description), nil
	case FieldPartner:
		return stringValue(txn.Partner), nil
	case FieldCategory:
		return stringValue(derefString(txn.CategoryName)), nil
	case FieldMerchant:
		return stringValue(derefString(txn.MerchantName)), nil
	case FieldAccount:
		return stringValue(txn.AccountName), nil
	case FieldType:
		return stringValue(txn.Type), nil
	case FieldNote:
		return stringValue(txn.Note), nil
	case FieldRecipientNote:
		return stringValue(txn.RecipientNote), nil
	case FieldPlace:
		return stringValue(txn.Place), nil
	case FieldTargetIBAN:
		return stringValue(txn.TargetIBAN), nil
	case FieldSourceIBAN:
		return stringValue(txn.SourceIBAN), nil
	case FieldDate:
		return dateValue(txn.Date), nil
	case FieldTags:
		return listValue(txn.Tags), nil
	default:
		return Value{}, fmt.Errorf("unknown condition field %q", field)
	}
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
