package engine

import (
	"strings"
	"testing"

	"ledger-server/src/models"
)

func validRule() *models.Rule {
	return &models.Rule{
		Name:    "categorize groceries",
		Trigger: models.TriggerOnCreate,
		ConditionGroups: []models.ConditionGroup{
			{
				Logic: models.LogicAnd,
				Conditions: []models.Condition{
					{Field: FieldPartner, Operator: OpContains, Value: "rewe"},
					{Field: FieldAmount, Operator: OpBetween, Value: "0, 200"},
				},
			},
		},
		Actions: []models.Action{
			{Type: ActionCreateCategoryIfNone, Value: "Groceries"},
		},
	}
}

func TestValidateRuleAcceptsValid(t *testing.T) {
	if problems := ValidateRule(validRule()); len(problems) != 0 {
		t.Errorf("unexpected problems: %v", problems)
	}
}

func TestValidateRule(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.Rule)
		want   string
	}{
		{"missing name", func(r *models.Rule) { r.Name = "" }, "name is required"},
		{"bad trigger", func(r *models.Rule) { r.Trigger = "hourly" }, "unknown trigger"},
		{"no groups", func(r *models.Rule) { r.ConditionGroups = nil }, "at least one condition group"},
		{"no actions", func(r *models.Rule) { r.Actions = nil }, "at least one action"},
		{"empty group", func(r *models.Rule) { r.ConditionGroups[0].Conditions = nil }, "empty condition group"},
		{"bad logic", func(r *models.Rule) { r.ConditionGroups[0].Logic = "XOR" }, "unknown logic"},
		{"unknown field", func(r *models.Rule) { r.ConditionGroups[0].Conditions[0].Field = "balance" }, "unknown field"},
		{"operator kind mismatch", func(r *models.Rule) {
			r.ConditionGroups[0].Conditions[0] = models.Condition{Field: FieldAmount, Operator: OpContains, Value: "1"}
		}, "not valid for"},
		{"bad regex", func(r *models.Rule) {
			r.ConditionGroups[0].Conditions[0] = models.Condition{Field: FieldDescription, Operator: OpRegex, Value: "(["}
		}, "error parsing regexp"},
		{"bad numeric value", func(r *models.Rule) {
			r.ConditionGroups[0].Conditions[1].Value = "abc, 200"
		}, "invalid between minimum"},
		{"bad date value", func(r *models.Rule) {
			r.ConditionGroups[0].Conditions[0] = models.Condition{Field: FieldDate, Operator: OpEquals, Value: "tomorrow"}
		}, "invalid date"},
		{"unknown action", func(r *models.Rule) { r.Actions[0].Type = "explode" }, "unknown action type"},
		{"action missing value", func(r *models.Rule) { r.Actions[0].Value = "" }, "needs a value"},
		{"bad set_type value", func(r *models.Rule) {
			r.Actions[0] = models.Action{Type: ActionSetType, Value: "loan"}
		}, "unknown transaction type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := validRule()
			tt.mutate(rule)
			problems := ValidateRule(rule)
			if len(problems) == 0 {
				t.Fatal("expected at least one problem")
			}
			found := false
			for _, p := range problems {
				if strings.Contains(p, tt.want) {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("problems %v missing %q", problems, tt.want)
			}
		})
	}
}

func TestValidateRuleValuelessActions(t *testing.T) {
	rule := validRule()
	rule.Actions = []models.Action{
		{Type: ActionRemoveAllTags},
		{Type: ActionMarkReconciled},
	}
	if problems := ValidateRule(rule); len(problems) != 0 {
		t.Errorf("valueless actions should validate: %v", problems)
	}
}
