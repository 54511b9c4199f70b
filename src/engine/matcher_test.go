package engine

import (
	"strings"
	"testing"

	"ledger-server/src/models"
)

func cond(field, op, value string) models.Condition {
	return models.Condition{Field: field, Operator: op, Value: value}
}

func TestMatchCondition(t *testing.T) {
	txn := sampleTransaction()

	tests := []struct {
		name      string
		condition models.Condition
		want      bool
		wantDiags bool
	}{
		{"match", cond(FieldPartner, OpEquals, "rewe"), true, false},
		{"no match", cond(FieldPartner, OpEquals, "edeka"), false, false},
		{"negated match", models.Condition{Field: FieldPartner, Operator: OpEquals, Value: "rewe", Negate: true}, false, false},
		{"negated miss", models.Condition{Field: FieldPartner, Operator: OpEquals, Value: "edeka", Negate: true}, true, false},
		{"unknown field degrades", cond("balance", OpEquals, "1"), false, true},
		{"bad pattern degrades", cond(FieldDescription, OpRegex, "(["), false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, diags := MatchCondition(txn, tt.condition)
			if got != tt.want {
				t.Errorf("MatchCondition() = %v, want %v", got, tt.want)
			}
			if (len(diags) > 0) != tt.wantDiags {
				t.Errorf("MatchCondition() diags = %v, wantDiags %v", diags, tt.wantDiags)
			}
		})
	}
}

// A broken condition must degrade to false even when negated: negation on top
// of a degraded evaluation would make a broken rule match everything.
func TestMatchConditionDegradedResultIsNotNegated(t *testing.T) {
	txn := sampleTransaction()
	broken := models.Condition{Field: FieldDescription, Operator: OpRegex, Value: "([", Negate: true}

	got, diags := MatchCondition(txn, broken)
	if got {
		t.Error("negated broken condition must not match")
	}
	if len(diags) == 0 {
		t.Error("expected a diagnostic for the broken pattern")
	}
}

func TestMatchGroup(t *testing.T) {
	txn := sampleTransaction()

	matching := cond(FieldPartner, OpEquals, "rewe")
	missing := cond(FieldPartner, OpEquals, "edeka")

	tests := []struct {
		name  string
		group models.ConditionGroup
		want  bool
	}{
		{"and all match", models.ConditionGroup{Logic: models.LogicAnd, Conditions: []models.Condition{matching, cond(FieldAmount, OpLessThan, "100")}}, true},
		{"and one misses", models.ConditionGroup{Logic: models.LogicAnd, Conditions: []models.Condition{matching, missing}}, false},
		{"or one matches", models.ConditionGroup{Logic: models.LogicOr, Conditions: []models.Condition{missing, matching}}, true},
		{"or none match", models.ConditionGroup{Logic: models.LogicOr, Conditions: []models.Condition{missing, missing}}, false},
		{"unknown logic falls back to and", models.ConditionGroup{Logic: "XOR", Conditions: []models.Condition{matching}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := MatchGroup(txn, tt.group)
			if got != tt.want {
				t.Errorf("MatchGroup() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatchRuleGroupsAreOrdered(t *testing.T) {
	txn := sampleTransaction()

	rule := &models.Rule{
		ConditionGroups: []models.ConditionGroup{
			{
				Logic: models.LogicAnd,
				Order: 1,
				Conditions: []models.Condition{
					cond(FieldPartner, OpEquals, "edeka"),
				},
			},
			{
				Logic: models.LogicAnd,
				Order: 0,
				Conditions: []models.Condition{
					cond(FieldPartner, OpEquals, "rewe"),
					cond(FieldAmount, OpBetween, "20, 30"),
				},
			},
		},
	}

	matched, diags := MatchRule(txn, rule)
	if !matched {
		t.Fatalf("MatchRule() = false, diags %v", diags)
	}
}

func TestMatchRuleNoGroupMatches(t *testing.T) {
	txn := sampleTransaction()

	rule := &models.Rule{
		ConditionGroups: []models.ConditionGroup{
			{Logic: models.LogicAnd, Conditions: []models.Condition{cond(FieldPartner, OpEquals, "edeka")}},
			{Logic: models.LogicAnd, Conditions: []models.Condition{cond(FieldAmount, OpGreaterThan, "1000")}},
		},
	}

	if matched, _ := MatchRule(txn, rule); matched {
		t.Error("MatchRule() = true, want false")
	}
}

// Subscription catcher: (partner contains netflix OR spotify) via an OR
// group, combined with an amount guard in a second OR'd group.
func TestMatchRuleRealisticShape(t *testing.T) {
	txn := sampleTransaction()
	txn.Partner = "Spotify AB"

	rule := &models.Rule{
		ConditionGroups: []models.ConditionGroup{
			{
				Logic: models.LogicOr,
				Conditions: []models.Condition{
					cond(FieldPartner, OpContains, "netflix"),
					cond(FieldPartner, OpContains, "spotify"),
				},
			},
			{
				Logic: models.LogicAnd,
				Conditions: []models.Condition{
					cond(FieldAmount, OpGreaterThan, "500"),
				},
			},
		},
	}

	matched, diags := MatchRule(txn, rule)
	if !matched {
		t.Fatalf("MatchRule() = false, diags %v", diags)
	}
}

func TestMatchRuleDiagnosticsAccumulate(t *testing.T) {
	txn := sampleTransaction()

	rule := &models.Rule{
		ConditionGroups: []models.ConditionGroup{
			{Logic: models.LogicAnd, Conditions: []models.Condition{cond("bogus", OpEquals, "1")}},
			{Logic: models.LogicAnd, Conditions: []models.Condition{cond(FieldDescription, OpRegex, "([")}},
		},
	}

	matched, diags := MatchRule(txn, rule)
	if matched {
		t.Error("rule with only broken conditions must not match")
	}
	if len(diags) != 2 {
		t.Fatalf("got %d diagnostics, want 2: %v", len(diags), diags)
	}
	if !strings.Contains(diags[0], "bogus") {
		t.Errorf("first diagnostic should name the unknown field, got %q", diags[0])
	}
}
