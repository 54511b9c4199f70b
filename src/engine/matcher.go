package engine

import (
	"fmt"
	"sort"

	"ledger-server/src/models"
)

// MatchCondition evaluates one condition against one transaction. Rule
// configuration problems (unknown field, malformed pattern) degrade to a
// non-match plus a diagnostic; negation is not applied to a degraded result
// so a broken condition can never match by accident.
func MatchCondition(txn *models.Transaction, c models.Condition) (bool, []string) {
	value, err := Extract(txn, c.Field)
	if err != nil {
		return false, []string{fmt.Sprintf("condition %d: %v", c.ID, err)}
	}
	ok, err := Evaluate(value, c.Operator, c.Value, c.CaseSensitive)
	if err != nil {
		return false, []string{fmt.Sprintf("condition %d on %s: %v", c.ID, c.Field, err)}
	}
	if c.Negate {
		return !ok, nil
	}
	return ok, nil
}

// MatchGroup combines a group's conditions with its AND/OR logic. Conditions
// are visited in stored order for reproducible diagnostics. An empty group
// is vacuously true under AND; validation rejects empty groups at save time.
func MatchGroup(txn *models.Transaction, g models.ConditionGroup) (bool, []string) {
	conditions := make([]models.Condition, len(g.Conditions))
	copy(conditions, g.Conditions)
	sort.SliceStable(conditions, func(i, j int) bool {
		return conditions[i].Order < conditions[j].Order
	})

	var diags []string
	if g.Logic == models.LogicOr {
		for _, c := range conditions {
			ok, d := MatchCondition(txn, c)
			diags = append(diags, d...)
			if ok {
				return true, diags
			}
		}
		return false, diags
	}

	// AND is the default for any other stored logic value
	for _, c := range conditions {
		ok, d := MatchCondition(txn, c)
		diags = append(diags, d...)
		if !ok {
			return false, diags
		}
	}
	return true, diags
}

// MatchRule reports whether any of the rule's condition groups matches the
// transaction. Groups are always combined with OR; the per-group logic
// operator only governs the conditions inside each group.
func MatchRule(txn *models.Transaction, rule *models.Rule) (bool, []string) {
	groups := make([]models.ConditionGroup, len(rule.ConditionGroups))
	copy(groups, rule.ConditionGroups)
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Order < groups[j].Order
	})

	var diags []string
	for _, g := range groups {
		ok, d := MatchGroup(txn, g)
		diags = append(diags, d...)
		if ok {
			return true, diags
		}
	}
	return false, diags
}
