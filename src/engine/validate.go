package engine

import (
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"

	"ledger-server/src/models"
)

// ValidateRule checks a rule definition before it is saved: structural
// requirements (at least one condition group, no empty groups, at least one
// action), field/operator compatibility, and comparison values that can be
// proven malformed up front (patterns, numbers, dates, between ranges).
// Returns one message per problem; an empty slice means the rule is valid.
func ValidateRule(rule *models.Rule) []string {
	var problems []string

	if rule.Name == "" {
		problems = append(problems, "rule name is required")
	}
	if !models.ValidTriggerKind(rule.Trigger) {
		problems = append(problems, fmt.Sprintf("unknown trigger kind %q", rule.Trigger))
	}
	if len(rule.ConditionGroups) == 0 {
		problems = append(problems, "rule needs at least one condition group")
	}
	if len(rule.Actions) == 0 {
		problems = append(problems, "rule needs at least one action")
	}

	for gi, g := range rule.ConditionGroups {
		if g.Logic != models.LogicAnd && g.Logic != models.LogicOr {
			problems = append(problems, fmt.Sprintf("group %d: unknown logic %q", gi+1, g.Logic))
		}
		if len(g.Conditions) == 0 {
			problems = append(problems, fmt.Sprintf("group %d: empty condition group", gi+1))
		}
		for ci, c := range g.Conditions {
			problems = append(problems, validateCondition(gi+1, ci+1, c)...)
		}
	}

	for ai, a := range rule.Actions {
		problems = append(problems, validateAction(ai+1, a)...)
	}

	return problems
}

func validateCondition(group, pos int, c models.Condition) []string {
	prefix := fmt.Sprintf("group %d condition %d", group, pos)

	kind, ok := FieldKind(c.Field)
	if !ok {
		return []string{fmt.Sprintf("%s: unknown field %q", prefix, c.Field)}
	}
	if !OperatorValidForField(c.Field, c.Operator) {
		return []string{fmt.Sprintf("%s: operator %q not valid for %s field %q", prefix, c.Operator, kind, c.Field)}
	}

	var problems []string
	switch c.Operator {
	case OpRegex:
		if _, err := regexp.Compile(c.Value); err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", prefix, err))
		}
	case OpWildcard:
		if _, err := regexp.Compile(wildcardToRegex(c.Value)); err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", prefix, err))
		}
	case OpBetween:
		switch kind {
		case KindNumber:
			if _, _, err := parseBetweenDecimals(c.Value); err != nil {
				problems = append(problems, fmt.Sprintf("%s: %v", prefix, err))
			}
		case KindDate:
			minStr, maxStr, err := splitBetween(c.Value)
			if err != nil {
				problems = append(problems, fmt.Sprintf("%s: %v", prefix, err))
				break
			}
			if _, err := parseDay(minStr); err != nil {
				problems = append(problems, fmt.Sprintf("%s: %v", prefix, err))
			}
			if _, err := parseDay(maxStr); err != nil {
				problems = append(problems, fmt.Sprintf("%s: %v", prefix, err))
			}
		}
	case OpIsEmpty, OpIsNotEmpty:
		// no comparison value
	default:
		switch kind {
		case KindNumber:
			if _, err := decimal.NewFromString(c.Value); err != nil {
				problems = append(problems, fmt.Sprintf("%s: invalid numeric comparison value %q", prefix, c.Value))
			}
		case KindDate:
			if _, err := parseDay(c.Value); err != nil {
				problems = append(problems, fmt.Sprintf("%s: %v", prefix, err))
			}
		}
	}
	return problems
}

func validateAction(pos int, a models.Action) []string {
	prefix := fmt.Sprintf("action %d", pos)

	if !ValidActionType(a.Type) {
		return []string{fmt.Sprintf("%s: unknown action type %q", prefix, a.Type)}
	}

	switch a.Type {
	case ActionRemoveAllTags, ActionMarkReconciled:
		// no value
	case ActionSetType:
		if !models.ValidTransactionType(a.Value) {
			return []string{fmt.Sprintf("%s: unknown transaction type %q", prefix, a.Value)}
		}
	default:
		if a.Value == "" {
			return []string{fmt.Sprintf("%s: %s needs a value", prefix, a.Type)}
		}
	}
	return nil
}
