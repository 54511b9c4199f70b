package models

import "time"

// TriggerKind is the event that causes a rule to be considered.
type TriggerKind string

const (
	TriggerOnCreate TriggerKind = "on-create"
	TriggerOnUpdate TriggerKind = "on-update"
	TriggerManual   TriggerKind = "manual"
)

func ValidTriggerKind(t TriggerKind) bool {
	switch t {
	case TriggerOnCreate, TriggerOnUpdate, TriggerManual:
		return true
	}
	return false
}

// GroupLogic combines the conditions inside one condition group. Groups
// themselves are always OR'd together at the rule level.
type GroupLogic string

const (
	LogicAnd GroupLogic = "AND"
	LogicOr  GroupLogic = "OR"
)

// RuleGroup is an organizational container for rules. It cannot be deleted
// while it still owns rules.
type RuleGroup struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Order       int       `json:"order"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Rule owns its condition groups and actions as a strict aggregate: nested
// collections are created, replaced and deleted together with the rule.
type Rule struct {
	ID              int64            `json:"id"`
	UserID          int64            `json:"user_id"`
	GroupID         int64            `json:"group_id"`
	Name            string           `json:"name"`
	Description     string           `json:"description"`
	Trigger         TriggerKind      `json:"trigger"`
	StopProcessing  bool             `json:"stop_processing"`
	Order           int              `json:"order"`
	Active          bool             `json:"active"`
	ConditionGroups []ConditionGroup `json:"condition_groups"`
	Actions         []Action         `json:"actions"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

type ConditionGroup struct {
	ID         int64       `json:"id"`
	RuleID     int64       `json:"rule_id"`
	Logic      GroupLogic  `json:"logic"`
	Order      int         `json:"order"`
	Conditions []Condition `json:"conditions"`
}

type Condition struct {
	ID            int64  `json:"id"`
	GroupID       int64  `json:"group_id"`
	Field         string `json:"field"`
	Operator      string `json:"operator"`
	Value         string `json:"value"`
	CaseSensitive bool   `json:"case_sensitive"`
	Negate        bool   `json:"negate"`
	Order         int    `json:"order"`
}

type Action struct {
	ID             int64  `json:"id"`
	RuleID         int64  `json:"rule_id"`
	Type           string `json:"type"`
	Value          string `json:"value"`
	Order          int    `json:"order"`
	StopProcessing bool   `json:"stop_processing"`
}
