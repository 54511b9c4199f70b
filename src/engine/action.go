package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"ledger-server/src/models"
)

// Rule action types.
const (
	ActionSetCategory          = "set_category"
	ActionSetMerchant          = "set_merchant"
	ActionAddTag               = "add_tag"
	ActionRemoveTag            = "remove_tag"
	ActionRemoveAllTags        = "remove_all_tags"
	ActionSetDescription       = "set_description"
	ActionAppendDescription    = "append_description"
	ActionPrependDescription   = "prepend_description"
	ActionSetNote              = "set_note"
	ActionAppendNote           = "append_note"
	ActionSetType              = "set_type"
	ActionMarkReconciled       = "mark_reconciled"
	ActionSendNotification     = "send_notification"
	ActionCreateCategoryIfNone = "create_category_if_not_exists"
	ActionCreateMerchantIfNone = "create_merchant_if_not_exists"
	ActionCreateTagIfNone      = "create_tag_if_not_exists"
)

// ActionTypes lists every supported action type in a stable order for the
// UI options endpoint.
func ActionTypes() []string {
	return []string{
		ActionSetCategory,
		ActionSetMerchant,
		ActionAddTag,
		ActionRemoveTag,
		ActionRemoveAllTags,
		ActionSetDescription,
		ActionAppendDescription,
		ActionPrependDescription,
		ActionSetNote,
		ActionAppendNote,
		ActionSetType,
		ActionMarkReconciled,
		ActionSendNotification,
		ActionCreateCategoryIfNone,
		ActionCreateMerchantIfNone,
		ActionCreateTagIfNone,
	}
}

func ValidActionType(t string) bool {
	for _, known := range ActionTypes() {
		if known == t {
			return true
		}
	}
	return false
}

// ErrNotFound is returned by EntityStore lookups when the referenced entity
// does not exist for the user. The executor degrades it to a diagnostic.
var ErrNotFound = errors.New("entity not found")

// EntityStore is the persistence collaborator the executor mutates
// transactions and reference entities through. FindOrCreateByName must be
// atomic (unique constraint plus conflict handling) so concurrent runs
// creating the same name resolve to a single entity.
type EntityStore interface {
	FindOrCreateByName(ctx context.Context, userID int64, kind models.EntityKind, name string) (int64, error)
	EntityName(ctx context.Context, userID int64, kind models.EntityKind, id int64) (string, error)
	SetCategory(ctx context.Context, txnID, categoryID int64) error
	SetMerchant(ctx context.Context, txnID, merchantID int64) error
	AttachTag(ctx context.Context, txnID, tagID int64) error
	DetachTag(ctx context.Context, txnID, tagID int64) error
	DetachAllTags(ctx context.Context, txnID int64) error
	SetDescription(ctx context.Context, txnID int64, description string) error
	SetNote(ctx context.Context, txnID int64, note string) error
	SetType(ctx context.Context, txnID int64, txnType string) error
	MarkReconciled(ctx context.Context, txnID int64, at time.Time) error
}

// NotificationSink delivers send_notification messages. Fire and forget.
type NotificationSink interface {
	Send(ctx context.Context, userID int64, message string) error
}

// Executor applies a matched rule's ordered action list to a transaction.
type Executor struct {
	Store    EntityStore
	Notifier NotificationSink
}

// Apply runs the rule's actions in order against the transaction. In dry-run
// mode nothing is persisted or emitted, but the returned descriptions are
// identical to a real run on the same input. The in-memory transaction is
// updated in both modes so later rules in the same run observe the mutation.
// A non-nil error is a persistence failure, fatal for this transaction only;
// diags carry degraded configuration problems.
func (e *Executor) Apply(ctx context.Context, rule *models.Rule, txn *models.Transaction, dryRun bool) (executed []string, diags []string, err error) {
	actions := make([]models.Action, len(rule.Actions))
	copy(actions, rule.Actions)
	sort.SliceStable(actions, func(i, j int) bool {
		return actions[i].Order < actions[j].Order
	})

	for _, a := range actions {
		desc, aerr := e.applyAction(ctx, a, txn, dryRun)
		if aerr != nil {
			if isConfigError(aerr) {
				diags = append(diags, fmt.Sprintf("rule %d action %d (%s): %v", rule.ID, a.ID, a.Type, aerr))
				continue
			}
			return executed, diags, fmt.Errorf("action %s: %w", a.Type, aerr)
		}
		executed = append(executed, desc)
		if a.StopProcessing {
			break
		}
	}
	return executed, diags, nil
}

// configError marks action failures caused by the rule definition rather
// than by the persistence layer.
type configError struct{ msg string }

func (e configError) Error() string { return e.msg }

func configErrorf(format string, args ...interface{}) error {
	return configError{msg: fmt.Sprintf(format, args...)}
}

func isConfigError(err error) bool {
	var ce configError
	return errors.As(err, &ce)
}

func (e *Executor) applyAction(ctx context.Context, a models.Action, txn *models.Transaction, dryRun bool) (string, error) {
	switch a.Type {
	case ActionSetCategory:
		return e.assignEntity(ctx, a, txn, models.EntityCategory, dryRun)
	case ActionSetMerchant:
		return e.assignEntity(ctx, a, txn, models.EntityMerchant, dryRun)

	case ActionAddTag:
		tagID, name, err := e.resolveEntity(ctx, txn.UserID, models.EntityTag, a.Value)
		if err != nil {
			return "", err
		}
		if !dryRun {
			if err := e.Store.AttachTag(ctx, txn.ID, tagID); err != nil {
				return "", err
			}
		}
		addTagName(txn, name)
		return fmt.Sprintf("add tag %q", name), nil

	case ActionRemoveTag:
		tagID, name, err := e.resolveEntity(ctx, txn.UserID, models.EntityTag, a.Value)
		if err != nil {
			return "", err
		}
		if !dryRun {
			if err := e.Store.DetachTag(ctx, txn.ID, tagID); err != nil {
				return "", err
			}
		}
		removeTagName(txn, name)
		return fmt.Sprintf("remove tag %q", name), nil

	case ActionRemoveAllTags:
		if !dryRun {
			if err := e.Store.DetachAllTags(ctx, txn.ID); err != nil {
				return "", err
			}
		}
		txn.Tags = nil
		return "remove all tags", nil

	case ActionSetDescription:
		return e.setDescription(ctx, txn, a.Value, dryRun, fmt.Sprintf("set description to %q", a.Value))
	case ActionAppendDescription:
		return e.setDescription(ctx, txn, txn.Description+a.Value, dryRun, fmt.Sprintf("append %q to description", a.Value))
	case ActionPrependDescription:
		return e.setDescription(ctx, txn, a.Value+txn.Description, dryRun, fmt.Sprintf("prepend %q to description", a.Value))

	case ActionSetNote:
		return e.setNote(ctx, txn, a.Value, dryRun, fmt.Sprintf("set note to %q", a.Value))
	case ActionAppendNote:
		return e.setNote(ctx, txn, txn.Note+a.Value, dryRun, fmt.Sprintf("append %q to note", a.Value))

	case ActionSetType:
		if !models.ValidTransactionType(a.Value) {
			return "", configErrorf("unknown transaction type %q", a.Value)
		}
		if !dryRun {
			if err := e.Store.SetType(ctx, txn.ID, a.Value); err != nil {
				return "", err
			}
		}
		txn.Type = a.Value
		return fmt.Sprintf("set type to %q", a.Value), nil

	case ActionMarkReconciled:
		now := time.Now().UTC()
		if !dryRun {
			if err := e.Store.MarkReconciled(ctx, txn.ID, now); err != nil {
				return "", err
			}
		}
		txn.Reconciled = true
		txn.ReconciledAt = &now
		return "mark reconciled", nil

	case ActionSendNotification:
		if !dryRun {
			if err := e.Notifier.Send(ctx, txn.UserID, a.Value); err != nil {
				return "", err
			}
		}
		return fmt.Sprintf("send notification %q", a.Value), nil

	case ActionCreateCategoryIfNone:
		return e.createIfMissing(ctx, a, txn, models.EntityCategory, dryRun)
	case ActionCreateMerchantIfNone:
		return e.createIfMissing(ctx, a, txn, models.EntityMerchant, dryRun)
	case ActionCreateTagIfNone:
		return e.createIfMissing(ctx, a, txn, models.EntityTag, dryRun)
	}
	return "", configErrorf("unknown action type %q", a.Type)
}

// assignEntity handles set_category and set_merchant: the action value is
// the referenced entity's id.
func (e *Executor) assignEntity(ctx context.Context, a models.Action, txn *models.Transaction, kind models.EntityKind, dryRun bool) (string, error) {
	id, name, err := e.resolveEntity(ctx, txn.UserID, kind, a.Value)
	if err != nil {
		return "", err
	}
	if err := e.assignResolved(ctx, txn, kind, id, name, dryRun); err != nil {
		return "", err
	}
	return fmt.Sprintf("set %s to %q", kind, name), nil
}

// createIfMissing handles the create_X_if_not_exists actions: the value is
// an entity name, resolved through the store's atomic lookup-or-create, then
// assigned like the corresponding set/add action. In dry-run no entity is
// created; the description reports what would happen.
func (e *Executor) createIfMissing(ctx context.Context, a models.Action, txn *models.Transaction, kind models.EntityKind, dryRun bool) (string, error) {
	name := a.Value
	if name == "" {
		return "", configErrorf("missing %s name", kind)
	}
	if dryRun {
		if kind == models.EntityTag {
			addTagName(txn, name)
			return fmt.Sprintf("create tag %q if missing and add it", name), nil
		}
		applyEntityToMemory(txn, kind, 0, name)
		return fmt.Sprintf("create %s %q if missing and set it", kind, name), nil
	}

	id, err := e.Store.FindOrCreateByName(ctx, txn.UserID, kind, name)
	if err != nil {
		return "", err
	}
	if kind == models.EntityTag {
		if err := e.Store.AttachTag(ctx, txn.ID, id); err != nil {
			return "", err
		}
		addTagName(txn, name)
		return fmt.Sprintf("create tag %q if missing and add it", name), nil
	}
	if err := e.assignResolved(ctx, txn, kind, id, name, false); err != nil {
		return "", err
	}
	return fmt.Sprintf("create %s %q if missing and set it", kind, name), nil
}

// resolveEntity parses an entity id out of the action value and resolves its
// display name. A malformed id or a reference to a deleted entity is a
// configuration error.
func (e *Executor) resolveEntity(ctx context.Context, userID int64, kind models.EntityKind, value string) (int64, string, error) {
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, "", configErrorf("invalid %s id %q", kind, value)
	}
	name, err := e.Store.EntityName(ctx, userID, kind, id)
	if errors.Is(err, ErrNotFound) {
		return 0, "", configErrorf("%s %d does not exist", kind, id)
	}
	if err != nil {
		return 0, "", err
	}
	return id, name, nil
}

func (e *Executor) assignResolved(ctx context.Context, txn *models.Transaction, kind models.EntityKind, id int64, name string, dryRun bool) error {
	if !dryRun {
		var err error
		switch kind {
		case models.EntityCategory:
			err = e.Store.SetCategory(ctx, txn.ID, id)
		case models.EntityMerchant:
			err = e.Store.SetMerchant(ctx, txn.ID, id)
		}
		if err != nil {
			return err
		}
	}
	applyEntityToMemory(txn, kind, id, name)
	return nil
}

func (e *Executor) setDescription(ctx context.Context, txn *models.Transaction, next string, dryRun bool, desc string) (string, error) {
	if !dryRun {
		if err := e.Store.SetDescription(ctx, txn.ID, next); err != nil {
			return "", err
		}
	}
	txn.Description = next
	return desc, nil
}

func (e *Executor) setNote(ctx context.Context, txn *models.Transaction, next string, dryRun bool, desc string) (string, error) {
	if !dryRun {
		if err := e.Store.SetNote(ctx, txn.ID, next); err != nil {
			return "", err
		}
	}
	txn.Note = next
	return desc, nil
}

func applyEntityToMemory(txn *models.Transaction, kind models.EntityKind, id int64, name string) {
	n := name
	switch kind {
	case models.EntityCategory:
		txn.CategoryName = &n
		if id != 0 {
			v := id
			txn.CategoryID = &v
		}
	case models.EntityMerchant:
		txn.MerchantName = &n
		if id != 0 {
			v := id
			txn.MerchantID = &v
		}
	}
}

func addTagName(txn *models.Transaction, name string) {
	for _, t := range txn.Tags {
		if t == name {
			return
		}
	}
	txn.Tags = append(txn.Tags, name)
}

func removeTagName(txn *models.Transaction, name string) {
	out := make([]string, 0, len(txn.Tags))
	for _, t := range txn.Tags {
		if t != name {
			out = append(out, t)
		}
	}
	txn.Tags = out
}
