package engine

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"ledger-server/src/models"
)

// fakeStore is an in-memory EntityStore. It records every persisting call so
// tests can assert that dry runs touch nothing.
type fakeStore struct {
	entities map[models.EntityKind]map[int64]string
	nextID   int64
	calls    []string
	failOn   string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		entities: map[models.EntityKind]map[int64]string{
			models.EntityCategory: {},
			models.EntityMerchant: {},
			models.EntityTag:      {},
		},
		nextID: 100,
	}
}

func (s *fakeStore) addEntity(kind models.EntityKind, id int64, name string) {
	s.entities[kind][id] = name
}

func (s *fakeStore) call(name string) error {
	s.calls = append(s.calls, name)
	if s.failOn == name {
		return fmt.Errorf("%s failed", name)
	}
	return nil
}

func (s *fakeStore) FindOrCreateByName(ctx context.Context, userID int64, kind models.EntityKind, name string) (int64, error) {
	if err := s.call("FindOrCreateByName"); err != nil {
		return 0, err
	}
	for id, n := range s.entities[kind] {
		if n == name {
			return id, nil
		}
	}
	s.nextID++
	s.entities[kind][s.nextID] = name
	return s.nextID, nil
}

func (s *fakeStore) EntityName(ctx context.Context, userID int64, kind models.EntityKind, id int64) (string, error) {
	name, ok := s.entities[kind][id]
	if !ok {
		return "", ErrNotFound
	}
	return name, nil
}

func (s *fakeStore) SetCategory(ctx context.Context, txnID, categoryID int64) error {
	return s.call("SetCategory")
}
func (s *fakeStore) SetMerchant(ctx context.Context, txnID, merchantID int64) error {
	return s.call("SetMerchant")
}
func (s *fakeStore) AttachTag(ctx context.Context, txnID, tagID int64) error {
	return s.call("AttachTag")
}
func (s *fakeStore) DetachTag(ctx context.Context, txnID, tagID int64) error {
	return s.call("DetachTag")
}
func (s *fakeStore) DetachAllTags(ctx context.Context, txnID int64) error {
	return s.call("DetachAllTags")
}
func (s *fakeStore) SetDescription(ctx context.Context, txnID int64, description string) error {
	return s.call("SetDescription")
}
func (s *fakeStore) SetNote(ctx context.Context, txnID int64, note string) error {
	return s.call("SetNote")
}
func (s *fakeStore) SetType(ctx context.Context, txnID int64, txnType string) error {
	return s.call("SetType")
}
func (s *fakeStore) MarkReconciled(ctx context.Context, txnID int64, at time.Time) error {
	return s.call("MarkReconciled")
}

type fakeNotifier struct {
	messages []string
}

func (n *fakeNotifier) Send(ctx context.Context, userID int64, message string) error {
	n.messages = append(n.messages, message)
	return nil
}

func actionRule(actions ...models.Action) *models.Rule {
	return &models.Rule{ID: 1, UserID: 7, Actions: actions}
}

func TestApplyActionsInOrder(t *testing.T) {
	store := newFakeStore()
	store.addEntity(models.EntityCategory, 5, "Groceries")
	notifier := &fakeNotifier{}
	exec := &Executor{Store: store, Notifier: notifier}

	txn := sampleTransaction()
	rule := actionRule(
		models.Action{Type: ActionSendNotification, Value: "matched", Order: 2},
		models.Action{Type: ActionSetCategory, Value: "5", Order: 0},
		models.Action{Type: ActionAddTag, Value: "missing-tag-id", Order: 1},
	)

	executed, diags, err := exec.Apply(context.Background(), rule, txn, false)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	want := []string{`set category to "Groceries"`, `send notification "matched"`}
	if !reflect.DeepEqual(executed, want) {
		t.Errorf("executed = %v, want %v", executed, want)
	}
	// the malformed tag id degrades to a diagnostic, not a failure
	if len(diags) != 1 {
		t.Fatalf("diags = %v, want exactly one", diags)
	}
	if notifier.messages[0] != "matched" {
		t.Errorf("notification = %v", notifier.messages)
	}
}

func TestApplyStopProcessingAction(t *testing.T) {
	store := newFakeStore()
	exec := &Executor{Store: store, Notifier: &fakeNotifier{}}

	txn := sampleTransaction()
	rule := actionRule(
		models.Action{Type: ActionSetNote, Value: "first", Order: 0, StopProcessing: true},
		models.Action{Type: ActionSetDescription, Value: "never", Order: 1},
	)

	executed, _, err := exec.Apply(context.Background(), rule, txn, false)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if len(executed) != 1 {
		t.Fatalf("executed = %v, want the stop action only", executed)
	}
	if txn.Description == "never" {
		t.Error("action after stop_processing must not run")
	}
}

func TestApplyPersistenceErrorIsFatal(t *testing.T) {
	store := newFakeStore()
	store.failOn = "SetNote"
	exec := &Executor{Store: store, Notifier: &fakeNotifier{}}

	txn := sampleTransaction()
	rule := actionRule(
		models.Action{Type: ActionSetNote, Value: "x", Order: 0},
		models.Action{Type: ActionSetDescription, Value: "y", Order: 1},
	)

	executed, _, err := exec.Apply(context.Background(), rule, txn, false)
	if err == nil {
		t.Fatal("expected persistence error")
	}
	if len(executed) != 0 {
		t.Errorf("executed = %v, want none", executed)
	}
	if txn.Description == "y" {
		t.Error("actions after a persistence failure must not run")
	}
}

func TestApplyDryRunTouchesNothing(t *testing.T) {
	store := newFakeStore()
	store.addEntity(models.EntityCategory, 5, "Groceries")
	notifier := &fakeNotifier{}
	exec := &Executor{Store: store, Notifier: notifier}

	txn := sampleTransaction()
	rule := actionRule(
		models.Action{Type: ActionSetCategory, Value: "5", Order: 0},
		models.Action{Type: ActionCreateTagIfNone, Value: "reviewed", Order: 1},
		models.Action{Type: ActionSendNotification, Value: "hello", Order: 2},
		models.Action{Type: ActionMarkReconciled, Order: 3},
	)

	executed, diags, err := exec.Apply(context.Background(), rule, txn, true)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if len(diags) != 0 {
		t.Fatalf("diags = %v", diags)
	}
	if len(store.calls) != 0 {
		t.Errorf("dry run made store calls: %v", store.calls)
	}
	if len(notifier.messages) != 0 {
		t.Errorf("dry run sent notifications: %v", notifier.messages)
	}
	if len(executed) != 4 {
		t.Errorf("executed = %v, want 4 descriptions", executed)
	}
	// in-memory state still advances so later rules see the changes
	if txn.CategoryName == nil || *txn.CategoryName != "Groceries" {
		t.Error("dry run should update the in-memory category")
	}
	if !txn.Reconciled {
		t.Error("dry run should update the in-memory reconciled flag")
	}
}

// Dry run and real run must describe the same input identically.
func TestApplyDryRunDescriptionParity(t *testing.T) {
	rule := actionRule(
		models.Action{Type: ActionSetCategory, Value: "5", Order: 0},
		models.Action{Type: ActionCreateTagIfNone, Value: "reviewed", Order: 1},
		models.Action{Type: ActionAppendNote, Value: " [auto]", Order: 2},
	)

	run := func(dryRun bool) []string {
		store := newFakeStore()
		store.addEntity(models.EntityCategory, 5, "Groceries")
		exec := &Executor{Store: store, Notifier: &fakeNotifier{}}
		txn := sampleTransaction()
		executed, _, err := exec.Apply(context.Background(), rule, txn, dryRun)
		if err != nil {
			t.Fatalf("Apply(dryRun=%v) error = %v", dryRun, err)
		}
		return executed
	}

	if wet, dry := run(false), run(true); !reflect.DeepEqual(wet, dry) {
		t.Errorf("dry-run descriptions diverge:\nreal: %v\ndry:  %v", wet, dry)
	}
}

func TestApplyCreateIfMissingIsIdempotent(t *testing.T) {
	store := newFakeStore()
	exec := &Executor{Store: store, Notifier: &fakeNotifier{}}
	rule := actionRule(models.Action{Type: ActionCreateCategoryIfNone, Value: "Subscriptions"})

	txn := sampleTransaction()
	if _, _, err := exec.Apply(context.Background(), rule, txn, false); err != nil {
		t.Fatalf("first Apply() error = %v", err)
	}
	if _, _, err := exec.Apply(context.Background(), rule, txn, false); err != nil {
		t.Fatalf("second Apply() error = %v", err)
	}

	if got := len(store.entities[models.EntityCategory]); got != 1 {
		t.Errorf("got %d categories, want 1", got)
	}
}

func TestApplyDanglingEntityReferenceDegrades(t *testing.T) {
	store := newFakeStore()
	exec := &Executor{Store: store, Notifier: &fakeNotifier{}}
	rule := actionRule(
		models.Action{Type: ActionSetMerchant, Value: "999", Order: 0},
		models.Action{Type: ActionSetNote, Value: "still runs", Order: 1},
	)

	txn := sampleTransaction()
	executed, diags, err := exec.Apply(context.Background(), rule, txn, false)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if len(diags) != 1 {
		t.Fatalf("diags = %v, want one for the dangling reference", diags)
	}
	if len(executed) != 1 || txn.Note != "still runs" {
		t.Errorf("later actions should still run, executed = %v", executed)
	}
}

func TestApplyTagMutations(t *testing.T) {
	store := newFakeStore()
	store.addEntity(models.EntityTag, 9, "food")
	exec := &Executor{Store: store, Notifier: &fakeNotifier{}}

	txn := sampleTransaction() // already tagged "food"
	rule := actionRule(models.Action{Type: ActionRemoveTag, Value: "9", Order: 0})
	if _, _, err := exec.Apply(context.Background(), rule, txn, false); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if len(txn.Tags) != 0 {
		t.Errorf("tags = %v, want empty", txn.Tags)
	}

	rule = actionRule(models.Action{Type: ActionAddTag, Value: "9", Order: 0})
	if _, _, err := exec.Apply(context.Background(), rule, txn, false); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if !reflect.DeepEqual(txn.Tags, []string{"food"}) {
		t.Errorf("tags = %v, want [food]", txn.Tags)
	}
}

func TestIsConfigError(t *testing.T) {
	if !isConfigError(configErrorf("bad %s", "value")) {
		t.Error("configErrorf should produce a config error")
	}
	if isConfigError(errors.New("db down")) {
		t.Error("plain errors are not config errors")
	}
}
