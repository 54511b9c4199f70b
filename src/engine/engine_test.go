package engine

import (
	"context"
	"fmt"
	"reflect"
	"testing"

	"ledger-server/src/models"
)

type fakeLog struct {
	entries []models.ExecutionLogEntry
	fail    bool
}

func (l *fakeLog) Record(ctx context.Context, entry *models.ExecutionLogEntry) error {
	if l.fail {
		return fmt.Errorf("log write failed")
	}
	l.entries = append(l.entries, *entry)
	return nil
}

func testEngine(store *fakeStore, logRec *fakeLog) *Engine {
	return &Engine{Store: store, Notifier: &fakeNotifier{}, Log: logRec}
}

func matchAllRule(id int64, trigger models.TriggerKind) models.Rule {
	return models.Rule{
		ID:      id,
		UserID:  7,
		Trigger: trigger,
		Active:  true,
		ConditionGroups: []models.ConditionGroup{
			{Logic: models.LogicAnd, Conditions: []models.Condition{cond(FieldAmount, OpGreaterThan, "0")}},
		},
		Actions: []models.Action{{Type: ActionSetNote, Value: "seen"}},
	}
}

func TestEvaluateOwnershipPrecondition(t *testing.T) {
	eng := testEngine(newFakeStore(), &fakeLog{})
	txn := *sampleTransaction()

	foreign := matchAllRule(1, models.TriggerManual)
	foreign.UserID = 99

	_, err := eng.Evaluate(context.Background(), 7, []models.Transaction{txn}, []models.Rule{foreign}, Selector{}, Options{Trigger: models.TriggerManual})
	if err == nil {
		t.Fatal("foreign rule must fail the whole call")
	}

	foreignTxn := txn
	foreignTxn.UserID = 99
	_, err = eng.Evaluate(context.Background(), 7, []models.Transaction{foreignTxn}, []models.Rule{matchAllRule(1, models.TriggerManual)}, Selector{}, Options{Trigger: models.TriggerManual})
	if err == nil {
		t.Fatal("foreign transaction must fail the whole call")
	}
}

func TestEvaluateRuleLevelStopProcessing(t *testing.T) {
	store := newFakeStore()
	eng := testEngine(store, &fakeLog{})
	txn := *sampleTransaction()

	first := matchAllRule(1, models.TriggerManual)
	first.StopProcessing = true
	first.Order = 0
	second := matchAllRule(2, models.TriggerManual)
	second.Order = 1

	result, err := eng.Evaluate(context.Background(), 7, []models.Transaction{txn}, []models.Rule{first, second}, Selector{}, Options{Trigger: models.TriggerManual})
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if got := result.Results[0].MatchedRules; !reflect.DeepEqual(got, []int64{1}) {
		t.Errorf("matched rules = %v, want [1] only", got)
	}
}

func TestEvaluatePersistenceErrorIsolatedPerTransaction(t *testing.T) {
	store := newFakeStore()
	store.failOn = "SetNote"
	eng := testEngine(store, &fakeLog{})

	first := *sampleTransaction()
	second := *sampleTransaction()
	second.ID = 2

	result, err := eng.Evaluate(context.Background(), 7,
		[]models.Transaction{first, second},
		[]models.Rule{matchAllRule(1, models.TriggerManual)},
		Selector{}, Options{Trigger: models.TriggerManual})
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if result.Processed != 2 {
		t.Errorf("processed = %d, want 2", result.Processed)
	}
	if result.Results[0].Error == "" {
		t.Error("first transaction should carry the persistence error")
	}
	if result.Results[1].Error == "" {
		t.Error("second transaction should also fail independently")
	}
}

func TestEvaluateTriggerFiltering(t *testing.T) {
	eng := testEngine(newFakeStore(), &fakeLog{})
	txn := *sampleTransaction()

	onCreate := matchAllRule(1, models.TriggerOnCreate)
	manual := matchAllRule(2, models.TriggerManual)
	inactive := matchAllRule(3, models.TriggerOnCreate)
	inactive.Active = false

	result, err := eng.Evaluate(context.Background(), 7, []models.Transaction{txn},
		[]models.Rule{onCreate, manual, inactive},
		Selector{}, Options{Trigger: models.TriggerOnCreate})
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if got := result.Results[0].MatchedRules; !reflect.DeepEqual(got, []int64{1}) {
		t.Errorf("matched rules = %v, want [1]", got)
	}
}

func TestEvaluateExplicitRuleIDsBypassTrigger(t *testing.T) {
	eng := testEngine(newFakeStore(), &fakeLog{})
	txn := *sampleTransaction()

	onCreate := matchAllRule(1, models.TriggerOnCreate)

	result, err := eng.Evaluate(context.Background(), 7, []models.Transaction{txn},
		[]models.Rule{onCreate},
		Selector{RuleIDs: []int64{1}}, Options{Trigger: models.TriggerManual})
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if !result.Results[0].Matched {
		t.Error("explicitly selected rule should run regardless of its trigger")
	}
}

func TestEvaluateGroupSelector(t *testing.T) {
	eng := testEngine(newFakeStore(), &fakeLog{})
	txn := *sampleTransaction()

	inGroup := matchAllRule(1, models.TriggerManual)
	inGroup.GroupID = 10
	outOfGroup := matchAllRule(2, models.TriggerManual)
	outOfGroup.GroupID = 20

	result, err := eng.Evaluate(context.Background(), 7, []models.Transaction{txn},
		[]models.Rule{inGroup, outOfGroup},
		Selector{GroupID: 10}, Options{Trigger: models.TriggerManual})
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if got := result.Results[0].MatchedRules; !reflect.DeepEqual(got, []int64{1}) {
		t.Errorf("matched rules = %v, want [1]", got)
	}
}

func TestEvaluateDryRunDoesNotLeakIntoBatch(t *testing.T) {
	store := newFakeStore()
	eng := testEngine(store, &fakeLog{})
	txns := []models.Transaction{*sampleTransaction()}

	result, err := eng.Evaluate(context.Background(), 7, txns,
		[]models.Rule{matchAllRule(1, models.TriggerManual)},
		Selector{}, Options{DryRun: true, Trigger: models.TriggerManual})
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if !result.DryRun || result.Matched != 1 {
		t.Fatalf("result = %+v", result)
	}
	if txns[0].Note == "seen" {
		t.Error("dry run mutated the caller's transaction")
	}
	if len(store.calls) != 0 {
		t.Errorf("dry run made store calls: %v", store.calls)
	}
}

// remove_tag compacts the tag slice, so a shallow copy would let a dry run
// rewrite the caller's backing array.
func TestEvaluateDryRunRemoveTagDoesNotLeakIntoBatch(t *testing.T) {
	store := newFakeStore()
	store.addEntity(models.EntityTag, 9, "food")
	eng := testEngine(store, &fakeLog{})

	txns := []models.Transaction{*sampleTransaction()}
	txns[0].Tags = []string{"food", "recurring"}

	rule := matchAllRule(1, models.TriggerManual)
	rule.Actions = []models.Action{{Type: ActionRemoveTag, Value: "9"}}

	result, err := eng.Evaluate(context.Background(), 7, txns,
		[]models.Rule{rule},
		Selector{}, Options{DryRun: true, Trigger: models.TriggerManual})
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if result.Matched != 1 {
		t.Fatalf("matched = %d, want 1", result.Matched)
	}
	if !reflect.DeepEqual(txns[0].Tags, []string{"food", "recurring"}) {
		t.Errorf("dry run mutated the caller's tags: %v", txns[0].Tags)
	}
	if len(store.calls) != 0 {
		t.Errorf("dry run made store calls: %v", store.calls)
	}
}

func TestEvaluateExecutionLogEntries(t *testing.T) {
	logRec := &fakeLog{}
	eng := testEngine(newFakeStore(), logRec)
	txn := *sampleTransaction()

	matching := matchAllRule(1, models.TriggerManual)
	missing := matchAllRule(2, models.TriggerManual)
	missing.ConditionGroups[0].Conditions = []models.Condition{cond(FieldPartner, OpEquals, "edeka")}

	result, err := eng.Evaluate(context.Background(), 7, []models.Transaction{txn},
		[]models.Rule{matching, missing},
		Selector{}, Options{Trigger: models.TriggerManual})
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}

	// unmatched evaluations are not logged by default
	if len(logRec.entries) != 1 {
		t.Fatalf("got %d log entries, want 1: %+v", len(logRec.entries), logRec.entries)
	}
	entry := logRec.entries[0]
	if !entry.Matched || *entry.RuleID != 1 || entry.RunID != result.RunID {
		t.Errorf("entry = %+v", entry)
	}
	if entry.Context.Trigger != models.TriggerManual || entry.Context.DryRun {
		t.Errorf("entry context = %+v", entry.Context)
	}

	// with LogUnmatched the miss is recorded too
	logRec.entries = nil
	eng.LogUnmatched = true
	if _, err := eng.Evaluate(context.Background(), 7, []models.Transaction{txn},
		[]models.Rule{matching, missing},
		Selector{}, Options{Trigger: models.TriggerManual}); err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if len(logRec.entries) != 2 {
		t.Fatalf("got %d log entries with LogUnmatched, want 2", len(logRec.entries))
	}
}

func TestEvaluateLogFailureIsBestEffort(t *testing.T) {
	eng := testEngine(newFakeStore(), &fakeLog{fail: true})
	txn := *sampleTransaction()

	result, err := eng.Evaluate(context.Background(), 7, []models.Transaction{txn},
		[]models.Rule{matchAllRule(1, models.TriggerManual)},
		Selector{}, Options{Trigger: models.TriggerManual})
	if err != nil {
		t.Fatalf("a failed audit write must not abort the run: %v", err)
	}
	if result.Matched != 1 {
		t.Errorf("matched = %d, want 1", result.Matched)
	}
	if len(result.Diagnostics) == 0 {
		t.Error("expected a diagnostic for the failed log write")
	}
}

// Mutations from an earlier rule must be visible to later rules in the same
// run, in both real and dry-run mode.
func TestEvaluateLaterRulesSeeEarlierMutations(t *testing.T) {
	for _, dryRun := range []bool{false, true} {
		store := newFakeStore()
		eng := testEngine(store, &fakeLog{})
		txn := *sampleTransaction()

		tagger := models.Rule{
			ID: 1, UserID: 7, Trigger: models.TriggerManual, Active: true, Order: 0,
			ConditionGroups: []models.ConditionGroup{
				{Logic: models.LogicAnd, Conditions: []models.Condition{cond(FieldPartner, OpEquals, "rewe")}},
			},
			Actions: []models.Action{{Type: ActionCreateTagIfNone, Value: "groceries"}},
		}
		dependent := models.Rule{
			ID: 2, UserID: 7, Trigger: models.TriggerManual, Active: true, Order: 1,
			ConditionGroups: []models.ConditionGroup{
				{Logic: models.LogicAnd, Conditions: []models.Condition{cond(FieldTags, OpEquals, "groceries")}},
			},
			Actions: []models.Action{{Type: ActionSetNote, Value: "tagged"}},
		}

		result, err := eng.Evaluate(context.Background(), 7, []models.Transaction{txn},
			[]models.Rule{tagger, dependent},
			Selector{}, Options{DryRun: dryRun, Trigger: models.TriggerManual})
		if err != nil {
			t.Fatalf("Evaluate(dryRun=%v) error = %v", dryRun, err)
		}
		if got := result.Results[0].MatchedRules; !reflect.DeepEqual(got, []int64{1, 2}) {
			t.Errorf("dryRun=%v: matched rules = %v, want [1 2]", dryRun, got)
		}
	}
}
