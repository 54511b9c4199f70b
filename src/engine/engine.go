package engine

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"ledger-server/src/models"
)

// LogRecorder persists execution log entries. Append-only.
type LogRecorder interface {
	Record(ctx context.Context, entry *models.ExecutionLogEntry) error
}

// Selector narrows the candidate rule set for one run. An explicit RuleIDs
// subset (manual or test invocation) bypasses trigger filtering; otherwise
// active rules matching the run's trigger are selected. GroupID optionally
// restricts to one rule group.
type Selector struct {
	RuleIDs []int64
	GroupID int64
}

// Options control one evaluation run.
type Options struct {
	DryRun  bool
	Trigger models.TriggerKind
}

// TransactionResult is the per-transaction outcome of a run.
type TransactionResult struct {
	TransactionID int64    `json:"transaction_id"`
	Matched       bool     `json:"matched"`
	MatchedRules  []int64  `json:"matched_rules"`
	Actions       []string `json:"actions"`
	Error         string   `json:"error,omitempty"`
}

// RunResult accumulates everything a caller needs to report a run: the
// per-transaction results plus totals.
type RunResult struct {
	RunID       uuid.UUID           `json:"run_id"`
	Trigger     models.TriggerKind  `json:"trigger"`
	DryRun      bool                `json:"dry_run"`
	Processed   int                 `json:"processed"`
	Matched     int                 `json:"matched"`
	Results     []TransactionResult `json:"results"`
	Diagnostics []string            `json:"diagnostics,omitempty"`
}

// Engine evaluates rules over batches of transactions. One invocation is
// single-threaded: transactions are processed sequentially, rule by rule.
type Engine struct {
	Store    EntityStore
	Notifier NotificationSink
	Log      LogRecorder

	// LogUnmatched controls whether non-matching evaluations get a log
	// entry too. Off by default to bound log growth on large batches.
	LogUnmatched bool
}

// Evaluate runs the selected rules over the batch. Ownership of every rule
// and transaction is checked up front; a violation fails the whole call.
// Persistence failures inside one transaction's processing are recorded on
// that transaction's result and the run continues with the next one.
func (e *Engine) Evaluate(ctx context.Context, userID int64, txns []models.Transaction, rules []models.Rule, sel Selector, opts Options) (*RunResult, error) {
	for i := range rules {
		if rules[i].UserID != userID {
			return nil, fmt.Errorf("rule %d is not owned by user %d", rules[i].ID, userID)
		}
	}
	for i := range txns {
		if txns[i].UserID != userID {
			return nil, fmt.Errorf("transaction %d is not owned by user %d", txns[i].ID, userID)
		}
	}

	selected := selectRules(rules, sel, opts.Trigger)
	executor := &Executor{Store: e.Store, Notifier: e.Notifier}

	result := &RunResult{
		RunID:   uuid.New(),
		Trigger: opts.Trigger,
		DryRun:  opts.DryRun,
		Results: make([]TransactionResult, 0, len(txns)),
	}

	for i := range txns {
		// Work on a copy so dry runs never leak mutations to the caller's
		// batch; real runs persist through the store anyway. The tag slice
		// needs its own backing array or tag actions would write through.
		txn := txns[i]
		if len(txn.Tags) > 0 {
			txn.Tags = append([]string(nil), txn.Tags...)
		}
		txnResult := TransactionResult{TransactionID: txn.ID}

		for ri := range selected {
			rule := &selected[ri]
			started := time.Now()

			matched, diags := MatchRule(&txn, rule)
			result.Diagnostics = append(result.Diagnostics, diags...)

			if !matched {
				if e.LogUnmatched {
					e.record(ctx, result, rule.ID, txn.ID, false, nil, opts, started, "")
				}
				continue
			}

			executed, adiags, err := executor.Apply(ctx, rule, &txn, opts.DryRun)
			result.Diagnostics = append(result.Diagnostics, adiags...)
			txnResult.Matched = true
			txnResult.MatchedRules = append(txnResult.MatchedRules, rule.ID)
			txnResult.Actions = append(txnResult.Actions, executed...)

			if err != nil {
				txnResult.Error = err.Error()
				e.record(ctx, result, rule.ID, txn.ID, true, executed, opts, started, err.Error())
				break
			}
			e.record(ctx, result, rule.ID, txn.ID, true, executed, opts, started, "")

			if rule.StopProcessing {
				break
			}
		}

		if txnResult.Matched {
			result.Matched++
		}
		result.Processed++
		result.Results = append(result.Results, txnResult)
	}

	return result, nil
}

// record appends one execution log entry, best effort: a failed audit write
// becomes a run diagnostic rather than aborting the batch.
func (e *Engine) record(ctx context.Context, result *RunResult, ruleID, txnID int64, matched bool, actions []string, opts Options, started time.Time, execErr string) {
	if e.Log == nil {
		return
	}
	entry := &models.ExecutionLogEntry{
		RunID:         result.RunID,
		RuleID:        &ruleID,
		TransactionID: &txnID,
		Matched:       matched,
		Actions:       actions,
		Context: models.ExecutionContext{
			Trigger:    opts.Trigger,
			DryRun:     opts.DryRun,
			DurationMS: time.Since(started).Milliseconds(),
			Error:      execErr,
		},
	}
	if err := e.Log.Record(ctx, entry); err != nil {
		log.Printf("ERROR: Failed to record execution log for rule %d, transaction %d: %v", ruleID, txnID, err)
		result.Diagnostics = append(result.Diagnostics, fmt.Sprintf("execution log write failed for rule %d: %v", ruleID, err))
	}
}

// selectRules resolves the candidate rule set for a run, ordered by the
// rules' stored order.
func selectRules(rules []models.Rule, sel Selector, trigger models.TriggerKind) []models.Rule {
	var out []models.Rule
	byID := make(map[int64]bool, len(sel.RuleIDs))
	for _, id := range sel.RuleIDs {
		byID[id] = true
	}

	for _, r := range rules {
		if !r.Active {
			continue
		}
		if sel.GroupID != 0 && r.GroupID != sel.GroupID {
			continue
		}
		if len(sel.RuleIDs) > 0 {
			if !byID[r.ID] {
				continue
			}
		} else if r.Trigger != trigger {
			continue
		}
		out = append(out, r)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID < out[j].ID
	})
	return out
}
