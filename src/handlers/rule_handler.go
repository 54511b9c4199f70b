package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	cache "ledger-server/src/db"
	db "ledger-server/src/db/sql"
	"ledger-server/src/engine"
	"ledger-server/src/models"
)

func CreateRule(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)

		var rule models.Rule
		if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
			log.Printf("ERROR: Failed to decode create rule request body for user %d: %v", userID, err)
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		rule.UserID = userID

		if problems := engine.ValidateRule(&rule); len(problems) > 0 {
			log.Printf("ERROR: Rule validation failed for user %d: %s", userID, strings.Join(problems, "; "))
			writeValidationErrors(w, problems)
			return
		}

		created, err := db.CreateRule(r.Context(), pool, &rule)
		if err != nil {
			log.Printf("ERROR: Failed to create rule for user %d: %v", userID, err)
			http.Error(w, "failed to create rule", http.StatusInternalServerError)
			return
		}
		cache.ClearAllRuleCaches()

		log.Printf("INFO: Created rule id %d for user %d, name %s", created.ID, userID, created.Name)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(created)
	}
}

func GetAllRules(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)
		rules, err := loadRulesCached(r.Context(), pool, userID)
		if err != nil {
			log.Printf("ERROR: Failed to get rules for user %d: %v", userID, err)
			http.Error(w, "failed to get rules", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(rules)
	}
}

func GetRuleByID(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)
		ruleID, err := ruleIDParam(r)
		if err != nil {
			http.Error(w, "invalid rule id", http.StatusBadRequest)
			return
		}
		rule, err := db.GetRuleByID(r.Context(), pool, userID, ruleID)
		if err != nil {
			log.Printf("ERROR: Rule id %d not found for user %d: %v", ruleID, userID, err)
			http.Error(w, "rule not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(rule)
	}
}

func UpdateRule(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)
		ruleID, err := ruleIDParam(r)
		if err != nil {
			http.Error(w, "invalid rule id", http.StatusBadRequest)
			return
		}

		var rule models.Rule
		if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
			log.Printf("ERROR: Failed to decode update rule request body for user %d: %v", userID, err)
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		rule.ID = ruleID
		rule.UserID = userID

		if problems := engine.ValidateRule(&rule); len(problems) > 0 {
			log.Printf("ERROR: Rule validation failed for user %d: %s", userID, strings.Join(problems, "; "))
			writeValidationErrors(w, problems)
			return
		}

		updated, err := db.UpdateRule(r.Context(), pool, &rule)
		if err != nil {
			log.Printf("ERROR: Failed to update rule id %d for user %d: %v", ruleID, userID, err)
			http.Error(w, "failed to update rule", http.StatusInternalServerError)
			return
		}
		cache.ClearAllRuleCaches()

		log.Printf("INFO: Updated rule id %d for user %d", updated.ID, userID)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(updated)
	}
}

func DeleteRule(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)
		ruleID, err := ruleIDParam(r)
		if err != nil {
			http.Error(w, "invalid rule id", http.StatusBadRequest)
			return
		}
		if err := db.DeleteRule(r.Context(), pool, userID, ruleID); err != nil {
			log.Printf("ERROR: Failed to delete rule id %d for user %d: %v", ruleID, userID, err)
			http.Error(w, "failed to delete rule", http.StatusInternalServerError)
			return
		}
		cache.ClearAllRuleCaches()

		log.Printf("INFO: Deleted rule id %d for user %d", ruleID, userID)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "rule deleted"})
	}
}

func DuplicateRule(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)
		ruleID, err := ruleIDParam(r)
		if err != nil {
			http.Error(w, "invalid rule id", http.StatusBadRequest)
			return
		}

		var req struct {
			Name string `json:"name"`
		}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&req)
		}

		dup, err := db.DuplicateRule(r.Context(), pool, userID, ruleID, req.Name)
		if err != nil {
			log.Printf("ERROR: Failed to duplicate rule id %d for user %d: %v", ruleID, userID, err)
			http.Error(w, "failed to duplicate rule", http.StatusInternalServerError)
			return
		}
		cache.ClearAllRuleCaches()

		log.Printf("INFO: Duplicated rule id %d into %d for user %d", ruleID, dup.ID, userID)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(dup)
	}
}

// TestRule dry-runs a rule (saved or not yet saved) against a selection of
// the user's transactions. Nothing is persisted; the response lists what
// each matching action would do.
func TestRule(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)

		var req struct {
			Rule           *models.Rule `json:"rule"`
			RuleIDs        []int64      `json:"rule_ids"`
			TransactionIDs []int64      `json:"transaction_ids"`
			From           string       `json:"from"`
			To             string       `json:"to"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Printf("ERROR: Failed to decode test rule request body for user %d: %v", userID, err)
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}

		var rules []models.Rule
		sel := engine.Selector{RuleIDs: req.RuleIDs}
		if req.Rule != nil {
			req.Rule.UserID = userID
			req.Rule.Active = true
			if req.Rule.Trigger == "" {
				req.Rule.Trigger = models.TriggerManual
			}
			if problems := engine.ValidateRule(req.Rule); len(problems) > 0 {
				writeValidationErrors(w, problems)
				return
			}
			rules = []models.Rule{*req.Rule}
			sel = engine.Selector{RuleIDs: []int64{req.Rule.ID}}
		} else {
			var err error
			rules, err = loadRulesCached(r.Context(), pool, userID)
			if err != nil {
				log.Printf("ERROR: Failed to load rules for test run, user %d: %v", userID, err)
				http.Error(w, "failed to load rules", http.StatusInternalServerError)
				return
			}
		}

		txns, err := selectTransactions(r.Context(), pool, userID, req.TransactionIDs, req.From, req.To)
		if err != nil {
			log.Printf("ERROR: Failed to load transactions for test run, user %d: %v", userID, err)
			http.Error(w, "failed to load transactions", http.StatusInternalServerError)
			return
		}

		eng := newEngine(pool, false)
		result, err := eng.Evaluate(r.Context(), userID, txns, rules, sel, engine.Options{
			DryRun:  true,
			Trigger: models.TriggerManual,
		})
		if err != nil {
			log.Printf("ERROR: Rule test run failed for user %d: %v", userID, err)
			http.Error(w, "rule test run failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(result)
	}
}

// TriggerRules runs the user's manual-trigger rules (or an explicit subset)
// over a selection of transactions, mutating them for real unless dry_run is
// set.
func TriggerRules(pool *pgxpool.Pool, logUnmatched bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)

		var req struct {
			RuleIDs        []int64 `json:"rule_ids"`
			GroupID        int64   `json:"group_id"`
			TransactionIDs []int64 `json:"transaction_ids"`
			From           string  `json:"from"`
			To             string  `json:"to"`
			DryRun         bool    `json:"dry_run"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Printf("ERROR: Failed to decode trigger rules request body for user %d: %v", userID, err)
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}

		rules, err := loadRulesCached(r.Context(), pool, userID)
		if err != nil {
			log.Printf("ERROR: Failed to load rules for trigger run, user %d: %v", userID, err)
			http.Error(w, "failed to load rules", http.StatusInternalServerError)
			return
		}
		txns, err := selectTransactions(r.Context(), pool, userID, req.TransactionIDs, req.From, req.To)
		if err != nil {
			log.Printf("ERROR: Failed to load transactions for trigger run, user %d: %v", userID, err)
			http.Error(w, "failed to load transactions", http.StatusInternalServerError)
			return
		}

		eng := newEngine(pool, logUnmatched)
		result, err := eng.Evaluate(r.Context(), userID, txns, rules,
			engine.Selector{RuleIDs: req.RuleIDs, GroupID: req.GroupID},
			engine.Options{DryRun: req.DryRun, Trigger: models.TriggerManual},
		)
		if err != nil {
			log.Printf("ERROR: Rule trigger run failed for user %d: %v", userID, err)
			http.Error(w, "rule run failed", http.StatusInternalServerError)
			return
		}

		if !req.DryRun && result.Matched > 0 {
			cache.ClearAllTransactionCaches()
		}
		log.Printf("INFO: Rule run %s for user %d processed %d transactions, %d matched",
			result.RunID, userID, result.Processed, result.Matched)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(result)
	}
}

func GetRuleStats(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)
		ruleID, err := ruleIDParam(r)
		if err != nil {
			http.Error(w, "invalid rule id", http.StatusBadRequest)
			return
		}

		days := 30
		if d := r.URL.Query().Get("days"); d != "" {
			days, err = strconv.Atoi(d)
			if err != nil || days <= 0 {
				http.Error(w, "invalid days parameter", http.StatusBadRequest)
				return
			}
		}

		stats, err := db.GetRuleStats(r.Context(), pool, userID, ruleID, days)
		if err != nil {
			log.Printf("ERROR: Failed to get stats for rule %d, user %d: %v", ruleID, userID, err)
			http.Error(w, "failed to get rule stats", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(stats)
	}
}

func GetRuleExecutionLogs(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)
		ruleID, err := ruleIDParam(r)
		if err != nil {
			http.Error(w, "invalid rule id", http.StatusBadRequest)
			return
		}

		limit := 0
		if l := r.URL.Query().Get("limit"); l != "" {
			limit, _ = strconv.Atoi(l)
		}

		logs, err := db.GetExecutionLogsForRule(r.Context(), pool, userID, ruleID, limit)
		if err != nil {
			log.Printf("ERROR: Failed to get execution logs for rule %d, user %d: %v", ruleID, userID, err)
			http.Error(w, "failed to get execution logs", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(logs)
	}
}

// GetRuleOptions serves the field/operator compatibility table and the
// action and trigger enumerations, for rule editor UIs.
func GetRuleOptions() http.HandlerFunc {
	type fieldOption struct {
		Field     string   `json:"field"`
		Kind      string   `json:"kind"`
		Operators []string `json:"operators"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		fields := make([]fieldOption, 0)
		for _, f := range engine.Fields() {
			kind, _ := engine.FieldKind(f)
			fields = append(fields, fieldOption{
				Field:     f,
				Kind:      kind.String(),
				Operators: engine.OperatorsForKind(kind),
			})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"fields":  fields,
			"actions": engine.ActionTypes(),
			"triggers": []models.TriggerKind{
				models.TriggerOnCreate, models.TriggerOnUpdate, models.TriggerManual,
			},
		})
	}
}

func ruleIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "rule_id"), 10, 64)
}

func writeValidationErrors(w http.ResponseWriter, problems []string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "rule validation failed",
		"errors":  problems,
	})
}

// selectTransactions resolves the transaction batch for a rule run: explicit
// ids win, then a date range, then the user's whole ledger.
func selectTransactions(ctx context.Context, pool *pgxpool.Pool, userID int64, ids []int64, from, to string) ([]models.Transaction, error) {
	if len(ids) > 0 {
		return db.GetTransactionsByIDs(ctx, pool, userID, ids)
	}
	if from != "" && to != "" {
		fromDate, err := time.Parse("2006-01-02", from)
		if err != nil {
			return nil, err
		}
		toDate, err := time.Parse("2006-01-02", to)
		if err != nil {
			return nil, err
		}
		return db.GetTransactionsByDateRange(ctx, pool, userID, fromDate, toDate)
	}
	return db.GetAllTransactions(ctx, pool, userID)
}
