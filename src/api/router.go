package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/plaid/plaid-go/v41/plaid"

	"ledger-server/src/config"
	"ledger-server/src/handlers"
	"ledger-server/src/middleware"
	"ledger-server/src/models"
)

func NewRouter(pool *pgxpool.Pool, plaidClient *plaid.APIClient, cfg config.Config) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.CORSMiddleware)
	r.Use(middleware.DemoModeMiddleware(cfg.DemoMode))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", handlers.Login(pool))
		r.Post("/register", handlers.Register(pool))
		r.Post("/plaid/webhook", handlers.PlaidWebhook(plaidClient, pool, cfg.RuleLogUnmatched))

		// Protected routes
		r.With(middleware.JWTAuthMiddleware).Group(func(r chi.Router) {
			// User
			r.Get("/user/{user_id}", handlers.GetUser(pool))
			r.Put("/user", handlers.UpdateUser(pool))
			r.Post("/user/change-password", handlers.ChangePassword(pool))
			r.Delete("/user", handlers.DeleteUser(pool))

			// Accounts
			r.Get("/accounts", handlers.GetAccounts(pool))
			r.Post("/accounts", handlers.CreateAccount(pool))
			r.Delete("/accounts/{account_id}", handlers.DeleteAccount(pool))

			// Transactions
			r.Get("/transactions", handlers.GetTransactions(pool))
			r.Post("/transactions", handlers.CreateTransaction(pool, cfg.RuleLogUnmatched))
			r.Put("/transactions/{transaction_id}", handlers.UpdateTransaction(pool, cfg.RuleLogUnmatched))
			r.Delete("/transactions/{transaction_id}", handlers.DeleteTransaction(pool))

			// Reference entities
			r.Get("/categories", handlers.GetCategories(pool))
			r.Post("/categories", handlers.CreateEntity(pool, models.EntityCategory))
			r.Get("/merchants", handlers.GetMerchants(pool))
			r.Post("/merchants", handlers.CreateEntity(pool, models.EntityMerchant))
			r.Get("/tags", handlers.GetTags(pool))
			r.Post("/tags", handlers.CreateEntity(pool, models.EntityTag))

			// Rule groups
			r.Post("/rule-groups", handlers.CreateRuleGroup(pool))
			r.Get("/rule-groups", handlers.GetAllRuleGroups(pool))
			r.Get("/rule-groups/{group_id}", handlers.GetRuleGroupByID(pool))
			r.Put("/rule-groups/{group_id}", handlers.UpdateRuleGroup(pool))
			r.Delete("/rule-groups/{group_id}", handlers.DeleteRuleGroup(pool))

			// Rules
			r.Get("/rules/options", handlers.GetRuleOptions())
			r.Post("/rules", handlers.CreateRule(pool))
			r.Post("/rules/test", handlers.TestRule(pool))
			r.Post("/rules/trigger", handlers.TriggerRules(pool, cfg.RuleLogUnmatched))
			r.Get("/rules", handlers.GetAllRules(pool))
			r.Get("/rules/{rule_id}", handlers.GetRuleByID(pool))
			r.Put("/rules/{rule_id}", handlers.UpdateRule(pool))
			r.Delete("/rules/{rule_id}", handlers.DeleteRule(pool))
			r.Post("/rules/{rule_id}/duplicate", handlers.DuplicateRule(pool))
			r.Get("/rules/{rule_id}/stats", handlers.GetRuleStats(pool))
			r.Get("/rules/{rule_id}/logs", handlers.GetRuleExecutionLogs(pool))

			// Notifications
			r.Get("/notifications", handlers.GetNotifications(pool))
			r.Post("/notifications/{notification_id}/read", handlers.MarkNotificationRead(pool))

			// Plaid
			r.Post("/plaid/create-link-token", handlers.CreateLinkToken(plaidClient, pool))
			r.Post("/plaid/exchange-public-token", handlers.ExchangePublicToken(plaidClient, pool))
			r.Get("/plaid/items", handlers.GetPlaidItems(pool))
			r.Post("/plaid/items/{item_id}/sync", handlers.SyncTransactions(plaidClient, pool, cfg.RuleLogUnmatched))
		})

		// Super Admin Routes
		r.With(middleware.JWTAuthMiddleware, middleware.SuperAdminMiddleware).Group(func(r chi.Router) {
			r.Post("/admin/whitelisted-emails", handlers.CreateWhitelistedEmail(pool))
			r.Get("/admin/whitelisted-emails", handlers.GetAllWhitelistedEmails(pool))
			r.Delete("/admin/whitelisted-emails/{email_id}", handlers.DeleteWhitelistedEmail(pool))
		})
	})

	return r
}
