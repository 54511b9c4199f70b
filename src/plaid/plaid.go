package plaid

import (
	"log"

	"github.com/plaid/plaid-go/v41/plaid"
)

// NewPlaidClient builds the API client used by the bank-sync handlers.
// PLAID_ENV selects sandbox or production; anything else is a deployment
// mistake, caught at startup.
func NewPlaidClient(clientID, secret, env string) *plaid.APIClient {
	configuration := plaid.NewConfiguration()
	configuration.AddDefaultHeader("PLAID-CLIENT-ID", clientID)
	configuration.AddDefaultHeader("PLAID-SECRET", secret)

	switch env {
	case "sandbox":
		configuration.UseEnvironment(plaid.Sandbox)
	case "production":
		configuration.UseEnvironment(plaid.Production)
	default:
		log.Fatalf("Unsupported Plaid environment %q (want sandbox or production)", env)
	}

	return plaid.NewAPIClient(configuration)
}
