package persistence

import "futures-ai-dashboard-go/internal/models"

// AccountRepository defines the interface for demo-account persistence.
// It abstracts the underlying storage mechanism (e.g., BadgerDB, in-memory)
// from the rest of the application.
type AccountRepository interface {
	// SaveAccount atomically saves the entire demo account.
	SaveAccount(account *models.DemoAccount) error

	// LoadAccount loads the demo account from storage.
	// If no account is found, it should return (nil, nil).
	LoadAccount() (*models.DemoAccount, error)

	// Close gracefully closes the connection to the database.
	Close() error
}
