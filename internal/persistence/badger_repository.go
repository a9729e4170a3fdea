package persistence

import (
	"encoding/json"
	"errors"

	"futures-ai-dashboard-go/internal/models"

	"github.com/dgraph-io/badger/v3"
)

// accountKey is the single fixed key the whole account lives under.
var accountKey = []byte("demo_account")

// badgerRepository is the BadgerDB implementation of the AccountRepository.
type badgerRepository struct {
	db *badger.DB
}

// NewBadgerRepository creates and returns a new repository instance connected
// to a BadgerDB database at dbPath.
func NewBadgerRepository(dbPath string) (AccountRepository, error) {
	opts := badger.DefaultOptions(dbPath)
	// Badger's own logging is noisy; errors still surface from DB operations.
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &badgerRepository{db: db}, nil
}

// SaveAccount overwrites the stored account with a JSON snapshot of the whole
// structure. Every ledger mutation funnels through here, so the stored record
// is always a complete, self-consistent account.
func (r *badgerRepository) SaveAccount(account *models.DemoAccount) error {
	data, err := json.Marshal(account)
	if err != nil {
		return err
	}

	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(accountKey, data)
	})
}

// LoadAccount loads the account from storage.
// A missing key returns (nil, nil): a fresh store, not an error.
func (r *badgerRepository) LoadAccount() (*models.DemoAccount, error) {
	var account models.DemoAccount

	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(accountKey)
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			if len(val) == 0 {
				return errors.New("account value is empty in database")
			}
			return json.Unmarshal(val, &account)
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &account, nil
}

// Close gracefully closes the connection to the database.
func (r *badgerRepository) Close() error {
	return r.db.Close()
}
