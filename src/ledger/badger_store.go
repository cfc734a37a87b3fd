package ledger

import (
	"fmt"
	"os"

	"github.com/dgraph-io/badger"
	"github.com/sirupsen/logrus"

	cm "github.com/mahalanet/mahala/src/common"
)

const (
	accountPrefix = "account"
	lastDayKey    = "distribution_last_day"
)

// BadgerStore implements Store on top of a badger database.
type BadgerStore struct {
	db            *badger.DB
	path          string
	needBootstrap bool
}

// NewBadgerStore creates a brand new database at path.
func NewBadgerStore(path string, logger *logrus.Entry) (*BadgerStore, error) {
	if err := os.MkdirAll(path, 0700); err != nil {
		return nil, err
	}

	handle, err := openBadger(path, logger)
	if err != nil {
		return nil, err
	}

	return &BadgerStore{
		db:   handle,
		path: path,
	}, nil
}

// LoadBadgerStore opens an existing database. The accounts it contains are
// loaded by the Ledger that uses it.
func LoadBadgerStore(path string, logger *logrus.Entry) (*BadgerStore, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	handle, err := openBadger(path, logger)
	if err != nil {
		return nil, err
	}

	return &BadgerStore{
		db:            handle,
		path:          path,
		needBootstrap: true,
	}, nil
}

// LoadOrCreateBadgerStore opens the database at path, creating it if it does
// not exist.
func LoadOrCreateBadgerStore(path string, logger *logrus.Entry) (*BadgerStore, error) {
	store, err := LoadBadgerStore(path, logger)

	if err != nil {
		store, err = NewBadgerStore(path, logger)

		if err != nil {
			return nil, err
		}
	}

	return store, nil
}

func openBadger(path string, logger *logrus.Entry) (*badger.DB, error) {
	opts := badger.DefaultOptions(path)
	opts.SyncWrites = true
	if logger != nil {
		opts.Logger = logger.WithField("prefix", "badger")
	}
	return badger.Open(opts)
}

func accountKey(id string) []byte {
	return []byte(fmt.Sprintf("%s_%s", accountPrefix, id))
}

// NeedBootstrap reports whether the store was opened on an existing database.
func (s *BadgerStore) NeedBootstrap() bool {
	return s.needBootstrap
}

// StorePath ...
func (s *BadgerStore) StorePath() string {
	return s.path
}

// SaveAccounts implements Store. All the accounts are written in a single
// transaction.
func (s *BadgerStore) SaveAccounts(accounts ...Account) error {
	tx := s.db.NewTransaction(true)
	defer tx.Discard()

	for _, a := range accounts {
		val, err := marshalAccount(a)
		if err != nil {
			return err
		}
		//insert [account_id] => [account bytes]
		if err := tx.Set(accountKey(a.ID), val); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// LoadAccounts implements Store.
func (s *BadgerStore) LoadAccounts() ([]Account, error) {
	res := []Account{}

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(accountPrefix + "_")

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()

			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}

			a, err := unmarshalAccount(val)
			if err != nil {
				return cm.NewStoreErr("Account", cm.Corrupted, string(item.Key()))
			}

			res = append(res, a)
		}

		return nil
	})

	return res, err
}

// SetLastDistributionDay implements Store.
func (s *BadgerStore) SetLastDistributionDay(day string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(lastDayKey), []byte(day))
	})
}

// LastDistributionDay implements Store.
func (s *BadgerStore) LastDistributionDay() (string, error) {
	var day []byte

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(lastDayKey))
		if err != nil {
			return err
		}
		day, err = item.ValueCopy(nil)
		return err
	})

	if err != nil {
		return "", mapError(err, "LastDistributionDay", lastDayKey)
	}

	return string(day), nil
}

// Close implements Store.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func isDBKeyNotFound(err error) bool {
	return err == badger.ErrKeyNotFound
}

func mapError(err error, name, key string) error {
	if err != nil {
		if isDBKeyNotFound(err) {
			return cm.NewStoreErr(name, cm.KeyNotFound, key)
		}
	}
	return err
}
