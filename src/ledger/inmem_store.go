package ledger

import (
	"sync"

	cm "github.com/mahalanet/mahala/src/common"
)

// InmemStore implements Store in memory. Nothing survives a restart.
type InmemStore struct {
	lock     sync.RWMutex
	accounts map[string]Account
	lastDay  string
	closed   bool
}

// NewInmemStore ...
func NewInmemStore() *InmemStore {
	return &InmemStore{
		accounts: make(map[string]Account),
	}
}

// SaveAccounts implements Store.
func (s *InmemStore) SaveAccounts(accounts ...Account) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.closed {
		return cm.NewStoreErr("Accounts", cm.Closed, "")
	}

	for _, a := range accounts {
		s.accounts[a.ID] = a.copy()
	}

	return nil
}

// LoadAccounts implements Store.
func (s *InmemStore) LoadAccounts() ([]Account, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	if s.closed {
		return nil, cm.NewStoreErr("Accounts", cm.Closed, "")
	}

	res := make([]Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		res = append(res, a.copy())
	}

	return res, nil
}

// SetLastDistributionDay implements Store.
func (s *InmemStore) SetLastDistributionDay(day string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.closed {
		return cm.NewStoreErr("LastDistributionDay", cm.Closed, "")
	}

	s.lastDay = day

	return nil
}

// LastDistributionDay implements Store.
func (s *InmemStore) LastDistributionDay() (string, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	if s.lastDay == "" {
		return "", cm.NewStoreErr("LastDistributionDay", cm.KeyNotFound, lastDayKey)
	}

	return s.lastDay, nil
}

// Close implements Store.
func (s *InmemStore) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.closed = true

	return nil
}
