package ledger

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/mahalanet/mahala/src/crypto"
)

// entry is the ledger's own copy of an account. Every read or write of data
// holds the entry's lock.
type entry struct {
	sync.Mutex
	data Account
}

func (e *entry) snapshot() Account {
	e.Lock()
	defer e.Unlock()
	return e.data.copy()
}

// Ledger owns every account of the node.
//
// The ledger lock guards the indexes (id, identity, business id) and is never
// taken while an account lock is held. Account locks are taken in ascending id
// order.
type Ledger struct {
	lock       sync.RWMutex
	accounts   map[string]*entry
	identities map[string]string
	businesses map[string]string

	hasher crypto.Hasher
	policy Policy
	store  Store

	logger *logrus.Entry
}

// NewLedger creates a Ledger and loads the accounts already in store. A nil
// store, hasher or policy is replaced by an InmemStore, a SaltedHasher and an
// OpenPolicy respectively.
func NewLedger(store Store, hasher crypto.Hasher, policy Policy, logger *logrus.Entry) (*Ledger, error) {
	if store == nil {
		store = NewInmemStore()
	}
	if hasher == nil {
		hasher = crypto.NewSaltedHasher()
	}
	if policy == nil {
		policy = OpenPolicy{}
	}
	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	l := &Ledger{
		accounts:   make(map[string]*entry),
		identities: make(map[string]string),
		businesses: make(map[string]string),
		hasher:     hasher,
		policy:     policy,
		store:      store,
		logger:     logger.WithField("prefix", "ledger"),
	}

	if err := l.bootstrap(); err != nil {
		return nil, err
	}

	return l, nil
}

func (l *Ledger) bootstrap() error {
	accounts, err := l.store.LoadAccounts()
	if err != nil {
		return fmt.Errorf("loading accounts: %w", err)
	}

	for _, a := range accounts {
		l.index(a)
	}

	if len(accounts) > 0 {
		l.logger.WithField("accounts", len(accounts)).Info("Loaded accounts from store")
	}

	return nil
}

// index adds a to the maps. Callers hold the write lock or have exclusive
// access.
func (l *Ledger) index(a Account) {
	l.accounts[a.ID] = &entry{data: a}

	switch {
	case a.Personal != nil:
		l.identities[a.Personal.IdentityDigest] = a.ID
	case a.Business != nil:
		l.businesses[a.Business.BusinessID] = a.ID
	}
}

// Policy returns the policy used to decide who may send and receive.
func (l *Ledger) Policy() Policy {
	return l.policy
}

// OpenPersonalAccount creates the personal account of the person identified
// by identityCredential. A credential opens at most one account.
func (l *Ledger) OpenPersonalAccount(identityCredential, deviceID string) (Account, error) {
	digest := crypto.Digest(identityCredential)

	l.lock.Lock()
	defer l.lock.Unlock()

	if _, ok := l.identities[digest]; ok {
		return Account{}, ErrDuplicateIdentity
	}

	hash, err := l.hasher.Hash(identityCredential)
	if err != nil {
		return Account{}, err
	}

	a := newAccount(Personal)
	a.Personal = &PersonalInfo{
		IdentityHash:   hash,
		IdentityDigest: digest,
		DeviceID:       deviceID,
	}

	if err := l.store.SaveAccounts(a); err != nil {
		return Account{}, err
	}

	l.index(a)

	l.logger.WithField("account", a.ID).Info("Created personal account")

	return a.copy(), nil
}

// OpenBusinessAccount creates a business account. t must be a business type.
func (l *Ledger) OpenBusinessAccount(
	t AccountType,
	businessID string,
	businessName string,
	verificationDocument string,
	localIdentifier string,
) (Account, error) {

	if !t.IsBusiness() {
		return Account{}, ErrInvalidAccountType
	}

	l.lock.Lock()
	defer l.lock.Unlock()

	if _, ok := l.businesses[businessID]; ok {
		return Account{}, ErrDuplicateBusiness
	}

	a := newAccount(t)
	a.Business = &BusinessInfo{
		BusinessID:           businessID,
		BusinessName:         businessName,
		VerificationDocument: verificationDocument,
		LocalIdentifier:      localIdentifier,
	}

	if err := l.store.SaveAccounts(a); err != nil {
		return Account{}, err
	}

	l.index(a)

	l.logger.WithFields(logrus.Fields{
		"account": a.ID,
		"type":    t,
		"name":    businessName,
	}).Info("Created business account")

	return a.copy(), nil
}

func newAccount(t AccountType) Account {
	return Account{
		ID:        uuid.New().String(),
		Type:      t,
		Balance:   decimal.Zero,
		CreatedAt: time.Now(),
		Active:    true,
	}
}

func (l *Ledger) get(id string) (*entry, bool) {
	l.lock.RLock()
	defer l.lock.RUnlock()

	e, ok := l.accounts[id]
	return e, ok
}

// Lookup returns a snapshot of the account.
func (l *Ledger) Lookup(accountID string) (Account, error) {
	e, ok := l.get(accountID)
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return e.snapshot(), nil
}

// Balance ...
func (l *Ledger) Balance(accountID string) (decimal.Decimal, error) {
	a, err := l.Lookup(accountID)
	if err != nil {
		return decimal.Zero, err
	}
	return a.Balance, nil
}

// Count returns the number of accounts, active or not.
func (l *Ledger) Count() int {
	l.lock.RLock()
	defer l.lock.RUnlock()

	return len(l.accounts)
}

// ListPersonalAccounts returns the active personal accounts sorted by creation
// time.
func (l *Ledger) ListPersonalAccounts() []Account {
	return l.list(func(a Account) bool {
		return a.Active && a.Type == Personal
	})
}

// ListBusinessAccounts returns the active business accounts sorted by creation
// time.
func (l *Ledger) ListBusinessAccounts() []Account {
	return l.list(func(a Account) bool {
		return a.Active && a.Type.IsBusiness()
	})
}

func (l *Ledger) list(keep func(Account) bool) []Account {
	l.lock.RLock()
	entries := make([]*entry, 0, len(l.accounts))
	for _, e := range l.accounts {
		entries = append(entries, e)
	}
	l.lock.RUnlock()

	res := []Account{}
	for _, e := range entries {
		if a := e.snapshot(); keep(a) {
			res = append(res, a)
		}
	}

	sort.Slice(res, func(i, j int) bool {
		if res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].ID < res[j].ID
		}
		return res[i].CreatedAt.Before(res[j].CreatedAt)
	})

	return res
}

// TotalBalance returns the sum of every balance.
func (l *Ledger) TotalBalance() decimal.Decimal {
	l.lock.RLock()
	entries := make([]*entry, 0, len(l.accounts))
	for _, e := range l.accounts {
		entries = append(entries, e)
	}
	l.lock.RUnlock()

	total := decimal.Zero
	for _, e := range entries {
		e.Lock()
		total = total.Add(e.data.Balance)
		e.Unlock()
	}

	return total
}

// Credit adds amount to the account.
func (l *Ledger) Credit(accountID string, amount decimal.Decimal) error {
	return l.credit(accountID, amount, false)
}

// CreditActive is Credit for accounts that must still be active when the
// credit is applied. It fails with ErrAccountInactive otherwise.
func (l *Ledger) CreditActive(accountID string, amount decimal.Decimal) error {
	return l.credit(accountID, amount, true)
}

func (l *Ledger) credit(accountID string, amount decimal.Decimal, activeOnly bool) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}

	e, ok := l.get(accountID)
	if !ok {
		return ErrAccountNotFound
	}

	e.Lock()
	defer e.Unlock()

	if activeOnly && !e.data.Active {
		return ErrAccountInactive
	}

	if !l.policy.CanReceive(e.data) {
		return ErrReceiveNotAllowed
	}

	updated := e.data
	updated.Balance = updated.Balance.Add(amount)

	if err := l.store.SaveAccounts(updated); err != nil {
		return err
	}

	e.data = updated

	return nil
}

// Debit removes amount from the account. The balance never goes negative.
func (l *Ledger) Debit(accountID string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}

	e, ok := l.get(accountID)
	if !ok {
		return ErrAccountNotFound
	}

	e.Lock()
	defer e.Unlock()

	updated, err := l.debit(e.data, amount)
	if err != nil {
		return err
	}

	if err := l.store.SaveAccounts(updated); err != nil {
		return err
	}

	e.data = updated

	return nil
}

func (l *Ledger) debit(a Account, amount decimal.Decimal) (Account, error) {
	if !l.policy.CanSend(a) {
		return a, ErrSendNotAllowed
	}
	if a.Balance.LessThan(amount) {
		return a, ErrInsufficientFunds
	}
	a.Balance = a.Balance.Sub(amount)
	return a, nil
}

// Transfer moves amount from one account to another. Either both balances
// change or neither does.
func (l *Ledger) Transfer(fromID, toID string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}

	from, ok := l.get(fromID)
	if !ok {
		return ErrAccountNotFound
	}
	to, ok := l.get(toID)
	if !ok {
		return ErrAccountNotFound
	}

	if fromID == toID {
		from.Lock()
		defer from.Unlock()

		// Check the debit would be allowed; the balance does not change.
		if _, err := l.debit(from.data, amount); err != nil {
			return err
		}
		if !l.policy.CanReceive(from.data) {
			return ErrReceiveNotAllowed
		}
		return nil
	}

	first, second := from, to
	if toID < fromID {
		first, second = to, from
	}
	first.Lock()
	defer first.Unlock()
	second.Lock()
	defer second.Unlock()

	debited, err := l.debit(from.data, amount)
	if err != nil {
		return err
	}

	if !l.policy.CanReceive(to.data) {
		return ErrReceiveNotAllowed
	}

	credited := to.data
	credited.Balance = credited.Balance.Add(amount)

	if err := l.store.SaveAccounts(debited, credited); err != nil {
		return err
	}

	from.data = debited
	to.data = credited

	l.logger.WithFields(logrus.Fields{
		"from":   fromID,
		"to":     toID,
		"amount": amount.String(),
	}).Debug("Transfer")

	return nil
}

// AuthenticatePersonal checks rawCredential against the credential the
// personal account was opened with.
func (l *Ledger) AuthenticatePersonal(accountID, rawCredential string) bool {
	a, err := l.Lookup(accountID)
	if err != nil || a.Personal == nil {
		return false
	}
	return l.hasher.Verify(rawCredential, a.Personal.IdentityHash)
}

// SetActive activates or deactivates an account. Inactive accounts are left
// out of the listings and therefore of the daily distribution.
func (l *Ledger) SetActive(accountID string, active bool) error {
	e, ok := l.get(accountID)
	if !ok {
		return ErrAccountNotFound
	}

	e.Lock()
	defer e.Unlock()

	updated := e.data
	updated.Active = active

	if err := l.store.SaveAccounts(updated); err != nil {
		return err
	}

	e.data = updated

	l.logger.WithFields(logrus.Fields{
		"account": accountID,
		"active":  active,
	}).Info("Account status changed")

	return nil
}
