package ledger

// Store persists accounts and the day of the last distribution.
type Store interface {
	// SaveAccounts writes the accounts atomically: either all are saved or
	// none is.
	SaveAccounts(accounts ...Account) error
	LoadAccounts() ([]Account, error)
	// SetLastDistributionDay records the calendar day, formatted YYYY-MM-DD,
	// of the last distribution.
	SetLastDistributionDay(day string) error
	// LastDistributionDay returns a common.StoreErr of type KeyNotFound when
	// no distribution was ever recorded.
	LastDistributionDay() (string, error)
	Close() error
}
