package common

import "fmt"

// StoreErrType enumerates the failure modes of a persistent store.
type StoreErrType uint32

const (
	// KeyNotFound means the requested key is not in the store.
	KeyNotFound StoreErrType = iota
	// Corrupted means a stored value could not be decoded.
	Corrupted
	// Closed means the store was used after Close.
	Closed
)

// StoreErr is returned by store implementations. It carries the type of data
// being accessed and the key involved.
type StoreErr struct {
	dataType string
	errType  StoreErrType
	key      string
}

// NewStoreErr ...
func NewStoreErr(dataType string, errType StoreErrType, key string) StoreErr {
	return StoreErr{
		dataType: dataType,
		errType:  errType,
		key:      key,
	}
}

// Error ...
func (e StoreErr) Error() string {
	m := ""
	switch e.errType {
	case KeyNotFound:
		m = "Not Found"
	case Corrupted:
		m = "Corrupted"
	case Closed:
		m = "Closed"
	}

	return fmt.Sprintf("%s, %s, %s", e.dataType, e.key, m)
}

// IsStore checks that an error is of type StoreErr and that it's code matches
// the provided StoreErr code.
func IsStore(err error, t StoreErrType) bool {
	storeErr, ok := err.(StoreErr)
	return ok && storeErr.errType == t
}
