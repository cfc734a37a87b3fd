package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AccountType distinguishes personal accounts from the business variants.
type AccountType uint32

const (
	// Personal accounts belong to individuals and receive the daily
	// distribution.
	Personal AccountType = iota
	// Merchant ...
	Merchant
	// Association ...
	Association
	// Enterprise ...
	Enterprise
)

var accountTypeNames = map[AccountType]string{
	Personal:    "PERSONAL",
	Merchant:    "MERCHANT",
	Association: "ASSOCIATION",
	Enterprise:  "ENTERPRISE",
}

// String ...
func (t AccountType) String() string {
	if s, ok := accountTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("AccountType(%d)", uint32(t))
}

// IsBusiness reports whether t is one of the business types.
func (t AccountType) IsBusiness() bool {
	return t == Merchant || t == Association || t == Enterprise
}

// ParseAccountType is the case-insensitive inverse of String.
func ParseAccountType(s string) (AccountType, error) {
	for t, name := range accountTypeNames {
		if strings.EqualFold(s, name) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidAccountType, s)
}

// PersonalInfo holds the fields specific to personal accounts.
type PersonalInfo struct {
	// IdentityHash is the salted hash of the credential, used to authenticate
	// the owner.
	IdentityHash string
	// IdentityDigest is the unsalted digest of the credential, used to enforce
	// one account per identity.
	IdentityDigest string
	DeviceID       string
}

// BusinessInfo holds the fields specific to business accounts.
type BusinessInfo struct {
	BusinessID           string
	BusinessName         string
	VerificationDocument string
	LocalIdentifier      string
}

// Account is a snapshot of an account. Exactly one of Personal and Business is
// set, according to Type.
type Account struct {
	ID        string
	Type      AccountType
	Balance   decimal.Decimal
	CreatedAt time.Time
	Active    bool
	Personal  *PersonalInfo
	Business  *BusinessInfo
}

// IsPersonal ...
func (a Account) IsPersonal() bool {
	return a.Type == Personal
}

// copy returns a deep copy so that snapshots never share the info pointers of
// the ledger's own records.
func (a Account) copy() Account {
	res := a
	if a.Personal != nil {
		p := *a.Personal
		res.Personal = &p
	}
	if a.Business != nil {
		b := *a.Business
		res.Business = &b
	}
	return res
}

// Policy decides which accounts may send and receive funds.
type Policy interface {
	CanReceive(Account) bool
	CanSend(Account) bool
}

// OpenPolicy lets every account send and receive.
type OpenPolicy struct{}

// CanReceive implements Policy.
func (OpenPolicy) CanReceive(Account) bool { return true }

// CanSend implements Policy.
func (OpenPolicy) CanSend(Account) bool { return true }

// PolicyFuncs builds a Policy from two functions. A nil function allows
// everything.
type PolicyFuncs struct {
	Receive func(Account) bool
	Send    func(Account) bool
}

// CanReceive implements Policy.
func (p PolicyFuncs) CanReceive(a Account) bool {
	return p.Receive == nil || p.Receive(a)
}

// CanSend implements Policy.
func (p PolicyFuncs) CanSend(a Account) bool {
	return p.Send == nil || p.Send(a)
}
