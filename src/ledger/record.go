package ledger

import (
	"bytes"
	"time"

	"github.com/shopspring/decimal"
	"github.com/ugorji/go/codec"
)

// accountRecord is the persisted form of an Account. Balances are kept as
// decimal strings and timestamps as nanoseconds so that no precision is lost
// in the encoding.
type accountRecord struct {
	ID        string
	Type      AccountType
	Balance   string
	CreatedAt int64
	Active    bool
	Personal  *PersonalInfo `codec:",omitempty"`
	Business  *BusinessInfo `codec:",omitempty"`
}

func newAccountRecord(a Account) *accountRecord {
	return &accountRecord{
		ID:        a.ID,
		Type:      a.Type,
		Balance:   a.Balance.String(),
		CreatedAt: a.CreatedAt.UnixNano(),
		Active:    a.Active,
		Personal:  a.Personal,
		Business:  a.Business,
	}
}

func (r *accountRecord) account() (Account, error) {
	balance, err := decimal.NewFromString(r.Balance)
	if err != nil {
		return Account{}, err
	}

	return Account{
		ID:        r.ID,
		Type:      r.Type,
		Balance:   balance,
		CreatedAt: time.Unix(0, r.CreatedAt),
		Active:    r.Active,
		Personal:  r.Personal,
		Business:  r.Business,
	}, nil
}

func marshalAccount(a Account) ([]byte, error) {
	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)

	if err := enc.Encode(newAccountRecord(a)); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

func unmarshalAccount(data []byte) (Account, error) {
	b := bytes.NewBuffer(data)
	jh := new(codec.JsonHandle)
	dec := codec.NewDecoder(b, jh)

	var r accountRecord
	if err := dec.Decode(&r); err != nil {
		return Account{}, err
	}

	return r.account()
}
