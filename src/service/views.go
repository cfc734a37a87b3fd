package service

import (
	"time"

	"github.com/mahalanet/mahala/src/ledger"
)

// accountView is the public projection of an account. Credential hashes and
// device ids never leave the node.
type accountView struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	Balance      string    `json:"balance"`
	CreatedAt    time.Time `json:"createdAt"`
	Active       bool      `json:"active"`
	BusinessID   string    `json:"businessId,omitempty"`
	BusinessName string    `json:"businessName,omitempty"`
}

type balanceView struct {
	AccountID string `json:"accountId"`
	Balance   string `json:"balance"`
}

func newAccountView(a ledger.Account) accountView {
	v := accountView{
		ID:        a.ID,
		Type:      a.Type.String(),
		Balance:   a.Balance.String(),
		CreatedAt: a.CreatedAt,
		Active:    a.Active,
	}

	if a.Business != nil {
		v.BusinessID = a.Business.BusinessID
		v.BusinessName = a.Business.BusinessName
	}

	return v
}
