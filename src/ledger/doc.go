/*
Package ledger keeps the accounts of the network and their balances.

There are two kinds of account. A personal account belongs to one person,
identified by a credential (typically derived from biometric data) that may
open at most one personal account. Business accounts (merchants, associations,
enterprises) are identified by a business id that may likewise be used once.

Balances are arbitrary precision decimals. Every balance change goes through the
lock of the account it touches; transfers take both locks in ascending id order
and debit before crediting, so concurrent transfers out of the same account can
never spend the same funds twice.

Accounts are persisted through a Store. InmemStore keeps them in memory,
BadgerStore writes them to a badger database so that a node can be restarted
without losing balances.
*/
package ledger
