package bankapp

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

//go:generate mockgen -source=repository.go -destination=mocks/repository.go -package=mocks

// Repository is the account store. CreditAccount and DebitAccount apply the
// balance change and append the transaction row in a single store transaction,
// so balance and ledger cannot diverge under concurrent writers. DebitAccount
// guards balance >= amount inside the same atomic update and returns
// ErrInsufficientFunds when the guard fails.
type Repository interface {
	CreateAccount(req CreateAccountReq) error
	GetAccount(id snowflake.ID) (*Account, error)
	GetAccountByEmail(email string) (*Account, error)
	CreditAccount(amount decimal.Decimal, acctID, txnID snowflake.ID, at time.Time) (*decimal.Decimal, error)
	DebitAccount(amount decimal.Decimal, acctID, txnID snowflake.ID, at time.Time) (*decimal.Decimal, error)
	GetTransactions(id snowflake.ID) ([]Transaction, error)
	Ping() error
}

type CreateAccountReq struct {
	AcctID       snowflake.ID
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
}
