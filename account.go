package bankapp

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Account is a registered user: identity, credential hash, and the running
// balance. Transactions are stored separately and fetched on demand.
type Account struct {
	AcctID       snowflake.ID    `json:"id"`
	FirstName    string          `json:"first_name"`
	LastName     string          `json:"last_name"`
	Email        string          `json:"email"`
	PasswordHash string          `json:"-"`
	Balance      decimal.Decimal `json:"balance"`
	CreatedAt    time.Time       `json:"created_at"`
}

type TxnType string

const (
	TxnDeposit    TxnType = "deposit"
	TxnWithdrawal TxnType = "withdrawal"
)

// Transaction is an immutable record of a single balance-changing event.
// Date is assigned at apply time, in UTC.
type Transaction struct {
	TxnID  snowflake.ID    `json:"-"`
	Type   TxnType         `json:"type"`
	Amount decimal.Decimal `json:"amount"`
	Date   time.Time       `json:"date"`
}

// MonthGroup is one calendar month's worth of transactions, labeled
// "January 2006" style.
type MonthGroup struct {
	Month        string        `json:"month"`
	Transactions []Transaction `json:"transactions"`
}

const monthLabelLayout = "January 2006"

// GroupByMonth buckets txns by the calendar month+year of their UTC timestamp.
// Groups appear in first-seen order while scanning txns front to back, and each
// group keeps the scan order of its members, so a chronologically stored input
// yields chronologically ordered groups and members.
func GroupByMonth(txns []Transaction) []MonthGroup {
	groups := make([]MonthGroup, 0, 4)
	idx := make(map[string]int, 4)
	for _, t := range txns {
		label := t.Date.UTC().Format(monthLabelLayout)
		i, ok := idx[label]
		if !ok {
			i = len(groups)
			idx[label] = i
			groups = append(groups, MonthGroup{Month: label})
		}
		groups[i].Transactions = append(groups[i].Transactions, t)
	}
	return groups
}
