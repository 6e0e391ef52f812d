package bankapp_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	bankapp "github.com/vandana0100/student-banking-app"
	"github.com/vandana0100/student-banking-app/mocks"
)

func TestRegister(t *testing.T) {
	t.Run("hashes the password and stores the account", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		ctrl := gomock.NewController(t)
		repo := mocks.NewMockRepository(ctrl)
		node, err := snowflake.NewNode(1)
		reqrd.Nil(err)
		log := zerolog.Nop()
		svc := bankapp.NewService(repo, node, &log)

		repo.EXPECT().
			GetAccountByEmail("alice@example.com").
			Return(nil, bankapp.ErrNotFound{})
		var stored bankapp.CreateAccountReq
		repo.EXPECT().
			CreateAccount(gomock.AssignableToTypeOf(bankapp.CreateAccountReq{})).
			DoAndReturn(func(req bankapp.CreateAccountReq) error {
				stored = req
				return nil
			})

		acct, err := svc.Register(bankapp.RegisterReq{
			FirstName: "Alice",
			LastName:  "Nguyen",
			Email:     "alice@example.com",
			Password:  "pw123",
		})
		reqrd.Nil(err)
		as.Equal("alice@example.com", acct.Email)
		as.NotZero(acct.AcctID)
		as.True(acct.Balance.IsZero())
		as.Equal(acct.AcctID, stored.AcctID)
		as.NotEqual("pw123", stored.PasswordHash)
		as.True(bankapp.CheckPassword("pw123", stored.PasswordHash))
	})

	t.Run("rejects an email that is already registered", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		ctrl := gomock.NewController(t)
		repo := mocks.NewMockRepository(ctrl)
		node, err := snowflake.NewNode(1)
		reqrd.Nil(err)
		log := zerolog.Nop()
		svc := bankapp.NewService(repo, node, &log)

		repo.EXPECT().
			GetAccountByEmail("alice@example.com").
			Return(&bankapp.Account{Email: "alice@example.com"}, nil)

		_, err = svc.Register(bankapp.RegisterReq{
			FirstName: "Alice",
			LastName:  "Nguyen",
			Email:     "alice@example.com",
			Password:  "pw123",
		})
		var ecf bankapp.ErrConflict
		as.True(errors.As(err, &ecf))
		as.Equal("alice@example.com", ecf.Email)
	})
}

func TestLogin(t *testing.T) {
	t.Run("returns the account for valid credentials", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		ctrl := gomock.NewController(t)
		repo := mocks.NewMockRepository(ctrl)
		node, err := snowflake.NewNode(1)
		reqrd.Nil(err)
		log := zerolog.Nop()
		svc := bankapp.NewService(repo, node, &log)

		hash, err := bankapp.HashPassword("pw123")
		reqrd.Nil(err)
		acct := &bankapp.Account{
			AcctID:       snowflake.ParseInt64(7241407009730334720),
			Email:        "alice@example.com",
			PasswordHash: hash,
		}
		repo.EXPECT().
			GetAccountByEmail("alice@example.com").
			Return(acct, nil)

		got, err := svc.Login(bankapp.LoginReq{Email: "alice@example.com", Password: "pw123"})
		reqrd.Nil(err)
		as.Equal(acct.AcctID, got.AcctID)
	})

	t.Run("does not reveal whether email or password was wrong", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		ctrl := gomock.NewController(t)
		repo := mocks.NewMockRepository(ctrl)
		node, err := snowflake.NewNode(1)
		reqrd.Nil(err)
		log := zerolog.Nop()
		svc := bankapp.NewService(repo, node, &log)

		hash, err := bankapp.HashPassword("pw123")
		reqrd.Nil(err)
		acct := &bankapp.Account{
			AcctID:       snowflake.ParseInt64(7241407009730334720),
			Email:        "alice@example.com",
			PasswordHash: hash,
		}
		repo.EXPECT().
			GetAccountByEmail("ghost@example.com").
			Return(nil, bankapp.ErrNotFound{})
		_, errUnknownEmail := svc.Login(bankapp.LoginReq{Email: "ghost@example.com", Password: "pw123"})

		repo.EXPECT().
			GetAccountByEmail("alice@example.com").
			Return(acct, nil)
		_, errWrongPassword := svc.Login(bankapp.LoginReq{Email: "alice@example.com", Password: "nope"})

		as.True(errors.Is(errUnknownEmail, bankapp.ErrAuth))
		as.True(errors.Is(errWrongPassword, bankapp.ErrAuth))
		as.Equal(errUnknownEmail.Error(), errWrongPassword.Error())
	})
}

func TestDeposit(t *testing.T) {
	t.Run("credits the account and returns the new balance", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		ctrl := gomock.NewController(t)
		repo := mocks.NewMockRepository(ctrl)
		node, err := snowflake.NewNode(1)
		reqrd.Nil(err)
		log := zerolog.Nop()
		svc := bankapp.NewService(repo, node, &log)

		acctID := snowflake.ParseInt64(7241407009730334720)
		amount := decimal.RequireFromString("100.50")
		repo.EXPECT().
			CreditAccount(amount, acctID, gomock.Any(), gomock.Any()).
			Return(&amount, nil)

		bal, err := svc.Deposit(bankapp.ChargeReq{Amount: amount, AcctID: acctID})
		reqrd.Nil(err)
		as.True(amount.Equal(*bal))
	})

	t.Run("accepts an amount above the step-up threshold", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		ctrl := gomock.NewController(t)
		repo := mocks.NewMockRepository(ctrl)
		node, err := snowflake.NewNode(1)
		reqrd.Nil(err)
		log := zerolog.Nop()
		svc := bankapp.NewService(repo, node, &log)

		acctID := snowflake.ParseInt64(7241407009730334720)
		amount := decimal.New(20000, 0)
		repo.EXPECT().
			CreditAccount(amount, acctID, gomock.Any(), gomock.Any()).
			Return(&amount, nil)

		bal, err := svc.Deposit(bankapp.ChargeReq{Amount: amount, AcctID: acctID})
		reqrd.Nil(err)
		as.True(amount.Equal(*bal))
	})
}

func TestWithdraw(t *testing.T) {
	t.Run("debits the account and returns the new balance", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		ctrl := gomock.NewController(t)
		repo := mocks.NewMockRepository(ctrl)
		node, err := snowflake.NewNode(1)
		reqrd.Nil(err)
		log := zerolog.Nop()
		svc := bankapp.NewService(repo, node, &log)

		acctID := snowflake.ParseInt64(7241407009730334720)
		amount := decimal.RequireFromString("30.25")
		remaining := decimal.RequireFromString("70.25")
		repo.EXPECT().
			DebitAccount(amount, acctID, gomock.Any(), gomock.Any()).
			Return(&remaining, nil)

		bal, err := svc.Withdraw(bankapp.ChargeReq{Amount: amount, AcctID: acctID})
		reqrd.Nil(err)
		as.True(remaining.Equal(*bal))
	})

	t.Run("surfaces insufficient funds unchanged", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		ctrl := gomock.NewController(t)
		repo := mocks.NewMockRepository(ctrl)
		node, err := snowflake.NewNode(1)
		reqrd.Nil(err)
		log := zerolog.Nop()
		svc := bankapp.NewService(repo, node, &log)

		acctID := snowflake.ParseInt64(7241407009730334720)
		amount := decimal.New(200, 0)
		repo.EXPECT().
			DebitAccount(amount, acctID, gomock.Any(), gomock.Any()).
			Return(nil, bankapp.ErrInsufficientFunds)

		_, err = svc.Withdraw(bankapp.ChargeReq{Amount: amount, AcctID: acctID})
		as.True(errors.Is(err, bankapp.ErrInsufficientFunds))
	})
}

func TestTransactions(t *testing.T) {
	t.Run("groups the ledger by calendar month in first-seen order", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		ctrl := gomock.NewController(t)
		repo := mocks.NewMockRepository(ctrl)
		node, err := snowflake.NewNode(1)
		reqrd.Nil(err)
		log := zerolog.Nop()
		svc := bankapp.NewService(repo, node, &log)

		acctID := snowflake.ParseInt64(7241407009730334720)
		jan := time.Date(2025, time.January, 15, 10, 0, 0, 0, time.UTC)
		feb := time.Date(2025, time.February, 2, 9, 30, 0, 0, time.UTC)
		txns := []bankapp.Transaction{
			{Type: bankapp.TxnDeposit, Amount: decimal.New(100, 0), Date: jan},
			{Type: bankapp.TxnWithdrawal, Amount: decimal.New(30, 0), Date: jan.Add(48 * time.Hour)},
			{Type: bankapp.TxnDeposit, Amount: decimal.New(50, 0), Date: feb},
		}
		repo.EXPECT().
			GetTransactions(acctID).
			Return(txns, nil)

		groups, err := svc.Transactions(acctID)
		reqrd.Nil(err)
		reqrd.Len(groups, 2)
		as.Equal("January 2025", groups[0].Month)
		as.Equal("February 2025", groups[1].Month)
		as.Len(groups[0].Transactions, 2)
		as.Len(groups[1].Transactions, 1)
		as.Equal(bankapp.TxnDeposit, groups[0].Transactions[0].Type)
		as.Equal(bankapp.TxnWithdrawal, groups[0].Transactions[1].Type)
	})

	t.Run("returns an empty group list for a fresh account", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		ctrl := gomock.NewController(t)
		repo := mocks.NewMockRepository(ctrl)
		node, err := snowflake.NewNode(1)
		reqrd.Nil(err)
		log := zerolog.Nop()
		svc := bankapp.NewService(repo, node, &log)

		acctID := snowflake.ParseInt64(7241407009730334720)
		repo.EXPECT().
			GetTransactions(acctID).
			Return(nil, nil)

		groups, err := svc.Transactions(acctID)
		reqrd.Nil(err)
		as.NotNil(groups)
		as.Len(groups, 0)
	})
}

func TestStatement(t *testing.T) {
	t.Run("writes a PDF document", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		ctrl := gomock.NewController(t)
		repo := mocks.NewMockRepository(ctrl)
		node, err := snowflake.NewNode(1)
		reqrd.Nil(err)
		log := zerolog.Nop()
		svc := bankapp.NewService(repo, node, &log)

		acctID := snowflake.ParseInt64(7241407009730334720)
		acct := &bankapp.Account{
			AcctID:    acctID,
			FirstName: "Alice",
			LastName:  "Nguyen",
			Email:     "alice@example.com",
			Balance:   decimal.RequireFromString("120.25"),
		}
		repo.EXPECT().
			GetAccount(acctID).
			Return(acct, nil)
		repo.EXPECT().
			GetTransactions(acctID).
			Return([]bankapp.Transaction{
				{Type: bankapp.TxnDeposit, Amount: decimal.New(100, 0), Date: time.Now().UTC()},
			}, nil)

		var buf bytes.Buffer
		err = svc.Statement(&buf, acctID)
		reqrd.Nil(err)
		as.True(strings.HasPrefix(buf.String(), "%PDF-"))
	})
}

func TestChargeSequence(t *testing.T) {
	t.Run("keeps a running balance across deposits and withdrawals", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		ctrl := gomock.NewController(t)
		repo := mocks.NewMockRepository(ctrl)
		node, err := snowflake.NewNode(1)
		reqrd.Nil(err)
		log := zerolog.Nop()
		svc := bankapp.NewService(repo, node, &log)

		acctID := snowflake.ParseInt64(7241407009730334720)
		balance := decimal.Zero
		repo.EXPECT().
			CreditAccount(gomock.Any(), acctID, gomock.Any(), gomock.Any()).
			DoAndReturn(func(amount decimal.Decimal, _, _ snowflake.ID, _ time.Time) (*decimal.Decimal, error) {
				balance = balance.Add(amount)
				b := balance
				return &b, nil
			}).
			Times(2)
		repo.EXPECT().
			DebitAccount(gomock.Any(), acctID, gomock.Any(), gomock.Any()).
			DoAndReturn(func(amount decimal.Decimal, _, _ snowflake.ID, _ time.Time) (*decimal.Decimal, error) {
				if amount.GreaterThan(balance) {
					return nil, bankapp.ErrInsufficientFunds
				}
				balance = balance.Sub(amount)
				b := balance
				return &b, nil
			}).
			Times(2)

		bal, err := svc.Deposit(bankapp.ChargeReq{Amount: decimal.RequireFromString("100.50"), AcctID: acctID})
		reqrd.Nil(err)
		as.Equal("100.5", bal.String())

		bal, err = svc.Deposit(bankapp.ChargeReq{Amount: decimal.New(50, 0), AcctID: acctID})
		reqrd.Nil(err)
		as.Equal("150.5", bal.String())

		bal, err = svc.Withdraw(bankapp.ChargeReq{Amount: decimal.RequireFromString("30.25"), AcctID: acctID})
		reqrd.Nil(err)
		as.Equal("120.25", bal.String())

		_, err = svc.Withdraw(bankapp.ChargeReq{Amount: decimal.New(200, 0), AcctID: acctID})
		as.True(errors.Is(err, bankapp.ErrInsufficientFunds))
		as.Equal("120.25", balance.String())
	})
}
