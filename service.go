package bankapp

import (
	"errors"
	"io"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

//go:generate mockgen -source=service.go -destination=mocks/service.go -package=mocks

// LargeDepositThreshold marks deposits that would need out-of-band (OTP)
// verification in a real bank. Here they are accepted unguarded: the user is
// shown an advisory and the server logs a warning, nothing more.
var LargeDepositThreshold = decimal.New(10000, 0)

type RegisterReq struct {
	FirstName string `validate:"required"`
	LastName  string `validate:"required"`
	Email     string `validate:"required,email"`
	Password  string `validate:"required"`
}

type LoginReq struct {
	Email    string
	Password string
}

type ChargeReq struct {
	Amount decimal.Decimal `json:"amount"`
	AcctID snowflake.ID
}

type Service interface {
	Register(req RegisterReq) (*Account, error)
	Login(req LoginReq) (*Account, error)
	Account(id snowflake.ID) (*Account, error)
	Deposit(req ChargeReq) (*decimal.Decimal, error)
	Withdraw(req ChargeReq) (*decimal.Decimal, error)
	Transactions(id snowflake.ID) ([]MonthGroup, error)
	Statement(w io.Writer, id snowflake.ID) error
}

func NewService(repo Repository, node *snowflake.Node, log *zerolog.Logger) Service {
	return &serviceImpl{
		repo: repo,
		node: node,
		log:  log,
	}
}

type serviceImpl struct {
	repo Repository
	node *snowflake.Node
	log  *zerolog.Logger
}

func (s *serviceImpl) Register(req RegisterReq) (*Account, error) {
	// Friendly pre-check; the store's unique index on email is what actually
	// rejects a concurrent duplicate.
	_, err := s.repo.GetAccountByEmail(req.Email)
	if err == nil {
		return nil, ErrConflict{Email: req.Email}
	}
	var enf ErrNotFound
	if !errors.As(err, &enf) {
		return nil, err
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	acct := &Account{
		AcctID:    s.node.Generate(),
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Balance:   decimal.Zero,
		CreatedAt: time.Now().UTC(),
	}
	car := CreateAccountReq{
		AcctID:       acct.AcctID,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		PasswordHash: hash,
	}
	if err = s.repo.CreateAccount(car); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("method", "register").
		Str("acct_id", acct.AcctID.String()).
		Msg("account created")
	return acct, nil
}

func (s *serviceImpl) Login(req LoginReq) (*Account, error) {
	acct, err := s.repo.GetAccountByEmail(req.Email)
	if err != nil {
		var enf ErrNotFound
		if errors.As(err, &enf) {
			return nil, ErrAuth
		}
		return nil, err
	}
	if !CheckPassword(req.Password, acct.PasswordHash) {
		return nil, ErrAuth
	}
	return acct, nil
}

func (s *serviceImpl) Account(id snowflake.ID) (*Account, error) {
	return s.repo.GetAccount(id)
}

func (s *serviceImpl) Deposit(req ChargeReq) (*decimal.Decimal, error) {
	if req.Amount.GreaterThan(LargeDepositThreshold) {
		s.log.Warn().
			Str("method", "deposit").
			Str("acct_id", req.AcctID.String()).
			Str("amount", req.Amount.String()).
			Msg("large deposit accepted without step-up verification")
	}
	return s.repo.CreditAccount(req.Amount, req.AcctID, s.node.Generate(), time.Now().UTC())
}

func (s *serviceImpl) Withdraw(req ChargeReq) (*decimal.Decimal, error) {
	return s.repo.DebitAccount(req.Amount, req.AcctID, s.node.Generate(), time.Now().UTC())
}

func (s *serviceImpl) Transactions(id snowflake.ID) ([]MonthGroup, error) {
	txns, err := s.repo.GetTransactions(id)
	if err != nil {
		return nil, err
	}
	return GroupByMonth(txns), nil
}

func (s *serviceImpl) Statement(w io.Writer, id snowflake.ID) error {
	acct, err := s.repo.GetAccount(id)
	if err != nil {
		return err
	}
	txns, err := s.repo.GetTransactions(id)
	if err != nil {
		return err
	}
	return writeStatementPDF(w, acct, GroupByMonth(txns))
}
