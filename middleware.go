package bankapp

import (
	"context"
	"io"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/semaphore"
)

type Middleware func(Service) Service

//
// Request validation middleware
//

var (
	_ Service = (*validationMiddleware)(nil)
)

type validationMiddleware struct {
	next     Service
	validate *validator.Validate
}

func NewValidationMiddleware() Middleware {
	return func(svc Service) Service {
		return &validationMiddleware{
			next:     svc,
			validate: validator.New(),
		}
	}
}

func (v *validationMiddleware) Register(req RegisterReq) (*Account, error) {
	if err := v.validate.Struct(req); err != nil {
		fields := make(map[string]string)
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				fields[formField(fe.Field())] = fieldProblem(fe.Tag())
			}
		} else {
			fields["request"] = "invalid"
		}
		return nil, ErrBadRequest{Fields: fields}
	}
	return v.next.Register(req)
}

// Login is not validated here: a blank email or password simply fails the
// credential check, keeping the error indistinguishable from a wrong password.
func (v *validationMiddleware) Login(req LoginReq) (*Account, error) {
	return v.next.Login(req)
}

func (v *validationMiddleware) Account(id snowflake.ID) (*Account, error) {
	return v.next.Account(id)
}

func (v *validationMiddleware) Deposit(req ChargeReq) (*decimal.Decimal, error) {
	if err := checkAmount(req.Amount); err != nil {
		return nil, err
	}
	return v.next.Deposit(req)
}

func (v *validationMiddleware) Withdraw(req ChargeReq) (*decimal.Decimal, error) {
	if err := checkAmount(req.Amount); err != nil {
		return nil, err
	}
	return v.next.Withdraw(req)
}

func (v *validationMiddleware) Transactions(id snowflake.ID) ([]MonthGroup, error) {
	return v.next.Transactions(id)
}

func (v *validationMiddleware) Statement(w io.Writer, id snowflake.ID) error {
	return v.next.Statement(w, id)
}

func formField(structField string) string {
	switch structField {
	case "FirstName":
		return "first_name"
	case "LastName":
		return "last_name"
	case "Email":
		return "email"
	case "Password":
		return "password"
	}
	return structField
}

func fieldProblem(tag string) string {
	if tag == "email" {
		return "invalid format"
	}
	return "required"
}

// maxChargeAmount is the first value past what the store's NUMERIC(20,2)
// columns can hold: 18 integer digits.
var maxChargeAmount = decimal.New(1, 18)

// checkAmount rejects charges the ledger cannot record exactly. Sub-cent
// digits would be rounded away by the store, tripping its amount > 0 CHECK
// on a charge like 0.001; values at or past maxChargeAmount overflow the
// column.
func checkAmount(amount decimal.Decimal) error {
	switch {
	case !amount.IsPositive():
		return ErrBadRequest{Fields: map[string]string{"amount": "must be positive"}}
	case !amount.Equal(amount.Truncate(2)):
		return ErrBadRequest{Fields: map[string]string{"amount": "at most two decimal places"}}
	case amount.GreaterThanOrEqual(maxChargeAmount):
		return ErrBadRequest{Fields: map[string]string{"amount": "too large"}}
	}
	return nil
}

//
// Rate limiting middlewares
//

// limitMiddleware sheds load by capping in-flight requests per operation with
// weighted semaphores (x/sync/semaphore) under a short acquisition timeout.
// Static limits need hand-tuning per deployment, but for a service this size
// they are enough to keep the store from being overrun.
type limitMiddleware struct {
	next   Service
	limits *ServiceLimits
}

var (
	_ Service = (*limitMiddleware)(nil)
)

const limitAcquireTimeout = 250 * time.Millisecond

type ServiceLimits struct {
	Register     *semaphore.Weighted
	Login        *semaphore.Weighted
	Account      *semaphore.Weighted
	Deposit      *semaphore.Weighted
	Withdraw     *semaphore.Weighted
	Transactions *semaphore.Weighted
	Statement    *semaphore.Weighted
}

func NewServiceLimits(n int64) *ServiceLimits {
	return &ServiceLimits{
		Register:     semaphore.NewWeighted(n),
		Login:        semaphore.NewWeighted(n),
		Account:      semaphore.NewWeighted(n),
		Deposit:      semaphore.NewWeighted(n),
		Withdraw:     semaphore.NewWeighted(n),
		Transactions: semaphore.NewWeighted(n),
		Statement:    semaphore.NewWeighted(n),
	}
}

func NewLimitMiddleware(limits *ServiceLimits) Middleware {
	return func(next Service) Service {
		return &limitMiddleware{
			next:   next,
			limits: limits,
		}
	}
}

func acquire(sem *semaphore.Weighted) (release func(), err error) {
	ctx, cancel := context.WithTimeout(context.Background(), limitAcquireTimeout)
	defer cancel()
	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, ErrUnavailable
	}
	return func() { sem.Release(1) }, nil
}

func (l *limitMiddleware) Register(req RegisterReq) (*Account, error) {
	release, err := acquire(l.limits.Register)
	if err != nil {
		return nil, err
	}
	defer release()
	return l.next.Register(req)
}

func (l *limitMiddleware) Login(req LoginReq) (*Account, error) {
	release, err := acquire(l.limits.Login)
	if err != nil {
		return nil, err
	}
	defer release()
	return l.next.Login(req)
}

func (l *limitMiddleware) Account(id snowflake.ID) (*Account, error) {
	release, err := acquire(l.limits.Account)
	if err != nil {
		return nil, err
	}
	defer release()
	return l.next.Account(id)
}

func (l *limitMiddleware) Deposit(req ChargeReq) (*decimal.Decimal, error) {
	release, err := acquire(l.limits.Deposit)
	if err != nil {
		return nil, err
	}
	defer release()
	return l.next.Deposit(req)
}

func (l *limitMiddleware) Withdraw(req ChargeReq) (*decimal.Decimal, error) {
	release, err := acquire(l.limits.Withdraw)
	if err != nil {
		return nil, err
	}
	defer release()
	return l.next.Withdraw(req)
}

func (l *limitMiddleware) Transactions(id snowflake.ID) ([]MonthGroup, error) {
	release, err := acquire(l.limits.Transactions)
	if err != nil {
		return nil, err
	}
	defer release()
	return l.next.Transactions(id)
}

func (l *limitMiddleware) Statement(w io.Writer, id snowflake.ID) error {
	release, err := acquire(l.limits.Statement)
	if err != nil {
		return err
	}
	defer release()
	return l.next.Statement(w, id)
}

type ServiceBreaker struct {
	Register     *gobreaker.TwoStepCircuitBreaker[*Account]
	Login        *gobreaker.TwoStepCircuitBreaker[*Account]
	Account      *gobreaker.TwoStepCircuitBreaker[*Account]
	Deposit      *gobreaker.TwoStepCircuitBreaker[*decimal.Decimal]
	Withdraw     *gobreaker.TwoStepCircuitBreaker[*decimal.Decimal]
	Transactions *gobreaker.TwoStepCircuitBreaker[[]MonthGroup]
	Statement    *gobreaker.TwoStepCircuitBreaker[interface{}]
}

func NewServiceBreaker() *ServiceBreaker {
	return &ServiceBreaker{
		Register:     gobreaker.NewTwoStepCircuitBreaker[*Account](breakerSettings("register")),
		Login:        gobreaker.NewTwoStepCircuitBreaker[*Account](breakerSettings("login")),
		Account:      gobreaker.NewTwoStepCircuitBreaker[*Account](breakerSettings("account")),
		Deposit:      gobreaker.NewTwoStepCircuitBreaker[*decimal.Decimal](breakerSettings("deposit")),
		Withdraw:     gobreaker.NewTwoStepCircuitBreaker[*decimal.Decimal](breakerSettings("withdraw")),
		Transactions: gobreaker.NewTwoStepCircuitBreaker[[]MonthGroup](breakerSettings("transactions")),
		Statement:    gobreaker.NewTwoStepCircuitBreaker[interface{}](breakerSettings("statement")),
	}
}

func breakerSettings(name string) gobreaker.Settings {
	return gobreaker.Settings{
		Name:    name,
		Timeout: 30 * time.Second,
	}
}

// circuitBreakMiddleware wraps the store-touching core in per-operation
// circuit breakers. Only infrastructure failures count against a breaker;
// business outcomes like a failed withdrawal are reported as successes so a
// burst of overdraft attempts cannot open the circuit.
type circuitBreakMiddleware struct {
	next  Service
	brkrs *ServiceBreaker
}

var (
	_ Service = (*circuitBreakMiddleware)(nil)
)

func NewCircuitBreakMiddleware(brkrs *ServiceBreaker) Middleware {
	return func(next Service) Service {
		return &circuitBreakMiddleware{
			next:  next,
			brkrs: brkrs,
		}
	}
}

func (c *circuitBreakMiddleware) Register(req RegisterReq) (*Account, error) {
	done, err := c.brkrs.Register.Allow()
	if err != nil {
		return nil, ErrUnavailable
	}
	acct, err := c.next.Register(req)
	done(err == nil || isBusinessErr(err))
	return acct, err
}

func (c *circuitBreakMiddleware) Login(req LoginReq) (*Account, error) {
	done, err := c.brkrs.Login.Allow()
	if err != nil {
		return nil, ErrUnavailable
	}
	acct, err := c.next.Login(req)
	done(err == nil || isBusinessErr(err))
	return acct, err
}

func (c *circuitBreakMiddleware) Account(id snowflake.ID) (*Account, error) {
	done, err := c.brkrs.Account.Allow()
	if err != nil {
		return nil, ErrUnavailable
	}
	acct, err := c.next.Account(id)
	done(err == nil || isBusinessErr(err))
	return acct, err
}

func (c *circuitBreakMiddleware) Deposit(req ChargeReq) (*decimal.Decimal, error) {
	done, err := c.brkrs.Deposit.Allow()
	if err != nil {
		return nil, ErrUnavailable
	}
	bal, err := c.next.Deposit(req)
	done(err == nil || isBusinessErr(err))
	return bal, err
}

func (c *circuitBreakMiddleware) Withdraw(req ChargeReq) (*decimal.Decimal, error) {
	done, err := c.brkrs.Withdraw.Allow()
	if err != nil {
		return nil, ErrUnavailable
	}
	bal, err := c.next.Withdraw(req)
	done(err == nil || isBusinessErr(err))
	return bal, err
}

func (c *circuitBreakMiddleware) Transactions(id snowflake.ID) ([]MonthGroup, error) {
	done, err := c.brkrs.Transactions.Allow()
	if err != nil {
		return nil, ErrUnavailable
	}
	groups, err := c.next.Transactions(id)
	done(err == nil || isBusinessErr(err))
	return groups, err
}

func (c *circuitBreakMiddleware) Statement(w io.Writer, id snowflake.ID) error {
	done, err := c.brkrs.Statement.Allow()
	if err != nil {
		return ErrUnavailable
	}
	err = c.next.Statement(w, id)
	done(err == nil || isBusinessErr(err))
	return err
}
