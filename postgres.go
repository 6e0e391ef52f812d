package bankapp

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const pgUniqueViolation = "23505"

var (
	pgInsertAcctSQL = `
		INSERT INTO accounts (id, first_name, last_name, email, password_hash, balance)
		VALUES ($1, $2, $3, $4, $5, 0);
	`

	pgSelectAcctSQL = `
		SELECT id, first_name, last_name, email, password_hash, balance, created_at
		FROM accounts
		WHERE id = $1;
	`

	pgSelectAcctByEmailSQL = `
		SELECT id, first_name, last_name, email, password_hash, balance, created_at
		FROM accounts
		WHERE email = $1;
	`

	// Balance change and ledger append commit in one transaction; the guarded
	// debit form keeps balance >= 0 without a read-modify-write round trip.
	pgCreditAcctSQL = `
		UPDATE accounts
		SET balance = balance + $1
		WHERE id = $2
		RETURNING balance;
	`

	pgDebitAcctSQL = `
		UPDATE accounts
		SET balance = balance - $1
		WHERE id = $2 AND balance >= $1
		RETURNING balance;
	`

	pgSelectBalanceSQL = `
		SELECT balance
		FROM accounts
		WHERE id = $1;
	`

	pgInsertTxnSQL = `
		INSERT INTO transactions (id, account_id, typ, amount, created_at)
		VALUES ($1, $2, $3, $4, $5);
	`

	pgSelectTxnsSQL = `
		SELECT id, typ, amount, created_at
		FROM transactions
		WHERE account_id = $1
		ORDER BY id;
	`
)

type PostgresEndpoint struct {
	pool *pgxpool.Pool
	log  *zerolog.Logger
}

var (
	_ Repository = (*PostgresEndpoint)(nil)
)

func NewPostgresEndpoint(connStr string, log *zerolog.Logger) (*PostgresEndpoint, error) {
	cfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), cfg)
	if err != nil {
		return nil, err
	}

	if err = pool.Ping(context.Background()); err != nil {
		return nil, err
	}

	endpt := &PostgresEndpoint{
		pool: pool,
		log:  log,
	}
	return endpt, err
}

func (pg *PostgresEndpoint) Close() {
	pg.pool.Close()
}

// storeErr maps connection-level failures, such as dial errors and pool
// acquisition deadlines, to ErrUnavailable. Errors the server itself
// answered with, like constraint violations, pass through untouched.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	var pgerr *pgconn.PgError
	if errors.As(err, &pgerr) {
		return err
	}
	var nerr net.Error
	if errors.Is(err, context.DeadlineExceeded) ||
		pgconn.Timeout(err) ||
		pgconn.SafeToRetry(err) ||
		errors.As(err, &nerr) {
		return ErrUnavailable
	}
	return err
}

// Ping reports store reachability within a short deadline; the health
// endpoint turns a failure into a 503.
func (pg *PostgresEndpoint) Ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return pg.pool.Ping(ctx)
}

func (pg *PostgresEndpoint) CreateAccount(req CreateAccountReq) error {
	ctx := context.Background()
	conn, err := pg.pool.Acquire(ctx)
	if err != nil {
		return storeErr(err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, pgInsertAcctSQL,
		req.AcctID, req.FirstName, req.LastName, req.Email, req.PasswordHash)
	if err != nil {
		var pgerr *pgconn.PgError
		if errors.As(err, &pgerr) && pgerr.Code == pgUniqueViolation {
			return ErrConflict{Email: req.Email}
		}
		return storeErr(err)
	}

	return err
}

func (pg *PostgresEndpoint) GetAccount(id snowflake.ID) (*Account, error) {
	ctx := context.Background()
	conn, err := pg.pool.Acquire(ctx)
	if err != nil {
		return nil, storeErr(err)
	}
	defer conn.Release()

	return scanAccount(conn.QueryRow(ctx, pgSelectAcctSQL, id), id.Int64())
}

func (pg *PostgresEndpoint) GetAccountByEmail(email string) (*Account, error) {
	ctx := context.Background()
	conn, err := pg.pool.Acquire(ctx)
	if err != nil {
		return nil, storeErr(err)
	}
	defer conn.Release()

	return scanAccount(conn.QueryRow(ctx, pgSelectAcctByEmailSQL, email), 0)
}

func scanAccount(row pgx.Row, id int64) (*Account, error) {
	var acct Account
	err := row.Scan(
		&acct.AcctID,
		&acct.FirstName,
		&acct.LastName,
		&acct.Email,
		&acct.PasswordHash,
		&acct.Balance,
		&acct.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound{ID: id}
		}
		return nil, storeErr(err)
	}
	return &acct, nil
}

func (pg *PostgresEndpoint) CreditAccount(amount decimal.Decimal, acctID, txnID snowflake.ID, at time.Time) (*decimal.Decimal, error) {
	ctx := context.Background()
	conn, err := pg.pool.Acquire(ctx)
	if err != nil {
		return nil, storeErr(err)
	}
	defer conn.Release()

	tx, err := conn.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, storeErr(err)
	}

	var bal decimal.Decimal
	row := tx.QueryRow(ctx, pgCreditAcctSQL, amount, acctID)
	if err = row.Scan(&bal); err != nil {
		pg.rollback(tx, txnID)
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound{ID: acctID.Int64()}
		}
		return nil, storeErr(err)
	}

	if _, err = tx.Exec(ctx, pgInsertTxnSQL, txnID, acctID, TxnDeposit, amount, at); err != nil {
		pg.rollback(tx, txnID)
		return nil, storeErr(err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, storeErr(err)
	}
	return &bal, nil
}

func (pg *PostgresEndpoint) DebitAccount(amount decimal.Decimal, acctID, txnID snowflake.ID, at time.Time) (*decimal.Decimal, error) {
	ctx := context.Background()
	conn, err := pg.pool.Acquire(ctx)
	if err != nil {
		return nil, storeErr(err)
	}
	defer conn.Release()

	tx, err := conn.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, storeErr(err)
	}

	var bal decimal.Decimal
	row := tx.QueryRow(ctx, pgDebitAcctSQL, amount, acctID)
	if err = row.Scan(&bal); err != nil {
		if err != pgx.ErrNoRows {
			pg.rollback(tx, txnID)
			return nil, storeErr(err)
		}
		// No row matched: either the account does not exist or the
		// balance guard failed. A second read tells the two apart.
		perr := tx.QueryRow(ctx, pgSelectBalanceSQL, acctID).Scan(&bal)
		pg.rollback(tx, txnID)
		if perr == pgx.ErrNoRows {
			return nil, ErrNotFound{ID: acctID.Int64()}
		}
		if perr != nil {
			return nil, storeErr(perr)
		}
		return nil, ErrInsufficientFunds
	}

	if _, err = tx.Exec(ctx, pgInsertTxnSQL, txnID, acctID, TxnWithdrawal, amount, at); err != nil {
		pg.rollback(tx, txnID)
		return nil, storeErr(err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, storeErr(err)
	}
	return &bal, nil
}

func (pg *PostgresEndpoint) GetTransactions(id snowflake.ID) ([]Transaction, error) {
	ctx := context.Background()
	conn, err := pg.pool.Acquire(ctx)
	if err != nil {
		return nil, storeErr(err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, pgSelectTxnsSQL, id)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	var txns []Transaction
	for rows.Next() {
		var t Transaction
		if err = rows.Scan(&t.TxnID, &t.Type, &t.Amount, &t.Date); err != nil {
			return nil, storeErr(err)
		}
		txns = append(txns, t)
	}
	return txns, storeErr(rows.Err())
}

func (pg *PostgresEndpoint) rollback(tx pgx.Tx, txnID snowflake.ID) {
	if err := tx.Rollback(context.Background()); err != nil && err != pgx.ErrTxClosed {
		pg.log.Err(err).Msgf("transaction `%v` rollback fail", txnID)
	}
}
