package bankapp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestStoreErr(t *testing.T) {
	dialErr := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connect: connection refused")}

	t.Run("maps a refused connection to ErrUnavailable", func(tt *testing.T) {
		as := assert.New(tt)
		as.True(errors.Is(storeErr(dialErr), ErrUnavailable))
	})

	t.Run("maps a wrapped connection failure", func(tt *testing.T) {
		as := assert.New(tt)
		err := fmt.Errorf("acquire: %w", dialErr)
		as.True(errors.Is(storeErr(err), ErrUnavailable))
	})

	t.Run("maps a pool acquisition deadline", func(tt *testing.T) {
		as := assert.New(tt)
		as.True(errors.Is(storeErr(context.DeadlineExceeded), ErrUnavailable))
	})

	t.Run("keeps server-answered errors intact", func(tt *testing.T) {
		as := assert.New(tt)
		// A CHECK violation reached the server; it is not a reachability
		// problem and must keep its identity.
		err := storeErr(&pgconn.PgError{Code: "23514"})
		var pgerr *pgconn.PgError
		as.True(errors.As(err, &pgerr))
		as.Equal("23514", pgerr.Code)
		as.False(errors.Is(err, ErrUnavailable))
	})

	t.Run("passes no-rows and nil through", func(tt *testing.T) {
		as := assert.New(tt)
		as.Equal(pgx.ErrNoRows, storeErr(pgx.ErrNoRows))
		as.Nil(storeErr(nil))
	})
}
