package bankapp_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bankapp "github.com/vandana0100/student-banking-app"
)

func TestSessions(t *testing.T) {
	acct := &bankapp.Account{
		AcctID: snowflake.ParseInt64(7241543869182709760),
		Email:  "alice@example.com",
	}

	issue := func(tt *testing.T, sess *bankapp.Sessions) *http.Cookie {
		w := httptest.NewRecorder()
		require.New(tt).Nil(sess.Issue(w, acct))
		cookies := w.Result().Cookies()
		require.New(tt).Len(cookies, 1)
		return cookies[0]
	}

	t.Run("round trips an issued cookie", func(tt *testing.T) {
		as := assert.New(tt)
		sess := bankapp.NewSessions("sixteen-byte-key", time.Hour)
		cookie := issue(tt, sess)
		as.True(cookie.HttpOnly)
		as.Equal("/", cookie.Path)

		r := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
		r.AddCookie(cookie)
		id, err := sess.FromRequest(r)
		as.Nil(err)
		as.Equal(acct.AcctID, id)
	})

	t.Run("rejects a missing cookie", func(tt *testing.T) {
		as := assert.New(tt)
		sess := bankapp.NewSessions("sixteen-byte-key", time.Hour)
		r := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
		_, err := sess.FromRequest(r)
		as.ErrorIs(err, bankapp.ErrAuthRequired)
	})

	t.Run("rejects a tampered token", func(tt *testing.T) {
		as := assert.New(tt)
		sess := bankapp.NewSessions("sixteen-byte-key", time.Hour)
		cookie := issue(tt, sess)

		// Flip the first character of the signature segment.
		dot := strings.LastIndex(cookie.Value, ".")
		require.New(tt).Positive(dot)
		head := cookie.Value[dot+1]
		flipped := byte('A')
		if head == 'A' {
			flipped = 'B'
		}
		cookie.Value = cookie.Value[:dot+1] + string(flipped) + cookie.Value[dot+2:]
		r := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
		r.AddCookie(cookie)
		_, err := sess.FromRequest(r)
		as.ErrorIs(err, bankapp.ErrAuthRequired)
	})

	t.Run("rejects a token signed with another secret", func(tt *testing.T) {
		as := assert.New(tt)
		sess := bankapp.NewSessions("sixteen-byte-key", time.Hour)
		other := bankapp.NewSessions("a-different-secret", time.Hour)
		cookie := issue(tt, other)

		r := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
		r.AddCookie(cookie)
		_, err := sess.FromRequest(r)
		as.ErrorIs(err, bankapp.ErrAuthRequired)
	})

	t.Run("rejects an expired token", func(tt *testing.T) {
		as := assert.New(tt)
		sess := bankapp.NewSessions("sixteen-byte-key", -time.Minute)
		cookie := issue(tt, sess)

		r := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
		r.AddCookie(cookie)
		_, err := sess.FromRequest(r)
		as.ErrorIs(err, bankapp.ErrAuthRequired)
	})

	t.Run("clear expires the cookie", func(tt *testing.T) {
		as := assert.New(tt)
		sess := bankapp.NewSessions("sixteen-byte-key", time.Hour)
		w := httptest.NewRecorder()
		sess.Clear(w)
		cookies := w.Result().Cookies()
		require.New(tt).Len(cookies, 1)
		as.Empty(cookies[0].Value)
		as.Negative(cookies[0].MaxAge)
	})

	t.Run("keeps the account id out of plain sight but not secret", func(tt *testing.T) {
		// JWT payloads are only base64 encoded. Nothing sensitive beyond the
		// account id and email may ever be added to the claims.
		as := assert.New(tt)
		sess := bankapp.NewSessions("sixteen-byte-key", time.Hour)
		cookie := issue(tt, sess)
		as.Equal(3, len(strings.Split(cookie.Value, ".")))
	})
}
