package bankapp

import (
	"encoding/base64"
	"encoding/json"
	"html/template"
	"io"
	"net/http"
)

const flashCookie = "bank_flash"

// setFlashes queues one-shot messages for the next rendered page. Messages
// ride in a cookie so no server-side session store is needed.
func setFlashes(w http.ResponseWriter, msgs ...string) {
	if len(msgs) == 0 {
		return
	}
	buf, err := json.Marshal(msgs)
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    base64.RawURLEncoding.EncodeToString(buf),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// popFlashes drains queued messages, expiring the cookie so each message is
// shown exactly once.
func popFlashes(w http.ResponseWriter, r *http.Request) []string {
	cookie, err := r.Cookie(flashCookie)
	if err != nil {
		return nil
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	raw, err := base64.RawURLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return nil
	}
	var msgs []string
	if err = json.Unmarshal(raw, &msgs); err != nil {
		return nil
	}
	return msgs
}

var pageTmpl = template.Must(template.New("pages").Parse(pagesHTML))

type dashboardData struct {
	Acct    *Account
	Flashes []string
}

func renderRegisterPage(w io.Writer, flashes []string) error {
	return pageTmpl.ExecuteTemplate(w, "register", flashes)
}

func renderLoginPage(w io.Writer, flashes []string) error {
	return pageTmpl.ExecuteTemplate(w, "login", flashes)
}

func renderDashboardPage(w io.Writer, acct *Account, flashes []string) error {
	return pageTmpl.ExecuteTemplate(w, "dashboard", dashboardData{Acct: acct, Flashes: flashes})
}

const pagesHTML = `
{{define "flashes"}}{{range .}}<p class="flash">{{.}}</p>{{end}}{{end}}

{{define "register"}}<!DOCTYPE html>
<html>
<head><title>Register - Student Bank</title></head>
<body>
<h1>Register</h1>
{{template "flashes" .}}
<form method="post" action="/api/register">
  <input name="first_name" placeholder="First name">
  <input name="last_name" placeholder="Last name">
  <input name="email" placeholder="Email">
  <input name="password" type="password" placeholder="Password">
  <button type="submit">Register</button>
</form>
<a href="/api/login">Already have an account? Log in</a>
</body>
</html>
{{end}}

{{define "login"}}<!DOCTYPE html>
<html>
<head><title>Login - Student Bank</title></head>
<body>
<h1>Login</h1>
{{template "flashes" .}}
<form method="post" action="/api/login">
  <input name="email" placeholder="Email">
  <input name="password" type="password" placeholder="Password">
  <button type="submit">Login</button>
</form>
<a href="/api/register">Create an account</a>
</body>
</html>
{{end}}

{{define "dashboard"}}<!DOCTYPE html>
<html>
<head><title>Dashboard - Student Bank</title></head>
<body>
<h1>Dashboard</h1>
{{template "flashes" .Flashes}}
<p>Welcome, {{.Acct.FirstName}} {{.Acct.LastName}}</p>
<p>Email: {{.Acct.Email}}</p>
<p>Balance: {{.Acct.Balance.StringFixed 2}}</p>
<form method="post" action="/api/deposit">
  <input name="amount" placeholder="Amount">
  <button type="submit">Deposit</button>
</form>
<form method="post" action="/api/withdraw">
  <input name="amount" placeholder="Amount">
  <button type="submit">Withdraw</button>
</form>
<p><a href="/api/transactions">Transactions</a></p>
<p><a href="/api/statement">Download statement</a></p>
<p><a href="/api/logout">Logout</a></p>
</body>
</html>
{{end}}
`
