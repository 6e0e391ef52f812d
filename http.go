package bankapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var (
	statusOK    = []byte(`{"status":"OK"}`)
	notLoggedIn = []byte(`{"error": "Not logged in"}`)
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping() error
}

func NewHTTPHandler(svc Service, sess *Sessions, health Pinger, log *zerolog.Logger) http.Handler {
	hndlr := &httpHandler{
		Svc:    svc,
		Sess:   sess,
		Health: health,
		Log:    log,
	}
	mux := chi.NewMux()
	mux.Use(RequestID)
	mux.NotFound(HTTPNotFound)
	mux.Get("/", hndlr.Home)
	mux.Route("/api", func(r chi.Router) {
		r.Get("/register", hndlr.RegisterPage)
		r.Post("/register", hndlr.Register)
		r.Get("/login", hndlr.LoginPage)
		r.Post("/login", hndlr.Login)
		r.Get("/dashboard", hndlr.Dashboard)
		r.Post("/deposit", hndlr.Deposit)
		r.Post("/withdraw", hndlr.Withdraw)
		r.Get("/transactions", hndlr.Transactions)
		r.Get("/transactions/", hndlr.Transactions)
		r.Get("/statement", hndlr.Statement)
		r.Get("/logout", hndlr.Logout)
	})
	mux.Get("/healthz", hndlr.Healthz)

	return mux
}

type httpHandler struct {
	Svc    Service
	Sess   *Sessions
	Health Pinger
	Log    *zerolog.Logger
}

func (h *httpHandler) Home(w http.ResponseWriter, r *http.Request) {
	if _, err := h.Sess.FromRequest(r); err == nil {
		http.Redirect(w, r, "/api/dashboard", http.StatusFound)
		return
	}
	http.Redirect(w, r, "/api/login", http.StatusFound)
}

func (h *httpHandler) RegisterPage(w http.ResponseWriter, r *http.Request) {
	if err := renderRegisterPage(w, popFlashes(w, r)); err != nil {
		h.Log.Err(err).
			Str("method", "register").
			Str("request_id", GetRequestID(r.Context())).
			Msg("error rendering page")
	}
}

func (h *httpHandler) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.Log.Err(err).
			Str("method", "register").
			Str("request_id", GetRequestID(r.Context())).
			Msg("error parsing form")
		setFlashes(w, "Please fill all fields")
		http.Redirect(w, r, "/api/register", http.StatusFound)
		return
	}
	req := RegisterReq{
		FirstName: r.PostFormValue("first_name"),
		LastName:  r.PostFormValue("last_name"),
		Email:     r.PostFormValue("email"),
		Password:  r.PostFormValue("password"),
	}
	if req.FirstName == "" || req.LastName == "" || req.Email == "" || req.Password == "" {
		setFlashes(w, "Please fill all fields")
		http.Redirect(w, r, "/api/register", http.StatusFound)
		return
	}
	if _, err := h.Svc.Register(req); err != nil {
		errcf := &ErrConflict{}
		errbr := &ErrBadRequest{}
		if errors.As(err, errcf) {
			setFlashes(w, "Email already exists")
			http.Redirect(w, r, "/api/register", http.StatusFound)
		} else if errors.As(err, errbr) {
			setFlashes(w, "Invalid email address")
			http.Redirect(w, r, "/api/register", http.StatusFound)
		} else {
			WriteHTTPError(w, err)
		}
		return
	}

	setFlashes(w, "Registration successful. Please log in.")
	http.Redirect(w, r, "/api/login", http.StatusFound)
}

func (h *httpHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	if err := renderLoginPage(w, popFlashes(w, r)); err != nil {
		h.Log.Err(err).
			Str("method", "login").
			Str("request_id", GetRequestID(r.Context())).
			Msg("error rendering page")
	}
}

func (h *httpHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.Log.Err(err).
			Str("method", "login").
			Str("request_id", GetRequestID(r.Context())).
			Msg("error parsing form")
		setFlashes(w, "Invalid email or password")
		http.Redirect(w, r, "/api/login", http.StatusFound)
		return
	}
	req := LoginReq{
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
	}
	acct, err := h.Svc.Login(req)
	if err != nil {
		if isBusinessErr(err) {
			setFlashes(w, "Invalid email or password")
			http.Redirect(w, r, "/api/login", http.StatusFound)
		} else {
			WriteHTTPError(w, err)
		}
		return
	}
	if err = h.Sess.Issue(w, acct); err != nil {
		h.Log.Err(err).
			Str("method", "login").
			Str("request_id", GetRequestID(r.Context())).
			Msg("error issuing session")
		WriteHTTPError(w, ErrInternalServer)
		return
	}

	http.Redirect(w, r, "/api/dashboard", http.StatusFound)
}

func (h *httpHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	acctID, err := h.Sess.FromRequest(r)
	if err != nil {
		http.Redirect(w, r, "/api/login", http.StatusFound)
		return
	}
	acct, err := h.Svc.Account(acctID)
	if err != nil {
		errnf := &ErrNotFound{}
		if errors.As(err, errnf) {
			// The session outlived its account. Force a fresh login.
			h.Sess.Clear(w)
			http.Redirect(w, r, "/api/login", http.StatusFound)
			return
		}
		WriteHTTPError(w, err)
		return
	}
	if err = renderDashboardPage(w, acct, popFlashes(w, r)); err != nil {
		h.Log.Err(err).
			Str("method", "dashboard").
			Str("request_id", GetRequestID(r.Context())).
			Msg("error rendering page")
	}
}

func (h *httpHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	acctID, err := h.Sess.FromRequest(r)
	if err != nil {
		http.Redirect(w, r, "/api/login", http.StatusFound)
		return
	}
	if err = r.ParseForm(); err != nil {
		h.Log.Err(err).
			Str("method", "deposit").
			Str("request_id", GetRequestID(r.Context())).
			Msg("error parsing form")
		setFlashes(w, "Invalid amount")
		http.Redirect(w, r, "/api/dashboard", http.StatusFound)
		return
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(r.PostFormValue("amount")))
	if err != nil {
		setFlashes(w, "Invalid amount")
		http.Redirect(w, r, "/api/dashboard", http.StatusFound)
		return
	}
	if !amount.IsPositive() {
		setFlashes(w, "Amount must be positive")
		http.Redirect(w, r, "/api/dashboard", http.StatusFound)
		return
	}
	var flashes []string
	if amount.GreaterThan(LargeDepositThreshold) {
		flashes = append(flashes, "Amount above 10,000 requires OTP verification (skipped)")
	}
	if _, err = h.Svc.Deposit(ChargeReq{Amount: amount, AcctID: acctID}); err != nil {
		if isBusinessErr(err) {
			setFlashes(w, "Invalid amount")
			http.Redirect(w, r, "/api/dashboard", http.StatusFound)
		} else {
			WriteHTTPError(w, err)
		}
		return
	}

	flashes = append(flashes, "Deposit successful")
	setFlashes(w, flashes...)
	http.Redirect(w, r, "/api/dashboard", http.StatusFound)
}

func (h *httpHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	acctID, err := h.Sess.FromRequest(r)
	if err != nil {
		http.Redirect(w, r, "/api/login", http.StatusFound)
		return
	}
	if err = r.ParseForm(); err != nil {
		h.Log.Err(err).
			Str("method", "withdraw").
			Str("request_id", GetRequestID(r.Context())).
			Msg("error parsing form")
		setFlashes(w, "Invalid amount")
		http.Redirect(w, r, "/api/dashboard", http.StatusFound)
		return
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(r.PostFormValue("amount")))
	if err != nil {
		setFlashes(w, "Invalid amount")
		http.Redirect(w, r, "/api/dashboard", http.StatusFound)
		return
	}
	if !amount.IsPositive() {
		setFlashes(w, "Amount must be positive")
		http.Redirect(w, r, "/api/dashboard", http.StatusFound)
		return
	}
	if _, err = h.Svc.Withdraw(ChargeReq{Amount: amount, AcctID: acctID}); err != nil {
		switch {
		case errors.Is(err, ErrInsufficientFunds):
			setFlashes(w, "Insufficient funds")
			http.Redirect(w, r, "/api/dashboard", http.StatusFound)
		case isBusinessErr(err):
			setFlashes(w, "Invalid amount")
			http.Redirect(w, r, "/api/dashboard", http.StatusFound)
		default:
			WriteHTTPError(w, err)
		}
		return
	}

	setFlashes(w, "Withdrawal successful")
	http.Redirect(w, r, "/api/dashboard", http.StatusFound)
}

func (h *httpHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	acctID, err := h.Sess.FromRequest(r)
	if err != nil {
		WriteHTTPError(w, ErrAuthRequired)
		return
	}
	groups, err := h.Svc.Transactions(acctID)
	if err != nil {
		WriteHTTPError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err = json.NewEncoder(w).Encode(groups); err != nil {
		WriteHTTPError(w, err)
	}
}

func (h *httpHandler) Statement(w http.ResponseWriter, r *http.Request) {
	acctID, err := h.Sess.FromRequest(r)
	if err != nil {
		WriteHTTPError(w, ErrAuthRequired)
		return
	}
	// Build the document before touching the response so failures can still
	// produce a proper error status.
	var buf bytes.Buffer
	if err = h.Svc.Statement(&buf, acctID); err != nil {
		WriteHTTPError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="statement.pdf"`)
	if _, err = w.Write(buf.Bytes()); err != nil {
		h.Log.Err(err).
			Str("method", "statement").
			Str("request_id", GetRequestID(r.Context())).
			Msg("error writing PDF response")
	}
}

func (h *httpHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.Sess.Clear(w)
	setFlashes(w, "Logged out")
	http.Redirect(w, r, "/api/login", http.StatusFound)
}

func (h *httpHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := h.Health.Ping(); err != nil {
		h.Log.Err(err).
			Str("method", "healthz").
			Str("request_id", GetRequestID(r.Context())).
			Msg("store ping failed")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
		return
	}
	w.Write(statusOK)
}

func WriteHTTPError(w http.ResponseWriter, err error) {
	var ne error
	defer func() {
		if ne != nil {
			log.Error().
				Err(ne).
				Msg("error response encoding failed")
		}
	}()

	w.Header().Set("Content-Type", "application/json")
	errnf := &ErrNotFound{}
	errbr := &ErrBadRequest{}
	errcf := &ErrConflict{}
	switch {
	case errors.Is(err, ErrAuthRequired):
		w.WriteHeader(http.StatusUnauthorized)
		_, ne = w.Write(notLoggedIn)
	case errors.Is(err, ErrAuth):
		w.WriteHeader(http.StatusUnauthorized)
		ne = json.NewEncoder(w).Encode(map[string]string{"error": ErrAuth.Error()})
	case errors.As(err, errnf):
		w.WriteHeader(http.StatusNotFound)
		ne = json.NewEncoder(w).Encode(errnf)
	case errors.As(err, errbr):
		w.WriteHeader(http.StatusBadRequest)
		ne = json.NewEncoder(w).Encode(errbr)
	case errors.As(err, errcf):
		w.WriteHeader(http.StatusConflict)
		ne = json.NewEncoder(w).Encode(errcf)
	case errors.Is(err, ErrInsufficientFunds):
		w.WriteHeader(http.StatusUnprocessableEntity)
		ne = json.NewEncoder(w).Encode(map[string]string{"error": ErrInsufficientFunds.Error()})
	case errors.Is(err, ErrUnavailable):
		w.WriteHeader(http.StatusServiceUnavailable)
		ne = json.NewEncoder(w).Encode(map[string]string{"error": ErrUnavailable.Error()})
	default:
		w.WriteHeader(http.StatusInternalServerError)
		resp := map[string]string{
			"message": "server error",
		}
		ne = json.NewEncoder(w).Encode(resp)
	}
}

func HTTPNotFound(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNotFound)
	w.Header().Set("Content-Type", "application/json")
	resp := map[string]string{
		"path": r.URL.Path,
	}
	json.NewEncoder(w).Encode(resp)
}

type contextKey string

const RequestIDKey contextKey = "request_id"

// RequestID tags every request with an ID, minting one when the caller did not
// send its own, so log lines and responses can be correlated.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}

		ctx := context.WithValue(r.Context(), RequestIDKey, reqID)
		w.Header().Set("X-Request-ID", reqID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func GetRequestID(ctx context.Context) string {
	if val := ctx.Value(RequestIDKey); val != nil {
		return val.(string)
	}
	return ""
}
