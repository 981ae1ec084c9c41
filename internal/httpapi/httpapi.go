package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"restobill/internal/archive"
	"restobill/internal/billing"
	"restobill/internal/domain"
	"restobill/internal/receipt"
	"restobill/internal/report"
)

type Options struct {
	AllowedOrigin string
	Location      *time.Location
	Logger        *zap.Logger
	Metrics       *Metrics
}

type API struct {
	billing       *billing.Service
	reports       *report.Service
	auth          *AuthManager
	allowedOrigin string
	location      *time.Location
	log           *zap.Logger
	metrics       *Metrics
	loginLimiter  *attemptLimiter
}

func New(svc *billing.Service, reports *report.Service, auth *AuthManager, opts Options) *API {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics()
	}
	return &API{
		billing:       svc,
		reports:       reports,
		auth:          auth,
		allowedOrigin: opts.AllowedOrigin,
		location:      opts.Location,
		log:           opts.Logger,
		metrics:       opts.Metrics,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
	}
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)
	mux.Handle("/metrics", a.metrics.Handler())
	mux.HandleFunc("/api/v1/auth/login", a.handleLogin)

	mux.HandleFunc("/api/v1/menu", a.requireAuth(a.handleMenu, domain.RoleCashier, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/orders", a.requireAuth(a.handleOrders, domain.RoleCashier, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/bills/", a.requireAuth(a.handleBill, domain.RoleCashier, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/reports", a.requireAuth(a.handleReports, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/reports/export", a.requireAuth(a.handleReportExport, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/users", a.requireAuth(a.handleUsers, domain.RoleAdmin))

	return a.withMiddleware(mux)
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}

		next(w, r.WithContext(withActor(r.Context(), actor)))
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"at":         time.Now().UTC().Format(time.RFC3339),
		"menu_items": a.billing.Catalog().Len(),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(r.Context(), req)
	switch {
	case errors.Is(err, errInvalidCredentials), errors.Is(err, errInactiveAccount):
		writeError(w, http.StatusUnauthorized, err)
		return
	case err != nil:
		a.log.Error("login failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleMenu(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": a.billing.Catalog().Items()})
}

func (a *API) handleOrders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.PlaceOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		a.metrics.orders.WithLabelValues(orderResultRejected).Inc()
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.billing.PlaceOrder(r.Context(), req)
	if err != nil {
		if domain.IsValidation(err) {
			a.metrics.orders.WithLabelValues(orderResultRejected).Inc()
		} else {
			a.metrics.orders.WithLabelValues(orderResultFailed).Inc()
		}
		a.writeDomainError(w, err)
		return
	}

	a.metrics.orders.WithLabelValues(orderResultPlaced).Inc()
	a.metrics.revenue.Add(resp.Bill.TotalAmount.InexactFloat64())
	if actor, ok := actorFromContext(r.Context()); ok {
		a.log.Info("order placed",
			zap.String("actor", actor.Username),
			zap.Int64("order_id", resp.Bill.OrderID),
		)
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (a *API) handleBill(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	raw, err := url.PathUnescape(strings.TrimPrefix(r.URL.Path, "/api/v1/bills/"))
	if err != nil || strings.TrimSpace(raw) == "" {
		writeError(w, http.StatusBadRequest, errors.New("bill timestamp is required"))
		return
	}
	ts, err := domain.ParseTimestamp(raw, a.location)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	bill, err := a.billing.RetrieveBill(r.Context(), ts)
	if err != nil {
		a.writeDomainError(w, err)
		return
	}

	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	switch format {
	case "", "json":
		writeJSON(w, http.StatusOK, map[string]any{"bill": bill})
	case "csv":
		content, err := archive.Render(bill)
		if err != nil {
			a.writeDomainError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="`+archive.FileName(bill.Timestamp)+`"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(content)
	case "text":
		var buf bytes.Buffer
		if err := receipt.Text(&buf, bill, a.billing.Catalog()); err != nil {
			a.writeDomainError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(buf.Bytes())
	case "pdf":
		doc, err := receipt.PDF(bill)
		if err != nil {
			a.writeDomainError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `inline; filename="receipt_`+bill.Timestamp.Format("2006-01-02_15-04-05")+`.pdf"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(doc)
	default:
		writeError(w, http.StatusBadRequest, errors.New("format must be json, csv, text or pdf"))
	}
}

func (a *API) handleReports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	reports, err := a.reports.Generate(r.Context())
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	a.metrics.reportRuns.WithLabelValues("generate").Inc()
	writeJSON(w, http.StatusOK, map[string]any{"reports": reports})
}

func (a *API) handleReportExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	files, err := a.reports.Export(r.Context())
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	a.metrics.reportRuns.WithLabelValues("export").Inc()
	writeJSON(w, http.StatusOK, map[string]any{"files": files})
}

func (a *API) handleUsers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		users, err := a.auth.ListUsers(r.Context())
		if err != nil {
			a.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"users": users})
	case http.MethodPost:
		var req domain.UserCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		user, err := a.auth.CreateUser(r.Context(), req)
		if err != nil {
			a.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"user": user})
	default:
		writeMethodNotAllowed(w)
	}
}

// writeDomainError maps validation errors to 400 and missing bills to 404.
// Everything else is a 500 with a generic body.
func (a *API) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case domain.IsValidation(err):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	default:
		a.log.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
	}
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

// writeError hides the message of 5xx responses.
func writeError(w http.ResponseWriter, status int, err error) {
	msg := err.Error()
	if status >= 500 {
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
