package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/maryannartillero/POS-namon/internal/domain"
	"github.com/maryannartillero/POS-namon/internal/logger"
	"github.com/maryannartillero/POS-namon/internal/service"
	"github.com/maryannartillero/POS-namon/internal/validation"
)

const maxBodyBytes = 1 << 20

type Options struct {
	AllowedOrigin string
	Logger        *slog.Logger
	// Metrics wraps every request and, when set, is exposed on /metrics.
	Metrics MetricsCollector
	// Ready is checked by /healthz. A nil func always reports ready.
	Ready func(ctx context.Context) error
}

type MetricsCollector interface {
	Middleware(next http.Handler) http.Handler
	Handler() http.Handler
}

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	log           *slog.Logger
	metrics       MetricsCollector
	ready         func(ctx context.Context) error
	loginLimiter  *attemptLimiter
}

func New(svc *service.Service, auth *AuthManager, opts Options) *API {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: opts.AllowedOrigin,
		log:           opts.Logger,
		metrics:       opts.Metrics,
		ready:         opts.Ready,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
	}
}

func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(logger.RequestLogger(a.log))
	r.Use(middleware.Recoverer)
	if a.metrics != nil {
		r.Use(a.metrics.Middleware)
	}
	r.Use(a.securityHeaders)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, errors.New("route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
	})

	r.Get("/healthz", a.handleHealth)
	if a.metrics != nil {
		r.Method(http.MethodGet, "/metrics", a.metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", a.handleLogin)
		r.Post("/feedback", a.handleSubmitFeedback)

		r.Group(func(r chi.Router) {
			r.Use(a.requireAuth)

			r.Route("/products", func(r chi.Router) {
				r.Get("/", a.handleListProducts)
				r.Post("/", a.handleCreateProduct)
				r.Get("/low-stock", a.handleLowStock)
				r.Get("/{id}", a.handleGetProduct)
				r.Patch("/{id}", a.handleUpdateProduct)
				r.Delete("/{id}", a.handleDeactivateProduct)
				r.Post("/{id}/adjust-stock", a.handleAdjustStock)
				r.Get("/{id}/movements", a.handleListMovements)
			})

			r.Route("/discounts", func(r chi.Router) {
				r.Get("/", a.handleListDiscounts)
				r.Post("/", a.handleCreateDiscount)
				r.Get("/active", a.handleActiveDiscounts)
				r.Get("/{id}", a.handleGetDiscount)
				r.Put("/{id}", a.handleUpdateDiscount)
			})

			r.Route("/transactions", func(r chi.Router) {
				r.Get("/", a.handleListTransactions)
				r.Post("/", a.handleCreateSale)
				r.Get("/{id}", a.handleGetTransaction)
			})

			r.Get("/reports/daily", a.handleDailyReport)
			r.Get("/reports/monthly", a.handleMonthlyReport)
			r.Get("/feedback", a.handleListFeedback)
			r.Get("/feedback/analytics", a.handleFeedbackAnalytics)
			r.Get("/feedback/{id}", a.handleGetFeedback)

			r.Route("/farewell-messages", func(r chi.Router) {
				r.Get("/", a.handleListFarewellMessages)
				r.Post("/", a.handleCreateFarewellMessage)
				r.Get("/random", a.handleRandomFarewellMessage)
				r.Put("/{id}", a.handleUpdateFarewellMessage)
				r.Delete("/{id}", a.handleDeactivateFarewellMessage)
			})
		})
	})

	return r
}

func (a *API) securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if a.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.ready(ctx); err != nil {
			a.log.WarnContext(ctx, "readiness check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts, try again later"))
		return
	}

	var req domain.LoginRequest
	if !a.decode(w, r, &req) {
		return
	}
	if err := validation.Struct(req); err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	resp, err := a.auth.Login(r.Context(), req)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthenticated) {
			writeError(w, http.StatusUnauthorized, err)
			return
		}
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	products, err := a.service.ListProducts(r.Context(), domain.ProductFilter{
		CategoryID:      strings.TrimSpace(q.Get("category_id")),
		Search:          strings.TrimSpace(q.Get("search")),
		LowStock:        parseBool(q.Get("low_stock")),
		IncludeInactive: parseBool(q.Get("include_inactive")),
	})
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (a *API) handleLowStock(w http.ResponseWriter, r *http.Request) {
	products, err := a.service.LowStockProducts(r.Context())
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (a *API) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req domain.ProductCreateRequest
	if !a.decode(w, r, &req) {
		return
	}
	product, err := a.service.CreateProduct(r.Context(), actorFrom(r.Context()), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"product": product})
}

func (a *API) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := a.service.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": product})
}

func (a *API) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req domain.ProductUpdateRequest
	if !a.decode(w, r, &req) {
		return
	}
	product, err := a.service.UpdateProduct(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": product})
}

func (a *API) handleDeactivateProduct(w http.ResponseWriter, r *http.Request) {
	product, err := a.service.DeactivateProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": product})
}

func (a *API) handleAdjustStock(w http.ResponseWriter, r *http.Request) {
	var req domain.StockAdjustmentRequest
	if !a.decode(w, r, &req) {
		return
	}
	resp, err := a.service.AdjustStock(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleListMovements(w http.ResponseWriter, r *http.Request) {
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 50, 500)
	movements, err := a.service.ListMovements(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"movements": movements})
}

func (a *API) handleListDiscounts(w http.ResponseWriter, r *http.Request) {
	discounts, err := a.service.ListDiscounts(r.Context())
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"discounts": discounts})
}

func (a *API) handleActiveDiscounts(w http.ResponseWriter, r *http.Request) {
	discounts, err := a.service.ActiveDiscounts(r.Context())
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"discounts": discounts})
}

func (a *API) handleCreateDiscount(w http.ResponseWriter, r *http.Request) {
	var req domain.DiscountRequest
	if !a.decode(w, r, &req) {
		return
	}
	d, err := a.service.CreateDiscount(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"discount": d})
}

func (a *API) handleGetDiscount(w http.ResponseWriter, r *http.Request) {
	d, err := a.service.GetDiscount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"discount": d})
}

func (a *API) handleUpdateDiscount(w http.ResponseWriter, r *http.Request) {
	var req domain.DiscountRequest
	if !a.decode(w, r, &req) {
		return
	}
	d, err := a.service.UpdateDiscount(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"discount": d})
}

func (a *API) handleCreateSale(w http.ResponseWriter, r *http.Request) {
	var req domain.SaleRequest
	if !a.decode(w, r, &req) {
		return
	}
	resp, err := a.service.CreateSale(r.Context(), actorFrom(r.Context()), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (a *API) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	loc := a.service.Location()

	from, err := parseDate("date_from", q.Get("date_from"), loc)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	to, err := parseDate("date_to", q.Get("date_to"), loc)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	if to != nil {
		// date_to is inclusive
		end := to.AddDate(0, 0, 1)
		to = &end
	}

	txs, err := a.service.ListTransactions(r.Context(), domain.TransactionFilter{
		From:      from,
		To:        to,
		CashierID: strings.TrimSpace(q.Get("user_id")),
		Status:    strings.TrimSpace(q.Get("status")),
		Limit:     parsePositiveLimit(q.Get("limit"), 50, 200),
		Offset:    parseOffset(q.Get("offset")),
	})
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": txs})
}

func (a *API) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := a.service.GetTransaction(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transaction": tx})
}

func (a *API) handleDailyReport(w http.ResponseWriter, r *http.Request) {
	day, err := parseDate("date", r.URL.Query().Get("date"), a.service.Location())
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	var target time.Time
	if day != nil {
		target = *day
	}

	report, err := a.service.DailyReport(r.Context(), target)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *API) handleMonthlyReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	now := a.service.Today()

	month, err := parseIntParam("month", q.Get("month"), int(now.Month()))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	year, err := parseIntParam("year", q.Get("year"), now.Year())
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	report, err := a.service.MonthlyReport(r.Context(), year, time.Month(month))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *API) handleSubmitFeedback(w http.ResponseWriter, r *http.Request) {
	var req domain.FeedbackRequest
	if !a.decode(w, r, &req) {
		return
	}
	resp, err := a.service.SubmitFeedback(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (a *API) handleListFeedback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	loc := a.service.Location()

	rating, err := parseIntParam("rating", q.Get("rating"), 0)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	from, err := parseDate("date_from", q.Get("date_from"), loc)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	to, err := parseDate("date_to", q.Get("date_to"), loc)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	if to != nil {
		// date_to is inclusive
		end := to.AddDate(0, 0, 1)
		to = &end
	}
	perPage := parsePositiveLimit(q.Get("per_page"), 15, 100)
	page := parsePositiveLimit(q.Get("page"), 1, 100000)

	feedback, err := a.service.ListFeedback(r.Context(), domain.FeedbackFilter{
		Rating: rating,
		From:   from,
		To:     to,
		Limit:  perPage,
		Offset: (page - 1) * perPage,
	})
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"feedback": feedback, "page": page, "per_page": perPage})
}

func (a *API) handleGetFeedback(w http.ResponseWriter, r *http.Request) {
	fb, err := a.service.GetFeedback(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"feedback": fb})
}

func (a *API) handleFeedbackAnalytics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	loc := a.service.Location()
	from, err := parseDate("date_from", q.Get("date_from"), loc)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	to, err := parseDate("date_to", q.Get("date_to"), loc)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	analytics, err := a.service.FeedbackAnalytics(r.Context(), from, to)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, analytics)
}

func (a *API) handleListFarewellMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := a.service.ListFarewellMessages(r.Context(), parseBool(r.URL.Query().Get("active_only")))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"farewell_messages": messages})
}

func (a *API) handleCreateFarewellMessage(w http.ResponseWriter, r *http.Request) {
	var req domain.FarewellMessageRequest
	if !a.decode(w, r, &req) {
		return
	}
	msg, err := a.service.CreateFarewellMessage(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"farewell_message": msg})
}

func (a *API) handleUpdateFarewellMessage(w http.ResponseWriter, r *http.Request) {
	var req domain.FarewellMessageRequest
	if !a.decode(w, r, &req) {
		return
	}
	msg, err := a.service.UpdateFarewellMessage(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Farewell message updated successfully", "farewell_message": msg})
}

func (a *API) handleDeactivateFarewellMessage(w http.ResponseWriter, r *http.Request) {
	msg, err := a.service.DeactivateFarewellMessage(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Farewell message deactivated", "farewell_message": msg})
}

func (a *API) handleRandomFarewellMessage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"message": a.service.RandomFarewellMessage(r.Context())})
}

// writeServiceError maps domain failures onto status codes. Anything that is
// not a known business error is logged and reported as a generic 500.
func (a *API) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  "validation failed",
			"fields": verr.Fields,
		})
	case errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrTransactionNotFound),
		errors.Is(err, domain.ErrFeedbackNotFound),
		errors.Is(err, domain.ErrFarewellNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, domain.ErrDiscountNotFound):
		if chi.URLParam(r, "id") != "" {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusUnprocessableEntity, err)
	case errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrDuplicateFeedback):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, domain.ErrInsufficientPayment),
		errors.Is(err, domain.ErrInvalidQuantity):
		writeError(w, http.StatusUnprocessableEntity, err)
	case errors.Is(err, context.Canceled):
		writeError(w, http.StatusServiceUnavailable, errors.New("request cancelled"))
	default:
		a.log.ErrorContext(r.Context(), "request failed",
			"request_id", middleware.GetReqID(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, err)
	}
}

// decode reads a JSON body, writing a 422 and returning false on failure.
func (a *API) decode(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := decodeJSON(r, dest); err != nil {
		a.writeServiceError(w, r, domain.NewValidationError("body", err.Error()))
		return false
	}
	return true
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return err
	}
	return nil
}

// parseDate reads an optional YYYY-MM-DD value as midnight in loc.
func parseDate(field string, raw string, loc *time.Location) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, raw, loc)
	if err != nil {
		return nil, domain.NewValidationError(field, "must be a date formatted as YYYY-MM-DD")
	}
	return &t, nil
}

func parseIntParam(field string, raw string, fallback int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.NewValidationError(field, "must be an integer")
	}
	return v, nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func parseOffset(raw string) int {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || v < 0 {
		return 0
	}
	return v
}

func parseBool(raw string) bool {
	v, _ := strconv.ParseBool(strings.TrimSpace(raw))
	return v
}

func writeError(w http.ResponseWriter, status int, err error) {
	msg := err.Error()
	if status >= 500 {
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
