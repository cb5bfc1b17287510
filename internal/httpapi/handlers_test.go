package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/maryannartillero/POS-namon/internal/domain"
	"github.com/maryannartillero/POS-namon/internal/metrics"
	"github.com/maryannartillero/POS-namon/internal/service"
	"github.com/maryannartillero/POS-namon/internal/store/memory"
)

// newTestAPI builds a full API over a seeded in-memory store so handler tests
// exercise the complete request path.
func newTestAPI(t *testing.T, mutate ...func(*Options)) *API {
	t.Helper()

	repo := memory.NewSeeded()
	svc := service.New(repo, service.DefaultOptions())
	auth := NewAuthManager("test-secret-key", time.Hour, repo)

	opts := Options{AllowedOrigin: "http://pos.test"}
	for _, m := range mutate {
		m(&opts)
	}
	return New(svc, auth, opts)
}

func loginToken(t *testing.T, handler http.Handler) string {
	t.Helper()
	rec := doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{Username: "cashier", Password: "cashier123"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	var resp domain.LoginResponse
	decodeBody(t, rec, &resp)
	return resp.AccessToken
}

func doJSON(t *testing.T, handler http.Handler, method string, path string, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func paid(cents int64) *int64 {
	return &cents
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dest); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}

func TestHandleHealth(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := doJSON(t, handler, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	decodeBody(t, rec, &body)
	if body["status"] != "ok" {
		t.Fatalf("expected status ok, got %v", body["status"])
	}
}

func TestHandleHealthReportsUnavailableStore(t *testing.T) {
	handler := newTestAPI(t, func(o *Options) {
		o.Ready = func(context.Context) error { return errors.New("db down") }
	}).Handler()

	rec := doJSON(t, handler, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{Username: "admin", Password: "nope"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	handler := newTestAPI(t).Handler()

	for _, path := range []string{"/api/v1/products", "/api/v1/transactions", "/api/v1/reports/daily", "/api/v1/feedback/analytics"} {
		rec := doJSON(t, handler, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", path, rec.Code)
		}
	}

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/products", "not-a-jwt", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", rec.Code)
	}
}

func TestSaleLifecycle(t *testing.T) {
	handler := newTestAPI(t).Handler()
	token := loginToken(t, handler)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/transactions", token, domain.SaleRequest{
		Items:           []domain.CartLine{{ProductID: "prd-0001", Quantity: 2}},
		PaymentMethod:   domain.PaymentCash,
		AmountPaidCents: paid(5000),
		CustomerEmail:   "buyer@example.com",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	var sale domain.SaleResponse
	decodeBody(t, rec, &sale)
	if !strings.HasPrefix(sale.Transaction.Number, "TXN-") {
		t.Fatalf("unexpected transaction number %q", sale.Transaction.Number)
	}
	if sale.Transaction.CashierID != "usr-cashier" {
		t.Fatalf("expected sale to be attributed to the caller, got %q", sale.Transaction.CashierID)
	}
	if sale.Transaction.SubtotalCents != 1798 || sale.Transaction.TaxCents != 144 || sale.Transaction.TotalCents != 1942 {
		t.Fatalf("unexpected breakdown %+v", sale.Transaction)
	}
	if sale.FarewellMessage == nil {
		t.Fatalf("expected a farewell message from the seeded catalog")
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/products/prd-0001", token, nil)
	var product struct {
		Product domain.Product `json:"product"`
	}
	decodeBody(t, rec, &product)
	if product.Product.Stock != 118 {
		t.Fatalf("expected stock 118, got %d", product.Product.Stock)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/transactions/"+sale.Transaction.ID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/feedback", "", domain.FeedbackRequest{TransactionID: sale.Transaction.ID, Rating: 5})
	if rec.Code != http.StatusCreated {
		t.Fatalf("feedback: expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, handler, http.MethodPost, "/api/v1/feedback", "", domain.FeedbackRequest{TransactionID: sale.Transaction.ID, Rating: 2})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate feedback: expected 409, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/feedback/analytics", token, nil)
	var analytics domain.FeedbackAnalytics
	decodeBody(t, rec, &analytics)
	if analytics.Analytics.TotalFeedback != 1 || analytics.SatisfactionScore != 100 {
		t.Fatalf("unexpected analytics %+v", analytics.Analytics)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/reports/daily", token, nil)
	var daily domain.DailyReport
	decodeBody(t, rec, &daily)
	if daily.Summary.Transactions != 1 || daily.Summary.TotalSalesCents != 1942 {
		t.Fatalf("unexpected daily summary %+v", daily.Summary)
	}
}

func TestSaleErrorStatusCodes(t *testing.T) {
	handler := newTestAPI(t).Handler()
	token := loginToken(t, handler)

	cases := []struct {
		name string
		req  domain.SaleRequest
		want int
	}{
		{
			name: "validation",
			req:  domain.SaleRequest{PaymentMethod: "barter"},
			want: http.StatusUnprocessableEntity,
		},
		{
			name: "missing amount paid",
			req:  domain.SaleRequest{Items: []domain.CartLine{{ProductID: "prd-0001", Quantity: 1}}, PaymentMethod: domain.PaymentCash},
			want: http.StatusUnprocessableEntity,
		},
		{
			name: "unknown product",
			req:  domain.SaleRequest{Items: []domain.CartLine{{ProductID: "prd-9999", Quantity: 1}}, PaymentMethod: domain.PaymentCash, AmountPaidCents: paid(100000)},
			want: http.StatusNotFound,
		},
		{
			name: "insufficient stock",
			req:  domain.SaleRequest{Items: []domain.CartLine{{ProductID: "prd-0006", Quantity: 9}}, PaymentMethod: domain.PaymentCash, AmountPaidCents: paid(100000)},
			want: http.StatusConflict,
		},
		{
			name: "unknown discount",
			req:  domain.SaleRequest{Items: []domain.CartLine{{ProductID: "prd-0001", Quantity: 1}}, PaymentMethod: domain.PaymentCash, AmountPaidCents: paid(100000), DiscountID: "dsc-9999"},
			want: http.StatusUnprocessableEntity,
		},
		{
			name: "insufficient payment",
			req:  domain.SaleRequest{Items: []domain.CartLine{{ProductID: "prd-0001", Quantity: 1}}, PaymentMethod: domain.PaymentCash, AmountPaidCents: paid(1)},
			want: http.StatusUnprocessableEntity,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, handler, http.MethodPost, "/api/v1/transactions", token, tc.req)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d (%s)", tc.want, rec.Code, rec.Body.String())
			}
		})
	}

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/transactions", token, nil)
	var list struct {
		Transactions []domain.Transaction `json:"transactions"`
	}
	decodeBody(t, rec, &list)
	if len(list.Transactions) != 0 {
		t.Fatalf("failed sales must not persist, found %d", len(list.Transactions))
	}
}

func TestProductAndStockEndpoints(t *testing.T) {
	handler := newTestAPI(t).Handler()
	token := loginToken(t, handler)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/products", token, domain.ProductCreateRequest{
		SKU: "TST-001", Name: "Test Item", PriceCents: 1000, InitialStock: 10, MinStock: 2,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	var created struct {
		Product domain.Product `json:"product"`
	}
	decodeBody(t, rec, &created)

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/products/"+created.Product.ID+"/adjust-stock", token, domain.StockAdjustmentRequest{
		Kind: domain.MovementOut, Quantity: 9, Reason: "shrinkage",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("adjust: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	var adjusted domain.StockAdjustmentResponse
	decodeBody(t, rec, &adjusted)
	if adjusted.Product.Stock != 1 || adjusted.Movement.PreviousStock != 10 {
		t.Fatalf("unexpected adjustment %+v", adjusted)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/products/"+created.Product.ID+"/adjust-stock", token, map[string]any{
		"type": "in", "quantity": -2, "reason": "oops",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("negative quantity: expected 422, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/products/low-stock", token, nil)
	var low struct {
		Products []domain.Product `json:"products"`
	}
	decodeBody(t, rec, &low)
	found := false
	for _, p := range low.Products {
		if p.ID == created.Product.ID {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected new product in low stock list")
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/products/"+created.Product.ID+"/movements", token, nil)
	var history struct {
		Movements []domain.InventoryMovement `json:"movements"`
	}
	decodeBody(t, rec, &history)
	if len(history.Movements) != 2 {
		t.Fatalf("expected initial and adjustment movements, got %d", len(history.Movements))
	}

	rec = doJSON(t, handler, http.MethodDelete, "/api/v1/products/"+created.Product.ID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("deactivate: expected 200, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/products/prd-9999", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown product, got %d", rec.Code)
	}
}

func TestDiscountEndpoints(t *testing.T) {
	handler := newTestAPI(t).Handler()
	token := loginToken(t, handler)

	today := time.Now().UTC().Format(time.DateOnly)
	rec := doJSON(t, handler, http.MethodPost, "/api/v1/discounts", token, domain.DiscountRequest{
		Name: "Flash", Type: domain.DiscountFixed, AmountCents: 200, StartDate: today, EndDate: today,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/discounts/active", token, nil)
	var active struct {
		Discounts []domain.Discount `json:"discounts"`
	}
	decodeBody(t, rec, &active)
	if len(active.Discounts) != 3 {
		t.Fatalf("expected seeded and new discounts to be active, got %d", len(active.Discounts))
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/discounts/dsc-9999", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestFarewellEndpoints(t *testing.T) {
	handler := newTestAPI(t).Handler()
	token := loginToken(t, handler)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/farewell-messages", token, domain.FarewellMessageRequest{Message: "Cheers!"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/farewell-messages/random", token, nil)
	var random struct {
		Message *string `json:"message"`
	}
	decodeBody(t, rec, &random)
	if random.Message == nil || *random.Message == "" {
		t.Fatalf("expected a random message")
	}
}

func TestFarewellUpdateAndDeactivate(t *testing.T) {
	handler := newTestAPI(t).Handler()
	token := loginToken(t, handler)

	rec := doJSON(t, handler, http.MethodPut, "/api/v1/farewell-messages/fwm-0001", token, domain.FarewellMessageRequest{Message: "Come back soon!", DisplayOrder: 4})
	if rec.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	var updated struct {
		FarewellMessage domain.FarewellMessage `json:"farewell_message"`
	}
	decodeBody(t, rec, &updated)
	if updated.FarewellMessage.Message != "Come back soon!" || updated.FarewellMessage.DisplayOrder != 4 || !updated.FarewellMessage.Active {
		t.Fatalf("unexpected update result %+v", updated.FarewellMessage)
	}

	rec = doJSON(t, handler, http.MethodPut, "/api/v1/farewell-messages/fwm-0001", token, domain.FarewellMessageRequest{})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("empty update: expected 422, got %d", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodPut, "/api/v1/farewell-messages/fwm-9999", token, domain.FarewellMessageRequest{Message: "x"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown id: expected 404, got %d", rec.Code)
	}

	for _, id := range []string{"fwm-0001", "fwm-0002", "fwm-0003"} {
		rec = doJSON(t, handler, http.MethodDelete, "/api/v1/farewell-messages/"+id, token, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("deactivate %s: expected 200, got %d", id, rec.Code)
		}
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/farewell-messages/random", token, nil)
	var random struct {
		Message *string `json:"message"`
	}
	decodeBody(t, rec, &random)
	if random.Message != nil {
		t.Fatalf("expected no active message, got %q", *random.Message)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/farewell-messages", token, nil)
	var all struct {
		Messages []domain.FarewellMessage `json:"farewell_messages"`
	}
	decodeBody(t, rec, &all)
	if len(all.Messages) != 3 {
		t.Fatalf("deactivated messages must be kept, got %d", len(all.Messages))
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/transactions", token, domain.SaleRequest{
		Items:           []domain.CartLine{{ProductID: "prd-0001", Quantity: 1}},
		PaymentMethod:   domain.PaymentCash,
		AmountPaidCents: paid(5000),
	})
	var sale domain.SaleResponse
	decodeBody(t, rec, &sale)
	if sale.FarewellMessage != nil {
		t.Fatalf("sale must not pick an inactive message, got %q", *sale.FarewellMessage)
	}
}

func TestFeedbackListAndShow(t *testing.T) {
	handler := newTestAPI(t).Handler()
	token := loginToken(t, handler)

	ratings := []int{5, 2, 5}
	ids := make([]string, 0, len(ratings))
	for _, rating := range ratings {
		rec := doJSON(t, handler, http.MethodPost, "/api/v1/transactions", token, domain.SaleRequest{
			Items:           []domain.CartLine{{ProductID: "prd-0001", Quantity: 1}},
			PaymentMethod:   domain.PaymentCash,
			AmountPaidCents: paid(5000),
		})
		var sale domain.SaleResponse
		decodeBody(t, rec, &sale)

		rec = doJSON(t, handler, http.MethodPost, "/api/v1/feedback", "", domain.FeedbackRequest{TransactionID: sale.Transaction.ID, Rating: rating})
		if rec.Code != http.StatusCreated {
			t.Fatalf("feedback: expected 201, got %d (%s)", rec.Code, rec.Body.String())
		}
		var created domain.FeedbackResponse
		decodeBody(t, rec, &created)
		ids = append(ids, created.Feedback.ID)
	}

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/feedback", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("listing feedback must require a token, got %d", rec.Code)
	}

	var list struct {
		Feedback []domain.CustomerFeedback `json:"feedback"`
		PerPage  int                       `json:"per_page"`
	}
	rec = doJSON(t, handler, http.MethodGet, "/api/v1/feedback?rating=5", token, nil)
	decodeBody(t, rec, &list)
	if len(list.Feedback) != 2 || list.PerPage != 15 {
		t.Fatalf("expected two 5-star entries on a 15 item page, got %d (%d)", len(list.Feedback), list.PerPage)
	}
	for _, fb := range list.Feedback {
		if fb.Rating != 5 {
			t.Fatalf("rating filter leaked %+v", fb)
		}
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/feedback?per_page=2&page=2", token, nil)
	decodeBody(t, rec, &list)
	if len(list.Feedback) != 1 {
		t.Fatalf("expected 1 entry on page 2, got %d", len(list.Feedback))
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/feedback?date_from=2000-01-01&date_to=2000-01-31", token, nil)
	decodeBody(t, rec, &list)
	if len(list.Feedback) != 0 {
		t.Fatalf("expected no entries outside the window, got %d", len(list.Feedback))
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/feedback?rating=9", token, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad rating: expected 422, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/feedback/"+ids[1], token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("show: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	var shown struct {
		Feedback domain.FeedbackDetail `json:"feedback"`
	}
	decodeBody(t, rec, &shown)
	if shown.Feedback.Rating != 2 || shown.Feedback.Transaction == nil || shown.Feedback.Transaction.ID != shown.Feedback.TransactionID {
		t.Fatalf("unexpected feedback detail %+v", shown.Feedback)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/feedback/fbk-missing", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown feedback: expected 404, got %d", rec.Code)
	}
}

func TestMonthlyReportDefaultsToServiceClock(t *testing.T) {
	repo := memory.NewSeeded()
	opts := service.DefaultOptions()
	opts.Now = func() time.Time { return time.Date(2025, time.February, 10, 9, 0, 0, 0, time.UTC) }
	api := New(service.New(repo, opts), NewAuthManager("test-secret-key", time.Hour, repo), Options{})
	handler := api.Handler()
	token := loginToken(t, handler)

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/reports/monthly", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	var report domain.MonthlyReport
	decodeBody(t, rec, &report)
	if report.Month != 2 || report.Year != 2025 {
		t.Fatalf("expected February 2025 from the service clock, got %d/%d", report.Month, report.Year)
	}
}

func TestReportQueryValidation(t *testing.T) {
	handler := newTestAPI(t).Handler()
	token := loginToken(t, handler)

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/reports/daily?date=14-03-2026", token, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for bad date, got %d", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodGet, "/api/v1/reports/monthly?month=13&year=2026", token, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for bad month, got %d", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodGet, "/api/v1/reports/monthly?month=1&year=2026", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestMetricsEndpointUsesRoutePatterns(t *testing.T) {
	handler := newTestAPI(t, func(o *Options) { o.Metrics = metrics.New() }).Handler()
	token := loginToken(t, handler)

	doJSON(t, handler, http.MethodGet, "/api/v1/products/prd-0001", token, nil)

	rec := doJSON(t, handler, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `route="/api/v1/products/{id}"`) {
		t.Fatalf("expected templated route label in metrics output")
	}
	if strings.Contains(body, "prd-0001") {
		t.Fatalf("raw ids must not appear as labels")
	}
}
