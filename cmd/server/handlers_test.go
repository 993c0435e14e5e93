package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/ozkimya/pricer/internal/db"
	"github.com/ozkimya/pricer/internal/history"
	"github.com/ozkimya/pricer/internal/inventory"
	"github.com/ozkimya/pricer/internal/migrations"
	"github.com/ozkimya/pricer/internal/rates"
)

func newTestServer(t *testing.T) *server {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "server-test.db")
	database, err := db.Open(dbPath)
	if err != nil {
		t.Fatalf("open sqlite database: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})

	if err := migrations.Up(database, "../../migrations"); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	srv := &server{
		auth:      newAuthService(database, "test-secret"),
		db:        database,
		log:       zap.NewNop(),
		inventory: inventory.NewRepo(database),
		rates:     rates.NewRepo(database),
		history:   history.NewRepo(database),
	}

	if _, err := database.Exec(`INSERT INTO users (email, password_hash) VALUES (?, ?)`,
		"admin@test.local", hashPassword("secret")); err != nil {
		t.Fatalf("seed test user: %v", err)
	}

	return srv
}

// doJSON sends an authenticated JSON request through the full router.
func doJSON(t *testing.T, srv *server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.AddCookie(&http.Cookie{
		Name:  sessionCookieName,
		Value: srv.auth.createSessionValue("admin@test.local"),
	})

	w := httptest.NewRecorder()
	srv.routes(false).ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode response body: %v", err)
	}
}

func seedPricingFixtures(t *testing.T, srv *server) (recipeID int64) {
	t.Helper()

	itemID, err := srv.inventory.CreateItem(inventory.Item{
		Name:            "Solvent A",
		Kind:            inventory.KindRaw,
		Cost:            10,
		Currency:        "USD",
		PaymentTermDays: 15,
	})
	if err != nil {
		t.Fatalf("seed item: %v", err)
	}

	recipeID, err = srv.inventory.CreateRecipe("Solvent Mix", []inventory.Ingredient{
		{ItemID: itemID, PercentByWeight: 100},
	})
	if err != nil {
		t.Fatalf("seed recipe: %v", err)
	}
	return recipeID
}

func TestLoginFlow(t *testing.T) {
	srv := newTestServer(t)
	router := srv.routes(false)

	// Unauthenticated API access is rejected.
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/items", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated request: status %d, want 401", w.Code)
	}

	// Wrong password is rejected.
	body := bytes.NewBufferString(`{"email":"admin@test.local","password":"wrong"}`)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("POST", "/login", body))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad login: status %d, want 401", w.Code)
	}

	// Valid login issues a session cookie that passes the middleware.
	body = bytes.NewBufferString(`{"email":"admin@test.local","password":"secret"}`)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("POST", "/login", body))
	if w.Code != http.StatusOK {
		t.Fatalf("login: status %d, want 200", w.Code)
	}

	cookies := w.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatalf("login did not set a cookie")
	}

	req := httptest.NewRequest("GET", "/api/items", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("authenticated request: status %d, want 200", w.Code)
	}
}

func TestPricingComputeEndToEnd(t *testing.T) {
	srv := newTestServer(t)
	recipeID := seedPricingFixtures(t, srv)

	w := doJSON(t, srv, "POST", "/api/pricing", map[string]any{
		"recipe_id":                     recipeID,
		"quantity":                      1000,
		"sale_term_days":                30,
		"monthly_interest_rate_percent": 3,
		"profit_margin_percent":         20,
		"output_currency":               "USD",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d, want 200 (body: %s)", w.Code, w.Body.String())
	}

	var resp pricingResponse
	decodeBody(t, w, &resp)

	if resp.TotalPrice != 12687.5 {
		t.Fatalf("total_price = %v, want 12687.5", resp.TotalPrice)
	}
	if resp.UnitPrice != 12.69 {
		t.Fatalf("unit_price = %v, want 12.69 (rounded for display)", resp.UnitPrice)
	}
	if resp.Breakdown == nil {
		t.Fatalf("expected breakdown in computed response")
	}
	if resp.Breakdown.RawMaterial != 10000 || resp.Breakdown.Financing != 150 {
		t.Fatalf("unexpected breakdown: %+v", resp.Breakdown)
	}
	if resp.Manual {
		t.Fatalf("computed response must not be manual")
	}

	// The computation is recorded, most recent first.
	entries, err := srv.history.List("")
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(entries))
	}
	if entries[0].Name != "Solvent Mix" || entries[0].TotalPrice != 12687.5 {
		t.Fatalf("unexpected history entry: %+v", entries[0])
	}
}

func TestPricingComputeRejectsInvalidQuantity(t *testing.T) {
	srv := newTestServer(t)
	recipeID := seedPricingFixtures(t, srv)

	for _, quantity := range []float64{0, -10} {
		w := doJSON(t, srv, "POST", "/api/pricing", map[string]any{
			"recipe_id":       recipeID,
			"quantity":        quantity,
			"output_currency": "USD",
		})
		if w.Code != http.StatusBadRequest {
			t.Fatalf("quantity %v: status %d, want 400", quantity, w.Code)
		}
	}
}

func TestPricingComputeUnknownRecipe(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv, "POST", "/api/pricing", map[string]any{
		"recipe_id":       999,
		"quantity":        100,
		"output_currency": "USD",
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("status %d, want 404", w.Code)
	}
}

func TestPricingComputeOutputCurrencyConversion(t *testing.T) {
	srv := newTestServer(t)
	recipeID := seedPricingFixtures(t, srv)

	if err := srv.rates.Upsert("TRY", 34.50); err != nil {
		t.Fatalf("seed rate: %v", err)
	}

	w := doJSON(t, srv, "POST", "/api/pricing", map[string]any{
		"recipe_id":       recipeID,
		"quantity":        1,
		"output_currency": "TRY",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d, want 200 (body: %s)", w.Code, w.Body.String())
	}

	var resp pricingResponse
	decodeBody(t, w, &resp)

	// 10 USD of raw material reported as 345 TRY.
	if resp.Currency != "TRY" || resp.TotalPrice != 345 {
		t.Fatalf("unexpected converted response: %+v", resp)
	}
}

func TestPricingManual(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv, "POST", "/api/pricing/manual", map[string]any{
		"name":       "Freeform line",
		"unit_price": 49.9,
		"currency":   "EUR",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d, want 200 (body: %s)", w.Code, w.Body.String())
	}

	var resp pricingResponse
	decodeBody(t, w, &resp)

	if resp.Breakdown != nil {
		t.Fatalf("manual response must not carry a breakdown")
	}
	if resp.TotalPrice != 0 {
		t.Fatalf("total_price = %v, want 0 for manual lines", resp.TotalPrice)
	}
	if !resp.Manual || resp.UnitPrice != 49.9 || resp.Currency != "EUR" {
		t.Fatalf("unexpected manual response: %+v", resp)
	}

	entries, err := srv.history.List("")
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(entries) != 1 || !entries[0].Manual {
		t.Fatalf("manual line not recorded as manual: %+v", entries)
	}
}

func TestItemsCreateValidation(t *testing.T) {
	srv := newTestServer(t)

	cases := []struct {
		name string
		body map[string]any
	}{
		{"missing name", map[string]any{"currency": "USD"}},
		{"bad currency", map[string]any{"name": "X", "currency": "GBP"}},
		{"negative cost", map[string]any{"name": "X", "currency": "USD", "cost": -1}},
		{"bad kind", map[string]any{"name": "X", "currency": "USD", "kind": "liquid"}},
	}
	for _, tc := range cases {
		w := doJSON(t, srv, "POST", "/api/items", tc.body)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: status %d, want 400", tc.name, w.Code)
		}
	}

	w := doJSON(t, srv, "POST", "/api/items", map[string]any{
		"name":              "Citric Acid",
		"currency":          "EUR",
		"cost":              2.35,
		"payment_term_days": 45,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("valid item: status %d, want 201 (body: %s)", w.Code, w.Body.String())
	}

	var created itemResponse
	decodeBody(t, w, &created)
	if created.ID <= 0 || created.Kind != "raw" {
		t.Fatalf("unexpected created item: %+v", created)
	}
}

func TestItemsUpdateNotFound(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv, "PUT", "/api/items/999", map[string]any{
		"name":     "Ghost",
		"currency": "USD",
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("status %d, want 404", w.Code)
	}
}

func TestRatesPutAndGet(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv, "PUT", "/api/rates", map[string]float64{
		"TRY": 34.50,
		"EUR": 0.92,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d, want 200 (body: %s)", w.Code, w.Body.String())
	}

	w = doJSON(t, srv, "GET", "/api/rates", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", w.Code)
	}

	var table map[string]float64
	decodeBody(t, w, &table)
	if table["TRY"] != 34.50 || table["EUR"] != 0.92 {
		t.Fatalf("unexpected rate table: %+v", table)
	}

	// USD is implicit and must be rejected.
	w = doJSON(t, srv, "PUT", "/api/rates", map[string]float64{"USD": 1})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("USD upsert: status %d, want 400", w.Code)
	}
}

func TestRecipesCreateAndGet(t *testing.T) {
	srv := newTestServer(t)

	itemID, err := srv.inventory.CreateItem(inventory.Item{Name: "Base", Kind: inventory.KindRaw, Currency: "USD"})
	if err != nil {
		t.Fatalf("seed item: %v", err)
	}

	w := doJSON(t, srv, "POST", "/api/recipes", map[string]any{
		"name": "Cleaner",
		"ingredients": []map[string]any{
			{"item_id": itemID, "percent_by_weight": 60},
			{"item_id": itemID, "percent_by_weight": 40},
		},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status %d, want 201 (body: %s)", w.Code, w.Body.String())
	}

	var created recipeResponse
	decodeBody(t, w, &created)

	w = doJSON(t, srv, "GET", fmt.Sprintf("/api/recipes/%d", created.ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", w.Code)
	}

	var got recipeResponse
	decodeBody(t, w, &got)
	if got.Name != "Cleaner" || len(got.Ingredients) != 2 {
		t.Fatalf("unexpected recipe: %+v", got)
	}
	if got.Ingredients[0].PercentByWeight != 60 {
		t.Fatalf("ingredient order not preserved: %+v", got.Ingredients)
	}

	// Percentages outside [0,100] are rejected.
	w = doJSON(t, srv, "POST", "/api/recipes", map[string]any{
		"name": "Broken",
		"ingredients": []map[string]any{
			{"item_id": itemID, "percent_by_weight": 120},
		},
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", w.Code)
	}
}

func TestHistoryListAndExport(t *testing.T) {
	srv := newTestServer(t)
	recipeID := seedPricingFixtures(t, srv)

	for i := 0; i < 2; i++ {
		w := doJSON(t, srv, "POST", "/api/pricing", map[string]any{
			"recipe_id":       recipeID,
			"quantity":        100,
			"output_currency": "USD",
		})
		if w.Code != http.StatusOK {
			t.Fatalf("compute %d: status %d", i, w.Code)
		}
	}

	w := doJSON(t, srv, "GET", "/api/history", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", w.Code)
	}

	var entries []historyEntryResponse
	decodeBody(t, w, &entries)
	if len(entries) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(entries))
	}
	if entries[0].ID < entries[1].ID {
		t.Fatalf("history not most-recent-first: %+v", entries)
	}

	w = doJSON(t, srv, "GET", "/api/history/export", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("export: status %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Fatalf("unexpected export content type: %q", ct)
	}
	if w.Body.Len() == 0 {
		t.Fatalf("expected non-empty export body")
	}
}
