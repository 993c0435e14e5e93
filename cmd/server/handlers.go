package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ozkimya/pricer/internal/currency"
	"github.com/ozkimya/pricer/internal/history"
	"github.com/ozkimya/pricer/internal/inventory"
	"github.com/ozkimya/pricer/internal/metrics"
	"github.com/ozkimya/pricer/internal/pricing"
)

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, errorResponse{Error: msg})
}

/* Auth */

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	valid, err := s.auth.validateCredentials(req.Email, req.Password)
	if err != nil {
		s.log.Error("credential validation failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "authentication error")
		return
	}
	if !valid {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	s.auth.setSessionCookie(w, req.Email)
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	s.auth.clearSessionCookie(w)
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

/* Inventory items */

type itemPayload struct {
	Name            string  `json:"name"`
	Kind            string  `json:"kind"`
	Cost            float64 `json:"cost"`
	Currency        string  `json:"currency"`
	PaymentTermDays int     `json:"payment_term_days"`
	CapacityValue   float64 `json:"capacity_value"`
	Active          bool    `json:"active"`
}

type itemResponse struct {
	ID int64 `json:"id"`
	itemPayload
}

func itemToResponse(item inventory.Item) itemResponse {
	return itemResponse{
		ID: item.ID,
		itemPayload: itemPayload{
			Name:            item.Name,
			Kind:            string(item.Kind),
			Cost:            item.Cost,
			Currency:        item.Currency,
			PaymentTermDays: item.PaymentTermDays,
			CapacityValue:   item.CapacityValue,
			Active:          item.Active,
		},
	}
}

func parseItemPayload(r *http.Request) (inventory.Item, error) {
	var payload itemPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return inventory.Item{}, fmt.Errorf("invalid request body")
	}

	payload.Name = strings.TrimSpace(payload.Name)
	if payload.Name == "" {
		return inventory.Item{}, fmt.Errorf("name is required")
	}
	if payload.Cost < 0 {
		return inventory.Item{}, fmt.Errorf("cost must be zero or greater")
	}
	if payload.PaymentTermDays < 0 {
		return inventory.Item{}, fmt.Errorf("payment_term_days must be zero or greater")
	}

	kind := inventory.Kind(payload.Kind)
	if kind == "" {
		kind = inventory.KindRaw
	}
	if kind != inventory.KindRaw && kind != inventory.KindPackaging {
		return inventory.Item{}, fmt.Errorf("kind must be raw or packaging")
	}

	code, err := currency.Parse(payload.Currency)
	if err != nil {
		return inventory.Item{}, err
	}

	return inventory.Item{
		Name:            payload.Name,
		Kind:            kind,
		Cost:            payload.Cost,
		Currency:        string(code),
		PaymentTermDays: payload.PaymentTermDays,
		CapacityValue:   payload.CapacityValue,
		Active:          payload.Active,
	}, nil
}

func (s *server) handleItemsList(w http.ResponseWriter, _ *http.Request) {
	items, err := s.inventory.ListItems()
	if err != nil {
		s.log.Error("failed to load items", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load items")
		return
	}

	resp := make([]itemResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, itemToResponse(item))
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *server) handleItemsCreate(w http.ResponseWriter, r *http.Request) {
	item, err := parseItemPayload(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := s.inventory.CreateItem(item)
	if err != nil {
		s.log.Error("failed to create item", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to create item")
		return
	}

	item.ID = id
	respondJSON(w, http.StatusCreated, itemToResponse(item))
}

func (s *server) handleItemsUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	item, err := parseItemPayload(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	item.ID = id

	updated, err := s.inventory.UpdateItem(item)
	if err != nil {
		s.log.Error("failed to update item", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to update item")
		return
	}
	if !updated {
		respondError(w, http.StatusNotFound, "item not found")
		return
	}

	respondJSON(w, http.StatusOK, itemToResponse(item))
}

/* Recipes */

type ingredientPayload struct {
	ItemID          int64   `json:"item_id"`
	PercentByWeight float64 `json:"percent_by_weight"`
}

type recipePayload struct {
	Name        string              `json:"name"`
	Ingredients []ingredientPayload `json:"ingredients"`
}

type recipeResponse struct {
	ID          int64               `json:"id"`
	Name        string              `json:"name"`
	Ingredients []ingredientPayload `json:"ingredients,omitempty"`
}

func (s *server) handleRecipesList(w http.ResponseWriter, _ *http.Request) {
	recipes, err := s.inventory.ListRecipes()
	if err != nil {
		s.log.Error("failed to load recipes", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load recipes")
		return
	}

	resp := make([]recipeResponse, 0, len(recipes))
	for _, recipe := range recipes {
		resp = append(resp, recipeResponse{ID: recipe.ID, Name: recipe.Name})
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *server) handleRecipesCreate(w http.ResponseWriter, r *http.Request) {
	var payload recipePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	payload.Name = strings.TrimSpace(payload.Name)
	if payload.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	if len(payload.Ingredients) == 0 {
		respondError(w, http.StatusBadRequest, "at least one ingredient is required")
		return
	}

	ingredients := make([]inventory.Ingredient, 0, len(payload.Ingredients))
	for _, ing := range payload.Ingredients {
		if ing.ItemID <= 0 {
			respondError(w, http.StatusBadRequest, "ingredient item_id is required")
			return
		}
		if ing.PercentByWeight < 0 || ing.PercentByWeight > 100 {
			respondError(w, http.StatusBadRequest, "percent_by_weight must be between 0 and 100")
			return
		}
		ingredients = append(ingredients, inventory.Ingredient{
			ItemID:          ing.ItemID,
			PercentByWeight: ing.PercentByWeight,
		})
	}

	id, err := s.inventory.CreateRecipe(payload.Name, ingredients)
	if err != nil {
		s.log.Error("failed to create recipe", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to create recipe")
		return
	}

	respondJSON(w, http.StatusCreated, recipeResponse{
		ID:          id,
		Name:        payload.Name,
		Ingredients: payload.Ingredients,
	})
}

func (s *server) handleRecipesGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid recipe id")
		return
	}

	recipe, err := s.inventory.GetRecipe(id)
	if err != nil {
		s.log.Error("failed to load recipe", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load recipe")
		return
	}
	if recipe == nil {
		respondError(w, http.StatusNotFound, "recipe not found")
		return
	}

	resp := recipeResponse{ID: recipe.ID, Name: recipe.Name}
	for _, ing := range recipe.Ingredients {
		resp.Ingredients = append(resp.Ingredients, ingredientPayload{
			ItemID:          ing.ItemID,
			PercentByWeight: ing.PercentByWeight,
		})
	}
	respondJSON(w, http.StatusOK, resp)
}

/* Exchange rates */

func (s *server) handleRatesGet(w http.ResponseWriter, _ *http.Request) {
	table, err := s.rates.Table()
	if err != nil {
		s.log.Error("failed to load exchange rates", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load exchange rates")
		return
	}
	respondJSON(w, http.StatusOK, table)
}

func (s *server) handleRatesPut(w http.ResponseWriter, r *http.Request) {
	var payload map[string]float64
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	for raw, perUSD := range payload {
		code, err := currency.Parse(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := s.rates.Upsert(code, perUSD); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	table, err := s.rates.Table()
	if err != nil {
		s.log.Error("failed to load exchange rates", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load exchange rates")
		return
	}
	respondJSON(w, http.StatusOK, table)
}

/* Pricing */

type pricingRequest struct {
	Name                       string  `json:"name"`
	RecipeID                   int64   `json:"recipe_id"`
	Quantity                   float64 `json:"quantity"`
	PackagingID                int64   `json:"packaging_id,omitempty"`
	ShippingCost               float64 `json:"shipping_cost"`
	ShippingCurrency           string  `json:"shipping_currency"`
	OverheadPerUnit            float64 `json:"overhead_per_unit"`
	OverheadCurrency           string  `json:"overhead_currency"`
	SaleTermDays               float64 `json:"sale_term_days"`
	MonthlyInterestRatePercent float64 `json:"monthly_interest_rate_percent"`
	ProfitMarginPercent        float64 `json:"profit_margin_percent"`
	OutputCurrency             string  `json:"output_currency"`
}

type breakdownResponse struct {
	RawMaterial float64 `json:"raw_material"`
	Packaging   float64 `json:"packaging"`
	Overhead    float64 `json:"overhead"`
	Shipping    float64 `json:"shipping"`
	Financing   float64 `json:"financing"`
	Profit      float64 `json:"profit"`
}

type pricingResponse struct {
	UnitCost   float64            `json:"unit_cost"`
	UnitPrice  float64            `json:"unit_price"`
	TotalPrice float64            `json:"total_price"`
	Currency   string             `json:"currency"`
	Manual     bool               `json:"manual"`
	Breakdown  *breakdownResponse `json:"breakdown"`
}

// resultToResponse converts an engine result to its display shape. Values
// are rounded to two decimals here and nowhere earlier.
func resultToResponse(result pricing.Result) pricingResponse {
	resp := pricingResponse{
		UnitCost:   currency.Round2(result.UnitCost),
		UnitPrice:  currency.Round2(result.UnitPrice),
		TotalPrice: currency.Round2(result.TotalPrice),
		Currency:   string(result.Currency),
		Manual:     result.Manual,
	}
	if result.Breakdown != nil {
		resp.Breakdown = &breakdownResponse{
			RawMaterial: currency.Round2(result.Breakdown.RawMaterial),
			Packaging:   currency.Round2(result.Breakdown.Packaging),
			Overhead:    currency.Round2(result.Breakdown.Overhead),
			Shipping:    currency.Round2(result.Breakdown.Shipping),
			Financing:   currency.Round2(result.Breakdown.Financing),
			Profit:      currency.Round2(result.Breakdown.Profit),
		}
	}
	return resp
}

func toEngineItem(item *inventory.Item) *pricing.Item {
	if item == nil {
		return nil
	}
	return &pricing.Item{
		Cost:            item.Cost,
		Currency:        currency.Code(item.Currency),
		PaymentTermDays: float64(item.PaymentTermDays),
		CapacityValue:   item.CapacityValue,
	}
}

func (s *server) handlePricingCompute(w http.ResponseWriter, r *http.Request) {
	var req pricingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Quantity <= 0 {
		respondError(w, http.StatusBadRequest, "quantity must be greater than zero")
		return
	}
	if req.ShippingCost < 0 || req.OverheadPerUnit < 0 || req.SaleTermDays < 0 || req.MonthlyInterestRatePercent < 0 {
		respondError(w, http.StatusBadRequest, "cost and term inputs must be zero or greater")
		return
	}

	outputCurrency, err := currency.Parse(req.OutputCurrency)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	shippingCurrency, err := parseOptionalCurrency(req.ShippingCurrency)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	overheadCurrency, err := parseOptionalCurrency(req.OverheadCurrency)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	recipe, err := s.inventory.GetRecipe(req.RecipeID)
	if err != nil {
		s.log.Error("failed to load recipe", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load recipe")
		return
	}
	if recipe == nil {
		respondError(w, http.StatusNotFound, "recipe not found")
		return
	}

	// Unresolved ingredient references are skipped, not failed: the line
	// contributes nothing to cost or the payment-term average.
	ingredients := make([]pricing.IngredientLine, 0, len(recipe.Ingredients))
	for _, ing := range recipe.Ingredients {
		item, err := s.inventory.GetItem(ing.ItemID)
		if err != nil {
			s.log.Error("failed to load ingredient item", zap.Error(err))
			respondError(w, http.StatusInternalServerError, "failed to load inventory")
			return
		}
		if item == nil {
			s.log.Warn("recipe references missing inventory item",
				zap.Int64("recipe_id", recipe.ID),
				zap.Int64("item_id", ing.ItemID))
		}
		ingredients = append(ingredients, pricing.IngredientLine{
			Item:            toEngineItem(item),
			PercentByWeight: ing.PercentByWeight,
		})
	}

	var packaging *pricing.Item
	if req.PackagingID > 0 {
		item, err := s.inventory.GetItem(req.PackagingID)
		if err != nil {
			s.log.Error("failed to load packaging item", zap.Error(err))
			respondError(w, http.StatusInternalServerError, "failed to load inventory")
			return
		}
		if item == nil {
			s.log.Warn("pricing request references missing packaging item",
				zap.Int64("packaging_id", req.PackagingID))
		}
		packaging = toEngineItem(item)
	}

	table, err := s.rates.Table()
	if err != nil {
		s.log.Error("failed to load exchange rates", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load exchange rates")
		return
	}

	result, err := pricing.Calculate(ingredients, pricing.Request{
		Quantity:               req.Quantity,
		Packaging:              packaging,
		ShippingCost:           req.ShippingCost,
		ShippingCurrency:       shippingCurrency,
		OverheadPerUnit:        req.OverheadPerUnit,
		OverheadCurrency:       overheadCurrency,
		SaleTermDays:           req.SaleTermDays,
		MonthlyInterestPercent: req.MonthlyInterestRatePercent,
		MarginPercent:          req.ProfitMarginPercent,
		OutputCurrency:         outputCurrency,
	}, table)
	if errors.Is(err, pricing.ErrInvalidQuantity) {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.log.Error("pricing computation failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "pricing computation failed")
		return
	}

	if result.Lossy {
		metrics.LossyConversions.Inc()
		s.log.Warn("pricing computation used identity fallback for a missing exchange rate",
			zap.Int64("recipe_id", recipe.ID))
	}
	metrics.PricingComputations.WithLabelValues("computed").Inc()

	resp := resultToResponse(result)

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = recipe.Name
	}
	if _, err := s.history.Record(history.Entry{
		Name:       name,
		RecipeID:   recipe.ID,
		Quantity:   req.Quantity,
		UnitPrice:  resp.UnitPrice,
		TotalPrice: resp.TotalPrice,
		Currency:   resp.Currency,
	}, req, resp); err != nil {
		s.log.Error("failed to record pricing history", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to record pricing history")
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

// parseOptionalCurrency defaults empty currency fields to USD.
func parseOptionalCurrency(raw string) (currency.Code, error) {
	if strings.TrimSpace(raw) == "" {
		return currency.USD, nil
	}
	return currency.Parse(raw)
}

type manualPricingRequest struct {
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unit_price"`
	Currency  string  `json:"currency"`
}

func (s *server) handlePricingManual(w http.ResponseWriter, r *http.Request) {
	var req manualPricingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.UnitPrice < 0 {
		respondError(w, http.StatusBadRequest, "unit_price must be zero or greater")
		return
	}
	code, err := parseOptionalCurrency(req.Currency)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result := pricing.ManualEntry(req.UnitPrice, code)
	metrics.PricingComputations.WithLabelValues("manual").Inc()

	resp := resultToResponse(result)
	if _, err := s.history.Record(history.Entry{
		Name:      strings.TrimSpace(req.Name),
		Manual:    true,
		UnitPrice: resp.UnitPrice,
		Currency:  resp.Currency,
	}, req, resp); err != nil {
		s.log.Error("failed to record pricing history", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to record pricing history")
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

/* History */

type historyEntryResponse struct {
	ID         int64           `json:"id"`
	CreatedAt  string          `json:"created_at"`
	Name       string          `json:"name"`
	RecipeID   int64           `json:"recipe_id,omitempty"`
	Quantity   float64         `json:"quantity"`
	Manual     bool            `json:"manual"`
	UnitPrice  float64         `json:"unit_price"`
	TotalPrice float64         `json:"total_price"`
	Currency   string          `json:"currency"`
	Result     json.RawMessage `json:"result"`
}

func (s *server) handleHistoryList(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	entries, err := s.history.List(query)
	if err != nil {
		s.log.Error("failed to load pricing history", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load pricing history")
		return
	}

	resp := make([]historyEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, historyEntryResponse{
			ID:         e.ID,
			CreatedAt:  e.CreatedAt,
			Name:       e.Name,
			RecipeID:   e.RecipeID,
			Quantity:   e.Quantity,
			Manual:     e.Manual,
			UnitPrice:  e.UnitPrice,
			TotalPrice: e.TotalPrice,
			Currency:   e.Currency,
			Result:     json.RawMessage(e.ResultJSON),
		})
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *server) handleHistoryExport(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	entries, err := s.history.List(query)
	if err != nil {
		s.log.Error("failed to load pricing history", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load pricing history")
		return
	}

	data, err := history.ExportXLSX(entries)
	if err != nil {
		s.log.Error("failed to export pricing history", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to export pricing history")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="pricing-history.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
