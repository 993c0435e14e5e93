package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// Entry is one completed pricing computation, kept for later retrieval.
// Request and result snapshots are stored as JSON so the history survives
// schema drift in either shape.
type Entry struct {
	ID          int64
	CreatedAt   string
	Name        string
	RecipeID    int64
	Quantity    float64
	Manual      bool
	UnitPrice   float64
	TotalPrice  float64
	Currency    string
	RequestJSON string
	ResultJSON  string
}

// Repo persists and retrieves the pricing history log.
type Repo struct {
	db *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{db: db}
}

// Record stores one completed computation. Request and result may be any
// JSON-marshalable snapshot; recipeID is 0 for manual lines.
func (r *Repo) Record(entry Entry, request, result any) (int64, error) {
	requestJSON, err := json.Marshal(request)
	if err != nil {
		return 0, fmt.Errorf("marshal request snapshot: %w", err)
	}
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return 0, fmt.Errorf("marshal result snapshot: %w", err)
	}

	var recipeID any
	if entry.RecipeID > 0 {
		recipeID = entry.RecipeID
	}

	res, err := r.db.Exec(`
		INSERT INTO pricing_history (name, recipe_id, quantity, manual, unit_price, total_price, currency, request_json, result_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.Name, recipeID, entry.Quantity, entry.Manual, entry.UnitPrice, entry.TotalPrice, entry.Currency, string(requestJSON), string(resultJSON))
	if err != nil {
		return 0, fmt.Errorf("insert pricing history entry: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read pricing history id: %w", err)
	}
	return id, nil
}

// List returns history entries most-recent-first, optionally filtered by a
// substring match on the entry name.
func (r *Repo) List(query string) ([]Entry, error) {
	search := "%" + query + "%"
	rows, err := r.db.Query(`
		SELECT
			id,
			created_at,
			name,
			COALESCE(recipe_id, 0),
			quantity,
			manual,
			unit_price,
			total_price,
			currency,
			request_json,
			result_json
		FROM pricing_history
		WHERE (? = '' OR name LIKE ?)
		ORDER BY datetime(created_at) DESC, id DESC
	`, query, search)
	if err != nil {
		return nil, fmt.Errorf("query pricing history: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(
			&e.ID,
			&e.CreatedAt,
			&e.Name,
			&e.RecipeID,
			&e.Quantity,
			&e.Manual,
			&e.UnitPrice,
			&e.TotalPrice,
			&e.Currency,
			&e.RequestJSON,
			&e.ResultJSON,
		); err != nil {
			return nil, fmt.Errorf("scan pricing history entry: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pricing history: %w", err)
	}

	return entries, nil
}
