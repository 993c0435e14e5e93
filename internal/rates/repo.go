package rates

import (
	"database/sql"
	"fmt"

	"github.com/ozkimya/pricer/internal/currency"
)

// Repo persists the exchange-rate table: units of currency per 1 USD.
// USD is implicit and never stored.
type Repo struct {
	db *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{db: db}
}

// Table loads the full rate table.
func (r *Repo) Table() (currency.Table, error) {
	rows, err := r.db.Query(`SELECT currency, per_usd FROM exchange_rates`)
	if err != nil {
		return nil, fmt.Errorf("query exchange rates: %w", err)
	}
	defer rows.Close()

	table := currency.Table{}
	for rows.Next() {
		var (
			code   string
			perUSD float64
		)
		if err := rows.Scan(&code, &perUSD); err != nil {
			return nil, fmt.Errorf("scan exchange rate: %w", err)
		}
		table[currency.Code(code)] = perUSD
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exchange rates: %w", err)
	}

	return table, nil
}

// Upsert stores or replaces the rate for one currency.
func (r *Repo) Upsert(code currency.Code, perUSD float64) error {
	if code == currency.USD {
		return fmt.Errorf("USD rate is implicit and cannot be stored")
	}
	if perUSD <= 0 {
		return fmt.Errorf("rate for %s must be greater than zero", code)
	}

	_, err := r.db.Exec(`
		INSERT INTO exchange_rates (currency, per_usd)
		VALUES (?, ?)
		ON CONFLICT(currency) DO UPDATE SET
			per_usd = excluded.per_usd,
			updated_at = CURRENT_TIMESTAMP
	`, string(code), perUSD)
	if err != nil {
		return fmt.Errorf("upsert exchange rate: %w", err)
	}
	return nil
}
