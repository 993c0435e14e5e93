package seed

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
)

const (
	defaultRawItemName   = "Caustic Soda (flakes)"
	defaultPackagingName = "IBC Tank 1000L"
	defaultRecipeName    = "Degreaser Base"
)

// Config contains the values required by startup seed.
type Config struct {
	AdminEmail    string
	AdminPassword string
}

// Stats contains seed operation counters.
type Stats struct {
	Inserts int
}

// Run executes the startup seed in an idempotent way.
func Run(db *sql.DB, cfg Config) (Stats, error) {
	tx, err := db.Begin()
	if err != nil {
		return Stats{}, fmt.Errorf("begin seed transaction: %w", err)
	}

	stats := Stats{}

	if err := seedAdmin(tx, cfg.AdminEmail, cfg.AdminPassword, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}
	if err := seedRates(tx, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}
	if err := seedItems(tx, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}
	if err := seedRecipe(tx, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}

	if err := tx.Commit(); err != nil {
		return Stats{}, fmt.Errorf("commit seed transaction: %w", err)
	}

	return stats, nil
}

func seedAdmin(tx *sql.Tx, email, password string, stats *Stats) error {
	if email == "" || password == "" {
		return nil
	}

	var exists bool
	if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM users WHERE email = ? LIMIT 1)`, email).Scan(&exists); err != nil {
		return fmt.Errorf("check admin user existence: %w", err)
	}
	if exists {
		return nil
	}

	sum := sha256.Sum256([]byte(password))
	if _, err := tx.Exec(`INSERT INTO users (email, password_hash) VALUES (?, ?)`, email, hex.EncodeToString(sum[:])); err != nil {
		return fmt.Errorf("insert admin user: %w", err)
	}
	stats.Inserts++
	return nil
}

func seedRates(tx *sql.Tx, stats *Stats) error {
	defaults := []struct {
		currency string
		perUSD   float64
	}{
		{"TRY", 34.50},
		{"EUR", 0.92},
	}

	for _, rate := range defaults {
		var exists bool
		if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM exchange_rates WHERE currency = ? LIMIT 1)`, rate.currency).Scan(&exists); err != nil {
			return fmt.Errorf("check exchange rate existence: %w", err)
		}
		if exists {
			continue
		}

		if _, err := tx.Exec(`
			INSERT INTO exchange_rates (currency, per_usd)
			VALUES (?, ?)
		`, rate.currency, rate.perUSD); err != nil {
			return fmt.Errorf("insert exchange rate: %w", err)
		}
		stats.Inserts++
	}
	return nil
}

func seedItems(tx *sql.Tx, stats *Stats) error {
	defaults := []struct {
		name     string
		kind     string
		cost     float64
		currency string
		termDays int
		capacity float64
	}{
		{defaultRawItemName, "raw", 1.10, "USD", 30, 0},
		{defaultPackagingName, "packaging", 185, "TRY", 0, 1000},
	}

	for _, item := range defaults {
		var exists bool
		if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM inventory_items WHERE name = ? LIMIT 1)`, item.name).Scan(&exists); err != nil {
			return fmt.Errorf("check default item existence: %w", err)
		}
		if exists {
			continue
		}

		if _, err := tx.Exec(`
			INSERT INTO inventory_items (name, kind, cost, currency, payment_term_days, capacity_value, active)
			VALUES (?, ?, ?, ?, ?, ?, TRUE)
		`, item.name, item.kind, item.cost, item.currency, item.termDays, item.capacity); err != nil {
			return fmt.Errorf("insert default item: %w", err)
		}
		stats.Inserts++
	}
	return nil
}

func seedRecipe(tx *sql.Tx, stats *Stats) error {
	var exists bool
	if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM recipes WHERE name = ? LIMIT 1)`, defaultRecipeName).Scan(&exists); err != nil {
		return fmt.Errorf("check default recipe existence: %w", err)
	}
	if exists {
		return nil
	}

	var itemID int64
	err := tx.QueryRow(`SELECT id FROM inventory_items WHERE name = ? LIMIT 1`, defaultRawItemName).Scan(&itemID)
	if err != nil {
		return fmt.Errorf("lookup default raw item: %w", err)
	}

	result, err := tx.Exec(`INSERT INTO recipes (name) VALUES (?)`, defaultRecipeName)
	if err != nil {
		return fmt.Errorf("insert default recipe: %w", err)
	}
	recipeID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("read default recipe id: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT INTO recipe_ingredients (recipe_id, item_id, percent_by_weight, position)
		VALUES (?, ?, 100, 0)
	`, recipeID, itemID); err != nil {
		return fmt.Errorf("insert default recipe ingredient: %w", err)
	}
	stats.Inserts += 2
	return nil
}
