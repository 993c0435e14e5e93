package seed

import (
	"path/filepath"
	"testing"

	"github.com/ozkimya/pricer/internal/db"
	"github.com/ozkimya/pricer/internal/migrations"
)

func TestRunIsIdempotent(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "seed-test.db")
	database, err := db.Open(dbPath)
	if err != nil {
		t.Fatalf("open sqlite database: %v", err)
	}
	defer database.Close()

	if err := migrations.Up(database, "../../migrations"); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	cfg := Config{
		AdminEmail:    "admin@ozkimya.com",
		AdminPassword: "12345",
	}

	// admin + 2 rates + 2 items + recipe with its ingredient = 7 inserts.
	for i := 0; i < 10; i++ {
		stats, err := Run(database, cfg)
		if err != nil {
			t.Fatalf("run seed (iteration=%d): %v", i, err)
		}
		if i == 0 {
			if stats.Inserts != 7 {
				t.Fatalf("expected 7 inserts in first run, got %d", stats.Inserts)
			}
			continue
		}
		if stats.Inserts != 0 {
			t.Fatalf("expected 0 inserts in repeat run %d, got %d", i, stats.Inserts)
		}
	}

	var rateCount int
	if err := database.QueryRow(`SELECT COUNT(*) FROM exchange_rates`).Scan(&rateCount); err != nil {
		t.Fatalf("count exchange rates: %v", err)
	}
	if rateCount != 2 {
		t.Fatalf("expected 2 exchange rates, got %d", rateCount)
	}
}

func TestRunSkipsAdminWithoutCredentials(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "seed-nocreds.db")
	database, err := db.Open(dbPath)
	if err != nil {
		t.Fatalf("open sqlite database: %v", err)
	}
	defer database.Close()

	if err := migrations.Up(database, "../../migrations"); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	if _, err := Run(database, Config{}); err != nil {
		t.Fatalf("run seed: %v", err)
	}

	var userCount int
	if err := database.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&userCount); err != nil {
		t.Fatalf("count users: %v", err)
	}
	if userCount != 0 {
		t.Fatalf("expected no users without credentials, got %d", userCount)
	}
}
