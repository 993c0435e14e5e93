package inventory

import (
	"database/sql"
	"errors"
	"fmt"
)

// Repo provides inventory item and recipe persistence over SQLite.
type Repo struct {
	db *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{db: db}
}

// CreateItem inserts a new inventory item and returns its id.
func (r *Repo) CreateItem(item Item) (int64, error) {
	result, err := r.db.Exec(`
		INSERT INTO inventory_items (name, kind, cost, currency, payment_term_days, capacity_value, active)
		VALUES (?, ?, ?, ?, ?, ?, TRUE)
	`, item.Name, item.Kind, item.Cost, item.Currency, item.PaymentTermDays, item.CapacityValue)
	if err != nil {
		return 0, fmt.Errorf("insert inventory item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read inventory item id: %w", err)
	}
	return id, nil
}

// UpdateItem updates an existing item. It reports whether a row matched.
func (r *Repo) UpdateItem(item Item) (bool, error) {
	result, err := r.db.Exec(`
		UPDATE inventory_items
		SET
			name = ?,
			kind = ?,
			cost = ?,
			currency = ?,
			payment_term_days = ?,
			capacity_value = ?,
			active = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, item.Name, item.Kind, item.Cost, item.Currency, item.PaymentTermDays, item.CapacityValue, item.Active, item.ID)
	if err != nil {
		return false, fmt.Errorf("update inventory item: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update inventory item: %w", err)
	}
	return affected > 0, nil
}

// GetItem returns the item with the given id, or nil when it does not
// exist. Missing items are not an error: the engine skips unresolved
// ingredient references.
func (r *Repo) GetItem(id int64) (*Item, error) {
	var item Item
	err := r.db.QueryRow(`
		SELECT id, name, kind, cost, currency, payment_term_days, capacity_value, active
		FROM inventory_items
		WHERE id = ?
	`, id).Scan(
		&item.ID,
		&item.Name,
		&item.Kind,
		&item.Cost,
		&item.Currency,
		&item.PaymentTermDays,
		&item.CapacityValue,
		&item.Active,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query inventory item: %w", err)
	}
	return &item, nil
}

// ListItems returns all inventory items, newest first.
func (r *Repo) ListItems() ([]Item, error) {
	rows, err := r.db.Query(`
		SELECT id, name, kind, cost, currency, payment_term_days, capacity_value, active
		FROM inventory_items
		ORDER BY id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query inventory items: %w", err)
	}
	defer rows.Close()

	items := make([]Item, 0)
	for rows.Next() {
		var item Item
		if err := rows.Scan(
			&item.ID,
			&item.Name,
			&item.Kind,
			&item.Cost,
			&item.Currency,
			&item.PaymentTermDays,
			&item.CapacityValue,
			&item.Active,
		); err != nil {
			return nil, fmt.Errorf("scan inventory item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate inventory items: %w", err)
	}

	return items, nil
}

// CreateRecipe inserts a recipe with its ordered ingredient lines in one
// transaction and returns the recipe id.
func (r *Repo) CreateRecipe(name string, ingredients []Ingredient) (int64, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin recipe transaction: %w", err)
	}

	result, err := tx.Exec(`INSERT INTO recipes (name) VALUES (?)`, name)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("insert recipe: %w", err)
	}
	recipeID, err := result.LastInsertId()
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("read recipe id: %w", err)
	}

	for position, ing := range ingredients {
		if _, err := tx.Exec(`
			INSERT INTO recipe_ingredients (recipe_id, item_id, percent_by_weight, position)
			VALUES (?, ?, ?, ?)
		`, recipeID, ing.ItemID, ing.PercentByWeight, position); err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("insert recipe ingredient: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit recipe transaction: %w", err)
	}

	return recipeID, nil
}

// GetRecipe returns the recipe with its ingredients in insertion order, or
// nil when it does not exist.
func (r *Repo) GetRecipe(id int64) (*Recipe, error) {
	var recipe Recipe
	err := r.db.QueryRow(`SELECT id, name FROM recipes WHERE id = ?`, id).Scan(&recipe.ID, &recipe.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query recipe: %w", err)
	}

	rows, err := r.db.Query(`
		SELECT item_id, percent_by_weight
		FROM recipe_ingredients
		WHERE recipe_id = ?
		ORDER BY position ASC, id ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query recipe ingredients: %w", err)
	}
	defer rows.Close()

	recipe.Ingredients = make([]Ingredient, 0)
	for rows.Next() {
		var ing Ingredient
		if err := rows.Scan(&ing.ItemID, &ing.PercentByWeight); err != nil {
			return nil, fmt.Errorf("scan recipe ingredient: %w", err)
		}
		recipe.Ingredients = append(recipe.Ingredients, ing)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recipe ingredients: %w", err)
	}

	return &recipe, nil
}

// ListRecipes returns all recipes without their ingredient lines, newest
// first.
func (r *Repo) ListRecipes() ([]Recipe, error) {
	rows, err := r.db.Query(`SELECT id, name FROM recipes ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query recipes: %w", err)
	}
	defer rows.Close()

	recipes := make([]Recipe, 0)
	for rows.Next() {
		var recipe Recipe
		if err := rows.Scan(&recipe.ID, &recipe.Name); err != nil {
			return nil, fmt.Errorf("scan recipe: %w", err)
		}
		recipes = append(recipes, recipe)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recipes: %w", err)
	}

	return recipes, nil
}
