package inventory

// Kind distinguishes purchasable raw inputs from packaging units.
type Kind string

const (
	KindRaw       Kind = "raw"
	KindPackaging Kind = "packaging"
)

// Item is a purchasable input or packaging unit. Cost and payment term are
// maintained here and consumed read-only by the pricing engine.
type Item struct {
	ID              int64
	Name            string
	Kind            Kind
	Cost            float64
	Currency        string
	PaymentTermDays int
	CapacityValue   float64
	Active          bool
}

// Ingredient is one line of a recipe's bill of materials.
type Ingredient struct {
	ItemID          int64
	PercentByWeight float64
}

// Recipe is a named bill of materials. Ingredient percentages are expected
// to sum to roughly 100 but are never enforced; the engine scales each
// line independently.
type Recipe struct {
	ID          int64
	Name        string
	Ingredients []Ingredient
}
