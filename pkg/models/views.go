package models

// Stock level classifications reported by the inventory_status view.
const (
	StockLevelOK       = "ok"
	StockLevelLow      = "low"
	StockLevelCritical = "critical"
)

// InventoryStatus is a row of the inventory_status view: each ingredient's
// stock classified against its minimum quantity.
type InventoryStatus struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	CurrentQuantity float64 `json:"current_quantity"`
	MinQuantity     float64 `json:"min_quantity"`
	Unit            string  `json:"unit"`
	StockLevel      string  `json:"stock_level"`
}

// RecipeDetails is a row of the recipe_details view: a recipe annotated with
// its ingredient count and the creator's email.
type RecipeDetails struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	ExpectedYield   float64 `json:"expected_yield"`
	IngredientCount int     `json:"ingredient_count"`
	CreatedByEmail  string  `json:"created_by_email"`
}

// BakeEfficiency is a row of the bake_efficiency view: actual vs expected
// yield per bake.
type BakeEfficiency struct {
	ID            string  `json:"id"`
	RecipeID      string  `json:"recipe_id"`
	RecipeName    string  `json:"recipe_name"`
	ActualYield   float64 `json:"actual_yield"`
	ExpectedYield float64 `json:"expected_yield"`
	Efficiency    float64 `json:"efficiency"`
}
