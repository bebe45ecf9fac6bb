// Package models holds the row types of the Bakers Dozen schema: the
// mutable tables and the read-only views derived from them server-side.
//
// Every row carries a globally unique string ID. IDs are assigned client-side
// (random UUID) when omitted at insert time.
package models

// Table names a mutable table on the backend.
type Table string

// View names a read-only derived projection computed by the backend.
// Views are exposed like tables for read purposes only.
type View string

const (
	TableUsers             Table = "users"
	TableIngredients       Table = "ingredients"
	TableRecipes           Table = "recipes"
	TableRecipeIngredients Table = "recipe_ingredients"
	TableBakes             Table = "bakes"
	TableDeliveries        Table = "deliveries"
	TableDeliveryItems     Table = "delivery_items"
	TableRemovals          Table = "removals"
	TableRemovalItems      Table = "removal_items"
)

const (
	ViewInventoryStatus View = "inventory_status"
	ViewRecipeDetails   View = "recipe_details"
	ViewBakeEfficiency  View = "bake_efficiency"
)

// Tables lists every tracked table, in the order realtime subscriptions are
// established for them.
func Tables() []Table {
	return []Table{
		TableUsers,
		TableIngredients,
		TableRecipes,
		TableRecipeIngredients,
		TableBakes,
		TableDeliveries,
		TableDeliveryItems,
		TableRemovals,
		TableRemovalItems,
	}
}

// Views lists every derived view.
func Views() []View {
	return []View{
		ViewInventoryStatus,
		ViewRecipeDetails,
		ViewBakeEfficiency,
	}
}

// User roles.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User is the profile row joined with the auth record to form the
// application-level identity.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
}

type Ingredient struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	CurrentQuantity float64 `json:"current_quantity"`
	MinQuantity     float64 `json:"min_quantity"`
	Unit            string  `json:"unit"`
	LastUpdated     string  `json:"last_updated,omitempty"`
}

type Recipe struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	ExpectedYield float64 `json:"expected_yield"`
	CreatedBy     string  `json:"created_by"`
	CreatedAt     string  `json:"created_at,omitempty"`
}

// RecipeIngredient is the Recipe x Ingredient join entity.
type RecipeIngredient struct {
	ID           string  `json:"id"`
	RecipeID     string  `json:"recipe_id"`
	IngredientID string  `json:"ingredient_id"`
	Quantity     float64 `json:"quantity"`
}

type Bake struct {
	ID          string  `json:"id"`
	RecipeID    string  `json:"recipe_id"`
	ActualYield float64 `json:"actual_yield"`
	BakeDate    string  `json:"bake_date"`
	Notes       *string `json:"notes,omitempty"`
	CreatedBy   string  `json:"created_by"`
	CreatedAt   string  `json:"created_at,omitempty"`
}

type Delivery struct {
	ID           string `json:"id"`
	Supplier     string `json:"supplier"`
	DeliveryDate string `json:"delivery_date"`
	CreatedBy    string `json:"created_by"`
	CreatedAt    string `json:"created_at,omitempty"`
}

type DeliveryItem struct {
	ID           string  `json:"id"`
	DeliveryID   string  `json:"delivery_id"`
	IngredientID string  `json:"ingredient_id"`
	Quantity     float64 `json:"quantity"`
	BatchNumber  string  `json:"batch_number"`
	ExpiryDate   string  `json:"expiry_date"`
}

type Removal struct {
	ID          string `json:"id"`
	Reason      string `json:"reason"`
	RemovalDate string `json:"removal_date"`
	CreatedBy   string `json:"created_by"`
	CreatedAt   string `json:"created_at,omitempty"`
}

type RemovalItem struct {
	ID           string  `json:"id"`
	RemovalID    string  `json:"removal_id"`
	IngredientID string  `json:"ingredient_id"`
	Quantity     float64 `json:"quantity"`
}
