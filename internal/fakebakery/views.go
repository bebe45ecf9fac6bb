package fakebakery

import (
	"fmt"

	"github.com/lxzan/gws"

	"github.com/bakersdozen/bakersdozen.go/pkg/connection"
	"github.com/bakersdozen/bakersdozen.go/pkg/models"
)

func (h *handler) handleView(socket *gws.Conn, req *connection.RPCRequest) {
	view, ok := paramString(req.Params, 0)
	if !ok {
		h.sendError(socket, req.ID, connection.CodeInvalidParams, "view: view name required")
		return
	}

	s := h.server
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch models.View(view) {
	case models.ViewInventoryStatus:
		h.sendResponse(socket, req.ID, s.inventoryStatus())
	case models.ViewRecipeDetails:
		h.sendResponse(socket, req.ID, s.recipeDetails())
	case models.ViewBakeEfficiency:
		h.sendResponse(socket, req.ID, s.bakeEfficiency())
	default:
		h.sendError(socket, req.ID, connection.CodeInvalidParams, fmt.Sprintf("unknown view: %s", view))
	}
}

func num(v any) float64 {
	f, _ := v.(float64)
	return f
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

// inventoryStatus classifies each ingredient's stock against its minimum:
// below the minimum is critical, within 25% above it is low, else ok.
func (s *Server) inventoryStatus() []map[string]any {
	out := []map[string]any{}
	for _, ing := range s.tables[string(models.TableIngredients)] {
		current, minQ := num(ing["current_quantity"]), num(ing["min_quantity"])
		level := models.StockLevelOK
		switch {
		case current < minQ:
			level = models.StockLevelCritical
		case current < minQ*1.25:
			level = models.StockLevelLow
		}
		out = append(out, map[string]any{
			"id":               str(ing["id"]),
			"name":             str(ing["name"]),
			"current_quantity": current,
			"min_quantity":     minQ,
			"unit":             str(ing["unit"]),
			"stock_level":      level,
		})
	}
	return out
}

func (s *Server) recipeDetails() []map[string]any {
	counts := map[string]int{}
	for _, ri := range s.tables[string(models.TableRecipeIngredients)] {
		counts[str(ri["recipe_id"])]++
	}
	emails := map[string]string{}
	for _, u := range s.tables[string(models.TableUsers)] {
		emails[str(u["id"])] = str(u["email"])
	}

	out := []map[string]any{}
	for _, r := range s.tables[string(models.TableRecipes)] {
		id := str(r["id"])
		out = append(out, map[string]any{
			"id":               id,
			"name":             str(r["name"]),
			"expected_yield":   num(r["expected_yield"]),
			"ingredient_count": counts[id],
			"created_by_email": emails[str(r["created_by"])],
		})
	}
	return out
}

func (s *Server) bakeEfficiency() []map[string]any {
	recipes := map[string]map[string]any{}
	for _, r := range s.tables[string(models.TableRecipes)] {
		recipes[str(r["id"])] = r
	}

	out := []map[string]any{}
	for _, b := range s.tables[string(models.TableBakes)] {
		recipe := recipes[str(b["recipe_id"])]
		if recipe == nil {
			continue
		}
		expected := num(recipe["expected_yield"])
		actual := num(b["actual_yield"])
		efficiency := 0.0
		if expected > 0 {
			efficiency = actual / expected
		}
		out = append(out, map[string]any{
			"id":             str(b["id"]),
			"recipe_id":      str(b["recipe_id"]),
			"recipe_name":    str(recipe["name"]),
			"actual_yield":   actual,
			"expected_yield": expected,
			"efficiency":     efficiency,
		})
	}
	return out
}
