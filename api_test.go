package bakersdozen_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bakersdozen "github.com/bakersdozen/bakersdozen.go"
	"github.com/bakersdozen/bakersdozen.go/pkg/cache"
	"github.com/bakersdozen/bakersdozen.go/pkg/connection"
	"github.com/bakersdozen/bakersdozen.go/pkg/models"
)

func TestInsertAndGetByID(t *testing.T) {
	srv := newTestServer(t)
	db := newTestDB(t, srv)
	ctx := context.Background()

	flour, err := bakersdozen.Insert[models.Ingredient](ctx, db, models.TableIngredients, models.Ingredient{
		Name:            "Flour",
		CurrentQuantity: 10,
		MinQuantity:     2,
		Unit:            "kg",
	})
	require.NoError(t, err)
	require.NotEmpty(t, flour.ID, "insert must assign an id when the record has none")

	got, err := bakersdozen.GetByID[models.Ingredient](ctx, db, models.TableIngredients, flour.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Empty(t, cmp.Diff(*flour, *got))

	all, err := bakersdozen.GetAll[models.Ingredient](ctx, db, models.TableIngredients)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Flour", all[0].Name)
}

func TestInsertKeepsProvidedID(t *testing.T) {
	srv := newTestServer(t)
	db := newTestDB(t, srv)
	ctx := context.Background()

	created, err := bakersdozen.Insert[models.Ingredient](ctx, db, models.TableIngredients, models.Ingredient{
		ID:   "ing-42",
		Name: "Yeast",
		Unit: "g",
	})
	require.NoError(t, err)
	assert.Equal(t, "ing-42", created.ID)
}

func TestInsertWritesCacheSnapshot(t *testing.T) {
	srv := newTestServer(t)
	db := newTestDB(t, srv)
	ctx := context.Background()

	created, err := bakersdozen.Insert[models.Ingredient](ctx, db, models.TableIngredients, models.Ingredient{
		Name: "Butter",
		Unit: "kg",
	})
	require.NoError(t, err)

	rows, ok := db.Cache().Load(string(models.TableIngredients))
	require.True(t, ok, "insert must write through to the cache snapshot")
	require.Len(t, rows, 1)
	assert.Equal(t, created.ID, cache.RowID(rows[0]))
}

func TestGetByIDMissing(t *testing.T) {
	srv := newTestServer(t)
	db := newTestDB(t, srv)
	ctx := context.Background()

	got, err := bakersdozen.GetByID[models.Ingredient](ctx, db, models.TableIngredients, "no-such-id")
	require.NoError(t, err)
	assert.Nil(t, got)

	db.Monitor().NotifyOffline()
	got, err = bakersdozen.GetByID[models.Ingredient](ctx, db, models.TableIngredients, "no-such-id")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUpdateMergesWithoutTouchingOtherRows(t *testing.T) {
	srv := newTestServer(t)
	db := newTestDB(t, srv)
	ctx := context.Background()

	flour, err := bakersdozen.Insert[models.Ingredient](ctx, db, models.TableIngredients, models.Ingredient{
		Name: "Flour", CurrentQuantity: 10, MinQuantity: 2, Unit: "kg",
	})
	require.NoError(t, err)
	sugar, err := bakersdozen.Insert[models.Ingredient](ctx, db, models.TableIngredients, models.Ingredient{
		Name: "Sugar", CurrentQuantity: 5, MinQuantity: 1, Unit: "kg",
	})
	require.NoError(t, err)

	flour.CurrentQuantity = 8
	updated, err := bakersdozen.Update[models.Ingredient](ctx, db, models.TableIngredients, flour)
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, 8.0, updated.CurrentQuantity)

	// The other row's snapshot entry must be untouched by the merge.
	db.Monitor().NotifyOffline()
	cachedSugar, err := bakersdozen.GetByID[models.Ingredient](ctx, db, models.TableIngredients, sugar.ID)
	require.NoError(t, err)
	require.NotNil(t, cachedSugar)
	assert.Empty(t, cmp.Diff(*sugar, *cachedSugar))

	cachedFlour, err := bakersdozen.GetByID[models.Ingredient](ctx, db, models.TableIngredients, flour.ID)
	require.NoError(t, err)
	require.NotNil(t, cachedFlour)
	assert.Equal(t, 8.0, cachedFlour.CurrentQuantity)
}

func TestUpdateUnknownIDReturnsNil(t *testing.T) {
	srv := newTestServer(t)
	db := newTestDB(t, srv)
	ctx := context.Background()

	updated, err := bakersdozen.Update[models.Ingredient](ctx, db, models.TableIngredients, models.Ingredient{
		ID: "no-such-id", Name: "Ghost",
	})
	require.NoError(t, err)
	assert.Nil(t, updated)
}

func TestUpdateRequiresID(t *testing.T) {
	srv := newTestServer(t)
	db := newTestDB(t, srv)

	_, err := bakersdozen.Update[models.Ingredient](context.Background(), db, models.TableIngredients, models.Ingredient{Name: "Salt"})
	require.ErrorIs(t, err, bakersdozen.ErrMissingID)
}

func TestDeleteRemovesRowAndCacheEntry(t *testing.T) {
	srv := newTestServer(t)
	db := newTestDB(t, srv)
	ctx := context.Background()

	created, err := bakersdozen.Insert[models.Ingredient](ctx, db, models.TableIngredients, models.Ingredient{Name: "Eggs", Unit: "pcs"})
	require.NoError(t, err)

	deleted, err := bakersdozen.Delete(ctx, db, models.TableIngredients, created.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	got, err := bakersdozen.GetByID[models.Ingredient](ctx, db, models.TableIngredients, created.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	rows, _ := db.Cache().Load(string(models.TableIngredients))
	assert.Empty(t, rows)
}

func TestDeleteNonexistentMakesNoDeleteCall(t *testing.T) {
	srv := newTestServer(t)
	db := newTestDB(t, srv)

	deleted, err := bakersdozen.Delete(context.Background(), db, models.TableIngredients, "no-such-id")
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.Zero(t, srv.CallCount(connection.Delete), "a miss must not issue the delete call")
}

func TestOfflineWritesFailFast(t *testing.T) {
	srv := newTestServer(t)
	db := newTestDB(t, srv)
	ctx := context.Background()

	db.Monitor().NotifyOffline()

	inserts := srv.CallCount(connection.Insert)
	updates := srv.CallCount(connection.Update)
	deletes := srv.CallCount(connection.Delete)
	selects := srv.CallCount(connection.Select)

	_, err := bakersdozen.Insert[models.Ingredient](ctx, db, models.TableIngredients, models.Ingredient{Name: "Flour"})
	require.ErrorIs(t, err, bakersdozen.ErrOffline)

	_, err = bakersdozen.Update[models.Ingredient](ctx, db, models.TableIngredients, models.Ingredient{ID: "x"})
	require.ErrorIs(t, err, bakersdozen.ErrOffline)

	ok, err := bakersdozen.Delete(ctx, db, models.TableIngredients, "x")
	require.ErrorIs(t, err, bakersdozen.ErrOffline)
	assert.False(t, ok)

	assert.Equal(t, inserts, srv.CallCount(connection.Insert))
	assert.Equal(t, updates, srv.CallCount(connection.Update))
	assert.Equal(t, deletes, srv.CallCount(connection.Delete))
	assert.Equal(t, selects, srv.CallCount(connection.Select))
}

func TestOfflineReadsServeCache(t *testing.T) {
	srv := newTestServer(t)
	db := newTestDB(t, srv)
	ctx := context.Background()

	srv.Seed(models.TableIngredients, []map[string]any{
		{"id": "i1", "name": "Flour", "current_quantity": 10.0, "min_quantity": 2.0, "unit": "kg"},
	})

	// Online read populates the snapshot.
	all, err := bakersdozen.GetAll[models.Ingredient](ctx, db, models.TableIngredients)
	require.NoError(t, err)
	require.Len(t, all, 1)

	db.Monitor().NotifyOffline()
	srv.Seed(models.TableIngredients, nil) // remote state no longer matters

	cached, err := bakersdozen.GetAll[models.Ingredient](ctx, db, models.TableIngredients)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(all, cached))
}

func TestOfflineReadNeverCachedIsEmpty(t *testing.T) {
	srv := newTestServer(t)
	db := newTestDB(t, srv)

	db.Monitor().NotifyOffline()

	all, err := bakersdozen.GetAll[models.Recipe](context.Background(), db, models.TableRecipes)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestReadFallsBackToCacheOnBackendFailure(t *testing.T) {
	srv := newTestServer(t)
	db := newTestDB(t, srv)
	ctx := context.Background()

	created, err := bakersdozen.Insert[models.Ingredient](ctx, db, models.TableIngredients, models.Ingredient{Name: "Flour", Unit: "kg"})
	require.NoError(t, err)

	srv.SetFailAll(true)

	all, err := bakersdozen.GetAll[models.Ingredient](ctx, db, models.TableIngredients)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, created.ID, all[0].ID)

	got, err := bakersdozen.GetByID[models.Ingredient](ctx, db, models.TableIngredients, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Flour", got.Name)
}

func TestQueryFiltersInMemory(t *testing.T) {
	srv := newTestServer(t)
	db := newTestDB(t, srv)
	ctx := context.Background()

	srv.Seed(models.TableIngredients, []map[string]any{
		{"id": "i1", "name": "Flour", "current_quantity": 1.0, "min_quantity": 2.0, "unit": "kg"},
		{"id": "i2", "name": "Sugar", "current_quantity": 9.0, "min_quantity": 2.0, "unit": "kg"},
	})

	low, err := bakersdozen.Query(ctx, db, models.TableIngredients, func(i models.Ingredient) bool {
		return i.CurrentQuantity < i.MinQuantity
	})
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, "Flour", low[0].Name)
}

func TestGetViewClassifiesStockAndCaches(t *testing.T) {
	srv := newTestServer(t)
	db := newTestDB(t, srv)
	ctx := context.Background()

	srv.Seed(models.TableIngredients, []map[string]any{
		{"id": "i1", "name": "Flour", "current_quantity": 1.0, "min_quantity": 2.0, "unit": "kg"},
		{"id": "i2", "name": "Sugar", "current_quantity": 2.2, "min_quantity": 2.0, "unit": "kg"},
		{"id": "i3", "name": "Salt", "current_quantity": 9.0, "min_quantity": 2.0, "unit": "kg"},
	})

	status, err := bakersdozen.GetView[models.InventoryStatus](ctx, db, models.ViewInventoryStatus)
	require.NoError(t, err)
	require.Len(t, status, 3)

	levels := map[string]string{}
	for _, row := range status {
		levels[row.Name] = row.StockLevel
	}
	assert.Equal(t, models.StockLevelCritical, levels["Flour"])
	assert.Equal(t, models.StockLevelLow, levels["Sugar"])
	assert.Equal(t, models.StockLevelOK, levels["Salt"])

	// View reads degrade to their own cached snapshot as well.
	db.Monitor().NotifyOffline()
	cached, err := bakersdozen.GetView[models.InventoryStatus](ctx, db, models.ViewInventoryStatus)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(status, cached))
}
