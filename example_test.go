package bakersdozen_test

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"

	bakersdozen "github.com/bakersdozen/bakersdozen.go"
	"github.com/bakersdozen/bakersdozen.go/pkg/connection"
	"github.com/bakersdozen/bakersdozen.go/pkg/models"
)

func ExampleNew() {
	ctx := context.Background()

	cfg := bakersdozen.NewConfig("ws://localhost:8000", "anon-key")
	db := bakersdozen.New(ctx, cfg)
	defer db.Close(ctx)

	// New never fails: with the backend down the DB starts offline and
	// reads serve the cached snapshots.
	fmt.Println(db.Online())
}

func ExampleInsert() {
	ctx := context.Background()
	db := bakersdozen.New(ctx, bakersdozen.FromEnv())
	defer db.Close(ctx)

	flour, err := bakersdozen.Insert[models.Ingredient](ctx, db, models.TableIngredients, models.Ingredient{
		Name:            "Flour",
		CurrentQuantity: 25,
		MinQuantity:     10,
		Unit:            "kg",
	})
	if err != nil {
		// ErrOffline means the write was refused before touching the
		// network; nothing was queued.
		panic(err)
	}
	fmt.Println(flour.ID)
}

func ExampleQuery() {
	ctx := context.Background()
	db := bakersdozen.New(ctx, bakersdozen.FromEnv())
	defer db.Close(ctx)

	low, err := bakersdozen.Query(ctx, db, models.TableIngredients, func(i models.Ingredient) bool {
		return i.CurrentQuantity < i.MinQuantity
	})
	if err != nil {
		panic(err)
	}
	for _, i := range low {
		fmt.Printf("%s is below minimum stock\n", i.Name)
	}
}

func ExampleDB_Subscribe() {
	ctx := context.Background()
	db := bakersdozen.New(ctx, bakersdozen.FromEnv())
	defer db.Close(ctx)

	unsubscribe := db.Subscribe(ctx, func(table models.Table, action connection.Action, record json.RawMessage) {
		fmt.Printf("%s on %s\n", action, table)
	})
	defer unsubscribe()
}

func ExampleAuth_SignInWithPassword() {
	ctx := context.Background()
	db := bakersdozen.New(ctx, bakersdozen.FromEnv())
	defer db.Close(ctx)

	user, err := db.Auth().SignInWithPassword(ctx, "baker@example.com", "hunter2")
	if err != nil {
		panic(err)
	}
	fmt.Println(user.Role)
}
