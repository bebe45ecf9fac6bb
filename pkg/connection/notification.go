package connection

import (
	json "github.com/goccy/go-json"

	"github.com/bakersdozen/bakersdozen.go/pkg/models"
)

// Action tags a change event delivered on a live channel.
type Action string

const (
	ActionInsert Action = "insert"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Notification is a change event pushed by the backend for a live query.
// Record is the new row for insert/update and the prior row for delete.
type Notification struct {
	ID     string          `json:"id"`
	Table  models.Table    `json:"table"`
	Action Action          `json:"action"`
	Record json.RawMessage `json:"record"`
}
