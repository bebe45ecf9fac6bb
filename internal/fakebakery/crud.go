package fakebakery

import (
	"fmt"

	"github.com/lxzan/gws"

	"github.com/bakersdozen/bakersdozen.go/pkg/connection"
)

func paramString(params []any, i int) (string, bool) {
	if i >= len(params) {
		return "", false
	}
	s, ok := params[i].(string)
	return s, ok
}

func paramFields(params []any, i int) (map[string]any, bool) {
	if i >= len(params) {
		return nil, false
	}
	m, ok := params[i].(map[string]any)
	return m, ok
}

func (h *handler) handleSelect(socket *gws.Conn, req *connection.RPCRequest) {
	table, ok := paramString(req.Params, 0)
	if !ok {
		h.sendError(socket, req.ID, connection.CodeInvalidParams, "select: table required")
		return
	}

	s := h.server
	s.mu.RLock()
	rows, known := s.tables[table]
	s.mu.RUnlock()

	if !known {
		h.sendError(socket, req.ID, connection.CodeInvalidParams, fmt.Sprintf("unknown table: %s", table))
		return
	}

	// Point query when an id is supplied.
	if id, ok := paramString(req.Params, 1); ok {
		s.mu.RLock()
		row := findRow(rows, id)
		s.mu.RUnlock()
		if row == nil {
			h.sendError(socket, req.ID, connection.CodeNoRows, "no rows matched")
			return
		}
		h.sendResponse(socket, req.ID, row)
		return
	}

	h.sendResponse(socket, req.ID, rows)
}

func (h *handler) handleInsert(socket *gws.Conn, req *connection.RPCRequest) {
	table, tok := paramString(req.Params, 0)
	fields, fok := paramFields(req.Params, 1)
	if !tok || !fok {
		h.sendError(socket, req.ID, connection.CodeInvalidParams, "insert: table and record required")
		return
	}

	s := h.server
	s.mu.Lock()
	if _, known := s.tables[table]; !known {
		s.mu.Unlock()
		h.sendError(socket, req.ID, connection.CodeInvalidParams, fmt.Sprintf("unknown table: %s", table))
		return
	}
	if table == "users" && s.rejectProfileWrites {
		s.mu.Unlock()
		h.sendError(socket, req.ID, connection.CodePermissionDenied, "row access policy rejected the insert")
		return
	}
	if id, _ := fields["id"].(string); id == "" {
		fields["id"] = newID()
	}
	s.tables[table] = append(s.tables[table], fields)
	s.mu.Unlock()

	h.sendResponse(socket, req.ID, fields)
	s.broadcast(table, connection.ActionInsert, fields)
}

func (h *handler) handleUpdate(socket *gws.Conn, req *connection.RPCRequest) {
	table, tok := paramString(req.Params, 0)
	fields, fok := paramFields(req.Params, 1)
	if !tok || !fok {
		h.sendError(socket, req.ID, connection.CodeInvalidParams, "update: table and record required")
		return
	}
	id, _ := fields["id"].(string)
	if id == "" {
		h.sendError(socket, req.ID, connection.CodeInvalidParams, "update: record id required")
		return
	}

	s := h.server
	s.mu.Lock()
	if table == "users" && s.rejectProfileWrites {
		s.mu.Unlock()
		h.sendError(socket, req.ID, connection.CodePermissionDenied, "row access policy rejected the update")
		return
	}
	row := findRow(s.tables[table], id)
	if row == nil {
		s.mu.Unlock()
		h.sendError(socket, req.ID, connection.CodeNoRows, "no rows matched")
		return
	}
	for k, v := range fields {
		row[k] = v
	}
	s.mu.Unlock()

	h.sendResponse(socket, req.ID, row)
	s.broadcast(table, connection.ActionUpdate, row)
}

func (h *handler) handleUpsert(socket *gws.Conn, req *connection.RPCRequest) {
	table, tok := paramString(req.Params, 0)
	fields, fok := paramFields(req.Params, 1)
	if !tok || !fok {
		h.sendError(socket, req.ID, connection.CodeInvalidParams, "upsert: table and record required")
		return
	}
	id, _ := fields["id"].(string)

	s := h.server
	s.mu.Lock()
	if table == "users" && s.rejectProfileWrites {
		s.mu.Unlock()
		h.sendError(socket, req.ID, connection.CodePermissionDenied, "row access policy rejected the upsert")
		return
	}
	row := findRow(s.tables[table], id)
	action := connection.ActionUpdate
	if row == nil {
		if id == "" {
			fields["id"] = newID()
		}
		s.tables[table] = append(s.tables[table], fields)
		row = fields
		action = connection.ActionInsert
	} else {
		for k, v := range fields {
			row[k] = v
		}
	}
	s.mu.Unlock()

	h.sendResponse(socket, req.ID, row)
	s.broadcast(table, action, row)
}

func (h *handler) handleDelete(socket *gws.Conn, req *connection.RPCRequest) {
	table, tok := paramString(req.Params, 0)
	id, iok := paramString(req.Params, 1)
	if !tok || !iok {
		h.sendError(socket, req.ID, connection.CodeInvalidParams, "delete: table and id required")
		return
	}

	s := h.server
	s.mu.Lock()
	rows := s.tables[table]
	var deleted map[string]any
	filtered := rows[:0]
	for _, row := range rows {
		if rid, _ := row["id"].(string); rid == id {
			deleted = row
			continue
		}
		filtered = append(filtered, row)
	}
	s.tables[table] = filtered
	s.mu.Unlock()

	h.sendResponse(socket, req.ID, nil)
	if deleted != nil {
		s.broadcast(table, connection.ActionDelete, deleted)
	}
}

func (h *handler) handleLive(socket *gws.Conn, req *connection.RPCRequest) {
	table, ok := paramString(req.Params, 0)
	if !ok {
		h.sendError(socket, req.ID, connection.CodeInvalidParams, "live: table required")
		return
	}

	id := newID()
	s := h.server
	s.mu.Lock()
	s.lives[id] = liveQuery{conn: socket, table: table}
	s.mu.Unlock()

	h.sendResponse(socket, req.ID, id)
}

func (h *handler) handleKill(socket *gws.Conn, req *connection.RPCRequest) {
	id, ok := paramString(req.Params, 0)
	if !ok {
		h.sendError(socket, req.ID, connection.CodeInvalidParams, "kill: live query id required")
		return
	}

	s := h.server
	s.mu.Lock()
	delete(s.lives, id)
	s.mu.Unlock()

	h.sendResponse(socket, req.ID, nil)
}

// broadcast delivers one change event to every live query on table,
// across all connections, including the one that caused the change.
func (s *Server) broadcast(table string, action connection.Action, record map[string]any) {
	s.mu.RLock()
	type target struct {
		conn *gws.Conn
		id   string
	}
	var targets []target
	for id, lq := range s.lives {
		if lq.table == table {
			targets = append(targets, target{conn: lq.conn, id: id})
		}
	}
	s.mu.RUnlock()

	for _, t := range targets {
		payload := map[string]any{
			"id":     t.id,
			"table":  table,
			"action": action,
			"record": record,
		}
		resp := map[string]any{"result": payload}
		h := handler{server: s}
		h.write(t.conn, resp)
	}
}

func findRow(rows []map[string]any, id string) map[string]any {
	for _, row := range rows {
		if rid, _ := row["id"].(string); rid == id {
			return row
		}
	}
	return nil
}
