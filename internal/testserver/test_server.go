package testserver

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"sheetsync/internal/supabase"
)

// Request is one call the fake table received.
type Request struct {
	Method string
	Query  string
	Prefer string
}

// TestServer is a minimal PostgREST stand-in serving a single table keyed by
// sl_number, stored in an in-memory SQLite database.
type TestServer struct {
	Server *httptest.Server
	DB     *sql.DB
	APIKey string
	Table  string

	mu           sync.Mutex
	requests     []Request
	upsertStatus int
	missing404   bool
}

func New(t *testing.T, apiKey, table string) *TestServer {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
CREATE TABLE IF NOT EXISTS remote_rows (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    sl_number TEXT NOT NULL UNIQUE,
    data TEXT NOT NULL
);
DELETE FROM remote_rows;`)
	require.NoError(t, err)

	ts := &TestServer{DB: db, APIKey: apiKey, Table: table}
	ts.Server = httptest.NewServer(http.HandlerFunc(ts.handle))

	t.Cleanup(func() {
		ts.Server.Close()
		_ = db.Close()
	})

	return ts
}

// URL is the base URL the client should be pointed at.
func (ts *TestServer) URL() string {
	return ts.Server.URL
}

// FailUpserts makes every bulk upsert answer with status.
func (ts *TestServer) FailUpserts(status int) {
	ts.mu.Lock()
	ts.upsertStatus = status
	ts.mu.Unlock()
}

// MissingAs404 makes a PATCH that matches nothing answer 404 instead of an
// empty 204.
func (ts *TestServer) MissingAs404(v bool) {
	ts.mu.Lock()
	ts.missing404 = v
	ts.mu.Unlock()
}

// Requests returns the calls received so far.
func (ts *TestServer) Requests() []Request {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return append([]Request(nil), ts.requests...)
}

// Count returns the number of stored rows.
func (ts *TestServer) Count(t *testing.T) int {
	t.Helper()
	var n int
	require.NoError(t, ts.DB.QueryRow(`SELECT COUNT(*) FROM remote_rows`).Scan(&n))
	return n
}

// Get returns the stored row for slNumber.
func (ts *TestServer) Get(t *testing.T, slNumber string) (supabase.Row, bool) {
	t.Helper()
	var data string
	err := ts.DB.QueryRow(`SELECT data FROM remote_rows WHERE sl_number = ?`, slNumber).Scan(&data)
	if err == sql.ErrNoRows {
		return supabase.Row{}, false
	}
	require.NoError(t, err)

	var row supabase.Row
	require.NoError(t, json.Unmarshal([]byte(data), &row))
	return row, true
}

// Seed stores a row directly, bypassing the HTTP surface.
func (ts *TestServer) Seed(t *testing.T, row supabase.Row) {
	t.Helper()
	key := row.Get("sl_number")
	data, err := json.Marshal(row)
	require.NoError(t, err)
	_, err = ts.DB.Exec(`INSERT INTO remote_rows (sl_number, data) VALUES (?, ?)`, fmt.Sprint(key), string(data))
	require.NoError(t, err)
}

func (ts *TestServer) handle(w http.ResponseWriter, r *http.Request) {
	ts.mu.Lock()
	ts.requests = append(ts.requests, Request{Method: r.Method, Query: r.URL.RawQuery, Prefer: r.Header.Get("Prefer")})
	upsertStatus, missing404 := ts.upsertStatus, ts.missing404
	ts.mu.Unlock()

	if r.Header.Get("apikey") != ts.APIKey || r.Header.Get("Authorization") != "Bearer "+ts.APIKey {
		writeError(w, http.StatusUnauthorized, "Invalid API key")
		return
	}
	if r.URL.Path != "/rest/v1/"+ts.Table {
		writeError(w, http.StatusNotFound, "relation does not exist")
		return
	}

	switch r.Method {
	case http.MethodGet:
		ts.handleSelect(w)
	case http.MethodPost:
		if r.URL.Query().Get("on_conflict") != "" {
			if upsertStatus != 0 {
				writeError(w, upsertStatus, "bulk upsert rejected")
				return
			}
			ts.handleUpsert(w, r)
			return
		}
		ts.handleInsert(w, r)
	case http.MethodPatch:
		ts.handleUpdate(w, r, missing404)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (ts *TestServer) handleSelect(w http.ResponseWriter) {
	rows, err := ts.DB.Query(`SELECT data FROM remote_rows ORDER BY sl_number ASC`)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer rows.Close()

	out := []json.RawMessage{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		out = append(out, json.RawMessage(data))
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (ts *TestServer) handleUpsert(w http.ResponseWriter, r *http.Request) {
	var batch []supabase.Row
	if err := decodeBody(r, &batch); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	for _, row := range batch {
		key := row.Get("sl_number")
		if key == nil || fmt.Sprint(key) == "" {
			writeError(w, http.StatusBadRequest, "null value in column \"sl_number\"")
			return
		}
		if existing, found, err := ts.load(fmt.Sprint(key)); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		} else if found {
			row = merge(existing, row)
		}
		if err := ts.save(fmt.Sprint(key), row); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	w.WriteHeader(http.StatusCreated)
}

func (ts *TestServer) handleInsert(w http.ResponseWriter, r *http.Request) {
	var row supabase.Row
	if err := decodeBody(r, &row); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	key := row.Get("sl_number")
	if key == nil {
		writeError(w, http.StatusBadRequest, "null value in column \"sl_number\"")
		return
	}
	if _, found, err := ts.load(fmt.Sprint(key)); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	} else if found {
		writeError(w, http.StatusConflict, "duplicate key value violates unique constraint")
		return
	}
	if err := ts.save(fmt.Sprint(key), row); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (ts *TestServer) handleUpdate(w http.ResponseWriter, r *http.Request, missing404 bool) {
	filter := r.URL.Query().Get("sl_number")
	key, ok := strings.CutPrefix(filter, "eq.")
	if !ok {
		writeError(w, http.StatusBadRequest, "unsupported filter")
		return
	}

	var patch supabase.Row
	if err := decodeBody(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	existing, found, err := ts.load(key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !found {
		if missing404 {
			writeError(w, http.StatusNotFound, "no rows matched")
			return
		}
		w.Header().Set("Content-Range", "*/0")
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if err := ts.save(key, merge(existing, patch)); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Range", "0-0/1")
	w.WriteHeader(http.StatusNoContent)
}

func (ts *TestServer) load(key string) (supabase.Row, bool, error) {
	var data string
	err := ts.DB.QueryRow(`SELECT data FROM remote_rows WHERE sl_number = ?`, key).Scan(&data)
	if err == sql.ErrNoRows {
		return supabase.Row{}, false, nil
	}
	if err != nil {
		return supabase.Row{}, false, err
	}
	var row supabase.Row
	if err := json.Unmarshal([]byte(data), &row); err != nil {
		return supabase.Row{}, false, err
	}
	return row, true, nil
}

func (ts *TestServer) save(key string, row supabase.Row) error {
	data, err := json.Marshal(row)
	if err != nil {
		return err
	}
	_, err = ts.DB.Exec(`
INSERT INTO remote_rows (sl_number, data) VALUES (?, ?)
ON CONFLICT(sl_number) DO UPDATE SET data = excluded.data`, key, string(data))
	return err
}

// merge overlays update onto base, keeping base's column order.
func merge(base, update supabase.Row) supabase.Row {
	out := supabase.NewRow()
	for _, k := range base.Keys() {
		out.Set(k, base.Get(k))
	}
	for _, k := range update.Keys() {
		out.Set(k, update.Get(k))
	}
	return out
}

func decodeBody(r *http.Request, v interface{}) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": message})
}
