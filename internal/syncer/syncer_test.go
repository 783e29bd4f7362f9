package syncer

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sheetsync/internal/mapping"
	"sheetsync/internal/supabase"
	"sheetsync/internal/testserver"
)

const testKey = "eyJtest"

type staticKey string

func (k staticKey) APIKey(ctx context.Context) (string, error) {
	return string(k), nil
}

func newSyncer(t *testing.T) (*Syncer, *testserver.TestServer, *supabase.Client) {
	t.Helper()
	ts := testserver.New(t, testKey, "met")
	client := supabase.NewClient(ts.URL(), "met", mapping.KeyColumn, staticKey(testKey), 5*time.Second)
	return New(client), ts, client
}

func record(sl, status string) mapping.Record {
	return mapping.Record{
		SLNumber:     sl,
		ActionItem:   "Review " + sl,
		ReminderSent: "No",
		Status:       status,
		SheetSource:  "sheet1",
		LastSynced:   "2025-03-15T10:00:00.000Z",
	}
}

func TestUpsertRecordsThenReadBackAscending(t *testing.T) {
	ctx := context.Background()
	s, ts, client := newSyncer(t)

	count, err := s.UpsertRecords(ctx, []mapping.Record{
		record("3", "Done"),
		record("1", "Not Done"),
		record("2", "Not Done"),
	})
	require.NoError(t, err)
	require.Equal(t, 3, count)

	rows, err := client.SelectOrdered(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for i, want := range []string{"1", "2", "3"} {
		require.Equal(t, want, rows[i].Get("sl_number"))
	}
	require.Equal(t, "Done", rows[2].Get("status"))

	reqs := ts.Requests()
	require.Equal(t, http.MethodPost, reqs[0].Method)
	require.Equal(t, "on_conflict=sl_number", reqs[0].Query)
	require.Equal(t, "resolution=merge-duplicates", reqs[0].Prefer)
}

func TestUpsertRecordsIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s, ts, _ := newSyncer(t)
	batch := []mapping.Record{record("1", "Not Done"), record("2", "Not Done")}

	_, err := s.UpsertRecords(ctx, batch)
	require.NoError(t, err)
	batch[1].Status = "Done"
	_, err = s.UpsertRecords(ctx, batch)
	require.NoError(t, err)

	require.Equal(t, 2, ts.Count(t))
	row, ok := ts.Get(t, "2")
	require.True(t, ok)
	require.Equal(t, "Done", row.Get("status"))
}

func TestUpsertRecordsSkipsEmptySerials(t *testing.T) {
	ctx := context.Background()
	s, ts, _ := newSyncer(t)

	count, err := s.UpsertRecords(ctx, []mapping.Record{record("", "Done"), record("7", "Done")})
	require.NoError(t, err)
	require.Equal(t, 1, count)
	require.Equal(t, 1, ts.Count(t))

	count, err = s.UpsertRecords(ctx, []mapping.Record{record("", "Done")})
	require.NoError(t, err)
	require.Equal(t, 0, count)
	require.Len(t, ts.Requests(), 1)
}

func TestUpsertRecordsFallsBackToIndividualSync(t *testing.T) {
	ctx := context.Background()
	s, ts, _ := newSyncer(t)
	ts.Seed(t, supabase.NewRow("sl_number", "1", "status", "Not Done"))
	ts.FailUpserts(http.StatusBadRequest)

	count, err := s.UpsertRecords(ctx, []mapping.Record{record("1", "Done"), record("2", "Not Done")})
	require.NoError(t, err)
	require.Equal(t, 2, count)
	require.Equal(t, 2, ts.Count(t))

	row, ok := ts.Get(t, "1")
	require.True(t, ok)
	require.Equal(t, "Done", row.Get("status"))

	var methods []string
	for _, r := range ts.Requests() {
		methods = append(methods, r.Method)
	}
	// bulk, update 1, update 2 (nothing matched), create 2
	require.Equal(t, []string{"POST", "PATCH", "PATCH", "POST"}, methods)
}

func TestUpsertRecordsTransportErrorIsReturned(t *testing.T) {
	client := supabase.NewClient("http://127.0.0.1:1", "met", mapping.KeyColumn, staticKey(testKey), time.Second)
	_, err := New(client).UpsertRecords(context.Background(), []mapping.Record{record("1", "Done")})
	require.Error(t, err)
}

func TestSyncRecordCreatesMissingRow(t *testing.T) {
	ctx := context.Background()
	s, ts, _ := newSyncer(t)

	require.True(t, s.SyncRecord(ctx, "42", record("42", "Not Done")))
	require.Equal(t, 1, ts.Count(t))

	reqs := ts.Requests()
	require.Len(t, reqs, 2)
	require.Equal(t, http.MethodPatch, reqs[0].Method)
	require.Equal(t, "sl_number=eq.42", reqs[0].Query)
	require.Equal(t, "return=minimal, count=exact", reqs[0].Prefer)
	require.Equal(t, http.MethodPost, reqs[1].Method)
	require.Equal(t, "return=minimal", reqs[1].Prefer)
}

func TestSyncRecordCreatesOn404(t *testing.T) {
	ctx := context.Background()
	s, ts, _ := newSyncer(t)
	ts.MissingAs404(true)

	require.True(t, s.SyncRecord(ctx, "A 1", record("A 1", "Not Done")))
	require.Equal(t, 1, ts.Count(t))
	require.Equal(t, "sl_number=eq.A%201", ts.Requests()[0].Query)
}

func TestSyncRecordUpdatesInPlace(t *testing.T) {
	ctx := context.Background()
	s, ts, _ := newSyncer(t)
	ts.Seed(t, supabase.NewRow("id", 9, "sl_number", "5", "status", "Not Done"))

	require.True(t, s.SyncRecord(ctx, "5", record("5", "Done")))

	require.Equal(t, 1, ts.Count(t))
	row, ok := ts.Get(t, "5")
	require.True(t, ok)
	require.Equal(t, "Done", row.Get("status"))
	require.Equal(t, []string{"id", "sl_number", "status"}, row.Keys()[:3])
	require.Len(t, ts.Requests(), 1)
}

func TestSyncRecordEmptySerial(t *testing.T) {
	s, ts, _ := newSyncer(t)
	require.False(t, s.SyncRecord(context.Background(), "", record("", "Done")))
	require.Empty(t, ts.Requests())
}

type fakeTable struct {
	update *supabase.Response
	insert *supabase.Response
	upsert *supabase.Response
	err    error
	calls  []string
}

func (f *fakeTable) Upsert(ctx context.Context, payload interface{}) (*supabase.Response, error) {
	f.calls = append(f.calls, "upsert")
	return f.upsert, f.err
}

func (f *fakeTable) Update(ctx context.Context, key string, payload interface{}) (*supabase.Response, error) {
	f.calls = append(f.calls, "update")
	return f.update, f.err
}

func (f *fakeTable) Insert(ctx context.Context, payload interface{}) (*supabase.Response, error) {
	f.calls = append(f.calls, "insert")
	return f.insert, f.err
}

func TestSyncRecordOtherFailures(t *testing.T) {
	ctx := context.Background()

	forbidden := &fakeTable{update: &supabase.Response{StatusCode: http.StatusForbidden, Body: []byte(`{"message":"denied"}`)}}
	require.False(t, New(forbidden).SyncRecord(ctx, "1", record("1", "Done")))
	require.Equal(t, []string{"update"}, forbidden.calls)

	conflict := &fakeTable{
		update: &supabase.Response{StatusCode: http.StatusNoContent, Header: http.Header{"Content-Range": []string{"*/0"}}},
		insert: &supabase.Response{StatusCode: http.StatusConflict},
	}
	require.False(t, New(conflict).SyncRecord(ctx, "1", record("1", "Done")))
	require.Equal(t, []string{"update", "insert"}, conflict.calls)

	offline := &fakeTable{err: errors.New("connection refused")}
	require.False(t, New(offline).SyncRecord(ctx, "1", record("1", "Done")))
}

func TestSyncReturnsCause(t *testing.T) {
	ctx := context.Background()
	missing := errors.New("no API key")

	keyless := &fakeTable{err: missing}
	err := New(keyless).Sync(ctx, "1", record("1", "Done"))
	require.ErrorIs(t, err, missing)
	require.Equal(t, []string{"update"}, keyless.calls)

	forbidden := &fakeTable{update: &supabase.Response{StatusCode: http.StatusForbidden}}
	var apiErr *supabase.APIError
	require.ErrorAs(t, New(forbidden).Sync(ctx, "1", record("1", "Done")), &apiErr)
	require.Equal(t, "auth", apiErr.Type)

	require.ErrorIs(t, New(&fakeTable{}).Sync(ctx, "", record("", "Done")), ErrMissingSerial)
}

func TestSyncRecordUpdateWithoutCount(t *testing.T) {
	table := &fakeTable{update: &supabase.Response{StatusCode: http.StatusNoContent}}
	require.True(t, New(table).SyncRecord(context.Background(), "1", record("1", "Done")))
	require.Equal(t, []string{"update"}, table.calls)
}

func TestUpsertRecordsCountsEchoedRows(t *testing.T) {
	ctx := context.Background()
	batch := []mapping.Record{record("1", "Done"), record("2", "Done"), record("3", "Done")}

	echoed := &fakeTable{upsert: &supabase.Response{StatusCode: http.StatusCreated, Body: []byte(`[{"sl_number":"1"},{"sl_number":"2"}]`)}}
	count, err := New(echoed).UpsertRecords(ctx, batch)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	malformed := &fakeTable{upsert: &supabase.Response{StatusCode: http.StatusOK, Body: []byte(`not json`)}}
	count, err = New(malformed).UpsertRecords(ctx, batch)
	require.NoError(t, err)
	require.Equal(t, 3, count)
}
