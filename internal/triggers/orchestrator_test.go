package triggers_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"sheetsync/internal/store"
	"sheetsync/internal/triggers"
)

type mockSyncer struct {
	mock.Mock
}

func (m *mockSyncer) ResolveTargetSheet(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *mockSyncer) SyncSheet(ctx context.Context, sheetName string) (int, error) {
	args := m.Called(ctx, sheetName)
	return args.Int(0), args.Error(1)
}

func (m *mockSyncer) SyncEditedRow(ctx context.Context, sheetName string, row int) (bool, error) {
	args := m.Called(ctx, sheetName, row)
	return args.Bool(0), args.Error(1)
}

var targetSheets = []string{"sheet1", "Sheet1", "Data", "Main", "Transport Plan"}

func newRegistry(t *testing.T) *triggers.Registry {
	t.Helper()
	db, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return triggers.NewRegistry(store.NewTriggerRepository(db))
}

func newOrchestrator(t *testing.T, syncer triggers.Syncer, settle time.Duration) (*triggers.Orchestrator, *triggers.Registry) {
	t.Helper()
	registry := newRegistry(t)
	orch := triggers.NewOrchestrator(registry, syncer, triggers.Options{
		SpreadsheetID: "spreadsheet-1",
		TargetSheets:  targetSheets,
		SettleDelay:   settle,
		RowCeiling:    1000,
	})
	return orch, registry
}

func countHandlers(list []triggers.Trigger) map[string]int {
	counts := map[string]int{}
	for _, t := range list {
		counts[t.Handler]++
	}
	return counts
}

func TestEnableTwiceLeavesOneOfEach(t *testing.T) {
	ctx := context.Background()
	orch, registry := newOrchestrator(t, &mockSyncer{}, 0)

	require.NoError(t, orch.Enable(ctx))
	require.NoError(t, orch.Enable(ctx))

	list, err := registry.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, map[string]int{triggers.HandlerEdit: 1, triggers.HandlerScheduled: 1}, countHandlers(list))

	for _, tr := range list {
		switch tr.Handler {
		case triggers.HandlerEdit:
			require.Equal(t, triggers.KindEdit, tr.Kind)
			require.Equal(t, "spreadsheet-1", tr.Source)
		case triggers.HandlerScheduled:
			require.Equal(t, triggers.KindTime, tr.Kind)
			require.Equal(t, time.Hour, tr.Interval)
		}
	}
}

func TestEnableKeepsUnrelatedTriggers(t *testing.T) {
	ctx := context.Background()
	orch, registry := newOrchestrator(t, &mockSyncer{}, 0)

	_, err := registry.Install(ctx, triggers.Trigger{Handler: "sendReminders", Kind: triggers.KindTime, Interval: 24 * time.Hour})
	require.NoError(t, err)
	_, err = registry.Install(ctx, triggers.Trigger{Handler: triggers.HandlerEdit, Kind: triggers.KindEdit})
	require.NoError(t, err)
	_, err = registry.Install(ctx, triggers.Trigger{Handler: triggers.HandlerEdit, Kind: triggers.KindEdit})
	require.NoError(t, err)

	require.NoError(t, orch.Enable(ctx))

	list, err := registry.List(ctx)
	require.NoError(t, err)
	require.Equal(t, map[string]int{
		"sendReminders":           1,
		triggers.HandlerEdit:      1,
		triggers.HandlerScheduled: 1,
	}, countHandlers(list))
}

func TestDisableReportsRemovedCount(t *testing.T) {
	ctx := context.Background()
	orch, registry := newOrchestrator(t, &mockSyncer{}, 0)

	removed, err := orch.Disable(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, removed)

	require.NoError(t, orch.Enable(ctx))
	_, err = registry.Install(ctx, triggers.Trigger{Handler: "other", Kind: triggers.KindTime})
	require.NoError(t, err)

	removed, err = orch.Disable(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, removed)

	list, err := registry.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "other", list[0].Handler)
}

func TestStatus(t *testing.T) {
	ctx := context.Background()
	orch, registry := newOrchestrator(t, &mockSyncer{}, 0)

	status, err := orch.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, triggers.Status{}, status)
	require.Contains(t, status.String(), "Edit Trigger: MISSING")
	require.Contains(t, status.String(), "Scheduled Trigger: MISSING")

	require.NoError(t, orch.Enable(ctx))
	_, err = registry.Install(ctx, triggers.Trigger{Handler: "other", Kind: triggers.KindTime})
	require.NoError(t, err)

	status, err = orch.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, triggers.Status{EditActive: true, ScheduledActive: true, Total: 3}, status)
	require.Contains(t, status.String(), "Edit Trigger: ACTIVE")
	require.Contains(t, status.String(), "Scheduled Trigger: ACTIVE")
	require.Contains(t, status.String(), "Total triggers: 3")

	// Status is read-only.
	list, err := registry.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
}

func TestOnEditSyncsDataRow(t *testing.T) {
	ctx := context.Background()
	syncer := &mockSyncer{}
	syncer.On("SyncEditedRow", ctx, "sheet1", 5).Return(true, nil).Once()
	orch, _ := newOrchestrator(t, syncer, 20*time.Millisecond)

	start := time.Now()
	orch.OnEdit(ctx, triggers.EditEvent{Sheet: "sheet1", Row: 5, Column: 3})

	require.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	syncer.AssertExpectations(t)
}

func TestOnEditIgnoresHeaderAndCeiling(t *testing.T) {
	ctx := context.Background()
	syncer := &mockSyncer{}
	orch, _ := newOrchestrator(t, syncer, 0)

	for _, row := range []int{-1, 0, 1, 1000, 1001, 5000} {
		orch.OnEdit(ctx, triggers.EditEvent{Sheet: "sheet1", Row: row, Column: 1})
	}

	syncer.AssertNotCalled(t, "SyncEditedRow", mock.Anything, mock.Anything, mock.Anything)
}

func TestOnEditBoundaryRows(t *testing.T) {
	ctx := context.Background()
	syncer := &mockSyncer{}
	syncer.On("SyncEditedRow", ctx, "Data", 2).Return(true, nil).Once()
	syncer.On("SyncEditedRow", ctx, "Data", 999).Return(true, nil).Once()
	orch, _ := newOrchestrator(t, syncer, 0)

	orch.OnEdit(ctx, triggers.EditEvent{Sheet: "Data", Row: 2})
	orch.OnEdit(ctx, triggers.EditEvent{Sheet: "Data", Row: 999})

	syncer.AssertExpectations(t)
}

func TestOnEditIgnoresOtherSheets(t *testing.T) {
	ctx := context.Background()
	syncer := &mockSyncer{}
	orch, _ := newOrchestrator(t, syncer, 0)

	orch.OnEdit(ctx, triggers.EditEvent{Sheet: "Supabase Data", Row: 4})
	orch.OnEdit(ctx, triggers.EditEvent{Sheet: "SHEET1", Row: 4})

	syncer.AssertNotCalled(t, "SyncEditedRow", mock.Anything, mock.Anything, mock.Anything)
}

func TestOnEditSwallowsFailures(t *testing.T) {
	ctx := context.Background()
	syncer := &mockSyncer{}
	syncer.On("SyncEditedRow", ctx, "Main", 3).Return(false, errors.New("sheet unavailable")).Once()
	syncer.On("SyncEditedRow", ctx, "Main", 4).Return(false, nil).Once()
	syncer.On("SyncEditedRow", ctx, "Main", 6).Run(func(args mock.Arguments) {
		panic("boom")
	}).Return(false, nil).Once()
	orch, _ := newOrchestrator(t, syncer, 0)

	require.NotPanics(t, func() {
		orch.OnEdit(ctx, triggers.EditEvent{Sheet: "Main", Row: 3})
		orch.OnEdit(ctx, triggers.EditEvent{Sheet: "Main", Row: 4})
		orch.OnEdit(ctx, triggers.EditEvent{Sheet: "Main", Row: 6})
	})
	syncer.AssertExpectations(t)
}

func TestOnEditCancelledDuringSettle(t *testing.T) {
	syncer := &mockSyncer{}
	orch, _ := newOrchestrator(t, syncer, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	orch.OnEdit(ctx, triggers.EditEvent{Sheet: "sheet1", Row: 5})

	syncer.AssertNotCalled(t, "SyncEditedRow", mock.Anything, mock.Anything, mock.Anything)
}

func TestRunScheduled(t *testing.T) {
	ctx := context.Background()
	syncer := &mockSyncer{}
	syncer.On("ResolveTargetSheet", ctx).Return("sheet1", nil).Once()
	syncer.On("SyncSheet", ctx, "sheet1").Return(12, nil).Once()
	orch, _ := newOrchestrator(t, syncer, 0)

	orch.RunScheduled(ctx)

	syncer.AssertExpectations(t)
}

func TestRunScheduledSilentFailures(t *testing.T) {
	ctx := context.Background()

	missing := &mockSyncer{}
	missing.On("ResolveTargetSheet", ctx).Return("", errors.New("sheet not found")).Once()
	orch, _ := newOrchestrator(t, missing, 0)
	require.NotPanics(t, func() { orch.RunScheduled(ctx) })
	missing.AssertNotCalled(t, "SyncSheet", mock.Anything, mock.Anything)

	failing := &mockSyncer{}
	failing.On("ResolveTargetSheet", ctx).Return("sheet1", nil).Once()
	failing.On("SyncSheet", ctx, "sheet1").Return(0, errors.New("network down")).Once()
	orch, _ = newOrchestrator(t, failing, 0)
	require.NotPanics(t, func() { orch.RunScheduled(ctx) })
	failing.AssertExpectations(t)
}
