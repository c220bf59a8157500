package delivery

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// MOCKS
// ============================================================================

type mockRepository struct {
	records map[string]*Record
	nextID  int64
	updates []map[string]interface{}
}

func newMockRepository() *mockRepository {
	return &mockRepository{records: make(map[string]*Record)}
}

func (m *mockRepository) GetByLeadID(_ context.Context, leadID string) (*Record, error) {
	rec, ok := m.records[leadID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx := &mockTx{repo: m, staged: make(map[string]*Record)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for lead, rec := range tx.staged {
		m.records[lead] = rec
	}
	return nil
}

type mockTx struct {
	repo   *mockRepository
	staged map[string]*Record
}

func (t *mockTx) GetForUpdate(ctx context.Context, leadID string) (*Record, error) {
	return t.repo.GetByLeadID(ctx, leadID)
}

func (t *mockTx) Create(_ context.Context, rec *Record) (int64, error) {
	if _, ok := t.repo.records[rec.LeadID]; ok {
		return 0, ErrAlreadyExists
	}
	t.repo.nextID++
	cp := *rec
	cp.ID = t.repo.nextID
	t.staged[rec.LeadID] = &cp
	return cp.ID, nil
}

func (t *mockTx) Update(_ context.Context, id int64, updates map[string]interface{}) error {
	for lead, rec := range t.repo.records {
		if rec.ID != id {
			continue
		}
		cp := *rec
		cp.Status = updates["status"].(Status)
		cp.Attempts = updates["attempts"].(int)
		cp.FailureReason = updates["failure_reason"].(*string)
		cp.DriverName = updates["driver_name"].(*string)
		t.staged[lead] = &cp
		t.repo.updates = append(t.repo.updates, updates)
		return nil
	}
	return ErrNotFound
}

func newTestService() (*Service, *mockRepository) {
	repo := newMockRepository()
	svc := NewService(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.now = func() time.Time { return testNow }
	return svc, repo
}

// ============================================================================
// TESTS
// ============================================================================

func TestService_Schedule(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	req := ScheduleRequest{LeadID: "CEM-260312-A1B2C3", WarehouseID: 4, ScheduledDate: testNow.Add(48 * time.Hour)}

	rec, err := svc.Schedule(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, StatusScheduled, rec.Status)
	assert.Equal(t, int64(1), rec.ID)
	assert.Contains(t, repo.records, req.LeadID)

	_, err = svc.Schedule(ctx, req)
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestService_DispatchFailRedispatch(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	lead := "STL-260312-0F0F0F"
	_, err := svc.Schedule(ctx, ScheduleRequest{LeadID: lead, WarehouseID: 1, ScheduledDate: testNow})
	require.NoError(t, err)

	rec, err := svc.Dispatch(ctx, lead, Assignment{DriverName: strPtr("Ravi")})
	require.NoError(t, err)
	assert.Equal(t, StatusDispatched, rec.Status)
	assert.Equal(t, "Ravi", *repo.records[lead].DriverName)

	_, err = svc.MarkFailed(ctx, lead, "site closed")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, repo.records[lead].Status)

	rec, err = svc.Dispatch(ctx, lead, Assignment{})
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Attempts)
	assert.Nil(t, repo.records[lead].FailureReason)
}

func TestService_RejectedTransitionLeavesRecordUnchanged(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	lead := "CEM-260312-111111"
	_, err := svc.Schedule(ctx, ScheduleRequest{LeadID: lead, WarehouseID: 1, ScheduledDate: testNow})
	require.NoError(t, err)

	_, err = svc.MarkDelivered(ctx, lead, "guard")
	assert.ErrorIs(t, err, ErrCannotDeliver)
	assert.Equal(t, StatusScheduled, repo.records[lead].Status)
	assert.Empty(t, repo.updates)
}

func TestService_UnknownLead(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Cancel(context.Background(), "NOPE", "duplicate")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Get(context.Background(), "NOPE")
	assert.ErrorIs(t, err, ErrNotFound)
}
