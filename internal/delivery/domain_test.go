package delivery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 12, 8, 30, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func TestStatus_Transitions(t *testing.T) {
	tests := []struct {
		status     Status
		canEdit    bool
		canDisp    bool
		canTransit bool
		canDeliver bool
		canCancel  bool
	}{
		{StatusScheduled, true, true, false, false, true},
		{StatusDispatched, true, false, true, true, true},
		{StatusInTransit, false, false, false, true, false},
		{StatusDelivered, false, false, false, false, false},
		{StatusFailed, false, true, false, false, false},
		{StatusCancelled, false, false, false, false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.True(t, tt.status.IsValid())
			assert.Equal(t, tt.canEdit, tt.status.CanEdit())
			assert.Equal(t, tt.canDisp, tt.status.CanDispatch())
			assert.Equal(t, tt.canTransit, tt.status.CanMarkInTransit())
			assert.Equal(t, tt.canDeliver, tt.status.CanDeliver())
			assert.Equal(t, tt.canCancel, tt.status.CanCancel())
		})
	}
	assert.False(t, Status("lost").IsValid())
}

func TestRecord_FailedAttemptCanBeRedispatched(t *testing.T) {
	rec := &Record{Status: StatusScheduled}

	require.NoError(t, rec.Dispatch(testNow))
	require.NoError(t, rec.Fail("customer unavailable", testNow.Add(time.Hour)))
	assert.Equal(t, StatusFailed, rec.Status)
	assert.Equal(t, "customer unavailable", *rec.FailureReason)

	later := testNow.Add(24 * time.Hour)
	require.NoError(t, rec.Dispatch(later))
	assert.Equal(t, 2, rec.Attempts)
	assert.Nil(t, rec.FailureReason)
	assert.Equal(t, later, *rec.DispatchedAt)

	require.NoError(t, rec.MarkInTransit(later))
	require.NoError(t, rec.Deliver("site supervisor", later.Add(2*time.Hour)))
	assert.Equal(t, StatusDelivered, rec.Status)
	assert.Equal(t, "site supervisor", *rec.ReceivedBy)
	require.NotNil(t, rec.DeliveredAt)
}

func TestRecord_RejectsOutOfOrderTransitions(t *testing.T) {
	rec := &Record{Status: StatusScheduled}

	assert.ErrorIs(t, rec.MarkInTransit(testNow), ErrCannotTransit)
	assert.ErrorIs(t, rec.Deliver("", testNow), ErrCannotDeliver)
	assert.ErrorIs(t, rec.Fail("x", testNow), ErrCannotFail)

	rec.Status = StatusDelivered
	assert.ErrorIs(t, rec.Cancel("late", testNow), ErrCannotCancel)
	assert.ErrorIs(t, rec.Dispatch(testNow), ErrCannotDispatch)
	assert.ErrorIs(t, rec.Assign(Assignment{DriverName: strPtr("Ravi")}, testNow), ErrCannotEdit)
}

func TestRecord_AssignKeepsUnsetFields(t *testing.T) {
	rec := &Record{Status: StatusScheduled, DriverName: strPtr("Ravi"), VehicleNumber: strPtr("KA01AB1234")}

	require.NoError(t, rec.Assign(Assignment{DriverPhone: strPtr("9876543210")}, testNow))

	assert.Equal(t, "Ravi", *rec.DriverName)
	assert.Equal(t, "9876543210", *rec.DriverPhone)
	assert.Equal(t, "KA01AB1234", *rec.VehicleNumber)
	assert.Equal(t, testNow, rec.UpdatedAt)
}
