package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fieldops/dispatch-api/internal/domain"
)

func TestCanTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		from domain.TaskStatus
		to   domain.TaskStatus
		want bool
	}{
		{name: "unassigned to assigned", from: domain.TaskStatusUnassigned, to: domain.TaskStatusAssigned, want: true},
		{name: "assigned to accepted", from: domain.TaskStatusAssigned, to: domain.TaskStatusAccepted, want: true},
		{name: "assigned to rejected", from: domain.TaskStatusAssigned, to: domain.TaskStatusRejected, want: true},
		{name: "accepted to completed", from: domain.TaskStatusAccepted, to: domain.TaskStatusCompleted, want: true},
		{name: "rejected to accepted", from: domain.TaskStatusRejected, to: domain.TaskStatusAccepted, want: true},
		{name: "rejected to assigned", from: domain.TaskStatusRejected, to: domain.TaskStatusAssigned, want: true},
		{name: "unassigned to accepted skips assignment", from: domain.TaskStatusUnassigned, to: domain.TaskStatusAccepted, want: false},
		{name: "accepted to rejected", from: domain.TaskStatusAccepted, to: domain.TaskStatusRejected, want: false},
		{name: "completed is terminal", from: domain.TaskStatusCompleted, to: domain.TaskStatusAssigned, want: false},
		{name: "assigned back to unassigned", from: domain.TaskStatusAssigned, to: domain.TaskStatusUnassigned, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}

func TestReallocatable(t *testing.T) {
	t.Parallel()

	for _, status := range []domain.TaskStatus{
		domain.TaskStatusUnassigned,
		domain.TaskStatusAssigned,
		domain.TaskStatusRejected,
	} {
		ok, msg := status.Reallocatable()
		assert.True(t, ok, "status %s should be reallocatable", status)
		assert.Empty(t, msg)
	}

	acceptedOK, acceptedMsg := domain.TaskStatusAccepted.Reallocatable()
	completedOK, completedMsg := domain.TaskStatusCompleted.Reallocatable()

	assert.False(t, acceptedOK)
	assert.False(t, completedOK)
	assert.NotEmpty(t, acceptedMsg)
	assert.NotEmpty(t, completedMsg)
	assert.NotEqual(t, acceptedMsg, completedMsg, "refusal messages must be distinct")
}

func TestIsValid(t *testing.T) {
	t.Parallel()

	assert.True(t, domain.TaskStatusUnassigned.IsValid())
	assert.True(t, domain.TaskStatusCompleted.IsValid())
	assert.False(t, domain.TaskStatus("archived").IsValid())
	assert.False(t, domain.TaskStatus("").IsValid())
}
