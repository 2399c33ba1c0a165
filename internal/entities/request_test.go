package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	// Из pending разрешены три перехода.
	assert.True(t, CanTransition(RequestStatusPending, RequestStatusApproved))
	assert.True(t, CanTransition(RequestStatusPending, RequestStatusRejected))
	assert.True(t, CanTransition(RequestStatusPending, RequestStatusCancelled))
	assert.False(t, CanTransition(RequestStatusPending, RequestStatusCompleted))

	// Из approved - только completed.
	assert.True(t, CanTransition(RequestStatusApproved, RequestStatusCompleted))
	assert.False(t, CanTransition(RequestStatusApproved, RequestStatusRejected))
	assert.False(t, CanTransition(RequestStatusApproved, RequestStatusPending))

	// Терминальные статусы не имеют исходящих переходов.
	for _, terminal := range []RequestStatus{RequestStatusRejected, RequestStatusCancelled, RequestStatusCompleted} {
		for _, to := range []RequestStatus{RequestStatusPending, RequestStatusApproved, RequestStatusRejected, RequestStatusCancelled, RequestStatusCompleted} {
			assert.False(t, CanTransition(terminal, to), "переход %s -> %s должен быть запрещён", terminal, to)
		}
	}
}

func TestRequest_IsTerminal(t *testing.T) {
	assert.False(t, (&Request{Status: RequestStatusPending}).IsTerminal())
	assert.False(t, (&Request{Status: RequestStatusApproved}).IsTerminal())
	assert.True(t, (&Request{Status: RequestStatusRejected}).IsTerminal())
	assert.True(t, (&Request{Status: RequestStatusCancelled}).IsTerminal())
	assert.True(t, (&Request{Status: RequestStatusCompleted}).IsTerminal())
}

func TestRequestClosedSets(t *testing.T) {
	assert.True(t, RequestTypeIssue.IsValid())
	assert.True(t, RequestTypeMaintenance.IsValid())
	assert.False(t, RequestType("purchase").IsValid())

	assert.True(t, PriorityUrgent.IsValid())
	assert.False(t, RequestPriority("critical").IsValid())
}
