package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTaskStatus_Terminal(t *testing.T) {
	require.True(t, TaskStatusCompleted.Terminal())
	require.True(t, TaskStatusFailed.Terminal())
	require.False(t, TaskStatusPending.Terminal())
	require.False(t, TaskStatusProcessing.Terminal())
	require.False(t, TaskStatusRetrying.Terminal())
}

func TestTaskPriority_String(t *testing.T) {
	require.Equal(t, "LOW", TaskPriorityLow.String())
	require.Equal(t, "NORMAL", TaskPriorityNormal.String())
	require.Equal(t, "HIGH", TaskPriorityHigh.String())
	require.Equal(t, "URGENT", TaskPriorityUrgent.String())
	require.Equal(t, "UNKNOWN", TaskPriority(42).String())
}

func TestPriorities_HighestFirst(t *testing.T) {
	require.Equal(t, []TaskPriority{
		TaskPriorityUrgent,
		TaskPriorityHigh,
		TaskPriorityNormal,
		TaskPriorityLow,
	}, Priorities)
}

func TestTask_Clone(t *testing.T) {
	started := time.Now()
	completed := started.Add(time.Second)
	confidence := 0.9

	original := &Task{
		ID:              "task-1",
		Type:            "grading",
		Status:          TaskStatusCompleted,
		StartedAt:       &started,
		CompletedAt:     &completed,
		ConfidenceScore: &confidence,
	}

	clone := original.Clone()
	require.Equal(t, original, clone)

	// Mutating the clone's pointer fields never touches the original
	*clone.ConfidenceScore = 0.1
	*clone.StartedAt = started.Add(time.Minute)
	require.Equal(t, 0.9, *original.ConfidenceScore)
	require.True(t, original.StartedAt.Equal(started))
}
