package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auratask/core/internal/domain/entities"
	"github.com/auratask/core/internal/ordering"
	"github.com/auratask/core/internal/ports"
)

func TestAddTaskRejectsBlankTitleWithoutIO(t *testing.T) {
	s, gw, an, _ := newTestStore(t)

	_, err := s.AddTask(context.Background(), TaskDraft{Title: "   "})
	require.ErrorIs(t, err, entities.ErrValidation)

	assert.Zero(t, gw.called("InsertTask"))
	assert.Zero(t, an.calls)
	assert.Empty(t, s.Tasks())
}

func TestAddTaskAppendsWithGappedKey(t *testing.T) {
	s, _, _, _ := newTestStore(t)
	ctx := context.Background()

	first, err := s.AddTask(ctx, TaskDraft{Title: "buy milk"})
	require.NoError(t, err)
	second, err := s.AddTask(ctx, TaskDraft{Title: "walk dog"})
	require.NoError(t, err)

	assert.Equal(t, ordering.Gap, first.OrderIndex)
	assert.Equal(t, 2*ordering.Gap, second.OrderIndex)
}

func TestAddTaskVisibleBeforePersistCompletes(t *testing.T) {
	s, gw, _, _ := newTestStore(t)
	release := gw.gate("InsertTask")

	done := make(chan error, 1)
	go func() {
		_, err := s.AddTask(context.Background(), TaskDraft{Title: "instant"})
		done <- err
	}()

	// The task must appear while the gateway call is still in flight.
	require.Eventually(t, func() bool {
		return len(s.Tasks()) == 1
	}, time.Second, time.Millisecond)
	assert.Equal(t, "instant", s.Tasks()[0].Title)

	release()
	require.NoError(t, <-done)

	notices := s.Notices()
	require.NotNil(t, notices.Toast)
	assert.Equal(t, ToastSuccess, notices.Toast.Kind)
}

func TestAddTaskRollsBackByRefetchOnFailure(t *testing.T) {
	s, gw, _, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.AddTask(ctx, TaskDraft{Title: "keeper"})
	require.NoError(t, err)

	gw.failNext("InsertTask", errors.New("boom"))
	_, err = s.AddTask(ctx, TaskDraft{Title: "doomed"})
	require.ErrorIs(t, err, entities.ErrPersistence)

	// After the refetch only the persisted task remains.
	tasks := s.Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, "keeper", tasks[0].Title)

	notices := s.Notices()
	require.NotNil(t, notices.Toast)
	assert.Equal(t, ToastError, notices.Toast.Kind)
}

func TestAddTaskMergesEnrichment(t *testing.T) {
	s, gw, an, _ := newTestStore(t)
	speed, importance := 7, 15
	emoji := "🛒"
	an.enrichment = &ports.Enrichment{
		SpeedScore:      &speed,
		ImportanceScore: &importance,
		Emoji:           &emoji,
		Subtasks:        []string{"find list", "go shopping"},
		AIGenerated:     true,
	}

	task, err := s.AddTask(context.Background(), TaskDraft{
		Title:            "groceries",
		EnableAIRanking:  true,
		EnableAISubtasks: true,
	})
	require.NoError(t, err)

	assert.Equal(t, &speed, task.AISpeedScore)
	assert.Equal(t, &importance, task.AIImportanceScore)
	assert.Equal(t, &emoji, task.Emoji)
	assert.True(t, task.AIGenerated)

	require.Len(t, task.Subtasks, 2)
	assert.Equal(t, "find list", task.Subtasks[0].Title)
	assert.Equal(t, ordering.Gap, task.Subtasks[0].OrderIndex)
	assert.Equal(t, 2*ordering.Gap, task.Subtasks[1].OrderIndex)
	assert.Equal(t, 2, gw.called("InsertSubtask"))
}

func TestAddTaskSurvivesAnalyzerFailure(t *testing.T) {
	s, _, an, _ := newTestStore(t)
	an.err = errors.New("analyzer down")

	task, err := s.AddTask(context.Background(), TaskDraft{
		Title:           "no ai",
		EnableAIRanking: true,
	})
	require.NoError(t, err)

	assert.Nil(t, task.AISpeedScore)
	assert.Nil(t, task.AIImportanceScore)
	assert.False(t, task.AIGenerated)
}

func TestAddTaskSkipsAnalyzerWhenDisabled(t *testing.T) {
	s, _, an, _ := newTestStore(t)

	_, err := s.AddTask(context.Background(), TaskDraft{Title: "plain"})
	require.NoError(t, err)
	assert.Zero(t, an.calls)
}

func TestUpdateTaskUnknownID(t *testing.T) {
	s, _, _, _ := newTestStore(t)
	title := "new"
	err := s.UpdateTask(context.Background(), uuid.New(), ports.TaskPatch{Title: &title})
	assert.ErrorIs(t, err, entities.ErrTaskNotFound)
}

func TestDeleteTaskRemovesRow(t *testing.T) {
	s, gw, _, _ := newTestStore(t)
	ctx := context.Background()

	task, err := s.AddTask(ctx, TaskDraft{Title: "temp"})
	require.NoError(t, err)

	require.NoError(t, s.DeleteTask(ctx, task.ID))
	assert.Empty(t, s.Tasks())
	assert.Equal(t, 1, gw.called("DeleteTask"))
}

func TestToggleTaskCompleteAwardsViaBackend(t *testing.T) {
	s, gw, an, _ := newTestStore(t)
	ctx := context.Background()
	importance := 10
	an.enrichment = &ports.Enrichment{ImportanceScore: &importance, AIGenerated: true}

	task, err := s.AddTask(ctx, TaskDraft{Title: "reward me", EnableAIRanking: true})
	require.NoError(t, err)

	require.NoError(t, s.ToggleTaskComplete(ctx, task.ID))

	// 10 base + 10 importance, awarded by the completion routine.
	assert.Equal(t, 20, s.Settings().AuraPoints)
	assert.Equal(t, 1, gw.called("CompleteTask"))

	got, ok := s.TaskByID(task.ID)
	require.True(t, ok)
	assert.True(t, got.IsCompleted)
}

func TestToggleTaskCompleteLevelUpNotice(t *testing.T) {
	s, gw, _, _ := newTestStore(t)
	ctx := context.Background()

	task, err := s.AddTask(ctx, TaskDraft{Title: "threshold"})
	require.NoError(t, err)

	// Pre-load points just under the level boundary: 10 more crosses it.
	owner := s.Identity().ID
	points := 995
	_, err = gw.UpsertSettings(ctx, owner, ports.SettingsPatch{AuraPoints: &points})
	require.NoError(t, err)
	require.NoError(t, s.Refresh(ctx))

	require.NoError(t, s.ToggleTaskComplete(ctx, task.ID))

	settings := s.Settings()
	assert.Equal(t, 1005, settings.AuraPoints)
	assert.Equal(t, 2, settings.Level)

	notices := s.Notices()
	require.NotNil(t, notices.JustLeveledUpTo)
	assert.Equal(t, 2, *notices.JustLeveledUpTo)
}

func TestToggleTaskCompleteNoNoticeWithoutLevelChange(t *testing.T) {
	s, _, _, _ := newTestStore(t)
	ctx := context.Background()

	task, err := s.AddTask(ctx, TaskDraft{Title: "small win"})
	require.NoError(t, err)
	require.NoError(t, s.ToggleTaskComplete(ctx, task.ID))

	assert.Nil(t, s.Notices().JustLeveledUpTo)
}

func TestToggleTaskCompleteSurfacesAchievement(t *testing.T) {
	s, gw, _, _ := newTestStore(t)
	ctx := context.Background()

	gw.achievements = []entities.Achievement{{
		ID: uuid.New(), Code: "first_task", Name: "First Steps", RewardPoints: 25,
	}}

	task, err := s.AddTask(ctx, TaskDraft{Title: "milestone"})
	require.NoError(t, err)
	require.NoError(t, s.ToggleTaskComplete(ctx, task.ID))

	notices := s.Notices()
	require.NotNil(t, notices.NewlyUnlocked)
	assert.Equal(t, "first_task", notices.NewlyUnlocked.Code)
	// 10 base + 25 achievement reward.
	assert.Equal(t, 35, s.Settings().AuraPoints)
}

func TestToggleTaskRecompleteAwardsUnlockOnlyOnce(t *testing.T) {
	s, gw, _, _ := newTestStore(t)
	ctx := context.Background()

	gw.achievements = []entities.Achievement{{
		ID: uuid.New(), Code: "first_task", Name: "First Steps", RewardPoints: 25,
	}}

	task, err := s.AddTask(ctx, TaskDraft{Title: "once only"})
	require.NoError(t, err)

	require.NoError(t, s.ToggleTaskComplete(ctx, task.ID))
	require.NoError(t, s.ToggleTaskComplete(ctx, task.ID))
	require.NoError(t, s.ToggleTaskComplete(ctx, task.ID))

	owner := s.Identity().ID
	gw.mu.Lock()
	unlocked := len(gw.unlocked[owner])
	gw.mu.Unlock()
	assert.Equal(t, 1, unlocked)

	// 10 + 25 for the first completion, 10 for the second; the unlock
	// reward is never paid out again.
	assert.Equal(t, 45, s.Settings().AuraPoints)
}

func TestToggleTaskReopenSkipsCompletionRoutine(t *testing.T) {
	s, gw, _, _ := newTestStore(t)
	ctx := context.Background()

	task, err := s.AddTask(ctx, TaskDraft{Title: "flip flop"})
	require.NoError(t, err)
	require.NoError(t, s.ToggleTaskComplete(ctx, task.ID))
	pointsAfterComplete := s.Settings().AuraPoints

	require.NoError(t, s.ToggleTaskComplete(ctx, task.ID))

	got, _ := s.TaskByID(task.ID)
	assert.False(t, got.IsCompleted)
	// Reopening never reclaims or re-awards points.
	assert.Equal(t, pointsAfterComplete, s.Settings().AuraPoints)
	assert.Equal(t, 1, gw.called("CompleteTask"))
}

func TestToggleTaskCompleteFailureKeepsFlagAndPoints(t *testing.T) {
	s, gw, _, _ := newTestStore(t)
	ctx := context.Background()

	task, err := s.AddTask(ctx, TaskDraft{Title: "flaky"})
	require.NoError(t, err)

	gw.failNext("CompleteTask", errors.New("backend down"))
	err = s.ToggleTaskComplete(ctx, task.ID)
	require.ErrorIs(t, err, entities.ErrPersistence)

	// Optimistic flag stays; points were never awarded locally.
	got, _ := s.TaskByID(task.ID)
	assert.True(t, got.IsCompleted)
	assert.Zero(t, s.Settings().AuraPoints)

	notices := s.Notices()
	require.NotNil(t, notices.Toast)
	assert.Equal(t, ToastError, notices.Toast.Kind)
}

func TestReorderTasksRespacesKeys(t *testing.T) {
	s, _, _, _ := newTestStore(t)
	ctx := context.Background()

	a, err := s.AddTask(ctx, TaskDraft{Title: "a"})
	require.NoError(t, err)
	b, err := s.AddTask(ctx, TaskDraft{Title: "b"})
	require.NoError(t, err)
	c, err := s.AddTask(ctx, TaskDraft{Title: "c"})
	require.NoError(t, err)

	require.NoError(t, s.ReorderTasks(ctx, []uuid.UUID{c.ID, a.ID, b.ID}))

	tasks := s.Tasks()
	require.Len(t, tasks, 3)
	assert.Equal(t, "c", tasks[0].Title)
	assert.Equal(t, "a", tasks[1].Title)
	assert.Equal(t, "b", tasks[2].Title)
	assert.Equal(t, ordering.Gap, tasks[0].OrderIndex)
	assert.Equal(t, 2*ordering.Gap, tasks[1].OrderIndex)
	assert.Equal(t, 3*ordering.Gap, tasks[2].OrderIndex)
}

func TestMoveTaskToGroupAppendsAtDestinationEnd(t *testing.T) {
	s, _, _, _ := newTestStore(t)
	ctx := context.Background()

	group, err := s.AddGroup(ctx, "errands")
	require.NoError(t, err)

	inGroup, err := s.AddTask(ctx, TaskDraft{Title: "already there", GroupID: &group.ID})
	require.NoError(t, err)
	loose, err := s.AddTask(ctx, TaskDraft{Title: "mover"})
	require.NoError(t, err)

	require.NoError(t, s.MoveTaskToGroup(ctx, loose.ID, &group.ID))

	moved, ok := s.TaskByID(loose.ID)
	require.True(t, ok)
	require.NotNil(t, moved.GroupID)
	assert.Equal(t, group.ID, *moved.GroupID)
	assert.Equal(t, inGroup.OrderIndex+ordering.Gap, moved.OrderIndex)
}

func TestCompletedTasksOrderSeparately(t *testing.T) {
	s, _, _, _ := newTestStore(t)
	ctx := context.Background()

	done, err := s.AddTask(ctx, TaskDraft{Title: "done"})
	require.NoError(t, err)
	require.NoError(t, s.ToggleTaskComplete(ctx, done.ID))

	// A new open task ignores the completed partition's keys.
	fresh, err := s.AddTask(ctx, TaskDraft{Title: "fresh"})
	require.NoError(t, err)
	assert.Equal(t, ordering.Gap, fresh.OrderIndex)
}
