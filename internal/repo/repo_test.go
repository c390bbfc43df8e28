package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boardroom/internal/db"
	"boardroom/internal/domain"
	"boardroom/internal/migrate"
	"boardroom/internal/repo"
)

func newRepo(t *testing.T) repo.Repo {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(context.Background(), conn))
	r := repo.New(conn)
	r.Now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	return r
}

func TestIdeaLifecycle(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	idea, err := r.CreateIdea(ctx, domain.Idea{OwnerID: "u1", Title: "Meal kits for dogs"})
	require.NoError(t, err)
	require.NotEmpty(t, idea.ID)

	_, err = r.GetOwnedIdea(ctx, idea.ID, "u2")
	require.ErrorIs(t, err, repo.ErrNotFound)

	got, err := r.GetOwnedIdea(ctx, idea.ID, "u1")
	require.NoError(t, err)
	assert.False(t, got.Validated)
	assert.Nil(t, got.Verdict)
	assert.False(t, got.Unlocked())

	require.NoError(t, r.SetVerdict(ctx, idea.ID, domain.VerdictViable, "solid unit economics"))
	got, err = r.GetIdea(ctx, idea.ID)
	require.NoError(t, err)
	assert.True(t, got.Validated)
	require.NotNil(t, got.Verdict)
	assert.Equal(t, domain.VerdictViable, *got.Verdict)
	require.NotNil(t, got.DashboardData)
	assert.JSONEq(t, `{"fullAnalysis":"solid unit economics"}`, *got.DashboardData)
	assert.True(t, got.Unlocked())

	require.Error(t, r.SetVerdict(ctx, idea.ID, domain.Verdict("MEH"), ""))

	ideas, err := r.ListIdeas(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, ideas, 1)

	require.NoError(t, r.DeleteIdea(ctx, idea.ID))
	require.ErrorIs(t, r.DeleteIdea(ctx, idea.ID), repo.ErrNotFound)
}

func TestMessagesKeepAppendOrderPerPartition(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	idea, err := r.CreateIdea(ctx, domain.Idea{OwnerID: "u1", Title: "x"})
	require.NoError(t, err)

	_, err = r.AppendMessages(ctx,
		domain.Message{IdeaID: idea.ID, Mode: domain.ModePanel, Role: domain.RoleUser, Content: "q"},
		domain.Message{IdeaID: idea.ID, Mode: domain.ModePanel, PersonaID: "ceo", Role: domain.RoleAssistant, Content: "a1"},
		domain.Message{IdeaID: idea.ID, Mode: domain.ModePanel, PersonaID: "cto", Role: domain.RoleAssistant, Content: "a2"},
	)
	require.NoError(t, err)
	_, err = r.AppendMessages(ctx, domain.Message{IdeaID: idea.ID, Mode: domain.ModeDirect, PersonaID: "cfo", Role: domain.RoleUser, Content: "d"})
	require.NoError(t, err)

	panel, err := r.ListMessages(ctx, domain.MessageFilter{IdeaID: idea.ID, Mode: domain.ModePanel})
	require.NoError(t, err)
	require.Len(t, panel, 3)
	assert.Equal(t, []string{"q", "a1", "a2"}, []string{panel[0].Content, panel[1].Content, panel[2].Content})

	last, err := r.ListMessages(ctx, domain.MessageFilter{IdeaID: idea.ID, Mode: domain.ModePanel, Limit: 2})
	require.NoError(t, err)
	require.Len(t, last, 2)
	assert.Equal(t, "a1", last[0].Content)
	assert.Equal(t, "a2", last[1].Content)

	direct, err := r.ListMessages(ctx, domain.MessageFilter{IdeaID: idea.ID, Mode: domain.ModeDirect, PersonaID: "cfo"})
	require.NoError(t, err)
	require.Len(t, direct, 1)

	n, err := r.ClearMessages(ctx, domain.MessageFilter{IdeaID: idea.ID, Mode: domain.ModePanel}, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	_, err = r.AppendMessages(ctx, domain.Message{IdeaID: "missing", Mode: domain.ModeRouted, Role: domain.RoleUser, Content: "x"})
	require.ErrorIs(t, err, repo.ErrNotFound)
}

func TestTaskCreateUpdateAndEvents(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	idea, err := r.CreateIdea(ctx, domain.Idea{OwnerID: "u1", Title: "x"})
	require.NoError(t, err)

	creator := "assistant"
	task, err := r.CreateTask(ctx, domain.Task{IdeaID: idea.ID, Title: "Draft pricing page", CreatedBy: &creator})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskTodo, task.Status)
	assert.Equal(t, domain.PriorityMedium, task.Priority)
	assert.Nil(t, task.AssigneeID)

	status := domain.TaskDone
	updated, err := r.UpdateTask(ctx, idea.ID, task.ID, domain.TaskPatch{Status: &status}, creator)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskDone, updated.Status)
	assert.Equal(t, "Draft pricing page", updated.Title)

	bad := domain.TaskStatus("finished")
	_, err = r.UpdateTask(ctx, idea.ID, task.ID, domain.TaskPatch{Status: &bad}, creator)
	require.Error(t, err)

	_, err = r.UpdateTask(ctx, idea.ID, "nope", domain.TaskPatch{Status: &status}, creator)
	require.ErrorIs(t, err, repo.ErrNotFound)

	evts, err := r.ListEvents(ctx, idea.ID, 0, 0)
	require.NoError(t, err)
	var types []string
	for _, e := range evts {
		types = append(types, e.Type)
	}
	assert.Equal(t, []string{"idea.created", "task.created", "task.updated"}, types)

	require.NoError(t, r.DeleteTask(ctx, idea.ID, task.ID, creator))
	tasks, err := r.ListTasks(ctx, idea.ID)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}
