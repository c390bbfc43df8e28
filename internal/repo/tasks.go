package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"boardroom/internal/domain"
	"boardroom/internal/events"
)

const taskColumns = `id,idea_id,title,description,status,priority,assignee_id,created_by,tags_json,due_date,created_at,updated_at`

func scanTask(row rowScanner) (domain.Task, error) {
	var (
		t                 domain.Task
		status, priority  string
		assignee, creator sql.NullString
		due               sql.NullString
		tagsJSON          string
	)
	err := row.Scan(&t.ID, &t.IdeaID, &t.Title, &t.Description, &status, &priority, &assignee, &creator, &tagsJSON, &due, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	t.Status = domain.TaskStatus(status)
	t.Priority = domain.TaskPriority(priority)
	t.AssigneeID = strPtr(assignee)
	t.CreatedBy = strPtr(creator)
	t.DueDate = strPtr(due)
	if tagsJSON != "" {
		if err := json.Unmarshal([]byte(tagsJSON), &t.Tags); err != nil {
			return t, fmt.Errorf("decode task tags: %w", err)
		}
	}
	return t, nil
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// CreateTask stores t. Missing status and priority default to todo and medium.
func (r Repo) CreateTask(ctx context.Context, t domain.Task) (domain.Task, error) {
	if t.IdeaID == "" {
		return domain.Task{}, fmt.Errorf("task idea id is required")
	}
	if strings.TrimSpace(t.Title) == "" {
		return domain.Task{}, fmt.Errorf("task title is required")
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = domain.TaskTodo
	}
	if t.Priority == "" {
		t.Priority = domain.PriorityMedium
	}
	if !t.Status.Valid() {
		return domain.Task{}, fmt.Errorf("invalid task status %q", t.Status)
	}
	if !t.Priority.Valid() {
		return domain.Task{}, fmt.Errorf("invalid task priority %q", t.Priority)
	}
	tags, err := encodeTags(t.Tags)
	if err != nil {
		return domain.Task{}, fmt.Errorf("encode task tags: %w", err)
	}
	now := r.now()
	t.CreatedAt, t.UpdatedAt = now, now
	actor := ""
	if t.CreatedBy != nil {
		actor = *t.CreatedBy
	}
	err = r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO tasks(`+taskColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
			t.ID, t.IdeaID, t.Title, t.Description, string(t.Status), string(t.Priority), nullablePtr(t.AssigneeID), nullablePtr(t.CreatedBy), tags, nullablePtr(t.DueDate), t.CreatedAt, t.UpdatedAt); err != nil {
			if strings.Contains(err.Error(), "FOREIGN KEY") {
				return fmt.Errorf("idea %s: %w", t.IdeaID, ErrNotFound)
			}
			return fmt.Errorf("insert task: %w", err)
		}
		return r.Events.Append(ctx, tx, events.Entry{
			Type: events.TaskCreated, IdeaID: t.IdeaID, EntityKind: "task", EntityID: t.ID, ActorID: actor,
			Payload: events.Payload{"title": t.Title, "priority": string(t.Priority)},
		})
	})
	if err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

func (r Repo) GetTask(ctx context.Context, ideaID, id string) (domain.Task, error) {
	return scanTask(r.DB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=? AND idea_id=?`, id, ideaID))
}

// ListTasks returns an idea's tasks, oldest first.
func (r Repo) ListTasks(ctx context.Context, ideaID string) ([]domain.Task, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE idea_id=? ORDER BY created_at, id`, ideaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// UpdateTask applies the non-nil fields of p to a task of the idea.
func (r Repo) UpdateTask(ctx context.Context, ideaID, id string, p domain.TaskPatch, actorID string) (domain.Task, error) {
	var (
		fields  []string
		args    []any
		changed []string
	)
	if p.Title != nil {
		if strings.TrimSpace(*p.Title) == "" {
			return domain.Task{}, fmt.Errorf("task title cannot be empty")
		}
		fields, args, changed = append(fields, "title=?"), append(args, *p.Title), append(changed, "title")
	}
	if p.Description != nil {
		fields, args, changed = append(fields, "description=?"), append(args, *p.Description), append(changed, "description")
	}
	if p.Status != nil {
		if !p.Status.Valid() {
			return domain.Task{}, fmt.Errorf("invalid task status %q", *p.Status)
		}
		fields, args, changed = append(fields, "status=?"), append(args, string(*p.Status)), append(changed, "status")
	}
	if p.Priority != nil {
		if !p.Priority.Valid() {
			return domain.Task{}, fmt.Errorf("invalid task priority %q", *p.Priority)
		}
		fields, args, changed = append(fields, "priority=?"), append(args, string(*p.Priority)), append(changed, "priority")
	}
	if p.AssigneeID != nil {
		fields, args, changed = append(fields, "assignee_id=?"), append(args, nullablePtr(p.AssigneeID)), append(changed, "assignee_id")
	}
	if p.DueDate != nil {
		fields, args, changed = append(fields, "due_date=?"), append(args, nullablePtr(p.DueDate)), append(changed, "due_date")
	}
	if p.Tags != nil {
		tags, err := encodeTags(p.Tags)
		if err != nil {
			return domain.Task{}, fmt.Errorf("encode task tags: %w", err)
		}
		fields, args, changed = append(fields, "tags_json=?"), append(args, tags), append(changed, "tags")
	}
	if len(fields) == 0 {
		return r.GetTask(ctx, ideaID, id)
	}
	fields = append(fields, "updated_at=?")
	args = append(args, r.now(), id, ideaID)
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, fmt.Sprintf(`UPDATE tasks SET %s WHERE id=? AND idea_id=?`, strings.Join(fields, ",")), args...)
		if err != nil {
			return err
		}
		if err := expectAffected(res); err != nil {
			return err
		}
		return r.Events.Append(ctx, tx, events.Entry{
			Type: events.TaskUpdated, IdeaID: ideaID, EntityKind: "task", EntityID: id, ActorID: actorID,
			Payload: events.Payload{"fields": changed},
		})
	})
	if err != nil {
		return domain.Task{}, err
	}
	return r.GetTask(ctx, ideaID, id)
}

func (r Repo) DeleteTask(ctx context.Context, ideaID, id, actorID string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id=? AND idea_id=?`, id, ideaID)
		if err != nil {
			return err
		}
		if err := expectAffected(res); err != nil {
			return err
		}
		return r.Events.Append(ctx, tx, events.Entry{Type: events.TaskDeleted, IdeaID: ideaID, EntityKind: "task", EntityID: id, ActorID: actorID})
	})
}
