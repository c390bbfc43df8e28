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

const ideaColumns = `id,owner_id,title,description,validated,verdict,validation_data,dashboard_data,created_at,updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIdea(row rowScanner) (domain.Idea, error) {
	var (
		i                        domain.Idea
		validated                int
		verdict, vdata, dashData sql.NullString
	)
	err := row.Scan(&i.ID, &i.OwnerID, &i.Title, &i.Description, &validated, &verdict, &vdata, &dashData, &i.CreatedAt, &i.UpdatedAt)
	if err == sql.ErrNoRows {
		return i, ErrNotFound
	}
	if err != nil {
		return i, err
	}
	i.Validated = validated != 0
	if verdict.Valid {
		v := domain.Verdict(verdict.String)
		i.Verdict = &v
	}
	i.ValidationData = strPtr(vdata)
	i.DashboardData = strPtr(dashData)
	return i, nil
}

// CreateIdea stores a new idea; an empty ID is generated.
func (r Repo) CreateIdea(ctx context.Context, i domain.Idea) (domain.Idea, error) {
	if strings.TrimSpace(i.Title) == "" {
		return domain.Idea{}, fmt.Errorf("idea title is required")
	}
	if i.OwnerID == "" {
		return domain.Idea{}, fmt.Errorf("idea owner is required")
	}
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	now := r.now()
	i.CreatedAt, i.UpdatedAt = now, now
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO ideas(id,owner_id,title,description,validated,created_at,updated_at) VALUES (?,?,?,?,0,?,?)`,
			i.ID, i.OwnerID, i.Title, i.Description, i.CreatedAt, i.UpdatedAt); err != nil {
			return fmt.Errorf("insert idea: %w", err)
		}
		return r.Events.Append(ctx, tx, events.Entry{
			Type: events.IdeaCreated, IdeaID: i.ID, EntityKind: "idea", EntityID: i.ID, ActorID: i.OwnerID,
			Payload: events.Payload{"title": i.Title},
		})
	})
	if err != nil {
		return domain.Idea{}, err
	}
	return i, nil
}

// GetIdea loads an idea regardless of owner.
func (r Repo) GetIdea(ctx context.Context, id string) (domain.Idea, error) {
	return scanIdea(r.DB.QueryRowContext(ctx, `SELECT `+ideaColumns+` FROM ideas WHERE id=?`, id))
}

// GetOwnedIdea loads an idea only when it belongs to ownerID.
func (r Repo) GetOwnedIdea(ctx context.Context, id, ownerID string) (domain.Idea, error) {
	return scanIdea(r.DB.QueryRowContext(ctx, `SELECT `+ideaColumns+` FROM ideas WHERE id=? AND owner_id=?`, id, ownerID))
}

// ListIdeas returns every idea of an owner, newest first. An empty owner lists all ideas.
func (r Repo) ListIdeas(ctx context.Context, ownerID string) ([]domain.Idea, error) {
	query := `SELECT ` + ideaColumns + ` FROM ideas`
	var args []any
	if ownerID != "" {
		query += ` WHERE owner_id=?`
		args = append(args, ownerID)
	}
	query += ` ORDER BY created_at DESC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Idea
	for rows.Next() {
		i, err := scanIdea(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, i)
	}
	return res, rows.Err()
}

type IdeaUpdate struct {
	Title          *string
	Description    *string
	ValidationData *string
}

func (r Repo) UpdateIdea(ctx context.Context, id string, u IdeaUpdate) (domain.Idea, error) {
	var (
		fields []string
		args   []any
	)
	if u.Title != nil {
		if strings.TrimSpace(*u.Title) == "" {
			return domain.Idea{}, fmt.Errorf("idea title cannot be empty")
		}
		fields = append(fields, "title=?")
		args = append(args, *u.Title)
	}
	if u.Description != nil {
		fields = append(fields, "description=?")
		args = append(args, *u.Description)
	}
	if u.ValidationData != nil {
		fields = append(fields, "validation_data=?")
		args = append(args, nullablePtr(u.ValidationData))
	}
	if len(fields) == 0 {
		return r.GetIdea(ctx, id)
	}
	fields = append(fields, "updated_at=?")
	args = append(args, r.now(), id)
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, fmt.Sprintf(`UPDATE ideas SET %s WHERE id=?`, strings.Join(fields, ",")), args...)
		if err != nil {
			return err
		}
		if err := expectAffected(res); err != nil {
			return err
		}
		return r.Events.Append(ctx, tx, events.Entry{Type: events.IdeaUpdated, IdeaID: id, EntityKind: "idea", EntityID: id})
	})
	if err != nil {
		return domain.Idea{}, err
	}
	return r.GetIdea(ctx, id)
}

// SetVerdict marks the idea validated, stores the verdict, and keeps the
// gatekeeper's reply as the dashboard analysis.
func (r Repo) SetVerdict(ctx context.Context, id string, v domain.Verdict, analysis string) error {
	if v.Rank() < 0 {
		return fmt.Errorf("invalid verdict %q", v)
	}
	dash, err := json.Marshal(map[string]string{"fullAnalysis": analysis})
	if err != nil {
		return fmt.Errorf("marshal dashboard data: %w", err)
	}
	return r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE ideas SET validated=1, verdict=?, dashboard_data=?, updated_at=? WHERE id=?`,
			string(v), string(dash), r.now(), id)
		if err != nil {
			return fmt.Errorf("update verdict: %w", err)
		}
		if err := expectAffected(res); err != nil {
			return err
		}
		return r.Events.Append(ctx, tx, events.Entry{
			Type: events.IdeaVerdict, IdeaID: id, EntityKind: "idea", EntityID: id, ActorID: "gatekeeper",
			Payload: events.Payload{"verdict": string(v)},
		})
	})
}

// DeleteIdea removes an idea with its transcripts and tasks.
func (r Repo) DeleteIdea(ctx context.Context, id string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM ideas WHERE id=?`, id)
		if err != nil {
			return err
		}
		if err := expectAffected(res); err != nil {
			return err
		}
		return r.Events.Append(ctx, tx, events.Entry{Type: events.IdeaDeleted, IdeaID: id, EntityKind: "idea", EntityID: id})
	})
}
