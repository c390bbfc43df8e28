package repo

import (
	"context"

	"boardroom/internal/domain"
)

// ListEvents returns an idea's activity log after the given id, oldest first.
func (r Repo) ListEvents(ctx context.Context, ideaID string, afterID int64, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT id,ts,type,COALESCE(idea_id,''),entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events WHERE idea_id=? AND id>? ORDER BY id LIMIT ?`,
		ideaID, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.IdeaID, &e.EntityKind, &e.EntityID, &e.ActorID, &e.PayloadJSON); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
