package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"boardroom/internal/domain"
	"boardroom/internal/events"
)

// AppendMessages stores msgs in order inside one transaction. Sequence numbers
// continue from the idea's last stored message so transcripts replay in
// append order.
func (r Repo) AppendMessages(ctx context.Context, msgs ...domain.Message) ([]domain.Message, error) {
	if len(msgs) == 0 {
		return nil, nil
	}
	out := make([]domain.Message, len(msgs))
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		next := map[string]int64{}
		for idx, m := range msgs {
			if m.IdeaID == "" {
				return fmt.Errorf("message idea id is required")
			}
			if m.Role != domain.RoleUser && m.Role != domain.RoleAssistant {
				return fmt.Errorf("invalid message role %q", m.Role)
			}
			seq, ok := next[m.IdeaID]
			if !ok {
				if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq),0) FROM messages WHERE idea_id=?`, m.IdeaID).Scan(&seq); err != nil {
					return fmt.Errorf("read message seq: %w", err)
				}
			}
			seq++
			next[m.IdeaID] = seq
			if m.ID == "" {
				m.ID = uuid.NewString()
			}
			m.Seq = seq
			if m.CreatedAt == "" {
				m.CreatedAt = r.now()
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO messages(id,idea_id,mode,persona_id,role,content,seq,created_at) VALUES (?,?,?,?,?,?,?,?)`,
				m.ID, m.IdeaID, string(m.Mode), nullable(m.PersonaID), string(m.Role), m.Content, m.Seq, m.CreatedAt); err != nil {
				if strings.Contains(err.Error(), "FOREIGN KEY") {
					return fmt.Errorf("idea %s: %w", m.IdeaID, ErrNotFound)
				}
				return fmt.Errorf("insert message: %w", err)
			}
			out[idx] = m
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func messageWhere(f domain.MessageFilter) (string, []any) {
	clauses := []string{"idea_id=?"}
	args := []any{f.IdeaID}
	if f.Mode != "" {
		clauses = append(clauses, "mode=?")
		args = append(args, string(f.Mode))
	}
	if f.PersonaID != "" {
		clauses = append(clauses, "persona_id=?")
		args = append(args, f.PersonaID)
	}
	return strings.Join(clauses, " AND "), args
}

// ListMessages returns a transcript partition in append order. With a
// positive Limit only the most recent entries are returned, still oldest first.
func (r Repo) ListMessages(ctx context.Context, f domain.MessageFilter) ([]domain.Message, error) {
	if f.IdeaID == "" {
		return nil, fmt.Errorf("idea id is required")
	}
	where, args := messageWhere(f)
	query := `SELECT id,idea_id,mode,COALESCE(persona_id,''),role,content,seq,created_at FROM messages WHERE ` + where + ` ORDER BY seq DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Message
	for rows.Next() {
		var (
			m          domain.Message
			mode, role string
		)
		if err := rows.Scan(&m.ID, &m.IdeaID, &mode, &m.PersonaID, &role, &m.Content, &m.Seq, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Mode = domain.Mode(mode)
		m.Role = domain.Role(role)
		res = append(res, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(res)-1; i < j; i, j = i+1, j-1 {
		res[i], res[j] = res[j], res[i]
	}
	return res, nil
}

// ClearMessages deletes a transcript partition and reports how many entries went.
func (r Repo) ClearMessages(ctx context.Context, f domain.MessageFilter, actorID string) (int64, error) {
	if f.IdeaID == "" {
		return 0, fmt.Errorf("idea id is required")
	}
	where, args := messageWhere(f)
	var removed int64
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE `+where, args...)
		if err != nil {
			return err
		}
		removed, _ = res.RowsAffected()
		return r.Events.Append(ctx, tx, events.Entry{
			Type: events.MessagesCleared, IdeaID: f.IdeaID, EntityKind: "transcript", ActorID: actorID,
			Payload: events.Payload{"mode": string(f.Mode), "persona_id": f.PersonaID, "removed": removed},
		})
	})
	return removed, err
}
