package engine

import (
	"context"
	"fmt"

	"boardroom/internal/domain"
	"boardroom/internal/persona"
	"boardroom/internal/prompt"
)

// MessageStore is the transcript half of the store.
type MessageStore interface {
	AppendMessages(ctx context.Context, msgs ...domain.Message) ([]domain.Message, error)
	ListMessages(ctx context.Context, f domain.MessageFilter) ([]domain.Message, error)
}

// Transcripts reads and writes the per-mode transcript partitions of ideas.
// Turns without an idea read nothing and write nothing.
type Transcripts struct {
	Store    MessageStore
	Personas *persona.Registry
}

// Recent returns up to limit of the latest messages of a partition; limit 0 returns all.
func (t Transcripts) Recent(ctx context.Context, ideaID string, mode domain.Mode, personaID string, limit int) ([]domain.Message, error) {
	if ideaID == "" {
		return nil, nil
	}
	msgs, err := t.Store.ListMessages(ctx, domain.MessageFilter{IdeaID: ideaID, Mode: mode, PersonaID: personaID, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("load %s transcript: %w", mode, err)
	}
	return msgs, nil
}

// Record appends msgs for ideaID in one write.
func (t Transcripts) Record(ctx context.Context, ideaID string, msgs ...domain.Message) ([]domain.Message, error) {
	if ideaID == "" || len(msgs) == 0 {
		return nil, nil
	}
	for i := range msgs {
		msgs[i].IdeaID = ideaID
	}
	stored, err := t.Store.AppendMessages(ctx, msgs...)
	if err != nil {
		return nil, fmt.Errorf("persist transcript: %w", err)
	}
	return stored, nil
}

// Labeler names the speaker of a message in prompt context.
type Labeler func(m domain.Message) string

// ByName labels users "User" and assistants by persona name.
func (t Transcripts) ByName(m domain.Message) string {
	if m.Role == domain.RoleAssistant && m.PersonaID != "" {
		return t.Personas.Name(m.PersonaID)
	}
	return "User"
}

// ByID labels assistants by persona id.
func ByID(m domain.Message) string {
	if m.Role == domain.RoleAssistant && m.PersonaID != "" {
		return m.PersonaID
	}
	return "User"
}

// Section renders msgs as a titled prompt block.
func Section(title string, msgs []domain.Message, label Labeler) prompt.Section {
	s := prompt.Section{Title: title}
	for _, m := range msgs {
		s.Lines = append(s.Lines, prompt.Line{Label: label(m), Content: m.Content})
	}
	return s
}

func lastN(msgs []domain.Message, n int) []domain.Message {
	if n > 0 && len(msgs) > n {
		return msgs[len(msgs)-n:]
	}
	return msgs
}

func countUser(msgs []domain.Message) int {
	n := 0
	for _, m := range msgs {
		if m.Role == domain.RoleUser {
			n++
		}
	}
	return n
}
