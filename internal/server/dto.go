package server

import (
	"encoding/json"

	"boardroom/internal/domain"
	"boardroom/internal/generation"
	"boardroom/internal/persona"
)

// Request payloads

type DevLoginRequest struct {
	OwnerID string `json:"owner_id"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

type CreateIdeaRequest struct {
	Title       string  `json:"title" minLength:"1"`
	Description *string `json:"description,omitempty"`
}

type UpdateIdeaRequest struct {
	Title          *string `json:"title,omitempty"`
	Description    *string `json:"description,omitempty"`
	ValidationData *string `json:"validation_data,omitempty"`
}

type CreateTaskRequest struct {
	Title       string   `json:"title" minLength:"1"`
	Description *string  `json:"description,omitempty"`
	Status      string   `json:"status,omitempty" enum:"todo,in-progress,done,blocked"`
	Priority    string   `json:"priority,omitempty" enum:"low,medium,high,urgent"`
	AssigneeID  *string  `json:"assignee_id,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	DueDate     *string  `json:"due_date,omitempty" format:"date"`
}

type UpdateTaskRequest struct {
	Title       *string  `json:"title,omitempty"`
	Description *string  `json:"description,omitempty"`
	Status      *string  `json:"status,omitempty" enum:"todo,in-progress,done,blocked"`
	Priority    *string  `json:"priority,omitempty" enum:"low,medium,high,urgent"`
	AssigneeID  *string  `json:"assignee_id,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	DueDate     *string  `json:"due_date,omitempty" format:"date"`
}

// HistoryEntry is a client-held transcript line sent with a turn.
type HistoryEntry struct {
	Role      string `json:"role" enum:"user,assistant"`
	PersonaID string `json:"persona_id,omitempty"`
	Content   string `json:"content"`
}

type ChatRequest struct {
	Message   string         `json:"message" minLength:"1"`
	IdeaID    string         `json:"idea_id,omitempty"`
	PersonaID string         `json:"persona_id,omitempty"`
	History   []HistoryEntry `json:"history,omitempty"`
	Judge     bool           `json:"judge,omitempty"`
	NoStream  bool           `json:"no_stream,omitempty"`
}

// Response payloads

type IdeaResponse struct {
	ID             string          `json:"id"`
	OwnerID        string          `json:"owner_id"`
	Title          string          `json:"title"`
	Description    string          `json:"description,omitempty"`
	Validated      bool            `json:"validated"`
	Unlocked       bool            `json:"unlocked"`
	Verdict        *domain.Verdict `json:"verdict,omitempty" enum:"TRASH,MID,VIABLE,FIRE"`
	ValidationData *string         `json:"validation_data,omitempty"`
	DashboardData  map[string]any  `json:"dashboard_data,omitempty"`
	CreatedAt      string          `json:"created_at" format:"date-time"`
	UpdatedAt      string          `json:"updated_at" format:"date-time"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	IdeaID     string         `json:"idea_id,omitempty"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

type PersonaResponse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Title       string   `json:"title"`
	Emoji       string   `json:"emoji"`
	Expertise   []string `json:"expertise"`
	Personality string   `json:"personality"`
	CanCall     bool     `json:"can_call"`
	FullContext bool     `json:"full_context"`
	Routable    bool     `json:"routable"`
	Default     bool     `json:"default"`
}

type ClearMessagesResponse struct {
	Removed int64 `json:"removed"`
}

type listIdeas struct {
	Items []IdeaResponse `json:"items"`
}

type listTasks struct {
	Items []domain.Task `json:"items"`
}

type listMessages struct {
	Items []domain.Message `json:"items"`
}

type listPersonas struct {
	Items []PersonaResponse `json:"items"`
}

type listCalls struct {
	Items []generation.Declaration `json:"items"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

// Conversion helpers

func ideaResponse(i domain.Idea) IdeaResponse {
	var dashboard map[string]any
	if i.DashboardData != nil {
		dashboard = decodeJSONMap(*i.DashboardData)
	}
	return IdeaResponse{
		ID:             i.ID,
		OwnerID:        i.OwnerID,
		Title:          i.Title,
		Description:    i.Description,
		Validated:      i.Validated,
		Unlocked:       i.Unlocked(),
		Verdict:        i.Verdict,
		ValidationData: i.ValidationData,
		DashboardData:  dashboard,
		CreatedAt:      i.CreatedAt,
		UpdatedAt:      i.UpdatedAt,
	}
}

func eventResponse(e domain.Event) EventResponse {
	payload := decodeJSONMap(e.PayloadJSON)
	if payload == nil {
		payload = map[string]any{}
	}
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		IdeaID:     e.IdeaID,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		Payload:    payload,
	}
}

func personaResponse(p persona.Persona, defaultID string) PersonaResponse {
	return PersonaResponse{
		ID:          p.ID,
		Name:        p.Name,
		Title:       p.Title,
		Emoji:       p.Emoji,
		Expertise:   nonNilSlice(p.Expertise),
		Personality: p.Personality,
		CanCall:     p.CanCall,
		FullContext: p.FullContext,
		Routable:    p.Routable,
		Default:     p.ID == defaultID,
	}
}

func taskPatch(req UpdateTaskRequest) domain.TaskPatch {
	p := domain.TaskPatch{
		Title:       req.Title,
		Description: req.Description,
		AssigneeID:  req.AssigneeID,
		Tags:        req.Tags,
		DueDate:     req.DueDate,
	}
	if req.Status != nil {
		s := domain.TaskStatus(*req.Status)
		p.Status = &s
	}
	if req.Priority != nil {
		pr := domain.TaskPriority(*req.Priority)
		p.Priority = &pr
	}
	return p
}

func historyMessages(mode domain.Mode, entries []HistoryEntry) []domain.Message {
	if len(entries) == 0 {
		return nil
	}
	out := make([]domain.Message, 0, len(entries))
	for _, h := range entries {
		role := domain.RoleUser
		if h.Role == string(domain.RoleAssistant) {
			role = domain.RoleAssistant
		}
		out = append(out, domain.Message{Mode: mode, Role: role, PersonaID: h.PersonaID, Content: h.Content})
	}
	return out
}

func decodeJSONMap(raw string) map[string]any {
	if raw == "" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil
	}
	return m
}

func nonNilSlice(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
