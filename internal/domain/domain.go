package domain

import "strings"

// Mode selects how a turn is answered.
type Mode string

const (
	ModeDirect     Mode = "direct"
	ModeRouted     Mode = "routed"
	ModePanel      Mode = "panel"
	ModeGatekeeper Mode = "gatekeeper"
)

var Modes = []Mode{ModeDirect, ModeRouted, ModePanel, ModeGatekeeper}

func ParseMode(s string) (Mode, bool) {
	for _, m := range Modes {
		if string(m) == strings.ToLower(strings.TrimSpace(s)) {
			return m, true
		}
	}
	return "", false
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Verdict is the gatekeeper's ordinal rating, weakest first.
type Verdict string

const (
	VerdictTrash  Verdict = "TRASH"
	VerdictMid    Verdict = "MID"
	VerdictViable Verdict = "VIABLE"
	VerdictFire   Verdict = "FIRE"
)

var Verdicts = []Verdict{VerdictTrash, VerdictMid, VerdictViable, VerdictFire}

// Rank returns the ordinal position of v, or -1 when v is not a verdict.
func (v Verdict) Rank() int {
	for i, candidate := range Verdicts {
		if candidate == v {
			return i
		}
	}
	return -1
}

// Unlocks reports whether the verdict opens panel and direct chats for an idea.
func (v Verdict) Unlocks() bool {
	return v.Rank() >= VerdictViable.Rank()
}

type Idea struct {
	ID             string   `json:"id"`
	OwnerID        string   `json:"owner_id"`
	Title          string   `json:"title"`
	Description    string   `json:"description,omitempty"`
	Validated      bool     `json:"validated"`
	Verdict        *Verdict `json:"verdict,omitempty" enum:"TRASH,MID,VIABLE,FIRE"`
	ValidationData *string  `json:"validation_data,omitempty"`
	DashboardData  *string  `json:"dashboard_data,omitempty"`
	CreatedAt      string   `json:"created_at" format:"date-time"`
	UpdatedAt      string   `json:"updated_at" format:"date-time"`
}

// Unlocked reports whether the idea has passed the gatekeeper.
func (i Idea) Unlocked() bool {
	return i.Verdict != nil && i.Verdict.Unlocks()
}

// Message is one transcript entry. PersonaID names the speaking persona for
// assistant messages; in direct transcripts user messages carry the persona
// they were addressed to.
type Message struct {
	ID        string `json:"id"`
	IdeaID    string `json:"idea_id"`
	Mode      Mode   `json:"mode" enum:"direct,routed,panel,gatekeeper"`
	PersonaID string `json:"persona_id,omitempty"`
	Role      Role   `json:"role" enum:"user,assistant"`
	Content   string `json:"content"`
	Seq       int64  `json:"seq"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type MessageFilter struct {
	IdeaID    string
	Mode      Mode
	PersonaID string
	// Limit keeps only the most recent entries when positive.
	Limit int
}

type TaskStatus string

const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in-progress"
	TaskDone       TaskStatus = "done"
	TaskBlocked    TaskStatus = "blocked"
)

var TaskStatuses = []TaskStatus{TaskTodo, TaskInProgress, TaskDone, TaskBlocked}

func (s TaskStatus) Valid() bool {
	for _, v := range TaskStatuses {
		if v == s {
			return true
		}
	}
	return false
}

type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
	PriorityUrgent TaskPriority = "urgent"
)

var TaskPriorities = []TaskPriority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

func (p TaskPriority) Valid() bool {
	for _, v := range TaskPriorities {
		if v == p {
			return true
		}
	}
	return false
}

type Task struct {
	ID          string       `json:"id"`
	IdeaID      string       `json:"idea_id"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Status      TaskStatus   `json:"status" enum:"todo,in-progress,done,blocked"`
	Priority    TaskPriority `json:"priority" enum:"low,medium,high,urgent"`
	AssigneeID  *string      `json:"assignee_id,omitempty"`
	CreatedBy   *string      `json:"created_by,omitempty"`
	Tags        []string     `json:"tags,omitempty"`
	DueDate     *string      `json:"due_date,omitempty" format:"date"`
	CreatedAt   string       `json:"created_at" format:"date-time"`
	UpdatedAt   string       `json:"updated_at" format:"date-time"`
}

// TaskPatch lists the fields an update may change; nil means unchanged.
type TaskPatch struct {
	Title       *string
	Description *string
	Status      *TaskStatus
	Priority    *TaskPriority
	AssigneeID  *string
	Tags        []string
	DueDate     *string
}

func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil && p.Priority == nil && p.AssigneeID == nil && p.Tags == nil && p.DueDate == nil
}

type Event struct {
	ID          int64  `json:"id"`
	TS          string `json:"ts" format:"date-time"`
	Type        string `json:"type"`
	IdeaID      string `json:"idea_id,omitempty"`
	EntityKind  string `json:"entity_kind"`
	EntityID    string `json:"entity_id,omitempty"`
	ActorID     string `json:"actor_id"`
	PayloadJSON string `json:"payload_json"`
}
