package calls

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"boardroom/internal/domain"
	"boardroom/internal/generation"
	"boardroom/internal/logging"
	"boardroom/internal/metrics"
)

type TaskStore interface {
	CreateTask(ctx context.Context, t domain.Task) (domain.Task, error)
	UpdateTask(ctx context.Context, ideaID, id string, p domain.TaskPatch, actorID string) (domain.Task, error)
}

type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (*generation.Media, error)
}

type PersonaSet interface {
	Has(id string) bool
}

// Scope identifies who issued a call and for which idea.
type Scope struct {
	IdeaID    string
	PersonaID string
}

// Effect summarizes what a call did; it is reported in the turn's done event.
type Effect struct {
	Operation string `json:"operation"`
	OK        bool   `json:"ok"`
	TaskID    string `json:"task_id,omitempty"`
	Title     string `json:"title,omitempty"`
	ImageURL  string `json:"image_url,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Outcome carries the effect and the text appended to the visible reply.
type Outcome struct {
	Effect       Effect
	Confirmation string
}

type Executor struct {
	Tasks    TaskStore
	Images   ImageGenerator
	Personas PersonaSet
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
}

var ErrNoIdea = errors.New("task operations need an idea")

// Execute runs one call. It always returns an Outcome whose Confirmation is
// safe to show; a non-nil error means the call had no effect.
func (e Executor) Execute(ctx context.Context, scope Scope, call generation.Call) (Outcome, error) {
	log := logging.OrNop(e.Logger).With(zap.String("call", call.Name), zap.String("idea", scope.IdeaID), zap.String("persona", scope.PersonaID))
	out, err := e.execute(ctx, scope, call)
	e.Metrics.RecordCall(call.Name, err == nil && out.Effect.OK)
	if err != nil {
		log.Warn("structured call failed", zap.Error(err))
		out.Effect = Effect{Operation: call.Name, Error: err.Error()}
		if errors.Is(err, ErrUnknownOperation) {
			out.Confirmation = fmt.Sprintf("\n\n❌ Unknown operation: %s\n", call.Name)
		} else {
			out.Confirmation = fmt.Sprintf("\n\n❌ Error executing %s\n", call.Name)
		}
		return out, err
	}
	log.Info("structured call executed", zap.Bool("ok", out.Effect.OK), zap.String("task", out.Effect.TaskID))
	return out, nil
}

func (e Executor) execute(ctx context.Context, scope Scope, call generation.Call) (Outcome, error) {
	cmd, err := Decode(call)
	if err != nil {
		return Outcome{}, err
	}
	switch c := cmd.(type) {
	case CreateTask:
		return e.createTask(ctx, scope, c)
	case UpdateTask:
		return e.updateTask(ctx, scope, c)
	case GenerateImage:
		return e.generateImage(ctx, c)
	default:
		return Outcome{}, fmt.Errorf("%w: %s", ErrUnknownOperation, call.Name)
	}
}

func (e Executor) createTask(ctx context.Context, scope Scope, c CreateTask) (Outcome, error) {
	if scope.IdeaID == "" {
		return Outcome{}, ErrNoIdea
	}
	if e.Tasks == nil {
		return Outcome{}, fmt.Errorf("task store unavailable")
	}
	t := domain.Task{
		IdeaID:      scope.IdeaID,
		Title:       c.Title,
		Description: c.Description,
		Status:      domain.TaskTodo,
		Priority:    c.Priority,
		Tags:        c.Tags,
	}
	if c.AssignedTo != "" && e.Personas != nil && e.Personas.Has(c.AssignedTo) {
		assignee := c.AssignedTo
		t.AssigneeID = &assignee
	}
	if scope.PersonaID != "" {
		creator := scope.PersonaID
		t.CreatedBy = &creator
	}
	if c.DueDate != "" {
		if _, err := time.Parse(time.DateOnly, c.DueDate); err == nil {
			due := c.DueDate
			t.DueDate = &due
		}
	}
	created, err := e.Tasks.CreateTask(ctx, t)
	if err != nil {
		return Outcome{}, fmt.Errorf("create task: %w", err)
	}
	return Outcome{
		Effect:       Effect{Operation: CreateTaskName, OK: true, TaskID: created.ID, Title: created.Title},
		Confirmation: fmt.Sprintf("\n\n✅ Task created: \"%s\"\n", created.Title),
	}, nil
}

func (e Executor) updateTask(ctx context.Context, scope Scope, c UpdateTask) (Outcome, error) {
	if scope.IdeaID == "" {
		return Outcome{}, ErrNoIdea
	}
	if e.Tasks == nil {
		return Outcome{}, fmt.Errorf("task store unavailable")
	}
	patch := domain.TaskPatch{Status: c.Status, Priority: c.Priority}
	updated, err := e.Tasks.UpdateTask(ctx, scope.IdeaID, c.TaskID, patch, scope.PersonaID)
	if err != nil {
		return Outcome{}, fmt.Errorf("update task %s: %w", c.TaskID, err)
	}
	return Outcome{
		Effect:       Effect{Operation: UpdateTaskName, OK: true, TaskID: updated.ID, Title: updated.Title},
		Confirmation: "\n\n✅ Task updated\n",
	}, nil
}

// generateImage treats a missing image as a normal outcome with a visible
// failure line.
func (e Executor) generateImage(ctx context.Context, c GenerateImage) (Outcome, error) {
	failed := Outcome{
		Effect:       Effect{Operation: GenerateImageName, OK: false},
		Confirmation: "\n\n❌ Failed to generate image\n",
	}
	if e.Images == nil {
		failed.Effect.Error = generation.ErrNotConfigured.Error()
		return failed, nil
	}
	media, err := e.Images.GenerateImage(ctx, c.ImagePrompt())
	if err != nil {
		logging.OrNop(e.Logger).Warn("image generation failed", zap.Error(err))
		failed.Effect.Error = err.Error()
		return failed, nil
	}
	if media == nil {
		return failed, nil
	}
	url := media.DataURI()
	return Outcome{
		Effect:       Effect{Operation: GenerateImageName, OK: true, ImageURL: url},
		Confirmation: fmt.Sprintf("\n\n![Generated Image](%s)\n", url),
	}, nil
}
