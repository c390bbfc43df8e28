package calls

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"boardroom/internal/domain"
	"boardroom/internal/generation"
)

var (
	ErrInvalidArguments = errors.New("invalid call arguments")
	ErrUnknownOperation = errors.New("unknown operation")
)

// Command is a decoded call. The concrete type is one of CreateTask,
// UpdateTask, or GenerateImage.
type Command interface {
	Operation() string
}

type CreateTask struct {
	Title       string
	Description string
	Priority    domain.TaskPriority
	AssignedTo  string
	Tags        []string
	DueDate     string
}

type UpdateTask struct {
	TaskID   string
	Status   *domain.TaskStatus
	Priority *domain.TaskPriority
}

type GenerateImage struct {
	Prompt string
	Style  string
}

func (CreateTask) Operation() string    { return CreateTaskName }
func (UpdateTask) Operation() string    { return UpdateTaskName }
func (GenerateImage) Operation() string { return GenerateImageName }

var imageStyles = map[string]bool{"minimalist": true, "cyberpunk": true, "professional": true, "sketch": true, "photorealistic": true}

// Decode validates a raw call against its declaration. Missing create_task
// fields fall back to defaults; update_task and generate_image reject
// arguments they cannot act on.
func Decode(call generation.Call) (Command, error) {
	if call.ArgsErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, call.ArgsErr)
	}
	switch call.Name {
	case CreateTaskName:
		var a CreateTaskArgs
		if err := remarshal(call.Args, &a); err != nil {
			return nil, err
		}
		cmd := CreateTask{
			Title:       strings.TrimSpace(a.Title),
			Description: strings.TrimSpace(a.Description),
			Priority:    domain.TaskPriority(strings.ToLower(strings.TrimSpace(a.Priority))),
			AssignedTo:  strings.TrimSpace(a.AssignedTo),
			Tags:        a.Tags,
			DueDate:     strings.TrimSpace(a.DueDate),
		}
		if cmd.Title == "" {
			cmd.Title = "Untitled Task"
		}
		if !cmd.Priority.Valid() {
			cmd.Priority = domain.PriorityMedium
		}
		return cmd, nil
	case UpdateTaskName:
		var a UpdateTaskArgs
		if err := remarshal(call.Args, &a); err != nil {
			return nil, err
		}
		cmd := UpdateTask{TaskID: strings.TrimSpace(a.TaskID)}
		if cmd.TaskID == "" {
			return nil, fmt.Errorf("%w: taskId is required", ErrInvalidArguments)
		}
		if a.Status != "" {
			s := domain.TaskStatus(strings.ToLower(strings.TrimSpace(a.Status)))
			if !s.Valid() {
				return nil, fmt.Errorf("%w: status %q", ErrInvalidArguments, a.Status)
			}
			cmd.Status = &s
		}
		if a.Priority != "" {
			p := domain.TaskPriority(strings.ToLower(strings.TrimSpace(a.Priority)))
			if !p.Valid() {
				return nil, fmt.Errorf("%w: priority %q", ErrInvalidArguments, a.Priority)
			}
			cmd.Priority = &p
		}
		return cmd, nil
	case GenerateImageName:
		var a GenerateImageArgs
		if err := remarshal(call.Args, &a); err != nil {
			return nil, err
		}
		cmd := GenerateImage{Prompt: strings.TrimSpace(a.Prompt), Style: strings.ToLower(strings.TrimSpace(a.Style))}
		if cmd.Prompt == "" {
			return nil, fmt.Errorf("%w: prompt is required", ErrInvalidArguments)
		}
		if !imageStyles[cmd.Style] {
			cmd.Style = ""
		}
		return cmd, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownOperation, call.Name)
	}
}

// ImagePrompt folds the optional style into the prompt sent to the model.
func (g GenerateImage) ImagePrompt() string {
	if g.Style == "" {
		return g.Prompt
	}
	return fmt.Sprintf("%s, %s style", g.Prompt, g.Style)
}

func remarshal(args map[string]any, out any) error {
	if args == nil {
		args = map[string]any{}
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	return nil
}
