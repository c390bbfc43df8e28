// Package calls declares the structured operations the operations persona
// may issue and executes them against the task store and image generation.
package calls

import (
	"encoding/json"
	"sync"

	"github.com/invopop/jsonschema"

	"boardroom/internal/generation"
)

const (
	CreateTaskName    = "create_task"
	UpdateTaskName    = "update_task"
	GenerateImageName = "generate_image"
)

type CreateTaskArgs struct {
	Title       string   `json:"title" jsonschema:"required" jsonschema_description:"Short, actionable task title"`
	Description string   `json:"description" jsonschema:"required" jsonschema_description:"Detailed description of what needs to be done"`
	Priority    string   `json:"priority" jsonschema:"required,enum=low,enum=medium,enum=high,enum=urgent" jsonschema_description:"Task priority level"`
	AssignedTo  string   `json:"assignedTo,omitempty" jsonschema_description:"Persona id to assign this task to (optional)"`
	Tags        []string `json:"tags,omitempty" jsonschema_description:"Tags for categorizing the task (optional)"`
	DueDate     string   `json:"dueDate,omitempty" jsonschema:"format=date" jsonschema_description:"Due date as YYYY-MM-DD (optional)"`
}

type UpdateTaskArgs struct {
	TaskID   string `json:"taskId" jsonschema:"required" jsonschema_description:"ID of the task to update"`
	Status   string `json:"status,omitempty" jsonschema:"enum=todo,enum=in-progress,enum=done,enum=blocked" jsonschema_description:"New status for the task"`
	Priority string `json:"priority,omitempty" jsonschema:"enum=low,enum=medium,enum=high,enum=urgent" jsonschema_description:"New priority level"`
}

type GenerateImageArgs struct {
	Prompt string `json:"prompt" jsonschema:"required" jsonschema_description:"Detailed description of the image to generate"`
	Style  string `json:"style,omitempty" jsonschema:"enum=minimalist,enum=cyberpunk,enum=professional,enum=sketch,enum=photorealistic" jsonschema_description:"Visual style of the image"`
}

var (
	catalogOnce sync.Once
	catalog     []generation.Declaration
)

// Catalog returns the declarations in a fixed order. The slice is shared;
// callers must not modify it.
func Catalog() []generation.Declaration {
	catalogOnce.Do(func() {
		catalog = []generation.Declaration{
			{
				Name:        CreateTaskName,
				Description: "Create a new task for the founder or assign it to a persona",
				Parameters:  schemaFor[CreateTaskArgs](),
			},
			{
				Name:        UpdateTaskName,
				Description: "Update an existing task's status or priority",
				Parameters:  schemaFor[UpdateTaskArgs](),
			},
			{
				Name:        GenerateImageName,
				Description: "Generate an image from a prompt",
				Parameters:  schemaFor[GenerateImageArgs](),
			},
		}
	})
	return catalog
}

// Lookup finds a declaration by name.
func Lookup(name string) (generation.Declaration, bool) {
	for _, d := range Catalog() {
		if d.Name == name {
			return d, true
		}
	}
	return generation.Declaration{}, false
}

func schemaFor[T any]() map[string]any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	var v T
	schema := reflector.Reflect(v)
	data, err := json.Marshal(schema)
	if err != nil {
		panic(err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		panic(err)
	}
	// Providers reject the draft marker and ids on parameter schemas.
	delete(m, "$schema")
	delete(m, "$id")
	return m
}
