package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"boardroom/internal/domain"
)

func registerTasks(api huma.API, s *service) {
	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/ideas/{idea_id}/tasks",
		Summary:     "List an idea's tasks",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		IdeaID string `path:"idea_id"`
	}) (*struct {
		Body listTasks `json:"body"`
	}, error) {
		if _, err := s.ownedIdea(ctx, input.IdeaID); err != nil {
			return nil, handleError(err)
		}
		tasks, err := s.repo.ListTasks(ctx, input.IdeaID)
		if err != nil {
			return nil, handleError(err)
		}
		if tasks == nil {
			tasks = []domain.Task{}
		}
		return &struct {
			Body listTasks `json:"body"`
		}{Body: listTasks{Items: tasks}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/ideas/{idea_id}/tasks",
		Summary:       "Create task",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		IdeaID string            `path:"idea_id"`
		Body   CreateTaskRequest `json:"body"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		idea, err := s.ownedIdea(ctx, input.IdeaID)
		if err != nil {
			return nil, handleError(err)
		}
		if input.Body.AssigneeID != nil && !s.personas.Has(*input.Body.AssigneeID) {
			return nil, newAPIError(http.StatusBadRequest, "unknown_persona", "assignee must be a registered persona", map[string]any{"assignee_id": *input.Body.AssigneeID})
		}
		owner := idea.OwnerID
		t := domain.Task{
			IdeaID:     idea.ID,
			Title:      strings.TrimSpace(input.Body.Title),
			Status:     domain.TaskStatus(input.Body.Status),
			Priority:   domain.TaskPriority(input.Body.Priority),
			AssigneeID: input.Body.AssigneeID,
			CreatedBy:  &owner,
			Tags:       input.Body.Tags,
			DueDate:    input.Body.DueDate,
		}
		if input.Body.Description != nil {
			t.Description = *input.Body.Description
		}
		created, err := s.repo.CreateTask(ctx, t)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: created}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPatch,
		Path:        "/ideas/{idea_id}/tasks/{task_id}",
		Summary:     "Update task",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		IdeaID string            `path:"idea_id"`
		TaskID string            `path:"task_id"`
		Body   UpdateTaskRequest `json:"body"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		idea, err := s.ownedIdea(ctx, input.IdeaID)
		if err != nil {
			return nil, handleError(err)
		}
		if input.Body.AssigneeID != nil && *input.Body.AssigneeID != "" && !s.personas.Has(*input.Body.AssigneeID) {
			return nil, newAPIError(http.StatusBadRequest, "unknown_persona", "assignee must be a registered persona", map[string]any{"assignee_id": *input.Body.AssigneeID})
		}
		updated, err := s.repo.UpdateTask(ctx, idea.ID, input.TaskID, taskPatch(input.Body), idea.OwnerID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: updated}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-task",
		Method:        http.MethodDelete,
		Path:          "/ideas/{idea_id}/tasks/{task_id}",
		Summary:       "Delete task",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		IdeaID string `path:"idea_id"`
		TaskID string `path:"task_id"`
	}) (*struct{}, error) {
		idea, err := s.ownedIdea(ctx, input.IdeaID)
		if err != nil {
			return nil, handleError(err)
		}
		if err := s.repo.DeleteTask(ctx, idea.ID, input.TaskID, idea.OwnerID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}
