package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"boardroom/internal/calls"
	"boardroom/internal/domain"
	"boardroom/internal/repo"
)

// ownedIdea loads an idea of the caller; other owners' ideas read as missing.
func (s *service) ownedIdea(ctx context.Context, id string) (domain.Idea, error) {
	owner, authErr := ownerIDFromContext(ctx)
	if authErr != nil {
		return domain.Idea{}, authErr
	}
	idea, err := s.repo.GetOwnedIdea(ctx, id, owner)
	if err != nil {
		return domain.Idea{}, fmt.Errorf("idea %s: %w", id, err)
	}
	return idea, nil
}

func registerPersonas(api huma.API, s *service) {
	huma.Register(api, huma.Operation{
		OperationID: "list-personas",
		Method:      http.MethodGet,
		Path:        "/personas",
		Summary:     "List advisor personas",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body listPersonas `json:"body"`
	}, error) {
		resp := listPersonas{Items: []PersonaResponse{}}
		defaultID := s.personas.Default().ID
		for _, p := range s.personas.All() {
			resp.Items = append(resp.Items, personaResponse(p, defaultID))
		}
		return &struct {
			Body listPersonas `json:"body"`
		}{Body: resp}, nil
	})
}

func registerCalls(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-calls",
		Method:      http.MethodGet,
		Path:        "/calls",
		Summary:     "List structured call declarations",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body listCalls `json:"body"`
	}, error) {
		return &struct {
			Body listCalls `json:"body"`
		}{Body: listCalls{Items: calls.Catalog()}}, nil
	})
}

func registerIdeas(api huma.API, s *service) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-idea",
		Method:        http.MethodPost,
		Path:          "/ideas",
		Summary:       "Create idea",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body CreateIdeaRequest `json:"body"`
	}) (*struct {
		Body IdeaResponse `json:"body"`
	}, error) {
		owner, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		idea := domain.Idea{OwnerID: owner, Title: strings.TrimSpace(input.Body.Title)}
		if input.Body.Description != nil {
			idea.Description = *input.Body.Description
		}
		created, err := s.repo.CreateIdea(ctx, idea)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body IdeaResponse `json:"body"`
		}{Body: ideaResponse(created)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-ideas",
		Method:      http.MethodGet,
		Path:        "/ideas",
		Summary:     "List the caller's ideas",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body listIdeas `json:"body"`
	}, error) {
		owner, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		ideas, err := s.repo.ListIdeas(ctx, owner)
		if err != nil {
			return nil, handleError(err)
		}
		resp := listIdeas{Items: []IdeaResponse{}}
		for _, i := range ideas {
			resp.Items = append(resp.Items, ideaResponse(i))
		}
		return &struct {
			Body listIdeas `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-idea",
		Method:      http.MethodGet,
		Path:        "/ideas/{idea_id}",
		Summary:     "Get idea",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		IdeaID string `path:"idea_id"`
	}) (*struct {
		Body IdeaResponse `json:"body"`
	}, error) {
		idea, err := s.ownedIdea(ctx, input.IdeaID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body IdeaResponse `json:"body"`
		}{Body: ideaResponse(idea)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-idea",
		Method:      http.MethodPatch,
		Path:        "/ideas/{idea_id}",
		Summary:     "Update idea",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		IdeaID string            `path:"idea_id"`
		Body   UpdateIdeaRequest `json:"body"`
	}) (*struct {
		Body IdeaResponse `json:"body"`
	}, error) {
		if _, err := s.ownedIdea(ctx, input.IdeaID); err != nil {
			return nil, handleError(err)
		}
		updated, err := s.repo.UpdateIdea(ctx, input.IdeaID, repo.IdeaUpdate{
			Title:          input.Body.Title,
			Description:    input.Body.Description,
			ValidationData: input.Body.ValidationData,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body IdeaResponse `json:"body"`
		}{Body: ideaResponse(updated)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-idea",
		Method:        http.MethodDelete,
		Path:          "/ideas/{idea_id}",
		Summary:       "Delete idea with its transcripts and tasks",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		IdeaID string `path:"idea_id"`
	}) (*struct{}, error) {
		if _, err := s.ownedIdea(ctx, input.IdeaID); err != nil {
			return nil, handleError(err)
		}
		if err := s.repo.DeleteIdea(ctx, input.IdeaID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerMessages(api huma.API, s *service) {
	huma.Register(api, huma.Operation{
		OperationID: "list-messages",
		Method:      http.MethodGet,
		Path:        "/ideas/{idea_id}/messages",
		Summary:     "List an idea's transcript",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		IdeaID    string `path:"idea_id"`
		Mode      string `query:"mode" enum:"direct,routed,panel,gatekeeper"`
		PersonaID string `query:"persona_id"`
		Limit     int    `query:"limit"`
	}) (*struct {
		Body listMessages `json:"body"`
	}, error) {
		if _, err := s.ownedIdea(ctx, input.IdeaID); err != nil {
			return nil, handleError(err)
		}
		msgs, err := s.repo.ListMessages(ctx, domain.MessageFilter{
			IdeaID:    input.IdeaID,
			Mode:      domain.Mode(input.Mode),
			PersonaID: input.PersonaID,
			Limit:     input.Limit,
		})
		if err != nil {
			return nil, handleError(err)
		}
		if msgs == nil {
			msgs = []domain.Message{}
		}
		return &struct {
			Body listMessages `json:"body"`
		}{Body: listMessages{Items: msgs}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "clear-messages",
		Method:      http.MethodDelete,
		Path:        "/ideas/{idea_id}/messages",
		Summary:     "Clear a transcript partition",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		IdeaID    string `path:"idea_id"`
		Mode      string `query:"mode" enum:"direct,routed,panel,gatekeeper"`
		PersonaID string `query:"persona_id"`
	}) (*struct {
		Body ClearMessagesResponse `json:"body"`
	}, error) {
		idea, err := s.ownedIdea(ctx, input.IdeaID)
		if err != nil {
			return nil, handleError(err)
		}
		removed, err := s.repo.ClearMessages(ctx, domain.MessageFilter{
			IdeaID:    input.IdeaID,
			Mode:      domain.Mode(input.Mode),
			PersonaID: input.PersonaID,
		}, idea.OwnerID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ClearMessagesResponse `json:"body"`
		}{Body: ClearMessagesResponse{Removed: removed}}, nil
	})
}

func registerEvents(api huma.API, s *service) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/ideas/{idea_id}/events",
		Summary:     "List an idea's activity log",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		IdeaID string `path:"idea_id"`
		Limit  int    `query:"limit" default:"50"`
		Cursor string `query:"cursor"`
	}) (*struct {
		Body paginatedEvents `json:"body"`
	}, error) {
		if _, err := s.ownedIdea(ctx, input.IdeaID); err != nil {
			return nil, handleError(err)
		}
		limit := normalizeLimit(input.Limit)
		var cursorID int64
		if input.Cursor != "" {
			parsed, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			cursorID = parsed
		}
		items, err := s.repo.ListEvents(ctx, input.IdeaID, cursorID, limit+1)
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedEvents{Items: []EventResponse{}}
		if len(items) > limit {
			items = items[:limit]
			resp.NextCursor = strconv.FormatInt(items[limit-1].ID, 10)
		}
		for _, evt := range items {
			resp.Items = append(resp.Items, eventResponse(evt))
		}
		return &struct {
			Body paginatedEvents `json:"body"`
		}{Body: resp}, nil
	})
}
