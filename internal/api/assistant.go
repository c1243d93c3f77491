package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/xwines/xwines/internal/assistant"
	"github.com/xwines/xwines/internal/auth"
)

type askRequest struct {
	Question string `json:"question"`
}

func handleAssistantSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Assistant == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ASSISTANT_NOT_CONFIGURED", "assistant dependency is not configured", false, nil)
		return
	}
	if err := auth.RequireAnyRole(r.Context(), auth.RoleReader, auth.RoleAssistant); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"configured":     deps.Assistant.Configured(),
		"schema_context": deps.Assistant.SchemaContext(r.Context()),
	})
}

func handleAssistantAsk(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Assistant == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ASSISTANT_NOT_CONFIGURED", "assistant dependency is not configured", false, nil)
		return
	}
	if err := auth.RequireAnyRole(r.Context(), auth.RoleAssistant); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	var req askRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid ask request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "question is required", false, nil)
		return
	}

	answer, err := deps.Assistant.Ask(r.Context(), req.Question)
	if err != nil {
		var serviceErr *assistant.ServiceError
		var queryErr *assistant.QueryError
		switch {
		case errors.Is(err, assistant.ErrNotConfigured):
			writeError(r.Context(), w, http.StatusServiceUnavailable, "ASSISTANT_NOT_CONFIGURED", "the translation service API key is not configured", false, nil)
		case errors.As(err, &serviceErr):
			writeError(r.Context(), w, http.StatusBadGateway, "TRANSLATE_FAILED", "the translation service failed", true, map[string]any{"details": serviceErr.Err.Error()})
		case errors.As(err, &queryErr):
			writeError(r.Context(), w, http.StatusUnprocessableEntity, "QUERY_FAILED", "the generated query failed", false, map[string]any{"sql": queryErr.SQL, "details": queryErr.Err.Error()})
		default:
			writeError(r.Context(), w, http.StatusInternalServerError, "ASSISTANT_ERROR", "failed to answer question", true, map[string]any{"details": err.Error()})
		}
		return
	}
	writeJSON(w, http.StatusOK, answer)
}
