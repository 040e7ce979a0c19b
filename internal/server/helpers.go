package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-blocksync/internal/blocks"
	schemavalidation "github.com/goliatone/go-blocksync/internal/validation"
	"github.com/google/uuid"
)

const maxBodyBytes = 4 << 20

type envelope struct {
	Success bool                               `json:"success"`
	Data    any                                `json:"data,omitempty"`
	Error   string                             `json:"error,omitempty"`
	Message string                             `json:"message,omitempty"`
	Issues  []schemavalidation.ValidationIssue `json:"issues,omitempty"`
}

func joinPath(base, suffix string) string {
	trimmedBase := strings.TrimSpace(base)
	trimmedSuffix := strings.TrimSpace(suffix)
	if trimmedBase == "" {
		if trimmedSuffix == "" {
			return "/"
		}
		return "/" + strings.Trim(trimmedSuffix, "/")
	}
	baseClean := "/" + strings.Trim(trimmedBase, "/")
	if trimmedSuffix == "" {
		return baseClean
	}
	return baseClean + "/" + strings.Trim(trimmedSuffix, "/")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, target any) error {
	if r == nil || r.Body == nil {
		return io.EOF
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.UseNumber()
	return decoder.Decode(target)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, envelope{Error: "bad_request", Message: message})
}

func writeError(w http.ResponseWriter, err error) {
	status, payload := mapError(err)
	writeJSON(w, status, payload)
}

func mapError(err error) (int, envelope) {
	if err == nil {
		return http.StatusInternalServerError, envelope{Error: "unknown_error"}
	}

	var notFound *blocks.NotFoundError
	if errors.As(err, &notFound) {
		return http.StatusNotFound, envelope{
			Error:   "not_found",
			Message: notFound.Error(),
		}
	}

	if errors.Is(err, blocks.ErrStaleWrite) {
		return http.StatusConflict, envelope{
			Error:   "stale_write",
			Message: err.Error(),
		}
	}

	if errors.Is(err, blocks.ErrBlockExists) || errors.Is(err, blocks.ErrDefinitionExists) {
		return http.StatusConflict, envelope{
			Error:   "conflict",
			Message: err.Error(),
		}
	}

	if errors.Is(err, blocks.ErrContentInvalid) {
		return http.StatusUnprocessableEntity, envelope{
			Error:   "content_invalid",
			Message: err.Error(),
			Issues:  schemavalidation.Issues(err),
		}
	}

	if errors.Is(err, blocks.ErrDefinitionSchema) {
		return http.StatusUnprocessableEntity, envelope{
			Error:   "validation_failed",
			Message: err.Error(),
		}
	}

	var fieldErrs validation.Errors
	if errors.As(err, &fieldErrs) ||
		errors.Is(err, blocks.ErrBlockIDRequired) ||
		errors.Is(err, blocks.ErrPageIDRequired) ||
		errors.Is(err, blocks.ErrBlockTypeRequired) ||
		errors.Is(err, blocks.ErrPositionInvalid) ||
		errors.Is(err, blocks.ErrContentRequired) ||
		errors.Is(err, blocks.ErrReorderEmpty) ||
		errors.Is(err, blocks.ErrDefinitionNameRequired) {
		return http.StatusBadRequest, envelope{
			Error:   "bad_request",
			Message: err.Error(),
		}
	}

	return http.StatusInternalServerError, envelope{
		Error:   "internal_error",
		Message: err.Error(),
	}
}

func parseUUID(value string) (uuid.UUID, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return uuid.Nil, errors.New("uuid required")
	}
	return uuid.Parse(trimmed)
}
