package api

import (
	"strconv"
	"strings"

	"github.com/jpdacostaza/ai-rag-test-sub002/internal/memory"
	"github.com/jpdacostaza/ai-rag-test-sub002/internal/models"
)

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return memory.Invalid("%s is required", field)
	}
	return nil
}

func validateRetrieve(req *models.RetrieveRequest) error {
	if err := required("user_id", req.UserID); err != nil {
		return err
	}
	if err := required("query", req.Query); err != nil {
		return err
	}
	if req.Limit < 0 {
		return memory.Invalid("limit must be positive")
	}
	if t := req.Threshold; t != nil && (*t < 0 || *t > 1) {
		return memory.Invalid("threshold must be between 0 and 1")
	}
	return nil
}

func validateSave(req *models.SaveRequest) error {
	if err := required("user_id", req.UserID); err != nil {
		return err
	}
	return required("content", req.Content)
}

func validateDelete(req *models.DeleteRequest) error {
	if err := required("user_id", req.UserID); err != nil {
		return err
	}
	return required("query", req.Query)
}

func validateForget(req *models.ForgetRequest) error {
	if err := required("user_id", req.UserID); err != nil {
		return err
	}
	return required("content", req.Content)
}

func validateInteraction(req *models.ProcessInteractionRequest) error {
	if err := required("user_id", req.UserID); err != nil {
		return err
	}
	if err := required("user_message", req.UserMessage); err != nil {
		return err
	}
	if req.ResponseTime < 0 {
		return memory.Invalid("response_time must not be negative")
	}
	return nil
}

// parseLimit reads an optional positive limit query parameter.
func parseLimit(v string, fallback int) (int, error) {
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, memory.Invalid("limit must be a positive integer")
	}
	return n, nil
}
