package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/skillgrid/internal/batch"
	"github.com/skillgrid/internal/matrix"
	"github.com/skillgrid/internal/pipeline"
	"github.com/skillgrid/internal/skills"
	"github.com/skillgrid/internal/validator"
	"github.com/skillgrid/internal/workspace"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, matrix.ErrNotFound),
		errors.Is(err, matrix.ErrRowNotFound),
		errors.Is(err, matrix.ErrColumnNotFound),
		errors.Is(err, batch.ErrRunNotFound),
		errors.Is(err, skills.ErrUnknownSkill):
		return http.StatusNotFound
	case errors.Is(err, batch.ErrConfirmationRequired),
		errors.Is(err, batch.ErrRunInProgress):
		return http.StatusConflict
	case errors.Is(err, pipeline.ErrNotSkillColumn),
		errors.Is(err, skills.ErrMissingParam),
		errors.Is(err, skills.ErrInvalidParam),
		errors.Is(err, workspace.ErrInvalidMatrix),
		errors.Is(err, matrix.ErrDuplicateRow),
		errors.Is(err, matrix.ErrDuplicateColumn),
		errors.Is(err, validator.ErrConfiguration):
		return http.StatusUnprocessableEntity
	case errors.Is(err, pipeline.ErrNoRunner):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func fail(c echo.Context, err error) error {
	return c.JSON(statusFor(err), ErrorResponse{Error: err.Error()})
}
