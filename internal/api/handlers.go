package api

import (
	"math"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/skillgrid/internal/batch"
	"github.com/skillgrid/internal/matrix"
	"github.com/skillgrid/internal/skills"
	"github.com/skillgrid/internal/validator"
	"github.com/skillgrid/internal/workspace"
)

type validateRequest struct {
	Raw         string                `json:"raw" validate:"required"`
	Kind        string                `json:"kind" validate:"required"`
	Constraints validator.Constraints `json:"constraints"`
}

func (s *Server) validate(c echo.Context) error {
	var req validateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	kind, err := validator.ParseKind(req.Kind)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, validator.Validate(req.Raw, kind, req.Constraints))
}

func (s *Server) listSkills(c echo.Context) error {
	return c.JSON(http.StatusOK, s.ws.Registry().List())
}

func (s *Server) getSkill(c echo.Context) error {
	t, ok := s.ws.Registry().Get(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: skills.ErrUnknownSkill.Error() + ": " + c.Param("id")})
	}
	return c.JSON(http.StatusOK, t)
}

func (s *Server) listMatrices(c echo.Context) error {
	items, err := s.ws.List(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, items)
}

func (s *Server) getMatrix(c echo.Context) error {
	m, err := s.ws.Matrix(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, m)
}

func (s *Server) putMatrix(c echo.Context) error {
	var m matrix.Matrix
	if err := c.Bind(&m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if m.ID == "" {
		m.ID = c.Param("id")
	}
	if m.ID != c.Param("id") {
		return echo.NewHTTPError(http.StatusBadRequest, "matrix id does not match the path")
	}
	if err := s.ws.Put(c.Request().Context(), &m); err != nil {
		return fail(c, err)
	}
	cur, err := s.ws.Matrix(c.Request().Context(), m.ID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, cur)
}

type editCellRequest struct {
	Value string `json:"value"`
}

func (s *Server) editCell(c echo.Context) error {
	var req editCellRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	cell, err := s.ws.EditCell(c.Request().Context(), c.Param("id"), c.Param("row"), c.Param("col"), req.Value)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, cell)
}

func (s *Server) runCell(c echo.Context) error {
	out, err := s.ws.RunCell(c.Request().Context(), c.Param("id"), c.Param("row"), c.Param("col"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) cancelCell(c echo.Context) error {
	cancelled, err := s.ws.CancelCell(c.Request().Context(), c.Param("id"), c.Param("row"), c.Param("col"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"cancelled": cancelled})
}

type columnRunRequest struct {
	Mode    string `json:"mode" validate:"omitempty,oneof=all fill_empty fill-empty retry_failed retry-failed"`
	Confirm bool   `json:"confirm"`
}

type columnRunResponse struct {
	RunID  string           `json:"runId,omitempty"`
	JobID  int64            `json:"jobId,omitempty"`
	Queued bool             `json:"queued"`
	Status *batch.RunStatus `json:"status,omitempty"`
}

func (s *Server) startColumnRun(c echo.Context) error {
	var req columnRunRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	mode, err := batch.ParseMode(req.Mode)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	matrixID, columnID := c.Param("id"), c.Param("col")

	if s.opts.Queue != nil {
		// reject unknown matrices before they reach the queue
		if _, err := s.ws.Matrix(ctx, matrixID); err != nil {
			return fail(c, err)
		}
		jobID, err := s.opts.Queue.EnqueueColumnRun(ctx, matrixID, columnID, mode, req.Confirm)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(http.StatusAccepted, columnRunResponse{JobID: jobID, Queued: true})
	}

	st, err := s.ws.StartColumnRun(ctx, matrixID, columnID, mode, req.Confirm)
	if err != nil {
		if st.RunID != "" {
			return c.JSON(statusFor(err), map[string]interface{}{"error": err.Error(), "runId": st.RunID})
		}
		return fail(c, err)
	}
	return c.JSON(http.StatusAccepted, columnRunResponse{RunID: st.RunID, Status: &st})
}

func (s *Server) getRun(c echo.Context) error {
	st, err := s.ws.Progress(c.Param("runId"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, st)
}

func (s *Server) cancelRun(c echo.Context) error {
	cancelled, err := s.ws.CancelColumnRun(c.Param("runId"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"cancelled": cancelled})
}

type previewRequest struct {
	RowID          string            `json:"rowId" validate:"required"`
	Params         map[string]string `json:"params"`
	ProjectContext *string           `json:"projectContext"`
}

func (s *Server) preview(c echo.Context) error {
	var req previewRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	p, err := s.ws.CompilePreview(c.Request().Context(), c.Param("id"), workspace.PreviewRequest{
		RowID:          req.RowID,
		ColumnID:       c.Param("col"),
		Params:         req.Params,
		ProjectContext: req.ProjectContext,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (s *Server) viewport(c echo.Context) error {
	vp := s.opts.Viewport
	for key, dst := range map[string]*float64{
		"height":     &vp.ContainerHeight,
		"scroll":     &vp.ScrollTop,
		"width":      &vp.ContainerWidth,
		"scrollLeft": &vp.ScrollLeft,
		"rowHeight":  &vp.RowHeight,
	} {
		raw := c.QueryParam(key)
		if raw == "" {
			continue
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil || f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid "+key)
		}
		*dst = f
	}
	if raw := c.QueryParam("overscan"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid overscan")
		}
		vp.Overscan = n
	}
	f, err := s.ws.Viewport(c.Request().Context(), c.Param("id"), vp)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, f)
}
