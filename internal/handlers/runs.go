package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/neurodecode/internal/data/repos/runs"
	"github.com/yungbote/neurodecode/internal/pkg/dbctx"
)

type RunsHandler struct {
	runs runs.DecodingRunRepo
}

func NewRunsHandler(repo runs.DecodingRunRepo) *RunsHandler {
	return &RunsHandler{runs: repo}
}

// GET /v1/runs?dataset=<name>&limit=<n>
func (h *RunsHandler) ListRuns(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			RespondError(c, http.StatusBadRequest, "invalid_limit", errors.New("limit must be a positive integer"))
			return
		}
		limit = parsed
	}
	out, err := h.runs.List(dbctx.Context{Ctx: c.Request.Context()}, c.Query("dataset"), limit)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "list_failed", err)
		return
	}
	RespondOK(c, gin.H{"runs": out})
}

// GET /v1/runs/:id
func (h *RunsHandler) GetRunByID(c *gin.Context) {
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_run_id", err)
		return
	}
	run, err := h.runs.GetByID(dbctx.Context{Ctx: c.Request.Context()}, runID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "get_failed", err)
		return
	}
	if run == nil {
		RespondError(c, http.StatusNotFound, "run_not_found", errors.New("no run with that id"))
		return
	}
	RespondOK(c, gin.H{"run": run})
}
