package handlers

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/studypath-backend/internal/http/response"
	"github.com/yungbote/studypath-backend/internal/platform/logger"
	"github.com/yungbote/studypath-backend/internal/services"
	"github.com/yungbote/studypath-backend/internal/workflow"
)

type WorkflowHandler struct {
	log      *logger.Logger
	engine   *workflow.Engine
	sessions services.SessionService
}

func NewWorkflowHandler(log *logger.Logger, engine *workflow.Engine, sessions services.SessionService) *WorkflowHandler {
	return &WorkflowHandler{
		log:      log.With("handler", "WorkflowHandler"),
		engine:   engine,
		sessions: sessions,
	}
}

type runWorkflowRequest struct {
	Type      string `json:"type" binding:"required"`
	URL       string `json:"url"`
	Level     string `json:"level,omitempty"`
	Question  string `json:"question,omitempty"`
	MaxPoints int    `json:"max_points,omitempty"`
	QuizCount int    `json:"quiz_count,omitempty"`
	SkipQuiz  bool   `json:"skip_quiz,omitempty"`
}

func (r runWorkflowRequest) inputs() map[string]any {
	inputs := map[string]any{
		workflow.KeyURL: r.URL,
	}
	if r.Level != "" {
		inputs[workflow.KeyLevel] = r.Level
	}
	if r.Question != "" {
		inputs[workflow.KeyQuestion] = r.Question
	}
	if r.MaxPoints > 0 {
		inputs[workflow.KeyMaxPoints] = r.MaxPoints
	}
	if r.QuizCount > 0 {
		inputs[workflow.KeyQuizCount] = r.QuizCount
	}
	if r.SkipQuiz {
		inputs[workflow.KeySkipQuiz] = true
	}
	return inputs
}

// Run executes one named workflow to completion and returns the final state
// plus the persisted session snapshot.
func (h *WorkflowHandler) Run(c *gin.Context) {
	var req runWorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	final, session, err := h.sessions.Run(c.Request.Context(), workflow.WorkflowType(req.Type), req.inputs())
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "workflow_rejected", err)
		return
	}
	response.RespondOK(c, gin.H{
		"session": session,
		"state":   final,
	})
}

// Stream runs a workflow through the graph scheduler and forwards one SSE
// event per completed step, ending with the final state.
func (h *WorkflowHandler) Stream(c *gin.Context) {
	var req runWorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	snapshots, err := h.engine.StreamWorkflow(c.Request.Context(), workflow.WorkflowType(req.Type), req.inputs())
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "workflow_rejected", err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Stream(func(w io.Writer) bool {
		st, ok := <-snapshots
		if !ok {
			return false
		}
		c.SSEvent("state", st)
		return true
	})
}

type batchRequest struct {
	Requests []runWorkflowRequest `json:"requests" binding:"required"`
	Limit    int64                `json:"limit,omitempty"`
}

// Batch runs independent workflows with a concurrency ceiling and returns
// per-request outcomes in request order.
func (h *WorkflowHandler) Batch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if len(req.Requests) == 0 {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", errEmptyBatch)
		return
	}

	batch := make([]workflow.BatchRequest, len(req.Requests))
	for i, r := range req.Requests {
		batch[i] = workflow.BatchRequest{Type: workflow.WorkflowType(r.Type), Inputs: r.inputs()}
	}
	results := h.engine.RunBatch(c.Request.Context(), batch, req.Limit)

	out := make([]gin.H, len(results))
	for i, res := range results {
		item := gin.H{"state": res.State}
		if res.Err != nil {
			item["error"] = res.Err.Error()
		}
		out[i] = item
	}
	response.RespondOK(c, gin.H{"results": out})
}

// Cancel requests best-effort cancellation of an in-flight run.
func (h *WorkflowHandler) Cancel(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", errMissingSessionID)
		return
	}
	if !h.engine.Cancel(id) {
		response.RespondError(c, http.StatusNotFound, "session_not_active", nil)
		return
	}
	response.RespondOK(c, gin.H{"cancelled": id})
}
