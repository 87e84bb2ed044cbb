package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/studypath-backend/internal/http/response"
	"github.com/yungbote/studypath-backend/internal/workflow"
)

type HealthHandler struct {
	engine *workflow.Engine
}

func NewHealthHandler(engine *workflow.Engine) *HealthHandler {
	return &HealthHandler{engine: engine}
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// Agents reports per-agent readiness: true when the agent instance is idle.
func (h *HealthHandler) Agents(c *gin.Context) {
	response.RespondOK(c, gin.H{"agents": h.engine.AgentsHealth()})
}
