package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/studypath-backend/internal/http/response"
	"github.com/yungbote/studypath-backend/internal/platform/logger"
	"github.com/yungbote/studypath-backend/internal/services"
)

type SessionHandler struct {
	log      *logger.Logger
	sessions services.SessionService
}

func NewSessionHandler(log *logger.Logger, sessions services.SessionService) *SessionHandler {
	return &SessionHandler{
		log:      log.With("handler", "SessionHandler"),
		sessions: sessions,
	}
}

func (h *SessionHandler) ListRecent(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	sessions, err := h.sessions.ListRecent(c.Request.Context(), limit)
	if err != nil {
		if errors.Is(err, services.ErrPersistenceDisabled) {
			response.RespondError(c, http.StatusNotImplemented, "persistence_disabled", err)
			return
		}
		h.log.Error("ListRecent failed", "error", err)
		response.RespondError(c, http.StatusInternalServerError, "load_sessions_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"sessions": sessions})
}

func (h *SessionHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_session_id", err)
		return
	}
	session, err := h.sessions.Get(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrPersistenceDisabled):
			response.RespondError(c, http.StatusNotImplemented, "persistence_disabled", err)
		case errors.Is(err, gorm.ErrRecordNotFound):
			response.RespondError(c, http.StatusNotFound, "session_not_found", err)
		default:
			h.log.Error("Get failed", "error", err, "session_id", id)
			response.RespondError(c, http.StatusInternalServerError, "load_session_failed", err)
		}
		return
	}
	response.RespondOK(c, gin.H{"session": session})
}
