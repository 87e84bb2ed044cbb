package services

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/studypath-backend/internal/domain"
	"github.com/yungbote/studypath-backend/internal/platform/logger"
	"github.com/yungbote/studypath-backend/internal/repos"
	"github.com/yungbote/studypath-backend/internal/workflow"
)

// SessionService runs workflows and records the outcome of each run as a
// LearningSession. Persistence is best effort: a nil repo disables it and a
// write failure never fails the run itself.
type SessionService interface {
	Run(ctx context.Context, wt workflow.WorkflowType, inputs map[string]any) (workflow.State, *domain.LearningSession, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.LearningSession, error)
	ListRecent(ctx context.Context, limit int) ([]*domain.LearningSession, error)
}

type sessionService struct {
	engine *workflow.Engine
	repo   repos.LearningSessionRepo
	log    *logger.Logger
}

func NewSessionService(engine *workflow.Engine, repo repos.LearningSessionRepo, baseLog *logger.Logger) SessionService {
	return &sessionService{
		engine: engine,
		repo:   repo,
		log:    baseLog.With("service", "SessionService"),
	}
}

func (s *sessionService) Run(ctx context.Context, wt workflow.WorkflowType, inputs map[string]any) (workflow.State, *domain.LearningSession, error) {
	final, err := s.engine.RunWorkflow(ctx, wt, inputs)
	if err != nil {
		return nil, nil, err
	}
	session := s.record(ctx, wt, final)
	return final, session, nil
}

func (s *sessionService) Get(ctx context.Context, id uuid.UUID) (*domain.LearningSession, error) {
	if s.repo == nil {
		return nil, ErrPersistenceDisabled
	}
	return s.repo.GetByID(ctx, nil, id)
}

func (s *sessionService) ListRecent(ctx context.Context, limit int) ([]*domain.LearningSession, error) {
	if s.repo == nil {
		return nil, ErrPersistenceDisabled
	}
	return s.repo.ListRecent(ctx, nil, limit)
}

// record snapshots the final state into a LearningSession row. Returns the
// unsaved snapshot when persistence is disabled or the write fails, so the
// caller can still surface it.
func (s *sessionService) record(ctx context.Context, wt workflow.WorkflowType, final workflow.State) *domain.LearningSession {
	session := &domain.LearningSession{
		ID:           uuid.New(),
		SourceURL:    stateStr(final, workflow.KeyURL),
		UserLevel:    stateStr(final, workflow.KeyLevel),
		WorkflowType: string(wt),
		Status:       sessionStatus(final),
	}
	if raw, err := json.Marshal(final); err == nil {
		session.State = raw
	} else {
		s.log.Warn("state snapshot not serializable", "error", err)
	}
	if errs := final.Errors(); len(errs) > 0 {
		if raw, err := json.Marshal(errs); err == nil {
			session.StepErrors = raw
		}
	}

	if s.repo == nil {
		return session
	}
	saved, err := s.repo.Create(ctx, nil, session)
	if err != nil {
		s.log.Warn("session persist failed", "session_id", session.ID, "error", err)
		return session
	}
	return saved
}

func sessionStatus(final workflow.State) string {
	switch final[workflow.KeyStatus] {
	case workflow.StatusCompleted:
		return domain.SessionStatusCompleted
	case workflow.StatusStalled:
		return domain.SessionStatusStalled
	case workflow.StatusPartial:
		return domain.SessionStatusPartial
	}
	return domain.SessionStatusFailed
}

func stateStr(st workflow.State, key string) string {
	v, _ := st[key].(string)
	return strings.TrimSpace(v)
}
