package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/studypath-backend/internal/domain"
	"github.com/yungbote/studypath-backend/internal/platform/logger"
	"github.com/yungbote/studypath-backend/internal/prompts"
	"github.com/yungbote/studypath-backend/internal/workflow"
)

type memRepo struct {
	sessions map[uuid.UUID]*domain.LearningSession
	fail     bool
}

func newMemRepo() *memRepo {
	return &memRepo{sessions: map[uuid.UUID]*domain.LearningSession{}}
}

func (r *memRepo) Create(_ context.Context, _ *gorm.DB, s *domain.LearningSession) (*domain.LearningSession, error) {
	if r.fail {
		return nil, errors.New("db unavailable")
	}
	r.sessions[s.ID] = s
	return s, nil
}

func (r *memRepo) GetByID(_ context.Context, _ *gorm.DB, id uuid.UUID) (*domain.LearningSession, error) {
	s, ok := r.sessions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return s, nil
}

func (r *memRepo) ListRecent(_ context.Context, _ *gorm.DB, limit int) ([]*domain.LearningSession, error) {
	out := make([]*domain.LearningSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memRepo) UpdateStatus(_ context.Context, _ *gorm.DB, id uuid.UUID, status string) error {
	if s, ok := r.sessions[id]; ok {
		s.Status = status
	}
	return nil
}

type stubLLM struct{}

func (stubLLM) Generate(_ context.Context, _, user string) (string, error) {
	if strings.Contains(user, "Extract at most") {
		return `[{"concept":"Goroutines","description":"lightweight threads","importance":"high"}]`, nil
	}
	return `[{"step":"Read","time":"30 minutes","description":"basics"}]`, nil
}

type stubLoader struct{ fail bool }

func (l stubLoader) Load(context.Context, string) (string, string, error) {
	if l.fail {
		return "", "", errors.New("connection refused")
	}
	return "Doc", "Goroutines are lightweight threads.", nil
}

func newTestService(t *testing.T, repo *memRepo, loaderFails bool) SessionService {
	t.Helper()
	t.Setenv("AGENT_RETRY_BASE_DELAY", "1ms")
	t.Setenv("AGENT_PARSER_RETRIES", "1")
	engine := workflow.NewEngine(logger.NewNop(), stubLLM{}, stubLoader{fail: loaderFails}, prompts.Default())
	return NewSessionService(engine, repo, logger.NewNop())
}

func TestSessionServiceRunPersistsCompleted(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(t, repo, false)

	final, session, err := svc.Run(context.Background(), workflow.WorkflowDocumentAnalysis, map[string]any{
		workflow.KeyURL: "https://example.com/doc",
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if final[workflow.KeyStatus] != workflow.StatusCompleted {
		t.Fatalf("expected completed run, got %v", final[workflow.KeyStatus])
	}
	if session == nil || session.Status != domain.SessionStatusCompleted {
		t.Fatalf("session snapshot wrong: %+v", session)
	}
	if len(repo.sessions) != 1 {
		t.Fatalf("expected one persisted session, got %d", len(repo.sessions))
	}
	if session.WorkflowType != string(workflow.WorkflowDocumentAnalysis) {
		t.Fatalf("workflow type not recorded: %q", session.WorkflowType)
	}
	if len(session.State) == 0 {
		t.Fatal("state snapshot missing")
	}
}

func TestSessionServiceRunRecordsPartial(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(t, repo, true)

	final, session, err := svc.Run(context.Background(), workflow.WorkflowDocumentAnalysis, map[string]any{
		workflow.KeyURL: "https://example.com/doc",
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if final[workflow.KeyStatus] != workflow.StatusPartial {
		t.Fatalf("expected partial run, got %v", final[workflow.KeyStatus])
	}
	if session.Status != domain.SessionStatusPartial {
		t.Fatalf("expected partial session, got %s", session.Status)
	}
	if len(session.StepErrors) == 0 {
		t.Fatal("step errors not recorded")
	}
}

func TestSessionServiceRunRejectsBadRequest(t *testing.T) {
	svc := newTestService(t, newMemRepo(), false)
	if _, _, err := svc.Run(context.Background(), "bogus", nil); err == nil {
		t.Fatal("expected rejection for unknown workflow type")
	}
}

func TestSessionServicePersistFailureDoesNotFailRun(t *testing.T) {
	repo := newMemRepo()
	repo.fail = true
	svc := newTestService(t, repo, false)

	final, session, err := svc.Run(context.Background(), workflow.WorkflowDocumentAnalysis, map[string]any{
		workflow.KeyURL: "https://example.com/doc",
	})
	if err != nil {
		t.Fatalf("run must survive persistence failure: %v", err)
	}
	if final == nil || session == nil {
		t.Fatal("state and snapshot must still be returned")
	}
}

func TestSessionServiceNilRepo(t *testing.T) {
	t.Setenv("AGENT_RETRY_BASE_DELAY", "1ms")
	engine := workflow.NewEngine(logger.NewNop(), stubLLM{}, stubLoader{}, prompts.Default())
	svc := NewSessionService(engine, nil, logger.NewNop())

	if _, err := svc.Get(context.Background(), uuid.New()); !errors.Is(err, ErrPersistenceDisabled) {
		t.Fatalf("expected ErrPersistenceDisabled, got %v", err)
	}
	if _, err := svc.ListRecent(context.Background(), 5); !errors.Is(err, ErrPersistenceDisabled) {
		t.Fatalf("expected ErrPersistenceDisabled, got %v", err)
	}

	_, session, err := svc.Run(context.Background(), workflow.WorkflowDocumentAnalysis, map[string]any{
		workflow.KeyURL: "https://example.com/doc",
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if session == nil {
		t.Fatal("unsaved snapshot must still be returned")
	}
}
