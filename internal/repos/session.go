package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/studypath-backend/internal/domain"
	"github.com/yungbote/studypath-backend/internal/platform/logger"
)

type LearningSessionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, session *domain.LearningSession) (*domain.LearningSession, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.LearningSession, error)
	ListRecent(ctx context.Context, tx *gorm.DB, limit int) ([]*domain.LearningSession, error)
	UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status string) error
}

type learningSessionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLearningSessionRepo(db *gorm.DB, baseLog *logger.Logger) LearningSessionRepo {
	repoLog := baseLog.With("repo", "LearningSessionRepo")
	return &learningSessionRepo{db: db, log: repoLog}
}

func (r *learningSessionRepo) Create(ctx context.Context, tx *gorm.DB, session *domain.LearningSession) (*domain.LearningSession, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	if err := transaction.WithContext(ctx).Create(session).Error; err != nil {
		return nil, err
	}
	return session, nil
}

func (r *learningSessionRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.LearningSession, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var result domain.LearningSession
	if err := transaction.WithContext(ctx).
		Where("id = ?", id).
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *learningSessionRepo) ListRecent(ctx context.Context, tx *gorm.DB, limit int) ([]*domain.LearningSession, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 20
	}
	var results []*domain.LearningSession
	if err := transaction.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *learningSessionRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&domain.LearningSession{}).
		Where("id = ?", id).
		Update("status", status).Error
}
