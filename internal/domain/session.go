package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Session status values persisted after a workflow run.
const (
	SessionStatusCompleted = "completed"
	SessionStatusPartial   = "partial"
	SessionStatusStalled   = "stalled"
	SessionStatusFailed    = "failed"
)

// LearningSession is the persistence handoff for one workflow execution: the
// inputs, the final accumulated state and the recorded step errors.
type LearningSession struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	SourceURL    string         `gorm:"index" json:"source_url"`
	UserLevel    string         `json:"user_level"`
	WorkflowType string         `json:"workflow_type"`
	Status       string         `gorm:"index" json:"status"`
	State        datatypes.JSON `json:"state"`
	StepErrors   datatypes.JSON `json:"step_errors"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

func (LearningSession) TableName() string { return "learning_sessions" }
