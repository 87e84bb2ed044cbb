package domain

import "time"

// Importance ranks how central a key point is to the source document.
type Importance string

const (
	ImportanceHigh   Importance = "high"
	ImportanceMedium Importance = "medium"
	ImportanceLow    Importance = "low"
)

func (i Importance) Valid() bool {
	switch i {
	case ImportanceHigh, ImportanceMedium, ImportanceLow:
		return true
	}
	return false
}

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionTrueFalse      QuestionType = "true_false"
	QuestionFillBlank      QuestionType = "fill_blank"
	QuestionShortAnswer    QuestionType = "short_answer"
)

func (q QuestionType) Valid() bool {
	switch q {
	case QuestionMultipleChoice, QuestionTrueFalse, QuestionFillBlank, QuestionShortAnswer:
		return true
	}
	return false
}

type UserLevel string

const (
	LevelBeginner     UserLevel = "beginner"
	LevelIntermediate UserLevel = "intermediate"
	LevelAdvanced     UserLevel = "advanced"
)

// DocumentContent is produced once by the document parser and treated as
// read-only by every later step in the same workflow.
type DocumentContent struct {
	Title     string         `json:"title"`
	Content   string         `json:"content"`
	SourceURL string         `json:"source_url"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// KeyPoint is one extracted concept, ranked by importance. Sequences of key
// points never contain two entries with the same case-insensitive Concept.
type KeyPoint struct {
	Concept     string     `json:"concept"`
	Description string     `json:"description"`
	Importance  Importance `json:"importance"`
	Category    string     `json:"category,omitempty"`
	Examples    []string   `json:"examples"`
}

// LearningStep is one stage of a generated learning path. Time is always
// normalized to whole minutes ("45 minutes").
type LearningStep struct {
	Step          string   `json:"step"`
	Time          string   `json:"time"`
	Description   string   `json:"description"`
	Code          string   `json:"code,omitempty"`
	Prerequisites []string `json:"prerequisites"`
	Resources     []string `json:"resources"`
}

type QuizQuestion struct {
	ID            string       `json:"id"`
	Type          QuestionType `json:"type"`
	Question      string       `json:"question"`
	Options       []string     `json:"options"`
	CorrectAnswer string       `json:"correct_answer"`
	Explanation   string       `json:"explanation"`
	Difficulty    Difficulty   `json:"difficulty"`
	Concept       string       `json:"concept,omitempty"`
	Points        int          `json:"points"`
}

// ConversationTurn is one prior exchange in the Q&A channel.
type ConversationTurn struct {
	Role    string `json:"role"` // "user" | "assistant"
	Content string `json:"content"`
}

// AgentContext carries per-request correlation data shared read-mostly by
// every agent in one workflow execution. The core never persists it.
type AgentContext struct {
	SessionID string             `json:"session_id"`
	UserLevel UserLevel          `json:"user_level"`
	History   []ConversationTurn `json:"history,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
	Metadata  map[string]any     `json:"metadata,omitempty"`
}
