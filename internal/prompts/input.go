package prompts

// Input is a superset of all fields any prompt might need. Missing fields
// render as empty strings (templates use missingkey=zero).
type Input struct {
	// Document grounding
	Title   string
	Content string
	// Extraction
	MaxPoints int
	// Planning
	KeyPointsBlock string
	Level          string
	// Quiz
	Count         int
	DifficultyMix string
	// Q&A
	Question     string
	HistoryBlock string
}
