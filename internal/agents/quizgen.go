package agents

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/studypath-backend/internal/domain"
	"github.com/yungbote/studypath-backend/internal/platform/envutil"
	"github.com/yungbote/studypath-backend/internal/platform/logger"
	"github.com/yungbote/studypath-backend/internal/prompts"
	"github.com/yungbote/studypath-backend/internal/structured"
)

const (
	InputQuestionCount = "question_count"

	defaultQuizCount = 5
	questionMaxLen   = 300
)

// Target difficulty mix, in order easy/medium/hard.
var difficultyMix = [3]float64{0.3, 0.5, 0.2}

// QuizGenerator produces a typed, shape-validated quiz from key points and a
// source excerpt, topping up with synthesized questions when the backend
// under-delivers.
type QuizGenerator struct {
	*BaseAgent
	llm    LLMClient
	reg    *prompts.Registry
	budget int
}

func NewQuizGenerator(log *logger.Logger, events *EventBus, llm LLMClient, reg *prompts.Registry) *QuizGenerator {
	g := &QuizGenerator{
		llm:    llm,
		reg:    reg,
		budget: envutil.Int("QUIZ_CONTENT_BUDGET", 8000),
	}
	cfg := Config{
		Timeout:    envutil.Dur("AGENT_QUIZ_TIMEOUT", 30*time.Second),
		MaxRetries: envutil.Int("AGENT_QUIZ_RETRIES", 2),
		BaseDelay:  envutil.Dur("AGENT_RETRY_BASE_DELAY", time.Second),
	}
	g.BaseAgent = newBase("quiz_generator", cfg, log, events, g.validateInput, g.generate)
	return g
}

func (g *QuizGenerator) validateInput(input map[string]any) error {
	points, _ := input[InputKeyPoints].([]domain.KeyPoint)
	if len(points) == 0 {
		return Errf(CodeInvalidInput, "key_points are required")
	}
	if v, ok := input[InputQuestionCount].(int); ok && v < 1 {
		return Errf(CodeInvalidInput, "question_count must be positive")
	}
	return nil
}

func (g *QuizGenerator) generate(ctx context.Context, input map[string]any, _ *domain.AgentContext) (any, error) {
	points := input[InputKeyPoints].([]domain.KeyPoint)
	content, _ := input[InputContent].(string)
	count := defaultQuizCount
	if v, ok := input[InputQuestionCount].(int); ok && v > 0 {
		count = v
	}

	tpl := g.reg.MustGet(prompts.PromptQuizGenerate)
	in := prompts.Input{
		KeyPointsBlock: FormatKeyPoints(points),
		Content:        truncateMiddle(content, g.budget, 0.7),
		Count:          count,
		DifficultyMix:  "30% easy, 50% medium, 20% hard",
	}
	resp, err := g.llm.Generate(ctx, tpl.System(in), tpl.User(in))
	if err != nil {
		ae := Classify(err)
		if ae.Code == CodeUnknown {
			ae = Wrap(CodeLLM, "generate quiz", err)
		}
		return nil, ae
	}

	questions := decodeQuestions(resp)
	questions = NormalizeQuizQuestions(questions)
	if len(questions) == 0 {
		return nil, Errf(CodeParsing, "no valid quiz questions recoverable from response")
	}
	questions = topUpQuestions(questions, points, count)
	questions = rebalanceDifficulty(questions)
	return questions, nil
}

func decodeQuestions(resp string) []domain.QuizQuestion {
	items, ok := structured.DecodeItems(resp)
	if !ok {
		return nil
	}
	questions := make([]domain.QuizQuestion, 0, len(items))
	for _, m := range items {
		q := domain.QuizQuestion{
			ID:            structured.Str(m, "id"),
			Type:          domain.QuestionType(structured.Str(m, "type")),
			Question:      structured.Str(m, "question", "prompt"),
			Options:       structured.StrSlice(m, "options", "choices"),
			CorrectAnswer: structured.Str(m, "correct_answer", "correctAnswer", "answer"),
			Explanation:   structured.Str(m, "explanation"),
			Difficulty:    domain.Difficulty(structured.Str(m, "difficulty")),
			Concept:       structured.Str(m, "concept"),
		}
		if pts, ok := structured.Num(m, "points"); ok && pts > 0 {
			q.Points = int(pts)
		}
		questions = append(questions, q)
	}
	return questions
}

var blankRE = regexp.MustCompile(`_{3,}`)

// NormalizeQuizQuestions enforces the per-type shape rules, fills defaults
// and drops near-duplicate question text. It is idempotent: a normalized
// sequence passes through unchanged.
func NormalizeQuizQuestions(questions []domain.QuizQuestion) []domain.QuizQuestion {
	out := make([]domain.QuizQuestion, 0, len(questions))
	seen := make(map[string]bool, len(questions))
	for _, q := range questions {
		q.Question = structured.CleanText(q.Question, questionMaxLen)
		if q.Question == "" {
			continue
		}
		key := normalizeKey(q.Question)
		if seen[key] {
			continue
		}

		if !q.Type.Valid() {
			q.Type = domain.QuestionShortAnswer
		}
		if !q.Difficulty.Valid() {
			q.Difficulty = domain.DifficultyMedium
		}
		q.Explanation = structured.CleanText(q.Explanation, descriptionMaxLen)
		q.Concept = structured.CleanText(q.Concept, conceptMaxLen)
		q.CorrectAnswer = structured.CleanText(q.CorrectAnswer, questionMaxLen)

		ok := false
		switch q.Type {
		case domain.QuestionMultipleChoice:
			q.Options, q.CorrectAnswer, ok = normalizeChoices(q.Options, q.CorrectAnswer)
		case domain.QuestionTrueFalse:
			q.Options = []string{"True", "False"}
			switch strings.ToLower(q.CorrectAnswer) {
			case "true", "t", "yes":
				q.CorrectAnswer, ok = "True", true
			case "false", "f", "no":
				q.CorrectAnswer, ok = "False", true
			}
		case domain.QuestionFillBlank:
			q.Options = []string{}
			ok = blankRE.MatchString(q.Question) && q.CorrectAnswer != ""
		case domain.QuestionShortAnswer:
			q.Options = []string{}
			ok = q.CorrectAnswer != ""
		}
		if !ok {
			continue
		}

		if q.ID == "" {
			q.ID = uuid.NewString()
		}
		if q.Points <= 0 {
			q.Points = pointsFor(q.Difficulty)
		}
		seen[key] = true
		out = append(out, q)
	}
	return out
}

// normalizeChoices dedupes and trims options and canonicalizes the correct
// answer onto one of them; a multiple-choice question without at least two
// options containing its answer is unusable.
func normalizeChoices(options []string, correct string) ([]string, string, bool) {
	cleaned := make([]string, 0, len(options))
	seen := make(map[string]bool, len(options))
	for _, o := range options {
		o = structured.CleanText(o, questionMaxLen)
		if o == "" || seen[normalizeKey(o)] {
			continue
		}
		seen[normalizeKey(o)] = true
		cleaned = append(cleaned, o)
	}
	if len(cleaned) < 2 {
		return nil, "", false
	}
	for _, o := range cleaned {
		if strings.EqualFold(o, correct) {
			return cleaned, o, true
		}
	}
	return nil, "", false
}

func pointsFor(d domain.Difficulty) int {
	switch d {
	case domain.DifficultyEasy:
		return 1
	case domain.DifficultyHard:
		return 3
	default:
		return 2
	}
}

// topUpQuestions synthesizes filler true/false questions from unused key
// points when the backend produced fewer than the target count.
func topUpQuestions(questions []domain.QuizQuestion, points []domain.KeyPoint, target int) []domain.QuizQuestion {
	if len(questions) >= target {
		return questions
	}
	used := make(map[string]bool, len(questions))
	for _, q := range questions {
		used[normalizeKey(q.Concept)] = true
	}
	for _, p := range points {
		if len(questions) >= target {
			break
		}
		if used[normalizeKey(p.Concept)] {
			continue
		}
		used[normalizeKey(p.Concept)] = true
		questions = append(questions, domain.QuizQuestion{
			ID:            uuid.NewString(),
			Type:          domain.QuestionTrueFalse,
			Question:      structured.CleanText(fmt.Sprintf("True or false: %s: %s", p.Concept, p.Description), questionMaxLen),
			Options:       []string{"True", "False"},
			CorrectAnswer: "True",
			Explanation:   structured.CleanText(p.Description, descriptionMaxLen),
			Difficulty:    domain.DifficultyEasy,
			Concept:       p.Concept,
			Points:        pointsFor(domain.DifficultyEasy),
		})
	}
	return questions
}

// rebalanceDifficulty nudges the set toward the target easy/medium/hard mix
// by relabeling surplus questions; no question is ever discarded.
func rebalanceDifficulty(questions []domain.QuizQuestion) []domain.QuizQuestion {
	n := len(questions)
	if n < 3 {
		return questions
	}
	order := [3]domain.Difficulty{domain.DifficultyEasy, domain.DifficultyMedium, domain.DifficultyHard}
	targets := map[domain.Difficulty]int{}
	assigned := 0
	for i, d := range order {
		t := int(float64(n) * difficultyMix[i])
		targets[d] = t
		assigned += t
	}
	targets[domain.DifficultyMedium] += n - assigned // rounding remainder

	counts := map[domain.Difficulty]int{}
	for _, q := range questions {
		counts[q.Difficulty]++
	}
	for i := range questions {
		d := questions[i].Difficulty
		if counts[d] <= targets[d] {
			continue
		}
		for _, want := range order {
			if counts[want] < targets[want] {
				counts[d]--
				counts[want]++
				questions[i].Difficulty = want
				questions[i].Points = pointsFor(want)
				break
			}
		}
	}
	return questions
}
