package agents

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/yungbote/studypath-backend/internal/domain"
	"github.com/yungbote/studypath-backend/internal/platform/envutil"
	"github.com/yungbote/studypath-backend/internal/platform/logger"
	"github.com/yungbote/studypath-backend/internal/prompts"
	"github.com/yungbote/studypath-backend/internal/structured"
)

const (
	InputKeyPoints = "key_points"
	InputLevel     = "level"

	minPathSteps = 3
	maxPathSteps = 8
)

// LearningPathPlanner turns ranked key points into an ordered, time-budgeted
// learning path of 3-8 steps.
type LearningPathPlanner struct {
	*BaseAgent
	llm LLMClient
	reg *prompts.Registry
}

func NewLearningPathPlanner(log *logger.Logger, events *EventBus, llm LLMClient, reg *prompts.Registry) *LearningPathPlanner {
	p := &LearningPathPlanner{llm: llm, reg: reg}
	cfg := Config{
		Timeout:    envutil.Dur("AGENT_PATH_TIMEOUT", 30*time.Second),
		MaxRetries: envutil.Int("AGENT_PATH_RETRIES", 2),
		BaseDelay:  envutil.Dur("AGENT_RETRY_BASE_DELAY", time.Second),
	}
	p.BaseAgent = newBase("learning_path_planner", cfg, log, events, p.validateInput, p.plan)
	return p
}

func (p *LearningPathPlanner) validateInput(input map[string]any) error {
	points, _ := input[InputKeyPoints].([]domain.KeyPoint)
	if len(points) == 0 {
		return Errf(CodeInvalidInput, "key_points are required")
	}
	if lvl, ok := input[InputLevel].(string); ok && lvl != "" {
		switch domain.UserLevel(lvl) {
		case domain.LevelBeginner, domain.LevelIntermediate, domain.LevelAdvanced:
		default:
			return Errf(CodeInvalidInput, "unknown level %q", lvl)
		}
	}
	return nil
}

func (p *LearningPathPlanner) plan(ctx context.Context, input map[string]any, actx *domain.AgentContext) (any, error) {
	points := input[InputKeyPoints].([]domain.KeyPoint)
	level := domain.LevelIntermediate
	if lvl, ok := input[InputLevel].(string); ok && lvl != "" {
		level = domain.UserLevel(lvl)
	} else if actx != nil && actx.UserLevel != "" {
		level = actx.UserLevel
	}

	tpl := p.reg.MustGet(prompts.PromptLearningPath)
	in := prompts.Input{
		KeyPointsBlock: FormatKeyPoints(points),
		Level:          string(level),
	}
	resp, err := p.llm.Generate(ctx, tpl.System(in), tpl.User(in))
	if err != nil {
		ae := Classify(err)
		if ae.Code == CodeUnknown {
			ae = Wrap(CodeLLM, "generate learning path", err)
		}
		return nil, ae
	}

	steps := decodeSteps(resp)
	steps = finalizePath(steps, points, level)
	if len(steps) == 0 {
		return nil, Errf(CodeParsing, "no learning steps recoverable from response")
	}
	return steps, nil
}

// FormatKeyPoints renders key points as the prompt block shared by the
// planner and the quiz generator.
func FormatKeyPoints(points []domain.KeyPoint) string {
	var b strings.Builder
	for i, p := range points {
		fmt.Fprintf(&b, "%d. %s (%s): %s\n", i+1, p.Concept, p.Importance, p.Description)
	}
	return strings.TrimSpace(b.String())
}

func decodeSteps(resp string) []domain.LearningStep {
	if items, ok := structured.DecodeItems(resp); ok {
		steps := make([]domain.LearningStep, 0, len(items))
		for _, m := range items {
			steps = append(steps, domain.LearningStep{
				Step:          structured.Str(m, "step", "title", "name"),
				Time:          structured.Str(m, "time", "duration"),
				Description:   structured.Str(m, "description", "detail"),
				Code:          structured.Str(m, "code"),
				Prerequisites: structured.StrSlice(m, "prerequisites"),
				Resources:     structured.StrSlice(m, "resources"),
			})
		}
		return steps
	}
	var steps []domain.LearningStep
	for _, li := range structured.LineItems(resp) {
		steps = append(steps, domain.LearningStep{Step: li.Title, Description: li.Body})
	}
	return steps
}

// finalizePath applies the post-generation policy: normalize every time
// estimate to minutes, scale by learner level, pad to the minimum with
// generic fallback steps, cap at the maximum and number the step titles.
func finalizePath(steps []domain.LearningStep, points []domain.KeyPoint, level domain.UserLevel) []domain.LearningStep {
	kept := make([]domain.LearningStep, 0, len(steps))
	for _, s := range steps {
		s.Step = structured.CleanText(s.Step, conceptMaxLen)
		s.Description = structured.CleanText(s.Description, descriptionMaxLen)
		if s.Step == "" && s.Description == "" {
			continue
		}
		if s.Step == "" {
			s.Step = s.Description
		}
		if s.Description == "" {
			s.Description = s.Step
		}
		mins := scaleMinutes(parseMinutes(s.Time), level)
		s.Time = fmt.Sprintf("%d minutes", mins)
		if s.Prerequisites == nil {
			s.Prerequisites = []string{}
		}
		if s.Resources == nil {
			s.Resources = []string{}
		}
		kept = append(kept, s)
	}

	for i := 0; len(kept) < minPathSteps; i++ {
		kept = append(kept, fallbackStep(i, points, level))
	}
	if len(kept) > maxPathSteps {
		kept = kept[:maxPathSteps]
	}
	for i := range kept {
		if !stepNumberRE.MatchString(kept[i].Step) {
			kept[i].Step = fmt.Sprintf("Step %d: %s", i+1, kept[i].Step)
		}
	}
	return kept
}

var (
	stepNumberRE = regexp.MustCompile(`^Step \d+: `)
	durationRE   = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(hours?|hrs?|h\b|minutes?|mins?|m\b|days?|d\b)`)
)

// parseMinutes normalizes free-form time estimates ("1.5 hours", "90 min",
// "half a day") to whole minutes. Unparseable input defaults to 30.
func parseMinutes(s string) int {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 30
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	m := durationRE.FindStringSubmatch(s)
	if m == nil {
		return 30
	}
	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil || n <= 0 {
		return 30
	}
	switch m[2][0] {
	case 'h':
		n *= 60
	case 'd':
		n *= 8 * 60 // a study day, not a calendar day
	}
	mins := int(n + 0.5)
	if mins < 1 {
		mins = 1
	}
	return mins
}

// scaleMinutes adjusts estimates for the learner: beginners get ~20% more
// time, advanced learners ~20% less, with a floor so steps stay meaningful.
func scaleMinutes(mins int, level domain.UserLevel) int {
	switch level {
	case domain.LevelBeginner:
		mins = int(float64(mins)*1.2 + 0.5)
	case domain.LevelAdvanced:
		mins = int(float64(mins)*0.8 + 0.5)
	}
	if mins < 5 {
		mins = 5
	}
	return mins
}

func fallbackStep(i int, points []domain.KeyPoint, level domain.UserLevel) domain.LearningStep {
	generic := []domain.LearningStep{
		{Step: "Review the core concepts", Description: "Re-read the document and restate each key concept in your own words."},
		{Step: "Work through an example", Description: "Apply the most important concept to a small, concrete example."},
		{Step: "Self-assessment", Description: "Explain the material to someone else or write a short summary from memory."},
	}
	s := generic[i%len(generic)]
	if i < len(points) {
		s.Description = fmt.Sprintf("%s Focus on: %s.", s.Description, points[i].Concept)
	}
	s.Time = fmt.Sprintf("%d minutes", scaleMinutes(30, level))
	s.Prerequisites = []string{}
	s.Resources = []string{}
	return s
}
