package agents

import (
	"context"
	"strings"
	"time"

	"github.com/yungbote/studypath-backend/internal/domain"
	"github.com/yungbote/studypath-backend/internal/platform/envutil"
	"github.com/yungbote/studypath-backend/internal/platform/logger"
	"github.com/yungbote/studypath-backend/internal/prompts"
	"github.com/yungbote/studypath-backend/internal/structured"
)

const (
	InputContent   = "content"
	InputTitle     = "title"
	InputMaxPoints = "max_points"

	conceptMaxLen     = 100
	descriptionMaxLen = 500
)

// KeyPointExtractor asks the backend to rank the document's concepts by
// importance and recovers a deduplicated, capped KeyPoint sequence from
// whatever text comes back.
type KeyPointExtractor struct {
	*BaseAgent
	llm       LLMClient
	reg       *prompts.Registry
	budget    int
	maxPoints int
}

func NewKeyPointExtractor(log *logger.Logger, events *EventBus, llm LLMClient, reg *prompts.Registry) *KeyPointExtractor {
	e := &KeyPointExtractor{
		llm:       llm,
		reg:       reg,
		budget:    envutil.Int("KEYPOINT_CONTENT_BUDGET", 12000),
		maxPoints: envutil.Int("KEYPOINT_MAX_COUNT", 10),
	}
	cfg := Config{
		Timeout:    envutil.Dur("AGENT_KEYPOINT_TIMEOUT", 30*time.Second),
		MaxRetries: envutil.Int("AGENT_KEYPOINT_RETRIES", 3),
		BaseDelay:  envutil.Dur("AGENT_RETRY_BASE_DELAY", time.Second),
	}
	e.BaseAgent = newBase("keypoint_extractor", cfg, log, events, e.validateInput, e.extract)
	return e
}

func (e *KeyPointExtractor) validateInput(input map[string]any) error {
	content, _ := input[InputContent].(string)
	if strings.TrimSpace(content) == "" {
		return Errf(CodeInvalidInput, "content is required")
	}
	return nil
}

func (e *KeyPointExtractor) extract(ctx context.Context, input map[string]any, _ *domain.AgentContext) (any, error) {
	content, _ := input[InputContent].(string)
	title, _ := input[InputTitle].(string)
	max := e.maxPoints
	if v, ok := input[InputMaxPoints].(int); ok && v > 0 {
		max = v
	}

	tpl := e.reg.MustGet(prompts.PromptKeyPointExtract)
	in := prompts.Input{
		Title:     title,
		Content:   truncateMiddle(content, e.budget, 0.7),
		MaxPoints: max,
	}
	resp, err := e.llm.Generate(ctx, tpl.System(in), tpl.User(in))
	if err != nil {
		ae := Classify(err)
		if ae.Code == CodeUnknown {
			ae = Wrap(CodeLLM, "generate key points", err)
		}
		return nil, ae
	}

	points := decodeKeyPoints(resp)
	points = NormalizeKeyPoints(points, max)
	if len(points) == 0 {
		return nil, Errf(CodeParsing, "no key points recoverable from response")
	}
	return points, nil
}

func decodeKeyPoints(resp string) []domain.KeyPoint {
	if items, ok := structured.DecodeItems(resp); ok {
		points := make([]domain.KeyPoint, 0, len(items))
		for _, m := range items {
			points = append(points, domain.KeyPoint{
				Concept:     structured.Str(m, "concept", "name", "title"),
				Description: structured.Str(m, "description", "summary", "detail"),
				Importance:  domain.Importance(structured.Str(m, "importance")),
				Category:    structured.Str(m, "category"),
				Examples:    structured.StrSlice(m, "examples"),
			})
		}
		return points
	}
	// Backend ignored the JSON instruction entirely; mine the prose.
	var points []domain.KeyPoint
	for _, li := range structured.LineItems(resp) {
		points = append(points, domain.KeyPoint{
			Concept:     li.Title,
			Description: li.Body,
		})
	}
	return points
}

// NormalizeKeyPoints fills defaults, trims and caps text fields, coerces
// out-of-range importance to medium, drops entries without a concept and
// removes case-insensitive concept duplicates (first occurrence wins).
// Applying it to an already-normalized sequence is a no-op.
func NormalizeKeyPoints(points []domain.KeyPoint, max int) []domain.KeyPoint {
	out := make([]domain.KeyPoint, 0, len(points))
	seen := make(map[string]bool, len(points))
	for _, p := range points {
		p.Concept = structured.CleanText(p.Concept, conceptMaxLen)
		if p.Concept == "" {
			continue
		}
		key := normalizeKey(p.Concept)
		if seen[key] {
			continue
		}
		seen[key] = true

		p.Description = structured.CleanText(p.Description, descriptionMaxLen)
		if p.Description == "" {
			p.Description = p.Concept
		}
		if !p.Importance.Valid() {
			p.Importance = domain.ImportanceMedium
		}
		p.Category = structured.CleanText(p.Category, conceptMaxLen)
		examples := make([]string, 0, len(p.Examples))
		for _, ex := range p.Examples {
			if ex = structured.CleanText(ex, descriptionMaxLen); ex != "" {
				examples = append(examples, ex)
			}
		}
		p.Examples = examples

		out = append(out, p)
		if max > 0 && len(out) >= max {
			break
		}
	}
	return out
}
