package agents

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/yungbote/studypath-backend/internal/domain"
	"github.com/yungbote/studypath-backend/internal/platform/envutil"
	"github.com/yungbote/studypath-backend/internal/platform/logger"
)

// Input keys shared by the workflow layer and the agents.
const (
	InputURL             = "url"
	InputIncludeMetadata = "include_metadata"
)

// DocumentParser turns a URL into read-only DocumentContent via the fetch
// collaborator, stripping markup residue and capping content length.
type DocumentParser struct {
	*BaseAgent
	loader   DocumentLoader
	maxChars int
}

func NewDocumentParser(log *logger.Logger, events *EventBus, loader DocumentLoader) *DocumentParser {
	p := &DocumentParser{
		loader:   loader,
		maxChars: envutil.Int("DOC_MAX_CONTENT_CHARS", 50000),
	}
	cfg := Config{
		Timeout:    envutil.Dur("AGENT_PARSER_TIMEOUT", 30*time.Second),
		MaxRetries: envutil.Int("AGENT_PARSER_RETRIES", 2),
		BaseDelay:  envutil.Dur("AGENT_RETRY_BASE_DELAY", time.Second),
	}
	p.BaseAgent = newBase("document_parser", cfg, log, events, p.validateInput, p.parse)
	return p
}

func (p *DocumentParser) validateInput(input map[string]any) error {
	raw, _ := input[InputURL].(string)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Errf(CodeInvalidInput, "url is required")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Errf(CodeInvalidInput, "url must be absolute http(s)")
	}
	return nil
}

func (p *DocumentParser) parse(ctx context.Context, input map[string]any, _ *domain.AgentContext) (any, error) {
	src := strings.TrimSpace(input[InputURL].(string))
	title, raw, err := p.loader.Load(ctx, src)
	if err != nil {
		ae := Classify(err)
		if ae.Code == CodeUnknown {
			ae = Wrap(CodeNetwork, "load document", err)
		}
		return nil, ae
	}

	text := stripResidue(raw)
	text = capBytes(text, p.maxChars)
	if strings.TrimSpace(text) == "" {
		return nil, Errf(CodeParsing, "no textual content at %s", src)
	}
	if strings.TrimSpace(title) == "" {
		title = src
	}

	doc := domain.DocumentContent{
		Title:     strings.TrimSpace(title),
		Content:   text,
		SourceURL: src,
	}
	if want, _ := input[InputIncludeMetadata].(bool); want {
		doc.Metadata = map[string]any{
			"length":   len(text),
			"words":    len(strings.Fields(text)),
			"language": detectLanguage(text),
		}
	}
	return doc, nil
}

var (
	tagRE    = regexp.MustCompile(`<[^>]{1,200}>`)
	multiNL  = regexp.MustCompile(`\n{3,}`)
	multiSP  = regexp.MustCompile(`[ \t]{2,}`)
	entities = strings.NewReplacer("&nbsp;", " ", "&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&#39;", "'")
)

// stripResidue removes control characters and leftover markup while keeping
// paragraph structure intact.
func stripResidue(s string) string {
	s = tagRE.ReplaceAllString(s, " ")
	s = entities.Replace(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\n' || r == '\t' || !unicode.IsControl(r) {
			b.WriteRune(r)
		}
	}
	s = multiSP.ReplaceAllString(b.String(), " ")
	s = multiNL.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// detectLanguage is a best-effort character-class ratio heuristic; it is only
// attached as metadata and never gates the pipeline.
func detectLanguage(s string) string {
	var latin, cyrillic, han, kana, hangul, arabic, total int
	for _, r := range s {
		if !unicode.IsLetter(r) {
			continue
		}
		total++
		switch {
		case r < 128:
			latin++
		case unicode.Is(unicode.Cyrillic, r):
			cyrillic++
		case unicode.Is(unicode.Han, r):
			han++
		case unicode.Is(unicode.Hiragana, r) || unicode.Is(unicode.Katakana, r):
			kana++
		case unicode.Is(unicode.Hangul, r):
			hangul++
		case unicode.Is(unicode.Arabic, r):
			arabic++
		}
		if total >= 4000 {
			break
		}
	}
	if total == 0 {
		return "unknown"
	}
	ratio := func(n int) float64 { return float64(n) / float64(total) }
	switch {
	case ratio(kana) > 0.05:
		return "ja"
	case ratio(han) > 0.3:
		return "zh"
	case ratio(hangul) > 0.3:
		return "ko"
	case ratio(cyrillic) > 0.3:
		return "ru"
	case ratio(arabic) > 0.3:
		return "ar"
	case ratio(latin) > 0.5:
		return "en"
	}
	return "unknown"
}
