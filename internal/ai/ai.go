package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/garnizeh/skilltrials/internal/config"
	"github.com/garnizeh/skilltrials/internal/models"
	"github.com/garnizeh/skilltrials/pkg/ollama"
	"github.com/garnizeh/skilltrials/pkg/repository"
)

// QuestionTemplate is the name of the prompt template used for drafting questions.
const QuestionTemplate = "questions"

var (
	ErrTemplateNotFound = errors.New("question template not found")
	ErrSchemaNotFound   = errors.New("output schema not found")
	ErrInvalidOutput    = errors.New("model output rejected")
)

// LLM is the part of the Ollama client the generator uses.
type LLM interface {
	GenerateFormat(ctx context.Context, model, prompt string, format json.RawMessage) (ollama.GenerateResult, error)
}

// Draft is a generated question that has not been stored.
type Draft struct {
	QuestionText string   `json:"question_text"`
	Difficulty   string   `json:"difficulty"`
	Options      []string `json:"options"`
	Answers      []string `json:"answers"`
}

type draftEnvelope struct {
	Questions []Draft `json:"questions"`
}

// Generator drafts multiple-choice questions for a job with a local LLM.
type Generator struct {
	llm       LLM
	cfg       config.EngineConfig
	templates repository.TemplateRepo
	loader    *Loader
	logger    *slog.Logger
}

func NewGenerator(ctx context.Context, llm LLM, cfg config.EngineConfig, sr repository.SchemaRepo, tr repository.TemplateRepo, logger *slog.Logger) (*Generator, error) {
	if llm == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	if sr == nil {
		return nil, fmt.Errorf("schema repo is required")
	}
	if tr == nil {
		return nil, fmt.Errorf("template repo is required")
	}
	if cfg.TemplateVersion == "" {
		cfg.TemplateVersion = "v1"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	loader, err := NewLoader(ctx, sr)
	if err != nil {
		return nil, fmt.Errorf("create loader: %w", err)
	}

	return &Generator{llm: llm, cfg: cfg, templates: tr, loader: loader, logger: logger}, nil
}

// ReloadSchemas refreshes the compiled schema cache from the repository.
func (g *Generator) ReloadSchemas(ctx context.Context) error {
	return g.loader.Reload(ctx)
}

// Versions lists the schema versions the generator can validate against.
func (g *Generator) Versions() []string {
	return g.loader.Versions()
}

// Generate renders the question template for job, asks the model for count
// questions and returns the drafts that pass schema validation.
func (g *Generator) Generate(ctx context.Context, job models.Job, count int, difficulty string) ([]Draft, error) {
	tpl, err := g.templates.GetTemplate(ctx, QuestionTemplate, g.cfg.TemplateVersion)
	if err != nil {
		return nil, fmt.Errorf("load template: %w", err)
	}
	if tpl == nil || tpl.TemplateTxt == "" {
		return nil, fmt.Errorf("%w: %s:%s", ErrTemplateNotFound, QuestionTemplate, g.cfg.TemplateVersion)
	}

	schemaVer := tpl.Version
	if tpl.SchemaVer != nil && *tpl.SchemaVer != "" {
		schemaVer = *tpl.SchemaVer
	}
	schema, ok := g.loader.GetSchema(schemaVer)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSchemaNotFound, schemaVer)
	}
	raw, _ := g.loader.RawSchema(schemaVer)

	prompt, err := ollama.RenderTemplate(tpl.TemplateTxt, map[string]any{
		"Job":        job,
		"Count":      count,
		"Difficulty": difficulty,
	})
	if err != nil {
		return nil, err
	}

	ctxReq, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	out, err := g.llm.GenerateFormat(ctxReq, g.cfg.Model, prompt, raw)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}

	doc := extractJSON(out.Text)
	if doc == "" {
		g.logger.Warn("model output without JSON", "job_id", job.ID, "raw", out.Text)
		return nil, fmt.Errorf("%w: no JSON object found", ErrInvalidOutput)
	}

	verrs, err := schema.ValidateBytes(ctxReq, []byte(doc))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	if len(verrs) > 0 {
		msgs := make([]string, 0, len(verrs))
		for _, v := range verrs {
			msgs = append(msgs, v.PropertyPath+": "+v.Message)
		}
		g.logger.Warn("model output does not match schema", "job_id", job.ID, "schema", schemaVer, "errors", msgs)
		return nil, fmt.Errorf("%w: %s", ErrInvalidOutput, strings.Join(msgs, "; "))
	}

	drafts, err := ParseDrafts(doc, difficulty)
	if err != nil {
		return nil, err
	}
	if len(drafts) > count {
		drafts = drafts[:count]
	}
	g.logger.Info("questions drafted", "job_id", job.ID, "requested", count, "kept", len(drafts), "model", g.cfg.Model)

	return drafts, nil
}

// ParseDrafts decodes model output into drafts. Answers that are not one of
// the options are dropped, and so are drafts left without answers.
func ParseDrafts(s, defaultDifficulty string) ([]Draft, error) {
	doc := extractJSON(s)
	if doc == "" {
		return nil, fmt.Errorf("%w: no JSON object found", ErrInvalidOutput)
	}

	var env draftEnvelope
	if err := json.Unmarshal([]byte(doc), &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}

	out := make([]Draft, 0, len(env.Questions))
	for _, d := range env.Questions {
		d.QuestionText = strings.TrimSpace(d.QuestionText)
		if d.QuestionText == "" || len(d.Options) < 2 {
			continue
		}
		answers := make([]string, 0, len(d.Answers))
		for _, a := range d.Answers {
			if slices.Contains(d.Options, a) && !slices.Contains(answers, a) {
				answers = append(answers, a)
			}
		}
		if len(answers) == 0 {
			continue
		}
		d.Answers = answers
		if d.Difficulty == "" {
			d.Difficulty = defaultDifficulty
		}
		out = append(out, d)
	}

	return out, nil
}

// extractJSON returns the substring from the first '{' to the last '}' in the
// input, which copes with models that wrap JSON in prose or markdown fences.
func extractJSON(s string) string {
	first := strings.Index(s, "{")
	last := strings.LastIndex(s, "}")
	if first == -1 || last == -1 || last < first {
		return ""
	}
	return s[first : last+1]
}
