package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"text/template"

	"github.com/garnizeh/skilltrials/internal/ai"
	"github.com/garnizeh/skilltrials/internal/validator"
	"github.com/garnizeh/skilltrials/pkg/repository"
)

const maxTemplateSize = 64 * 1024

// AIHandler manages the prompt templates and output schemas behind question
// drafting.
type AIHandler struct {
	generator    QuestionGenerator
	schemaRepo   repository.SchemaRepo
	templateRepo repository.TemplateRepo
}

func NewAIHandler(generator QuestionGenerator, schemaRepo repository.SchemaRepo, templateRepo repository.TemplateRepo) *AIHandler {
	return &AIHandler{generator: generator, schemaRepo: schemaRepo, templateRepo: templateRepo}
}

func invalidField(field, msg string) error {
	return &validator.ValidationError{Errors: map[string]string{field: msg}}
}

func (h *AIHandler) reload(r *http.Request) error {
	if h.generator == nil {
		return nil
	}
	return h.generator.ReloadSchemas(r.Context())
}

func (h *AIHandler) ReloadHandler(w http.ResponseWriter, r *http.Request) {
	if h.generator == nil {
		writeError(w, http.StatusServiceUnavailable, "question generator unavailable")
		return
	}
	if err := h.reload(r); err != nil {
		writeErr(w, r, fmt.Errorf("reload schemas: %w", err))
		return
	}

	writeOK(w, http.StatusOK, nil)
}

// ListSchemasHandler returns every schema, or one when ?version= is set.
func (h *AIHandler) ListSchemasHandler(w http.ResponseWriter, r *http.Request) {
	if version := r.URL.Query().Get("version"); version != "" {
		s, err := h.schemaRepo.GetSchemaByVersion(r.Context(), version)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		if s == nil {
			writeErr(w, r, repository.ErrNotFound)
			return
		}
		writeOK(w, http.StatusOK, envelope{"schema": s})
		return
	}

	rows, err := h.schemaRepo.ListSchemas(r.Context())
	if err != nil {
		writeErr(w, r, fmt.Errorf("list schemas: %w", err))
		return
	}

	writeOK(w, http.StatusOK, envelope{"schemas": rows})
}

type schemaPayload struct {
	Version     string          `json:"version" validate:"required,max=50"`
	Description string          `json:"description,omitempty" validate:"max=500"`
	SchemaJSON  json.RawMessage `json:"schema_json" validate:"required"`
}

// CreateOrUpdateSchemaHandler compiles and stores a schema, then refreshes
// the generator's cache.
func (h *AIHandler) CreateOrUpdateSchemaHandler(w http.ResponseWriter, r *http.Request) {
	var p schemaPayload
	if err := decode(r, &p); err != nil {
		writeErr(w, r, err)
		return
	}

	if _, err := ai.Compile(string(p.SchemaJSON)); err != nil {
		writeErr(w, r, invalidField("schema_json", err.Error()))
		return
	}

	id, err := h.schemaRepo.CreateSchema(r.Context(), p.Version, p.Description, string(p.SchemaJSON))
	if err != nil {
		writeErr(w, r, fmt.Errorf("store schema: %w", err))
		return
	}
	if err := h.reload(r); err != nil {
		logger.Warn("reload schemas after store", slog.String("version", p.Version), slog.Any("err", err))
	}

	writeOK(w, http.StatusOK, envelope{"id": id})
}

// DeleteSchemaHandler deletes schema by version (expects ?version=...)
func (h *AIHandler) DeleteSchemaHandler(w http.ResponseWriter, r *http.Request) {
	version := r.URL.Query().Get("version")
	if version == "" {
		writeErr(w, r, invalidField("version", "is required"))
		return
	}

	if err := h.schemaRepo.DeleteSchema(r.Context(), version); err != nil {
		writeErr(w, r, fmt.Errorf("delete schema: %w", err))
		return
	}
	if err := h.reload(r); err != nil {
		logger.Warn("reload schemas after delete", slog.String("version", version), slog.Any("err", err))
	}

	writeOK(w, http.StatusOK, nil)
}

// ListTemplatesHandler returns all templates, or one when ?name= and
// ?version= are set.
func (h *AIHandler) ListTemplatesHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if name, version := q.Get("name"), q.Get("version"); name != "" || version != "" {
		if name == "" || version == "" {
			writeErr(w, r, invalidField("name", "name and version are required together"))
			return
		}
		t, err := h.templateRepo.GetTemplate(r.Context(), name, version)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		if t == nil {
			writeErr(w, r, repository.ErrNotFound)
			return
		}
		writeOK(w, http.StatusOK, envelope{"template": t})
		return
	}

	rows, err := h.templateRepo.ListTemplates(r.Context())
	if err != nil {
		writeErr(w, r, fmt.Errorf("list templates: %w", err))
		return
	}

	writeOK(w, http.StatusOK, envelope{"templates": rows})
}

type templatePayload struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Version     string  `json:"version" validate:"required,max=50"`
	TemplateTxt string  `json:"template_text" validate:"required"`
	SchemaVer   *string `json:"schema_version,omitempty"`
}

// CreateOrUpdateTemplateHandler stores a template, enforcing size limit
func (h *AIHandler) CreateOrUpdateTemplateHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxTemplateSize+1))
	if err != nil {
		writeErr(w, r, errBadRequest)
		return
	}
	if len(body) > maxTemplateSize {
		writeError(w, http.StatusRequestEntityTooLarge, "template too large")
		return
	}

	var p templatePayload
	if err := json.Unmarshal(body, &p); err != nil {
		writeErr(w, r, errBadRequest)
		return
	}
	if err := validate.Validate(&p); err != nil {
		writeErr(w, r, err)
		return
	}
	if _, err := template.New(p.Name).Parse(p.TemplateTxt); err != nil {
		writeErr(w, r, invalidField("template_text", err.Error()))
		return
	}

	id, err := h.templateRepo.CreateTemplate(r.Context(), p.Name, p.Version, p.TemplateTxt, p.SchemaVer, nil)
	if err != nil {
		writeErr(w, r, fmt.Errorf("store template: %w", err))
		return
	}

	writeOK(w, http.StatusOK, envelope{"id": id})
}

// DeleteTemplateHandler deletes a template
func (h *AIHandler) DeleteTemplateHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	name, version := q.Get("name"), q.Get("version")
	if name == "" || version == "" {
		writeErr(w, r, invalidField("name", "name and version are required together"))
		return
	}

	if err := h.templateRepo.DeleteTemplate(r.Context(), name, version); err != nil {
		writeErr(w, r, fmt.Errorf("delete template: %w", err))
		return
	}

	writeOK(w, http.StatusOK, nil)
}
