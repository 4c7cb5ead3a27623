package blocks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"strings"

	"github.com/google/uuid"

	"github.com/rubiojr/kallitechnia/pkg/log"
	"github.com/rubiojr/kallitechnia/pkg/media"
)

// Skip reasons reported in Result.Skipped.
const (
	ReasonInvalid        = "invalid-section"
	ReasonMissingKind    = "missing-blocktype"
	ReasonTenantMismatch = "tenant-mismatch"
	ReasonNoRenderer     = "no-renderer"
	ReasonRenderError    = "render-error"
)

// Skip records one section that did not make it into the page.
type Skip struct {
	Index  int    `json:"index"`
	Kind   string `json:"kind,omitempty"`
	Reason string `json:"reason"`
	Err    string `json:"error,omitempty"`
}

// Result is the output of one render pass.
type Result struct {
	PassID   string        `json:"pass_id"`
	HTML     template.HTML `json:"html"`
	Rendered int           `json:"rendered"`
	Kinds    []string      `json:"kinds"`
	Skipped  []Skip        `json:"skipped"`
}

// Pipeline renders section lists for one tenant. It holds no per-request
// state and is safe for concurrent use.
type Pipeline struct {
	Tenant string
	Logger Logger
	Media  *media.Resolver
	Forms  FormSource
	// Dev shows authoring hints inside sections with missing content.
	Dev bool
}

// NewPipeline returns a pipeline with a silent logger and the default media
// origin.
func NewPipeline(tenant string) *Pipeline {
	return &Pipeline{
		Tenant: tenant,
		Logger: log.Nop(),
		Media:  media.NewResolver(""),
	}
}

// Pass is the state of a single render call. Warnings with the same key are
// logged once per pass.
type Pass struct {
	ID     uuid.UUID
	logger Logger
	seen   map[string]struct{}
}

func newPass(logger Logger) *Pass {
	return &Pass{ID: uuid.New(), logger: logger, seen: make(map[string]struct{})}
}

func (p *Pass) warnOnce(key, format string, args ...any) {
	if _, ok := p.seen[key]; ok {
		return
	}
	p.seen[key] = struct{}{}
	p.logger.Warnf(format, args...)
}

// RenderJSON renders a raw JSON array of sections. Anything other than an
// array yields an empty result.
func (p *Pipeline) RenderJSON(ctx context.Context, raw []byte, page PageContext) Result {
	var sections []json.RawMessage
	if err := json.Unmarshal(raw, &sections); err != nil {
		sections = nil
	}
	return p.Render(ctx, sections, page)
}

// Render renders sections in order, skipping the ones that cannot be
// rendered. It never fails.
func (p *Pipeline) Render(ctx context.Context, sections []json.RawMessage, page PageContext) Result {
	logger := p.Logger
	if logger == nil {
		logger = log.Nop()
	}
	pass := newPass(logger)
	res := Result{PassID: pass.ID.String(), Kinds: []string{}, Skipped: []Skip{}}
	if len(sections) == 0 {
		return res
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var out strings.Builder
	for i, raw := range sections {
		b, err := parseAt(raw, p.Tenant, i)
		if err != nil {
			res.Skipped = append(res.Skipped, p.skip(pass, i, raw, err))
			continue
		}

		rc := &RenderContext{
			Ctx:   ctx,
			Page:  page,
			Index: i,
			Kind:  b.Kind(),
			Media: p.Media,
			Forms: p.Forms,
			Dev:   p.Dev,
			pass:  pass,
		}
		html, err := safeRender(b, rc)
		if err != nil {
			logger.Errorf("Error rendering %s at index %d: %v", b.Kind(), i, err)
			logger.Errorf("Section data: %s", indent(raw))
			res.Skipped = append(res.Skipped, Skip{Index: i, Kind: b.Kind(), Reason: ReasonRenderError, Err: err.Error()})
			continue
		}
		out.WriteString(string(html))
		res.Rendered++
		res.Kinds = append(res.Kinds, b.Kind())
	}
	res.HTML = template.HTML(out.String())
	return res
}

func (p *Pipeline) skip(pass *Pass, i int, raw json.RawMessage, err error) Skip {
	var perr *ParseError
	kind := ""
	if errors.As(err, &perr) {
		kind = perr.Kind
	}
	s := Skip{Index: i, Kind: kind, Err: err.Error()}
	switch {
	case errors.Is(err, ErrNotRecord):
		s.Reason = ReasonInvalid
		pass.warnOnce(fmt.Sprintf("invalid-section-%d", i), "Skipping invalid section at index %d", i)
	case errors.Is(err, ErrMissingKind):
		s.Reason = ReasonMissingKind
		pass.warnOnce(fmt.Sprintf("missing-blocktype-%d", i), "Skipping section at index %d - missing blockType", i)
	case errors.Is(err, ErrTenantMismatch):
		s.Reason = ReasonTenantMismatch
		pass.warnOnce("tenant-mismatch-"+kind, "Block type %q does not match tenant %q - skipping", kind, p.Tenant)
	case errors.Is(err, ErrUnknownKind):
		s.Reason = ReasonNoRenderer
		pass.warnOnce("no-renderer-"+kind, "No renderer found for block type: %s - skipping", kind)
	default:
		s.Reason = ReasonRenderError
		pass.logger.Errorf("Error decoding %s at index %d: %v", kind, i, err)
		pass.logger.Errorf("Section data: %s", indent(raw))
	}
	return s
}

// safeRender turns a renderer panic into an error.
func safeRender(b Block, rc *RenderContext) (html template.HTML, err error) {
	defer func() {
		if r := recover(); r != nil {
			html = ""
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return b.Render(rc)
}

func indent(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
