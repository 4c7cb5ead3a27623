package cms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rubiojr/kallitechnia/pkg/log"
)

const (
	DefaultBaseURL = "https://cms.ftiaxesite.gr"
	DefaultTenant  = "kallitechnia"

	MsgSubmitFailed = "Failed to submit form"
	MsgSubmitError  = "An error occurred while submitting the form. Please try again."
)

// MaxResponseSize caps how much of a CMS response body is read.
const MaxResponseSize = 8 << 20

var (
	// ErrMalformedResponse is returned for a 200 response that is not JSON.
	// Such bodies are never cached or snapshotted.
	ErrMalformedResponse = errors.New("malformed CMS response")
	ErrResponseTooLarge  = errors.New("CMS response too large")
)

var numericRef = regexp.MustCompile(`^\d+$`)

// StatusError is returned when the CMS answers with a non-200 status.
type StatusError struct {
	StatusCode int
	Path       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API request failed with status %d", e.StatusCode)
}

// IsNotFound reports whether err is a 404 from the CMS.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// Snapshots persists successful responses so pages can still be served
// while the CMS is unreachable.
type Snapshots interface {
	Put(ctx context.Context, key string, body []byte) error
	Get(ctx context.Context, key string) ([]byte, time.Time, bool, error)
}

// TTLs controls how long responses are reused, per request kind.
type TTLs struct {
	Tenant   time.Duration
	Homepage time.Duration
	Page     time.Duration
	Posts    time.Duration
}

func DefaultTTLs() TTLs {
	return TTLs{
		Tenant:   time.Hour,
		Homepage: time.Minute,
		Posts:    time.Minute,
	}
}

type kind string

const (
	kindTenant   kind = "tenant"
	kindHomepage kind = "homepage"
	kindPage     kind = "page"
	kindPosts    kind = "posts"
	kindPost     kind = "post"
	kindForm     kind = "form"
)

// Client talks to the Payload REST API of the CMS.
type Client struct {
	BaseURL    string
	TenantCode string
	HTTP       *http.Client
	Logger     *log.Logger
	TTL        TTLs
	Snapshots  Snapshots

	cache *responseCache
}

type Option func(*Client)

func WithTenant(code string) Option {
	return func(c *Client) { c.TenantCode = code }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.HTTP = hc }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.HTTP = &http.Client{Timeout: d} }
}

func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.Logger = l }
}

func WithTTLs(t TTLs) Option {
	return func(c *Client) { c.TTL = t }
}

func WithSnapshots(s Snapshots) Option {
	return func(c *Client) { c.Snapshots = s }
}

// New returns a client for the CMS at baseURL, DefaultBaseURL when empty.
func New(baseURL string, opts ...Option) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		BaseURL:    baseURL,
		TenantCode: DefaultTenant,
		HTTP:       &http.Client{Timeout: 30 * time.Second},
		Logger:     log.ForService("cms"),
		TTL:        DefaultTTLs(),
		cache:      newResponseCache(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Purge drops every cached response.
func (c *Client) Purge() {
	c.cache.purge()
}

func (c *Client) ttl(k kind) time.Duration {
	switch k {
	case kindTenant:
		return c.TTL.Tenant
	case kindHomepage:
		return c.TTL.Homepage
	case kindPage:
		return c.TTL.Page
	case kindPosts, kindPost:
		return c.TTL.Posts
	}
	return 0
}

func snapshotKey(k kind, path string) string {
	return string(k) + ":" + path
}

// Tenant looks up a tenant by its code. A nil tenant and nil error means
// the code is unknown.
func (c *Client) Tenant(ctx context.Context, code string) (*Tenant, error) {
	path := fmt.Sprintf("/api/tenants?where[code][equals]=%s&limit=1&depth=0", url.QueryEscape(code))
	var res Paged[Tenant]
	if err := c.getJSON(ctx, kindTenant, path, &res); err != nil {
		c.Logger.Warnf("Error fetching tenant %q: %v", code, err)
		return nil, err
	}
	if len(res.Docs) == 0 {
		return nil, nil
	}
	return &res.Docs[0], nil
}

func (c *Client) Homepage(ctx context.Context, tenantID ID) (*Homepage, error) {
	path := fmt.Sprintf("/api/homepages?where[tenant][equals]=%s&limit=1&depth=2", url.QueryEscape(tenantID.String()))
	var res Paged[Homepage]
	if err := c.getJSON(ctx, kindHomepage, path, &res); err != nil {
		c.Logger.Warnf("Error fetching homepage: %v", err)
		return nil, err
	}
	if len(res.Docs) == 0 {
		return nil, nil
	}
	return &res.Docs[0], nil
}

// PageBySlug is never cached: editors expect page changes to show at once.
func (c *Client) PageBySlug(ctx context.Context, slug string, tenantID ID) (*Page, error) {
	path := fmt.Sprintf("/api/pages?where[and][0][slug][equals]=%s&where[and][1][tenant][equals]=%s&limit=1&depth=2",
		url.QueryEscape(slug), url.QueryEscape(tenantID.String()))
	var res Paged[Page]
	if err := c.getJSON(ctx, kindPage, path, &res); err != nil {
		c.Logger.Warnf("Error fetching page %q: %v", slug, err)
		return nil, err
	}
	if len(res.Docs) == 0 {
		if log.DebugEnabledFor(c.Logger.Name()) {
			c.debugMissingPage(ctx, slug, tenantID)
		}
		return nil, nil
	}
	return &res.Docs[0], nil
}

// PageSlugs lists the slugs of up to 50 pages of a tenant.
func (c *Client) PageSlugs(ctx context.Context, tenantID ID) ([]string, error) {
	path := fmt.Sprintf("/api/pages?where[tenant][equals]=%s&limit=50&depth=0", url.QueryEscape(tenantID.String()))
	var res Paged[Page]
	if err := c.getJSON(ctx, kindPage, path, &res); err != nil {
		return nil, err
	}
	slugs := make([]string, 0, len(res.Docs))
	for _, p := range res.Docs {
		slugs = append(slugs, p.Slug)
	}
	return slugs, nil
}

func (c *Client) debugMissingPage(ctx context.Context, slug string, tenantID ID) {
	slugs, err := c.PageSlugs(ctx, tenantID)
	if err != nil {
		c.Logger.Debugf("Page %q not found and listing tenant pages failed: %v", slug, err)
		return
	}
	c.Logger.Debugf("Page %q not found for tenant %s, available pages: %s", slug, tenantID, strings.Join(slugs, ", "))
}

// Posts returns a page of posts, newest first. On failure it returns an
// empty result carrying the requested limit and page, along with the error.
func (c *Client) Posts(ctx context.Context, tenantID ID, limit, page int) (*Paged[Post], error) {
	if limit <= 0 {
		limit = 10
	}
	if page <= 0 {
		page = 1
	}
	path := fmt.Sprintf("/api/posts?where[tenant][equals]=%s&limit=%d&page=%d&sort=-publishedAt&depth=2",
		url.QueryEscape(tenantID.String()), limit, page)
	var res Paged[Post]
	if err := c.getJSON(ctx, kindPosts, path, &res); err != nil {
		c.Logger.Warnf("Error fetching posts: %v", err)
		return emptyPage[Post](limit, page), err
	}
	if res.Docs == nil {
		res.Docs = []Post{}
	}
	return &res, nil
}

func (c *Client) PostBySlug(ctx context.Context, slug string, tenantID ID) (*Post, error) {
	path := fmt.Sprintf("/api/posts?where[and][0][slug][equals]=%s&where[and][1][tenant][equals]=%s&limit=1&depth=2",
		url.QueryEscape(slug), url.QueryEscape(tenantID.String()))
	var res Paged[Post]
	if err := c.getJSON(ctx, kindPost, path, &res); err != nil {
		c.Logger.Warnf("Error fetching post %q: %v", slug, err)
		return nil, err
	}
	if len(res.Docs) == 0 {
		return nil, nil
	}
	return &res.Docs[0], nil
}

// FormByIDOrSlug resolves a form reference. Numeric references are ids;
// anything else is tried as a slug first and then as an id.
func (c *Client) FormByIDOrSlug(ctx context.Context, ref string) (*Form, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, nil
	}
	if numericRef.MatchString(ref) {
		return c.formByID(ctx, ref)
	}

	path := fmt.Sprintf("/api/forms?where[slug][equals]=%s&limit=1&depth=2", url.QueryEscape(ref))
	var res Paged[Form]
	if err := c.getJSON(ctx, kindForm, path, &res); err != nil {
		c.Logger.Warnf("Error fetching form %q: %v", ref, err)
		return nil, err
	}
	if len(res.Docs) > 0 {
		return &res.Docs[0], nil
	}
	return c.formByID(ctx, ref)
}

func (c *Client) formByID(ctx context.Context, id string) (*Form, error) {
	path := fmt.Sprintf("/api/forms/%s?depth=2", url.PathEscape(id))
	var f Form
	if err := c.getJSON(ctx, kindForm, path, &f); err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		c.Logger.Warnf("Error fetching form %q: %v", id, err)
		return nil, err
	}
	return &f, nil
}

type submitRequest struct {
	FormSlug string         `json:"formSlug"`
	Data     map[string]any `json:"data"`
}

type submitResponse struct {
	Message     string          `json:"message"`
	Error       string          `json:"error"`
	RedirectURL string          `json:"redirectUrl"`
	Errors      json.RawMessage `json:"errors"`
}

// SubmitForm posts values to the CMS form endpoint. Failures are reported
// in the result, never as an error.
func (c *Client) SubmitForm(ctx context.Context, slug string, values map[string]any) SubmitResult {
	payload, err := json.Marshal(submitRequest{FormSlug: slug, Data: values})
	if err != nil {
		c.Logger.Errorf("Error encoding submission for form %q: %v", slug, err)
		return SubmitResult{Message: MsgSubmitError}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/forms/submit", bytes.NewReader(payload))
	if err != nil {
		c.Logger.Errorf("Error creating submission request: %v", err)
		return SubmitResult{Message: MsgSubmitError}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		c.Logger.Errorf("Error submitting form %q: %v", slug, err)
		return SubmitResult{Message: MsgSubmitError}
	}
	defer resp.Body.Close()

	var out submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil && resp.StatusCode == http.StatusOK {
		c.Logger.Errorf("Error decoding submission response for form %q: %v", slug, err)
		return SubmitResult{Message: MsgSubmitError}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := out.Error
		if msg == "" {
			msg = MsgSubmitFailed
		}
		c.Logger.Warnf("Form %q submission rejected with status %d: %s", slug, resp.StatusCode, msg)
		return SubmitResult{Message: msg, Errors: fieldErrors(out.Errors)}
	}
	return SubmitResult{Success: true, Message: out.Message, RedirectURL: out.RedirectURL}
}

// fieldErrors accepts {"field":"msg"} and [{"field":..,"message":..}].
func fieldErrors(raw json.RawMessage) map[string]string {
	if len(raw) == 0 {
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal(raw, &m); err == nil {
		return m
	}
	var list []struct {
		Field   string `json:"field"`
		Name    string `json:"name"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil
	}
	m = make(map[string]string, len(list))
	for _, e := range list {
		name := e.Field
		if name == "" {
			name = e.Name
		}
		if name != "" {
			m[name] = e.Message
		}
	}
	if len(m) == 0 {
		return nil
	}
	return m
}

// HomepageData returns the homepage sections of the configured tenant, or
// nil when either the tenant or its homepage is missing.
func (c *Client) HomepageData(ctx context.Context) ([]json.RawMessage, error) {
	t, err := c.Tenant(ctx, c.TenantCode)
	if err != nil || t == nil {
		return nil, err
	}
	hp, err := c.Homepage(ctx, t.ID)
	if err != nil || hp == nil {
		return nil, err
	}
	return hp.Sections, nil
}

// Page returns the page with slug for the configured tenant.
func (c *Client) Page(ctx context.Context, slug string) (*Page, error) {
	t, err := c.Tenant(ctx, c.TenantCode)
	if err != nil || t == nil {
		return nil, err
	}
	return c.PageBySlug(ctx, slug, t.ID)
}

// PageSections is Page reduced to its sections.
func (c *Client) PageSections(ctx context.Context, slug string) ([]json.RawMessage, error) {
	p, err := c.Page(ctx, slug)
	if err != nil || p == nil {
		return nil, err
	}
	return p.Sections, nil
}

func (c *Client) getJSON(ctx context.Context, k kind, path string, out any) error {
	body, err := c.get(ctx, k, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding %s response: %w", k, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, k kind, path string) ([]byte, error) {
	if body, ok := c.cache.get(path); ok {
		return body, nil
	}

	body, err := c.fetch(ctx, path)
	if err == nil && !json.Valid(body) {
		err = fmt.Errorf("%w: %s", ErrMalformedResponse, path)
	}
	if err != nil {
		if snap, ok := c.snapshot(ctx, k, path); ok {
			return snap, nil
		}
		return nil, err
	}

	c.cache.put(path, body, c.ttl(k))
	if c.Snapshots != nil && k != kindForm {
		if err := c.Snapshots.Put(ctx, snapshotKey(k, path), body); err != nil {
			c.Logger.Warnf("Error saving snapshot for %s: %v", path, err)
		}
	}
	return body, nil
}

func (c *Client) snapshot(ctx context.Context, k kind, path string) ([]byte, bool) {
	if c.Snapshots == nil || k == kindForm {
		return nil, false
	}
	body, updated, ok, err := c.Snapshots.Get(ctx, snapshotKey(k, path))
	if err != nil {
		c.Logger.Warnf("Error reading snapshot for %s: %v", path, err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	c.Logger.Warnf("CMS unavailable, serving %s snapshot from %s", k, updated.Format(time.RFC3339))
	return body, true
}

func (c *Client) fetch(ctx context.Context, path string) ([]byte, error) {
	c.Logger.Debugf("GET %s%s", c.BaseURL, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Path: path}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if len(body) > MaxResponseSize {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrResponseTooLarge, path, MaxResponseSize)
	}
	return body, nil
}
