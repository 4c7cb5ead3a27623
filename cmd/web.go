package cmd

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/a-h/templ"
	"github.com/fsnotify/fsnotify"
	"github.com/klauspost/compress/gzhttp"
	"github.com/urfave/cli/v3"

	"github.com/rubiojr/kallitechnia/cmd/web/components"
	"github.com/rubiojr/kallitechnia/cmd/web/components/types"
	"github.com/rubiojr/kallitechnia/pkg/api"
	"github.com/rubiojr/kallitechnia/pkg/blocks"
	"github.com/rubiojr/kallitechnia/pkg/cms"
	"github.com/rubiojr/kallitechnia/pkg/config"
	"github.com/rubiojr/kallitechnia/pkg/forms"
	applog "github.com/rubiojr/kallitechnia/pkg/log"
	"github.com/rubiojr/kallitechnia/pkg/media"
	"github.com/rubiojr/kallitechnia/pkg/proxy"
	"github.com/rubiojr/kallitechnia/pkg/realtime"
	"github.com/rubiojr/kallitechnia/pkg/storage"
	"github.com/rubiojr/kallitechnia/pkg/version"
)

//go:embed web/static/*
var staticFS embed.FS

//go:embed web/content/terms.md
var termsMarkdown []byte

var termsHTML = sync.OnceValue(func() template.HTML {
	return components.Markdown(termsMarkdown)
})

const (
	msgPreparing = "Το περιεχόμενο αυτής της σελίδας προετοιμάζεται."
	msgNoPosts   = "Δεν υπάρχουν διαθέσιμες δημοσιεύσεις αυτή τη στιγμή."
	msgNotFound  = "Η σελίδα που ζητήσατε δεν βρέθηκε."
	newsLimit    = 20
)

// WebCommand creates the web command serving the site, the download proxy
// and the JSON API.
func WebCommand() *cli.Command {
	return &cli.Command{
		Name:  "web",
		Usage: "Start the web server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "port",
				Usage: "Port to listen on (overrides the config file)",
			},
			&cli.StringFlag{
				Name:  "host",
				Usage: "Host to bind to (overrides the config file)",
			},
			&cli.BoolFlag{
				Name:  "dev",
				Usage: "Enable dev mode: block warnings, live reload, /debug and /api/render",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return startWebServer(ctx, c.String("config"), c.String("host"), c.String("port"), c.Bool("dev"))
		},
	}
}

// sitePage describes a CMS-backed page with a gradient header.
type sitePage struct {
	slug      string
	title     string
	subtitle  string
	empty     string
	cmsTitle  bool // the CMS page title replaces title
	component func(types.PageData) templ.Component
	body      func() template.HTML // static content when the CMS has no sections
}

var sitePages = map[string]sitePage{
	"/about": {
		slug:      "about",
		title:     "Ο Σύλλογος",
		empty:     msgPreparing,
		cmsTitle:  true,
		component: components.Page,
	},
	"/programs": {
		slug:      "programs",
		title:     "Τμήματα",
		subtitle:  "Ανακαλύψτε τα προγράμματά μας και βρείτε το ιδανικό τμήμα για εσάς ή το παιδί σας",
		empty:     msgPreparing,
		cmsTitle:  true,
		component: components.Page,
	},
	"/contact": {
		slug:      "contact",
		title:     "Επικοινωνία",
		subtitle:  "Είμαστε πάντα στη διάθεσή σας για οποιαδήποτε πληροφορία.",
		component: components.Contact,
	},
	"/registration": {
		slug:      "registration",
		title:     "Εγγραφές",
		subtitle:  "Γίνε μέλος της οικογένειας της Καλλιτεχνίας!",
		component: components.Registration,
	},
	"/terms": {
		slug:      "terms",
		title:     "Όροι Χρήσης",
		cmsTitle:  true,
		component: components.Page,
		body:      termsHTML,
	},
}

// site is everything derived from the configuration. It is swapped as a
// whole when the config file changes.
type site struct {
	config   *config.Config
	cms      *cms.Client
	pipeline *blocks.Pipeline
	media    *media.Resolver
	proxy    *proxy.Handler
}

// WebServer holds the server configuration and dependencies
type WebServer struct {
	site      atomic.Pointer[site]
	store     *storage.SnapshotStore
	hub       *realtime.Hub
	apiServer *api.Server
	logger    *applog.Logger
}

func newSite(cfg *config.Config, store *storage.SnapshotStore) *site {
	opts := []cms.Option{
		cms.WithTenant(cfg.Tenant),
		cms.WithTimeout(cfg.RequestTimeout.Duration),
		cms.WithTTLs(cms.TTLs{
			Tenant:   cfg.Cache.Tenant.Duration,
			Homepage: cfg.Cache.Homepage.Duration,
			Page:     cfg.Cache.Page.Duration,
			Posts:    cfg.Cache.Posts.Duration,
		}),
	}
	if store != nil {
		opts = append(opts, cms.WithSnapshots(store))
	}
	client := cms.New(cfg.CMSURL, opts...)
	resolver := media.NewResolver(cfg.CMSURL)

	pipeline := blocks.NewPipeline(cfg.Tenant)
	pipeline.Media = resolver
	pipeline.Forms = client
	pipeline.Dev = cfg.DevMode
	if cfg.DevMode {
		pipeline.Logger = applog.ForService("blocks")
	}

	return &site{
		config:   cfg,
		cms:      client,
		pipeline: pipeline,
		media:    resolver,
		proxy:    proxy.New(cfg.CMSURL, nil),
	}
}

// NewWebServer wires the site for cfg. store may be nil, in which case the
// CMS client keeps no snapshots.
func NewWebServer(cfg *config.Config, store *storage.SnapshotStore) *WebServer {
	s := &WebServer{
		store:  store,
		logger: applog.ForService("web"),
	}
	st := newSite(cfg, store)
	s.site.Store(st)
	s.apiServer = api.NewServer(st.pipeline, cfg.DevMode)
	if cfg.DevMode {
		s.hub = realtime.NewHub(0)
	}
	return s
}

func (s *WebServer) current() *site {
	return s.site.Load()
}

// Handler returns the full handler chain: request id, access log, CORS and
// gzip around the routes. The live reload socket bypasses gzip. A nil
// accessLog disables access logging.
func (s *WebServer) Handler(accessLog io.Writer) http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	root := http.NewServeMux()
	root.Handle("/", gzhttp.GzipHandler(mux))
	if s.hub != nil {
		root.Handle("GET /ws/reload", s.hub)
	}

	var handler http.Handler = api.CorsMiddleware(root)
	if accessLog != nil {
		handler = api.AccessLog(api.NewAccessLogger(accessLog))(handler)
	}
	return api.RequestID(handler)
}

// RegisterRoutes registers the site, proxy and API routes on mux.
func (s *WebServer) RegisterRoutes(mux *http.ServeMux) {
	s.apiServer.RegisterRoutes(mux)

	mux.HandleFunc("GET /{$}", s.handleHome)
	for path, sp := range sitePages {
		mux.HandleFunc("GET "+path, s.handleSitePage(path, sp))
	}
	mux.HandleFunc("GET /news", s.handleNews)
	mux.HandleFunc("GET /news/{slug}", s.handlePost)
	mux.HandleFunc("POST /forms/{slug}", s.handleForm)
	mux.HandleFunc("GET "+proxy.Prefix+"{path...}", s.handleDownload)
	mux.HandleFunc("GET /static/", s.handleStatic)
	if s.hub != nil {
		mux.HandleFunc("GET /debug", s.handleDebug)
	}
	mux.HandleFunc("/", s.handleNotFound)
}

// startWebServer starts the web server
func startWebServer(ctx context.Context, configPath, host, port string, dev bool) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	applyFlags(cfg, host, port, dev)

	store, err := storage.OpenDir(cfg.StorageDir)
	if err != nil {
		return fmt.Errorf("opening snapshot store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("Warning: failed to close snapshot store: %v", err)
		}
	}()

	webServer := NewWebServer(cfg, store)

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           webServer.Handler(os.Stderr),
		ReadHeaderTimeout: 10 * time.Second,
	}

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	go webServer.watchConfig(watchCtx, configPath, func(next *config.Config) {
		applyFlags(next, host, port, dev)
	})

	// Start server in goroutine
	go func() {
		log.Printf("Starting web server on http://%s", cfg.Addr())
		log.Printf("CMS: %s (tenant %s)", cfg.CMSURL, cfg.Tenant)
		log.Printf("Available endpoints:")
		log.Printf("  Site:")
		log.Printf("    GET / - Homepage")
		log.Printf("    GET /about, /programs, /contact, /registration, /terms - CMS pages")
		log.Printf("    GET /news - Latest posts")
		log.Printf("    GET /news/{slug} - Single post")
		log.Printf("    POST /forms/{slug} - Form submissions")
		log.Printf("    GET %s{path} - File download proxy", proxy.Prefix)
		log.Printf("  API:")
		log.Printf("    GET /api/kinds - Supported block kinds")
		log.Printf("    GET /health - Health check")
		if cfg.DevMode {
			log.Printf("  Dev:")
			log.Printf("    POST /api/render - Render a section list")
			log.Printf("    GET /debug - CMS connectivity report")
			log.Printf("    GET /ws/reload - Live reload")
		}

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-ctx.Done():
	}

	log.Println("Shutting down web server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}

func applyFlags(cfg *config.Config, host, port string, dev bool) {
	if host != "" {
		cfg.Listen.Host = host
	}
	if port != "" {
		cfg.Listen.Port = port
	}
	if dev {
		cfg.DevMode = true
	}
}

// watchConfig reloads the configuration when the file changes and swaps
// the site. Listen address and storage changes need a restart.
func (s *WebServer) watchConfig(ctx context.Context, configPath string, adjust func(*config.Config)) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("Warning: failed to create config file watcher: %v", err)
		return
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			log.Printf("Warning: failed to close config file watcher: %v", err)
		}
	}()

	if err := watcher.Add(configPath); err != nil {
		log.Printf("Warning: failed to watch config file %s: %v", configPath, err)
		return
	}
	log.Printf("Watching config file for changes: %s", configPath)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove)) {
				continue
			}
			// Editors replace the file on save; watch the new one.
			if event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				time.Sleep(100 * time.Millisecond)
				if _, err := os.Stat(configPath); err != nil {
					log.Printf("Config file was removed and not replaced, skipping reload")
					continue
				}
				if err := watcher.Add(configPath); err != nil {
					log.Printf("Warning: failed to re-add config file to watcher: %v", err)
				}
			}
			log.Printf("Config file changed: %s (event: %s), reloading configuration...", event.Name, event.Op.String())
			if err := s.reload(configPath, adjust); err != nil {
				log.Printf("Failed to reload configuration: %v", err)
				continue
			}
			log.Println("Configuration reloaded successfully")
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("Config file watcher error: %v", err)
		}
	}
}

func (s *WebServer) reload(configPath string, adjust func(*config.Config)) error {
	next, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if adjust != nil {
		adjust(next)
	}
	prev := s.current().config
	if next.Addr() != prev.Addr() {
		log.Printf("Listen address changed to %s, restart to apply", next.Addr())
	}
	if next.StorageDir != prev.StorageDir {
		log.Printf("Storage directory changed to %s, restart to apply", next.StorageDir)
	}
	st := newSite(next, s.store)
	s.site.Store(st)
	s.apiServer.SetPipeline(st.pipeline)
	if s.hub != nil {
		s.hub.Broadcast(realtime.Reload("config changed"))
	}
	return nil
}

func (s *WebServer) pageData(r *http.Request, path, title string) types.PageData {
	st := s.current()
	return types.PageData{
		Title:    title,
		Path:     path,
		SiteName: st.config.Site.Name,
		Nav:      components.NavItems(path),
		Dev:      st.config.DevMode,
		Version:  version.Version,
	}
}

func (s *WebServer) render(w http.ResponseWriter, r *http.Request, c templ.Component, status int) {
	var buf bytes.Buffer
	if err := c.Render(r.Context(), &buf); err != nil {
		s.logger.Errorf("Template error on %s: %v", r.URL.Path, err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// Web UI Handlers

func (s *WebServer) handleHome(w http.ResponseWriter, r *http.Request) {
	s.renderHome(w, r, nil, http.StatusOK)
}

// renderHome renders the CMS homepage, or the built-in sections when the
// CMS has none or cannot be reached.
func (s *WebServer) renderHome(w http.ResponseWriter, r *http.Request, state *forms.State, status int) {
	st := s.current()
	sections, err := st.cms.HomepageData(r.Context())
	if err != nil {
		s.logger.Warnf("Failed to fetch CMS data, using default sections: %v", err)
	}
	if len(sections) == 0 {
		sections = blocks.DefaultHomepage()
	}

	res := st.pipeline.Render(r.Context(), sections, blocks.PageContext{IsHomepage: true, Path: "/", Form: state})
	data := s.pageData(r, "/", "")
	data.Sections = res.HTML
	s.render(w, r, components.Home(data), status)
}

func (s *WebServer) handleSitePage(path string, sp sitePage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.renderSitePage(w, r, path, sp, nil, http.StatusOK)
	}
}

func (s *WebServer) renderSitePage(w http.ResponseWriter, r *http.Request, path string, sp sitePage, state *forms.State, status int) {
	st := s.current()
	data := s.pageData(r, path, sp.title)
	data.Subtitle = sp.subtitle
	data.Empty = sp.empty

	page, err := st.cms.Page(r.Context(), sp.slug)
	if err != nil {
		s.logger.Warnf("Failed to fetch CMS page %q: %v", sp.slug, err)
	}
	if page != nil {
		if sp.cmsTitle && page.Title != "" {
			data.Title = page.Title
		}
		if len(page.Sections) > 0 {
			res := st.pipeline.Render(r.Context(), page.Sections, blocks.PageContext{
				PageSlug: sp.slug,
				Path:     path,
				Form:     state,
			})
			data.Sections = res.HTML
		}
	}
	if data.Sections == "" && sp.body != nil {
		data.Body = sp.body()
	}
	s.render(w, r, sp.component(data), status)
}

func (s *WebServer) handleNews(w http.ResponseWriter, r *http.Request) {
	st := s.current()
	data := s.pageData(r, "/news", "Νέα & Ανακοινώσεις")
	data.Subtitle = "Μείνετε ενημερωμένοι με τα τελευταία νέα, εκδηλώσεις και επιτυχίες του συλλόγου μας."
	data.Empty = msgNoPosts

	tenant, err := st.cms.Tenant(r.Context(), st.config.Tenant)
	if err != nil {
		s.logger.Warnf("Failed to fetch tenant: %v", err)
	}
	if tenant != nil {
		posts, err := st.cms.Posts(r.Context(), tenant.ID, newsLimit, 1)
		if err != nil {
			s.logger.Warnf("Failed to fetch posts: %v", err)
		}
		if posts != nil {
			data.Posts = components.NewsCards(posts.Docs, st.media, st.config.Site.FallbackImage)
		}
	}
	s.render(w, r, components.News(data), http.StatusOK)
}

func (s *WebServer) handlePost(w http.ResponseWriter, r *http.Request) {
	st := s.current()
	slug := r.PathValue("slug")

	var post *cms.Post
	tenant, err := st.cms.Tenant(r.Context(), st.config.Tenant)
	if err != nil {
		s.logger.Warnf("Failed to fetch tenant: %v", err)
	}
	if tenant != nil {
		post, err = st.cms.PostBySlug(r.Context(), slug, tenant.ID)
		if err != nil {
			s.logger.Warnf("Failed to fetch post %q: %v", slug, err)
		}
	}
	if post == nil {
		s.handleNotFound(w, r)
		return
	}

	view := components.NewPostView(post, st.media)
	title := view.Title
	if title == "" {
		title = "Νέα"
	}
	data := s.pageData(r, r.URL.Path, title)
	data.Subtitle = view.Excerpt
	data.Post = view
	s.render(w, r, components.Post(data), http.StatusOK)
}

// handleForm validates and submits a CMS form, then shows the outcome on
// the page the form was posted from, or follows the form redirect.
func (s *WebServer) handleForm(w http.ResponseWriter, r *http.Request) {
	st := s.current()
	slug := r.PathValue("slug")

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form submission", http.StatusBadRequest)
		return
	}
	ret := returnPath(r.PostForm.Get("_return"))

	form, err := st.cms.FormByIDOrSlug(r.Context(), slug)
	if err != nil {
		s.logger.Warnf("Failed to fetch form %q: %v", slug, err)
	}
	if !form.Active() {
		s.handleNotFound(w, r)
		return
	}

	values := forms.ValuesFromRequest(form, r.PostForm)
	state := &forms.State{Slug: slug, Values: values}
	if errs := forms.Validate(form, values); len(errs) > 0 {
		state.Errors = errs
		s.renderReturn(w, r, ret, state, http.StatusUnprocessableEntity)
		return
	}

	submitSlug := form.Slug
	if submitSlug == "" {
		submitSlug = slug
	}
	res := st.cms.SubmitForm(r.Context(), submitSlug, values)
	if !res.Success {
		state.Status = forms.StatusError
		state.Message = firstNonEmpty(res.Message, forms.MsgFailed)
		state.Errors = res.Errors
		s.renderReturn(w, r, ret, state, http.StatusBadGateway)
		return
	}

	if redirect := firstNonEmpty(res.RedirectURL, form.RedirectURL); redirect != "" {
		http.Redirect(w, r, redirect, http.StatusSeeOther)
		return
	}
	state.Status = forms.StatusSuccess
	state.Message = firstNonEmpty(res.Message, form.SuccessMessage, forms.MsgSuccess)
	s.renderReturn(w, r, ret, state, http.StatusOK)
}

// renderReturn re-renders the page at path with a form state. Pages
// without forms of their own get a plain redirect.
func (s *WebServer) renderReturn(w http.ResponseWriter, r *http.Request, path string, state *forms.State, status int) {
	if path == "/" {
		s.renderHome(w, r, state, status)
		return
	}
	if sp, ok := sitePages[path]; ok {
		s.renderSitePage(w, r, path, sp, state, status)
		return
	}
	http.Redirect(w, r, path, http.StatusSeeOther)
}

// returnPath keeps only same-site absolute paths.
func returnPath(p string) string {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return "/"
	}
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	return p
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func (s *WebServer) handleDownload(w http.ResponseWriter, r *http.Request) {
	s.current().proxy.ServeHTTP(w, r)
}

func (s *WebServer) handleNotFound(w http.ResponseWriter, r *http.Request) {
	data := s.pageData(r, r.URL.Path, "Δεν βρέθηκε")
	data.Empty = msgNotFound
	s.render(w, r, components.NotFound(data), http.StatusNotFound)
}

// handleDebug reports CMS connectivity and the stored snapshots.
func (s *WebServer) handleDebug(w http.ResponseWriter, r *http.Request) {
	st := s.current()
	info := &types.DebugInfo{CMSURL: st.config.CMSURL, Tenant: st.config.Tenant}

	tenant, err := st.cms.Tenant(r.Context(), st.config.Tenant)
	if err != nil {
		info.TenantError = err.Error()
	} else if tenant != nil {
		info.TenantJSON = prettyJSON(tenant)
		hp, err := st.cms.Homepage(r.Context(), tenant.ID)
		switch {
		case err != nil:
			info.HomepageError = err.Error()
		case hp != nil:
			info.HomepageJSON = prettyJSON(hp)
			info.Sections = len(hp.Sections)
		}
	}

	if s.store != nil {
		snaps, err := s.store.List(r.Context())
		if err != nil {
			s.logger.Warnf("Failed to list snapshots: %v", err)
		}
		for _, sn := range snaps {
			info.Snapshots = append(info.Snapshots, types.SnapshotInfo(sn))
		}
	}

	data := s.pageData(r, "/debug", "CMS Connection Debug")
	data.Debug = info
	s.render(w, r, components.Debug(data), http.StatusOK)
}

func prettyJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err.Error()
	}
	return string(b)
}

// handleStatic serves static assets from embedded files
func (s *WebServer) handleStatic(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	// Remove /static/ prefix and add web/static/ prefix for embedded filesystem
	filePath := "web/static/" + strings.TrimPrefix(path, "/static/")

	content, err := staticFS.ReadFile(filePath)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	switch {
	case strings.HasSuffix(path, ".css"):
		w.Header().Set("Content-Type", "text/css; charset=utf-8")
	case strings.HasSuffix(path, ".js"):
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	case strings.HasSuffix(path, ".svg"):
		w.Header().Set("Content-Type", "image/svg+xml")
	case strings.HasSuffix(path, ".ico"):
		w.Header().Set("Content-Type", "image/x-icon")
	case strings.HasSuffix(path, ".png"):
		w.Header().Set("Content-Type", "image/png")
	}

	// Set cache headers for static assets
	w.Header().Set("Cache-Control", "public, max-age=3600")

	if _, err := w.Write(content); err != nil {
		s.logger.Warnf("Error writing static content: %v", err)
	}
}
