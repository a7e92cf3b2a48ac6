package server

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"waypoint-optimizer/internal/database"
	"waypoint-optimizer/internal/distance"
	"waypoint-optimizer/internal/geocoding"
	"waypoint-optimizer/internal/handlers"
	"waypoint-optimizer/internal/routing"
	"waypoint-optimizer/internal/sqlite"
	"waypoint-optimizer/web"
)

// Server wraps the HTTP server and all dependencies
type Server struct {
	httpServer *http.Server
	handler    *handlers.Handler
	db         database.DataStore
	listener   net.Listener
	addr       string
}

// Config holds server configuration
type Config struct {
	Addr   string // e.g., "127.0.0.1:8080" or "127.0.0.1:0" for random port
	DBPath string
	// Geodesic names the distance formula, see distance.ByName
	Geodesic string
	// Workers bounds solver parallelism, zero means NumCPU
	Workers        int
	MaxUploadMB    int
	MaxRows        int
	GeocodeMissing bool
}

// New creates and initializes a new server (does not start it)
func New(cfg Config) (*Server, error) {
	provider, err := distance.ProviderName(cfg.Geodesic)
	if err != nil {
		return nil, err
	}
	geodesic, err := distance.ByName(provider)
	if err != nil {
		return nil, err
	}

	log.Printf("Initializing data store...")
	db, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize data store: %w", err)
	}

	log.Printf("Loading templates...")
	templates, err := loadTemplates(web.Templates)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}

	handler := &handlers.Handler{
		DB:             db,
		Geocoder:       geocoding.NewNominatimGeocoder(),
		Datasets:       handlers.NewDatasetStore(handlers.DefaultMaxDatasets),
		Templates:      templates,
		Geodesic:       geodesic,
		GeodesicName:   provider,
		Workers:        cfg.Workers,
		MaxUploadBytes: int64(cfg.MaxUploadMB) << 20,
		MaxRows:        cfg.MaxRows,
		GeocodeMissing: cfg.GeocodeMissing,
	}

	mux, err := setupRoutes(handler, web.Static)
	if err != nil {
		db.Close()
		return nil, err
	}

	httpServer := &http.Server{
		Addr:        cfg.Addr,
		Handler:     loggingMiddleware(corsMiddleware(mux)),
		ReadTimeout: 30 * time.Second,
		// solves on large datasets can run for minutes
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		handler:    handler,
		db:         db,
		addr:       cfg.Addr,
	}, nil
}

// Start starts the server and returns the actual address (useful for random port)
func (s *Server) Start() (string, error) {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen: %w", err)
	}

	s.listener = listener
	actualAddr := listener.Addr().String()
	log.Printf("Starting server on %s", actualAddr)

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("Server error: %v", err)
		}
	}()

	return actualAddr, nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	return s.db.Close()
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"formatDate": func(t time.Time) string {
			return t.Local().Format("2006-01-02 15:04")
		},
		"formatKm": func(km float64) string {
			return fmt.Sprintf("%.2f km", km)
		},
		"formatMs": func(ms int64) string {
			if ms < 1000 {
				return fmt.Sprintf("%d ms", ms)
			}
			return fmt.Sprintf("%.1f s", float64(ms)/1000)
		},
		"percent": func(v float64) string {
			return fmt.Sprintf("%.1f%%", v)
		},
		"add": func(a, b int) int {
			return a + b
		},
		"algorithmTitle": func(name string) string {
			return routing.Algorithm(name).Title()
		},
		"toJSON": func(v interface{}) template.JS {
			b, err := json.Marshal(v)
			if err != nil {
				return "null"
			}
			return template.JS(b)
		},
	}
}

// loadTemplates loads all templates from the embedded filesystem
func loadTemplates(templatesFS fs.FS) (*handlers.TemplateSet, error) {
	funcs := templateFuncs()
	base := template.New("").Funcs(funcs)

	layoutContent, err := fs.ReadFile(templatesFS, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("failed to read layout: %w", err)
	}
	if _, err = base.New("layout.html").Parse(string(layoutContent)); err != nil {
		return nil, fmt.Errorf("failed to parse layout: %w", err)
	}

	partialFiles, err := fs.Glob(templatesFS, "templates/partials/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to glob partials: %w", err)
	}

	for _, file := range partialFiles {
		content, err := fs.ReadFile(templatesFS, file)
		if err != nil {
			return nil, fmt.Errorf("failed to read partial %s: %w", file, err)
		}
		name := strings.TrimPrefix(file, "templates/partials/")
		if _, err = base.New(name).Parse(string(content)); err != nil {
			return nil, fmt.Errorf("failed to parse partial %s: %w", file, err)
		}
	}

	// pages are parsed per request so each can define its own "content"
	pages := make(map[string]string)
	pageFiles := []string{"index.html", "history.html"}
	for _, name := range pageFiles {
		content, err := fs.ReadFile(templatesFS, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("failed to read page %s: %w", name, err)
		}
		pages[name] = string(content)
	}

	return &handlers.TemplateSet{
		Base:  base,
		Pages: pages,
		Funcs: funcs,
	}, nil
}

func methods(byMethod map[string]http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h, ok := byMethod[r.Method]; ok {
			h(w, r)
			return
		}
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// setupRoutes configures all HTTP routes
func setupRoutes(handler *handlers.Handler, staticFS fs.FS) (*http.ServeMux, error) {
	mux := http.NewServeMux()

	staticSubFS, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("failed to create static sub-filesystem: %w", err)
	}
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSubFS))))

	mux.HandleFunc("/api/v1/health", methods(map[string]http.HandlerFunc{
		http.MethodGet: handler.HandleHealthCheck,
	}))

	mux.HandleFunc("/api/v1/datasets", methods(map[string]http.HandlerFunc{
		http.MethodGet:  handler.HandleListDatasets,
		http.MethodPost: handler.HandleUploadDataset,
	}))

	mux.HandleFunc("/api/v1/datasets/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/datasets/" {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}
		methods(map[string]http.HandlerFunc{
			http.MethodGet:    handler.HandleGetDataset,
			http.MethodDelete: handler.HandleDeleteDataset,
		})(w, r)
	})

	mux.HandleFunc("/api/v1/solve", methods(map[string]http.HandlerFunc{
		http.MethodPost: handler.HandleSolve,
	}))

	mux.HandleFunc("/api/v1/runs", methods(map[string]http.HandlerFunc{
		http.MethodGet: handler.HandleListRuns,
	}))
	mux.HandleFunc("/api/v1/runs/", handler.ServeRun)

	mux.HandleFunc("/api/v1/distance-cache", methods(map[string]http.HandlerFunc{
		http.MethodDelete: handler.HandleClearDistanceCache,
	}))

	mux.HandleFunc("/api/v1/address-search", methods(map[string]http.HandlerFunc{
		http.MethodGet: handler.HandleAddressSearch,
	}))

	// Page routes
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		handler.HandleIndexPage(w, r)
	})

	mux.HandleFunc("/history", methods(map[string]http.HandlerFunc{
		http.MethodGet: handler.HandleHistoryPage,
	}))

	return mux, nil
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(lrw, r)

		log.Printf("[HTTP] %s %s %d %v", r.Method, r.URL.Path, lrw.statusCode, time.Since(start))
	})
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		// only local origins may call the API
		if origin == "" ||
			strings.HasPrefix(origin, "http://localhost:") ||
			strings.HasPrefix(origin, "http://127.0.0.1:") {
			if origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, HX-Request, HX-Target, HX-Current-URL")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
