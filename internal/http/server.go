// Package http maps the web surface onto the storage layer and the file
// store: public landing and submission pages, the password-gated admin
// view, and the JSON endpoints it feeds on.
package http

import (
	"context"
	"html/template"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"ricevute/internal/core"
	"ricevute/internal/session"
	appweb "ricevute/web"
)

// ProjectStore is the project directory the handlers read and write.
type ProjectStore interface {
	ListProjects(ctx context.Context) ([]core.Project, error)
	CreateProject(ctx context.Context, name, description string) (int64, error)
	GetProject(ctx context.Context, id int64) (*core.Project, error)
	SummarizeProjects(ctx context.Context) ([]core.ProjectSummary, error)
}

// ReceiptStore is the receipt intake side of the storage layer.
type ReceiptStore interface {
	CreateReceipt(ctx context.Context, rc core.Receipt) (int64, error)
	ListReceipts(ctx context.Context) ([]core.Receipt, error)
}

// FileStore persists uploaded images and resolves stored names back to
// servable paths.
type FileStore interface {
	Save(originalName string, content io.Reader) (string, error)
	Resolve(name string) (string, error)
}

type Server struct {
	http.Server
	templates *template.Template

	projects ProjectStore
	receipts ReceiptStore
	uploads  FileStore
	sessions *session.Manager

	adminPassword string
}

// NewServer configures routes and templates, returning a ready-to-run
// http.Server.
func NewServer(addr string, ps ProjectStore, rs ReceiptStore, us FileStore, sm *session.Manager, adminPassword string) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		projects:      ps,
		receipts:      rs,
		uploads:       us,
		sessions:      sm,
		adminPassword: adminPassword,
	}

	// Parse embedded templates at startup.
	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		slog.Warn("Failed parsing templates", "error", err)
	}
	s.templates = t

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600")
			static.ServeHTTP(w, r)
		}))
	} else {
		slog.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("GET /{$}", s.withSecurityHeaders(s.handleHome))
	mux.HandleFunc("GET /submit/{projectID}", s.withSecurityHeaders(s.handleSubmitForm))
	mux.HandleFunc("GET /login", s.withSecurityHeaders(s.handleLoginForm))
	mux.HandleFunc("POST /login", s.withSecurityHeaders(s.handleLogin))
	mux.HandleFunc("GET /logout", s.withSecurityHeaders(s.handleLogout))
	mux.HandleFunc("GET /admin", s.withSecurityHeaders(s.handleAdmin))
	mux.HandleFunc("POST /upload", s.withSecurityHeaders(s.handleUpload))
	mux.HandleFunc("GET /receipts", s.withSecurityHeaders(s.handleListReceipts))
	mux.HandleFunc("GET /summary", s.withSecurityHeaders(s.handleSummary))
	mux.HandleFunc("GET /projects", s.withSecurityHeaders(s.handleListProjects))
	mux.HandleFunc("POST /projects", s.withSecurityHeaders(s.handleCreateProject))
	mux.HandleFunc("GET /uploads/{filename}", s.withSecurityHeaders(s.handleServeUpload))

	return s
}

// withSecurityHeaders adds security headers and request logging to
// responses.
func (s *Server) withSecurityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Extract client IP (considering proxies)
		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP,
			"user_agent", r.Header.Get("User-Agent"))

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", duration.Milliseconds(),
			"client_ip", clientIP)
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
