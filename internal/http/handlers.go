package http

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"ricevute/internal/core"
	"ricevute/internal/session"
)

type statusResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	if s.templates == nil {
		slog.ErrorContext(r.Context(), "Templates not loaded", "url", r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		slog.ErrorContext(r.Context(), "Template execution failed", "error", err, "template", name)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "index.html", nil)
}

// handleSubmitForm renders the public submission form for one project.
func (s *Server) handleSubmitForm(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("projectID"), 10, 64)
	if err != nil {
		http.Error(w, "Project not found", http.StatusNotFound)
		return
	}
	project, err := s.projects.GetProject(r.Context(), id)
	if errors.Is(err, core.ErrProjectNotFound) {
		http.Error(w, "Project not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Get project failed", "error", err, "project_id", id)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	s.render(w, r, "submit.html", project)
}

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "login.html", struct{ Error string }{})
}

// handleLogin checks the shared admin password. A match sets the session
// cookie and redirects to the admin view; a mismatch re-renders the form.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	password := r.PostFormValue("password")
	if subtle.ConstantTimeCompare([]byte(password), []byte(s.adminPassword)) != 1 {
		s.render(w, r, "login.html", struct{ Error string }{Error: "Invalid password"})
		return
	}

	cookie, err := s.sessions.Issue()
	if err != nil {
		slog.ErrorContext(r.Context(), "Session issue failed", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, cookie)
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, session.Clear())
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) handleAdmin(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Verify(r); err != nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	s.render(w, r, "admin.html", nil)
}

// handleUpload accepts the multipart submission form. The image part is
// the only hard requirement; without it nothing is persisted.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("receiptImage")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, statusResponse{Success: false})
		return
	}
	defer file.Close()

	transferDate, err := core.ConvertTransferDate(r.FormValue("transferDate"))
	if err != nil {
		slog.ErrorContext(r.Context(), "Transfer date conversion failed", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var projectID *int64
	if v := strings.TrimSpace(r.FormValue("projectSelect")); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			projectID = &id
		}
	}

	storedName, err := s.uploads.Save(header.Filename, file)
	if err != nil {
		slog.ErrorContext(r.Context(), "Upload save failed", "error", err, "filename", header.Filename)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	_, err = s.receipts.CreateReceipt(r.Context(), core.Receipt{
		ProjectID:    projectID,
		RoomNumber:   r.FormValue("roomSelect"),
		StudyLevel:   r.FormValue("studyLevel"),
		StudentID:    r.FormValue("studentId"),
		Amount:       core.CoerceAmount(r.FormValue("amount")),
		TransferDate: transferDate,
		Notes:        r.FormValue("notes"),
		ImagePath:    storedName,
	})
	if err != nil {
		slog.ErrorContext(r.Context(), "Receipt insert failed", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{Success: true})
}

func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	receipts, err := s.receipts.ListReceipts(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "List receipts failed", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if receipts == nil {
		receipts = []core.Receipt{}
	}
	writeJSON(w, http.StatusOK, receipts)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.projects.SummarizeProjects(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Summarize projects failed", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if summaries == nil {
		summaries = []core.ProjectSummary{}
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.projects.ListProjects(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "List projects failed", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if projects == nil {
		projects = []core.Project{}
	}
	writeJSON(w, http.StatusOK, projects)
}

// handleCreateProject serves both the JSON API and the admin form. The
// form variant answers with an inline script so the browser lands back on
// the dashboard.
func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var name, description string
	isJSON := strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
	if isJSON {
		var req struct {
			Name        string `json:"name"`
			Description string `json:"description"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, statusResponse{Success: false, Error: "invalid JSON body"})
			return
		}
		name, description = req.Name, req.Description
	} else {
		if err := r.ParseForm(); err != nil {
			writeJSON(w, http.StatusBadRequest, statusResponse{Success: false, Error: "invalid form body"})
			return
		}
		name, description = r.PostFormValue("name"), r.PostFormValue("description")
	}

	_, err := s.projects.CreateProject(r.Context(), name, description)
	switch {
	case errors.Is(err, core.ErrEmptyProjectName):
		writeJSON(w, http.StatusBadRequest, statusResponse{Success: false, Error: "Project name is required"})
		return
	case errors.Is(err, core.ErrProjectExists):
		writeJSON(w, http.StatusBadRequest, statusResponse{Success: false, Error: "Project name already exists"})
		return
	case err != nil:
		slog.ErrorContext(r.Context(), "Create project failed", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	if isJSON {
		writeJSON(w, http.StatusCreated, statusResponse{Success: true})
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(`<script>alert("Project created successfully."); window.location.href="/admin";</script>`))
}

// handleServeUpload streams a stored receipt image. Resolve confines the
// lookup to the upload directory.
func (s *Server) handleServeUpload(w http.ResponseWriter, r *http.Request) {
	path, err := s.uploads.Resolve(r.PathValue("filename"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, path)
}
