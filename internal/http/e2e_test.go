package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ricevute/internal/files"
	"ricevute/internal/session"
	"ricevute/internal/storage"
)

// newE2EServer wires the real repository and file store, mirroring main.
func newE2EServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()

	repo, err := storage.NewSQLiteRepository(filepath.Join(dir, "e2e.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	if _, err := repo.EnsureDefaultProject(context.Background()); err != nil {
		t.Fatalf("seed default project: %v", err)
	}

	store, err := files.NewStore(filepath.Join(dir, "uploads"))
	if err != nil {
		t.Fatalf("open file store: %v", err)
	}

	sm := session.NewManager("e2e-secret-0123456789", time.Hour)
	return NewServer(":0", repo, repo, store, sm, testPassword)
}

func TestFirstRunSeedsDefaultCollection(t *testing.T) {
	srv := newE2EServer(t)

	rr := do(t, srv, httptest.NewRequest(http.MethodGet, "/projects", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	var rows []map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &rows); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rows) != 1 || rows[0]["name"] != "Default Collection" {
		t.Fatalf("expected exactly the default collection, got %v", rows)
	}
}

func TestSubmitAndReviewRoundTrip(t *testing.T) {
	srv := newE2EServer(t)

	// Create a project over the JSON API.
	req := httptest.NewRequest(http.MethodPost, "/projects", strings.NewReader(`{"name":"Dorm A"}`))
	req.Header.Set("Content-Type", "application/json")
	if rr := do(t, srv, req); rr.Code != http.StatusCreated {
		t.Fatalf("create project status=%d body=%s", rr.Code, rr.Body.String())
	}

	// Find its id.
	rr := do(t, srv, httptest.NewRequest(http.MethodGet, "/projects", nil))
	var projects []map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &projects); err != nil {
		t.Fatalf("decode projects: %v", err)
	}
	if len(projects) != 2 || projects[0]["name"] != "Dorm A" {
		t.Fatalf("unexpected projects: %v", projects)
	}
	projectID := projects[0]["id"].(float64)

	// Submit a receipt against it.
	body, contentType := multipartBody(t, map[string]string{
		"projectSelect": fmt.Sprintf("%.0f", projectID),
		"roomSelect":    "101",
		"studentId":     "S-42",
		"amount":        "99.50",
		"transferDate":  "05/03/2024",
	}, "receiptImage", "rent receipt.jpg", "image-bytes")
	req = httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	if rr := do(t, srv, req); rr.Code != http.StatusOK {
		t.Fatalf("upload status=%d body=%s", rr.Code, rr.Body.String())
	}

	// The receipt shows up annotated and its image is servable.
	rr = do(t, srv, httptest.NewRequest(http.MethodGet, "/receipts", nil))
	var receipts []map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &receipts); err != nil {
		t.Fatalf("decode receipts: %v", err)
	}
	if len(receipts) != 1 {
		t.Fatalf("got %d receipts, want 1", len(receipts))
	}
	rc := receipts[0]
	if rc["projectName"] != "Dorm A" || rc["transferDate"] != "2024-03-05" || rc["amount"].(float64) != 99.5 {
		t.Fatalf("unexpected receipt: %v", rc)
	}
	imagePath := rc["imagePath"].(string)
	if !strings.HasSuffix(imagePath, "_rent_receipt.jpg") {
		t.Fatalf("unexpected stored name %q", imagePath)
	}

	rr = do(t, srv, httptest.NewRequest(http.MethodGet, "/uploads/"+imagePath, nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "image-bytes" {
		t.Fatalf("serve upload: status=%d body=%q", rr.Code, rr.Body.String())
	}

	// Summary covers both projects; the empty one has a null total.
	rr = do(t, srv, httptest.NewRequest(http.MethodGet, "/summary", nil))
	var summary []map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if len(summary) != 2 {
		t.Fatalf("got %d summary rows, want 2", len(summary))
	}
	if summary[0]["project"] != "Default Collection" || summary[1]["project"] != "Dorm A" {
		t.Fatalf("unexpected summary order: %v", summary)
	}
	if summary[0]["count"].(float64) != 0 || summary[0]["total"] != nil {
		t.Fatalf("default collection should be empty: %v", summary[0])
	}
	if summary[1]["count"].(float64) != 1 || summary[1]["total"].(float64) != 99.5 {
		t.Fatalf("unexpected Dorm A summary: %v", summary[1])
	}
}
