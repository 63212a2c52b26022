package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"testing"

	"devnotes/auth"
	"devnotes/config"
	"devnotes/db"
)

func TestMain(m *testing.M) {
	// Templates are referenced relative to the repository root.
	if err := os.Chdir(".."); err != nil {
		panic(err)
	}

	dbPath := "./test_handlers.db"
	os.Remove(dbPath)
	if err := db.InitDB(dbPath); err != nil {
		panic(err)
	}
	config.AppConfig.SecretKey = "test-secret-key-for-handlers"
	config.AppConfig.AppName = "DevNotesTest"
	config.AppConfig.BaseURL = "http://localhost:8080"
	config.AppConfig.MaxUploadSize = 1 << 20
	auth.InitStore()

	code := m.Run()

	db.DB.Close()
	os.Remove(dbPath)

	os.Exit(code)
}

func newAPIMux() *http.ServeMux {
	mux := http.NewServeMux()
	RegisterAPIHandlers(mux)
	return mux
}

// apiTestUser registers a user straight through the data layer and hands
// back its id and a fresh API token.
func apiTestUser(t *testing.T, name string) (int, string) {
	t.Helper()
	id, err := db.CreateUser(name, name+"@example.com", "pw123")
	if err != nil {
		t.Fatalf("CreateUser(%s) failed: %v", name, err)
	}
	token := auth.GenerateToken()
	if err := db.SetAPIToken(id, token); err != nil {
		t.Fatalf("SetAPIToken failed: %v", err)
	}
	return id, token
}

func noteCount(t *testing.T) int {
	t.Helper()
	var count int
	if err := db.DB.QueryRow("SELECT COUNT(*) FROM notes").Scan(&count); err != nil {
		t.Fatalf("Counting notes failed: %v", err)
	}
	return count
}

func TestAPIHealthIsPublic(t *testing.T) {
	mux := newAPIMux()

	req := httptest.NewRequest("GET", "/api/health", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Health check without token: expected 200, got %d", w.Code)
	}
	var resp map[string]string
	json.NewDecoder(w.Body).Decode(&resp)
	if resp["status"] != "ok" {
		t.Errorf("Expected status ok, got %q", resp["status"])
	}
}

func TestAPIUnauthorized(t *testing.T) {
	mux := newAPIMux()
	before := noteCount(t)

	requests := []struct {
		method, path string
		body         string
	}{
		{"GET", "/api/notes", ""},
		{"GET", "/api/notes/1", ""},
		{"POST", "/api/notes", `{"command":"ls","description":"x"}`},
		{"GET", "/api/categories", ""},
	}

	for _, tokenHeader := range []string{"", "bogus-token"} {
		for _, tc := range requests {
			req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
			if tokenHeader != "" {
				req.Header.Set("X-API-Token", tokenHeader)
			}
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("%s %s with token %q: expected 401, got %d", tc.method, tc.path, tokenHeader, w.Code)
			}
			var resp map[string]string
			json.NewDecoder(w.Body).Decode(&resp)
			if resp["error"] == "" {
				t.Errorf("%s %s: expected an error field", tc.method, tc.path)
			}
		}
	}

	if after := noteCount(t); after != before {
		t.Errorf("Unauthorized requests touched data: %d -> %d notes", before, after)
	}
}

func TestAPICreateAndFetch(t *testing.T) {
	mux := newAPIMux()
	userID, token := apiTestUser(t, "api_create")

	body := `{"command":"docker ps","description":"list containers","category":"Docker","tags":"docker"}`
	req := httptest.NewRequest("POST", "/api/notes", strings.NewReader(body))
	req.Header.Set("X-API-Token", token)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("Create failed, expected 201, got %d. Body: %s", w.Code, w.Body.String())
	}
	var created struct {
		ID       int    `json:"id"`
		Location string `json:"location"`
	}
	json.NewDecoder(w.Body).Decode(&created)
	if created.ID == 0 || created.Location == "" {
		t.Fatalf("Create response missing id/location: %s", w.Body.String())
	}

	// The returned location resolves.
	req = httptest.NewRequest("GET", created.Location, nil)
	req.Header.Set("X-API-Token", token)
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Fetch of %s failed: %d", created.Location, w.Code)
	}
	var note struct {
		UserID   int    `json:"user_id"`
		IsPublic bool   `json:"is_public"`
		PublicID string `json:"public_id"`
		Command  string `json:"command"`
	}
	json.NewDecoder(w.Body).Decode(&note)
	if note.UserID != userID {
		t.Errorf("Expected owner %d, got %d", userID, note.UserID)
	}
	if note.IsPublic || note.PublicID != "" {
		t.Errorf("Fresh note must be private with no public_id: %+v", note)
	}
	if note.Command != "docker ps" {
		t.Errorf("Expected command 'docker ps', got %q", note.Command)
	}
}

func TestAPICreateValidation(t *testing.T) {
	mux := newAPIMux()
	_, token := apiTestUser(t, "api_validation")
	before := noteCount(t)

	for _, body := range []string{
		`{"command":"ls"}`,
		`{"description":"lists files"}`,
		`{}`,
		`not json at all`,
	} {
		req := httptest.NewRequest("POST", "/api/notes", strings.NewReader(body))
		req.Header.Set("X-API-Token", token)
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Body %q: expected 400, got %d", body, w.Code)
		}
	}

	if after := noteCount(t); after != before {
		t.Errorf("Invalid creates inserted rows: %d -> %d", before, after)
	}
}

func TestAPICreateSanitizesContent(t *testing.T) {
	mux := newAPIMux()
	_, token := apiTestUser(t, "api_sanitize")

	body := `{"command":"ls","description":"<script>alert(1)</script><p>hi</p>"}`
	req := httptest.NewRequest("POST", "/api/notes", strings.NewReader(body))
	req.Header.Set("X-API-Token", token)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("Create failed: %d", w.Code)
	}
	var created struct {
		ID int `json:"id"`
	}
	json.NewDecoder(w.Body).Decode(&created)

	stored, err := db.GetNote(created.ID)
	if err != nil {
		t.Fatalf("GetNote failed: %v", err)
	}
	if stored.Description != "<p>hi</p>" {
		t.Errorf("Stored description not sanitized: %q", stored.Description)
	}
}

func TestAPIListFiltersAndSearch(t *testing.T) {
	mux := newAPIMux()
	userID, token := apiTestUser(t, "api_list")

	seed := []struct{ command, description, category, tags string }{
		{"docker ps", "list containers", "Docker", "docker"},
		{"docker images", "list images", "Docker", "docker"},
		{"kubectl get pods", "list pods", "Kubernetes", "k8s,pods"},
	}
	for _, s := range seed {
		if _, err := db.CreateNote(userID, s.command, s.description, s.category, "", s.tags); err != nil {
			t.Fatalf("CreateNote failed: %v", err)
		}
	}

	fetch := func(path string) (int, []map[string]any) {
		req := httptest.NewRequest("GET", path, nil)
		req.Header.Set("X-API-Token", token)
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("GET %s: %d", path, w.Code)
		}
		var resp struct {
			Count int              `json:"count"`
			Notes []map[string]any `json:"notes"`
		}
		json.NewDecoder(w.Body).Decode(&resp)
		return resp.Count, resp.Notes
	}

	if count, notes := fetch("/api/notes"); count != 3 || len(notes) != 3 {
		t.Errorf("Unfiltered list: expected 3 notes, got count=%d len=%d", count, len(notes))
	}
	if count, _ := fetch("/api/notes?category=Docker"); count != 2 {
		t.Errorf("Category filter: expected 2, got %d", count)
	}
	if count, _ := fetch("/api/notes?search=pods"); count != 1 {
		t.Errorf("Search filter: expected 1, got %d", count)
	}
	if count, _ := fetch("/api/notes?category=Docker&search=images"); count != 1 {
		t.Errorf("Combined filter: expected 1, got %d", count)
	}

	// Newest-first ordering.
	_, notes := fetch("/api/notes")
	if notes[0]["command"] != "kubectl get pods" {
		t.Errorf("Expected newest note first, got %v", notes[0]["command"])
	}

	req := httptest.NewRequest("GET", "/api/categories", nil)
	req.Header.Set("X-API-Token", token)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	var catResp struct {
		Categories []string `json:"categories"`
	}
	json.NewDecoder(w.Body).Decode(&catResp)
	if len(catResp.Categories) != 2 {
		t.Errorf("Expected 2 categories, got %v", catResp.Categories)
	}
}

func TestAPINoteIsolation(t *testing.T) {
	mux := newAPIMux()
	aliceID, _ := apiTestUser(t, "api_alice")
	_, bobToken := apiTestUser(t, "api_bob")

	noteID, err := db.CreateNote(aliceID, "secret", "alice only", "", "", "")
	if err != nil {
		t.Fatalf("CreateNote failed: %v", err)
	}

	// Bob sees alice's note as absent, not as forbidden.
	req := httptest.NewRequest("GET", "/api/notes/"+strconv.Itoa(noteID), nil)
	req.Header.Set("X-API-Token", bobToken)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for another user's note, got %d", w.Code)
	}

	// And bob's list does not contain it.
	req = httptest.NewRequest("GET", "/api/notes", nil)
	req.Header.Set("X-API-Token", bobToken)
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	var resp struct {
		Count int `json:"count"`
	}
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Count != 0 {
		t.Errorf("Bob's list leaked %d notes", resp.Count)
	}
}
