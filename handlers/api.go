package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"devnotes/auth"
	"devnotes/db"
	"devnotes/models"
	"devnotes/sanitize"
)

// RegisterAPIHandlers wires the JSON API. The API mux is mounted outside
// the CSRF wrapper; every route except health requires the X-API-Token
// header.
func RegisterAPIHandlers(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/notes", APIListNotesHandler)
	mux.HandleFunc("POST /api/notes", APICreateNoteHandler)
	mux.HandleFunc("GET /api/notes/{id}", APIGetNoteHandler)
	mux.HandleFunc("GET /api/categories", APICategoriesHandler)
	mux.HandleFunc("GET /api/health", APIHealthHandler)
}

func sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func sendJSONError(w http.ResponseWriter, status int, message string) {
	sendJSON(w, status, map[string]string{"error": message})
}

// apiUser authenticates the request, writing the 401 itself on failure.
func apiUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	token := r.Header.Get("X-API-Token")
	if token == "" {
		sendJSONError(w, http.StatusUnauthorized, "Missing X-API-Token header")
		return nil, false
	}
	user, err := auth.UserFromToken(token)
	if err != nil {
		sendJSONError(w, http.StatusUnauthorized, "Invalid API token")
		return nil, false
	}
	return user, true
}

func APIListNotesHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := apiUser(w, r)
	if !ok {
		return
	}

	notes, err := db.ListNotes(user.ID, r.URL.Query().Get("category"), r.URL.Query().Get("search"))
	if err != nil {
		sendJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	sendJSON(w, http.StatusOK, map[string]any{
		"count": len(notes),
		"notes": notes,
	})
}

func APIGetNoteHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := apiUser(w, r)
	if !ok {
		return
	}

	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		sendJSONError(w, http.StatusNotFound, "Note not found")
		return
	}

	note, err := db.GetNote(id)
	// Another user's note reads as absent, never as forbidden.
	if errors.Is(err, sql.ErrNoRows) || (err == nil && note.UserID != user.ID) {
		sendJSONError(w, http.StatusNotFound, "Note not found")
		return
	}
	if err != nil {
		sendJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	sendJSON(w, http.StatusOK, note)
}

func APICreateNoteHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := apiUser(w, r)
	if !ok {
		return
	}

	var input struct {
		Command     string `json:"command"`
		Description string `json:"description"`
		Category    string `json:"category"`
		Example     string `json:"example"`
		Tags        string `json:"tags"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		sendJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if input.Command == "" || input.Description == "" {
		sendJSONError(w, http.StatusBadRequest, "Missing required fields: command, description")
		return
	}
	if input.Category == "" {
		input.Category = "Uncategorized"
	}

	id, err := db.CreateNote(user.ID, input.Command,
		sanitize.HTML(input.Description),
		input.Category,
		sanitize.HTML(input.Example),
		input.Tags)
	if err != nil {
		sendJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	sendJSON(w, http.StatusCreated, map[string]any{
		"message":  "Note created successfully",
		"id":       id,
		"location": fmt.Sprintf("/api/notes/%d", id),
	})
}

func APICategoriesHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := apiUser(w, r)
	if !ok {
		return
	}

	categories, err := db.DistinctCategories(user.ID)
	if err != nil {
		sendJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	sendJSON(w, http.StatusOK, map[string]any{"categories": categories})
}

func APIHealthHandler(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "DevOps Notes API",
	})
}
