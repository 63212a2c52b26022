package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"

	"devnotes/config"
	"devnotes/db"
	"devnotes/models"

	"github.com/gorilla/sessions"
)

var Store *sessions.CookieStore

const SessionName = "devnotes-session"

func InitStore() {
	// Derive two 32-byte keys from the secret: one for signing (HMAC),
	// one for cookie content encryption (AES).
	authKey := sha256.Sum256([]byte(config.AppConfig.SecretKey + "auth"))
	encKey := sha256.Sum256([]byte(config.AppConfig.SecretKey + "encryption"))

	Store = sessions.NewCookieStore(authKey[:], encKey[:])

	Store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7, // 7 days
		HttpOnly: true,
		Secure:   config.AppConfig.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

func GetUserID(r *http.Request) int {
	session, _ := Store.Get(r, SessionName)
	if id, ok := session.Values["userID"].(int); ok {
		return id
	}
	return 0
}

func IsAdmin(r *http.Request) bool {
	session, _ := Store.Get(r, SessionName)
	if role, ok := session.Values["role"].(string); ok {
		return role == "admin"
	}
	return false
}

func SetSession(w http.ResponseWriter, r *http.Request, userID int, role string) {
	session, _ := Store.Get(r, SessionName)
	session.Values["userID"] = userID
	session.Values["role"] = role
	session.Save(r, w)
}

func ClearSession(w http.ResponseWriter, r *http.Request) {
	session, _ := Store.Get(r, SessionName)
	session.Options.MaxAge = -1
	session.Save(r, w)
}

// Flash queues a one-shot message shown on the next rendered page.
func Flash(w http.ResponseWriter, r *http.Request, message string) {
	session, _ := Store.Get(r, SessionName)
	session.AddFlash(message)
	session.Save(r, w)
}

// Flashes drains and returns the queued messages.
func Flashes(w http.ResponseWriter, r *http.Request) []string {
	session, _ := Store.Get(r, SessionName)
	raw := session.Flashes()
	if len(raw) > 0 {
		session.Save(r, w)
	}
	messages := make([]string, 0, len(raw))
	for _, f := range raw {
		if s, ok := f.(string); ok {
			messages = append(messages, s)
		}
	}
	return messages
}

// RequireUser returns the acting user's id, or 0 after redirecting to the
// login page. The originally requested destination rides along in the
// "next" parameter for the post-login redirect.
func RequireUser(w http.ResponseWriter, r *http.Request) int {
	userID := GetUserID(r)
	if userID == 0 {
		http.Redirect(w, r, "/login?next="+url.QueryEscape(r.URL.RequestURI()), http.StatusSeeOther)
		return 0
	}
	return userID
}

// SafeNext filters a post-login redirect target down to local paths.
func SafeNext(next string) string {
	if len(next) > 1 && next[0] == '/' && next[1] != '/' {
		return next
	}
	return ""
}

// UserFromToken resolves the X-API-Token header value against the users
// table. Tokens are opaque and non-expiring; regeneration invalidates the
// old one immediately because the lookup always hits the current row.
func UserFromToken(token string) (*models.User, error) {
	return db.GetUserByToken(token)
}

// CanModify is the single authorization predicate for note mutations:
// edit, delete and the public toggle all go through it. Legacy rows with
// no owner are modifiable by nobody.
func CanModify(userID int, note *models.Note) bool {
	return note != nil && note.UserID != 0 && note.UserID == userID
}

// GenerateToken returns a new opaque API token.
func GenerateToken() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// Without randomness we cannot hand out credentials at all.
		panic(fmt.Sprintf("critical security error: failed to generate random token: %v", err))
	}
	return hex.EncodeToString(b)
}
