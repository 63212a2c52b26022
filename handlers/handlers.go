package handlers

import (
	"database/sql"
	"errors"
	"html/template"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"devnotes/auth"
	"devnotes/config"
	"devnotes/crypto"
	"devnotes/db"
	"devnotes/mail"
	"devnotes/sanitize"

	"github.com/dchest/captcha"
	"github.com/gorilla/csrf"
)

func RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/{$}", DashboardHandler)
	mux.HandleFunc("/dashboard", DashboardHandler)
	mux.HandleFunc("/edit/{id}", EditNoteHandler)
	mux.HandleFunc("/delete/{id}", DeleteNoteHandler)
	mux.HandleFunc("POST /note/{id}/toggle_public", TogglePublicHandler)
	mux.HandleFunc("GET /s/{publicID}", PublicNoteHandler)
	mux.HandleFunc("POST /category/add", AddCategoryHandler)
	mux.HandleFunc("/category/delete/{id}", DeleteCategoryHandler)
	mux.HandleFunc("GET /about", AboutHandler)
	mux.HandleFunc("GET /docs", DocsHandler)
	mux.HandleFunc("GET /health", HealthHandler)

	mux.HandleFunc("/login", LoginHandler)
	mux.HandleFunc("/register", RegisterHandler)
	mux.HandleFunc("/logout", LogoutHandler)
	mux.HandleFunc("/settings", SettingsHandler)
	mux.HandleFunc("/regenerate_token", RegenerateTokenHandler)
	mux.HandleFunc("/forgot-password", ForgotPasswordHandler)
	mux.HandleFunc("/reset-password/{token}", ResetPasswordHandler)
}

func DashboardHandler(w http.ResponseWriter, r *http.Request) {
	userID := auth.RequireUser(w, r)
	if userID == 0 {
		return
	}

	// CREATE
	if r.Method == http.MethodPost {
		command := strings.TrimSpace(r.FormValue("command"))
		description := r.FormValue("description")
		if command == "" || description == "" {
			auth.Flash(w, r, "Command and description are required.")
			http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
			return
		}

		_, err := db.CreateNote(userID, command,
			sanitize.HTML(description),
			r.FormValue("category"),
			sanitize.HTML(r.FormValue("example")),
			r.FormValue("tags"))
		if err != nil {
			log.Printf("Error creating note: %v", err)
			auth.Flash(w, r, "Could not save the note. Please try again.")
		}
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}

	// READ
	notes, err := db.ListNotes(userID, r.URL.Query().Get("category"), "")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	categories, err := db.ListCategories()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	renderTemplate(w, r, "index.html", map[string]any{
		"Notes":      notes,
		"Categories": categories,
		"Filter":     r.URL.Query().Get("category"),
	})
}

func EditNoteHandler(w http.ResponseWriter, r *http.Request) {
	userID := auth.RequireUser(w, r)
	if userID == 0 {
		return
	}

	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		http.NotFound(w, r)
		return
	}

	// Ownership is checked on freshly fetched data on every request,
	// including the POST, not on anything read earlier.
	note, err := db.GetNote(id)
	if errors.Is(err, sql.ErrNoRows) {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !auth.CanModify(userID, note) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	if r.Method == http.MethodPost {
		command := strings.TrimSpace(r.FormValue("command"))
		description := r.FormValue("description")
		if command == "" || description == "" {
			auth.Flash(w, r, "Command and description are required.")
			http.Redirect(w, r, "/edit/"+strconv.Itoa(id), http.StatusSeeOther)
			return
		}

		err := db.UpdateNote(id, userID, command,
			sanitize.HTML(description),
			r.FormValue("category"),
			sanitize.HTML(r.FormValue("example")),
			r.FormValue("tags"))
		if err != nil {
			log.Printf("Error updating note %d: %v", id, err)
			auth.Flash(w, r, "Could not update the note. Please try again.")
		}
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}

	categories, err := db.ListCategories()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	renderTemplate(w, r, "edit.html", map[string]any{
		"Note":       note,
		"Categories": categories,
	})
}

func DeleteNoteHandler(w http.ResponseWriter, r *http.Request) {
	userID := auth.RequireUser(w, r)
	if userID == 0 {
		return
	}

	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		http.NotFound(w, r)
		return
	}

	note, err := db.GetNote(id)
	if errors.Is(err, sql.ErrNoRows) {
		// Deleting a note that is already gone is not an error.
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !auth.CanModify(userID, note) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	if err := db.DeleteNote(id, userID); err != nil {
		log.Printf("Error deleting note %d: %v", id, err)
	}
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func TogglePublicHandler(w http.ResponseWriter, r *http.Request) {
	userID := auth.RequireUser(w, r)
	if userID == 0 {
		return
	}

	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		http.NotFound(w, r)
		return
	}

	note, err := db.GetNote(id)
	if errors.Is(err, sql.ErrNoRows) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !auth.CanModify(userID, note) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	if err := db.TogglePublic(note); err != nil {
		log.Printf("Error toggling note %d: %v", id, err)
		auth.Flash(w, r, "Could not change sharing. Please try again.")
	} else if note.IsPublic {
		auth.Flash(w, r, "Note is now public: "+config.AppConfig.BaseURL+"/s/"+note.PublicID)
	} else {
		auth.Flash(w, r, "Note is now private.")
	}
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func PublicNoteHandler(w http.ResponseWriter, r *http.Request) {
	note, err := db.GetPublicNote(r.PathValue("publicID"))
	if errors.Is(err, sql.ErrNoRows) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	renderTemplate(w, r, "public_note.html", map[string]any{"Note": note})
}

func AddCategoryHandler(w http.ResponseWriter, r *http.Request) {
	userID := auth.RequireUser(w, r)
	if userID == 0 {
		return
	}

	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		auth.Flash(w, r, "Category name cannot be empty.")
		http.Redirect(w, r, "/settings", http.StatusSeeOther)
		return
	}

	if err := db.CreateCategory(name, r.FormValue("color")); err != nil {
		auth.Flash(w, r, "A category with that name already exists.")
	} else {
		auth.Flash(w, r, "Category added.")
	}
	http.Redirect(w, r, "/settings", http.StatusSeeOther)
}

func DeleteCategoryHandler(w http.ResponseWriter, r *http.Request) {
	userID := auth.RequireUser(w, r)
	if userID == 0 {
		return
	}

	// Categories are shared by everyone, so removing one is reserved for
	// admins. Adding stays open to all users.
	if !auth.IsAdmin(r) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		http.NotFound(w, r)
		return
	}

	if err := db.DeleteCategory(id); err != nil {
		log.Printf("Error deleting category %d: %v", id, err)
	}
	http.Redirect(w, r, "/settings", http.StatusSeeOther)
}

func LoginHandler(w http.ResponseWriter, r *http.Request) {
	if auth.GetUserID(r) != 0 {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}

	if r.Method == http.MethodPost {
		email := r.FormValue("email")
		password := r.FormValue("password")

		user, err := db.GetUserByEmail(email)

		// Timing attack mitigation: always run one bcrypt check.
		targetHash := db.DummyHash
		if err == nil {
			targetHash = user.PasswordHash
		}
		match := db.CheckPasswordHash(password, targetHash)

		if err != nil || !match {
			auth.Flash(w, r, "Login unsuccessful. Please check email and password.")
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		auth.SetSession(w, r, user.ID, user.Role)
		if next := auth.SafeNext(r.FormValue("next")); next != "" {
			http.Redirect(w, r, next, http.StatusSeeOther)
			return
		}
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}

	renderTemplate(w, r, "login.html", map[string]any{
		"Next": auth.SafeNext(r.URL.Query().Get("next")),
	})
}

func RegisterHandler(w http.ResponseWriter, r *http.Request) {
	if auth.GetUserID(r) != 0 {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}

	if r.Method == http.MethodPost {
		username := strings.TrimSpace(r.FormValue("username"))
		email := strings.TrimSpace(r.FormValue("email"))
		password := r.FormValue("password")

		if username == "" || email == "" || password == "" {
			auth.Flash(w, r, "Username, email and password are required.")
			http.Redirect(w, r, "/register", http.StatusSeeOther)
			return
		}
		if !captcha.VerifyString(r.FormValue("captcha_id"), r.FormValue("captcha_solution")) {
			auth.Flash(w, r, "Captcha verification failed. Please try again.")
			http.Redirect(w, r, "/register", http.StatusSeeOther)
			return
		}
		if _, err := db.GetUserByEmail(email); err == nil {
			auth.Flash(w, r, "Email already registered.")
			http.Redirect(w, r, "/register", http.StatusSeeOther)
			return
		}

		if _, err := db.CreateUser(username, email, password); err != nil {
			// Unique constraint on username or email. No stack trace
			// reaches the user.
			log.Printf("Error creating user: %v", err)
			auth.Flash(w, r, "That username or email is already taken.")
			http.Redirect(w, r, "/register", http.StatusSeeOther)
			return
		}

		auth.Flash(w, r, "Your account has been created! You can now log in.")
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	renderTemplate(w, r, "register.html", map[string]any{
		"CaptchaID": captcha.New(),
	})
}

func LogoutHandler(w http.ResponseWriter, r *http.Request) {
	auth.ClearSession(w, r)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func SettingsHandler(w http.ResponseWriter, r *http.Request) {
	userID := auth.RequireUser(w, r)
	if userID == 0 {
		return
	}

	user, err := db.GetUser(userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if r.Method == http.MethodPost {
		// The size cap goes on before any form field is read; a plain
		// form post without a file part is still accepted.
		r.Body = http.MaxBytesReader(w, r.Body, config.AppConfig.MaxUploadSize+4096)
		if err := r.ParseMultipartForm(config.AppConfig.MaxUploadSize); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			auth.Flash(w, r, "Uploaded file is too large.")
			http.Redirect(w, r, "/settings", http.StatusSeeOther)
			return
		}

		displayName := strings.TrimSpace(r.FormValue("display_name"))
		if displayName == "" {
			auth.Flash(w, r, "Display name cannot be empty.")
			http.Redirect(w, r, "/settings", http.StatusSeeOther)
			return
		}

		// Nothing is written to disk until the fields above are valid.
		picture, err := saveProfilePicture(r, user)
		if err != nil {
			auth.Flash(w, r, err.Error())
			http.Redirect(w, r, "/settings", http.StatusSeeOther)
			return
		}

		if err := db.UpdateProfile(userID, displayName, strings.TrimSpace(r.FormValue("bio")), picture); err != nil {
			log.Printf("Error updating profile for user %d: %v", userID, err)
			auth.Flash(w, r, "Could not update the profile. Please try again.")
		} else {
			auth.Flash(w, r, "Profile updated successfully!")
		}
		http.Redirect(w, r, "/settings", http.StatusSeeOther)
		return
	}

	categories, err := db.ListCategories()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	renderTemplate(w, r, "settings.html", map[string]any{
		"User":       user,
		"Categories": categories,
	})
}

func RegenerateTokenHandler(w http.ResponseWriter, r *http.Request) {
	userID := auth.RequireUser(w, r)
	if userID == 0 {
		return
	}

	if err := db.SetAPIToken(userID, auth.GenerateToken()); err != nil {
		log.Printf("Error regenerating token for user %d: %v", userID, err)
		auth.Flash(w, r, "Could not generate a token. Please try again.")
	} else {
		auth.Flash(w, r, "New API token generated!")
	}
	http.Redirect(w, r, "/settings", http.StatusSeeOther)
}

func ForgotPasswordHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		email := strings.TrimSpace(r.FormValue("email"))

		if user, err := db.GetUserByEmail(email); err == nil {
			token, err := crypto.SignResetToken(config.AppConfig.SecretKey, user.ID)
			if err == nil {
				err = mail.SendPasswordReset(email, config.AppConfig.BaseURL+"/reset-password/"+token)
			}
			if err != nil {
				// Logged only. The response must not reveal whether the
				// address belongs to an account.
				log.Printf("Error sending reset email: %v", err)
			}
		}

		auth.Flash(w, r, "If that address is registered, a reset link has been sent.")
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	renderTemplate(w, r, "forgot_password.html", nil)
}

func ResetPasswordHandler(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	maxAge := time.Duration(config.AppConfig.ResetTokenMaxAge) * time.Second

	userID, err := crypto.VerifyResetToken(config.AppConfig.SecretKey, token, maxAge)
	if err != nil {
		auth.Flash(w, r, "That reset link is invalid or has expired.")
		http.Redirect(w, r, "/forgot-password", http.StatusSeeOther)
		return
	}

	if r.Method == http.MethodPost {
		password := r.FormValue("password")
		if password == "" {
			auth.Flash(w, r, "Password cannot be empty.")
			http.Redirect(w, r, "/reset-password/"+token, http.StatusSeeOther)
			return
		}
		if err := db.SetPassword(userID, password); err != nil {
			log.Printf("Error resetting password for user %d: %v", userID, err)
			auth.Flash(w, r, "Could not reset the password. Please try again.")
			http.Redirect(w, r, "/reset-password/"+token, http.StatusSeeOther)
			return
		}
		auth.Flash(w, r, "Your password has been updated. You can now log in.")
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	renderTemplate(w, r, "reset_password.html", map[string]any{"Token": token})
}

func AboutHandler(w http.ResponseWriter, r *http.Request) {
	renderTemplate(w, r, "about.html", nil)
}

func DocsHandler(w http.ResponseWriter, r *http.Request) {
	renderTemplate(w, r, "docs.html", nil)
}

func HealthHandler(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func renderTemplate(w http.ResponseWriter, r *http.Request, name string, data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}
	data["AppName"] = config.AppConfig.AppName
	data["UserID"] = auth.GetUserID(r)
	data["IsAdmin"] = auth.IsAdmin(r)
	data["Flashes"] = auth.Flashes(w, r)
	data["csrfField"] = csrf.TemplateField(r)

	funcMap := template.FuncMap{
		// Description/example are sanitized on write and stored safe.
		"safe": func(s string) template.HTML { return template.HTML(s) },
	}

	tmpl, err := template.New(name).Funcs(funcMap).ParseFiles("templates/layout.html", "templates/"+name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	tmpl.ExecuteTemplate(w, "layout", data)
}
