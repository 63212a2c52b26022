package main

import (
	"crypto/sha256"
	"fmt"
	"log"
	"net/http"

	"devnotes/auth"
	"devnotes/config"
	"devnotes/db"
	"devnotes/handlers"

	"github.com/dchest/captcha"
	"github.com/gorilla/csrf"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading configuration from the environment")
	}
	if err := config.Load(); err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	auth.InitStore()

	if err := db.InitDB(config.AppConfig.DBPath); err != nil {
		log.Fatalf("Error initializing database: %v", err)
	}
	defer db.DB.Close()

	if err := db.PromoteAdmin(config.AppConfig.AdminEmail); err != nil {
		log.Fatalf("Error promoting admin account: %v", err)
	}

	// Web mux: session-authenticated HTML, behind CSRF protection.
	webMux := http.NewServeMux()
	webMux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir("static"))))
	webMux.Handle("/captcha/", captcha.Server(captcha.StdWidth, captcha.StdHeight))
	handlers.RegisterHandlers(webMux)

	// API mux: token-authenticated JSON, mounted outside the CSRF wrapper.
	apiMux := http.NewServeMux()
	handlers.RegisterAPIHandlers(apiMux)

	csrfKey := sha256.Sum256([]byte(config.AppConfig.SecretKey + "csrf"))
	csrfMiddleware := csrf.Protect(
		csrfKey[:],
		csrf.Secure(config.AppConfig.CookieSecure),
		csrf.Path("/"),
	)

	root := http.NewServeMux()
	root.Handle("/api/", apiMux)
	root.Handle("/", csrfMiddleware(webMux))

	addr := fmt.Sprintf("%s:%d", config.AppConfig.ListenIP, config.AppConfig.ListenPort)
	log.Printf("Server starting on %s (%s)", addr, config.AppConfig.AppName)

	if err := http.ListenAndServe(addr, root); err != nil {
		log.Fatal(err)
	}
}
