package db

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"
)

var DB *sql.DB

// DummyHash is compared against when a login targets an unknown email, so
// the failure path takes as long as a real bcrypt check.
var DummyHash string

const (
	connectRetries = 10
	connectDelay   = 2 * time.Second
)

// InitDB opens the database, waits for it to become reachable and applies
// pending migrations. The retry loop tolerates a database that is still
// starting; once the attempts are exhausted the error is returned and the
// caller must not proceed to serve traffic.
func InitDB(dataSourceName string) error {
	var err error
	for attempt := 1; attempt <= connectRetries; attempt++ {
		DB, err = open(dataSourceName)
		if err == nil {
			break
		}
		log.Printf("Waiting for database... (%d/%d): %v", attempt, connectRetries, err)
		time.Sleep(connectDelay)
	}
	if err != nil {
		return fmt.Errorf("database not ready after %d attempts: %w", connectRetries, err)
	}

	if err := Migrate(DB); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}

	if DummyHash == "" {
		DummyHash, err = HashPassword("timing-equalization-placeholder")
		if err != nil {
			return err
		}
	}

	return nil
}

func open(dataSourceName string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := conn.Exec("PRAGMA foreign_keys = ON"); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), 14)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
