package db

import (
	"database/sql"
	"fmt"
	"strings"
)

// A migration is one idempotent step in the schema ledger. Applied versions
// are recorded in schema_migrations; only steps past the last recorded
// version run. Each step is additionally safe to re-run on its own: column
// additions inspect the live schema first and index creation tolerates
// duplicates, so a ledger wiped by hand cannot corrupt an existing database.
type migration struct {
	version int
	name    string
	run     func(tx *sql.Tx) error
}

var migrations = []migration{
	{1, "create_users", createUsers},
	{2, "create_categories", createCategories},
	{3, "create_notes", createNotes},
	{4, "extend_notes", extendNotes},
	{5, "notes_ownership_and_sharing", notesOwnershipAndSharing},
	{6, "users_profile_and_token", usersProfileAndToken},
	{7, "unique_indexes", uniqueIndexes},
	{8, "seed_system_categories", seedSystemCategories},
}

// SystemCategories are seeded by name, case-insensitively, and can never be
// deleted through the category deletion operation.
var SystemCategories = []struct {
	Name  string
	Color string
}{
	{"Docker", "#007bff"},
	{"Kubernetes", "#326ce5"},
	{"Linux", "#fcc624"},
	{"CI/CD", "#10b981"},
	{"AWS", "#ff9900"},
	{"Monitoring", "#9333ea"},
	{"Other", "#64748b"},
}

// Migrate brings the schema up to date. Never drops or alters existing
// data; running it any number of times is equivalent to running it once.
func Migrate(conn *sql.DB) error {
	_, err := conn.Exec(`
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return err
	}

	var last sql.NullInt64
	if err := conn.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&last); err != nil {
		return err
	}

	for _, m := range migrations {
		if int64(m.version) <= last.Int64 {
			continue
		}
		tx, err := conn.Begin()
		if err != nil {
			return err
		}
		if err := m.run(tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version, name) VALUES (?, ?)", m.version, m.name); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}

	return nil
}

func createUsers(tx *sql.Tx) error {
	_, err := tx.Exec(`
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role TEXT DEFAULT 'user',
		api_token TEXT,
		bio TEXT,
		profile_picture TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`)
	return err
}

func createCategories(tx *sql.Tx) error {
	_, err := tx.Exec(`
	CREATE TABLE IF NOT EXISTS categories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		color TEXT DEFAULT '#64748b',
		is_system BOOLEAN DEFAULT 0
	)`)
	return err
}

func createNotes(tx *sql.Tx) error {
	_, err := tx.Exec(`
	CREATE TABLE IF NOT EXISTS notes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		command TEXT NOT NULL,
		description TEXT NOT NULL,
		category TEXT,
		example TEXT,
		tags TEXT,
		user_id INTEGER REFERENCES users(id),
		is_public BOOLEAN DEFAULT 0,
		public_id TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`)
	return err
}

// extendNotes upgrades a notes table from the first revision, which only
// had id/command/description.
func extendNotes(tx *sql.Tx) error {
	for col, ddl := range map[string]string{
		"category": "category TEXT",
		"example":  "example TEXT",
		"tags":     "tags TEXT",
	} {
		if err := addColumnIfMissing(tx, "notes", col, ddl); err != nil {
			return err
		}
	}
	return nil
}

func notesOwnershipAndSharing(tx *sql.Tx) error {
	for col, ddl := range map[string]string{
		"user_id":   "user_id INTEGER REFERENCES users(id)",
		"is_public": "is_public BOOLEAN DEFAULT 0",
		"public_id": "public_id TEXT",
	} {
		if err := addColumnIfMissing(tx, "notes", col, ddl); err != nil {
			return err
		}
	}
	return nil
}

func usersProfileAndToken(tx *sql.Tx) error {
	for col, ddl := range map[string]string{
		"api_token":       "api_token TEXT",
		"bio":             "bio TEXT",
		"profile_picture": "profile_picture TEXT",
	} {
		if err := addColumnIfMissing(tx, "users", col, ddl); err != nil {
			return err
		}
	}
	return nil
}

func uniqueIndexes(tx *sql.Tx) error {
	if err := ensureUniqueIndex(tx, "users", "email", "idx_users_email"); err != nil {
		return err
	}
	if err := ensureUniqueIndex(tx, "users", "username", "idx_users_username"); err != nil {
		return err
	}
	// public_id uniquely identifies a note; NULLs (never-shared notes) are
	// exempt from the constraint.
	return ensureUniqueIndex(tx, "notes", "public_id", "idx_notes_public_id")
}

func seedSystemCategories(tx *sql.Tx) error {
	for _, c := range SystemCategories {
		var id int
		err := tx.QueryRow("SELECT id FROM categories WHERE LOWER(name) = LOWER(?)", c.Name).Scan(&id)
		if err == nil {
			continue
		}
		if err != sql.ErrNoRows {
			return err
		}
		if _, err := tx.Exec("INSERT INTO categories (name, color, is_system) VALUES (?, ?, 1)", c.Name, c.Color); err != nil {
			return err
		}
	}
	return nil
}

// addColumnIfMissing inspects the live column catalog and adds the column
// only when absent. A duplicate-column error from a concurrent run is
// swallowed; anything else propagates and aborts the migration.
func addColumnIfMissing(tx *sql.Tx, table, column, ddl string) error {
	cols, err := tableColumns(tx, table)
	if err != nil {
		return err
	}
	if cols[column] {
		return nil
	}
	_, err = tx.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", table, ddl))
	if err != nil && strings.Contains(err.Error(), "duplicate column name") {
		return nil
	}
	return err
}

func tableColumns(tx *sql.Tx, table string) (map[string]bool, error) {
	rows, err := tx.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notnull    int
			dflt       sql.NullString
			primaryKey int
		)
		if err := rows.Scan(&cid, &name, &typ, &notnull, &dflt, &primaryKey); err != nil {
			return nil, err
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

// ensureUniqueIndex creates a unique index on a single column unless an
// equivalent one already exists (inline UNIQUE constraints show up in the
// index list too). A duplicate index name is a no-op.
func ensureUniqueIndex(tx *sql.Tx, table, column, name string) error {
	exists, err := hasUniqueIndex(tx, table, column)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	_, err = tx.Exec(fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s(%s)", name, table, column))
	if err != nil && strings.Contains(err.Error(), "already exists") {
		return nil
	}
	return err
}

func hasUniqueIndex(tx *sql.Tx, table, column string) (bool, error) {
	rows, err := tx.Query(fmt.Sprintf("PRAGMA index_list(%s)", table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	var uniqueIndexes []string
	for rows.Next() {
		var (
			seq     int
			name    string
			unique  int
			origin  string
			partial int
		)
		if err := rows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			return false, err
		}
		if unique == 1 {
			uniqueIndexes = append(uniqueIndexes, name)
		}
	}
	if err := rows.Err(); err != nil {
		return false, err
	}

	for _, idx := range uniqueIndexes {
		cols, err := indexColumns(tx, idx)
		if err != nil {
			return false, err
		}
		if len(cols) == 1 && cols[0] == column {
			return true, nil
		}
	}
	return false, nil
}

func indexColumns(tx *sql.Tx, index string) ([]string, error) {
	rows, err := tx.Query(fmt.Sprintf("PRAGMA index_info(%s)", index))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var seqno, cid int
		var name sql.NullString
		if err := rows.Scan(&seqno, &cid, &name); err != nil {
			return nil, err
		}
		cols = append(cols, name.String)
	}
	return cols, rows.Err()
}
