package db

import (
	"database/sql"

	"devnotes/models"

	"github.com/google/uuid"
)

const noteColumns = "id, command, description, category, example, tags, user_id, is_public, public_id, created_at"

func scanNote(scan func(dest ...any) error) (*models.Note, error) {
	var n models.Note
	var category, example, tags, publicID sql.NullString
	var userID sql.NullInt64
	err := scan(&n.ID, &n.Command, &n.Description, &category, &example, &tags,
		&userID, &n.IsPublic, &publicID, &n.CreatedAt)
	if err != nil {
		return nil, err
	}
	n.Category = category.String
	n.Example = example.String
	n.Tags = tags.String
	n.UserID = int(userID.Int64)
	n.PublicID = publicID.String
	return &n, nil
}

// CreateNote inserts a note owned by userID. The insert runs in its own
// transaction and is rolled back on failure.
func CreateNote(userID int, command, description, category, example, tags string) (int, error) {
	tx, err := DB.Begin()
	if err != nil {
		return 0, err
	}
	result, err := tx.Exec(
		"INSERT INTO notes (command, description, category, example, tags, user_id) VALUES (?, ?, ?, ?, ?, ?)",
		command, description, category, example, tags, userID)
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return int(id), nil
}

func GetNote(id int) (*models.Note, error) {
	row := DB.QueryRow("SELECT "+noteColumns+" FROM notes WHERE id = ?", id)
	return scanNote(row.Scan)
}

// GetPublicNote resolves a share link. The note must be public at read
// time; a note toggled back to private is unreachable through its old link.
func GetPublicNote(publicID string) (*models.Note, error) {
	row := DB.QueryRow("SELECT "+noteColumns+" FROM notes WHERE public_id = ? AND is_public = 1", publicID)
	return scanNote(row.Scan)
}

// ListNotes returns the user's notes newest-first. category narrows to an
// exact match, search is a substring match across command, description and
// tags; either may be empty.
func ListNotes(userID int, category, search string) ([]models.Note, error) {
	query := "SELECT " + noteColumns + " FROM notes WHERE user_id = ?"
	args := []any{userID}

	if category != "" {
		query += " AND category = ?"
		args = append(args, category)
	}
	if search != "" {
		query += " AND (command LIKE ? OR description LIKE ? OR tags LIKE ?)"
		term := "%" + search + "%"
		args = append(args, term, term, term)
	}
	query += " ORDER BY id DESC"

	rows, err := DB.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notes := []models.Note{}
	for rows.Next() {
		n, err := scanNote(rows.Scan)
		if err != nil {
			return nil, err
		}
		notes = append(notes, *n)
	}
	return notes, rows.Err()
}

// UpdateNote replaces every content field. The WHERE clause carries the
// owner so a concurrent ownership change cannot slip past the handler's
// authorization check.
func UpdateNote(id, userID int, command, description, category, example, tags string) error {
	_, err := DB.Exec(
		"UPDATE notes SET command = ?, description = ?, category = ?, example = ?, tags = ? WHERE id = ? AND user_id = ?",
		command, description, category, example, tags, id, userID)
	return err
}

func DeleteNote(id, userID int) error {
	_, err := DB.Exec("DELETE FROM notes WHERE id = ? AND user_id = ?", id, userID)
	return err
}

// TogglePublic flips the note's visibility. The first transition to public
// mints the public_id; it is never regenerated afterwards, so a link keeps
// working across later private/public cycles.
func TogglePublic(note *models.Note) error {
	note.IsPublic = !note.IsPublic
	if note.IsPublic && note.PublicID == "" {
		note.PublicID = uuid.NewString()
	}

	var publicID any
	if note.PublicID != "" {
		publicID = note.PublicID
	}
	_, err := DB.Exec("UPDATE notes SET is_public = ?, public_id = ? WHERE id = ? AND user_id = ?",
		note.IsPublic, publicID, note.ID, note.UserID)
	return err
}

// DistinctCategories lists the category strings actually used by the
// user's notes, for the API. The curated categories table is separate.
func DistinctCategories(userID int) ([]string, error) {
	rows, err := DB.Query("SELECT DISTINCT category FROM notes WHERE user_id = ? AND category IS NOT NULL AND category != ''", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := []string{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}
