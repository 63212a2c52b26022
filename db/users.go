package db

import (
	"database/sql"

	"devnotes/models"
)

const userColumns = "id, username, email, password_hash, role, api_token, bio, profile_picture, created_at"

func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	var apiToken, bio, picture sql.NullString
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role,
		&apiToken, &bio, &picture, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	u.APIToken = apiToken.String
	u.Bio = bio.String
	u.ProfilePicture = picture.String
	return &u, nil
}

func CreateUser(username, email, password string) (int, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return 0, err
	}
	result, err := DB.Exec("INSERT INTO users (username, email, password_hash) VALUES (?, ?, ?)",
		username, email, hash)
	if err != nil {
		return 0, err
	}
	id, err := result.LastInsertId()
	return int(id), err
}

func GetUser(id int) (*models.User, error) {
	return scanUser(DB.QueryRow("SELECT "+userColumns+" FROM users WHERE id = ?", id))
}

func GetUserByEmail(email string) (*models.User, error) {
	return scanUser(DB.QueryRow("SELECT "+userColumns+" FROM users WHERE LOWER(email) = LOWER(?)", email))
}

// GetUserByToken resolves an API token to its user. An empty token never
// matches, even against rows that have no token assigned.
func GetUserByToken(token string) (*models.User, error) {
	if token == "" {
		return nil, sql.ErrNoRows
	}
	return scanUser(DB.QueryRow("SELECT "+userColumns+" FROM users WHERE api_token = ?", token))
}

func UpdateProfile(id int, username, bio, profilePicture string) error {
	_, err := DB.Exec("UPDATE users SET username = ?, bio = ?, profile_picture = ? WHERE id = ?",
		username, bio, profilePicture, id)
	return err
}

// PromoteAdmin grants the admin role to the account with the given email.
// An empty email or an email with no account is a no-op, so the call is
// safe at every startup regardless of whether the account exists yet.
func PromoteAdmin(email string) error {
	if email == "" {
		return nil
	}
	_, err := DB.Exec("UPDATE users SET role = 'admin' WHERE LOWER(email) = LOWER(?)", email)
	return err
}

// SetAPIToken overwrites the user's token; the previous one is invalid the
// moment this returns.
func SetAPIToken(id int, token string) error {
	_, err := DB.Exec("UPDATE users SET api_token = ? WHERE id = ?", token, id)
	return err
}

func SetPassword(id int, password string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	_, err = DB.Exec("UPDATE users SET password_hash = ? WHERE id = ?", hash, id)
	return err
}
