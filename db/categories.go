package db

import "devnotes/models"

func ListCategories() ([]models.Category, error) {
	rows, err := DB.Query("SELECT id, name, color, is_system FROM categories ORDER BY is_system DESC, name ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := []models.Category{}
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Color, &c.IsSystem); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func CreateCategory(name, color string) error {
	if color == "" {
		color = "#64748b"
	}
	_, err := DB.Exec("INSERT INTO categories (name, color, is_system) VALUES (?, ?, 0)", name, color)
	return err
}

// DeleteCategory removes a user-created category. System rows never match
// the WHERE clause, so deleting one is a silent no-op.
func DeleteCategory(id int) error {
	_, err := DB.Exec("DELETE FROM categories WHERE id = ? AND is_system = 0", id)
	return err
}
