package database

import (
	"context"
	"time"

	"farmrent/internal/models"
)

const userColumns = `email, name, phone, role, district, state, created_at, updated_at`

// UpsertUser creates a profile or refreshes an existing one. The original
// created_at is kept.
func (db *DB) UpsertUser(ctx context.Context, user *models.User) error {
	query := `INSERT INTO users (` + userColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			  ON CONFLICT(email) DO UPDATE SET
				name = excluded.name,
				phone = excluded.phone,
				role = excluded.role,
				district = excluded.district,
				state = excluded.state,
				updated_at = excluded.updated_at`
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	_, err := db.ExecContext(ctx, query,
		user.Email, user.Name, user.Phone, user.Role, user.District, user.State,
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return storeErr("upsert user", "user", user.Email, err)
	}
	return nil
}

func (db *DB) GetUser(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ?`
	var user models.User
	err := db.QueryRowContext(ctx, query, email).Scan(
		&user.Email, &user.Name, &user.Phone, &user.Role, &user.District, &user.State,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, storeErr("get user", "user", email, err)
	}
	return &user, nil
}

func (db *DB) ListUsers(ctx context.Context) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY email`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, storeErr("list users", "user", "", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		var user models.User
		if err := rows.Scan(
			&user.Email, &user.Name, &user.Phone, &user.Role, &user.District, &user.State,
			&user.CreatedAt, &user.UpdatedAt,
		); err != nil {
			return nil, storeErr("scan user", "user", "", err)
		}
		users = append(users, &user)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list users", "user", "", err)
	}
	return users, nil
}
