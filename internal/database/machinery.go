package database

import (
	"context"
	"encoding/json"
	"time"

	"farmrent/internal/domain"
	"farmrent/internal/models"
)

const machineryColumns = `id, name, category, owner_email, owner_name, daily_rate, district, state,
	specifications, status, reviews, created_at, updated_at`

// SaveMachinery inserts or replaces a listing, reviews included.
func (db *DB) SaveMachinery(ctx context.Context, m *models.Machinery) error {
	if m.Status == "" {
		m.Status = models.MachineryAvailable
	}
	specs, err := json.Marshal(nonNilSpecs(m.Specifications))
	if err != nil {
		return domain.NewValidationError("specifications", err.Error())
	}
	reviews, err := json.Marshal(nonNilReviews(m.Reviews))
	if err != nil {
		return domain.NewValidationError("reviews", err.Error())
	}

	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now

	query := `INSERT INTO machinery (` + machineryColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			  ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				category = excluded.category,
				owner_email = excluded.owner_email,
				owner_name = excluded.owner_name,
				daily_rate = excluded.daily_rate,
				district = excluded.district,
				state = excluded.state,
				specifications = excluded.specifications,
				status = excluded.status,
				reviews = excluded.reviews,
				updated_at = excluded.updated_at`
	_, err = db.ExecContext(ctx, query,
		m.ID, m.Name, m.Category, m.OwnerEmail, m.OwnerName, m.DailyRate, m.District, m.State,
		string(specs), m.Status, string(reviews), m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return storeErr("save machinery", "machinery", m.ID, err)
	}
	return nil
}

func (db *DB) GetMachinery(ctx context.Context, id string) (*models.Machinery, error) {
	query := `SELECT ` + machineryColumns + ` FROM machinery WHERE id = ?`
	m, err := scanMachinery(db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, storeErr("get machinery", "machinery", id, err)
	}
	return m, nil
}

func (db *DB) ListMachinery(ctx context.Context) ([]*models.Machinery, error) {
	query := `SELECT ` + machineryColumns + ` FROM machinery ORDER BY name, id`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, storeErr("list machinery", "machinery", "", err)
	}
	defer rows.Close()

	var list []*models.Machinery
	for rows.Next() {
		m, err := scanMachinery(rows)
		if err != nil {
			return nil, storeErr("scan machinery", "machinery", "", err)
		}
		list = append(list, m)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list machinery", "machinery", "", err)
	}
	return list, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMachinery(row rowScanner) (*models.Machinery, error) {
	var (
		m              models.Machinery
		specs, reviews string
	)
	if err := row.Scan(
		&m.ID, &m.Name, &m.Category, &m.OwnerEmail, &m.OwnerName, &m.DailyRate, &m.District, &m.State,
		&specs, &m.Status, &reviews, &m.CreatedAt, &m.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(specs), &m.Specifications); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(reviews), &m.Reviews); err != nil {
		return nil, err
	}
	return &m, nil
}

func nonNilSpecs(s map[string]string) map[string]string {
	if s == nil {
		return map[string]string{}
	}
	return s
}

func nonNilReviews(r []models.Review) []models.Review {
	if r == nil {
		return []models.Review{}
	}
	return r
}
