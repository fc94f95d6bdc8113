package database

import (
	"context"
	"database/sql"
	"time"

	"farmrent/internal/domain"
	"farmrent/internal/models"
)

const requestColumns = `id, machinery_id, machinery_name, farmer_email, farmer_name, farmer_phone,
	provider_email, provider_name, start_date, end_date, total_days, daily_rate, total_price,
	fuel_included, fuel_paid_by, fuel_cost_per_day, estimated_fuel_cost, status,
	farmer_confirmed_at, provider_confirmed_at, agreement_id, dispute_reported, dispute_details,
	created_at, updated_at, version`

func (db *DB) CreateRequest(ctx context.Context, req *models.RentalRequest) error {
	if req.Version == 0 {
		req.Version = 1
	}
	query := `INSERT INTO rental_requests (` + requestColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query,
		req.ID, req.MachineryID, req.MachineryName, req.FarmerEmail, req.FarmerName, req.FarmerPhone,
		req.ProviderEmail, req.ProviderName, req.StartDate, req.EndDate, req.TotalDays, req.DailyRate, req.TotalPrice,
		req.FuelIncluded, fuelPayer(req), req.FuelCostPerDay, req.EstimatedFuelCost, req.Status,
		req.FarmerConfirmedAt, nullTime(req.ProviderConfirmedAt), req.AgreementID, req.DisputeReported, req.DisputeDetails,
		req.CreatedAt, req.UpdatedAt, req.Version,
	)
	if err != nil {
		return storeErr("create request", "rental request", req.ID, err)
	}
	return nil
}

func (db *DB) GetRequest(ctx context.Context, id string) (*models.RentalRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM rental_requests WHERE id = ?`
	req, err := scanRequest(db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, storeErr("get request", "rental request", id, err)
	}
	return req, nil
}

// UpdateRequestWithVersion writes the mutable fields of req when the row is
// still at fromVersion.
func (db *DB) UpdateRequestWithVersion(ctx context.Context, req *models.RentalRequest, fromVersion int64) error {
	query := `UPDATE rental_requests SET
				status = ?,
				provider_confirmed_at = ?,
				agreement_id = ?,
				dispute_reported = ?,
				dispute_details = ?,
				updated_at = ?,
				version = version + 1
			  WHERE id = ? AND version = ?`
	res, err := db.ExecContext(ctx, query,
		req.Status, nullTime(req.ProviderConfirmedAt), req.AgreementID, req.DisputeReported, req.DisputeDetails,
		req.UpdatedAt, req.ID, fromVersion,
	)
	if err != nil {
		return storeErr("update request", "rental request", req.ID, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return storeErr("update request", "rental request", req.ID, err)
	}
	if rows == 0 {
		var exists int
		err := db.QueryRowContext(ctx, `SELECT 1 FROM rental_requests WHERE id = ?`, req.ID).Scan(&exists)
		if err != nil {
			return storeErr("update request", "rental request", req.ID, err)
		}
		return domain.ErrConcurrentModification
	}
	req.Version = fromVersion + 1
	return nil
}

func (db *DB) ListRequestsByFarmer(ctx context.Context, email string) ([]*models.RentalRequest, error) {
	return db.listRequests(ctx, `farmer_email = ?`, email)
}

func (db *DB) ListRequestsByProvider(ctx context.Context, email string) ([]*models.RentalRequest, error) {
	return db.listRequests(ctx, `provider_email = ?`, email)
}

// ListRequests returns every request of the origin, newest first.
func (db *DB) ListRequests(ctx context.Context) ([]*models.RentalRequest, error) {
	return db.listRequests(ctx, `1 = 1`)
}

func (db *DB) listRequests(ctx context.Context, where string, args ...any) ([]*models.RentalRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM rental_requests WHERE ` + where + ` ORDER BY created_at DESC, id`
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("list requests", "rental request", "", err)
	}
	defer rows.Close()

	var list []*models.RentalRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, storeErr("scan request", "rental request", "", err)
		}
		list = append(list, req)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list requests", "rental request", "", err)
	}
	return list, nil
}

func scanRequest(row rowScanner) (*models.RentalRequest, error) {
	var (
		req               models.RentalRequest
		providerConfirmed sql.NullTime
		fuelPaidBy        sql.NullString
	)
	if err := row.Scan(
		&req.ID, &req.MachineryID, &req.MachineryName, &req.FarmerEmail, &req.FarmerName, &req.FarmerPhone,
		&req.ProviderEmail, &req.ProviderName, &req.StartDate, &req.EndDate, &req.TotalDays, &req.DailyRate, &req.TotalPrice,
		&req.FuelIncluded, &fuelPaidBy, &req.FuelCostPerDay, &req.EstimatedFuelCost, &req.Status,
		&req.FarmerConfirmedAt, &providerConfirmed, &req.AgreementID, &req.DisputeReported, &req.DisputeDetails,
		&req.CreatedAt, &req.UpdatedAt, &req.Version,
	); err != nil {
		return nil, err
	}
	if fuelPaidBy.Valid {
		req.FuelPaidBy = models.FuelPayer(fuelPaidBy.String)
	}
	if providerConfirmed.Valid {
		t := providerConfirmed.Time
		req.ProviderConfirmedAt = &t
	}
	return &req, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// fuelPayer is NULL unless fuel is included.
func fuelPayer(req *models.RentalRequest) sql.NullString {
	if !req.FuelIncluded || req.FuelPaidBy == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: string(req.FuelPaidBy), Valid: true}
}
