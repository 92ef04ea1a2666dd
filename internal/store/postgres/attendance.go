package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/example/facegate/internal/store"
	"github.com/google/uuid"
)

// AttendanceRepository negotiates daily attendance marks. The UNIQUE
// (identity_id, scan_date) constraint makes the insert conditional, so the
// guarantee holds even with multiple service instances writing concurrently.
type AttendanceRepository struct {
	pool *Pool
}

// NewAttendanceRepository creates an attendance repository.
func NewAttendanceRepository(pool *Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

const markColumns = `id, identity_id, first_name, last_name, email, user_type,
	company, job_title, scan_time, scan_date, status, similarity`

func scanMark(row interface{ Scan(...any) error }) (store.AttendanceMark, error) {
	var m store.AttendanceMark
	var scanDate time.Time // DATE columns come back as time.Time
	err := row.Scan(&m.ID, &m.IdentityID, &m.FirstName, &m.LastName, &m.Email,
		&m.UserType, &m.Company, &m.JobTitle, &m.ScanTime, &scanDate, &m.Status, &m.Similarity)
	m.ScanDate = scanDate.Format(store.DateLayout)
	return m, err
}

// CreateMark conditionally inserts the mark. ON CONFLICT DO NOTHING makes
// losing a race indistinguishable from finding a pre-existing mark, which is
// exactly the semantics the coordinator wants: created=false plus the
// persisted record.
func (r *AttendanceRepository) CreateMark(ctx context.Context, mark store.AttendanceMark) (bool, *store.AttendanceMark, error) {
	if mark.ID == "" {
		mark.ID = uuid.NewString()
	}

	result, err := r.pool.Exec(ctx, `
		INSERT INTO attendance (id, identity_id, first_name, last_name, email,
			user_type, company, company_normalized, job_title, scan_time,
			scan_date, status, similarity)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT ON CONSTRAINT attendance_identity_day DO NOTHING
	`, mark.ID, mark.IdentityID, mark.FirstName, mark.LastName, mark.Email,
		mark.UserType, mark.Company, store.NormalizeName(mark.Company),
		mark.JobTitle, mark.ScanTime, mark.ScanDate, mark.Status, mark.Similarity)
	if err != nil {
		return false, nil, fmt.Errorf("%w: create mark: %v", store.ErrExternalStore, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 1 {
		return true, nil, nil
	}

	existing, err := r.getMark(ctx, mark.IdentityID, mark.ScanDate)
	if err != nil {
		return false, nil, err
	}
	return false, existing, nil
}

func (r *AttendanceRepository) getMark(ctx context.Context, identityID, scanDate string) (*store.AttendanceMark, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM attendance WHERE identity_id = $1 AND scan_date = $2
	`, markColumns), identityID, scanDate)
	m, err := scanMark(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get mark: %v", store.ErrExternalStore, err)
	}
	return &m, nil
}

// HasMark reports whether the identity already has a mark for the day.
func (r *AttendanceRepository) HasMark(ctx context.Context, identityID, scanDate string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM attendance WHERE identity_id = $1 AND scan_date = $2)",
		identityID, scanDate).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%w: has mark: %v", store.ErrExternalStore, err)
	}
	return exists, nil
}

// ListMarks returns marks matching the filter, most recent first. Company
// names are compared through the company_normalized column, which holds
// store.NormalizeName of the stored company, so "María-José SA" matches the
// filter "maria jose sa".
func (r *AttendanceRepository) ListMarks(ctx context.Context, filter store.AttendanceFilter) ([]store.AttendanceMark, error) {
	query := fmt.Sprintf("SELECT %s FROM attendance WHERE 1=1", markColumns)
	var args []any

	if filter.Date != "" {
		args = append(args, filter.Date)
		query += " AND scan_date = $" + strconv.Itoa(len(args))
	}
	if filter.UserType != "" {
		args = append(args, filter.UserType)
		query += " AND user_type = $" + strconv.Itoa(len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += " AND status = $" + strconv.Itoa(len(args))
	}
	if filter.Company != "" {
		args = append(args, store.NormalizeName(filter.Company))
		query += " AND company_normalized = $" + strconv.Itoa(len(args))
	}
	query += " ORDER BY scan_date DESC, scan_time DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list marks: %v", store.ErrExternalStore, err)
	}
	defer rows.Close()

	var out []store.AttendanceMark
	for rows.Next() {
		m, err := scanMark(rows)
		if err != nil {
			return nil, fmt.Errorf("scan mark: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate marks: %w", err)
	}
	return out, nil
}

// CountMarks returns the number of marks for a day.
func (r *AttendanceRepository) CountMarks(ctx context.Context, scanDate string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM attendance WHERE scan_date = $1", scanDate).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: count marks: %v", store.ErrExternalStore, err)
	}
	return count, nil
}
