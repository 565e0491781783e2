package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// AttendanceRepository provides PostgreSQL-backed attendance storage.
type AttendanceRepository struct {
	pool *Pool
}

// NewAttendanceRepository creates a new PostgreSQL attendance repository.
func NewAttendanceRepository(pool *Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

// RecordCheckIn stores a check-in. The one-record-per-identity-per-day rule
// is enforced by the UNIQUE (identity_id, session_date) constraint with
// ON CONFLICT DO NOTHING, so concurrent duplicates cannot both succeed;
// losing inserts see zero affected rows and get ErrDuplicateForDay.
func (r *AttendanceRepository) RecordCheckIn(ctx context.Context, record *database.AttendanceRecord) error {
	if record.UID == "" {
		record.UID = uuid.NewString()
	}

	result, err := r.pool.Exec(ctx, `
		INSERT INTO attendance (uid, identity_id, session_date, check_in_time,
		                        confidence, distance, model_used, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (identity_id, session_date) DO NOTHING
	`,
		record.UID,
		record.IdentityID,
		record.SessionDate.Format("2006-01-02"),
		record.CheckInTime,
		record.Confidence,
		record.Distance,
		record.ModelUsed,
		record.Status,
		record.Notes,
	)
	if err != nil {
		return fmt.Errorf("insert attendance record: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("attendance rows affected: %w", err)
	}
	if affected == 0 {
		return database.ErrDuplicateForDay
	}
	return nil
}

// ReportByDate returns all records for a session date ordered by check-in time.
func (r *AttendanceRepository) ReportByDate(ctx context.Context, date time.Time) ([]database.AttendanceRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT a.id, a.uid, a.identity_id, i.full_name, a.session_date, a.check_in_time,
		       a.confidence, a.distance, a.model_used, a.status, a.notes
		FROM attendance a
		JOIN identities i ON i.id = a.identity_id
		WHERE a.session_date = $1
		ORDER BY a.check_in_time
	`, date.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("query attendance report: %w", err)
	}
	defer rows.Close()

	return scanAttendanceRecords(rows)
}

// HistoryByIdentity returns an identity's records, newest first, capped at
// limit (0 means no cap).
func (r *AttendanceRepository) HistoryByIdentity(ctx context.Context, identityID string, limit int) ([]database.AttendanceRecord, error) {
	query := `
		SELECT a.id, a.uid, a.identity_id, i.full_name, a.session_date, a.check_in_time,
		       a.confidence, a.distance, a.model_used, a.status, a.notes
		FROM attendance a
		JOIN identities i ON i.id = a.identity_id
		WHERE a.identity_id = $1
		ORDER BY a.check_in_time DESC
	`

	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = r.pool.Query(ctx, query+" LIMIT $2", identityID, limit)
	} else {
		rows, err = r.pool.Query(ctx, query, identityID)
	}
	if err != nil {
		return nil, fmt.Errorf("query attendance history: %w", err)
	}
	defer rows.Close()

	return scanAttendanceRecords(rows)
}

// CountByDate returns the number of check-ins for a session date.
func (r *AttendanceRepository) CountByDate(ctx context.Context, date time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(
		ctx, "SELECT COUNT(*) FROM attendance WHERE session_date = $1", date.Format("2006-01-02"),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count attendance: %w", err)
	}
	return count, nil
}

func scanAttendanceRecords(rows *sql.Rows) ([]database.AttendanceRecord, error) {
	var records []database.AttendanceRecord
	for rows.Next() {
		var record database.AttendanceRecord
		if err := rows.Scan(
			&record.ID,
			&record.UID,
			&record.IdentityID,
			&record.FullName,
			&record.SessionDate,
			&record.CheckInTime,
			&record.Confidence,
			&record.Distance,
			&record.ModelUsed,
			&record.Status,
			&record.Notes,
		); err != nil {
			return nil, fmt.Errorf("scan attendance record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance records: %w", err)
	}
	return records, nil
}

// Verify interface compliance.
var _ database.AttendanceStore = (*AttendanceRepository)(nil)
