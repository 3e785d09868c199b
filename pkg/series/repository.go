package series

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

var (
	ErrSeriesNotFound    = errors.New("series not found")
	ErrExceptionNotFound = errors.New("exception not found")
)

type Repository interface {
	WithTransaction(ctx context.Context, fn func(repo Repository) error) error
	StoreSeries(ctx context.Context, s Series) (uuid.UUID, error)
	GetSeries(ctx context.Context, uid uuid.UUID) (*Series, error)
	ListActiveSeries(ctx context.Context) ([]Series, error)
	UpdateSeries(ctx context.Context, s Series) error
	SoftDeleteSeries(ctx context.Context, uid uuid.UUID) error
	UpsertException(ctx context.Context, ex Exception) error
	GetException(ctx context.Context, seriesUid uuid.UUID, occurrenceStart time.Time) (*Exception, error)
	FindExceptionByOverrideStart(ctx context.Context, seriesUid uuid.UUID, overrideStart time.Time) (*Exception, error)
	MarkExceptionDeleted(ctx context.Context, seriesUid uuid.UUID, occurrenceStart time.Time) error
	ListExceptions(ctx context.Context, seriesUid uuid.UUID) ([]Exception, error)
	MoveExceptions(ctx context.Context, fromUid, toUid uuid.UUID, from time.Time) error
}

type RepositoryImpl struct {
	db *sql.DB
	tx *sql.Tx
}

func NewRepository(db *sql.DB) *RepositoryImpl {
	return &RepositoryImpl{db: db, tx: nil}
}

// getQueryer returns the appropriate database interface for queries (either tx or db)
func (r *RepositoryImpl) getQueryer() interface {
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
} {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

func (r *RepositoryImpl) WithTransaction(ctx context.Context, fn func(repo Repository) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		// The Rollback will be a no-op if the transaction was already committed
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			log.Errorf("rollback error: %v", rbErr)
		}
	}()

	txRepo := &RepositoryImpl{db: r.db, tx: tx}

	if err := fn(txRepo); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

const seriesColumns = `uid, title, start_time, duration_minutes, frequency, weekdays,
	recurrence_interval, until_time, link, notes, location, host, category, is_deleted, created_at`

func (r *RepositoryImpl) StoreSeries(ctx context.Context, s Series) (uuid.UUID, error) {
	query := `INSERT INTO series (` + seriesColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	stmt, err := r.getQueryer().PrepareContext(ctx, query)
	if err != nil {
		err := fmt.Errorf("could not prepare query: %v", err)
		log.Error(err)
		return uuid.Nil, err
	}
	defer stmt.Close()

	uid := uuid.New()
	_, err = stmt.ExecContext(ctx,
		uid.String(),
		s.Title,
		s.Start.UnixMilli(),
		s.DurationMinutes,
		string(s.Frequency),
		joinWeekdays(s.Weekdays),
		s.Interval,
		nullableMillis(s.Until),
		s.Link,
		s.Notes,
		s.Location,
		s.Host,
		s.Category,
		s.IsDeleted,
		s.CreatedAt.UnixMilli(),
	)
	if err != nil {
		err := fmt.Errorf("could not execute query: %v", err)
		log.Error(err)
		return uuid.Nil, err
	}

	return uid, nil
}

func (r *RepositoryImpl) GetSeries(ctx context.Context, uid uuid.UUID) (*Series, error) {
	query := `SELECT ` + seriesColumns + ` FROM series WHERE uid = ? AND is_deleted = FALSE`

	row := r.getQueryer().QueryRowContext(ctx, query, uid.String())
	s, err := scanSeries(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSeriesNotFound
	}
	if err != nil {
		err := fmt.Errorf("could not scan series row: %w", err)
		log.Error(err)
		return nil, err
	}
	return s, nil
}

func (r *RepositoryImpl) ListActiveSeries(ctx context.Context) ([]Series, error) {
	query := `SELECT ` + seriesColumns + ` FROM series WHERE is_deleted = FALSE ORDER BY start_time`

	rows, err := r.getQueryer().QueryContext(ctx, query)
	if err != nil {
		err := fmt.Errorf("could not query series: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	result := make([]Series, 0, 10)
	for rows.Next() {
		s, err := scanSeries(rows)
		if err != nil {
			err := fmt.Errorf("could not scan series row: %w", err)
			log.Error(err)
			return nil, err
		}
		result = append(result, *s)
	}
	return result, nil
}

func (r *RepositoryImpl) UpdateSeries(ctx context.Context, s Series) error {
	query := `UPDATE series SET title = ?, start_time = ?, duration_minutes = ?, frequency = ?,
				weekdays = ?, recurrence_interval = ?, until_time = ?, link = ?, notes = ?,
				location = ?, host = ?, category = ?
			  WHERE uid = ?`
	stmt, err := r.getQueryer().PrepareContext(ctx, query)
	if err != nil {
		err := fmt.Errorf("could not prepare query: %v", err)
		log.Error(err)
		return err
	}
	defer stmt.Close()
	res, err := stmt.ExecContext(ctx,
		s.Title,
		s.Start.UnixMilli(),
		s.DurationMinutes,
		string(s.Frequency),
		joinWeekdays(s.Weekdays),
		s.Interval,
		nullableMillis(s.Until),
		s.Link,
		s.Notes,
		s.Location,
		s.Host,
		s.Category,
		s.UID.UUID.String(),
	)
	if err != nil {
		err := fmt.Errorf("could not execute query: %v", err)
		log.Error(err)
		return err
	}
	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return ErrSeriesNotFound
	}
	return nil
}

func (r *RepositoryImpl) SoftDeleteSeries(ctx context.Context, uid uuid.UUID) error {
	query := `UPDATE series SET is_deleted = TRUE WHERE uid = ?`
	res, err := r.getQueryer().ExecContext(ctx, query, uid.String())
	if err != nil {
		err := fmt.Errorf("could not execute query: %v", err)
		log.Error(err)
		return err
	}
	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return ErrSeriesNotFound
	}
	return nil
}

const exceptionColumns = `series_uid, occurrence_start, deleted, override_start,
	override_duration_minutes, override_title, override_link, override_notes,
	override_location, override_host, override_category, created_at`

// UpsertException inserts the exception or, when one already exists for the
// same (series_uid, occurrence_start) key, replaces its flags and overrides.
// The composite primary key keeps the one-exception-per-occurrence invariant.
func (r *RepositoryImpl) UpsertException(ctx context.Context, ex Exception) error {
	query := `INSERT INTO series_exception (` + exceptionColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			  ON CONFLICT (series_uid, occurrence_start) DO UPDATE SET
				deleted = excluded.deleted,
				override_start = excluded.override_start,
				override_duration_minutes = excluded.override_duration_minutes,
				override_title = excluded.override_title,
				override_link = excluded.override_link,
				override_notes = excluded.override_notes,
				override_location = excluded.override_location,
				override_host = excluded.override_host,
				override_category = excluded.override_category`

	stmt, err := r.getQueryer().PrepareContext(ctx, query)
	if err != nil {
		err := fmt.Errorf("could not prepare query: %v", err)
		log.Error(err)
		return err
	}
	defer stmt.Close()

	var overrideDuration sql.NullInt64
	if ex.Override.DurationMinutes != nil {
		overrideDuration = sql.NullInt64{Int64: int64(*ex.Override.DurationMinutes), Valid: true}
	}
	_, err = stmt.ExecContext(ctx,
		ex.SeriesUID.String(),
		ex.OccurrenceStart.UnixMilli(),
		ex.Deleted,
		nullableMillis(ex.Override.Start),
		overrideDuration,
		ex.Override.Title,
		ex.Override.Link,
		ex.Override.Notes,
		ex.Override.Location,
		ex.Override.Host,
		ex.Override.Category,
		ex.CreatedAt.UnixMilli(),
	)
	if err != nil {
		err := fmt.Errorf("could not execute query: %v", err)
		log.Error(err)
		return err
	}
	return nil
}

func (r *RepositoryImpl) GetException(ctx context.Context, seriesUid uuid.UUID, occurrenceStart time.Time) (*Exception, error) {
	query := `SELECT ` + exceptionColumns + ` FROM series_exception
			  WHERE series_uid = ? AND occurrence_start = ?`

	row := r.getQueryer().QueryRowContext(ctx, query, seriesUid.String(), occurrenceStart.UnixMilli())
	ex, err := scanException(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrExceptionNotFound
	}
	if err != nil {
		err := fmt.Errorf("could not scan exception row: %w", err)
		log.Error(err)
		return nil, err
	}
	return ex, nil
}

func (r *RepositoryImpl) FindExceptionByOverrideStart(ctx context.Context, seriesUid uuid.UUID, overrideStart time.Time) (*Exception, error) {
	query := `SELECT ` + exceptionColumns + ` FROM series_exception
			  WHERE series_uid = ? AND override_start = ?
			  ORDER BY occurrence_start LIMIT 1`

	row := r.getQueryer().QueryRowContext(ctx, query, seriesUid.String(), overrideStart.UnixMilli())
	ex, err := scanException(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrExceptionNotFound
	}
	if err != nil {
		err := fmt.Errorf("could not scan exception row: %w", err)
		log.Error(err)
		return nil, err
	}
	return ex, nil
}

func (r *RepositoryImpl) MarkExceptionDeleted(ctx context.Context, seriesUid uuid.UUID, occurrenceStart time.Time) error {
	query := `UPDATE series_exception SET deleted = TRUE WHERE series_uid = ? AND occurrence_start = ?`
	res, err := r.getQueryer().ExecContext(ctx, query, seriesUid.String(), occurrenceStart.UnixMilli())
	if err != nil {
		err := fmt.Errorf("could not execute query: %v", err)
		log.Error(err)
		return err
	}
	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return ErrExceptionNotFound
	}
	return nil
}

func (r *RepositoryImpl) ListExceptions(ctx context.Context, seriesUid uuid.UUID) ([]Exception, error) {
	query := `SELECT ` + exceptionColumns + ` FROM series_exception
			  WHERE series_uid = ? ORDER BY occurrence_start`

	rows, err := r.getQueryer().QueryContext(ctx, query, seriesUid.String())
	if err != nil {
		err := fmt.Errorf("could not query exceptions: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	result := make([]Exception, 0, 4)
	for rows.Next() {
		ex, err := scanException(rows)
		if err != nil {
			err := fmt.Errorf("could not scan exception row: %w", err)
			log.Error(err)
			return nil, err
		}
		result = append(result, *ex)
	}
	return result, nil
}

// MoveExceptions reassigns every exception of fromUid whose original
// occurrence time is at or after the given instant to toUid.
func (r *RepositoryImpl) MoveExceptions(ctx context.Context, fromUid, toUid uuid.UUID, from time.Time) error {
	query := `UPDATE series_exception SET series_uid = ? WHERE series_uid = ? AND occurrence_start >= ?`
	_, err := r.getQueryer().ExecContext(ctx, query, toUid.String(), fromUid.String(), from.UnixMilli())
	if err != nil {
		err := fmt.Errorf("could not execute query: %v", err)
		log.Error(err)
		return err
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSeries(row rowScanner) (*Series, error) {
	var (
		uidStr          string
		title           string
		startMillis     int64
		durationMinutes int
		frequency       string
		weekdays        string
		interval        int
		untilMillis     sql.NullInt64
		link            string
		notes           string
		location        string
		host            string
		category        string
		isDeleted       bool
		createdAtMillis int64
	)
	err := row.Scan(&uidStr, &title, &startMillis, &durationMinutes, &frequency, &weekdays,
		&interval, &untilMillis, &link, &notes, &location, &host, &category, &isDeleted, &createdAtMillis)
	if err != nil {
		return nil, err
	}

	uid, err := uuid.Parse(uidStr)
	if err != nil {
		return nil, fmt.Errorf("invalid series uid %q: %w", uidStr, err)
	}
	var until *time.Time
	if untilMillis.Valid {
		t := time.UnixMilli(untilMillis.Int64).UTC()
		until = &t
	}
	return &Series{
		UID:             uuid.NullUUID{UUID: uid, Valid: true},
		Title:           title,
		Start:           time.UnixMilli(startMillis).UTC(),
		DurationMinutes: durationMinutes,
		Frequency:       Frequency(frequency),
		Weekdays:        splitWeekdays(weekdays),
		Interval:        interval,
		Until:           until,
		Link:            link,
		Notes:           notes,
		Location:        location,
		Host:            host,
		Category:        category,
		IsDeleted:       isDeleted,
		CreatedAt:       time.UnixMilli(createdAtMillis).UTC(),
	}, nil
}

func scanException(row rowScanner) (*Exception, error) {
	var (
		seriesUidStr     string
		occurrenceMillis int64
		deleted          bool
		overrideStart    sql.NullInt64
		overrideDuration sql.NullInt64
		title            string
		link             string
		notes            string
		location         string
		host             string
		category         string
		createdAtMillis  int64
	)
	err := row.Scan(&seriesUidStr, &occurrenceMillis, &deleted, &overrideStart, &overrideDuration,
		&title, &link, &notes, &location, &host, &category, &createdAtMillis)
	if err != nil {
		return nil, err
	}

	seriesUid, err := uuid.Parse(seriesUidStr)
	if err != nil {
		return nil, fmt.Errorf("invalid series uid %q: %w", seriesUidStr, err)
	}
	ex := &Exception{
		SeriesUID:       seriesUid,
		OccurrenceStart: time.UnixMilli(occurrenceMillis).UTC(),
		Deleted:         deleted,
		CreatedAt:       time.UnixMilli(createdAtMillis).UTC(),
		Override: Override{
			Title:    title,
			Link:     link,
			Notes:    notes,
			Location: location,
			Host:     host,
			Category: category,
		},
	}
	if overrideStart.Valid {
		t := time.UnixMilli(overrideStart.Int64).UTC()
		ex.Override.Start = &t
	}
	if overrideDuration.Valid {
		d := int(overrideDuration.Int64)
		ex.Override.DurationMinutes = &d
	}
	return ex, nil
}

func nullableMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func joinWeekdays(weekdays []Weekday) string {
	parts := make([]string, 0, len(weekdays))
	for _, wd := range weekdays {
		parts = append(parts, string(wd))
	}
	return strings.Join(parts, ",")
}

func splitWeekdays(joined string) []Weekday {
	if joined == "" {
		return nil
	}
	parts := strings.Split(joined, ",")
	weekdays := make([]Weekday, 0, len(parts))
	for _, p := range parts {
		weekdays = append(weekdays, Weekday(p))
	}
	return weekdays
}
