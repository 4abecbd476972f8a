package store

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v4"

	"github.com/couchcryptid/modtrack/internal/domain"
)

// Postgres is the production store on a single pgx connection.
type Postgres struct {
	mu      sync.Mutex
	conn    *pgx.Conn
	timeout time.Duration
}

// BuildDSN assembles a Postgres connection string from a secret map holding
// username, password, host, port, and dbname.
func BuildDSN(secret map[string]string) (string, error) {
	for _, key := range []string{"username", "password", "host", "port", "dbname"} {
		if secret[key] == "" {
			return "", fmt.Errorf("database secret missing %s", key)
		}
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s",
		url.QueryEscape(secret["username"]),
		url.QueryEscape(secret["password"]),
		secret["host"],
		secret["port"],
		secret["dbname"],
	), nil
}

// Connect dials Postgres and applies the schema. timeout bounds every later
// call on the returned store.
func Connect(ctx context.Context, dsn string, timeout time.Duration) (*Postgres, error) {
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := pgx.Connect(dialCtx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	p := &Postgres{conn: conn, timeout: timeout}
	if err := p.initSchema(ctx); err != nil {
		conn.Close(ctx)
		return nil, err
	}
	return p, nil
}

func (p *Postgres) initSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	_, err := p.conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS predictions (
			id UUID PRIMARY KEY,
			reservoir_id VARCHAR(50) NOT NULL,
			predicted_level DECIMAL(10,2) NOT NULL,
			prediction_timestamp TIMESTAMP WITH TIME ZONE NOT NULL,
			validation_time TIMESTAMP WITH TIME ZONE NOT NULL,
			file_name VARCHAR(255) NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS validations (
			id UUID PRIMARY KEY,
			prediction_id UUID NOT NULL REFERENCES predictions(id),
			actual_level DECIMAL(10,2) NOT NULL,
			difference DECIMAL(10,2) NOT NULL,
			source VARCHAR(10) NOT NULL DEFAULT 'measured',
			validated_at TIMESTAMP WITH TIME ZONE NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
		);

		CREATE UNIQUE INDEX IF NOT EXISTS validations_prediction_id_key
			ON validations (prediction_id);
	`)
	if err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// InsertPrediction persists one prediction as its own transaction.
func (p *Postgres) InsertPrediction(ctx context.Context, pred domain.Prediction) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	_, err := p.conn.Exec(ctx, `
		INSERT INTO predictions
			(id, reservoir_id, predicted_level, prediction_timestamp, validation_time, file_name)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, pred.ID, pred.ReservoirID, pred.PredictedLevel, pred.PredictionTime, pred.ValidationTime, pred.FileName)
	if err != nil {
		return fmt.Errorf("insert prediction %s: %w", pred.ID, err)
	}
	return nil
}

// InsertValidation persists one validation. A second validation for the same
// prediction hits the unique index and is reported as ErrAlreadyValidated.
func (p *Postgres) InsertValidation(ctx context.Context, v domain.Validation) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	_, err := p.conn.Exec(ctx, `
		INSERT INTO validations
			(id, prediction_id, actual_level, difference, source, validated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, v.ID, v.PredictionID, v.ActualLevel, v.Deviation, string(v.Source), v.ValidatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%w: %s", ErrAlreadyValidated, v.PredictionID)
		}
		return fmt.Errorf("insert validation for %s: %w", v.PredictionID, err)
	}
	return nil
}

// SweepStale inserts placeholder validations for every prediction whose
// validation time is before cutoff and that has no validation yet. One
// statement, so re-running with no new data affects zero rows.
func (p *Postgres) SweepStale(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	tag, err := p.conn.Exec(ctx, `
		INSERT INTO validations
			(id, prediction_id, actual_level, difference, source, validated_at)
		SELECT gen_random_uuid(), p.id, 0, 0, 'stale', CURRENT_TIMESTAMP
		FROM predictions p
		LEFT JOIN validations v ON v.prediction_id = p.id
		WHERE v.id IS NULL AND p.validation_time < $1
		ON CONFLICT (prediction_id) DO NOTHING
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep stale predictions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// RecentPredictions returns predictions (optionally filtered by reservoir)
// since the given time, newest first, joined with their validation if any.
func (p *Postgres) RecentPredictions(ctx context.Context, reservoirID string, since time.Time, limit int) ([]Record, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	rows, err := p.conn.Query(ctx, `
		SELECT
			p.id, p.reservoir_id, p.predicted_level, p.prediction_timestamp,
			p.validation_time, p.file_name,
			v.id, v.actual_level, v.difference, v.source, v.validated_at
		FROM predictions p
		LEFT JOIN validations v ON v.prediction_id = p.id
		WHERE p.prediction_timestamp >= $1
			AND ($2 = '' OR p.reservoir_id = $2)
		ORDER BY p.prediction_timestamp DESC
		LIMIT $3
	`, since, reservoirID, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent predictions: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			rec        Record
			vID        *string
			vActual    *float64
			vDeviation *float64
			vSource    *string
			vValidated *time.Time
		)
		if err := rows.Scan(
			&rec.Prediction.ID, &rec.Prediction.ReservoirID, &rec.Prediction.PredictedLevel,
			&rec.Prediction.PredictionTime, &rec.Prediction.ValidationTime, &rec.Prediction.FileName,
			&vID, &vActual, &vDeviation, &vSource, &vValidated,
		); err != nil {
			return nil, fmt.Errorf("scan prediction row: %w", err)
		}
		if vID != nil {
			rec.Validation = &domain.Validation{
				ID:           *vID,
				PredictionID: rec.Prediction.ID,
				ActualLevel:  *vActual,
				Deviation:    *vDeviation,
				Source:       domain.ValidationSource(*vSource),
				ValidatedAt:  *vValidated,
			}
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Summary aggregates outcomes since the given time.
func (p *Postgres) Summary(ctx context.Context, since time.Time) (Summary, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	var s Summary
	err := p.conn.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(v.id),
			ROUND(AVG(v.difference)::numeric, 2),
			ROUND(MAX(v.difference)::numeric, 2),
			ROUND(MIN(v.difference)::numeric, 2)
		FROM predictions p
		LEFT JOIN validations v ON v.prediction_id = p.id
		WHERE p.prediction_timestamp >= $1
	`, since).Scan(&s.TotalPredictions, &s.ValidatedCount, &s.AvgDeviation, &s.MaxDeviation, &s.MinDeviation)
	if err != nil {
		return Summary{}, fmt.Errorf("query summary: %w", err)
	}

	if s.TotalPredictions > 0 {
		s.SuccessRate = float64(s.ValidatedCount) / float64(s.TotalPredictions) * 100
	}
	return s, nil
}

// ReservoirStats aggregates outcomes per reservoir since the given time.
func (p *Postgres) ReservoirStats(ctx context.Context, since time.Time) ([]ReservoirStat, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	rows, err := p.conn.Query(ctx, `
		SELECT
			p.reservoir_id,
			COUNT(*),
			ROUND(AVG(v.difference)::numeric, 2)
		FROM predictions p
		LEFT JOIN validations v ON v.prediction_id = p.id
		WHERE p.prediction_timestamp >= $1
		GROUP BY p.reservoir_id
		ORDER BY p.reservoir_id
	`, since)
	if err != nil {
		return nil, fmt.Errorf("query reservoir stats: %w", err)
	}
	defer rows.Close()

	var stats []ReservoirStat
	for rows.Next() {
		var st ReservoirStat
		if err := rows.Scan(&st.ReservoirID, &st.PredictionCount, &st.AvgDeviation); err != nil {
			return nil, fmt.Errorf("scan reservoir stat: %w", err)
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

// Close releases the connection.
func (p *Postgres) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn.Close(ctx)
}
