package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/autoresttest/console/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Users and API keys ---

func (s *PostgresStore) GetUserByAPIKey(ctx context.Context, key string) (*models.User, error) {
	var u models.User
	var k models.APIKey
	err := s.pool.QueryRow(ctx,
		`SELECT u.id, u.email, u.created_at, u.updated_at, k.user_id, k.key, k.created_at
		 FROM api_keys k JOIN users u ON u.id = k.user_id
		 WHERE k.key = $1`, key,
	).Scan(&u.ID, &u.Email, &u.CreatedAt, &u.UpdatedAt, &k.UserID, &k.Key, &k.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by api key: %w", err)
	}
	u.APIKey = &k
	return &u, nil
}

func (s *PostgresStore) EnsureAPIKey(ctx context.Context, userID, email, candidate string) (string, error) {
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, email, created_at, updated_at)
		 VALUES ($1, $2, $3, $3)
		 ON CONFLICT (id) DO NOTHING`, userID, email, now)
	if err != nil {
		return "", fmt.Errorf("upsert user: %w", err)
	}

	// DO UPDATE SET key = api_keys.key is a no-op write that lets RETURNING
	// hand back the stored key when one already exists, so two concurrent
	// first requests converge on a single credential.
	var key string
	err = s.pool.QueryRow(ctx,
		`INSERT INTO api_keys (user_id, key, created_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE SET key = api_keys.key
		 RETURNING key`, userID, candidate, now,
	).Scan(&key)
	if err != nil {
		if isDuplicateKeyError(err) {
			return "", ErrDuplicateKey
		}
		return "", fmt.Errorf("ensure api key: %w", err)
	}
	return key, nil
}

// --- Jobs ---

const jobColumns = `id, user_id, status, status_message, progress_percentage,
	current_operation, config, summary, raw_file_urls, created_at, updated_at`

func scanJob(row pgx.Row) (*models.Job, error) {
	var j models.Job
	err := row.Scan(&j.ID, &j.UserID, &j.Status, &j.StatusMessage, &j.ProgressPercentage,
		&j.CurrentOperation, &j.Config, &j.Summary, &j.RawFileURLs, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (s *PostgresStore) CreateJob(ctx context.Context, job *models.Job) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO jobs (id, user_id, status, config, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		job.ID, job.UserID, job.Status, job.Config, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id uuid.UUID, userID string) (*models.Job, error) {
	j, err := scanJob(s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = $1 AND user_id = $2`, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

func (s *PostgresStore) GetJobByID(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	j, err := scanJob(s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job by id: %w", err)
	}
	return j, nil
}

func (s *PostgresStore) ListJobs(ctx context.Context, userID string) ([]*models.JobListItem, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, status, status_message, summary, created_at, updated_at
		 FROM jobs WHERE user_id = $1 ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.JobListItem
	for rows.Next() {
		var j models.JobListItem
		if err := rows.Scan(&j.ID, &j.Status, &j.StatusMessage, &j.Summary,
			&j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, &j)
	}
	return jobs, rows.Err()
}

func (s *PostgresStore) DeleteJob(ctx context.Context, id uuid.UUID, userID string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM jobs WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Status transitions ---
//
// Every write below re-checks its precondition inside the UPDATE's WHERE
// clause. Progress callbacks, the terminal callback, a user's cancel click
// and the periodic sweep all race on the same row; the guard makes a late
// write against a terminal row a zero-row no-op instead of a resurrection.

func (s *PostgresStore) ApplyProgress(ctx context.Context, id uuid.UUID, upd models.ProgressUpdate) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET
		   current_operation = COALESCE($2, current_operation),
		   progress_percentage = COALESCE($3, progress_percentage),
		   status_message = COALESCE($4, status_message),
		   status = 'running',
		   updated_at = NOW()
		 WHERE id = $1 AND status NOT IN ('failed', 'cancelled', 'completed')`,
		id, upd.CurrentOperation, upd.ProgressPercentage, upd.StatusMessage)
	if err != nil {
		return false, fmt.Errorf("apply progress: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	// Zero rows: either the job is terminal (fine, skip) or it never
	// existed (the caller should 404).
	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM jobs WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("check job exists: %w", err)
	}
	if !exists {
		return false, ErrNotFound
	}
	return false, nil
}

func (s *PostgresStore) MarkJobRunning(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = 'running', updated_at = NOW()
		 WHERE id = $1 AND status NOT IN ('failed', 'cancelled', 'completed')`, id)
	if err != nil {
		return fmt.Errorf("mark job running: %w", err)
	}
	return nil
}

func (s *PostgresStore) CompleteJob(ctx context.Context, id uuid.UUID, summary *models.JobSummary, rawFileURLs models.RawFileURLs) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = 'completed', summary = $2, raw_file_urls = $3, updated_at = NOW()
		 WHERE id = $1`, id, summary, rawFileURLs)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FailJob(ctx context.Context, id uuid.UUID, message string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = 'failed', status_message = $2, updated_at = NOW()
		 WHERE id = $1 AND status NOT IN ('completed', 'cancelled')`, id, message)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	return nil
}

func (s *PostgresStore) CancelJob(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = 'cancelled', updated_at = NOW()
		 WHERE id = $1 AND status != 'completed'`, id)
	if err != nil {
		return false, fmt.Errorf("cancel job: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) SweepStaleJobs(ctx context.Context, cutoff time.Time, message string) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx,
		`UPDATE jobs SET status = 'failed', status_message = $2, updated_at = NOW()
		 WHERE status = 'queued' AND created_at < $1
		 RETURNING id`, cutoff, message)
	if err != nil {
		return nil, fmt.Errorf("sweep stale jobs: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan swept job id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
