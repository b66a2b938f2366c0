package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/pathwave/journey/pkg/models"
	"github.com/pathwave/journey/pkg/persistence"
)

const versionColumns = "id, journey_id, version, status, graph, created_at, published_at"

// CreateVersion stores a new immutable version snapshot.
func (p *Persistence) CreateVersion(ctx context.Context, version *models.JourneyVersion) error {
	graph, err := json.Marshal(version.Graph)
	if err != nil {
		return fmt.Errorf("failed to marshal graph: %w", err)
	}

	query := `
		INSERT INTO journey_versions (id, journey_id, version, status, graph, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	if version.CreatedAt.IsZero() {
		version.CreatedAt = time.Now().UTC()
	}

	_, err = p.db.ExecContext(ctx, query,
		version.ID,
		version.JourneyID,
		version.Version,
		version.Status,
		graph,
		version.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			switch pqErr.Code.Name() {
			case "unique_violation":
				return persistence.ErrVersionExists
			case "foreign_key_violation":
				return persistence.ErrJourneyNotFound
			}
		}

		return fmt.Errorf("failed to save version: %w", err)
	}

	return nil
}

// VersionByID returns a version snapshot by id.
func (p *Persistence) VersionByID(ctx context.Context, id string) (*models.JourneyVersion, error) {
	query := "SELECT " + versionColumns + " FROM journey_versions WHERE id = $1"

	return p.scanVersionRow(p.db.QueryRowContext(ctx, query, id))
}

// VersionByNumber returns the version with the given number for a journey.
func (p *Persistence) VersionByNumber(ctx context.Context, journeyID string, number int) (*models.JourneyVersion, error) {
	query := "SELECT " + versionColumns + " FROM journey_versions WHERE journey_id = $1 AND version = $2"

	return p.scanVersionRow(p.db.QueryRowContext(ctx, query, journeyID, number))
}

// VersionsByJourney returns all versions of a journey, oldest first.
func (p *Persistence) VersionsByJourney(ctx context.Context, journeyID string) ([]*models.JourneyVersion, error) {
	query := "SELECT " + versionColumns + " FROM journey_versions WHERE journey_id = $1 ORDER BY version ASC"

	rows, err := p.db.QueryContext(ctx, query, journeyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query versions: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			p.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	versions := make([]*models.JourneyVersion, 0)

	for rows.Next() {
		version, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}

		versions = append(versions, version)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating versions: %w", err)
	}

	return versions, nil
}

// NextVersionNumber allocates max(existing)+1, starting at 1.
func (p *Persistence) NextVersionNumber(ctx context.Context, journeyID string) (int, error) {
	var highest int

	err := p.db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(version), 0) FROM journey_versions WHERE journey_id = $1",
		journeyID).Scan(&highest)
	if err != nil {
		return 0, fmt.Errorf("failed to query highest version: %w", err)
	}

	return highest + 1, nil
}

// PublishVersion performs the single-active-version transition in one
// transaction. Publishes for the same journey serialize on a row lock of
// the journeys row, and the winner archives every other non-archived
// version, competing drafts included. A loser re-reads its target after
// the lock, finds it archived, and gets ErrPublishConflict on the attempt
// and every retry. The partial unique index on (journey_id) WHERE
// status = 'published' backs the invariant at the schema level.
func (p *Persistence) PublishVersion(ctx context.Context, versionID string, publishTime time.Time) (*models.JourneyVersion, error) {
	transaction, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin publish transaction: %w", err)
	}

	defer func() {
		_ = transaction.Rollback()
	}()

	var (
		journeyID string
		number    int
	)

	err = transaction.QueryRowContext(ctx,
		"SELECT journey_id, version FROM journey_versions WHERE id = $1",
		versionID).Scan(&journeyID, &number)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrVersionNotFound
		}

		return nil, fmt.Errorf("failed to read version: %w", err)
	}

	// One publish at a time per journey. Locking the journey row, not the
	// version row, keeps two publishes of different drafts from deadlocking
	// on each other's archive writes.
	err = transaction.QueryRowContext(ctx,
		"SELECT id FROM journeys WHERE id = $1 FOR UPDATE",
		journeyID).Scan(&journeyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrJourneyNotFound
		}

		return nil, fmt.Errorf("failed to lock journey: %w", err)
	}

	publishedAt := publishTime.UTC()

	_, err = transaction.ExecContext(ctx,
		"UPDATE journey_versions SET status = 'archived' WHERE journey_id = $1 AND id <> $2 AND status <> 'archived'",
		journeyID, versionID)
	if err != nil {
		return nil, fmt.Errorf("failed to archive competing versions: %w", err)
	}

	result, err := transaction.ExecContext(ctx,
		"UPDATE journey_versions SET status = 'published', published_at = $2 WHERE id = $1 AND status = 'draft'",
		versionID, publishedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to publish version: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return nil, persistence.ErrPublishConflict
	}

	_, err = transaction.ExecContext(ctx,
		"UPDATE journeys SET published_version = $2, updated_at = $3 WHERE id = $1",
		journeyID, number, publishedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to update journey pointer: %w", err)
	}

	if err := transaction.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit publish: %w", err)
	}

	return p.VersionByID(ctx, versionID)
}

// PublishedVersion returns the journey's currently published version.
func (p *Persistence) PublishedVersion(ctx context.Context, journeyID string) (*models.JourneyVersion, error) {
	query := "SELECT " + versionColumns + " FROM journey_versions WHERE journey_id = $1 AND status = 'published'"

	version, err := p.scanVersionRow(p.db.QueryRowContext(ctx, query, journeyID))
	if err != nil {
		if errors.Is(err, persistence.ErrVersionNotFound) {
			return nil, persistence.ErrPublishedVersionNotFound
		}

		return nil, err
	}

	return version, nil
}

func (p *Persistence) scanVersionRow(row rowScanner) (*models.JourneyVersion, error) {
	version, err := scanVersion(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrVersionNotFound
		}

		return nil, fmt.Errorf("failed to scan version: %w", err)
	}

	return version, nil
}

func scanVersion(row rowScanner) (*models.JourneyVersion, error) {
	version := &models.JourneyVersion{}

	var (
		graph       []byte
		publishedAt sql.NullTime
	)

	err := row.Scan(
		&version.ID,
		&version.JourneyID,
		&version.Version,
		&version.Status,
		&graph,
		&version.CreatedAt,
		&publishedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(graph, &version.Graph); err != nil {
		return nil, fmt.Errorf("failed to unmarshal graph: %w", err)
	}

	if publishedAt.Valid {
		at := publishedAt.Time
		version.PublishedAt = &at
	}

	return version, nil
}
