package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pathwave/journey/pkg/models"
	"github.com/pathwave/journey/pkg/persistence"
)

// Journeys returns all journeys, newest first.
func (p *Persistence) Journeys(ctx context.Context) ([]*models.Journey, error) {
	query := `
		SELECT id, name, description, published_version, created_at, updated_at
		FROM journeys
		ORDER BY created_at DESC
	`

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query journeys: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			p.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	journeys := make([]*models.Journey, 0)

	for rows.Next() {
		journey, err := scanJourney(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan journey: %w", err)
		}

		journeys = append(journeys, journey)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating journeys: %w", err)
	}

	return journeys, nil
}

// JourneyByID returns a journey by its id.
func (p *Persistence) JourneyByID(ctx context.Context, id string) (*models.Journey, error) {
	query := `
		SELECT id, name, description, published_version, created_at, updated_at
		FROM journeys
		WHERE id = $1
	`

	journey, err := scanJourney(p.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrJourneyNotFound
		}

		return nil, fmt.Errorf("failed to scan journey: %w", err)
	}

	return journey, nil
}

// SaveJourney inserts or updates a journey.
func (p *Persistence) SaveJourney(ctx context.Context, journey *models.Journey) error {
	query := `
		INSERT INTO journeys (id, name, description, published_version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id)
		DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			published_version = EXCLUDED.published_version,
			updated_at = EXCLUDED.updated_at
	`

	now := time.Now().UTC()
	if journey.CreatedAt.IsZero() {
		journey.CreatedAt = now
	}

	journey.UpdatedAt = now

	_, err := p.db.ExecContext(ctx, query,
		journey.ID,
		journey.Name,
		journey.Description,
		journey.PublishedVersion,
		journey.CreatedAt,
		journey.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save journey: %w", err)
	}

	return nil
}

// DeleteJourney removes a journey, rejecting while versions reference it.
func (p *Persistence) DeleteJourney(ctx context.Context, id string) error {
	var count int

	err := p.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM journey_versions WHERE journey_id = $1", id).Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to count versions: %w", err)
	}

	if count > 0 {
		return persistence.ErrJourneyHasVersions
	}

	result, err := p.db.ExecContext(ctx, "DELETE FROM journeys WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete journey: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return persistence.ErrJourneyNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJourney(row rowScanner) (*models.Journey, error) {
	journey := &models.Journey{}

	var publishedVersion sql.NullInt64

	err := row.Scan(
		&journey.ID,
		&journey.Name,
		&journey.Description,
		&publishedVersion,
		&journey.CreatedAt,
		&journey.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if publishedVersion.Valid {
		version := int(publishedVersion.Int64)
		journey.PublishedVersion = &version
	}

	return journey, nil
}
