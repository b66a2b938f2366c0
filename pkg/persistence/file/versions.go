package file

import (
	"context"
	"sort"
	"time"

	"github.com/pathwave/journey/pkg/models"
	"github.com/pathwave/journey/pkg/persistence"
)

// CreateVersion stores a new immutable version snapshot.
func (p *Persistence) CreateVersion(_ context.Context, version *models.JourneyVersion) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.journeys[version.JourneyID]; !ok {
		return persistence.ErrJourneyNotFound
	}

	for _, existing := range p.versions {
		if existing.JourneyID == version.JourneyID && existing.Version == version.Version {
			return persistence.ErrVersionExists
		}
	}

	p.versions[version.ID] = copyVersion(version)

	return p.flushLocked()
}

// VersionByID returns a version snapshot by id.
func (p *Persistence) VersionByID(_ context.Context, id string) (*models.JourneyVersion, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	version, ok := p.versions[id]
	if !ok {
		return nil, persistence.ErrVersionNotFound
	}

	return copyVersion(version), nil
}

// VersionByNumber returns the version with the given number for a journey.
func (p *Persistence) VersionByNumber(_ context.Context, journeyID string, number int) (*models.JourneyVersion, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, version := range p.versions {
		if version.JourneyID == journeyID && version.Version == number {
			return copyVersion(version), nil
		}
	}

	return nil, persistence.ErrVersionNotFound
}

// VersionsByJourney returns all versions of a journey, oldest first.
func (p *Persistence) VersionsByJourney(_ context.Context, journeyID string) ([]*models.JourneyVersion, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	versions := make([]*models.JourneyVersion, 0)

	for _, version := range p.versions {
		if version.JourneyID == journeyID {
			versions = append(versions, copyVersion(version))
		}
	}

	sort.Slice(versions, func(i, j int) bool {
		return versions[i].Version < versions[j].Version
	})

	return versions, nil
}

// NextVersionNumber allocates max(existing)+1, starting at 1.
func (p *Persistence) NextVersionNumber(_ context.Context, journeyID string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	highest := 0

	for _, version := range p.versions {
		if version.JourneyID == journeyID && version.Version > highest {
			highest = version.Version
		}
	}

	return highest + 1, nil
}

// PublishVersion performs the single-active-version transition under the
// store lock: the target must still be a draft, every other non-archived
// version of the journey (the published one and any competing drafts) is
// archived, and the journey's published pointer moves. Archiving competing
// drafts is what makes concurrent publishes of different drafts settle on
// one winner: the loser's target is no longer a draft, so it and every
// retry see ErrPublishConflict with no state changes.
func (p *Persistence) PublishVersion(_ context.Context, versionID string, publishTime time.Time) (*models.JourneyVersion, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	target, ok := p.versions[versionID]
	if !ok {
		return nil, persistence.ErrVersionNotFound
	}

	if target.Status != models.VersionStatusDraft {
		return nil, persistence.ErrPublishConflict
	}

	journey, ok := p.journeys[target.JourneyID]
	if !ok {
		return nil, persistence.ErrJourneyNotFound
	}

	for _, version := range p.versions {
		if version.JourneyID != target.JourneyID || version.ID == target.ID {
			continue
		}

		if version.Status != models.VersionStatusArchived {
			version.Status = models.VersionStatusArchived
		}
	}

	target.Status = models.VersionStatusPublished
	publishedAt := publishTime.UTC()
	target.PublishedAt = &publishedAt

	number := target.Version
	journey.PublishedVersion = &number
	journey.UpdatedAt = publishedAt

	if err := p.flushLocked(); err != nil {
		return nil, err
	}

	return copyVersion(target), nil
}

// PublishedVersion returns the journey's currently published version.
func (p *Persistence) PublishedVersion(_ context.Context, journeyID string) (*models.JourneyVersion, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.journeys[journeyID]; !ok {
		return nil, persistence.ErrJourneyNotFound
	}

	for _, version := range p.versions {
		if version.JourneyID == journeyID && version.Status == models.VersionStatusPublished {
			return copyVersion(version), nil
		}
	}

	return nil, persistence.ErrPublishedVersionNotFound
}
