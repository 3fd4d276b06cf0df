package links

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/turner-mzeller/GitHubPortal/pkg/observability"
)

const linkColumns = `directory_id, directory_username, directory_display_name,
	       platform_id, platform_username, platform_avatar_url,
	       platform_token, platform_elevated_token, created_at, updated_at`

// PostgresStore implements Store on top of PostgreSQL.
type PostgresStore struct {
	db      *sql.DB
	metrics *observability.Metrics
}

// NewPostgresStore creates a link store backed by the given database.
// Metrics may be nil.
func NewPostgresStore(db *sql.DB, metrics *observability.Metrics) *PostgresStore {
	return &PostgresStore{db: db, metrics: metrics}
}

// FindByDirectoryID returns every link recorded for a directory object id.
func (s *PostgresStore) FindByDirectoryID(ctx context.Context, directoryID string) ([]*Link, error) {
	start := time.Now()
	query := `
		SELECT ` + linkColumns + `
		FROM identity_links
		WHERE directory_id = $1
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, directoryID)
	s.observe("find_by_directory_id", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to query links by directory id: %w", err)
	}
	defer rows.Close()
	return scanLinks(rows)
}

// FindByPlatformIDs returns the links matching any of the given platform ids.
func (s *PostgresStore) FindByPlatformIDs(ctx context.Context, platformIDs []string) ([]*Link, error) {
	if len(platformIDs) == 0 {
		return nil, nil
	}
	start := time.Now()
	query := `
		SELECT ` + linkColumns + `
		FROM identity_links
		WHERE platform_id = ANY($1)
	`
	rows, err := s.db.QueryContext(ctx, query, pq.Array(platformIDs))
	s.observe("find_by_platform_ids", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to query links by platform ids: %w", err)
	}
	defer rows.Close()
	return scanLinks(rows)
}

// FindByPlatformID returns the link for one platform id, or nil.
func (s *PostgresStore) FindByPlatformID(ctx context.Context, platformID string) (*Link, error) {
	matches, err := s.FindByPlatformIDs(ctx, []string{platformID})
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}
	return matches[0], nil
}

func (s *PostgresStore) observe(operation string, start time.Time, err error) {
	if s.metrics != nil {
		s.metrics.ObserveLinkQuery(operation, start, err)
	}
}

func scanLinks(rows *sql.Rows) ([]*Link, error) {
	var result []*Link
	for rows.Next() {
		link := &Link{}
		var displayName, avatarURL, token, elevatedToken sql.NullString
		if err := rows.Scan(
			&link.DirectoryID, &link.DirectoryUsername, &displayName,
			&link.PlatformID, &link.PlatformUsername, &avatarURL,
			&token, &elevatedToken, &link.CreatedAt, &link.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		link.DirectoryDisplayName = displayName.String
		link.PlatformAvatarURL = avatarURL.String
		link.PlatformToken = token.String
		link.PlatformElevatedToken = elevatedToken.String
		result = append(result, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read link rows: %w", err)
	}
	return result, nil
}
