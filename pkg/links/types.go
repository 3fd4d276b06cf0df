// Package links defines the identity link record and the store contract
// used to persist and query links between a corporate directory identity
// and a platform identity.
package links

import (
	"context"
	"fmt"
	"time"
)

// Link is one confirmed association between a directory identity and a
// platform identity. At most one link exists per directory object id and
// at most one per platform user id. A link is immutable once read; any
// mutation happens through the store, never in memory.
type Link struct {
	DirectoryID          string    `json:"directory_id"`
	DirectoryUsername    string    `json:"directory_username"`
	DirectoryDisplayName string    `json:"directory_display_name"`
	PlatformID           string    `json:"platform_id"`
	PlatformUsername     string    `json:"platform_username"`
	PlatformAvatarURL    string    `json:"platform_avatar_url,omitempty"`
	PlatformToken        string    `json:"-"`
	PlatformElevatedToken string   `json:"-"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// Store is the narrow persistence contract this core requires. The
// storage engine behind it is not specified here.
type Store interface {
	// FindByDirectoryID returns every link recorded for a directory
	// object id. More than one result is a data integrity violation that
	// callers surface as a too-many-links condition.
	FindByDirectoryID(ctx context.Context, directoryID string) ([]*Link, error)

	// FindByPlatformIDs returns the links matching any of the given
	// platform user ids. Ids with no link are simply absent from the
	// result.
	FindByPlatformIDs(ctx context.Context, platformIDs []string) ([]*Link, error)

	// FindByPlatformID returns the link for a single platform user id,
	// or nil when none exists.
	FindByPlatformID(ctx context.Context, platformID string) (*Link, error)
}

// TransportError is a storage-layer failure that carries an HTTP-style
// status and body from the underlying service.
type TransportError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("link store transport failure (HTTP %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("link store transport failure (HTTP %d)", e.StatusCode)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
