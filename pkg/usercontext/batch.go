package usercontext

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/turner-mzeller/GitHubPortal/pkg/links"
)

// linkChunkSize bounds the size of any single link store query. In large
// organizations we will have trouble getting this much data back all at
// once.
const linkChunkSize = 200

// ResolveLinks resolves and attaches each user's identity link in bulk.
// Every handle must carry an id; ids are partitioned into fixed-size
// chunks preserving order and the chunks are queried concurrently. The
// batch fails fast on the first chunk failure. A handle with no stored
// link is left unlinked, not an error.
func (c *Context) ResolveLinks(ctx context.Context, users []*User) error {
	ids := make([]string, len(users))
	for i, user := range users {
		if user == nil || user.ID() == "" {
			return ErrMissingIdentifier
		}
		ids[i] = user.ID()
	}

	chunks := chunk(ids, linkChunkSize)
	results := make([][]*links.Link, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	for i, ids := range chunks {
		i, ids := i, ids
		g.Go(func() error {
			found, err := c.store.FindByPlatformIDs(gctx, ids)
			if err != nil {
				var transport *links.TransportError
				if errors.As(err, &transport) {
					return &StorageFailureError{StatusCode: transport.StatusCode, Err: err}
				}
				return err
			}
			results[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// Merge back by id so attachment is deterministic regardless of
	// chunk completion order.
	byID := make(map[string]*links.Link)
	for _, found := range results {
		for _, link := range found {
			byID[link.PlatformID] = link
		}
	}
	for _, user := range users {
		if link, ok := byID[user.ID()]; ok {
			user.setLink(link)
		}
	}
	return nil
}

// UsersByID translates a list of platform user ids into memoized user
// handles with their identity links resolved.
func (c *Context) UsersByID(ctx context.Context, ids []string) ([]*User, error) {
	users := make([]*User, len(ids))
	for i, id := range ids {
		users[i] = c.User(id)
	}
	if err := c.ResolveLinks(ctx, users); err != nil {
		return nil, err
	}
	return users, nil
}

// CompleteUsers translates a username-to-id mapping into user handles
// with identity links resolved and live profile details loaded. Link
// resolution failures abort the batch; a per-user detail fetch failure
// is ignored, since an account that left the platform is not a batch
// failure.
func (c *Context) CompleteUsers(ctx context.Context, usernameToID map[string]string) (map[string]*User, error) {
	users := make(map[string]*User, len(usernameToID))
	list := make([]*User, 0, len(usernameToID))
	for username, id := range usernameToID {
		user := c.userWithLogin(id, username)
		users[username] = user
		list = append(list, user)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.ResolveLinks(gctx, list)
	})
	g.Go(func() error {
		var wg sync.WaitGroup
		for _, user := range list {
			user := user
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = user.DetailsByLogin(gctx)
			}()
		}
		wg.Wait()
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return users, nil
}

// chunk partitions values into fixed-size groups preserving order.
func chunk(values []string, size int) [][]string {
	var groups [][]string
	for len(values) > size {
		groups = append(groups, values[:size])
		values = values[size:]
	}
	if len(values) > 0 {
		groups = append(groups, values)
	}
	return groups
}
