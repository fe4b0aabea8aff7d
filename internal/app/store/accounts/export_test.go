package accountstore

import "context"

// SetBeforeCommit installs a hook that runs after both inserts and before commit.
func (s *Store) SetBeforeCommit(fn func(ctx context.Context) error) {
	s.beforeCommit = fn
}
