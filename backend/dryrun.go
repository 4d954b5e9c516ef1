package backend

import (
	"context"
	"errors"
)

var errRollback = errors.New("dry run: rolling back")

type dryRunStore struct {
	inner Store
}

// DryRun wraps store so every unit of work runs to completion and is then
// rolled back. Errors from fn are returned unchanged.
func DryRun(store Store) Store {
	return dryRunStore{inner: store}
}

func (d dryRunStore) WithinUnit(ctx context.Context, fn func(b Backend) error) error {
	var fnErr error
	err := d.inner.WithinUnit(ctx, func(b Backend) error {
		if fnErr = fn(b); fnErr != nil {
			return fnErr
		}
		return errRollback
	})
	if fnErr != nil {
		return fnErr
	}
	if errors.Is(err, errRollback) {
		return nil
	}
	return err
}
