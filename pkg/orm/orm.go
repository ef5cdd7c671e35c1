// Package orm declares the relation marker types and the minimal data-access
// surface that generated bridge code calls into. It contains no query engine;
// the service supplies a DB implementation backed by whatever database layer
// it already uses.
package orm

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by DB implementations when a related row does not
// exist. Generated bridges wrap it when a required relation is absent.
var ErrNotFound = errors.New("orm: record not found")

// HasOne marks a field as a one-to-one relation owned by the other side.
// The orm struct tag names the foreign key and may override the target
// entity's package path, for example `orm:"from=AuthorID,target=../user"`.
type HasOne[E any] struct{}

// HasMany marks a field as a one-to-many relation. An empty collection
// models absence, so a HasMany relation is never optional.
type HasMany[E any] struct{}

// BelongsTo marks a field as the owning side of a relation; the named
// foreign-key field lives on this struct.
type BelongsTo[E any] struct{}

// DB is the shared data-access handle generated bridges receive. LoadRelated
// resolves the relation declared on the named field of owner and stores the
// result in dest, which is *E for single relations and *[]E for collections.
// A missing single row is reported as ErrNotFound.
type DB interface {
	LoadRelated(ctx context.Context, owner any, field string, dest any) error
}

// LoadOne fetches the single row related to owner through the named relation
// field. It returns nil with no error when the row does not exist; other
// failures are returned as-is.
func LoadOne[E any](ctx context.Context, db DB, owner any, field string) (*E, error) {
	var e E
	if err := db.LoadRelated(ctx, owner, field, &e); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load %s: %w", field, err)
	}
	return &e, nil
}

// LoadAll fetches every row related to owner through the named relation
// field. No rows is a valid result and yields an empty slice.
func LoadAll[E any](ctx context.Context, db DB, owner any, field string) ([]E, error) {
	var es []E
	if err := db.LoadRelated(ctx, owner, field, &es); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load %s: %w", field, err)
	}
	return es, nil
}
