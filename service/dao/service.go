package dao

import (
	"context"
)

// Service abstracts persistence of domain entities keyed by K. The approval
// registry and the command tracker are written against this interface so that
// the in-memory store can later be swapped for a durable one without touching
// the components themselves.
type Service[K comparable, T any] interface {
	Save(ctx context.Context, t *T) error

	Load(ctx context.Context, id K) (*T, error)

	Delete(ctx context.Context, id K) error

	List(ctx context.Context, parameters ...*Parameter) ([]*T, error)
}
