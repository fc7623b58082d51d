package storage

import "context"

// Archive persists audit records of published replies. It is an operational
// log, not a score database: nothing in the dispatch path reads it back.
type Archive interface {
	Store(ctx context.Context, name string, data []byte) error
	Retrieve(ctx context.Context, name string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
}
