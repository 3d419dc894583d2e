package sync

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_adapter.go -package=mocks github.com/fclairamb/docmap/internal/sync Adapter

import (
	"context"

	"github.com/fclairamb/docmap/internal/mapping"
)

// Adapter performs the remote side of a pass. Implementations own their
// network retries; a returned error means the call did not take effect.
type Adapter interface {
	Create(ctx context.Context, req Request) (*mapping.RemoteRef, error)
	Update(ctx context.Context, req Request) (*mapping.RemoteRef, error)
	Delete(ctx context.Context, req Request) error
}

// Request describes one entity handed to the Adapter.
type Request struct {
	Key    mapping.Key
	Title  string
	Body   string             // Rendered HTML, articles only
	Ref    *mapping.RemoteRef // Nil for creations
	Parent *mapping.RemoteRef // Nil for categories
}
