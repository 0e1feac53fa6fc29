package history

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/metainfo/pkg/pagination"
)

// System defines the output history operations.
type System interface {
	Handler() *Handler

	// Record upserts one row per command in a single transaction.
	Record(ctx context.Context, cmds []CreateCommand) error

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Output], error)

	Find(ctx context.Context, id uuid.UUID) (*Output, error)
}
