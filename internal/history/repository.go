package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/metainfo/pkg/database"
	"github.com/JaimeStill/metainfo/pkg/pagination"
	"github.com/JaimeStill/metainfo/pkg/query"
	"github.com/JaimeStill/metainfo/pkg/repository"
)

const upsert = `
	INSERT INTO outputs(id, filename, subfolder, positive, negative, seed, width, height, steps, cfg, clip_skip, saved_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (subfolder, filename) DO UPDATE SET
		positive = EXCLUDED.positive,
		negative = EXCLUDED.negative,
		seed = EXCLUDED.seed,
		width = EXCLUDED.width,
		height = EXCLUDED.height,
		steps = EXCLUDED.steps,
		cfg = EXCLUDED.cfg,
		clip_skip = EXCLUDED.clip_skip,
		saved_at = EXCLUDED.saved_at`

type repo struct {
	db         database.System
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates the history system over db. Every operation fails with
// database.ErrNotReady until the database startup ping has succeeded.
func New(db database.System, logger *slog.Logger, pagination pagination.Config) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "history"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) conn() (*sql.DB, error) {
	if !r.db.Ready() {
		return nil, database.ErrNotReady
	}
	return r.db.Connection(), nil
}

func (r *repo) Record(ctx context.Context, cmds []CreateCommand) error {
	if len(cmds) == 0 {
		return nil
	}

	db, err := r.conn()
	if err != nil {
		return err
	}

	_, err = repository.WithTx(ctx, db, func(tx *sql.Tx) (struct{}, error) {
		for _, cmd := range cmds {
			if _, err := tx.ExecContext(ctx, upsert, insertArgs(cmd)...); err != nil {
				return struct{}{}, fmt.Errorf("record %s: %w", cmd.Filename, err)
			}
		}
		return struct{}{}, nil
	})
	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Debug("outputs recorded", "count", len(cmds))
	return nil
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Output], error) {
	db, err := r.conn()
	if err != nil {
		return nil, err
	}

	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		Search(page.Search, searchFields...)

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderBy(page.Sort)
	}

	countSQL, countArgs := qb.Count()
	var total int
	if err := db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count outputs: %w", err)
	}

	pageSQL, pageArgs := qb.Page(page.Page, page.PageSize)
	outputs, err := repository.QueryMany(ctx, db, pageSQL, pageArgs, scanOutput)
	if err != nil {
		return nil, fmt.Errorf("query outputs: %w", err)
	}

	result := pagination.NewPageResult(outputs, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Output, error) {
	db, err := r.conn()
	if err != nil {
		return nil, err
	}

	q, args := query.NewBuilder(projection).Single("id", id)

	o, err := repository.QueryOne(ctx, db, q, args, scanOutput)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &o, nil
}

func insertArgs(cmd CreateCommand) []any {
	saved := cmd.SavedAt
	if saved.IsZero() {
		saved = time.Now()
	}

	rec := cmd.Record
	return []any{
		uuid.New(),
		cmd.Filename,
		cmd.Subfolder,
		rec.Positive,
		rec.Negative,
		rec.Seed,
		rec.Width,
		rec.Height,
		rec.Steps,
		rec.CFG,
		rec.ClipSkip,
		saved,
	}
}
