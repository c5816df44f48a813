package repository

import (
	"context"
	"database/sql"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	"github.com/maheshrc27/contentflow/internal/models"
)

const postingHistoryTable = "posting_history"

// PostingHistorySchema creates the table on first start.
const PostingHistorySchema = `
CREATE TABLE IF NOT EXISTS posting_history (
	id            BIGSERIAL PRIMARY KEY,
	post_id       TEXT        NOT NULL,
	platform      TEXT        NOT NULL,
	status        TEXT        NOT NULL,
	post_url      TEXT        NOT NULL DEFAULT '',
	error_message TEXT        NOT NULL DEFAULT '',
	attempt       INTEGER     NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS posting_history_post_id_idx ON posting_history (post_id);
`

type PostingHistoryRepository interface {
	Migrate(ctx context.Context) error
	Create(ctx context.Context, ph *models.PostingHistory) (int64, error)
	GetByPostID(ctx context.Context, postID string) ([]*models.PostingHistory, error)
}

type postingHistoryRepository struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

func NewPostingHistoryRepository(db *sql.DB) PostingHistoryRepository {
	return &postingHistoryRepository{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *postingHistoryRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, PostingHistorySchema); err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postingHistoryRepository) Create(ctx context.Context, ph *models.PostingHistory) (int64, error) {
	query, args, err := r.sb.
		Insert(postingHistoryTable).
		Columns("post_id", "platform", "status", "post_url", "error_message", "attempt").
		Values(ph.PostID, ph.Platform, ph.Status, ph.PostURL, ph.ErrorMessage, ph.Attempt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, err
	}

	var id int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *postingHistoryRepository) GetByPostID(ctx context.Context, postID string) ([]*models.PostingHistory, error) {
	query, args, err := r.sb.
		Select("id", "post_id", "platform", "status", "post_url", "error_message", "attempt", "created_at").
		From(postingHistoryTable).
		Where(sq.Eq{"post_id": postID}).
		OrderBy("created_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var phs []*models.PostingHistory
	for rows.Next() {
		var ph models.PostingHistory
		err := rows.Scan(&ph.ID, &ph.PostID, &ph.Platform, &ph.Status, &ph.PostURL, &ph.ErrorMessage, &ph.Attempt, &ph.CreatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		phs = append(phs, &ph)
	}
	return phs, rows.Err()
}
