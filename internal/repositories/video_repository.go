package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/vidtube/backend/internal/catalog"
	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/models"
)

// VideoRepository exposes data access for videos.
type VideoRepository interface {
	Create(ctx context.Context, video models.Video) error
	FindByID(ctx context.Context, id string) (models.Video, error)
	Detail(ctx context.Context, id, viewerID string) (models.VideoDetail, error)
	Update(ctx context.Context, video models.Video) error
	TogglePublished(ctx context.Context, id string, updatedAt time.Time) (models.Video, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, pipeline catalog.Pipeline) (CatalogPage, error)
	RecordView(ctx context.Context, videoID, viewerID string, at time.Time) error
	WatchHistory(ctx context.Context, userID string) ([]models.WatchHistoryEntry, error)
}

// CatalogPage is one page of catalog results.
type CatalogPage struct {
	Items      []models.Video `json:"videos"`
	Total      int64          `json:"totalVideos"`
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
	TotalPages int            `json:"totalPages"`
	HasNext    bool           `json:"hasNextPage"`
	HasPrev    bool           `json:"hasPrevPage"`
}

const videoColumns = `id, owner_id, title, description, video_file, thumbnail, duration, views, is_published, created_at, updated_at`

// PostgresVideoRepository provides PostgreSQL-backed persistence for videos.
type PostgresVideoRepository struct {
	pool db.Pool
}

// NewPostgresVideoRepository constructs a video repository backed by PostgreSQL.
func NewPostgresVideoRepository(pool db.Pool) *PostgresVideoRepository {
	return &PostgresVideoRepository{pool: pool}
}

// Create stores a new video record.
func (r *PostgresVideoRepository) Create(ctx context.Context, v models.Video) error {
	_, err := r.pool.Exec(ctx, `
        INSERT INTO videos (id, owner_id, title, description, video_file, thumbnail, duration, views, is_published, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
    `, v.ID, v.OwnerID, v.Title, v.Description, v.VideoFile, v.Thumbnail, v.Duration, v.Views, v.IsPublished, v.CreatedAt, v.UpdatedAt)
	if err != nil {
		if translated := translate(err); translated != err {
			return translated
		}
		return fmt.Errorf("insert video: %w", err)
	}
	return nil
}

// FindByID loads a single video regardless of its publish state.
func (r *PostgresVideoRepository) FindByID(ctx context.Context, id string) (models.Video, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = $1`, id)
	return scanVideo(row, "select video")
}

// Detail loads a video with its owner and engagement counts relative to viewerID.
func (r *PostgresVideoRepository) Detail(ctx context.Context, id, viewerID string) (models.VideoDetail, error) {
	row := r.pool.QueryRow(ctx, `
        SELECT v.id, v.owner_id, v.title, v.description, v.video_file, v.thumbnail, v.duration, v.views,
               v.is_published, v.created_at, v.updated_at,
               u.username, u.full_name, u.avatar,
               (SELECT COUNT(*) FROM likes l WHERE l.video_id = v.id),
               EXISTS (SELECT 1 FROM likes l WHERE l.video_id = v.id AND l.liked_by = $2),
               (SELECT COUNT(*) FROM subscriptions s WHERE s.channel_id = v.owner_id),
               EXISTS (SELECT 1 FROM subscriptions s WHERE s.channel_id = v.owner_id AND s.subscriber_id = $2)
        FROM videos v
        JOIN users u ON u.id = v.owner_id
        WHERE v.id = $1
    `, id, viewerID)

	var (
		d     models.VideoDetail
		owner models.OwnerProfile
	)
	err := row.Scan(
		&d.ID, &d.OwnerID, &d.Title, &d.Description, &d.VideoFile, &d.Thumbnail, &d.Duration, &d.Views,
		&d.IsPublished, &d.CreatedAt, &d.UpdatedAt,
		&owner.Username, &owner.FullName, &owner.Avatar,
		&d.Likes, &d.IsLiked, &d.OwnerSubscribers, &d.IsSubscribed,
	)
	if err != nil {
		if translated := translate(err); translated != err {
			return models.VideoDetail{}, translated
		}
		return models.VideoDetail{}, fmt.Errorf("select video detail: %w", err)
	}
	owner.ID = d.OwnerID
	d.Owner = &owner
	return d, nil
}

// Update stores new title, description and thumbnail values.
func (r *PostgresVideoRepository) Update(ctx context.Context, v models.Video) error {
	tag, err := r.pool.Exec(ctx, `
        UPDATE videos
        SET title = $2, description = $3, thumbnail = $4, updated_at = $5
        WHERE id = $1
    `, v.ID, v.Title, v.Description, v.Thumbnail, v.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update video: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// TogglePublished flips the publish flag and returns the updated video.
func (r *PostgresVideoRepository) TogglePublished(ctx context.Context, id string, updatedAt time.Time) (models.Video, error) {
	row := r.pool.QueryRow(ctx, `
        UPDATE videos
        SET is_published = NOT is_published, updated_at = $2
        WHERE id = $1
        RETURNING `+videoColumns, id, updatedAt)
	return scanVideo(row, "toggle publish")
}

// Delete removes a video together with its likes, comments (and their likes)
// and watch-history entries in one transaction.
func (r *PostgresVideoRepository) Delete(ctx context.Context, id string) (err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete video: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	statements := []struct {
		op  string
		sql string
	}{
		{"delete comment likes", `DELETE FROM likes WHERE comment_id IN (SELECT id FROM comments WHERE video_id = $1)`},
		{"delete video likes", `DELETE FROM likes WHERE video_id = $1`},
		{"delete comments", `DELETE FROM comments WHERE video_id = $1`},
		{"delete watch history", `DELETE FROM watch_history WHERE video_id = $1`},
	}
	for _, stmt := range statements {
		if _, err = tx.Exec(ctx, stmt.sql, id); err != nil {
			return fmt.Errorf("%s: %w", stmt.op, err)
		}
	}

	tag, err := tx.Exec(ctx, `DELETE FROM videos WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete video: %w", err)
	}
	if tag.RowsAffected() == 0 {
		err = ErrNotFound
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit delete video: %w", err)
	}
	return nil
}

// List executes a compiled catalog pipeline.
func (r *PostgresVideoRepository) List(ctx context.Context, pipeline catalog.Pipeline) (CatalogPage, error) {
	rows, err := r.pool.Query(ctx, pipeline.SQL(), pipeline.Args...)
	if err != nil {
		return CatalogPage{}, fmt.Errorf("query catalog: %w", err)
	}
	defer rows.Close()

	page := CatalogPage{Items: []models.Video{}, Page: pipeline.Page, Limit: pipeline.Limit}
	for rows.Next() {
		var (
			v     models.Video
			owner models.OwnerProfile
		)
		if err := rows.Scan(
			&v.ID, &v.OwnerID, &v.Title, &v.Description, &v.VideoFile, &v.Thumbnail, &v.Duration, &v.Views,
			&v.IsPublished, &v.CreatedAt, &v.UpdatedAt,
			&owner.Username, &owner.FullName, &owner.Avatar, &page.Total,
		); err != nil {
			return CatalogPage{}, fmt.Errorf("scan catalog row: %w", err)
		}
		owner.ID = v.OwnerID
		v.Owner = &owner
		page.Items = append(page.Items, v)
	}
	if err := rows.Err(); err != nil {
		return CatalogPage{}, fmt.Errorf("iterate catalog: %w", err)
	}

	if len(page.Items) == 0 && pipeline.Page > 1 {
		countSQL, args := pipeline.CountSQL()
		if err := r.pool.QueryRow(ctx, countSQL, args...).Scan(&page.Total); err != nil {
			return CatalogPage{}, fmt.Errorf("count catalog: %w", err)
		}
	}

	page.TotalPages = int((page.Total + int64(page.Limit) - 1) / int64(page.Limit))
	page.HasPrev = page.Page > 1
	page.HasNext = page.Page < page.TotalPages
	return page, nil
}

// RecordView increments the view counter and moves the video to the top of
// the viewer's watch history.
func (r *PostgresVideoRepository) RecordView(ctx context.Context, videoID, viewerID string, at time.Time) (err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin record view: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	tag, err := tx.Exec(ctx, `UPDATE videos SET views = views + 1 WHERE id = $1`, videoID)
	if err != nil {
		return fmt.Errorf("increment views: %w", err)
	}
	if tag.RowsAffected() == 0 {
		err = ErrNotFound
		return err
	}

	if viewerID != "" {
		if _, err = tx.Exec(ctx, `
            INSERT INTO watch_history (user_id, video_id, watched_at)
            VALUES ($1, $2, $3)
            ON CONFLICT (user_id, video_id) DO UPDATE SET watched_at = EXCLUDED.watched_at
        `, viewerID, videoID, at); err != nil {
			return fmt.Errorf("upsert watch history: %w", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit record view: %w", err)
	}
	return nil
}

// WatchHistory lists the user's watched videos, most recent first.
func (r *PostgresVideoRepository) WatchHistory(ctx context.Context, userID string) ([]models.WatchHistoryEntry, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT v.id, v.owner_id, v.title, v.description, v.video_file, v.thumbnail, v.duration, v.views,
               v.is_published, v.created_at, v.updated_at,
               u.username, u.full_name, u.avatar, h.watched_at
        FROM watch_history h
        JOIN videos v ON v.id = h.video_id
        JOIN users u ON u.id = v.owner_id
        WHERE h.user_id = $1
        ORDER BY h.watched_at DESC
        LIMIT 100
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("query watch history: %w", err)
	}
	defer rows.Close()

	entries := []models.WatchHistoryEntry{}
	for rows.Next() {
		var (
			e     models.WatchHistoryEntry
			owner models.OwnerProfile
		)
		v := &e.Video
		if err := rows.Scan(
			&v.ID, &v.OwnerID, &v.Title, &v.Description, &v.VideoFile, &v.Thumbnail, &v.Duration, &v.Views,
			&v.IsPublished, &v.CreatedAt, &v.UpdatedAt,
			&owner.Username, &owner.FullName, &owner.Avatar, &e.WatchedAt,
		); err != nil {
			return nil, fmt.Errorf("scan watch history: %w", err)
		}
		owner.ID = v.OwnerID
		v.Owner = &owner
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate watch history: %w", err)
	}
	return entries, nil
}

func scanVideo(row pgx.Row, op string) (models.Video, error) {
	var v models.Video
	err := row.Scan(&v.ID, &v.OwnerID, &v.Title, &v.Description, &v.VideoFile, &v.Thumbnail, &v.Duration, &v.Views, &v.IsPublished, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if translated := translate(err); translated != err {
			return models.Video{}, translated
		}
		return models.Video{}, fmt.Errorf("%s: %w", op, err)
	}
	return v, nil
}

var _ VideoRepository = (*PostgresVideoRepository)(nil)
