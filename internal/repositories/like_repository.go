package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/models"
)

// LikeTarget selects the kind of entity a like refers to.
type LikeTarget string

const (
	LikeTargetVideo   LikeTarget = "video_id"
	LikeTargetComment LikeTarget = "comment_id"
)

// LikeRepository exposes data access for likes.
type LikeRepository interface {
	Toggle(ctx context.Context, target LikeTarget, targetID, userID string) (bool, error)
	LikedVideos(ctx context.Context, userID string) ([]models.Video, error)
}

// PostgresLikeRepository provides PostgreSQL-backed persistence for likes.
type PostgresLikeRepository struct {
	pool db.Pool
	now  func() time.Time
}

// NewPostgresLikeRepository constructs a like repository backed by PostgreSQL.
func NewPostgresLikeRepository(pool db.Pool) *PostgresLikeRepository {
	return &PostgresLikeRepository{pool: pool, now: time.Now}
}

// Toggle removes the caller's like when present and adds it otherwise. It
// reports whether the target is liked afterwards.
func (r *PostgresLikeRepository) Toggle(ctx context.Context, target LikeTarget, targetID, userID string) (bool, error) {
	if target != LikeTargetVideo && target != LikeTargetComment {
		return false, fmt.Errorf("unsupported like target %q", target)
	}

	tag, err := r.pool.Exec(ctx, `DELETE FROM likes WHERE `+string(target)+` = $1 AND liked_by = $2`, targetID, userID)
	if err != nil {
		if translated := translate(err); translated != err {
			return false, translated
		}
		return false, fmt.Errorf("delete like: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return false, nil
	}

	_, err = r.pool.Exec(ctx, `
        INSERT INTO likes (id, `+string(target)+`, liked_by, created_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT DO NOTHING
    `, uuid.NewString(), targetID, userID, r.now().UTC())
	if err != nil {
		if translated := translate(err); translated != err {
			return false, translated
		}
		return false, fmt.Errorf("insert like: %w", err)
	}
	return true, nil
}

// LikedVideos lists published videos the user liked, most recent like first.
func (r *PostgresLikeRepository) LikedVideos(ctx context.Context, userID string) ([]models.Video, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT v.id, v.owner_id, v.title, v.description, v.video_file, v.thumbnail, v.duration, v.views,
               v.is_published, v.created_at, v.updated_at, u.username, u.full_name, u.avatar
        FROM likes l
        JOIN videos v ON v.id = l.video_id
        JOIN users u ON u.id = v.owner_id
        WHERE l.liked_by = $1 AND v.is_published = TRUE
        ORDER BY l.created_at DESC
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("query liked videos: %w", err)
	}
	defer rows.Close()

	videos := []models.Video{}
	for rows.Next() {
		var (
			v     models.Video
			owner models.OwnerProfile
		)
		if err := rows.Scan(
			&v.ID, &v.OwnerID, &v.Title, &v.Description, &v.VideoFile, &v.Thumbnail, &v.Duration, &v.Views,
			&v.IsPublished, &v.CreatedAt, &v.UpdatedAt, &owner.Username, &owner.FullName, &owner.Avatar,
		); err != nil {
			return nil, fmt.Errorf("scan liked video: %w", err)
		}
		owner.ID = v.OwnerID
		v.Owner = &owner
		videos = append(videos, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate liked videos: %w", err)
	}
	return videos, nil
}

var _ LikeRepository = (*PostgresLikeRepository)(nil)
