package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/models"
)

// CommentRepository exposes data access for video comments.
type CommentRepository interface {
	Create(ctx context.Context, comment models.Comment) error
	FindByID(ctx context.Context, id string) (models.Comment, error)
	ListForVideo(ctx context.Context, videoID string, limit, offset int) ([]models.Comment, int64, error)
	UpdateContent(ctx context.Context, id, content string, updatedAt time.Time) error
	Delete(ctx context.Context, id string) error
}

// PostgresCommentRepository provides PostgreSQL-backed persistence for comments.
type PostgresCommentRepository struct {
	pool db.Pool
}

// NewPostgresCommentRepository constructs a comment repository backed by PostgreSQL.
func NewPostgresCommentRepository(pool db.Pool) *PostgresCommentRepository {
	return &PostgresCommentRepository{pool: pool}
}

// Create stores a new comment. A missing video surfaces as ErrNotFound.
func (r *PostgresCommentRepository) Create(ctx context.Context, c models.Comment) error {
	_, err := r.pool.Exec(ctx, `
        INSERT INTO comments (id, video_id, owner_id, content, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, c.ID, c.VideoID, c.OwnerID, c.Content, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		if translated := translate(err); translated != err {
			return translated
		}
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

// FindByID loads a single comment.
func (r *PostgresCommentRepository) FindByID(ctx context.Context, id string) (models.Comment, error) {
	var c models.Comment
	err := r.pool.QueryRow(ctx, `
        SELECT id, video_id, owner_id, content, created_at, updated_at
        FROM comments
        WHERE id = $1
    `, id).Scan(&c.ID, &c.VideoID, &c.OwnerID, &c.Content, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if translated := translate(err); translated != err {
			return models.Comment{}, translated
		}
		return models.Comment{}, fmt.Errorf("select comment: %w", err)
	}
	return c, nil
}

// ListForVideo returns one page of a video's comments, newest first, and the total count.
func (r *PostgresCommentRepository) ListForVideo(ctx context.Context, videoID string, limit, offset int) ([]models.Comment, int64, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT c.id, c.video_id, c.owner_id, c.content, c.created_at, c.updated_at,
               u.username, u.full_name, u.avatar,
               (SELECT COUNT(*) FROM likes l WHERE l.comment_id = c.id),
               COUNT(*) OVER ()
        FROM comments c
        JOIN users u ON u.id = c.owner_id
        WHERE c.video_id = $1
        ORDER BY c.created_at DESC, c.id DESC
        LIMIT $2 OFFSET $3
    `, videoID, limit, offset)
	if err != nil {
		if translated := translate(err); translated != err {
			return nil, 0, translated
		}
		return nil, 0, fmt.Errorf("query comments: %w", err)
	}
	defer rows.Close()

	var total int64
	comments := []models.Comment{}
	for rows.Next() {
		var (
			c     models.Comment
			owner models.OwnerProfile
		)
		if err := rows.Scan(
			&c.ID, &c.VideoID, &c.OwnerID, &c.Content, &c.CreatedAt, &c.UpdatedAt,
			&owner.Username, &owner.FullName, &owner.Avatar, &c.Likes, &total,
		); err != nil {
			return nil, 0, fmt.Errorf("scan comment: %w", err)
		}
		owner.ID = c.OwnerID
		c.Owner = &owner
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate comments: %w", err)
	}
	return comments, total, nil
}

// UpdateContent replaces a comment's text.
func (r *PostgresCommentRepository) UpdateContent(ctx context.Context, id, content string, updatedAt time.Time) error {
	tag, err := r.pool.Exec(ctx, `
        UPDATE comments SET content = $2, updated_at = $3 WHERE id = $1
    `, id, content, updatedAt)
	if err != nil {
		return fmt.Errorf("update comment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a comment and its likes.
func (r *PostgresCommentRepository) Delete(ctx context.Context, id string) (err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete comment: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `DELETE FROM likes WHERE comment_id = $1`, id); err != nil {
		return fmt.Errorf("delete comment likes: %w", err)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		err = ErrNotFound
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit delete comment: %w", err)
	}
	return nil
}

var _ CommentRepository = (*PostgresCommentRepository)(nil)
