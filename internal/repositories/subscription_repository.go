package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/models"
)

// SubscriptionRepository exposes data access for channel subscriptions.
type SubscriptionRepository interface {
	Toggle(ctx context.Context, subscriberID, channelID string) (bool, error)
	IsSubscribed(ctx context.Context, subscriberID, channelID string) (bool, error)
	Subscribers(ctx context.Context, channelID string) ([]models.OwnerProfile, error)
	SubscribedChannels(ctx context.Context, subscriberID string) ([]models.OwnerProfile, error)
	ChannelStats(ctx context.Context, username string) (models.ChannelStats, error)
}

// PostgresSubscriptionRepository provides PostgreSQL-backed persistence for subscriptions.
type PostgresSubscriptionRepository struct {
	pool db.Pool
	now  func() time.Time
}

// NewPostgresSubscriptionRepository constructs a subscription repository backed by PostgreSQL.
func NewPostgresSubscriptionRepository(pool db.Pool) *PostgresSubscriptionRepository {
	return &PostgresSubscriptionRepository{pool: pool, now: time.Now}
}

// Toggle unsubscribes when subscribed and subscribes otherwise. It reports
// whether the subscriber follows the channel afterwards.
func (r *PostgresSubscriptionRepository) Toggle(ctx context.Context, subscriberID, channelID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
        DELETE FROM subscriptions WHERE subscriber_id = $1 AND channel_id = $2
    `, subscriberID, channelID)
	if err != nil {
		if translated := translate(err); translated != err {
			return false, translated
		}
		return false, fmt.Errorf("delete subscription: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return false, nil
	}

	_, err = r.pool.Exec(ctx, `
        INSERT INTO subscriptions (subscriber_id, channel_id, created_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (subscriber_id, channel_id) DO NOTHING
    `, subscriberID, channelID, r.now().UTC())
	if err != nil {
		if translated := translate(err); translated != err {
			return false, translated
		}
		return false, fmt.Errorf("insert subscription: %w", err)
	}
	return true, nil
}

// IsSubscribed reports whether subscriberID follows channelID.
func (r *PostgresSubscriptionRepository) IsSubscribed(ctx context.Context, subscriberID, channelID string) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `
        SELECT EXISTS (SELECT 1 FROM subscriptions WHERE subscriber_id = $1 AND channel_id = $2)
    `, subscriberID, channelID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check subscription: %w", err)
	}
	return ok, nil
}

// Subscribers lists the users subscribed to a channel.
func (r *PostgresSubscriptionRepository) Subscribers(ctx context.Context, channelID string) ([]models.OwnerProfile, error) {
	return r.profiles(ctx, `
        SELECT u.id, u.username, u.full_name, u.avatar
        FROM subscriptions s
        JOIN users u ON u.id = s.subscriber_id
        WHERE s.channel_id = $1
        ORDER BY s.created_at DESC
    `, channelID)
}

// SubscribedChannels lists the channels a user is subscribed to.
func (r *PostgresSubscriptionRepository) SubscribedChannels(ctx context.Context, subscriberID string) ([]models.OwnerProfile, error) {
	return r.profiles(ctx, `
        SELECT u.id, u.username, u.full_name, u.avatar
        FROM subscriptions s
        JOIN users u ON u.id = s.channel_id
        WHERE s.subscriber_id = $1
        ORDER BY s.created_at DESC
    `, subscriberID)
}

// ChannelStats loads a channel by username with its subscription counts.
func (r *PostgresSubscriptionRepository) ChannelStats(ctx context.Context, username string) (models.ChannelStats, error) {
	var stats models.ChannelStats
	err := r.pool.QueryRow(ctx, `
        SELECT u.id, u.username, u.full_name, u.avatar, COALESCE(u.cover_image, ''), u.email,
               (SELECT COUNT(*) FROM subscriptions s WHERE s.channel_id = u.id),
               (SELECT COUNT(*) FROM subscriptions s WHERE s.subscriber_id = u.id)
        FROM users u
        WHERE u.username = $1
    `, username).Scan(
		&stats.ID, &stats.Username, &stats.FullName, &stats.Avatar, &stats.CoverImage, &stats.Email,
		&stats.SubscribersCount, &stats.SubscribedToCount,
	)
	if err != nil {
		if translated := translate(err); translated != err {
			return models.ChannelStats{}, translated
		}
		return models.ChannelStats{}, fmt.Errorf("select channel stats: %w", err)
	}
	return stats, nil
}

func (r *PostgresSubscriptionRepository) profiles(ctx context.Context, query, id string) ([]models.OwnerProfile, error) {
	rows, err := r.pool.Query(ctx, query, id)
	if err != nil {
		if translated := translate(err); translated != err {
			return nil, translated
		}
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	defer rows.Close()

	profiles := []models.OwnerProfile{}
	for rows.Next() {
		var p models.OwnerProfile
		if err := rows.Scan(&p.ID, &p.Username, &p.FullName, &p.Avatar); err != nil {
			return nil, fmt.Errorf("scan subscription profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscriptions: %w", err)
	}
	return profiles, nil
}

var _ SubscriptionRepository = (*PostgresSubscriptionRepository)(nil)
