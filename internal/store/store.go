// Package store is the shared ephemeral store backing admission flags,
// presence markers and the credential revocation list. Everything in it is
// TTL-bound Redis state visible to every server instance, so a load balancer
// may route the host and guest to different processes without breaking
// admission or presence semantics.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mentorlink/consult/internal/config"
	"github.com/mentorlink/consult/internal/domain"
)

// PresenceTTL is the liveness horizon for the per-user presence marker. It is
// refreshed on every keepalive; if the process crashes the marker simply
// expires, which is what keeps "online" state from going permanently stale.
const PresenceTTL = 120 * time.Second

// minAdmissionTTL keeps a flag written near the end of the window from
// expiring before the sweep it enables has finished.
const minAdmissionTTL = time.Minute

type Client struct {
	rdb    *redis.Client
	prefix string
}

// New connects and pings. URI wins over host/port when both are set.
func New(cfg config.RedisConfig) (*Client, error) {
	var rdb *redis.Client
	if cfg.URI != "" {
		opt, err := redis.ParseURL(cfg.URI)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis uri: %w", err)
		}
		if opt.DB == 0 {
			opt.DB = cfg.DB
		}
		if opt.Password == "" && cfg.Password != "" {
			opt.Password = cfg.Password
		}
		rdb = redis.NewClient(opt)
	} else {
		rdb = redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
			Username: cfg.Username,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb, prefix: cfg.KeyPrefix}, nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// Redis exposes the underlying client for pub/sub consumers.
func (c *Client) Redis() *redis.Client { return c.rdb }

// Prefix is the key namespace every consumer of the shared store uses.
func (c *Client) Prefix() string { return c.prefix }

func (c *Client) admissionKey(id domain.BookingID) string {
	return fmt.Sprintf("%ssession:%s:admitted", c.prefix, id)
}

func (c *Client) presenceKey(id domain.UserID) string {
	return fmt.Sprintf("%spresence:%s", c.prefix, id)
}

func (c *Client) revokedKey(jti string) string {
	return fmt.Sprintf("%srevoked:%s", c.prefix, jti)
}

// SetAdmitted records that the host opened the live room for this booking.
// The TTL never exceeds the scheduled end plus the late-join margin, so the
// flag cannot outlive the window it authorizes.
func (c *Client) SetAdmitted(ctx context.Context, b *domain.Booking, now time.Time) error {
	ttl := b.ScheduledEnd.Add(domain.JoinLateMargin).Sub(now)
	if ttl < minAdmissionTTL {
		ttl = minAdmissionTTL
	}
	if err := c.rdb.Set(ctx, c.admissionKey(b.ID), "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to set admission flag: %w", err)
	}
	return nil
}

func (c *Client) Admitted(ctx context.Context, id domain.BookingID) (bool, error) {
	err := c.rdb.Get(ctx, c.admissionKey(id)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read admission flag: %w", err)
	}
	return true, nil
}

func (c *Client) ClearAdmitted(ctx context.Context, id domain.BookingID) error {
	if err := c.rdb.Del(ctx, c.admissionKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to clear admission flag: %w", err)
	}
	return nil
}

// MarkOnline writes (or refreshes) the presence marker.
func (c *Client) MarkOnline(ctx context.Context, id domain.UserID) error {
	if err := c.rdb.Set(ctx, c.presenceKey(id), "1", PresenceTTL).Err(); err != nil {
		return fmt.Errorf("failed to mark online: %w", err)
	}
	return nil
}

func (c *Client) MarkOffline(ctx context.Context, id domain.UserID) error {
	if err := c.rdb.Del(ctx, c.presenceKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to mark offline: %w", err)
	}
	return nil
}

func (c *Client) Online(ctx context.Context, id domain.UserID) (bool, error) {
	err := c.rdb.Get(ctx, c.presenceKey(id)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read presence: %w", err)
	}
	return true, nil
}

// Revoke blacklists a credential id until its natural expiry.
func (c *Client) Revoke(ctx context.Context, jti string, until time.Time, now time.Time) error {
	ttl := until.Sub(now)
	if ttl <= 0 {
		return nil
	}
	if err := c.rdb.Set(ctx, c.revokedKey(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

func (c *Client) Revoked(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	err := c.rdb.Get(ctx, c.revokedKey(jti)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read revocation: %w", err)
	}
	return true, nil
}
