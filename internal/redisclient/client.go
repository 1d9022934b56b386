package redisclient

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Client wraps a Redis client with OpenTelemetry tracing
type Client struct {
	cmdable redis.UniversalClient
}

// NewClient creates a new traced Redis client for single Redis instance
func NewClient(client *redis.Client) *Client {
	return &Client{cmdable: client}
}

// startSpan opens a redis span; the returned func records the outcome.
func startSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	attrs = append(attrs,
		attribute.String("redis.operation", operation),
		attribute.String("redis.client", "app-crm"),
	)
	ctx, span := otel.Tracer("redis").Start(ctx, "redis."+operation, trace.WithAttributes(attrs...))

	return ctx, func(err error) {
		duration := time.Since(start)
		span.SetAttributes(attribute.Int64("redis.duration_ms", duration.Milliseconds()))
		if err != nil && !errors.Is(err, redis.Nil) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "success")
		}
		span.End()
	}
}

// Get wraps Redis Get with tracing
func (c *Client) Get(ctx context.Context, key string) *redis.StringCmd {
	ctx, done := startSpan(ctx, "get", attribute.String("redis.key", key))
	cmd := c.cmdable.Get(ctx, key)
	done(cmd.Err())
	return cmd
}

// Set wraps Redis Set with tracing
func (c *Client) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	ctx, done := startSpan(ctx, "set",
		attribute.String("redis.key", key),
		attribute.String("redis.expiration", expiration.String()),
	)
	cmd := c.cmdable.Set(ctx, key, value, expiration)
	done(cmd.Err())
	return cmd
}

// Del wraps Redis Del with tracing
func (c *Client) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	ctx, done := startSpan(ctx, "del",
		attribute.StringSlice("redis.keys", keys),
		attribute.Int("redis.key_count", len(keys)),
	)
	cmd := c.cmdable.Del(ctx, keys...)
	done(cmd.Err())
	return cmd
}

// Ping wraps Redis Ping with tracing
func (c *Client) Ping(ctx context.Context) *redis.StatusCmd {
	ctx, done := startSpan(ctx, "ping")
	cmd := c.cmdable.Ping(ctx)
	done(cmd.Err())
	return cmd
}

// Publish wraps Redis Publish with tracing
func (c *Client) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	ctx, done := startSpan(ctx, "publish", attribute.String("redis.channel", channel))
	cmd := c.cmdable.Publish(ctx, channel, message)
	done(cmd.Err())
	return cmd
}

// Subscribe opens a pub/sub subscription. The caller owns Close.
func (c *Client) Subscribe(ctx context.Context, channels ...string) *redis.PubSub {
	ctx, done := startSpan(ctx, "subscribe", attribute.StringSlice("redis.channels", channels))
	defer done(nil)
	return c.cmdable.Subscribe(ctx, channels...)
}

// Close closes the underlying client
func (c *Client) Close() error {
	return c.cmdable.Close()
}

// FlushDB wraps Redis FlushDB with tracing
func (c *Client) FlushDB(ctx context.Context) *redis.StatusCmd {
	ctx, done := startSpan(ctx, "flushdb")
	cmd := c.cmdable.FlushDB(ctx)
	done(cmd.Err())
	return cmd
}
