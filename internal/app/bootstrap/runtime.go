package bootstrap

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/alfredai/landing-leads/internal/config"
	"github.com/alfredai/landing-leads/internal/tracking"
	"github.com/alfredai/landing-leads/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available, geolocation cache disabled", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// Database bundles the pgx pool used by the lead repository and a
// database/sql handle over the same pool for the audit trail.
type Database struct {
	Pool *pgxpool.Pool
	SQL  *sql.DB
}

// Close releases both handles.
func (d *Database) Close() {
	if d == nil {
		return
	}
	if d.SQL != nil {
		_ = d.SQL.Close()
	}
	if d.Pool != nil {
		d.Pool.Close()
	}
}

// BuildDatabase connects to Postgres. It returns nil without error when no
// DATABASE_URL is configured.
func BuildDatabase(ctx context.Context, databaseURL string, logger *logging.Logger) (*Database, error) {
	databaseURL = strings.TrimSpace(databaseURL)
	if databaseURL == "" {
		return nil, nil
	}
	if logger == nil {
		logger = logging.Default()
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		// The pool reconnects lazily; health checks report the outage.
		logger.Warn("postgres ping failed at startup", "error", err)
	}
	return &Database{Pool: pool, SQL: stdlib.OpenDBFromPool(pool)}, nil
}

// BuildGeoLocator wires the country lookup client, fronted by the Redis
// cache when a client is available.
func BuildGeoLocator(cfg *appconfig.Config, redisClient *redis.Client, observer tracking.GeoObserver, logger *logging.Logger) tracking.GeoLocator {
	if cfg == nil {
		return nil
	}
	client := tracking.NewIPAPIClient(tracking.IPAPIClientConfig{
		BaseURL:   cfg.GeoLookupURL,
		Timeout:   cfg.GeoLookupTimeout,
		PerMinute: cfg.GeoLookupPerMinute,
	}, &http.Client{}, observer)
	return tracking.NewCachedLocator(client, redisClient, cfg.GeoCacheTTL, logger)
}
