package leads

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the pgx surface used by PostgresRepository. *pgxpool.Pool satisfies it.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// PostgresRepository stores leads in the relational database.
type PostgresRepository struct {
	db DB
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(db DB) *PostgresRepository {
	if db == nil {
		panic("leads: pgx pool required")
	}
	return &PostgresRepository{db: db}
}

const leadColumns = `id::text, name, email, COALESCE(company, ''), message, COALESCE(ip, ''), status, source,
		COALESCE(utm_source, ''), COALESCE(utm_medium, ''), COALESCE(utm_campaign, ''),
		COALESCE(referrer, ''), COALESCE(user_agent, ''), COALESCE(device_type, ''), COALESCE(country, ''),
		created_at`

// Create inserts a new row with status "new".
func (r *PostgresRepository) Create(ctx context.Context, req *CreateLeadRequest) (*Lead, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	id := uuid.New()
	query := `
		INSERT INTO leads (
			id, name, email, company, message, ip, status, source,
			utm_source, utm_medium, utm_campaign, referrer, user_agent, device_type, country
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING created_at
	`
	var createdAt time.Time
	if err := r.db.QueryRow(ctx, query,
		id,
		req.Name,
		req.Email,
		req.Company,
		req.Message,
		req.IP,
		StatusNew,
		req.Source,
		req.UTMSource,
		req.UTMMedium,
		req.UTMCampaign,
		req.Referrer,
		req.UserAgent,
		req.DeviceType,
		req.Country,
	).Scan(&createdAt); err != nil {
		return nil, fmt.Errorf("leads: insert failed: %w", err)
	}

	return req.toLead(id.String(), createdAt.UTC()), nil
}

// GetByID fetches a single lead.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Lead, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrLeadNotFound
	}
	query := `SELECT ` + leadColumns + ` FROM leads WHERE id = $1::uuid`
	lead, err := scanLead(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLeadNotFound
		}
		return nil, fmt.Errorf("leads: select failed: %w", err)
	}
	return lead, nil
}

// ListRecent returns up to limit leads ordered by created_at descending.
func (r *PostgresRepository) ListRecent(ctx context.Context, limit int) ([]*Lead, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT ` + leadColumns + ` FROM leads ORDER BY created_at DESC LIMIT $1`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("leads: list failed: %w", err)
	}
	defer rows.Close()

	var out []*Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("leads: scan failed: %w", err)
		}
		out = append(out, lead)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("leads: list rows: %w", err)
	}
	return out, nil
}

// Ping checks database reachability.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	if err := r.db.Ping(ctx); err != nil {
		return fmt.Errorf("leads: ping failed: %w", err)
	}
	return nil
}

func scanLead(row pgx.Row) (*Lead, error) {
	var (
		lead                                           Lead
		company, ip, utmSource, utmMedium, utmCampaign string
		referrer, userAgent, deviceType, country       string
	)
	if err := row.Scan(
		&lead.ID,
		&lead.Name,
		&lead.Email,
		&company,
		&lead.Message,
		&ip,
		&lead.Status,
		&lead.Source,
		&utmSource,
		&utmMedium,
		&utmCampaign,
		&referrer,
		&userAgent,
		&deviceType,
		&country,
		&lead.CreatedAt,
	); err != nil {
		return nil, err
	}
	lead.Company = nullable(company)
	lead.IP = nullable(ip)
	lead.UTMSource = nullable(utmSource)
	lead.UTMMedium = nullable(utmMedium)
	lead.UTMCampaign = nullable(utmCampaign)
	lead.Referrer = nullable(referrer)
	lead.UserAgent = nullable(userAgent)
	lead.DeviceType = nullable(deviceType)
	lead.Country = nullable(country)
	lead.CreatedAt = lead.CreatedAt.UTC()
	return &lead, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
