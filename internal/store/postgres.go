package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/serroba/shortlink-go/internal/shortener"
)

// PostgresRepository is the PostgreSQL implementation of
// shortener.Repository. Uniqueness of code and normalized is enforced by the
// store's unique indexes; inserts map constraint violations onto the domain
// error so the service can resolve races.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a PostgreSQL-backed record store.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const urlColumns = `
	id, code, original, normalized, hit_count, custom_alias,
	expires_at, created_at, updated_at, creator_ip, creator_user_agent, metadata
`

func (p *PostgresRepository) Insert(ctx context.Context, record *shortener.UrlRecord) error {
	query := `
		INSERT INTO urls (` + urlColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := p.pool.Exec(ctx, query,
		record.ID,
		string(record.Code),
		record.Original,
		record.Normalized,
		record.HitCount,
		nullableString(record.CustomAlias),
		record.ExpiresAt,
		record.CreatedAt,
		record.UpdatedAt,
		nullableString(record.CreatorIP),
		nullableString(record.CreatorUA),
		record.Metadata,
	)
	if err != nil {
		return mapUniqueViolation(err)
	}

	return nil
}

// mapUniqueViolation converts a 23505 into the domain error, keyed by the
// violated constraint's name.
func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return err
	}

	field := "code"
	if strings.Contains(pgErr.ConstraintName, "normalized") {
		field = "normalized"
	}

	return &shortener.UniqueViolationError{Field: field}
}

func (p *PostgresRepository) FindByCode(ctx context.Context, code shortener.Code) (*shortener.UrlRecord, error) {
	query := `SELECT ` + urlColumns + ` FROM urls WHERE code = $1`

	return p.queryOne(ctx, query, string(code))
}

func (p *PostgresRepository) FindByNormalized(ctx context.Context, normalized string) (*shortener.UrlRecord, error) {
	query := `SELECT ` + urlColumns + ` FROM urls WHERE normalized = $1`

	return p.queryOne(ctx, query, normalized)
}

func (p *PostgresRepository) queryOne(ctx context.Context, query string, arg any) (*shortener.UrlRecord, error) {
	record, err := scanRecord(p.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shortener.ErrNotFound
		}

		return nil, err
	}

	return record, nil
}

func (p *PostgresRepository) Delete(ctx context.Context, code shortener.Code) (bool, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM urls WHERE code = $1`, string(code))
	if err != nil {
		return false, err
	}

	return tag.RowsAffected() > 0, nil
}

func (p *PostgresRepository) IncrementHitCount(ctx context.Context, code shortener.Code, delta int64) error {
	query := `
		UPDATE urls
		SET hit_count = hit_count + $2, updated_at = now()
		WHERE code = $1
	`

	_, err := p.pool.Exec(ctx, query, string(code), delta)

	return err
}

// sortColumns whitelists ORDER BY targets; anything else falls back to
// created_at.
var sortColumns = map[shortener.SortField]string{
	shortener.SortByCreatedAt: "created_at",
	shortener.SortByUpdatedAt: "updated_at",
	shortener.SortByHitCount:  "hit_count",
	shortener.SortByOriginal:  "original",
	shortener.SortByCode:      "code",
}

func (p *PostgresRepository) List(ctx context.Context, q shortener.ListQuery) ([]*shortener.UrlRecord, int64, error) {
	where, args := listFilter(q)

	var total int64
	if err := p.pool.QueryRow(ctx, `SELECT count(*) FROM urls`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	column, ok := sortColumns[q.Sort]
	if !ok {
		column = "created_at"
	}

	direction := "ASC"
	if q.Descending {
		direction = "DESC"
	}

	query := fmt.Sprintf(
		`SELECT %s FROM urls%s ORDER BY %s %s OFFSET $%d LIMIT $%d`,
		urlColumns, where, column, direction, len(args)+1, len(args)+2,
	)
	args = append(args, q.Offset, q.Limit)

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var records []*shortener.UrlRecord

	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return records, total, nil
}

func listFilter(q shortener.ListQuery) (string, []any) {
	var clauses []string

	var args []any

	if q.Search != "" {
		args = append(args, "%"+q.Search+"%")
		n := len(args)
		clauses = append(clauses, fmt.Sprintf("(original ILIKE $%d OR code ILIKE $%d)", n, n))
	}

	switch q.Status {
	case shortener.StatusActive:
		clauses = append(clauses, "(expires_at IS NULL OR expires_at > now())")
	case shortener.StatusExpired:
		clauses = append(clauses, "(expires_at IS NOT NULL AND expires_at <= now())")
	}

	if len(clauses) == 0 {
		return "", args
	}

	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (p *PostgresRepository) Stats(ctx context.Context) (*shortener.Stats, error) {
	query := `
		SELECT
			count(*),
			count(*) FILTER (WHERE expires_at IS NOT NULL AND expires_at <= now())
		FROM urls
	`

	stats := &shortener.Stats{}
	if err := p.pool.QueryRow(ctx, query).Scan(&stats.Total, &stats.Expired); err != nil {
		return nil, err
	}

	stats.Active = stats.Total - stats.Expired

	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*shortener.UrlRecord, error) {
	var (
		record      shortener.UrlRecord
		code        string
		customAlias *string
		creatorIP   *string
		creatorUA   *string
		expiresAt   *time.Time
	)

	err := row.Scan(
		&record.ID,
		&code,
		&record.Original,
		&record.Normalized,
		&record.HitCount,
		&customAlias,
		&expiresAt,
		&record.CreatedAt,
		&record.UpdatedAt,
		&creatorIP,
		&creatorUA,
		&record.Metadata,
	)
	if err != nil {
		return nil, err
	}

	record.Code = shortener.Code(code)
	record.ExpiresAt = expiresAt

	if customAlias != nil {
		record.CustomAlias = *customAlias
	}

	if creatorIP != nil {
		record.CreatorIP = *creatorIP
	}

	if creatorUA != nil {
		record.CreatorUA = *creatorUA
	}

	return &record, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}

var _ shortener.Repository = (*PostgresRepository)(nil)
