package repo

import (
    "context"
    "database/sql"
    "errors"
    "net"
    "net/url"
    "os"
    "time"

    _ "github.com/jackc/pgx/v5/stdlib"

    "github.com/avask/reqkey/internal/data"
    "github.com/google/uuid"
)

// PostgresRepo implements RequestRepo backed by PostgreSQL.
// It expects a table `requests` with a unique index on `request_id`.
type PostgresRepo struct {
    db *sql.DB
}

// NewPostgresRepo constructs a repository using the provided DSN.
func NewPostgresRepo(dsn string) (*PostgresRepo, error) {
    db, err := sql.Open("pgx", dsn)
    if err != nil {
        return nil, err
    }
    // Verify connection
    ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()
    if err := db.PingContext(ctx); err != nil {
        _ = db.Close()
        return nil, err
    }
    r := &PostgresRepo{db: db}
    if err := r.ensureSchema(ctx); err != nil {
        _ = db.Close()
        return nil, err
    }
    return r, nil
}

// NewPostgresRepoFromEnv constructs a DSN using component env vars.
// Recognized envs (with defaults):
//   POSTGRES_HOST (postgres), POSTGRES_PORT (5432), POSTGRES_DB (reqkey),
//   POSTGRES_USER (reqkey), POSTGRES_PASSWORD (empty), POSTGRES_SSLMODE (disable)
// Credentials and db name are URL-encoded to handle special characters safely.
func NewPostgresRepoFromEnv() (*PostgresRepo, error) {
    host := getenv("POSTGRES_HOST", "postgres")
    port := getenv("POSTGRES_PORT", "5432")
    db := getenv("POSTGRES_DB", "reqkey")
    user := getenv("POSTGRES_USER", "reqkey")
    pass := getenv("POSTGRES_PASSWORD", "")
    ssl := getenv("POSTGRES_SSLMODE", "disable")

    u := &url.URL{
        Scheme: "postgres",
        User:   url.UserPassword(user, pass),
        Host:   net.JoinHostPort(host, port),
        Path:   "/" + db,
    }
    q := url.Values{}
    q.Set("sslmode", ssl)
    u.RawQuery = q.Encode()
    return NewPostgresRepo(u.String())
}

func getenv(k, def string) string {
    if v := os.Getenv(k); v != "" {
        return v
    }
    return def
}

func (r *PostgresRepo) Close() error { return r.db.Close() }

func (r *PostgresRepo) Ping(ctx context.Context) error { return r.db.PingContext(ctx) }

func (r *PostgresRepo) ensureSchema(ctx context.Context) error {
    // Create table if not exists
    _, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS requests (
    id UUID PRIMARY KEY,
    request_id TEXT NOT NULL UNIQUE,
    unique_key TEXT NOT NULL,
    url TEXT NOT NULL,
    normalized_url TEXT NOT NULL,
    method TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL
);
`)
    return err
}

// List implements RequestReader.List
func (r *PostgresRepo) List(ctx context.Context) (data.Records, error) {
    rows, err := r.db.QueryContext(ctx, `SELECT id,request_id,unique_key,url,normalized_url,method,created_at FROM requests ORDER BY created_at ASC`)
    if err != nil { return nil, err }
    defer rows.Close()
    var out data.Records
    for rows.Next() {
        rec, err := scanRecord(rows)
        if err != nil { return nil, err }
        out = append(out, rec)
    }
    return out, rows.Err()
}

// Get implements RequestReader.Get
func (r *PostgresRepo) Get(ctx context.Context, requestID string) (*data.Record, error) {
    row := r.db.QueryRowContext(ctx, `SELECT id,request_id,unique_key,url,normalized_url,method,created_at FROM requests WHERE request_id=$1`, requestID)
    rec, err := scanRecord(row)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) { return nil, data.ErrNotFound }
        return nil, err
    }
    return rec, nil
}

// Add implements atomic register-or-fetch keyed on request_id.
func (r *PostgresRepo) Add(ctx context.Context, rec *data.Record) (*data.Record, bool, error) {
    id := rec.ID
    if id == "" {
        id = uuid.NewString()
    }
    // Try insert; on conflict do nothing, then fetch existing
    var inserted string
    err := r.db.QueryRowContext(ctx, `
WITH ins AS (
    INSERT INTO requests (id,request_id,unique_key,url,normalized_url,method,created_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7)
    ON CONFLICT (request_id) DO NOTHING
    RETURNING request_id
)
SELECT request_id FROM ins
`, id, rec.RequestID, rec.UniqueKey, rec.URL, rec.NormalizedURL, rec.Method, rec.CreatedAt).Scan(&inserted)
    if err != nil && !errors.Is(err, sql.ErrNoRows) {
        return nil, false, err
    }
    if err == nil {
        // Inserted new row
        stored, err := r.Get(ctx, inserted)
        return stored, true, err
    }
    // Fetch the record that won the race
    stored, err := r.Get(ctx, rec.RequestID)
    if err != nil { return nil, false, err }
    return stored, false, nil
}

// Helpers

type rowScanner interface{ Scan(dest ...any) error }

func scanRecord(rs rowScanner) (*data.Record, error) {
    var (
        id, requestID, uniqueKey, rawURL, normalized, method string
        created time.Time
    )
    if err := rs.Scan(&id, &requestID, &uniqueKey, &rawURL, &normalized, &method, &created); err != nil {
        return nil, err
    }
    return &data.Record{
        ID:            id,
        RequestID:     requestID,
        UniqueKey:     uniqueKey,
        URL:           rawURL,
        NormalizedURL: normalized,
        Method:        method,
        CreatedAt:     created,
    }, nil
}
