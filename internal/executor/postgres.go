package executor

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"

	"github.com/seoinsight/seoinsight/internal/apperrors"
	"github.com/seoinsight/seoinsight/internal/models"
)

// setTenantSQL sets app.user_id for the current transaction only.
const setTenantSQL = "SELECT set_config('app.user_id', $1, true)"

var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*(\.[a-z_][a-z0-9_]*)?$`)

type PostgresOptions struct {
	// Function is the stored function that runs a statement read-only and
	// returns its rows as a JSON array.
	Function string
	Timeout  time.Duration
	MaxRows  int
}

// Postgres executes through a read-only transaction that calls the
// read-only query function. The transaction, the function and the
// database role are the write barrier; the textual guard is not. A tenant
// on the context is published as app.user_id, which the row security
// policies on the tenant tables filter by.
type Postgres struct {
	db      *sql.DB
	call    string
	timeout time.Duration
	maxRows int
}

func NewPostgres(db *sql.DB, opts PostgresOptions) (*Postgres, error) {
	fn := opts.Function
	if fn == "" {
		fn = "execute_readonly_query"
	}
	if !identRe.MatchString(fn) {
		return nil, apperrors.Configuration(fmt.Sprintf("invalid read-only function name %q", fn), nil)
	}
	return &Postgres{
		db:      db,
		call:    "SELECT " + fn + "($1)",
		timeout: opts.Timeout,
		maxRows: opts.MaxRows,
	}, nil
}

func (p *Postgres) Execute(ctx context.Context, query string) (models.ExecutionResult, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	start := time.Now()
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return models.ExecutionResult{}, engineError(ctx, err)
	}
	defer func() { _ = tx.Rollback() }()

	if tenant := TenantFromContext(ctx); tenant != "" {
		if _, err := tx.ExecContext(ctx, setTenantSQL, tenant); err != nil {
			return models.ExecutionResult{}, engineError(ctx, err)
		}
	}

	var payload sql.NullString
	if err := tx.QueryRowContext(ctx, p.call, normalize(query)).Scan(&payload); err != nil {
		return models.ExecutionResult{}, engineError(ctx, err)
	}

	rows, err := decodeRows(payload)
	if err != nil {
		return models.ExecutionResult{}, apperrors.Execution("unreadable result set", err)
	}

	rows, capped := capRows(rows, p.maxRows)
	if capped {
		log.Warn().Int("max_rows", p.maxRows).Msg("result truncated")
	}

	log.Debug().
		Int("rows", len(rows)).
		Dur("elapsed", time.Since(start)).
		Msg("read-only query done")

	return models.ExecutionResult{Rows: rows, RowCount: len(rows)}, nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// decodeRows reads the JSON array the function returns. Numbers stay
// json.Number so large integers survive.
func decodeRows(payload sql.NullString) ([]map[string]any, error) {
	if !payload.Valid || payload.String == "" || payload.String == "null" {
		return []map[string]any{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(payload.String)))
	dec.UseNumber()
	var rows []map[string]any
	if err := dec.Decode(&rows); err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	return rows, nil
}

func engineError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return apperrors.Execution("query timed out", err)
	case errors.Is(err, context.Canceled), errors.Is(ctx.Err(), context.Canceled):
		return apperrors.Execution("query cancelled", err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return apperrors.Execution(pgErr.Message, err)
	}
	log.Warn().Err(err).Msg("read-only query failed outside the engine")
	return apperrors.Execution("query could not be run", err)
}
