package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/seoinsight/seoinsight/internal/apperrors"
	"github.com/seoinsight/seoinsight/internal/models"
	"github.com/seoinsight/seoinsight/internal/security"
)

type BigQueryOptions struct {
	ProjectID       string
	CredentialsFile string
	Location        string
	Timeout         time.Duration
	MaxRows         int
}

// BigQuery executes against the GA4 export warehouse. Every query is
// dry-run first so the byte budget is enforced before anything is billed.
type BigQuery struct {
	client   *bigquery.Client
	location string
	cost     *security.CostTracker
	timeout  time.Duration
	maxRows  int
}

func NewBigQuery(ctx context.Context, opts BigQueryOptions, cost *security.CostTracker) (*BigQuery, error) {
	var clientOpts []option.ClientOption
	if opts.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
	}

	client, err := bigquery.NewClient(ctx, opts.ProjectID, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("bigquery.NewClient: %w", err)
	}
	if cost == nil {
		cost = security.NewCostTracker(0)
	}
	return &BigQuery{
		client:   client,
		location: opts.Location,
		cost:     cost,
		timeout:  opts.Timeout,
		maxRows:  opts.MaxRows,
	}, nil
}

func (b *BigQuery) Close() error {
	return b.client.Close()
}

func (b *BigQuery) Ping(ctx context.Context) error {
	q := b.client.Query("SELECT 1")
	q.Location = b.location
	q.DryRun = true
	_, err := q.Run(ctx)
	return err
}

func (b *BigQuery) Execute(ctx context.Context, sql string) (models.ExecutionResult, error) {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}
	sql = normalize(sql)

	estimate, err := b.dryRun(ctx, sql)
	if err != nil {
		return models.ExecutionResult{}, err
	}
	if ok, msg := b.cost.CheckLimits(estimate); !ok {
		return models.ExecutionResult{}, apperrors.Execution(msg, nil)
	}

	start := time.Now()
	q := b.client.Query(sql)
	q.Location = b.location
	if max := b.cost.MaxBytes(); max > 0 {
		q.MaxBytesBilled = max
	}

	job, err := q.Run(ctx)
	if err != nil {
		return models.ExecutionResult{}, warehouseError(err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return models.ExecutionResult{}, warehouseError(err)
	}
	if err := status.Err(); err != nil {
		return models.ExecutionResult{}, warehouseError(err)
	}

	it, err := job.Read(ctx)
	if err != nil {
		return models.ExecutionResult{}, warehouseError(err)
	}

	var rows []map[string]any
	for {
		var row map[string]bigquery.Value
		err := it.Next(&row)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return models.ExecutionResult{}, warehouseError(err)
		}
		rows = append(rows, convertRow(row))
		if b.maxRows > 0 && len(rows) >= b.maxRows {
			log.Warn().Int("max_rows", b.maxRows).Msg("result truncated")
			break
		}
	}
	if rows == nil {
		rows = []map[string]any{}
	}

	if stats := job.LastStatus().Statistics; stats != nil {
		b.cost.LogQueryCost(sql, stats.TotalBytesProcessed, time.Since(start).Milliseconds())
	}

	return models.ExecutionResult{Rows: rows, RowCount: len(rows)}, nil
}

func (b *BigQuery) dryRun(ctx context.Context, sql string) (int64, error) {
	q := b.client.Query(sql)
	q.Location = b.location
	q.DryRun = true
	job, err := q.Run(ctx)
	if err != nil {
		return 0, warehouseError(err)
	}
	status := job.LastStatus()
	if err := status.Err(); err != nil {
		return 0, warehouseError(err)
	}
	if err := selectOnly(status.Statistics); err != nil {
		return 0, err
	}
	return status.Statistics.TotalBytesProcessed, nil
}

// selectOnly fails unless the dry run classified the job as a plain SELECT.
// BigQuery query jobs also accept DML, DDL and scripts.
func selectOnly(stats *bigquery.JobStatistics) error {
	if stats == nil {
		return apperrors.Execution("dry run returned no statistics", nil)
	}
	qs, ok := stats.Details.(*bigquery.QueryStatistics)
	if !ok || qs == nil {
		return apperrors.Execution("dry run returned no query statistics", nil)
	}
	if !strings.EqualFold(qs.StatementType, "SELECT") {
		log.Warn().Str("statement_type", qs.StatementType).Msg("non-select statement refused by warehouse executor")
		return apperrors.Execution(fmt.Sprintf("only SELECT statements can be run, got %s", statementLabel(qs.StatementType)), nil)
	}
	return nil
}

func statementLabel(t string) string {
	if t == "" {
		return "an unclassified statement"
	}
	return t
}

func convertRow(row map[string]bigquery.Value) map[string]any {
	m := make(map[string]any, len(row))
	for k, v := range row {
		m[k] = convertValue(v)
	}
	return m
}

// convertValue unwraps repeated and record fields into plain slices and
// maps so the row encodes as ordinary JSON.
func convertValue(v bigquery.Value) any {
	switch t := v.(type) {
	case []bigquery.Value:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = convertValue(e)
		}
		return out
	case map[string]bigquery.Value:
		return convertRow(t)
	default:
		return t
	}
}

func warehouseError(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.Execution("query timed out", err)
	case errors.Is(err, context.Canceled):
		return apperrors.Execution("query cancelled", err)
	}
	var gErr *googleapi.Error
	if errors.As(err, &gErr) && gErr.Message != "" {
		return apperrors.Execution(gErr.Message, err)
	}
	var bqErr *bigquery.Error
	if errors.As(err, &bqErr) && bqErr.Message != "" {
		return apperrors.Execution(bqErr.Message, err)
	}
	return apperrors.Execution(err.Error(), err)
}
