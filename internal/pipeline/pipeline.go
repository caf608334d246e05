// Package pipeline answers one analytics question end to end: credential,
// plan, guard, execute, summarize, log.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/seoinsight/seoinsight/internal/apperrors"
	"github.com/seoinsight/seoinsight/internal/executor"
	"github.com/seoinsight/seoinsight/internal/llm"
	"github.com/seoinsight/seoinsight/internal/metrics"
	"github.com/seoinsight/seoinsight/internal/models"
	"github.com/seoinsight/seoinsight/internal/planner"
	"github.com/seoinsight/seoinsight/internal/security"
	"github.com/seoinsight/seoinsight/internal/store"
	"github.com/seoinsight/seoinsight/internal/summarizer"
)

const defaultPersistTimeout = 5 * time.Second

type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(serialized string) (string, error)
}

type ClientFactory interface {
	Build(providerID, model, apiKey string) (llm.Client, error)
	ResolveModel(p llm.Provider, model string) string
}

// CredentialStore returns store.ErrNotFound for tenants without settings.
type CredentialStore interface {
	GetCredential(ctx context.Context, tenantID string) (models.TenantCredential, error)
	SaveCredential(ctx context.Context, c models.TenantCredential) error
}

type ConversationStore interface {
	Append(ctx context.Context, turns []models.ConversationTurn) error
}

// Deps wires a Pipeline. Conversations and Masker may be nil.
type Deps struct {
	Vault         Cipher
	Registry      ClientFactory
	Credentials   CredentialStore
	Conversations ConversationStore
	Planner       *planner.Planner
	Guard         *security.SQLGuard
	Executor      executor.Executor
	Summarizer    *summarizer.Summarizer
	Prompts       *security.PromptValidator
	Masker        *security.DataMasker
	Audit         *security.AuditLogger
	Metrics       *metrics.Metrics

	PersistTimeout time.Duration
}

type Pipeline struct {
	d Deps
}

func New(d Deps) *Pipeline {
	if d.Guard == nil {
		d.Guard = security.NewSQLGuard(true)
	}
	if d.Summarizer == nil {
		d.Summarizer = summarizer.New(summarizer.Options{})
	}
	if d.Prompts == nil {
		d.Prompts = security.NewPromptValidator()
	}
	if d.Audit == nil {
		d.Audit = security.NewAuditLogger(false)
	}
	if d.Metrics == nil {
		d.Metrics = metrics.Global()
	}
	if d.PersistTimeout <= 0 {
		d.PersistTimeout = defaultPersistTimeout
	}
	return &Pipeline{d: d}
}

type AskInput struct {
	TenantID  string
	SessionID string
	Question  string
}

// Ask runs the whole pipeline for one question. Errors are *apperrors.Error
// except for unexpected storage failures.
func (p *Pipeline) Ask(ctx context.Context, in AskInput) (*models.ChatResponse, error) {
	start := time.Now()
	if in.SessionID == "" {
		in.SessionID = uuid.NewString()
	}

	run := &run{in: in, audit: security.ChatAudit{
		TenantID:  in.TenantID,
		SessionID: in.SessionID,
		Question:  in.Question,
	}}
	resp, err := p.ask(ctx, run)

	outcome := run.outcome
	if err != nil {
		outcome = string(apperrors.KindOf(err))
		if outcome == "" {
			outcome = "error"
		}
	}
	run.audit.Outcome = outcome
	run.audit.DurationMs = time.Since(start).Milliseconds()
	p.d.Audit.LogChat(run.audit)
	p.d.Metrics.ChatRequests.WithLabelValues(run.audit.Provider, outcome).Inc()

	evt := log.Info()
	if err != nil {
		evt = log.Warn().Str("error_kind", outcome)
	}
	evt.
		Str("tenant_hash", security.HashID(in.TenantID)).
		Str("session_id", in.SessionID).
		Str("provider", run.audit.Provider).
		Int("rows", run.audit.RowCount).
		Dur("elapsed", time.Since(start)).
		Msg("chat request")

	return resp, err
}

// run carries per-request state between stages.
type run struct {
	in      AskInput
	audit   security.ChatAudit
	outcome string
	asked   time.Time
}

func (p *Pipeline) ask(ctx context.Context, r *run) (*models.ChatResponse, error) {
	r.asked = time.Now().UTC()

	if res := p.d.Prompts.Validate(r.in.Question); !res.Valid {
		return nil, apperrors.InvalidInput(res.Message)
	}
	if err := security.ValidateTenantID(r.in.TenantID); err != nil {
		return nil, err
	}

	client, err := p.clientFor(ctx, r.in.TenantID)
	if err != nil {
		return nil, err
	}
	r.audit.Provider = string(client.Provider())
	r.audit.Model = client.Model()

	var plan models.QueryPlan
	err = p.stage("plan", func() error {
		var perr error
		plan, perr = p.d.Planner.Plan(ctx, client, r.in.Question, r.in.TenantID)
		return perr
	})
	if err != nil {
		return nil, err
	}

	if !plan.Derivable() {
		if plan.Error && plan.Explanation == planner.FallbackExplanation {
			p.d.Metrics.PlanFallbacks.Inc()
		}
		r.outcome = "not_derivable"
		summary := summarizer.Fallback(plan, 0)
		resp := &models.ChatResponse{
			Summary:     summary,
			ChartType:   string(models.ChartNone),
			ChartConfig: plan.ChartConfig,
			SessionID:   r.in.SessionID,
		}
		p.persist(ctx, r, client, summary, plan)
		return resp, nil
	}

	stmt := *plan.SQL
	r.audit.SQL = stmt
	if err := p.d.Guard.Validate(stmt, r.in.TenantID); err != nil {
		p.d.Metrics.GuardRejects.Inc()
		log.Warn().
			Str("tenant_hash", security.HashID(r.in.TenantID)).
			Str("reason", apperrors.PublicMessage(err)).
			Msg("generated sql rejected")
		return nil, err
	}

	var result models.ExecutionResult
	err = p.stage("execute", func() error {
		var eerr error
		result, eerr = p.d.Executor.Execute(executor.WithTenant(ctx, r.in.TenantID), stmt)
		return eerr
	})
	if err != nil {
		return nil, err
	}
	rows := result.Rows
	if p.d.Masker != nil {
		rows = p.d.Masker.MaskRows(rows)
	}
	r.audit.RowCount = result.RowCount

	var summary string
	_ = p.stage("summarize", func() error {
		s, serr := p.d.Summarizer.Summarize(ctx, client, r.in.Question, rows)
		if serr != nil {
			log.Warn().Err(serr).Str("provider", r.audit.Provider).Msg("summary unavailable, using fallback")
			summary = summarizer.Fallback(plan, result.RowCount)
			return nil
		}
		summary = s
		return nil
	})

	r.outcome = "ok"
	resp := &models.ChatResponse{
		Summary:     summary,
		Data:        rows,
		ChartType:   string(plan.ChartType),
		ChartConfig: plan.ChartConfig,
		SQL:         plan.SQL,
		RowCount:    result.RowCount,
		SessionID:   r.in.SessionID,
	}
	p.persist(ctx, r, client, summary, plan)
	return resp, nil
}

// clientFor loads, decrypts and builds the tenant's provider client. The
// decrypted key never leaves this function.
func (p *Pipeline) clientFor(ctx context.Context, tenantID string) (llm.Client, error) {
	cred, err := p.d.Credentials.GetCredential(ctx, tenantID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.New(apperrors.KindCredentialMissing, "no AI settings saved", nil)
		}
		return nil, fmt.Errorf("load credential: %w", err)
	}

	apiKey, err := p.d.Vault.Decrypt(cred.EncryptedKey)
	if err != nil {
		log.Warn().
			Str("tenant_hash", security.HashID(tenantID)).
			Str("kind", string(apperrors.KindOf(err))).
			Msg("stored credential could not be decrypted")
		return nil, err
	}
	return p.d.Registry.Build(cred.Provider, cred.Model, apiKey)
}

func (p *Pipeline) stage(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	p.d.Metrics.StageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	return err
}

// persist appends the question and the answer together. It is skipped
// when the caller has already gone and never fails the request.
func (p *Pipeline) persist(ctx context.Context, r *run, client llm.Client, summary string, plan models.QueryPlan) {
	if p.d.Conversations == nil {
		return
	}
	if ctx.Err() != nil {
		log.Debug().Str("session_id", r.in.SessionID).Msg("request cancelled, conversation not saved")
		return
	}

	chart := string(models.ChartNone)
	var stmt *string
	if plan.Derivable() {
		chart = string(plan.ChartType)
		stmt = plan.SQL
	}
	model := client.Model()
	provider := string(client.Provider())
	turns := []models.ConversationTurn{
		{
			TenantID:  r.in.TenantID,
			SessionID: r.in.SessionID,
			Role:      models.RoleUser,
			Content:   r.in.Question,
			Timestamp: r.asked,
		},
		{
			TenantID:     r.in.TenantID,
			SessionID:    r.in.SessionID,
			Role:         models.RoleAssistant,
			Content:      summary,
			SQLGenerated: stmt,
			ChartType:    &chart,
			ModelUsed:    &model,
			ProviderUsed: &provider,
			Timestamp:    time.Now().UTC(),
		},
	}

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.d.PersistTimeout)
	defer cancel()
	_ = p.stage("persist", func() error {
		if err := p.d.Conversations.Append(pctx, turns); err != nil {
			p.d.Metrics.PersistFailure.Inc()
			log.Warn().
				Err(err).
				Str("tenant_hash", security.HashID(r.in.TenantID)).
				Str("session_id", r.in.SessionID).
				Msg("conversation not saved")
		}
		return nil
	})
}
