package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/seoinsight/seoinsight/internal/apperrors"
	"github.com/seoinsight/seoinsight/internal/llm"
	"github.com/seoinsight/seoinsight/internal/models"
	"github.com/seoinsight/seoinsight/internal/security"
)

type SaveCredentialInput struct {
	TenantID string
	Provider string
	Model    string
	APIKey   string
}

// SaveCredentialResult describes what was stored. It never carries the key.
type SaveCredentialResult struct {
	Provider string
	Model    string
}

// SaveCredential validates the provider, seals the key and upserts the
// tenant's settings. An empty model is stored as such and resolved to the
// provider default at use time.
func (p *Pipeline) SaveCredential(ctx context.Context, in SaveCredentialInput) (SaveCredentialResult, error) {
	if err := security.ValidateTenantID(in.TenantID); err != nil {
		return SaveCredentialResult{}, err
	}
	provider, err := llm.ParseProvider(in.Provider)
	if err != nil {
		return SaveCredentialResult{}, apperrors.InvalidInput(fmt.Sprintf("unsupported provider %q", in.Provider))
	}
	key := strings.TrimSpace(in.APIKey)
	if key == "" {
		return SaveCredentialResult{}, apperrors.InvalidInput("apiKey is required")
	}

	sealed, err := p.d.Vault.Encrypt(key)
	if err != nil {
		return SaveCredentialResult{}, apperrors.Configuration("encrypt api key", err)
	}

	model := strings.TrimSpace(in.Model)
	if err := p.d.Credentials.SaveCredential(ctx, models.TenantCredential{
		TenantID:     in.TenantID,
		Provider:     string(provider),
		Model:        model,
		EncryptedKey: sealed,
	}); err != nil {
		return SaveCredentialResult{}, fmt.Errorf("save credential: %w", err)
	}

	model = p.d.Registry.ResolveModel(provider, model)
	p.d.Audit.LogCredentialSaved(in.TenantID, string(provider), model)
	log.Info().
		Str("tenant_hash", security.HashID(in.TenantID)).
		Str("provider", string(provider)).
		Msg("ai settings saved")

	return SaveCredentialResult{Provider: string(provider), Model: model}, nil
}
