package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/psiflow/psiflow/internal/config"
	ierr "github.com/psiflow/psiflow/internal/errors"
	"github.com/psiflow/psiflow/internal/types"
)

func TestPlanFromPrice(t *testing.T) {
	cfg := config.GetDefaultConfig().Billing

	tests := []struct {
		name    string
		priceID string
		want    types.PlanSlug
		wantErr bool
	}{
		{
			name:    "mapped gestao price",
			priceID: "price_gestao_monthly",
			want:    types.PlanGestao,
		},
		{
			name:    "mapped psi regular price",
			priceID: "price_psi_regular_monthly",
			want:    types.PlanPsiRegular,
		},
		{
			name:    "unmapped price is a hard error",
			priceID: "price_legacy_2019",
			wantErr: true,
		},
		{
			name:    "empty price is a hard error",
			priceID: "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := planFromPrice(cfg, tt.priceID)
			if tt.wantErr {
				assert.Error(t, err)
				assert.True(t, ierr.Is(err, ierr.ErrInvalidOperation))
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPlanForPriceRejectsUnknownSlug(t *testing.T) {
	cfg := config.BillingConfig{
		PricePlans: map[string]string{"price_x": "enterprise"},
	}
	_, ok := cfg.PlanForPrice("price_x")
	assert.False(t, ok, "a mapping to an unknown slug must not resolve")
}
