package classifier

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/apperr"
	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/apptype"
)

func TestKeywordClassify(t *testing.T) {
	tests := []struct {
		query      string
		intent     string
		confidence float64
	}{
		{"How do I reset my password?", "password_reset", 0.7},
		{"I forgot my password and cannot login", "password_reset", 0.8},
		{"what is the weather", GeneralInquiry, 0.3},
		{"Upgrade to the premium plan, billing question about my subscription", "subscription_inquiry", 0.95},
		{"webhook API sync", "api_integration", 0.8},
		// one hit each: the earlier rule wins
		{"reset the mobile thing", "password_reset", 0.6},
		// keywords match whole words only
		{"happy passwords", GeneralInquiry, 0.3},
	}
	k := NewKeyword()
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, err := k.Classify(context.Background(), tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.intent, got.Intent.Type)
			assert.InDelta(t, tt.confidence, got.Intent.Confidence, 1e-9)
		})
	}
}

func TestKeywordRejectsEmptyQuery(t *testing.T) {
	for _, q := range []string{"", "   \t\n"} {
		_, err := NewKeyword().Classify(context.Background(), q)
		assert.ErrorIs(t, err, apperr.ErrClassification)
	}
}

func TestKeywordCustomRules(t *testing.T) {
	k := NewKeyword(Rule{Intent: "shipping", Keywords: []string{"Parcel", "Tracking"}})
	got, err := k.Classify(context.Background(), "where is my parcel")
	require.NoError(t, err)
	assert.Equal(t, "shipping", got.Intent.Type)
	assert.InDelta(t, 0.6, got.Intent.Confidence, 1e-9)
}

func TestKeywordHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewKeyword().Classify(ctx, "reset password")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExtractEntities(t *testing.T) {
	got := ExtractEntities("customer_123 reports issue_login on product_A; customer_123 again")
	assert.Equal(t, []apptype.Entity{
		{Type: "customer", Value: "customer_123"},
		{Type: "issue", Value: "issue_login"},
		{Type: "product", Value: "product_A"},
	}, got)

	assert.Empty(t, ExtractEntities("no identifiers here, mycustomer_1 included"))
}
