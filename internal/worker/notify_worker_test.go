package worker

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopspring/decimal"

	"github.com/mercadito/storefront-api/internal/model"
)

func TestWhatsAppURL(t *testing.T) {
	order := &model.Order{
		OrderNumber:  "ORD-20260901-AB12CD34",
		CustomerName: "Ana López",
		Total:        decimal.RequireFromString("125.50"),
	}

	waURL := WhatsAppURL("+50212345678", order)
	assert.True(t, strings.HasPrefix(waURL, "https://wa.me/50212345678?text="), "got %s", waURL)

	parsed, err := url.Parse(waURL)
	require.NoError(t, err)
	text := parsed.Query().Get("text")
	assert.Contains(t, text, "ORD-20260901-AB12CD34")
	assert.Contains(t, text, "Q125.50")
	assert.Contains(t, text, "Ana López")
}
