package validation

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/AnnixInvestments/annix-sub017/internal/models"
)

func TestValidateQuotePayload(t *testing.T) {
	valid := models.QuotePayload{
		UnitPrices: map[string]map[int]decimal.Decimal{
			"flanges": {0: decimal.RequireFromString("125.50"), 1: decimal.Zero},
		},
		WeldUnitPrices: map[string]decimal.Decimal{"flangeWeld": decimal.NewFromInt(40)},
	}
	require.NoError(t, ValidateStruct(valid))

	empty := models.QuotePayload{}
	err := ValidateStruct(empty)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unitPrices failed required")

	negative := valid
	negative.UnitPrices = map[string]map[int]decimal.Decimal{
		"flanges": {0: decimal.NewFromInt(-1)},
	}
	require.Error(t, ValidateStruct(negative))

	longNotes := valid
	longNotes.Notes = strings.Repeat("x", 4001)
	err = ValidateStruct(longNotes)
	require.Error(t, err)
	require.Contains(t, err.Error(), "notes failed max=4000")
}

func TestValidateCustomerInfo(t *testing.T) {
	require.NoError(t, ValidateStruct(models.CustomerInfo{Name: "Jo", Email: "jo@client.example"}))
	require.Error(t, ValidateStruct(models.CustomerInfo{Name: "Jo", Email: "not-an-email"}))
}

func TestValidReminderDays(t *testing.T) {
	require.False(t, ValidReminderDays(0))
	require.True(t, ValidReminderDays(1))
	require.True(t, ValidReminderDays(30))
	require.False(t, ValidReminderDays(31))
}
