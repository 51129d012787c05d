package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePremium(t *testing.T) {
	cases := map[string]float64{
		"":          0,
		"120.50":    120.5,
		"$1,250.75": 1250.75,
		" 99 ":      99,
		"abc":       0,
		"-15":       0,
		"NaN":       0,
		"+Inf":      0,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParsePremium(in), "input %q", in)
	}
}

func TestParseDate(t *testing.T) {
	want := time.Date(2024, time.March, 7, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"2024-03-07", "03/07/2024", "3/7/2024", "2024/03/07", "03-07-2024", "Mar 7, 2024", "March 7, 2024"} {
		got := ParseDate(in)
		require.NotNil(t, got, "input %q", in)
		assert.True(t, want.Equal(*got), "input %q parsed as %v", in, got)
	}

	assert.Nil(t, ParseDate(""))
	assert.Nil(t, ParseDate("next tuesday"))
}

func TestDecodeRow(t *testing.T) {
	row := DecodeRow(Record{
		"Agent":             "Alex",
		"company_name":      "Acme Mutual",
		"category_name":     "Auto",
		"email":             "lura@example.com",
		"firstname":         "Lura",
		"userType":          "Active Client",
		"account_name":      "Lura Household",
		"policy_number":     "P-1",
		"policy_start_date": "2024-01-01",
		"premium_amount":    "$1,000",
		"extra":             "ignored",
	})

	assert.Equal(t, "Alex", row.Agent)
	assert.Equal(t, "Acme Mutual", row.Carrier)
	assert.Equal(t, "Auto", row.LOB)
	assert.Equal(t, "lura@example.com", row.User.Email)
	assert.Equal(t, "Active Client", row.User.UserType)
	assert.Equal(t, "Lura Household", row.Account.Name)
	assert.Equal(t, 1000.0, row.Policy.Premium)
	require.NotNil(t, row.Policy.StartDate)
	assert.Nil(t, row.Policy.EndDate)
}
