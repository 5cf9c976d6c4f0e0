package json

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type profile struct {
	RiskLevel         string `json:"risk_level"`
	InvestmentHorizon int    `json:"investment_horizon"`
}

func TestMarshalUnmarshal(t *testing.T) {
	in := profile{RiskLevel: "stable type", InvestmentHorizon: 3}

	data, err := Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"risk_level":"stable type","investment_horizon":3}`, string(data))

	var out profile
	require.NoError(t, Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestMarshalIndent(t *testing.T) {
	data, err := MarshalIndent(map[string]string{"data/docs/a.html": "https://example.com/a"}, "", "  ")
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"data/docs/a.html\"")
}

func TestEncoderDecoder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf).Encode(profile{RiskLevel: "risk-neutral type", InvestmentHorizon: 5}))

	var out profile
	require.NoError(t, NewDecoder(&buf).Decode(&out))
	assert.Equal(t, "risk-neutral type", out.RiskLevel)
	assert.Equal(t, 5, out.InvestmentHorizon)
}
