package common

import (
	"context"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "abc")
	assert.Equal(t, "abc", GetRequestID(ctx))
	assert.Empty(t, GetRequestID(context.Background()))
}

func TestGenerators(t *testing.T) {
	id := Generator("random")()
	assert.Len(t, id, 32)
	assert.NotEqual(t, id, GenerateRequestID())

	u := Generator("ulid")()
	require.Len(t, u, 26)
	_, err := ulid.Parse(u)
	assert.NoError(t, err)
}
