package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kart-io/sentinel-advisor/pkg/infra/middleware/common"
)

func TestFields(t *testing.T) {
	ctx := common.WithRequestID(context.Background(), "req-1")
	ctx = WithFields(ctx, "op", "ingest")
	ctx = WithFields(ctx, "sources", 2)

	assert.Equal(t, []interface{}{"request_id", "req-1", "op", "ingest", "sources", 2}, Fields(ctx))
}

func TestFieldsEmpty(t *testing.T) {
	assert.Empty(t, Fields(context.Background()))
	assert.NotNil(t, FromContext(context.Background()))
}
