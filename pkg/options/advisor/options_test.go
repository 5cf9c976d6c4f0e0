package advisor

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	o := NewOptions()
	assert.Equal(t, 1000, o.ChunkSize)
	assert.Equal(t, 200, o.ChunkOverlap)
	assert.Equal(t, 4, o.TopK)
	assert.Empty(t, o.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(o *Options)
		want   string
	}{
		{"overlap too large", func(o *Options) { o.ChunkOverlap = 1000 }, "chunk-overlap"},
		{"bad backend", func(o *Options) { o.IndexBackend = "faiss" }, "index-backend"},
		{"zero top-k", func(o *Options) { o.TopK = 0 }, "top-k"},
		{"template verbs", func(o *Options) { o.QueryTemplate = "plain" }, "query-template"},
		{"prompt slots", func(o *Options) { o.PromptTemplate = "{{question}}" }, "prompt-template"},
		{"milvus chunk size", func(o *Options) {
			o.IndexBackend = BackendMilvus
			o.ChunkSize = MaxMilvusChunkSize + 1
		}, "chunk-size must not exceed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := NewOptions()
			tt.mutate(o)
			errs := o.Validate()
			require.Len(t, errs, 1)
			assert.Contains(t, errs[0].Error(), tt.want)
		})
	}
}

func TestAddFlagsWithPrefix(t *testing.T) {
	o := NewOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	o.AddFlags(fs, "svc")

	require.NoError(t, fs.Parse([]string{"--svc.advisor.top-k=6", "--svc.advisor.index-backend=milvus"}))
	assert.Equal(t, 6, o.TopK)
	assert.Equal(t, BackendMilvus, o.IndexBackend)
}
