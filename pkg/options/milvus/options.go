// Package milvusopts provides options for Milvus client configuration.
package milvusopts

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/sentinel-advisor/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options contains Milvus client configuration.
type Options struct {
	// Address is the Milvus server address (host:port).
	Address string `json:"address" mapstructure:"address"`

	// Database is the database name to use.
	Database string `json:"database" mapstructure:"database"`

	// Username for authentication.
	Username string `json:"username" mapstructure:"username"`

	// Password for authentication.
	Password string `json:"-" mapstructure:"password"`

	// Timeout for connection and operations.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// Collection is the collection (or collection prefix for the service) to write to.
	Collection string `json:"collection" mapstructure:"collection"`

	// Dimension of the embedding field.
	Dimension int `json:"dimension" mapstructure:"dimension"`

	// HNSWM and HNSWEfConstruction configure the HNSW index.
	HNSWM              int `json:"hnsw-m" mapstructure:"hnsw-m"`
	HNSWEfConstruction int `json:"hnsw-ef-construction" mapstructure:"hnsw-ef-construction"`

	// SearchEf is the ef parameter used at query time.
	SearchEf int `json:"search-ef" mapstructure:"search-ef"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		Address:            "127.0.0.1:19530",
		Database:           "default",
		Timeout:            30 * time.Second,
		Collection:         "clova_rag",
		Dimension:          1024,
		HNSWM:              8,
		HNSWEfConstruction: 200,
		SearchEf:           64,
	}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "milvus."
	fs.StringVar(&o.Address, p+"address", o.Address, "Milvus server address (host:port).")
	fs.StringVar(&o.Database, p+"database", o.Database, "Milvus database name.")
	fs.StringVar(&o.Username, p+"username", o.Username, "Milvus username for authentication.")
	fs.StringVar(&o.Password, p+"password", o.Password, "Milvus password for authentication.")
	fs.DurationVar(&o.Timeout, p+"timeout", o.Timeout, "Connection and operation timeout.")
	fs.StringVar(&o.Collection, p+"collection", o.Collection, "Milvus collection name.")
	fs.IntVar(&o.Dimension, p+"dimension", o.Dimension, "Embedding vector dimension.")
	fs.IntVar(&o.HNSWM, p+"hnsw-m", o.HNSWM, "HNSW M parameter.")
	fs.IntVar(&o.HNSWEfConstruction, p+"hnsw-ef-construction", o.HNSWEfConstruction, "HNSW efConstruction parameter.")
	fs.IntVar(&o.SearchEf, p+"search-ef", o.SearchEf, "HNSW ef parameter used for search.")
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Address == "" {
		errs = append(errs, fmt.Errorf("milvus address is required"))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("milvus timeout must be positive"))
	}
	if o.Collection == "" {
		errs = append(errs, fmt.Errorf("milvus collection is required"))
	}
	if o.Dimension <= 0 {
		errs = append(errs, fmt.Errorf("milvus dimension must be positive"))
	}
	if o.HNSWM <= 0 || o.HNSWEfConstruction <= 0 {
		errs = append(errs, fmt.Errorf("milvus hnsw parameters must be positive"))
	}
	return errs
}
