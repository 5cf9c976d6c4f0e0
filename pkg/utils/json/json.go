// Package json provides a high-performance JSON serialization wrapper.
// It uses sonic on amd64/arm64 and falls back to encoding/json elsewhere.
package json

import (
	stdjson "encoding/json"
	"io"
	"runtime"

	"github.com/bytedance/sonic"
)

var (
	// Marshal encodes v into JSON bytes.
	Marshal func(v interface{}) ([]byte, error)

	// MarshalIndent encodes v into indented JSON bytes.
	MarshalIndent func(v interface{}, prefix, indent string) ([]byte, error)

	// Unmarshal decodes JSON bytes into v.
	Unmarshal func(data []byte, v interface{}) error

	// NewEncoder creates a new JSON encoder for the writer.
	NewEncoder func(w io.Writer) Encoder

	// NewDecoder creates a new JSON decoder for the reader.
	NewDecoder func(r io.Reader) Decoder

	usingSonic bool
)

// RawMessage is a raw encoded JSON value.
type RawMessage = stdjson.RawMessage

// Encoder is a JSON encoder interface.
type Encoder interface {
	Encode(v interface{}) error
}

// Decoder is a JSON decoder interface.
type Decoder interface {
	Decode(v interface{}) error
}

func init() {
	if runtime.GOARCH == "amd64" || runtime.GOARCH == "arm64" {
		useSonic(sonic.ConfigDefault)
		return
	}

	Marshal = stdjson.Marshal
	MarshalIndent = stdjson.MarshalIndent
	Unmarshal = stdjson.Unmarshal
	NewEncoder = func(w io.Writer) Encoder {
		return stdjson.NewEncoder(w)
	}
	NewDecoder = func(r io.Reader) Decoder {
		return stdjson.NewDecoder(r)
	}
	usingSonic = false
}

func useSonic(api sonic.API) {
	Marshal = api.Marshal
	MarshalIndent = api.MarshalIndent
	Unmarshal = api.Unmarshal
	NewEncoder = func(w io.Writer) Encoder {
		return api.NewEncoder(w)
	}
	NewDecoder = func(r io.Reader) Decoder {
		return api.NewDecoder(r)
	}
	usingSonic = true
}

// ConfigStdMode switches sonic to its encoding/json compatible mode
// (sorted map keys, HTML escaping). No-op on the standard library fallback.
func ConfigStdMode() {
	if usingSonic {
		useSonic(sonic.ConfigStd)
	}
}

// IsUsingSonic returns true if sonic is being used for JSON operations.
func IsUsingSonic() bool {
	return usingSonic
}
