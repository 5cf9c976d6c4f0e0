package redis

import (
	"strings"
	"testing"
	"time"

	"github.com/kart-io/sentinel-advisor/pkg/utils/json"
)

func TestOptionsJSONMarshal_PasswordRedacted(t *testing.T) {
	opts := &Options{Host: "localhost", Port: 6379, Password: "supersecret"}

	data, err := json.Marshal(opts)
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}
	jsonStr := string(data)
	if strings.Contains(jsonStr, "supersecret") {
		t.Error("password should be redacted in JSON output")
	}
	if !strings.Contains(jsonStr, "[REDACTED]") {
		t.Error("JSON output should contain [REDACTED] placeholder")
	}
}

func TestOptionsString_PasswordRedacted(t *testing.T) {
	opts := &Options{Host: "localhost", Port: 6379, Password: "supersecret"}

	str := opts.String()
	if strings.Contains(str, "supersecret") {
		t.Error("password should be redacted in String() output")
	}
	if !strings.Contains(str, "[REDACTED]") {
		t.Error("String() output should contain [REDACTED] placeholder")
	}
}

func TestNewOptions_Defaults(t *testing.T) {
	opts := NewOptions()
	if opts.Enabled {
		t.Error("redis should be disabled by default")
	}
	if opts.Addr() != "127.0.0.1:6379" {
		t.Errorf("expected default addr 127.0.0.1:6379, got %s", opts.Addr())
	}
	if opts.DialTimeout != 5*time.Second {
		t.Errorf("expected default dial timeout 5s, got %v", opts.DialTimeout)
	}
}

func TestValidate(t *testing.T) {
	t.Setenv("REDIS_PASSWORD", "from-env")

	opts := NewOptions()
	if errs := opts.Validate(); len(errs) != 0 {
		t.Errorf("disabled redis should validate, got %v", errs)
	}
	if opts.Password != "from-env" {
		t.Errorf("expected password from env, got %q", opts.Password)
	}

	opts.Enabled = true
	opts.Port = 0
	if errs := opts.Validate(); len(errs) != 1 {
		t.Errorf("expected 1 error, got %v", errs)
	}
}
