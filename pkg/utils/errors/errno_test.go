package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
)

func TestAdvisorCodes(t *testing.T) {
	tests := []struct {
		name string
		err  *Errno
		code int
		http int
	}{
		{"invalid answer", ErrInvalidAnswer, 2101001, http.StatusBadRequest},
		{"no sources", ErrNoSources, 2101002, http.StatusBadRequest},
		{"missing fields", ErrMissingFields, 2101003, http.StatusBadRequest},
		{"invalid url", ErrInvalidURL, 2101004, http.StatusBadRequest},
		{"index not ready", ErrIndexNotReady, 2101005, http.StatusBadRequest},
		{"load failed", ErrLoadFailed, 2110001, http.StatusBadGateway},
		{"embedding failed", ErrEmbeddingFailed, 2110002, http.StatusBadGateway},
		{"chat failed", ErrChatFailed, 2110003, http.StatusBadGateway},
		{"index failed", ErrIndexFailed, 2107001, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.http, tt.err.HTTPStatus())

			registered, ok := Lookup(tt.code)
			assert.True(t, ok)
			assert.Same(t, tt.err, registered)
		})
	}
	assert.Equal(t, codes.FailedPrecondition, ErrIndexNotReady.GRPCStatus())
}

func TestParseCode(t *testing.T) {
	service, category, seq := ParseCode(2110003)
	assert.Equal(t, ServiceAdvisor, service)
	assert.Equal(t, CategoryNetwork, category)
	assert.Equal(t, 3, seq)

	assert.True(t, IsClientError(ErrNoSources.Code))
	assert.True(t, IsServerError(ErrIndexFailed.Code))
}

func TestWithCauseKeepsOriginal(t *testing.T) {
	cause := fmt.Errorf("dial tcp: refused")
	e := ErrEmbeddingFailed.WithCause(cause)

	assert.Nil(t, ErrEmbeddingFailed.Cause())
	assert.Equal(t, cause, e.Cause())
	assert.True(t, stderrors.Is(e, ErrEmbeddingFailed))
	assert.ErrorIs(t, e, cause)
	assert.Contains(t, e.Error(), "dial tcp: refused")
}

func TestWithMessagef(t *testing.T) {
	e := ErrInvalidAnswer.WithMessagef("invalid answer %d for question %s", 9, "q1")
	assert.Equal(t, "invalid answer 9 for question q1", e.MessageEN)
	assert.Equal(t, "Invalid questionnaire answer", ErrInvalidAnswer.MessageEN)
	assert.Equal(t, ErrInvalidAnswer.Code, e.Code)
	assert.Equal(t, "invalid answer 9 for question q1", e.Message("ko"))
	assert.NotEmpty(t, ErrInvalidAnswer.MessageKO)
}

func TestWithMessageKO(t *testing.T) {
	e := ErrInvalidAnswer.WithMessage("invalid answer 9 for question q1").
		WithMessageKO("q1 문항의 응답 9은(는) 올바르지 않습니다")
	assert.Equal(t, "invalid answer 9 for question q1", e.Message("en"))
	assert.Equal(t, "q1 문항의 응답 9은(는) 올바르지 않습니다", e.Message("ko-KR"))
}

func TestMessageLang(t *testing.T) {
	assert.Equal(t, ErrNoSources.MessageKO, ErrNoSources.Message("ko"))
	assert.Equal(t, ErrNoSources.MessageEN, ErrNoSources.Message("en"))

	e := New(9999999, http.StatusTeapot, codes.Unknown, "only english", "")
	assert.Equal(t, "only english", e.Message("ko"))
}

func TestRegisterDuplicatePanics(t *testing.T) {
	assert.PanicsWithValue(t, "errno code 2101002 already registered: Provide at least one PDF or URL.", func() {
		Register(New(ErrNoSources.Code, http.StatusBadRequest, codes.InvalidArgument, "dup", "중복"))
	})
}

func TestRegisterRequiresBothLanguages(t *testing.T) {
	code := MakeCode(ServiceAdvisor, CategoryRequest, 99)
	assert.Panics(t, func() {
		Register(New(code, http.StatusBadRequest, codes.InvalidArgument, "english only", ""))
	})
	_, ok := Lookup(code)
	assert.False(t, ok)
}

func TestFromError(t *testing.T) {
	assert.Nil(t, FromError(nil))

	wrapped := fmt.Errorf("ingest: %w", ErrNoSources)
	assert.Same(t, ErrNoSources, FromError(wrapped))
	assert.True(t, IsCode(wrapped, ErrNoSources.Code))
	assert.Equal(t, ErrNoSources.Code, CodeOf(wrapped))

	plain := stderrors.New("plain")
	e := FromError(plain)
	assert.Equal(t, ErrInternal.Code, e.Code)
	assert.Equal(t, ErrInternal.Code, CodeOf(plain))
	assert.Equal(t, OK.Code, CodeOf(nil))

	timeout := FromError(fmt.Errorf("embed: %w", context.DeadlineExceeded))
	assert.Equal(t, ErrRequestTimeout.Code, timeout.Code)
	assert.ErrorIs(t, timeout, context.DeadlineExceeded)
}

func TestFormat(t *testing.T) {
	e := ErrChatFailed.WithCause(fmt.Errorf("upstream 503"))
	s := fmt.Sprintf("%+v", e)
	assert.Contains(t, s, "HTTP 502")
	assert.Contains(t, s, "caused by: upstream 503")
	assert.Equal(t, e.Error(), fmt.Sprintf("%v", e))
}
