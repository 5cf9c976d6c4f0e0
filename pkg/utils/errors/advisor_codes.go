package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// Advisor request errors. The English messages are surfaced verbatim to the
// browser frontend, so keep them stable.
var (
	ErrInvalidAnswer = NewRequestErr(ServiceAdvisor, 1, "Invalid questionnaire answer", "잘못된 설문 응답")
	ErrNoSources     = NewRequestErr(ServiceAdvisor, 2, "Provide at least one PDF or URL.", "PDF 또는 URL을 하나 이상 제공하세요.")
	ErrMissingFields = NewRequestErr(ServiceAdvisor, 3, "Both 'q' and 'profile' fields are required.", "'q'와 'profile' 필드가 모두 필요합니다.")
	ErrInvalidURL    = NewRequestErr(ServiceAdvisor, 4, "Invalid source URL", "잘못된 자료 URL")
	ErrIndexNotReady = NewError(ServiceAdvisor, CategoryRequest, 5, http.StatusBadRequest, codes.FailedPrecondition,
		"Call /ingest-sources first.", "먼저 /ingest-sources를 호출하세요.")
)

// Advisor upstream and internal errors.
var (
	ErrLoadFailed      = NewNetworkErr(ServiceAdvisor, 1, "Failed to load source", "자료 로드 실패")
	ErrEmbeddingFailed = NewNetworkErr(ServiceAdvisor, 2, "Embedding request failed", "임베딩 요청 실패")
	ErrChatFailed      = NewNetworkErr(ServiceAdvisor, 3, "Chat completion failed", "채팅 응답 생성 실패")
	ErrSegmentFailed   = NewNetworkErr(ServiceAdvisor, 4, "Segmentation request failed", "문단 분할 요청 실패")

	ErrIndexFailed = NewInternalErr(ServiceAdvisor, 1, "Failed to build vector index", "벡터 인덱스 생성 실패")

	ErrCacheFailed = NewCacheErr(ServiceAdvisor, 1, "Answer cache operation failed", "응답 캐시 작업 실패")
)
