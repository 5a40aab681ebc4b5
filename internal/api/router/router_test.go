package router

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"portfolio-chat/internal/api/handler"
	"portfolio-chat/internal/constants"
	"portfolio-chat/internal/llm"
	"portfolio-chat/internal/resume"
	"portfolio-chat/internal/types"
	"portfolio-chat/internal/workflow"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/stretchr/testify/assert"
)

func newTestHertz(t *testing.T, apiKeys []string) (*server.Hertz, *llm.MockChatModel) {
	t.Helper()
	mock := llm.NewMockChatModel(`{"type":"non-resume","reasoning":"r"}`)
	router := workflow.NewRouter(stubClassifier{}, resume.NewLoader(nil), mock)

	h := server.New(server.WithHostPorts("127.0.0.1:0"))
	RegisterRoutes(h, handler.NewChatHandler(router), apiKeys)
	return h, mock
}

func chatBody() *ut.Body {
	s := `{"message":"hi"}`
	return &ut.Body{Body: strings.NewReader(s), Len: len(s)}
}

func TestRoutesWithoutAuth(t *testing.T) {
	h, _ := newTestHertz(t, nil)

	resp := ut.PerformRequest(h.Engine, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.NotEmpty(t, resp.Header().Get(constants.RequestIDHeader))

	resp = ut.PerformRequest(h.Engine, http.MethodPost, "/api/chat", chatBody())
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestRoutesWithAPIKey(t *testing.T) {
	h, mock := newTestHertz(t, []string{"secret-1", "secret-2"})

	resp := ut.PerformRequest(h.Engine, http.MethodPost, "/api/chat", chatBody())
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = ut.PerformRequest(h.Engine, http.MethodPost, "/api/chat", chatBody(),
		ut.Header{Key: "Authorization", Value: "Bearer wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Empty(t, mock.Calls())

	resp = ut.PerformRequest(h.Engine, http.MethodPost, "/api/chat", chatBody(),
		ut.Header{Key: "Authorization", Value: "Bearer secret-2"})
	assert.Equal(t, http.StatusOK, resp.Code)

	// 健康检查不鉴权
	resp = ut.PerformRequest(h.Engine, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestRequestIDIsPropagated(t *testing.T) {
	h, _ := newTestHertz(t, nil)

	resp := ut.PerformRequest(h.Engine, http.MethodGet, "/api/health", nil,
		ut.Header{Key: constants.RequestIDHeader, Value: "req-123"})
	assert.Equal(t, "req-123", resp.Header().Get(constants.RequestIDHeader))
}

type stubClassifier struct{}

func (stubClassifier) Classify(ctx context.Context, query string) (types.Category, error) {
	return types.CategoryNonResume, nil
}
