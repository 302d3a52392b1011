package answer

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-go-golems/supportchat/pkg/conversation"
	"github.com/go-go-golems/supportchat/pkg/exchange"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type recordingAnswerer struct {
	prompts []*Prompt
	reply   string
	err     error
}

func (r *recordingAnswerer) Answer(_ context.Context, p *Prompt) (string, error) {
	r.prompts = append(r.prompts, p)
	return r.reply, r.err
}

func newTestServer(t *testing.T, a Answerer) *Server {
	t.Helper()
	pb, err := NewPromptBuilder(NewSettings(), LoadKnowledge("testdata/shop.json"))
	require.NoError(t, err)
	s, err := NewServer(pb, a)
	require.NoError(t, err)
	return s
}

func post(s *Server, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestChatReturnsTrimmedAnswer(t *testing.T) {
	a := &recordingAnswerer{reply: "\n  ORD123 has shipped.  \n"}
	s := newTestServer(t, a)

	w := post(s, `{"user_message":"Where is ORD123?","history":[{"role":"model","content":"Hello!"}]}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"response":"ORD123 has shipped."}`, w.Body.String())
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	require.Len(t, a.prompts, 1)
	p := a.prompts[0]
	assert.Equal(t, "Where is ORD123?", p.UserMessage)
	require.Len(t, p.History, 1)
	assert.Equal(t, "model", p.History[0].Role)
}

func TestChatRejectsIncompleteRequests(t *testing.T) {
	bodies := map[string]string{
		"missing history":      `{"user_message":"hi"}`,
		"missing user_message": `{"history":[]}`,
		"not json":             `hello`,
		"empty body":           ``,
		"bad role":             `{"user_message":"hi","history":[{"role":"system","content":"x"}]}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			a := &recordingAnswerer{reply: "unused"}
			s := newTestServer(t, a)

			w := post(s, body)
			require.Equal(t, http.StatusBadRequest, w.Code)

			var resp struct {
				Error   string   `json:"error"`
				Details []string `json:"details"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, MissingFieldsText, resp.Error)
			assert.NotEmpty(t, resp.Details)
			assert.Empty(t, a.prompts)
		})
	}
}

func TestChatAnswererFailureStillReplies(t *testing.T) {
	s := newTestServer(t, &recordingAnswerer{err: errors.New("quota exceeded")})

	w := post(s, `{"user_message":"hi","history":[]}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"response":"`+AnswererFailureText+`"}`, w.Body.String())
}

func TestChatPromptRenderFailureStillReplies(t *testing.T) {
	pb, err := NewPromptBuilder(NewSettings(), Knowledge{"bad": func() {}})
	require.NoError(t, err)
	a := &recordingAnswerer{reply: "unused"}
	s, err := NewServer(pb, a)
	require.NoError(t, err)

	w := post(s, `{"user_message":"hi","history":[]}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"response":"`+AnswererFailureText+`"}`, w.Body.String())
	assert.Empty(t, a.prompts)
}

func TestChatEmptyAnswer(t *testing.T) {
	s := newTestServer(t, &recordingAnswerer{reply: "   "})

	w := post(s, `{"user_message":"hi","history":[]}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"response":""}`, w.Body.String())
}

func TestHealthAndPreflight(t *testing.T) {
	s := newTestServer(t, EchoAnswerer{})

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/chat", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Content-Type")
}

func TestNewServerRequiresCollaborators(t *testing.T) {
	pb, err := NewPromptBuilder(NewSettings(), nil)
	require.NoError(t, err)

	_, err = NewServer(nil, EchoAnswerer{})
	assert.Error(t, err)
	_, err = NewServer(pb, nil)
	assert.Error(t, err)
}

// The client and the service agree on the wire format end to end.
func TestClientAgainstServer(t *testing.T) {
	a := &recordingAnswerer{reply: "Your order ships tomorrow."}
	srv := httptest.NewServer(newTestServer(t, a).Handler())
	defer srv.Close()

	store := conversation.NewStore(exchange.NewClient(srv.URL + "/chat"))

	ex, ok := store.SubmitUtterance(context.Background(), "Where is my order?")
	require.True(t, ok)
	require.True(t, store.Settle(ex))

	ex, ok = store.SubmitUtterance(context.Background(), "Thanks!")
	require.True(t, ok)
	require.True(t, store.Settle(ex))

	tr := store.Transcript()
	require.Len(t, tr, 5)
	assert.Equal(t, "Your order ships tomorrow.", tr[2].Content)

	require.Len(t, a.prompts, 2)
	second := a.prompts[1]
	assert.Equal(t, "Thanks!", second.UserMessage)
	require.Len(t, second.History, 3)
	assert.Equal(t, "model", second.History[0].Role)
	assert.Equal(t, conversation.WelcomeText, second.History[0].Content)
	assert.Equal(t, "user", second.History[1].Role)
	assert.Equal(t, "Where is my order?", second.History[1].Content)
}

func TestStartShutsDownOnCancel(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	settings := NewSettings()
	settings.KnowledgePath = "testdata/shop.toml"

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- Start(ctx, StartOpts{Settings: settings, Answerer: EchoAnswerer{}, Addr: addr})
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/health")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestStartRejectsUnknownAnswerer(t *testing.T) {
	settings := NewSettings()
	settings.Answerer = "carrier-pigeon"
	err := Start(context.Background(), StartOpts{Settings: settings})
	assert.Error(t, err)
}
