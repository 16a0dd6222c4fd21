package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mercator-hq/ganymede/pkg/config"
	"mercator-hq/ganymede/pkg/store"
	"mercator-hq/ganymede/pkg/upstream"
	"mercator-hq/ganymede/pkg/wire"
)

func doChat(t *testing.T, g *Gateway, token, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	g.ChatCompletions(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) wire.ErrorResponse {
	t.Helper()

	var resp wire.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("error body is not an error envelope: %v (%s)", err, rec.Body.String())
	}
	return resp
}

const simpleChatBody = `{"model":"gpt-4o","messages":[{"role":"user","content":"Hi"}]}`

func TestChat_Aggregated(t *testing.T) {
	env := newTestEnv(t)
	env.upstream.frames = responseFrames("echoed prompt", "Hello", ", ", "world")

	rec := doChat(t, env.gateway, testUserToken, simpleChatBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp wire.ChatCompletionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response failed: %v", err)
	}
	if resp.Choices[0].Message.Content != "Hello, world" {
		t.Errorf("content = %q", resp.Choices[0].Message.Content)
	}
	if resp.Model != "gpt-4o" || resp.Choices[0].FinishReason != "stop" {
		t.Errorf("response = %+v", resp)
	}
	if resp.Usage.CompletionTokens != 12 || resp.Usage.PromptTokens != 2 {
		t.Errorf("usage = %+v", resp.Usage)
	}

	l := lastLog(t, env)
	if l.Status != store.LogSuccess {
		t.Errorf("log status = %s, want success", l.Status)
	}
	if l.Prompt == nil || *l.Prompt != "echoed prompt" {
		t.Errorf("captured prompt = %v", l.Prompt)
	}
}

func TestChat_Streaming(t *testing.T) {
	env := newTestEnv(t)
	env.upstream.frames = responseFrames("", "Hel", "lo")

	rec := doChat(t, env.gateway, testUserToken,
		`{"model":"gpt-4o","stream":true,"messages":[{"role":"user","content":"Hi"}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}

	body := rec.Body.String()
	if !strings.HasSuffix(body, "data: [DONE]\n\n") {
		t.Errorf("stream does not end with the sentinel: %q", body)
	}

	var chunks []wire.ChatCompletionChunk
	for _, line := range strings.Split(body, "\n\n") {
		payload := strings.TrimPrefix(line, "data: ")
		if payload == "" || payload == "[DONE]" {
			continue
		}
		var c wire.ChatCompletionChunk
		if err := json.Unmarshal([]byte(payload), &c); err != nil {
			t.Fatalf("chunk is not JSON: %v (%q)", err, payload)
		}
		chunks = append(chunks, c)
	}

	// Role header, two deltas, finish-reason chunk.
	if len(chunks) != 4 {
		t.Fatalf("chunk count = %d, want 4 (%s)", len(chunks), body)
	}
	if chunks[0].Choices[0].Delta.Role != "assistant" || chunks[0].Model != "gpt-4o" {
		t.Errorf("role chunk = %+v", chunks[0])
	}
	if chunks[1].Model != "gpt-4o" || chunks[1].Choices[0].Delta.Content != "Hel" {
		t.Errorf("first delta = %+v", chunks[1])
	}
	if chunks[2].Model != "" || chunks[2].Choices[0].Delta.Content != "lo" {
		t.Errorf("second delta = %+v", chunks[2])
	}
	fr := chunks[3].Choices[0].FinishReason
	if fr == nil || *fr != "stop" {
		t.Errorf("finish chunk = %+v", chunks[3])
	}

	for _, c := range chunks {
		if c.ID != chunks[0].ID {
			t.Errorf("chunk ids differ: %q vs %q", c.ID, chunks[0].ID)
		}
	}

	if l := lastLog(t, env); l.Status != store.LogSuccess || !l.Stream {
		t.Errorf("log = %+v", l)
	}
}

func TestChat_AuthRejections(t *testing.T) {
	env := newTestEnv(t)

	rec := doChat(t, env.gateway, "", simpleChatBody)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("missing bearer: status = %d, want 401", rec.Code)
	}

	rec = doChat(t, env.gateway, "wrong-token", simpleChatBody)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unknown bearer: status = %d, want 401", rec.Code)
	}

	until := time.Now().Add(time.Hour)
	if err := env.store.UpdateUserBan(env.user.ID, &until); err != nil {
		t.Fatalf("UpdateUserBan() failed: %v", err)
	}
	rec = doChat(t, env.gateway, testUserToken, simpleChatBody)
	if rec.Code != http.StatusForbidden {
		t.Errorf("banned user: status = %d, want 403", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Error.Code != wire.CodeUserBanned {
		t.Errorf("error code = %q, want %q", resp.Error.Code, wire.CodeUserBanned)
	}
}

func TestChat_RequestRejections(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body string
		code string
	}{
		{"invalid json", `{`, wire.CodeInvalidJSON},
		{"empty messages", `{"model":"gpt-4o","messages":[]}`, wire.CodeInvalidValue},
		{"missing model", `{"messages":[{"role":"user","content":"hi"}]}`, wire.CodeInvalidValue},
		{"unknown model", `{"model":"llama-70b","messages":[{"role":"user","content":"hi"}]}`, wire.CodeModelNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doChat(t, env.gateway, testUserToken, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if resp := decodeError(t, rec); resp.Error.Code != tt.code {
				t.Errorf("error code = %q, want %q", resp.Error.Code, tt.code)
			}
		})
	}
}

func TestChat_UnlistedClaudeModelAdmitted(t *testing.T) {
	env := newTestEnv(t)
	env.upstream.frames = responseFrames("", "ok")

	rec := doChat(t, env.gateway, testUserToken,
		`{"model":"claude-99-experimental","messages":[{"role":"user","content":"hi"}]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unlisted model with strict matching: status = %d, want 400", rec.Code)
	}

	env.gateway.runtime.Apply(config.GatewayConfig{
		StreamCheck:       true,
		FinishReasonChunk: true,
		AllowUnlisted:     true,
	})
	rec = doChat(t, env.gateway, testUserToken,
		`{"model":"claude-99-experimental","messages":[{"role":"user","content":"hi"}]}`)
	if rec.Code != http.StatusOK {
		t.Errorf("unlisted claude model: status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestChat_NoCredentials(t *testing.T) {
	env := newTestEnv(t)
	if err := env.store.UpdateCredentialStatus(env.cred.ID, store.CredentialExpired); err != nil {
		t.Fatalf("expiring failed: %v", err)
	}

	rec := doChat(t, env.gateway, testUserToken, simpleChatBody)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Error.Code != wire.CodeNoCredentials {
		t.Errorf("error code = %q, want %q", resp.Error.Code, wire.CodeNoCredentials)
	}
}

func TestChat_UpstreamTransportFailure(t *testing.T) {
	env := newTestEnv(t)
	env.upstream.chatErr = errors.New("connection refused")

	rec := doChat(t, env.gateway, testUserToken, simpleChatBody)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}

	l := lastLog(t, env)
	if l.Status != store.LogFailed || l.Error == nil {
		t.Errorf("log = %+v, want failed with error text", l)
	}
}

func TestChat_StreamPreflightError(t *testing.T) {
	env := newTestEnv(t)
	env.upstream.frames = errorFrames(`{"error":{"code":"usage_limit","message":"quota exhausted"}}`)

	rec := doChat(t, env.gateway, testUserToken,
		`{"model":"gpt-4o","stream":true,"messages":[{"role":"user","content":"hi"}]}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct == "text/event-stream" {
		t.Error("pre-flight error still committed to an event stream")
	}
	if resp := decodeError(t, rec); resp.Error.Code != "usage_limit" {
		t.Errorf("error code = %q, want usage_limit", resp.Error.Code)
	}
	if l := lastLog(t, env); l.Status != store.LogFailed {
		t.Errorf("log status = %s, want failed", l.Status)
	}
}

func TestChat_EmptyCompletionIsFailure(t *testing.T) {
	env := newTestEnv(t)
	env.upstream.frames = responseFrames("")

	rec := doChat(t, env.gateway, testUserToken, simpleChatBody)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Error.Code != wire.CodeEmptyCompletion {
		t.Errorf("error code = %q, want %q", resp.Error.Code, wire.CodeEmptyCompletion)
	}
	if l := lastLog(t, env); l.Status != store.LogFailed {
		t.Errorf("log status = %s, want failed", l.Status)
	}
}

func TestChat_OversizedUpstreamErrorStillFinalizes(t *testing.T) {
	env := newTestEnv(t)
	env.upstream.chatErr = errors.New(strings.Repeat("x", 2000))

	rec := doChat(t, env.gateway, testUserToken, simpleChatBody)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}

	// The recorded error is cut to the store ceiling; the log must not
	// stay Pending because the raw text was too long to persist.
	l := lastLog(t, env)
	if l.Status != store.LogFailed {
		t.Fatalf("log status = %s, want failed", l.Status)
	}
	if l.Error == nil || len(*l.Error) > store.MaxErrorLength {
		t.Errorf("recorded error length = %d, want at most %d", len(deref(l.Error)), store.MaxErrorLength)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func TestChat_InternalErrorsAreGeneric(t *testing.T) {
	env := newTestEnv(t)
	env.store.Close()

	rec := doChat(t, env.gateway, testUserToken, simpleChatBody)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	resp := decodeError(t, rec)
	if resp.Error.Code != wire.CodeInternalError {
		t.Errorf("error code = %q, want %q", resp.Error.Code, wire.CodeInternalError)
	}
	// Driver detail stays in the server log; the caller only sees the
	// fixed message.
	if resp.Error.Message != "internal server error" {
		t.Errorf("error message = %q, want the generic message", resp.Error.Message)
	}
}

func TestChat_StreamDrainCapturesTrailingPrompt(t *testing.T) {
	env := newTestEnv(t)
	first := upstream.EncodeFrame(nil, upstream.FrameStreamStart, nil)
	first = upstream.EncodeFrame(first, upstream.FrameContent, []byte("Hello"))
	last := upstream.EncodeFrame(nil, upstream.FrameContent, []byte(", world"))
	last = upstream.EncodeFrame(last, upstream.FrameDebug, []byte("echoed prompt"))
	env.upstream.body = io.NopCloser(&chunkedReader{chunks: [][]byte{first, last}})

	rec := doChat(t, env.gateway, testUserToken,
		`{"model":"gpt-4o","stream":true,"messages":[{"role":"user","content":"Hi"}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	// The final chunk arrives together with EOF: its content is still
	// relayed and its echoed prompt still captured.
	body := rec.Body.String()
	if !strings.Contains(body, `, world`) {
		t.Errorf("trailing content was dropped: %q", body)
	}
	if !strings.HasSuffix(body, "data: [DONE]\n\n") {
		t.Errorf("stream does not end with the sentinel: %q", body)
	}

	l := lastLog(t, env)
	if l.Status != store.LogSuccess {
		t.Errorf("log status = %s, want success", l.Status)
	}
	if l.Prompt == nil || *l.Prompt != "echoed prompt" {
		t.Errorf("captured prompt = %v, want %q", l.Prompt, "echoed prompt")
	}
}

func TestChat_RetentionCapPrunesAtAdmission(t *testing.T) {
	env := newTestEnv(t)
	env.upstream.frames = responseFrames("", "ok")

	for i := 0; i < env.gateway.logRetention; i++ {
		if _, err := env.store.InsertLog(env.cred.ID, "gpt-4o", false); err != nil {
			t.Fatalf("InsertLog() failed: %v", err)
		}
	}

	rec := doChat(t, env.gateway, testUserToken, simpleChatBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	n, err := env.store.CountUserLogs(env.user.ID)
	if err != nil {
		t.Fatalf("CountUserLogs() failed: %v", err)
	}
	if n > env.gateway.logRetention+1 {
		t.Errorf("log count after admission = %d, cap %d", n, env.gateway.logRetention)
	}
}
