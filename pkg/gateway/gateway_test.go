package gateway

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"testing"

	"mercator-hq/ganymede/pkg/config"
	"mercator-hq/ganymede/pkg/pool"
	"mercator-hq/ganymede/pkg/store"
	"mercator-hq/ganymede/pkg/upstream"
)

const testUserToken = "user-token"

// fakeUpstream serves canned frames instead of the real provider.
type fakeUpstream struct {
	frames   []byte
	body     io.ReadCloser
	chatErr  error
	usage    *store.UsageInfo
	usageErr error
}

func (f *fakeUpstream) StreamChat(_ context.Context, _ upstream.Credential, _ []byte) (io.ReadCloser, error) {
	if f.chatErr != nil {
		return nil, f.chatErr
	}
	if f.body != nil {
		return f.body, nil
	}
	return io.NopCloser(bytes.NewReader(f.frames)), nil
}

func (f *fakeUpstream) FetchUsage(_ context.Context, _ upstream.Credential) (*store.UsageInfo, error) {
	return f.usage, f.usageErr
}

type testEnv struct {
	gateway  *Gateway
	store    *store.Store
	upstream *fakeUpstream
	user     *store.User
	cred     *store.Credential
}

// newTestEnv builds a gateway over a temp store with one authorized
// user holding one active credential.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	s, err := store.Open(store.Options{
		Path:       filepath.Join(t.TempDir(), "test.db"),
		AdminToken: "admin-token",
	})
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	user, err := s.InsertUser(1, "user1", "User One", 2)
	if err != nil {
		t.Fatalf("InsertUser() failed: %v", err)
	}
	token := testUserToken
	if err := s.UpdateUserAuthToken(user.ID, &token); err != nil {
		t.Fatalf("UpdateUserAuthToken() failed: %v", err)
	}
	user.AuthToken = &token

	cred, err := s.InsertCredential(store.NewCredential{
		Secret:   "upstream-secret",
		Checksum: "upstream-checksum",
		OwnerID:  user.ID,
	})
	if err != nil {
		t.Fatalf("InsertCredential() failed: %v", err)
	}
	if err := s.UpdateCredentialStatus(cred.ID, store.CredentialActive); err != nil {
		t.Fatalf("UpdateCredentialStatus() failed: %v", err)
	}

	up := &fakeUpstream{}
	g := New(Options{
		Store:    s,
		Pool:     pool.New(s, nil),
		Upstream: up,
		Runtime:  config.NewRuntime(config.NewDefaultConfig().Gateway),
		Version:  "test",
	})
	return &testEnv{gateway: g, store: s, upstream: up, user: user, cred: cred}
}

// responseFrames builds a complete well-formed upstream stream.
func responseFrames(prompt string, texts ...string) []byte {
	var buf []byte
	buf = upstream.EncodeFrame(buf, upstream.FrameStreamStart, nil)
	if prompt != "" {
		buf = upstream.EncodeFrame(buf, upstream.FrameDebug, []byte(prompt))
	}
	for _, text := range texts {
		buf = upstream.EncodeFrame(buf, upstream.FrameContent, []byte(text))
	}
	return upstream.EncodeFrame(buf, upstream.FrameStreamEnd, nil)
}

func errorFrames(payload string) []byte {
	return upstream.EncodeFrame(nil, upstream.FrameChatError, []byte(payload))
}

// chunkedReader hands out one chunk per Read and reports EOF together
// with the final chunk, the way a network read can.
type chunkedReader struct {
	chunks [][]byte
}

func (r *chunkedReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	r.chunks[0] = r.chunks[0][n:]
	if len(r.chunks[0]) == 0 {
		r.chunks = r.chunks[1:]
	}
	if len(r.chunks) == 0 {
		return n, io.EOF
	}
	return n, nil
}

// lastLog fetches the single log row the request produced.
func lastLog(t *testing.T, env *testEnv) *store.RequestLog {
	t.Helper()

	logs, err := env.store.LogsByOwner(env.user.ID, 0)
	if err != nil {
		t.Fatalf("LogsByOwner() failed: %v", err)
	}
	if len(logs) == 0 {
		t.Fatal("no log row was written")
	}
	return logs[0]
}
