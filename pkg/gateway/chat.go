package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"unicode/utf8"

	"mercator-hq/ganymede/pkg/pool"
	"mercator-hq/ganymede/pkg/store"
	"mercator-hq/ganymede/pkg/stream"
	"mercator-hq/ganymede/pkg/upstream"
	"mercator-hq/ganymede/pkg/wire"
)

// readChunkSize is the upstream read granularity.
const readChunkSize = 4096

// ChatCompletions handles POST /v1/chat/completions.
func (g *Gateway) ChatCompletions(w http.ResponseWriter, r *http.Request) {
	user, werr := g.authenticate(r)
	if werr != nil {
		writeError(w, werr)
		return
	}

	var req wire.ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errInvalidJSON(err))
		return
	}
	if err := req.Validate(); err != nil {
		var fe *wire.FieldError
		if errors.As(err, &fe) {
			writeError(w, errInvalidField(fe))
		} else {
			writeError(w, g.internalError(err))
		}
		return
	}
	if !modelAllowed(req.Model, g.allowUnlisted()) {
		if g.metrics != nil {
			g.metrics.RequestRejected(req.Model)
		}
		writeError(w, errModelNotSupported(req.Model))
		return
	}

	cred, err := g.pool.SelectFor(r.Context(), user.ID)
	if err != nil {
		if errors.Is(err, pool.ErrNoCredentials) {
			writeError(w, errNoCredentials())
		} else {
			writeError(w, g.internalError(err))
		}
		return
	}

	logID, werr := g.admit(user, cred, &req)
	if werr != nil {
		g.pool.Release(cred.ID, false)
		writeError(w, werr)
		return
	}

	if modelUsageTracked(req.Model) {
		go g.refreshLogUsage(logID, cred)
	}

	body, err := g.encoder.EncodeChatRequest(req.Model, req.Messages)
	if err != nil {
		g.fail(logID, cred.ID, false, err.Error(), req.Model)
		writeError(w, g.internalError(err))
		return
	}

	upstreamBody, err := g.upstream.StreamChat(r.Context(), upstream.Credential{
		Secret:   cred.Secret,
		Checksum: cred.Checksum,
	}, body)
	if err != nil {
		g.fail(logID, cred.ID, credentialRejected(err), err.Error(), req.Model)
		writeError(w, errUpstreamFailure(err))
		return
	}
	defer upstreamBody.Close()

	if req.Stream {
		g.streamResponse(w, r, upstreamBody, logID, cred.ID, &req)
	} else {
		g.aggregateResponse(w, upstreamBody, logID, cred.ID, &req)
	}
}

// admit enforces the per-user log cap and writes the Pending log row.
func (g *Gateway) admit(user *store.User, cred *store.Credential, req *wire.ChatCompletionRequest) (int64, *wire.ErrorResponse) {
	count, err := g.store.CountUserLogs(user.ID)
	if err != nil {
		return 0, g.internalError(err)
	}
	if count >= g.logRetention {
		if _, err := g.store.PruneUserLogs(user.ID, g.logRetention); err != nil {
			return 0, g.internalError(err)
		}
	}

	logID, err := g.store.InsertLog(cred.ID, req.Model, req.Stream)
	if err != nil {
		return 0, g.internalError(err)
	}

	g.totalRequests.Add(1)
	g.activeRequests.Add(1)
	if g.metrics != nil {
		g.metrics.RequestStarted()
	}
	return logID, nil
}

// streamResponse drives the translator into an SSE response.
func (g *Gateway) streamResponse(w http.ResponseWriter, r *http.Request, body io.Reader, logID, credID int64, req *wire.ChatCompletionRequest) {
	translator := stream.NewTranslator()
	renderer := stream.NewRenderer(req.Model, g.finishReasonChunk())

	var pending []stream.Event

	// Optional pre-flight: inspect the first chunk before committing
	// to a streamed reply, so an immediate upstream error still
	// becomes a proper HTTP error instead of a half-open stream.
	if g.streamCheck() {
		events, eof, err := readEvents(body, translator)
		if err != nil {
			g.fail(logID, credID, false, err.Error(), req.Model)
			writeError(w, errUpstreamFailure(err))
			return
		}
		if len(events) == 0 && eof {
			g.fail(logID, credID, false, "empty stream response", req.Model)
			writeError(w, errEmptyCompletion())
			return
		}
		if ce, ok := firstChatError(events); ok {
			g.fail(logID, credID, false, ce.Error(), req.Model)
			writeError(w, errUpstreamChat(ce))
			return
		}
		pending = events
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, _ := w.(http.Flusher)
	emit := func(data []byte) bool {
		if _, err := w.Write(data); err != nil {
			return false
		}
		if flusher != nil {
			flusher.Flush()
		}
		return true
	}

	buf := make([]byte, readChunkSize)
	for {
		events := pending
		pending = nil

		for _, ev := range events {
			switch e := ev.(type) {
			case stream.StreamStart:
				data, err := stream.FormatSSE(renderer.RoleChunk())
				if err != nil || !emit(data) {
					g.abandonStream(logID, credID, err, req.Model)
					return
				}
			case stream.Content:
				for _, text := range e.Texts {
					data, err := stream.FormatSSE(renderer.DeltaChunk(text))
					if err != nil || !emit(data) {
						g.abandonStream(logID, credID, err, req.Model)
						return
					}
				}
			case stream.Debug:
				g.capturePrompt(logID, e.Prompt)
			case stream.ChatError:
				// Bytes are already committed; the error can only be
				// recorded, not surfaced.
				g.logger.Warn("upstream error mid-stream", "log_id", logID, "error", e.Error())
				g.fail(logID, credID, false, e.Error(), req.Model)
				emit(stream.DoneSSE())
				return
			case stream.StreamEnd:
				if finish, ok := renderer.FinishChunk(); ok {
					data, err := stream.FormatSSE(finish)
					if err != nil || !emit(data) {
						g.abandonStream(logID, credID, err, req.Model)
						return
					}
				}
				emit(stream.DoneSSE())
				g.succeed(logID, credID, req.Model)
				return
			}
		}

		n, err := body.Read(buf)
		if n > 0 {
			pending = translator.Feed(buf[:n])
		}
		if err == io.EOF {
			// Upstream closed without a StreamEnd frame; drain what
			// arrived and end the stream.
			for _, ev := range pending {
				switch e := ev.(type) {
				case stream.Content:
					for _, text := range e.Texts {
						data, ferr := stream.FormatSSE(renderer.DeltaChunk(text))
						if ferr != nil || !emit(data) {
							g.abandonStream(logID, credID, ferr, req.Model)
							return
						}
					}
				case stream.Debug:
					g.capturePrompt(logID, e.Prompt)
				}
			}
			emit(stream.DoneSSE())
			g.succeed(logID, credID, req.Model)
			return
		}
		if err != nil {
			g.abandonStream(logID, credID, err, req.Model)
			return
		}
	}
}

// aggregateResponse drains the whole stream into one JSON completion.
func (g *Gateway) aggregateResponse(w http.ResponseWriter, body io.Reader, logID, credID int64, req *wire.ChatCompletionRequest) {
	translator := stream.NewTranslator()
	aggregator := stream.NewAggregator(req.Model, promptChars(req.Messages))

	buf := make([]byte, readChunkSize)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			for _, ev := range translator.Feed(buf[:n]) {
				switch e := ev.(type) {
				case stream.Content:
					aggregator.Add(e.Texts...)
				case stream.Debug:
					aggregator.SetPrompt(e.Prompt)
				case stream.ChatError:
					g.fail(logID, credID, false, e.Error(), req.Model)
					writeError(w, errUpstreamChat(e))
					return
				}
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			g.fail(logID, credID, false, readErr.Error(), req.Model)
			writeError(w, errUpstreamFailure(readErr))
			return
		}
	}

	resp, err := aggregator.Response()
	if err != nil {
		g.fail(logID, credID, false, err.Error(), req.Model)
		writeError(w, errEmptyCompletion())
		return
	}

	if prompt := aggregator.Prompt(); prompt != "" {
		g.capturePrompt(logID, prompt)
	}
	g.succeed(logID, credID, req.Model)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		g.logger.Error("writing aggregated response failed", "log_id", logID, "error", err)
	}
}

// readEvents reads chunks until the translator yields at least one
// event or the stream ends.
func readEvents(body io.Reader, translator *stream.Translator) ([]stream.Event, bool, error) {
	buf := make([]byte, readChunkSize)
	for {
		n, err := body.Read(buf)
		var events []stream.Event
		if n > 0 {
			events = translator.Feed(buf[:n])
		}
		if len(events) > 0 || err == io.EOF {
			return events, err == io.EOF, nil
		}
		if err != nil {
			return nil, false, err
		}
	}
}

func firstChatError(events []stream.Event) (stream.ChatError, bool) {
	for _, ev := range events {
		if ce, ok := ev.(stream.ChatError); ok {
			return ce, true
		}
	}
	return stream.ChatError{}, false
}

// promptChars approximates the request transcript length.
func promptChars(messages []wire.Message) int {
	var n int
	for _, m := range messages {
		n += len([]rune(m.Content))
	}
	return n
}

// credentialRejected reports whether the upstream explicitly refused
// the credential itself, which expires it.
func credentialRejected(err error) bool {
	var se *upstream.StatusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusUnauthorized || se.StatusCode == http.StatusForbidden
	}
	return false
}

// succeed finalizes a request that produced a response.
func (g *Gateway) succeed(logID, credID int64, model string) {
	if err := g.store.FinishLog(logID, store.LogSuccess, nil); err != nil {
		g.logger.Error("finalizing log failed", "log_id", logID, "error", err)
	}
	g.pool.Release(credID, false)
	g.finish(model, "success")
}

// fail finalizes a request that did not. The recorded error is bounded
// to the store ceiling; upstream payloads can run to megabytes and an
// oversized text must not leave the log stuck in Pending.
func (g *Gateway) fail(logID, credID int64, credFailed bool, errText, model string) {
	sanitized := truncate(errText, store.MaxErrorLength)
	if err := g.store.FinishLog(logID, store.LogFailed, &sanitized); err != nil {
		g.logger.Error("finalizing log failed", "log_id", logID, "error", err)
	}
	g.pool.Release(credID, credFailed)
	g.finish(model, "failed")
}

// truncate cuts s to at most limit bytes without splitting a rune.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

// abandonStream finalizes a streaming request that died mid-flight;
// the connection is beyond repair, so there is nothing to write.
func (g *Gateway) abandonStream(logID, credID int64, err error, model string) {
	text := "stream aborted"
	if err != nil {
		text = err.Error()
	}
	g.logger.Warn("stream aborted", "log_id", logID, "error", text)
	g.fail(logID, credID, false, text, model)
}

func (g *Gateway) finish(model, status string) {
	g.activeRequests.Add(-1)
	if g.metrics != nil {
		g.metrics.RequestFinished(model, status)
	}
}

// capturePrompt persists the upstream-echoed prompt, best effort.
func (g *Gateway) capturePrompt(logID int64, prompt string) {
	if err := g.store.UpdateLogPrompt(logID, prompt); err != nil {
		g.logger.Error("capturing prompt failed", "log_id", logID, "error", err)
	}
}

func (g *Gateway) streamCheck() bool {
	return g.runtime == nil || g.runtime.StreamCheck()
}

func (g *Gateway) finishReasonChunk() bool {
	return g.runtime == nil || g.runtime.FinishReasonChunk()
}

func (g *Gateway) allowUnlisted() bool {
	return g.runtime == nil || g.runtime.AllowUnlisted()
}
