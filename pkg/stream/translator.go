package stream

import (
	"log/slog"

	"mercator-hq/ganymede/pkg/upstream"
)

// Translator converts arbitrary byte chunks of the upstream stream
// into protocol events. It owns a buffer holding at most one
// incomplete frame tail between calls; the same frame sequence yields
// the same events regardless of how the network splits it.
//
// A Translator serves exactly one response stream and is not safe for
// concurrent use.
type Translator struct {
	buf    []byte
	logger *slog.Logger
}

// NewTranslator creates a translator for one response stream.
func NewTranslator() *Translator {
	return &Translator{
		logger: slog.Default().With("component", "stream.translator"),
	}
}

// Feed appends chunk to the buffer and drains every complete frame,
// grouping consecutive Content frames into one event. A malformed
// frame is logged, the buffer is cleared, and translation continues
// with the next chunk.
func (t *Translator) Feed(chunk []byte) []Event {
	t.buf = append(t.buf, chunk...)

	var events []Event
	var texts []string

	flushTexts := func() {
		if len(texts) > 0 {
			events = append(events, Content{Texts: texts})
			texts = nil
		}
	}

	for {
		frame, n, err := upstream.DecodeFrame(t.buf)
		if err != nil {
			t.logger.Warn("discarding corrupt stream buffer", "error", err, "buffered", len(t.buf))
			t.buf = nil
			break
		}
		if n == 0 {
			break
		}
		t.buf = t.buf[n:]

		switch frame.Type {
		case upstream.FrameContent:
			texts = append(texts, string(frame.Payload))
		case upstream.FrameStreamStart:
			flushTexts()
			events = append(events, StreamStart{})
		case upstream.FrameStreamEnd:
			flushTexts()
			events = append(events, StreamEnd{})
		case upstream.FrameDebug:
			flushTexts()
			events = append(events, Debug{Prompt: string(frame.Payload)})
		case upstream.FrameChatError:
			flushTexts()
			events = append(events, parseChatError(frame.Payload))
		}
	}

	flushTexts()
	return events
}

// Buffered returns the number of bytes held back as an incomplete
// frame tail.
func (t *Translator) Buffered() int {
	return len(t.buf)
}
