package main

import (
	"context"
	"log/slog"
	"net/http"
	"slices"

	"dev.acmcsuf.com/sconced"
	"github.com/gofrs/uuid/v5"
	"gopkg.in/typ.v4/sync2"
)

// broadcaster fans SSE events out to every connected session. Slow
// sessions skip frames: each subscriber holds at most one pending event
// and a newer frame replaces nothing, it is simply dropped.
type broadcaster struct {
	subs sync2.Map[string, chan SimEvent]
}

func (b *broadcaster) subscribe() (string, chan SimEvent) {
	ch := make(chan SimEvent, 1)
	for {
		uuid, err := uuid.NewV7()
		if err != nil {
			panic(err)
		}

		token := uuid.String()
		if _, collided := b.subs.LoadOrStore(token, ch); !collided {
			return token, ch
		}
	}
}

func (b *broadcaster) unsubscribe(token string) {
	b.subs.Delete(token)
}

func (b *broadcaster) publish(ev SimEvent) {
	b.subs.Range(func(_ string, ch chan SimEvent) bool {
		select {
		case ch <- ev:
		default:
		}
		return true
	})
}

// stripBroadcastSink publishes each strip frame that differs from the
// previous one. The strip ticks even when nothing changes; repeating
// identical frames over SSE would be noise.
type stripBroadcastSink struct {
	bc   *broadcaster
	last []uint32
}

var _ sconced.StripSink = (*stripBroadcastSink)(nil)

func (s *stripBroadcastSink) Transmit(ctx context.Context, words []uint32) error {
	if slices.Equal(s.last, words) {
		return nil
	}
	s.last = slices.Clone(words)
	s.bc.publish(stripFrameEvent(words))
	return nil
}

type gridBroadcastSink struct {
	bc   *broadcaster
	last []byte
}

var _ sconced.GridSink = (*gridBroadcastSink)(nil)

func (s *gridBroadcastSink) Transmit(ctx context.Context, frame []byte) error {
	if slices.Equal(s.last, frame) {
		return nil
	}
	s.last = slices.Clone(frame)
	s.bc.publish(gridFrameEvent(frame))
	return nil
}

type sessionsHandler struct {
	bc     *broadcaster
	logger *slog.Logger
}

func (h *sessionsHandler) handleNewSession(w http.ResponseWriter, r *http.Request) {
	wflush, ok := w.(writeFlusher)
	if !ok {
		http.Error(w, "server does not support flushing", http.StatusInternalServerError)
		return
	}

	token, events := h.bc.subscribe()
	defer h.bc.unsubscribe(token)

	h.logger.Info(
		"new session created",
		"token", token)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	init := simEventToSSE(SimInit{
		NumLEDs:      sconced.NumStripLEDs,
		NumPads:      sconced.NumPads,
		SessionToken: token,
	})
	writeSSE(wflush, init)

eventLoop:
	for {
		select {
		case <-r.Context().Done():
			break eventLoop
		case ev := <-events:
			writeSSE(wflush, simEventToSSE(ev))
		}
	}

	h.logger.Info(
		"session has been closed",
		"token", token)
}
