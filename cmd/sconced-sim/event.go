package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"dev.acmcsuf.com/sconced"
	"dev.acmcsuf.com/sconced/xcolor"
)

// SimEvent describes an SSE event sent to the viewer.
type SimEvent interface {
	Type() SimEventType
}

// SimEventType is a type of message sent to the viewer.
type SimEventType string

const (
	SimEventTypeInit  SimEventType = "init"
	SimEventTypeStrip SimEventType = "strip"
	SimEventTypeGrid  SimEventType = "grid"
)

// SimInit is the first message of a session.
type SimInit struct {
	NumLEDs      int    `json:"num_leds"`
	NumPads      int    `json:"num_pads"`
	SessionToken string `json:"session_token"`
}

func (SimInit) Type() SimEventType { return SimEventTypeInit }

// SimStripFrame carries one rendered strip frame as RGBW quads.
type SimStripFrame struct {
	Colors [][4]uint8 `json:"colors"`
}

func (SimStripFrame) Type() SimEventType { return SimEventTypeStrip }

// SimGridFrame carries one rendered grid frame, decoded from the wire
// framing back into per-pad color and 5-bit brightness.
type SimGridFrame struct {
	Pads []SimPad `json:"pads"`
}

func (SimGridFrame) Type() SimEventType { return SimEventTypeGrid }

type SimPad struct {
	Color      [3]uint8 `json:"color"`
	Brightness uint8    `json:"brightness"`
}

func stripFrameEvent(words []uint32) SimStripFrame {
	colors := make([][4]uint8, len(words))
	for i, word := range words {
		c := xcolor.FromSK6812(word)
		colors[i] = [4]uint8{c.R, c.G, c.B, c.W}
	}
	return SimStripFrame{Colors: colors}
}

func gridFrameEvent(frame []byte) SimGridFrame {
	pads := make([]SimPad, sconced.NumPads)
	for i := range pads {
		led := frame[i*4+4:]
		pads[i] = SimPad{
			Color:      [3]uint8{led[3], led[2], led[1]},
			Brightness: led[0] & 0x1F,
		}
	}
	return SimGridFrame{Pads: pads}
}

type sseEvent struct {
	Type string
	Data any
}

type writeFlusher interface {
	io.Writer
	http.Flusher
}

func writeSSE(w writeFlusher, ev sseEvent) {
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, ev.Data)
	w.Flush()
}

func simEventToSSE(event SimEvent) sseEvent {
	b, err := json.Marshal(event)
	if err != nil {
		panic(err)
	}
	return sseEvent{
		Type: string(event.Type()),
		Data: b,
	}
}
