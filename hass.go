package sconced

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"golang.org/x/sync/errgroup"
)

// DefaultPingInterval is how long the Home Assistant connection may sit
// silent before the client sends a ping frame.
const DefaultPingInterval = 30 * time.Second

// HAClientOpts are options for an HAClient.
type HAClientOpts struct {
	// URL is the websocket API endpoint, e.g.
	// ws://homeassistant.local:8123/api/websocket.
	URL string
	// Token is the long-lived access token used to authenticate.
	Token string
	// Entities are the entity IDs whose state changes drive the grid.
	Entities []string
	// Bindings maps entity effects back to grid pads.
	Bindings []PadBinding
	// Grid receives checked-mask updates derived from entity state.
	Grid *Sender[GridCommand]
	// Logger is the logger to use for the client.
	Logger *slog.Logger
	// PingInterval overrides DefaultPingInterval if nonzero.
	PingInterval time.Duration
}

// HAClient keeps one websocket connection to Home Assistant: it
// authenticates, subscribes to state changes, forwards button commands
// as service calls, and reflects the entity state back onto the grid's
// checked mask.
type HAClient struct {
	opts HAClientOpts
	recv *Receiver[HaCommand]
}

// NewHAClient creates a client consuming upstream commands from recv.
func NewHAClient(recv *Receiver[HaCommand], opts HAClientOpts) *HAClient {
	if opts.PingInterval == 0 {
		opts.PingInterval = DefaultPingInterval
	}
	return &HAClient{
		opts: opts,
		recv: recv,
	}
}

// Run dials the endpoint and pumps the connection until it drops or ctx
// is canceled. It returns nil on a clean close; the caller owns the
// reconnect policy.
func (c *HAClient) Run(ctx context.Context) error {
	conn, br, _, err := ws.Dial(ctx, c.opts.URL)
	if err != nil {
		return fmt.Errorf("failed to dial %q: %w", c.opts.URL, err)
	}

	var rw io.ReadWriter = conn
	if br != nil {
		// The server may start talking right after the handshake;
		// whatever it sent is already buffered in br.
		rw = struct {
			io.Reader
			io.Writer
		}{br, conn}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errg, ctx := errgroup.WithContext(ctx)

	errg.Go(func() error {
		<-ctx.Done()
		return conn.Close()
	})

	incoming := make(chan []byte)

	errg.Go(func() error {
		defer cancel()

		var buf bytes.Buffer
		buf.Grow(1024)

		for {
			_, err := wsReadData(&buf, rw, ws.StateClientSide, ws.OpText)
			if err != nil {
				var closedErr wsutil.ClosedError
				if errors.As(err, &closedErr) {
					c.opts.Logger.Debug("received close frame from server")
					return nil
				}
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("failed to read from websocket: %w", err)
			}

			payload := bytes.Clone(buf.Bytes())
			select {
			case <-ctx.Done():
				return nil
			case incoming <- payload:
			}
		}
	})

	errg.Go(func() error {
		defer cancel()
		return c.pump(ctx, rw, incoming)
	})

	return errg.Wait()
}

// pump owns all connection state: the auth handshake, the message ID
// counter, the ping deadline and the command drain. Nothing else writes
// data frames to the socket.
func (c *HAClient) pump(ctx context.Context, w io.Writer, incoming <-chan []byte) error {
	var (
		nextID        int64 = 1
		authenticated bool
		lastReceived  = time.Now()
	)

	send := func(v any) error {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to marshal message: %w", err)
		}
		c.opts.Logger.Debug(
			"sending message to Home Assistant",
			"message", string(b))
		if err := wsutil.WriteClientText(w, b); err != nil {
			return fmt.Errorf("failed to write to websocket: %w", err)
		}
		return nil
	}
	sendID := func(m haRequest) error {
		m.ID = nextID
		nextID++
		return send(m)
	}

	for {
		ping := time.NewTimer(time.Until(lastReceived.Add(c.opts.PingInterval)))

		// Commands cannot be sent until authentication is confirmed;
		// until then they stay queued in the mailbox.
		var commands <-chan HaCommand
		if authenticated {
			commands = c.recv.C()
		}

		select {
		case <-ctx.Done():
			ping.Stop()
			return nil

		case <-ping.C:
			c.opts.Logger.Debug("connection quiet, sending ping")
			if err := wsutil.WriteClientMessage(w, ws.OpPing, nil); err != nil {
				return fmt.Errorf("failed to write ping: %w", err)
			}
			lastReceived = time.Now()

		case payload, ok := <-incoming:
			ping.Stop()
			if !ok {
				return nil
			}
			lastReceived = time.Now()

			auth, err := c.handleMessage(payload)
			if err != nil {
				return err
			}
			switch auth {
			case authSendCredentials:
				if err := send(haAuth{Type: "auth", AccessToken: c.opts.Token}); err != nil {
					return err
				}
			case authConfirmed:
				authenticated = true
				if err := sendID(haRequest{Type: "subscribe_events", EventType: "state_changed"}); err != nil {
					return err
				}
				if len(c.opts.Entities) > 0 {
					if err := sendID(haRequest{Type: "subscribe_entities", EntityIDs: c.opts.Entities}); err != nil {
						return err
					}
				}
			}

		case cmd := <-commands:
			ping.Stop()
			if err := sendID(serviceCall(cmd)); err != nil {
				return err
			}
		}
	}
}

type authAction int

const (
	authNone authAction = iota
	authSendCredentials
	authConfirmed
)

// handleMessage parses one inbound text frame. State events are
// translated to grid commands; auth phases are reported back to the
// pump.
func (c *HAClient) handleMessage(payload []byte) (authAction, error) {
	var msg struct {
		Type  string          `json:"type"`
		Event json.RawMessage `json:"event"`
	}
	if err := json.Unmarshal(payload, &msg); err != nil {
		return authNone, fmt.Errorf("failed to unmarshal message: %w", err)
	}

	switch msg.Type {
	case "auth_required":
		return authSendCredentials, nil
	case "auth_ok":
		c.opts.Logger.Debug("authenticated with Home Assistant")
		return authConfirmed, nil
	case "auth_invalid":
		return authNone, errors.New("access token rejected")
	case "event":
		var event haEvent
		if err := json.Unmarshal(msg.Event, &event); err != nil {
			c.opts.Logger.Warn(
				"failed to unmarshal event, ignoring",
				"error", err)
			return authNone, nil
		}
		c.dispatchEvent(event)
	}
	return authNone, nil
}

func (c *HAClient) dispatchEvent(event haEvent) {
	for entity, state := range event.Added {
		c.onEntityState(entity, state)
	}
	for entity, delta := range event.Changed {
		c.onEntityState(entity, delta.Plus)
	}
	if ns := event.Data.NewState; ns != nil {
		c.onEntityState(ns.EntityID, haEntityState{
			State:      ns.State,
			Attributes: ns.Attributes,
		})
	}
}

// onEntityState reflects a subscribed entity's state onto the grid: the
// pad bound to the active effect gets its checked bit, and an entity
// that is off (or in an unbound state) clears the whole mask.
func (c *HAClient) onEntityState(entity string, state haEntityState) {
	if !c.tracksEntity(entity) {
		return
	}

	c.opts.Logger.Debug(
		"entity state changed",
		"entity", entity,
		"state", state.State,
		"effect", state.Attributes.Effect)

	mask := uint16(0)
	if state.State != "off" {
		if i, ok := PadForEffect(c.opts.Bindings, entity, state.Attributes.Effect); ok {
			mask = 1 << i
		}
	}
	c.opts.Grid.TrySend(SetCheckedMask{Mask: mask})
}

func (c *HAClient) tracksEntity(entity string) bool {
	for _, e := range c.opts.Entities {
		if e == entity {
			return true
		}
	}
	return false
}

// serviceCall translates an upstream command to its Home Assistant
// call_service request.
func serviceCall(cmd HaCommand) haRequest {
	switch cmd := cmd.(type) {
	case HaSetEffect:
		return haRequest{
			Type:    "call_service",
			Domain:  "light",
			Service: "turn_on",
			ServiceData: &haServiceData{
				EntityID: cmd.Entity,
				Effect:   cmd.Effect,
			},
		}
	case HaTurnOff:
		return haRequest{
			Type:    "call_service",
			Domain:  "light",
			Service: "turn_off",
			ServiceData: &haServiceData{
				EntityID: cmd.Entity,
			},
		}
	case HaPlayPause:
		return haRequest{
			Type:    "call_service",
			Domain:  "media_player",
			Service: "media_play_pause",
			ServiceData: &haServiceData{
				EntityID: cmd.Entity,
			},
		}
	default:
		panic(fmt.Sprintf("unknown command type %T", cmd))
	}
}

type haAuth struct {
	Type        string `json:"type"`
	AccessToken string `json:"access_token"`
}

type haRequest struct {
	ID          int64          `json:"id"`
	Type        string         `json:"type"`
	EventType   string         `json:"event_type,omitempty"`
	EntityIDs   []string       `json:"entity_ids,omitempty"`
	Domain      string         `json:"domain,omitempty"`
	Service     string         `json:"service,omitempty"`
	ServiceData *haServiceData `json:"service_data,omitempty"`
}

type haServiceData struct {
	EntityID string `json:"entity_id"`
	Effect   string `json:"effect,omitempty"`
}

// haEvent covers both subscription formats: the compact
// subscribe_entities payload ("a" for added, "c" for changed) and the
// verbose state_changed event payload.
type haEvent struct {
	Added   map[string]haEntityState `json:"a"`
	Changed map[string]haEntityDelta `json:"c"`

	EventType string `json:"event_type"`
	Data      struct {
		NewState *struct {
			EntityID   string             `json:"entity_id"`
			State      string             `json:"state"`
			Attributes haEntityAttributes `json:"attributes"`
		} `json:"new_state"`
	} `json:"data"`
}

type haEntityState struct {
	State      string             `json:"s"`
	Attributes haEntityAttributes `json:"a"`
}

type haEntityDelta struct {
	Plus haEntityState `json:"+"`
}

type haEntityAttributes struct {
	Effect string `json:"effect"`
}

// wsReadData reads one complete data message of the wanted opcode into
// dst, transparently answering control frames along the way.
func wsReadData(dst *bytes.Buffer, src io.ReadWriter, s ws.State, want ws.OpCode) (ws.OpCode, error) {
	controlHandler := wsutil.ControlFrameHandler(src, s)
	rd := wsutil.Reader{
		Source:          src,
		State:           s,
		SkipHeaderCheck: false,
		OnIntermediate:  controlHandler,
	}
	for {
		hdr, err := rd.NextFrame()
		if err != nil {
			return 0, err
		}
		if hdr.OpCode.IsControl() {
			if err := controlHandler(hdr, &rd); err != nil {
				return 0, err
			}
			continue
		}
		if hdr.OpCode&want == 0 {
			if err := rd.Discard(); err != nil {
				return 0, err
			}
			continue
		}

		dst.Reset()
		_, err = io.Copy(dst, &rd)
		return hdr.OpCode, err
	}
}
