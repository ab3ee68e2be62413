package sconced

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"net"

	"dev.acmcsuf.com/sconced/xcolor"
)

// Wire tags of the UDP command protocol. The format is fixed for
// interop with existing senders: one tag byte followed by a
// tag-specific payload, and a datagram may carry several commands
// back to back.
const (
	tagSetColorList byte = iota
	tagShiftColor
	tagSetPrimaryColor
	tagSetEffect
	tagSetEffectSpeed
	tagSetBrightness
)

// DecodeStripCommand decodes one command from the front of b and
// returns the remaining bytes. A short or unknown payload is an error;
// the caller is expected to discard the rest of the datagram.
func DecodeStripCommand(b []byte) (StripCommand, []byte, error) {
	if len(b) == 0 {
		return nil, nil, fmt.Errorf("empty command")
	}
	tag, payload := b[0], b[1:]

	switch tag {
	case tagSetColorList:
		if len(payload) < 1 {
			return nil, nil, fmt.Errorf("color list: missing count byte")
		}
		count := int(payload[0])
		payload = payload[1:]
		if n := count * 4; len(payload) < n {
			return nil, nil, fmt.Errorf("color list: %d color bytes, want %d", len(payload), n)
		}
		var cmd SetColorList
		for i := 0; i < count && i < NumStripLEDs; i++ {
			cmd.Colors[i] = decodeColor(payload[i*4:])
		}
		return cmd, payload[count*4:], nil

	case tagShiftColor:
		if len(payload) < 4 {
			return nil, nil, fmt.Errorf("shift color: %d payload bytes, want 4", len(payload))
		}
		return ShiftColor{Color: decodeColor(payload)}, payload[4:], nil

	case tagSetPrimaryColor:
		if len(payload) < 4 {
			return nil, nil, fmt.Errorf("primary color: %d payload bytes, want 4", len(payload))
		}
		return SetPrimaryColor{Color: decodeColor(payload)}, payload[4:], nil

	case tagSetEffect:
		if len(payload) < 1 {
			return nil, nil, fmt.Errorf("effect: missing effect byte")
		}
		effect, ok := EffectFromByte(payload[0])
		if !ok {
			return nil, nil, fmt.Errorf("effect: unknown effect %d", payload[0])
		}
		return SetEffect{Effect: effect}, payload[1:], nil

	case tagSetEffectSpeed:
		if len(payload) < 2 {
			return nil, nil, fmt.Errorf("effect speed: %d payload bytes, want 2", len(payload))
		}
		return SetEffectSpeed{Speed: binary.LittleEndian.Uint16(payload)}, payload[2:], nil

	case tagSetBrightness:
		if len(payload) < 1 {
			return nil, nil, fmt.Errorf("brightness: missing level byte")
		}
		return SetBrightness{Level: payload[0]}, payload[1:], nil

	default:
		return nil, nil, fmt.Errorf("unknown command tag %d", tag)
	}
}

func decodeColor(b []byte) xcolor.Color {
	return xcolor.RGBW(b[0], b[1], b[2], b[3])
}

// ListenCommands reads command datagrams from conn and forwards decoded
// commands to the strip mailbox until ctx is canceled. Malformed input
// aborts the rest of its datagram and is logged, never escalated; a
// full mailbox drops the command.
func ListenCommands(ctx context.Context, conn net.PacketConn, send *Sender[StripCommand], logger *slog.Logger) error {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	buf := make([]byte, 1500)
	for {
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to read command datagram: %w", err)
		}

		logger.Debug(
			"received command datagram",
			"len", n,
			"from", addr)

		data := buf[:n]
		for len(data) > 0 {
			cmd, rest, err := DecodeStripCommand(data)
			if err != nil {
				logger.Warn(
					"discarding rest of malformed datagram",
					"from", addr,
					"error", err)
				break
			}
			if !send.TrySend(cmd) {
				logger.Warn(
					"command queue full, dropping command",
					"from", addr)
			}
			data = rest
		}
	}
}

// Discovery wire strings, fixed for interop with the existing scanner.
const (
	discoverRequest     = "mow sconce discover"
	discoverReplyPrefix = "mow sconce reply: "
)

// RespondDiscovery answers discovery probes on conn with this device's
// MAC address until ctx is canceled. Invalid probes are discarded.
func RespondDiscovery(ctx context.Context, conn net.PacketConn, mac net.HardwareAddr, logger *slog.Logger) error {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	reply := []byte(discoverReplyPrefix + formatMAC(mac))

	buf := make([]byte, 64)
	for {
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to read discovery datagram: %w", err)
		}

		if string(buf[:n]) != discoverRequest {
			logger.Debug(
				"discarding invalid discovery probe",
				"from", addr)
			continue
		}

		logger.Debug(
			"answering discovery probe",
			"from", addr)

		if _, err := conn.WriteTo(reply, addr); err != nil {
			logger.Warn(
				"failed to send discovery reply",
				"to", addr,
				"error", err)
		}
	}
}

func formatMAC(mac net.HardwareAddr) string {
	s := ""
	for i, b := range mac {
		if i > 0 {
			s += ":"
		}
		s += fmt.Sprintf("%02X", b)
	}
	return s
}
