// Package server defines the JSON wire format exchanged with WebSocket
// clients and the helpers shared across client and hub logic.
package server

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/Tyrowin/roombroker/internal/broker"
)

// inboundEvent is the JSON shape of a client event. The older socket
// event names and the "message" text field are accepted as aliases.
type inboundEvent struct {
	Type    string `json:"type"`
	Room    string `json:"room"`
	Text    string `json:"text"`
	Message string `json:"message"`
}

type outboundMessage struct {
	Room     string    `json:"room"`
	Username string    `json:"username"`
	Text     string    `json:"text"`
	Seq      uint64    `json:"seq"`
	At       time.Time `json:"at"`
}

type outboundFrame struct {
	Type     string             `json:"type"`
	Room     string             `json:"room,omitempty"`
	Username string             `json:"username,omitempty"`
	Text     string             `json:"text,omitempty"`
	Seq      uint64             `json:"seq,omitempty"`
	Code     string             `json:"code,omitempty"`
	History  *[]outboundMessage `json:"history,omitempty"`
	At       *time.Time         `json:"at,omitempty"`
}

// decodeEvent turns a raw client frame into a broker event. Anything that
// cannot be understood becomes an unknown event so the router rejects it.
func decodeEvent(raw []byte) broker.Event {
	var in inboundEvent
	if err := json.Unmarshal(raw, &in); err != nil {
		return broker.Event{Kind: broker.EventUnknown}
	}

	text := in.Text
	if text == "" {
		text = in.Message
	}

	switch strings.TrimSpace(in.Type) {
	case "join", "joinRoom":
		return broker.JoinEvent(in.Room)
	case "leave", "leaveRoom":
		return broker.LeaveEvent()
	case "send", "sendMessage":
		return broker.SendEvent(text)
	default:
		return broker.Event{Kind: broker.EventUnknown}
	}
}

func toOutboundMessage(m broker.Message) outboundMessage {
	return outboundMessage{Room: m.Room, Username: m.Sender, Text: m.Text, Seq: m.Seq, At: m.At}
}

// encodeFrame renders a broker frame as one JSON document.
func encodeFrame(frame broker.Frame) ([]byte, error) {
	out := outboundFrame{
		Type:     string(frame.Kind),
		Room:     frame.Room,
		Username: frame.Username,
		Text:     frame.Text,
		Code:     frame.Code,
	}
	if !frame.At.IsZero() {
		out.At = lo.ToPtr(frame.At)
	}

	switch frame.Kind {
	case broker.FrameMessage:
		if frame.Message != nil {
			out.Seq = frame.Message.Seq
			out.Username = frame.Message.Sender
			out.Text = frame.Message.Text
		}
	case broker.FrameHistory:
		out.History = lo.ToPtr(lo.Map(frame.History, func(m broker.Message, _ int) outboundMessage {
			return toOutboundMessage(m)
		}))
	}

	return json.Marshal(out)
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
