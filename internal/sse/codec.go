// Package sse implements the chat stream wire format: one `data: <json>` frame per
// event, each terminated by a blank line.
package sse

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Type discriminates stream events.
type Type string

const (
	TypeConnected Type = "connected"
	TypeToken     Type = "token"
	TypeToolStart Type = "tool_start"
	TypeToolEnd   Type = "tool_end"
	TypeError     Type = "error"
	TypeDone      Type = "done"
)

// Terminal reports whether no event may follow this type.
func (t Type) Terminal() bool {
	return t == TypeDone || t == TypeError
}

// Event is one frame of the stream. Only the fields of its variant are encoded.
type Event struct {
	Type   Type
	Token  string
	Tool   string
	Input  json.RawMessage
	Output json.RawMessage
	Error  string
}

func Connected() Event { return Event{Type: TypeConnected} }

func Token(text string) Event { return Event{Type: TypeToken, Token: text} }

func ToolStart(tool string, input json.RawMessage) Event {
	return Event{Type: TypeToolStart, Tool: tool, Input: input}
}

func ToolEnd(tool string, output json.RawMessage) Event {
	return Event{Type: TypeToolEnd, Tool: tool, Output: output}
}

// ToolEndText builds a tool_end event whose output is a JSON string.
func ToolEndText(tool, output string) Event {
	data, _ := json.Marshal(output)
	return ToolEnd(tool, data)
}

func Failure(message string) Event { return Event{Type: TypeError, Error: message} }

func Done() Event { return Event{Type: TypeDone} }

func rawOrNull(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || !json.Valid(raw) {
		return json.RawMessage("null")
	}
	return raw
}

func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case TypeConnected, TypeDone:
		return json.Marshal(struct {
			Type Type `json:"type"`
		}{e.Type})
	case TypeToken:
		return json.Marshal(struct {
			Type  Type   `json:"type"`
			Token string `json:"token"`
		}{e.Type, e.Token})
	case TypeToolStart:
		return json.Marshal(struct {
			Type  Type            `json:"type"`
			Tool  string          `json:"tool"`
			Input json.RawMessage `json:"input"`
		}{e.Type, e.Tool, rawOrNull(e.Input)})
	case TypeToolEnd:
		return json.Marshal(struct {
			Type   Type            `json:"type"`
			Tool   string          `json:"tool"`
			Output json.RawMessage `json:"output"`
		}{e.Type, e.Tool, rawOrNull(e.Output)})
	case TypeError:
		return json.Marshal(struct {
			Type  Type   `json:"type"`
			Error string `json:"error"`
		}{e.Type, e.Error})
	default:
		return nil, fmt.Errorf("sse: unknown event type %q", e.Type)
	}
}

type wireEvent struct {
	Type   Type            `json:"type"`
	Token  *string         `json:"token"`
	Tool   *string         `json:"tool"`
	Input  json.RawMessage `json:"input"`
	Output json.RawMessage `json:"output"`
	Error  *string         `json:"error"`
}

var errMalformed = errors.New("sse: malformed event")

func (e *Event) UnmarshalJSON(data []byte) error {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	out := Event{Type: w.Type}
	switch w.Type {
	case TypeConnected, TypeDone:
	case TypeToken:
		if w.Token == nil {
			return errMalformed
		}
		out.Token = *w.Token
	case TypeToolStart, TypeToolEnd:
		if w.Tool == nil || *w.Tool == "" {
			return errMalformed
		}
		out.Tool = *w.Tool
		out.Input = w.Input
		out.Output = w.Output
		if w.Type == TypeToolStart {
			out.Output = nil
		} else {
			out.Input = nil
		}
	case TypeError:
		if w.Error == nil {
			return errMalformed
		}
		out.Error = *w.Error
	default:
		return fmt.Errorf("sse: unknown event type %q", w.Type)
	}
	*e = out
	return nil
}

var (
	dataPrefix = []byte("data:")
	delimiter  = []byte("\n\n")
)

// Encode renders one frame.
func Encode(e Event) ([]byte, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	frame := make([]byte, 0, len(payload)+8)
	frame = append(frame, "data: "...)
	frame = append(frame, payload...)
	frame = append(frame, delimiter...)
	return frame, nil
}

// Decode extracts every complete frame from buf. Unknown, malformed and
// comment-only frames are skipped. The unconsumed tail is returned so the
// caller can prefix it onto the next chunk.
func Decode(buf []byte) (events []Event, remainder []byte) {
	for {
		idx := bytes.Index(buf, delimiter)
		if idx < 0 {
			return events, buf
		}
		if event, ok := parseFrame(buf[:idx]); ok {
			events = append(events, event)
		}
		buf = buf[idx+len(delimiter):]
	}
}

func parseFrame(frame []byte) (Event, bool) {
	var data [][]byte
	for _, line := range bytes.Split(frame, []byte("\n")) {
		line = bytes.TrimSuffix(line, []byte("\r"))
		if !bytes.HasPrefix(line, dataPrefix) {
			// comments, event:, id: and retry: fields carry nothing we use
			continue
		}
		value := line[len(dataPrefix):]
		value = bytes.TrimPrefix(value, []byte(" "))
		data = append(data, value)
	}
	if len(data) == 0 {
		return Event{}, false
	}
	var event Event
	if err := json.Unmarshal(bytes.Join(data, []byte("\n")), &event); err != nil {
		return Event{}, false
	}
	return event, true
}

// MaxFrameBytes bounds how much undelimited data a Decoder buffers.
const MaxFrameBytes = 1 << 20

// ErrFrameTooLarge is returned when a frame exceeds MaxFrameBytes.
var ErrFrameTooLarge = errors.New("sse: frame exceeds maximum size")

// Decoder reads events from a byte stream, threading the remainder across reads.
type Decoder struct {
	r       io.Reader
	buf     []byte
	pending []Event
	chunk   []byte
	err     error
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r, chunk: make([]byte, 4096)}
}

// Next returns the next event, or io.EOF once the stream is exhausted.
func (d *Decoder) Next() (Event, error) {
	for len(d.pending) == 0 {
		if d.err != nil {
			return Event{}, d.err
		}
		n, err := d.r.Read(d.chunk)
		if n > 0 {
			d.buf = append(d.buf, d.chunk[:n]...)
			var events []Event
			events, d.buf = Decode(d.buf)
			d.pending = append(d.pending, events...)
			if len(d.buf) > MaxFrameBytes {
				d.err = ErrFrameTooLarge
			}
		}
		if err != nil {
			if err == io.EOF && len(bytes.TrimSpace(d.buf)) > 0 {
				// Flush a final frame that lacks its trailing blank line.
				events, _ := Decode(append(d.buf, delimiter...))
				d.pending = append(d.pending, events...)
			}
			d.buf = nil
			d.err = err
		}
	}
	event := d.pending[0]
	d.pending = d.pending[1:]
	return event, nil
}
