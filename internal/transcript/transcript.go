// Package transcript builds the assistant's persisted reply from streamed
// tokens and tool blocks.
//
// A tool block is delimited by marker lines:
//
//	---START---
//	$ calc
//	$ Input
//	{"expr": "2+2"}
//	$ Output
//	4
//	---END---
//
// While a tool runs its output reads "Processing..."; when it finishes the
// block is replaced in place.
package transcript

import (
	"bytes"
	"encoding/json"
	"strings"
)

const (
	StartMarker = "---START---"
	EndMarker   = "---END---"
	Pending     = "Processing..."
)

// Builder accumulates a transcript. The zero value is ready to use.
type Builder struct {
	buf       strings.Builder
	openTool  string
	openInput json.RawMessage
}

// AppendText adds streamed model text.
func (b *Builder) AppendText(text string) {
	b.buf.WriteString(text)
}

// BeginTool appends a placeholder block for a running tool.
func (b *Builder) BeginTool(tool string, input json.RawMessage) {
	b.openTool = tool
	b.openInput = append(json.RawMessage(nil), input...)
	b.buf.WriteString(Block(tool, input, Pending))
}

// EndTool replaces the most recent block with the tool's final output. Without an
// open block the final block is appended.
func (b *Builder) EndTool(tool, output string) {
	input := b.openInput
	if b.openTool != tool {
		input = nil
	}
	current := b.buf.String()
	block := Block(tool, input, output)
	b.buf.Reset()
	if idx := strings.LastIndex(current, StartMarker); idx >= 0 && b.openTool != "" {
		b.buf.WriteString(current[:idx])
	} else {
		b.buf.WriteString(current)
	}
	b.buf.WriteString(block)
	b.openTool = ""
	b.openInput = nil
}

// Len returns the transcript length in bytes.
func (b *Builder) Len() int {
	return b.buf.Len()
}

func (b *Builder) String() string {
	return b.buf.String()
}

// Block renders one delimited tool block.
func Block(tool string, input json.RawMessage, output string) string {
	var sb strings.Builder
	sb.WriteString(StartMarker)
	sb.WriteString("\n$ ")
	sb.WriteString(tool)
	sb.WriteString("\n$ Input\n")
	sb.WriteString(FormatValue(input))
	sb.WriteString("\n$ Output\n")
	sb.WriteString(output)
	sb.WriteString("\n")
	sb.WriteString(EndMarker)
	sb.WriteString("\n")
	return sb.String()
}

// FormatValue renders a JSON value for display: strings unquoted, everything
// else indented.
func FormatValue(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "{}"
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return string(raw)
	}
	return out.String()
}

// Segment is a run of plain text or the body of one tool block.
type Segment struct {
	Text  string
	Block bool
}

// Split separates a transcript into text and tool-block segments. An unterminated
// block runs to the end of the input.
func Split(s string) []Segment {
	var out []Segment
	for s != "" {
		start := strings.Index(s, StartMarker)
		if start < 0 {
			out = append(out, Segment{Text: s})
			break
		}
		if start > 0 {
			out = append(out, Segment{Text: s[:start]})
		}
		rest := strings.TrimPrefix(s[start+len(StartMarker):], "\n")
		end := strings.Index(rest, EndMarker)
		if end < 0 {
			out = append(out, Segment{Text: strings.TrimSuffix(rest, "\n"), Block: true})
			break
		}
		out = append(out, Segment{Text: strings.TrimSuffix(rest[:end], "\n"), Block: true})
		s = strings.TrimPrefix(rest[end+len(EndMarker):], "\n")
	}
	return out
}

// StripMarkers removes the block delimiters and keeps their contents.
func StripMarkers(s string) string {
	var sb strings.Builder
	for _, seg := range Split(s) {
		sb.WriteString(seg.Text)
		if seg.Block {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
