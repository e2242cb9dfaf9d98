package ui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/wordwrap"

	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/sse"
	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/transcript"
)

// StreamError is returned by Printer.Handle for an error frame.
type StreamError struct {
	Message string
}

func (e *StreamError) Error() string {
	return e.Message
}

// Printer writes a decoded chat stream to a terminal. In plain mode tokens are
// printed as they arrive; in markdown mode the reconciled transcript is rendered
// once the stream ends.
type Printer struct {
	out      io.Writer
	styles   *Styles
	markdown bool
	width    int

	builder transcript.Builder
	midLine bool
}

func NewPrinter(out io.Writer, styles *Styles, markdown bool, width int) *Printer {
	if styles == nil {
		styles = NewStyles(out, nil)
	}
	if width <= 0 {
		width = 80
	}
	return &Printer{out: out, styles: styles, markdown: markdown, width: width}
}

// Handle prints one event.
func (p *Printer) Handle(e sse.Event) error {
	switch e.Type {
	case sse.TypeToken:
		p.builder.AppendText(e.Token)
		if !p.markdown {
			p.write(e.Token)
		}
	case sse.TypeToolStart:
		p.builder.BeginTool(e.Tool, e.Input)
		if !p.markdown {
			label := "▸ " + e.Tool
			room := p.width - runewidth.StringWidth(label) - 1
			p.line(p.styles.Tool.Render(label) + " " + p.styles.Muted.Render(Truncate(oneLine(e.Input), room)))
		}
	case sse.TypeToolEnd:
		output := transcript.FormatValue(e.Output)
		p.builder.EndTool(e.Tool, output)
		if !p.markdown {
			p.line(p.styles.ToolBox.Render(output))
		}
	case sse.TypeError:
		p.finish()
		p.line(p.styles.Error.Render("error: " + e.Error))
		return &StreamError{Message: e.Error}
	case sse.TypeDone:
		p.finish()
	}
	return nil
}

// Transcript returns the reconciled transcript seen so far.
func (p *Printer) Transcript() string {
	return p.builder.String()
}

func (p *Printer) finish() {
	if p.markdown {
		p.write(RenderTranscript(p.styles, p.builder.String(), true, p.width))
	}
	if p.midLine {
		p.write("\n")
	}
}

func (p *Printer) write(s string) {
	if s == "" {
		return
	}
	fmt.Fprint(p.out, s)
	p.midLine = !strings.HasSuffix(s, "\n")
}

func (p *Printer) line(s string) {
	if p.midLine {
		p.write("\n")
	}
	p.write(s + "\n")
}

// RenderTranscript renders a stored assistant transcript, drawing tool blocks
// as boxes. Text segments are rendered as markdown when markdown is set and
// word-wrapped to width otherwise.
func RenderTranscript(styles *Styles, content string, markdown bool, width int) string {
	var b strings.Builder
	for _, seg := range transcript.Split(content) {
		switch {
		case seg.Block:
			if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
				b.WriteString("\n")
			}
			b.WriteString(styles.ToolBox.Render(strings.TrimSpace(seg.Text)))
			b.WriteString("\n")
		case markdown:
			b.WriteString(RenderMarkdown(seg.Text, width))
		default:
			b.WriteString(wordwrap.String(seg.Text, width))
		}
	}
	return b.String()
}

// Truncate shortens s to at most width display cells.
func Truncate(s string, width int) string {
	if width <= 1 {
		return ""
	}
	return runewidth.Truncate(s, width, "…")
}

func oneLine(raw json.RawMessage) string {
	var out bytes.Buffer
	if err := json.Compact(&out, raw); err == nil {
		return out.String()
	}
	return strings.Join(strings.Fields(string(raw)), " ")
}
