package errbundle

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

// RenderOptions controls the optional sections of the text report.
type RenderOptions struct {
	// IncludeSourceLine emits the embedded source line and a caret line
	// beneath each message that carries one.
	IncludeSourceLine bool
	// IncludeReferenceTrace emits the "referenced by:" block beneath each
	// message whose source location carries a trace.
	IncludeReferenceTrace bool
	// IncludeLogText appends the compile log output as a trailing block.
	IncludeLogText bool
}

// DefaultRenderOptions enables every section.
func DefaultRenderOptions() RenderOptions {
	return RenderOptions{
		IncludeSourceLine:     true,
		IncludeReferenceTrace: true,
		IncludeLogText:        true,
	}
}

// Notes indent by one level per nesting depth.
const indentStep = 4

// maxNoteDepth bounds note recursion. Well-formed bundles are acyclic, but a
// corrupted one could self-reference; past this depth rendering fails instead
// of growing the stack without bound.
const maxNoteDepth = 64

// Render writes a human-readable multi-line report of b to w.
//
// Each root message renders at indent 0 with the "error" label, its notes
// recursively at indent+4 with the "note" label. Stored line and column are
// zero-based and render one-based.
func Render(w io.Writer, b *Bundle, opts RenderOptions) error {
	roots, err := b.RootMessages()
	if err != nil {
		return err
	}
	for _, idx := range roots {
		if err := renderMessage(w, b, idx, 0, "error", opts, 0); err != nil {
			return err
		}
	}
	if opts.IncludeLogText {
		logText, err := b.CompileLogText()
		if err != nil {
			return err
		}
		if logText != "" {
			if _, err := fmt.Fprintf(w, "\nCompile Log Output:\n%s", logText); err != nil {
				return err
			}
			if !strings.HasSuffix(logText, "\n") {
				if _, err := io.WriteString(w, "\n"); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// RenderString renders b to a string.
func RenderString(b *Bundle, opts RenderOptions) (string, error) {
	var sb strings.Builder
	if err := Render(&sb, b, opts); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func renderMessage(w io.Writer, b *Bundle, idx MessageIndex, indent int, label string, opts RenderOptions, depth int) error {
	if depth > maxNoteDepth {
		return boundsErr("note nesting exceeds depth %d at message %d", maxNoteDepth, idx)
	}

	msg, err := b.Message(idx)
	if err != nil {
		return err
	}
	text, err := b.String(msg.Msg)
	if err != nil {
		return err
	}

	pad := strings.Repeat(" ", indent)
	suffix := ""
	if msg.Count > 1 {
		suffix = fmt.Sprintf(" (%d times)", msg.Count)
	}

	if msg.SrcLoc == 0 {
		if _, err := fmt.Fprintf(w, "%s%s: %s%s\n", pad, label, text, suffix); err != nil {
			return err
		}
	} else {
		loc, err := b.SourceLocation(msg.SrcLoc)
		if err != nil {
			return err
		}
		path, err := b.String(loc.SrcPath)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s%s:%d:%d: %s: %s%s\n",
			pad, path, loc.Line+1, loc.Column+1, label, text, suffix); err != nil {
			return err
		}
		if opts.IncludeSourceLine && loc.SourceLine != 0 {
			if err := renderSourceLine(w, b, loc); err != nil {
				return err
			}
		}
		if opts.IncludeReferenceTrace && loc.ReferenceTraceLen > 0 {
			if err := renderReferenceTrace(w, b, msg.SrcLoc); err != nil {
				return err
			}
		}
	}

	notes, err := b.Notes(idx)
	if err != nil {
		return err
	}
	for _, note := range notes {
		if err := renderMessage(w, b, note, indent+indentStep, "note", opts, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// renderSourceLine emits the embedded source line verbatim, then a caret line
// marking the span: tildes before and after a single caret at the main
// position. Span arithmetic is byte-based; caret alignment on lines with tabs
// or multi-byte runes is best-effort.
func renderSourceLine(w io.Writer, b *Bundle, loc SourceLocation) error {
	line, err := b.String(loc.SourceLine)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "%s\n", line); err != nil {
		return err
	}

	before := int(loc.SpanMain) - int(loc.SpanStart)
	if before < 0 {
		before = 0
	}
	// SpanMain is inside the span, so the caret replaces one tilde.
	after := int(loc.SpanEnd) - int(loc.SpanMain) - 1
	if after < 0 {
		after = 0
	}
	caretStart := int(loc.Column) - before
	if caretStart < 0 {
		caretStart = 0
	}

	// Pad by the display width of the text preceding the span, so tabs and
	// wide runes shift the caret roughly in step with the line above.
	padWidth := caretStart
	if caretStart <= len(line) {
		padWidth = runewidth.StringWidth(line[:caretStart])
	}

	_, err = fmt.Fprintf(w, "%s%s^%s\n",
		strings.Repeat(" ", padWidth),
		strings.Repeat("~", before),
		strings.Repeat("~", after))
	return err
}

func renderReferenceTrace(w io.Writer, b *Bundle, locIdx SourceLocationIndex) error {
	traces, err := b.ReferenceTraces(locIdx)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, "referenced by:\n"); err != nil {
		return err
	}
	for _, ti := range traces {
		rt, err := b.ReferenceTrace(ti)
		if err != nil {
			return err
		}
		if rt.IsSentinel() {
			if rt.Hidden > 0 {
				if _, err := fmt.Fprintf(w, "    %d further references hidden\n", rt.Hidden); err != nil {
					return err
				}
			} else if _, err := io.WriteString(w, "    remaining references hidden\n"); err != nil {
				return err
			}
			continue
		}
		name, err := b.String(rt.DeclName)
		if err != nil {
			return err
		}
		loc, err := b.SourceLocation(rt.SrcLoc)
		if err != nil {
			return err
		}
		path, err := b.String(loc.SrcPath)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "    %s: %s:%d:%d\n", name, path, loc.Line+1, loc.Column+1); err != nil {
			return err
		}
	}
	return nil
}
