package errbundle

import (
	"errors"
	"testing"
)

// bundleBuilder assembles synthetic bundles in the wire layout: a root list
// header at word 0, records appended behind it, and NUL-terminated strings.
// Byte 0 of the string table is reserved so no real string lands on the
// absent sentinel.
type bundleBuilder struct {
	extra       []uint32
	stringBytes []byte
}

func newBundleBuilder() *bundleBuilder {
	return &bundleBuilder{
		extra:       make([]uint32, rootListLen),
		stringBytes: []byte{0},
	}
}

func (bb *bundleBuilder) str(s string) StringIndex {
	idx := StringIndex(len(bb.stringBytes))
	bb.stringBytes = append(bb.stringBytes, s...)
	bb.stringBytes = append(bb.stringBytes, 0)
	return idx
}

func (bb *bundleBuilder) addSourceLocation(loc SourceLocation, traces ...ReferenceTraceIndex) SourceLocationIndex {
	idx := SourceLocationIndex(len(bb.extra))
	loc.ReferenceTraceLen = uint32(len(traces))
	bb.extra = append(bb.extra,
		uint32(loc.SrcPath), loc.Line, loc.Column,
		loc.SpanStart, loc.SpanMain, loc.SpanEnd,
		uint32(loc.SourceLine), loc.ReferenceTraceLen)
	for _, t := range traces {
		bb.extra = append(bb.extra, uint32(t))
	}
	return idx
}

func (bb *bundleBuilder) addReferenceTrace(declName StringIndex, srcLoc SourceLocationIndex) ReferenceTraceIndex {
	idx := ReferenceTraceIndex(len(bb.extra))
	bb.extra = append(bb.extra, uint32(declName), uint32(srcLoc))
	return idx
}

func (bb *bundleBuilder) addHiddenSentinel(hidden uint32) ReferenceTraceIndex {
	idx := ReferenceTraceIndex(len(bb.extra))
	bb.extra = append(bb.extra, hidden, 0)
	return idx
}

func (bb *bundleBuilder) addMessage(msg ErrorMessage, notes ...MessageIndex) MessageIndex {
	idx := MessageIndex(len(bb.extra))
	msg.NotesLen = uint32(len(notes))
	bb.extra = append(bb.extra, uint32(msg.Msg), msg.Count, uint32(msg.SrcLoc), msg.NotesLen)
	for _, n := range notes {
		bb.extra = append(bb.extra, uint32(n))
	}
	return idx
}

func (bb *bundleBuilder) finish(logText StringIndex, roots ...MessageIndex) *Bundle {
	start := uint32(len(bb.extra))
	for _, r := range roots {
		bb.extra = append(bb.extra, uint32(r))
	}
	bb.extra[0] = uint32(len(roots))
	bb.extra[1] = start
	bb.extra[2] = uint32(logText)
	return New(bb.extra, bb.stringBytes)
}

func TestBundle_Empty(t *testing.T) {
	b := New(nil, nil)

	if got := b.MessageCount(); got != 0 {
		t.Errorf("MessageCount() = %d, want 0", got)
	}
	roots, err := b.RootMessages()
	if err != nil {
		t.Fatalf("RootMessages failed: %v", err)
	}
	if len(roots) != 0 {
		t.Errorf("RootMessages() = %v, want empty", roots)
	}
	logText, err := b.CompileLogText()
	if err != nil {
		t.Fatalf("CompileLogText failed: %v", err)
	}
	if logText != "" {
		t.Errorf("CompileLogText() = %q, want empty", logText)
	}
}

// TestBundle_SingleMessage decodes the minimal bundle: a root list pointing
// at one message with no source location and no notes.
func TestBundle_SingleMessage(t *testing.T) {
	bb := newBundleBuilder()
	msgText := bb.str("expected ';' after statement")
	msg := bb.addMessage(ErrorMessage{Msg: msgText, Count: 1})
	b := bb.finish(0, msg)

	if got := b.MessageCount(); got != 1 {
		t.Fatalf("MessageCount() = %d, want 1", got)
	}
	roots, err := b.RootMessages()
	if err != nil {
		t.Fatalf("RootMessages failed: %v", err)
	}
	if len(roots) != 1 || roots[0] != msg {
		t.Fatalf("RootMessages() = %v, want [%d]", roots, msg)
	}

	decoded, err := b.Message(roots[0])
	if err != nil {
		t.Fatalf("Message failed: %v", err)
	}
	if decoded.SrcLoc != 0 {
		t.Errorf("SrcLoc = %d, want 0 (absent)", decoded.SrcLoc)
	}
	if decoded.Count != 1 {
		t.Errorf("Count = %d, want 1", decoded.Count)
	}
	notes, err := b.Notes(roots[0])
	if err != nil {
		t.Fatalf("Notes failed: %v", err)
	}
	if len(notes) != 0 {
		t.Errorf("Notes() = %v, want empty", notes)
	}
	text, err := b.String(decoded.Msg)
	if err != nil {
		t.Fatalf("String failed: %v", err)
	}
	if text != "expected ';' after statement" {
		t.Errorf("String() = %q", text)
	}
}

// TestBundle_RoundTrip encodes a full forest and checks every field decodes
// back exactly, including multi-byte UTF-8 string content.
func TestBundle_RoundTrip(t *testing.T) {
	bb := newBundleBuilder()

	path := bb.str("src/übung.zig")
	srcLine := bb.str("const π = \"日本語\";")
	declName := bb.str("main")

	sentinel := bb.addHiddenSentinel(3)
	refLoc := bb.addSourceLocation(SourceLocation{SrcPath: path, Line: 9, Column: 4})
	ref := bb.addReferenceTrace(declName, refLoc)

	loc := bb.addSourceLocation(SourceLocation{
		SrcPath:    path,
		Line:       41,
		Column:     6,
		SpanStart:  100,
		SpanMain:   106,
		SpanEnd:    110,
		SourceLine: srcLine,
	}, ref, sentinel)

	noteA := bb.addMessage(ErrorMessage{Msg: bb.str("declared here"), Count: 1})
	noteB := bb.addMessage(ErrorMessage{Msg: bb.str("свободная заметка"), Count: 1})
	root1 := bb.addMessage(ErrorMessage{Msg: bb.str("use of undeclared identifier 'π'"), Count: 2, SrcLoc: loc}, noteA, noteB)
	root2 := bb.addMessage(ErrorMessage{Msg: bb.str("second failure"), Count: 1})

	logText := bb.str("@compileLog output\n")
	b := bb.finish(logText, root1, root2)

	roots, err := b.RootMessages()
	if err != nil {
		t.Fatalf("RootMessages failed: %v", err)
	}
	if len(roots) != 2 || roots[0] != root1 || roots[1] != root2 {
		t.Fatalf("RootMessages() = %v, want [%d %d]", roots, root1, root2)
	}

	msg, err := b.Message(root1)
	if err != nil {
		t.Fatalf("Message failed: %v", err)
	}
	if msg.Count != 2 {
		t.Errorf("Count = %d, want 2", msg.Count)
	}
	if msg.SrcLoc != loc {
		t.Errorf("SrcLoc = %d, want %d", msg.SrcLoc, loc)
	}
	text, err := b.String(msg.Msg)
	if err != nil {
		t.Fatalf("String failed: %v", err)
	}
	if text != "use of undeclared identifier 'π'" {
		t.Errorf("message text = %q", text)
	}

	notes, err := b.Notes(root1)
	if err != nil {
		t.Fatalf("Notes failed: %v", err)
	}
	if len(notes) != int(msg.NotesLen) {
		t.Errorf("len(Notes) = %d, want NotesLen = %d", len(notes), msg.NotesLen)
	}
	if len(notes) != 2 || notes[0] != noteA || notes[1] != noteB {
		t.Fatalf("Notes() = %v, want [%d %d]", notes, noteA, noteB)
	}
	noteMsg, err := b.Message(notes[1])
	if err != nil {
		t.Fatalf("Message(note) failed: %v", err)
	}
	noteText, err := b.String(noteMsg.Msg)
	if err != nil {
		t.Fatalf("String(note) failed: %v", err)
	}
	if noteText != "свободная заметка" {
		t.Errorf("note text = %q", noteText)
	}

	decodedLoc, err := b.SourceLocation(loc)
	if err != nil {
		t.Fatalf("SourceLocation failed: %v", err)
	}
	want := SourceLocation{
		SrcPath: path, Line: 41, Column: 6,
		SpanStart: 100, SpanMain: 106, SpanEnd: 110,
		SourceLine: srcLine, ReferenceTraceLen: 2,
	}
	if decodedLoc != want {
		t.Errorf("SourceLocation = %+v, want %+v", decodedLoc, want)
	}

	traces, err := b.ReferenceTraces(loc)
	if err != nil {
		t.Fatalf("ReferenceTraces failed: %v", err)
	}
	if len(traces) != int(decodedLoc.ReferenceTraceLen) {
		t.Errorf("len(ReferenceTraces) = %d, want %d", len(traces), decodedLoc.ReferenceTraceLen)
	}
	if len(traces) != 2 || traces[0] != ref || traces[1] != sentinel {
		t.Fatalf("ReferenceTraces() = %v, want [%d %d]", traces, ref, sentinel)
	}

	rt, err := b.ReferenceTrace(traces[0])
	if err != nil {
		t.Fatalf("ReferenceTrace failed: %v", err)
	}
	if rt.IsSentinel() {
		t.Error("concrete trace decoded as sentinel")
	}
	if rt.DeclName != declName || rt.SrcLoc != refLoc {
		t.Errorf("trace = %+v, want DeclName %d SrcLoc %d", rt, declName, refLoc)
	}

	log, err := b.CompileLogText()
	if err != nil {
		t.Fatalf("CompileLogText failed: %v", err)
	}
	if log != "@compileLog output\n" {
		t.Errorf("CompileLogText() = %q", log)
	}
}

func TestBundle_AbsentOptionals(t *testing.T) {
	bb := newBundleBuilder()
	loc := bb.addSourceLocation(SourceLocation{SrcPath: bb.str("main.zig"), Line: 3, Column: 1})
	withLoc := bb.addMessage(ErrorMessage{Msg: bb.str("has location"), Count: 1, SrcLoc: loc})
	withoutLoc := bb.addMessage(ErrorMessage{Msg: bb.str("no location"), Count: 1})
	b := bb.finish(0, withLoc, withoutLoc)

	msg, err := b.Message(withoutLoc)
	if err != nil {
		t.Fatalf("Message failed: %v", err)
	}
	if msg.SrcLoc != 0 {
		t.Errorf("SrcLoc = %d, want 0 (absent)", msg.SrcLoc)
	}

	decodedLoc, err := b.SourceLocation(loc)
	if err != nil {
		t.Fatalf("SourceLocation failed: %v", err)
	}
	if decodedLoc.SourceLine != 0 {
		t.Errorf("SourceLine = %d, want 0 (absent)", decodedLoc.SourceLine)
	}

	// Index 0 is the "no string" sentinel regardless of table content.
	s, err := b.String(0)
	if err != nil {
		t.Fatalf("String(0) failed: %v", err)
	}
	if s != "" {
		t.Errorf("String(0) = %q, want empty", s)
	}
}

func TestReferenceTrace_Sentinel(t *testing.T) {
	tests := []struct {
		name   string
		hidden uint32
	}{
		{name: "counted", hidden: 5},
		{name: "uncounted remainder", hidden: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bb := newBundleBuilder()
			sentinel := bb.addHiddenSentinel(tt.hidden)
			b := bb.finish(0)

			rt, err := b.ReferenceTrace(sentinel)
			if err != nil {
				t.Fatalf("ReferenceTrace failed: %v", err)
			}
			if !rt.IsSentinel() {
				t.Fatal("expected sentinel")
			}
			if rt.Hidden != tt.hidden {
				t.Errorf("Hidden = %d, want %d", rt.Hidden, tt.hidden)
			}
			if rt.SrcLoc != 0 {
				t.Errorf("SrcLoc = %d, want 0", rt.SrcLoc)
			}
		})
	}
}

func TestBundle_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		probe func(b *Bundle) error
		extra []uint32
		str   []byte
		kind  BundleErrorKind
	}{
		{
			name:  "truncated root list",
			extra: []uint32{5},
			probe: func(b *Bundle) error { _, err := b.RootMessages(); return err },
			kind:  BundleErrorBounds,
		},
		{
			name:  "root run past end",
			extra: []uint32{10, 3, 0},
			probe: func(b *Bundle) error { _, err := b.RootMessages(); return err },
			kind:  BundleErrorBounds,
		},
		{
			name:  "message record out of range",
			extra: []uint32{1, 3, 0, 99},
			probe: func(b *Bundle) error { _, err := b.Message(99); return err },
			kind:  BundleErrorBounds,
		},
		{
			name:  "notes run past end",
			extra: []uint32{1, 3, 0, 1, 1, 0, 1000},
			probe: func(b *Bundle) error { _, err := b.Notes(3); return err },
			kind:  BundleErrorBounds,
		},
		{
			name:  "truncated source location",
			extra: []uint32{0, 3, 0, 1, 2, 3},
			probe: func(b *Bundle) error { _, err := b.SourceLocation(3); return err },
			kind:  BundleErrorBounds,
		},
		{
			name:  "string index past table",
			extra: []uint32{0, 3, 0},
			str:   []byte{0, 'a', 0},
			probe: func(b *Bundle) error { _, err := b.String(40); return err },
			kind:  BundleErrorString,
		},
		{
			name:  "unterminated string",
			extra: []uint32{0, 3, 0},
			str:   []byte{0, 'a', 'b'},
			probe: func(b *Bundle) error { _, err := b.String(1); return err },
			kind:  BundleErrorString,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New(tt.extra, tt.str)
			err := tt.probe(b)
			if err == nil {
				t.Fatal("expected decode error")
			}
			var bundleErr *BundleError
			if !errors.As(err, &bundleErr) {
				t.Fatalf("expected *BundleError, got %T: %v", err, err)
			}
			if bundleErr.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", bundleErr.Kind, tt.kind)
			}
		})
	}
}
