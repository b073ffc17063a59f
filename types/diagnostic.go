package types

import (
	"fmt"

	"github.com/techatrix/zigserve/errbundle"
)

// Severity labels a diagnostic.
type Severity string

// Severity constants.
const (
	SeverityError Severity = "error"
	SeverityNote  Severity = "note"
)

// Location is a resolved source position. Line and Column are 1-based;
// the stored protocol values are 0-based.
type Location struct {
	Path       string `json:"path" yaml:"path" msgpack:"path"`
	Line       uint32 `json:"line" yaml:"line" msgpack:"line"`
	Column     uint32 `json:"column" yaml:"column" msgpack:"column"`
	SpanStart  uint32 `json:"span_start" yaml:"span_start" msgpack:"span_start"`
	SpanMain   uint32 `json:"span_main" yaml:"span_main" msgpack:"span_main"`
	SpanEnd    uint32 `json:"span_end" yaml:"span_end" msgpack:"span_end"`
	SourceLine string `json:"source_line,omitempty" yaml:"source_line,omitempty" msgpack:"source_line,omitempty"`
}

// Trace is one entry of a reference trace. A sentinel entry has no
// location and carries the hidden-reference count instead.
type Trace struct {
	Decl     string    `json:"decl,omitempty" yaml:"decl,omitempty" msgpack:"decl,omitempty"`
	Location *Location `json:"location,omitempty" yaml:"location,omitempty" msgpack:"location,omitempty"`
	Hidden   *uint32   `json:"hidden,omitempty" yaml:"hidden,omitempty" msgpack:"hidden,omitempty"`
}

// Diagnostic is one portable diagnostic record: a message, its location,
// and its notes, detached from the bundle's offset encoding. Collaborators
// map these onto their own diagnostic models.
type Diagnostic struct {
	Severity Severity     `json:"severity" yaml:"severity" msgpack:"severity"`
	Message  string       `json:"message" yaml:"message" msgpack:"message"`
	Count    uint32       `json:"count" yaml:"count" msgpack:"count"`
	Location *Location    `json:"location,omitempty" yaml:"location,omitempty" msgpack:"location,omitempty"`
	Notes    []Diagnostic `json:"notes,omitempty" yaml:"notes,omitempty" msgpack:"notes,omitempty"`
	Trace    []Trace      `json:"trace,omitempty" yaml:"trace,omitempty" msgpack:"trace,omitempty"`
}

// BuildResult is the machine-readable summary of one session.
type BuildResult struct {
	Outcome      string       `json:"outcome" yaml:"outcome" msgpack:"outcome"`
	ArtifactPath string       `json:"artifact_path,omitempty" yaml:"artifact_path,omitempty" msgpack:"artifact_path,omitempty"`
	ZigVersion   string       `json:"zig_version,omitempty" yaml:"zig_version,omitempty" msgpack:"zig_version,omitempty"`
	ExitCode     int          `json:"exit_code" yaml:"exit_code" msgpack:"exit_code"`
	Errors       []Diagnostic `json:"errors,omitempty" yaml:"errors,omitempty" msgpack:"errors,omitempty"`
	CompileLog   string       `json:"compile_log,omitempty" yaml:"compile_log,omitempty" msgpack:"compile_log,omitempty"`
}

// maxNoteDepth bounds note recursion so a corrupt bundle with a cyclic
// note graph cannot overflow the stack.
const maxNoteDepth = 64

// Flatten converts a decoded bundle into portable diagnostic records plus
// the compile log text.
func Flatten(b *errbundle.Bundle) ([]Diagnostic, string, error) {
	roots, err := b.RootMessages()
	if err != nil {
		return nil, "", err
	}

	diags := make([]Diagnostic, 0, len(roots))
	for _, idx := range roots {
		d, err := flattenMessage(b, idx, SeverityError, 0)
		if err != nil {
			return nil, "", err
		}
		diags = append(diags, d)
	}

	logText, err := b.CompileLogText()
	if err != nil {
		return nil, "", err
	}

	return diags, logText, nil
}

func flattenMessage(b *errbundle.Bundle, idx errbundle.MessageIndex, severity Severity, depth int) (Diagnostic, error) {
	if depth > maxNoteDepth {
		return Diagnostic{}, fmt.Errorf("note nesting exceeds %d levels", maxNoteDepth)
	}

	msg, err := b.Message(idx)
	if err != nil {
		return Diagnostic{}, err
	}

	text, err := b.String(msg.Msg)
	if err != nil {
		return Diagnostic{}, err
	}

	d := Diagnostic{
		Severity: severity,
		Message:  text,
		Count:    msg.Count,
	}

	if msg.SrcLoc != 0 {
		loc, err := flattenLocation(b, msg.SrcLoc)
		if err != nil {
			return Diagnostic{}, err
		}
		trace, err := flattenTrace(b, msg.SrcLoc)
		if err != nil {
			return Diagnostic{}, err
		}
		d.Location = loc
		d.Trace = trace
	}

	notes, err := b.Notes(idx)
	if err != nil {
		return Diagnostic{}, err
	}
	for _, noteIdx := range notes {
		note, err := flattenMessage(b, noteIdx, SeverityNote, depth+1)
		if err != nil {
			return Diagnostic{}, err
		}
		d.Notes = append(d.Notes, note)
	}

	return d, nil
}

func flattenLocation(b *errbundle.Bundle, idx errbundle.SourceLocationIndex) (*Location, error) {
	loc, err := b.SourceLocation(idx)
	if err != nil {
		return nil, err
	}

	path, err := b.String(loc.SrcPath)
	if err != nil {
		return nil, err
	}
	sourceLine, err := b.String(loc.SourceLine)
	if err != nil {
		return nil, err
	}

	return &Location{
		Path:       path,
		Line:       loc.Line + 1,
		Column:     loc.Column + 1,
		SpanStart:  loc.SpanStart,
		SpanMain:   loc.SpanMain,
		SpanEnd:    loc.SpanEnd,
		SourceLine: sourceLine,
	}, nil
}

// flattenTrace resolves a location's reference trace. Trace entries carry
// their own location but not that location's trace, keeping the walk flat.
func flattenTrace(b *errbundle.Bundle, idx errbundle.SourceLocationIndex) ([]Trace, error) {
	traceIdxs, err := b.ReferenceTraces(idx)
	if err != nil {
		return nil, err
	}

	var trace []Trace
	for _, traceIdx := range traceIdxs {
		rt, err := b.ReferenceTrace(traceIdx)
		if err != nil {
			return nil, err
		}

		if rt.IsSentinel() {
			hidden := rt.Hidden
			trace = append(trace, Trace{Hidden: &hidden})
			continue
		}

		decl, err := b.String(rt.DeclName)
		if err != nil {
			return nil, err
		}
		refLoc, err := flattenLocation(b, rt.SrcLoc)
		if err != nil {
			return nil, err
		}
		trace = append(trace, Trace{Decl: decl, Location: refLoc})
	}

	return trace, nil
}
