// Package errbundle decodes the Zig compiler's error bundle format.
//
// An error bundle is two flat buffers produced by a failed compilation: an
// array of 32-bit words ("extra") encoding a forest of diagnostic records,
// and a byte array of NUL-terminated UTF-8 strings ("string bytes"). Records
// reference each other and the string table by index only; index 0 is the
// reserved "absent" sentinel for every optional field.
//
// A Bundle is immutable after construction and safe for concurrent readers.
// Every offset-based read is bounds-checked: a truncated or corrupted bundle
// surfaces a *BundleError, never an out-of-range access.
package errbundle

import (
	"bytes"
	"fmt"
	"unicode/utf8"
)

// Index types are distinct so a message index cannot be passed where a
// source-location index is expected. At runtime they are all plain uint32
// offsets into the extra array (or the string table for StringIndex).
type (
	// StringIndex is a byte offset into the string table.
	StringIndex uint32
	// MessageIndex is a word offset of an error message record.
	MessageIndex uint32
	// SourceLocationIndex is a word offset of a source location record.
	SourceLocationIndex uint32
	// ReferenceTraceIndex is a word offset of a reference trace record.
	ReferenceTraceIndex uint32
)

// Word counts of the fixed portion of each record kind.
const (
	rootListLen       = 3
	messageLen        = 4
	sourceLocationLen = 8
	referenceTraceLen = 2
)

// BundleErrorKind classifies bundle decode errors.
type BundleErrorKind int

const (
	// BundleErrorBounds indicates an offset or trailing run outside the extra array.
	BundleErrorBounds BundleErrorKind = iota
	// BundleErrorString indicates a bad string table reference
	// (offset past the table or a missing NUL terminator).
	BundleErrorString
)

// BundleError represents a bundle decode error.
type BundleError struct {
	Kind BundleErrorKind
	Msg  string
}

func (e *BundleError) Error() string {
	return e.Msg
}

func boundsErr(format string, args ...any) *BundleError {
	return &BundleError{Kind: BundleErrorBounds, Msg: fmt.Sprintf(format, args...)}
}

func stringErr(format string, args ...any) *BundleError {
	return &BundleError{Kind: BundleErrorString, Msg: fmt.Sprintf(format, args...)}
}

// ErrorMessage is the fixed portion of an error message record.
// NotesLen message indices follow the fixed fields in the extra array;
// use Bundle.Notes to slice them out.
type ErrorMessage struct {
	// Msg is the diagnostic text.
	Msg StringIndex
	// Count is the upstream deduplication counter, always >= 1.
	// The text is rendered once and annotated when Count > 1.
	Count uint32
	// SrcLoc is the source location, 0 when absent.
	SrcLoc SourceLocationIndex
	// NotesLen is the number of note message indices trailing this record.
	NotesLen uint32
}

// SourceLocation is the fixed portion of a source location record.
// ReferenceTraceLen reference trace indices follow the fixed fields;
// use Bundle.ReferenceTraces to slice them out.
type SourceLocation struct {
	// SrcPath is the source file path.
	SrcPath StringIndex
	// Line and Column are zero-based.
	Line   uint32
	Column uint32
	// SpanStart, SpanMain, and SpanEnd are byte offsets within the source
	// file. SpanMain is the caret position; SpanStart..SpanEnd is the
	// highlighted range.
	SpanStart uint32
	SpanMain  uint32
	SpanEnd   uint32
	// SourceLine is the embedded copy of the offending line, 0 when absent.
	SourceLine StringIndex
	// ReferenceTraceLen is the number of reference trace indices trailing
	// this record.
	ReferenceTraceLen uint32
}

// ReferenceTrace is one step of a reference trace.
//
// When SrcLoc is 0 the record is a terminator sentinel rather than a concrete
// reference: Hidden holds the count of further references not included in the
// bundle (0 means "remaining references hidden" without a count).
type ReferenceTrace struct {
	// DeclName is the referencing declaration's name. Unset for sentinels.
	DeclName StringIndex
	// SrcLoc is the location of the reference, 0 for the sentinel form.
	SrcLoc SourceLocationIndex
	// Hidden is the hidden-reference count, valid only when SrcLoc is 0.
	Hidden uint32
}

// IsSentinel reports whether the record is a hidden-references terminator
// rather than a concrete reference.
func (rt ReferenceTrace) IsSentinel() bool {
	return rt.SrcLoc == 0
}

// Bundle is a decoded, immutable error bundle. The zero value is an empty
// bundle with no messages.
type Bundle struct {
	extra       []uint32
	stringBytes []byte
}

// New constructs a Bundle over the given buffers. The Bundle takes ownership
// of both slices; callers must not mutate them afterwards. Construction never
// fails: malformed contents surface from the accessors instead.
func New(extra []uint32, stringBytes []byte) *Bundle {
	return &Bundle{extra: extra, stringBytes: stringBytes}
}

// word reads a single extra word with bounds checking.
func (b *Bundle) word(i uint32) (uint32, error) {
	if uint64(i) >= uint64(len(b.extra)) {
		return 0, boundsErr("extra index %d out of range (len %d)", i, len(b.extra))
	}
	return b.extra[i], nil
}

// words reads a run of n extra words starting at off with bounds checking.
func (b *Bundle) words(off, n uint32) ([]uint32, error) {
	end := uint64(off) + uint64(n)
	if end > uint64(len(b.extra)) {
		return nil, boundsErr("extra run [%d, %d) out of range (len %d)", off, end, len(b.extra))
	}
	return b.extra[off:end:end], nil
}

// MessageCount returns the number of root error messages. It is safe to call
// on an empty or truncated bundle, where it returns 0.
func (b *Bundle) MessageCount() uint32 {
	if len(b.extra) < rootListLen {
		return 0
	}
	return b.extra[0]
}

// RootMessages returns the root message indices in compiler emission order,
// which is also the display order.
func (b *Bundle) RootMessages() ([]MessageIndex, error) {
	if len(b.extra) == 0 {
		return nil, nil
	}
	if len(b.extra) < rootListLen {
		return nil, boundsErr("truncated root list: %d words", len(b.extra))
	}
	count, start := b.extra[0], b.extra[1]
	run, err := b.words(start, count)
	if err != nil {
		return nil, err
	}
	indices := make([]MessageIndex, len(run))
	for i, w := range run {
		indices[i] = MessageIndex(w)
	}
	return indices, nil
}

// Message decodes the error message record at i.
func (b *Bundle) Message(i MessageIndex) (ErrorMessage, error) {
	fields, err := b.words(uint32(i), messageLen)
	if err != nil {
		return ErrorMessage{}, err
	}
	return ErrorMessage{
		Msg:      StringIndex(fields[0]),
		Count:    fields[1],
		SrcLoc:   SourceLocationIndex(fields[2]),
		NotesLen: fields[3],
	}, nil
}

// SourceLocation decodes the source location record at i.
func (b *Bundle) SourceLocation(i SourceLocationIndex) (SourceLocation, error) {
	fields, err := b.words(uint32(i), sourceLocationLen)
	if err != nil {
		return SourceLocation{}, err
	}
	return SourceLocation{
		SrcPath:           StringIndex(fields[0]),
		Line:              fields[1],
		Column:            fields[2],
		SpanStart:         fields[3],
		SpanMain:          fields[4],
		SpanEnd:           fields[5],
		SourceLine:        StringIndex(fields[6]),
		ReferenceTraceLen: fields[7],
	}, nil
}

// ReferenceTrace decodes the reference trace record at i. A record whose
// second word is 0 decodes as the hidden-references sentinel, with the first
// word reinterpreted as the hidden count.
func (b *Bundle) ReferenceTrace(i ReferenceTraceIndex) (ReferenceTrace, error) {
	fields, err := b.words(uint32(i), referenceTraceLen)
	if err != nil {
		return ReferenceTrace{}, err
	}
	if fields[1] == 0 {
		return ReferenceTrace{Hidden: fields[0]}, nil
	}
	return ReferenceTrace{
		DeclName: StringIndex(fields[0]),
		SrcLoc:   SourceLocationIndex(fields[1]),
	}, nil
}

// Notes returns the note message indices of the message at i, in stored order.
func (b *Bundle) Notes(i MessageIndex) ([]MessageIndex, error) {
	msg, err := b.Message(i)
	if err != nil {
		return nil, err
	}
	run, err := b.words(uint32(i)+messageLen, msg.NotesLen)
	if err != nil {
		return nil, err
	}
	notes := make([]MessageIndex, len(run))
	for j, w := range run {
		notes[j] = MessageIndex(w)
	}
	return notes, nil
}

// ReferenceTraces returns the reference trace indices of the source location
// at i, in stored order.
func (b *Bundle) ReferenceTraces(i SourceLocationIndex) ([]ReferenceTraceIndex, error) {
	loc, err := b.SourceLocation(i)
	if err != nil {
		return nil, err
	}
	run, err := b.words(uint32(i)+sourceLocationLen, loc.ReferenceTraceLen)
	if err != nil {
		return nil, err
	}
	traces := make([]ReferenceTraceIndex, len(run))
	for j, w := range run {
		traces[j] = ReferenceTraceIndex(w)
	}
	return traces, nil
}

// String decodes the NUL-terminated string at i. Index 0 is the "no string"
// sentinel and decodes to "" without touching the table. The scan is linear
// per call; diagnostic volumes are small enough that memoization has not
// been worth it.
func (b *Bundle) String(i StringIndex) (string, error) {
	if i == 0 {
		return "", nil
	}
	if uint64(i) >= uint64(len(b.stringBytes)) {
		return "", stringErr("string index %d out of range (len %d)", i, len(b.stringBytes))
	}
	end := bytes.IndexByte(b.stringBytes[i:], 0)
	if end < 0 {
		return "", stringErr("unterminated string at index %d", i)
	}
	s := b.stringBytes[i : uint64(i)+uint64(end)]
	if !utf8.Valid(s) {
		return "", stringErr("invalid UTF-8 in string at index %d", i)
	}
	return string(s), nil
}

// CompileLogText returns the compile log output captured by the build,
// or "" when absent.
func (b *Bundle) CompileLogText() (string, error) {
	if len(b.extra) < rootListLen {
		return "", nil
	}
	return b.String(StringIndex(b.extra[2]))
}
