package session

import "github.com/techatrix/zigserve/errbundle"

// Status classifies a resolved session outcome.
type Status string

const (
	// StatusSuccess means the compiler produced an artifact.
	StatusSuccess Status = "success"
	// StatusFailure means the compiler reported diagnostics.
	StatusFailure Status = "failure"
)

// Outcome is the resolved result of one protocol session. Exactly one of
// ArtifactPath or Bundle is set, keyed by Status.
type Outcome struct {
	// Status is the outcome classification.
	Status Status
	// ArtifactPath is the filesystem path of the produced artifact.
	// Set only when Status is StatusSuccess.
	ArtifactPath string
	// Bundle holds the decoded diagnostics. Set only when Status is
	// StatusFailure. Immutable and freely shareable once returned.
	Bundle *errbundle.Bundle
	// RawBundle is the undecoded error bundle payload, retained so
	// callers can persist it for later offline decoding.
	RawBundle []byte
	// ZigVersion is the version string from the opening frame, if the
	// server sent one.
	ZigVersion string
	// ExitCode is the compiler's exit code, or -1 if the process could
	// not be reaped.
	ExitCode int
}
