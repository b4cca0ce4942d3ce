package imf

import "errors"

// The error taxonomy is deliberately small and uniform: every failure that
// originates in this package resolves to one of these sentinels, wrapped
// with context via fmt.Errorf("%w: ..."). Errors returned by a
// ChildDemuxerOpener or by ChildDemuxer.Seek are passed through wrapped
// with context, whatever they are.
var (
	// ErrInvalidData marks malformed XML, a missing required element or
	// attribute, an unparseable numeric, an unresolved UUID lookup, or a
	// composition with duplicate/incompatible virtual track declarations.
	ErrInvalidData = errors.New("imf: invalid data")

	// ErrOutOfMemory marks an allocation failure.
	ErrOutOfMemory = errors.New("imf: out of memory")

	// ErrIo marks a host byte-stream failure reading a CPL, asset map, or
	// resource container.
	ErrIo = errors.New("imf: i/o error")

	// ErrStreamNotFound marks a scheduler failure to locate an active
	// resource for a non-terminal composition timestamp: the composition's
	// declared duration and its resource list disagree.
	ErrStreamNotFound = errors.New("imf: stream not found")

	// ErrEof marks a composition exhausted, and also reports
	// interrupt-driven read cancellation.
	ErrEof = errors.New("imf: end of file")
)
