package solid

import "github.com/pkg/errors"

// Kind is the error taxonomy from spec §7: a small closed set of reasons a
// message or transition didn't go through, distinct from Go's open-ended
// error values so a host can switch on *why* without string matching.
type Kind int

const (
	// KindValidation covers malformed messages, wrong peer set, wrong
	// leader, bad hash: dropped silently, diagnostic counter incremented.
	KindValidation Kind = iota
	// KindOutOfDate: height <= last_confirmed.height.
	KindOutOfDate
	// KindDuplicate: hash already in the register.
	KindDuplicate
	// KindOutOfSync: future height observed, or pending commits detected.
	KindOutOfSync
	// KindFatal: an internal invariant was violated; the host must
	// restart the core (spec §7).
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindOutOfDate:
		return "out_of_date"
	case KindDuplicate:
		return "duplicate"
	case KindOutOfSync:
		return "out_of_sync"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// kindError pairs a Kind with the underlying pkg/errors chain, so a host
// can call KindOf(err) (which finds the kindError via errors.As) to recover
// the taxonomy while the wrapped error still carries a stack trace for logs.
type kindError struct {
	kind Kind
	err  error
}

func (e *kindError) Error() string { return e.err.Error() }
func (e *kindError) Cause() error  { return e.err }
func (e *kindError) Unwrap() error { return e.err }

// wrapKind tags err with kind, capturing a stack trace at the call site via
// pkg/errors.WithStack.
func wrapKind(kind Kind, err error) error {
	return &kindError{kind: kind, err: errors.WithStack(err)}
}

func newKind(kind Kind, msg string) error {
	return &kindError{kind: kind, err: errors.New(msg)}
}

// KindOf recovers the Kind a core-internal error was tagged with, or
// KindFatal if err didn't originate from this package (erring toward the
// host treating an unrecognized error as the most severe kind).
func KindOf(err error) Kind {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind
	}
	return KindFatal
}

var (
	errWrongLeader    = newKind(KindValidation, "manifest leader_id does not match leader_for(skips, peers)")
	errWrongPeerSet   = newKind(KindValidation, "manifest peers does not match local peer set")
	errWrongParent    = newKind(KindValidation, "manifest last_proposal_hash does not match last_confirmed at height+1")
	errBadHeight      = newKind(KindValidation, "manifest height is not last_confirmed.height+1 or greater")
	errFromNotPeer    = newKind(KindValidation, "accept sender is not in the peer set")
	errAcceptTooOld   = newKind(KindValidation, "accept height is below last_confirmed.height")
	errNoSuchProposal = newKind(KindValidation, "accept references a proposal hash absent from the register and is not a skip-accept")
)
