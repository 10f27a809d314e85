package recommend

import (
	"errors"
	"fmt"

	"github.com/pandemonium-osu/pandemonium-backend/internal/platform/qdrant"
)

// Kind classifies every failure the engine can surface. Callers map these
// to transport-level responses; the engine itself never retries.
type Kind string

const (
	// KindNotFound means the requested beatmap or beatmapset does not exist.
	KindNotFound Kind = "not_found"
	// KindNoEmbedding means the item exists but has no vector in the index.
	KindNoEmbedding Kind = "no_embedding"
	// KindEmptyActivity means the player has no usable activity history.
	KindEmptyActivity Kind = "empty_activity"
	// KindNoCandidates means query vectors resolved but the index returned
	// nothing. This is a server-side data gap, not user error.
	KindNoCandidates Kind = "no_candidates"
	// KindTransient means an injected I/O call timed out or the remote
	// service failed; retryable by the caller with backoff.
	KindTransient Kind = "transient"
)

type Error struct {
	Kind  Kind
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e == nil {
		return "recommend error"
	}
	if e.Msg != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func Errorf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, msg string, cause error) error {
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

// KindOf extracts the error kind, classifying vector-index operation errors
// as transient when they are retryable.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var opErr *qdrant.OperationError
	if errors.As(err, &opErr) && opErr.IsRetryable() {
		return KindTransient
	}
	return ""
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
