package asset

type constError string

const (
	// ErrUnknownTransform is returned when a blob descriptor's
	// qualifier names no registered [Transform].
	ErrUnknownTransform = constError("unknown transform")
	// ErrEmptyManifest is returned when a bundle manifest lists no blobs.
	ErrEmptyManifest = constError("empty manifest")
)

func (errStr constError) Error() string { return string(errStr) }
