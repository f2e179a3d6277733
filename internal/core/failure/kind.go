// Package failure normalizes outbound call failures.
//
// This package contains:
//   - Kind: the closed error taxonomy callers switch over
//   - RawFailure: the tagged input shape every failure is reduced to
//   - Descriptor: the normalized error record handed back to callers
//   - Classify / ClassifyError: the deterministic mapping between them
package failure

// Kind is the normalized category of a failure.
type Kind string

const (
	KindNetwork      Kind = "network"        // Transport failure, timeout or cancellation
	KindAuth         Kind = "auth"           // Invalid or missing credentials
	KindPermission   Kind = "permission"     // Insufficient grant or app not connected
	KindToolNotFound Kind = "tool_not_found" // Requested capability does not exist
	KindValidation   Kind = "validation"     // Malformed caller input
	KindRateLimit    Kind = "rate_limit"     // Upstream throttling
	KindServerError  Kind = "server_error"   // Upstream failure or anything unrecognized
)

var allKinds = [...]Kind{
	KindNetwork,
	KindAuth,
	KindPermission,
	KindToolNotFound,
	KindValidation,
	KindRateLimit,
	KindServerError,
}

// Kinds returns every kind in classification priority order.
func Kinds() []Kind {
	out := make([]Kind, len(allKinds))
	copy(out, allKinds[:])
	return out
}

// Retryable reports whether a failure of this kind may succeed on a later attempt.
func (k Kind) Retryable() bool {
	switch k {
	case KindNetwork, KindRateLimit, KindServerError:
		return true
	default:
		return false
	}
}

// Valid reports whether k is one of the seven known kinds.
func (k Kind) Valid() bool {
	for _, known := range allKinds {
		if k == known {
			return true
		}
	}
	return false
}

func (k Kind) String() string {
	return string(k)
}
