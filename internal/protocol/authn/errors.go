package authn

import "errors"

// Handshake errors. Each one destroys the negotiation that raised it.
var (
	ErrUnexpectedMessageType       = errors.New("authn: unexpected message type")
	ErrNoCommonMode                = errors.New("authn: no common protocol mode")
	ErrInvalidCurvePoint           = errors.New("authn: invalid curve point")
	ErrSignatureVerificationFailed = errors.New("authn: signature verification failed")
	ErrProtocolVersionMismatch     = errors.New("authn: protocol version mismatch")
	ErrUnsupportedScheme           = errors.New("authn: unsupported key agreement scheme")
	ErrUnknownPeer                 = errors.New("authn: peer identity cannot be resolved")
	ErrIdentityMismatch            = errors.New("authn: identity does not match the negotiation")
)

// Errors returned by an established Session. They reject one message and
// leave the session usable.
var (
	ErrReplay               = errors.New("authn: replayed or stale data message")
	ErrAuthenticationFailed = errors.New("authn: data message failed authentication")
	ErrPayloadTooLarge      = errors.New("authn: payload exceeds negotiated maximum message size")
	ErrSessionClosed        = errors.New("authn: session closed")
)

var fatal = []error{
	ErrUnexpectedMessageType,
	ErrNoCommonMode,
	ErrInvalidCurvePoint,
	ErrSignatureVerificationFailed,
	ErrProtocolVersionMismatch,
	ErrUnsupportedScheme,
	ErrUnknownPeer,
	ErrIdentityMismatch,
}

// IsFatal reports whether err destroyed the negotiation that returned it.
// Fatal errors are permanent: the peer is misbehaving or misconfigured and
// retrying the same exchange cannot succeed.
func IsFatal(err error) bool {
	for _, f := range fatal {
		if errors.Is(err, f) {
			return true
		}
	}
	return false
}

// Reason maps an error to a short label for logs and metrics.
func Reason(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrUnexpectedMessageType):
		return "unexpected_message"
	case errors.Is(err, ErrNoCommonMode):
		return "no_common_mode"
	case errors.Is(err, ErrInvalidCurvePoint):
		return "invalid_curve_point"
	case errors.Is(err, ErrSignatureVerificationFailed):
		return "bad_signature"
	case errors.Is(err, ErrProtocolVersionMismatch):
		return "version_mismatch"
	case errors.Is(err, ErrUnsupportedScheme):
		return "unsupported_scheme"
	case errors.Is(err, ErrUnknownPeer):
		return "unknown_peer"
	case errors.Is(err, ErrIdentityMismatch):
		return "identity_mismatch"
	case errors.Is(err, ErrReplay):
		return "replay"
	case errors.Is(err, ErrAuthenticationFailed):
		return "auth_failed"
	case errors.Is(err, ErrPayloadTooLarge):
		return "too_large"
	default:
		return "other"
	}
}
