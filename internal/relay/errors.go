package relay

import "errors"

// Error taxonomy for the signaling surface to map onto HTTP status codes.
// Background tasks (forwarding, PLI, RTCP drain) never surface these; they
// just terminate, since by the time they fail the peer connection already
// has.
var (
	// ErrBadUUID marks a session-id path segment that isn't a valid UUID.
	ErrBadUUID = errors.New("bad-uuid")
	// ErrMalformedFragment marks a trickle-ICE fragment missing or
	// duplicating its ice-ufrag/ice-pwd lines.
	ErrMalformedFragment = errors.New("malformed-sdp-fragment")
	// ErrSessionNotFound marks a session id with no live registry entry.
	ErrSessionNotFound = errors.New("session-not-found")
	// ErrWrongContentType marks a request body whose content type isn't the
	// one its route accepts: application/sdp for a WHIP/WHEP offer,
	// application/trickle-ice-sdpfrag for a trickle-ICE PATCH.
	ErrWrongContentType = errors.New("wrong-content-type")
	// ErrStack wraps any error surfaced by the underlying WebRTC stack.
	ErrStack = errors.New("stack-failure")
)
