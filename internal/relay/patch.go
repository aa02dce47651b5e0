package relay

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
)

// trickleContentType is the only content type a trickle-ICE PATCH body may
// declare.
const trickleContentType = "application/trickle-ice-sdpfrag"

// Patch implements the trickle-ICE PATCH operation. It accepts either a new
// remote ICE candidate for the session's current ICE generation, or an
// ice-ufrag/ice-pwd pair belonging to a new generation, in which case it
// triggers a local ICE restart instead of adding a candidate.
func (s *Service) Patch(ctx context.Context, sessionID uuid.UUID, contentType, fragment string) error {
	if contentType != trickleContentType {
		return fmt.Errorf("%w: %s", ErrWrongContentType, contentType)
	}

	session, ok := s.registry.Get(sessionID)
	if !ok {
		return ErrSessionNotFound
	}

	ufrag, pwd, candidates, err := parseTrickleFragment(fragment)
	if err != nil {
		return err
	}

	remote := session.PC.RemoteDescription()
	if remote == nil {
		return fmt.Errorf("%w: no remote description set", ErrMalformedFragment)
	}
	currentUfrag, currentPwd, err := parseICECredentials(remote.SDP)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedFragment, err)
	}

	if ufrag == currentUfrag && pwd == currentPwd {
		for _, candidate := range candidates {
			if err := session.PC.AddICECandidate(webrtc.ICECandidateInit{Candidate: candidate}); err != nil {
				return fmt.Errorf("%w: add ice candidate: %v", ErrStack, err)
			}
		}
		return nil
	}

	return s.restartICE(session)
}

// restartICE starts a new ICE generation on session's peer connection, for
// a fragment carrying credentials the session hasn't seen yet. It creates
// an ICE-restart offer and applies it as the local description; the offer
// is not returned in-band to the caller.
func (s *Service) restartICE(session *Session) error {
	offer, err := session.PC.CreateOffer(&webrtc.OfferOptions{ICERestart: true})
	if err != nil {
		return fmt.Errorf("%w: create ice restart offer: %v", ErrStack, err)
	}
	if err := session.PC.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("%w: set local description: %v", ErrStack, err)
	}
	return nil
}

// parseTrickleFragment extracts the ice-ufrag, ice-pwd, and candidate lines
// from a trickle-ice-sdpfrag body. Exactly one ufrag and one pwd line are
// required; zero or more candidate lines are allowed.
func parseTrickleFragment(fragment string) (ufrag, pwd string, candidates []string, err error) {
	lines := strings.Split(strings.ReplaceAll(fragment, "\r\n", "\n"), "\n")

	for _, line := range lines {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "a=ice-ufrag:"):
			if ufrag != "" {
				return "", "", nil, fmt.Errorf("%w: duplicate ice-ufrag", ErrMalformedFragment)
			}
			ufrag = strings.TrimPrefix(line, "a=ice-ufrag:")
		case strings.HasPrefix(line, "a=ice-pwd:"):
			if pwd != "" {
				return "", "", nil, fmt.Errorf("%w: duplicate ice-pwd", ErrMalformedFragment)
			}
			pwd = strings.TrimPrefix(line, "a=ice-pwd:")
		case strings.HasPrefix(line, "a=candidate:"):
			candidates = append(candidates, strings.TrimPrefix(line, "a="))
		}
	}

	if ufrag == "" || pwd == "" {
		return "", "", nil, fmt.Errorf("%w: missing ice-ufrag or ice-pwd", ErrMalformedFragment)
	}

	return ufrag, pwd, candidates, nil
}

// parseICECredentials extracts the ice-ufrag/ice-pwd in force for sdp,
// used to tell whether an incoming fragment belongs to the session's
// current ICE generation.
func parseICECredentials(sdp string) (ufrag, pwd string, err error) {
	for _, line := range strings.Split(strings.ReplaceAll(sdp, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "a=ice-ufrag:"):
			ufrag = strings.TrimPrefix(line, "a=ice-ufrag:")
		case strings.HasPrefix(line, "a=ice-pwd:"):
			pwd = strings.TrimPrefix(line, "a=ice-pwd:")
		}
		if ufrag != "" && pwd != "" {
			return ufrag, pwd, nil
		}
	}
	return "", "", fmt.Errorf("no ice-ufrag/ice-pwd found in session description")
}
