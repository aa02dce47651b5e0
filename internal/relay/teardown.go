package relay

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Teardown closes the session's peer connection and removes it from the
// registry, scoping the subscription cleanup to the session's role: a
// publisher's teardown takes every viewer of its stream key with it, while
// a viewer's teardown removes only that viewer's own track pair. streamKey
// must match the one the session was created with; a mismatch is reported
// the same as a missing session, so a caller without the right bearer
// token can't probe for a session id's existence.
func (s *Service) Teardown(ctx context.Context, sessionID uuid.UUID, streamKey string) error {
	session, ok := s.registry.Get(sessionID)
	if !ok || session.StreamKey != streamKey {
		return ErrSessionNotFound
	}

	if err := session.PC.Close(); err != nil {
		s.log.WithField("session_id", sessionID).WithError(err).Debug("error closing peer connection on teardown")
	}

	switch session.Role {
	case RoleIngest:
		s.registry.ClearKey(session.StreamKey)
	case RoleEgress:
		s.registry.Unsubscribe(session.StreamKey, session.Pair)
	}

	s.registry.Delete(sessionID)
	s.log.WithFields(map[string]interface{}{"session_id": sessionID, "stream_key": session.StreamKey}).Info("session torn down")

	return nil
}

// ParseSessionID validates a session-id path segment, rejecting a
// malformed id distinctly from an ordinary not-found.
func ParseSessionID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrBadUUID, err)
	}
	return id, nil
}
