package signaling

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nab-os/whip-go/internal/relay"
)

const sdpContentType = "application/sdp"

type handlers struct {
	svc *relay.Service
	log *logrus.Entry
}

// whipOptions answers the WHIP preflight with the server's configured ICE
// servers advertised as Link headers, so a client can pre-gather without an
// offer/answer round trip.
func (h *handlers) whipOptions(c *gin.Context) {
	writeICEServerLinks(c, h.svc)
	c.Status(http.StatusOK)
}

// whip handles POST /api/whip: the WHIP ingest offer/answer exchange.
func (h *handlers) whip(c *gin.Context) {
	offer, ok := h.readOffer(c)
	if !ok {
		return
	}
	streamKey := bearerToken(c)

	sessionID, answerSDP, err := h.svc.Ingest(c.Request.Context(), streamKey, offer)
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.writeAnswer(c, sessionID.String(), answerSDP)
}

// whep handles POST /api/whep: the WHEP egress offer/answer exchange.
func (h *handlers) whep(c *gin.Context) {
	offer, ok := h.readOffer(c)
	if !ok {
		return
	}
	streamKey := bearerToken(c)

	sessionID, answerSDP, err := h.svc.Egress(c.Request.Context(), streamKey, offer)
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.writeAnswer(c, sessionID.String(), answerSDP)
}

// patch handles PATCH /api/resource/:session_id: the trickle-ICE update.
func (h *handlers) patch(c *gin.Context) {
	sessionID, ok := h.parseSessionID(c)
	if !ok {
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.writeError(c, fmt.Errorf("%w: read body: %v", relay.ErrStack, err))
		return
	}

	contentType := strings.TrimSpace(strings.Split(c.GetHeader("Content-Type"), ";")[0])
	if err := h.svc.Patch(c.Request.Context(), sessionID, contentType, string(body)); err != nil {
		h.writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// teardown handles DELETE /api/resource/:session_id. The caller's bearer
// token must match the stream key the session was created under.
func (h *handlers) teardown(c *gin.Context) {
	sessionID, ok := h.parseSessionID(c)
	if !ok {
		return
	}
	streamKey := bearerToken(c)

	if err := h.svc.Teardown(c.Request.Context(), sessionID, streamKey); err != nil {
		h.writeError(c, err)
		return
	}

	c.Status(http.StatusOK)
}

func (h *handlers) readOffer(c *gin.Context) (string, bool) {
	contentType := strings.TrimSpace(strings.Split(c.GetHeader("Content-Type"), ";")[0])
	if contentType != sdpContentType {
		h.writeError(c, fmt.Errorf("%w: expected %s, got %q", relay.ErrWrongContentType, sdpContentType, contentType))
		return "", false
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.writeError(c, fmt.Errorf("%w: read offer body: %v", relay.ErrStack, err))
		return "", false
	}

	return string(body), true
}

func (h *handlers) parseSessionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := relay.ParseSessionID(c.Param("session_id"))
	if err != nil {
		h.writeError(c, err)
		return uuid.Nil, false
	}
	return id, true
}

// writeAnswer writes the 201 response: an SDP body, a Location header
// pointing at the new resource, and Link headers for each configured ICE
// server.
func (h *handlers) writeAnswer(c *gin.Context, sessionID, answerSDP string) {
	c.Header("Location", "/api/resource/"+sessionID)
	writeICEServerLinks(c, h.svc)
	c.Data(http.StatusCreated, sdpContentType, []byte(answerSDP))
}

func writeICEServerLinks(c *gin.Context, svc *relay.Service) {
	for _, url := range svc.ICEServerURLs() {
		c.Writer.Header().Add("Link", fmt.Sprintf(`<%s>; rel="ice-server"`, url))
	}
}

// writeError maps a relay error onto a status code: a malformed session id
// or a wrong content type is a 400, anything else (including a malformed
// trickle fragment) is a 500. A missing session is a 404.
func (h *handlers) writeError(c *gin.Context, err error) {
	// bad-uuid and wrong-content-type are client errors (400); a malformed
	// trickle fragment and any underlying stack failure are both 500, even
	// though a fragment error is client-caused.
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, relay.ErrBadUUID), errors.Is(err, relay.ErrWrongContentType):
		status = http.StatusBadRequest
	case errors.Is(err, relay.ErrSessionNotFound):
		status = http.StatusNotFound
	}

	h.log.WithError(err).WithField("status", status).Warn("request failed")
	c.String(status, err.Error())
}

// bearerToken extracts the stream key carried in the Authorization header,
// of the form "Bearer <opaque token>".
func bearerToken(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	const prefix = "Bearer "
	if strings.HasPrefix(auth, prefix) {
		return strings.TrimPrefix(auth, prefix)
	}
	return auth
}
