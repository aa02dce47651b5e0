// Package signaling exposes the WHIP/WHEP HTTP surface over the relay
// package's four operations, via gin.
package signaling

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/nab-os/whip-go/internal/relay"
)

// NewRouter builds the gin engine for the signaling surface: CORS and
// security headers on every route, structured request logging, the
// WHIP/WHEP/trickle-ICE/teardown routes, and the viewer web app served as
// static files.
func NewRouter(svc *relay.Service, staticDir string, log *logrus.Entry) *gin.Engine {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(log))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())

	h := &handlers{svc: svc, log: log}

	api := r.Group("/api")
	{
		api.OPTIONS("/whip", h.whipOptions)
		api.POST("/whip", h.whip)
		api.POST("/whep", h.whep)
		api.PATCH("/resource/:session_id", h.patch)
		api.DELETE("/resource/:session_id", h.teardown)
	}

	r.Static("/static", staticDir)
	r.GET("/", func(c *gin.Context) {
		c.File(staticDir + "/index.html")
	})

	r.NoRoute(func(c *gin.Context) {
		c.String(http.StatusNotFound, "not found")
	})

	return r
}

// requestLogger logs one line per request with its method, path, and
// status, via structured logrus fields.
func requestLogger(log *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		log.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"status": c.Writer.Status(),
		}).Debug("request handled")
	}
}

// corsMiddleware allows any origin, and any request header, to call the
// signaling surface. Methods allowed are POST, DELETE, PATCH; OPTIONS
// /whip is a real route with its own handler rather than a generic
// preflight short-circuit. A preflight's requested headers are reflected
// back verbatim; a non-preflight request gets a literal "*" since there
// is no Access-Control-Request-Headers to reflect.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "POST, DELETE, PATCH")
		if requested := c.GetHeader("Access-Control-Request-Headers"); requested != "" {
			c.Header("Access-Control-Allow-Headers", requested)
		} else {
			c.Header("Access-Control-Allow-Headers", "*")
		}
		c.Header("Access-Control-Expose-Headers", "Location, Link")
		c.Next()
	}
}

// securityHeaders sets the Permissions-Policy header on every response,
// restricting autoplay to same-origin embeds.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Permissions-Policy", "autoplay=(self)")
		c.Next()
	}
}
