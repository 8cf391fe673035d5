package httpapi

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ridgelock-io/authcore"
)

// Request headers carrying device context. Fingerprint identifies the device
// for the trusted-device registry; hostname is display metadata only.
const (
	headerFingerprint = "X-Device-Fingerprint"
	headerHostname    = "X-Device-Hostname"
)

const authResultKey = "httpapi.auth"

// clientContext copies connection metadata from the request into the
// context the engine reads.
func clientContext(c *gin.Context) {
	ctx := c.Request.Context()
	ctx = authcore.WithClientIP(ctx, c.ClientIP())
	ctx = authcore.WithUserAgent(ctx, c.Request.UserAgent())
	if fp := c.GetHeader(headerFingerprint); fp != "" {
		ctx = authcore.WithDeviceFingerprint(ctx, fp)
	}
	if host := c.GetHeader(headerHostname); host != "" {
		ctx = authcore.WithHostname(ctx, host)
	}
	c.Request = c.Request.WithContext(ctx)
	c.Next()
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}
	token := value[len(bearer):]
	if token == "" {
		return "", false
	}
	return token, true
}

// requireAuth validates the Authorization header and stores the result for
// the wrapped handler.
func (s *Server) requireAuth(c *gin.Context) {
	token, ok := bearerToken(c.GetHeader("Authorization"))
	if !ok {
		respondError(c, authcore.ErrUnauthorized)
		c.Abort()
		return
	}

	auth, err := s.engine.ValidateAccess(c.Request.Context(), token)
	if err != nil {
		respondError(c, authcore.ErrUnauthorized)
		c.Abort()
		return
	}

	c.Set(authResultKey, auth)
	c.Next()
}

func authFromContext(c *gin.Context) (*authcore.AuthResult, bool) {
	value, ok := c.Get(authResultKey)
	if !ok {
		return nil, false
	}
	auth, ok := value.(*authcore.AuthResult)
	return auth, ok
}
