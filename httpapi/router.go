package httpapi

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ridgelock-io/authcore"
)

// Server binds the engine to a gin router.
type Server struct {
	engine *authcore.Engine
	log    *zap.Logger
}

// NewServer describes the newserver operation and its observable behavior.
//
// NewServer may return an error when input validation, dependency calls, or security checks fail.
// NewServer does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewServer(engine *authcore.Engine, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{engine: engine, log: log}
}

// Router builds the REST surface. The caller owns the returned gin engine
// and decides how to serve it.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(clientContext)

	router.POST("/login", s.handleLogin)
	router.POST("/verify-otp", s.handleVerifyOTP)
	router.POST("/send-otp", s.handleSendOTP)
	router.POST("/mfa/verify", s.handleMFAVerify)
	router.POST("/refresh", s.handleRefresh)
	router.POST("/logout", s.handleLogout)

	router.POST("/qr/generate", s.handleQRGenerate)
	router.POST("/qr/confirm", s.handleQRConfirm)
	router.GET("/qr/status/:sessionId", s.handleQRStatus)

	authed := router.Group("/", s.requireAuth)
	authed.POST("/mfa/enable", s.handleMFAEnable)
	authed.POST("/mfa/backup-codes", s.handleBackupCodes)
	authed.GET("/devices", s.handleListDevices)
	authed.DELETE("/devices/:id", s.handleRemoveDevice)

	return router
}
