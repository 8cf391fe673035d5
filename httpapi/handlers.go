package httpapi

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ridgelock-io/authcore"
)

type loginRequest struct {
	Identifier string `json:"identifier" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

type loginResponse struct {
	AccountID      string `json:"account_id"`
	AccessToken    string `json:"access_token,omitempty"`
	RefreshToken   string `json:"refresh_token,omitempty"`
	StepUpRequired bool   `json:"step_up_required"`
	StepUpMethod   string `json:"step_up_method,omitempty"`
	OTPChannel     string `json:"otp_channel,omitempty"`
	Degraded       bool   `json:"degraded,omitempty"`
}

func loginPayload(result *authcore.LoginResult) loginResponse {
	return loginResponse{
		AccountID:      result.AccountID,
		AccessToken:    result.AccessToken,
		RefreshToken:   result.RefreshToken,
		StepUpRequired: result.StepUpRequired,
		StepUpMethod:   result.StepUpMethod,
		OTPChannel:     string(result.OTPChannel),
		Degraded:       result.Degraded,
	}
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "identifier and password are required")
		return
	}

	result, err := s.engine.Login(c.Request.Context(), req.Identifier, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, loginPayload(result))
}

type codeRequest struct {
	Identifier string `json:"identifier" binding:"required"`
	Code       string `json:"code" binding:"required"`
}

func (s *Server) handleVerifyOTP(c *gin.Context) {
	var req codeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "identifier and code are required")
		return
	}

	result, err := s.engine.VerifyOTPLogin(c.Request.Context(), req.Identifier, req.Code)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, loginPayload(result))
}

func (s *Server) handleMFAVerify(c *gin.Context) {
	var req codeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "identifier and code are required")
		return
	}

	result, err := s.engine.VerifyMFALogin(c.Request.Context(), req.Identifier, req.Code)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, loginPayload(result))
}

type sendOTPRequest struct {
	Identifier string `json:"identifier" binding:"required"`
}

func (s *Server) handleSendOTP(c *gin.Context) {
	var req sendOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "identifier is required")
		return
	}

	issue, err := s.engine.SendOTP(c.Request.Context(), req.Identifier)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{
		"handle":   issue.Handle,
		"channel":  string(issue.Channel),
		"degraded": issue.Degraded,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

func (s *Server) handleRefresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "refresh_token is required")
		return
	}

	pair, err := s.engine.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	})
}

func (s *Server) handleLogout(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "refresh_token is required")
		return
	}

	if err := s.engine.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, nil)
}

func (s *Server) handleMFAEnable(c *gin.Context) {
	auth, ok := authFromContext(c)
	if !ok {
		respondError(c, authcore.ErrUnauthorized)
		return
	}

	enrollment, err := s.engine.EnrollMFA(c.Request.Context(), auth.AccountID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{
		"secret":           enrollment.SecretBase32,
		"provisioning_uri": enrollment.ProvisioningURI,
		"qr_png":           enrollment.QRImagePNG,
		"backup_codes":     enrollment.BackupCodes,
	})
}

func (s *Server) handleBackupCodes(c *gin.Context) {
	auth, ok := authFromContext(c)
	if !ok {
		respondError(c, authcore.ErrUnauthorized)
		return
	}

	codes, err := s.engine.RegenerateBackupCodes(c.Request.Context(), auth.AccountID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"backup_codes": codes})
}

func (s *Server) handleQRGenerate(c *gin.Context) {
	session, err := s.engine.GenerateQRLogin(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{
		"session_id": session.SessionID,
		"payload":    session.Payload,
		"qr_png":     session.QRImagePNG,
		"expires_at": session.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

type qrConfirmRequest struct {
	SessionID   string `json:"session_id" binding:"required"`
	Identifier  string `json:"identifier"`
	Password    string `json:"password"`
	AccessToken string `json:"access_token"`
	Approve     *bool  `json:"approve" binding:"required"`
}

func (s *Server) handleQRConfirm(c *gin.Context) {
	var req qrConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "session_id and approve are required")
		return
	}

	var err error
	switch {
	case req.AccessToken != "":
		err = s.engine.ConfirmQRLoginWithToken(c.Request.Context(), req.SessionID, req.AccessToken, *req.Approve)
	case req.Identifier != "" && req.Password != "":
		err = s.engine.ConfirmQRLogin(c.Request.Context(), req.SessionID, req.Identifier, req.Password, *req.Approve)
	default:
		respondBadRequest(c, "either access_token or identifier and password are required")
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, nil)
}

func (s *Server) handleQRStatus(c *gin.Context) {
	status, err := s.engine.QRLoginStatus(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{
		"state":         string(status.State),
		"account_id":    status.AccountID,
		"access_token":  status.AccessToken,
		"refresh_token": status.RefreshToken,
	})
}

func (s *Server) handleListDevices(c *gin.Context) {
	auth, ok := authFromContext(c)
	if !ok {
		respondError(c, authcore.ErrUnauthorized)
		return
	}

	devices, err := s.engine.ListDevices(c.Request.Context(), auth.AccountID)
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]gin.H, 0, len(devices))
	for _, d := range devices {
		out = append(out, gin.H{
			"device_id":     d.DeviceID,
			"ip":            d.IP,
			"user_agent":    d.UserAgent,
			"hostname":      d.Hostname,
			"last_login_at": d.LastLoginAt.UTC().Format(time.RFC3339),
			"expires_at":    d.ExpiresAt.UTC().Format(time.RFC3339),
		})
	}
	respondOK(c, gin.H{"devices": out})
}

func (s *Server) handleRemoveDevice(c *gin.Context) {
	auth, ok := authFromContext(c)
	if !ok {
		respondError(c, authcore.ErrUnauthorized)
		return
	}

	if err := s.engine.RemoveDevice(c.Request.Context(), auth.AccountID, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	s.log.Info("trusted device removed",
		zap.String("account_id", auth.AccountID),
		zap.String("device_id", c.Param("id")))
	respondOK(c, nil)
}
