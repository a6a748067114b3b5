package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"hms-backend/internal/service"
	"hms-backend/pkg/utils"
)

const refreshCookie = "refresh_token"

type AuthHandler struct {
	authService  *service.AuthService
	log          *zap.Logger
	secureCookie bool
}

func NewAuthHandler(authService *service.AuthService, log *zap.Logger, secureCookie bool) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		log:          log,
		secureCookie: secureCookie,
	}
}

type LoginRequest struct {
	Username string `json:"username" binding:"required,max=150"`
	Password string `json:"password" binding:"required"`
}

// Login handles user authentication
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	response, err := h.authService.Login(c.Request.Context(), req.Username, req.Password, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	// Set refresh token as HttpOnly cookie
	maxAge := int(time.Until(response.ExpiresAt).Seconds())
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(refreshCookie, response.RefreshToken, maxAge, "/", "", h.secureCookie, true)

	utils.SuccessResponse(c, gin.H{
		"access_token": response.AccessToken,
		"expires_in":   int(utils.GetAccessTokenExpiry().Seconds()),
		"user":         response.User,
	})
}

// Refresh generates a new access token from refresh token
func (h *AuthHandler) Refresh(c *gin.Context) {
	refreshToken, err := c.Cookie(refreshCookie)
	if err != nil {
		utils.ErrorResponse(c, http.StatusUnauthorized, "Refresh token not found")
		return
	}

	accessToken, err := h.authService.RefreshAccessToken(c.Request.Context(), refreshToken)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"access_token": accessToken,
		"expires_in":   int(utils.GetAccessTokenExpiry().Seconds()),
	})
}

// Logout closes the session and clears the refresh cookie
func (h *AuthHandler) Logout(c *gin.Context) {
	refreshToken, _ := c.Cookie(refreshCookie)

	if err := h.authService.Logout(c.Request.Context(), actorFrom(c), refreshToken); err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	c.SetCookie(refreshCookie, "", -1, "/", "", h.secureCookie, true)
	utils.MessageResponse(c, "Logged out successfully")
}

// Me returns the current user with their capabilities
func (h *AuthHandler) Me(c *gin.Context) {
	me, err := h.authService.Me(c.Request.Context(), actorFrom(c).UserID)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	utils.SuccessResponse(c, me)
}

// Sessions lists the current user's recent sessions
func (h *AuthHandler) Sessions(c *gin.Context) {
	sessions, err := h.authService.Sessions(c.Request.Context(), actorFrom(c).UserID)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	utils.SuccessResponse(c, sessions)
}
