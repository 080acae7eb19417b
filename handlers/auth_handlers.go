package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"cardtalk/api/logger"
	"cardtalk/api/middleware"
	"cardtalk/api/models"
	"cardtalk/api/services"
	"cardtalk/api/utils"
)

const (
	adminSessionTTL  = 24 * time.Hour
	memberSessionTTL = 7 * 24 * time.Hour
)

type AuthHandlers struct {
	Auth          *services.Auth
	Secret        []byte
	SecureCookies bool
	Log           *logger.Logger
}

func NewAuthHandlers(auth *services.Auth, secret []byte, secureCookies bool, log *logger.Logger) *AuthHandlers {
	return &AuthHandlers{Auth: auth, Secret: secret, SecureCookies: secureCookies, Log: log}
}

func (h *AuthHandlers) setSession(c *gin.Context, name, token string, ttl time.Duration) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, token, int(ttl/time.Second), "/", "", h.SecureCookies, true)
}

func (h *AuthHandlers) clearSession(c *gin.Context, name string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, "", -1, "/", "", h.SecureCookies, true)
}

func (h *AuthHandlers) AdminLogin(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username and password are required"})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	admin, err := h.Auth.AuthenticateAdmin(ctx, req.Username, req.Password)
	if err != nil {
		respondError(c, h.Log, err, "Login failed")
		return
	}

	claims := utils.Claims{Kind: utils.KindAdmin, Name: admin.Username, Permissions: admin.Permissions}
	claims.Subject = admin.Username
	token, err := utils.GenerateJWT(h.Secret, claims, adminSessionTTL)
	if err != nil {
		respondError(c, h.Log, err, "Failed to create session")
		return
	}
	h.setSession(c, middleware.AdminCookie, token, adminSessionTTL)

	h.Log.Info("admin logged in", "username", admin.Username)
	c.JSON(http.StatusOK, success(gin.H{
		"user": gin.H{"username": admin.Username, "permissions": admin.Permissions},
	}))
}

func (h *AuthHandlers) AdminLogout(c *gin.Context) {
	h.clearSession(c, middleware.AdminCookie)
	c.JSON(http.StatusOK, success(nil))
}

func (h *AuthHandlers) AdminMe(c *gin.Context) {
	claims, _ := middleware.Claims(c)
	c.JSON(http.StatusOK, gin.H{
		"authenticated": true,
		"user":          gin.H{"username": claims.Subject, "permissions": claims.Permissions},
	})
}

func (h *AuthHandlers) MemberRegister(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A valid email, a display name and a password of at least 8 characters are required"})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	member, err := h.Auth.RegisterMember(ctx, req)
	if err != nil {
		respondError(c, h.Log, err, "Failed to register")
		return
	}
	c.JSON(http.StatusCreated, success(gin.H{
		"member": gin.H{"email": member.Email, "displayName": member.DisplayName},
	}))
}

func (h *AuthHandlers) MemberLogin(c *gin.Context) {
	var req models.MemberLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email and password are required"})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	member, err := h.Auth.AuthenticateMember(ctx, req.Email, req.Password)
	if err != nil {
		respondError(c, h.Log, err, "Login failed")
		return
	}

	claims := utils.Claims{Kind: utils.KindMember, Name: member.DisplayName, Email: member.Email}
	claims.Subject = member.Email
	token, err := utils.GenerateJWT(h.Secret, claims, memberSessionTTL)
	if err != nil {
		respondError(c, h.Log, err, "Failed to create session")
		return
	}
	h.setSession(c, middleware.MemberCookie, token, memberSessionTTL)

	c.JSON(http.StatusOK, success(gin.H{
		"member": gin.H{"email": member.Email, "displayName": member.DisplayName},
	}))
}

func (h *AuthHandlers) MemberLogout(c *gin.Context) {
	h.clearSession(c, middleware.MemberCookie)
	c.JSON(http.StatusOK, success(nil))
}

func (h *AuthHandlers) MemberMe(c *gin.Context) {
	claims, _ := middleware.Claims(c)
	c.JSON(http.StatusOK, gin.H{
		"authenticated": true,
		"member":        gin.H{"email": claims.Email, "displayName": claims.Name},
	})
}
