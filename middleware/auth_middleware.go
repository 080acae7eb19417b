package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"cardtalk/api/utils"
)

const (
	AdminCookie  = "admin_session"
	MemberCookie = "member_session"

	claimsKey = "session_claims"
)

// Claims returns the session claims set by one of the auth middlewares.
func Claims(c *gin.Context) (*utils.Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*utils.Claims)
	return claims, ok
}

// sessionToken reads the token from the named cookie, falling back to a bearer header.
func sessionToken(c *gin.Context, cookie string) string {
	if token, err := c.Cookie(cookie); err == nil && token != "" {
		return token
	}
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

// AdminRequired rejects requests without a valid admin session.
func AdminRequired(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := sessionToken(c, AdminCookie)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		claims, err := utils.ValidateJWT(secret, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired session"})
			return
		}
		if !claims.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// MemberRequired rejects requests without a valid member session.
func MemberRequired(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := sessionToken(c, MemberCookie)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Please log in first"})
			return
		}
		claims, err := utils.ValidateJWT(secret, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired session"})
			return
		}
		if !claims.IsMember() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Member access required"})
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// OptionalMember attaches member claims when a valid session is present and
// otherwise lets the request through anonymously.
func OptionalMember(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := sessionToken(c, MemberCookie); token != "" {
			if claims, err := utils.ValidateJWT(secret, token); err == nil && claims.IsMember() {
				c.Set(claimsKey, claims)
			}
		}
		c.Next()
	}
}
