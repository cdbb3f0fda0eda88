package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"cvhub/internal/auth"
)

const (
	identityKey  = "identity"
	claimsCtxKey = "authClaims"
)

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// AuthMiddleware 校验访问令牌并将请求者身份注入上下文。
func AuthMiddleware(authService *auth.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		rawToken := bearerToken(c)
		if rawToken == "" {
			abortUnauthorized(c)
			return
		}

		claims, err := authService.ValidateToken(rawToken)
		if err != nil || claims.TokenType != "access" {
			abortUnauthorized(c)
			return
		}

		c.Set(identityKey, claims.Identity)
		c.Set(claimsCtxKey, claims)
		c.Next()
	}
}

// OptionalAuthMiddleware 尽力解析访问令牌，解析不出来就按匿名继续。
// 公开读路径依赖它：身份要么解析完成要么确定为匿名，之后才做可见性裁决。
func OptionalAuthMiddleware(authService *auth.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rawToken := bearerToken(c); rawToken != "" {
			if claims, err := authService.ValidateToken(rawToken); err == nil && claims.TokenType == "access" {
				c.Set(identityKey, claims.Identity)
				c.Set(claimsCtxKey, claims)
			}
		}
		c.Next()
	}
}

// IdentityFromContext 返回已解析的请求者身份；匿名请求返回空串。
func IdentityFromContext(c *gin.Context) (string, bool) {
	value, exists := c.Get(identityKey)
	if !exists {
		return "", false
	}
	identity, ok := value.(string)
	if !ok || identity == "" {
		return "", false
	}
	return identity, true
}

// ClaimsFromContext 返回完整的令牌声明。
func ClaimsFromContext(c *gin.Context) (*auth.TokenClaims, bool) {
	value, exists := c.Get(claimsCtxKey)
	if !exists {
		return nil, false
	}
	claims, ok := value.(*auth.TokenClaims)
	return claims, ok
}
