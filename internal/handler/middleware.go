package handler

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bestiary-server/internal/models"
)

const principalKey = "principal"

// AuthMiddleware проверяет Bearer-токен и кладет Principal в контекст gin.
func (h *MonsterHandler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			h.logger.Warn("Authorization header missing", zap.String("path", c.Request.URL.Path))
			tokenVerificationsTotal.WithLabelValues("failure").Inc()
			handleAuthError(c, errMissingToken)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			h.logger.Warn("Malformed Authorization header", zap.String("path", c.Request.URL.Path))
			tokenVerificationsTotal.WithLabelValues("failure").Inc()
			handleAuthError(c, models.ErrTokenMalformed)
			return
		}

		claims, err := h.verifier.VerifyToken(c.Request.Context(), parts[1])
		if err != nil {
			tokenVerificationsTotal.WithLabelValues("failure").Inc()
			handleAuthError(c, err)
			return
		}

		tokenVerificationsTotal.WithLabelValues("success").Inc()
		c.Set(principalKey, models.PrincipalFromClaims(claims))
		c.Next()
	}
}

// mustPrincipal достает Principal, положенный AuthMiddleware.
func mustPrincipal(c *gin.Context) models.Principal {
	return c.MustGet(principalKey).(models.Principal)
}
