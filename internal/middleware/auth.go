package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pandemonium-osu/pandemonium-backend/internal/platform/ctxutil"
	"github.com/pandemonium-osu/pandemonium-backend/internal/platform/logger"
	"github.com/pandemonium-osu/pandemonium-backend/internal/repos"
	"github.com/pandemonium-osu/pandemonium-backend/internal/requestdata"
	"github.com/pandemonium-osu/pandemonium-backend/internal/services"
)

type AuthMiddleware struct {
	log         *logger.Logger
	authService services.AuthService
	playerRepo  repos.PlayerRepo
}

func NewAuthMiddleware(log *logger.Logger, authService services.AuthService, playerRepo repos.PlayerRepo) *AuthMiddleware {
	return &AuthMiddleware{
		log:         log.With("middleware", "AuthMiddleware"),
		authService: authService,
		playerRepo:  playerRepo,
	}
}

// RequireAuth verifies the bearer session token and loads the player into
// the request context.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid token"})
			return
		}

		playerID, err := am.authService.VerifySessionToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		player, err := am.playerRepo.GetByID(c.Request.Context(), nil, playerID)
		if err != nil {
			am.log.Error(
					"failed to load session player",
					"player_id", playerID,
					"request_id", ctxutil.RequestID(c.Request.Context()),
					"error", err,
				)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to load player"})
			return
		}
		if player == nil {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "player not found"})
			return
		}

		ctx := requestdata.WithRequestData(c.Request.Context(), &requestdata.RequestData{
			TokenString: tokenString,
			PlayerID:    playerID,
			Player:      player,
		})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return authHeader[7:]
	}
	if qToken := c.Query("token"); qToken != "" {
		return qToken
	}
	return ""
}
