package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pandemonium-osu/pandemonium-backend/internal/platform/logger"
	"github.com/pandemonium-osu/pandemonium-backend/internal/services"
)

type OAuthHandler struct {
	log         *logger.Logger
	authService services.AuthService
}

func NewOAuthHandler(log *logger.Logger, authService services.AuthService) *OAuthHandler {
	return &OAuthHandler{
		log:         log.With("handler", "OAuthHandler"),
		authService: authService,
	}
}

// Authorize redirects the browser to the upstream consent screen.
func (h *OAuthHandler) Authorize(c *gin.Context) {
	target, err := h.authService.AuthorizeURL(c.Request.Context())
	if err != nil {
		h.log.Error("failed to build authorize url", "error", err)
		RespondServiceError(c, err)
		return
	}
	c.Redirect(http.StatusTemporaryRedirect, target)
}

func (h *OAuthHandler) Callback(c *gin.Context) {
	code := c.Query("code")
	state := c.Query("state")
	if code == "" || state == "" {
		RespondError(c, http.StatusBadRequest, "missing_params", fmt.Errorf("code and state query params required"))
		return
	}

	token, player, err := h.authService.HandleCallback(c.Request.Context(), code, state)
	if err != nil {
		h.log.Warn("oauth callback failed", "error", err)
		RespondServiceError(c, err)
		return
	}

	RespondOK(c, gin.H{
		"token":  token,
		"player": player,
	})
}
