package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pandemonium-osu/pandemonium-backend/internal/platform/logger"
	"github.com/pandemonium-osu/pandemonium-backend/internal/requestdata"
	"github.com/pandemonium-osu/pandemonium-backend/internal/services"
)

type DiscoveryHandler struct {
	log              *logger.Logger
	discoveryService services.DiscoveryService
}

func NewDiscoveryHandler(log *logger.Logger, discoveryService services.DiscoveryService) *DiscoveryHandler {
	return &DiscoveryHandler{
		log:              log.With("handler", "DiscoveryHandler"),
		discoveryService: discoveryService,
	}
}

// Feed handles GET /api/feed/discovery?limit&mode.
func (h *DiscoveryHandler) Feed(c *gin.Context) {
	player := requestdata.CurrentPlayer(c.Request.Context())
	if player == nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("no authenticated player"))
		return
	}

	limit := parseLimit(c.Query("limit"))
	mode := c.Query("mode")

	entries, err := h.discoveryService.DiscoveryFeed(c.Request.Context(), player, limit, mode)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, entries)
}
