package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pandemonium-osu/pandemonium-backend/internal/platform/logger"
	"github.com/pandemonium-osu/pandemonium-backend/internal/services"
	"github.com/pandemonium-osu/pandemonium-backend/internal/types"
)

type BeatmapsetHandler struct {
	log               *logger.Logger
	similarityService services.SimilarityService
}

func NewBeatmapsetHandler(log *logger.Logger, similarityService services.SimilarityService) *BeatmapsetHandler {
	return &BeatmapsetHandler{
		log:               log.With("handler", "BeatmapsetHandler"),
		similarityService: similarityService,
	}
}

// Similar handles GET /api/beatmapsets/:id/similar?limit&mode.
func (h *BeatmapsetHandler) Similar(c *gin.Context) {
	beatmapsetID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || beatmapsetID <= 0 {
		RespondError(c, http.StatusBadRequest, "invalid_id", fmt.Errorf("beatmapset id must be a positive integer"))
		return
	}

	limit := parseLimit(c.Query("limit"))
	mode := c.DefaultQuery("mode", types.ModeStandard)

	sets, err := h.similarityService.SimilarBeatmapsets(c.Request.Context(), beatmapsetID, limit, mode)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, sets)
}

func parseLimit(raw string) int {
	if raw == "" {
		return 0
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0
	}
	return limit
}
