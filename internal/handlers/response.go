package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pandemonium-osu/pandemonium-backend/internal/platform/apierr"
	"github.com/pandemonium-osu/pandemonium-backend/internal/platform/osuapi"
	"github.com/pandemonium-osu/pandemonium-backend/internal/recommend"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Success bool     `json:"success"`
	Error   APIError `json:"error"`
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": payload})
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondServiceError maps domain error kinds onto HTTP statuses. The
// no-candidates case is a 500 on purpose: an authenticated player with
// activity should always yield candidates, so surfacing it loudly beats
// returning a quietly empty feed.
func RespondServiceError(c *gin.Context, err error) {
	var apiErr *apierr.Error
	if errors.As(err, &apiErr) {
		RespondError(c, apiErr.Status, apiErr.Code, apiErr)
		return
	}
	if osuapi.IsTimeout(err) {
		RespondError(c, http.StatusServiceUnavailable, "upstream_unavailable", err)
		return
	}

	switch recommend.KindOf(err) {
	case recommend.KindNotFound:
		RespondError(c, http.StatusNotFound, "not_found", err)
	case recommend.KindNoEmbedding:
		RespondError(c, http.StatusNotFound, "no_embedding", err)
	case recommend.KindEmptyActivity:
		RespondError(c, http.StatusNotFound, "empty_activity", err)
	case recommend.KindNoCandidates:
		RespondError(c, http.StatusInternalServerError, "no_candidates", err)
	case recommend.KindTransient:
		RespondError(c, http.StatusServiceUnavailable, "upstream_unavailable", err)
	default:
		RespondError(c, http.StatusInternalServerError, "internal_error", err)
	}
}
