package handlers

import (
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/suPer8Hu/readmegen/internal/common"
	"github.com/suPer8Hu/readmegen/internal/generation"
	"github.com/suPer8Hu/readmegen/internal/httpapi/middleware"
)

type Handler struct {
	Jobs *generation.Service
	Log  *zap.SugaredLogger
}

func NewHandler(jobs *generation.Service, log *zap.SugaredLogger) *Handler {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Handler{Jobs: jobs, Log: log}
}

func (h *Handler) Health(c *gin.Context) {
	common.OK(c, gin.H{"status": "ok"})
}

// fail maps service errors onto the response envelope. Anything unrecognised
// is logged and reported as a 500 without details.
func (h *Handler) fail(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, generation.ErrInvalidRequest):
		common.Fail(c, http.StatusBadRequest, 10002, err.Error())
	case errors.Is(err, generation.ErrJobNotRetryable):
		common.Fail(c, http.StatusConflict, 40901, err.Error())
	case errors.Is(err, generation.ErrJobNotFound):
		common.Fail(c, http.StatusNotFound, 40401, "job not found")
	case errors.Is(err, generation.ErrResultNotReady):
		common.Fail(c, http.StatusNotFound, 40402, "result not available")
	default:
		h.Log.Errorw(op+" failed", "request_id", c.GetString(middleware.RequestIDKey), "err", err)
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
	}
}
