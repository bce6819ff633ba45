package rest

import (
	"net/http"
	"strconv"

	"github.com/KevinKickass/OpenProfinetDevice/internal/types"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	defaultJournalLimit = 50
	maxJournalLimit     = 500
)

// GET /api/v1/device/status
func (s *Server) getDeviceStatus(c *gin.Context) {
	snap := s.lm.Device().Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"state":         snap.State,
		"connected":     snap.Connected(),
		"cyclic":        snap.Cyclic,
		"arep":          snap.AREP,
		"alarm_allowed": snap.AlarmAllowed,
		"cycles":        snap.Cycles,
		"aborts":        snap.Aborts,
		"station_name":  snap.StationName,
		"updated_at":    snap.UpdatedAt,
	})
}

// GET /api/v1/device/slots
func (s *Server) getSlots(c *gin.Context) {
	snap := s.lm.Device().Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"slots": snap.Slots,
	})
}

// GET /api/v1/device/image
func (s *Server) getProcessImage(c *gin.Context) {
	image := s.lm.ProcessImage()
	c.JSON(http.StatusOK, gin.H{
		"values":  image.Snapshot(),
		"updates": image.Updates(),
	})
}

// GET /api/v1/device/journal?limit=N
func (s *Server) getJournal(c *gin.Context) {
	journal := s.lm.Journal()
	if journal == nil {
		c.JSON(http.StatusNotFound, types.NewErrorResponse(types.CodeJournalDisabled, "Connection journal disabled", nil))
		return
	}

	limit := defaultJournalLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxJournalLimit {
			c.JSON(http.StatusBadRequest, types.NewErrorResponse(types.CodeJournalBadLimit, "Invalid limit", raw))
			return
		}
		limit = n
	}

	events, err := journal.Recent(c.Request.Context(), limit)
	if err != nil {
		s.logger.Error("Failed to read connection journal", zap.Error(err))
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse(types.CodeJournalReadError, "Failed to read journal", err.Error()))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"events": events,
	})
}
