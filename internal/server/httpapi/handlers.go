package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gatherhall/doorsync/internal/api"
	"github.com/gatherhall/doorsync/internal/common"
	"github.com/gatherhall/doorsync/internal/server/models"
	"github.com/gatherhall/doorsync/internal/server/storage"
)

func (s *Server) handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "server_time": time.Now().UTC()})
}

// handleSync applies a batch of queued device actions and returns per-action
// outcomes plus the fresh roster, so one round trip both drains the queue
// and replaces the client's cached snapshot.
func (s *Server) handleSync(c *gin.Context) {
	eventID := c.Param("id")

	var req api.BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}
	if req.DeviceID == "" {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "missing device_id"})
		return
	}
	for i := range req.Actions {
		if err := req.Actions[i].Validate(); err != nil {
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
			return
		}
		if req.Actions[i].EventID != eventID {
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "action event_id does not match route"})
			return
		}
	}

	outcomes, err := s.engine.Reconcile(c.Request.Context(), req.DeviceID, req.Actions)
	if err != nil {
		s.respondError(c, err)
		return
	}

	attendees, err := s.roster.GetAttendees(c.Request.Context(), eventID, models.RosterFilters{})
	if err != nil {
		s.respondError(c, err)
		return
	}
	capacity, err := s.roster.GetCapacity(c.Request.Context(), eventID)
	if err != nil {
		s.respondError(c, err)
		return
	}

	// The submitted actions all leave the device's queue whatever their
	// outcome, so the remaining pending count is what the device reported
	// minus this batch.
	remaining := req.PendingCount - len(req.Actions)
	if remaining < 0 {
		remaining = 0
	}
	s.recordDeviceStatus(c.Request.Context(), req.DeviceID, staffID(c), remaining)

	c.JSON(http.StatusOK, api.BatchResponse{
		Outcomes:   outcomes,
		Attendees:  attendees,
		Capacity:   *capacity,
		ServerTime: time.Now().UTC(),
	})
}

func (s *Server) handleAttendees(c *gin.Context) {
	eventID := c.Param("id")
	filters := models.RosterFilters{
		Status:           api.ParticipationStatus(c.Query("status")),
		RegistrationType: api.RegistrationType(c.Query("registration_type")),
	}

	attendees, err := s.roster.GetAttendees(c.Request.Context(), eventID, filters)
	if err != nil {
		s.respondError(c, err)
		return
	}
	capacity, err := s.roster.GetCapacity(c.Request.Context(), eventID)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, api.RosterResponse{
		Attendees:  attendees,
		Capacity:   *capacity,
		ServerTime: time.Now().UTC(),
	})
}

func (s *Server) handleCapacity(c *gin.Context) {
	capacity, err := s.roster.GetCapacity(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, capacity)
}

func (s *Server) handleDashboard(c *gin.Context) {
	dashboard, err := s.roster.Dashboard(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dashboard)
}

func (s *Server) handleHeartbeat(c *gin.Context) {
	var req api.HeartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}
	if req.DeviceID == "" {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "missing device_id"})
		return
	}

	s.recordDeviceStatus(c.Request.Context(), req.DeviceID, staffID(c), req.PendingCount)
	c.Status(http.StatusNoContent)
}

func (s *Server) handlePendingCount(c *gin.Context) {
	var resp api.PendingCountResponse
	err := s.store.InTx(c.Request.Context(), func(ctx context.Context, tx storage.Tx) error {
		var err error
		resp.Pending, resp.Devices, err = tx.PendingCountForStaff(ctx, staffID(c))
		return err
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// recordDeviceStatus is best effort: a failed bookkeeping write never fails
// the request that carried it.
func (s *Server) recordDeviceStatus(ctx context.Context, deviceID, staff string, pending int) {
	err := s.store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		return tx.UpsertDeviceStatus(ctx, &models.DeviceStatus{
			DeviceID:     deviceID,
			StaffID:      staff,
			PendingCount: pending,
			ReportedAt:   time.Now().UTC(),
		})
	})
	if err != nil {
		s.logger.Warn(ctx, "device status update failed", "device_id", deviceID, "error", err)
	}
}

func (s *Server) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, common.ErrValidation):
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
	case errors.Is(err, common.ErrNotFound):
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: err.Error()})
	default:
		s.logger.Error(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusServiceUnavailable, api.ErrorResponse{Error: "temporarily unavailable"})
	}
}
