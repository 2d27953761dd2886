package shared

import (
	"rescuelink/internal/models"
	"rescuelink/internal/services"
	"rescuelink/internal/utils"
	"rescuelink/pkg/logger"
	"rescuelink/pkg/websocket"

	"github.com/gin-gonic/gin"
)

// DashboardHandler serves the authority console: the live alert list, the
// ack endpoint dispatchers press, and the websocket stream.
type DashboardHandler struct {
	projector  services.ProjectorService
	sosService services.SOSService
	wsHandler  *websocket.Handler
	logger     *logger.Logger
}

func NewDashboardHandler(
	projector services.ProjectorService,
	sosService services.SOSService,
	wsHandler *websocket.Handler,
	log *logger.Logger,
) *DashboardHandler {
	return &DashboardHandler{
		projector:  projector,
		sosService: sosService,
		wsHandler:  wsHandler,
		logger:     log.WithComponent("dashboard_handler"),
	}
}

// ListAlerts renders the active alert board, newest first.
func (h *DashboardHandler) ListAlerts(c *gin.Context) {
	views, err := h.projector.ActiveAlerts(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to project active alerts")
		utils.InternalServerErrorResponse(c)
		return
	}

	params := utils.GetPaginationParams(c)
	start, end := params.Slice(len(views))
	page := views[start:end]

	utils.SuccessResponseWithMeta(c, "Active alerts", page, &utils.Meta{
		Pagination: utils.BuildPaginationMeta(params, int64(len(views))),
		Count:      len(page),
	})
}

func (h *DashboardHandler) GetAlert(c *gin.Context) {
	view, err := h.projector.AlertByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.NotFoundResponse(c, "Alert")
		return
	}
	utils.SuccessResponse(c, "Alert retrieved", view)
}

// AckAlert is the dispatcher's "responding" button. Idempotent: pressing it
// twice, or after the poller already recorded the ack, changes nothing.
func (h *DashboardHandler) AckAlert(c *gin.Context) {
	eventID := c.Param("id")
	if err := h.sosService.Acknowledge(c.Request.Context(), eventID, models.AckSourceDashboard); err != nil {
		h.logger.WithEventID(eventID).WithError(err).Error("Dashboard ack failed")
		utils.NotFoundResponse(c, "Alert")
		return
	}
	utils.SuccessResponse(c, "Alert acknowledged", nil)
}

// ResolveAlert archives a handled alert off the board. Records an ack first
// in case the alert was never acknowledged through another channel.
func (h *DashboardHandler) ResolveAlert(c *gin.Context) {
	eventID := c.Param("id")
	if err := h.sosService.Acknowledge(c.Request.Context(), eventID, models.AckSourceDashboard); err != nil {
		h.logger.WithEventID(eventID).WithError(err).Error("Dashboard resolve failed")
		utils.NotFoundResponse(c, "Alert")
		return
	}
	event, err := h.sosService.GetEvent(c.Request.Context(), eventID)
	if err != nil {
		utils.NotFoundResponse(c, "Alert")
		return
	}
	if err := h.sosService.Resolve(c.Request.Context(), eventID, event.UserID); err != nil {
		h.logger.WithEventID(eventID).WithError(err).Error("Dashboard resolve failed")
		utils.InternalServerErrorResponse(c)
		return
	}
	utils.SuccessResponse(c, "Alert resolved", nil)
}

// Stream upgrades the request onto the live alert feed.
func (h *DashboardHandler) Stream(c *gin.Context) {
	if err := h.wsHandler.ServeWS(c.Writer, c.Request); err != nil {
		h.logger.WithError(err).Warn("Websocket upgrade failed")
	}
}
