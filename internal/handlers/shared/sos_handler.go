package shared

import (
	"errors"
	"net/http"

	"rescuelink/internal/models"
	"rescuelink/internal/services"
	"rescuelink/internal/utils"
	"rescuelink/pkg/logger"

	"github.com/gin-gonic/gin"
)

const maxAttachmentSize = 25 << 20 // 25 MB

// SOSHandler serves the device-facing capture API.
type SOSHandler struct {
	sosService services.SOSService
	logger     *logger.Logger
}

func NewSOSHandler(sosService services.SOSService, log *logger.Logger) *SOSHandler {
	return &SOSHandler{
		sosService: sosService,
		logger:     log.WithComponent("sos_handler"),
	}
}

// RaiseSOS is the one-tap trigger. Returns 201 when this request created the
// event and 200 when it joined one already in flight, so a retrying client
// can tell the difference.
func (h *SOSHandler) RaiseSOS(c *gin.Context) {
	var req models.RaiseSOSRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}

	// The token identifies the user; the payload cannot trigger for
	// someone else.
	if userID, exists := c.Get(utils.ContextUserID); exists {
		req.Profile.UserID = userID.(string)
	}

	resp, err := h.sosService.RaiseSOS(c.Request.Context(), &req)
	if err != nil {
		var validationErr *services.ValidationError
		if errors.As(err, &validationErr) {
			utils.ValidationErrorResponse(c, validationErr.Fields)
			return
		}
		h.logger.WithError(err).Error("SOS capture failed")
		utils.StorageFailureResponse(c)
		return
	}

	if resp.Created {
		utils.CreatedResponse(c, "SOS captured", resp)
		return
	}
	utils.SuccessResponse(c, "Active SOS already in flight", resp)
}

// GetEvent returns the full event record, attempts and all, so the app can
// render delivery progress.
func (h *SOSHandler) GetEvent(c *gin.Context) {
	event, err := h.sosService.GetEvent(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.NotFoundResponse(c, "Event")
		return
	}
	if !h.ownsEvent(c, event) {
		utils.ForbiddenResponse(c)
		return
	}
	utils.SuccessResponse(c, "Event retrieved", event)
}

// GetActive returns the caller's in-flight event, if any.
func (h *SOSHandler) GetActive(c *gin.Context) {
	userID := c.GetString(utils.ContextUserID)
	event, err := h.sosService.GetActiveByUser(c.Request.Context(), userID)
	if err != nil {
		h.logger.WithUserID(userID).WithError(err).Error("Active event lookup failed")
		utils.InternalServerErrorResponse(c)
		return
	}
	if event == nil {
		utils.NotFoundResponse(c, "Active event")
		return
	}
	utils.SuccessResponse(c, "Active event retrieved", event)
}

// Resolve cancels the caller's alert (false alarm, or helped another way).
func (h *SOSHandler) Resolve(c *gin.Context) {
	userID := c.GetString(utils.ContextUserID)
	if err := h.sosService.Resolve(c.Request.Context(), c.Param("id"), userID); err != nil {
		h.logger.WithEventID(c.Param("id")).WithError(err).Warn("Resolve failed")
		utils.NotFoundResponse(c, "Event")
		return
	}
	utils.SuccessResponse(c, "Event resolved", nil)
}

// AttachMedia uploads scene media (photo, audio) onto an existing event.
func (h *SOSHandler) AttachMedia(c *gin.Context) {
	event, err := h.sosService.GetEvent(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.NotFoundResponse(c, "Event")
		return
	}
	if !h.ownsEvent(c, event) {
		utils.ForbiddenResponse(c)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		utils.BadRequestResponse(c, "Missing file field")
		return
	}
	if fileHeader.Size > maxAttachmentSize {
		utils.BadRequestResponse(c, "File too large")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		utils.BadRequestResponse(c, "Unreadable file")
		return
	}
	defer file.Close()

	attachment, err := h.sosService.AttachMedia(
		c.Request.Context(),
		event.ID,
		file,
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		fileHeader.Size,
	)
	if err != nil {
		h.logger.WithEventID(event.ID).WithError(err).Error("Attachment upload failed")
		utils.ErrorResponse(c, http.StatusInternalServerError, "UPLOAD_FAILED", "Failed to store attachment")
		return
	}
	utils.CreatedResponse(c, "Attachment added", attachment)
}

func (h *SOSHandler) ownsEvent(c *gin.Context, event *models.SOSEvent) bool {
	if c.GetString(utils.ContextUserRole) == utils.RoleAuthority {
		return true
	}
	return event.UserID == c.GetString(utils.ContextUserID)
}
