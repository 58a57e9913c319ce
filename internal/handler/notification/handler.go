package notification

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pushmint/notify-api/internal/model"
	"github.com/pushmint/notify-api/internal/service/notification"
	"github.com/pushmint/notify-api/pkg/errors"
	"github.com/pushmint/notify-api/pkg/httputil"
)

type Handler struct {
	service notification.Service
}

func NewHandler(service notification.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	registerValidations()

	notifications := r.Group("/notifications")
	{
		notifications.POST("", h.SendNotification)
		notifications.GET("", h.ListNotifications)
		notifications.GET("/:id", h.GetNotification)
		notifications.PUT("/:id", h.UpdateNotification)
		notifications.POST("/:id/cancel", h.CancelNotification)
	}
}

// SendNotification creates a notification request, dispatching immediately or
// acknowledging the schedule.
func (h *Handler) SendNotification(c *gin.Context) {
	var req model.CreateNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.Validation(err.Error()))
		return
	}

	result, err := h.service.Send(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	if result.Scheduled {
		httputil.RespondWithCreated(c, result)
		return
	}
	httputil.RespondWithSuccess(c, result)
}

func (h *Handler) GetNotification(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.Validation("invalid notification ID"))
		return
	}

	req, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, req)
}

func (h *Handler) UpdateNotification(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.Validation("invalid notification ID"))
		return
	}

	var patch model.UpdateNotificationRequest
	if err := c.ShouldBindJSON(&patch); err != nil {
		httputil.RespondWithError(c, errors.Validation(err.Error()))
		return
	}

	req, err := h.service.Edit(c.Request.Context(), id, &patch)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, req)
}

func (h *Handler) CancelNotification(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.Validation("invalid notification ID"))
		return
	}

	req, err := h.service.Cancel(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, req)
}

func (h *Handler) ListNotifications(c *gin.Context) {
	var filters model.NotificationFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		httputil.RespondWithError(c, errors.Validation(err.Error()))
		return
	}

	reqs, total, err := h.service.List(c.Request.Context(), &filters)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithPagination(c, reqs, filters.Page, filters.Limit(), total)
}
