package handlers

import (
	"net/http"

	"thesis-portal/helper"
	"thesis-portal/repositories"
	"thesis-portal/services"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	notificationService services.NotificationService
	submissionRepo      repositories.SubmissionRepository
	Helper              *helper.HTTPHelper
}

func NewNotificationHandler(notificationService services.NotificationService, submissionRepo repositories.SubmissionRepository) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
		submissionRepo:      submissionRepo,
		Helper:              &helper.HTTPHelper{},
	}
}

func (h *NotificationHandler) List(c *gin.Context) {
	username, _ := c.Get("username")

	notifications, err := h.notificationService.ListForUser(username.(string))
	if err != nil {
		h.Helper.SendTypedError(c, err)
		return
	}

	h.Helper.SendSuccess(c, "Success", notifications)
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	username, _ := c.Get("username")
	id := c.Param("id")

	if err := h.notificationService.MarkRead(id, username.(string)); err != nil {
		h.Helper.SendTypedError(c, err)
		return
	}

	h.Helper.SendSuccess(c, "Notification marked as read", h.Helper.EmptyJsonMap())
}

// Calendar serves the deadline calendar as ICS text.
func (h *NotificationHandler) Calendar(c *gin.Context) {
	subs, err := h.submissionRepo.ListAll()
	if err != nil {
		h.Helper.SendTypedError(c, err)
		return
	}

	ics := h.notificationService.CalendarICS(subs)
	c.Header("Content-Disposition", `attachment; filename="deadlines.ics"`)
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", []byte(ics))
}
