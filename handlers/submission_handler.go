package handlers

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"thesis-portal/helper"
	"thesis-portal/models"
	"thesis-portal/repositories"
	"thesis-portal/services"

	"github.com/gin-gonic/gin"
)

const maxUploadSize = 10 << 20 // 10MB

var allowedExtensions = map[string]string{
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".txt":  "text/plain",
}

type SubmissionHandler struct {
	queueService      services.QueueService
	transitionService services.TransitionService
	auditRepo         repositories.AuditLogRepository
	submissionRepo    repositories.SubmissionRepository
	uploadDir         string
	Helper            *helper.HTTPHelper
}

func NewSubmissionHandler(
	queueService services.QueueService,
	transitionService services.TransitionService,
	auditRepo repositories.AuditLogRepository,
	submissionRepo repositories.SubmissionRepository,
	uploadDir string,
) *SubmissionHandler {
	return &SubmissionHandler{
		queueService:      queueService,
		transitionService: transitionService,
		auditRepo:         auditRepo,
		submissionRepo:    submissionRepo,
		uploadDir:         uploadDir,
		Helper:            &helper.HTTPHelper{},
	}
}

// Submit receives the multipart upload and creates the Stage1 version. The
// blob is written to the upload dir and treated as opaque from here on.
func (h *SubmissionHandler) Submit(c *gin.Context) {
	username, _ := c.Get("username")

	file, err := c.FormFile("file")
	if err != nil {
		h.Helper.SendBadRequest(c, "A file is required", err.Error())
		return
	}

	if file.Size > maxUploadSize {
		h.Helper.SendBadRequest(c, "File exceeds the 10MB limit", h.Helper.EmptyJsonMap())
		return
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	mimeType, ok := allowedExtensions[ext]
	if !ok {
		h.Helper.SendBadRequest(c, "Only PDF, DOC, DOCX and TXT files are accepted", h.Helper.EmptyJsonMap())
		return
	}

	var params models.SubmitParams
	if err := c.ShouldBind(&params); err != nil {
		h.Helper.SendBadRequest(c, "Error ", err.Error())
		return
	}

	var deadline *time.Time
	if params.Deadline != "" {
		t, err := time.Parse("2006-01-02", params.Deadline)
		if err != nil {
			h.Helper.SendBadRequest(c, "Deadline must be YYYY-MM-DD", h.Helper.EmptyJsonMap())
			return
		}
		deadline = &t
	}

	blobPath := filepath.Join(h.uploadDir, fmt.Sprintf("%d_%s", time.Now().UnixNano(), filepath.Base(file.Filename)))
	if err := c.SaveUploadedFile(file, blobPath); err != nil {
		h.Helper.SendTypedError(c, models.ErrorStorage{Message: err.Error()})
		return
	}

	sub, err := h.transitionService.Submit(username.(string), file.Filename, blobPath, mimeType, file.Size, deadline, params.Notes)
	if err != nil {
		h.Helper.SendTypedError(c, err)
		return
	}

	h.Helper.SendSuccess(c, "Submission created", sub)
}

// ListQueue classifies the full current snapshot for the caller's role.
func (h *SubmissionHandler) ListQueue(c *gin.Context) {
	username, _ := c.Get("username")
	role, _ := c.Get("role")

	var params models.QueueParams
	if err := c.ShouldBindQuery(&params); err != nil {
		h.Helper.SendBadRequest(c, "Error ", err.Error())
		return
	}

	subs, err := h.queueService.ListQueue(username.(string), models.UserRole(role.(string)), params)
	if err != nil {
		h.Helper.SendTypedError(c, err)
		return
	}

	h.Helper.SendSuccess(c, "Success", gin.H{
		"submissions": subs,
		"total":       len(subs),
	})
}

func (h *SubmissionHandler) ApproveToReviewer(c *gin.Context) {
	username, _ := c.Get("username")
	id, req, ok := h.bindTransition(c)
	if !ok {
		return
	}

	sub, err := h.transitionService.ApproveToReviewer(username.(string), id, req.ExpectedTime)
	if err != nil {
		h.Helper.SendTypedError(c, err)
		return
	}

	h.Helper.SendSuccess(c, "Submission sent to review", sub)
}

func (h *SubmissionHandler) ReturnToStudent(c *gin.Context) {
	username, _ := c.Get("username")
	role, _ := c.Get("role")
	id, req, ok := h.bindTransition(c)
	if !ok {
		return
	}

	sub, err := h.transitionService.ReturnToStudent(username.(string), models.UserRole(role.(string)), id, req)
	if err != nil {
		h.Helper.SendTypedError(c, err)
		return
	}

	h.Helper.SendSuccess(c, "Submission returned to student", sub)
}

func (h *SubmissionHandler) UndoSendToReviewer(c *gin.Context) {
	username, _ := c.Get("username")
	id, req, ok := h.bindTransition(c)
	if !ok {
		return
	}

	sub, err := h.transitionService.UndoSendToReviewer(username.(string), id, req.ExpectedTime)
	if err != nil {
		h.Helper.SendTypedError(c, err)
		return
	}

	h.Helper.SendSuccess(c, "Send to review undone", sub)
}

func (h *SubmissionHandler) ReturnToLibrarian(c *gin.Context) {
	username, _ := c.Get("username")
	id, req, ok := h.bindTransition(c)
	if !ok {
		return
	}

	sub, err := h.transitionService.ReturnToLibrarian(username.(string), id, req)
	if err != nil {
		h.Helper.SendTypedError(c, err)
		return
	}

	h.Helper.SendSuccess(c, "Submission returned from review", sub)
}

func (h *SubmissionHandler) ApproveToAdmin(c *gin.Context) {
	username, _ := c.Get("username")
	id, req, ok := h.bindTransition(c)
	if !ok {
		return
	}

	sub, err := h.transitionService.ApproveToAdmin(username.(string), id, req)
	if err != nil {
		h.Helper.SendTypedError(c, err)
		return
	}

	h.Helper.SendSuccess(c, "Submission approved for publication", sub)
}

func (h *SubmissionHandler) Publish(c *gin.Context) {
	username, _ := c.Get("username")
	id, ok := h.paramID(c)
	if !ok {
		return
	}

	var req models.PublishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Helper.SendBadRequest(c, "Error ", err.Error())
		return
	}

	sub, err := h.transitionService.Publish(c.Request.Context(), username.(string), id, req)
	if err != nil {
		h.Helper.SendTypedError(c, err)
		return
	}

	h.Helper.SendSuccess(c, "Submission published", sub)
}

func (h *SubmissionHandler) PurgeSentHistory(c *gin.Context) {
	username, _ := c.Get("username")
	target := c.Param("actor")

	deleted, err := h.transitionService.PurgeSentHistory(username.(string), target)
	if err != nil {
		h.Helper.SendTypedError(c, err)
		return
	}

	h.Helper.SendSuccess(c, "Sent history purged", gin.H{"deleted": deleted})
}

// Dashboard returns per-stage counts over current versions plus the audit
// trail, for the admin overview.
func (h *SubmissionHandler) Dashboard(c *gin.Context) {
	counts, err := h.submissionRepo.CountByStage()
	if err != nil {
		h.Helper.SendTypedError(c, err)
		return
	}

	entries, err := h.auditRepo.List()
	if err != nil {
		h.Helper.SendTypedError(c, err)
		return
	}

	byStage := make(map[string]int64, len(counts))
	for stage, n := range counts {
		byStage[stage.String()] = n
	}

	h.Helper.SendSuccess(c, "Success", gin.H{
		"counts_by_stage": byStage,
		"audit_log":       entries,
	})
}

func (h *SubmissionHandler) bindTransition(c *gin.Context) (uint, models.TransitionRequest, bool) {
	id, ok := h.paramID(c)
	if !ok {
		return 0, models.TransitionRequest{}, false
	}

	var req models.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Helper.SendBadRequest(c, "Error ", err.Error())
		return 0, models.TransitionRequest{}, false
	}
	return id, req, true
}

func (h *SubmissionHandler) paramID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		h.Helper.SendBadRequest(c, "Invalid submission ID", h.Helper.EmptyJsonMap())
		return 0, false
	}
	return uint(id), true
}
