// Package server exposes the service desk over a JSON HTTP API.
package server

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"svcdesk/internal/complaint"
	"svcdesk/internal/desk"
	deskerrors "svcdesk/internal/errors"
	"svcdesk/internal/evidence"
	"svcdesk/internal/export"
)

// Handler serves the complaint, intake, report and export endpoints.
type Handler struct {
	desk *desk.Service
}

// NewHandler creates a handler for svc.
func NewHandler(svc *desk.Service) *Handler {
	return &Handler{desk: svc}
}

// StatusPayload is the body of PATCH /complaints/:id/status.
type StatusPayload struct {
	Status string `json:"status" binding:"required"`
}

// TechnicianPayload is the body of PATCH /complaints/:id/technician.
type TechnicianPayload struct {
	TechnicianName string `json:"technicianName" binding:"required,max=100"`
}

// PartsPayload is the body of PATCH /complaints/:id/parts. Absent fields
// are left unchanged.
type PartsPayload struct {
	PartStatus *string `json:"partStatus"`
	PartName   *string `json:"partName" binding:"omitempty,max=255"`
}

// ParsePayload is the body of POST /intake/parse.
type ParsePayload struct {
	Text string `json:"text" binding:"required"`
}

// IntakeState is the receive form as returned by the intake endpoints.
type IntakeState struct {
	Fields  complaint.Fields `json:"fields"`
	Merged  bool             `json:"merged"`
	Parsing bool             `json:"parsing"`
}

// ListComplaints serves GET /complaints?view=active|history|all&search=.
func (h *Handler) ListComplaints(c *gin.Context) {
	type listQuery struct {
		View   string `form:"view,default=active" binding:"omitempty,oneof=active history all"`
		Search string `form:"search"`
	}

	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid query", err.Error())
		return
	}

	var records []complaint.Complaint
	switch q.View {
	case "history":
		records = h.desk.History(q.Search)
	case "all":
		records = h.desk.Search(q.Search)
	default:
		records = h.desk.Active(q.Search)
	}
	if records == nil {
		records = []complaint.Complaint{}
	}
	RespondSuccess(c, http.StatusOK, records, "")
}

// GetComplaint serves GET /complaints/:id.
func (h *Handler) GetComplaint(c *gin.Context) {
	record, err := h.desk.Find(c.Param("id"))
	if err != nil {
		RespondDeskError(c, err)
		return
	}
	RespondSuccess(c, http.StatusOK, record, "")
}

// CreateComplaint serves POST /complaints.
func (h *Handler) CreateComplaint(c *gin.Context) {
	var fields complaint.Fields
	if err := c.ShouldBindJSON(&fields); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	record, err := h.desk.Create(c.Request.Context(), fields)
	RespondResult(c, http.StatusCreated, record, "complaint registered", err)
}

// UpdateStatus serves PATCH /complaints/:id/status.
func (h *Handler) UpdateStatus(c *gin.Context) {
	var payload StatusPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	record, err := h.desk.UpdateStatus(c.Request.Context(), c.Param("id"), complaint.Status(payload.Status))
	RespondResult(c, http.StatusOK, record, "", err)
}

// AssignTechnician serves PATCH /complaints/:id/technician.
func (h *Handler) AssignTechnician(c *gin.Context) {
	var payload TechnicianPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	record, err := h.desk.AssignTechnician(c.Request.Context(), c.Param("id"), strings.TrimSpace(payload.TechnicianName))
	RespondResult(c, http.StatusOK, record, "", err)
}

// UpdateParts serves PATCH /complaints/:id/parts.
func (h *Handler) UpdateParts(c *gin.Context) {
	var payload PartsPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if payload.PartStatus == nil && payload.PartName == nil {
		RespondError(c, http.StatusBadRequest, "nothing to update", "partStatus", "partName")
		return
	}

	ctx := c.Request.Context()
	id := c.Param("id")

	var (
		record complaint.Complaint
		err    error
	)
	if payload.PartStatus != nil {
		record, err = h.desk.SetPartStatus(ctx, id, complaint.PartStatus(*payload.PartStatus))
		if err != nil && record.ID == "" {
			RespondDeskError(c, err)
			return
		}
	}
	if payload.PartName != nil {
		var nameErr error
		record, nameErr = h.desk.SetPartName(ctx, id, *payload.PartName)
		if nameErr != nil && record.ID == "" {
			RespondDeskError(c, nameErr)
			return
		}
		err = nameErr
	}
	RespondResult(c, http.StatusOK, record, "", err)
}

// CloseComplaint serves POST /complaints/:id/close.
func (h *Handler) CloseComplaint(c *gin.Context) {
	var data complaint.ClosingData
	if err := c.ShouldBindJSON(&data); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	record, err := h.desk.Close(c.Request.Context(), c.Param("id"), data)
	RespondResult(c, http.StatusOK, record, "complaint closed", err)
}

// ReopenComplaint serves POST /complaints/:id/reopen.
func (h *Handler) ReopenComplaint(c *gin.Context) {
	record, err := h.desk.Reopen(c.Request.Context(), c.Param("id"))
	RespondResult(c, http.StatusOK, record, "complaint reopened", err)
}

// UploadEvidence serves POST /complaints/:id/evidence/:kind with a
// multipart "file" field.
func (h *Handler) UploadEvidence(c *gin.Context) {
	kind, err := evidence.ParseKind(c.Param("kind"))
	if err != nil {
		RespondDeskError(c, err)
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "missing file", "file")
		return
	}
	file, err := header.Open()
	if err != nil {
		RespondError(c, http.StatusBadRequest, "unreadable file", err.Error())
		return
	}
	defer file.Close()

	record, err := h.desk.AttachEvidence(c.Request.Context(), c.Param("id"), kind, evidence.File{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	})
	RespondResult(c, http.StatusOK, record, "evidence attached", err)
}

// GetIntake serves GET /intake.
func (h *Handler) GetIntake(c *gin.Context) {
	RespondSuccess(c, http.StatusOK, IntakeState{Fields: h.desk.Form(), Parsing: h.desk.FormParsing()}, "")
}

// PutIntake serves PUT /intake.
func (h *Handler) PutIntake(c *gin.Context) {
	var fields complaint.Fields
	if err := c.ShouldBindJSON(&fields); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	h.desk.SetForm(fields)
	RespondSuccess(c, http.StatusOK, IntakeState{Fields: h.desk.Form()}, "")
}

// ParseIntake serves POST /intake/parse.
func (h *Handler) ParseIntake(c *gin.Context) {
	var payload ParsePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	fields, merged, err := h.desk.SmartParse(c.Request.Context(), payload.Text)
	if deskerrors.IsParse(err) {
		// A failed extraction leaves the form as typed.
		c.JSON(http.StatusOK, SuccessResponse{
			Status:  "success",
			Message: "nothing extracted",
			Warning: err.Error(),
			Data:    IntakeState{Fields: fields},
		})
		return
	}
	if err != nil {
		RespondDeskError(c, err)
		return
	}
	message := "details extracted"
	if !merged {
		message = "nothing extracted"
	}
	RespondSuccess(c, http.StatusOK, IntakeState{Fields: fields, Merged: merged}, message)
}

// SubmitIntake serves POST /intake/submit.
func (h *Handler) SubmitIntake(c *gin.Context) {
	record, err := h.desk.SubmitForm(c.Request.Context())
	RespondResult(c, http.StatusCreated, record, "complaint registered", err)
}

// GetReport serves GET /reports.
func (h *Handler) GetReport(c *gin.Context) {
	RespondSuccess(c, http.StatusOK, h.desk.Report(), "")
}

// GetReportImage serves GET /reports/summary.png.
func (h *Handler) GetReportImage(c *gin.Context) {
	img, err := h.desk.ReportPNG()
	if err != nil {
		RespondDeskError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", img)
}

// ExportComplaints serves GET /export/complaints.csv.
func (h *Handler) ExportComplaints(c *gin.Context) {
	var buf bytes.Buffer
	if err := export.WriteComplaintsCSV(&buf, h.desk.All()); err != nil {
		RespondDeskError(c, err)
		return
	}
	attach(c, fmt.Sprintf("ServiceCenter_Report_%s.csv", h.desk.Today()), "text/csv; charset=utf-8", buf.Bytes())
}

// ExportReport serves GET /export/report.csv.
func (h *Handler) ExportReport(c *gin.Context) {
	var buf bytes.Buffer
	if err := export.WriteReportCSV(&buf, h.desk.Report(), h.desk.Currency()); err != nil {
		RespondDeskError(c, err)
		return
	}
	attach(c, fmt.Sprintf("ServiceCenter_Summary_%s.csv", h.desk.Today()), "text/csv; charset=utf-8", buf.Bytes())
}

// ExportBackup serves GET /export/backup.json.
func (h *Handler) ExportBackup(c *gin.Context) {
	var buf bytes.Buffer
	if err := export.WriteBackup(&buf, h.desk.All()); err != nil {
		RespondDeskError(c, err)
		return
	}
	attach(c, fmt.Sprintf("ServiceCenter_Backup_%s.json", h.desk.Today()), "application/json", buf.Bytes())
}

// Restore serves POST /restore with a backup as the body.
func (h *Handler) Restore(c *gin.Context) {
	records, err := export.ParseBackup(c.Request.Body)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid backup", err.Error())
		return
	}
	err = h.desk.Restore(c.Request.Context(), records)
	RespondResult(c, http.StatusOK, gin.H{"restored": len(records)}, "backup restored", err)
}

func attach(c *gin.Context, filename, contentType string, body []byte) {
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, contentType, body)
}
