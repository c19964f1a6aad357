// Package complaint owns the complaint records of the service center and the
// rules for moving them through their lifecycle.
package complaint

import (
	"fmt"
	"strings"

	deskerrors "svcdesk/internal/errors"
)

// Status is the lifecycle state of a complaint.
type Status string

const (
	StatusPending    Status = "Pending"
	StatusInProgress Status = "In Progress"
	StatusCompleted  Status = "Completed"
	StatusReopened   Status = "Reopened"
)

// CaseType is the billing classification of a complaint.
type CaseType string

const (
	CaseWarranty CaseType = "Warranty"
	CaseRevenue  CaseType = "Revenue"
	CaseUnknown  CaseType = "Unknown"
)

// PartStatus tracks spare parts while a complaint is active.
type PartStatus string

const (
	PartNone         PartStatus = "None"
	PartRequired     PartStatus = "Required"
	PartNotAvailable PartStatus = "Not Available"
	PartAttending    PartStatus = "Attending"
)

// ProductType is the appliance category.
type ProductType string

const (
	ProductAC             ProductType = "AC"
	ProductRefrigerator   ProductType = "Refrigerator"
	ProductWashingMachine ProductType = "Washing Machine"
	ProductOther          ProductType = "Other"
)

// EvidenceKind names one of the evidence attachments of a complaint.
type EvidenceKind string

const (
	EvidenceWarrantyCard  EvidenceKind = "warranty-card"
	EvidenceInvoiceSlip   EvidenceKind = "invoice-slip"
	EvidenceFeedbackVideo EvidenceKind = "feedback-video"
)

// Statuses lists every status in display order.
var Statuses = []Status{StatusPending, StatusInProgress, StatusCompleted, StatusReopened}

// ProductTypes lists every product type in display order.
var ProductTypes = []ProductType{ProductAC, ProductRefrigerator, ProductWashingMachine, ProductOther}

// Complaint is a single service request and its repair history.
//
// The JSON layout is the persisted layout: the whole collection is stored as
// one array of these objects under a single slot key.
type Complaint struct {
	ID              string      `json:"id"`
	ComplaintNumber string      `json:"complaintNumber"`
	CustomerName    string      `json:"customerName"`
	PhoneNumber     string      `json:"phoneNumber"`
	Address         string      `json:"address"`
	ProductType     ProductType `json:"productType"`
	ModelNumber     string      `json:"modelNumber"`
	SerialNumber    string      `json:"serialNumber"`
	Date            string      `json:"date"`
	Status          Status      `json:"status"`
	Type            CaseType    `json:"type"`

	PartStatus PartStatus `json:"partStatus,omitempty"`
	PartName   string     `json:"partName,omitempty"`

	TechnicianName   string   `json:"technicianName,omitempty"`
	WorkDone         string   `json:"workDone,omitempty"`
	PartsChanged     string   `json:"partsChanged,omitempty"`
	AmountTaken      *float64 `json:"amountTaken,omitempty"`
	ClosingDate      string   `json:"closingDate,omitempty"`
	WarrantyCardURL  string   `json:"warrantyCardUrl,omitempty"`
	InvoiceSlipURL   string   `json:"invoiceSlipUrl,omitempty"`
	FeedbackVideoURL string   `json:"feedbackVideoUrl,omitempty"`

	ReopenCount int `json:"reopenCount"`
}

// Amount returns amountTaken, treating an absent value as 0.
func (c Complaint) Amount() float64 {
	if c.AmountTaken == nil {
		return 0
	}
	return *c.AmountTaken
}

// IsClosed reports whether the complaint is currently Completed.
func (c Complaint) IsClosed() bool {
	return c.Status == StatusCompleted
}

// clone returns a deep copy so callers never alias store-owned memory.
func (c Complaint) clone() Complaint {
	if c.AmountTaken != nil {
		amount := *c.AmountTaken
		c.AmountTaken = &amount
	}
	return c
}

// Fields are the intake fields of a new complaint. Zero values are replaced
// by their documented defaults on Create.
type Fields struct {
	ComplaintNumber string      `json:"complaintNumber"`
	CustomerName    string      `json:"customerName"`
	PhoneNumber     string      `json:"phoneNumber"`
	Address         string      `json:"address"`
	ProductType     ProductType `json:"productType"`
	ModelNumber     string      `json:"modelNumber"`
	SerialNumber    string      `json:"serialNumber"`
	Type            CaseType    `json:"type"`
	PartStatus      PartStatus  `json:"partStatus,omitempty"`
	PartName        string      `json:"partName,omitempty"`
	TechnicianName  string      `json:"technicianName,omitempty"`
}

// ClosingData is what a technician submits when finishing a job.
//
// Type overrides the complaint's case type when set. Evidence URLs left empty
// fall back to whatever is already attached to the complaint.
type ClosingData struct {
	WorkDone         string   `json:"workDone"`
	PartsChanged     string   `json:"partsChanged"`
	AmountTaken      float64  `json:"amountTaken"`
	TechnicianName   string   `json:"technicianName"`
	Type             CaseType `json:"type"`
	WarrantyCardURL  string   `json:"warrantyCardUrl"`
	InvoiceSlipURL   string   `json:"invoiceSlipUrl"`
	FeedbackVideoURL string   `json:"feedbackVideoUrl"`
}

// ParseStatus validates a status string.
func ParseStatus(s string) (Status, error) {
	for _, st := range Statuses {
		if strings.EqualFold(string(st), strings.TrimSpace(s)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("status %q: %w", s, deskerrors.ErrInvalidValue)
}

// ParseCaseType validates a case type string.
func ParseCaseType(s string) (CaseType, error) {
	for _, ct := range []CaseType{CaseWarranty, CaseRevenue, CaseUnknown} {
		if strings.EqualFold(string(ct), strings.TrimSpace(s)) {
			return ct, nil
		}
	}
	return "", fmt.Errorf("case type %q: %w", s, deskerrors.ErrInvalidValue)
}

// ParsePartStatus validates a part status string.
func ParsePartStatus(s string) (PartStatus, error) {
	for _, ps := range []PartStatus{PartNone, PartRequired, PartNotAvailable, PartAttending} {
		if strings.EqualFold(string(ps), strings.TrimSpace(s)) {
			return ps, nil
		}
	}
	return "", fmt.Errorf("part status %q: %w", s, deskerrors.ErrInvalidValue)
}

// ParseProductType validates a product type string. "WashingMachine" is
// accepted as an alias of "Washing Machine".
func ParseProductType(s string) (ProductType, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	for _, pt := range ProductTypes {
		if strings.EqualFold(strings.ReplaceAll(string(pt), " ", ""), normalized) {
			return pt, nil
		}
	}
	return "", fmt.Errorf("product type %q: %w", s, deskerrors.ErrInvalidValue)
}
