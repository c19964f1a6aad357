// Package intake models the receive form: the fields an operator fills in
// for a new complaint and the smart-parse step that pre-fills them from
// pasted text.
package intake

import (
	"context"
	"errors"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"svcdesk/internal/complaint"
	deskerrors "svcdesk/internal/errors"
	"svcdesk/internal/parser"
)

// ErrParseInFlight is returned when a smart parse is requested while one is
// already running for the same form.
var ErrParseInFlight = errors.New("smart parse already in progress")

// Extractor turns free text into complaint fields. A nil result with a nil
// error means nothing was extracted.
type Extractor interface {
	Parse(ctx context.Context, text string) (*parser.Extraction, error)
}

// Form is the state of one receive form.
type Form struct {
	mu      sync.Mutex
	fields  complaint.Fields
	parsing bool
}

// NewForm returns a form with the receive-form defaults: product AC, case
// type Warranty, every text field empty.
func NewForm() *Form {
	return &Form{fields: DefaultFields()}
}

// DefaultFields are the initial values of an empty receive form.
func DefaultFields() complaint.Fields {
	return complaint.Fields{
		ProductType: complaint.ProductAC,
		Type:        complaint.CaseWarranty,
	}
}

// Fields returns the current form values.
func (f *Form) Fields() complaint.Fields {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fields
}

// Set overwrites the form values, as typing into the form does.
func (f *Form) Set(fields complaint.Fields) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fields = fields
}

// Parsing reports whether a smart parse is running.
func (f *Form) Parsing() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.parsing
}

// SmartParse sends text to ex and merges the result into the form.
//
// Blank text is a no-op. On success every intake field is overwritten:
// missing text becomes "", a missing or unknown product type becomes
// Other, a missing or unknown case type becomes Warranty. A failed or empty
// extraction leaves the form as it was; the failure is logged and returned
// so callers can surface it, but it is never fatal.
func (f *Form) SmartParse(ctx context.Context, ex Extractor, text string) (bool, error) {
	if strings.TrimSpace(text) == "" {
		return false, nil
	}

	f.mu.Lock()
	if f.parsing {
		f.mu.Unlock()
		return false, ErrParseInFlight
	}
	f.parsing = true
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.parsing = false
		f.mu.Unlock()
	}()

	result, err := ex.Parse(ctx, text)
	if err != nil {
		log.Println("⚠️  Smart parse failed:", err)
		return false, err
	}
	if result == nil {
		return false, nil
	}

	f.mu.Lock()
	f.fields = Merge(f.fields, *result)
	f.mu.Unlock()
	return true, nil
}

// Merge applies an extraction on top of prior form values. Fields outside
// the extraction (part and technician data) are kept.
func Merge(prior complaint.Fields, x parser.Extraction) complaint.Fields {
	merged := prior
	merged.ComplaintNumber = strings.TrimSpace(x.ComplaintNumber)
	merged.CustomerName = strings.TrimSpace(x.CustomerName)
	merged.PhoneNumber = strings.TrimSpace(x.PhoneNumber)
	merged.Address = strings.TrimSpace(x.Address)
	merged.ModelNumber = strings.TrimSpace(x.ModelNumber)
	merged.SerialNumber = strings.TrimSpace(x.SerialNumber)

	merged.ProductType = complaint.ProductOther
	if pt, err := complaint.ParseProductType(x.ProductType); err == nil {
		merged.ProductType = pt
	}
	merged.Type = complaint.CaseWarranty
	if ct, err := complaint.ParseCaseType(x.Type); err == nil {
		merged.Type = ct
	}
	return merged
}

// Validate checks the fields the receive form requires before a complaint
// can be created.
func Validate(fields complaint.Fields) error {
	var missing []string
	if strings.TrimSpace(fields.ComplaintNumber) == "" {
		missing = append(missing, "complaintNumber")
	}
	if strings.TrimSpace(fields.CustomerName) == "" {
		missing = append(missing, "customerName")
	}
	if strings.TrimSpace(fields.PhoneNumber) == "" {
		missing = append(missing, "phoneNumber")
	}
	if strings.TrimSpace(fields.Address) == "" {
		missing = append(missing, "address")
	}
	if len(missing) > 0 {
		return deskerrors.NewValidationError("required intake fields are empty", missing...)
	}
	return nil
}
