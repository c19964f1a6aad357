package desk

import (
	"context"

	"svcdesk/internal/complaint"
	"svcdesk/internal/intake"
)

// Form returns the current receive-form values.
func (s *Service) Form() complaint.Fields {
	return s.form.Fields()
}

// FormParsing reports whether a smart parse is running.
func (s *Service) FormParsing() bool {
	return s.form.Parsing()
}

// SetForm overwrites the receive-form values.
func (s *Service) SetForm(fields complaint.Fields) {
	s.form.Set(fields)
}

// ResetForm restores the receive-form defaults.
func (s *Service) ResetForm() {
	s.form.Set(intake.DefaultFields())
}

// SmartParse pre-fills the receive form from pasted text. merged is false
// when nothing was extracted; the form is then unchanged.
func (s *Service) SmartParse(ctx context.Context, text string) (fields complaint.Fields, merged bool, err error) {
	if s.extractor == nil {
		return s.form.Fields(), false, nil
	}
	merged, err = s.form.SmartParse(ctx, s.extractor, text)
	return s.form.Fields(), merged, err
}

// SubmitForm creates a complaint from the receive form and resets it.
// A rejected form is left as it was.
func (s *Service) SubmitForm(ctx context.Context) (complaint.Complaint, error) {
	c, err := s.Create(ctx, s.form.Fields())
	if c.ID != "" {
		s.ResetForm()
	}
	return c, err
}
