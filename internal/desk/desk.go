// Package desk is the application service every surface goes through: the
// HTTP API, the Telegram bot and the report ticker.
//
// It runs store commands, records the outcome of the write-through for the
// health endpoint, raises an alert when storage starts failing, and turns
// each successful change into a lifecycle event.
package desk

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"svcdesk/internal/complaint"
	deskerrors "svcdesk/internal/errors"
	"svcdesk/internal/events"
	"svcdesk/internal/evidence"
	"svcdesk/internal/health"
	"svcdesk/internal/intake"
	"svcdesk/internal/report"
	"svcdesk/internal/summary"
)

// alertTimeout bounds the delivery of one storage alert.
const alertTimeout = 15 * time.Second

// EventSink receives lifecycle events.
type EventSink interface {
	Submit(ev events.Event)
}

// Alerter notifies operators about failures that need attention.
type Alerter interface {
	SendCriticalAlert(ctx context.Context, errorType, errorMsg string) error
}

// Service wraps the complaint store with events, health and intake.
type Service struct {
	store     *complaint.Store
	events    EventSink
	monitor   *health.Monitor
	alerter   Alerter
	extractor intake.Extractor
	uploader  evidence.Uploader
	form      *intake.Form
	currency  string
	now       func() time.Time

	mu       sync.Mutex
	alerted  bool
	alertsWG sync.WaitGroup
}

// Option customises a Service.
type Option func(*Service)

// WithEvents sets the event sink.
func WithEvents(sink EventSink) Option {
	return func(s *Service) { s.events = sink }
}

// WithMonitor sets the health monitor.
func WithMonitor(m *health.Monitor) Option {
	return func(s *Service) { s.monitor = m }
}

// WithAlerter sets who is told when storage writes start failing.
func WithAlerter(a Alerter) Option {
	return func(s *Service) { s.alerter = a }
}

// WithExtractor sets the smart-parse collaborator.
func WithExtractor(x intake.Extractor) Option {
	return func(s *Service) { s.extractor = x }
}

// WithUploader sets where evidence files are stored.
func WithUploader(u evidence.Uploader) Option {
	return func(s *Service) { s.uploader = u }
}

// WithCurrency sets the currency label of rendered reports.
func WithCurrency(currency string) Option {
	return func(s *Service) { s.currency = currency }
}

// WithClock replaces time.Now for report timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a service around store. Load the store before serving.
func New(store *complaint.Store, opts ...Option) *Service {
	s := &Service{
		store:    store,
		form:     intake.NewForm(),
		currency: "PKR",
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates the intake fields and records a new complaint.
func (s *Service) Create(ctx context.Context, fields complaint.Fields) (complaint.Complaint, error) {
	if err := intake.Validate(fields); err != nil {
		return complaint.Complaint{}, err
	}
	c, err := s.store.Create(ctx, fields)
	if err == nil || deskerrors.IsPersistence(err) {
		log.Printf("📥 Complaint %s received for %s", c.ComplaintNumber, c.CustomerName)
	}
	return s.after(ctx, events.KindCreated, c, err)
}

// UpdateStatus overwrites the status of a complaint.
func (s *Service) UpdateStatus(ctx context.Context, id string, status complaint.Status) (complaint.Complaint, error) {
	c, err := s.store.UpdateStatus(ctx, id, status)
	return s.after(ctx, events.KindStatus, c, err)
}

// AssignTechnician sets the technician of a complaint.
func (s *Service) AssignTechnician(ctx context.Context, id, name string) (complaint.Complaint, error) {
	c, err := s.store.AssignTechnician(ctx, id, name)
	return s.after(ctx, events.KindAssigned, c, err)
}

// SetPartStatus sets the part status of a complaint.
func (s *Service) SetPartStatus(ctx context.Context, id string, status complaint.PartStatus) (complaint.Complaint, error) {
	c, err := s.store.SetPartStatus(ctx, id, status)
	return s.after(ctx, events.KindParts, c, err)
}

// SetPartName sets the tracked part name of a complaint.
func (s *Service) SetPartName(ctx context.Context, id, name string) (complaint.Complaint, error) {
	c, err := s.store.SetPartName(ctx, id, name)
	return s.after(ctx, events.KindParts, c, err)
}

// Close finalises a complaint through the close gate.
func (s *Service) Close(ctx context.Context, id string, data complaint.ClosingData) (complaint.Complaint, error) {
	c, err := s.store.Close(ctx, id, data)
	if err == nil || deskerrors.IsPersistence(err) {
		log.Printf("✅ Complaint %s closed by %s (%s %v)", c.ComplaintNumber, c.TechnicianName, s.currency, c.Amount())
	}
	return s.after(ctx, events.KindClosed, c, err)
}

// Reopen moves a complaint back to Reopened.
func (s *Service) Reopen(ctx context.Context, id string) (complaint.Complaint, error) {
	c, err := s.store.Reopen(ctx, id)
	if err == nil || deskerrors.IsPersistence(err) {
		log.Printf("🔁 Complaint %s reopened (%d×)", c.ComplaintNumber, c.ReopenCount)
	}
	return s.after(ctx, events.KindReopened, c, err)
}

// AttachEvidence uploads an evidence file and records its URL on the
// complaint. Nothing is uploaded for an unknown complaint.
func (s *Service) AttachEvidence(ctx context.Context, id string, kind evidence.Kind, f evidence.File) (complaint.Complaint, error) {
	if s.uploader == nil {
		return complaint.Complaint{}, fmt.Errorf("evidence uploads are not configured")
	}
	if _, err := s.store.Find(id); err != nil {
		return complaint.Complaint{}, err
	}

	url, err := s.uploader.Upload(ctx, id, kind, f)
	if err != nil {
		return complaint.Complaint{}, err
	}
	log.Printf("📎 Stored %s for complaint %s at %s", kind, id, url)

	c, err := s.store.AttachEvidence(ctx, id, kind, url)
	if err != nil && !deskerrors.IsPersistence(err) {
		return c, err
	}
	s.recordWrite(ctx, err)
	return c, err
}

// Restore replaces the collection with a backup.
func (s *Service) Restore(ctx context.Context, records []complaint.Complaint) error {
	err := s.store.Replace(ctx, records)
	if err != nil && !deskerrors.IsPersistence(err) {
		return err
	}
	s.recordWrite(ctx, err)
	log.Println("♻️  Restored", len(records), "complaints from backup")
	if s.events != nil {
		s.events.Submit(events.Event{Kind: events.KindRestored, Count: len(records), At: s.now()})
	}
	return err
}

// Find returns one complaint.
func (s *Service) Find(id string) (complaint.Complaint, error) {
	return s.store.Find(id)
}

// All returns every complaint, most recent first.
func (s *Service) All() []complaint.Complaint {
	return s.store.All()
}

// Search returns every complaint matching term, active or closed.
func (s *Service) Search(term string) []complaint.Complaint {
	var out []complaint.Complaint
	for _, c := range s.store.All() {
		if complaint.Matches(c, term) {
			out = append(out, c)
		}
	}
	return out
}

// Active returns the active view filtered by term.
func (s *Service) Active(term string) []complaint.Complaint {
	return s.store.Active(term)
}

// History returns the history view filtered by term.
func (s *Service) History(term string) []complaint.Complaint {
	return s.store.History(term)
}

// Report builds the report snapshot of the current collection.
func (s *Service) Report() report.Report {
	return report.Build(s.store.All(), s.store.Today())
}

// ReportPNG renders the report snapshot as an image.
func (s *Service) ReportPNG() ([]byte, error) {
	records := s.store.All()
	r := report.Build(records, s.store.Today())
	return summary.RenderReport(r, complaint.ActiveView(records, ""), s.currency, s.now())
}

// Currency returns the currency label.
func (s *Service) Currency() string {
	return s.currency
}

// Today returns the store's calendar date.
func (s *Service) Today() string {
	return s.store.Today()
}

// Wait blocks until pending alerts have been sent.
func (s *Service) Wait() {
	s.alertsWG.Wait()
}

// after records the write outcome and emits ev for a change that took
// effect. A PersistenceError means the change took effect in memory.
func (s *Service) after(ctx context.Context, kind events.Kind, c complaint.Complaint, err error) (complaint.Complaint, error) {
	if err != nil && !deskerrors.IsPersistence(err) {
		return c, err
	}
	s.recordWrite(ctx, err)
	if s.events != nil {
		s.events.Submit(events.Event{Kind: kind, Complaint: c, At: s.now()})
	}
	return c, err
}

// recordWrite updates health and alerts once per run of failing writes.
func (s *Service) recordWrite(ctx context.Context, err error) {
	if s.monitor != nil {
		s.monitor.RecordWrite(err)
	}

	s.mu.Lock()
	shouldAlert := err != nil && !s.alerted && s.alerter != nil
	s.alerted = err != nil
	s.mu.Unlock()

	if !shouldAlert {
		return
	}
	log.Println("🚨 Complaint storage is failing, changes are only kept in memory")

	s.alertsWG.Add(1)
	go func() {
		defer s.alertsWG.Done()
		alertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), alertTimeout)
		defer cancel()
		if alertErr := s.alerter.SendCriticalAlert(alertCtx, "Persistence Failure", err.Error()); alertErr != nil {
			log.Println("⚠️  Failed to send storage alert:", alertErr)
		}
	}()
}
