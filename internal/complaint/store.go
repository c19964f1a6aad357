package complaint

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	deskerrors "svcdesk/internal/errors"
)

// DateLayout is the calendar-date format used for intake and closing dates.
const DateLayout = "2006-01-02"

// Slot is the persistence port of the store: one opaque value under one key.
//
// Load returns (nil, nil) when nothing has been stored yet. Save replaces the
// stored value wholesale.
type Slot interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
}

// Store owns the authoritative, most-recent-first sequence of complaints.
//
// Every mutation goes through one of its methods and is written through to
// the slot while the lock is held, so slot writes happen in mutation order.
// A failed write is reported as a PersistenceError; the in-memory change is
// kept either way.
type Store struct {
	mu      sync.Mutex
	slot    Slot
	records []Complaint

	now   func() time.Time
	newID func() string
}

// Option customises a Store.
type Option func(*Store)

// WithClock replaces time.Now, used for intake and closing dates.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator replaces the uuid generator.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// NewStore creates an empty store backed by slot. Call Load before serving.
func NewStore(slot Slot, opts ...Option) *Store {
	s := &Store{
		slot:  slot,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads the collection from the slot.
//
// An empty slot and an unreadable payload are treated the same way: the
// store starts from the seed data and seeded is true. Only a failing slot
// read is returned as an error.
func (s *Store) Load(ctx context.Context) (seeded bool, err error) {
	data, err := s.slot.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to read complaint slot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(data) == 0 {
		log.Println("📋 No saved complaints found. Starting from seed data...")
		s.records = SeedComplaints()
		return true, nil
	}

	var records []Complaint
	if err := json.Unmarshal(data, &records); err != nil {
		log.Println("⚠️  Saved complaints are unreadable, starting from seed data:", err)
		s.records = SeedComplaints()
		return true, nil
	}

	s.records = records
	log.Println("📚 Loaded", len(records), "complaints from storage")
	return false, nil
}

// Create records a new complaint at the front of the collection.
//
// Required intake fields are the caller's responsibility; only enum values
// are checked here.
func (s *Store) Create(ctx context.Context, f Fields) (Complaint, error) {
	c := Complaint{
		ComplaintNumber: f.ComplaintNumber,
		CustomerName:    f.CustomerName,
		PhoneNumber:     f.PhoneNumber,
		Address:         f.Address,
		ProductType:     ProductOther,
		ModelNumber:     f.ModelNumber,
		SerialNumber:    f.SerialNumber,
		Status:          StatusPending,
		Type:            CaseUnknown,
		PartName:        f.PartName,
		TechnicianName:  f.TechnicianName,
	}

	if f.ProductType != "" {
		pt, err := ParseProductType(string(f.ProductType))
		if err != nil {
			return Complaint{}, err
		}
		c.ProductType = pt
	}
	if f.Type != "" {
		ct, err := ParseCaseType(string(f.Type))
		if err != nil {
			return Complaint{}, err
		}
		c.Type = ct
	}
	if f.PartStatus != "" {
		ps, err := ParsePartStatus(string(f.PartStatus))
		if err != nil {
			return Complaint{}, err
		}
		c.PartStatus = ps
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c.ID = s.uniqueIDLocked()
	c.Date = s.today()

	s.records = append([]Complaint{c}, s.records...)
	return c.clone(), s.persistLocked(ctx)
}

// UpdateStatus overwrites the status of a complaint.
//
// Any transition between Pending, In Progress and Reopened is allowed,
// including regressions, and a Completed complaint can be moved back to an
// active status. Completed itself is only reachable through Close.
func (s *Store) UpdateStatus(ctx context.Context, id string, status Status) (Complaint, error) {
	st, err := ParseStatus(string(status))
	if err != nil {
		return Complaint{}, err
	}
	if st == StatusCompleted {
		return Complaint{}, deskerrors.NewValidationError("complaints are completed through close", "status")
	}

	return s.mutate(ctx, id, func(c *Complaint) error {
		c.Status = st
		return nil
	})
}

// AssignTechnician sets the technician of a complaint. An empty name clears it.
func (s *Store) AssignTechnician(ctx context.Context, id, name string) (Complaint, error) {
	return s.mutate(ctx, id, func(c *Complaint) error {
		c.TechnicianName = strings.TrimSpace(name)
		return nil
	})
}

// SetPartStatus sets the part status of a complaint. An empty value clears it.
func (s *Store) SetPartStatus(ctx context.Context, id string, status PartStatus) (Complaint, error) {
	var ps PartStatus
	if status != "" {
		parsed, err := ParsePartStatus(string(status))
		if err != nil {
			return Complaint{}, err
		}
		ps = parsed
	}

	return s.mutate(ctx, id, func(c *Complaint) error {
		c.PartStatus = ps
		return nil
	})
}

// SetPartName sets the name of the part being tracked.
func (s *Store) SetPartName(ctx context.Context, id, name string) (Complaint, error) {
	return s.mutate(ctx, id, func(c *Complaint) error {
		c.PartName = name
		return nil
	})
}

// AttachEvidence records the URL of an uploaded evidence file. Attached
// evidence satisfies the close gate when the closing data leaves the
// corresponding URL empty.
func (s *Store) AttachEvidence(ctx context.Context, id string, kind EvidenceKind, url string) (Complaint, error) {
	if strings.TrimSpace(url) == "" {
		return Complaint{}, deskerrors.NewValidationError("evidence url is empty", "url")
	}
	return s.mutate(ctx, id, func(c *Complaint) error {
		switch kind {
		case EvidenceWarrantyCard:
			c.WarrantyCardURL = url
		case EvidenceInvoiceSlip:
			c.InvoiceSlipURL = url
		case EvidenceFeedbackVideo:
			c.FeedbackVideoURL = url
		default:
			return fmt.Errorf("evidence kind %q: %w", kind, deskerrors.ErrInvalidValue)
		}
		return nil
	})
}

// Close finalises a complaint.
//
// The gate requires work done and a technician name, a non-negative amount,
// and for Warranty cases both the warranty card and the invoice slip. On
// failure a ValidationError lists every missing field and the complaint is
// left unchanged. reopenCount is never reset.
func (s *Store) Close(ctx context.Context, id string, data ClosingData) (Complaint, error) {
	return s.mutate(ctx, id, func(c *Complaint) error {
		caseType, err := closingCaseType(*c, data)
		if err != nil {
			return err
		}

		warrantyCard := firstNonEmpty(data.WarrantyCardURL, c.WarrantyCardURL)
		invoiceSlip := firstNonEmpty(data.InvoiceSlipURL, c.InvoiceSlipURL)

		var missing []string
		if strings.TrimSpace(data.WorkDone) == "" {
			missing = append(missing, "workDone")
		}
		if strings.TrimSpace(data.TechnicianName) == "" {
			missing = append(missing, "technicianName")
		}
		if data.AmountTaken < 0 {
			missing = append(missing, "amountTaken")
		}
		if caseType == CaseWarranty {
			if warrantyCard == "" {
				missing = append(missing, "warrantyCardUrl")
			}
			if invoiceSlip == "" {
				missing = append(missing, "invoiceSlipUrl")
			}
		}
		if len(missing) > 0 {
			return deskerrors.NewValidationError("complaint cannot be closed", missing...)
		}

		amount := data.AmountTaken
		c.WorkDone = data.WorkDone
		c.PartsChanged = data.PartsChanged
		c.AmountTaken = &amount
		c.TechnicianName = strings.TrimSpace(data.TechnicianName)
		c.Type = caseType
		c.WarrantyCardURL = warrantyCard
		c.InvoiceSlipURL = invoiceSlip
		c.FeedbackVideoURL = firstNonEmpty(data.FeedbackVideoURL, c.FeedbackVideoURL)
		c.Status = StatusCompleted
		c.ClosingDate = s.today()
		return nil
	})
}

// Reopen moves a complaint back to Reopened and counts the reopen.
//
// The current status is not checked: every call increments reopenCount by
// exactly one.
func (s *Store) Reopen(ctx context.Context, id string) (Complaint, error) {
	return s.mutate(ctx, id, func(c *Complaint) error {
		c.Status = StatusReopened
		c.ReopenCount++
		return nil
	})
}

// Replace swaps the whole collection, as when restoring a backup.
func (s *Store) Replace(ctx context.Context, records []Complaint) error {
	seen := make(map[string]bool, len(records))
	for _, c := range records {
		if c.ID == "" {
			return deskerrors.NewValidationError("restored complaint without id", "id")
		}
		if seen[c.ID] {
			return deskerrors.NewValidationError(fmt.Sprintf("duplicate complaint id %s", c.ID), "id")
		}
		seen[c.ID] = true
	}

	copied := make([]Complaint, len(records))
	for i, c := range records {
		copied[i] = c.clone()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = copied
	return s.persistLocked(ctx)
}

// Find returns the complaint with the given id.
func (s *Store) Find(id string) (Complaint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return Complaint{}, deskerrors.NewNotFoundError(id)
	}
	return s.records[idx].clone(), nil
}

// All returns a copy of the collection, most recent first.
func (s *Store) All() []Complaint {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Complaint, len(s.records))
	for i, c := range s.records {
		out[i] = c.clone()
	}
	return out
}

// Active returns the active view of the current collection.
func (s *Store) Active(term string) []Complaint {
	return ActiveView(s.All(), term)
}

// History returns the history view of the current collection.
func (s *Store) History(term string) []Complaint {
	return HistoryView(s.All(), term)
}

// Today returns the store's current calendar date.
func (s *Store) Today() string {
	return s.today()
}

// mutate applies fn to a copy of the complaint and commits it only when fn succeeds.
func (s *Store) mutate(ctx context.Context, id string, fn func(c *Complaint) error) (Complaint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return Complaint{}, deskerrors.NewNotFoundError(id)
	}

	updated := s.records[idx].clone()
	if err := fn(&updated); err != nil {
		return Complaint{}, err
	}

	s.records[idx] = updated
	return updated.clone(), s.persistLocked(ctx)
}

// persistLocked writes the full collection to the slot. Caller must hold the mutex.
func (s *Store) persistLocked(ctx context.Context) error {
	data, err := json.Marshal(s.records)
	if err != nil {
		return deskerrors.NewPersistenceError("encode complaints", err)
	}
	if err := s.slot.Save(ctx, data); err != nil {
		log.Println("⚠️  Failed to persist complaints:", err)
		return deskerrors.NewPersistenceError("write complaint slot", err)
	}
	return nil
}

func (s *Store) indexLocked(id string) int {
	for i := range s.records {
		if s.records[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) uniqueIDLocked() string {
	for {
		id := s.newID()
		if id != "" && s.indexLocked(id) < 0 {
			return id
		}
	}
}

func (s *Store) today() string {
	return s.now().Format(DateLayout)
}

// closingCaseType resolves the case type a complaint closes with. An Unknown
// case that is closed without an explicit type is billed as Revenue.
func closingCaseType(c Complaint, data ClosingData) (CaseType, error) {
	if data.Type != "" {
		return ParseCaseType(string(data.Type))
	}
	if c.Type == CaseUnknown || c.Type == "" {
		return CaseRevenue, nil
	}
	return c.Type, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
