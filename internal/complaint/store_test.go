package complaint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	deskerrors "svcdesk/internal/errors"
)

// memSlot is an in-memory Slot with switchable write failures.
type memSlot struct {
	mu       sync.Mutex
	data     []byte
	loadErr  error
	failSave bool
	saves    int
}

func (m *memSlot) Load(context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data, m.loadErr
}

func (m *memSlot) Save(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave {
		return errors.New("quota exceeded")
	}
	m.data = append([]byte(nil), data...)
	m.saves++
	return nil
}

func (m *memSlot) stored(t *testing.T) []Complaint {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Complaint
	require.NoError(t, json.Unmarshal(m.data, &out))
	return out
}

var fixedNow = time.Date(2026, 10, 19, 15, 4, 5, 0, time.Local)

func newTestStore(t *testing.T, slot *memSlot) *Store {
	t.Helper()
	seq := 0
	s := NewStore(slot,
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("id-%d", seq)
		}),
	)
	slot.data = []byte("[]")
	_, err := s.Load(context.Background())
	require.NoError(t, err)
	return s
}

func warrantyAC() Fields {
	return Fields{
		ComplaintNumber: "1023",
		CustomerName:    "Ahmed Ali",
		PhoneNumber:     "0300-1234567",
		Address:         "Street 5, Defense, Karachi",
		ProductType:     ProductAC,
		Type:            CaseWarranty,
	}
}

func TestStore_LoadFallsBackToSeed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"absent", nil},
		{"malformed", []byte("{not json")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore(&memSlot{data: tt.data})
			seeded, err := s.Load(context.Background())
			require.NoError(t, err)
			assert.True(t, seeded)
			assert.Equal(t, SeedComplaints(), s.All())
		})
	}
}

func TestStore_LoadReadError(t *testing.T) {
	s := NewStore(&memSlot{loadErr: errors.New("connection refused")})
	_, err := s.Load(context.Background())
	assert.Error(t, err)
}

func TestStore_LoadSaved(t *testing.T) {
	saved := []Complaint{{ID: "x", ComplaintNumber: "77", Status: StatusCompleted, ClosingDate: "2026-01-02"}}
	data, err := json.Marshal(saved)
	require.NoError(t, err)

	s := NewStore(&memSlot{data: data})
	seeded, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, seeded)
	assert.Equal(t, saved, s.All())
}

func TestStore_CreateDefaultsAndOrder(t *testing.T) {
	slot := &memSlot{}
	s := newTestStore(t, slot)
	ctx := context.Background()

	first, err := s.Create(ctx, Fields{ComplaintNumber: "1", CustomerName: "A", PhoneNumber: "1", Address: "x"})
	require.NoError(t, err)
	second, err := s.Create(ctx, warrantyAC())
	require.NoError(t, err)

	assert.Equal(t, StatusPending, first.Status)
	assert.Equal(t, ProductOther, first.ProductType)
	assert.Equal(t, CaseUnknown, first.Type)
	assert.Equal(t, 0, first.ReopenCount)
	assert.Equal(t, "2026-10-19", first.Date)
	assert.Empty(t, first.ClosingDate)
	assert.Nil(t, first.AmountTaken)

	all := s.All()
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID, "newest complaint comes first")
	assert.Equal(t, first.ID, all[1].ID)
	assert.Equal(t, all, slot.stored(t), "every mutation is written through")
}

func TestStore_CreateUniqueIDs(t *testing.T) {
	// A generator that repeats itself must not produce duplicate ids.
	ids := []string{"dup", "dup", "dup", "fresh"}
	i := 0
	s := NewStore(&memSlot{data: []byte("[]")}, WithIDGenerator(func() string {
		id := ids[i]
		if i < len(ids)-1 {
			i++
		}
		return id
	}))
	_, err := s.Load(context.Background())
	require.NoError(t, err)

	a, err := s.Create(context.Background(), warrantyAC())
	require.NoError(t, err)
	b, err := s.Create(context.Background(), warrantyAC())
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)

	generated := NewStore(&memSlot{data: []byte("[]")})
	_, err = generated.Load(context.Background())
	require.NoError(t, err)
	seen := map[string]bool{}
	for n := 0; n < 200; n++ {
		c, err := generated.Create(context.Background(), warrantyAC())
		require.NoError(t, err)
		assert.False(t, seen[c.ID], "duplicate id %s", c.ID)
		seen[c.ID] = true
	}
}

func TestStore_CreateRejectsUnknownEnum(t *testing.T) {
	s := newTestStore(t, &memSlot{})
	_, err := s.Create(context.Background(), Fields{ProductType: "Toaster"})
	assert.True(t, deskerrors.IsInvalidValue(err))
	assert.Empty(t, s.All())
}

func TestStore_WarrantyScenario(t *testing.T) {
	s := newTestStore(t, &memSlot{})
	ctx := context.Background()

	c, err := s.Create(ctx, warrantyAC())
	require.NoError(t, err)

	_, err = s.Close(ctx, c.ID, ClosingData{WorkDone: "Gas refill", TechnicianName: "Bilal", AmountTaken: 0})
	require.Error(t, err)
	assert.True(t, deskerrors.IsValidation(err))

	var verr *deskerrors.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"warrantyCardUrl", "invoiceSlipUrl"}, verr.Fields)

	unchanged, err := s.Find(c.ID)
	require.NoError(t, err)
	assert.Equal(t, c, unchanged)
	assert.Equal(t, StatusPending, unchanged.Status)

	closed, err := s.Close(ctx, c.ID, ClosingData{
		WorkDone:        "Gas refill",
		TechnicianName:  "Bilal",
		WarrantyCardURL: "https://files.example/wc.jpg",
		InvoiceSlipURL:  "https://files.example/inv.jpg",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, closed.Status)
	assert.Equal(t, "2026-10-19", closed.ClosingDate)
	assert.Equal(t, "Gas refill", closed.WorkDone)
	assert.Equal(t, "Bilal", closed.TechnicianName)
	assert.Equal(t, CaseWarranty, closed.Type)
	assert.Equal(t, 0.0, closed.Amount())

	reopened, err := s.Reopen(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusReopened, reopened.Status)
	assert.Equal(t, 1, reopened.ReopenCount)
	assert.Equal(t, "2026-10-19", reopened.ClosingDate, "closing fields are kept as history")
	assert.Equal(t, "Gas refill", reopened.WorkDone)
}

func TestStore_CloseValidation(t *testing.T) {
	tests := []struct {
		name    string
		data    ClosingData
		missing []string
	}{
		{"no work done", ClosingData{TechnicianName: "Bilal", Type: CaseRevenue}, []string{"workDone"}},
		{"no technician", ClosingData{WorkDone: "x", Type: CaseRevenue}, []string{"technicianName"}},
		{"blank fields", ClosingData{WorkDone: "  ", TechnicianName: " ", Type: CaseRevenue}, []string{"workDone", "technicianName"}},
		{"negative amount", ClosingData{WorkDone: "x", TechnicianName: "Bilal", AmountTaken: -5, Type: CaseRevenue}, []string{"amountTaken"}},
		{"warranty without invoice", ClosingData{WorkDone: "x", TechnicianName: "Bilal", Type: CaseWarranty, WarrantyCardURL: "wc"}, []string{"invoiceSlipUrl"}},
		{"warranty without card", ClosingData{WorkDone: "x", TechnicianName: "Bilal", Type: CaseWarranty, InvoiceSlipURL: "inv"}, []string{"warrantyCardUrl"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slot := &memSlot{}
			s := newTestStore(t, slot)
			c, err := s.Create(context.Background(), Fields{ComplaintNumber: "9", Type: CaseRevenue})
			require.NoError(t, err)
			savesBefore := slot.saves

			_, err = s.Close(context.Background(), c.ID, tt.data)
			var verr *deskerrors.ValidationError
			require.True(t, errors.As(err, &verr), "expected validation error, got %v", err)
			assert.Equal(t, tt.missing, verr.Fields)

			after, err := s.Find(c.ID)
			require.NoError(t, err)
			assert.Equal(t, c, after)
			assert.Equal(t, savesBefore, slot.saves, "a rejected close writes nothing")
		})
	}
}

func TestStore_CloseUsesAttachedEvidenceAndDefaults(t *testing.T) {
	s := newTestStore(t, &memSlot{})
	ctx := context.Background()

	unknown, err := s.Create(ctx, Fields{ComplaintNumber: "5"})
	require.NoError(t, err)
	closed, err := s.Close(ctx, unknown.ID, ClosingData{WorkDone: "Motor swap", TechnicianName: "Ali", AmountTaken: 1200, PartsChanged: "Motor"})
	require.NoError(t, err)
	assert.Equal(t, CaseRevenue, closed.Type, "unknown cases close as revenue")
	assert.Equal(t, 1200.0, closed.Amount())
	assert.Equal(t, "Motor", closed.PartsChanged)

	// Evidence attached on an earlier close survives a reopen and satisfies the next close.
	w, err := s.Create(ctx, warrantyAC())
	require.NoError(t, err)
	_, err = s.Close(ctx, w.ID, ClosingData{WorkDone: "a", TechnicianName: "Ali", WarrantyCardURL: "wc", InvoiceSlipURL: "inv", FeedbackVideoURL: "vid"})
	require.NoError(t, err)
	_, err = s.Reopen(ctx, w.ID)
	require.NoError(t, err)

	again, err := s.Close(ctx, w.ID, ClosingData{WorkDone: "b", TechnicianName: "Ali"})
	require.NoError(t, err)
	assert.Equal(t, "wc", again.WarrantyCardURL)
	assert.Equal(t, "inv", again.InvoiceSlipURL)
	assert.Equal(t, "vid", again.FeedbackVideoURL)
	assert.Equal(t, 1, again.ReopenCount, "close never resets reopenCount")
}

func TestStore_ReopenTwiceCountsTwice(t *testing.T) {
	s := newTestStore(t, &memSlot{})
	ctx := context.Background()

	c, err := s.Create(ctx, Fields{Type: CaseRevenue})
	require.NoError(t, err)
	_, err = s.Close(ctx, c.ID, ClosingData{WorkDone: "x", TechnicianName: "y"})
	require.NoError(t, err)

	_, err = s.Reopen(ctx, c.ID)
	require.NoError(t, err)
	again, err := s.Reopen(ctx, c.ID)
	require.NoError(t, err)

	assert.Equal(t, StatusReopened, again.Status)
	assert.Equal(t, 2, again.ReopenCount)
}

func TestStore_UpdateStatus(t *testing.T) {
	s := newTestStore(t, &memSlot{})
	ctx := context.Background()
	c, err := s.Create(ctx, warrantyAC())
	require.NoError(t, err)

	for _, st := range []Status{StatusInProgress, StatusPending, StatusReopened, StatusInProgress} {
		updated, err := s.UpdateStatus(ctx, c.ID, st)
		require.NoError(t, err)
		assert.Equal(t, st, updated.Status)
	}

	_, err = s.UpdateStatus(ctx, c.ID, StatusCompleted)
	assert.True(t, deskerrors.IsValidation(err))

	_, err = s.UpdateStatus(ctx, c.ID, "Done")
	assert.True(t, deskerrors.IsInvalidValue(err))

	_, err = s.UpdateStatus(ctx, "missing", StatusPending)
	assert.True(t, deskerrors.IsNotFound(err))
}

func TestStore_FieldOverwrites(t *testing.T) {
	s := newTestStore(t, &memSlot{})
	ctx := context.Background()
	c, err := s.Create(ctx, warrantyAC())
	require.NoError(t, err)

	_, err = s.AssignTechnician(ctx, c.ID, " Bilal ")
	require.NoError(t, err)
	_, err = s.SetPartStatus(ctx, c.ID, PartRequired)
	require.NoError(t, err)
	updated, err := s.SetPartName(ctx, c.ID, "Compressor")
	require.NoError(t, err)

	assert.Equal(t, "Bilal", updated.TechnicianName)
	assert.Equal(t, PartRequired, updated.PartStatus)
	assert.Equal(t, "Compressor", updated.PartName)
	assert.Equal(t, StatusPending, updated.Status, "field edits do not transition status")

	_, err = s.SetPartStatus(ctx, c.ID, "Lost")
	assert.True(t, deskerrors.IsInvalidValue(err))

	cleared, err := s.SetPartStatus(ctx, c.ID, "")
	require.NoError(t, err)
	assert.Empty(t, cleared.PartStatus)
}

func TestStore_PersistenceFailureKeepsMutation(t *testing.T) {
	slot := &memSlot{}
	s := newTestStore(t, slot)
	ctx := context.Background()

	slot.failSave = true
	c, err := s.Create(ctx, warrantyAC())
	require.Error(t, err)
	assert.True(t, deskerrors.IsPersistence(err))
	assert.NotEmpty(t, c.ID)

	found, err := s.Find(c.ID)
	require.NoError(t, err)
	assert.Equal(t, c, found)

	slot.failSave = false
	_, err = s.AssignTechnician(ctx, c.ID, "Bilal")
	require.NoError(t, err)
	assert.Len(t, slot.stored(t), 1, "next successful write carries the earlier mutation")
}

func TestStore_ReturnedValuesAreCopies(t *testing.T) {
	s := newTestStore(t, &memSlot{})
	ctx := context.Background()
	c, err := s.Create(ctx, Fields{Type: CaseRevenue})
	require.NoError(t, err)
	closed, err := s.Close(ctx, c.ID, ClosingData{WorkDone: "x", TechnicianName: "y", AmountTaken: 500})
	require.NoError(t, err)

	*closed.AmountTaken = 9999
	found, err := s.Find(c.ID)
	require.NoError(t, err)
	assert.Equal(t, 500.0, found.Amount())
}

func TestStore_Replace(t *testing.T) {
	slot := &memSlot{}
	s := newTestStore(t, slot)

	err := s.Replace(context.Background(), []Complaint{{ID: "a"}, {ID: "a"}})
	assert.True(t, deskerrors.IsValidation(err))

	restored := []Complaint{{ID: "a", Status: StatusPending}, {ID: "b", Status: StatusCompleted, ClosingDate: "2026-10-01"}}
	require.NoError(t, s.Replace(context.Background(), restored))
	assert.Equal(t, restored, s.All())
	assert.Equal(t, restored, slot.stored(t))
}

func TestStore_ConcurrentMutations(t *testing.T) {
	s := newTestStore(t, &memSlot{})
	ctx := context.Background()
	c, err := s.Create(ctx, Fields{Type: CaseRevenue})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Reopen(ctx, c.ID)
		}()
	}
	wg.Wait()

	found, err := s.Find(c.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, found.ReopenCount)
}

func TestStore_AttachEvidence(t *testing.T) {
	s := newTestStore(t, &memSlot{})
	ctx := context.Background()

	c, err := s.Create(ctx, warrantyAC())
	require.NoError(t, err)

	_, err = s.AttachEvidence(ctx, c.ID, EvidenceWarrantyCard, "/evidence/card.png")
	require.NoError(t, err)
	_, err = s.AttachEvidence(ctx, c.ID, EvidenceInvoiceSlip, "/evidence/slip.png")
	require.NoError(t, err)
	updated, err := s.AttachEvidence(ctx, c.ID, EvidenceFeedbackVideo, "/evidence/video.mp4")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, updated.Status, "attaching evidence does not change status")

	closed, err := s.Close(ctx, c.ID, ClosingData{WorkDone: "PCB replaced", TechnicianName: "Bilal"})
	require.NoError(t, err)
	assert.Equal(t, "/evidence/card.png", closed.WarrantyCardURL)
	assert.Equal(t, "/evidence/slip.png", closed.InvoiceSlipURL)
	assert.Equal(t, "/evidence/video.mp4", closed.FeedbackVideoURL)

	_, err = s.AttachEvidence(ctx, c.ID, EvidenceKind("selfie"), "/x.png")
	assert.True(t, deskerrors.IsInvalidValue(err))
	_, err = s.AttachEvidence(ctx, c.ID, EvidenceWarrantyCard, " ")
	assert.True(t, deskerrors.IsValidation(err))
	_, err = s.AttachEvidence(ctx, "missing", EvidenceWarrantyCard, "/x.png")
	assert.True(t, deskerrors.IsNotFound(err))
}

func TestStore_PersistedLayout(t *testing.T) {
	slot := &memSlot{}
	s := newTestStore(t, slot)
	ctx := context.Background()

	fields := warrantyAC()
	fields.Type = CaseRevenue
	c, err := s.Create(ctx, fields)
	require.NoError(t, err)
	_, err = s.Close(ctx, c.ID, ClosingData{WorkDone: "Gas refill", AmountTaken: 2500, TechnicianName: "Usman"})
	require.NoError(t, err)

	// Every slot backend stores this JSON document verbatim.
	var raw []map[string]any
	slot.mu.Lock()
	require.NoError(t, json.Unmarshal(slot.data, &raw))
	slot.mu.Unlock()
	require.Len(t, raw, 1)

	for _, key := range []string{
		"id", "complaintNumber", "customerName", "phoneNumber", "address", "productType",
		"modelNumber", "serialNumber", "date", "status", "type", "technicianName",
		"workDone", "amountTaken", "closingDate", "reopenCount",
	} {
		assert.Contains(t, raw[0], key)
	}
	assert.Equal(t, "Completed", raw[0]["status"])
	assert.Equal(t, 2500.0, raw[0]["amountTaken"])
	assert.NotContains(t, raw[0], "partStatus", "unset optional fields are omitted")
}
