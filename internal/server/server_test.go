package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"svcdesk/internal/complaint"
	"svcdesk/internal/desk"
	deskerrors "svcdesk/internal/errors"
	"svcdesk/internal/evidence"
	"svcdesk/internal/health"
	"svcdesk/internal/parser"
)

type memSlot struct {
	mu       sync.Mutex
	data     []byte
	failSave bool
}

func (m *memSlot) Load(context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data, nil
}

func (m *memSlot) Save(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave {
		return errors.New("disk full")
	}
	m.data = append([]byte(nil), data...)
	return nil
}

type stubExtractor struct {
	result *parser.Extraction
	err    error
}

func (s stubExtractor) Parse(context.Context, string) (*parser.Extraction, error) {
	return s.result, s.err
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Warning string          `json:"warning"`
	Details []string        `json:"details"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	router      *gin.Engine
	slot        *memSlot
	evidenceDir string
}

func newTestServer(t *testing.T, opts ...desk.Option) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	slot := &memSlot{}
	now := time.Date(2026, 10, 19, 11, 0, 0, 0, time.Local)
	store := complaint.NewStore(slot, complaint.WithClock(func() time.Time { return now }))
	_, err := store.Load(context.Background())
	require.NoError(t, err)

	dir := t.TempDir()
	uploader, err := evidence.NewLocalUploader(dir, "/evidence")
	require.NoError(t, err)

	monitor := health.NewMonitor("memory")
	all := append([]desk.Option{
		desk.WithMonitor(monitor),
		desk.WithUploader(uploader),
		desk.WithClock(func() time.Time { return now }),
	}, opts...)
	svc := desk.New(store, all...)

	return &testServer{
		router:      NewRouter(NewHandler(svc), monitor, dir),
		slot:        slot,
		evidenceDir: dir,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func decodeComplaint(t *testing.T, w *httptest.ResponseRecorder) complaint.Complaint {
	t.Helper()
	var c complaint.Complaint
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &c))
	return c
}

func decodeList(t *testing.T, w *httptest.ResponseRecorder) []complaint.Complaint {
	t.Helper()
	var list []complaint.Complaint
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &list))
	return list
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var status health.Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, health.StatusHealthy, status.Status)
	assert.Equal(t, "memory", status.StorageBackend)
}

func TestListComplaints(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name  string
		path  string
		want  int
		check func(t *testing.T, list []complaint.Complaint)
	}{
		{name: "active by default", path: "/api/complaints", want: 2},
		{name: "search is case-insensitive", path: "/api/complaints?search=AHMED", want: 1, check: func(t *testing.T, list []complaint.Complaint) {
			assert.Equal(t, "1", list[0].ID)
		}},
		{name: "search by phone", path: "/api/complaints?view=all&search=0312", want: 1},
		{name: "history is empty", path: "/api/complaints?view=history", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodGet, tt.path, nil)
			require.Equal(t, http.StatusOK, w.Code)
			list := decodeList(t, w)
			assert.Len(t, list, tt.want)
			if tt.check != nil {
				tt.check(t, list)
			}
		})
	}

	w := s.do(t, http.MethodGet, "/api/complaints?view=archived", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateAndGetComplaint(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/complaints", complaint.Fields{
		ComplaintNumber: "2001",
		CustomerName:    "Bilal Qureshi",
		PhoneNumber:     "0333-9876543",
		Address:         "Clifton, Karachi",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decodeComplaint(t, w)
	assert.Equal(t, complaint.StatusPending, created.Status)
	assert.Equal(t, complaint.ProductOther, created.ProductType)
	assert.Equal(t, complaint.CaseUnknown, created.Type)
	assert.Equal(t, "2026-10-19", created.Date)

	w = s.do(t, http.MethodGet, "/api/complaints/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Bilal Qureshi", decodeComplaint(t, w).CustomerName)

	w = s.do(t, http.MethodGet, "/api/complaints/unknown", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateComplaintValidation(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/complaints", complaint.Fields{ComplaintNumber: "2001"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	env := decode(t, w)
	assert.Equal(t, "error", env.Status)
	assert.Contains(t, env.Details, "customerName")

	w = s.do(t, http.MethodPost, "/api/complaints", complaint.Fields{
		ComplaintNumber: "2001", CustomerName: "A", PhoneNumber: "1", Address: "B", ProductType: "Microwave",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLifecycle(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPatch, "/api/complaints/2/technician", TechnicianPayload{TechnicianName: "Usman"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Usman", decodeComplaint(t, w).TechnicianName)

	w = s.do(t, http.MethodPatch, "/api/complaints/2/status", StatusPayload{Status: "In Progress"})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPatch, "/api/complaints/2/status", StatusPayload{Status: "Completed"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	partStatus, partName := "Required", "Compressor"
	w = s.do(t, http.MethodPatch, "/api/complaints/2/parts", PartsPayload{PartStatus: &partStatus, PartName: &partName})
	require.Equal(t, http.StatusOK, w.Code)
	parts := decodeComplaint(t, w)
	assert.Equal(t, complaint.PartRequired, parts.PartStatus)
	assert.Equal(t, "Compressor", parts.PartName)

	w = s.do(t, http.MethodPatch, "/api/complaints/2/parts", PartsPayload{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/complaints/2/close", complaint.ClosingData{WorkDone: "Compressor replaced"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w).Details, "technicianName")

	w = s.do(t, http.MethodPost, "/api/complaints/2/close", complaint.ClosingData{
		WorkDone: "Compressor replaced", AmountTaken: 4500, TechnicianName: "Usman",
	})
	require.Equal(t, http.StatusOK, w.Code)
	closed := decodeComplaint(t, w)
	assert.Equal(t, complaint.StatusCompleted, closed.Status)
	assert.Equal(t, "2026-10-19", closed.ClosingDate)
	require.NotNil(t, closed.AmountTaken)
	assert.Equal(t, 4500.0, *closed.AmountTaken)

	w = s.do(t, http.MethodGet, "/api/complaints?view=history", nil)
	assert.Len(t, decodeList(t, w), 1)

	w = s.do(t, http.MethodPost, "/api/complaints/2/reopen", nil)
	require.Equal(t, http.StatusOK, w.Code)
	reopened := decodeComplaint(t, w)
	assert.Equal(t, complaint.StatusReopened, reopened.Status)
	assert.Equal(t, 1, reopened.ReopenCount)
	assert.Equal(t, "2026-10-19", reopened.ClosingDate)
}

func TestPersistenceFailureIsAWarning(t *testing.T) {
	s := newTestServer(t)
	s.slot.failSave = true

	w := s.do(t, http.MethodPost, "/api/complaints/1/reopen", nil)
	require.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w)
	assert.Equal(t, "success", env.Status)
	assert.Contains(t, env.Warning, "disk full")

	w = s.do(t, http.MethodGet, "/health", nil)
	assert.Contains(t, w.Body.String(), health.StatusDegraded)
}

func multipartUpload(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func TestUploadEvidence(t *testing.T) {
	s := newTestServer(t)

	upload := func(kind, filename string) *httptest.ResponseRecorder {
		body, contentType := multipartUpload(t, filename, []byte("scan"))
		req := httptest.NewRequest(http.MethodPost, "/api/complaints/1/evidence/"+kind, body)
		req.Header.Set("Content-Type", contentType)
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, req)
		return w
	}

	w := upload("warranty-card", "card.jpg")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	card := decodeComplaint(t, w)
	require.True(t, strings.HasPrefix(card.WarrantyCardURL, "/evidence/1/warranty-card-"), card.WarrantyCardURL)

	served := s.do(t, http.MethodGet, card.WarrantyCardURL, nil)
	assert.Equal(t, http.StatusOK, served.Code)
	assert.Equal(t, "scan", served.Body.String())

	w = upload("invoice-slip", "slip.pdf")
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, "/api/complaints/1/close", complaint.ClosingData{WorkDone: "Gas refill", TechnicianName: "Kamran"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, http.StatusBadRequest, upload("selfie", "me.jpg").Code)
	assert.Equal(t, http.StatusBadRequest, upload("feedback-video", "clip.jpg").Code)
}

func TestIntakeFlow(t *testing.T) {
	s := newTestServer(t, desk.WithExtractor(stubExtractor{result: &parser.Extraction{
		ComplaintNumber: "3050",
		CustomerName:    "Hina Baig",
		PhoneNumber:     "0345-1112223",
		Address:         "Model Town, Lahore",
		ProductType:     "Washing Machine",
	}}))

	w := s.do(t, http.MethodGet, "/api/intake", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var state IntakeState
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &state))
	assert.Equal(t, complaint.ProductAC, state.Fields.ProductType)
	assert.Equal(t, complaint.CaseWarranty, state.Fields.Type)

	w = s.do(t, http.MethodPost, "/api/intake/parse", ParsePayload{Text: "3050 Hina Baig 0345-1112223"})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &state))
	assert.True(t, state.Merged)
	assert.Equal(t, complaint.ProductWashingMachine, state.Fields.ProductType)
	assert.Equal(t, complaint.CaseWarranty, state.Fields.Type)

	w = s.do(t, http.MethodPost, "/api/intake/submit", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "Hina Baig", decodeComplaint(t, w).CustomerName)

	w = s.do(t, http.MethodGet, "/api/intake", nil)
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &state))
	assert.Empty(t, state.Fields.CustomerName)

	w = s.do(t, http.MethodPost, "/api/intake/submit", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIntakeRequestValidation(t *testing.T) {
	s := newTestServer(t, desk.WithExtractor(stubExtractor{err: errors.New("unused")}))

	w := s.do(t, http.MethodPost, "/api/intake/parse", ParsePayload{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPut, "/api/intake", complaint.Fields{CustomerName: "Typed"})
	require.Equal(t, http.StatusOK, w.Code)
}

func TestReportsAndExports(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/reports", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(decode(t, w).Data), `"activeCount":2`)

	w = s.do(t, http.MethodGet, "/api/reports/summary.png", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))

	w = s.do(t, http.MethodGet, "/api/export/complaints.csv", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "ServiceCenter_Report_2026-10-19.csv")
	assert.True(t, strings.HasPrefix(w.Body.String(), "\uFEFF"))
	assert.Equal(t, 3, strings.Count(w.Body.String(), "\n"))

	w = s.do(t, http.MethodGet, "/api/export/report.csv", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "TECHNICIAN LEADERBOARD")
}

func TestBackupAndRestore(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/export/backup.json", nil)
	require.Equal(t, http.StatusOK, w.Code)
	backup := w.Body.Bytes()

	var records []complaint.Complaint
	require.NoError(t, json.Unmarshal(backup, &records))
	require.Len(t, records, 2)

	w = s.do(t, http.MethodPost, "/api/complaints/1/reopen", nil)
	require.Equal(t, http.StatusOK, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/restore", bytes.NewReader(backup))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	w = s.do(t, http.MethodGet, "/api/complaints/1", nil)
	assert.Equal(t, 0, decodeComplaint(t, w).ReopenCount)

	req = httptest.NewRequest(http.MethodPost, "/api/restore", strings.NewReader("{not json"))
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIntakeParseFailureKeepsForm(t *testing.T) {
	s := newTestServer(t, desk.WithExtractor(stubExtractor{err: deskerrors.NewParseError("model returned no candidates", nil)}))

	w := s.do(t, http.MethodPut, "/api/intake", complaint.Fields{CustomerName: "Typed by hand", ProductType: complaint.ProductAC})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, "/api/intake/parse", ParsePayload{Text: "garbled text"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	env := decode(t, w)
	assert.Equal(t, "success", env.Status)
	assert.Contains(t, env.Warning, "no candidates")

	var state IntakeState
	require.NoError(t, json.Unmarshal(env.Data, &state))
	assert.False(t, state.Merged)
	assert.Equal(t, "Typed by hand", state.Fields.CustomerName)
}
