package submission

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rebuildcl/inspector/internal/api"
	"github.com/rebuildcl/inspector/internal/models"
	"github.com/rebuildcl/inspector/internal/storage"
)

// 1x1 transparent PNG, canonical form.
const testSignature = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mP8z8BQDwAEhQGAhKmMIQAAAABJRU5ErkJggg=="

// backendRecorder is a fake inspection backend that counts calls per path.
type backendRecorder struct {
	mu    sync.Mutex
	calls map[string]int

	reportStatus    int
	signatureStatus int
	uploadStatus    int

	lastReportForm map[string][]string // field name -> values (text fields and file part names)
}

func newBackendRecorder() *backendRecorder {
	return &backendRecorder{
		calls:           make(map[string]int),
		reportStatus:    http.StatusOK,
		signatureStatus: http.StatusOK,
		uploadStatus:    http.StatusOK,
	}
}

func (b *backendRecorder) count(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[path]
}

func (b *backendRecorder) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.calls[r.URL.Path]++
		b.mu.Unlock()

		switch {
		case r.URL.Path == "/inspections/insp-1/report":
			require.NoError(t, r.ParseMultipartForm(10<<20))
			b.mu.Lock()
			b.lastReportForm = map[string][]string{}
			for name, vals := range r.MultipartForm.Value {
				b.lastReportForm[name] = vals
			}
			for name := range r.MultipartForm.File {
				b.lastReportForm[name] = []string{"<file>"}
			}
			b.mu.Unlock()

			if b.reportStatus != http.StatusOK {
				http.Error(w, `{"error":"report rejected by server"}`, b.reportStatus)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"report":{"items":[{"imageUrl":"https://cdn.example/img0.png"},{"imageUrl":""}]}}`))

		case r.URL.Path == "/inspections/insp-1/signature":
			if b.signatureStatus != http.StatusOK {
				http.Error(w, `{"error":"signature rejected"}`, b.signatureStatus)
				return
			}
			body, _ := io.ReadAll(r.Body)
			var req map[string]string
			require.NoError(t, json.Unmarshal(body, &req))
			assert.Equal(t, testSignature, req["signature"])
			w.WriteHeader(http.StatusOK)

		case r.URL.Path == "/inspections/insp-1/upload-pdf":
			if b.uploadStatus != http.StatusOK {
				http.Error(w, `{"error":"storage unavailable"}`, b.uploadStatus)
				return
			}
			w.WriteHeader(http.StatusOK)

		case r.URL.Path == "/photos/item0.png":
			_, _ = w.Write([]byte("png-bytes-0"))

		default:
			http.NotFound(w, r)
		}
	})
}

func newTestPipeline(t *testing.T, serverURL string) *Pipeline {
	t.Helper()
	client := api.NewClient(serverURL, api.StaticToken("tok"), zap.NewNop())
	store := storage.NewLocalStore(t.TempDir(), zap.NewNop())
	return NewPipeline(client, store, store.BaseDir(), zap.NewNop())
}

func sampleSubmission() *models.ReportSubmission {
	one := decimal.NewFromInt(1)
	return &models.ReportSubmission{
		InspectionID: "insp-1",
		Inspection: &models.Inspection{
			ID:     "insp-1",
			Status: "PENDING",
			Property: &models.Property{
				Address: "Av. Providencia 1234",
			},
		},
		Items: []models.LineItem{
			{
				Category:    "Muros",
				Description: "Grieta en muro norte",
				Quantity:    decimal.NewFromFloat(2.5),
				Unit:        "m2",
				UnitPrice:   one,
				Subtotal:    decimal.NewFromFloat(2.5),
			},
			{
				Category:    "Pisos",
				Description: "Cerámica suelta",
				Quantity:    one,
				Unit:        "m2",
				UnitPrice:   one,
				Subtotal:    one,
			},
		},
		Signature:  models.SignatureArtifact{Image: testSignature},
		SignerName: "Pedro Soto",
		Rate: models.ExchangeRateSnapshot{
			Success: true,
			Rate:    37000,
		},
	}
}

func TestPipeline_Finalize(t *testing.T) {
	t.Run("happy path stores report then signature", func(t *testing.T) {
		backend := newBackendRecorder()
		server := httptest.NewServer(backend.handler(t))
		defer server.Close()

		p := newTestPipeline(t, server.URL)
		sub := sampleSubmission()
		sub.Items[0].Photo = models.RemotePhoto(server.URL + "/photos/item0.png")

		result, err := p.Finalize(context.Background(), sub, Options{})
		require.NoError(t, err)

		assert.True(t, result.ReportCreated)
		assert.True(t, result.SignatureStored)
		assert.Empty(t, result.Warnings)
		assert.Equal(t, 1, backend.count("/inspections/insp-1/report"))
		assert.Equal(t, 1, backend.count("/inspections/insp-1/signature"))

		// Report payload carried the items, the rate snapshot, and the
		// resolved image part.
		assert.Contains(t, backend.lastReportForm, "items")
		assert.Contains(t, backend.lastReportForm, "ufInfo")
		assert.Contains(t, backend.lastReportForm, "image_0")
		assert.NotContains(t, backend.lastReportForm, "image_1")

		// Canonical URL reconciled onto the first item.
		assert.Equal(t, models.PhotoRemote, sub.Items[0].Photo.Kind)
		assert.Equal(t, "https://cdn.example/img0.png", sub.Items[0].Photo.URL)

		// Local status mirrors the server transition.
		assert.Equal(t, "REPORT_SUBMITTED", sub.Inspection.Status)
	})

	t.Run("zero items fails fast with no network calls", func(t *testing.T) {
		backend := newBackendRecorder()
		server := httptest.NewServer(backend.handler(t))
		defer server.Close()

		p := newTestPipeline(t, server.URL)
		sub := sampleSubmission()
		sub.Items = nil

		_, err := p.Finalize(context.Background(), sub, Options{})
		assert.ErrorIs(t, err, ErrNoItems)
		assert.Equal(t, 0, backend.count("/inspections/insp-1/report"))
		assert.Equal(t, 0, backend.count("/inspections/insp-1/signature"))
	})

	t.Run("missing signature fails fast", func(t *testing.T) {
		backend := newBackendRecorder()
		server := httptest.NewServer(backend.handler(t))
		defer server.Close()

		p := newTestPipeline(t, server.URL)
		sub := sampleSubmission()
		sub.Signature = models.SignatureArtifact{}

		_, err := p.Finalize(context.Background(), sub, Options{})
		assert.ErrorIs(t, err, ErrNoSignature)
		assert.Equal(t, 0, backend.count("/inspections/insp-1/report"))
	})

	t.Run("report 500 halts before signature", func(t *testing.T) {
		backend := newBackendRecorder()
		backend.reportStatus = http.StatusInternalServerError
		server := httptest.NewServer(backend.handler(t))
		defer server.Close()

		p := newTestPipeline(t, server.URL)
		sub := sampleSubmission()

		result, err := p.Finalize(context.Background(), sub, Options{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "report rejected by server")
		assert.False(t, result.ReportCreated)
		assert.Equal(t, 0, backend.count("/inspections/insp-1/signature"))
		assert.Equal(t, "PENDING", sub.Inspection.Status)
	})

	t.Run("signature failure aborts after report", func(t *testing.T) {
		backend := newBackendRecorder()
		backend.signatureStatus = http.StatusBadGateway
		server := httptest.NewServer(backend.handler(t))
		defer server.Close()

		p := newTestPipeline(t, server.URL)
		sub := sampleSubmission()

		result, err := p.Finalize(context.Background(), sub, Options{})
		require.Error(t, err)
		assert.True(t, result.ReportCreated)
		assert.False(t, result.SignatureStored)
	})

	t.Run("unfetchable item photo is skipped not fatal", func(t *testing.T) {
		backend := newBackendRecorder()
		server := httptest.NewServer(backend.handler(t))
		defer server.Close()

		p := newTestPipeline(t, server.URL)
		sub := sampleSubmission()
		sub.Items[0].Photo = models.RemotePhoto(server.URL + "/photos/missing.png")

		result, err := p.Finalize(context.Background(), sub, Options{})
		require.NoError(t, err)
		assert.True(t, result.SignatureStored)
		assert.Equal(t, []int{0}, result.SkippedImages)
		assert.NotContains(t, backend.lastReportForm, "image_0")
	})

	t.Run("pdf upload failure degrades but finalize succeeds", func(t *testing.T) {
		backend := newBackendRecorder()
		backend.uploadStatus = http.StatusServiceUnavailable
		server := httptest.NewServer(backend.handler(t))
		defer server.Close()

		p := newTestPipeline(t, server.URL)
		sub := sampleSubmission()

		result, err := p.Finalize(context.Background(), sub, Options{GeneratePDF: true})
		require.NoError(t, err)

		assert.True(t, result.ReportCreated)
		assert.True(t, result.SignatureStored)
		assert.NotEmpty(t, result.PDFPath)
		assert.FileExists(t, result.PDFPath)
		assert.False(t, result.PDFUploaded)
		require.Len(t, result.Warnings, 1)
		assert.Contains(t, result.Warnings[0], "upload pdf")
	})

	t.Run("pdf generated and uploaded when requested", func(t *testing.T) {
		backend := newBackendRecorder()
		server := httptest.NewServer(backend.handler(t))
		defer server.Close()

		p := newTestPipeline(t, server.URL)
		sub := sampleSubmission()

		result, err := p.Finalize(context.Background(), sub, Options{GeneratePDF: true})
		require.NoError(t, err)
		assert.True(t, result.PDFUploaded)
		assert.FileExists(t, result.PDFPath)
		assert.Equal(t, 1, backend.count("/inspections/insp-1/upload-pdf"))
	})
}

func TestPipeline_InFlightGuard(t *testing.T) {
	// The first finalize blocks on the report endpoint; a second call must
	// return ErrInFlight instead of queueing a duplicate.
	release := make(chan struct{})
	var entered atomic.Bool

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entered.Store(true)
		<-release
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"report":{"items":[]}}`))
	}))
	defer server.Close()

	p := newTestPipeline(t, server.URL)
	sub := sampleSubmission()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = p.Finalize(context.Background(), sub, Options{})
	}()

	require.Eventually(t, entered.Load, 2*time.Second, 10*time.Millisecond)

	_, err := p.Finalize(context.Background(), sampleSubmission(), Options{})
	assert.ErrorIs(t, err, ErrInFlight)

	close(release)
	<-done

	// Guard released after completion.
	_, err = p.Finalize(context.Background(), sampleSubmission(), Options{})
	assert.NotErrorIs(t, err, ErrInFlight)
}

func TestPipeline_RetryPDFUpload(t *testing.T) {
	var uploads atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/inspections/insp-1/upload-pdf" {
			uploads.Add(1)
			require.NoError(t, r.ParseMultipartForm(10<<20))
			_, ok := r.MultipartForm.File["pdf"]
			assert.True(t, ok)
			w.WriteHeader(http.StatusOK)
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	p := newTestPipeline(t, server.URL)

	dir := t.TempDir()
	pdfPath := fmt.Sprintf("%s/reporte_insp-1.pdf", dir)
	require.NoError(t, os.WriteFile(pdfPath, []byte("%PDF-1.4 fake"), 0o644))

	require.NoError(t, p.RetryPDFUpload(context.Background(), "insp-1", pdfPath))
	assert.Equal(t, int32(1), uploads.Load())

	t.Run("missing local file errors without network", func(t *testing.T) {
		err := p.RetryPDFUpload(context.Background(), "insp-1", pdfPath+".gone")
		assert.Error(t, err)
		assert.Equal(t, int32(1), uploads.Load())
	})
}
