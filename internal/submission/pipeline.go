// Package submission drives the finalize sequence: report creation with
// multipart image upload, signature storage, document generation, and
// best-effort cloud upload of the generated PDF.
package submission

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rebuildcl/inspector/internal/api"
	"github.com/rebuildcl/inspector/internal/lifecycle"
	"github.com/rebuildcl/inspector/internal/models"
	"github.com/rebuildcl/inspector/internal/pdf"
	"github.com/rebuildcl/inspector/internal/signature"
	"github.com/rebuildcl/inspector/internal/storage"
)

var (
	// ErrInFlight is returned when finalize is invoked while a previous
	// finalize for the same pipeline is still running.
	ErrInFlight = errors.New("submission: finalize already in flight")

	// ErrNoItems is returned when finalize is attempted with an empty report.
	ErrNoItems = errors.New("submission: report has no items")

	// ErrNoSignature is returned when finalize is attempted before the
	// owner's signature was captured.
	ErrNoSignature = errors.New("submission: signature not captured")
)

// Criticality tags a step as pipeline-fatal or merely degrading.
type Criticality int

const (
	// Required steps abort the pipeline on failure.
	Required Criticality = iota
	// BestEffort steps log their failure as a warning and let the
	// pipeline continue.
	BestEffort
)

// Options selects the optional tail of the finalize sequence.
type Options struct {
	// GeneratePDF renders the report document after the report and
	// signature are stored. The upload that follows is best-effort.
	GeneratePDF bool
}

// Result reports how far the finalize sequence got and what degraded.
type Result struct {
	ReportCreated   bool
	SignatureStored bool
	PDFPath         string // local document path, empty unless generated
	PDFUploaded     bool
	SkippedImages   []int    // item indexes whose photo could not be attached
	Warnings        []string // human-readable degradation notes
}

// Pipeline executes the finalize sequence for one inspection report.
// Finalize is guarded against concurrent invocation; a second call while
// one is running returns ErrInFlight instead of queueing a duplicate.
type Pipeline struct {
	client *api.Client
	store  storage.ArtifactStore
	docDir string
	logger *zap.Logger

	inFlight atomic.Bool
}

// NewPipeline creates a pipeline. docDir is where generated PDFs are kept.
func NewPipeline(client *api.Client, store storage.ArtifactStore, docDir string, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		client: client,
		store:  store,
		docDir: docDir,
		logger: logger,
	}
}

// runState is the mutable state threaded through one finalize run.
type runState struct {
	sub    *models.ReportSubmission
	opts   Options
	result *Result

	payload       *api.MultipartPayload
	itemImages    [][]byte // decoded bytes per item index, nil when unavailable
	canonicalURLs []string
	pdfBytes      []byte
}

type step struct {
	name        string
	criticality Criticality
	run         func(ctx context.Context, st *runState) error
}

func (p *Pipeline) steps() []step {
	return []step{
		{name: "validate preconditions", criticality: Required, run: p.validate},
		{name: "build multipart payload", criticality: Required, run: p.buildPayload},
		{name: "create report", criticality: Required, run: p.postReport},
		{name: "reconcile image urls", criticality: BestEffort, run: p.reconcileImageURLs},
		{name: "store signature", criticality: Required, run: p.postSignature},
		{name: "generate pdf", criticality: BestEffort, run: p.generatePDF},
		{name: "upload pdf", criticality: BestEffort, run: p.uploadPDF},
	}
}

// Finalize runs the submission sequence. The returned Result is valid
// even on error and reports which steps completed before the failure.
func (p *Pipeline) Finalize(ctx context.Context, sub *models.ReportSubmission, opts Options) (*Result, error) {
	if !p.inFlight.CompareAndSwap(false, true) {
		return nil, ErrInFlight
	}
	defer p.inFlight.Store(false)

	st := &runState{sub: sub, opts: opts, result: &Result{}}

	// Correlates all log lines of one finalize attempt.
	logger := p.logger.With(
		zap.String("run_id", uuid.NewString()),
		zap.String("inspection_id", sub.InspectionID))
	logger.Info("Finalize started", zap.Int("items", len(sub.Items)))

	for _, s := range p.steps() {
		if err := ctx.Err(); err != nil {
			return st.result, fmt.Errorf("finalize abandoned at %q: %w", s.name, err)
		}

		err := s.run(ctx, st)
		if err == nil {
			continue
		}

		if s.criticality == Required {
			logger.Error("Finalize step failed",
				zap.String("step", s.name),
				zap.Error(err))
			return st.result, fmt.Errorf("%s: %w", s.name, err)
		}

		logger.Warn("Finalize step degraded",
			zap.String("step", s.name),
			zap.Error(err))
		st.result.Warnings = append(st.result.Warnings, fmt.Sprintf("%s: %v", s.name, err))
	}

	logger.Info("Finalize completed",
		zap.Bool("pdf_uploaded", st.result.PDFUploaded),
		zap.Int("warnings", len(st.result.Warnings)))
	return st.result, nil
}

func (p *Pipeline) validate(_ context.Context, st *runState) error {
	if len(st.sub.Items) == 0 {
		return ErrNoItems
	}
	if st.sub.Signature.IsZero() {
		return ErrNoSignature
	}
	return nil
}

// wireItem is the report payload shape for one line item.
type wireItem struct {
	Category    string `json:"category"`
	Description string `json:"description"`
	Quantity    string `json:"quantity"`
}

func (p *Pipeline) buildPayload(ctx context.Context, st *runState) error {
	payload := &api.MultipartPayload{}

	items := make([]wireItem, len(st.sub.Items))
	for i, item := range st.sub.Items {
		items[i] = wireItem{
			Category:    item.Category,
			Description: item.Description,
			Quantity:    item.Quantity.String(),
		}
	}
	if err := payload.AddJSONField("items", items); err != nil {
		return err
	}

	if st.sub.Rate.Success {
		if err := payload.AddJSONField("ufInfo", st.sub.Rate); err != nil {
			return err
		}
	}

	// Resolve every photo as an unordered batch keyed by item index, then
	// attach sequentially so part order is stable. A single photo's failure
	// is recorded and skipped rather than aborting the submission.
	st.itemImages = make([][]byte, len(st.sub.Items))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	for i, item := range st.sub.Items {
		if item.Photo.IsZero() {
			continue
		}
		i, photo := i, item.Photo
		g.Go(func() error {
			data, err := p.resolvePhoto(gctx, photo)
			if err != nil {
				p.logger.Warn("Skipping item photo",
					zap.Int("item_index", i),
					zap.Error(err))
				mu.Lock()
				st.result.SkippedImages = append(st.result.SkippedImages, i)
				mu.Unlock()
				return nil
			}
			st.itemImages[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, data := range st.itemImages {
		if data == nil {
			continue
		}
		payload.AddFile(fmt.Sprintf("image_%d", i), fmt.Sprintf("image_%d.png", i), data)
	}

	if cover := p.coverPhoto(ctx, st.sub.Inspection); cover != nil {
		payload.AddFile("property_image", "property_image.png", cover)
	}

	st.payload = payload
	return nil
}

// resolvePhoto turns any photo reference into raw bytes.
func (p *Pipeline) resolvePhoto(ctx context.Context, ref models.PhotoRef) ([]byte, error) {
	switch ref.Kind {
	case models.PhotoLocal:
		data, err := os.ReadFile(ref.Path)
		if err != nil {
			return nil, fmt.Errorf("read local photo: %w", err)
		}
		return data, nil
	case models.PhotoEmbedded:
		canonical, err := signature.NormalizeEncodedImage(ref.Data)
		if err != nil {
			return nil, fmt.Errorf("normalize embedded photo: %w", err)
		}
		data, err := signature.DecodeImage(canonical)
		if err != nil {
			return nil, fmt.Errorf("decode embedded photo: %w", err)
		}
		return data, nil
	case models.PhotoRemote:
		data, err := p.client.FetchBinary(ctx, ref.URL)
		if err != nil {
			return nil, fmt.Errorf("fetch remote photo: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("photo reference is empty")
	}
}

// coverPhoto fetches the property's first stored photo, best-effort.
func (p *Pipeline) coverPhoto(ctx context.Context, insp *models.Inspection) []byte {
	if insp == nil || insp.Property == nil || len(insp.Property.Photos) == 0 {
		return nil
	}
	url := insp.Property.Photos[0].URL
	if url == "" {
		return nil
	}
	data, err := p.client.FetchBinary(ctx, url)
	if err != nil {
		p.logger.Warn("Skipping property cover photo", zap.String("url", url), zap.Error(err))
		return nil
	}
	return data
}

type reportResponse struct {
	Report struct {
		Items []struct {
			ImageURL string `json:"imageUrl"`
		} `json:"items"`
	} `json:"report"`
}

func (p *Pipeline) postReport(ctx context.Context, st *runState) error {
	path := fmt.Sprintf("/inspections/%s/report", st.sub.InspectionID)

	var resp reportResponse
	if err := p.client.PostMultipart(ctx, path, st.payload, &resp); err != nil {
		return err
	}

	st.result.ReportCreated = true
	st.reportItems(resp)
	return nil
}

// reportItems stashes the server's canonical URLs on the run state for the
// reconcile step.
func (st *runState) reportItems(resp reportResponse) {
	st.canonicalURLs = make([]string, len(resp.Report.Items))
	for i, it := range resp.Report.Items {
		st.canonicalURLs[i] = it.ImageURL
	}
}

func (p *Pipeline) reconcileImageURLs(_ context.Context, st *runState) error {
	for i := range st.sub.Items {
		if i >= len(st.canonicalURLs) || st.canonicalURLs[i] == "" {
			// Local reference stays as the document-embedding fallback.
			continue
		}
		st.sub.Items[i].Photo = models.RemotePhoto(st.canonicalURLs[i])
	}
	return nil
}

type signatureRequest struct {
	Signature string `json:"signature"`
}

func (p *Pipeline) postSignature(ctx context.Context, st *runState) error {
	path := fmt.Sprintf("/inspections/%s/signature", st.sub.InspectionID)
	if err := p.client.PostJSON(ctx, path, signatureRequest{Signature: st.sub.Signature.Image}, nil); err != nil {
		return err
	}

	st.result.SignatureStored = true
	p.advanceLocalStatus(ctx, st.sub.Inspection)
	return nil
}

// advanceLocalStatus mirrors the server-side transition on the in-memory
// inspection once the report and signature are both stored.
func (p *Pipeline) advanceLocalStatus(ctx context.Context, insp *models.Inspection) {
	if insp == nil {
		return
	}
	machine, err := lifecycle.NewInspectionMachine(lifecycle.Status(insp.Status))
	if err != nil {
		p.logger.Warn("Cannot advance local status", zap.String("status", insp.Status), zap.Error(err))
		return
	}
	if err := machine.Fire(ctx, lifecycle.TriggerSubmitReport); err != nil {
		p.logger.Warn("Cannot advance local status", zap.String("status", insp.Status), zap.Error(err))
		return
	}
	insp.Status = string(machine.Status())
}

func (p *Pipeline) generatePDF(_ context.Context, st *runState) error {
	if !st.opts.GeneratePDF {
		return nil
	}

	data := pdf.ReportData{
		InspectionID: st.sub.InspectionID,
		Items:        st.sub.Items,
		ItemImages:   st.itemImages,
		Rate:         st.sub.Rate,
		SignerName:   st.sub.SignerName,
		SignedAt:     time.Now(),
	}
	if insp := st.sub.Inspection; insp != nil {
		data.VisitDate = insp.VisitDate
		if insp.Property != nil {
			data.Address = insp.Property.Address
			data.Bedrooms = insp.Property.Bedrooms
			data.Bathrooms = insp.Property.Bathrooms
			data.InnerArea = insp.Property.InnerArea
		}
		if insp.Region != nil {
			data.Region = insp.Region.Name
		}
		if insp.City != nil {
			data.City = insp.City.Name
		}
		if insp.Commune != nil {
			data.Commune = insp.Commune.Name
		}
	}

	if img, err := signature.DecodeImage(st.sub.Signature.Image); err == nil {
		data.SignatureImage = img
	} else {
		p.logger.Warn("Signature image not embeddable", zap.Error(err))
	}

	rendered, err := pdf.GenerateReportPDF(data)
	if err != nil {
		return fmt.Errorf("render document: %w", err)
	}
	st.pdfBytes = rendered

	docPath := filepath.Join(p.docDir, fmt.Sprintf("reporte_%s.pdf", st.sub.InspectionID))
	if err := p.store.SaveArtifact(docPath, rendered, storage.ArtifactPDF); err != nil {
		return fmt.Errorf("save document locally: %w", err)
	}
	st.result.PDFPath = docPath
	return nil
}

func (p *Pipeline) uploadPDF(ctx context.Context, st *runState) error {
	if len(st.pdfBytes) == 0 {
		return nil
	}

	if err := p.postPDF(ctx, st.sub.InspectionID, st.pdfBytes); err != nil {
		return err
	}
	st.result.PDFUploaded = true
	return nil
}

// RetryPDFUpload re-attempts only the cloud upload of an already generated
// document. It is the recovery path after a degraded finalize; the report
// and signature are not re-submitted.
func (p *Pipeline) RetryPDFUpload(ctx context.Context, inspectionID, pdfPath string) error {
	data, err := os.ReadFile(pdfPath)
	if err != nil {
		return fmt.Errorf("read local document: %w", err)
	}
	return p.postPDF(ctx, inspectionID, data)
}

func (p *Pipeline) postPDF(ctx context.Context, inspectionID string, data []byte) error {
	payload := &api.MultipartPayload{}
	payload.AddFile("pdf", fmt.Sprintf("reporte_%s.pdf", inspectionID), data)

	path := fmt.Sprintf("/inspections/%s/upload-pdf", inspectionID)
	return p.client.PostMultipart(ctx, path, payload, nil)
}
