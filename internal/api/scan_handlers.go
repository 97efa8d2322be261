package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/memscope/internal/id/uuid"
	"github.com/JakeFAU/memscope/internal/progress"
	"github.com/JakeFAU/memscope/internal/scan"
)

// ScanState is the lifecycle state of a background scan.
type ScanState string

// Scan states.
const (
	ScanRunning  ScanState = "running"
	ScanDone     ScanState = "done"
	ScanFailed   ScanState = "failed"
	ScanCanceled ScanState = "canceled"
)

// ErrScanNotFound is returned for unknown scan ids.
var ErrScanNotFound = errors.New("scan not found")

type scanJob struct {
	id        string
	base      uint64
	maxAddr   uint64
	state     ScanState
	err       string
	started   time.Time
	snap      progress.Snapshot
	hasSnap   bool
	finished  time.Time
	readPages uint64
	failPages uint64
	runs      int
}

// ScanJobs tracks background scans. It implements progress.Sink so the
// scanner's tracker keeps each job's latest snapshot current.
type ScanJobs struct {
	mu   sync.RWMutex
	jobs map[string]*scanJob
	now  func() time.Time
}

// NewScanJobs returns an empty job table.
func NewScanJobs() *ScanJobs {
	return &ScanJobs{
		jobs: make(map[string]*scanJob),
		now:  time.Now,
	}
}

// Consume records snap against the job with the same id.
func (j *ScanJobs) Consume(_ context.Context, snap progress.Snapshot) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	job, ok := j.jobs[snap.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrScanNotFound, snap.ID)
	}
	job.snap = snap
	job.hasSnap = true
	return nil
}

// Close implements progress.Sink; jobs outlive their trackers.
func (j *ScanJobs) Close(context.Context) error {
	return nil
}

func (j *ScanJobs) start(id string, base, maxAddr uint64) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.jobs[id] = &scanJob{
		id:      id,
		base:    base,
		maxAddr: maxAddr,
		state:   ScanRunning,
		started: j.now(),
	}
}

func (j *ScanJobs) finish(res scan.Result, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	job, ok := j.jobs[res.ID]
	if !ok {
		return
	}
	job.finished = j.now()
	job.readPages = res.Success
	job.failPages = res.Fail
	job.runs = len(res.Runs)
	switch {
	case err == nil:
		job.state = ScanDone
	case errors.Is(err, context.Canceled):
		job.state = ScanCanceled
		job.err = err.Error()
	default:
		job.state = ScanFailed
		job.err = err.Error()
	}
}

func (j *ScanJobs) get(id string) (scanDTO, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	job, ok := j.jobs[id]
	if !ok {
		return scanDTO{}, ErrScanNotFound
	}
	return toScanDTO(job), nil
}

func (j *ScanJobs) list() []scanDTO {
	j.mu.RLock()
	defer j.mu.RUnlock()
	out := make([]scanDTO, 0, len(j.jobs))
	for _, job := range j.jobs {
		out = append(out, toScanDTO(job))
	}
	// v7 ids sort by creation time
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out
}

type scanDTO struct {
	ID             string     `json:"id"`
	State          ScanState  `json:"state"`
	Base           string     `json:"base"`
	Max            string     `json:"max"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	PagesRead      uint64     `json:"pages_read"`
	PagesFailed    uint64     `json:"pages_failed"`
	PagesTotal     uint64     `json:"pages_total,omitempty"`
	PercentDone    uint64     `json:"percent_done"`
	PercentRead    uint64     `json:"percent_read"`
	MemMapRuns     int        `json:"memmap_runs"`
	MemMapFull     bool       `json:"memmap_full"`
	Error          string     `json:"error,omitempty"`
	ElapsedSeconds float64    `json:"elapsed_seconds"`
}

func toScanDTO(job *scanJob) scanDTO {
	dto := scanDTO{
		ID:        job.id,
		State:     job.state,
		Base:      fmt.Sprintf("0x%x", job.base),
		Max:       fmt.Sprintf("0x%x", job.maxAddr),
		StartedAt: job.started,
		Error:     job.err,
	}
	if job.hasSnap {
		snap := job.snap
		dto.PagesRead = snap.Success
		dto.PagesFailed = snap.Fail
		if !snap.Unknown() {
			dto.PagesTotal = snap.Total
			dto.PercentDone = snap.PercentTotal()
			dto.PercentRead = snap.PercentSuccess()
		}
		dto.MemMapRuns = len(snap.Runs)
		dto.MemMapFull = snap.MemMapFull
		dto.ElapsedSeconds = snap.Elapsed.Seconds()
	}
	if job.state != ScanRunning {
		finished := job.finished
		dto.FinishedAt = &finished
		dto.PagesRead = job.readPages
		dto.PagesFailed = job.failPages
		dto.MemMapRuns = job.runs
	}
	return dto
}

// ScanHandler runs scans in the background and exposes their progress.
type ScanHandler struct {
	scanner *scan.Scanner
	jobs    *ScanJobs
	ctx     context.Context
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// NewScanHandler wires a scanner whose sinks include jobs. Scans run under
// ctx and stop when it is canceled.
func NewScanHandler(ctx context.Context, scanner *scan.Scanner, jobs *ScanJobs, logger *zap.Logger) *ScanHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if jobs == nil {
		jobs = NewScanJobs()
	}
	return &ScanHandler{
		scanner: scanner,
		jobs:    jobs,
		ctx:     ctx,
		logger:  logger,
	}
}

type startScanRequest struct {
	Base string `json:"base"`
	Max  string `json:"max"`
}

// Start handles POST /v1/scans with {"base": "0x0", "max": "0xfffff"}. It
// returns 202 with the scan id, 400 for bad addresses, or 503 when no device
// is attached.
func (h *ScanHandler) Start(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.scanner == nil {
		writeError(w, http.StatusServiceUnavailable, "no acquisition device attached")
		return
	}
	var req startScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	base, err := parseAddress(req.Base)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	maxAddr, err := parseAddress(req.Max)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if maxAddr < base {
		writeError(w, http.StatusBadRequest, "max must not be below base")
		return
	}
	id, err := scan.NewID()
	if err != nil {
		h.logger.Error("scan id generation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to start scan")
		return
	}

	h.jobs.start(id, base, maxAddr)
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		res, err := h.scanner.RunWithID(h.ctx, id, base, maxAddr)
		res.ID = id
		h.jobs.finish(res, err)
	}()
	writeJSON(w, http.StatusAccepted, map[string]string{"scan_id": id})
}

// List handles GET /v1/scans and returns {"scans": [...]}.
func (h *ScanHandler) List(w http.ResponseWriter, _ *http.Request) {
	if h == nil {
		writeJSON(w, http.StatusOK, map[string]any{"scans": []scanDTO{}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scans": h.jobs.list()})
}

// Get handles GET /v1/scans/{scan_id}. It returns {"scan": {...}}, 400 for
// malformed ids, or 404 for unknown ones.
func (h *ScanHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil {
		writeError(w, http.StatusNotFound, ErrScanNotFound.Error())
		return
	}
	id := chi.URLParam(r, "scan_id")
	if !uuid.Valid(id) {
		writeError(w, http.StatusBadRequest, "invalid scan id")
		return
	}
	dto, err := h.jobs.get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scan": dto})
}

// Wait blocks until every started scan has returned.
func (h *ScanHandler) Wait() {
	if h == nil {
		return
	}
	h.wg.Wait()
}
