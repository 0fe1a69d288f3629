package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/coverkit/internal/cover"
	"github.com/maauso/coverkit/internal/export"
	"github.com/maauso/coverkit/internal/job"
	"github.com/maauso/coverkit/internal/media"
	"github.com/maauso/coverkit/internal/render"
)

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service            *job.RenderService
	validator          *validator.Validate
	logger             *slog.Logger
	enableAsyncProcess bool
	publishEnabled     bool
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithAsyncProcessing enables or disables background processing.
// When disabled, CreateJob only creates the job and returns immediately
// without starting background processing.
func WithAsyncProcessing(enabled bool) HandlerOption {
	return func(h *Handlers) {
		h.enableAsyncProcess = enabled
	}
}

// WithPublishing reports whether a remote store is configured. Jobs that ask
// to publish are rejected when it is not.
func WithPublishing(enabled bool) HandlerOption {
	return func(h *Handlers) {
		h.publishEnabled = enabled
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *job.RenderService, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		service:            service,
		validator:          validator.New(),
		logger:             logger,
		enableAsyncProcess: true, // Default to enabled
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Cover handles POST /v1/cover requests.
func (h *Handlers) Cover(w http.ResponseWriter, r *http.Request) {
	var req CoverRequest
	if !h.decode(w, r, &req) {
		return
	}

	src := cover.Dimensions{Width: req.Source.Width, Height: req.Source.Height}
	dst := cover.Dimensions{Width: req.Target.Width, Height: req.Target.Height}

	win, err := cover.Fit(src, dst)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_DIMENSION")
		return
	}

	writeJSON(w, http.StatusOK, CoverResponse{
		Window: windowDTO(win),
		Scale:  win.Scale(dst),
		Filter: win.FFmpegFilter(dst),
	})
}

// Render handles POST /v1/render requests.
func (h *Handlers) Render(w http.ResponseWriter, r *http.Request) {
	var req RenderRequest
	if !h.decode(w, r, &req) {
		return
	}

	data, err := base64.StdEncoding.DecodeString(req.ImageBase64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "image_base64 is not valid base64", "VALIDATION_ERROR")
		return
	}

	out, err := h.service.RenderOnce(r.Context(), data,
		job.Target{Width: req.Width, Height: req.Height},
		req.Format, req.Quality, req.AutoQuality,
	)
	if err != nil {
		h.writeRenderError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, RenderResponse{
		ImageBase64: base64.StdEncoding.EncodeToString(out.Result.Data),
		MIMEType:    out.Result.MIMEType,
		Width:       req.Width,
		Height:      req.Height,
		Bytes:       len(out.Result.Data),
		Quality:     out.Quality,
		Source:      DimensionsDTO{Width: out.Source.Width, Height: out.Source.Height},
		Window:      windowDTO(out.Window),
	})
}

// Quality handles GET /v1/quality requests.
func (h *Handlers) Quality(w http.ResponseWriter, r *http.Request) {
	width, height, ok := queryDimensions(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, QualityResponse{
		Width:   width,
		Height:  height,
		Pixels:  width * height,
		Quality: export.OptimalQuality(width, height),
	})
}

// EncodingParams handles GET /v1/encoding-params requests.
func (h *Handlers) EncodingParams(w http.ResponseWriter, r *http.Request) {
	width, height, ok := queryDimensions(w, r)
	if !ok {
		return
	}

	fps := 0
	if v := r.URL.Query().Get("fps"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "fps must be a non-negative integer", "VALIDATION_ERROR")
			return
		}
		fps = n
	}

	p := media.EncodingParamsFor(width, height, fps)
	writeJSON(w, http.StatusOK, EncodingParamsResponse{
		Width:       p.Width,
		Height:      p.Height,
		FPS:         p.FPS,
		BitrateKbps: p.BitrateKbps,
		MaxrateKbps: p.MaxrateKbps,
		BufsizeKbps: p.BufsizeKbps,
		CRF:         p.CRF,
		MIMEType:    p.MIMEType,
		Args:        p.Args(),
	})
}

// CreateJob handles POST /v1/jobs requests.
func (h *Handlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if !h.decode(w, r, &req) {
		return
	}

	if req.Publish && !h.publishEnabled {
		writeError(w, http.StatusBadRequest, "publishing requires S3 to be configured", "PUBLISH_NOT_CONFIGURED")
		return
	}

	data, err := base64.StdEncoding.DecodeString(req.ImageBase64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "image_base64 is not valid base64", "VALIDATION_ERROR")
		return
	}

	input := job.RenderInput{
		Image:       data,
		Targets:     make([]job.Target, len(req.Targets)),
		Format:      req.Format,
		Quality:     req.Quality,
		AutoQuality: req.AutoQuality,
		Publish:     req.Publish,
	}
	for i, t := range req.Targets {
		input.Targets[i] = job.Target{Width: t.Width, Height: t.Height}
	}
	createdJob, err := h.service.CreateJob(r.Context(), input)
	if err != nil {
		h.writeRenderError(w, err)
		return
	}

	// Start processing in background with a detached context
	// Use context.WithoutCancel to prevent cancellation when the request ends
	if h.enableAsyncProcess {
		go func(ctx context.Context, jobID string) {
			if _, processErr := h.service.ProcessExistingJob(ctx, jobID); processErr != nil {
				h.logger.Error("background processing failed",
					slog.String("job_id", jobID),
					slog.String("error", processErr.Error()),
				)
			}
		}(context.WithoutCancel(r.Context()), createdJob.ID)
	}

	h.logger.Info("job created",
		slog.String("job_id", createdJob.ID),
		slog.Int("targets", len(req.Targets)),
	)

	writeJSON(w, http.StatusAccepted, CreateJobResponse{
		ID:     createdJob.ID,
		Status: string(createdJob.Status),
	})
}

// ListJobs handles GET /v1/jobs requests.
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.service.ListJobs(r.Context())
	if err != nil {
		h.logger.Error("failed to list jobs", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list jobs", "JOB_FETCH_FAILED")
		return
	}

	resp := JobListResponse{Jobs: make([]JobResponse, 0, len(jobs))}
	for _, j := range jobs {
		resp.Jobs = append(resp.Jobs, h.jobResponse(r.Context(), j, false))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetJob handles GET /v1/jobs/{id} requests. With ?inline=true, completed
// outputs that were not published carry their bytes as base64.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return
	}

	foundJob, err := h.service.GetJob(r.Context(), jobID)
	if err != nil {
		h.writeJobError(w, jobID, err)
		return
	}

	inline, _ := strconv.ParseBool(r.URL.Query().Get("inline"))
	writeJSON(w, http.StatusOK, h.jobResponse(r.Context(), foundJob, inline))
}

// CancelJob handles POST /v1/jobs/{id}/cancel requests.
func (h *Handlers) CancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return
	}

	if err := h.service.CancelJob(r.Context(), jobID); err != nil {
		h.writeJobError(w, jobID, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// DeleteJob handles DELETE /v1/jobs/{id} requests.
func (h *Handlers) DeleteJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return
	}

	if err := h.service.DeleteJob(r.Context(), jobID); err != nil {
		h.writeJobError(w, jobID, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) jobResponse(ctx context.Context, j *job.Job, inline bool) JobResponse {
	resp := JobResponse{
		ID:        j.ID,
		Status:    string(j.Status),
		Progress:  j.Progress,
		Error:     j.Error,
		Source:    DimensionsDTO{Width: float64(j.SourceWidth), Height: float64(j.SourceHeight)},
		Format:    j.Format,
		Outputs:   make([]OutputResponse, 0, len(j.Outputs)),
		CreatedAt: j.CreatedAt,
	}
	if !j.CompletedAt.IsZero() {
		completedAt := j.CompletedAt
		resp.CompletedAt = &completedAt
	}

	for _, o := range j.Outputs {
		out := OutputResponse{
			Width:  o.Width,
			Height: o.Height,
			Status: string(o.Status),
			Error:  o.Error,
		}
		if o.Status == job.OutputCompleted {
			win := windowDTO(o.Window)
			out.Window = &win
			out.MIMEType = o.MIMEType
			quality := o.Quality
			out.Quality = &quality
			out.Bytes = o.Size
			out.URL = o.URL

			if inline && o.URL == "" && o.Path != "" {
				data, err := h.service.ReadOutput(ctx, o)
				if err != nil {
					// Don't fail the request, just log and omit the data
					h.logger.Error("failed to read output",
						slog.String("job_id", j.ID),
						slog.String("path", o.Path),
						slog.String("error", err.Error()),
					)
				} else {
					out.ImageBase64 = base64.StdEncoding.EncodeToString(data)
				}
			}
		}
		resp.Outputs = append(resp.Outputs, out)
	}
	return resp
}

// decode reads and validates a JSON body, writing the error response on failure.
func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large", "BODY_TOO_LARGE")
			return false
		}
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return false
	}

	if err := h.validator.Struct(dst); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return false
	}
	return true
}

func (h *Handlers) writeRenderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, cover.ErrInvalidDimension), errors.Is(err, job.ErrNoTargets):
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_DIMENSION")
	case errors.Is(err, cover.ErrSourceUnavailable), errors.Is(err, job.ErrInvalidImage):
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_IMAGE")
	case errors.Is(err, job.ErrUnsupportedFormat):
		writeError(w, http.StatusBadRequest, err.Error(), "UNSUPPORTED_FORMAT")
	case errors.Is(err, render.ErrEncodingFailed):
		writeError(w, http.StatusUnprocessableEntity, err.Error(), "ENCODING_FAILED")
	default:
		h.logger.Error("render failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "render failed", "RENDER_FAILED")
	}
}

func (h *Handlers) writeJobError(w http.ResponseWriter, jobID string, err error) {
	switch {
	case errors.Is(err, job.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
	case errors.Is(err, job.ErrInvalidTransition), errors.Is(err, job.ErrJobActive):
		writeError(w, http.StatusConflict, err.Error(), "INVALID_STATE")
	default:
		h.logger.Error("job request failed",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "job request failed", "JOB_FETCH_FAILED")
	}
}

// maxQueryDimension bounds the width and height accepted by the query endpoints.
const maxQueryDimension = 65536

// queryDimensions reads positive width and height query parameters.
func queryDimensions(w http.ResponseWriter, r *http.Request) (int, int, bool) {
	q := r.URL.Query()
	width, werr := strconv.Atoi(q.Get("width"))
	height, herr := strconv.Atoi(q.Get("height"))
	if werr != nil || herr != nil || width < 1 || height < 1 ||
		width > maxQueryDimension || height > maxQueryDimension {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("width and height must be integers in 1..%d, got %q and %q",
				maxQueryDimension, q.Get("width"), q.Get("height")),
			"INVALID_DIMENSION")
		return 0, 0, false
	}
	return width, height, true
}

func windowDTO(w cover.CropWindow) CropWindowDTO {
	return CropWindowDTO{X: w.X, Y: w.Y, Width: w.Width, Height: w.Height}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
