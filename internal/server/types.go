// Package server provides the HTTP API for coverkit.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import "time"

// DimensionsDTO is a width/height pair in the wire format.
type DimensionsDTO struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// CropWindowDTO is a source crop rectangle in the wire format.
type CropWindowDTO struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// CoverRequest is the HTTP request body for computing a crop window.
type CoverRequest struct {
	// Source is the natural size of the source raster.
	Source DimensionsDTO `json:"source"`
	// Target is the viewport to fill.
	Target DimensionsDTO `json:"target"`
}

// CoverResponse is the HTTP response with the computed crop window.
type CoverResponse struct {
	Window CropWindowDTO `json:"window"`
	// Scale is the uniform factor from window to target.
	Scale float64 `json:"scale"`
	// Filter is the equivalent ffmpeg crop/scale filter.
	Filter string `json:"filter"`
}

// RenderRequest is the HTTP request body for a synchronous render.
type RenderRequest struct {
	// ImageBase64 is the base64-encoded source image.
	ImageBase64 string `json:"image_base64" validate:"required,base64"`
	// Width is the target width in pixels. Non-positive values are reported
	// as INVALID_DIMENSION by the renderer.
	Width int `json:"width" validate:"lte=8192"`
	// Height is the target height in pixels.
	Height int `json:"height" validate:"lte=8192"`
	// Format is the output MIME type; empty uses the server default.
	Format string `json:"format" validate:"omitempty,oneof=image/jpeg image/jpg image/png image/webp"`
	// Quality is the encoder quality in [0,1]; omitted uses the server default.
	Quality *float64 `json:"quality" validate:"omitempty,gte=0,lte=1"`
	// AutoQuality derives the quality from the target pixel count.
	AutoQuality bool `json:"auto_quality"`
}

// RenderResponse is the HTTP response for a synchronous render.
type RenderResponse struct {
	// ImageBase64 is the base64-encoded output image.
	ImageBase64 string `json:"image_base64"`
	// MIMEType is the output image type.
	MIMEType string `json:"mime_type"`
	// Width is the output width in pixels.
	Width int `json:"width"`
	// Height is the output height in pixels.
	Height int `json:"height"`
	// Bytes is the encoded size.
	Bytes int `json:"bytes"`
	// Quality is the encoder quality used.
	Quality float64 `json:"quality"`
	// Source is the natural size of the decoded source.
	Source DimensionsDTO `json:"source"`
	// Window is the crop window that was rendered.
	Window CropWindowDTO `json:"window"`
}

// QualityResponse is the HTTP response for the quality heuristic.
type QualityResponse struct {
	Width   int     `json:"width"`
	Height  int     `json:"height"`
	Pixels  int     `json:"pixels"`
	Quality float64 `json:"quality"`
}

// EncodingParamsResponse is the HTTP response for the encoder parameter table.
type EncodingParamsResponse struct {
	Width       int      `json:"width"`
	Height      int      `json:"height"`
	FPS         int      `json:"fps"`
	BitrateKbps int      `json:"bitrate_kbps"`
	MaxrateKbps float64  `json:"maxrate_kbps"`
	BufsizeKbps int      `json:"bufsize_kbps"`
	CRF         int      `json:"crf"`
	MIMEType    string   `json:"mime_type"`
	Args        []string `json:"args"`
}

// TargetDTO is one requested output size.
type TargetDTO struct {
	Width  int `json:"width" validate:"required,min=1,max=8192"`
	Height int `json:"height" validate:"required,min=1,max=8192"`
}

// CreateJobRequest is the HTTP request body for creating a batch render job.
type CreateJobRequest struct {
	// ImageBase64 is the base64-encoded source image.
	ImageBase64 string `json:"image_base64" validate:"required,base64"`
	// Targets lists the output sizes.
	Targets []TargetDTO `json:"targets" validate:"required,min=1,max=32,dive"`
	// Format is the output MIME type; empty uses the server default.
	Format string `json:"format" validate:"omitempty,oneof=image/jpeg image/jpg image/png image/webp"`
	// Quality is the encoder quality in [0,1]; omitted uses the server default.
	Quality *float64 `json:"quality" validate:"omitempty,gte=0,lte=1"`
	// AutoQuality derives the quality per target from its pixel count.
	AutoQuality bool `json:"auto_quality"`
	// Publish uploads outputs to S3.
	Publish bool `json:"publish"`
}

// CreateJobResponse is the HTTP response after creating a job.
type CreateJobResponse struct {
	// ID is the unique identifier for the created job.
	ID string `json:"id"`
	// Status is the initial job status.
	Status string `json:"status"`
}

// OutputResponse describes one target rendition of a job.
type OutputResponse struct {
	Width    int            `json:"width"`
	Height   int            `json:"height"`
	Status   string         `json:"status"`
	Window   *CropWindowDTO `json:"window,omitempty"`
	MIMEType string         `json:"mime_type,omitempty"`
	Quality  *float64       `json:"quality,omitempty"`
	Bytes    int            `json:"bytes,omitempty"`
	URL      string         `json:"url,omitempty"`
	Error    string         `json:"error,omitempty"`
	// ImageBase64 is included for completed outputs when the request asks for inline data.
	ImageBase64 string `json:"image_base64,omitempty"`
}

// JobResponse is the HTTP response for getting job details.
type JobResponse struct {
	// ID is the unique identifier for the job.
	ID string `json:"id"`
	// Status is the current job status.
	Status string `json:"status"`
	// Progress is the percentage of completion (0-100).
	Progress int `json:"progress"`
	// Error contains any error message if the job failed.
	Error string `json:"error,omitempty"`
	// Source is the natural size of the source image.
	Source DimensionsDTO `json:"source"`
	// Format is the output MIME type.
	Format string `json:"format"`
	// Outputs has one entry per requested target.
	Outputs []OutputResponse `json:"outputs"`
	// CreatedAt is when the job was created.
	CreatedAt time.Time `json:"created_at"`
	// CompletedAt is when the job reached a terminal state.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// JobListResponse is the HTTP response for listing jobs.
type JobListResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
