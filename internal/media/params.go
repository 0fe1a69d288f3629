package media

import (
	"math"
	"strconv"
)

// Bitrate bounds and rate-control constants for EncodingParamsFor.
const (
	MinBitrateKbps = 15000
	MaxBitrateKbps = 50000
	// pixelsPerKbps is the number of pixels budgeted per kbps of bitrate.
	pixelsPerKbps = 35
	// ConstantRateFactor is the x264 CRF; lower is better quality.
	ConstantRateFactor = 18
	// ContainerMIMEType is the MIME type of the encoded output.
	ContainerMIMEType = "video/mp4"
)

// EncodingParams is the ffmpeg parameter set for a given output resolution.
type EncodingParams struct {
	Width       int      `json:"width"`
	Height      int      `json:"height"`
	FPS         int      `json:"fps"`
	BitrateKbps int      `json:"bitrate_kbps"`
	MaxrateKbps float64  `json:"maxrate_kbps"`
	BufsizeKbps int      `json:"bufsize_kbps"`
	CRF         int      `json:"crf"`
	Codec       []string `json:"codec"`
	Bitrate     []string `json:"bitrate"`
	MIMEType    string   `json:"mime_type"`
}

// EncodingParamsFor derives high-quality, low-latency H.264 parameters for a
// width x height video. The bitrate scales with the pixel count and is clamped
// to [MinBitrateKbps, MaxBitrateKbps]; it does not depend on fps.
func EncodingParamsFor(width, height, fps int) EncodingParams {
	pixels := float64(width) * float64(height)
	// Clamp before converting: huge frames must not overflow int.
	bitrate := int(math.Min(math.Max(math.Floor(pixels/pixelsPerKbps+0.5), MinBitrateKbps), MaxBitrateKbps))
	maxrate := float64(bitrate) * 1.5
	bufsize := bitrate * 2

	return EncodingParams{
		Width:       width,
		Height:      height,
		FPS:         fps,
		BitrateKbps: bitrate,
		MaxrateKbps: maxrate,
		BufsizeKbps: bufsize,
		CRF:         ConstantRateFactor,
		Codec: []string{
			"-c:v", "libx264",
			"-profile:v", "high",
			"-preset", "ultrafast",
			"-tune", "zerolatency",
			"-pix_fmt", "yuv420p",
		},
		Bitrate: []string{
			"-b:v", strconv.Itoa(bitrate) + "k",
			"-maxrate", strconv.FormatFloat(maxrate, 'f', -1, 64) + "k",
			"-bufsize", strconv.Itoa(bufsize) + "k",
			"-crf", strconv.Itoa(ConstantRateFactor),
		},
		MIMEType: ContainerMIMEType,
	}
}

// Args returns the codec and bitrate flags, followed by the output frame rate
// when one is set.
func (p EncodingParams) Args() []string {
	args := make([]string, 0, len(p.Codec)+len(p.Bitrate)+2)
	args = append(args, p.Codec...)
	args = append(args, p.Bitrate...)
	if p.FPS > 0 {
		args = append(args, "-r", strconv.Itoa(p.FPS))
	}
	return args
}
