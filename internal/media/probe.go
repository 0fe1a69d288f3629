package media

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/KarpelesLab/runutil"

	"github.com/maauso/coverkit/internal/cover"
)

type probeInfo struct {
	Streams []*probeStream `json:"streams"`
}

type probeStream struct {
	Index     int    `json:"index"`
	CodecName string `json:"codec_name"`
	CodecType string `json:"codec_type"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
}

func (info *probeInfo) video() *probeStream {
	for _, s := range info.Streams {
		if s.CodecType == "video" {
			return s
		}
	}
	return nil
}

// Probe returns the dimensions of the first video stream in path. Still images
// are reported by ffprobe as single-frame video streams. Cancelling ctx kills
// a running ffprobe.
func (p *FFmpegProcessor) Probe(ctx context.Context, path string) (cover.Dimensions, error) {
	if err := ctx.Err(); err != nil {
		return cover.Dimensions{}, fmt.Errorf("ffprobe cancelled: %w", err)
	}

	// runutil starts the child in "/", so relative paths must be resolved here.
	abs, err := filepath.Abs(path)
	if err != nil {
		return cover.Dimensions{}, fmt.Errorf("resolve path: %w", err)
	}

	pipe, err := runutil.RunRead(p.ffprobePath, "-print_format", "json", "-hide_banner", "-loglevel", "quiet", "-show_streams", abs)
	if err != nil {
		return cover.Dimensions{}, fmt.Errorf("ffprobe failed: %w", err)
	}

	var info *probeInfo
	decoded := make(chan error, 1)
	go func() {
		decoded <- json.NewDecoder(pipe).Decode(&info)
	}()

	select {
	case err = <-decoded:
		_ = pipe.CloseWait(context.WithoutCancel(ctx))
	case <-ctx.Done():
		// ctx is already done, so CloseWait kills ffprobe instead of waiting.
		_ = pipe.CloseWait(ctx)
		<-decoded
		return cover.Dimensions{}, fmt.Errorf("ffprobe cancelled: %w", ctx.Err())
	}
	if err != nil {
		return cover.Dimensions{}, fmt.Errorf("ffprobe failed: %w", err)
	}
	if info == nil {
		return cover.Dimensions{}, ErrNoVideoStream
	}

	v := info.video()
	if v == nil {
		return cover.Dimensions{}, ErrNoVideoStream
	}

	size := cover.Dimensions{Width: float64(v.Width), Height: float64(v.Height)}
	if err := size.Validate(); err != nil {
		return cover.Dimensions{}, err
	}
	return size, nil
}
