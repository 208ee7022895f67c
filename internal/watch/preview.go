package watch

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"

	"github.com/glassgauge/gauge-backend/internal/detection"
	"github.com/glassgauge/gauge-backend/internal/estimate"
	"github.com/glassgauge/gauge-backend/internal/shared"
)

const (
	previewQuality   = 80
	boxStrokeWidth   = 3
	waterLineStroke  = 2
	previewBoxAlpha  = 255
	previewBoxGreen  = 200
	previewLineBlue  = 230
	previewLineGreen = 150
)

var (
	boxColor       = color.RGBA{G: previewBoxGreen, A: previewBoxAlpha}
	waterLineColor = color.RGBA{G: previewLineGreen, B: previewLineBlue, A: previewBoxAlpha}
)

// Preview captures the current frame and returns it as JPEG with the
// detection boxes and the estimated water line drawn in.
func (s *Session) Preview(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	stream := s.stream
	detections := make([]detection.Object, len(s.detections))
	copy(detections, s.detections)
	s.mu.Unlock()

	if stream == nil {
		return nil, shared.ErrCameraDenied
	}

	frame, err := stream.Capture(ctx)
	if err != nil {
		return nil, fmt.Errorf("capture frame: %w", err)
	}
	if frame == nil {
		return nil, shared.ErrNoFrame
	}

	if len(detections) == 0 {
		return frame.Data, nil
	}
	return annotateFrame(frame.Data, detections)
}

func annotateFrame(data []byte, detections []detection.Object) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	bounds := src.Bounds()
	rgba := image.NewRGBA(bounds)
	draw.Draw(rgba, bounds, src, bounds.Min, draw.Src)

	for _, obj := range detections {
		rect := rectFromBox(obj.Box, bounds)
		strokeRect(rgba, rect, boxColor, boxStrokeWidth)
		drawWaterLine(rgba, rect, obj.Box)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, rgba, &jpeg.Options{Quality: previewQuality}); err != nil {
		return nil, fmt.Errorf("encode preview: %w", err)
	}
	return buf.Bytes(), nil
}

func rectFromBox(b detection.Box, bounds image.Rectangle) image.Rectangle {
	w := float64(bounds.Dx())
	h := float64(bounds.Dy())
	return image.Rect(
		bounds.Min.X+int(b.XMin*w),
		bounds.Min.Y+int(b.YMin*h),
		bounds.Min.X+int(b.XMax*w),
		bounds.Min.Y+int(b.YMax*h),
	)
}

func strokeRect(img *image.RGBA, r image.Rectangle, c color.RGBA, width int) {
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return
	}

	for t := 0; t < width; t++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if y := r.Min.Y + t; y < r.Max.Y {
				img.SetRGBA(x, y, c)
			}
			if y := r.Max.Y - 1 - t; y >= r.Min.Y {
				img.SetRGBA(x, y, c)
			}
		}
		for y := r.Min.Y; y < r.Max.Y; y++ {
			if x := r.Min.X + t; x < r.Max.X {
				img.SetRGBA(x, y, c)
			}
			if x := r.Max.X - 1 - t; x >= r.Min.X {
				img.SetRGBA(x, y, c)
			}
		}
	}
}

// drawWaterLine marks the estimated liquid surface inside a detection box:
// level percent measured up from the box bottom.
func drawWaterLine(img *image.RGBA, rect image.Rectangle, box detection.Box) {
	rect = rect.Intersect(img.Bounds())
	if rect.Empty() {
		return
	}

	level := estimate.Level(box)
	y := rect.Max.Y - int(float64(rect.Dy())*level/100)
	if y < rect.Min.Y {
		y = rect.Min.Y
	}
	if y >= rect.Max.Y {
		y = rect.Max.Y - 1
	}

	for t := 0; t < waterLineStroke; t++ {
		yy := y + t
		if yy >= rect.Max.Y {
			break
		}
		for x := rect.Min.X; x < rect.Max.X; x++ {
			img.SetRGBA(x, yy, waterLineColor)
		}
	}
}
