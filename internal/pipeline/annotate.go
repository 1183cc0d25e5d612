package pipeline

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"

	"github.com/paulmach/orb"

	"parkvision-service/internal/domain/occupancy"
)

const jpegQuality = 85

var (
	colorAvailable = color.RGBA{R: 0, G: 200, B: 0, A: 255}
	colorOccupied  = color.RGBA{R: 220, G: 0, B: 0, A: 255}
	colorObstacle  = color.RGBA{R: 255, G: 140, B: 0, A: 255}
	colorDetection = color.RGBA{R: 255, G: 0, B: 255, A: 255}
)

// Annotator renders detections and zone statuses onto a frame and encodes
// the result as JPEG.
type Annotator struct {
	zones []occupancy.Zone
}

func NewAnnotator(zones []occupancy.Zone) *Annotator {
	return &Annotator{zones: zones}
}

func (a *Annotator) Annotate(frame image.Image, detections []occupancy.Detection, snap occupancy.Snapshot) ([]byte, error) {
	bounds := frame.Bounds()
	canvas := image.NewRGBA(bounds)
	draw.Draw(canvas, bounds, frame, bounds.Min, draw.Src)

	for _, det := range detections {
		strokeRect(canvas, rectFromBound(det.Box), colorDetection, 2)
	}

	for _, zone := range a.zones {
		col := statusColor(snap[zone.ID].Status)
		r := rectFromBound(zone.Rect)
		blendFill(canvas, r, col, 0.3)
		strokeRect(canvas, r, col, 2)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode annotated frame: %w", err)
	}
	return buf.Bytes(), nil
}

func statusColor(s occupancy.Status) color.RGBA {
	switch s {
	case occupancy.StatusOccupied:
		return colorOccupied
	case occupancy.StatusObstacle:
		return colorObstacle
	default:
		return colorAvailable
	}
}

func rectFromBound(b orb.Bound) image.Rectangle {
	return image.Rect(int(b.Min[0]), int(b.Min[1]), int(b.Max[0]), int(b.Max[1]))
}

// strokeRect draws a hollow rectangle with the given border thickness.
func strokeRect(img *image.RGBA, r image.Rectangle, col color.RGBA, thickness int) {
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return
	}
	for t := 0; t < thickness; t++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetRGBA(x, min(r.Min.Y+t, r.Max.Y-1), col)
			img.SetRGBA(x, max(r.Max.Y-1-t, r.Min.Y), col)
		}
		for y := r.Min.Y; y < r.Max.Y; y++ {
			img.SetRGBA(min(r.Min.X+t, r.Max.X-1), y, col)
			img.SetRGBA(max(r.Max.X-1-t, r.Min.X), y, col)
		}
	}
}

// blendFill overlays a translucent fill inside the rectangle.
func blendFill(img *image.RGBA, r image.Rectangle, col color.RGBA, alpha float64) {
	r = r.Intersect(img.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			old := img.RGBAAt(x, y)
			img.SetRGBA(x, y, color.RGBA{
				R: blend(old.R, col.R, alpha),
				G: blend(old.G, col.G, alpha),
				B: blend(old.B, col.B, alpha),
				A: 255,
			})
		}
	}
}

func blend(under, over uint8, alpha float64) uint8 {
	return uint8(float64(under)*(1-alpha) + float64(over)*alpha)
}

// placeholderFrame is served to viewers before the first frame arrives.
func placeholderFrame() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 320, 240))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.RGBA{R: 24, G: 24, B: 24, A: 255}}, image.Point{}, draw.Src)

	var buf bytes.Buffer
	// Encoding a uniform in-memory image cannot fail.
	_ = jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality})
	return buf.Bytes()
}
