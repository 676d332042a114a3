package worker

import (
	"fmt"
	"image"
	"io"
	"strings"

	// Register the raster formats the image renderer understands.
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"github.com/fogleman/gg"
	"github.com/modelibr/modelibr/common/models"
	"golang.org/x/image/draw"
)

// Renderer turns source content into a square thumbnail image
type Renderer interface {
	Render(src io.Reader, edge int) (image.Image, error)
}

// SelectRenderer picks a strategy for the source's media type. Raster images
// are downscaled; everything else (3D models, audio) gets a generated
// placeholder since the worker cannot rasterize it.
func SelectRenderer(mimeType, name, contentHash string) Renderer {
	if strings.HasPrefix(mimeType, "image/") {
		return &ImageRenderer{}
	}
	return &PlaceholderRenderer{
		Label: strings.ToUpper(models.ExtensionOf(name)),
		Seed:  contentHash,
	}
}

// ImageRenderer decodes a raster image and scales it to fit the thumbnail
// edge, preserving aspect ratio
type ImageRenderer struct{}

// Render decodes and downscales the source image
func (r *ImageRenderer) Render(src io.Reader, edge int) (image.Image, error) {
	img, _, err := image.Decode(src)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return scaleToFit(img, edge), nil
}

// scaleToFit downscales img so its longer side equals edge. Images already
// small enough pass through unscaled.
func scaleToFit(img image.Image, edge int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= edge && h <= edge {
		return img
	}

	var tw, th int
	if w >= h {
		tw = edge
		th = h * edge / w
	} else {
		th = edge
		tw = w * edge / h
	}
	if tw < 1 {
		tw = 1
	}
	if th < 1 {
		th = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, tw, th))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

// PlaceholderRenderer draws a flat tile with the file's extension label.
// The background color is derived from the content hash so every asset gets
// a stable, distinguishable placeholder.
type PlaceholderRenderer struct {
	Label string
	Seed  string
}

// Render draws the placeholder tile
func (r *PlaceholderRenderer) Render(_ io.Reader, edge int) (image.Image, error) {
	dc := gg.NewContext(edge, edge)

	red, green, blue := seedColor(r.Seed)
	dc.SetRGB(red, green, blue)
	dc.Clear()

	label := r.Label
	if label == "" {
		label = "?"
	}

	dc.SetRGB(1, 1, 1)
	dc.DrawStringAnchored(label, float64(edge)/2, float64(edge)/2, 0.5, 0.5)

	return dc.Image(), nil
}

// seedColor maps the first hash bytes onto a muted RGB background
func seedColor(seed string) (float64, float64, float64) {
	var bytes [3]byte
	for i := 0; i < 3 && i*2+1 < len(seed); i++ {
		bytes[i] = hexByte(seed[i*2], seed[i*2+1])
	}
	// Compress into the mid range so white text stays readable.
	return 0.2 + float64(bytes[0])/255*0.5,
		0.2 + float64(bytes[1])/255*0.5,
		0.2 + float64(bytes[2])/255*0.5
}

func hexByte(hi, lo byte) byte {
	return hexNibble(hi)<<4 | hexNibble(lo)
}

func hexNibble(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	}
	return 0
}

// EncodePNG writes img as PNG
func EncodePNG(w io.Writer, img image.Image) error {
	return png.Encode(w, img)
}
