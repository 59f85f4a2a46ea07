package intake

import (
	"bytes"
	"encoding/base64"
	"image"
	_ "image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
)

func imagePreview(raw []byte, maxWidth int) (Preview, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return Preview{}, err
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return Preview{}, image.ErrFormat
	}

	var src image.Image = img
	if w > maxWidth {
		dh := h * maxWidth / w
		if dh < 1 {
			dh = 1
		}
		dst := image.NewRGBA(image.Rect(0, 0, maxWidth, dh))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
		src = dst
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		return Preview{}, err
	}
	return Preview{Kind: PreviewImage, Thumbnail: buf.Bytes(), Width: w, Height: h}, nil
}

// DataURL renders the thumbnail for inline display, or "" when there is none.
func (p Preview) DataURL() string {
	if len(p.Thumbnail) == 0 {
		return ""
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(p.Thumbnail)
}
