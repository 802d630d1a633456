package capture

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

// pngPixel encodes a minimal valid PNG for tests that only need decodable
// image bytes.
func pngPixel(t *testing.T) []byte {
	t.Helper()
	return encodePNG(t, image.NewGray(image.Rect(0, 0, 8, 8)))
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// halves draws a 64x64 image split into a white and a black half, vertical
// or horizontal. The two orientations hash far apart.
func halves(t *testing.T, vertical bool) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			lit := x < 32
			if !vertical {
				lit = y < 32
			}
			if lit {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return encodePNG(t, img)
}

func TestDeduperRecognizesSameImage(t *testing.T) {
	var d ImageDeduper
	img := halves(t, true)

	if _, ok := d.Lookup(img); ok {
		t.Fatal("empty deduper should miss")
	}

	d.Store(img, "recognized text")
	text, ok := d.Lookup(img)
	if !ok {
		t.Fatal("identical image should hit")
	}
	if text != "recognized text" {
		t.Errorf("text = %q", text)
	}
}

func TestDeduperMissesDifferentImage(t *testing.T) {
	var d ImageDeduper
	d.Store(halves(t, true), "first page")

	if text, ok := d.Lookup(halves(t, false)); ok {
		t.Errorf("distinct image hit the cache with %q", text)
	}
}

func TestDeduperIgnoresUndecodableData(t *testing.T) {
	var d ImageDeduper
	d.Store([]byte("not an image"), "junk")

	if _, ok := d.Lookup([]byte("not an image")); ok {
		t.Error("undecodable data must never hit")
	}
}

func TestDeduperKeepsOnlyLatest(t *testing.T) {
	var d ImageDeduper
	first := halves(t, true)
	second := halves(t, false)

	d.Store(first, "first")
	d.Store(second, "second")

	if _, ok := d.Lookup(first); ok {
		t.Error("older entry should have been evicted")
	}
	if text, ok := d.Lookup(second); !ok || text != "second" {
		t.Errorf("latest entry lookup = %q, %v", text, ok)
	}
}
