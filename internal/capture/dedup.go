package capture

import (
	"bytes"
	"image"
	_ "image/jpeg" // JPEG decoder
	_ "image/png"  // PNG decoder
	"sync"

	"github.com/corona10/goimagehash"
)

// DuplicateDistance is the maximum perceptual-hash Hamming distance at
// which two captures count as the same image (64-bit pHash).
const DuplicateDistance = 3

// ImageDeduper remembers the previous image capture so a re-capture of the
// same page does not spend another OCR call. One entry is enough: captures
// are serialized and users re-snap the same document back to back.
type ImageDeduper struct {
	mu       sync.Mutex
	lastHash *goimagehash.ImageHash
	lastText string
	hasEntry bool
}

// Lookup returns the cached OCR text when imgData is a near-duplicate of
// the previous capture.
func (d *ImageDeduper) Lookup(imgData []byte) (string, bool) {
	hash := perceptionHash(imgData)
	if hash == nil {
		return "", false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.hasEntry || d.lastHash == nil {
		return "", false
	}
	dist, err := hash.Distance(d.lastHash)
	if err != nil || dist > DuplicateDistance {
		return "", false
	}
	return d.lastText, true
}

// Store records the capture for future duplicate checks.
func (d *ImageDeduper) Store(imgData []byte, text string) {
	hash := perceptionHash(imgData)
	if hash == nil {
		return
	}

	d.mu.Lock()
	d.lastHash = hash
	d.lastText = text
	d.hasEntry = true
	d.mu.Unlock()
}

func perceptionHash(imgData []byte) *goimagehash.ImageHash {
	img, _, err := image.Decode(bytes.NewReader(imgData))
	if err != nil {
		return nil
	}
	hash, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return nil
	}
	return hash
}
