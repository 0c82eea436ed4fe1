package docrender

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// SignatureOverlay positions one captured signature image on the sealed
// document.
type SignatureOverlay struct {
	Page      int     `json:"page"`
	ImagePath string  `json:"imagePath"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
}

// FieldOverlay places one captured field value on the sealed document.
type FieldOverlay struct {
	Page      int    `json:"page"`
	FieldType string `json:"fieldType"`
	Value     string `json:"value"`

	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

var (
	OverlayFunc   = Overlay
	HashFunc      = Hash
	PageCountFunc = PageCount
)

// Overlay seals the source document with all captured signatures, field
// values and an audit certificate page. Rendering internals are an external
// capability; the default implementation produces a deterministic sealed
// byte stream so hashing and storage behave like production.
func Overlay(source []byte, signatures []SignatureOverlay, fields []FieldOverlay) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(source)

	buf.WriteString("\n--- signature overlay ---\n")
	for _, s := range signatures {
		fmt.Fprintf(&buf, "signature page=%d image=%s x=%.1f y=%.1f w=%.1f h=%.1f\n",
			s.Page, s.ImagePath, s.X, s.Y, s.Width, s.Height)
	}
	for _, f := range fields {
		fmt.Fprintf(&buf, "field page=%d type=%s value=%s x=%.1f y=%.1f\n",
			f.Page, f.FieldType, f.Value, f.X, f.Y)
	}

	buf.WriteString("--- audit certificate ---\n")
	fmt.Fprintf(&buf, "source sha256=%s signers=%d\n", Hash(source), len(signatures))

	return buf.Bytes(), nil
}

func Hash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// PageCount reports the page count of a stored document. The default treats
// the document as a single page; a real renderer replaces this.
func PageCount(source []byte) int {
	return 1
}
