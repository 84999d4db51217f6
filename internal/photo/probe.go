package photo

import (
	"bytes"
	"fmt"
	"image"
	"net/http"
	"path"
	"strings"
	"time"
	"unicode"

	"github.com/Voupi/sistema-gestion-addag/internal/domain"
)

// Info describes an uploaded image without decoding its pixels.
type Info struct {
	Width       int
	Height      int
	Format      string
	ContentType string
}

// Probe checks that src is a decodable image within the size limits and
// returns its dimensions. Only the header is read.
func Probe(src []byte) (Info, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(src))
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrImageDecode, err)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return Info{}, fmt.Errorf("%w: empty image", ErrImageDecode)
	}
	if err := checkDimensions(cfg.Width, cfg.Height); err != nil {
		return Info{}, err
	}
	return Info{
		Width:       cfg.Width,
		Height:      cfg.Height,
		Format:      format,
		ContentType: http.DetectContentType(src),
	}, nil
}

func checkDimensions(w, h int) error {
	if w > MaxSourceSide || h > MaxSourceSide || int64(w)*int64(h) > MaxSourcePixels {
		return fmt.Errorf("%w: %dx%d", ErrImageTooLarge, w, h)
	}
	return nil
}

// ArtifactName is the object name of a derived image. The millisecond
// timestamp makes every re-crop a new object.
func ArtifactName(kind domain.RecordKind, document string, at time.Time) string {
	return fmt.Sprintf("%sprocesada_%s_%d.jpg", kind.PhotoPrefix(), sanitize(document), at.UnixMilli())
}

// OriginalName is the object name of an uploaded original.
func OriginalName(kind domain.RecordKind, document, filename string, at time.Time) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(filename), "."))
	if ext == "" || len(ext) > 5 {
		ext = "jpg"
	}
	return fmt.Sprintf("%s%s-%d.%s", kind.PhotoPrefix(), sanitize(document), at.UnixMilli(), ext)
}

func sanitize(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "sin-documento"
	}
	return b.String()
}
