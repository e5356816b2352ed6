package macro

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// dataURLRe matches a data: URL with a base64-encoded image payload.
var dataURLRe = regexp.MustCompile(`^data:image/([a-zA-Z0-9.+-]+);base64,(.+)$`)

// base64MinLength is the size threshold (in characters of the base64
// alphabet) above which a bare string is treated as an embedded image
// even without a data: URL wrapper (§4.1 rule 3: "≥50 KB of base64
// alphabet").
const base64MinLength = 50 * 1024

var base64AlphabetRe = regexp.MustCompile(`^[A-Za-z0-9+/=\s]+$`)

// detectEmbeddedImage reports whether s looks like an embedded base64
// image per §4.1 rule 3, returning the file extension to use and the raw
// base64 payload (without the data: URL wrapper, if any).
func detectEmbeddedImage(s string) (ext string, payload string, ok bool) {
	if m := dataURLRe.FindStringSubmatch(s); m != nil {
		return normalizeExt(m[1]), m[2], true
	}
	if len(s) >= base64MinLength && base64AlphabetRe.MatchString(s) {
		return "png", s, true
	}
	return "", "", false
}

func normalizeExt(mime string) string {
	// image/jpeg -> jpg, others pass through as-is.
	if mime == "jpeg" {
		return "jpg"
	}
	return mime
}

// defaultImageSink writes a detected image to the per-process temp
// directory used across the core ("<tmp>/workflow-manager-images/
// task-<id>-<ts>.<ext>", §4.1 rule 3) and returns its absolute path.
func defaultImageSink(taskID int, ext string, payload string) (string, error) {
	dir := filepath.Join(os.TempDir(), "workflow-manager-images")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("macro: create image temp dir: %w", err)
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return "", fmt.Errorf("macro: decode base64 image payload: %w", err)
	}
	name := fmt.Sprintf("task-%d-%d.%s", taskID, time.Now().UnixNano(), ext)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", fmt.Errorf("macro: write image temp file: %w", err)
	}
	return path, nil
}
