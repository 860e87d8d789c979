package envconfig

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"stackpilot/internal/api"
)

// ConfigPatch is one idempotent edit of a text file.
type ConfigPatch struct {
	TargetFile string
	// Match selects the text replaced by Replacement. Every match is
	// replaced and Replacement is inserted literally.
	Match       *regexp.Regexp
	Replacement string
	// AppendIfAbsent is appended when Marker is not found in the file.
	AppendIfAbsent string
	// Marker defaults to the first non-empty line of AppendIfAbsent.
	Marker     string
	Privileged bool
	// Optional patches are skipped when TargetFile does not exist.
	Optional bool
}

func (p ConfigPatch) marker() string {
	if p.Marker != "" {
		return p.Marker
	}
	for _, line := range strings.Split(p.AppendIfAbsent, "\n") {
		if strings.TrimSpace(line) != "" {
			return strings.TrimSpace(line)
		}
	}
	return ""
}

// Render computes the patched content. It returns the input unchanged when
// the patch has nothing to do.
func (p ConfigPatch) Render(content []byte) []byte {
	out := content

	if p.Match != nil {
		out = p.Match.ReplaceAllLiteral(out, []byte(p.Replacement))
	}

	if p.AppendIfAbsent != "" {
		if m := p.marker(); m == "" || !bytes.Contains(out, []byte(m)) {
			var buf bytes.Buffer
			buf.Write(out)
			if len(out) > 0 && !bytes.HasSuffix(out, []byte("\n")) {
				buf.WriteByte('\n')
			}
			buf.WriteString(p.AppendIfAbsent)
			if !strings.HasSuffix(p.AppendIfAbsent, "\n") {
				buf.WriteByte('\n')
			}
			out = buf.Bytes()
		}
	}

	return out
}

// Apply reads the target, applies the patch and writes the result only when
// it differs. It reports whether the file changed.
func Apply(ctx context.Context, p ConfigPatch, files FileStore) (bool, error) {
	if p.TargetFile == "" {
		if p.Optional {
			return false, nil
		}
		return false, api.NewNotFoundError("file", "(unresolved target)")
	}

	content, exists, err := files.Read(ctx, p.TargetFile, p.Privileged)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", p.TargetFile, err)
	}
	if !exists {
		switch {
		case p.Optional:
			return false, nil
		case p.Match != nil:
			// Nothing to rewrite in a file that does not exist.
			return false, api.NewNotFoundError("file", p.TargetFile)
		}
	}

	updated := p.Render(content)
	if exists && bytes.Equal(updated, content) {
		return false, nil
	}
	if err := files.Write(ctx, p.TargetFile, updated, p.Privileged); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", p.TargetFile, err)
	}
	return true, nil
}

// Pending reports whether Apply would change the target. It never writes and
// reads privileged files without elevation.
func Pending(ctx context.Context, p ConfigPatch, files FileStore) (bool, error) {
	if p.TargetFile == "" {
		return !p.Optional, nil
	}
	content, exists, err := files.Read(ctx, p.TargetFile, false)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", p.TargetFile, err)
	}
	if !exists {
		return !p.Optional, nil
	}
	return !bytes.Equal(p.Render(content), content), nil
}
