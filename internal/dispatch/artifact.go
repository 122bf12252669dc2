package dispatch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var (
	spaceRe  = regexp.MustCompile(`\s+`)
	unsafeRe = regexp.MustCompile(`[/\\:*?"<>|]`)
)

// maxKeyRunes keeps artifact names well under common filename limits.
const maxKeyRunes = 60

// ArtifactName returns "<op>_<key>_<YYYY-MM-DD>.md". Whitespace in key
// becomes "_" and path separators or other characters unsafe in file names
// are removed.
func ArtifactName(op, key string, date time.Time) string {
	k := spaceRe.ReplaceAllString(strings.TrimSpace(key), "_")
	k = unsafeRe.ReplaceAllString(k, "")
	k = strings.Trim(k, ".")
	if r := []rune(k); len(r) > maxKeyRunes {
		k = string(r[:maxKeyRunes])
	}
	if k == "" {
		k = "untitled"
	}
	return fmt.Sprintf("%s_%s_%s.md", op, k, date.Format("2006-01-02"))
}

// writeArtifact creates dir/name with content and never overwrites an
// existing artifact: a second script for the same key and day gets a
// numeric suffix.
func writeArtifact(dir, name, content string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating artifact dir: %w", err)
	}

	base := strings.TrimSuffix(name, ".md")
	for n := 1; n < 100; n++ {
		candidate := name
		if n > 1 {
			candidate = fmt.Sprintf("%s_%d.md", base, n)
		}
		path := filepath.Join(dir, candidate)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("creating artifact: %w", err)
		}
		if _, err := f.WriteString(content); err != nil {
			f.Close()
			os.Remove(path)
			return "", fmt.Errorf("writing artifact: %w", err)
		}
		if err := f.Close(); err != nil {
			os.Remove(path)
			return "", fmt.Errorf("closing artifact: %w", err)
		}
		return path, nil
	}
	return "", fmt.Errorf("too many artifacts named %s", name)
}

type provenance struct {
	title   string
	lines   [][2]string
	runID   string
	created time.Time
}

func renderArtifact(p provenance, script string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", p.title)
	for _, l := range p.lines {
		fmt.Fprintf(&b, "> %s: %s\n", l[0], l[1])
	}
	fmt.Fprintf(&b, "> 生成时间: %s\n", p.created.Format(time.RFC3339))
	if p.runID != "" {
		fmt.Fprintf(&b, "> 运行ID: %s\n", p.runID)
	}
	b.WriteString("\n---\n\n")
	b.WriteString(script)
	if !strings.HasSuffix(script, "\n") {
		b.WriteString("\n")
	}
	return b.String()
}
