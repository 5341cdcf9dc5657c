// Package archive renders meeting records to Markdown files with YAML
// frontmatter, laid out by meeting date. Paths are deterministic per meeting
// so a re-run finds the existing file instead of writing a duplicate.
package archive

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/otherjamesbrown/meetsync/pkg/actions"
	mserrors "github.com/otherjamesbrown/meetsync/pkg/errors"
	"github.com/otherjamesbrown/meetsync/pkg/logging"
	"github.com/otherjamesbrown/meetsync/pkg/transcript"
)

// Result reports where a record landed. AlreadyExists means the file was
// present before this call and nothing was written.
type Result struct {
	Path          string
	ContentHash   string
	AlreadyExists bool
}

// Writer persists rendered meeting records under a base directory.
type Writer struct {
	baseDir string
	logger  logging.Logger
}

// NewWriter creates a Writer rooted at baseDir.
func NewWriter(baseDir string, logger logging.Logger) *Writer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Writer{
		baseDir: baseDir,
		logger:  logger.With(logging.F("component", "archive")),
	}
}

// frontmatter is the YAML header of an archived meeting file.
type frontmatter struct {
	UUID      string   `yaml:"uuid"`
	MeetingID int64    `yaml:"meeting_id"`
	Topic     string   `yaml:"topic"`
	Date      string   `yaml:"date"`
	Duration  string   `yaml:"duration"`
	Host      string   `yaml:"host,omitempty"`
	KeyPoints []string `yaml:"key_points,omitempty"`
}

// Write renders the record and persists it at its deterministic path.
// An existing file at that path is left untouched and reported via
// AlreadyExists, so overlapping runs stay idempotent.
func (w *Writer) Write(rec transcript.MeetingRecord) (Result, error) {
	relPath := w.relPath(rec)
	fullPath := filepath.Join(w.baseDir, relPath)

	if _, err := os.Stat(fullPath); err == nil {
		w.logger.Debug("output already exists, skipping",
			logging.F("path", relPath), logging.F("uuid", rec.Ref.UUID))
		return Result{Path: relPath, AlreadyExists: true}, nil
	}

	content, err := render(rec)
	if err != nil {
		return Result{}, err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return Result{}, fmt.Errorf("creating archive directory: %w: %v", mserrors.ErrPersistence, err)
	}
	if err := os.WriteFile(fullPath, content, 0o644); err != nil {
		return Result{}, fmt.Errorf("writing archive file: %w: %v", mserrors.ErrPersistence, err)
	}

	sum := sha256.Sum256(content)
	w.logger.Info("meeting archived",
		logging.F("path", relPath), logging.F("uuid", rec.Ref.UUID))

	return Result{Path: relPath, ContentHash: hex.EncodeToString(sum[:])}, nil
}

// relPath builds the deterministic archive path for a record: a date
// directory plus a sanitized topic with a short uuid suffix so recurring
// meetings with identical topics never collide.
func (w *Writer) relPath(rec transcript.MeetingRecord) string {
	day := rec.Ref.StartTime.UTC().Format("2006-01-02")
	name := fmt.Sprintf("%s-%s.md", sanitizeFilename(rec.Ref.Topic), shortID(rec.Ref.UUID))
	return filepath.Join(day, name)
}

func render(rec transcript.MeetingRecord) ([]byte, error) {
	fm := frontmatter{
		UUID:      rec.Ref.UUID,
		MeetingID: rec.Ref.ID,
		Topic:     rec.Ref.Topic,
		Date:      rec.Ref.StartTime.UTC().Format("2006-01-02 15:04"),
		Duration:  formatDuration(rec.Ref.DurationSeconds),
		Host:      rec.Ref.HostEmail,
		KeyPoints: rec.KeyPoints,
	}
	fmBytes, err := yaml.Marshal(&fm)
	if err != nil {
		return nil, fmt.Errorf("encoding frontmatter: %w", err)
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.Write(fmBytes)
	b.WriteString("---\n\n")
	b.WriteString("# " + rec.Ref.Topic + "\n")

	if len(rec.ActionItems) > 0 {
		items := make([]transcript.ActionItem, len(rec.ActionItems))
		copy(items, rec.ActionItems)
		actions.SortByConfidence(items)

		b.WriteString("\n## Action Items\n\n")
		for _, it := range items {
			b.WriteString("- " + it.Text)
			if it.Assignee != "" {
				b.WriteString(" (owner: " + it.Assignee + ")")
			}
			if it.DueDate != "" {
				b.WriteString(" (due: " + it.DueDate + ")")
			}
			fmt.Fprintf(&b, " _[%.0f%%]_\n", it.Confidence*100)
		}
	}

	if len(rec.Transcript.Segments) > 0 {
		b.WriteString("\n## Transcript\n\n")
		for _, seg := range rec.Transcript.Segments {
			fmt.Fprintf(&b, "**[%s] %s:** %s\n\n", seg.Timestamp, seg.Speaker, seg.Text)
		}
	}

	return []byte(b.String()), nil
}

var unsafeFilenameRegex = regexp.MustCompile(`[^a-z0-9]+`)

// sanitizeFilename reduces a meeting topic to a safe, stable slug.
func sanitizeFilename(topic string) string {
	slug := unsafeFilenameRegex.ReplaceAllString(strings.ToLower(topic), "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > 60 {
		slug = strings.Trim(slug[:60], "-")
	}
	if slug == "" {
		slug = "meeting"
	}
	return slug
}

// shortID derives a stable 8-character suffix from the meeting uuid, which
// may contain characters unfit for filenames.
func shortID(uuid string) string {
	sum := sha256.Sum256([]byte(uuid))
	return hex.EncodeToString(sum[:])[:8]
}

func formatDuration(seconds int) string {
	return fmt.Sprintf("%dm", seconds/60)
}
