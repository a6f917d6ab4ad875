// Package notify delivers export artifacts by email.
package notify

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"
)

// SizeWarningThreshold is the attachment total most mail providers reject
// above.
const SizeWarningThreshold = 25 * 1024 * 1024

// DefaultSubject may contain {timestamp}.
const DefaultSubject = "Database Backup - {timestamp}"

var backupExtensions = []string{".sql", ".zip", ".tar.gz"}

// Attachment is one file to send.
type Attachment struct {
	Path string
	Size int64
}

func (a Attachment) Name() string {
	return filepath.Base(a.Path)
}

// Message is a fully assembled notification.
type Message struct {
	From        string
	To          []string
	Subject     string
	Body        string
	Attachments []Attachment
}

// Sender delivers a message.
type Sender interface {
	Send(msg Message) error
}

// Collect stats each path in order. Missing or unreadable files are logged
// and skipped.
func Collect(paths []string) []Attachment {
	var out []Attachment
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			log.Warnf("Skipping attachment %s: %v", p, err)
			continue
		}
		if info.IsDir() {
			log.Warnf("Skipping attachment %s: is a directory", p)
			continue
		}
		out = append(out, Attachment{Path: p, Size: info.Size()})
	}
	return out
}

// TotalSize sums attachment sizes.
func TotalSize(atts []Attachment) int64 {
	var total int64
	for _, a := range atts {
		total += a.Size
	}
	return total
}

// FindLatest returns up to count backup files in dir, newest first.
func FindLatest(dir string, count int) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading backup directory: %w", err)
	}

	type candidate struct {
		path    string
		modTime time.Time
	}
	var found []candidate
	for _, entry := range entries {
		if entry.IsDir() || !isBackupFile(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		found = append(found, candidate{filepath.Join(dir, entry.Name()), info.ModTime()})
	}
	sort.SliceStable(found, func(i, j int) bool {
		if found[i].modTime.Equal(found[j].modTime) {
			return found[i].path > found[j].path
		}
		return found[i].modTime.After(found[j].modTime)
	})
	if count > 0 && len(found) > count {
		found = found[:count]
	}
	paths := make([]string, len(found))
	for i, c := range found {
		paths[i] = c.path
	}
	return paths, nil
}

func isBackupFile(name string) bool {
	for _, ext := range backupExtensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// ExpandSubject replaces {timestamp} in subject.
func ExpandSubject(subject string, now time.Time) string {
	return strings.ReplaceAll(subject, "{timestamp}", now.Format("2006-01-02 15:04:05"))
}

// Summary renders the default message body. paths are the requested files,
// found are those that exist.
func Summary(paths []string, found []Attachment, now time.Time) string {
	sizes := make(map[string]int64, len(found))
	for _, a := range found {
		sizes[a.Path] = a.Size
	}
	rule := strings.Repeat("=", 50)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Database Backup Report\n%s\n\n", rule)
	fmt.Fprintf(&sb, "Timestamp: %s\n", now.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&sb, "Total Files: %d\n\n", len(paths))
	sb.WriteString("File List:\n")
	for i, p := range paths {
		if size, ok := sizes[p]; ok {
			fmt.Fprintf(&sb, "%d. %s (%s)\n", i+1, filepath.Base(p), humanize.IBytes(uint64(size)))
		} else {
			fmt.Fprintf(&sb, "%d. %s (NOT FOUND)\n", i+1, filepath.Base(p))
		}
	}
	fmt.Fprintf(&sb, "\n%s\n\n", rule)
	sb.WriteString("This backup was sent automatically for off-site safekeeping.\n")
	sb.WriteString("Store these files somewhere safe.\n\n")
	sb.WriteString("If you did not expect this email, contact your administrator.\n")
	return sb.String()
}

// SizeWarning describes the attachment total when it exceeds
// SizeWarningThreshold and is empty otherwise.
func (m Message) SizeWarning() string {
	total := TotalSize(m.Attachments)
	if total <= SizeWarningThreshold {
		return ""
	}
	return fmt.Sprintf("Total attachment size %s exceeds %s and may be rejected by the mail server",
		humanize.IBytes(uint64(total)), humanize.IBytes(SizeWarningThreshold))
}

// Prepare assembles the message for files. Missing files are skipped, the
// subject is expanded, and the summary is used when body is empty. It fails
// only when no file remains.
func Prepare(from, recipient, subject, body string, files []string, now time.Time) (Message, error) {
	if recipient == "" {
		return Message{}, fmt.Errorf("recipient is required")
	}
	atts := Collect(files)
	if len(atts) == 0 {
		return Message{}, fmt.Errorf("no valid files to send")
	}
	if subject == "" {
		subject = DefaultSubject
	}
	if body == "" {
		body = Summary(files, atts, now)
	}
	return Message{
		From:        from,
		To:          []string{recipient},
		Subject:     ExpandSubject(subject, now),
		Body:        body,
		Attachments: atts,
	}, nil
}
