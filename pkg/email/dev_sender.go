package email

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync/atomic"
	"time"
)

// DevSender writes every message to a directory instead of sending it.
// Each message produces an .html body and a .json envelope sharing a base name.
type DevSender struct {
	dir string
	seq atomic.Uint64
}

// NewDevSender creates a sender that writes to dir, creating it on first use.
func NewDevSender(dir string) EmailSender {
	return &DevSender{dir: dir}
}

type devEnvelope struct {
	Timestamp  string `json:"timestamp"`
	SendTo     string `json:"send_to"`
	SendToName string `json:"send_to_name,omitempty"`
	Subject    string `json:"subject"`
	Tag        string `json:"tag,omitempty"`
	BodyText   string `json:"body_text,omitempty"`
}

// SendEmail implements EmailSender.
func (d *DevSender) SendEmail(ctx context.Context, params SendEmailParams) error {
	if err := params.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("%w: failed to create directory: %v", ErrFailedToSendEmail, err)
	}

	now := time.Now()
	label := params.Tag
	if label == "" {
		label = params.Subject
	}
	// The sequence keeps names unique when several messages share a second.
	base := fmt.Sprintf("%s_%04d_%s", now.Format("2006_01_02_150405"), d.seq.Add(1)%10000, sanitizeFilename(label))

	if err := os.WriteFile(filepath.Join(d.dir, base+".html"), []byte(params.BodyHTML), 0o644); err != nil {
		return fmt.Errorf("%w: failed to write HTML file: %v", ErrFailedToSendEmail, err)
	}

	envelope, err := json.MarshalIndent(devEnvelope{
		Timestamp:  now.Format(time.RFC3339),
		SendTo:     params.SendTo,
		SendToName: params.SendToName,
		Subject:    params.Subject,
		Tag:        params.Tag,
		BodyText:   params.BodyText,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: failed to encode envelope: %v", ErrFailedToSendEmail, err)
	}

	if err := os.WriteFile(filepath.Join(d.dir, base+".json"), envelope, 0o644); err != nil {
		return fmt.Errorf("%w: failed to write JSON file: %v", ErrFailedToSendEmail, err)
	}

	return nil
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9\-_.]`)

// sanitizeFilename lowercases s, turns spaces into underscores, strips
// anything outside [a-z0-9-_.] and caps the length at 100.
func sanitizeFilename(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	s = unsafeFilenameChars.ReplaceAllString(s, "")
	if len(s) > 100 {
		s = s[:100]
	}
	if s == "" {
		return "email"
	}
	return strings.ToLower(s)
}
