package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

type PutInput struct {
	Key         string // slash-separated, relative
	ContentType string
}

type PutResult struct {
	Key      string
	Location string
}

// Storage keeps raw payloads (webhook bodies) for later inspection.
type Storage interface {
	Put(ctx context.Context, r io.Reader, in PutInput) (PutResult, error)
}

// WebhookKey lays payloads out by provider and day: chapa/2026/01/02/<event>.json
func WebhookKey(provider, eventID string, at time.Time) string {
	at = at.UTC()
	name := sanitize(eventID)
	if name == "" {
		name = fmt.Sprintf("%d", at.UnixNano())
	}
	return path.Join(strings.ToLower(provider), at.Format("2006/01/02"), name+".json")
}

func sanitize(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return strings.Trim(b.String(), ".")
}
