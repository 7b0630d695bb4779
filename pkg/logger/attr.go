package logger

import (
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Group creates a slog group attribute from the provided attributes.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// Errors groups multiple non-nil errors under the key "errors".
// If all errors are nil, it returns an empty Attr.
func Errors(errs ...error) slog.Attr {
	as := make([]slog.Attr, 0, len(errs))
	for i, err := range errs {
		if err != nil {
			as = append(as, slog.String(strconv.Itoa(i), err.Error()))
		}
	}
	if len(as) == 0 {
		return slog.Attr{}
	}
	return slog.Attr{Key: "errors", Value: slog.GroupValue(as...)}
}

// Error records err under the key "error". A nil err yields an empty Attr,
// which slog drops.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String("error", err.Error())
}

// ItemID records a queue item identifier under the key "item_id".
func ItemID(id uuid.UUID) slog.Attr {
	return slog.String("item_id", id.String())
}

// Kind records the message kind under the key "kind".
func Kind[T ~string](kind T) slog.Attr {
	return slog.String("kind", string(kind))
}

// Status records an item status under the key "status".
func Status[T ~string](status T) slog.Attr {
	return slog.String("status", string(status))
}

// RetryCount records the number of failed attempts under the key "retry_count".
func RetryCount(count int) slog.Attr {
	return slog.Int("retry_count", count)
}

// MaxRetries records the retry budget under the key "max_retries".
func MaxRetries(max int) slog.Attr {
	return slog.Int("max_retries", max)
}

// NextRetryAt records when an item becomes ready again under the key "next_retry_at".
func NextRetryAt(t time.Time) slog.Attr {
	return slog.Time("next_retry_at", t)
}

// RecipientDomain records only the domain part of an address under the key
// "recipient_domain", keeping full addresses out of logs.
func RecipientDomain(address string) slog.Attr {
	if i := strings.LastIndex(address, "@"); i >= 0 {
		return slog.String("recipient_domain", strings.ToLower(address[i+1:]))
	}
	return slog.String("recipient_domain", "")
}

// Duration records a duration under the key "duration".
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// RequestID records the request identifier under the key "request_id".
// An empty id yields an empty Attr.
func RequestID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("request_id", id)
}
