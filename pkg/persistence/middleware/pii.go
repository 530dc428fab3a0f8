package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/aretw0/bpmgate/pkg/domain"
	"github.com/aretw0/bpmgate/pkg/ports"
)

// Mask replaces masked values.
const Mask = "***"

// fields that identify a record and are never masked
var protected = map[string]bool{
	"id":                true,
	"kind":              true,
	"timestamp":         true,
	"processInstanceId": true,
}

type piiMiddleware struct {
	next     ports.AuditStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks record fields whose JSON name matches
// one of the patterns, e.g. "assignee" or "reason". Masking happens on write.
func NewPIIMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.AuditStore) ports.AuditStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}
}

func (m *piiMiddleware) Append(ctx context.Context, record domain.AuditRecord) error {
	masked, err := m.mask(record)
	if err != nil {
		return err
	}
	return m.next.Append(ctx, masked)
}

func (m *piiMiddleware) List(ctx context.Context, processInstanceID string) ([]domain.AuditRecord, error) {
	return m.next.List(ctx, processInstanceID)
}

// mask works on the JSON form so that new record fields are covered by name.
func (m *piiMiddleware) mask(record domain.AuditRecord) (domain.AuditRecord, error) {
	raw, err := json.Marshal(record)
	if err != nil {
		return record, fmt.Errorf("failed to marshal record: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return record, fmt.Errorf("failed to unmarshal record: %w", err)
	}

	changed := false
	for k, v := range fields {
		if protected[k] {
			continue
		}
		if s, ok := v.(string); ok && s != "" && m.matches(k) {
			fields[k] = Mask
			changed = true
		}
	}
	if !changed {
		return record, nil
	}

	raw, err = json.Marshal(fields)
	if err != nil {
		return record, fmt.Errorf("failed to marshal masked record: %w", err)
	}
	var out domain.AuditRecord
	if err := json.Unmarshal(raw, &out); err != nil {
		return record, fmt.Errorf("failed to unmarshal masked record: %w", err)
	}
	return out, nil
}

func (m *piiMiddleware) matches(key string) bool {
	for _, p := range m.patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}
