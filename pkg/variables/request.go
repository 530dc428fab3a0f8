package variables

import (
	"fmt"
	"log/slog"

	"github.com/aretw0/bpmgate/pkg/domain"
)

// WorkflowRequest is the deploy-and-start payload.
type WorkflowRequest struct {
	BpmnXML          string                   `json:"bpmnXml"`
	ProcessName      string                   `json:"processName,omitempty"`
	ProcessKey       string                   `json:"processKey,omitempty"`
	Variables        map[string]any           `json:"variables,omitempty"`
	TypedVariables   map[string]TypedVariable `json:"typedVariables,omitempty"`
	ComplexData      map[string]any           `json:"complexData,omitempty"`
	BusinessKey      string                   `json:"businessKey,omitempty"`
	TenantID         string                   `json:"tenantId,omitempty"`
	StartImmediately *bool                    `json:"startImmediately,omitempty"`
}

// ShouldStart reports whether an instance must be started after deployment.
func (r WorkflowRequest) ShouldStart() bool {
	return r.StartImmediately == nil || *r.StartImmediately
}

// ProcessVariables merges the three variable groups of a request.
// Later groups override earlier keys: simple, then typed, then complex.
func ProcessVariables(req WorkflowRequest, logger *slog.Logger) (domain.Variables, error) {
	out := make(domain.Variables, len(req.Variables)+len(req.TypedVariables)+len(req.ComplexData))

	for k, v := range req.Variables {
		out[k] = v
	}
	for k, tv := range req.TypedVariables {
		v, err := tv.Convert(logger)
		if err != nil {
			return nil, fmt.Errorf("typed variable %q: %w", k, err)
		}
		out[k] = v
	}
	for k, v := range req.ComplexData {
		out[k] = normalizeValue(v, 0)
	}
	return out, nil
}
