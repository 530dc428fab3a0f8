// Package graph renders BPMN processes as Mermaid flowcharts.
package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/bpmgate/pkg/bpmn"
	"github.com/aretw0/bpmgate/pkg/domain"
)

// GraphOverlay contains instance state to visualize on the graph.
type GraphOverlay struct {
	VisitedNodes []string
	CurrentNodes []string
}

// OverlayFromTrail marks every activity with a start record as visited and those
// still lacking an end record as current.
func OverlayFromTrail(records []domain.AuditRecord) *GraphOverlay {
	overlay := &GraphOverlay{}
	open := map[string]int{}
	var order []string
	for _, r := range records {
		switch r.Kind {
		case domain.AuditActivityStarted:
			if _, seen := open[r.ActivityID]; !seen {
				order = append(order, r.ActivityID)
			}
			open[r.ActivityID]++
		case domain.AuditActivityEnded:
			open[r.ActivityID]--
		}
	}
	for _, id := range order {
		if open[id] > 0 {
			overlay.CurrentNodes = append(overlay.CurrentNodes, id)
		} else {
			overlay.VisitedNodes = append(overlay.VisitedNodes, id)
		}
	}
	return overlay
}

// GenerateMermaid produces a Mermaid flowchart syntax string for a process.
// It applies semantic styling:
// - Start/End events: ((Circle)) / (((Double circle)))
// - User task: [/Parallelogram/]
// - Service and script tasks: [[Subroutine]]
// - Gateways: {Rhombus}
// - Default: [Rectangle]
// It also applies overlay styles (Visited/Current) if provided.
func GenerateMermaid(p *bpmn.Process, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, node := range p.Nodes {
		safeID := sanitizeMermaidID(node.ID)

		opener, closer := "[", "]"
		switch node.Kind {
		case bpmn.KindStartEvent:
			opener, closer = "((", "))"
		case bpmn.KindEndEvent:
			opener, closer = "(((", ")))"
		case bpmn.KindUserTask:
			opener, closer = "[/", "/]"
		case bpmn.KindServiceTask, bpmn.KindScriptTask:
			opener, closer = "[[", "]]"
		case bpmn.KindExclusiveGateway:
			opener, closer = "{", "}"
		}

		label := node.Name
		if label == "" {
			label = node.ID
		}
		if node.Assignee != "" {
			label += " <br/> 👤 " + node.Assignee
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, escape(label), closer)
	}

	for _, f := range p.Flows {
		arrow := "-->"
		if cond := f.Condition; cond != "" {
			arrow = fmt.Sprintf("-- \"%s\" -->", escape(cond))
		} else if f.Name != "" {
			arrow = fmt.Sprintf("-- \"%s\" -->", escape(f.Name))
		}
		if node, ok := p.Node(f.SourceRef); ok && node.DefaultFlow == f.ID {
			arrow = "-. default .->"
		}
		fmt.Fprintf(&sb, "    %s %s %s\n", sanitizeMermaidID(f.SourceRef), arrow, sanitizeMermaidID(f.TargetRef))
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		visitedSet := make(map[string]bool)
		for _, id := range overlay.VisitedNodes {
			safeID := sanitizeMermaidID(id)
			if !visitedSet[safeID] && safeID != "" {
				visitedSet[safeID] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", safeID)
			}
		}
		for _, id := range overlay.CurrentNodes {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(id))
		}
	}

	return sb.String()
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	return s
}
