// Package bpmn reads the subset of BPMN 2.0 XML the gateway needs: processes, their
// flow nodes and sequence flows, and the Camunda user task extensions.
package bpmn

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/aretw0/bpmgate/pkg/domain"
)

// NodeKind identifies the BPMN element behind a Node.
type NodeKind string

const (
	KindStartEvent       NodeKind = "startEvent"
	KindEndEvent         NodeKind = "endEvent"
	KindUserTask         NodeKind = "userTask"
	KindServiceTask      NodeKind = "serviceTask"
	KindScriptTask       NodeKind = "scriptTask"
	KindManualTask       NodeKind = "manualTask"
	KindTask             NodeKind = "task"
	KindExclusiveGateway NodeKind = "exclusiveGateway"
)

// Node is a flow node of a process.
type Node struct {
	ID   string
	Name string
	Kind NodeKind
	// Assignee and Priority are only set on user tasks.
	Assignee string
	Priority int
	// DefaultFlow is only set on gateways.
	DefaultFlow string
}

// SequenceFlow connects two nodes.
type SequenceFlow struct {
	ID        string
	Name      string
	SourceRef string
	TargetRef string
	Condition string
}

// Process is an executable graph.
type Process struct {
	ID           string
	Name         string
	IsExecutable bool
	Nodes        []Node
	Flows        []SequenceFlow

	nodes    map[string]int
	outgoing map[string][]int
}

// Node returns the node with the given id.
func (p *Process) Node(id string) (Node, bool) {
	i, ok := p.nodes[id]
	if !ok {
		return Node{}, false
	}
	return p.Nodes[i], true
}

// Outgoing returns the flows leaving a node, in document order.
func (p *Process) Outgoing(id string) []SequenceFlow {
	idx := p.outgoing[id]
	out := make([]SequenceFlow, len(idx))
	for i, fi := range idx {
		out[i] = p.Flows[fi]
	}
	return out
}

// StartEvent returns the first start event of the process.
func (p *Process) StartEvent() (Node, bool) {
	for _, n := range p.Nodes {
		if n.Kind == KindStartEvent {
			return n, true
		}
	}
	return Node{}, false
}

// Definitions is the root of a BPMN document.
type Definitions struct {
	ID              string
	TargetNamespace string
	Processes       []*Process
}

// Process looks a process up by id.
func (d *Definitions) Process(id string) (*Process, bool) {
	for _, p := range d.Processes {
		if p.ID == id {
			return p, true
		}
	}
	return nil, false
}

// Parse decodes a BPMN document.
// It fails when the XML is malformed, when no process is declared, or when a flow
// references a node that does not exist.
func Parse(data []byte) (*Definitions, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, domain.ErrEmptyBPMN
	}

	var raw xmlDefinitions
	if err := xml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidBPMN, err)
	}
	if raw.XMLName.Local != "definitions" {
		return nil, fmt.Errorf("%w: root element is %q, want definitions", domain.ErrInvalidBPMN, raw.XMLName.Local)
	}
	if len(raw.Processes) == 0 {
		return nil, fmt.Errorf("%w: no process declared", domain.ErrInvalidBPMN)
	}

	defs := &Definitions{ID: raw.ID, TargetNamespace: raw.TargetNamespace}
	for _, rp := range raw.Processes {
		p, err := rp.build()
		if err != nil {
			return nil, err
		}
		defs.Processes = append(defs.Processes, p)
	}
	return defs, nil
}

// ProcessIDs returns the ids of the processes declared in a BPMN document without
// checking their graphs. Elements outside the supported subset are ignored.
func ProcessIDs(data []byte) ([]string, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, domain.ErrEmptyBPMN
	}
	var raw struct {
		XMLName   xml.Name
		Processes []struct {
			ID string `xml:"id,attr"`
		} `xml:"process"`
	}
	if err := xml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidBPMN, err)
	}
	if raw.XMLName.Local != "definitions" {
		return nil, fmt.Errorf("%w: root element is %q, want definitions", domain.ErrInvalidBPMN, raw.XMLName.Local)
	}
	ids := make([]string, 0, len(raw.Processes))
	for _, p := range raw.Processes {
		if p.ID != "" {
			ids = append(ids, p.ID)
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no process declared", domain.ErrInvalidBPMN)
	}
	return ids, nil
}

type xmlDefinitions struct {
	XMLName         xml.Name
	ID              string       `xml:"id,attr"`
	TargetNamespace string       `xml:"targetNamespace,attr"`
	Processes       []xmlProcess `xml:"process"`
}

type xmlNode struct {
	ID       string `xml:"id,attr"`
	Name     string `xml:"name,attr"`
	Default  string `xml:"default,attr"`
	Assignee string `xml:"http://camunda.org/schema/1.0/bpmn assignee,attr"`
	Priority string `xml:"http://camunda.org/schema/1.0/bpmn priority,attr"`
}

type xmlFlow struct {
	ID        string `xml:"id,attr"`
	Name      string `xml:"name,attr"`
	SourceRef string `xml:"sourceRef,attr"`
	TargetRef string `xml:"targetRef,attr"`
	Condition string `xml:"conditionExpression"`
}

type xmlProcess struct {
	ID                string    `xml:"id,attr"`
	Name              string    `xml:"name,attr"`
	IsExecutable      string    `xml:"isExecutable,attr"`
	StartEvents       []xmlNode `xml:"startEvent"`
	EndEvents         []xmlNode `xml:"endEvent"`
	UserTasks         []xmlNode `xml:"userTask"`
	ServiceTasks      []xmlNode `xml:"serviceTask"`
	ScriptTasks       []xmlNode `xml:"scriptTask"`
	ManualTasks       []xmlNode `xml:"manualTask"`
	Tasks             []xmlNode `xml:"task"`
	ExclusiveGateways []xmlNode `xml:"exclusiveGateway"`
	SequenceFlows     []xmlFlow `xml:"sequenceFlow"`
}

func (rp xmlProcess) build() (*Process, error) {
	if rp.ID == "" {
		return nil, fmt.Errorf("%w: process without id", domain.ErrInvalidBPMN)
	}
	p := &Process{
		ID:           rp.ID,
		Name:         rp.Name,
		IsExecutable: strings.EqualFold(rp.IsExecutable, "true"),
		nodes:        map[string]int{},
		outgoing:     map[string][]int{},
	}

	groups := []struct {
		kind  NodeKind
		nodes []xmlNode
	}{
		{KindStartEvent, rp.StartEvents},
		{KindEndEvent, rp.EndEvents},
		{KindUserTask, rp.UserTasks},
		{KindServiceTask, rp.ServiceTasks},
		{KindScriptTask, rp.ScriptTasks},
		{KindManualTask, rp.ManualTasks},
		{KindTask, rp.Tasks},
		{KindExclusiveGateway, rp.ExclusiveGateways},
	}
	for _, g := range groups {
		for _, rn := range g.nodes {
			if rn.ID == "" {
				return nil, fmt.Errorf("%w: %s without id in process %q", domain.ErrInvalidBPMN, g.kind, rp.ID)
			}
			if _, dup := p.nodes[rn.ID]; dup {
				return nil, fmt.Errorf("%w: duplicate id %q", domain.ErrInvalidBPMN, rn.ID)
			}
			n := Node{ID: rn.ID, Name: rn.Name, Kind: g.kind}
			switch g.kind {
			case KindUserTask:
				n.Assignee = strings.TrimSpace(rn.Assignee)
				n.Priority = domain.DefaultTaskPriority
				if v, err := strconv.Atoi(strings.TrimSpace(rn.Priority)); err == nil {
					n.Priority = v
				}
			case KindExclusiveGateway:
				n.DefaultFlow = rn.Default
			}
			p.nodes[n.ID] = len(p.Nodes)
			p.Nodes = append(p.Nodes, n)
		}
	}

	for _, rf := range rp.SequenceFlows {
		if _, ok := p.nodes[rf.SourceRef]; !ok {
			return nil, fmt.Errorf("%w: flow %q has unknown source %q", domain.ErrInvalidBPMN, rf.ID, rf.SourceRef)
		}
		if _, ok := p.nodes[rf.TargetRef]; !ok {
			return nil, fmt.Errorf("%w: flow %q has unknown target %q", domain.ErrInvalidBPMN, rf.ID, rf.TargetRef)
		}
		p.outgoing[rf.SourceRef] = append(p.outgoing[rf.SourceRef], len(p.Flows))
		p.Flows = append(p.Flows, SequenceFlow{
			ID:        rf.ID,
			Name:      rf.Name,
			SourceRef: rf.SourceRef,
			TargetRef: rf.TargetRef,
			Condition: strings.TrimSpace(rf.Condition),
		})
	}
	return p, nil
}
