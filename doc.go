// Package bpmgate is a gateway in front of a BPMN process engine.
//
// It deploys BPMN documents and starts instances with typed variables, exposes instance
// details and active tasks, and reacts to engine lifecycle events: every task, execution
// and process-instance event is written to the audit trail, may notify the people involved,
// and enriches the instance variables.
//
// The engine is pluggable through ports.ProcessEngine. The in-memory engine emits events
// in-process through lifecycle hooks; a remote engine pushes them over HTTP and the gateway
// writes the resulting changes back.
//
//	gw := bpmgate.New(bpmgate.WithLogger(logger))
//	resp := gw.DeployAndStart(ctx, variables.WorkflowRequest{
//		BpmnXML:    xml,
//		ProcessKey: "invoice",
//		Variables:  map[string]any{"amount": 120.0},
//	})
package bpmgate
