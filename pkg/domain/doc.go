/*
Package domain contains the core models shared by every bpmgate component.

The process engine itself is external: tasks, executions and process instances are
owned and mutated by it. This package only describes what bpmgate observes about them
and the handles the engine passes into lifecycle callbacks. It is kept free of I/O and
persistence concerns, following Hexagonal Architecture principles.

# Key Entities

  - Task, ProcessInstance, HistoricProcessInstance, Deployment: read models of engine state.
  - DelegateTask, DelegateExecution: handles passed to lifecycle callbacks.
  - TaskEvent, ExecutionEvent, ProcessInstanceEvent: lifecycle events.
  - LifecycleHooks: the callbacks an engine invokes while it runs.
  - AuditRecord, Notification: side-effects produced by the event subscriber.
*/
package domain
