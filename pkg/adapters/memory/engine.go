package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/bpmgate/internal/logging"
	"github.com/aretw0/bpmgate/pkg/bpmn"
	"github.com/aretw0/bpmgate/pkg/domain"
	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/mohae/deepcopy"
)

// Engine implements ports.ProcessEngine by walking BPMN graphs in memory.
//
// It supports start and end events, tasks of any kind, user tasks that wait for completion
// and exclusive gateways with simple conditions. Lifecycle hooks run synchronously while
// the engine lock is held, so a hook must only use the delegate it receives and must not
// call back into the Engine.
type Engine struct {
	mu     sync.Mutex
	clock  clock.Clock
	logger *slog.Logger
	hooks  domain.LifecycleHooks

	definitions map[string]*definition
	versions    map[string]int
	instances   map[string]*instance
	history     map[string]*historyEntry
	tasks       map[string]*task
	taskSeq     int
}

type definition struct {
	domain.ProcessDefinition
	process *bpmn.Process
}

type instance struct {
	id          string
	def         *definition
	businessKey string
	vars        domain.Variables
}

type historyEntry struct {
	domain.HistoricProcessInstance
	vars domain.Variables
}

type task struct {
	domain.Task
	seq          int
	deleteReason string
	inst         *instance
}

// stepsPerNode bounds a single walk to this many visits per node of the process.
const stepsPerNode = 100

// ErrStepLimit is returned when a walk loops without reaching a user task or an end event.
// The instance is terminated.
var ErrStepLimit = errors.New("step limit exceeded")

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithEngineClock sets the time source used for timestamps and task creation.
func WithEngineClock(c clock.Clock) EngineOption {
	return func(e *Engine) { e.clock = c }
}

// WithEngineLogger sets the logger.
func WithEngineLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

// NewEngine creates an empty engine.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		clock:       clock.New(),
		logger:      logging.NewNop(),
		definitions: make(map[string]*definition),
		versions:    make(map[string]int),
		instances:   make(map[string]*instance),
		history:     make(map[string]*historyEntry),
		tasks:       make(map[string]*task),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetLifecycleHooks replaces the hooks invoked on lifecycle transitions.
func (e *Engine) SetLifecycleHooks(hooks domain.LifecycleHooks) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hooks = hooks
}

// Deploy registers one definition per process in the document.
func (e *Engine) Deploy(ctx context.Context, req domain.DeploymentRequest) (*domain.Deployment, error) {
	defs, err := bpmn.Parse(req.BPMN)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	dep := &domain.Deployment{
		ID:             uuid.NewString(),
		Name:           req.Name,
		DeploymentTime: e.clock.Now(),
	}
	for _, p := range defs.Processes {
		e.versions[p.ID]++
		version := e.versions[p.ID]
		pd := domain.ProcessDefinition{
			ID:           fmt.Sprintf("%s:%d:%s", p.ID, version, uuid.NewString()),
			Key:          p.ID,
			Name:         p.Name,
			Version:      version,
			DeploymentID: dep.ID,
		}
		e.definitions[pd.ID] = &definition{ProcessDefinition: pd, process: p}
		dep.ProcessDefinitions = append(dep.ProcessDefinitions, pd)
	}
	e.logger.Debug("deployment created", "deployment_id", dep.ID, "definitions", len(dep.ProcessDefinitions))
	return dep, nil
}

// StartProcessInstance creates an instance and runs it until it waits or ends.
func (e *Engine) StartProcessInstance(ctx context.Context, definitionID, businessKey string, vars domain.Variables) (*domain.ProcessInstance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	def, ok := e.definitions[definitionID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", definitionID, domain.ErrProcessDefinitionNotFound)
	}
	start, ok := def.process.StartEvent()
	if !ok {
		return nil, fmt.Errorf("%w: process %q has no start event", domain.ErrInvalidBPMN, def.Key)
	}

	inst := &instance{
		id:          uuid.NewString(),
		def:         def,
		businessKey: businessKey,
		vars:        cloneVars(vars),
	}
	e.instances[inst.id] = inst
	e.history[inst.id] = &historyEntry{HistoricProcessInstance: domain.HistoricProcessInstance{
		ID:                   inst.id,
		ProcessDefinitionID:  def.ID,
		ProcessDefinitionKey: def.Key,
		BusinessKey:          businessKey,
		StartTime:            e.clock.Now(),
		State:                domain.HistoricStateActive,
	}}

	e.emitProcess(ctx, domain.ProcessEventStart, inst, start.ID, start.Name)
	if err := e.run(ctx, inst, start.ID); err != nil {
		return nil, err
	}

	_, running := e.instances[inst.id]
	return &domain.ProcessInstance{
		ID:                   inst.id,
		ProcessDefinitionID:  def.ID,
		ProcessDefinitionKey: def.Key,
		BusinessKey:          businessKey,
		Ended:                !running,
	}, nil
}

func (e *Engine) ProcessInstance(ctx context.Context, id string) (*domain.ProcessInstance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	inst, ok := e.instances[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, domain.ErrProcessInstanceNotFound)
	}
	return &domain.ProcessInstance{
		ID:                   inst.id,
		ProcessDefinitionID:  inst.def.ID,
		ProcessDefinitionKey: inst.def.Key,
		BusinessKey:          inst.businessKey,
	}, nil
}

func (e *Engine) HistoricProcessInstance(ctx context.Context, id string) (*domain.HistoricProcessInstance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	h, ok := e.history[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, domain.ErrProcessInstanceNotFound)
	}
	out := h.HistoricProcessInstance
	return &out, nil
}

// Variables returns a deep copy of the instance variables, from history once it ended.
func (e *Engine) Variables(ctx context.Context, processInstanceID string) (domain.Variables, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if inst, ok := e.instances[processInstanceID]; ok {
		return cloneVars(inst.vars), nil
	}
	if h, ok := e.history[processInstanceID]; ok {
		return cloneVars(h.vars), nil
	}
	return nil, fmt.Errorf("%s: %w", processInstanceID, domain.ErrProcessInstanceNotFound)
}

func (e *Engine) SetVariables(ctx context.Context, processInstanceID string, vars domain.Variables) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	inst, ok := e.instances[processInstanceID]
	if !ok {
		return fmt.Errorf("%s: %w", processInstanceID, domain.ErrProcessInstanceNotFound)
	}
	inst.vars.Merge(cloneVars(vars))
	return nil
}

// ActiveTasks lists open tasks in creation order. An unknown instance has none.
func (e *Engine) ActiveTasks(ctx context.Context, processInstanceID string) ([]domain.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var open []*task
	for _, t := range e.tasks {
		if t.ProcessInstanceID == processInstanceID {
			open = append(open, t)
		}
	}
	sort.Slice(open, func(i, j int) bool { return open[i].seq < open[j].seq })

	out := make([]domain.Task, len(open))
	for i, t := range open {
		out[i] = copyTask(t)
	}
	return out, nil
}

func (e *Engine) Task(ctx context.Context, taskID string) (*domain.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, ok := e.tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", taskID, domain.ErrTaskNotFound)
	}
	out := copyTask(t)
	return &out, nil
}

// UpdateTask applies the update; a new assignee fires the assignment event.
func (e *Engine) UpdateTask(ctx context.Context, taskID string, update domain.TaskUpdate) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, ok := e.tasks[taskID]
	if !ok {
		return fmt.Errorf("%s: %w", taskID, domain.ErrTaskNotFound)
	}
	if update.DueDate != nil {
		due := *update.DueDate
		t.DueDate = &due
	}
	if update.Assignee != nil && *update.Assignee != t.Assignee {
		t.Assignee = *update.Assignee
		e.emitTask(ctx, domain.TaskEventAssignment, t)
	}
	return nil
}

// CompleteTask merges vars into the instance and resumes the walk after the task.
func (e *Engine) CompleteTask(ctx context.Context, taskID string, vars domain.Variables) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, ok := e.tasks[taskID]
	if !ok {
		return fmt.Errorf("%s: %w", taskID, domain.ErrTaskNotFound)
	}
	inst := t.inst
	inst.vars.Merge(cloneVars(vars))

	e.emitTask(ctx, domain.TaskEventComplete, t)
	delete(e.tasks, taskID)

	node, _ := inst.def.process.Node(t.TaskDefinitionKey)
	return e.leave(ctx, inst, node)
}

// DeleteProcessInstance cancels open tasks and terminates the instance.
func (e *Engine) DeleteProcessInstance(ctx context.Context, id, reason string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	inst, ok := e.instances[id]
	if !ok {
		return fmt.Errorf("%s: %w", id, domain.ErrProcessInstanceNotFound)
	}

	var open []*task
	for _, t := range e.tasks {
		if t.inst == inst {
			open = append(open, t)
		}
	}
	sort.Slice(open, func(i, j int) bool { return open[i].seq < open[j].seq })

	lastActivity, lastName := "", ""
	for _, t := range open {
		t.deleteReason = reason
		e.emitTask(ctx, domain.TaskEventDelete, t)
		delete(e.tasks, t.ID)
		e.emitExecution(ctx, domain.ExecutionEventEnd, inst, t.TaskDefinitionKey, t.Name, "")
		lastActivity, lastName = t.TaskDefinitionKey, t.Name
	}
	e.finish(ctx, inst, lastActivity, lastName, domain.HistoricStateExternallyTerminated, reason)
	return nil
}

// run walks from nodeID until the instance waits on a user task or ends.
// A walk that exceeds its step budget terminates the instance with ErrStepLimit.
func (e *Engine) run(ctx context.Context, inst *instance, nodeID string) error {
	limit := stepsPerNode * len(inst.def.process.Nodes)
	for steps := 0; ; steps++ {
		if steps >= limit {
			e.logger.Error("walk exceeded step limit", "process_instance_id", inst.id, "node_id", nodeID, "steps", steps)
			e.finish(ctx, inst, nodeID, "", domain.HistoricStateInternallyTerminated, ErrStepLimit.Error())
			return fmt.Errorf("process instance %s: %w", inst.id, ErrStepLimit)
		}

		node, ok := inst.def.process.Node(nodeID)
		if !ok {
			e.logger.Error("flow targets unknown node", "process_instance_id", inst.id, "node_id", nodeID)
			e.finish(ctx, inst, "", "", domain.HistoricStateCompleted, "")
			return nil
		}

		e.emitExecution(ctx, domain.ExecutionEventStart, inst, node.ID, node.Name, "")

		switch node.Kind {
		case bpmn.KindUserTask:
			e.createTask(ctx, inst, node)
			return nil
		case bpmn.KindEndEvent:
			e.emitExecution(ctx, domain.ExecutionEventEnd, inst, node.ID, node.Name, "")
			e.finish(ctx, inst, node.ID, node.Name, domain.HistoricStateCompleted, "")
			return nil
		}

		next, ok := e.leaveNode(ctx, inst, node)
		if !ok {
			return nil
		}
		nodeID = next
	}
}

// leave ends a waiting node and continues the walk.
func (e *Engine) leave(ctx context.Context, inst *instance, node bpmn.Node) error {
	if next, ok := e.leaveNode(ctx, inst, node); ok {
		return e.run(ctx, inst, next)
	}
	return nil
}

// leaveNode emits the end and take events of node and returns the next node.
// A node without outgoing flows ends the instance.
func (e *Engine) leaveNode(ctx context.Context, inst *instance, node bpmn.Node) (string, bool) {
	e.emitExecution(ctx, domain.ExecutionEventEnd, inst, node.ID, node.Name, "")

	flow, ok := e.choose(inst, node)
	if !ok {
		e.finish(ctx, inst, node.ID, node.Name, domain.HistoricStateCompleted, "")
		return "", false
	}
	e.emitExecution(ctx, domain.ExecutionEventTake, inst, node.ID, node.Name, flow.ID)
	return flow.TargetRef, true
}

// choose picks the first conditional flow that holds, then the default flow, then the first flow.
func (e *Engine) choose(inst *instance, node bpmn.Node) (bpmn.SequenceFlow, bool) {
	outs := inst.def.process.Outgoing(node.ID)
	if len(outs) == 0 {
		return bpmn.SequenceFlow{}, false
	}

	var fallback *bpmn.SequenceFlow
	for i := range outs {
		f := outs[i]
		if f.ID == node.DefaultFlow {
			fallback = &outs[i]
			continue
		}
		if f.Condition == "" {
			if node.Kind != bpmn.KindExclusiveGateway {
				return f, true
			}
			continue
		}
		ok, err := bpmn.EvaluateCondition(f.Condition, inst.vars)
		if err != nil {
			e.logger.Warn("cannot evaluate condition", "flow_id", f.ID, "condition", f.Condition, "error", err)
			continue
		}
		if ok {
			return f, true
		}
	}
	if fallback != nil {
		return *fallback, true
	}
	return outs[0], true
}

func (e *Engine) createTask(ctx context.Context, inst *instance, node bpmn.Node) {
	e.taskSeq++
	t := &task{
		Task: domain.Task{
			ID:                  uuid.NewString(),
			Name:                node.Name,
			Assignee:            resolveAssignee(node.Assignee, inst.vars),
			CreateTime:          e.clock.Now(),
			Priority:            node.Priority,
			ProcessInstanceID:   inst.id,
			ProcessDefinitionID: inst.def.ID,
			TaskDefinitionKey:   node.ID,
		},
		seq:  e.taskSeq,
		inst: inst,
	}
	e.tasks[t.ID] = t

	e.emitTask(ctx, domain.TaskEventCreate, t)
	if t.Assignee != "" {
		e.emitTask(ctx, domain.TaskEventAssignment, t)
	}
}

// finish moves an instance to history after the process end event.
func (e *Engine) finish(ctx context.Context, inst *instance, activityID, activityName, state, reason string) {
	e.emitProcess(ctx, domain.ProcessEventEnd, inst, activityID, activityName)

	delete(e.instances, inst.id)
	h := e.history[inst.id]
	end := e.clock.Now()
	dur := end.Sub(h.StartTime).Milliseconds()
	h.EndTime = &end
	h.DurationInMillis = &dur
	h.State = state
	h.DeleteReason = reason
	h.vars = inst.vars
}

func (e *Engine) emitTask(ctx context.Context, name string, t *task) {
	if e.hooks.OnTaskEvent == nil {
		return
	}
	e.hooks.OnTaskEvent(ctx, domain.NewTaskEvent(name, &taskHandle{t: t}, e.clock.Now()))
}

func (e *Engine) emitExecution(ctx context.Context, name string, inst *instance, activityID, activityName, transitionID string) {
	if e.hooks.OnExecutionEvent == nil {
		return
	}
	h := &executionHandle{inst: inst, activityID: activityID, activityName: activityName, transitionID: transitionID}
	e.hooks.OnExecutionEvent(ctx, domain.NewExecutionEvent(name, h, e.clock.Now()))
}

func (e *Engine) emitProcess(ctx context.Context, name string, inst *instance, activityID, activityName string) {
	if e.hooks.OnProcessInstanceEvent == nil {
		return
	}
	h := &executionHandle{inst: inst, activityID: activityID, activityName: activityName}
	e.hooks.OnProcessInstanceEvent(ctx, domain.NewProcessInstanceEvent(name, inst.def.Key, h, e.clock.Now()))
}

var assigneeExpr = regexp.MustCompile(`^\$\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}$`)

// resolveAssignee supports literal assignees and ${variable} references.
func resolveAssignee(raw string, vars domain.Variables) string {
	m := assigneeExpr.FindStringSubmatch(raw)
	if m == nil {
		return raw
	}
	if s, ok := vars[m[1]].(string); ok {
		return s
	}
	return ""
}

func cloneVars(v domain.Variables) domain.Variables {
	if v == nil {
		return domain.Variables{}
	}
	return deepcopy.Copy(v).(domain.Variables)
}

func copyTask(t *task) domain.Task {
	out := t.Task
	if t.DueDate != nil {
		due := *t.DueDate
		out.DueDate = &due
	}
	return out
}

// taskHandle is the DelegateTask passed to hooks. It writes straight into the engine state.
type taskHandle struct {
	t *task
}

func (h *taskHandle) Variable(name string) (any, bool) {
	v, ok := h.t.inst.vars[name]
	return v, ok
}

func (h *taskHandle) SetVariable(name string, value any) { h.t.inst.vars[name] = value }
func (h *taskHandle) ID() string                         { return h.t.ID }
func (h *taskHandle) Name() string                       { return h.t.Name }
func (h *taskHandle) Assignee() string                   { return h.t.Assignee }
func (h *taskHandle) SetAssignee(assignee string)        { h.t.Assignee = assignee }
func (h *taskHandle) ProcessInstanceID() string          { return h.t.ProcessInstanceID }
func (h *taskHandle) DeleteReason() string               { return h.t.deleteReason }

func (h *taskHandle) DueDate() *time.Time {
	if h.t.DueDate == nil {
		return nil
	}
	due := *h.t.DueDate
	return &due
}

func (h *taskHandle) SetDueDate(due time.Time) { h.t.DueDate = &due }

// executionHandle is the DelegateExecution passed to hooks.
type executionHandle struct {
	inst         *instance
	activityID   string
	activityName string
	transitionID string
}

func (h *executionHandle) Variable(name string) (any, bool) {
	v, ok := h.inst.vars[name]
	return v, ok
}

func (h *executionHandle) SetVariable(name string, value any) { h.inst.vars[name] = value }
func (h *executionHandle) ProcessInstanceID() string          { return h.inst.id }
func (h *executionHandle) ProcessDefinitionID() string        { return h.inst.def.ID }
func (h *executionHandle) CurrentActivityID() string          { return h.activityID }
func (h *executionHandle) CurrentActivityName() string        { return h.activityName }
func (h *executionHandle) CurrentTransitionID() string        { return h.transitionID }
