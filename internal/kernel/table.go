package kernel

import (
	"fmt"

	"github.com/me/tickos/internal/frame"
	"github.com/me/tickos/pkg/model"
)

// TaskSpec describes a task to register. Period applies to the periodic
// policies, Priority to OPPORTUNISTIC.
type TaskSpec struct {
	Name      string
	Entry     uint32
	Arg       uint32
	Policy    model.Policy
	Period    uint32
	Priority  uint8
	StackSize uint32
}

// Register adds a task to the table, carving its stack from the pool and
// writing its initial frame. One slot is kept for the idle task. On failure
// it returns NoTask and a *model.KernelError.
func (k *Kernel) Register(spec TaskSpec) (model.TaskID, error) {
	s := k.enter()
	defer k.exit(s)
	if !k.started && len(k.tasks) >= k.config.MaxTasks-1 {
		return model.NoTask, model.NewKernelError(model.ErrTableFull, model.NoTask,
			"%d of %d slots used, one kept for idle", len(k.tasks), k.config.MaxTasks)
	}
	return k.register(spec)
}

func (k *Kernel) register(spec TaskSpec) (model.TaskID, error) {
	if k.started {
		return model.NoTask, model.NewKernelError(model.ErrAlreadyStarted, model.NoTask,
			"cannot register %q after start", spec.Name)
	}
	if len(k.tasks) >= k.config.MaxTasks {
		return model.NoTask, model.NewKernelError(model.ErrTableFull, model.NoTask,
			"table holds %d tasks", k.config.MaxTasks)
	}
	if !spec.Policy.Valid() {
		return model.NoTask, model.NewKernelError(model.ErrInvalidPolicy, model.NoTask,
			"task %q: unknown policy %q", spec.Name, spec.Policy)
	}
	if spec.Policy.IsPeriodic() && spec.Period == 0 {
		return model.NoTask, model.NewKernelError(model.ErrInvalidPolicy, model.NoTask,
			"task %q: %s needs a period", spec.Name, spec.Policy)
	}
	fpu := k.core.FPU()
	if need := fpu.MinStackSize(); spec.StackSize < need {
		return model.NoTask, model.NewKernelError(model.ErrStackTooSmall, model.NoTask,
			"task %q: stack %d bytes, minimum %d for FPU %s", spec.Name, spec.StackSize, need, fpu)
	}

	region, err := k.pool.Alloc(spec.StackSize)
	if err != nil {
		return model.NoTask, fmt.Errorf("task %q: %w", spec.Name, err)
	}
	sp, err := frame.Build(k.core.Mem, region, spec.Entry, spec.Arg, fpu)
	if err != nil {
		return model.NoTask, fmt.Errorf("task %q: %w", spec.Name, err)
	}

	id := model.TaskID(len(k.tasks))
	t := TCB{
		ID:      id,
		Name:    spec.Name,
		Policy:  spec.Policy,
		Entry:   spec.Entry,
		Arg:     spec.Arg,
		Stack:   region,
		SavedSP: sp,
	}
	// Event tasks start inactive and first run on Wake.
	switch spec.Policy {
	case model.PolicyPeriodicCatchup, model.PolicyPeriodicSkip:
		t.Period = spec.Period
		t.PeriodCountdown = spec.Period
	case model.PolicyOpportunistic:
		t.Priority = spec.Priority
	}
	if t.Name == "" {
		t.Name = fmt.Sprintf("task%d", id)
	}
	k.tasks = append(k.tasks, t)

	k.logger.Info("task registered",
		"task", t.Name,
		"id", id,
		"policy", t.Policy,
		"period", t.Period,
		"priority", t.Priority,
		"stack", region.String(),
	)
	return id, nil
}

// Wake sets the active flag of an EVENT_DRIVEN task. Other tasks and unknown
// ids are ignored.
func (k *Kernel) Wake(id model.TaskID) {
	s := k.enter()
	defer k.exit(s)
	if t := k.slot(id); t != nil && t.Policy == model.PolicyEventDriven {
		t.Active = true
	}
}

// SetPriority changes the priority of an OPPORTUNISTIC task. Other tasks and
// unknown ids are ignored.
func (k *Kernel) SetPriority(id model.TaskID, priority uint8) {
	s := k.enter()
	defer k.exit(s)
	if t := k.slot(id); t != nil && t.Policy == model.PolicyOpportunistic {
		t.Priority = priority
	}
}

// Task returns a copy of one table slot.
func (k *Kernel) Task(id model.TaskID) (TCB, bool) {
	s := k.enter()
	defer k.exit(s)
	if t := k.slot(id); t != nil {
		return *t, true
	}
	return TCB{}, false
}

// Tasks returns a copy of the table in registration order.
func (k *Kernel) Tasks() []TCB {
	s := k.enter()
	defer k.exit(s)
	out := make([]TCB, len(k.tasks))
	copy(out, k.tasks)
	return out
}

// Lookup finds a task by name.
func (k *Kernel) Lookup(name string) (model.TaskID, bool) {
	s := k.enter()
	defer k.exit(s)
	for i := range k.tasks {
		if k.tasks[i].Name == name {
			return k.tasks[i].ID, true
		}
	}
	return model.NoTask, false
}

// Idle returns the id of the idle task, or NoTask before start.
func (k *Kernel) Idle() model.TaskID { return k.idle }

func (k *Kernel) slot(id model.TaskID) *TCB {
	if int(id) >= len(k.tasks) {
		return nil
	}
	return &k.tasks[id]
}
