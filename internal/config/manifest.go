package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/me/tickos/internal/cpu"
	"github.com/me/tickos/internal/logging"
	"github.com/me/tickos/pkg/model"
)

// Reserved task names. The board registers these itself.
const (
	IdleTaskName    = "idle"
	MonitorTaskName = "monitor"
)

// DefaultTaskStack is used for tasks that do not set a stack size.
const DefaultTaskStack Size = 512

// Size is a byte count written either as an integer or in humanized form
// ("2KiB", "16 kB").
type Size uint32

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *Size) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: size must be a scalar", value.Line)
	}
	n, err := humanize.ParseBytes(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	if n > 1<<32-1 {
		return fmt.Errorf("line %d: size %s exceeds the 32-bit address space", value.Line, value.Value)
	}
	*s = Size(n)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (s Size) MarshalYAML() (any, error) {
	return uint64(s), nil
}

// String renders the size in IEC units.
func (s Size) String() string { return humanize.IBytes(uint64(s)) }

// Manifest describes one firmware image: the board, the kernel limits and
// the task set.
type Manifest struct {
	Name       string          `yaml:"name"`
	Board      BoardSpec       `yaml:"board"`
	Kernel     KernelSpec      `yaml:"kernel"`
	Log        LogSpec         `yaml:"log"`
	Mutexes    []string        `yaml:"mutexes,omitempty"`
	Semaphores []SemaphoreSpec `yaml:"semaphores,omitempty"`
	Tasks      []TaskSpec      `yaml:"tasks"`
}

// BoardSpec configures the simulated part.
type BoardSpec struct {
	FPU      string        `yaml:"fpu"`
	Pool     Size          `yaml:"pool"`
	Tick     time.Duration `yaml:"tick"`
	Realtime bool          `yaml:"realtime"`
}

// KernelSpec configures kernel limits and the monitor task.
type KernelSpec struct {
	MaxTasks         int    `yaml:"max_tasks"`
	LockTimeout      uint32 `yaml:"lock_timeout"`
	StarvationWindow uint32 `yaml:"starvation_window"`
	MonitorInterval  uint32 `yaml:"monitor_interval"`
	MonitorStack     Size   `yaml:"monitor_stack"`
}

// LogSpec configures logging for a run.
type LogSpec struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SemaphoreSpec declares a named binary semaphore.
type SemaphoreSpec struct {
	Name  string `yaml:"name"`
	Given bool   `yaml:"given"`
}

// TaskSpec declares one task. Script is the JavaScript body run on each
// activation.
type TaskSpec struct {
	Name     string `yaml:"name"`
	Policy   string `yaml:"policy"`
	Period   uint32 `yaml:"period,omitempty"`
	Priority uint8  `yaml:"priority,omitempty"`
	Stack    Size   `yaml:"stack"`
	Script   string `yaml:"script"`
}

// DefaultManifest returns a manifest holding every default and no tasks.
func DefaultManifest() Manifest {
	return Manifest{
		Name: "firmware",
		Board: BoardSpec{
			FPU:  "none",
			Pool: 16 * 1024,
			Tick: time.Millisecond,
		},
		Kernel: KernelSpec{
			MaxTasks:         8,
			LockTimeout:      1000,
			StarvationWindow: 500,
			MonitorInterval:  100,
			MonitorStack:     512,
		},
		Log: LogSpec{Level: "info", Format: "text"},
	}
}

// Load reads and validates a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Parse decodes a manifest over the defaults and validates it. Unknown keys
// are rejected.
func Parse(data []byte) (*Manifest, error) {
	m := DefaultManifest()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty manifest")
		}
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	m.applyDefaults()
	if apiErr := m.Validate(); apiErr != nil {
		return nil, apiErr
	}
	return &m, nil
}

func (m *Manifest) applyDefaults() {
	for i := range m.Tasks {
		if m.Tasks[i].Stack == 0 {
			m.Tasks[i].Stack = DefaultTaskStack
		}
	}
}

// Marshal renders the manifest as YAML.
func (m *Manifest) Marshal() ([]byte, error) {
	return yaml.Marshal(m)
}

// FPU returns the parsed FPU configuration.
func (m *Manifest) FPU() cpu.FPU {
	f, _ := cpu.ParseFPU(m.Board.FPU)
	return f
}

// Validate checks the manifest and reports every problem found.
// Returns nil if valid, or an *model.APIError with FieldError details.
func (m *Manifest) Validate() *model.APIError {
	var errs []model.FieldError

	errs = append(errs, m.validateBoard()...)
	errs = append(errs, m.validateKernel()...)
	errs = append(errs, m.validateLog()...)
	errs = append(errs, m.validateSync()...)
	errs = append(errs, m.validateTasks()...)
	errs = append(errs, m.validateBudget()...)

	if len(errs) == 0 {
		return nil
	}
	return model.NewValidationError("manifest validation failed", errs...)
}

func (m *Manifest) validateBoard() []model.FieldError {
	var errs []model.FieldError
	if strings.TrimSpace(m.Name) == "" {
		errs = append(errs, model.FieldError{Field: "name", Message: "name is required"})
	}
	if _, err := cpu.ParseFPU(m.Board.FPU); err != nil {
		errs = append(errs, model.FieldError{Field: "board.fpu", Message: err.Error()})
	}
	if m.Board.Pool == 0 {
		errs = append(errs, model.FieldError{Field: "board.pool", Message: "stack pool size must be positive"})
	}
	if m.Board.Tick <= 0 {
		errs = append(errs, model.FieldError{Field: "board.tick", Message: "tick period must be positive"})
	}
	return errs
}

func (m *Manifest) validateKernel() []model.FieldError {
	var errs []model.FieldError
	if m.Kernel.MaxTasks < 2 || m.Kernel.MaxTasks >= int(model.NoTask) {
		errs = append(errs, model.FieldError{
			Field:   "kernel.max_tasks",
			Message: fmt.Sprintf("max_tasks must be between 2 and %d", int(model.NoTask)-1),
		})
	}
	if m.Kernel.MonitorInterval > 0 && uint32(m.Kernel.MonitorStack) < m.FPU().MinStackSize() {
		errs = append(errs, model.FieldError{
			Field:   "kernel.monitor_stack",
			Message: fmt.Sprintf("monitor stack %d is below the %d-byte minimum", m.Kernel.MonitorStack, m.FPU().MinStackSize()),
		})
	}
	return errs
}

func (m *Manifest) validateLog() []model.FieldError {
	var errs []model.FieldError
	if _, err := logging.ParseLevel(m.Log.Level); err != nil {
		errs = append(errs, model.FieldError{Field: "log.level", Message: err.Error()})
	}
	if !logging.ValidFormat(m.Log.Format) {
		errs = append(errs, model.FieldError{Field: "log.format", Message: fmt.Sprintf("unknown log format %q", m.Log.Format)})
	}
	return errs
}

func (m *Manifest) validateSync() []model.FieldError {
	var errs []model.FieldError
	seen := make(map[string]bool)
	for i, name := range m.Mutexes {
		field := fmt.Sprintf("mutexes[%d]", i)
		switch {
		case name == "":
			errs = append(errs, model.FieldError{Field: field, Message: "mutex name is required"})
		case seen["m:"+name]:
			errs = append(errs, model.FieldError{Field: field, Message: fmt.Sprintf("duplicate mutex %q", name)})
		}
		seen["m:"+name] = true
	}
	for i, s := range m.Semaphores {
		field := fmt.Sprintf("semaphores[%d].name", i)
		switch {
		case s.Name == "":
			errs = append(errs, model.FieldError{Field: field, Message: "semaphore name is required"})
		case seen["s:"+s.Name]:
			errs = append(errs, model.FieldError{Field: field, Message: fmt.Sprintf("duplicate semaphore %q", s.Name)})
		}
		seen["s:"+s.Name] = true
	}
	return errs
}

func (m *Manifest) validateTasks() []model.FieldError {
	var errs []model.FieldError
	if len(m.Tasks) == 0 {
		return []model.FieldError{{Field: "tasks", Message: "at least one task is required"}}
	}
	minStack := m.FPU().MinStackSize()
	seen := make(map[string]bool)
	for i, t := range m.Tasks {
		prefix := fmt.Sprintf("tasks[%d]", i)
		switch {
		case t.Name == "":
			errs = append(errs, model.FieldError{Field: prefix + ".name", Message: "task name is required"})
		case t.Name == IdleTaskName || t.Name == MonitorTaskName:
			errs = append(errs, model.FieldError{Field: prefix + ".name", Message: fmt.Sprintf("task name %q is reserved", t.Name)})
		case seen[t.Name]:
			errs = append(errs, model.FieldError{Field: prefix + ".name", Message: fmt.Sprintf("duplicate task %q", t.Name)})
		}
		seen[t.Name] = true

		p, err := model.ParsePolicy(t.Policy)
		if err != nil {
			errs = append(errs, model.FieldError{Field: prefix + ".policy", Message: err.Error()})
		} else if p.IsPeriodic() && t.Period == 0 {
			errs = append(errs, model.FieldError{Field: prefix + ".period", Message: "periodic tasks need a period"})
		}
		if uint32(t.Stack) < minStack {
			errs = append(errs, model.FieldError{
				Field:   prefix + ".stack",
				Message: fmt.Sprintf("stack %d is below the %d-byte minimum for FPU %s", t.Stack, minStack, m.FPU()),
			})
		}
		if strings.TrimSpace(t.Script) == "" {
			errs = append(errs, model.FieldError{Field: prefix + ".script", Message: "script body is required"})
		}
	}
	return errs
}

// validateBudget checks that the task set fits the table and the pool once
// the board has added its own tasks.
func (m *Manifest) validateBudget() []model.FieldError {
	var errs []model.FieldError
	slots := len(m.Tasks) + 1
	need := uint64(m.FPU().MinStackSize())
	if m.Kernel.MonitorInterval > 0 {
		slots++
		need += align8(uint64(m.Kernel.MonitorStack))
	}
	for _, t := range m.Tasks {
		need += align8(uint64(t.Stack))
	}
	if m.Kernel.MaxTasks >= 2 && slots > m.Kernel.MaxTasks {
		errs = append(errs, model.FieldError{
			Field:   "tasks",
			Message: fmt.Sprintf("%d tasks plus board tasks need %d slots; max_tasks is %d", len(m.Tasks), slots, m.Kernel.MaxTasks),
		})
	}
	if m.Board.Pool > 0 && need > uint64(m.Board.Pool) {
		errs = append(errs, model.FieldError{
			Field:   "board.pool",
			Message: fmt.Sprintf("stacks need %s; pool is %s", humanize.IBytes(need), m.Board.Pool),
		})
	}
	return errs
}

func align8(n uint64) uint64 { return (n + 7) &^ 7 }
