// Package firmware assembles a board from a manifest: it configures the
// core and kernel, declares the sync objects and compiles each task script.
package firmware

import (
	"fmt"
	"log/slog"

	"github.com/me/tickos/internal/board"
	"github.com/me/tickos/internal/config"
	"github.com/me/tickos/internal/script"
	"github.com/me/tickos/pkg/model"
)

// Firmware is a board built from a manifest, ready to boot.
type Firmware struct {
	Manifest *config.Manifest
	Board    *board.Board
	Env      *script.Env
	Tasks    []model.TaskID
}

// BoardConfig translates the manifest into a board configuration.
func BoardConfig(m *config.Manifest) board.Config {
	cfg := board.DefaultConfig()
	cfg.FPU = m.FPU()
	cfg.PoolSize = uint32(m.Board.Pool)
	cfg.Tick = m.Board.Tick
	cfg.Realtime = m.Board.Realtime
	cfg.MonitorInterval = m.Kernel.MonitorInterval
	cfg.MonitorStack = uint32(m.Kernel.MonitorStack)
	cfg.Kernel.MaxTasks = m.Kernel.MaxTasks
	cfg.Kernel.LockTimeout = m.Kernel.LockTimeout
	cfg.Kernel.StarvationWindow = m.Kernel.StarvationWindow
	return cfg
}

// Build creates the board and registers every manifest task. The caller
// boots it and must Close it.
func Build(m *config.Manifest, logger *slog.Logger) (*Firmware, error) {
	b, err := board.New(BoardConfig(m), logger)
	if err != nil {
		return nil, fmt.Errorf("create board: %w", err)
	}
	fw := &Firmware{Manifest: m, Board: b, Env: script.NewEnv(b.Kernel())}
	for _, name := range m.Mutexes {
		fw.Env.AddMutex(name)
	}
	for _, s := range m.Semaphores {
		fw.Env.AddSemaphore(s.Name, s.Given)
	}

	for _, t := range m.Tasks {
		id, err := fw.addTask(t)
		if err != nil {
			b.Close()
			return nil, err
		}
		fw.Tasks = append(fw.Tasks, id)
	}
	logger.Info("firmware built", "name", m.Name, "fpu", m.FPU(), "tasks", len(fw.Tasks))
	return fw, nil
}

func (fw *Firmware) addTask(t config.TaskSpec) (model.TaskID, error) {
	policy, err := model.ParsePolicy(t.Policy)
	if err != nil {
		return model.NoTask, fmt.Errorf("task %s: %w", t.Name, err)
	}
	body, err := script.Compile(t.Name, t.Script, fw.Env)
	if err != nil {
		return model.NoTask, err
	}
	id, err := fw.Board.AddTask(board.TaskConfig{
		Name:      t.Name,
		Policy:    policy,
		Period:    t.Period,
		Priority:  t.Priority,
		StackSize: uint32(t.Stack),
	}, body)
	if err != nil {
		return model.NoTask, fmt.Errorf("task %s: %w", t.Name, err)
	}
	return id, nil
}

// Boot starts the scheduler.
func (fw *Firmware) Boot() error { return fw.Board.Boot() }

// Close stops the task threads.
func (fw *Firmware) Close() { fw.Board.Close() }
