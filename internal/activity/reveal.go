package activity

import (
	"os/exec"
	"runtime"

	"go.uber.org/zap"
)

// Revealer asks the desktop to show a directory. Failures are logged only.
type Revealer interface {
	Reveal(dir string)
}

// LogRevealer only logs the directory, for headless runs.
type LogRevealer struct {
	Log *zap.Logger
}

func (r LogRevealer) Reveal(dir string) {
	if r.Log != nil {
		r.Log.Info("output ready", zap.String("dir", dir))
	}
}

// CommandRevealer opens the directory with the platform file manager.
type CommandRevealer struct {
	Log *zap.Logger
	// start is swapped in tests.
	start func(name string, args ...string) error
}

func NewCommandRevealer(log *zap.Logger) *CommandRevealer {
	if log == nil {
		log = zap.NewNop()
	}
	return &CommandRevealer{Log: log, start: startDetached}
}

func (r *CommandRevealer) Reveal(dir string) {
	name := openCommand(runtime.GOOS)
	if err := r.start(name, dir); err != nil {
		r.Log.Warn("could not open output directory", zap.String("dir", dir), zap.String("cmd", name), zap.Error(err))
	}
}

func openCommand(goos string) string {
	switch goos {
	case "darwin":
		return "open"
	case "windows":
		return "explorer"
	default:
		return "xdg-open"
	}
}

func startDetached(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() { _ = cmd.Wait() }()
	return nil
}
