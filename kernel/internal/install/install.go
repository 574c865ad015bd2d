// Package install writes the kernel spec that lets Jupyter frontends launch the kernel.
package install

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/Scusemua/go-utils/config"
	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
)

const (
	KernelSpecFile = "kernel.json"

	// ConnectionFilePlaceholder is replaced by the frontend with the path of the connection file.
	ConnectionFilePlaceholder = "{connection_file}"

	JupyterDataDirEnv = "JUPYTER_DATA_DIR"
)

type InterruptMode string

const (
	InterruptModeSignal  InterruptMode = "signal"
	InterruptModeMessage InterruptMode = "message"
)

var (
	ErrEmptyKernelName = errors.New("kernel name must not be empty")

	log = config.GetLogger("Install ")

	// runCommand runs an external command and returns its combined output.
	runCommand = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return exec.CommandContext(ctx, name, args...).CombinedOutput()
	}
)

// KernelSpec is the content of kernel.json.
type KernelSpec struct {
	Argv        []string `json:"argv"`
	DisplayName string   `json:"display_name"`
	Language    string   `json:"language"`

	// InterruptMode is omitted when empty, in which case frontends interrupt with a signal.
	InterruptMode InterruptMode `json:"interrupt_mode,omitempty"`
}

// NewKernelSpec returns the kernel spec of a kernel launched as "<executable> run --connection-file {connection_file}".
func NewKernelSpec(executable string, displayName string, language string) *KernelSpec {
	return &KernelSpec{
		Argv:        []string{executable, "run", "--connection-file", ConnectionFilePlaceholder},
		DisplayName: displayName,
		Language:    language,
	}
}

// WriteTo writes the kernel spec to dir/kernel.json, creating dir if needed, and returns the path of the file.
func (spec *KernelSpec) WriteTo(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrapf(err, "failed to create kernel directory %s", dir)
	}

	data, err := json.MarshalIndent(spec, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "failed to encode kernel spec")
	}

	path := filepath.Join(dir, KernelSpecFile)
	if err = os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.Wrapf(err, "failed to write %s", path)
	}

	return path, nil
}

// DefaultDataDir returns the per-user Jupyter data directory. JUPYTER_DATA_DIR takes precedence over
// the platform default.
func DefaultDataDir() (string, error) {
	if dir := os.Getenv(JupyterDataDirEnv); dir != "" {
		return dir, nil
	}

	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "jupyter"), nil
		}
	}

	home, err := homedir.Dir()
	if err != nil {
		return "", errors.Wrap(err, "failed to determine the home directory")
	}

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Jupyter"), nil
	case "windows":
		return filepath.Join(home, "AppData", "Roaming", "jupyter"), nil
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, "jupyter"), nil
		}
		return filepath.Join(home, ".local", "share", "jupyter"), nil
	}
}

// Options describes a kernel spec installation.
type Options struct {
	KernelName  string
	DisplayName string
	Language    string

	// Executable is the kernel binary. The running executable is used if empty.
	Executable string

	// DataDir is the Jupyter data directory. DefaultDataDir is used if empty. Ignored when UseJupyter is set.
	DataDir string

	// UseJupyter installs through "jupyter kernelspec install --user" instead of writing the kernel spec directly.
	UseJupyter bool
}

// Install installs the kernel spec and returns the path of the written kernel.json.
// When UseJupyter is set, the returned path is the staging file handed to jupyter.
func Install(ctx context.Context, opts Options) (string, error) {
	if opts.KernelName == "" {
		return "", ErrEmptyKernelName
	}

	executable := opts.Executable
	if executable == "" {
		var err error
		if executable, err = os.Executable(); err != nil {
			return "", errors.Wrap(err, "failed to get the current executable path")
		}
	}

	spec := NewKernelSpec(executable, opts.DisplayName, opts.Language)

	if opts.UseJupyter {
		return installWithJupyter(ctx, spec, opts.KernelName)
	}

	dataDir := opts.DataDir
	if dataDir == "" {
		var err error
		if dataDir, err = DefaultDataDir(); err != nil {
			return "", err
		}
	}

	path, err := spec.WriteTo(filepath.Join(dataDir, "kernels", opts.KernelName))
	if err != nil {
		return "", err
	}

	log.Info("Installed kernel spec \"%s\" at %s.", opts.KernelName, path)
	return path, nil
}

func installWithJupyter(ctx context.Context, spec *KernelSpec, kernelName string) (string, error) {
	staging, err := os.MkdirTemp("", "kernelspec-")
	if err != nil {
		return "", errors.Wrap(err, "failed to create staging directory")
	}
	defer func() {
		_ = os.RemoveAll(staging)
	}()

	dir := filepath.Join(staging, kernelName)
	path, err := spec.WriteTo(dir)
	if err != nil {
		return "", err
	}

	output, err := runCommand(ctx, "jupyter", "kernelspec", "install", "--user", "--name", kernelName, dir)
	if err != nil {
		log.Error("jupyter kernelspec install failed: %s", string(output))
		return "", errors.Wrap(err, "jupyter kernelspec installation failed (is jupyter on the PATH?)")
	}

	log.Info("Installed kernel spec \"%s\" with jupyter: %s", kernelName, string(output))
	return path, nil
}
