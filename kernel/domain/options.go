package domain

import (
	"errors"
	"fmt"

	"github.com/Scusemua/go-utils/config"
	"github.com/scusemua/notebook-kernel/common/execution"
)

const (
	DefaultKernelName  = "stack"
	DefaultDisplayName = "Stack"
)

var (
	ErrMissingConnectionFile = errors.New("the \"connection-file\" option is required")
	ErrInvalidPrometheusPort = errors.New("invalid prometheus port")
)

// KernelOptions configures the kernel process. Options are read from command-line flags, and
// optionally from a YAML file given by the "yaml" flag.
type KernelOptions struct {
	config.LoggerOptions `yaml:",inline" json:"logger_options"`

	// ConnectionFile is the path of the connection file written by the frontend. Required by "run".
	ConnectionFile string `name:"connection-file" description:"Path to the kernel's connection file." yaml:"connection-file" json:"connection_file"`
	LogFile        string `name:"log-file" description:"Write logs to this file instead of stdout." yaml:"log-file" json:"log_file"`

	// PrometheusPort is the port of the HTTP server exposing /metrics. A value of 0 disables the server.
	PrometheusPort int `name:"prometheus-port" description:"Port on which Prometheus metrics are served. 0 disables metrics." yaml:"prometheus-port" json:"prometheus_port"`

	// Installation.
	KernelName  string `name:"kernel-name" description:"Directory name of the installed kernel spec." yaml:"kernel-name" json:"kernel_name"`
	DisplayName string `name:"display-name" description:"Name shown by frontends for the installed kernel." yaml:"display-name" json:"display_name"`
	DataDir     string `name:"data-dir" description:"Jupyter data directory to install the kernel spec into." yaml:"data-dir" json:"data_dir"`
	UseJupyter  bool   `name:"use-jupyter" description:"Install with 'jupyter kernelspec install' instead of writing the kernel spec directly." yaml:"use-jupyter" json:"use_jupyter"`

	// RequireConnectionFile is set by commands that serve a kernel.
	RequireConnectionFile bool `yaml:"-" json:"-"`
}

// Validate fills in defaults and ensures the options are usable.
func (o *KernelOptions) Validate() error {
	if o.RequireConnectionFile && o.ConnectionFile == "" {
		return ErrMissingConnectionFile
	}

	if o.PrometheusPort < 0 || o.PrometheusPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPrometheusPort, o.PrometheusPort)
	}

	if o.KernelName == "" {
		o.KernelName = DefaultKernelName
	}

	if o.DisplayName == "" {
		o.DisplayName = DefaultDisplayName
	}

	return nil
}

// Language returns the language implemented by the kernel.
func (o *KernelOptions) Language() string {
	return execution.StackLanguageName
}

func (o *KernelOptions) String() string {
	return fmt.Sprintf("KernelOptions[ConnectionFile=%s, LogFile=%s, PrometheusPort=%d, KernelName=%s, DisplayName=%s, DataDir=%s, UseJupyter=%v, Debug=%v, Verbose=%v]",
		o.ConnectionFile, o.LogFile, o.PrometheusPort, o.KernelName, o.DisplayName, o.DataDir, o.UseJupyter,
		o.Debug, o.Verbose)
}
