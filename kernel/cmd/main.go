package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Scusemua/go-utils/config"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/scusemua/notebook-kernel/common/execution"
	"github.com/scusemua/notebook-kernel/common/jupyter/kernel"
	"github.com/scusemua/notebook-kernel/common/jupyter/messaging"
	"github.com/scusemua/notebook-kernel/common/jupyter/server"
	"github.com/scusemua/notebook-kernel/common/jupyter/types"
	"github.com/scusemua/notebook-kernel/common/metrics"
	"github.com/scusemua/notebook-kernel/common/utils"
	"github.com/scusemua/notebook-kernel/kernel/domain"
	"github.com/scusemua/notebook-kernel/kernel/internal/install"
)

const (
	ServiceName    = "notebook-kernel"
	ServiceVersion = "0.1.0"
)

var (
	options      = domain.KernelOptions{}
	globalLogger = config.GetLogger("")
	sig          = make(chan os.Signal, 1)
)

func init() {
	lipgloss.SetColorProfile(termenv.ANSI256)
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           ServiceName + " [command]",
		Short:         "A Jupyter kernel for a small stack language",
		Version:       ServiceVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		&cobra.Command{
			Use:                "run --connection-file <path> [flags]",
			Short:              "Serve the kernel using the connection file written by the frontend",
			DisableFlagParsing: true,
			RunE: func(cmd *cobra.Command, args []string) error {
				options.RequireConnectionFile = true
				if ok, err := validateOptions(args); !ok || err != nil {
					return err
				}
				return run(&options)
			},
		},
		&cobra.Command{
			Use:                "install [flags]",
			Aliases:            []string{"install-kernel-spec"},
			Short:              "Install the kernel spec so that Jupyter frontends can launch the kernel",
			DisableFlagParsing: true,
			RunE: func(cmd *cobra.Command, args []string) error {
				if ok, err := validateOptions(args); !ok || err != nil {
					return err
				}
				return installKernelSpec(cmd.Context(), &options)
			},
		},
	)

	return root
}

// validateOptions parses the flags of a subcommand into the global options. It returns false
// if usage was printed instead.
func validateOptions(args []string) (bool, error) {
	flags, err := config.ValidateOptionsWithFlags(&options, args...)
	if errors.Is(err, config.ErrPrintUsage) {
		flags.PrintDefaults()
		return false, nil
	} else if err != nil {
		return false, errors.Wrap(err, "invalid options")
	}

	return true, nil
}

func run(opts *domain.KernelOptions) error {
	if opts.LogFile != "" {
		logFile, err := os.OpenFile(opts.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return errors.Wrapf(err, "failed to open log file %s", opts.LogFile)
		}
		defer logFile.Close()

		log.SetOutput(logFile)
	}

	globalLogger.Info("Starting %s with options: %s", ServiceName, opts.String())

	connectionInfo, err := types.LoadConnectionInfo(opts.ConnectionFile)
	if err != nil {
		return errors.Wrap(err, "failed to read connection file")
	}
	globalLogger.Info("Connection info: %s", connectionInfo.String())

	kernelInfo := kernel.KernelInfo{
		Implementation:        ServiceName,
		ImplementationVersion: ServiceVersion,
		Banner:                fmt.Sprintf("%s %s: a stack language kernel", ServiceName, ServiceVersion),
		LanguageInfo: messaging.LanguageInfo{
			Name:          execution.StackLanguageName,
			Version:       execution.StackLanguageVersion,
			MimeType:      "text/plain",
			FileExtension: execution.StackLanguageExtension,
		},
	}

	kernelServer, err := server.New(context.Background(), connectionInfo, execution.NewStackExecutor(), kernelInfo, func(s *server.KernelServer) {
		s.Name = ServiceName
	})
	if err != nil {
		return errors.Wrap(err, "failed to create kernel server")
	}

	if opts.PrometheusPort > 0 {
		metricsManager, err := metrics.NewKernelPrometheusManager(opts.PrometheusPort, kernelServer.Session().ID())
		if err != nil {
			return errors.Wrap(err, "failed to create metrics manager")
		}

		if err = metricsManager.Start(); err != nil {
			return errors.Wrap(err, "failed to start metrics manager")
		}
		defer func() {
			_ = metricsManager.Stop()
		}()

		kernelServer.Metrics = metricsManager
	}

	if err = kernelServer.Listen(); err != nil {
		_ = kernelServer.Close()
		return errors.Wrap(err, "failed to bind kernel sockets")
	}

	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sig)
	go func() {
		for {
			select {
			case s := <-sig:
				// Frontends send SIGINT to interrupt execution.
				if s == syscall.SIGINT {
					globalLogger.Warn(utils.OrangeStyle.Render("Received SIGINT. Interrupting execution is not supported."))
					continue
				}

				globalLogger.Warn(utils.OrangeStyle.Render("Received signal %v. Shutting down."), s)
				_ = kernelServer.Close()
				return
			case <-kernelServer.Ctx.Done():
				return
			}
		}
	}()

	if err = kernelServer.Serve(); err != nil {
		return errors.Wrap(err, "kernel server failed")
	}

	globalLogger.Info("Kernel %s exited.", kernelServer.Session().ID())
	return nil
}

func installKernelSpec(ctx context.Context, opts *domain.KernelOptions) error {
	path, err := install.Install(ctx, install.Options{
		KernelName:  opts.KernelName,
		DisplayName: opts.DisplayName,
		Language:    opts.Language(),
		DataDir:     opts.DataDir,
		UseJupyter:  opts.UseJupyter,
	})
	if err != nil {
		return errors.Wrap(err, "failed to install kernel spec")
	}

	fmt.Printf("Kernel spec installed: %s\n", path)
	return nil
}
