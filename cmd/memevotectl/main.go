// Command memevotectl administers a memevote deployment: it edits the
// allowlist, prints the meme standings and smoke-tests a running server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/timmy/memevote/internal/config"
	"github.com/timmy/memevote/internal/logger"
	"github.com/timmy/memevote/internal/repository"
)

type app struct {
	configPath string
	log        *logger.Logger
}

func main() {
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "text",
		Output:      os.Stderr,
		ServiceName: "memevotectl",
	})
	logger.SetDefaultLogger(appLogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{log: appLogger}
	if err := a.rootCommand().ExecuteContext(ctx); err != nil {
		appLogger.WithError(err).Error("Command failed")
		stop()
		os.Exit(1)
	}
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "memevotectl",
		Short:         "Administer a memevote deployment",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to config file")

	root.AddCommand(
		a.eligibilityCommand(),
		a.memesCommand(),
		a.smokeCommand(),
	)
	return root
}

// openStore builds the document store the server itself would use.
func (a *app) openStore(ctx context.Context) (*repository.DocumentStore, error) {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, err
	}
	backend, err := repository.NewBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.log.WithField("backend", cfg.Store.Backend).Debug("Document store opened")
	return repository.NewDocumentStore(backend), nil
}
