package cli

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/barterlabs/goBarterd/internal/config"
	"github.com/barterlabs/goBarterd/internal/node"
)

var (
	// Server flags
	serverPort int
	serverHost string
)

// serverCmd starts the daemon. It is also the default action when no
// subcommand is given.
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the barter exchange daemon",
	Long: `Start the goBarterd daemon: it opens the state store, restores
offers and balances, and serves the JSON-RPC API until interrupted.`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return serverCmd.RunE(cmd, args)
	}

	serverCmd.Flags().IntVarP(&serverPort, "port", "p", 0, "override the configured RPC port")
	serverCmd.Flags().StringVar(&serverHost, "bind", "", "override the configured bind address")
}

func loadServerConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, err
	}
	if standalone {
		cfg.Standalone = true
	}
	if serverPort != 0 {
		cfg.Server.Port = serverPort
	}
	if serverHost != "" {
		cfg.Server.Host = serverHost
	}
	return cfg, nil
}

func serverLogger() *log.Logger {
	var out io.Writer = os.Stderr
	if quiet {
		out = io.Discard
	}
	flags := log.LstdFlags
	if verbose {
		flags |= log.Lshortfile
	}
	return log.New(out, "", flags)
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadServerConfig()
	if err != nil {
		return err
	}
	logger := serverLogger()

	n, err := node.New(cfg, logger)
	if err != nil {
		return err
	}

	if !quiet {
		fmt.Printf("%s %s\n", cfg.NodeName, node.Version)
		fmt.Printf("JSON-RPC: http://%s/\n", cfg.Server.Address())
		if cfg.Standalone {
			fmt.Println("Running standalone: state is in memory and lost on exit")
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Println("shutting down")
		n.Stop()
	}()

	return n.Run()
}
