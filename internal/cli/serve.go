package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/patientsim/internal/server"
)

var (
	serveAddr string
	serveH2C  bool
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve conversations over HTTP",
	Long: `Serve starts the HTTP endpoint:

  POST /api/conversations                    start a conversation
  POST /api/conversations/{id}/messages      send a message, get the reply
  GET  /api/conversations/{id}/transcript    turn log
  GET  /api/patients                         case catalog
  GET  /healthz

Example:
  patientsim serve --addr :8080
  PATIENTSIM_STORE_DRIVER=postgres PATIENTSIM_STORE_DSN=postgres://... patientsim serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
	serveCmd.Flags().BoolVar(&serveH2C, "h2c", false, "accept cleartext HTTP/2")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	if serveH2C {
		cfg.Server.H2C = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Fprintf(os.Stderr, "Serving on %s (store: %s, classifier: %s)\n", cfg.Server.Addr, cfg.Store.Driver, cfg.Classifier.Provider)
	return server.New(a.pipeline, logger).ListenAndServe(ctx, cfg.Server)
}
