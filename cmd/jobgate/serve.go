package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marcus/jobgate/internal/config"
	"github.com/marcus/jobgate/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: "Start an HTTP server exposing posting submission, the duplicate " +
		"gate, and pipeline run management.",
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (defaults to config listen_addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	ctx := cmdContext()
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	auth, err := config.NewAuthConfig()
	if err != nil {
		return err
	}

	// A single operator account, provisioned through the environment.
	operator := os.Getenv("OPERATOR_USER")
	operatorHash := os.Getenv("OPERATOR_PASSWORD_HASH")
	if operator == "" || operatorHash == "" {
		return fmt.Errorf("OPERATOR_USER and OPERATOR_PASSWORD_HASH are required")
	}

	addr := serveAddr
	if addr == "" {
		addr = a.cfg.ListenAddr
	}

	srv, err := server.New(server.Config{
		Addr:      addr,
		Operators: map[string]string{operator: operatorHash},
		Auth:      auth,
		Window:    gateWindow(a.cfg),
	}, a.store, a.gate, a.orch, a.reviews)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Start()
}
