package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fansqz/gdber/analyze"
	"github.com/fansqz/gdber/config"
	"github.com/fansqz/gdber/debugger"
	"github.com/fansqz/gdber/gdb"
	"github.com/fansqz/gdber/server"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// 定义版本号
const Version = "1.0.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "gdber",
		Short:        "gdb-backed debug session orchestrator",
		Long:         "gdber drives one gdb process per debug session and streams program state to browser clients over WebSocket.",
		SilenceUsage: true,
	}
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

func newServeCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the orchestrator server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "config.yaml", "Path to config file")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Version: %s\n", Version)
		},
	}
}

func serve(configPath string) error {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return err
	}
	if err := SetupLogger(cfg.Log); err != nil {
		return err
	}
	defer CloseLogger()

	spawn := func(onNotification gdb.NotificationCallback) (debugger.Engine, error) {
		return gdb.New(onNotification, cfg.GDB.Path, cfg.GDB.Args...)
	}
	registry := debugger.NewRegistry(cfg, spawn)
	analyzer := analyze.NewClient(cfg.Analyze.URL, cfg.Analyze.Timeout)
	srv := server.NewServer(cfg, registry, analyzer, Version)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logrus.Infof("[main] received %s, shutting down", sig)
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("[main] http shutdown error: %v", err)
	}
	if err := registry.Shutdown(); err != nil {
		logrus.Errorf("[main] registry shutdown error: %v", err)
	}
	logrus.Info("[main] shutdown complete")
	return nil
}
