package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/JubinSaniei/filesystem/app"
	webapp "github.com/JubinSaniei/filesystem/web/run"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "filesystem",
		Short: "Sandboxed filesystem metadata index and watcher",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "Path to configuration file")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the API server with the background watcher",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Run a one-shot reconciling scan of the configured roots",
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")
			return runScan(configPath, force)
		},
	}
	scanCmd.Flags().Bool("force", false, "Remove index entries for paths no longer on disk")

	rootCmd.AddCommand(serveCmd, scanCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(configPath string) error {
	cfg, err := app.LoadConfig(configPath)
	if err != nil {
		return err
	}

	if cfg.Server.LogFile != "" {
		log.SetOutput(io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   cfg.Server.LogFile,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     14, // days
			Compress:   true,
		}))
	}

	service, err := app.NewService(cfg)
	if err != nil {
		return err
	}
	defer service.Close()

	service.Start()

	web := webapp.NewWebApp(service, cfg)
	server := &http.Server{
		Addr:    web.GetListenAddr(),
		Handler: web.GetRouter(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Printf("Starting server on %s", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	log.Println("Server stopped")
	return nil
}

func runScan(configPath string, force bool) error {
	cfg, err := app.LoadConfig(configPath)
	if err != nil {
		return err
	}

	service, err := app.NewService(cfg)
	if err != nil {
		return err
	}
	defer service.Close()

	ctx := context.Background()
	for _, root := range cfg.Watch.Roots {
		if _, err := service.Scan(ctx, root, force); err != nil {
			return err
		}
	}
	log.Println("All configured roots scanned")
	return nil
}
