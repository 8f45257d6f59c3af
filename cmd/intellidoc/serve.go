package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Neroli1108/intellidoc-reader/internal/config"
	"github.com/Neroli1108/intellidoc-reader/internal/engine"
	"github.com/Neroli1108/intellidoc-reader/internal/render"
)

func serveCmd() *cobra.Command {
	var docPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the annotation bridge for a document",
		Long: `Run the live annotation session: a websocket bridge the renderer
connects to, the reconciliation engine behind it, and an optional file
watcher that reloads annotations when the document changes on disk.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			if docPath == "" {
				return fmt.Errorf("--doc is required")
			}

			namespace, err := documentNamespace(docPath)
			if err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			bridge := render.NewBridge()

			engineCfg := engine.DefaultConfig()
			if attempts := viper.GetInt("reconcile.max_attempts"); attempts > 0 {
				engineCfg.Reconcile.MaxAttempts = attempts
			}
			if delay := viper.GetDuration("reconcile.delay"); delay > 0 {
				engineCfg.Reconcile.InitialDelay = delay
				engineCfg.Reconcile.MaxDelay = delay
			}

			var mu sync.Mutex
			eng := engine.NewWithConfig(store, bridge, namespace, engineCfg)
			bridge.Bind(eng)
			defer func() {
				mu.Lock()
				eng.Close()
				mu.Unlock()
			}()

			if err := eng.Load(ctx); err != nil {
				return fmt.Errorf("failed to load annotations: %w", err)
			}

			if viper.GetBool("watcher.enabled") {
				expanded := config.ExpandPath(docPath)
				watcher, watchErr := render.NewDocumentWatcher(expanded,
					viper.GetDuration("watcher.debounce"), func() {
						slog.Info("document changed, reloading annotations", "doc", expanded)

						// Content edits can shift the namespace key, so
						// re-derive it and swap engines when it moves.
						newNS, nsErr := documentNamespace(expanded)
						if nsErr != nil {
							slog.Error("failed to re-derive namespace", "error", nsErr)
							return
						}

						mu.Lock()
						defer mu.Unlock()
						if newNS != eng.Namespace() {
							replacement := engine.NewWithConfig(store, bridge, newNS, engineCfg)
							bridge.Bind(replacement)
							eng.Close()
							eng = replacement
						}
						if loadErr := eng.Load(context.Background()); loadErr != nil {
							slog.Error("reload after document change failed", "error", loadErr)
						}
					})
				if watchErr != nil {
					return fmt.Errorf("failed to watch document: %w", watchErr)
				}
				watcher.Start(ctx)
				defer watcher.Close()
			}

			mux := http.NewServeMux()
			mux.Handle("/ws", bridge)

			server := &http.Server{
				Addr:              viper.GetString("bridge.listen"),
				Handler:           mux,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				slog.Info("annotation bridge listening", "addr", server.Addr, "doc", docPath)
				errCh <- server.ListenAndServe()
			}()

			select {
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
					slog.Error("bridge shutdown failed", "error", shutdownErr)
				}
				return nil
			case err := <-errCh:
				if err != nil && err != http.ErrServerClosed {
					return fmt.Errorf("bridge server failed: %w", err)
				}
				return nil
			}
		},
	}

	cmd.Flags().StringVar(&docPath, "doc", "", "path to the document (required)")
	return cmd
}
