package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Neroli1108/intellidoc-reader/internal/engine"
	"github.com/Neroli1108/intellidoc-reader/internal/render"
	"github.com/Neroli1108/intellidoc-reader/internal/tui"
)

func sidebarCmd() *cobra.Command {
	var docPath string

	cmd := &cobra.Command{
		Use:   "sidebar",
		Short: "Browse a document's annotations in a terminal sidebar",
		Long: `Open an interactive list of the document's annotations. Jump requests
are forwarded to any renderer connected to the bridge; without one they
are dropped once the page fails to render.`,
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
			eng := engine.New(store, bridge, namespace)
			defer eng.Close()
			bridge.Bind(eng)

			if err := eng.Load(ctx); err != nil {
				return fmt.Errorf("failed to load annotations: %w", err)
			}

			return tui.Run(ctx, eng)
		},
	}

	cmd.Flags().StringVar(&docPath, "doc", "", "path to the document (required)")
	return cmd
}
