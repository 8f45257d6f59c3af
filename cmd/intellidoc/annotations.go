package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/Neroli1108/intellidoc-reader/internal/cli"
	"github.com/Neroli1108/intellidoc-reader/internal/export"
	"github.com/Neroli1108/intellidoc-reader/internal/model"
)

func annotationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "annotations",
		Short: "Work with a document's annotations",
		Long:  `List, annotate, export, and import the annotations stored for a document.`,
	}

	cmd.PersistentFlags().String("doc", "", "path to the document")

	cmd.AddCommand(listAnnotationsCmd())
	cmd.AddCommand(noteAnnotationCmd())
	cmd.AddCommand(colorAnnotationCmd())
	cmd.AddCommand(deleteAnnotationCmd())
	cmd.AddCommand(exportAnnotationsCmd())
	cmd.AddCommand(importAnnotationsCmd())

	return cmd
}

func listAnnotationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all annotations for a document",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			namespace, err := documentNamespace(cmd.Flag("doc").Value.String())
			if err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			annotations, err := store.GetAnnotations(ctx, namespace)
			if err != nil {
				return fmt.Errorf("failed to get annotations: %w", err)
			}

			if len(annotations) == 0 {
				fmt.Println(cli.InfoStyle.Render("No annotations yet for this document."))
				return nil
			}

			categories, err := store.GetCategories(ctx)
			if err != nil {
				return fmt.Errorf("failed to get categories: %w", err)
			}
			names := make(map[string]string, len(categories))
			for _, cat := range categories {
				names[cat.ID] = cat.Name
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer w.Flush()

			headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				headerStyle.Render("Page"),
				headerStyle.Render("Type"),
				headerStyle.Render("Category"),
				headerStyle.Render("Text"),
				headerStyle.Render("Note"))

			for _, a := range annotations {
				category := names[a.CategoryID]
				if category == "" {
					category = a.Color
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
					a.PageNumber, a.Type, category,
					truncate(a.Text, 50), truncate(a.Note, 30))
			}

			return nil
		},
	}
}

func noteAnnotationCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "note <annotation-id> <text>",
		Short: "Attach or replace the note on an annotation",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			namespace, err := documentNamespace(cmd.Flag("doc").Value.String())
			if err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			annotation, err := store.GetAnnotationByID(ctx, namespace, args[0])
			if err != nil {
				return err
			}

			annotation.Note = strings.Join(args[1:], " ")
			annotation.UpdatedAt = time.Now()
			if err := store.UpdateAnnotation(ctx, namespace, annotation); err != nil {
				return fmt.Errorf("failed to update note: %w", err)
			}

			fmt.Println(cli.FormatSuccess("note saved"))
			return nil
		},
	}
}

func colorAnnotationCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "color <annotation-id> <hex-color>",
		Short: "Set a direct color on an annotation",
		Long: `Set an explicit color on one annotation. The annotation is detached
from its category so later category recolors leave it alone.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			namespace, err := documentNamespace(cmd.Flag("doc").Value.String())
			if err != nil {
				return err
			}

			if !model.IsHexColor(args[1]) {
				return fmt.Errorf("%w: %q", model.ErrInvalidColor, args[1])
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			annotation, err := store.GetAnnotationByID(ctx, namespace, args[0])
			if err != nil {
				return err
			}

			annotation.Color = args[1]
			annotation.CategoryID = ""
			annotation.UpdatedAt = time.Now()
			if err := store.UpdateAnnotation(ctx, namespace, annotation); err != nil {
				return fmt.Errorf("failed to update color: %w", err)
			}

			fmt.Printf("%s %s\n", cli.ColorSwatch(args[1]), cli.FormatSuccess("color saved"))
			return nil
		},
	}
}

func deleteAnnotationCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <annotation-id>",
		Short: "Delete an annotation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			namespace, err := documentNamespace(cmd.Flag("doc").Value.String())
			if err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.DeleteAnnotation(ctx, namespace, args[0]); err != nil {
				return err
			}

			fmt.Println(cli.FormatSuccess("annotation deleted"))
			return nil
		},
	}
}

func exportAnnotationsCmd() *cobra.Command {
	var (
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a document's annotations",
		Long:  `Export annotations as markdown (for reading) or JSON (for re-import).`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			namespace, err := documentNamespace(cmd.Flag("doc").Value.String())
			if err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			annotations, err := store.GetAnnotations(ctx, namespace)
			if err != nil {
				return fmt.Errorf("failed to get annotations: %w", err)
			}
			categories, err := store.GetCategories(ctx)
			if err != nil {
				return fmt.Errorf("failed to get categories: %w", err)
			}

			var data []byte
			switch format {
			case "markdown", "md":
				data = []byte(export.ToMarkdown(annotations, categories))
			case "json":
				data, err = export.ToJSON(annotations, categories)
				if err != nil {
					return err
				}
			default:
				return fmt.Errorf("unknown export format %q (use markdown or json)", format)
			}

			if output == "" {
				fmt.Print(string(data))
				return nil
			}

			if err := os.WriteFile(output, data, 0600); err != nil {
				return fmt.Errorf("failed to write export: %w", err)
			}
			fmt.Println(cli.FormatSuccess(fmt.Sprintf("exported %d annotations to %s", len(annotations), output)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "markdown", "export format (markdown, json)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	return cmd
}

func importAnnotationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.json>",
		Short: "Import annotations from a JSON export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			namespace, err := documentNamespace(cmd.Flag("doc").Value.String())
			if err != nil {
				return err
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read import file: %w", err)
			}

			annotations, categories, err := export.FromJSON(data)
			if err != nil {
				return err
			}
			if len(annotations) == 0 {
				fmt.Println(cli.InfoStyle.Render("Nothing to import."))
				return nil
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			// Recreate custom categories the export referenced; known
			// IDs already exist and are skipped.
			bar := progressbar.Default(int64(len(categories)+1), "importing")
			for i := range categories {
				if _, lookupErr := store.GetCategoryByID(ctx, categories[i].ID); lookupErr == nil {
					_ = bar.Add(1)
					continue
				}
				if createErr := store.CreateCategory(ctx, &categories[i]); createErr != nil {
					return fmt.Errorf("failed to import category %s: %w", categories[i].ID, createErr)
				}
				_ = bar.Add(1)
			}

			// All annotations land in one batched write.
			if err := store.SaveAnnotations(ctx, namespace, annotations); err != nil {
				return fmt.Errorf("failed to import annotations: %w", err)
			}
			_ = bar.Add(1)
			_ = bar.Finish()

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("imported %d annotations", len(annotations))))
			return nil
		},
	}
}

func truncate(s string, limit int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}
