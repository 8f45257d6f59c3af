package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Neroli1108/intellidoc-reader/internal/cli"
	"github.com/Neroli1108/intellidoc-reader/internal/model"
)

func categoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Manage annotation categories",
		Long:  `List, add, rename, recolor, reorder, and delete the categories annotations are filed under.`,
	}

	cmd.AddCommand(listCategoriesCmd())
	cmd.AddCommand(addCategoryCmd())
	cmd.AddCommand(renameCategoryCmd())
	cmd.AddCommand(recolorCategoryCmd())
	cmd.AddCommand(reorderCategoriesCmd())
	cmd.AddCommand(deleteCategoryCmd())

	return cmd
}

func listCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all categories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			categories, err := store.GetCategories(ctx)
			if err != nil {
				return fmt.Errorf("failed to get categories: %w", err)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer w.Flush()

			headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				headerStyle.Render("ID"),
				headerStyle.Render("Name"),
				headerStyle.Render("Color"),
				headerStyle.Render("Kind"))
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				strings.Repeat("-", 12),
				strings.Repeat("-", 20),
				strings.Repeat("-", 10),
				strings.Repeat("-", 6))

			for _, cat := range categories {
				kind := "system"
				if cat.IsCustom {
					kind = "custom"
				}
				fmt.Fprintf(w, "%s\t%s\t%s %s\t%s\n",
					cat.ID, cat.Name, cli.ColorSwatch(cat.Color), cat.Color, kind)
			}

			return nil
		},
	}
}

func addCategoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <name> <hex-color>",
		Short: "Add a custom category",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			existing, err := store.GetCategories(ctx)
			if err != nil {
				return fmt.Errorf("failed to get categories: %w", err)
			}

			category := model.Category{
				ID:        "cat-" + uuid.NewString(),
				Name:      args[0],
				Color:     args[1],
				Order:     len(existing),
				IsCustom:  true,
				CreatedAt: time.Now(),
			}
			if err := store.CreateCategory(ctx, &category); err != nil {
				return err
			}

			fmt.Printf("%s %s\n", cli.ColorSwatch(category.Color),
				cli.FormatSuccess(fmt.Sprintf("created category %q (%s)", category.Name, category.ID)))
			return nil
		},
	}
}

func renameCategoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <category-id> <new-name>",
		Short: "Rename a category",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			category, err := store.GetCategoryByID(ctx, args[0])
			if err != nil {
				return err
			}

			category.Name = args[1]
			if err := store.UpdateCategory(ctx, category); err != nil {
				return err
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("renamed category to %q", args[1])))
			return nil
		},
	}
}

func recolorCategoryCmd() *cobra.Command {
	var docPath string

	cmd := &cobra.Command{
		Use:   "recolor <category-id> <hex-color>",
		Short: "Change a category's color",
		Long: `Change a category's color. With --doc, the cached colors on that
document's annotations are restyled in the same pass; other documents
pick up the new color on their next load.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if !model.IsHexColor(args[1]) {
				return fmt.Errorf("%w: %q", model.ErrInvalidColor, args[1])
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			category, err := store.GetCategoryByID(ctx, args[0])
			if err != nil {
				return err
			}

			category.Color = args[1]
			if err := store.UpdateCategory(ctx, category); err != nil {
				return err
			}

			if docPath != "" {
				namespace, nsErr := documentNamespace(docPath)
				if nsErr != nil {
					return nsErr
				}
				count, recolorErr := store.RecolorAnnotationsByCategory(ctx, namespace, category.ID, args[1])
				if recolorErr != nil {
					return recolorErr
				}
				fmt.Printf("%s %s\n", cli.ColorSwatch(args[1]),
					cli.FormatSuccess(fmt.Sprintf("recolored category and %d annotations", count)))
				return nil
			}

			fmt.Printf("%s %s\n", cli.ColorSwatch(args[1]), cli.FormatSuccess("recolored category"))
			return nil
		},
	}

	cmd.Flags().StringVar(&docPath, "doc", "", "also restyle this document's annotations")
	return cmd
}

func reorderCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reorder <category-id>...",
		Short: "Set the display order of all categories",
		Long:  `Provide every category ID in the desired order. Partial lists are rejected.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.ReorderCategories(ctx, args); err != nil {
				return err
			}

			fmt.Println(cli.FormatSuccess("categories reordered"))
			return nil
		},
	}
}

func deleteCategoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <category-id>",
		Short: "Delete a category",
		Long: `Delete a category. Annotations filed under it keep their current
color as a direct color. The last remaining category cannot be deleted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.DeleteCategory(ctx, args[0]); err != nil {
				return err
			}

			fmt.Println(cli.FormatSuccess("category deleted"))
			return nil
		},
	}
}
