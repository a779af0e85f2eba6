// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// docs.go - Document management commands.
//
// Usage:
//
//	docchat docs list [--json]
//	docchat docs upload FILE... [--json]
//	docchat docs delete ID|FILENAME [--yes]
//	docchat docs text ID|FILENAME [--json]
//	docchat docs download ID|FILENAME [-o PATH]
//
// Documents are referenced by numeric id or exact filename.

package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/docchat-tui/internal/backend"
	"github.com/jeranaias/docchat-tui/internal/util"
)

// maxParallelUploads bounds concurrent uploads in one docs upload run.
const maxParallelUploads = 3

func newDocsCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "docs",
		Aliases: []string{"documents"},
		Short:   "Manage your uploaded documents",
	}
	cmd.AddCommand(
		newDocsListCommand(app),
		newDocsUploadCommand(app),
		newDocsDeleteCommand(app),
		newDocsTextCommand(app),
		newDocsDownloadCommand(app),
	)
	return cmd
}

// =============================================================================
// LIST
// =============================================================================

func newDocsListCommand(app *App) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List your documents",
		Args:    exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if jsonOut {
				return OutputJSON(cmd.OutOrStdout(), true, "docs list", func() (interface{}, error) {
					return app.Client.ListDocuments(cmd.Context())
				})
			}
			return printDocuments(cmd.Context(), app, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output in JSON format")
	return cmd
}

// printDocuments writes the document table to out.
func printDocuments(ctx context.Context, app *App, out io.Writer) error {
	docs, err := app.Client.ListDocuments(ctx)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		fmt.Fprintln(out, DimStyle.Render("No documents yet. Upload one with 'docchat docs upload FILE'."))
		return nil
	}

	fmt.Fprintln(out, TitleStyle.Render(fmt.Sprintf("Documents (%d)", len(docs))))
	for _, d := range docs {
		fmt.Fprintf(out, "  %s %s\n", DimStyle.Render(util.PadRight(fmt.Sprintf("%d", d.ID), 6)), d.Filename)
	}
	return nil
}

// =============================================================================
// UPLOAD
// =============================================================================

// UploadOutcome reports one file of a docs upload run.
type UploadOutcome struct {
	Path   string                `json:"path"`
	Result *backend.UploadResult `json:"result,omitempty"`
	Error  string                `json:"error,omitempty"`
}

func newDocsUploadCommand(app *App) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "upload FILE...",
		Short: "Upload .pdf or .docx files",
		Args:  minArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				if !backend.IsSupportedFile(path) {
					return usageErrorf("%s: %v", path, backend.ErrUnsupportedFile)
				}
			}

			outcomes := uploadAll(cmd.Context(), app, args)
			failed := 0
			for _, o := range outcomes {
				if o.Error != "" {
					failed++
				}
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				resp := NewJSONResponse("docs upload", outcomes)
				resp.Success = failed == 0
				if err := resp.Write(out); err != nil {
					return err
				}
			} else {
				for _, o := range outcomes {
					if o.Error != "" {
						fmt.Fprintf(out, "%s %s: %s\n", ErrorStyle.Render("[FAIL]"), o.Path, o.Error)
						continue
					}
					fmt.Fprintf(out, "%s %s (id %d)\n", SuccessStyle.Render("[OK]"), o.Result.Filename, o.Result.DocID)
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d uploads failed", failed, len(outcomes))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output in JSON format")
	return cmd
}

// uploadAll uploads paths concurrently. One failed file does not stop the
// others; outcomes keep the order of paths.
func uploadAll(ctx context.Context, app *App, paths []string) []UploadOutcome {
	outcomes := make([]UploadOutcome, len(paths))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelUploads)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			outcomes[i].Path = path
			res, err := app.Client.UploadDocument(gCtx, path)
			if err != nil {
				outcomes[i].Error = err.Error()
				app.Log.Warn().Err(err).Str("path", path).Msg("upload failed")
				return nil
			}
			outcomes[i].Result = res
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// =============================================================================
// DELETE
// =============================================================================

func newDocsDeleteCommand(app *App) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "delete ID|FILENAME",
		Aliases: []string{"rm"},
		Short:   "Delete a document and its indexed text",
		Args:    exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			doc, err := app.Client.FindDocument(ctx, args[0])
			if err != nil {
				return err
			}

			if !yes {
				if !CanPrompt() {
					return usageErrorf("refusing to delete %s without --yes", doc.Filename)
				}
				confirmed := false
				err := deleteConfirmForm(doc.Filename, &confirmed).RunWithContext(ctx)
				if errors.Is(err, huh.ErrUserAborted) {
					return ErrInterrupted
				}
				if err != nil {
					return errors.Wrap(err, "prompt failed")
				}
				if !confirmed {
					fmt.Fprintln(cmd.OutOrStdout(), "Cancelled")
					return nil
				}
			}

			if err := app.Client.DeleteDocument(ctx, doc.ID); err != nil {
				return err
			}
			app.Log.Info().Int("doc_id", doc.ID).Msg("document deleted")
			fmt.Fprintf(cmd.OutOrStdout(), "%s Deleted %s\n", SuccessStyle.Render("[OK]"), doc.Filename)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "delete without asking")
	return cmd
}

// =============================================================================
// TEXT AND DOWNLOAD
// =============================================================================

func newDocsTextCommand(app *App) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "text ID|FILENAME",
		Short: "Print the text extracted from a document",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			return OutputJSON(out, jsonOut, "docs text", func() (interface{}, error) {
				doc, err := app.Client.FindDocument(ctx, args[0])
				if err != nil {
					return nil, err
				}
				text, err := app.Client.GetDocumentText(ctx, doc.ID)
				if err != nil {
					return nil, err
				}
				if !jsonOut {
					fmt.Fprintln(out, text.Text)
				}
				return text, nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output in JSON format")
	return cmd
}

func newDocsDownloadCommand(app *App) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "download ID|FILENAME",
		Short: "Download the original file",
		Long: `Download the original file of a document.

The file is saved under its own name in the current directory unless -o
is given. Use -o - to write it to stdout.`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			doc, err := app.Client.FindDocument(ctx, args[0])
			if err != nil {
				return err
			}

			if output == "-" {
				_, _, err := app.Client.DownloadDocument(ctx, doc.ID, cmd.OutOrStdout())
				return err
			}
			if output == "" {
				output = filepath.Base(doc.Filename)
			}

			n, err := downloadTo(ctx, app.Client, doc.ID, output)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%s Saved %s (%d bytes)\n", SuccessStyle.Render("[OK]"), output, n)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "destination file, or - for stdout")
	return cmd
}

// downloadTo streams a document into path. A failed download leaves any
// existing file at path untouched.
func downloadTo(ctx context.Context, client *backend.Client, id int, path string) (int64, error) {
	pr, pw := io.Pipe()

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, _, err := client.DownloadDocument(gCtx, id, pw)
		pw.CloseWithError(err)
		return err
	})

	var written int64
	g.Go(func() error {
		n, err := util.AtomicWriteFrom(path, pr, 0644, 0755)
		written = n
		// Unblock the downloader if the write side failed first.
		pr.CloseWithError(err)
		return err
	})

	if err := g.Wait(); err != nil {
		return written, err
	}
	return written, nil
}

// deleteConfirmForm asks before a document is removed.
func deleteConfirmForm(filename string, confirmed *bool) *huh.Form {
	return huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(fmt.Sprintf("Delete %s?", filename)).
			Description("Its text is removed from future answers.").
			Value(confirmed),
	)).WithTheme(huh.ThemeCharm())
}
