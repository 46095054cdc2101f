package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	mcpadapter "github.com/JLcilliers/MileIQ-Migration/internal/adapters/mcp"
	"github.com/JLcilliers/MileIQ-Migration/internal/core/domain"
	"github.com/JLcilliers/MileIQ-Migration/internal/infrastructure/export/xlsx"
)

func newStatusCmd() *cobra.Command {
	var items bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show progress, roadmap, critical path and dashboard",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, s session) error {
				if items {
					return s.renderer.RenderChecklist(s.app.Progress.Items())
				}
				return s.app.Hub.Render(ctx)
			})
		},
	}
	cmd.Flags().BoolVar(&items, "items", false, "list every checklist item instead of the summary")
	return cmd
}

func newRoadmapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "roadmap",
		Short: "Show phase states and milestone progress",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(_ context.Context, s session) error {
				return s.renderer.RenderRoadmap(s.app.Hub.Roadmap())
			})
		},
	}
}

func newToggleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <item-id>",
		Short: "Flip a checklist item between done and not done",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, s session) error {
				done, err := s.app.Progress.Toggle(args[0])
				if err != nil {
					return err
				}
				return saveAndReport(ctx, s, args[0], done)
			})
		},
	}
}

func newDoneCmd() *cobra.Command {
	var undo bool
	cmd := &cobra.Command{
		Use:   "done <item-id>",
		Short: "Mark a checklist item as done",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, s session) error {
				if err := s.app.Progress.SetDone(args[0], !undo); err != nil {
					return err
				}
				return saveAndReport(ctx, s, args[0], !undo)
			})
		},
	}
	cmd.Flags().BoolVar(&undo, "undo", false, "mark the item as not done")
	return cmd
}

func saveAndReport(ctx context.Context, s session, id string, done bool) error {
	if err := s.app.Progress.Save(ctx); err != nil {
		return err
	}
	state := "not done"
	if done {
		state = "done"
	}
	p := s.app.Progress.Snapshot()
	_, _ = fmt.Fprintf(s.out, "%s: %s (%d/%d, %d%%)\n", id, state, p.Completed, p.Total, p.Percentage)
	return nil
}

func newUploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <item-id> <file>",
		Short: "Attach a file to a checklist item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer f.Close()

			return withApp(cmd, func(ctx context.Context, s session) error {
				mimeType := mime.TypeByExtension(filepath.Ext(args[1]))
				rec, err := s.app.Progress.AttachFile(ctx, args[0], filepath.Base(args[1]), mimeType, f)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(s.out, "attached %s (%s) to %s\n", rec.Name, rec.Size, args[0])
				return nil
			})
		},
	}
}

func newRemoveUploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove-upload <item-id> <index>",
		Short: "Remove an attached file by its position in the item's list",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("index must be an integer: %w", err)
			}
			return withApp(cmd, func(ctx context.Context, s session) error {
				if err := s.app.Progress.RemoveUpload(ctx, args[0], index); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(s.out, "removed upload %d from %s\n", index, args[0])
				return nil
			})
		},
	}
}

func newSaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "save",
		Short: "Write checklist state to the local store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, s session) error {
				if err := s.app.Progress.Save(ctx); err != nil {
					return err
				}
				p := s.app.Progress.Snapshot()
				_, _ = fmt.Fprintf(s.out, "saved %d/%d items\n", p.Completed, p.Total)
				return nil
			})
		},
	}
}

func newExportCmd() *cobra.Command {
	var format, outPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export progress, uploads and dashboard data",
		RunE: func(cmd *cobra.Command, _ []string) error {
			format = strings.ToLower(format)
			if format != "json" && format != "xlsx" {
				return fmt.Errorf("unsupported export format %q", format)
			}
			return withApp(cmd, func(ctx context.Context, s session) error {
				now := time.Now()
				doc, err := s.app.Progress.ExportSnapshot(ctx, now)
				if err != nil {
					return err
				}

				var buf bytes.Buffer
				if format == "xlsx" {
					err = xlsx.Write(&buf, s.app.Progress.Items(), doc)
				} else {
					enc := json.NewEncoder(&buf)
					enc.SetIndent("", "  ")
					err = enc.Encode(doc)
				}
				if err != nil {
					return err
				}

				path := outPath
				if path == "" {
					path = s.app.Progress.ExportFileName(now, format)
				}
				if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(s.out, "exported to %s\n", path)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "export format: json|xlsx")
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "output path (default <namespace>_migration_checklist_<date>.<format>)")
	return cmd
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Restore progress and uploads from a JSON export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var doc domain.ExportDocument
			if err := json.Unmarshal(raw, &doc); err != nil {
				return fmt.Errorf("parse export: %w", err)
			}
			return withApp(cmd, func(ctx context.Context, s session) error {
				if err := s.app.Progress.Import(ctx, doc); err != nil {
					return err
				}
				p := s.app.Progress.Snapshot()
				_, _ = fmt.Fprintf(s.out, "imported %d/%d completed items\n", p.Completed, p.Total)
				return nil
			})
		},
	}
}

func newClearCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Erase all checklist progress, uploads and dashboard data",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, s session) error {
				if err := s.app.Hub.ClearAll(ctx, yes); err != nil {
					if domain.IsKind(err, domain.ErrInvalidInput) {
						return fmt.Errorf("refusing to clear without --yes")
					}
					return err
				}
				_, _ = fmt.Fprintln(s.out, "all progress cleared")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm that all data should be erased")
	return cmd
}

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in to Google for live analytics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, s session) error {
				status, err := s.app.Session.RequestInteractiveGrant(ctx)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(s.out, "signed in (%s)\n", status.State)
				return nil
			})
		},
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the Google session and forget it locally",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, s session) error {
				if err := s.app.Session.Revoke(ctx); err != nil {
					return err
				}
				_, _ = fmt.Fprintln(s.out, "signed out")
				return nil
			})
		},
	}
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check that the stored Google session is still live",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, s session) error {
				status, err := s.app.Session.Validate(ctx)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(s.out, "session: %s\n", status.State)
				return nil
			})
		},
	}
}

func newRefreshCmd() *cobra.Command {
	var auditOnly bool
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Fetch dashboard metrics now",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, s session) error {
				refresh := s.app.Metrics.Refresh
				if auditOnly {
					refresh = s.app.Metrics.RefreshAudit
				}
				report, err := refresh(ctx)
				if err != nil {
					return err
				}
				if err := s.renderer.RenderReport(report); err != nil {
					return err
				}
				return s.app.Hub.Render(ctx)
			})
		},
	}
	cmd.Flags().BoolVar(&auditOnly, "audit", false, "run only the page speed audit")
	return cmd
}

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve hub tools to an assistant over MCP stdio",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, s session) error {
				srv := mcpadapter.NewServer(mcpadapter.Deps{
					Hub:      s.app.Hub,
					Progress: s.app.Progress,
					Metrics:  s.app.Metrics,
					Session:  s.app.Session,
					Logger:   s.app.Logger,
				})
				return srv.Serve(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
			})
		},
	}
}
