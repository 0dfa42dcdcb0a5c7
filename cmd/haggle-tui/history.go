package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"haggle/internal/archive"
	"haggle/internal/negotiation"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newHistoryCommand(flags *rootFlags) *cobra.Command {
	var (
		limit int
		show  string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List archived negotiations",
		Long: `List negotiations recorded in the archive database.

Pass --show with an archive id to print that negotiation's transcript.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, flags)
			if err != nil {
				return err
			}
			if cfg.Archive.Path == "" {
				return errors.New("no archive configured (set --archive-db or HAGGLE_ARCHIVE_DB)")
			}
			store, err := archive.Open(cfg.Archive.Path)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if strings.TrimSpace(show) != "" {
				return printTranscript(cmd.Context(), cmd.OutOrStdout(), store, strings.TrimSpace(show))
			}
			return printHistory(cmd.Context(), cmd.OutOrStdout(), store, limit)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum negotiations to list, 0 for all")
	cmd.Flags().StringVar(&show, "show", "", "Archive id whose transcript to print")
	return cmd
}

func printHistory(ctx context.Context, w io.Writer, store *archive.Store, limit int) error {
	if ctx == nil {
		ctx = context.Background()
	}
	records, err := store.List(ctx, limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "No archived negotiations.")
		return err
	}
	for _, r := range records {
		_, err := fmt.Fprintf(w, "%s  %s  %-8s  %-10s  %s (%s)  %d entries  %s\n",
			r.ClosedAt.Local().Format("2006-01-02 15:04"),
			r.ID,
			truncate(r.UserID, 8),
			closeReasonLabel(r.Reason),
			nullCoalesce(r.ProductName, r.ProductID),
			negotiation.FormatAmount(r.Currency, r.ListPrice),
			r.Turns,
			r.SessionID,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func printTranscript(ctx context.Context, w io.Writer, store *archive.Store, id string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	entries, err := store.Entries(ctx, id)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return errors.Errorf("no archived transcript for %s", id)
	}
	for _, e := range entries {
		if _, err := fmt.Fprintf(w, "[%s] %s: %s\n", e.CreatedAt.Local().Format("15:04:05"), speakerLabel(e.Speaker), e.Content); err != nil {
			return err
		}
	}
	return nil
}
