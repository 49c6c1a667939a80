package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hsche/edureg/internal/app"
	"github.com/hsche/edureg/pkg/catalog"
	"github.com/hsche/edureg/pkg/sink"
)

func newFormsCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "forms",
		Short: "List the registration forms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := catalog.Default()
			if err != nil {
				return err
			}
			list := app.FormList(c)
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), list)
			}
			return printForms(cmd.OutOrStdout(), list)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func printForms(w io.Writer, list []app.FormInfo) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	printf(tw, "SLUG\tPAGE\tSECTIONS\tTITLE\n")
	for _, f := range list {
		page := "-"
		if f.Page > 0 {
			page = fmt.Sprintf("%d", f.Page)
		}
		printf(tw, "%s\t%s\t%d\t%s\n", f.Slug, page, len(f.Sections), f.Title)
	}
	return tw.Flush()
}

func newSubmissionsCmd() *cobra.Command {
	var (
		form   string
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "submissions",
		Short: "List archived submissions, newest first",
		Long: `List submissions stored in the SQLite archive of the data directory.
The archive exists once the server has run with the sqlite sink or a form
was filled in with "edureg fill".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			archive, err := sink.OpenArchive(cfg.Path(app.ArchiveFile))
			if err != nil {
				return err
			}
			defer archive.Close()

			subs, err := archive.List(cmd.Context(), form, limit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), subs)
			}
			return printSubmissions(cmd.OutOrStdout(), subs)
		},
	}
	cmd.Flags().StringVarP(&form, "form", "f", "", "Only this form slug")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of submissions")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	cmd.Flags().String("data-dir", ".edureg", "Data directory holding the archive")
	return cmd
}

func printSubmissions(w io.Writer, subs []sink.Submission) error {
	if len(subs) == 0 {
		printf(w, "No submissions.\n")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	printf(tw, "ID\tFORM\tSUBMITTED\tFIELDS\n")
	for _, s := range subs {
		printf(tw, "%s\t%s\t%s\t%s\n", s.ID, s.Form, s.SubmittedAt.Local().Format(time.DateTime), summarize(s))
	}
	return tw.Flush()
}

// summarize lists the non-empty field names of a submission.
func summarize(s sink.Submission) string {
	var names []string
	for _, k := range s.Values.Keys() {
		if !s.Values.IsEmpty(k) {
			names = append(names, k)
		}
	}
	if len(names) > 4 {
		return strings.Join(names[:4], ", ") + fmt.Sprintf(" +%d", len(names)-4)
	}
	return strings.Join(names, ", ")
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
