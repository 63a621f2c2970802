package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"

	"github.com/joseph-ayodele/scrape-jobs/constants"
	"github.com/joseph-ayodele/scrape-jobs/internal/client"
	"github.com/joseph-ayodele/scrape-jobs/internal/entity"
	"github.com/joseph-ayodele/scrape-jobs/internal/synchronizer"
)

// SubmitAction creates a job and, unless detached, follows it.
func SubmitAction(ctx context.Context, cmd *cli.Command) error {
	a, err := newAppContext(cmd)
	if err != nil {
		return err
	}

	req := client.SubmitRequest{
		Query:      cmd.String("query"),
		MaxResults: cmd.Int("max-results"),
	}
	if req.MaxResults == 0 {
		req.MaxResults = a.Config.DefaultMaxResults
	}

	if cmd.Bool("detach") {
		job, err := a.Client.Submit(ctx, req)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.Out, job.ID)
		return nil
	}

	r := a.runner()
	title := fmt.Sprintf("Scraping: %s", req.Query)
	return follow(ctx, a, title, cmd.Bool("plain"), func(ctx context.Context, updates chan<- synchronizer.Machine) (synchronizer.Machine, error) {
		return r.Submit(ctx, req, updates)
	})
}

// WatchAction follows an existing job.
func WatchAction(ctx context.Context, cmd *cli.Command) error {
	id, err := jobIDArg(cmd)
	if err != nil {
		return err
	}
	a, err := newAppContext(cmd)
	if err != nil {
		return err
	}

	r := a.runner()
	title := fmt.Sprintf("Job %s", id)
	return follow(ctx, a, title, cmd.Bool("plain"), func(ctx context.Context, updates chan<- synchronizer.Machine) (synchronizer.Machine, error) {
		return r.Track(ctx, id, updates)
	})
}

// GetAction prints one job with its items.
func GetAction(ctx context.Context, cmd *cli.Command) error {
	id, err := jobIDArg(cmd)
	if err != nil {
		return err
	}
	a, err := newAppContext(cmd)
	if err != nil {
		return err
	}

	job, err := a.Client.Get(ctx, id)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		enc := json.NewEncoder(a.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(job)
	}
	printJob(a.Out, job)
	return nil
}

// ListAction prints a table of jobs.
func ListAction(ctx context.Context, cmd *cli.Command) error {
	a, err := newAppContext(cmd)
	if err != nil {
		return err
	}

	opts := client.ListOptions{Limit: cmd.Int("limit")}
	if s := cmd.String("status"); s != "" {
		status := constants.JobStatus(strings.ToLower(s))
		if !status.Valid() {
			return cli.Exit(fmt.Sprintf("invalid status %q", s), exitUsage)
		}
		opts.Status = status
	}

	jobs, err := a.Client.List(ctx, opts)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		fmt.Fprintln(a.Out, "No jobs found")
		return nil
	}

	table := tablewriter.NewWriter(a.Out)
	table.Header("ID", "Status", "Progress", "Items", "Query", "Created")
	for _, j := range jobs {
		table.Append(
			j.ID.String(),
			string(j.Status),
			fmt.Sprintf("%d%%", j.Progress),
			fmt.Sprintf("%d/%d", j.ResultsCount, j.MaxResults),
			truncate(j.Query, 40),
			j.CreatedAt.Local().Format(time.DateTime),
		)
	}
	table.Render()
	return nil
}

// ExportAction downloads a job export to disk.
func ExportAction(ctx context.Context, cmd *cli.Command) error {
	id, err := jobIDArg(cmd)
	if err != nil {
		return err
	}
	format, ok := constants.ParseExportFormat(cmd.String("format"))
	if !ok {
		return cli.Exit(fmt.Sprintf("unsupported format %q, use csv or excel", cmd.String("format")), exitUsage)
	}
	a, err := newAppContext(cmd)
	if err != nil {
		return err
	}

	doc, err := a.Client.Export(ctx, id, format)
	if err != nil {
		return err
	}
	out := cmd.String("out")
	if out == "" {
		out = filepath.Base(doc.Filename)
	}
	if err := os.WriteFile(out, doc.Data, 0o644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	fmt.Fprintf(a.Out, "✓ Exported %s (%d bytes)\n", out, len(doc.Data))
	return nil
}

func printJob(w io.Writer, j *entity.Job) {
	fmt.Fprintf(w, "ID:       %s\n", j.ID)
	fmt.Fprintf(w, "Query:    %s\n", j.Query)
	fmt.Fprintf(w, "Status:   %s (%d%%)\n", j.Status, j.Progress)
	if j.Message != "" {
		fmt.Fprintf(w, "Message:  %s\n", j.Message)
	}
	fmt.Fprintf(w, "Created:  %s\n", j.CreatedAt.Local().Format(time.DateTime))
	if j.CompletedAt != nil {
		fmt.Fprintf(w, "Finished: %s\n", j.CompletedAt.Local().Format(time.DateTime))
	}
	if j.ResultsFile != nil {
		fmt.Fprintf(w, "File:     %s\n", *j.ResultsFile)
	}
	fmt.Fprintf(w, "Items:    %d of %d\n", j.ResultsCount, j.MaxResults)
	printItems(w, j.Items)
}

func printItems(w io.Writer, items []entity.ResultItem) {
	if len(items) == 0 {
		return
	}
	table := tablewriter.NewWriter(w)
	table.Header("#", "Title", "Price", "Rating", "URL")
	for _, it := range items {
		table.Append(
			fmt.Sprintf("%d", it.ID),
			truncate(deref(it.Title), 50),
			deref(it.Price),
			deref(it.Rating),
			deref(it.URL),
		)
	}
	table.Render()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
