package cli

import (
	"context"
	"fmt"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/farmsync/internal/client/models"
)

func parseTable(name string) (models.TableSpec, error) {
	return models.LookupTable(models.Table(name))
}

// Tables prints every table with its number of records waiting for a push
// and the server version pulled so far.
func (a *App) Tables(ctx context.Context) error {
	pending, err := a.recordService.PendingCounts(ctx)
	if err != nil {
		return a.fail(err)
	}
	watermarks, err := a.recordService.Watermarks(ctx)
	if err != nil {
		return a.fail(err)
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TABLE\tPENDING\tPULLED")
	for _, t := range models.Tables {
		fmt.Fprintf(tw, "%s\t%d\t%d\n", t.Name, pending[t.Name], watermarks[t.Name])
	}
	return tw.Flush()
}

// Add creates a record. Without name=value arguments the fields are read
// interactively.
func (a *App) Add(ctx context.Context, args []string) error {
	if len(args) == 0 {
		a.printf("Usage: add <table> [name=value ...]\n")
		return nil
	}
	spec, err := parseTable(args[0])
	if err != nil {
		return a.fail(err)
	}

	pairs := args[1:]
	if len(pairs) == 0 {
		if pairs, err = GetPairs(a.reader, a.out); err != nil {
			return a.fail(err)
		}
	}
	fields, err := models.FieldsFromPairs(pairs)
	if err != nil {
		return a.fail(err)
	}

	rec, err := a.recordService.Add(ctx, spec.Name, fields)
	if err != nil {
		return a.fail(err)
	}
	a.printf("Added %s/%s\n", spec.Name, rec.ID)
	return nil
}

// Edit patches fields of a record. A value of null removes the field.
func (a *App) Edit(ctx context.Context, args []string) error {
	if len(args) < 3 {
		a.printf("Usage: edit <table> <id> name=value ...\n")
		return nil
	}
	spec, err := parseTable(args[0])
	if err != nil {
		return a.fail(err)
	}
	patch, err := models.FieldsFromPairs(args[2:])
	if err != nil {
		return a.fail(err)
	}

	if _, err := a.recordService.Edit(ctx, spec.Name, args[1], patch); err != nil {
		return a.fail(err)
	}
	a.printf("Updated %s/%s\n", spec.Name, args[1])
	return nil
}

// Delete tombstones a record.
func (a *App) Delete(ctx context.Context, args []string) error {
	if len(args) != 2 {
		a.printf("Usage: delete <table> <id>\n")
		return nil
	}
	spec, err := parseTable(args[0])
	if err != nil {
		return a.fail(err)
	}

	if _, err := a.recordService.Delete(ctx, spec.Name, args[1]); err != nil {
		return a.fail(err)
	}
	a.printf("Deleted %s/%s\n", spec.Name, args[1])
	return nil
}

// List prints the live records of a table.
func (a *App) List(ctx context.Context, args []string) error {
	if len(args) != 1 {
		a.printf("Usage: list <table>\n")
		return nil
	}
	spec, err := parseTable(args[0])
	if err != nil {
		return a.fail(err)
	}

	recs, err := a.recordService.List(ctx, spec.Name)
	if err != nil {
		return a.fail(err)
	}
	if len(recs) == 0 {
		a.printf("No %s yet\n", spec.Name)
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tLABEL\tSYNC")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.ID, r.Fields.String(spec.Label), r.Synced)
	}
	return tw.Flush()
}

// Show prints one record with its envelope.
func (a *App) Show(ctx context.Context, args []string) error {
	if len(args) != 2 {
		a.printf("Usage: show <table> <id>\n")
		return nil
	}
	spec, err := parseTable(args[0])
	if err != nil {
		return a.fail(err)
	}

	r, err := a.recordService.Get(ctx, spec.Name, args[1])
	if err != nil {
		return a.fail(err)
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\t%s\n", models.KeyID, r.ID)
	fmt.Fprintf(tw, "%s\t%s\n", models.KeyCreatedAt, r.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(tw, "%s\t%s\n", models.KeyUpdatedAt, r.UpdatedAt.Format(time.RFC3339))
	fmt.Fprintf(tw, "%s\t%d\n", models.KeyLastModified, r.LastModified)
	fmt.Fprintf(tw, "sync\t%s\n", r.Synced)
	fmt.Fprintln(tw, "--\t")

	keys := make([]string, 0, len(r.Fields))
	for k := range r.Fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(tw, "%s\t%v\n", k, r.Fields[k])
	}
	return tw.Flush()
}

// Plans prints crop plans with crop, plot and season names.
func (a *App) Plans(ctx context.Context) error {
	views, err := a.recordService.CropPlanViews(ctx)
	if err != nil {
		return a.fail(err)
	}
	if len(views) == 0 {
		a.printf("No crop plans yet\n")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSTATUS\tCROP\tPLOT\tSEASON")
	for _, v := range views {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", v.Name, v.Status, v.Crop, v.Plot, v.Season)
	}
	return tw.Flush()
}
