package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hsche/edureg/internal/app"
	"github.com/hsche/edureg/internal/config"
	"github.com/hsche/edureg/internal/website/components"
	"github.com/hsche/edureg/pkg/catalog"
	"github.com/hsche/edureg/pkg/forms"
	"github.com/hsche/edureg/pkg/sink"
	"github.com/hsche/edureg/pkg/wizard"
)

// skipOption leaves an optional choice empty.
const skipOption = "(skip)"

func newFillCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "fill <form>",
		Short: "Fill in a form in the terminal",
		Long: `Walk through a form section by section in the terminal, with the same
validation and institution lookup as the web wizard. The submission is
logged and stored in the SQLite archive of the data directory.`,
		Example: "  edureg fill college-programs\n  edureg fill university --dry-run",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			c, err := catalog.Default()
			if err != nil {
				return err
			}
			schema, err := c.Schema(args[0])
			if err != nil {
				return err
			}

			logger := cfg.Logger()
			fan := sink.NewFanout()
			fan.Add(config.SinkLog, sink.NewLogSink(logger))
			if !dryRun {
				if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
					return fmt.Errorf("creating data dir: %w", err)
				}
				archive, err := sink.OpenArchive(cfg.Path(app.ArchiveFile))
				if err != nil {
					return err
				}
				defer archive.Close()
				fan.Add(config.SinkSQLite, archive)
			}

			ctrl := wizard.New(schema,
				wizard.WithSink(fan),
				wizard.WithResetDelay(0),
				wizard.WithLogger(logger),
				wizard.WithSessionID("cli"),
			)
			defer ctrl.Close()
			return fillForm(cmd.Context(), ctrl, surveyPrompter{}, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Only log the submission")
	cmd.Flags().String("data-dir", ".edureg", "Data directory holding the archive")
	return cmd
}

// fillForm asks for every visible field of the current section, moves on
// when the section validates and submits after a review of all answers.
func fillForm(ctx context.Context, ctrl *wizard.Controller, p prompter, out io.Writer) error {
	schema := ctrl.Schema()
	printf(out, "%s\n", schema.Title)
	if schema.Description != "" {
		printf(out, "%s\n", schema.Description)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		view := ctrl.View()
		section := view.Section()
		printf(out, "\nStep %d of %d: %s\n", view.Current+1, view.SectionCount(), section.Title)

		if err := askSection(ctrl, p, view.Current); err != nil {
			return err
		}

		if !view.IsLast() {
			if !ctrl.Next() {
				printErrors(out, ctrl.View())
			}
			continue
		}
		if !ctrl.ValidateSection(view.Current) {
			printErrors(out, ctrl.View())
			continue
		}

		printReview(out, ctrl.View())
		ok, err := p.Confirm("Submit this form?", true)
		if err != nil {
			return err
		}
		if !ok {
			return errAborted
		}
		if _, err := ctrl.Submit(ctx); err != nil {
			return fmt.Errorf("%s: %w", ctrl.View().FormError(), err)
		}
		printf(out, "\n%s submitted.\n", schema.Title)
		return nil
	}
}

func askSection(ctrl *wizard.Controller, p prompter, section int) error {
	schema := ctrl.Schema()
	key := ""
	if schema.Lookup != nil {
		key = schema.Lookup.KeyField
	}

	for _, f := range schema.SectionFields(section) {
		values := ctrl.View().Values
		if f.Type == forms.FieldHidden || !schema.Visible(f, values) {
			continue
		}
		answer, err := ask(p, f, values)
		if err != nil {
			return err
		}
		// Re-applying an unchanged key would overwrite edited lookup values.
		if f.Name == key && answer == values.String(key) {
			continue
		}
		ctrl.UpdateField(f.Name, answer)
	}
	return nil
}

func ask(p prompter, f forms.Field, values forms.Values) (string, error) {
	message := f.Label
	help := f.Help
	if help == "" {
		help = f.Placeholder
	}
	current := values.String(f.Name)

	switch f.Type {
	case forms.FieldSelect, forms.FieldRadio:
		labels := make([]string, 0, len(f.Options)+1)
		if !f.Required {
			labels = append(labels, skipOption)
		}
		for _, o := range f.Options {
			labels = append(labels, o.Label)
		}
		choice, err := p.Select(message, labels, f.OptionLabel(current), help)
		if err != nil {
			return "", err
		}
		for _, o := range f.Options {
			if o.Label == choice {
				return o.Value, nil
			}
		}
		return "", nil

	case forms.FieldTextarea:
		if f.Multiple {
			current = strings.Join(values.Strings(f.Name), "\n")
		}
		return p.Multiline(message, current, help)

	default:
		return p.Input(message, current, help)
	}
}

func printErrors(w io.Writer, v wizard.View) {
	for _, f := range v.Schema.SectionFields(v.Current) {
		if msg := v.Error(f.Name); msg != "" {
			printf(w, "  ✗ %s: %s\n", f.Label, msg)
		}
	}
	if msg := v.FormError(); msg != "" {
		printf(w, "  ✗ %s\n", msg)
	}
}

func printReview(w io.Writer, v wizard.View) {
	printf(w, "\nReview\n")
	for i, section := range v.Schema.Sections {
		if len(section.Fields) == 0 {
			continue
		}
		printf(w, "  %s\n", section.Title)
		for _, f := range v.Schema.SectionFields(i) {
			if f.Type == forms.FieldHidden || !v.Schema.Visible(f, v.Values) {
				continue
			}
			printf(w, "    %s: %s\n", f.Label, components.DisplayValue(f, v.Values))
		}
	}
}
