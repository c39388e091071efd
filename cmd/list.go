package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"friday/pkg/api"
	"friday/pkg/monitor"
)

var listOutputFormat string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the capability catalog",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, sys, err := loadConfig(false)
		if err != nil {
			return err
		}
		monitor.SetupSlog(sys.LogLevel)

		a, err := newApp(cfg, sys, monitor.Nop{})
		if err != nil {
			return err
		}
		return printCatalog(cmd.OutOrStdout(), a.dispatcher.Catalog(), listOutputFormat)
	},
}

func init() {
	listCmd.Flags().StringVarP(&listOutputFormat, "output", "o", "table", "Output format (table, json, text)")
	rootCmd.AddCommand(listCmd)
}

func printCatalog(w io.Writer, catalog []api.Descriptor, format string) error {
	switch format {
	case "json":
		data, err := json.MarshalIndent(catalog, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "text":
		for _, d := range catalog {
			fmt.Fprintf(w, "%s [%s]: %s\n", d.Signature(), d.Effect, d.Description)
		}
		return nil
	case "table":
	default:
		return fmt.Errorf("unknown output format %q", format)
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{
		text.FgHiCyan.Sprint("CAPABILITY"),
		text.FgHiCyan.Sprint("EFFECT"),
		text.FgHiCyan.Sprint("PARAMETERS"),
		text.FgHiCyan.Sprint("DESCRIPTION"),
	})
	for _, d := range catalog {
		name := d.Name
		if len(d.Providers) > 0 {
			name = text.FgHiBlue.Sprint(name)
		}
		t.AppendRow(table.Row{name, d.Effect, params(d.Params), describe(d)})
	}
	t.AppendFooter(table.Row{"", "", "Total:", len(catalog)})
	t.Render()
	return nil
}

func params(ps []api.Param) string {
	parts := make([]string, 0, len(ps))
	for _, p := range ps {
		name := p.Name
		if !p.Required {
			name += "?"
		}
		parts = append(parts, fmt.Sprintf("%s: %s", name, p.Type))
	}
	return strings.Join(parts, "\n")
}

func describe(d api.Descriptor) string {
	if len(d.Providers) == 0 {
		return d.Description
	}
	return fmt.Sprintf("%s\n(tries %s)", d.Description, strings.Join(d.Providers, ", "))
}
