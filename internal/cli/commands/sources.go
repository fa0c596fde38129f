package commands

import (
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/querylens/querylens/internal/history"
)

type sourceInfo struct {
	Name     string `json:"name,omitempty"`
	Type     string `json:"type"`
	Location string `json:"location,omitempty"`
}

type sourcesPayload struct {
	Registered []string     `json:"registered"`
	Active     sourceInfo   `json:"active"`
	Configured []sourceInfo `json:"configured,omitempty"`
}

// NewSourcesCommand creates the sources command.
func NewSourcesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List registered source types and configured sources",
		Long: `List the history source types compiled into this binary and the
named sources configured in querylens.yaml or the sources file.

Pass a configured name to build or serve with --source.`,
		Example: `  # Show everything
  querylens sources

  # Machine-readable listing
  querylens sources --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSources(cmd)
		},
	}
}

func runSources(cmd *cobra.Command) error {
	cmdCtx := NewCommandContext(cmd)
	cfg := cmdCtx.Cfg
	r := cmdCtx.Renderer

	payload := sourcesPayload{
		Registered: history.ListSources(),
	}
	if cfg.Source != nil {
		payload.Active = sourceInfo{
			Type:     cfg.Source.Type,
			Location: sourceLocation(cfg.Source),
		}
	}

	names := make([]string, 0, len(cfg.Sources))
	for name := range cfg.Sources {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		src := cfg.Sources[name]
		payload.Configured = append(payload.Configured, sourceInfo{
			Name:     name,
			Type:     src.Type,
			Location: sourceLocation(src),
		})
	}

	if r.IsJSON() {
		return r.JSON(payload)
	}

	r.Println(r.Styles().Bold.Render("Registered source types"))
	t := r.NewTable()
	t.AppendHeader(table.Row{"Type"})
	for _, name := range payload.Registered {
		t.AppendRow(table.Row{name})
	}
	r.RenderTable(t)
	r.Println()

	r.Println(r.Styles().Bold.Render("Active source"))
	t = r.NewTable()
	t.AppendHeader(table.Row{"Type", "Location"})
	t.AppendRow(table.Row{payload.Active.Type, payload.Active.Location})
	r.RenderTable(t)

	if len(payload.Configured) > 0 {
		r.Println()
		r.Println(r.Styles().Bold.Render("Configured sources"))
		t = r.NewTable()
		t.AppendHeader(table.Row{"Name", "Type", "Location"})
		for _, src := range payload.Configured {
			t.AppendRow(table.Row{src.Name, src.Type, src.Location})
		}
		r.RenderTable(t)
	}

	return nil
}

// sourceLocation summarizes where a source reads from. File-backed
// sources report their path, network sources their endpoint.
func sourceLocation(src *history.Config) string {
	if src.Host != "" {
		loc := src.Host
		if src.Database != "" {
			loc += "/" + src.Database
		}
		return loc
	}
	return src.Path
}
