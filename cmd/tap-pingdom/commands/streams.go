package commands

import (
	"os"
	"strings"

	"tap-pingdom/lib/pingdom"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(streamsCmd)
}

var streamsCmd = &cobra.Command{
	Use:   "streams",
	Short: "Prints the streams this tap knows how to extract.",
	Run: func(cmd *cobra.Command, args []string) {
		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Stream", "Path", "Primary Keys", "Replication Key", "Page Size", "Restricted"})

		for _, s := range pingdom.All() {
			restricted := ""
			if s.Restricted {
				restricted = "yes"
			}
			t.AppendRow(table.Row{
				s.Name,
				s.Path,
				strings.Join(s.PrimaryKeys, ", "),
				s.ReplicationKey,
				s.PageSize,
				restricted,
			})
		}

		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
