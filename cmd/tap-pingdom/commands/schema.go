package commands

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"tap-pingdom/lib/cliutil"
	"tap-pingdom/lib/pingdom"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(schemaCmd)
}

var schemaCmd = &cobra.Command{
	Use:   "schema <stream>",
	Short: "Prints the effective (patched) schema of a stream.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s := pingdom.Lookup(args[0])
		if s == nil {
			slog.Error("unknown stream", "name", args[0])
			os.Exit(1)
		}

		schema, err := s.Schema()
		if err != nil {
			cliutil.Fatal("failed to resolve schema", err)
		}

		out, err := json.MarshalIndent(schema, "", "  ")
		if err != nil {
			cliutil.Fatal("failed to marshal schema", err)
		}
		fmt.Println(string(out))
	},
}
