package commands

import (
	"log/slog"
	"os"
	"time"

	"tap-pingdom/lib/cliutil"
	"tap-pingdom/lib/configutil"
	"tap-pingdom/lib/emit"
	"tap-pingdom/lib/pingdom"
	"tap-pingdom/lib/statestore"
	"tap-pingdom/lib/telemetry"

	"github.com/spf13/cobra"
)

var syncConfig *string
var syncState *string
var syncStreams *[]string
var syncAll *bool

func init() {
	syncConfig = syncCmd.Flags().String("config", "config.json5", "The tap configuration file.")
	syncState = syncCmd.Flags().String("state", "", "Bookmark database path, overrides the config's `state` entry.")
	syncStreams = syncCmd.Flags().StringArray("stream", nil, "Sync only the named stream (repeatable).")
	syncAll = syncCmd.Flags().Bool("all", false, "Include the streams that require special account permissions.")
	rootCmd.AddCommand(syncCmd)
}

var syncCmd = &cobra.Command{
	Use:   "sync [--config <config.json5>] [--state <path>] [--stream <name>]... [--all]",
	Short: "Extracts the configured streams and writes records to stdout.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := configutil.ReadConfig[pingdom.Config](*syncConfig)
		if err != nil {
			cliutil.Fatal("failed to read config", err)
		}
		if err := cfg.Validate(); err != nil {
			cliutil.Fatal("invalid config", err)
		}

		telemetry.InstrumentPerfStats(cmd.Context())

		var store *statestore.Store
		statePath := cfg.StateFile
		if *syncState != "" {
			statePath = *syncState
		}
		if statePath != "" {
			store, err = statestore.Open(statePath)
			if err != nil {
				cliutil.Fatal("failed to open bookmark database", err)
			}
			defer store.Close()
		}

		streams := pingdom.Roots(*syncAll)
		if len(*syncStreams) > 0 {
			streams = nil
			for _, name := range *syncStreams {
				s := pingdom.Lookup(name)
				if s == nil {
					slog.Error("unknown stream", "name", name)
					os.Exit(1)
				}
				streams = append(streams, s)
			}
		}

		t1 := time.Now()
		err = pingdom.Sync(cmd.Context(), pingdom.SyncOptions{
			Client:  pingdom.NewClient(cfg),
			Config:  cfg,
			Emitter: emit.NewWriter(os.Stdout),
			State:   store,
			Streams: streams,
		})
		if err != nil {
			cliutil.Fatal("sync failed", err)
		}

		slog.Info("sync time", "seconds", time.Since(t1).Seconds())
	},
}
