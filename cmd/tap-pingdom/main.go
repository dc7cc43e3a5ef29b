package main

import (
	"context"

	"tap-pingdom/cmd/tap-pingdom/commands"
	"tap-pingdom/lib/cliutil"
	"tap-pingdom/lib/telemetry"
)

func main() {
	ctx := cliutil.SignalContext()

	telemetry.InitSlog(false)
	t, err := telemetry.SetupFromEnv(ctx, "tap-pingdom")
	if err != nil {
		cliutil.Fatal("failed to setup telemetry", err)
	}
	defer t.Shutdown(context.Background())

	commands.ExecuteContext(ctx)
}
