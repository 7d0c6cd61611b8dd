package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"
	"ucdresults-backend/cmd/ucdresults/commands"
	"ucdresults-backend/internal/components/telemetry"
	"ucdresults-backend/pkg/serviceutil"
)

func main() {
	ctx := serviceutil.SignalContext()
	telemetry.InitSlog(true)

	tel, err := telemetry.SetupFromEnv(ctx, "ucdresults")
	if err != nil {
		serviceutil.Fatal("setup telemetry", err)
	}

	err = commands.ExecuteContext(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	if shutdownErr := tel.Shutdown(shutdownCtx); shutdownErr != nil {
		slog.Warn("shutdown telemetry", "err", shutdownErr)
	}
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
