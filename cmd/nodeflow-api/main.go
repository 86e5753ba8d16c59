package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	cli "github.com/urfave/cli/v3"
)

const (
	defaultPort       = 9091
	defaultKindsPath  = "./node-kinds"
	defaultEnvFile    = ".env"
	flagPort          = "port"
	flagDatabaseURL   = "database-url"
	flagEventBus      = "event-bus"
	flagKafkaBrokers  = "kafka-brokers"
	flagCacheURL      = "cache-url"
	flagCacheTTL      = "cache-ttl"
	flagCacheCodec    = "cache-codec"
	flagCacheCompress = "cache-compression"
	flagLogLevel      = "log-level"
	flagTimeout       = "request-timeout"
	flagDefaultPage   = "default-page"
	flagDefaultSize   = "default-page-size"
	flagMinSize       = "min-page-size"
	flagMaxSize       = "max-page-size"
	flagPremium       = "premium-principals"
	flagOTelEnabled   = "otel-enabled"
	flagNodeKindsPath = "node-kinds-path"
)

func main() {
	err := godotenv.Load(defaultEnvFile)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load %s: %v\n", defaultEnvFile, err)
	}

	cmd := &cli.Command{
		Name:                  "nodeflow-api",
		Usage:                 "Create, list and edit workflow graphs",
		EnableShellCompletion: true,
		Flags:                 flags(),
		Action:                run,
	}

	err = cmd.Run(context.Background(), os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
