// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianStudio/services/studio/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the studio service in the foreground",
	Long: `Serve starts the collaborative editing backend: the websocket
gateway, the app store, and the REST API. Configuration comes from
STUDIO_CONFIG_FILE plus environment overrides. Stops on SIGINT/SIGTERM.`,
	RunE: runServeCommand,
}

func runServeCommand(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return server.Run(ctx)
}
