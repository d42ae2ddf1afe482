/*
 * Copyright 2025 Subterra Systems Ltd.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/subterra/tunnelsense/pkg/authgate"
	"github.com/subterra/tunnelsense/pkg/classifier"
	"github.com/subterra/tunnelsense/pkg/config"
	"github.com/subterra/tunnelsense/pkg/directory"
	"github.com/subterra/tunnelsense/pkg/dispatcher"
	"github.com/subterra/tunnelsense/pkg/lifecycle"
	"github.com/subterra/tunnelsense/pkg/nodeclient"
	"github.com/subterra/tunnelsense/pkg/oui"
	"github.com/subterra/tunnelsense/pkg/scheduler"
	"github.com/subterra/tunnelsense/pkg/tracker"
)

var errFailedToLoadConfig = fmt.Errorf("failed to load config")

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "/etc/tunnelsense/tunnelsense.json", "Path to tunnelsense config file")
	probe := flag.Bool("probe", true, "Probe node reachability at startup")
	flag.Parse()

	ctx := context.Background()

	var cfg Config

	cfgLoader := config.NewConfig()
	if err := cfgLoader.LoadAndValidate(ctx, *configPath, &cfg); err != nil {
		return fmt.Errorf("%w: %w", errFailedToLoadConfig, err)
	}

	mainLogger, err := lifecycle.CreateComponentLogger("tunnelsense", cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	index, err := oui.NewIndex(cfg.ExtraVendors...)
	if err != nil {
		return fmt.Errorf("failed to build vendor index: %w", err)
	}

	mainLogger.Info().Int("vendor_prefixes", index.Size()).Msg("Vendor index built")

	sink, nc, err := dispatcher.ConnectSink(ctx, cfg.NATS)
	if err != nil {
		return fmt.Errorf("failed to connect event sink: %w", err)
	}
	defer nc.Close()

	dispatcherLogger, err := lifecycle.CreateComponentLogger("dispatcher", cfg.Logging)
	if err != nil {
		return err
	}

	disp := dispatcher.New(cfg.Dispatcher, sink, dispatcherLogger)

	gateLogger, err := lifecycle.CreateComponentLogger("authgate", cfg.Logging)
	if err != nil {
		return err
	}

	lookup := directory.NewHTTPLookup(cfg.Directory, gateLogger)
	gate := authgate.New(cfg.Gate, lookup, disp, gateLogger)

	trackerLogger, err := lifecycle.CreateComponentLogger("tracker", cfg.Logging)
	if err != nil {
		return err
	}

	cls := classifier.New(index, cfg.Classifier)
	trk := tracker.New(cfg.Tracker, cls, gate, trackerLogger)

	schedulerLogger, err := lifecycle.CreateComponentLogger("scheduler", cfg.Logging)
	if err != nil {
		return err
	}

	client := nodeclient.NewHTTPClient(cfg.NodeClient, schedulerLogger)

	sched, err := scheduler.New(cfg.Monitoring, cfg.Nodes, client, trk, nil, schedulerLogger)
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	if *probe {
		sched.ProbeNodes(ctx)
	}

	// Dispatcher first so events flow before the first cycle; stopped last
	// so the buffer drains after polling ends.
	return lifecycle.Run(ctx, &lifecycle.Options{
		ServiceName: "tunnelsense",
		Services:    []lifecycle.Service{disp, sched},
		Logger:      mainLogger,
	})
}
