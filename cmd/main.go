/*
Copyright 2025 Outbound Labs Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"fmt"
	"log"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/outboundlabs/relay"
	"github.com/outboundlabs/relay/config"
	"github.com/outboundlabs/relay/database"
	"github.com/outboundlabs/relay/internal/notification"
)

// Relay represents the CLI application, encapsulating the root Cobra command.
type Relay struct {
	cmd *cobra.Command
}

// relayInstance holds the pipeline instance and its configuration, shared
// by all subcommands after preRun.
type relayInstance struct {
	relay *relay.Relay
	cnf   *config.Configuration
}

func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads the configuration and initializes the pipeline before any
// subcommand executes.
func preRun(app *relayInstance) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig("relay.json")
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		newRelay, err := setupRelay(cnf)
		if err != nil {
			notification.NotifyError(err)
			log.Fatal(err)
		}

		app.relay = newRelay
		app.cnf = cnf

		return nil
	}
}

// setupRelay connects the datasource and wires the pipeline with the
// collaborators named in the providers configuration.
func setupRelay(cfg *config.Configuration) (*relay.Relay, error) {
	db, err := database.NewDataSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("error getting datasource: %v", err)
	}

	newRelay, err := relay.NewRelay(db, relay.CollaboratorsFromConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("error creating relay: %v", err)
	}
	return newRelay, nil
}

// NewCLI creates the command-line interface for the Relay application.
func NewCLI() *Relay {
	var configFile string
	r := &relayInstance{}

	var rootCmd = &cobra.Command{
		Use:   "relay",
		Short: "Outreach dispatch pipeline",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./relay.json", "Configuration file for the pipeline")

	rootCmd.PersistentPreRunE = preRun(r)

	rootCmd.AddCommand(workerCommands(r))
	rootCmd.AddCommand(migrateCommands(r))

	return &Relay{cmd: rootCmd}
}

func (w Relay) executeCLI() {
	if err := w.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
