// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Attune Contributors

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	attuneerr "github.com/attune-dev/attune/pkg/errors"
)

func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the assistant",
		Long: `Start an interactive conversation. Messages recognized as corrections
or preferences are learned instead of answered; everything else gets a
reply grounded in previously validated facts.

Meta commands inside the session:
  /facts     show how many validated facts are stored
  /prefs     show the preferences learned this session
  /temp <v>  set the generation temperature (0 to 2)
  /clear     clear the conversation history
  /quit      leave the session`,
		Args: cobra.NoArgs,
		RunE: runChat,
	}
	cmd.Flags().StringP("message", "m", "", "send a single message and exit")
	return cmd
}

func runChat(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	app, err := WireApp(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	ctx := cmd.Context()

	if msg, _ := cmd.Flags().GetString("message"); msg != "" {
		reply, err := app.Dispatcher.Handle(ctx, msg)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), reply)
		return nil
	}

	return runREPL(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), app)
}

func runREPL(ctx context.Context, in io.Reader, out io.Writer, app *App) error {
	fmt.Fprintf(out, "attune %s/%s ready. /quit to leave, /facts /prefs /temp /clear inside.\n",
		app.Config.Oracle.Backend, app.Config.Oracle.Model)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "you> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			quit, err := runMetaCommand(ctx, out, app, line)
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
			if quit {
				return nil
			}
			continue
		}

		reply, err := app.Dispatcher.Handle(ctx, line)
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		fmt.Fprintf(out, "attune> %s\n", reply)
	}
	return scanner.Err()
}

// runMetaCommand handles the slash commands of the interactive session.
// It reports whether the session should end.
func runMetaCommand(ctx context.Context, out io.Writer, app *App, line string) (bool, error) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true, nil

	case "/facts":
		facts, err := app.Base.FactCount(ctx)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(out, "%d validated fact(s) stored.\n", facts)
		return false, nil

	case "/prefs":
		prefs := app.Base.Preferences()
		if len(prefs) == 0 {
			fmt.Fprintln(out, "No preferences learned this session.")
			return false, nil
		}
		keys := make([]string, 0, len(prefs))
		for k := range prefs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(out, "%s: %s\n", k, prefs[k])
		}
		return false, nil

	case "/temp":
		if len(fields) != 2 {
			return false, attuneerr.New(attuneerr.CodeCLIInputInvalid, "usage: /temp <value>")
		}
		temp, err := strconv.ParseFloat(fields[1], 64)
		if err != nil || temp < 0 || temp > 2 {
			return false, attuneerr.New(attuneerr.CodeCLIInputInvalid, "temperature must be a number between 0 and 2",
				attuneerr.Field("value", fields[1]))
		}
		app.Loop.SetTemperature(temp)
		fmt.Fprintf(out, "Temperature set to %.2f.\n", temp)
		return false, nil

	case "/clear":
		app.Loop.ClearHistory()
		fmt.Fprintln(out, "Conversation history cleared.")
		return false, nil

	default:
		return false, attuneerr.New(attuneerr.CodeCLIInputInvalid, "unknown command (try /facts, /prefs, /temp, /clear, /quit)",
			attuneerr.Field("command", fields[0]))
	}
}
