package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/DalmoMendonca/integral-bots/pkg/config"
	"github.com/DalmoMendonca/integral-bots/pkg/llm"
	"github.com/DalmoMendonca/integral-bots/pkg/logging"
	"github.com/DalmoMendonca/integral-bots/pkg/persona"
	"github.com/DalmoMendonca/integral-bots/pkg/state"
	"github.com/DalmoMendonca/integral-bots/pkg/types"
)

func newStateCmd() *cobra.Command {
	stateCmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect persisted run state",
	}

	var personaID string
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print seen and answered counts per persona",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.NewLogger()
			config.LoadEnv(logger)
			path := os.Getenv("STATE_PATH")
			if path == "" {
				path = "data/state.json"
			}
			if _, err := os.Stat(path); err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "No state at %s\n", path)
				return nil
			}
			st := state.NewStore(path, state.Options{Logger: logging.Discard()}).Load()
			return writeState(cmd.OutOrStdout(), st, types.PersonaID(strings.ToUpper(personaID)))
		},
	}
	showCmd.Flags().StringVar(&personaID, "persona", "", "only show this persona")

	stateCmd.AddCommand(showCmd)
	return stateCmd
}

func writeState(out io.Writer, st *state.RunState, only types.PersonaID) error {
	if st.LastRunTimestamp != nil {
		fmt.Fprintf(out, "Last run: %s\n", st.LastRunTimestamp.Format(time.RFC3339))
	} else {
		fmt.Fprintln(out, "Last run: never")
	}

	ids := st.Personas()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PERSONA\tSEEN TOPICS\tANSWERED\tPOSTS\tREPLIES\tFAILURES\tLAST POST")
	found := false
	for _, id := range ids {
		if only != "" && id != only {
			continue
		}
		found = true
		seen, answered, c := st.Snapshot(id)
		last := "-"
		if c.LastPostAt != nil {
			last = c.LastPostAt.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t%s\n", id, len(seen), len(answered),
			c.Posts, c.Replies, c.PostFailures+c.ReplyFailures+c.LoginFailures, last)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if only != "" && !found {
		return fmt.Errorf("persona %s has no state", only)
	}
	return nil
}

func newPersonasCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "personas",
		Short: "List persona profiles and whether credentials are set",
		RunE: func(cmd *cobra.Command, args []string) error {
			config.LoadEnv(logging.NewLogger())
			reg, err := loadRegistry()
			if err != nil {
				return err
			}
			return writePersonas(cmd.OutOrStdout(), reg, os.Getenv)
		},
	}
}

func writePersonas(out io.Writer, reg *persona.Registry, getenv func(string) string) error {
	creds, err := config.LoadCredentials(reg.IDs(), getenv)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTAGE\tHANDLE\tACTIVE")
	for _, p := range reg.All() {
		handle, active := "-", "no"
		if c, ok := creds[p.ID]; ok {
			handle, active = c.Handle, "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.ID, p.Stage, handle, active)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "%d of %d personas active\n", len(creds), reg.Len())
	return nil
}

func newCheckLLMCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-llm",
		Short: "Send one prompt to the configured language model",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, _, cfg, err := setup()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.CallTimeout)
			defer cancel()

			provider, err := llm.New(ctx, cfg.LLM())
			if err != nil {
				return types.Wrap(types.ErrConfiguration, err)
			}
			reply, err := llm.Ping(ctx, provider)
			if err != nil {
				return err
			}
			logger.WithField("provider", provider.Name()).Info("Language model reachable")
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", provider.Name(), reply)
			return nil
		},
	}
}
