package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/fenilsonani/listmunge/internal/journal"
	"github.com/fenilsonani/listmunge/internal/lists"
)

var listsCmd = &cobra.Command{
	Use:   "lists",
	Short: "List the configured mailing lists",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := lists.RegistryFromConfig(cfg.Lists, nil)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%-20s %-30s %-20s %-8s %s\n", "NAME", "LIST-ID", "PREFIX", "LANG", "CHARSET")
		fmt.Fprintln(out, "--------------------------------------------------------------------------------------")
		for _, l := range registry.Lists() {
			fmt.Fprintf(out, "%-20s %-30s %-20q %-8s %s\n",
				l.Name, l.ListID, l.SubjectPrefix, l.PreferredLanguage.Code, l.PreferredLanguage.Charset)
		}
		return nil
	},
}

// Sequence commands
var sequenceCmd = &cobra.Command{
	Use:   "sequence",
	Short: "Inspect and change list post sequences",
}

var sequenceShowCmd = &cobra.Command{
	Use:   "show [list|list-id]",
	Short: "Show the next post id of one or all lists",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := setup()
		if err != nil {
			return err
		}
		defer rt.Close()

		names := make([]string, 0)
		if len(args) == 1 {
			l, err := rt.registry.Find(args[0])
			if err != nil {
				return err
			}
			names = append(names, l.Name)
		} else {
			for _, l := range rt.registry.Lists() {
				names = append(names, l.Name)
			}
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%-20s %s\n", "LIST", "POST-ID")
		for _, name := range names {
			l, err := rt.registry.Resolve(cmd.Context(), name)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%-20s %d\n", l.Name, l.PostID)
		}
		return nil
	},
}

var sequenceNextCmd = &cobra.Command{
	Use:   "next <list|list-id>",
	Short: "Advance a list's post sequence",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := setup()
		if err != nil {
			return err
		}
		defer rt.Close()

		l, err := rt.registry.Find(args[0])
		if err != nil {
			return err
		}
		if _, err := rt.registry.Resolve(cmd.Context(), l.Name); err != nil {
			return err
		}
		n, err := rt.registry.Advance(cmd.Context(), l.Name)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: next post id is %d\n", l.Name, n)
		return nil
	},
}

var sequenceSetCmd = &cobra.Command{
	Use:   "set <list|list-id> <post-id>",
	Short: "Set a list's next post id",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 0 {
			return fmt.Errorf("invalid post id: %s", args[1])
		}

		rt, err := setup()
		if err != nil {
			return err
		}
		defer rt.Close()

		l, err := rt.registry.Find(args[0])
		if err != nil {
			return err
		}
		if err := rt.seq.Set(cmd.Context(), l.Name, n); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: next post id set to %d\n", l.Name, n)
		return nil
	},
}

var (
	journalList     string
	journalStrategy string
	journalSince    time.Duration
	journalLimit    int
	journalJSON     bool
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Show recorded Subject rewrites",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.Journal.Enabled {
			return fmt.Errorf("journal is disabled (set journal.enabled in the config)")
		}

		j, err := journal.Open(cfg.Journal.DatabasePath)
		if err != nil {
			return err
		}
		defer j.Close()

		filter := journal.Filter{
			List:     journalList,
			Strategy: journalStrategy,
			Limit:    journalLimit,
		}
		if journalSince > 0 {
			filter.Since = time.Now().Add(-journalSince)
		}

		entries, err := j.Query(cmd.Context(), filter)
		if err != nil {
			return fmt.Errorf("failed to query journal: %w", err)
		}

		out := cmd.OutOrStdout()
		if journalJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		}

		fmt.Fprintf(out, "%-20s %-12s %-8s %s\n", "TIME", "LIST", "STRATEGY", "SUBJECT")
		fmt.Fprintln(out, "--------------------------------------------------------------------------------------")
		for _, e := range entries {
			fmt.Fprintf(out, "%-20s %-12s %-8s %s\n",
				e.Timestamp.Local().Format("2006-01-02 15:04:05"), e.List, e.Strategy, e.Stripped)
		}
		return nil
	},
}

func init() {
	journalCmd.Flags().StringVar(&journalList, "list", "", "only show this list")
	journalCmd.Flags().StringVar(&journalStrategy, "strategy", "", "only show this strategy (ascii, uniform, mixed)")
	journalCmd.Flags().DurationVar(&journalSince, "since", 0, "only show rewrites newer than this, e.g. 24h")
	journalCmd.Flags().IntVarP(&journalLimit, "limit", "n", 20, "maximum number of entries")
	journalCmd.Flags().BoolVar(&journalJSON, "json", false, "print entries as JSON")
}
