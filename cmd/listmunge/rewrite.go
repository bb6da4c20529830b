package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fenilsonani/listmunge/internal/batch"
	"github.com/fenilsonani/listmunge/internal/message"
)

var (
	listName      string
	metaFile      string
	digest        bool
	fastTrack     bool
	printMetadata bool
)

// metadata builds the per-message metadata from --meta and the flags
func metadata() (*message.Metadata, error) {
	md := &message.Metadata{}
	if metaFile != "" {
		var err error
		md, err = message.LoadMetadata(metaFile)
		if err != nil {
			return nil, err
		}
	}
	md.IsDigest = md.IsDigest || digest
	md.FastTrack = md.FastTrack || fastTrack
	return md, nil
}

var rewriteCmd = &cobra.Command{
	Use:   "rewrite [file]",
	Short: "Rewrite the Subject of one message",
	Long: `Reads a message from file, or stdin when no file is given, runs it
through the list pipeline and writes the result to stdout.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := setup()
		if err != nil {
			return err
		}
		defer rt.Close()

		runner, err := rt.runner(listName)
		if err != nil {
			return err
		}
		md, err := metadata()
		if err != nil {
			return err
		}

		var in io.Reader = os.Stdin
		if len(args) == 1 {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open message: %w", err)
			}
			defer f.Close()
			in = f
		}

		msg, err := message.Read(in)
		if err != nil {
			return fmt.Errorf("failed to parse message: %w", err)
		}
		if err := runner.Process(cmd.Context(), msg, md); err != nil {
			return err
		}
		if _, err := msg.WriteTo(cmd.OutOrStdout()); err != nil {
			return fmt.Errorf("failed to write message: %w", err)
		}

		if printMetadata {
			enc := json.NewEncoder(cmd.ErrOrStderr())
			enc.SetIndent("", "  ")
			return enc.Encode(md)
		}
		return nil
	},
}

// signalContext is cancelled on SIGINT or SIGTERM so batch runs stop
// between messages.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func newBatch(rt *app) (*batch.Batch, error) {
	runner, err := rt.runner(listName)
	if err != nil {
		return nil, err
	}
	md, err := metadata()
	if err != nil {
		return nil, err
	}
	b := batch.New(runner, rt.logger)
	b.Metadata = *md
	return b, nil
}

func printStats(cmd *cobra.Command, st *batch.Stats) {
	fmt.Fprintf(cmd.OutOrStdout(), "Run %s: %d processed, %d failed in %s\n",
		st.RunID, st.Processed, st.Failed, st.Duration.Round(time.Millisecond))
}

var maildirCmd = &cobra.Command{
	Use:   "maildir <src> <dst>",
	Short: "Rewrite every message of a Maildir into another Maildir",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := setup()
		if err != nil {
			return err
		}
		defer rt.Close()

		b, err := newBatch(rt)
		if err != nil {
			return err
		}

		ctx, stop := signalContext()
		defer stop()

		st, err := b.Maildir(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		printStats(cmd, st)
		return nil
	},
}

var mboxCmd = &cobra.Command{
	Use:   "mbox <in> <out>",
	Short: "Rewrite every message of an mbox file into a new mbox file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := setup()
		if err != nil {
			return err
		}
		defer rt.Close()

		b, err := newBatch(rt)
		if err != nil {
			return err
		}

		in, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open mbox: %w", err)
		}
		defer in.Close()

		out, err := os.OpenFile(args[1], os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0640)
		if err != nil {
			return fmt.Errorf("failed to create mbox: %w", err)
		}

		ctx, stop := signalContext()
		defer stop()

		st, err := b.Mbox(ctx, in, out)
		if cerr := out.Close(); err == nil && cerr != nil {
			err = cerr
		}
		if err != nil {
			return err
		}
		printStats(cmd, st)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{rewriteCmd, maildirCmd, mboxCmd} {
		c.Flags().StringVarP(&listName, "list", "l", "", "list name or List-Id (may be omitted when only one list is configured)")
		c.Flags().StringVar(&metaFile, "meta", "", "JSON file with message metadata")
		c.Flags().BoolVar(&digest, "digest", false, "treat messages as digests")
		c.Flags().BoolVar(&fastTrack, "fasttrack", false, "treat messages as fast-tracked")
	}
	rewriteCmd.Flags().BoolVar(&printMetadata, "print-metadata", false, "print the resulting metadata as JSON to stderr")
}
