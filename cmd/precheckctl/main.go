// Command precheckctl runs engine operations offline: scan a message with
// the local pattern matcher, redact it with a chosen strategy, verify an
// audit chain, or list recently audited decisions.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nostalgicskinco/precheck-engine/pkg/audit"
	"github.com/nostalgicskinco/precheck-engine/pkg/patterns"
	"github.com/nostalgicskinco/precheck-engine/pkg/redactor"
)

func main() {
	root := &cobra.Command{
		Use:           "precheckctl",
		Short:         "Offline tooling for the PII precheck engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(scanCmd(), redactCmd(), verifyCmd(), recentCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func scanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan <text>",
		Short: "Detect PII in a message with the local pattern matcher",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result := patterns.Detect(args[0])
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
}

func redactCmd() *cobra.Command {
	var strategyName string

	cmd := &cobra.Command{
		Use:   "redact <text>",
		Short: "Redact detected PII in a message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			strategy, err := redactor.ParseStrategy(strategyName)
			if err != nil {
				return err
			}

			result := patterns.Detect(args[0])
			redacted, log := redactor.Redact(args[0], result.Entities, strategy)

			fmt.Println(redacted)
			for _, entry := range log {
				if entry.Note != "" {
					fmt.Fprintf(os.Stderr, "  %s: %s\n", entry.Kind, entry.Note)
					continue
				}
				fmt.Fprintf(os.Stderr, "  %s: %q -> %q\n", entry.Kind, entry.Original, entry.Redacted)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&strategyName, "strategy", "s", "FULL",
		"redaction strategy (FULL, PARTIAL, HASH, SMART)")
	return cmd
}

func verifyCmd() *cobra.Command {
	var secret string

	cmd := &cobra.Command{
		Use:   "verify <chain.jsonl>",
		Short: "Verify the integrity of an audit chain file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			valid, brokenAt, err := audit.VerifyFile(args[0], secret)
			if err != nil && !valid {
				if brokenAt > 0 {
					return fmt.Errorf("chain INVALID at sequence %d: %w", brokenAt, err)
				}
				return err
			}
			fmt.Println("chain OK")
			return nil
		},
	}

	cmd.Flags().StringVar(&secret, "secret", os.Getenv("PRECHECK_CHAIN_SECRET"),
		"HMAC signing key used by the audit file sink")
	return cmd
}

func recentCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "recent <audit.db>",
		Short: "List recent audited decisions from a sqlite audit store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := audit.NewSQLiteStore(args[0])
			if err != nil {
				return err
			}
			defer store.Close(context.Background())

			events, err := store.Recent(context.Background(), limit)
			if err != nil {
				return err
			}
			for _, ev := range events {
				fmt.Printf("%s  %-6s  pii=%-5v  risk=%-3d  len=%d  %s\n",
					ev.Timestamp.Format("2006-01-02 15:04:05"),
					ev.Action, ev.HasPII, ev.RiskScore, ev.MessageLength, ev.CorrID)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of events to show")
	return cmd
}
