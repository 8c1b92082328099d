package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/wondertwin-ai/twin-paypal/internal/client"
)

const defaultAdminURL = "http://localhost:12112"

func newAdminCmd() *cobra.Command {
	var url string

	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Control a running twin through its /admin endpoints",
	}
	cmd.PersistentFlags().StringVar(&url, "url", defaultAdminURL, "base URL of the running twin")

	c := func() *client.AdminClient { return client.New(url) }

	// printed runs op and writes its response body to stdout.
	printed := func(op func(cmd *cobra.Command, args []string) (string, error)) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			out, err := op(cmd, args)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "health",
			Short: "Check the twin is reachable",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				ok, msg := c().Health(cmd.Context())
				fmt.Fprintln(cmd.OutOrStdout(), msg)
				if !ok {
					return errors.New("twin is not healthy")
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Clear all state, faults and the request log",
			Args:  cobra.NoArgs,
			RunE: printed(func(cmd *cobra.Command, args []string) (string, error) {
				return c().Reset(cmd.Context())
			}),
		},
		&cobra.Command{
			Use:   "state",
			Short: "Print the twin's state as JSON",
			Args:  cobra.NoArgs,
			RunE: printed(func(cmd *cobra.Command, args []string) (string, error) {
				return c().State(cmd.Context())
			}),
		},
		&cobra.Command{
			Use:   "seed FILE",
			Short: "Replace the twin's state with a JSON or YAML file",
			Args:  cobra.ExactArgs(1),
			RunE: printed(func(cmd *cobra.Command, args []string) (string, error) {
				return c().Seed(cmd.Context(), args[0])
			}),
		},
		&cobra.Command{
			Use:   "respond STATUS [BODY]",
			Short: "Answer every API request with a fixed status and body",
			Args:  cobra.RangeArgs(1, 2),
			RunE: printed(func(cmd *cobra.Command, args []string) (string, error) {
				status, err := strconv.Atoi(args[0])
				if err != nil {
					return "", fmt.Errorf("invalid status %q: %w", args[0], err)
				}
				var body string
				if len(args) == 2 {
					body = args[1]
				}
				return c().Respond(cmd.Context(), status, body)
			}),
		},
		&cobra.Command{
			Use:   "approve SUBSCRIPTION_ID",
			Short: "Approve a pending subscription as the buyer would",
			Args:  cobra.ExactArgs(1),
			RunE: printed(func(cmd *cobra.Command, args []string) (string, error) {
				return c().ApproveSubscription(cmd.Context(), args[0])
			}),
		},
		&cobra.Command{
			Use:   "advance DURATION",
			Short: "Move the twin clock forward, e.g. 24h",
			Args:  cobra.ExactArgs(1),
			RunE: printed(func(cmd *cobra.Command, args []string) (string, error) {
				d, err := time.ParseDuration(args[0])
				if err != nil {
					return "", fmt.Errorf("invalid duration %q: %w", args[0], err)
				}
				return c().AdvanceTime(cmd.Context(), d)
			}),
		},
		&cobra.Command{
			Use:   "flush",
			Short: "Deliver queued webhook events",
			Args:  cobra.NoArgs,
			RunE: printed(func(cmd *cobra.Command, args []string) (string, error) {
				return c().FlushWebhooks(cmd.Context())
			}),
		},
	)
	return cmd
}
