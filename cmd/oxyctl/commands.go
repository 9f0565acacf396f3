package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/oxyledger/oxyregistry/internal/client"
	"github.com/oxyledger/oxyregistry/internal/domain/activity"
	"github.com/oxyledger/oxyregistry/internal/rpc"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultEndpoint = "http://localhost:8080"

func newRootCmd(out io.Writer) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("OXY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	v.SetDefault("endpoint", defaultEndpoint)

	root := &cobra.Command{
		Use:           "oxyctl",
		Short:         "Command line client for the OXY token registry",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.PersistentFlags().String("endpoint", defaultEndpoint, "registry server base URL (env OXY_ENDPOINT)")
	root.PersistentFlags().String("token", "", "bearer token (env OXY_TOKEN)")
	_ = v.BindPFlag("endpoint", root.PersistentFlags().Lookup("endpoint"))
	_ = v.BindPFlag("token", root.PersistentFlags().Lookup("token"))

	newClient := func() *client.Client {
		return client.New(v.GetString("endpoint"), client.WithToken(v.GetString("token")))
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "create-project",
			Short: "Register a new project",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				id, err := newClient().CreateProject(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), rpc.ProjectCreated{ProjectID: id})
			},
		},
		&cobra.Command{
			Use:   "create-batch <projectId>",
			Short: "Create a token batch under a project",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				projectID, err := parseID("projectId", args[0])
				if err != nil {
					return err
				}
				id, err := newClient().CreateNewTokenBatch(cmd.Context(), projectID)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), rpc.BatchCreated{ProjectID: projectID, TokenID: id})
			},
		},
		&cobra.Command{
			Use:     "mint <tokenId> <amount> <serialNumber>",
			Short:   "Attach an amount and serial number to a batch",
			Example: `  oxyctl mint 1 1000 ABCD1000`,
			Args:    cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				tokenID, err := parseID("tokenId", args[0])
				if err != nil {
					return err
				}
				amount, err := parseID("amount", args[1])
				if err != nil {
					return err
				}
				if err := newClient().Mint(cmd.Context(), tokenID, amount, args[2]); err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), rpc.Minted{TokenID: tokenID, Amount: amount, SerialNumber: args[2]})
			},
		},
		&cobra.Command{
			Use:   "counters",
			Short: "Show projectsCreated and tokenIds",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				projects, tokens, err := newClient().Counters(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]uint64{
					"projectsCreated": projects,
					"tokenIds":        tokens,
				})
			},
		},
		&cobra.Command{
			Use:   "batch <tokenId>",
			Short: "Show a batch and its mint record",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				tokenID, err := parseID("tokenId", args[0])
				if err != nil {
					return err
				}
				b, err := newClient().Batch(cmd.Context(), tokenID)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), b)
			},
		},
		newActivityCmd(newClient),
	)

	return root
}

func newActivityCmd(newClient func() *client.Client) *cobra.Command {
	var params rpc.ActivityParams
	var entryType string

	cmd := &cobra.Command{
		Use:   "activity",
		Short: "List ledger entries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if entryType != "" {
				t := activity.Type(entryType)
				params.Type = &t
			}
			entries, err := newClient().RecentActivity(cmd.Context(), params)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), entries)
		},
	}
	cmd.Flags().Uint64Var(&params.ProjectID, "project", 0, "only entries for this project")
	cmd.Flags().Uint64Var(&params.TokenID, "batch", 0, "only entries for this batch")
	cmd.Flags().StringVar(&entryType, "type", "", "project_created, batch_created or batch_minted")
	cmd.Flags().Uint64Var(&params.AfterSeq, "after", 0, "only entries after this sequence number, oldest first")
	cmd.Flags().IntVarP(&params.Limit, "limit", "n", 0, "maximum entries (server default 50)")
	return cmd
}

func parseID(name, s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: must be an unsigned integer", name, s)
	}
	return v, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
