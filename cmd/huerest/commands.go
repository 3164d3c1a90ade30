package main

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"hue-rest-client/internal/domain/service"
)

func pairCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "pair",
		Short: "Register with the bridge (press the link button first)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBridgeSession(cmd.Context(), opts, false, func(s *service.BridgeService) error {
				creds, err := s.Pair(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "paired as %s\n", creds.Username)
				return nil
			})
		},
	}
}

func areasCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "areas",
		Short: "List entertainment areas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBridge(cmd.Context(), opts, func(s *service.BridgeService) error {
				areas, err := s.EntertainmentAreas(cmd.Context())
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tLIGHTS")
				for _, a := range areas {
					ids := make([]string, len(a.LightIDs))
					for i, l := range a.LightIDs {
						ids[i] = strconv.Itoa(int(l))
					}
					fmt.Fprintf(w, "%d\t%s\t%s\n", a.ID, a.Name, strings.Join(ids, ","))
				}
				return w.Flush()
			})
		},
	}
}

func streamCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "stream <id|name>",
		Short: "Activate streaming for an entertainment area",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBridge(cmd.Context(), opts, func(s *service.BridgeService) error {
				area, err := s.StartStream(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "streaming enabled for %d (%s); connect within 10s\n", area.ID, area.Name)
				return nil
			})
		},
	}
}

func stopCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "stop <id>",
		Short: "Deactivate streaming for an entertainment area",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("area id %q: %w", args[0], err)
			}
			return withBridge(cmd.Context(), opts, func(s *service.BridgeService) error {
				if err := s.StopStream(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "streaming disabled for %d\n", id)
				return nil
			})
		},
	}
}

func whitelistCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "whitelist",
		Short: "List applications registered on the bridge",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBridge(cmd.Context(), opts, func(s *service.BridgeService) error {
				entries, err := s.Applications(cmd.Context())
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "USERNAME\tNAME\tCREATED\tLAST USED")
				for _, e := range entries {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Username, e.Name, e.CreateDate, e.LastUseDate)
				}
				return w.Flush()
			})
		},
	}
}

func revokeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <username>",
		Short: "Remove an application from the bridge whitelist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBridge(cmd.Context(), opts, func(s *service.BridgeService) error {
				if err := s.RevokeApplication(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "revoked %s\n", args[0])
				return nil
			})
		},
	}
}
