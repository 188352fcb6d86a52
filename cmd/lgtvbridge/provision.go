package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-lgtv/internal/bridges/lgtv"
)

func newPortsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List serial ports a TV can be configured on",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			ports, err := s.provisioner.Ports()
			if err != nil {
				return fmt.Errorf("listing serial ports: %w", err)
			}
			if len(ports) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no serial ports found")
				return nil
			}
			for _, p := range ports {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}
}

func newProvisionCmd() *cobra.Command {
	var tvID int

	cmd := &cobra.Command{
		Use:   "provision PORT",
		Short: "Validate and add a TV",
		Long: `Validate the TV on PORT and store it.

The TV is asked for its power status. If it does not answer, it is sent
"power on" twice; a TV woken this way is switched back off and given time
to settle before it is stored. Stop a running bridge first, or use the
HTTP API, so the serial port is free.

Errors use the form keys cannot_connect, value_error and exception.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			e, err := s.provisioner.Provision(cmd.Context(), args[0], tvID)
			if err != nil {
				return formError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %s (%s) on %s as %s\n", e.Title, e.UniqueID, e.Port, e.ID)
			return nil
		},
	}
	cmd.Flags().IntVar(&tvID, "tv-id", 0, "Set ID configured on the TV (0-99)")
	return cmd
}

func newOptionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "options ENTRY_ID TV_ID",
		Short: "Change the set ID an entry talks to",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tvID, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("%s: TV_ID must be a number", lgtv.ErrKeyValueError)
			}

			s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			e, err := s.provisioner.SetOptions(cmd.Context(), args[0], tvID)
			if err != nil {
				return formError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s now uses set ID %d\n", e.Title, e.EffectiveTVID())
			return nil
		},
	}
}

func newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove ENTRY_ID",
		Short: "Remove a TV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.provisioner.Remove(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("removing %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
			return nil
		},
	}
}

// formError prefixes err with its form key.
func formError(err error) error {
	if errors.Is(err, lgtv.ErrAlreadyConfigured) {
		return fmt.Errorf("already_configured: %w", err)
	}
	return fmt.Errorf("%s: %w", lgtv.Classify(err), err)
}
