package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-lgtv/internal/bridges/lgtv"
	"github.com/nerrad567/gray-logic-lgtv/internal/entry"
	"github.com/nerrad567/gray-logic-lgtv/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-lgtv/internal/infrastructure/logging"
)

// session is what the management commands work with: the store, a
// runtime that has loaded nothing, and a provisioner over both.
type session struct {
	store       *store
	runtime     *lgtv.Runtime
	provisioner *lgtv.Provisioner
}

// openSession loads config and opens everything a management command needs.
func openSession(ctx context.Context) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return newSession(ctx, cfg)
}

func newSession(ctx context.Context, cfg *config.Config) (*session, error) {
	log := logging.New(config.LoggingConfig{Level: "warn", Format: "text", Output: "stderr"}, version)

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	rt, err := newRuntime(cfg, st.entries, runtimeDeps{}, log)
	if err != nil {
		st.Close() //nolint:errcheck // Already failing
		return nil, fmt.Errorf("creating runtime: %w", err)
	}
	prov, err := newProvisioner(st, rt, log)
	if err != nil {
		rt.Close()
		st.Close() //nolint:errcheck // Already failing
		return nil, fmt.Errorf("creating provisioner: %w", err)
	}
	return &session{store: st, runtime: rt, provisioner: prov}, nil
}

func (s *session) Close() {
	s.runtime.Close()
	s.store.Close() //nolint:errcheck // CLI exit
}

func newEntriesCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "entries",
		Short: "List configured TVs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			entries, err := s.store.entries.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing entries: %w", err)
			}
			if asJSON {
				if entries == nil {
					entries = []entry.Entry{}
				}
				return writeJSON(cmd.OutOrStdout(), entries)
			}
			return writeEntryTable(cmd.OutOrStdout(), entries)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print entries as JSON")
	return cmd
}

func writeEntryTable(w io.Writer, entries []entry.Entry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "no TVs configured")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tPORT\tTV ID\tCREATED")
	for _, e := range entries {
		tvID := strconv.Itoa(e.TVID)
		if eff := e.EffectiveTVID(); eff != e.TVID {
			tvID = fmt.Sprintf("%d (option %d)", e.TVID, eff)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.ID, e.Title, e.Port, tvID, e.CreatedAt.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
