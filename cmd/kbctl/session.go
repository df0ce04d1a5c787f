// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/pdiddy/kbctl/internal/backend"
	"github.com/pdiddy/kbctl/internal/session"
	"github.com/pdiddy/kbctl/internal/state"
	"github.com/pdiddy/kbctl/pkg/types"
)

// openSession builds the backend client and the wired component set.
// The returned cleanup stops the poller and releases the state store's
// session lock.
func openSession(cmd *cobra.Command) (*session.Session, types.ClientConfig, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, cfg, nil, err
	}

	store, err := state.Open(cfg.State.Dir)
	if err != nil {
		return nil, cfg, nil, err
	}

	client := backend.New(cfg.Backend)
	sess := session.New(client, store, cfg.Index)

	// The service advertises whether mutating operations are allowed;
	// an unreachable /config endpoint is not fatal here since every
	// command surfaces its own errors.
	if sc, err := client.Config(cmd.Context()); err == nil {
		sess.ApplyServiceConfig(sc)
	} else {
		slog.Debug("service config unavailable", "err", err)
	}

	cleanup := func() {
		sess.Close()
		store.Close()
	}
	return sess, cfg, cleanup, nil
}

// targetIndex resolves which index a command operates on: an explicit
// --index flag wins and is not persisted; otherwise the session's
// restored selection is used.
func targetIndex(ctx context.Context, cmd *cobra.Command, sess *session.Session) (types.Index, error) {
	if name, _ := cmd.Flags().GetString("index"); name != "" {
		restricted, _ := cmd.Flags().GetBool("restricted")
		ix := types.Index{Name: types.NormalizeName(name), Restricted: restricted}
		sess.Ingest.SetActive(ix)
		sess.Poller.SetActive(ix)
		return ix, nil
	}

	if err := sess.Refresh(ctx); err != nil {
		return types.Index{}, err
	}
	ix, ok := sess.Active()
	if !ok {
		return types.Index{}, fmt.Errorf("no indexes exist; create one with `kbctl indexes create`")
	}
	return ix, nil
}

func indexFlags(cmd *cobra.Command) {
	cmd.Flags().String("index", "", "operate on this index instead of the active selection")
	cmd.Flags().Bool("restricted", false, "the --index name refers to the restricted variant")
}
