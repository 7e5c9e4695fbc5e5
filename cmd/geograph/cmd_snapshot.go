// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func (a *app) snapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Manage stored graph snapshots",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			infos, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			p := newPrinter(cmd.OutOrStdout())
			if len(infos) == 0 {
				p.muted("no snapshots in %s", a.cfg.Snapshot.Path)
				return nil
			}
			rows := make([][]string, 0, len(infos))
			for _, info := range infos {
				rows = append(rows, []string{
					info.Name,
					info.GraphName,
					info.Kind.String(),
					humanize.Comma(int64(info.Vertices)),
					humanize.Comma(int64(info.Edges)),
					humanize.Bytes(uint64(info.Bytes)),
					humanize.Time(info.CreatedAt),
				})
			}
			p.table([]string{"NAME", "GRAPH", "KIND", "VERTICES", "EDGES", "SIZE", "CREATED"}, rows)
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete NAME...",
		Short: "Delete snapshots",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			p := newPrinter(cmd.OutOrStdout())
			for _, name := range args {
				if err := store.Delete(cmd.Context(), name); err != nil {
					return err
				}
				p.kv([2]string{"deleted", name})
			}
			return nil
		},
	}

	cmd.AddCommand(list, del)
	return cmd
}
