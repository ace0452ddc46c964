// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/curioloop/nlexpr/internal/catalog"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the built-in problems",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tVARS\tROWS\tDESCRIPTION")
		for _, e := range catalog.All() {
			p := e.Build()
			fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", e.Name, p.N, len(p.Constraints), e.Description)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
