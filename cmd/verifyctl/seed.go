package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agenthands/certverify/internal/driver"
	"github.com/agenthands/certverify/internal/records"
)

type seedOptions struct {
	URI      string
	User     string
	Password string
}

func newSeedCmd() *cobra.Command {
	o := &seedOptions{}
	cmd := &cobra.Command{
		Use:   "seed FILE",
		Short: "Load a JSON record file into Memgraph as Certificate nodes.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			d, err := driver.NewMemgraphDriver(ctx, o.URI, o.User, o.Password)
			if err != nil {
				return err
			}
			defer d.Close(ctx)

			n, err := seed(ctx, d, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d certificates\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&o.URI, "memgraph-uri", "bolt://localhost:7687", "Bolt URI of the graph database")
	cmd.Flags().StringVar(&o.User, "user", "", "database user")
	cmd.Flags().StringVar(&o.Password, "password", "", "database password")
	return cmd
}

// seed validates the file the same way the server does before writing it.
func seed(ctx context.Context, d driver.GraphDriver, path string) (int, error) {
	recs, err := records.FromFile(path)
	if err != nil {
		return 0, err
	}
	store, err := records.NewStore(recs, nil)
	if err != nil {
		return 0, err
	}
	if err := d.BuildIndices(ctx); err != nil {
		return 0, err
	}
	if err := records.SaveToGraph(ctx, d, store.All()); err != nil {
		return 0, err
	}
	return store.Len(), nil
}
