package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ZanzyTHEbar/mcp-context-libsql-go/pkg/knowledge"
)

var (
	ingestDemo bool
	ingestFile string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load documents and graph data into the stores",
	Long: `Loads a dataset into the configured stores. Existing ids are replaced.

--demo loads the sample support knowledge base (kb_001..kb_007) and its
customer, product and issue graph.

--file reads a JSON dataset:
  {"documents": [...], "nodes": [...], "edges": [...]}`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if !ingestDemo && ingestFile == "" {
			return errors.New("nothing to ingest: pass --demo or --file")
		}
		ctx := cmd.Context()
		svc, _, _, err := openService(ctx)
		if err != nil {
			return err
		}
		defer svc.Close()

		var sets []knowledge.Dataset
		if ingestDemo {
			sets = append(sets, knowledge.Demo())
		}
		if ingestFile != "" {
			f, err := os.Open(ingestFile)
			if err != nil {
				return err
			}
			ds, err := knowledge.ReadDataset(f)
			f.Close()
			if err != nil {
				return fmt.Errorf("%s: %w", ingestFile, err)
			}
			sets = append(sets, ds)
		}
		for _, ds := range sets {
			st, err := svc.Ingest(ctx, ds)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Ingested %d documents, %d nodes, %d edges\n", st.Documents, st.Nodes, st.Edges)
		}
		return nil
	},
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestDemo, "demo", false, "load the sample knowledge base and graph")
	ingestCmd.Flags().StringVarP(&ingestFile, "file", "f", "", "path to a JSON dataset")
}
