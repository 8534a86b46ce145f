package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"ops_server/core/service/classification"
)

var classifyCmd = &cobra.Command{
	Use:   "classify [terms...]",
	Short: "Rank keyword domains for terms (reads stdin when no terms are given)",
	RunE:  runClassify,
}

var expandCmd = &cobra.Command{
	Use:   "expand [term]",
	Short: "List sibling keywords of a term",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, kw := range classification.NewKeywordEngine().ExpandKeywords(args[0]) {
			fmt.Fprintln(cmd.OutOrStdout(), kw)
		}
		return nil
	},
}

var assetTypeCmd = &cobra.Command{
	Use:   "asset-type [content]",
	Short: "Detect the asset category of content",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, asset := classification.NewKeywordEngine().DetectAsset(strings.Join(args, " "))
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", asset, key)
		return nil
	},
}

var classifyThreshold float64

func init() {
	classifyCmd.Flags().Float64Var(&classifyThreshold, "threshold", classification.DefaultThreshold, "Minimum domain score")
}

func runClassify(cmd *cobra.Command, args []string) error {
	if classifyThreshold < 0 {
		return fmt.Errorf("threshold must not be negative")
	}

	terms := args
	if len(terms) == 0 {
		in := cmd.InOrStdin()
		if f, ok := in.(*os.File); ok {
			if fi, err := f.Stat(); err == nil && fi.Mode()&os.ModeCharDevice != 0 {
				return fmt.Errorf("no terms given")
			}
		}
		data, err := io.ReadAll(in)
		if err != nil {
			return err
		}
		terms = classification.Tokenize(string(data))
	}

	engine := classification.NewKeywordEngine()
	ranked := engine.RankDomains(terms, classifyThreshold)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DOMAIN\tSCORE")
	if len(ranked) == 0 {
		fmt.Fprintf(w, "%s\t-\n", engine.InferDomains(terms, classifyThreshold)[0])
	}
	for _, r := range ranked {
		fmt.Fprintf(w, "%s\t%.1f\n", r.Domain, r.Score)
	}
	return w.Flush()
}
