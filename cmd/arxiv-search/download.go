package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/arxiv-client/pkg/client"
)

var downloadCmd = &cobra.Command{
	Use:   "download [ids...]",
	Short: "Download papers by arXiv id",
	Long: `Download looks up each id through the API and saves its PDF, or its
source tarball with --source. Files are named after the id and title unless
--filename is given for a single id.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDownload,
}

func init() {
	downloadCmd.Flags().String("dir", "", "target directory (default from download.dir)")
	downloadCmd.Flags().String("filename", "", "file name to use; only valid with a single id")
	downloadCmd.Flags().Bool("source", false, "download the source tarball instead of the PDF")

	rootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command, args []string) error {
	dir, _ := cmd.Flags().GetString("dir")
	if dir == "" {
		dir = cfg.Download.Dir
	}
	filename, _ := cmd.Flags().GetString("filename")
	source, _ := cmd.Flags().GetBool("source")
	if filename != "" && len(args) > 1 {
		return fmt.Errorf("--filename needs exactly one id, got %d", len(args))
	}

	c, err := newClient()
	if err != nil {
		return err
	}
	defer c.Close()

	ctx := cmd.Context()
	results, err := c.Collect(ctx, client.Search{IDList: args}.WithMaxResults(len(args)), 0)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		return fmt.Errorf("no papers found for %v", args)
	}

	for _, r := range results {
		var path string
		if source {
			path, err = c.DownloadSource(ctx, r, dir, filename)
		} else {
			path, err = c.DownloadPDF(ctx, r, dir, filename)
		}
		if err != nil {
			return fmt.Errorf("download %s: %w", r.ShortID(), err)
		}
		log.Info().Str("entry_id", r.EntryID).Str("path", path).Msg("Downloaded")
		fmt.Fprintln(cmd.OutOrStdout(), path)
	}
	return nil
}
