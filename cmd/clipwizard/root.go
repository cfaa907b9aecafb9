package main

import (
	"github.com/spf13/cobra"
)

var configPath string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "clipwizard",
		Short: "Turn long-form videos into highlight clips",
		Long: `clipwizard extracts audio from uploaded videos, transcribes it,
asks a language model for the most engaging moments, and cuts those
moments into short clips with thumbnails.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to config file")

	root.AddCommand(newServeCmd())
	root.AddCommand(newProcessCmd())
	return root
}
