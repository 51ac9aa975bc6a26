package main

import "github.com/spf13/cobra"

var renderCmd = &cobra.Command{
	Use:   "render <record|share-code|->",
	Short: "Print only the rendered grid",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return decodeCommand(cmd, args[0], false)
	},
}
