package main

import (
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(convertCmd)
}

var convertCmd = &cobra.Command{
	Use:   "convert <in> <out>",
	Short: "Convert between canonical text and portable .json files",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(args[0])
		if err != nil {
			return err
		}
		defer s.Close()
		if err := s.Format(); err != nil {
			return err
		}
		return s.Save(args[1])
	},
}
