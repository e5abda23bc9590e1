package main

import (
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export <in> <out.mid|out.wav>",
	Short: "Render a sequence to a MIDI or WAV file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(args[0])
		if err != nil {
			return err
		}
		defer s.Close()
		return s.Export(args[1])
	},
}
