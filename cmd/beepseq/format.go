package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var formatWrite bool

func init() {
	formatCmd.Flags().BoolVarP(&formatWrite, "write", "w", false, "write the result back to the file")
	rootCmd.AddCommand(formatCmd)
}

var formatCmd = &cobra.Command{
	Use:   "format [file|-]",
	Short: "Print a sequence in canonical form",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := argOrEmpty(args)
		s, err := newSession(path)
		if err != nil {
			return err
		}
		defer s.Close()
		if err := s.Format(); err != nil {
			return err
		}
		if formatWrite && path != "" && path != "-" {
			return s.Save(path)
		}
		fmt.Fprintln(cmd.OutOrStdout(), s.Text())
		return nil
	},
}
