package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"kosshi.net/mriphash/internal/phash"
)

func newCompareCmd(a *app) *cobra.Command {
	var against string

	cmd := &cobra.Command{
		Use:   "compare <image> [image]",
		Short: "Show the Hamming distance between two images or an image and a known hash",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (len(args) == 2) == (against != "") {
				return errors.New("compare needs either a second image or --hash")
			}

			first, err := a.hashFile(args[0])
			if err != nil {
				return err
			}

			var second phash.Hash
			secondName := "--hash"
			if against != "" {
				second, err = phash.ParseHash(against)
			} else {
				secondName = args[1]
				second, err = a.hashFile(args[1])
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s  %s\n", first, args[0])
			fmt.Fprintf(out, "%s  %s\n", second, secondName)
			fmt.Fprintf(out, "distance: %d/%d\n", phash.Distance(first, second), phash.Bits)
			fmt.Fprintf(out, "similarity: %.2f%%\n", phash.Similarity(first, second))
			return nil
		},
	}
	cmd.Flags().StringVar(&against, "hash", "", "Compare against this 16-digit hex hash instead of a second image")
	return cmd
}
