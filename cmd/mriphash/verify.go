package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"kosshi.net/mriphash/internal/imageio"
	"kosshi.net/mriphash/internal/phash"
)

var errNoMatch = errors.New("image does not match the reference")

func newVerifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <image>",
		Short: "Check an image against the reference image_path",
		Long: `verify scores the candidate against the configured reference image. Both are
stretched to compare.width x compare.height and scored on matching pixels
(40%), mean RGB difference (30%) and phash similarity (30%). The weighted
overall score must reach similarity_threshold. A mismatch exits with status 2.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			candidate := args[0]

			digest, err := imageio.FileDigest(candidate)
			if err != nil {
				return err
			}
			gotImg, got, err := a.loadAndHash(candidate)
			if err != nil {
				return err
			}
			wantImg, want, err := a.loadAndHash(a.cfg.ImagePath)
			if err != nil {
				return fmt.Errorf("reference image: %w", err)
			}

			s, err := a.cfg.Comparison().Score(gotImg, wantImg, got, want)
			if err != nil {
				return err
			}
			match := s.Overall >= a.cfg.SimilarityThreshold
			log.Info().Str("candidate", candidate).Int("distance", s.Distance).
				Float64("pixel", s.Pixel).Float64("structural", s.Structural).Float64("perceptual", s.Perceptual).
				Float64("overall", s.Overall).Bool("match", match).Msg("Verified image")

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "sha256:     %s\n", digest)
			fmt.Fprintf(out, "candidate:  %s\n", got)
			fmt.Fprintf(out, "reference:  %s\n", want)
			fmt.Fprintf(out, "distance:   %d/%d\n", s.Distance, phash.Bits)
			fmt.Fprintf(out, "pixel:      %.2f%%\n", s.Pixel)
			fmt.Fprintf(out, "structural: %.2f%%\n", s.Structural)
			fmt.Fprintf(out, "perceptual: %.2f%%\n", s.Perceptual)
			fmt.Fprintf(out, "overall:    %.2f%% (threshold %.2f%%)\n", s.Overall, a.cfg.SimilarityThreshold)

			if !match {
				color.New(color.FgRed, color.Bold).Fprintln(out, "NO MATCH")
				return errNoMatch
			}
			color.New(color.FgGreen, color.Bold).Fprintln(out, "MATCH")
			return nil
		},
	}
}
