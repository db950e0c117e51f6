package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/xlab/treeprint"

	"github.com/shaulab/dockertracer/pkg/dockermatch"
	"github.com/shaulab/dockertracer/pkg/logger"
)

var (
	imageRef   string
	configPath string
	timeout    time.Duration
)

var matchCmd = &cobra.Command{
	Use:   "match <dockerfile>",
	Short: "Match a Dockerfile against a built image and print a similarity report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if imageRef == "" {
			return fmt.Errorf("--image is required")
		}

		source, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading dockerfile: %w", err)
		}

		var opts []dockermatch.LoadOption
		if configPath != "" {
			opts = append(opts, dockermatch.FromFile(configPath))
		}
		opts = append(opts, dockermatch.FromEnv())
		cfg, err := dockermatch.Load(opts...)
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}

		engine, err := dockermatch.NewDockerEngineClient()
		if err != nil {
			return fmt.Errorf("connecting to docker engine: %w", err)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		report, err := dockermatch.Match(ctx, string(source), imageRef, engine, cfg)
		if err != nil {
			if dockermatch.IsImageNotFound(err) {
				logger.Errorf("image %q not found", imageRef)
			}
			return err
		}

		printReport(report, imageRef)
		return nil
	},
}

func init() {
	matchCmd.Flags().StringVar(&imageRef, "image", "", "reference of the built image to compare against")
	matchCmd.Flags().StringVar(&configPath, "config", "", "path to a scoring configuration file")
	matchCmd.Flags().DurationVar(&timeout, "timeout", 60*time.Second, "overall match timeout")
}

func qualityColor(q dockermatch.Quality) *color.Color {
	switch q {
	case dockermatch.QualityExcellent, dockermatch.QualityGood:
		return color.New(color.FgGreen)
	case dockermatch.QualityFair:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgRed)
	}
}

func printReport(report dockermatch.MatchReport, imageRef string) {
	qc := qualityColor(report.Quality)
	fmt.Printf("%s vs %s: overall %.2f, quality %s\n",
		"Dockerfile", imageRef, report.Overall, qc.Sprint(string(report.Quality)))

	tree := treeprint.New()
	tree.SetValue(fmt.Sprintf("match report %s", report.ID))

	facetsBranch := tree.AddBranch("facets")
	for _, name := range []dockermatch.FacetName{
		dockermatch.FacetBaseImage, dockermatch.FacetLayers, dockermatch.FacetMetadata, dockermatch.FacetContext,
	} {
		f, ok := report.Facets[name]
		if !ok {
			continue
		}
		facetsBranch.AddNode(fmt.Sprintf("%s: %.2f — %s", name, f.Score, f.Rationale))
	}

	layersBranch := tree.AddBranch("layer matches")
	for _, m := range report.LayerMatches {
		layersBranch.AddNode(fmt.Sprintf("instruction %d: %s (score %.2f)", m.InstructionIndex, m.Type, m.Score))
	}

	if len(report.MismatchReasons) > 0 {
		mismatchBranch := tree.AddBranch("mismatch reasons")
		for _, reason := range report.MismatchReasons {
			mismatchBranch.AddNode(reason)
		}
	}

	fmt.Println(tree.String())
}
