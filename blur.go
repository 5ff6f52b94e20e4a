package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"thaitanloi365/go-face-redact/pipeline"
)

var blurOutput string

var blurCmd = &cobra.Command{
	Use:   "blur <input>",
	Short: "Blur every face in an image or video",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		p, detection, err := newPipeline()
		if err != nil {
			return err
		}
		run := p.Start(cmd.Context(), pipeline.Params{
			Input:     args[0],
			Output:    blurOutput,
			Detection: detection,
		})

		bar := progressbar.NewOptions(100,
			progressbar.OptionSetDescription("Redacting"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionClearOnFinish(),
		)
		for e := range run.Events() {
			switch e.Type {
			case pipeline.EventProgress:
				bar.Set(e.Percent)
			case pipeline.EventCompleted:
				bar.Finish()
				fmt.Fprintln(cmd.OutOrStdout(), e.Output)
			}
		}

		_, err = run.Wait()
		if errors.Is(err, pipeline.ErrCancelled) {
			log.Warn("cancelled, no output written")
		}
		return err
	},
}

func init() {
	blurCmd.Flags().StringVarP(&blurOutput, "output", "o", "", "Output path (default <input>_blurred<ext>)")
}
