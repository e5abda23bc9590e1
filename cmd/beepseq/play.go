package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/cbegin/beepseq-go"
	"github.com/cbegin/beepseq-go/internal/audio"
	"github.com/cbegin/beepseq-go/internal/sequencer"
)

var (
	playDry    bool
	playVolume float64
)

func init() {
	playCmd.Flags().BoolVar(&playDry, "dry", false, "keep time without making sound")
	playCmd.Flags().Float64Var(&playVolume, "volume", 0, "volume scalar (0..1), 0 mutes; defaults to the config value")
	rootCmd.AddCommand(playCmd)
}

var playCmd = &cobra.Command{
	Use:   "play [file|-]",
	Short: "Play a sequence; Ctrl-C stops after the current note",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		emitter, err := playEmitter(cmd)
		if err != nil {
			return err
		}
		s, err := newSession(argOrEmpty(args), beepseq.WithEmitter(emitter))
		if err != nil {
			return err
		}
		defer s.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		events := s.Watch()
		h, err := s.Play(ctx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for {
			select {
			case ev := <-events:
				if ev.Kind == beepseq.EventNoteStarted {
					fmt.Fprintf(out, "%4d  %5d Hz  %5d ms\n", ev.Note.Index, ev.Note.FrequencyHz, ev.Note.DurationMs)
				}
			case <-h.Done():
				return finishPlayback(h)
			}
		}
	},
}

func playEmitter(cmd *cobra.Command) (sequencer.ToneEmitter, error) {
	if playDry {
		return audio.Silent{}, nil
	}
	volume := playVolumeFor(cmd)
	if volume < 0 || volume > 1 {
		return nil, fmt.Errorf("volume %.2f must be within 0..1", volume)
	}
	return audio.NewBeeper(cfg.SampleRate, audio.WithVolume(volume))
}

func playVolumeFor(cmd *cobra.Command) float64 {
	if cmd.Flags().Changed("volume") {
		return playVolume
	}
	return cfg.VolumeLevel()
}

func finishPlayback(h *sequencer.Handle) error {
	if err := h.Wait(); err != nil {
		return err
	}
	if h.Cancelled() {
		logger.Info("stopped", "played", h.Played(), "of", h.Len())
		return nil
	}
	logger.Debug("done", "played", h.Played(), "elapsed", h.Elapsed())
	return nil
}
