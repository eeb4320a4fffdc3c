package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/heimdex/cutline/internal/export"
	"github.com/heimdex/cutline/internal/timeline"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "timelinectl",
		Short: "Inspect and edit Cutline project files",
		Long: `timelinectl reads a project file (.json, .yaml or .yml) and reports
boundary markers, free gaps and export estimates. Edits are printed and only
written back with --write.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newMarkersCmd(),
		newGapsCmd(),
		newPlaceCmd(),
		newSplitCmd(),
		newEstimateCmd(),
		newEDLCmd(),
		newConvertCmd(),
	)
	return root
}

func newMarkersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "markers <project>",
		Short: "Print the boundary markers of every clip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := timeline.LoadProjectFile(args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), timeline.AllMarkers(p.Timeline.Segments, p.Recordings))
		},
	}
}

func newGapsCmd() *cobra.Command {
	var track string
	cmd := &cobra.Command{
		Use:   "gaps <project>",
		Short: "Print the free ranges of a track",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := timeline.ParseTrackKind(track)
			if err != nil {
				return err
			}
			st, err := openStore(args[0])
			if err != nil {
				return err
			}
			gaps, err := st.Gaps(kind)
			if err != nil {
				return err
			}
			if gaps == nil {
				gaps = []timeline.Span{}
			}
			return writeJSON(cmd.OutOrStdout(), gaps)
		},
	}
	cmd.Flags().StringVar(&track, "track", string(timeline.TrackZoom), "annotation track kind")
	return cmd
}

func newPlaceCmd() *cobra.Command {
	var (
		track string
		at    float64
		write bool
	)
	cmd := &cobra.Command{
		Use:   "place <project>",
		Short: "Auto-place a default-length segment near a time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := timeline.ParseTrackKind(track)
			if err != nil {
				return err
			}
			st, err := openStore(args[0])
			if err != nil {
				return err
			}
			idx, err := st.Place(kind, at)
			if err != nil {
				return err
			}
			a, err := st.Project().Timeline.Annotation(kind, idx)
			if err != nil {
				return err
			}
			b := a.Bounds()
			fmt.Fprintf(cmd.OutOrStdout(), "placed %s segment %d at [%.3f, %.3f)\n", kind, idx, b.Start, b.End)
			return saveIf(write, args[0], st.Project())
		},
	}
	cmd.Flags().StringVar(&track, "track", string(timeline.TrackZoom), "annotation track kind")
	cmd.Flags().Float64Var(&at, "at", 0, "requested centre time in seconds")
	cmd.Flags().BoolVar(&write, "write", false, "write the result back to the project file")
	return cmd
}

func newSplitCmd() *cobra.Command {
	var (
		track    string
		index    int
		fraction float64
		write    bool
	)
	cmd := &cobra.Command{
		Use:   "split <project>",
		Short: "Split a segment at a fraction of its length",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := timeline.ParseTrackKind(track)
			if err != nil {
				return err
			}
			st, err := openStore(args[0])
			if err != nil {
				return err
			}
			tail, err := st.Split(kind, index, fraction)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "split %s segment %d; tail is segment %d\n", kind, index, tail)
			return saveIf(write, args[0], st.Project())
		},
	}
	cmd.Flags().StringVar(&track, "track", string(timeline.TrackClip), "track kind")
	cmd.Flags().IntVar(&index, "index", 0, "segment index")
	cmd.Flags().Float64Var(&fraction, "fraction", 0.5, "split position within the segment, exclusive of 0 and 1")
	cmd.Flags().BoolVar(&write, "write", false, "write the result back to the project file")
	return cmd
}

func newEstimateCmd() *cobra.Command {
	s := export.DefaultSettings()
	var format, compression string
	cmd := &cobra.Command{
		Use:   "estimate <project>",
		Short: "Estimate export size and render time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := timeline.LoadProjectFile(args[0])
			if err != nil {
				return err
			}
			s.Format = export.Format(format)
			s.Compression = export.Compression(compression)
			if err := s.Validate(); err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), export.Estimate(p.Timeline.Duration(), s))
		},
	}
	cmd.Flags().StringVar(&format, "format", string(s.Format), "Mp4 or Gif")
	cmd.Flags().StringVar(&compression, "compression", string(s.Compression), "Maximum, Social, Web or Potato")
	cmd.Flags().IntVar(&s.FPS, "fps", s.FPS, "frames per second")
	cmd.Flags().IntVar(&s.ResolutionBase.X, "width", s.ResolutionBase.X, "output width")
	cmd.Flags().IntVar(&s.ResolutionBase.Y, "height", s.ResolutionBase.Y, "output height")
	return cmd
}

func newEDLCmd() *cobra.Command {
	var (
		outDir    string
		frameRate float64
	)
	cmd := &cobra.Command{
		Use:   "edl <project>",
		Short: "Write the clip track as a CMX3600 EDL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := timeline.LoadProjectFile(args[0])
			if err != nil {
				return err
			}
			if outDir == "" {
				outDir = filepath.Dir(args[0])
			}
			if err := export.ValidateOutputDir(outDir); err != nil {
				return err
			}
			out := filepath.Join(outDir, export.OutputFileName(p.Name, "timeline", ".edl"))
			edl := export.GenerateEDL(export.ResolveClips(p), p.Name, frameRate)
			if err := os.WriteFile(out, []byte(edl), 0644); err != nil {
				return fmt.Errorf("write edl: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&outDir, "out", "", "output directory (default: next to the project)")
	cmd.Flags().Float64Var(&frameRate, "fps", 30, "timecode frame rate")
	return cmd
}

func newConvertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "convert <in> <out>",
		Short: "Re-encode a project between JSON and YAML",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := timeline.LoadProjectFile(args[0])
			if err != nil {
				return err
			}
			return timeline.SaveProjectFile(args[1], p)
		},
	}
}

func openStore(path string) (*timeline.Store, error) {
	p, err := timeline.LoadProjectFile(path)
	if err != nil {
		return nil, err
	}
	return timeline.NewStore(p, timeline.DefaultOptions()), nil
}

func saveIf(write bool, path string, p *timeline.Project) error {
	if !write {
		return nil
	}
	return timeline.SaveProjectFile(path, p)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
