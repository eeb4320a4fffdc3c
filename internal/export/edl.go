package export

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/heimdex/cutline/internal/timeline"
)

// ResolveClips turns the clip track into EDL events. Source times stay in the
// recording's time base; record times follow the output timeline.
func ResolveClips(p *timeline.Project) []ResolvedClip {
	clips := make([]ResolvedClip, 0, len(p.Timeline.Segments))
	for i, seg := range p.Timeline.Segments {
		rec := seg.RecordingIndex(i)
		c := ResolvedClip{
			ClipName:  fmt.Sprintf("Clip %d", i+1),
			SourceIn:  seg.Start,
			SourceOut: seg.End,
			Duration:  seg.Duration(),
			Timescale: seg.Timescale,
		}
		if rec >= 0 && rec < len(p.Recordings) {
			c.MediaPath = p.Recordings[rec].Display.Path
			if c.MediaPath != "" {
				c.ClipName = filepath.Base(c.MediaPath)
			}
		}
		clips = append(clips, c)
	}
	return clips
}

func GenerateEDL(clips []ResolvedClip, title string, frameRate float64) string {
	fps := int(math.Round(frameRate))
	if fps <= 0 {
		fps = 30
	}

	isDropFrame := math.Abs(frameRate-29.97) < 0.01 || math.Abs(frameRate-59.94) < 0.01

	lines := []string{fmt.Sprintf("TITLE: %s", title)}
	if isDropFrame {
		lines = append(lines, "FCM: DROP FRAME")
	} else {
		lines = append(lines, "FCM: NON-DROP FRAME")
	}
	lines = append(lines, "")

	record := 0.0
	for i, clip := range clips {
		srcIn := secondsToTimecode(clip.SourceIn, fps)
		srcOut := secondsToTimecode(clip.SourceOut, fps)
		recIn := secondsToTimecode(record, fps)
		recOut := secondsToTimecode(record+clip.Duration, fps)

		lines = append(lines,
			fmt.Sprintf("%03d  %-8s %-5s C        %s %s %s %s", i+1, "AX", "V", srcIn, srcOut, recIn, recOut),
		)
		if clip.Timescale > 0 && clip.Timescale != 1 {
			lines = append(lines, fmt.Sprintf("M2   %-8s %06.1f   %s", "AX", float64(fps)*clip.Timescale, srcIn))
		}
		lines = append(lines,
			fmt.Sprintf("* FROM CLIP NAME:  %s", clip.ClipName),
			fmt.Sprintf("* MEDIA PATH:  %s", clip.MediaPath),
		)

		record += clip.Duration
	}

	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

func secondsToTimecode(sec float64, fps int) string {
	totalFrames := int(math.Round(sec * float64(fps)))
	frames := totalFrames % fps
	totalSeconds := totalFrames / fps
	seconds := totalSeconds % 60
	totalMinutes := totalSeconds / 60
	minutes := totalMinutes % 60
	hours := totalMinutes / 60
	return fmt.Sprintf("%02d:%02d:%02d:%02d", hours, minutes, seconds, frames)
}
