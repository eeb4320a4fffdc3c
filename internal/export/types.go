package export

// EDLRequest asks for the clip track of a project as a CMX3600 EDL.
type EDLRequest struct {
	Title     string  `json:"title"`
	FrameRate float64 `json:"frame_rate"`
	OutputDir string  `json:"output_dir"`
}

// ResolvedClip is one EDL event. Source times are in the recording's time
// base; Duration is the clip's length on the output timeline.
type ResolvedClip struct {
	ClipName  string
	MediaPath string
	SourceIn  float64
	SourceOut float64
	Duration  float64
	Timescale float64
}

type EDLResponse struct {
	Status     string `json:"status"`
	Format     string `json:"format"`
	OutputPath string `json:"output_path"`
	ClipCount  int    `json:"clip_count"`
	// MissingMedia lists clips whose recording has no file path.
	MissingMedia []string `json:"missing_media"`
}
