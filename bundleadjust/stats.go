package bundleadjust

import (
	"github.com/montanaflynn/stats"

	"go.viam.com/lar/logging"
)

// Stats counts what a pass put into the graph.
type Stats struct {
	// Landmarks is, per frame, the number of landmark observations the frame contributed.
	Landmarks []int
	// UsableLandmarks is, per frame, the number of those observations that became edges.
	UsableLandmarks []int
	// TotalUsableLandmarks is the number of landmark vertices.
	TotalUsableLandmarks int
}

func newStats(frames int) Stats {
	return Stats{Landmarks: make([]int, frames), UsableLandmarks: make([]int, frames)}
}

// Summary describes the distribution of usable observations over frames.
type Summary struct {
	MeanUsable   float64
	MedianUsable float64
	MinUsable    float64
}

// Summarize computes the Summary. It fails when there are no frames.
func (s Stats) Summarize() (Summary, error) {
	data := stats.LoadRawData(s.UsableLandmarks)
	mean, err := stats.Mean(data)
	if err != nil {
		return Summary{}, err
	}
	median, err := stats.Median(data)
	if err != nil {
		return Summary{}, err
	}
	minimum, err := stats.Min(data)
	if err != nil {
		return Summary{}, err
	}
	return Summary{MeanUsable: mean, MedianUsable: median, MinUsable: minimum}, nil
}

// Log writes the per-frame counts at debug level and the summary at info level.
func (s Stats) Log(logger logging.Logger) {
	for i := range s.Landmarks {
		logger.Debugw("frame landmarks", "frame", i, "landmarks", s.Landmarks[i], "usable", s.UsableLandmarks[i])
	}
	summary, err := s.Summarize()
	if err != nil {
		logger.Infow("bundle adjustment graph", "total_usable_landmarks", s.TotalUsableLandmarks)
		return
	}
	logger.Infow("bundle adjustment graph",
		"total_usable_landmarks", s.TotalUsableLandmarks,
		"mean_usable_per_frame", summary.MeanUsable,
		"median_usable_per_frame", summary.MedianUsable,
		"min_usable_per_frame", summary.MinUsable)
}
