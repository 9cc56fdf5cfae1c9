// Package analysis extracts frequencies from series recorded per frame, such
// as the mean fluid height of a sloshing tank.
//
//	frames, _ := store.LoadFrames(runID)
//	heights := make([]float64, len(frames))
//	for i, f := range frames {
//		heights[i] = f.MeanHeight
//	}
//	peak, ok := analysis.DominantFrequency(heights, fps)
package analysis
