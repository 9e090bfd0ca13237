package audio

import "math"

// fullScale is the magnitude of the most negative int16 sample, used as 0 dBFS.
const fullScale = 32768.0

type DetectorConfig struct {
	// MinSilenceMs is the shortest quiet run that separates two speech intervals.
	MinSilenceMs int
	// ThresholdDB is how far below the clip's loudness a window must fall to count as silent.
	ThresholdDB float64
	SeekStepMs  int
}

// Detector finds speech intervals by scanning for quiet windows relative to the
// clip's overall loudness.
type Detector struct {
	cfg DetectorConfig
}

func NewDetector(cfg DetectorConfig) *Detector {
	if cfg.SeekStepMs <= 0 {
		cfg.SeekStepMs = 1
	}
	return &Detector{cfg: cfg}
}

// LoudnessDBFS returns the RMS loudness of the clip in dBFS, or -Inf for silence.
func LoudnessDBFS(pcm PCM) float64 {
	if len(pcm.Samples) == 0 {
		return math.Inf(-1)
	}
	var sum float64
	for _, s := range pcm.Samples {
		v := float64(s)
		sum += v * v
	}
	rms := math.Sqrt(sum / float64(len(pcm.Samples)))
	if rms == 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(rms/fullScale)
}

// Detect returns non-overlapping speech intervals in chronological order.
func (d *Detector) Detect(pcm PCM) []Interval {
	lengthMs := pcm.DurationMs()
	if lengthMs == 0 {
		return nil
	}
	reference := LoudnessDBFS(pcm)
	if math.IsInf(reference, -1) {
		return nil
	}
	threshold := math.Pow(10, (reference-d.cfg.ThresholdDB)/20) * fullScale

	energy := prefixEnergy(pcm.Samples)
	silent := d.silentRanges(pcm, energy, threshold, lengthMs)
	return speechRanges(silent, lengthMs)
}

func prefixEnergy(samples []int16) []float64 {
	out := make([]float64, len(samples)+1)
	for i, s := range samples {
		v := float64(s)
		out[i+1] = out[i] + v*v
	}
	return out
}

func (d *Detector) windowRMS(pcm PCM, energy []float64, startMs, endMs int) float64 {
	from := pcm.sampleIndex(startMs)
	to := pcm.sampleIndex(endMs)
	if to <= from {
		return 0
	}
	return math.Sqrt((energy[to] - energy[from]) / float64(to-from))
}

func (d *Detector) silentRanges(pcm PCM, energy []float64, threshold float64, lengthMs int) []Interval {
	minSilence := d.cfg.MinSilenceMs
	step := d.cfg.SeekStepMs
	if lengthMs < minSilence {
		return nil
	}

	last := lengthMs - minSilence
	var starts []int
	check := func(i int) {
		if d.windowRMS(pcm, energy, i, i+minSilence) <= threshold {
			starts = append(starts, i)
		}
	}
	for i := 0; i <= last; i += step {
		check(i)
	}
	if last%step != 0 {
		check(last)
	}
	if len(starts) == 0 {
		return nil
	}

	var ranges []Interval
	rangeStart, prev := starts[0], starts[0]
	for _, s := range starts[1:] {
		continuous := s == prev+step
		hasGap := s > prev+minSilence
		if !continuous && hasGap {
			ranges = append(ranges, Interval{StartMs: rangeStart, EndMs: prev + minSilence})
			rangeStart = s
		}
		prev = s
	}
	return append(ranges, Interval{StartMs: rangeStart, EndMs: prev + minSilence})
}

func speechRanges(silent []Interval, lengthMs int) []Interval {
	if len(silent) == 0 {
		return []Interval{{StartMs: 0, EndMs: lengthMs}}
	}
	var out []Interval
	prevEnd := 0
	for _, s := range silent {
		if s.StartMs > prevEnd {
			out = append(out, Interval{StartMs: prevEnd, EndMs: s.StartMs})
		}
		prevEnd = s.EndMs
	}
	if prevEnd < lengthMs {
		out = append(out, Interval{StartMs: prevEnd, EndMs: lengthMs})
	}
	return out
}
