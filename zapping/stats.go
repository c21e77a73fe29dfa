// ABOUTME: Running statistics over zap iterations: counters, per-metric samples, and arithmetic means.
// ABOUTME: Averages only cover iterations where the metric applied.
package zapping

import (
	"sort"
	"sync"
)

// ChannelInfo identifies the channel a successful zap landed on.
type ChannelInfo struct {
	Name        string `json:"name"`
	Number      string `json:"number,omitempty"`
	ProgramName string `json:"program_name,omitempty"`
}

// Summary is a point-in-time view of the accumulated statistics.
type Summary struct {
	Total             int            `json:"total"`
	Successful        int            `json:"successful"`
	MotionDetected    int            `json:"motion_detected_count"`
	SubtitlesDetected int            `json:"subtitles_detected_count"`
	AudioDetected     int            `json:"audio_detected_count"`
	ZappingDetected   int            `json:"zapping_detected_count"`
	AvgZapDurationS   float64        `json:"avg_zap_duration_s"`
	AvgBlackscreenMS  float64        `json:"avg_blackscreen_ms"`
	AvgAudioSilenceS  float64        `json:"avg_audio_silence_s"`
	DetectedLanguages []string       `json:"detected_languages"`
	AudioLanguages    []string       `json:"audio_languages"`
	DetectionMethods  map[string]int `json:"detection_methods"`
	Channels          []ChannelInfo  `json:"channels"`
}

// Statistics accumulates iteration results across a zap run.
type Statistics struct {
	mu                sync.Mutex
	total             int
	successful        int
	motionDetected    int
	subtitlesDetected int
	audioDetected     int
	zappingDetected   int
	zapDurations      []float64
	blackscreenMS     []float64
	audioSilenceS     []float64
	detectedLanguages map[string]struct{}
	audioLanguages    map[string]struct{}
	detectionMethods  map[string]int
	channels          []ChannelInfo
}

func NewStatistics() *Statistics {
	return &Statistics{
		detectedLanguages: make(map[string]struct{}),
		audioLanguages:    make(map[string]struct{}),
		detectionMethods:  make(map[string]int),
	}
}

// Add folds one iteration into the accumulator.
func (s *Statistics) Add(res IterationResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total++
	if res.Success {
		s.successful++
	}
	if res.MotionDetected {
		s.motionDetected++
	}
	if res.SubtitlesDetected {
		s.subtitlesDetected++
	}
	if res.AudioDetected {
		s.audioDetected++
	}
	if res.ZappingDetected {
		s.zappingDetected++
		s.zapDurations = append(s.zapDurations, res.TotalZapDurationS)
		s.blackscreenMS = append(s.blackscreenMS, res.BlackscreenMS)
		if res.AudioSilenceS > 0 {
			s.audioSilenceS = append(s.audioSilenceS, res.AudioSilenceS)
		}
		if res.DetectionMethod != "" {
			s.detectionMethods[res.DetectionMethod]++
		}
		if res.ChannelName != "" {
			s.channels = append(s.channels, ChannelInfo{
				Name:        res.ChannelName,
				Number:      res.ChannelNumber,
				ProgramName: res.ProgramName,
			})
		}
	}
	if res.SubtitleLanguage != "" {
		s.detectedLanguages[res.SubtitleLanguage] = struct{}{}
	}
	if res.AudioLanguage != "" {
		s.audioLanguages[res.AudioLanguage] = struct{}{}
	}
}

// Summary snapshots the accumulator.
func (s *Statistics) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := Summary{
		Total:             s.total,
		Successful:        s.successful,
		MotionDetected:    s.motionDetected,
		SubtitlesDetected: s.subtitlesDetected,
		AudioDetected:     s.audioDetected,
		ZappingDetected:   s.zappingDetected,
		AvgZapDurationS:   mean(s.zapDurations),
		AvgBlackscreenMS:  mean(s.blackscreenMS),
		AvgAudioSilenceS:  mean(s.audioSilenceS),
		DetectedLanguages: sortedKeys(s.detectedLanguages),
		AudioLanguages:    sortedKeys(s.audioLanguages),
		DetectionMethods:  make(map[string]int, len(s.detectionMethods)),
		Channels:          append([]ChannelInfo(nil), s.channels...),
	}
	for k, v := range s.detectionMethods {
		out.DetectionMethods[k] = v
	}
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
