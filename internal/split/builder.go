// Package split turns a client split request into a canonical, validated
// configuration and computes conceptual segment boundaries. It performs no
// I/O; resolving sources and cutting media belong to other components.
package split

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Method selects how a source file is cut.
type Method string

const (
	MethodTimeBased Method = "time_based"
	MethodIntervals Method = "intervals"
	MethodChapters  Method = "chapters"
)

// DefaultOutputFormat is used when a request does not name a container.
const DefaultOutputFormat = "mp4"

// DefaultKeyframeInterval is the keyframe cadence (seconds) applied when
// force_keyframes is requested without an explicit interval.
const DefaultKeyframeInterval = 2.0

// ErrInvalid is the sentinel for all request validation failures.
// Check with errors.Is().
var ErrInvalid = errors.New("invalid split request")

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// Chapter is a chapter mark supplied by the caller (or by upstream media
// inspection) for chapter-based splits.
type Chapter struct {
	Title string  `json:"title,omitempty"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Request is the raw client-facing split request body.
type Request struct {
	Method             string    `json:"method"`
	TimePoints         []float64 `json:"time_points,omitempty"`
	IntervalDuration   float64   `json:"interval_duration,omitempty"`
	Chapters           []Chapter `json:"chapters,omitempty"`
	PreserveQuality    bool      `json:"preserve_quality"`
	OutputFormat       string    `json:"output_format,omitempty"`
	ForceKeyframes     bool      `json:"force_keyframes,omitempty"`
	KeyframeInterval   float64   `json:"keyframe_interval,omitempty"`
	SubtitleSyncOffset float64   `json:"subtitle_sync_offset,omitempty"`
}

// Config is the canonical, validated form of a split request. It is
// immutable once built and travels with the work order and the job record.
type Config struct {
	Method             Method    `json:"method"`
	TimePoints         []float64 `json:"time_points,omitempty"`
	IntervalDuration   float64   `json:"interval_duration,omitempty"`
	Chapters           []Chapter `json:"chapters,omitempty"`
	PreserveQuality    bool      `json:"preserve_quality"`
	OutputFormat       string    `json:"output_format"`
	ForceKeyframes     bool      `json:"force_keyframes,omitempty"`
	KeyframeInterval   float64   `json:"keyframe_interval,omitempty"`
	SubtitleSyncOffset float64   `json:"subtitle_sync_offset,omitempty"`
}

// Build validates a request and produces the canonical Config.
//
// Time points are sorted ascending but NOT deduplicated: duplicate
// boundaries yield zero-length segments, which the worker reports, so the
// builder does not reject them.
func Build(req Request) (Config, error) {
	cfg := Config{
		Method:             Method(req.Method),
		PreserveQuality:    req.PreserveQuality,
		OutputFormat:       normalizeFormat(req.OutputFormat),
		ForceKeyframes:     req.ForceKeyframes,
		KeyframeInterval:   req.KeyframeInterval,
		SubtitleSyncOffset: req.SubtitleSyncOffset,
	}

	switch cfg.Method {
	case MethodTimeBased:
		if len(req.TimePoints) < 2 {
			return Config{}, invalidf("time_based requires at least 2 time_points, got %d", len(req.TimePoints))
		}
		points := make([]float64, len(req.TimePoints))
		copy(points, req.TimePoints)
		for _, p := range points {
			if p < 0 {
				return Config{}, invalidf("time_points must be non-negative, got %g", p)
			}
		}
		sort.Float64s(points)
		cfg.TimePoints = points

	case MethodIntervals:
		if req.IntervalDuration <= 0 {
			return Config{}, invalidf("interval_duration must be positive, got %g", req.IntervalDuration)
		}
		cfg.IntervalDuration = req.IntervalDuration

	case MethodChapters:
		if len(req.Chapters) == 0 {
			return Config{}, invalidf("chapters split requested but no chapter marks available")
		}
		for i, ch := range req.Chapters {
			if ch.Start < 0 || ch.End < ch.Start {
				return Config{}, invalidf("chapter %d has invalid bounds [%g, %g]", i, ch.Start, ch.End)
			}
		}
		cfg.Chapters = append([]Chapter(nil), req.Chapters...)

	case "":
		return Config{}, invalidf("method is required")

	default:
		return Config{}, invalidf("unknown method %q", req.Method)
	}

	if cfg.ForceKeyframes {
		if cfg.KeyframeInterval < 0 {
			return Config{}, invalidf("keyframe_interval must be positive, got %g", cfg.KeyframeInterval)
		}
		if cfg.KeyframeInterval == 0 {
			cfg.KeyframeInterval = DefaultKeyframeInterval
		}
	}

	return cfg, nil
}

// normalizeFormat lowercases the container extension and strips a leading
// dot, defaulting to mp4.
func normalizeFormat(format string) string {
	format = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(format), "."))
	if format == "" {
		return DefaultOutputFormat
	}
	return format
}
