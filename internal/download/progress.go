// Package download implements the yt-dlp download pipeline: argument
// construction, process execution and progress parsing.
package download

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/SayWess/Musicarr/internal/models"
)

// Download stages, in the order yt-dlp writes destination files for each
// format.
const (
	StageVideo     = "video"
	StageAudio     = "audio"
	StageThumbnail = "thumbnail"
)

// percentPattern matches yt-dlp progress lines like
// "[download]  42.3% of 10.00MiB at 1.00MiB/s".
var percentPattern = regexp.MustCompile(`\[download\]\s+([\d.]+)%`)

// emitThreshold is the minimum percent delta between two progress
// notifications. Completion at 100% always emits.
const emitThreshold = 5.0

// Progress is one throttled progress update from the parser.
type Progress struct {
	Percent float64
	Stage   string
}

// stagesFor returns the expected destination sequence for a format. Video
// downloads stream the video and audio tracks separately before merging;
// audio downloads skip the video track.
func stagesFor(format models.DownloadFormat) []string {
	if format == models.FormatVideo {
		return []string{StageVideo, StageAudio, StageThumbnail}
	}
	return []string{StageAudio, StageThumbnail}
}

// ProgressParser consumes yt-dlp output lines and produces throttled
// progress updates.
//
// Each "[download] Destination:" line after the first advances the stage.
// Percent lines emit only when they moved at least emitThreshold since the
// last emitted value, or hit 100, so a chatty download produces a handful of
// notifications instead of thousands.
type ProgressParser struct {
	stages      []string
	stageIdx    int
	sawDest     bool
	lastEmitted float64
}

// NewProgressParser creates a parser for the given download format
func NewProgressParser(format models.DownloadFormat) *ProgressParser {
	return &ProgressParser{stages: stagesFor(format)}
}

// Stage returns the current download stage
func (p *ProgressParser) Stage() string {
	return p.stages[p.stageIdx]
}

// Feed consumes one output line. When the line carries a progress update
// worth emitting, it returns the update and true.
func (p *ProgressParser) Feed(line string) (Progress, bool) {
	if strings.Contains(line, "[download] Destination:") {
		if p.sawDest && p.stageIdx < len(p.stages)-1 {
			p.stageIdx++
		}
		p.sawDest = true
		return Progress{}, false
	}

	match := percentPattern.FindStringSubmatch(line)
	if match == nil {
		return Progress{}, false
	}

	percent, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return Progress{}, false
	}

	delta := percent - p.lastEmitted
	if delta < 0 {
		delta = -delta
	}
	if delta < emitThreshold && percent != 100 {
		return Progress{}, false
	}

	p.lastEmitted = percent
	return Progress{Percent: percent, Stage: p.Stage()}, true
}
