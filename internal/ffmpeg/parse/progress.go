// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VideoConverter - FFmpeg 视频转换编排工具

package parse

import (
	"math"
	"regexp"
	"strconv"
)

// time=HH:MM:SS.ff, as printed on FFmpeg status lines
var reTime = regexp.MustCompile(`time=\s*([0-9]+):([0-9]{2}):([0-9]{2})\.([0-9]+)`)

// Sample is a progress percentage in [0, 100]
type Sample struct {
	Percent int     `json:"percent"`
	Elapsed float64 `json:"elapsed_seconds"`
}

// Tracker turns FFmpeg output lines into progress samples for one
// conversion. Emitted percentages never decrease.
type Tracker struct {
	total float64
	last  int
}

// NewTracker creates a Tracker. A total <= 0 means the duration is unknown
// and the tracker never emits a sample.
func NewTracker(total float64) *Tracker {
	return &Tracker{total: total}
}

// Known reports whether percentages can be computed
func (t *Tracker) Known() bool {
	return t.total > 0
}

// Last returns the highest percentage emitted so far
func (t *Tracker) Last() int {
	return t.last
}

// OnLine returns a sample if line carries an elapsed time marker
func (t *Tracker) OnLine(line string) (Sample, bool) {
	if !t.Known() {
		return Sample{}, false
	}
	elapsed, ok := ParseTime(line)
	if !ok {
		return Sample{}, false
	}

	pct := int(math.Round(100 * elapsed / t.total))
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	if pct < t.last {
		pct = t.last
	}
	t.last = pct

	return Sample{Percent: pct, Elapsed: elapsed}, true
}

// ParseTime extracts the elapsed seconds of a time= marker
func ParseTime(line string) (float64, bool) {
	m := reTime.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	h, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	mm, _ := strconv.Atoi(m[2])
	s, _ := strconv.Atoi(m[3])
	if mm >= 60 || s >= 60 {
		return 0, false
	}
	frac, err := strconv.ParseFloat("0."+m[4], 64)
	if err != nil {
		return 0, false
	}
	return float64(h*3600+mm*60+s) + frac, true
}
