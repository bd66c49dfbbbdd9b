package video

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Cue is one caption on screen between Start and End.
type Cue struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

// SplitCaptions packs words greedily into lines of at most maxChars runes.
// A word longer than maxChars gets a line of its own.
func SplitCaptions(text string, maxChars int) []string {
	if maxChars <= 0 {
		maxChars = 60
	}
	var lines []string
	var cur strings.Builder
	curLen := 0
	for _, word := range strings.Fields(text) {
		n := utf8.RuneCountInString(word)
		if curLen > 0 && curLen+1+n > maxChars {
			lines = append(lines, cur.String())
			cur.Reset()
			curLen = 0
		}
		if curLen > 0 {
			cur.WriteByte(' ')
			curLen++
		}
		cur.WriteString(word)
		curLen += n
	}
	if curLen > 0 {
		lines = append(lines, cur.String())
	}
	return lines
}

// Timeline lays chunks end to end. Each cue lasts words*perWord seconds,
// at least floor seconds, and never runs past total. Chunks that would
// start at or after total are dropped.
func Timeline(chunks []string, total time.Duration, perWord, floor float64) []Cue {
	var cues []Cue
	var start time.Duration
	for _, chunk := range chunks {
		if start >= total {
			break
		}
		secs := float64(len(strings.Fields(chunk))) * perWord
		if secs < floor {
			secs = floor
		}
		d := time.Duration(secs * float64(time.Second))
		if remaining := total - start; d > remaining {
			d = remaining
		}
		if d <= 0 {
			break
		}
		cues = append(cues, Cue{Start: start, End: start + d, Text: chunk})
		start += d
	}
	return cues
}
