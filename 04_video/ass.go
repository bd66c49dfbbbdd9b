package video

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// ASS colours are &HAABBGGRR.
const (
	assWhite     = "&H00FFFFFF"
	assBlack     = "&H00000000"
	assSemiBlack = "&H80000000"
)

// CaptionStyle sizes the caption track to the output frame.
type CaptionStyle struct {
	Width    int
	Height   int
	Font     string
	FontSize int
}

// WriteASS renders cues as an Advanced SubStation Alpha file: white text
// with a black outline, top-centre, wrapped inside the side margins.
func WriteASS(path string, cues []Cue, style CaptionStyle) error {
	var sb strings.Builder

	sb.WriteString("[Script Info]\n")
	sb.WriteString("ScriptType: v4.00+\n")
	fmt.Fprintf(&sb, "PlayResX: %d\n", style.Width)
	fmt.Fprintf(&sb, "PlayResY: %d\n", style.Height)
	sb.WriteString("WrapStyle: 0\n")
	sb.WriteString("ScaledBorderAndShadow: yes\n\n")

	sb.WriteString("[V4+ Styles]\n")
	sb.WriteString("Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding\n")
	margin := style.Width / 18
	fmt.Fprintf(&sb, "Style: Default,%s,%d,%s,%s,%s,%s,-1,0,0,0,100,100,0,0,1,3,1,8,%d,%d,%d,1\n\n",
		style.Font, style.FontSize,
		assWhite, assWhite, assBlack, assSemiBlack,
		margin, margin, style.Height/8,
	)

	sb.WriteString("[Events]\n")
	sb.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")
	for _, c := range cues {
		fmt.Fprintf(&sb, "Dialogue: 0,%s,%s,Default,,0,0,0,,%s\n",
			formatASSTime(c.Start), formatASSTime(c.End), escapeASS(c.Text))
	}

	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("write caption file: %w", err)
	}
	return nil
}

// formatASSTime renders H:MM:SS.CC (centiseconds).
func formatASSTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	cs := d.Milliseconds() / 10
	return fmt.Sprintf("%d:%02d:%02d.%02d", cs/360000, cs/6000%60, cs/100%60, cs%100)
}

var assEscaper = strings.NewReplacer(
	"\\", "/",
	"{", "(",
	"}", ")",
	"\r", "",
	"\n", "\\N",
)

func escapeASS(s string) string { return assEscaper.Replace(s) }
