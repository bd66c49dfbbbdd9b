package upload

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/synapsedaili/youtube-automation/types"
)

// DefaultTitleMax is the platform title ceiling the channel works to.
const DefaultTitleMax = 95

// BuildMetadata derives upload metadata from the topic and final script.
// The description is the opening of the script followed by the mode footer.
func BuildMetadata(topic string, script types.Script, mode types.ModeProfile, titleMax int) types.VideoMetadata {
	if titleMax <= 0 {
		titleMax = DefaultTitleMax
	}

	descLen := mode.DescriptionLen
	if descLen <= 0 {
		descLen = 300
	}
	var desc strings.Builder
	body := strings.TrimSpace(script.Text)
	if utf8.RuneCountInString(body) > descLen {
		desc.WriteString(strings.TrimSpace(string([]rune(body)[:descLen])))
		desc.WriteString("...")
	} else {
		desc.WriteString(body)
	}
	if mode.Footer != "" {
		desc.WriteString("\n\n")
		desc.WriteString(mode.Footer)
	}

	visibility := mode.Visibility
	if visibility == "" {
		visibility = types.VisibilityPrivate
	}

	return types.VideoMetadata{
		Title:       Title(topic, titleMax),
		Description: desc.String(),
		Tags:        append([]string(nil), mode.Tags...),
		CategoryID:  mode.CategoryID,
		Visibility:  visibility,
	}
}

// Title trims the topic to max runes, marking a cut with "...".
func Title(topic string, max int) string {
	topic = strings.Join(strings.Fields(topic), " ")
	if utf8.RuneCountInString(topic) <= max {
		return topic
	}
	if max <= 3 {
		return string([]rune(topic)[:max])
	}
	r := []rune(topic)[:max-3]
	return strings.TrimRight(string(r), " ") + "..."
}

// NextPublishTime returns the next HH:MM wall-clock time in tz strictly after
// now, formatted as RFC 3339 UTC.
func NextPublishTime(now time.Time, hhmm, tz string) (string, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return "", fmt.Errorf("%w: timezone %q: %w", types.ErrConfiguration, tz, err)
	}
	clock, err := time.Parse("15:04", hhmm)
	if err != nil {
		return "", fmt.Errorf("%w: publish_at %q must be HH:MM", types.ErrConfiguration, hhmm)
	}

	local := now.In(loc)
	at := time.Date(local.Year(), local.Month(), local.Day(), clock.Hour(), clock.Minute(), 0, 0, loc)
	if !at.After(local) {
		at = at.AddDate(0, 0, 1)
	}
	return at.UTC().Format(time.RFC3339), nil
}
