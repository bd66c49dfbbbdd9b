package video

import (
	"fmt"
	"os"
	"time"
)

// musicBed is a track looped under the narration at low volume.
type musicBed struct {
	path   string
	volume float64
	fade   time.Duration
}

// music returns the configured bed, or nil when none is set or the file is
// missing.
func (c *Compositor) music() *musicBed {
	if c.cfg.Music == "" {
		return nil
	}
	if _, err := os.Stat(c.cfg.Music); err != nil {
		c.log.Warn("music bed unavailable, narration only", "path", c.cfg.Music, "err", err)
		return nil
	}
	vol := c.cfg.MusicVolume
	if vol <= 0 || vol > 1 {
		vol = 0.12
	}
	return &musicBed{
		path:   c.cfg.Music,
		volume: vol,
		fade:   time.Duration(c.cfg.MusicFadeSec * float64(time.Second)),
	}
}

// filter mixes input 2 under the narration (input 1) with fades at both
// ends, labelled [aout].
func (m *musicBed) filter(total time.Duration) string {
	fade := m.fade.Seconds()
	if half := total.Seconds() / 2; fade > half {
		fade = half
	}
	bed := fmt.Sprintf("[2:a]volume=%.2f", m.volume)
	if fade > 0 {
		bed += fmt.Sprintf(",afade=t=in:st=0:d=%.2f,afade=t=out:st=%.3f:d=%.2f",
			fade, total.Seconds()-fade, fade)
	}
	return bed + "[bed];[1:a][bed]amix=inputs=2:duration=first:dropout_transition=0:normalize=0[aout]"
}
