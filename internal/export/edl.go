package export

import (
	"fmt"
	"math"
	"strings"
)

// GenerateEDL writes a CMX3600 edit list that cuts the clips back to back
// on the record side.
func GenerateEDL(clips []ResolvedClip, title string, frameRate float64) string {
	fps := int(math.Round(frameRate))
	if fps <= 0 {
		fps = 30
	}

	fcm := "FCM: NON-DROP FRAME"
	if math.Abs(frameRate-29.97) < 0.01 || math.Abs(frameRate-59.94) < 0.01 {
		fcm = "FCM: DROP FRAME"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "TITLE: %s\n%s\n\n", title, fcm)

	recordMs := 0
	for i, clip := range clips {
		dur := clip.EndMs - clip.StartMs
		fmt.Fprintf(&b, "%03d  %-8s %-5s C        %s %s %s %s\n",
			i+1, "AX", "V",
			timecode(clip.StartMs, fps), timecode(clip.EndMs, fps),
			timecode(recordMs, fps), timecode(recordMs+dur, fps),
		)
		fmt.Fprintf(&b, "* FROM CLIP NAME:  %s\n", clip.ClipName)
		if clip.MediaPath != "" {
			fmt.Fprintf(&b, "* MEDIA PATH:  %s\n", clip.MediaPath)
		}
		if clip.Comment != "" {
			fmt.Fprintf(&b, "* COMMENT:  %s\n", clip.Comment)
		}
		recordMs += dur
	}

	b.WriteString("\n")
	return b.String()
}

// HighlightEDL is the edit list of every laughter window in result order.
func HighlightEDL(highlights []Highlight, opts Options) string {
	opts = opts.withDefaults()
	return GenerateEDL(Clips(highlights, opts), CleanLabel(opts.Title, 80), opts.FrameRate)
}

func timecode(ms int, fps int) string {
	frames := int(math.Round(float64(ms) * float64(fps) / 1000.0))
	ff := frames % fps
	secs := frames / fps
	return fmt.Sprintf("%02d:%02d:%02d:%02d", secs/3600, secs/60%60, secs%60, ff)
}
