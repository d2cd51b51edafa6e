// Command gen-ts writes a synthetic H.264 + AAC MPEG-TS file for exercising
// the player without real media.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/zsiec/framepace/test/tools/tsutil"
)

func main() {
	def := tsutil.Default()
	out := flag.String("o", "test.ts", "Output file")
	seconds := flag.Float64("duration", 1, "Duration in seconds")
	fps := flag.Int("fps", def.FrameRate, "Video frame rate")
	gop := flag.Int("gop", def.GOP, "Frames per keyframe interval")
	rate := flag.Int("rate", def.SampleRate, "Audio sample rate")
	channels := flag.Int("channels", def.Channels, "Audio channels")
	noAudio := flag.Bool("no-audio", false, "Omit the audio stream")
	noVideo := flag.Bool("no-video", false, "Omit the video stream")
	start := flag.Int64("start", def.StartPTS, "First PTS in 90 kHz ticks")
	flag.Parse()

	f := tsutil.Fixture{
		FrameRate:  *fps,
		GOP:        *gop,
		SampleRate: *rate,
		Channels:   *channels,
		StartPTS:   *start,
	}
	if !*noVideo {
		f.VideoFrames = int(*seconds * float64(*fps))
	}
	if !*noAudio {
		f.AudioFrames = int(*seconds * float64(*rate) / 1024)
	}

	if err := tsutil.WriteFile(*out, f); err != nil {
		fmt.Fprintf(os.Stderr, "gen-ts: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("wrote %s: %d video frames, %d audio frames\n", *out, f.VideoFrames, f.AudioFrames)
}
