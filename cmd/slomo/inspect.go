package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/zsiec/slomo/internal/container"
	"github.com/zsiec/slomo/internal/media"
)

type timeCodeInfo struct {
	Position   time.Duration `json:"position_ns"`
	FrameIndex int64         `json:"frame_index"`
	FrameStart time.Duration `json:"frame_start_ns"`
	TimeCode   string        `json:"time_code"`
}

type inspectOutput struct {
	container.Info
	At *timeCodeInfo `json:"at,omitempty"`
}

func runInspect(args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	at := fs.String("at", "", "Also resolve the frame shown at this position (duration or seconds)")
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("usage: slomo inspect [-at position] <recording.flv>")
	}

	asset, err := container.Open(fs.Arg(0))
	if err != nil {
		return err
	}

	out := inspectOutput{Info: asset.Info()}
	if *at != "" {
		pos, err := parseDuration(*at)
		if err != nil {
			return err
		}
		idx := media.FrameIndexAt(pos, asset.FrameRate())
		if last := asset.FrameCount() - 1; idx > last {
			idx = last
		}
		out.At = &timeCodeInfo{
			Position:   pos,
			FrameIndex: idx,
			FrameStart: media.FrameStart(idx, asset.FrameRate()),
			TimeCode:   media.FormatTimeCode(idx, asset.FrameRate()),
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func parseDuration(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		if d < 0 {
			return 0, fmt.Errorf("position cannot be negative")
		}
		return d, nil
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil || secs < 0 {
		return 0, fmt.Errorf("invalid position %q", s)
	}
	return time.Duration(secs * float64(time.Second)), nil
}
