package domain

import (
	"fmt"
	"strconv"
)

// ProbeResult is the subset of `ffprobe -print_format json` output the
// service reads.
type ProbeResult struct {
	Format  ProbeFormat   `json:"format"`
	Streams []ProbeStream `json:"streams"`
	RawJSON string        `json:"-"`
}

type ProbeFormat struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
}

type ProbeStream struct {
	CodecType  string `json:"codec_type"`
	CodecName  string `json:"codec_name"`
	Duration   string `json:"duration"`
	BitRate    string `json:"bit_rate"`
	SampleRate string `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

func (p *ProbeResult) AudioStream() *ProbeStream {
	for i := range p.Streams {
		if p.Streams[i].CodecType == "audio" {
			return &p.Streams[i]
		}
	}
	return nil
}

// AudioInfo flattens the probe into the fields reported to callers.
// Stream values win over container values when both are present.
func (p *ProbeResult) AudioInfo() *AudioInfo {
	info := &AudioInfo{
		DurationSeconds: ParseDuration(p.Format.Duration),
		BitRate:         FormatBitrate(p.Format.BitRate),
	}
	as := p.AudioStream()
	if as == nil {
		return info
	}
	info.Codec = as.CodecName
	info.Channels = as.Channels
	info.SampleRate = FormatSampleRate(as.SampleRate)
	if d := ParseDuration(as.Duration); d > 0 {
		info.DurationSeconds = d
	}
	if as.BitRate != "" {
		info.BitRate = FormatBitrate(as.BitRate)
	}
	return info
}

type unit struct {
	size float64
	name string
}

var (
	bitrateUnits = []unit{{1e6, "Mbps"}, {1e3, "Kbps"}}
	sizeUnits    = []unit{{1 << 30, "GB"}, {1 << 20, "MB"}, {1 << 10, "KB"}}
)

// scale renders v in the largest unit it reaches, or with fallback when it
// is below all of them.
func scale(v float64, units []unit, fallback string) string {
	for _, u := range units {
		if v >= u.size {
			return fmt.Sprintf("%.1f %s", v/u.size, u.name)
		}
	}
	return fmt.Sprintf(fallback, v)
}

// FormatDuration renders seconds as m:ss or h:mm:ss.
func FormatDuration(seconds float64) string {
	if seconds <= 0 {
		return "00:00"
	}
	total := int(seconds)
	h, m, s := total/3600, total%3600/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// FormatBitrate renders an ffprobe bit_rate value. Unparseable input is
// returned unchanged.
func FormatBitrate(raw string) string {
	if raw == "" {
		return ""
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return raw
	}
	return scale(v, bitrateUnits, "%.0f bps")
}

func FormatSampleRate(raw string) string {
	if raw == "" {
		return ""
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return raw
	}
	return fmt.Sprintf("%.0f Hz", v)
}

// ParseDuration reads an ffprobe duration in seconds; "N/A" and garbage
// are 0.
func ParseDuration(raw string) float64 {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return v
}

func FormatSize(bytes int64) string {
	return scale(float64(bytes), sizeUnits, "%.0f B")
}
