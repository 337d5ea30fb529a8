// Package ytdlp drives the yt-dlp command line tool.
package ytdlp

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/bnema/ytaudio/internal/domain"
	"github.com/bnema/ytaudio/internal/port"
)

const DefaultBinary = "yt-dlp"

// Options are the fixed extraction flags shared by every job. Nothing in a
// request can change them.
type Options struct {
	AudioFormat      string
	AudioQuality     string
	UserAgent        string
	AcceptLanguage   string
	PlayerClient     string
	ExtractorRetries int
	SocketTimeout    int
}

func DefaultOptions() Options {
	return Options{
		AudioFormat:      "mp3",
		AudioQuality:     "0",
		UserAgent:        "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		AcceptLanguage:   "en-US,en;q=0.9",
		PlayerClient:     "android",
		ExtractorRetries: 10,
		SocketTimeout:    30,
	}
}

var youtubeHosts = []string{"youtube.com", "youtu.be", "youtube-nocookie.com"}

// Build returns the argument vector for one extraction. rawURL and
// cookiesPath are passed as single arguments and never interpreted; rawURL
// always follows "--" so a leading dash cannot turn it into an option.
func Build(binary, rawURL string, opts Options, outputPath, cookiesPath string) domain.Command {
	if binary == "" {
		binary = DefaultBinary
	}

	args := []string{
		"-x",
		"--audio-format", opts.AudioFormat,
		"--audio-quality", opts.AudioQuality,
		"--force-ipv4",
		"--no-warnings",
		"--geo-bypass",
		"--add-header", "Accept-Language:" + opts.AcceptLanguage,
		"--add-header", "User-Agent:" + opts.UserAgent,
		"--extractor-args", "youtube:player_client=" + opts.PlayerClient,
		"--extractor-retries", strconv.Itoa(opts.ExtractorRetries),
		"--socket-timeout", strconv.Itoa(opts.SocketTimeout),
		"--no-playlist",
	}

	if IsYouTube(rawURL) {
		args = append(args, "--extractor-args", "youtube:skip=dash")
	}

	if cookiesPath != "" {
		args = append(args, "--cookies", cookiesPath)
	}

	args = append(args, "-o", outputPath, "--", rawURL)

	return domain.Command{
		Binary:     binary,
		Args:       args,
		OutputPath: outputPath,
	}
}

// IsYouTube reports whether rawURL points at a YouTube host or subdomain.
func IsYouTube(rawURL string) bool {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}
	for _, h := range youtubeHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

// Builder binds a binary and option set to Build.
type Builder struct {
	Binary  string
	Options Options
}

func NewBuilder(binary string, opts Options) *Builder {
	return &Builder{Binary: binary, Options: opts}
}

func (b *Builder) Build(rawURL, outputPath, cookiesPath string) domain.Command {
	return Build(b.Binary, rawURL, b.Options, outputPath, cookiesPath)
}

var _ port.CommandBuilder = (*Builder)(nil)
