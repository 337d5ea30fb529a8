package ytdlp

import (
	"strings"

	"github.com/bnema/ytaudio/internal/domain"
)

// Marker is a stderr substring that maps an attempt to an outcome kind.
type Marker struct {
	Text string
	Kind domain.OutcomeKind
}

// Markers is checked in order; rate limiting wins over unavailability when
// both appear. These strings follow yt-dlp's current wording and are not a
// stable contract, so an upgrade can stop them matching.
var Markers = []Marker{
	{Text: "429: Too Many Requests", Kind: domain.OutcomeRateLimited},
	{Text: "HTTP Error 429", Kind: domain.OutcomeRateLimited},
	{Text: "content isn't available", Kind: domain.OutcomeContentUnavailable},
	{Text: "Video unavailable", Kind: domain.OutcomeContentUnavailable},
	{Text: "Private video", Kind: domain.OutcomeContentUnavailable},
}

// Classify maps the stderr of a failed attempt to an outcome kind.
func Classify(stderr string) domain.OutcomeKind {
	for _, m := range Markers {
		if strings.Contains(stderr, m.Text) {
			return m.Kind
		}
	}
	return domain.OutcomeOtherFailure
}
