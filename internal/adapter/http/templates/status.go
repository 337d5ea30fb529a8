// Package templates renders the HTML served by the HTTP adapter.
package templates

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"
)

type StatusData struct {
	Version      string
	Domain       string
	MaxAttempts  int
	MaxJobs      int64
	JobsInFlight int64
	History      bool
}

// Status is the landing page. It lists the endpoints and the active retry
// policy and never shows job history or request data.
func Status(d StatusData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		e := templ.EscapeString[string]

		b.WriteString(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		b.WriteString(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		b.WriteString(`<title>ytaudio</title>`)
		b.WriteString(`<style>body{font-family:system-ui,sans-serif;max-width:42rem;margin:2rem auto;padding:0 1rem;color:#222}`)
		b.WriteString(`code{background:#f2f2f2;padding:.1rem .3rem;border-radius:3px}td{padding:.2rem .8rem .2rem 0}</style>`)
		b.WriteString(`</head><body>`)

		b.WriteString(`<h1>ytaudio</h1>`)
		fmt.Fprintf(&b, `<p>Audio extraction service <code>%s</code></p>`, e(d.Version))

		b.WriteString(`<h2>Endpoints</h2><table>`)
		row(&b, "POST /extract-audio", "Extract an MP3 track. Header <code>X-API-Key</code>, body <code>{\"videoUrl\": \"...\"}</code>")
		if d.History {
			row(&b, "GET /jobs", "Recent jobs (requires <code>X-API-Key</code>)")
		}
		row(&b, "GET /healthz", "Liveness")
		row(&b, "GET /metrics", "Prometheus metrics")
		b.WriteString(`</table>`)

		b.WriteString(`<h2>Status</h2><table>`)
		row(&b, "Retry attempts", e(fmt.Sprint(d.MaxAttempts)))
		if d.MaxJobs > 0 {
			row(&b, "Jobs running", e(fmt.Sprintf("%d / %d", d.JobsInFlight, d.MaxJobs)))
		} else {
			row(&b, "Jobs running", e(fmt.Sprint(d.JobsInFlight)))
		}
		if d.Domain != "" {
			row(&b, "Domain", e(d.Domain))
		}
		b.WriteString(`</table></body></html>`)

		_, err := io.WriteString(w, b.String())
		return err
	})
}

// row writes a table row. cells must already be escaped.
func row(b *strings.Builder, label, value string) {
	fmt.Fprintf(b, `<tr><td><code>%s</code></td><td>%s</td></tr>`, templ.EscapeString(label), value)
}
