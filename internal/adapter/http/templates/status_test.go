package templates

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, d StatusData) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Status(d).Render(context.Background(), &buf))
	return buf.String()
}

func TestStatus_Renders(t *testing.T) {
	html := render(t, StatusData{Version: "v1.2.3", MaxAttempts: 3, MaxJobs: 4, JobsInFlight: 1, History: true})

	assert.Contains(t, html, "<title>ytaudio</title>")
	assert.Contains(t, html, "v1.2.3")
	assert.Contains(t, html, "POST /extract-audio")
	assert.Contains(t, html, "GET /jobs")
	assert.Contains(t, html, "1 / 4")
}

func TestStatus_HidesJobsWithoutHistory(t *testing.T) {
	html := render(t, StatusData{Version: "dev", MaxAttempts: 3})

	assert.NotContains(t, html, "GET /jobs")
	assert.Contains(t, html, "<td>0</td>")
}

func TestStatus_EscapesValues(t *testing.T) {
	html := render(t, StatusData{Version: `<script>alert(1)</script>`, Domain: `"><img src=x>`})

	assert.NotContains(t, html, "<script>alert(1)</script>")
	assert.Contains(t, html, "&lt;script&gt;")
	assert.NotContains(t, html, `"><img`)
}

func TestStatus_RendersDomainAndAttempts(t *testing.T) {
	html := render(t, StatusData{Version: "dev", Domain: "audio.example.com", MaxAttempts: 5})

	assert.True(t, strings.HasPrefix(html, "<!DOCTYPE html>"))
	assert.Contains(t, html, "<td>audio.example.com</td>")
	assert.Contains(t, html, "<td>5</td>")
	assert.True(t, strings.HasSuffix(html, "</html>"))
}
