package ffprobe

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/ytaudio/internal/domain"
)

const sampleOutput = `{
  "streams": [
    {"index": 0, "codec_name": "mp3", "codec_type": "audio", "sample_rate": "44100", "channels": 2, "bit_rate": "320000", "duration": "212.5"}
  ],
  "format": {"format_name": "mp3", "duration": "212.532", "size": "8501280", "bit_rate": "320003", "nb_streams": 1}
}`

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr error
	}{
		{name: "valid path", path: "/tmp/audio.mp3"},
		{name: "valid path with spaces", path: "/tmp/my audio.mp3"},
		{name: "empty path", path: "", wantErr: domain.ErrEmptyPath},
		{name: "null byte", path: "/tmp/\x00audio.mp3", wantErr: ErrInvalidPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validatePath(tt.path)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestParse(t *testing.T) {
	result, err := parse([]byte(sampleOutput))
	require.NoError(t, err)

	info := result.AudioInfo()
	assert.Equal(t, "mp3", info.Codec)
	assert.InDelta(t, 212.5, info.DurationSeconds, 0.001)
	assert.Equal(t, "320.0 Kbps", info.BitRate)
	assert.Equal(t, "44100 Hz", info.SampleRate)
	assert.Equal(t, 2, info.Channels)
	assert.JSONEq(t, sampleOutput, result.RawJSON)
}

func TestParse_Errors(t *testing.T) {
	_, err := parse([]byte("not json"))
	assert.Error(t, err)

	_, err = parse([]byte(`{"streams":[{"codec_type":"video"}],"format":{}}`))
	assert.EqualError(t, err, "no audio stream found")
}

func TestProber_RunsBinary(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	dir := t.TempDir()
	bin := filepath.Join(dir, "ffprobe")
	script := "#!/bin/sh\ncat <<'JSON'\n" + sampleOutput + "\nJSON\n"
	require.NoError(t, os.WriteFile(bin, []byte(script), 0o755))

	result, err := NewProber(bin).Probe(context.Background(), filepath.Join(dir, "audio.mp3"))
	require.NoError(t, err)
	assert.Equal(t, "mp3", result.Format.FormatName)
}

func TestProber_BinaryFailure(t *testing.T) {
	_, err := NewProber(filepath.Join(t.TempDir(), "missing")).Probe(context.Background(), "/tmp/a.mp3")
	assert.ErrorContains(t, err, "ffprobe failed")
}
