package asr

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

// SampleRate is the reference rate whisper models expect. Durations are
// computed against it: seconds = samples / SampleRate.
const SampleRate = 16000

// FFmpegDecoder decodes arbitrary audio containers to 16 kHz mono float32
// PCM by piping through an ffmpeg subprocess, which handles every format
// Telegram can deliver.
type FFmpegDecoder struct {
	binary string
}

func NewFFmpegDecoder() *FFmpegDecoder {
	return &FFmpegDecoder{binary: "ffmpeg"}
}

// DecodeAndResample reads the file at path and returns its samples as
// 16 kHz mono float32. A valid container with no audio yields zero samples
// and no error.
func (d *FFmpegDecoder) DecodeAndResample(ctx context.Context, path string) ([]float32, error) {
	cmd := exec.CommandContext(ctx, d.binary,
		"-nostdin",
		"-i", path,
		"-f", "s16le",
		"-ac", "1",
		"-acodec", "pcm_s16le",
		"-ar", fmt.Sprint(SampleRate),
		"-",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("failed to decode audio file: %w (%s)", err, lastLine(stderr.Bytes()))
	}

	return pcmToFloat32(stdout.Bytes())
}

func lastLine(b []byte) string {
	if i := bytes.LastIndexByte(bytes.TrimSpace(b), '\n'); i >= 0 {
		return string(bytes.TrimSpace(b)[i+1:])
	}
	return string(bytes.TrimSpace(b))
}

// pcmToFloat32 converts little-endian 16-bit PCM to normalized float32.
func pcmToFloat32(data []byte) ([]float32, error) {
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("pcm data length must be even for 16-bit audio")
	}
	floats := make([]float32, len(data)/2)
	for i := range floats {
		sample := int16(data[i*2]) | int16(data[i*2+1])<<8
		floats[i] = float32(sample) / 32768.0
	}
	return floats, nil
}
