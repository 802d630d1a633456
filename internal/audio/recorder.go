// Package audio records from the default input device into an in-memory
// WAV clip suitable for the transcription gateway.
package audio

import (
	"log/slog"
	"math"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/scribeflow/platform/internal/errors"
)

// Recorder captures a single mono clip from the default input device.
// One recording at a time; Start while recording is a validation error.
type Recorder struct {
	mu         sync.Mutex
	stream     *portaudio.Stream
	samples    []float32
	sampleRate int
	recording  bool
}

// NewRecorder initializes the audio subsystem and returns a recorder at
// the given sample rate.
func NewRecorder(sampleRate int) (*Recorder, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, errors.Wrap(err, errors.CodeUnknown, "initialize audio subsystem")
	}
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return &Recorder{sampleRate: sampleRate}, nil
}

// Recording reports whether a clip is currently being captured.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// Start opens the default input device and begins accumulating samples.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.recording {
		return errors.New(errors.CodeValidation, "recording already in progress")
	}

	buf := make([]float32, FramesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(r.sampleRate), FramesPerBuffer, buf)
	if err != nil {
		return errors.Wrap(err, errors.CodeUnknown, "open default input device")
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return errors.Wrap(err, errors.CodeUnknown, "start input stream")
	}

	r.stream = stream
	r.samples = r.samples[:0]
	r.recording = true

	go r.pump(stream, buf)

	slog.Info("recording started", "sample_rate", r.sampleRate)
	return nil
}

// pump drains the stream until Stop closes it. Read returning an error is
// the shutdown signal.
func (r *Recorder) pump(stream *portaudio.Stream, buf []float32) {
	for {
		if err := stream.Read(); err != nil {
			return
		}
		r.mu.Lock()
		if !r.recording {
			r.mu.Unlock()
			return
		}
		r.samples = append(r.samples, buf...)
		r.mu.Unlock()
	}
}

// Stop ends the recording and returns the captured clip encoded as a
// 16-bit PCM WAV file.
func (r *Recorder) Stop() ([]byte, error) {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return nil, errors.New(errors.CodeValidation, "no recording in progress")
	}
	r.recording = false
	stream := r.stream
	r.stream = nil
	samples := r.samples
	r.samples = nil
	r.mu.Unlock()

	if err := stream.Stop(); err != nil {
		slog.Warn("stopping input stream", "error", err)
	}
	if err := stream.Close(); err != nil {
		slog.Warn("closing input stream", "error", err)
	}

	slog.Info("recording stopped", "samples", len(samples))
	return EncodeWAV(samples, r.sampleRate), nil
}

// Close tears down the audio subsystem.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.recording && r.stream != nil {
		r.recording = false
		r.stream.Stop()
		r.stream.Close()
		r.stream = nil
	}
	r.mu.Unlock()
	return portaudio.Terminate()
}

// EncodeWAV packs float32 samples into a mono 16-bit PCM WAV file.
func EncodeWAV(samples []float32, sampleRate int) []byte {
	dataLen := len(samples) * bytesPerSample
	out := make([]byte, 0, wavHeaderLen+dataLen)

	out = append(out, "RIFF"...)
	out = appendUint32(out, uint32(wavHeaderLen-8+dataLen))
	out = append(out, "WAVE"...)

	out = append(out, "fmt "...)
	out = appendUint32(out, 16) // PCM chunk size
	out = appendUint16(out, 1)  // PCM format
	out = appendUint16(out, 1)  // mono
	out = appendUint32(out, uint32(sampleRate))
	out = appendUint32(out, uint32(sampleRate*bytesPerSample)) // byte rate
	out = appendUint16(out, bytesPerSample)                    // block align
	out = appendUint16(out, 16)                                // bits per sample

	out = append(out, "data"...)
	out = appendUint32(out, uint32(dataLen))
	for _, s := range samples {
		out = appendUint16(out, uint16(clampSample(s)))
	}
	return out
}

// clampSample converts a float sample to int16 with saturation.
func clampSample(s float32) int16 {
	scaled := float64(s) * math.MaxInt16
	if scaled > math.MaxInt16 {
		return math.MaxInt16
	}
	if scaled < math.MinInt16 {
		return math.MinInt16
	}
	return int16(scaled)
}

func appendUint16(b []byte, v uint16) []byte {
	return append(b, byte(v), byte(v>>8))
}

func appendUint32(b []byte, v uint32) []byte {
	return append(b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}
