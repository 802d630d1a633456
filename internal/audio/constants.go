package audio

const (
	// DefaultSampleRate matches what speech models expect.
	DefaultSampleRate = 16000

	// FramesPerBuffer is ~64ms of audio at 16kHz.
	FramesPerBuffer = 1024

	wavHeaderLen   = 44
	bytesPerSample = 2
)
