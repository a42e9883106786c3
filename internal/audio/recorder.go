package audio

import (
	"context"
	"math"
	"time"

	"github.com/gordonklaus/portaudio"
)

const (
	SampleRate = 16000
	frameSize  = 320 // 20ms
)

// VAD is the energy gate used to cut an utterance out of the stream.
type VAD struct {
	Threshold float64       // frame RMS above which a frame counts as speech
	Silence   time.Duration // trailing silence that ends the utterance
	Wait      time.Duration // how long to wait for speech to start
}

var DefaultVAD = VAD{
	Threshold: 0.015,
	Silence:   600 * time.Millisecond,
	Wait:      5 * time.Second,
}

type Recorder struct {
	vad VAD
}

func NewRecorder(vad VAD) *Recorder { return &Recorder{vad: vad} }

func (r *Recorder) Init() error {
	return portaudio.Initialize()
}

func (r *Recorder) Close() {
	portaudio.Terminate()
}

// Capture records one utterance from the default input device as 16 kHz
// mono PCM. It stops after trailing silence, after maxDur of audio, or when
// no speech starts within the VAD wait, in which case it returns no samples
// and no error.
func (r *Recorder) Capture(ctx context.Context, maxDur time.Duration) ([]float32, error) {
	buf := make([]float32, frameSize)

	stream, err := portaudio.OpenDefaultStream(1, 0, SampleRate, len(buf), buf)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return nil, err
	}
	defer stream.Stop()

	seg := newSegmenter(r.vad, maxDur)
	for !seg.done() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := stream.Read(); err != nil {
			return nil, err
		}
		seg.push(buf)
	}

	return seg.out, nil
}

// segmenter holds the frame-by-frame VAD state, kept apart from the device
// so it can be fed synthetic frames.
type segmenter struct {
	vad           VAD
	maxFrames     int
	waitFrames    int
	silenceFrames int

	frames   int
	speaking bool
	quiet    int
	out      []float32
	finished bool
}

func newSegmenter(vad VAD, maxDur time.Duration) *segmenter {
	perFrame := time.Second * frameSize / SampleRate
	if maxDur <= 0 {
		maxDur = 10 * time.Second
	}
	return &segmenter{
		vad:           vad,
		maxFrames:     int(maxDur / perFrame),
		waitFrames:    int(vad.Wait / perFrame),
		silenceFrames: int(vad.Silence / perFrame),
		out:           make([]float32, 0, SampleRate*3),
	}
}

func (s *segmenter) push(frame []float32) {
	s.frames++

	if frameRMS(frame) > s.vad.Threshold {
		s.speaking = true
		s.quiet = 0
		s.out = append(s.out, frame...)
	} else if s.speaking {
		s.quiet++
		s.out = append(s.out, frame...)
		if s.quiet >= s.silenceFrames {
			s.finished = true
		}
	} else if s.waitFrames > 0 && s.frames >= s.waitFrames {
		s.finished = true
	}

	if s.frames >= s.maxFrames {
		s.finished = true
	}
}

func (s *segmenter) done() bool { return s.finished }

func frameRMS(f []float32) float64 {
	if len(f) == 0 {
		return 0
	}
	var s float64
	for _, x := range f {
		s += float64(x * x)
	}
	return math.Sqrt(s / float64(len(f)))
}
