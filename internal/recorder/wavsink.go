package recorder

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// wavSink encodes mono float samples into a .WAV file. The file is only
// valid once close has returned.
type wavSink struct {
	logger   *slog.Logger
	encoder  *wav.Encoder
	file     *os.File
	resample resampleFunc
	scale    float64
	buf      *goaudio.IntBuffer
}

func newWAVSink(path string, sourceRate, sinkRate, bitDepth int, logger *slog.Logger) (*wavSink, error) {
	switch bitDepth {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("unsupported bit depth %d", bitDepth)
	}

	f, err := os.Create(path)
	if err != nil {
		logger.Error(
			"could not create audio file",
			"audioFile", path,
			"err", err,
		)
		return nil, err
	}

	encoder := wav.NewEncoder(f, sinkRate, bitDepth, 1, 1)

	logger.Debug(
		"created audio file",
		"audioFile", path,
		"sourceRate", sourceRate,
		"sampleRate", encoder.SampleRate,
		"bitDepth", encoder.BitDepth,
	)

	return &wavSink{
		logger:   logger,
		encoder:  encoder,
		file:     f,
		resample: newResampleFunction(sourceRate, sinkRate),
		scale:    float64(int64(1)<<(bitDepth-1) - 1),
		buf: &goaudio.IntBuffer{
			Format: &goaudio.Format{
				SampleRate:  sinkRate,
				NumChannels: 1,
			},
			SourceBitDepth: bitDepth,
		},
	}, nil
}

// write appends samples at the source rate. Samples outside [-1, 1] are
// clipped.
func (w *wavSink) write(samples []float32) error {
	out := w.resample(samples)
	if len(out) == 0 {
		return nil
	}

	if cap(w.buf.Data) < len(out) {
		w.buf.Data = make([]int, len(out))
	}
	w.buf.Data = w.buf.Data[:len(out)]
	for i, sample := range out {
		v := math.Max(-1, math.Min(1, float64(sample)))
		w.buf.Data[i] = int(math.Round(v * w.scale))
	}

	return w.encoder.Write(w.buf)
}

func (w *wavSink) close() error {
	return errors.Join(
		w.encoder.Close(),
		w.file.Sync(),
		w.file.Close(),
	)
}
