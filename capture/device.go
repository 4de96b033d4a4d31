package capture

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/pridepath/session-pipeline/clients"
)

const defaultBands = 32

// FileDevice plays an audio file back as if it were a live microphone. The spectrum
// is a coarse per-band energy of the latest chunk read as 16-bit PCM, which is
// enough to drive the level display.
type FileDevice struct {
	Path      string
	ChunkSize int
	Bands     int
	// Pace is the delay between chunks; zero streams as fast as the reader allows.
	Pace time.Duration
}

// MIMEType is the content type implied by the file's extension.
func (d *FileDevice) MIMEType() string { return clients.MIMEForPath(d.Path) }

func (d *FileDevice) Open(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(d.Path)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, d.Path)
		}
		return nil, err
	}

	size := d.ChunkSize
	if size <= 0 {
		size = 32 * 1024
	}
	bands := d.Bands
	if bands <= 0 {
		bands = defaultBands
	}
	s := &fileStream{
		f:     f,
		ch:    make(chan []byte),
		quit:  make(chan struct{}),
		bands: bands,
	}
	s.wg.Add(1)
	go s.read(size, d.Pace)
	return s, nil
}

type fileStream struct {
	f     *os.File
	ch    chan []byte
	quit  chan struct{}
	bands int
	wg    sync.WaitGroup
	once  sync.Once

	mu       sync.Mutex
	spectrum []byte
}

func (s *fileStream) read(size int, pace time.Duration) {
	defer s.wg.Done()
	defer close(s.ch)
	for {
		buf := make([]byte, size)
		n, err := io.ReadFull(s.f, buf)
		if n > 0 {
			chunk := buf[:n]
			spec := bandEnergy(chunk, s.bands)
			s.mu.Lock()
			s.spectrum = spec
			s.mu.Unlock()

			select {
			case s.ch <- chunk:
			case <-s.quit:
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				log.WithError(err).Warn("audio file read failed")
			}
			return
		}
		if pace > 0 {
			select {
			case <-time.After(pace):
			case <-s.quit:
				return
			}
		}
	}
}

func (s *fileStream) Chunks() <-chan []byte { return s.ch }

func (s *fileStream) Spectrum() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.spectrum...)
}

func (s *fileStream) Close() error {
	var err error
	s.once.Do(func() {
		close(s.quit)
		s.wg.Wait()
		err = s.f.Close()
	})
	return err
}

// bandEnergy splits pcm (16-bit little endian) into n contiguous bands and returns
// each band's RMS scaled to 0-255.
func bandEnergy(pcm []byte, n int) []byte {
	samples := len(pcm) / 2
	if samples == 0 || n <= 0 {
		return nil
	}
	if n > samples {
		n = samples
	}
	out := make([]byte, n)
	per := samples / n
	for b := 0; b < n; b++ {
		lo, hi := b*per, (b+1)*per
		if b == n-1 {
			hi = samples
		}
		sum := 0.0
		for i := lo; i < hi; i++ {
			v := float64(int16(binary.LittleEndian.Uint16(pcm[2*i:]))) / 32768
			sum += v * v
		}
		rms := math.Sqrt(sum / float64(hi-lo))
		out[b] = byte(math.Min(255, math.Round(rms*255)))
	}
	return out
}
