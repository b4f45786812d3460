package recorder

import (
	"encoding/binary"
	"io"
	"time"

	"github.com/pkg/errors"
)

// DurationProber reads an audio file's duration from its metadata. A zero duration means unknown.
type DurationProber interface {
	Probe(r io.ReadSeeker, mimeType string) (time.Duration, error)
}

type ProberFunc func(r io.ReadSeeker, mimeType string) (time.Duration, error)

func (f ProberFunc) Probe(r io.ReadSeeker, mimeType string) (time.Duration, error) {
	return f(r, mimeType)
}

var errNotWAV = errors.New("not a RIFF/WAVE file")

// WAVProber reads the duration of PCM WAV files from their header. Other formats report 0.
var WAVProber = ProberFunc(func(r io.ReadSeeker, mimeType string) (time.Duration, error) {
	switch mimeType {
	case "audio/wav", "audio/x-wav", "audio/wave", "audio/vnd.wave":
	default:
		return 0, nil
	}
	d, err := wavDuration(r)
	if err == errNotWAV {
		return 0, nil
	}
	return d, err
})

func wavDuration(r io.ReadSeeker) (time.Duration, error) {
	end, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return 0, errNotWAV
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return 0, errNotWAV
	}

	var byteRate uint32
	for {
		var hdr [8]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			return 0, nil // no data chunk
		}
		id := string(hdr[0:4])
		size := int64(binary.LittleEndian.Uint32(hdr[4:8]))
		pos, err := r.Seek(0, io.SeekCurrent)
		if err != nil {
			return 0, err
		}

		switch id {
		case "fmt ":
			if size < 16 || size > end-pos {
				return 0, errNotWAV
			}
			var fmtChunk [16]byte
			if _, err := io.ReadFull(r, fmtChunk[:]); err != nil {
				return 0, errNotWAV
			}
			byteRate = binary.LittleEndian.Uint32(fmtChunk[8:12])
			// chunks are word aligned
			if _, err := r.Seek(size-16+size%2, io.SeekCurrent); err != nil {
				return 0, errNotWAV
			}
		case "data":
			if byteRate == 0 {
				return 0, nil
			}
			return time.Duration(float64(size) / float64(byteRate) * float64(time.Second)), nil
		default:
			if size > end-pos {
				return 0, errNotWAV
			}
			if _, err := r.Seek(size+size%2, io.SeekCurrent); err != nil {
				return 0, nil
			}
		}
	}
}
