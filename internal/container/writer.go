package container

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/yutopp/go-amf0"
	"github.com/yutopp/go-flv"
	"github.com/yutopp/go-flv/tag"

	"github.com/zsiec/slomo/internal/capture"
	"github.com/zsiec/slomo/internal/media"
)

const writeBufferSize = 256 * 1024

// Writer appends captured frames to an FLV file. Append must be called from
// one goroutine; Finalize may be called from any goroutine and is
// idempotent.
type Writer struct {
	path   string
	format media.CaptureFormat

	file *os.File
	buf  *bufio.Writer
	enc  *flv.Encoder

	mu        sync.Mutex
	summary   Summary
	started   bool
	finalized bool
	err       error
}

// Create creates path (and its parent directories) and writes the FLV
// header and the onMetaData tag for format.
func Create(path string, format media.CaptureFormat) (*Writer, error) {
	if !format.FrameRate.IsValid() {
		return nil, fmt.Errorf("invalid frame rate %s", format.FrameRate)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create recording directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create recording: %w", err)
	}

	buf := bufio.NewWriterSize(file, writeBufferSize)
	enc, err := flv.NewEncoder(buf, flv.FlagsVideo)
	if err != nil {
		file.Close()
		os.Remove(path)
		return nil, fmt.Errorf("failed to write flv header: %w", err)
	}

	w := &Writer{path: path, format: format, file: file, buf: buf, enc: enc}
	if err := w.writeScript(metaDataName, metaDataFor(format, int(tag.CodecIDAVC), time.Now()), 0); err != nil {
		file.Close()
		os.Remove(path)
		return nil, fmt.Errorf("failed to write metadata: %w", err)
	}
	return w, nil
}

// NewFactory returns a capture.WriterFactory backed by Create.
func NewFactory() capture.WriterFactory {
	return capture.WriterFactoryFunc(func(path string, format media.CaptureFormat) (capture.Writer, error) {
		w, err := Create(path, format)
		if err != nil {
			return nil, err
		}
		return w, nil
	})
}

func (w *Writer) Path() string {
	return w.path
}

func (w *Writer) writeScript(name string, obj amf0.ECMAArray, ts uint32) error {
	return w.enc.Encode(&tag.FlvTag{
		TagType:   tag.TagTypeScriptData,
		Timestamp: ts,
		Data: &tag.ScriptData{
			Objects: map[string]amf0.ECMAArray{name: obj},
		},
	})
}

// tagTimestamp converts pts to milliseconds since the first frame.
func (w *Writer) tagTimestamp(pts time.Duration) uint32 {
	rel := pts - w.summary.FirstPTS
	if rel < 0 {
		rel = 0
	}
	return uint32(rel / time.Millisecond)
}

// Append writes frame as one video tag.
func (w *Writer) Append(frame *media.Frame, pts time.Duration) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.finalized {
		return fmt.Errorf("append to finalized recording %s", w.path)
	}
	if w.err != nil {
		return w.err
	}
	if frame == nil {
		return fmt.Errorf("nil frame appended to %s", w.path)
	}
	if !w.started {
		w.summary.FirstPTS = pts
		w.started = true
	}

	frameType := tag.FrameTypeInterFrame
	if frame.IsKeyframe {
		frameType = tag.FrameTypeKeyFrame
		w.summary.Keyframes++
	}

	err := w.enc.Encode(&tag.FlvTag{
		TagType:   tag.TagTypeVideo,
		Timestamp: w.tagTimestamp(pts),
		Data: &tag.VideoData{
			FrameType:     frameType,
			CodecID:       tag.CodecIDAVC,
			AVCPacketType: tag.AVCPacketTypeNALU,
			Data:          bytes.NewReader(frame.Data),
		},
	})
	if err != nil {
		w.err = fmt.Errorf("failed to write frame %d: %w", frame.Sequence, err)
		return w.err
	}

	w.summary.Frames++
	w.summary.LastPTS = pts
	return nil
}

// Summary returns the timing of the frames appended so far.
func (w *Writer) Summary() Summary {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.summary
}

// Finalize writes the capture summary, flushes and closes the file. It
// always attempts to close the file, even after a write error.
func (w *Writer) Finalize() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.finalized {
		return nil
	}
	w.finalized = true

	var errs []error
	if w.err == nil {
		ts := uint32(0)
		if w.started {
			ts = w.tagTimestamp(w.summary.LastPTS)
		}
		if err := w.writeScript(captureSummaryName, w.summary.toECMA(w.format.FrameRate), ts); err != nil {
			errs = append(errs, fmt.Errorf("failed to write capture summary: %w", err))
		}
	}
	if err := w.buf.Flush(); err != nil {
		errs = append(errs, fmt.Errorf("failed to flush recording: %w", err))
	}
	if err := w.file.Sync(); err != nil {
		errs = append(errs, fmt.Errorf("failed to sync recording: %w", err))
	}
	if err := w.file.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close recording: %w", err))
	}

	return errors.Join(errs...)
}
