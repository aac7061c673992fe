// Package worker drives the external face descriptor extractor.
//
// The extractor is a long-lived child process. Each request is written to its
// stdin as [uint32 length][JPEG bytes]; each reply arrives on a side pipe
// (FD 3 in the child) as [uint32 length][payload], keeping the data channel
// clean of anything the child prints to stdout or stderr.
//
// Payload layout (big endian):
//
//	status byte
//	status 0: uint32 face count, then per face [4]int32 box and [128]float32 descriptor
//	status 1: uint32 message length, then the message
package worker

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/andresmejia3/rollcall/internal/types"
	"github.com/andresmejia3/rollcall/internal/utils"
)

// ErrWorker wraps failures reported by the extractor itself (as opposed to pipe errors).
var ErrWorker = errors.New("python worker error")

// ErrUnusable is returned once a request failed mid-exchange. The reply
// stream may hold a late or partial answer, so no further request is sent.
var ErrUnusable = errors.New("python worker out of sync")

const (
	statusOK    = 0
	statusError = 1

	faceRecordSize = 4*4 + types.DescriptorDim*4
)

// Config controls how the extractor process is started.
type Config struct {
	// Command is the extractor argv, e.g. ["python3", "-u", "python/worker.py"].
	Command     []string
	ReadTimeout time.Duration
	Debug       bool
}

type PythonWorker struct {
	ID       int
	Cmd      *utils.SafeCommand
	Stdin    io.WriteCloser
	DataPipe io.ReadCloser

	readTimeout time.Duration
	broken      error
}

// NewPythonWorker starts the extractor process. It is killed when ctx is cancelled.
func NewPythonWorker(ctx context.Context, id int, cfg Config) (*PythonWorker, error) {
	if len(cfg.Command) == 0 {
		return nil, fmt.Errorf("worker %d: empty extractor command", id)
	}
	args := append([]string{}, cfg.Command[1:]...)
	if cfg.Debug {
		args = append(args, "--debug")
	}
	py := utils.NewSafeCommandContext(ctx, cfg.Command[0], args...)

	// Create a side-channel pipe (FD 3) for clean data transfer
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create pipe: %w", err)
	}
	py.Cmd.ExtraFiles = []*os.File{w}

	stdin, err := py.StdinPipe()
	if err != nil {
		w.Close()
		r.Close()
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	if err := py.Start(); err != nil {
		w.Close()
		r.Close()
		return nil, fmt.Errorf("worker %d failed to start: %w", id, err)
	}

	// Close the write-end in the parent so only the child holds it
	w.Close()

	return &PythonWorker{
		ID:          id,
		Cmd:         py,
		Stdin:       stdin,
		DataPipe:    r,
		readTimeout: cfg.ReadTimeout,
	}, nil
}

// ParseCommand splits an extractor command line on whitespace.
func ParseCommand(line string) []string {
	return strings.Fields(line)
}

// Communicate sends one request and returns the raw reply payload.
// Any transport failure (write error, timeout, short read) leaves the worker
// unusable: every later call fails with ErrUnusable.
func (w *PythonWorker) Communicate(data []byte) ([]byte, error) {
	if w.broken != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnusable, w.broken)
	}
	resp, err := w.exchange(data)
	if err != nil {
		w.broken = err
		return nil, err
	}
	return resp, nil
}

func (w *PythonWorker) exchange(data []byte) ([]byte, error) {
	if err := binary.Write(w.Stdin, binary.BigEndian, uint32(len(data))); err != nil {
		return nil, err
	}
	if _, err := w.Stdin.Write(data); err != nil {
		return nil, err
	}

	if f, ok := w.DataPipe.(*os.File); ok && w.readTimeout > 0 {
		if err := f.SetReadDeadline(time.Now().Add(w.readTimeout)); err != nil {
			return nil, fmt.Errorf("set read deadline: %w", err)
		}
	}

	header := make([]byte, 4)
	if _, err := io.ReadFull(w.DataPipe, header); err != nil {
		return nil, err // a crashed child shows up here as EOF
	}

	respLen := binary.BigEndian.Uint32(header)
	respBody := make([]byte, respLen)
	if _, err := io.ReadFull(w.DataPipe, respBody); err != nil {
		return nil, err
	}
	return respBody, nil
}

// ProcessFrame sends one image and decodes the faces found in it.
func (w *PythonWorker) ProcessFrame(data []byte) ([]types.FaceResult, error) {
	resp, err := w.Communicate(data)
	if err != nil {
		return nil, err
	}
	return decodeFaces(resp)
}

// Extract satisfies the descriptor extractor capability used by the cache manager and the loop.
func (w *PythonWorker) Extract(ctx context.Context, image []byte) ([]types.FaceResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return w.ProcessFrame(image)
}

func decodeFaces(payload []byte) ([]types.FaceResult, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("empty response from worker")
	}
	r := bytes.NewReader(payload[1:])

	switch payload[0] {
	case statusOK:
	case statusError:
		var msgLen uint32
		if err := binary.Read(r, binary.BigEndian, &msgLen); err != nil {
			return nil, fmt.Errorf("%w: unreadable error message", ErrWorker)
		}
		msg := make([]byte, msgLen)
		if _, err := io.ReadFull(r, msg); err != nil {
			return nil, fmt.Errorf("%w: truncated error message", ErrWorker)
		}
		return nil, fmt.Errorf("%w: %s", ErrWorker, msg)
	default:
		return nil, fmt.Errorf("unknown worker status %d", payload[0])
	}

	var count uint32
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, fmt.Errorf("read face count: %w", err)
	}
	if int(count)*faceRecordSize > r.Len() {
		return nil, fmt.Errorf("face count %d exceeds payload size %d", count, r.Len())
	}

	faces := make([]types.FaceResult, 0, count)
	for i := uint32(0); i < count; i++ {
		var box [4]int32
		if err := binary.Read(r, binary.BigEndian, &box); err != nil {
			return nil, fmt.Errorf("read box %d: %w", i, err)
		}
		var vec [types.DescriptorDim]float32
		if err := binary.Read(r, binary.BigEndian, &vec); err != nil {
			return nil, fmt.Errorf("read descriptor %d: %w", i, err)
		}

		face := types.FaceResult{
			Loc: []int{int(box[0]), int(box[1]), int(box[2]), int(box[3])},
			Vec: make([]float64, types.DescriptorDim),
		}
		for j, v := range vec {
			face.Vec[j] = float64(v)
		}
		faces = append(faces, face)
	}
	return faces, nil
}

// Close shuts the pipes and waits for the child to exit.
func (w *PythonWorker) Close() error {
	if w.Stdin != nil {
		w.Stdin.Close()
	}
	if w.DataPipe != nil {
		w.DataPipe.Close()
	}
	if w.Cmd == nil {
		return nil
	}
	return w.Cmd.Wait()
}
