package recognizer

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os/exec"

	"github.com/andresmejia3/rollcall/internal/utils"
)

const megabyte = 1024 * 1024

// FrameSource yields encoded frames in order. Next returns io.EOF at end of stream.
type FrameSource interface {
	Next() ([]byte, error)
}

// JpegStream splits a concatenated MJPEG byte stream into frames.
type JpegStream struct {
	scanner *bufio.Scanner
}

func NewJpegStream(r io.Reader) *JpegStream {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, megabyte), 64*megabyte)
	scanner.Split(utils.SplitJpeg)
	return &JpegStream{scanner: scanner}
}

// Next returns the next frame. The slice is only valid until the following call.
func (s *JpegStream) Next() ([]byte, error) {
	if s.scanner.Scan() {
		return s.scanner.Bytes(), nil
	}
	if err := s.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// Camera is a live ffmpeg capture exposed as a FrameSource.
type Camera struct {
	*JpegStream
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *bytes.Buffer
}

// OpenCamera starts ffmpeg on device and returns a frame source reading its output.
func OpenCamera(device string) (*Camera, error) {
	cmd := utils.NewCameraCmd(device)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create FFmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start FFmpeg: %w", err)
	}

	return &Camera{JpegStream: NewJpegStream(stdout), cmd: cmd, stdout: stdout, stderr: &stderr}, nil
}

// Logs returns whatever ffmpeg wrote to stderr so far.
func (c *Camera) Logs() string {
	return c.stderr.String()
}

// Close stops the capture and reaps ffmpeg.
func (c *Camera) Close() error {
	c.stdout.Close()
	if c.cmd.Process != nil {
		c.cmd.Process.Kill()
	}
	c.cmd.Wait() // killed on purpose, the exit status is meaningless
	return nil
}
