package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"intervox/internal/domain"
	"intervox/internal/ports"
)

// FFMPEGCapture holds the local camera and microphone through an ffmpeg
// process. While the process runs the hardware indicator is on; releasing
// the stream stops the process and turns it off.
type FFMPEGCapture struct {
	command string
}

func NewFFMPEGCapture(command string) *FFMPEGCapture {
	if command == "" {
		command = "ffmpeg"
	}
	return &FFMPEGCapture{command: command}
}

func (c *FFMPEGCapture) Acquire(ctx context.Context, constraints ports.MediaConstraints) (ports.MediaStream, error) {
	if constraints.VideoFormat == "" {
		constraints.VideoFormat = "v4l2"
	}
	if constraints.VideoDevice == "" {
		constraints.VideoDevice = "/dev/video0"
	}
	if constraints.AudioFormat == "" {
		constraints.AudioFormat = "pulse"
	}
	if constraints.AudioDevice == "" {
		constraints.AudioDevice = "default"
	}
	if constraints.Width <= 0 || constraints.Height <= 0 {
		constraints.Width, constraints.Height = 1280, 720
	}
	if constraints.FrameRate <= 0 {
		constraints.FrameRate = 30
	}
	if constraints.SampleRate <= 0 {
		constraints.SampleRate = 24000
	}
	if constraints.Channels <= 0 {
		constraints.Channels = 1
	}

	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", constraints.VideoFormat,
		"-framerate", strconv.Itoa(constraints.FrameRate),
		"-video_size", fmt.Sprintf("%dx%d", constraints.Width, constraints.Height),
		"-i", constraints.VideoDevice,
		"-f", constraints.AudioFormat,
		"-ac", strconv.Itoa(constraints.Channels),
		"-ar", strconv.Itoa(constraints.SampleRate),
		"-i", constraints.AudioDevice,
		"-map", "0",
		"-map", "1",
		"-f", "null",
		"-",
	}

	cmd := exec.CommandContext(ctx, c.command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	// ffmpeg exits almost immediately when a device is missing, locked or
	// not permitted; give it a short probe window before handing out the
	// stream.
	select {
	case err := <-waitErr:
		detail := strings.TrimSpace(stderr.String())
		if classified := classifyCaptureError(detail); classified != nil {
			return nil, classified
		}
		if err != nil {
			return nil, fmt.Errorf("ffmpeg exited before capture started: %w: %s", err, detail)
		}
		return nil, errors.New("ffmpeg exited before capture started")
	case <-time.After(250 * time.Millisecond):
	}

	return &ffmpegStream{
		process: cmd.Process,
		stderr:  &stderr,
		waitErr: waitErr,
	}, nil
}

type ffmpegStream struct {
	process *os.Process
	stderr  *bytes.Buffer
	waitErr <-chan error

	releaseOnce sync.Once
	releaseErr  error
}

// Release stops the capture process. Safe to call multiple times; the
// hardware indicator goes off on the first call.
func (s *ffmpegStream) Release() error {
	s.releaseOnce.Do(func() {
		if s.process != nil {
			_ = s.process.Signal(os.Interrupt)
		}

		select {
		case err, ok := <-s.waitErr:
			if ok {
				s.releaseErr = normalizeReleaseErr(err)
			}
		case <-time.After(1200 * time.Millisecond):
			if s.process != nil {
				_ = s.process.Kill()
			}
			err, ok := <-s.waitErr
			if ok {
				s.releaseErr = normalizeReleaseErr(err)
			}
		}

		if s.releaseErr != nil && s.stderr != nil && s.stderr.Len() > 0 {
			s.releaseErr = fmt.Errorf("%w: %s", s.releaseErr, strings.TrimSpace(s.stderr.String()))
		}
	})

	return s.releaseErr
}

// classifyCaptureError maps ffmpeg stderr output onto the media error
// taxonomy so the UI can tell the user what actually went wrong.
func classifyCaptureError(stderr string) error {
	lower := strings.ToLower(stderr)
	switch {
	case strings.Contains(lower, "permission denied"),
		strings.Contains(lower, "operation not permitted"):
		return fmt.Errorf("%w: %s", domain.ErrPermissionDenied, firstLine(stderr))
	case strings.Contains(lower, "device or resource busy"),
		strings.Contains(lower, "resource busy"):
		return fmt.Errorf("%w: %s", domain.ErrDeviceBusy, firstLine(stderr))
	case strings.Contains(lower, "no such file or directory"),
		strings.Contains(lower, "no such device"),
		strings.Contains(lower, "cannot open video device"),
		strings.Contains(lower, "input/output error"):
		return fmt.Errorf("%w: %s", domain.ErrDeviceUnavailable, firstLine(stderr))
	default:
		return nil
	}
}

func normalizeReleaseErr(err error) error {
	if err == nil {
		return nil
	}
	// ffmpeg reports a non-zero exit when interrupted; that is a clean stop.
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}
