package audio

import (
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"
)

// Device yields fixed-size PCM16 mono buffers at a configured rate. The
// frame callback runs on the device's capture goroutine and must never
// block; the buffer may be reused between calls, so callbacks copy what
// they retain. Implementations call it until Stop.
type Device interface {
	Start(onFrame func(pcm []byte)) error
	Stop() error
}

// CaptureConfig describes the capture command and frame geometry.
type CaptureConfig struct {
	// Command producing raw s16le mono PCM on stdout. Defaults to parec,
	// the PulseAudio capture tool.
	Command []string
	// SampleRate in Hz.
	SampleRate int
	// FrameSamples is the number of samples per delivered frame.
	FrameSamples int
}

func (c CaptureConfig) withDefaults() CaptureConfig {
	if c.SampleRate <= 0 {
		c.SampleRate = 16000
	}
	if c.FrameSamples <= 0 {
		c.FrameSamples = 1024
	}
	if len(c.Command) == 0 {
		c.Command = []string{
			"parec",
			"--format=s16le",
			"--rate=" + strconv.Itoa(c.SampleRate),
			"--channels=1",
			"--raw",
		}
	}
	return c
}

// CommandDevice captures microphone audio by reading raw PCM from a
// subprocess such as parec or arecord.
type CommandDevice struct {
	cfg CaptureConfig
	log *slog.Logger

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdout  io.ReadCloser
	done    chan struct{}
	running bool
}

func NewCommandDevice(cfg CaptureConfig, log *slog.Logger) *CommandDevice {
	if log == nil {
		log = slog.Default()
	}
	return &CommandDevice{cfg: cfg.withDefaults(), log: log}
}

func (d *CommandDevice) Start(onFrame func(pcm []byte)) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return fmt.Errorf("capture already running")
	}

	cmd := exec.Command(d.cfg.Command[0], d.cfg.Command[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("capture stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start capture command %q: %w", d.cfg.Command[0], err)
	}

	d.cmd = cmd
	d.stdout = stdout
	d.done = make(chan struct{})
	d.running = true

	go d.readLoop(stdout, d.done, onFrame)

	d.log.Info("audio capture started",
		"command", d.cfg.Command[0],
		"sample_rate", d.cfg.SampleRate,
		"frame_samples", d.cfg.FrameSamples)
	return nil
}

func (d *CommandDevice) readLoop(r io.Reader, done chan struct{}, onFrame func([]byte)) {
	frameBytes := d.cfg.FrameSamples * 2
	buf := make([]byte, frameBytes)

	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			select {
			case <-done:
			default:
				d.log.Warn("audio capture read ended", "error", err)
			}
			return
		}
		onFrame(buf)
	}
}

func (d *CommandDevice) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return nil
	}
	d.running = false
	close(d.done)

	_ = d.stdout.Close()
	if d.cmd.Process != nil {
		_ = d.cmd.Process.Kill()
	}
	_ = d.cmd.Wait()
	d.cmd = nil
	d.stdout = nil
	return nil
}
