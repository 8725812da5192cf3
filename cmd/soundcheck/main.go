package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/soundcheck-ai/soundcheck/internal/capture"
	"github.com/soundcheck-ai/soundcheck/internal/config"
	"github.com/soundcheck-ai/soundcheck/internal/protocol"
	"github.com/soundcheck-ai/soundcheck/internal/session"
	"github.com/soundcheck-ai/soundcheck/internal/upload"
	"github.com/soundcheck-ai/soundcheck/internal/view"
)

var version = "0.1.0-dev"

func main() {
	var (
		configPath  string
		job         string
		jobFile     string
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "soundcheck.yaml", "Path to configuration file")
	flag.StringVar(&job, "job", "", "Job description to score the answer against")
	flag.StringVar(&jobFile, "job-file", "", "File containing the job description")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Println(version)
		return
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	jobDescription, err := resolveJobDescription(job, jobFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	device, err := capture.NewDevice(cfg.Capture)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open capture device: %v\n", err)
		os.Exit(1)
	}

	app := &app{
		recorder:       session.NewRecorder(cfg.Capture, device, logger),
		uploader:       upload.NewClient(cfg.Upload, logger),
		jobDescription: jobDescription,
		lines:          readLines(os.Stdin),
		out:            os.Stdout,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	app.run(ctx)
}

func resolveJobDescription(job, jobFile string) (string, error) {
	if jobFile == "" {
		return job, nil
	}
	data, err := os.ReadFile(jobFile)
	if err != nil {
		return "", fmt.Errorf("failed to read job description: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

type app struct {
	recorder       *session.Recorder
	uploader       *upload.Client
	jobDescription string
	lines          <-chan string
	out            *os.File
}

func (a *app) run(ctx context.Context) {
	for {
		a.show(view.State{Phase: view.PhaseIdle})
		if !a.waitLine(ctx) {
			return
		}

		clip, err := a.record(ctx)
		if err != nil {
			a.showError(err)
			continue
		}

		a.show(view.State{Phase: view.PhaseUploading})
		result, err := a.uploader.Submit(ctx, clip.WAV, a.jobDescription)
		if err != nil {
			a.showError(err)
			continue
		}

		a.show(view.State{Phase: view.PhaseDisplaying, Result: &result})
	}
}

// record captures until the user presses Enter or the recorder hits its
// configured maximum duration, whichever comes first.
func (a *app) record(ctx context.Context) (session.Clip, error) {
	rec, err := a.recorder.Start(ctx)
	if err != nil {
		return session.Clip{}, err
	}
	a.show(view.State{Phase: view.PhaseRecording})

	type outcome struct {
		clip session.Clip
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		clip, err := rec.Wait()
		done <- outcome{clip: clip, err: err}
	}()

	select {
	case <-ctx.Done():
		rec.Stop()
		<-done
		return session.Clip{}, ctx.Err()
	case _, ok := <-a.lines:
		if !ok {
			rec.Stop()
			<-done
			return session.Clip{}, errors.New("input closed")
		}
		rec.Stop()
		out := <-done
		return out.clip, out.err
	case out := <-done:
		// Hit the maximum duration before the user stopped it.
		return out.clip, out.err
	}
}

func (a *app) waitLine(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case _, ok := <-a.lines:
		return ok
	}
}

func (a *app) show(state view.State) {
	fmt.Fprintln(a.out, view.Project(state).Render())
}

func (a *app) showError(err error) {
	var message string
	switch {
	case errors.Is(err, capture.ErrPermissionDenied):
		message = "Microphone access denied. Check your audio permissions and try again."
	case errors.Is(err, capture.ErrDeviceUnavailable):
		message = "No capture device available. Check your audio setup and try again."
	case errors.Is(err, upload.ErrUploadInFlight):
		message = "A previous upload is still in progress."
	default:
		message = fmt.Sprintf("Error: %v", err)
	}
	result := protocol.ProcessedResult{Success: false, Error: message}
	a.show(view.State{Phase: view.PhaseDisplaying, Result: &result})
}

func readLines(f *os.File) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			ch <- scanner.Text()
		}
	}()
	return ch
}
