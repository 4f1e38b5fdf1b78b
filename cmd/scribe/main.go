// scribe is the clinician-facing CLI for recording a patient encounter
// and turning it into reviewed, saved clinical documentation.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/medscribe/scribe/internal/api"
	"github.com/medscribe/scribe/internal/audio"
	"github.com/medscribe/scribe/internal/config"
	"github.com/medscribe/scribe/internal/logger"
	"github.com/medscribe/scribe/internal/notes"
	"github.com/medscribe/scribe/internal/persist"
	"github.com/medscribe/scribe/internal/session"
	"github.com/medscribe/scribe/internal/stubserver"
	"github.com/medscribe/scribe/internal/tui"
	"github.com/medscribe/scribe/internal/workflow"
)

// CLI defines the scribe command structure.
type CLI struct {
	Document   DocumentCmd   `cmd:"" default:"withargs" help:"Run a documentation session for a visit"`
	Devices    DevicesCmd    `cmd:"" help:"List available audio capture devices"`
	StubServer StubServerCmd `cmd:"" name:"stub-server" help:"Run the stub collaborator service for local development"`
}

// DocumentCmd runs the recording-to-documentation workflow in a TUI.
type DocumentCmd struct {
	VisitID int64 `arg:"" help:"Visit id to document"`
}

func (c *DocumentCmd) Run(cfg *config.Config) error {
	if c.VisitID <= 0 {
		return fmt.Errorf("visit id must be positive, got %d", c.VisitID)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The TUI owns the terminal; log output would fight bubbletea.
	logger.Setup(cfg, io.Discard)

	client, err := api.NewClient(api.Config{BaseURL: cfg.APIBaseURL}) //nolint:exhaustruct
	if err != nil {
		return fmt.Errorf("failed to create API client: %w", err)
	}

	// One second of samples feeds the waveform.
	tap := audio.NewTap(cfg.SampleRate)

	machine, err := workflow.New(workflow.Config{
		VisitID:   notes.VisitID(c.VisitID),
		Sessions:  session.NewCoordinator(client, client),
		Processor: client,
		Saver:     persist.NewGateway(client),
		NewRecorder: func() (workflow.Recorder, error) {
			controller, err := audio.NewController(audio.ControllerConfig{ //nolint:exhaustruct
				SampleRate:  cfg.SampleRate,
				Channels:    cfg.Channels,
				MaxDuration: cfg.MaxDuration,
			})
			if err != nil {
				return nil, err
			}

			tap.Attach(controller)

			return controller, nil
		},
	})
	if err != nil {
		return fmt.Errorf("failed to build workflow: %w", err)
	}

	states := make(chan workflow.State, 16)
	machine.Subscribe(states)

	ui := tui.New(tui.Config{
		Driver: machine,
		States: states,
		Controls: tui.Controls{
			Levels:  tap.Levels(),
			Elapsed: tap.Elapsed(),
			Bytes:   tap.Bytes(),
		},
		Cancel: cancel,
	})

	if err := machine.Start(ctx); err != nil {
		return fmt.Errorf("failed to start workflow: %w", err)
	}

	if _, err := tea.NewProgram(ui).Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}

	return nil
}

// DevicesCmd lists available audio capture devices.
type DevicesCmd struct{}

func (c *DevicesCmd) Run(cfg *config.Config) error {
	dev := audio.NewDevice(nil)

	devices, err := dev.EnumerateDevices(context.Background())
	if err != nil {
		return fmt.Errorf("failed to enumerate audio devices: %w", err)
	}

	for _, info := range devices {
		slog.Info("Audio device",
			"name", info.Name,
			"isDefault", info.IsDefault,
			"formatCount", info.FormatCount,
			"formats", info.Formats,
		)
	}

	return nil
}

// StubServerCmd runs the stub collaborator service.
type StubServerCmd struct{}

func (c *StubServerCmd) Run(cfg *config.Config) error {
	server := stubserver.New(cfg, logger.SetupJSON(cfg, os.Stdout))

	if err := stubserver.Run(server); err != nil {
		return fmt.Errorf("stub server failed: %w", err)
	}

	return nil
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	slog.SetDefault(logger.Setup(cfg, os.Stderr))

	cli := &CLI{} //nolint:exhaustruct // Kong fills in command fields
	kctx := kong.Parse(cli, kong.Bind(cfg))
	kctx.FatalIfErrorf(kctx.Run())
}
