package main

import (
	"fmt"
	"image"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"safedrive/internal/alert"
	"safedrive/internal/config"
	"safedrive/internal/drowsiness"
	"safedrive/internal/journal"
	"safedrive/internal/location"
	"safedrive/internal/logger"
	"safedrive/internal/monitor"
	"safedrive/internal/motion"
	"safedrive/internal/report"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "safedrive-agent",
		Short: "SafeDrive in-vehicle monitoring agent",
		Long: `Monitors accelerometer, GPS and driver-camera signals, classifies
sudden jerks, and reports possible accidents to the SafeDrive server with
emergency-contact fan-out.`,
	}

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(simulateCmd())
	rootCmd.AddCommand(journalCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildSession assembles the full pipeline from configuration plus the
// given sensor sources.
func buildSession(
	cfg config.Agent,
	motionSrc motion.Source,
	locationSrc location.Source,
	camera drowsiness.Camera,
	prompter monitor.Prompter,
	rec monitor.Recorder,
) *monitor.Session {
	notifier := alert.LogNotifier{}
	alarm := &alert.LogAlarm{}

	classifier := motion.NewClassifier(cfg.JerkThreshold, cfg.AccidentThreshold, cfg.Sensitivity)
	tracker := location.NewTracker(locationSrc, notifier, cfg.SpeedLimitKmh)
	link := drowsiness.NewLink(drowsiness.Config{
		URL:           cfg.DrowsinessURL,
		FrameRate:     cfg.FrameRate,
		MaxReconnects: cfg.MaxReconnects,
		ReconnectBase: cfg.ReconnectBase,
		ReconnectMax:  cfg.ReconnectMax,
	}, notifier, alarm)
	gateway := report.NewClient(cfg.ServerURL, cfg.ServerURL, cfg.AuthToken)

	coordinator := monitor.NewCoordinator(monitor.Config{
		MinorJerkWindow: cfg.MinorJerkWindow,
		RearmDelay:      cfg.RearmDelay,
		VictimID:        cfg.VictimID,
	}, classifier, tracker, link, gateway, notifier, alarm, prompter, rec)

	sampler := motion.NewSampler(motionSrc, coordinator.HandlePair)
	return monitor.NewSession(coordinator, sampler, tracker, link, camera)
}

func openJournal(path string) (*journal.Journal, error) {
	if path == "" {
		return nil, nil
	}
	return journal.Open(path)
}

// runCmd starts live monitoring with platform sensor sources. On hosts with
// no real sensors the injectable sources sit idle, which still exercises the
// drowsiness channel and the report path end to end.
func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the monitoring session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadAgent()
			logger.Setup()

			jrnl, err := openJournal(cfg.JournalPath)
			if err != nil {
				return fmt.Errorf("journal error: %w", err)
			}
			if jrnl != nil {
				defer jrnl.Close()
			}

			prompter := &monitor.ConsolePrompter{Out: os.Stdout, In: os.Stdin}
			var rec monitor.Recorder
			if jrnl != nil {
				rec = jrnl
			}
			session := buildSession(cfg,
				&monitor.SimMotionSource{},
				&monitor.SimLocationSource{},
				nil,
				prompter,
				rec,
			)
			if err := session.Start(); err != nil {
				return err
			}
			defer session.Stop()

			fmt.Println("🚗 SafeDrive agent monitoring. Ctrl-C to stop.")
			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			<-sig
			return nil
		},
	}
}

// simulateCmd drives the pipeline with a scripted accident: a gentle pair of
// readings followed by a violent one, plus a moving GPS track.
func simulateCmd() *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a scripted accident through the full pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadAgent()
			logger.Setup()

			jrnl, err := openJournal(cfg.JournalPath)
			if err != nil {
				return fmt.Errorf("journal error: %w", err)
			}
			if jrnl != nil {
				defer jrnl.Close()
			}

			motionSrc := &monitor.SimMotionSource{}
			locationSrc := &monitor.SimLocationSource{}
			prompter := &monitor.ConsolePrompter{Out: os.Stdout, In: os.Stdin}
			var rec monitor.Recorder
			if jrnl != nil {
				rec = jrnl
			}
			camera := &drowsiness.ImageCamera{
				Source:  grayFrame(320, 240),
				Quality: cfg.FrameQuality,
			}
			session := buildSession(cfg, motionSrc, locationSrc, camera, prompter, rec)
			if err := session.Start(); err != nil {
				return err
			}
			defer session.Stop()

			// A cruising fix so the snapshot carries a real location.
			locationSrc.Inject(location.Fix{
				Latitude:  -1.286389,
				Longitude: 36.817223,
				SpeedMs:   16.7,
				Timestamp: time.Now(),
			})

			// Calm baseline, then the crash profile.
			motionSrc.Inject(5, 3, 2)
			time.Sleep(100 * time.Millisecond)
			motionSrc.Inject(25, 15, 20)

			fmt.Println("Simulated crash injected; waiting for the incident flow...")
			time.Sleep(wait)
			return nil
		},
	}

	cmd.Flags().DurationVarP(&wait, "wait", "w", 30*time.Second, "How long to keep the session alive for the dialog")
	return cmd
}

// journalCmd lists locally journaled incidents.
func journalCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "List locally journaled incidents",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadAgent()

			jrnl, err := journal.Open(cfg.JournalPath)
			if err != nil {
				return fmt.Errorf("journal error: %w", err)
			}
			defer jrnl.Close()

			entries, err := jrnl.List(limit)
			if err != nil {
				return fmt.Errorf("error listing incidents: %w", err)
			}
			if len(entries) == 0 {
				fmt.Println("No incidents journaled.")
				return nil
			}

			fmt.Printf("%-38s %-10s %-8s %-22s %s\n", "Reference", "Status", "Remote", "Location", "Recorded")
			for _, e := range entries {
				fmt.Printf("%-38s %-10s %-8s %9.5f,%10.5f  %s\n",
					e.Reference, e.Status, orDash(e.RemoteID),
					e.Latitude, e.Longitude,
					e.CreatedAt.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 50, "Maximum entries to show")
	return cmd
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// grayFrame produces a flat synthetic frame so the simulation exercises the
// full encode-and-transmit path without a video device.
func grayFrame(w, h int) func() image.Image {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0x80
	}
	return func() image.Image { return img }
}
