package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/designpipe/dp/internal/events"
	"github.com/designpipe/dp/internal/feed"
	"github.com/designpipe/dp/internal/models"
	"github.com/designpipe/dp/internal/output"
	"github.com/designpipe/dp/internal/phase"
	"github.com/designpipe/dp/internal/poller"
	"github.com/designpipe/dp/internal/view"
)

var (
	watchIntervalMS int
	watchPin        string
)

var watchCmd = &cobra.Command{
	Use:   "watch [session-id]",
	Short: "Follow a session until the pipeline settles",
	Long: `Poll a session's status and job traces until the pipeline reaches a
terminal state, printing progress as the backend advances.

Press Ctrl-C to stop watching; the pipeline keeps running server-side.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := resolveSessionID(cmd.Context(), args)
		if err != nil {
			return err
		}
		return watchRun(id)
	},
}

func init() {
	watchCmd.Flags().IntVar(&watchIntervalMS, "interval", 0, "Poll interval in milliseconds (default from config)")
	watchCmd.Flags().StringVar(&watchPin, "pin", "", "Pin the display to one phase (upload|analyze|search|source|place|done)")
	rootCmd.AddCommand(watchCmd)
}

func watchRun(id string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := getStore()
	if err != nil {
		return err
	}

	router := &view.Router{}
	if watchPin != "" {
		p, err := parsePhase(watchPin)
		if err != nil {
			return err
		}
		router.Pin(p)
	}

	bus := events.NewBus()
	eventCh, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	interval := pollInterval()
	if watchIntervalMS > 0 {
		interval = time.Duration(watchIntervalMS) * time.Millisecond
	}

	snapshots := make(chan poller.Snapshot, 8)
	p := poller.New(ctx, apiClient, id,
		poller.WithInterval(interval),
		poller.WithOnUpdate(func(snap poller.Snapshot) {
			select {
			case snapshots <- snap:
			default:
			}
		}),
		poller.WithOnRecover(func(oldID, newID string) {
			ui.Warning("Session %s is gone; backend issued %s", oldID, newID)
			_ = s.SetCurrentSession(ctx, newID)
		}),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	ui.Info("Watching session %s (interval %s)", id, interval)
	p.Start()
	defer p.Stop()

	var (
		prev       *models.Session
		prevVisual string
	)
	for {
		select {
		case <-sigCh:
			ui.Info("Stopped watching. Pipeline continues server-side.")
			return nil

		case ev := <-eventCh:
			renderEvent(ev)

		case snap := <-snapshots:
			if snap.Err != nil {
				ui.VerboseLog("poll error (will retry): %v", snap.Err)
				continue
			}
			if snap.Session == nil {
				continue
			}

			rememberSession(ctx, snap.Session)
			publishSessionEvents(bus, prev, snap.Session)

			f := feed.FromJobs(snap.Jobs)
			if f.LatestVisual != "" && f.LatestVisual != prevVisual {
				bus.Publish(events.MoodBoardAdd{ImageURL: f.LatestVisual})
				prevVisual = f.LatestVisual
			}

			renderSnapshot(router, snap, f)
			prev = snap.Session

			if snap.Settled {
				// Drain any events published from the final diff.
				for {
					select {
					case ev := <-eventCh:
						renderEvent(ev)
						continue
					default:
					}
					break
				}
				c := phase.Classify(snap.Session.Status)
				if c.Failed {
					return fmt.Errorf("pipeline failed: %s", snap.Session.Status)
				}
				ui.Success("Pipeline settled: %s", snap.Session.Status)
				return nil
			}
		}
	}
}

// renderSnapshot prints one progress line per poll cycle.
func renderSnapshot(router *view.Router, snap poller.Snapshot, f feed.Feed) {
	v := router.Select(snap.Session.Status)
	line := fmt.Sprintf("%s  %s %s",
		time.Now().Format("15:04:05"),
		output.Dim("["+v.String()+"]"),
		statusCell(snap.Session.Status),
	)

	if f.Running != nil {
		line += output.Dim(" · " + feed.BaseStep(f.Running.Step))
	}
	fmt.Fprintln(ui.Out, line)
}

// publishSessionEvents diffs consecutive session fetches and publishes the
// changes that matter to the design surface.
func publishSessionEvents(bus *events.Bus, prev, cur *models.Session) {
	if cur == nil {
		return
	}

	var (
		prevMiro  string
		prevRoom  string
		prevPrefs map[string]any
		prevState models.SessionStatus
	)
	if prev != nil {
		prevMiro = prev.MiroBoardURL
		if prev.RoomData != nil {
			prevRoom = prev.RoomData.RoomType
		}
		prevPrefs = prev.Preferences
		prevState = prev.Status
	}

	if cur.MiroBoardURL != "" && cur.MiroBoardURL != prevMiro {
		bus.Publish(events.MiroBoardCreated{URL: cur.MiroBoardURL})
	}
	if cur.RoomData != nil && cur.RoomData.RoomType != "" && cur.RoomData.RoomType != prevRoom {
		bus.Publish(events.RoomTypeSet{RoomType: cur.RoomData.RoomType})
	}
	for k, v := range cur.Preferences {
		if prevPrefs == nil || prevPrefs[k] != v {
			bus.Publish(events.PreferenceUpdate{Key: k, Value: fmt.Sprint(v)})
		}
	}
	if prevState == models.StatusConsulting && cur.Status != models.StatusConsulting {
		bus.Publish(events.ConsultationComplete{})
	}
}

func renderEvent(ev events.Event) {
	switch e := ev.(type) {
	case events.MiroBoardCreated:
		ui.Info("Mood board created: %s", e.URL)
	case events.RoomTypeSet:
		ui.Info("Room identified: %s", e.RoomType)
	case events.PreferenceUpdate:
		ui.VerboseLog("preference %s = %s", e.Key, e.Value)
	case events.ConsultationComplete:
		ui.Info("Consultation complete")
	case events.MoodBoardAdd:
		ui.Info("Mood board image: %s", e.ImageURL)
	}
}

func parsePhase(name string) (phase.Phase, error) {
	switch strings.ToLower(name) {
	case "upload":
		return phase.PhaseUpload, nil
	case "analyze":
		return phase.PhaseAnalyze, nil
	case "search":
		return phase.PhaseSearch, nil
	case "source":
		return phase.PhaseSource, nil
	case "place":
		return phase.PhasePlace, nil
	case "done":
		return phase.PhaseDone, nil
	default:
		return 0, fmt.Errorf("unknown phase: %q", name)
	}
}
