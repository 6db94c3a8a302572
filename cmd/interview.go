package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/audiolibrelab/mockinterview/internal/audio"
	"github.com/audiolibrelab/mockinterview/internal/backend"
	"github.com/audiolibrelab/mockinterview/internal/config"
	"github.com/audiolibrelab/mockinterview/internal/errdefs"
	"github.com/audiolibrelab/mockinterview/internal/history"
	"github.com/audiolibrelab/mockinterview/internal/service"
	"github.com/audiolibrelab/mockinterview/internal/tui"
)

var interviewCmd = &cobra.Command{
	Use:   "interview [topic]",
	Short: "Start a mock interview",
	Long: `Start a mock interview on a topic (default "general").

Press space to start answering and space again to submit. Press e to end the
interview and get final feedback, n to start another one and q to quit.

With --headless the interview runs without the screen: each answer is recorded
for --answer-duration and the transcript is printed at the end. Combined with
the file audio backend this replays a prerecorded answer.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		topic := service.DefaultTopic
		if len(args) == 1 {
			topic = args[0]
		}

		if url, _ := cmd.Flags().GetString("backend-url"); url != "" {
			cfg.Backend.URL = url
			if err := config.Validate(cfg); err != nil {
				return fmt.Errorf("invalid --backend-url: %w", err)
			}
		}

		headless, _ := cmd.Flags().GetBool("headless")
		slog.Info("Interview command started", "topic", topic, "backend", cfg.Backend.URL, "headless", headless)

		store, err := history.Open(cfg.History.Path)
		if err != nil {
			return fmt.Errorf("failed to open history: %w", err)
		}
		defer store.Close()

		recorder, err := audio.NewRecorder(cfg.Audio, verboseLevel >= 2)
		if err != nil {
			return fmt.Errorf("failed to create recorder: %w", err)
		}

		svc := service.New(backend.New(cfg.Backend), store, recorder)
		defer svc.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if headless {
			answers, _ := cmd.Flags().GetInt("answers")
			duration, _ := cmd.Flags().GetDuration("answer-duration")
			return runHeadless(ctx, svc, store, topic, answers, duration)
		}

		timer := audio.NewRecordingTimer()
		recorder.OnPhaseChange(timer.Observe)

		// Picks up deletions made by 'history clear' in another terminal
		go func() {
			if err := store.Watch(ctx, time.Second); err != nil && !errors.Is(err, context.Canceled) {
				slog.Warn("History watch stopped", "error", err)
			}
		}()

		model := tui.New(tui.Options{
			Service: svc,
			History: store,
			Timer:   timer,
			Topic:   topic,
		})

		program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
		if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return fmt.Errorf("interview screen failed: %w", err)
		}
		return nil
	},
}

// runHeadless drives one whole interview without the screen.
func runHeadless(ctx context.Context, svc service.Service, store *history.Store, topic string, answers int, duration time.Duration) error {
	if err := svc.StartInterview(ctx, topic); err != nil {
		return errors.New(errdefs.Message(err))
	}
	session := svc.Session()
	fmt.Printf("Question %d: %s\n", session.QuestionNumber, session.Question)

	for i := 0; i < answers; i++ {
		if err := svc.BeginAnswer(ctx); err != nil {
			return errors.New(errdefs.Message(err))
		}
		fmt.Printf("Recording answer for %s...\n", duration)

		select {
		case <-time.After(duration):
		case <-ctx.Done():
		}

		if err := svc.FinishAnswer(context.WithoutCancel(ctx)); err != nil {
			return errors.New(errdefs.Message(err))
		}
		session = svc.Session()
		fmt.Printf("Question %d: %s\n", session.QuestionNumber, session.Question)

		if ctx.Err() != nil {
			break
		}
	}

	if err := svc.EndInterview(context.WithoutCancel(ctx)); err != nil {
		return errors.New(errdefs.Message(err))
	}

	groups, err := store.GroupBySession()
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}
	if group, ok := groups[session.SessionID]; ok {
		fmt.Println()
		printSession(group)
	}
	return nil
}

func init() {
	interviewCmd.Flags().String("backend-url", "", "grading backend URL (overrides config)")
	interviewCmd.Flags().Bool("headless", false, "run without the interactive screen")
	interviewCmd.Flags().Int("answers", 1, "number of answers to record in headless mode")
	interviewCmd.Flags().Duration("answer-duration", 5*time.Second, "length of each answer in headless mode")
}
