package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/audiolibrelab/mockinterview/internal/history"
	"github.com/audiolibrelab/mockinterview/internal/ui"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse past interviews",
	Long:  `List, inspect and delete interviews stored in the local history log.`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List interview sessions, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store *history.Store) error {
			sessions, err := store.Sessions()
			if err != nil {
				return err
			}
			printSessionList(sessions)
			return nil
		})
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show the full transcript of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store *history.Store) error {
			groups, err := store.GroupBySession()
			if err != nil {
				return err
			}
			group, err := findSession(groups, args[0])
			if err != nil {
				return err
			}
			printSession(group)
			return nil
		})
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete one session from the history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		return withStore(func(store *history.Store) error {
			groups, err := store.GroupBySession()
			if err != nil {
				return err
			}
			group, err := findSession(groups, args[0])
			if err != nil {
				return err
			}
			if !force && !confirm(fmt.Sprintf("Delete %s interview from %s?", group.Topic, group.StartedAt.Local().Format("2006-01-02 15:04"))) {
				fmt.Println("Cancelled")
				return nil
			}
			if err := store.DeleteSession(group.SessionID); err != nil {
				return err
			}
			fmt.Printf("Deleted session %s\n", group.SessionID)
			return nil
		})
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the whole history",
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		if !force && !confirm("Are you sure you want to clear all interview history?") {
			fmt.Println("Cancelled")
			return nil
		}
		return withStore(func(store *history.Store) error {
			if err := store.ClearAll(); err != nil {
				return err
			}
			fmt.Println("History cleared")
			return nil
		})
	},
}

var historyWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print the session list again whenever the history changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		interval, _ := cmd.Flags().GetDuration("interval")

		return withStore(func(store *history.Store) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			changes, unsubscribe := store.Subscribe()
			defer unsubscribe()

			watchErr := make(chan error, 1)
			go func() { watchErr <- store.Watch(ctx, interval) }()

			render := func() error {
				sessions, err := store.Sessions()
				if err != nil {
					return err
				}
				fmt.Print("\033[H\033[2J")
				fmt.Println(ui.DimStyle.Render("Watching " + cfg.History.Path + " (Ctrl+C to stop)"))
				fmt.Println()
				printSessionList(sessions)
				return nil
			}
			if err := render(); err != nil {
				return err
			}

			for {
				select {
				case <-ctx.Done():
					return nil
				case err := <-watchErr:
					if err != nil && !errors.Is(err, context.Canceled) {
						return err
					}
					return nil
				case _, ok := <-changes:
					if !ok {
						return nil
					}
					if err := render(); err != nil {
						return err
					}
				}
			}
		})
	},
}

func withStore(fn func(store *history.Store) error) error {
	store, err := history.Open(cfg.History.Path)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer store.Close()
	return fn(store)
}

// findSession accepts a full id or a unique prefix of one.
func findSession(groups map[string]*history.SessionGroup, id string) (*history.SessionGroup, error) {
	if group, ok := groups[id]; ok {
		return group, nil
	}

	var matches []*history.SessionGroup
	for sid, group := range groups {
		if strings.HasPrefix(sid, id) {
			matches = append(matches, group)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("session '%s' not found", id)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("session prefix '%s' is ambiguous (%d matches)", id, len(matches))
	}
}

func confirm(prompt string) bool {
	fmt.Printf("%s [y/N] ", prompt)
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func printSessionList(sessions []*history.SessionGroup) {
	if len(sessions) == 0 {
		fmt.Println(ui.DimStyle.Render("No interviews yet. Start one with 'mockinterview interview <topic>'."))
		return
	}

	header := lipgloss.JoinHorizontal(lipgloss.Top,
		cell("DATE", 18), cell("TOPIC", 16), cell("QUESTIONS", 11), cell("ANSWERED", 10), cell("STATUS", 12), "SESSION")
	fmt.Println(ui.TitleStyle.Render(header))

	for _, s := range sessions {
		status := ui.DimStyle.Render(cell("in progress", 12))
		if s.Completed {
			status = ui.CompletedStyle.Render(cell("completed", 12))
		}
		fmt.Println(lipgloss.JoinHorizontal(lipgloss.Top,
			cell(s.StartedAt.Local().Format("2006-01-02 15:04"), 18),
			cell(s.Topic, 16),
			cell(fmt.Sprintf("%d", s.QuestionsCount), 11),
			cell(fmt.Sprintf("%d", s.Answered), 10),
			status,
			ui.DimStyle.Render(s.SessionID)))
	}
}

func cell(text string, width int) string {
	return lipgloss.NewStyle().Width(width).MaxWidth(width).Render(text)
}

func printSession(group *history.SessionGroup) {
	fmt.Println(ui.TitleStyle.Render(fmt.Sprintf("%s interview", group.Topic)) +
		ui.DimStyle.Render(fmt.Sprintf(" · %s · %s", group.StartedAt.Local().Format("2006-01-02 15:04"), group.SessionID)))
	fmt.Println(ui.DimStyle.Render(fmt.Sprintf("%d questions, %d answered, %d feedback", group.QuestionsCount, group.Answered, group.Feedback)))
	fmt.Println()

	body := lipgloss.NewStyle().PaddingLeft(2).Width(80)
	for _, e := range group.Entries {
		var label string
		switch e.Type {
		case history.TypeInterviewer:
			label = ui.InterviewerLabelStyle.Render(fmt.Sprintf("Interviewer (Q%d)", e.QuestionNumber))
		case history.TypeCandidate:
			label = ui.CandidateLabelStyle.Render("You")
		case history.TypeFeedback:
			label = ui.FeedbackLabelStyle.Render("Feedback")
		case history.TypeFinalFeedback:
			asked := ""
			if e.QuestionsAsked != nil {
				asked = fmt.Sprintf(" (%d questions)", *e.QuestionsAsked)
			}
			label = ui.FinalFeedbackLabelStyle.Render("Final feedback" + asked)
		default:
			label = ui.DimStyle.Render(string(e.Type))
		}
		fmt.Println(ui.TimestampStyle.Render(e.Timestamp.Local().Format(time.TimeOnly)) + " " + label)
		fmt.Println(body.Render(e.Content))
		fmt.Println()
	}
}

func init() {
	historyDeleteCmd.Flags().BoolP("force", "f", false, "do not ask for confirmation")
	historyClearCmd.Flags().BoolP("force", "f", false, "do not ask for confirmation")
	historyWatchCmd.Flags().Duration("interval", time.Second, "how often to check for changes from other processes")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyDeleteCmd)
	historyCmd.AddCommand(historyClearCmd)
	historyCmd.AddCommand(historyWatchCmd)
}
