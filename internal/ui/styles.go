package ui

import "github.com/charmbracelet/lipgloss"

// Colors used by the interview screen and the history commands.
var (
	ColorRed     = lipgloss.Color("#FF5F5F")
	ColorGreen   = lipgloss.Color("#5FD75F")
	ColorYellow  = lipgloss.Color("#FFD75F")
	ColorCyan    = lipgloss.Color("#5FD7FF")
	ColorGray    = lipgloss.Color("#808080")
	ColorDimGray = lipgloss.Color("#4E4E4E")
	ColorWhite   = lipgloss.Color("#FFFFFF")
	ColorMagenta = lipgloss.Color("#D787FF")
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorCyan)

	StatusStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	RecordingDotStyle = lipgloss.NewStyle().
				Foreground(ColorRed).
				Bold(true)

	IdleDotStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	ProcessingStyle = lipgloss.NewStyle().
			Foreground(ColorMagenta)

	TimerStyle = lipgloss.NewStyle().
			Foreground(ColorWhite).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorRed).
			Bold(true)

	ErrorTextStyle = lipgloss.NewStyle().
			Foreground(ColorRed)

	TimestampStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	InterviewerLabelStyle = lipgloss.NewStyle().
				Foreground(ColorCyan).
				Bold(true)

	CandidateLabelStyle = lipgloss.NewStyle().
				Foreground(ColorWhite).
				Bold(true)

	FeedbackLabelStyle = lipgloss.NewStyle().
				Foreground(ColorYellow).
				Bold(true)

	FinalFeedbackLabelStyle = lipgloss.NewStyle().
				Foreground(ColorGreen).
				Bold(true)

	QuestionStyle = lipgloss.NewStyle().
			Foreground(ColorWhite).
			Bold(true)

	DimStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	CompletedStyle = lipgloss.NewStyle().
			Foreground(ColorGreen)

	FooterKeyStyle = lipgloss.NewStyle().
			Foreground(ColorYellow).
			Bold(true)

	FooterDescStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	DividerStyle = lipgloss.NewStyle().
			Foreground(ColorDimGray)
)
