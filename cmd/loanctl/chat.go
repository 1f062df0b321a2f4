package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"loan-assistant/internal/common/errors"
	"loan-assistant/internal/common/logger"
	"loan-assistant/internal/conversation"
	"loan-assistant/internal/llm"
	"loan-assistant/internal/loan/pii"
	"loan-assistant/internal/models"
	"loan-assistant/internal/sessionstore"
	"loan-assistant/internal/telemetry"
)

const chatHelp = "Commands: /reset starts over, /metrics shows session stats, /fields shows what was captured, /quit exits."

// chatSessions is the subset of *conversation.Manager the chat loop drives.
type chatSessions interface {
	Start(ctx context.Context) (models.Snapshot, error)
	Send(ctx context.Context, id, text string) (*conversation.TurnResult, error)
	Reset(ctx context.Context, id string) (models.Snapshot, error)
	Get(ctx context.Context, id string) (models.Snapshot, error)
	Metrics(ctx context.Context, id string) (models.SessionMetrics, error)
	End(ctx context.Context, id string) error
}

func newChatCommand() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the assistant in the terminal",
		Long: `Start an in-process conversation. Sessions live in memory; turn events go to
the sinks listed under metrics.sinks in the config.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			level := "warn"
			if verbose {
				level = "debug"
			}
			log := logger.NewStructured(level, "console", "stderr")

			sinks, err := telemetry.FromConfig(cmd.Context(), cfg, afero.NewOsFs(), nil, log)
			if err != nil {
				return fmt.Errorf("metrics sinks: %w", err)
			}
			defer sinks.Close()

			ctrl := conversation.NewController(llm.NewClient(llm.LoadConfig(cfg.LLM), log), pii.New(), sinks, nil, log)
			mgr := conversation.NewManager(ctrl, sessionstore.NewMemory(time.Duration(cfg.Session.TTL)*time.Second), log)

			return runChat(cmd.Context(), mgr, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log each turn to stderr")
	return cmd
}

// runChat reads one message per line until EOF or /quit.
func runChat(ctx context.Context, sessions chatSessions, in io.Reader, out io.Writer) error {
	snap, err := sessions.Start(ctx)
	if err != nil {
		return err
	}
	id := snap.SessionID
	defer sessions.End(context.WithoutCancel(ctx), id)

	bot := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Fprintln(out, color.New(color.Faint).Sprint(chatHelp))
	fmt.Fprintf(out, "%s %s\n", bot("LoanBot:"), lastText(snap))

	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, color.GreenString("You: "))
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())

		switch strings.ToLower(line) {
		case "":
			continue
		case "/quit", "/exit":
			fmt.Fprintln(out, "Goodbye.")
			return nil
		case "/help":
			fmt.Fprintln(out, chatHelp)
			continue
		case "/reset":
			snap, err := sessions.Reset(ctx, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s %s\n", bot("LoanBot:"), lastText(snap))
			continue
		case "/metrics":
			m, err := sessions.Metrics(ctx, id)
			if err != nil {
				return err
			}
			printMetrics(out, m)
			continue
		case "/fields":
			snap, err := sessions.Get(ctx, id)
			if err != nil {
				return err
			}
			printFields(out, snap)
			continue
		}

		res, err := sessions.Send(ctx, id, line)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s %s\n", bot("LoanBot:"), res.Reply)
		if res.Failure != nil {
			fmt.Fprintln(out, color.RedString("(assistant unavailable: %s)", errors.CodeOf(res.Failure)))
		}
		if res.NewDecision && res.Snapshot.Decision != nil {
			fmt.Fprintln(out, decisionBanner(res.Snapshot.Decision.Status))
		}
	}
}

func lastText(snap models.Snapshot) string {
	if n := len(snap.Messages); n > 0 {
		return snap.Messages[n-1].Text
	}
	return ""
}

func decisionBanner(status models.DecisionStatus) string {
	label := "== " + strings.ToUpper(string(status)) + " =="
	switch status {
	case models.DecisionApproved:
		return color.GreenString(label)
	case models.DecisionRejected:
		return color.RedString(label)
	default:
		return color.YellowString(label)
	}
}

func printMetrics(out io.Writer, m models.SessionMetrics) {
	fmt.Fprintf(out, "  turns:        %d\n", m.Turns)
	fmt.Fprintf(out, "  duration:     %.1fs\n", m.DurationSeconds)
	fmt.Fprintf(out, "  entities:     %d\n", m.EntitiesExtracted)
	fmt.Fprintf(out, "  completeness: %.0f%%\n", m.CompletenessPercent)
	fmt.Fprintf(out, "  errors:       %d\n", m.ErrorCount)
	fmt.Fprintf(out, "  state:        %s\n", m.State)
	if m.DecisionStatus != "" {
		fmt.Fprintf(out, "  decision:     %s\n", m.DecisionStatus)
	}
}

func printFields(out io.Writer, snap models.Snapshot) {
	if len(snap.ExtractedFields) == 0 {
		fmt.Fprintln(out, "  nothing captured yet")
		return
	}
	names := make([]string, 0, len(snap.ExtractedFields))
	for f := range snap.ExtractedFields {
		names = append(names, string(f))
	}
	sort.Strings(names)
	for _, name := range names {
		v := snap.ExtractedFields[models.Field(name)]
		fmt.Fprintf(out, "  %-18s %-12s (%s, turn %d)\n", name, v.Value, v.Source, v.UpdatedTurn)
	}
}
