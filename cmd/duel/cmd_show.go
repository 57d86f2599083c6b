package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"promptduel/internal/artifacts"
	"promptduel/internal/fault"
	"promptduel/internal/tournament"
)

var showPlain bool

var showCmd = &cobra.Command{
	Use:   "show [run-dir] [round]",
	Short: "Render a run summary, or one round's brief and recommendation",
	Long: `Without arguments shows the latest run under run_root. With a round number,
shows that round's mutation brief and, in recommend mode, its recommendation.`,
	Args: cobra.MaximumNArgs(2),
	RunE: runShow,
}

func init() {
	showCmd.Flags().BoolVar(&showPlain, "plain", false, "Print raw markdown")
}

func runShow(cmd *cobra.Command, args []string) error {
	var runDir string
	if len(args) > 0 {
		runDir = workspacePath(args[0])
	} else {
		latest, err := latestRunDir(cfg.RunRoot)
		if err != nil {
			return err
		}
		runDir = latest
	}

	var md string
	var err error
	if len(args) == 2 {
		round, convErr := strconv.Atoi(args[1])
		if convErr != nil || round <= 0 {
			return fault.Configurationf("round must be a positive integer (got %q)", args[1])
		}
		md, err = roundMarkdown(&artifacts.Layout{RunDir: runDir}, round)
	} else {
		md, err = runMarkdown(&artifacts.Layout{RunDir: runDir})
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if showPlain {
		fmt.Fprint(out, md)
		return nil
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		fmt.Fprint(out, md)
		return nil
	}
	rendered, err := renderer.Render(md)
	if err != nil {
		fmt.Fprint(out, md)
		return nil
	}
	fmt.Fprint(out, rendered)
	return nil
}

// latestRunDir picks the lexically last run_* directory; names sort by time.
func latestRunDir(root string) (string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return "", fault.Configuration("no runs found under "+root, err)
	}
	var runs []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), "run_") {
			runs = append(runs, e.Name())
		}
	}
	if len(runs) == 0 {
		return "", fault.Configurationf("no runs found under %s", root)
	}
	sort.Strings(runs)
	return filepath.Join(root, runs[len(runs)-1]), nil
}

func runMarkdown(l *artifacts.Layout) (string, error) {
	data, err := os.ReadFile(l.Summary())
	if err != nil {
		return "", fault.Configuration("run has no summary.json (still running?)", err)
	}
	var s tournament.RunSummary
	if err := json.Unmarshal(data, &s); err != nil {
		return "", fault.Configuration("summary.json is not valid", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Run %s\n\n", filepath.Base(s.RunDir))
	fmt.Fprintf(&sb, "- Mode: %s\n", s.Mode)
	fmt.Fprintf(&sb, "- Rounds: %d of %d (stop: %s)\n", s.RoundsRun, s.MaxRounds, s.StopReason)
	fmt.Fprintf(&sb, "- Promotions: %d\n", s.Promotions)
	fmt.Fprintf(&sb, "- Recommendation: **%s**\n", s.Recommendation)
	fmt.Fprintf(&sb, "- Dataset: `%s`\n", s.DatasetFile)
	if s.Error != "" {
		fmt.Fprintf(&sb, "- Error: %s\n", s.Error)
	}
	sb.WriteString("\n## Final champion\n\n```text\n")
	sb.WriteString(s.FinalPromptAText)
	sb.WriteString("```\n\n## Next challenger\n\n```text\n")
	sb.WriteString(s.FinalPromptBText)
	sb.WriteString("```\n")
	return sb.String(), nil
}

func roundMarkdown(l *artifacts.Layout, round int) (string, error) {
	rl := l.Round(round)
	brief, err := os.ReadFile(rl.Brief())
	if err != nil {
		return "", fault.Configuration(fmt.Sprintf("round %d has no mutation brief", round), err)
	}
	md := string(brief)
	if rec, err := os.ReadFile(rl.RecommendationMD()); err == nil {
		md += "\n" + string(rec)
	}
	return md, nil
}
