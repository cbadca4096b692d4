package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/mabhi256/xmx/internal/agent"
	"github.com/mabhi256/xmx/internal/config"
	"github.com/mabhi256/xmx/internal/demo"
	"github.com/mabhi256/xmx/internal/registry"
	"github.com/mabhi256/xmx/internal/tui"
	"github.com/mabhi256/xmx/utils"
	"github.com/spf13/cobra"
)

type inspectOptions struct {
	configFile   string
	steps        int
	seed         uint64
	keep         int
	appPattern   string
	classPattern string
	auditLines   int
}

var inspectOpts inspectOptions

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Run the shop demo and print the registry and advice statistics",
	Long: `inspect starts the built-in shop application with the agent attached, drives it
with a deterministic workload and prints what the agent wove and what the registry tracks.

Examples:
  xmx inspect                          # 200 steps with the demo configuration
  xmx inspect --steps 1000 --seed 7    # a longer run with another seed
  xmx inspect -c my-config.json        # use a custom configuration
  xmx inspect --class '*Proxy*'        # only show proxy classes`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := newLogger(cmd, nil)
		if err != nil {
			return err
		}
		defer log.Close()

		var cfg *config.Config
		if inspectOpts.configFile != "" {
			if cfg, err = config.Load(inspectOpts.configFile, log.Logger); err != nil {
				return err
			}
		}

		env, err := demo.Start(cmd.Context(), cfg, log.Logger)
		if err != nil {
			return fmt.Errorf("unable to start demo: %w", err)
		}
		defer env.Close()

		w := demo.NewWorkload(env.Shop, inspectOpts.seed, inspectOpts.keep)
		started := time.Now()
		for range inspectOpts.steps {
			if err := w.Step(); err != nil {
				return err
			}
		}
		return renderInspect(cmd.OutOrStdout(), env, time.Since(started), inspectOpts)
	},
}

func renderInspect(out io.Writer, env *demo.Environment, elapsed time.Duration, opts inspectOptions) error {
	reg := env.Agent.Registry()
	stats := env.Agent.Statistics()

	classes, err := reg.FindClasses(opts.appPattern, opts.classPattern)
	if err != nil {
		return err
	}

	sections := []string{
		renderAgentSummary(stats, elapsed, opts.steps),
		renderClassTable(reg, classes),
		renderTrackedChart(reg, classes),
		renderMethodTable(env.Stats),
	}
	if audit := env.Stats.Audit(); opts.auditLines > 0 && len(audit) > 0 {
		audit = audit[max(len(audit)-opts.auditLines, 0):]
		lines := []string{tui.TitleStyle.Render("Recent audit")}
		for _, line := range audit {
			lines = append(lines, tui.MutedStyle.Render("  "+line))
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}

	_, err = fmt.Fprintln(out, strings.Join(sections, "\n\n"))
	return err
}

func renderAgentSummary(s agent.Stats, elapsed time.Duration, steps int) string {
	const w = 16
	return strings.Join([]string{
		tui.TitleStyle.Render("🔍 xmx agent"),
		tui.FormatKeyValue("Session", s.Session, w),
		tui.FormatKeyValue("Enabled", enabledString(s.Enabled), w),
		tui.FormatKeyValue("Workload", fmt.Sprintf("%d steps in %s", steps, utils.FormatDuration(elapsed)), w),
		tui.FormatKeyValue("Woven methods", fmt.Sprint(s.WovenMethods), w),
		tui.FormatKeyValue("Join points", fmt.Sprint(s.JoinPoints), w),
		tui.FormatKeyValue("Advice failures", fmt.Sprint(s.Failures), w),
		tui.FormatKeyValue("Registry", fmt.Sprintf("%d classes • %d tracked • %d live • %d strong",
			s.Registry.Classes, s.Registry.Objects, s.Registry.LiveObjects, s.Registry.StrongObjects), w),
	}, "\n")
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(tui.BorderColor)).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tui.TitleStyle.Padding(0, 1)
			}
			return tui.TextStyle.Padding(0, 1)
		})
}

func renderClassTable(reg *registry.Registry, classes []registry.XmxClassInfo) string {
	if len(classes) == 0 {
		return tui.MutedStyle.Render("No managed classes match")
	}
	t := newTable("ID", "App", "Class", "Tracked", "Cap")
	for _, c := range classes {
		limit := "∞"
		if c.MaxInstances > 0 {
			limit = fmt.Sprint(c.MaxInstances)
		}
		t.Row(fmt.Sprint(c.ID), c.AppName, c.Name, fmt.Sprint(len(reg.ObjectsOf(c.ID))), limit)
	}
	return tui.TitleStyle.Render("Managed classes") + "\n" + t.String()
}

func renderTrackedChart(reg *registry.Registry, classes []registry.XmxClassInfo) string {
	var bars []tui.BarData
	for _, c := range classes {
		tracked := len(reg.ObjectsOf(c.ID))
		style := tui.GoodStyle
		if c.MaxInstances > 0 && tracked >= c.MaxInstances {
			style = tui.WarningStyle
		}
		bar := tui.BarData{Label: simpleName(c.Name), Value: float64(tracked), Style: style}
		if c.MaxInstances > 0 {
			bar.Suffix = fmt.Sprintf("(cap %d)", c.MaxInstances)
		}
		bars = append(bars, bar)
	}
	if len(bars) == 0 {
		return ""
	}
	return tui.CreateBarChart("Tracked instances", bars, tui.DefaultBarConfig(30))
}

// simpleName shortens a qualified class name to its last segment.
func simpleName(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}

func renderMethodTable(stats *demo.Stats) string {
	names := stats.MethodNames()
	if len(names) == 0 {
		return tui.MutedStyle.Render("No timed methods")
	}
	methods := stats.Methods()
	t := newTable("Method", "Calls", "Failures", "Avg")
	for _, name := range names {
		ms := methods[name]
		avg := time.Duration(0)
		if ms.Calls > 0 {
			avg = ms.Elapsed / time.Duration(ms.Calls)
		}
		t.Row(name, utils.FormatCount(int64(ms.Calls)), utils.FormatCount(int64(ms.Failures)), utils.FormatDuration(avg))
	}
	return fmt.Sprintf("%s\n%s\n%s", tui.TitleStyle.Render("Timing advice"), t.String(),
		tui.MutedStyle.Render(fmt.Sprintf("%d quantities clamped • %d totals discounted", stats.Clamped(), stats.Discounted())))
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	f := inspectCmd.Flags()
	f.StringVarP(&inspectOpts.configFile, "config", "c", "", "Agent configuration file (default: built-in demo configuration)")
	f.IntVarP(&inspectOpts.steps, "steps", "n", 200, "Workload steps to run")
	f.Uint64Var(&inspectOpts.seed, "seed", 1, "Workload random seed")
	f.IntVar(&inspectOpts.keep, "keep", 16, "Carts the workload keeps reachable")
	f.StringVar(&inspectOpts.appPattern, "app", "", "Application name pattern")
	f.StringVar(&inspectOpts.classPattern, "class", "", "Class name pattern")
	f.IntVar(&inspectOpts.auditLines, "audit", 5, "Recent audit lines to print")

	inspectCmd.RegisterFlagCompletionFunc("config", utils.CompleteFilesByExtension(".json"))
}
