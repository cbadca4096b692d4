package cmd

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/mabhi256/xmx/internal/agent"
	"github.com/mabhi256/xmx/internal/config"
	"github.com/mabhi256/xmx/internal/demo"
	"github.com/mabhi256/xmx/internal/watch"
	"github.com/mabhi256/xmx/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	interval     int
	stepInterval int
	watchConfig  string
	watchSeed    uint64
	watchKeep    int
)

var watchCmd = &cobra.Command{
	Use: "watch",
	Short: `Watch runs the shop demo with the agent attached and opens a live registry browser:
- Managed classes and their tracked instances
- Holding a scope to keep its instances strongly reachable
- Agent statistics and a live-object sparkline

With --config the file is watched and every change is applied to the running agent;
setting "enabled": false in the file acts as a kill switch.

Examples:
  xmx watch                         # built-in demo configuration
  xmx watch -c shop.json            # hot-reloaded configuration
  xmx watch -i 500 --step 20        # faster refresh and workload`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := newLogger(cmd, io.Discard)
		if err != nil {
			return err
		}
		defer log.Close()

		var cfg *config.Config
		if watchConfig != "" {
			if cfg, err = config.Load(watchConfig, log.Logger); err != nil {
				return err
			}
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		env, err := demo.Start(ctx, cfg, log.Logger)
		if err != nil {
			return fmt.Errorf("unable to start demo: %w", err)
		}
		defer env.Close()

		notes := &noteLog{}
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			w := demo.NewWorkload(env.Shop, watchSeed, watchKeep)
			return w.Run(gctx, time.Duration(stepInterval)*time.Millisecond)
		})
		if watchConfig != "" {
			g.Go(func() error {
				return config.Watch(gctx, watchConfig, config.DefaultDebounce, log.Logger, applyConfig(env.Agent, notes, log.Logger))
			})
		}

		tuiErr := watch.StartTUI(watch.Config{
			Agent:    env.Agent,
			Interval: time.Duration(interval) * time.Millisecond,
			Notes:    notes.lines,
		})
		cancel()
		if err := g.Wait(); err != nil {
			return err
		}
		if tuiErr != nil {
			return fmt.Errorf("unable to start TUI: %w", tuiErr)
		}
		return nil
	},
}

// applyConfig hands reloaded configuration to the agent and leaves a note
// for the browser.
func applyConfig(a *agent.Agent, notes *noteLog, log *zap.Logger) func(*config.Config) {
	return func(cfg *config.Config) {
		a.SetConfig(cfg)
		notes.add(fmt.Sprintf("%s config reloaded: agent %s, %d problems",
			time.Now().Format("15:04:05"), enabledString(cfg.Enabled()), len(cfg.Problems)))
		for _, p := range cfg.Problems {
			log.Debug("reload problem", zap.Error(p))
		}
	}
}

const maxNotes = 8

type noteLog struct {
	mu    sync.Mutex
	notes []string
}

func (n *noteLog) add(s string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, s)
	if len(n.notes) > maxNotes {
		n.notes = n.notes[len(n.notes)-maxNotes:]
	}
}

func (n *noteLog) lines() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.notes...)
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().IntVarP(&interval, "interval", "i", 1000, "Update interval in ms")
	watchCmd.Flags().IntVar(&stepInterval, "step", 50, "Workload step interval in ms")
	watchCmd.Flags().StringVarP(&watchConfig, "config", "c", "", "Agent configuration file to load and watch")
	watchCmd.Flags().Uint64Var(&watchSeed, "seed", uint64(time.Now().UnixNano()), "Workload random seed")
	watchCmd.Flags().IntVar(&watchKeep, "keep", 16, "Carts the workload keeps reachable")

	watchCmd.RegisterFlagCompletionFunc("config", utils.CompleteFilesByExtension(".json"))
}
