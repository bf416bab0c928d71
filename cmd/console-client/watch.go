package main

import (
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/asyncwatch/console/internal/clientstate"
	"github.com/asyncwatch/console/internal/ids"
	"github.com/asyncwatch/console/internal/logging"
	"github.com/asyncwatch/console/internal/model"
	"github.com/asyncwatch/console/internal/store"
	"github.com/asyncwatch/console/internal/wireclient"
	"github.com/asyncwatch/console/proto"
)

var flagRetention time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Connect and print task/resource/async-op deltas as they arrive",
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&flagRetention, "retention", time.Hour, "how long dropped entities remain visible before being pruned locally")
}

func runWatch(cmd *cobra.Command, args []string) error {
	log := logging.Named("console-client")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn := wireclient.New(flagAddr)
	defer conn.Close()

	mdl := clientstate.New()
	var mu sync.Mutex

	go func() {
		err := conn.Run(ctx, func(u *proto.Update) {
			mu.Lock()
			mdl.ApplyUpdate(u)
			mu.Unlock()
		})
		if err != nil && ctx.Err() == nil {
			log.Warnw("connection ended", "error", err)
		}
	}()

	pruneTicker := time.NewTicker(flagRetention / 4)
	defer pruneTicker.Stop()
	printTicker := time.NewTicker(time.Second)
	defer printTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			pterm.Info.Println("disconnecting")
			return nil
		case <-printTicker.C:
			mu.Lock()
			printSummary(conn, mdl)
			mu.Unlock()
		case <-pruneTicker.C:
			mu.Lock()
			mdl.Prune(flagRetention)
			mu.Unlock()
		}
	}
}

func printSummary(conn *wireclient.Connection, m *clientstate.Model) {
	state := "disconnected"
	if conn.State() == wireclient.StateConnected {
		state = "connected"
	}

	tasks := m.Tasks()
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID.Value < tasks[j].ID.Value })

	droppedTasks, droppedResources, droppedAsyncOps := m.DroppedEventCounts()

	pterm.Printf("[%s] %s tasks=%d resources=%d async_ops=%d dropped(t/r/a)=%d/%d/%d\n",
		time.Now().Format(time.TimeOnly), state,
		len(tasks), len(m.Resources()), len(m.AsyncOps()),
		droppedTasks, droppedResources, droppedAsyncOps,
	)

	for _, id := range m.NewSince(clientstate.KindTask) {
		if t, ok := taskByID(tasks, id); ok {
			pterm.Printf("  + task %d %q\n", id.Value, t.Name)
		}
	}
	m.SetVisibility(clientstate.KindTask, true)

	now := m.Now()
	if now.IsZero() {
		now = time.Now()
	}
	for _, p := range tasks {
		st, ok := m.TaskStats(p.ID)
		if !ok {
			continue
		}
		for _, h := range m.Warnings(p.ID) {
			pterm.Warning.Printf("  task %d: %s\n", p.ID.Value, h.Format(st, now))
		}
	}
}

func taskByID(tasks []store.Pair[*store.Record[*model.Task]], id ids.ID) (*model.Task, bool) {
	for _, p := range tasks {
		if p.ID == id {
			return p.Value.Value, true
		}
	}
	return nil, false
}
