// Package cmd provides the blockflow CLI commands.
package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"

	"github.com/kyralis/blockflow-go/internal/build"
	"github.com/kyralis/blockflow-go/internal/change"
	"github.com/kyralis/blockflow-go/internal/defs"
	"github.com/kyralis/blockflow-go/internal/geom"
	"github.com/kyralis/blockflow-go/internal/graph"
	"github.com/kyralis/blockflow-go/internal/sched"
	"github.com/kyralis/blockflow-go/internal/script"
	"github.com/kyralis/blockflow-go/internal/world"
)

// Version is set at build time via ldflags.
var Version = "dev"

// CLI is the root command tree.
type CLI struct {
	Version kong.VersionFlag `help:"Show version information"`

	Run     RunCmd     `cmd:"" help:"Run a scenario through the scheduler"`
	Inspect InspectCmd `cmd:"" help:"Construct a scenario's graphs and print them"`
	Watch   WatchCmd   `cmd:"" help:"Re-run a scenario whenever its file changes"`
}

// NewCLI creates the command tree.
func NewCLI() *CLI {
	return &CLI{}
}

// Execute parses arguments and dispatches the selected command.
func (c *CLI) Execute(args []string) error {
	kongCtx := kong.Parse(c,
		kong.Name("blockflow"),
		kong.Description("Typed voxel-grid graph engine with packet simulation"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": Version,
		},
	)

	return kongCtx.Run()
}

// engine bundles the wired components of one scenario run.
type engine struct {
	mgr   *graph.Manager
	w     world.World
	clock *world.TickClock
	con   *build.Constructor
	sched *sched.Scheduler

	changeErr error
}

// buildEngine registers the scenario's graph types, attaches the change
// manager and places every block, growing the graphs change by change.
func buildEngine(scn *script.Scenario, w world.World) (*engine, error) {
	eng := &engine{mgr: graph.NewManager(), w: w, clock: &world.TickClock{}}

	for _, ts := range scn.Types {
		t := graph.NewGraphType(ts.Name)
		for _, k := range ts.Kinds {
			def, err := behaviorFor(k)
			if err != nil {
				return nil, err
			}
			if _, err := t.AddNodeType(graph.BlockKind(k.Kind), def); err != nil {
				return nil, fmt.Errorf("registering kind %q: %w", k.Kind, err)
			}
		}
		if _, err := eng.mgr.AddGraphType(t); err != nil {
			return nil, fmt.Errorf("registering type %q: %w", ts.Name, err)
		}
	}

	eng.con = build.NewConstructor(eng.mgr, w)
	eng.sched = sched.NewScheduler(eng.mgr, eng.clock)

	chg := change.NewChangeManager(eng.mgr, eng.con, w)
	chg.Attach(func(err error) {
		if eng.changeErr == nil {
			eng.changeErr = err
		}
	})

	for _, b := range scn.Blocks {
		w.SetKind(b.At.Grid(), graph.BlockKind(b.Kind))
		if eng.changeErr != nil {
			return nil, fmt.Errorf("placing %q at %v: %w", b.Kind, b.At.Grid(), eng.changeErr)
		}
	}
	return eng, nil
}

func behaviorFor(k script.KindSpec) (graph.NodeDefinition, error) {
	switch k.Behavior {
	case script.BehaviorTransport:
		return &defs.Transport{TicksPerCell: k.TicksPerCell}, nil
	case script.BehaviorSink:
		return &defs.Sink{}, nil
	}
	return nil, fmt.Errorf("unknown behavior %q for kind %q", k.Behavior, k.Kind)
}

// RunCmd runs a scenario through the scheduler.
type RunCmd struct {
	Script string `arg:"" help:"Path to scenario JSON"`
	DB     string `help:"Persist the world in a BadgerDB at this path"`
	Quiet  bool   `short:"q" help:"Suppress per-packet event output"`
}

// Run executes the run command.
func (c *RunCmd) Run() error {
	scn, err := script.Load(c.Script)
	if err != nil {
		return err
	}

	w, closer, err := openWorld(c.DB)
	if err != nil {
		return err
	}
	defer closer()

	return runScenario(scn, w, c.Quiet)
}

func openWorld(dbPath string) (world.World, func(), error) {
	if dbPath == "" {
		return world.NewMemoryWorld(), func() {}, nil
	}
	bw, err := world.OpenBadgerWorld(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening world db: %w", err)
	}
	return bw, func() { _ = bw.Close() }, nil
}

func runScenario(scn *script.Scenario, w world.World, quiet bool) error {
	eng, err := buildEngine(scn, w)
	if err != nil {
		return err
	}

	name := scn.Name
	if name == "" {
		name = "scenario"
	}
	color.Green("Running %s (%d ticks, %d blocks, %d packets)",
		name, scn.Ticks, len(scn.Blocks), len(scn.Packets))

	left := make(map[sched.LeaveReason]int)
	eng.sched.OnLeaveNetwork(func(data graph.Carrier, reason sched.LeaveReason) {
		left[reason]++
		if quiet {
			return
		}
		switch reason {
		case sched.LeaveDelivered:
			color.Green("  tick %d: packet %d delivered", eng.clock.Now(), data.CarrierID())
		default:
			color.Yellow("  tick %d: packet %d %s", eng.clock.Now(), data.CarrierID(), reason)
		}
	})

	byTick := make(map[uint64][]script.Insertion)
	for _, ins := range scn.Packets {
		byTick[ins.Tick] = append(byTick[ins.Tick], ins)
	}
	packets := make([]*sched.Packet, 0, len(scn.Packets))

	for t := uint64(0); t < scn.Ticks; t++ {
		for _, ins := range byTick[t] {
			pkt := sched.NewPacket(ins.ID, ins.Payload)
			if err := insertAt(eng, ins.At.Grid(), pkt); err != nil {
				return err
			}
			packets = append(packets, pkt)
		}
		if err := eng.sched.OnTick(); err != nil {
			return fmt.Errorf("tick %d: %w", t, err)
		}
		if eng.changeErr != nil {
			return eng.changeErr
		}
		eng.clock.Advance()
	}

	fmt.Println()
	for _, pkt := range packets {
		fmt.Printf("  packet %d visited %d nodes: %v\n",
			pkt.CarrierID(), len(pkt.Visited()), pkt.Visited())
	}
	color.Green("\n✓ Run complete")
	fmt.Printf("  Instances:  %d\n", eng.mgr.InstanceCount())
	fmt.Printf("  Delivered:  %d\n", left[sched.LeaveDelivered])
	fmt.Printf("  Ejected:    %d\n", left[sched.LeaveEjected])
	fmt.Printf("  Stale:      %d\n", left[sched.LeaveStale])
	fmt.Printf("  In flight:  %d\n", eng.sched.Pending())
	return nil
}

func insertAt(eng *engine, pos geom.Cell, pkt *sched.Packet) error {
	tag, ok := eng.w.TagAt(pos)
	if !ok {
		return fmt.Errorf("inserting packet %d: no node claims %v", pkt.CarrierID(), pos)
	}
	ref, ok := eng.mgr.Node(tag.URI, tag.Node)
	if !ok {
		return fmt.Errorf("inserting packet %d: tag at %v is orphaned", pkt.CarrierID(), pos)
	}
	return eng.sched.InsertData(ref, pkt)
}

// InspectCmd constructs a scenario's graphs and prints the node
// inventory without running the scheduler.
type InspectCmd struct {
	Script string `arg:"" help:"Path to scenario JSON"`
}

// Run executes the inspect command.
func (c *InspectCmd) Run() error {
	scn, err := script.Load(c.Script)
	if err != nil {
		return err
	}
	eng, err := buildEngine(scn, world.NewMemoryWorld())
	if err != nil {
		return err
	}

	for _, in := range eng.mgr.Instances() {
		t, _ := eng.mgr.GraphType(in.URI().Type)
		color.Cyan("%s (%s): %d nodes", in.URI(), t.Name(), in.NodeCount())

		refs := in.Refs()
		sort.Slice(refs, func(i, j int) bool { return refs[i].ID() < refs[j].ID() })
		for _, ref := range refs {
			n, err := ref.Node()
			if err != nil {
				continue
			}
			fmt.Printf("  #%d %s cells=%v\n", n.Header().ID, n.Kind(), n.Positions())
			for _, slot := range graph.LinkSlots(n) {
				fmt.Printf("      %v/%v -> #%d\n", slot.At, slot.Side, slot.Neighbor.ID())
			}
		}
	}
	return nil
}

// WatchCmd re-runs a scenario whenever its file changes.
type WatchCmd struct {
	Script string `arg:"" help:"Path to scenario JSON"`
	Quiet  bool   `short:"q" help:"Suppress per-packet event output"`
}

// Run executes the watch command. Blocks until interrupted.
func (c *WatchCmd) Run() error {
	path, err := filepath.Abs(c.Script)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: editors replace files on save, which drops a
	// watch placed on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(path), err)
	}

	fmt.Printf("Watching %s for changes (Ctrl+C to stop)\n\n", path)
	c.rerun(path)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	// Batch bursts of events from a single save.
	debounce := time.NewTimer(0)
	if !debounce.Stop() {
		<-debounce.C
	}
	dirty := false

	for {
		select {
		case <-stop:
			fmt.Println("\nStopping watch mode.")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			dirty = true
			debounce.Reset(300 * time.Millisecond)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "Watch error: %v\n", err)

		case <-debounce.C:
			if dirty {
				dirty = false
				c.rerun(path)
			}
		}
	}
}

func (c *WatchCmd) rerun(path string) {
	scn, err := script.Load(path)
	if err != nil {
		color.Red("Error: %v", err)
		return
	}
	if err := runScenario(scn, world.NewMemoryWorld(), c.Quiet); err != nil {
		color.Red("Error: %v", err)
	}
	fmt.Println()
}
