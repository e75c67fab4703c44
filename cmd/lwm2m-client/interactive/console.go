// Package interactive provides the interactive console for lwm2m-client.
package interactive

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/chzyer/readline"

	"github.com/mash-protocol/lwm2m-go/pkg/bootstrap"
	"github.com/mash-protocol/lwm2m-go/pkg/dm"
	"github.com/mash-protocol/lwm2m-go/pkg/sched"
)

// maxProbeResource is the highest resource ID the instances command reads.
const maxProbeResource dm.ResourceID = 31

// Runner executes fn on the goroutine that owns the data model and waits
// for it to finish.
type Runner func(ctx context.Context, fn func()) error

// OnLoop returns a Runner that hands fn to the event loop through s.
func OnLoop(s *sched.Scheduler) Runner {
	return func(ctx context.Context, fn func()) error {
		done := make(chan struct{})
		s.Schedule(0, func() {
			defer close(done)
			fn()
		})
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Console is the interactive command prompt.
type Console struct {
	rl *readline.Instance
}

// New creates the console. Create it before the logger so that log output
// can be routed through Stderr.
func New() (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "lwm2m> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Console{rl: rl}, nil
}

// Stdout returns a writer that coordinates with the prompt.
func (c *Console) Stdout() io.Writer {
	return c.rl.Stdout()
}

// Stderr returns a writer that coordinates with the prompt.
func (c *Console) Stderr() io.Writer {
	return c.rl.Stderr()
}

// Run reads commands until ctx is cancelled or the user quits, in which
// case cancel is called.
func (c *Console) Run(ctx context.Context, agent *bootstrap.Agent, run Runner, cancel context.CancelFunc) {
	defer c.rl.Close()

	go func() {
		<-ctx.Done()
		c.rl.Close()
	}()

	s := &session{agent: agent, run: run, out: c.rl.Stdout()}
	s.printHelp()

	for {
		if ctx.Err() != nil {
			return
		}

		line, err := c.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(s.out, "Exiting...")
			cancel()
			return
		}

		if s.execute(ctx, line) {
			fmt.Fprintln(s.out, "Exiting...")
			cancel()
			return
		}
	}
}

type session struct {
	agent *bootstrap.Agent
	run   Runner
	out   io.Writer
}

// execute runs one command line. It returns true when the user asked to
// quit.
func (s *session) execute(ctx context.Context, line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	var fn func()
	switch cmd {
	case "help", "?":
		s.printHelp()
		return false
	case "quit", "exit", "q":
		return true
	case "objects", "o":
		fn = s.cmdObjects
	case "instances", "i":
		oid, err := parseObjectID(args)
		if err != nil {
			fmt.Fprintf(s.out, "Error: %v\n", err)
			return false
		}
		fn = func() { s.cmdInstances(oid) }
	case "servers":
		fn = s.cmdServers
	case "acl":
		fn = s.cmdACL
	case "sched":
		fn = s.cmdSched
	case "stats":
		fn = s.cmdStats
	case "save":
		fn = s.cmdSave
	default:
		fmt.Fprintf(s.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
		return false
	}

	if err := s.run(ctx, fn); err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
	}
	return false
}

func parseObjectID(args []string) (dm.ObjectID, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("usage: instances <object-id>")
	}
	v, err := strconv.ParseUint(strings.TrimPrefix(args[0], "/"), 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid object ID %q", args[0])
	}
	return dm.ObjectID(v), nil
}

func (s *session) cmdObjects() {
	w := tabwriter.NewWriter(s.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "OBJECT\tVERSION\tINSTANCES")
	for _, obj := range s.agent.Client().Registry().Objects() {
		fmt.Fprintf(w, "/%d\t%s\t%d\n", obj.ObjectID(), obj.Version(), len(obj.Instances()))
	}
	w.Flush()
}

func (s *session) cmdInstances(oid dm.ObjectID) {
	obj, err := s.agent.Client().Registry().Lookup(oid)
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	iids := obj.Instances()
	if len(iids) == 0 {
		fmt.Fprintf(s.out, "/%d has no instances\n", oid)
		return
	}
	for _, iid := range iids {
		fmt.Fprintf(s.out, "%s\n", dm.Path(oid, iid, dm.RIDInvalid))
		for rid := dm.ResourceID(0); rid <= maxProbeResource; rid++ {
			v, err := obj.ReadResource(iid, rid)
			if err != nil {
				continue
			}
			fmt.Fprintf(s.out, "  %-4d %v\n", rid, v)
		}
	}
}

func (s *session) cmdServers() {
	lifetimes := make(map[dm.SSID]string)
	for _, e := range s.agent.Server().Entries() {
		lifetimes[e.Instance.SSID] = e.Instance.Lifetime.String()
	}

	w := tabwriter.NewWriter(s.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SSID\tURI\tMODE\tLIFETIME")
	for _, e := range s.agent.Security().Servers() {
		lifetime, ok := lifetimes[e.Instance.SSID]
		if !ok {
			lifetime = "-"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", e.Instance.SSID, e.Instance.ServerURI, e.Instance.SecurityMode, lifetime)
	}
	w.Flush()
}

func (s *session) cmdACL() {
	entries := s.agent.ACL().Entries()
	if len(entries) == 0 {
		fmt.Fprintln(s.out, "No access control entries")
		return
	}
	w := tabwriter.NewWriter(s.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TARGET\tSSID\tRIGHTS")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%d\t%s\n", dm.Path(e.ObjectID, e.InstanceID, dm.RIDInvalid), e.SSID, e.Mask)
	}
	w.Flush()
}

func (s *session) cmdSched() {
	sc := s.agent.Client().Scheduler()
	next, ok := sc.TimeToNext()
	if !ok {
		fmt.Fprintf(s.out, "Pending tasks: %d\n", sc.Len())
		return
	}
	fmt.Fprintf(s.out, "Pending tasks: %d (next in %s)\n", sc.Len(), next)
}

func (s *session) cmdStats() {
	st := s.agent.Stats()
	fmt.Fprintf(s.out, "Iterations:   %d\n", st.Iterations)
	fmt.Fprintf(s.out, "Served:       %d\n", st.Served)
	fmt.Fprintf(s.out, "Serve errors: %d\n", st.ServeErrors)
	fmt.Fprintf(s.out, "Tasks run:    %d\n", st.TasksRun)
}

func (s *session) cmdSave() {
	path := s.agent.Config().StatePath
	if path == "" {
		fmt.Fprintln(s.out, "No state path configured (use --state)")
		return
	}
	if err := s.agent.Save(); err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "State saved to %s\n", path)
}

func (s *session) printHelp() {
	fmt.Fprintln(s.out, `
Client Commands:
  Data model:
    objects              - List registered objects
    instances <oid>      - Show instances and readable resources of an object
    servers              - List configured management servers
    acl                  - Show access control entries

  Runtime:
    sched                - Show pending scheduler tasks
    stats                - Show event loop counters
    save                 - Write the data model to the state file

  Other:
    help                 - Show this help
    quit                 - Exit`)
}
