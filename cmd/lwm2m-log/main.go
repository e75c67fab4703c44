// Command lwm2m-log views and analyzes protocol trace files.
//
// Trace files are written by lwm2m-client when it runs with the
// --protocol-log flag.
//
// Usage:
//
//	lwm2m-log <command> [flags] <trace.cbor>
//
// Commands:
//
//	view     View trace file in human-readable format
//	filter   Filter trace file and write to new file
//	stats    Show statistics about the trace file
//
// Examples:
//
//	# View only inbound datagrams
//	lwm2m-log view --category datagram --direction in trace.cbor
//
//	# Keep the events of one server account
//	lwm2m-log filter --ssid 2 -o ssid2.cbor trace.cbor
//
//	# Show statistics
//	lwm2m-log stats trace.cbor
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/mash-protocol/lwm2m-go/cmd/lwm2m-log/commands"
)

const usage = `lwm2m-log - Protocol Trace Analyzer

Usage:
  lwm2m-log <command> [flags] <trace.cbor>

Commands:
  view     View trace file in human-readable format
  filter   Filter trace file and write to new file
  stats    Show statistics about the trace file

Use "lwm2m-log <command> --help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "view":
		err = runView(args)
	case "filter":
		err = runFilter(args)
	case "stats":
		err = runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	if err != nil && !errors.Is(err, pflag.ErrHelp) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// addFilterFlags registers the event selection flags on fs.
func addFilterFlags(fs *pflag.FlagSet, opts *commands.FilterOptions) {
	fs.StringVar(&opts.SocketID, "socket-id", "", "filter by socket ID")
	fs.Uint16Var(&opts.SSID, "ssid", 0, "filter by server account")
	fs.StringVar(&opts.TimeStart, "time-start", "", "filter by start time (RFC3339)")
	fs.StringVar(&opts.TimeEnd, "time-end", "", "filter by end time (RFC3339)")
	fs.StringVar(&opts.Layer, "layer", "", "filter by layer (transport, loop, bootstrap)")
	fs.StringVar(&opts.Direction, "direction", "", "filter by direction (in, out)")
	fs.StringVar(&opts.Category, "category", "", "filter by category (datagram, state, error)")
}

// parseArgs parses args and returns the single trace file path.
func parseArgs(fs *pflag.FlagSet, args []string) (string, error) {
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return "", errors.New("trace file path required")
	}
	return fs.Arg(0), nil
}

func runView(args []string) error {
	fs := pflag.NewFlagSet("view", pflag.ContinueOnError)
	var opts commands.FilterOptions
	addFilterFlags(fs, &opts)

	path, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	filter, err := opts.Build()
	if err != nil {
		return err
	}
	return commands.RunView(path, filter, os.Stdout)
}

func runFilter(args []string) error {
	fs := pflag.NewFlagSet("filter", pflag.ContinueOnError)
	var opts commands.FilterOptions
	addFilterFlags(fs, &opts)
	output := fs.StringP("output", "o", "", "output file (required)")

	path, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if *output == "" {
		return errors.New("output file (-o) required")
	}
	filter, err := opts.Build()
	if err != nil {
		return err
	}

	n, err := commands.RunFilter(path, *output, filter)
	if err != nil {
		return err
	}
	fmt.Printf("Filtered %d events to %s\n", n, *output)
	return nil
}

func runStats(args []string) error {
	fs := pflag.NewFlagSet("stats", pflag.ContinueOnError)
	path, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	return commands.RunStats(path, os.Stdout)
}
