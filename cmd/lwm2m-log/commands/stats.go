package commands

import (
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/mash-protocol/lwm2m-go/pkg/log"
)

// Stats holds aggregate statistics about a trace file.
type Stats struct {
	TotalEvents       int
	EventsByLayer     map[log.Layer]int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	Sockets           map[string]*SocketStats
	Errors            int
	TimeRange         struct {
		Start time.Time
		End   time.Time
	}
}

// SocketStats holds statistics for a single server socket.
type SocketStats struct {
	FirstSeen  time.Time
	LastSeen   time.Time
	Events     int
	SSID       uint16
	RemoteAddr string
	BytesIn    int
	BytesOut   int
}

// CollectStats reads the trace file and aggregates its events.
func CollectStats(path string) (*Stats, error) {
	reader, err := log.NewReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := &Stats{
		EventsByLayer:     make(map[log.Layer]int),
		EventsByCategory:  make(map[log.Category]int),
		EventsByDirection: make(map[log.Direction]int),
		Sockets:           make(map[string]*SocketStats),
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			return stats, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read event: %w", err)
		}

		stats.TotalEvents++
		stats.EventsByLayer[event.Layer]++
		stats.EventsByCategory[event.Category]++
		if event.Datagram != nil {
			stats.EventsByDirection[event.Direction]++
		}
		if event.Error != nil {
			stats.Errors++
		}

		if stats.TimeRange.Start.IsZero() || event.Timestamp.Before(stats.TimeRange.Start) {
			stats.TimeRange.Start = event.Timestamp
		}
		if event.Timestamp.After(stats.TimeRange.End) {
			stats.TimeRange.End = event.Timestamp
		}

		if event.SocketID == "" {
			continue
		}
		sock, ok := stats.Sockets[event.SocketID]
		if !ok {
			sock = &SocketStats{FirstSeen: event.Timestamp, LastSeen: event.Timestamp}
			stats.Sockets[event.SocketID] = sock
		}
		sock.Events++
		if event.Timestamp.After(sock.LastSeen) {
			sock.LastSeen = event.Timestamp
		}
		if event.SSID != 0 {
			sock.SSID = event.SSID
		}
		if event.RemoteAddr != "" {
			sock.RemoteAddr = event.RemoteAddr
		}
		if event.Datagram != nil {
			if event.Direction == log.DirectionIn {
				sock.BytesIn += event.Datagram.Size
			} else {
				sock.BytesOut += event.Datagram.Size
			}
		}
	}
}

// RunStats analyzes the trace file and prints statistics.
func RunStats(path string, w io.Writer) error {
	stats, err := CollectStats(path)
	if err != nil {
		return err
	}
	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== Protocol Trace Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Layer:")
	for _, layer := range []log.Layer{log.LayerTransport, log.LayerLoop, log.LayerBootstrap} {
		if count := stats.EventsByLayer[layer]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", layer.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryDatagram, log.CategoryState, log.CategoryError} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Datagrams by Direction:")
	for _, dir := range []log.Direction{log.DirectionIn, log.DirectionOut} {
		if count := stats.EventsByDirection[dir]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", dir.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Sockets: %d\n", len(stats.Sockets))
	ids := make([]string, 0, len(stats.Sockets))
	for id := range stats.Sockets {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b string) int {
		return stats.Sockets[a].FirstSeen.Compare(stats.Sockets[b].FirstSeen)
	})
	for _, id := range ids {
		s := stats.Sockets[id]
		fmt.Fprintf(w, "  [%s] ssid %d %s: %d events, %d bytes in, %d bytes out\n",
			shortenSocketID(id), s.SSID, s.RemoteAddr, s.Events, s.BytesIn, s.BytesOut)
	}

	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}
