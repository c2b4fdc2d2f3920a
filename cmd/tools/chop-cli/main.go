package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/annel0/treefell/internal/chop"
	"github.com/annel0/treefell/internal/eventbus"
	"github.com/annel0/treefell/internal/journal"
)

const (
	defaultNatsURL = "nats://localhost:4222"
	defaultAPI     = "http://localhost:8088"
	timeFormat     = "2006-01-02T15:04:05Z"
)

func main() {
	var (
		command = flag.String("cmd", "tail", "Command: tail, recent")
		natsURL = flag.String("nats", defaultNatsURL, "NATS server URL (tail)")
		stream  = flag.String("stream", "TREEFELL", "JetStream stream name (tail)")
		types   = flag.String("types", "", "Envelope types filter (comma-separated), e.g. chop.completed")
		apiAddr = flag.String("api", defaultAPI, "REST API base URL (recent)")
		limit   = flag.Int("limit", 20, "Maximum number of records (recent)")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch *command {
	case "tail":
		err = tail(ctx, *natsURL, *stream, parseStringList(*types))
	case "recent":
		err = recent(ctx, *apiAddr, *limit)
	default:
		fmt.Fprintf(os.Stderr, "❌ Unknown command: %s\n", *command)
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("❌ %s failed: %v", *command, err)
	}
}

// tail печатает уведомления о рубках из JetStream, пока не придёт сигнал
func tail(ctx context.Context, url, stream string, types []string) error {
	bus, err := eventbus.NewJetStreamBus(url, stream, 0)
	if err != nil {
		return err
	}
	defer bus.Close()

	sub, err := bus.Subscribe(ctx, eventbus.Filter{Types: types}, func(_ context.Context, ev *eventbus.Envelope) {
		var r chop.Result
		if err := ev.Decode(&r); err != nil {
			fmt.Printf("%s %-15s <bad payload: %v>\n", ev.Timestamp.Format(timeFormat), ev.EventType, err)
			return
		}
		printResult(ev.Timestamp, ev.EventType, r)
	})
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	fmt.Printf("📡 Listening on %s (stream=%s)\n", url, stream)
	<-ctx.Done()
	return nil
}

func printResult(ts time.Time, typ string, r chop.Result) {
	line := fmt.Sprintf("%s %-15s %s %-8s %-10s logs=%-3d leaves=%-4d drops=%-3d %s",
		ts.Format(timeFormat), typ, r.ID, r.Species, r.PlayerName, r.Logs, r.Leaves, r.Drops, r.Duration)
	if r.Reason != "" {
		line += " reason=" + r.Reason
	}
	fmt.Println(line)
}

type recentResponse struct {
	Success bool             `json:"success"`
	Message string           `json:"message"`
	Data    []journal.Record `json:"data"`
}

// recent печатает последние рубки из журнала сервера
func recent(ctx context.Context, base string, limit int) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	url := fmt.Sprintf("%s/api/chops?limit=%d", strings.TrimRight(base, "/"), limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var body recentResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || !body.Success {
		return fmt.Errorf("api: %s (%d)", body.Message, resp.StatusCode)
	}

	fmt.Printf("%-20s %-36s %-8s %-10s %-9s %5s %6s %5s\n", "FINISHED", "ID", "SPECIES", "PLAYER", "STATE", "LOGS", "LEAVES", "DROPS")
	for _, r := range body.Data {
		fmt.Printf("%-20s %-36s %-8s %-10s %-9s %5d %6d %5d\n",
			r.FinishedAt.UTC().Format(timeFormat), r.ID, r.Species, r.PlayerName, r.State, r.Logs, r.Leaves, r.Drops)
	}
	return nil
}

func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
