// Package feed adapts the device bridge to the engine's source interfaces.
// The bridge (a notification/SMS forwarder app) appends one JSON event per
// line to a feed file; this package tails that file for the live streams and
// replays it for the batch scan path.
package feed

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/dhanwatch/dhanwatch/internal/model"
)

// Event kinds in the bridge feed.
const (
	kindNotification = "notification"
	kindSms          = "sms"
)

// event is the bridge's wire format for one observed message.
type event struct {
	PostedAt time.Time `json:"posted_at"`
	Kind     string    `json:"kind"`
	App      string    `json:"app,omitempty"`
	Sender   string    `json:"sender,omitempty"`
	Title    string    `json:"title,omitempty"`
	Body     string    `json:"body"`
}

// Source tails one bridge feed file. It implements both
// service.NotificationSource and service.SmsSource.
type Source struct {
	path string
	poll time.Duration
}

// NewSource creates a feed source over the given file. poll is the tail
// polling interval; zero means one second.
func NewSource(path string, poll time.Duration) *Source {
	if poll <= 0 {
		poll = time.Second
	}
	return &Source{path: path, poll: poll}
}

// Notifications starts tailing the feed and delivers notification events.
// The channel is closed when ctx is canceled.
func (s *Source) Notifications(ctx context.Context) (<-chan model.RawNotification, error) {
	events, err := s.tail(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan model.RawNotification)
	go func() {
		defer close(out)
		for ev := range events {
			if ev.Kind != kindNotification {
				continue
			}
			select {
			case out <- model.RawNotification{
				AppIdentity: ev.App,
				Title:       ev.Title,
				Body:        ev.Body,
				PostedAt:    ev.PostedAt,
			}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Messages starts tailing the feed and delivers SMS events.
func (s *Source) Messages(ctx context.Context) (<-chan model.RawSms, error) {
	events, err := s.tail(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan model.RawSms)
	go func() {
		defer close(out)
		for ev := range events {
			if ev.Kind != kindSms {
				continue
			}
			select {
			case out <- model.RawSms{
				SenderAddress: ev.Sender,
				Body:          ev.Body,
				ReceivedAt:    ev.PostedAt,
			}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// ListSms replays the whole feed and returns the SMS events inside the
// requested range, oldest first.
func (s *Source) ListSms(_ context.Context, from, to time.Time) ([]model.RawSms, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var messages []model.RawSms
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		ev, ok := parseLine(scanner.Bytes())
		if !ok || ev.Kind != kindSms {
			continue
		}
		if ev.PostedAt.Before(from) || ev.PostedAt.After(to) {
			continue
		}
		messages = append(messages, model.RawSms{
			SenderAddress: ev.Sender,
			Body:          ev.Body,
			ReceivedAt:    ev.PostedAt,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return messages, nil
}

// tail opens the feed at its current end and polls for appended lines. Live
// streams only see new events; the backlog belongs to the scan path.
func (s *Source) tail(ctx context.Context) (<-chan event, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		_ = f.Close()
		return nil, err
	}

	out := make(chan event)
	go func() {
		defer close(out)
		defer func() { _ = f.Close() }()

		reader := bufio.NewReader(f)
		ticker := time.NewTicker(s.poll)
		defer ticker.Stop()

		// partial carries an incomplete trailing line across polls so a
		// half-written event is not lost.
		var partial []byte

		for {
			chunk, err := reader.ReadBytes('\n')
			partial = append(partial, chunk...)
			if err == nil {
				if ev, ok := parseLine(partial); ok {
					select {
					case out <- ev:
					case <-ctx.Done():
						return
					}
				}
				partial = nil
				continue
			}
			if !errors.Is(err, io.EOF) {
				slog.Warn("Feed read failed, will retry", "path", s.path, "error", err)
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return out, nil
}

// parseLine decodes one feed line. Malformed lines are logged and skipped;
// the bridge occasionally truncates a line on device reboot.
func parseLine(line []byte) (event, bool) {
	var ev event
	if len(line) == 0 {
		return ev, false
	}
	if err := json.Unmarshal(line, &ev); err != nil {
		slog.Warn("Skipping malformed feed line", "error", err)
		return ev, false
	}
	if ev.Kind != kindNotification && ev.Kind != kindSms {
		return ev, false
	}
	if ev.PostedAt.IsZero() {
		ev.PostedAt = time.Now()
	}
	return ev, true
}
