/*
 * This file is part of Loqa (https://github.com/loqalabs/loqa).
 * Copyright (C) 2025 Loqa Labs
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/loqalabs/loqa-voicecmd/internal/api"
	"github.com/loqalabs/loqa-voicecmd/internal/manager"
	"github.com/loqalabs/loqa-voicecmd/internal/messaging"
	"github.com/loqalabs/loqa-voicecmd/internal/nlp"
	"github.com/loqalabs/loqa-voicecmd/internal/speech"
)

const (
	defaultHubURL = "http://localhost:8080"
)

func main() {
	var (
		hubURL    = flag.String("hub", defaultHubURL, "URL of the voice command service")
		action    = flag.String("action", "parse", "Action to perform: parse, demo, start, list, info, stop, stop-listening, history, watch")
		text      = flag.String("text", "", "Utterance for parse and demo")
		sessionID = flag.String("session", "", "Session ID for info, stop and stop-listening")
		reference = flag.String("reference", "", "Reference time (RFC3339) for parse")
		reason    = flag.String("reason", "", "Filter history by termination reason")
		format    = flag.String("format", "table", "Output format: table, json")
		fast      = flag.Bool("fast", false, "Use short session delays in the demo")
		natsURL   = flag.String("nats", "nats://localhost:4222", "NATS server for watch")
	)
	flag.Parse()

	cli := &VoiceCLI{
		hubURL: strings.TrimRight(*hubURL, "/"),
		format: *format,
		out:    os.Stdout,
	}

	var err error
	switch *action {
	case "parse":
		err = cli.parse(*text, *reference)
	case "demo":
		timings := speech.DefaultTimings()
		if *fast {
			timings = speech.Timings{
				MinStatusDuration: 50 * time.Millisecond,
				AnalysisDuration:  100 * time.Millisecond,
				ExitDuration:      50 * time.Millisecond,
			}
		}
		err = cli.demo(context.Background(), *text, timings)
	case "start":
		err = cli.startSession()
	case "list":
		err = cli.listSessions()
	case "info", "stop", "stop-listening":
		if *sessionID == "" {
			err = fmt.Errorf("session ID required for %s action", *action)
			break
		}
		if *action == "info" {
			err = cli.getSession(*sessionID)
		} else {
			err = cli.sessionAction(*sessionID, *action)
		}
	case "history":
		err = cli.history(*reason)
	case "watch":
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		err = cli.watch(ctx, *natsURL)
		stop()
	default:
		err = fmt.Errorf("unknown action %s", *action)
		fmt.Fprintf(os.Stderr, "Valid actions: parse, demo, start, list, info, stop, stop-listening, history, watch\n")
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// VoiceCLI talks to a running service, or works locally for parse and demo.
type VoiceCLI struct {
	hubURL string
	format string
	out    io.Writer
}

func (c *VoiceCLI) encode(v interface{}) error {
	encoder := json.NewEncoder(c.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// parse interprets text locally.
func (c *VoiceCLI) parse(text, reference string) error {
	if strings.TrimSpace(text) == "" {
		return errors.New("text required for parse action")
	}

	ref := time.Now()
	if reference != "" {
		parsed, err := time.Parse(time.RFC3339, reference)
		if err != nil {
			return fmt.Errorf("reference must be RFC3339: %w", err)
		}
		ref = parsed
	}

	cmd := nlp.InterpretAt(text, ref)
	if c.format == "json" {
		return c.encode(cmd)
	}
	c.printCommand(cmd)
	return nil
}

func (c *VoiceCLI) printCommand(cmd nlp.Command) {
	fmt.Fprintf(c.out, "Text:    %s\n", cmd.Text)
	fmt.Fprintf(c.out, "Verb:    %s\n", cmd.Verb)
	fmt.Fprintf(c.out, "Intent:  %s\n", cmd.Intent)
	switch {
	case cmd.Time == nil:
		fmt.Fprintf(c.out, "Time:    none\n")
	case cmd.Time.Type == nlp.VariableDate:
		fmt.Fprintf(c.out, "Time:    date %d\n", cmd.Time.Date)
	default:
		fmt.Fprintf(c.out, "Time:    period %d - %d\n", cmd.Time.Period[0], cmd.Time.Period[1])
	}
}

// demo runs a local session that replays text word by word.
func (c *VoiceCLI) demo(ctx context.Context, text string, timings speech.Timings) error {
	if strings.TrimSpace(text) == "" {
		text = "show my steps for last week"
	}

	words := strings.Fields(text)
	script := make([]string, len(words))
	for i := range words {
		script[i] = strings.Join(words[:i+1], " ")
	}

	recognizer := speech.NewScriptedRecognizer(script...)
	recognizer.AutoStop = true

	started := time.Now()
	analyzer := speech.AnalyzerFunc(func(ctx context.Context, last *speech.DictationResult) (interface{}, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(timings.AnalysisDuration):
		}
		if last == nil {
			return nil, errors.New("nothing was heard")
		}
		return nlp.Interpret(last.Text), nil
	})

	var result *speech.TerminationPayload
	session := speech.New(recognizer,
		speech.WithTimings(timings),
		speech.WithAnalyzer(analyzer),
		speech.WithStatusChangeListener(func(status speech.SessionStatus, payload *speech.TerminationPayload) {
			fmt.Fprintf(c.out, "[%6dms] %s\n", time.Since(started).Milliseconds(), status)
			if payload != nil {
				result = payload
			}
		}),
		speech.WithDictationOutputListener(func(r speech.DictationResult) {
			fmt.Fprintf(c.out, "           %q %s\n", r.Text, formatDiff(r.DiffResult))
		}),
	)
	defer session.Dispose()

	if err := session.RequestStart(ctx); err != nil {
		return err
	}
	select {
	case <-session.Done():
	case <-ctx.Done():
		return ctx.Err()
	}

	if result == nil {
		return errors.New("session ended without a result")
	}
	fmt.Fprintf(c.out, "Result:  %s\n", result.Reason)
	if cmd, ok := result.Data.(nlp.Command); ok {
		c.printCommand(cmd)
	} else if result.Data != nil {
		fmt.Fprintf(c.out, "Detail:  %v\n", result.Data)
	}
	return nil
}

// formatDiff renders a word diff as "+added -removed".
func formatDiff(parts []speech.DiffPart) string {
	var b strings.Builder
	for _, part := range parts {
		value := strings.TrimSpace(part.Value)
		if value == "" {
			continue
		}
		switch {
		case part.Added:
			b.WriteString("+" + value + " ")
		case part.Removed:
			b.WriteString("-" + value + " ")
		}
	}
	return strings.TrimSpace(b.String())
}

func (c *VoiceCLI) startSession() error {
	resp, err := http.Post(c.hubURL+"/api/sessions", "application/json", bytes.NewReader(nil))
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	var info manager.Info
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	if c.format == "json" {
		return c.encode(info)
	}
	fmt.Fprintf(c.out, "Session %s started (%s)\n", info.ID, info.Status)
	return nil
}

func (c *VoiceCLI) listSessions() error {
	var result api.ListSessionsResponse
	if err := c.get("/api/sessions", &result); err != nil {
		return err
	}
	if c.format == "json" {
		return c.encode(result.Sessions)
	}

	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tENGINE\tSTATUS\tSTARTED\tTRANSCRIPT")
	fmt.Fprintln(w, "--\t------\t------\t-------\t----------")
	for _, info := range result.Sessions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			info.ID,
			info.Engine,
			info.Status,
			info.StartedAt.Format("2006-01-02 15:04:05"),
			info.Transcript,
		)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("error flushing output: %w", err)
	}
	fmt.Fprintf(c.out, "\nTotal: %d live sessions\n", result.Total)
	return nil
}

func (c *VoiceCLI) getSession(id string) error {
	var info manager.Info
	if err := c.get("/api/sessions/"+url.PathEscape(id), &info); err != nil {
		return err
	}
	if c.format == "json" {
		return c.encode(info)
	}

	fmt.Fprintf(c.out, "Session Information:\n")
	fmt.Fprintf(c.out, "  ID:         %s\n", info.ID)
	fmt.Fprintf(c.out, "  Engine:     %s\n", info.Engine)
	fmt.Fprintf(c.out, "  Status:     %s\n", info.Status)
	fmt.Fprintf(c.out, "  Started At: %s\n", info.StartedAt.Format("2006-01-02 15:04:05"))
	if info.Transcript != "" {
		fmt.Fprintf(c.out, "  Transcript: %s\n", info.Transcript)
	}
	fmt.Fprintf(c.out, "\nHistory:\n")
	for _, change := range info.History {
		fmt.Fprintf(c.out, "  %s  %s\n", change.At.Format("15:04:05.000"), change.Status)
	}
	return nil
}

func (c *VoiceCLI) sessionAction(id, action string) error {
	resp, err := http.Post(c.hubURL+"/api/sessions/"+url.PathEscape(id)+"/"+action, "application/json", strings.NewReader("{}"))
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusAccepted:
		fmt.Fprintf(c.out, "Session %s: %s requested\n", id, action)
		return nil
	case http.StatusNotFound:
		return fmt.Errorf("session %s not found", id)
	case http.StatusConflict:
		return fmt.Errorf("session %s is not listening", id)
	}
	body, _ := io.ReadAll(resp.Body)
	return fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
}

func (c *VoiceCLI) history(reason string) error {
	path := "/api/session-events"
	if reason != "" {
		path += "?reason=" + url.QueryEscape(reason)
	}

	var result api.ListSessionEventsResponse
	if err := c.get(path, &result); err != nil {
		return err
	}
	if c.format == "json" {
		return c.encode(result.Events)
	}

	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tREASON\tDURATION\tINTENT\tTRANSCRIPT")
	fmt.Fprintln(w, "-------\t------\t--------\t------\t----------")
	for _, event := range result.Events {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			event.SessionID,
			event.Reason,
			event.Duration().Round(time.Millisecond),
			event.Intent,
			event.Transcript,
		)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("error flushing output: %w", err)
	}
	fmt.Fprintf(c.out, "\nTotal: %d sessions (page %d of %d)\n", result.Total, result.Page, result.TotalPages)
	return nil
}

func (c *VoiceCLI) get(path string, v interface{}) error {
	resp, err := http.Get(c.hubURL + path)
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s not found", path)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// watch prints session status changes published by the service until ctx ends.
func (c *VoiceCLI) watch(ctx context.Context, natsURL string) error {
	ns := messaging.NewNATSService(messaging.NATSConfig{URL: natsURL, Name: "voicecmd-cli"})
	if err := ns.Connect(); err != nil {
		return err
	}
	defer ns.Close()

	events := make(chan *messaging.StatusEvent, 16)
	sub, err := ns.SubscribeToStatus(func(event *messaging.StatusEvent) {
		select {
		case events <- event:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	defer func() { _ = sub.Unsubscribe() }()

	fmt.Fprintf(c.out, "Watching %s (Ctrl-C to stop)\n", messaging.SubjectSessionStatus)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-events:
			c.printStatusEvent(event)
		}
	}
}

func (c *VoiceCLI) printStatusEvent(event *messaging.StatusEvent) {
	if c.format == "json" {
		_ = c.encode(event)
		return
	}
	line := fmt.Sprintf("%s  %s  %s", time.UnixMilli(event.Timestamp).Format("15:04:05.000"), event.SessionID, event.Status)
	if event.Reason != "" {
		line += " (" + event.Reason + ")"
	}
	fmt.Fprintln(c.out, line)
}
