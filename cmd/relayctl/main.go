package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/matheus3301/relay/internal/api"
	"github.com/matheus3301/relay/internal/config"
	"github.com/matheus3301/relay/internal/instance"
	"github.com/matheus3301/relay/internal/lock"
	"github.com/matheus3301/relay/internal/tui/client"
)

func main() {
	instanceFlag := flag.String("instance", "", "instance name (overrides config default)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	// Commands that do not talk to a daemon.
	switch args[0] {
	case "init":
		cmdInit(args[1:])
		return
	case "instances":
		cmdInstances(*jsonFlag)
		return
	}

	name := instance.Resolve(*instanceFlag)
	if err := instance.ValidateName(name); err != nil {
		fail(err)
	}

	c, err := client.New(instance.SocketPath(name))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: cannot connect to daemon for instance %q: %v\n", name, err)
		os.Exit(1)
	}
	defer func() { _ = c.Close() }()

	if args[0] == "watch" {
		cmdWatch(c, *jsonFlag)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch args[0] {
	case "status":
		cmdStatus(ctx, c, *jsonFlag)
	case "conversations":
		cmdConversations(ctx, c, *jsonFlag)
	case "history":
		need(args, 2, "history <userId> [peerId]")
		cmdHistory(ctx, c, args[1], arg(args, 2), *jsonFlag)
	case "unread":
		need(args, 2, "unread <receiverId> [senderId]")
		cmdUnread(ctx, c, args[1], arg(args, 2), *jsonFlag)
	case "read":
		need(args, 3, "read <receiverId> <senderId>")
		cmdRead(ctx, c, args[1], args[2], *jsonFlag)
	case "send":
		need(args, 3, "send <receiverId> <text...>")
		cmdSend(ctx, c, args[1], strings.Join(args[2:], " "), *jsonFlag)
	case "delete":
		need(args, 2, "delete <messageId>")
		cmdDelete(ctx, c, args[1])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: relayctl [--instance <name>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  init [name]                   Write a default config.toml")
	fmt.Fprintln(os.Stderr, "  instances                     List instances and their daemons")
	fmt.Fprintln(os.Stderr, "  status                        Show daemon status")
	fmt.Fprintln(os.Stderr, "  conversations                 List the operator's conversations")
	fmt.Fprintln(os.Stderr, "  history <userId> [peerId]     Show a conversation (peer defaults to operator)")
	fmt.Fprintln(os.Stderr, "  unread <receiverId> [sender]  Count unread messages")
	fmt.Fprintln(os.Stderr, "  read <receiverId> <senderId>  Mark messages as read")
	fmt.Fprintln(os.Stderr, "  send <receiverId> <text...>   Send as the operator")
	fmt.Fprintln(os.Stderr, "  delete <messageId>            Delete a message")
	fmt.Fprintln(os.Stderr, "  watch                         Stream message events")
}

func need(args []string, n int, usage string) {
	if len(args) < n {
		fmt.Fprintln(os.Stderr, "usage: relayctl "+usage)
		os.Exit(1)
	}
}

func arg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

func cmdInit(args []string) {
	path := instance.ConfigPath()
	if _, err := os.Stat(path); err == nil {
		fail(fmt.Errorf("%s already exists", path))
	}
	cfg := config.Default()
	if len(args) > 0 {
		if err := instance.ValidateName(args[0]); err != nil {
			fail(err)
		}
		cfg.DefaultInstance = args[0]
	}
	if err := config.Save(path, cfg); err != nil {
		fail(err)
	}
	fmt.Printf("Wrote %s\n", path)
}

type instanceInfo struct {
	Name    string `json:"name"`
	Running bool   `json:"running"`
	PID     int    `json:"pid,omitempty"`
	Addr    string `json:"addr,omitempty"`
}

func cmdInstances(jsonOut bool) {
	names, err := instance.List()
	if err != nil {
		fail(err)
	}
	out := make([]instanceInfo, 0, len(names))
	for _, n := range names {
		info := instanceInfo{Name: n}
		if h, ok, err := lock.Read(instance.Dir(n)); err == nil && ok {
			info.Running, info.PID, info.Addr = true, h.PID, h.Addr
		}
		out = append(out, info)
	}
	if jsonOut {
		outputJSON(out)
		return
	}
	if len(out) == 0 {
		fmt.Println("No instances found.")
		return
	}
	for _, i := range out {
		state := "stopped"
		if i.Running {
			state = fmt.Sprintf("running (pid %d, %s)", i.PID, i.Addr)
		}
		fmt.Printf("%-20s %s\n", i.Name, state)
	}
}

func cmdStatus(ctx context.Context, c *client.Client, jsonOut bool) {
	resp, err := c.Status(ctx)
	if err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(resp)
		return
	}
	fmt.Printf("Instance:    %s\n", resp.Instance)
	fmt.Printf("Status:      %s\n", resp.State)
	if resp.Reason != "" {
		fmt.Printf("Reason:      %s\n", resp.Reason)
	}
	store := resp.StoreMode
	if resp.StoreFallback {
		store += " (fallback)"
	}
	fmt.Printf("Store:       %s\n", store)
	fmt.Printf("Operator:    %s\n", resp.OperatorID)
	fmt.Printf("Online:      %d identities, %d connections\n", resp.Identities, resp.Connections)
	fmt.Printf("Unread:      %d\n", resp.Unread)
	fmt.Printf("Uptime:      %s\n", (time.Duration(resp.UptimeMs) * time.Millisecond).Round(time.Second))
}

func cmdConversations(ctx context.Context, c *client.Client, jsonOut bool) {
	resp, err := c.Conversations(ctx, "")
	if err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(resp)
		return
	}
	if len(resp.Conversations) == 0 {
		fmt.Println("No conversations.")
		return
	}
	for _, s := range resp.Conversations {
		name := s.Peer.ID
		if s.Peer.Fullname != "" {
			name = fmt.Sprintf("%s (%s)", s.Peer.Fullname, s.Peer.ID)
		}
		fmt.Printf("%-30s %s  %s\n", name, s.LastMessage.Timestamp.Local().Format(time.DateTime), oneLine(s.LastMessage.Content))
	}
}

func cmdHistory(ctx context.Context, c *client.Client, user, peer string, jsonOut bool) {
	resp, err := c.History(ctx, user, peer)
	if err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(resp)
		return
	}
	for _, m := range resp.Messages {
		read := " "
		if m.Read {
			read = "✓"
		}
		fmt.Printf("%s %s %s -> %s: %s\n", m.Timestamp.Local().Format(time.DateTime), read, m.SenderID, m.ReceiverID, oneLine(m.Content))
	}
}

func cmdUnread(ctx context.Context, c *client.Client, receiver, sender string, jsonOut bool) {
	n, err := c.UnreadCount(ctx, receiver, sender)
	if err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(map[string]int{"count": n})
		return
	}
	fmt.Println(n)
}

func cmdRead(ctx context.Context, c *client.Client, receiver, sender string, jsonOut bool) {
	ok, err := c.MarkRead(ctx, receiver, sender)
	if err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(map[string]bool{"success": ok})
		return
	}
	fmt.Printf("Success: %v\n", ok)
}

func cmdSend(ctx context.Context, c *client.Client, receiver, text string, jsonOut bool) {
	resp, err := c.Send(ctx, &api.SendMessageRequest{ReceiverID: receiver, Content: text})
	if err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(resp)
		return
	}
	fmt.Printf("Sent %s\n", resp.Message.ID)
}

func cmdDelete(ctx context.Context, c *client.Client, id string) {
	if err := c.Delete(ctx, id); err != nil {
		fail(err)
	}
	fmt.Printf("Deleted %s\n", id)
}

func cmdWatch(c *client.Client, jsonOut bool) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	events, err := c.Watch(ctx)
	if err != nil {
		fail(err)
	}
	for evt := range events {
		if jsonOut {
			outputJSON(evt)
			continue
		}
		at := time.UnixMilli(evt.OccurredAtUnixMs).Format(time.TimeOnly)
		switch {
		case evt.Message != nil:
			fmt.Printf("%s %-18s %s -> %s: %s\n", at, evt.Kind, evt.Message.SenderID, evt.Message.ReceiverID, oneLine(evt.Message.Content))
		case evt.Read != nil:
			fmt.Printf("%s %-18s %s read %s\n", at, evt.Kind, evt.Read.ReceiverID, evt.Read.SenderID)
		case evt.Delivery != nil:
			fmt.Printf("%s %-18s %s to %d/%d handles\n", at, evt.Kind, evt.Delivery.MessageID, evt.Delivery.ReceiverHandles, evt.Delivery.SenderHandles)
		default:
			fmt.Printf("%s %s\n", at, evt.Kind)
		}
	}
}

func oneLine(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if r := []rune(s); len(r) > 80 {
		return string(r[:80]) + "..."
	}
	return s
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}
