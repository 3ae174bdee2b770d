package main

import (
	"bufio"
	"context"
	"encoding/base64"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/varkai/chatflow/client"
	"github.com/varkai/chatflow/history"
	"github.com/varkai/chatflow/interrupt"
	"github.com/varkai/chatflow/orchestrator"
	"github.com/varkai/chatflow/stream"
	"github.com/varkai/chatflow/types"
)

func runChat(args []string) {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	threadID := fs.String("thread", "", "Resume an existing thread")
	userName := fs.String("user", "", "Name recorded on your messages")
	fs.Parse(args)

	cfg := loadConfig(*configPath)
	logger := initLogger(cfg.Log)
	defer logger.Sync()

	store, err := history.New(cfg.History)
	if err != nil {
		logger.Fatal("failed to open history store", zap.Error(err))
	}
	defer store.Close()

	threads := client.NewThreads(client.Config{
		BaseURL: cfg.API.BaseURL,
		APIKey:  cfg.API.APIKey,
		TeamID:  cfg.API.TeamID,
		Timeout: cfg.API.RequestTimeout,
	}, logger)

	opener := orchestrator.NewStreamOpener(stream.NewClient(stream.Config{
		BaseURL:     cfg.API.BaseURL,
		APIKey:      cfg.API.APIKey,
		TeamID:      cfg.API.TeamID,
		OpenTimeout: cfg.API.StreamOpenTimeout,
	}, logger))

	if *userName == "" {
		*userName = cfg.Session.UserName
	}

	opts := []orchestrator.Option{
		orchestrator.WithLogger(logger),
		orchestrator.WithHistory(store),
		orchestrator.WithUserName(*userName),
		orchestrator.WithCancelNotice(cfg.Session.CancelNotice),
		orchestrator.WithDeltaHandler(printDelta),
	}
	if *threadID != "" {
		opts = append(opts, orchestrator.WithThreadID(*threadID))
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, orchestrator.WithMetrics(cfg.Metrics.Namespace, nil))
	}

	sess := orchestrator.NewSession(threads, opener, opts...)

	if *threadID != "" {
		if err := sess.Hydrate(context.Background()); err != nil {
			logger.Fatal("failed to hydrate thread", zap.String("thread_id", *threadID), zap.Error(err))
		}
		for _, msg := range sess.Transcript() {
			printDelta(msg)
		}
	}

	// Ctrl-C cancels the turn in flight; when idle it ends the program.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		for range sigCh {
			if sess.Streaming() {
				sess.Cancel()
				continue
			}
			fmt.Println()
			os.Exit(0)
		}
	}()

	fmt.Println("chatflow ready. Type a message, /image <path> <message>, or /quit to exit.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			break
		}

		var imageData string
		if rest, ok := strings.CutPrefix(line, "/image "); ok {
			path, text, found := strings.Cut(rest, " ")
			if !found {
				fmt.Fprintln(os.Stderr, "usage: /image <path> <message>")
				continue
			}
			raw, rerr := os.ReadFile(path)
			if rerr != nil {
				fmt.Fprintf(os.Stderr, "cannot read image: %v\n", rerr)
				continue
			}
			imageData = base64.StdEncoding.EncodeToString(raw)
			line = text
		}

		if err := sess.SendText(context.Background(), line, imageData); err != nil {
			fmt.Fprintf(os.Stderr, "turn failed: %v\n", err)
			continue
		}

		for {
			pending := sess.Pending()
			if pending == nil {
				break
			}
			if err := answerInterrupt(sess, pending, scanner); err != nil {
				fmt.Fprintf(os.Stderr, "resume failed: %v\n", err)
				break
			}
		}
	}
}

// answerInterrupt prompts for the decision the pending interrupt allows and
// resumes the run with it.
func answerInterrupt(sess *orchestrator.Session, pending *orchestrator.PendingInterrupt, scanner *bufio.Scanner) error {
	fmt.Printf("\n[%s] %s\n", pending.Kind, pending.Message.Content)

	switch pending.Kind {
	case interrupt.KindReply:
		reply := prompt(scanner, "reply")
		return sess.Resume(context.Background(), types.DecisionReplied, reply)

	case interrupt.KindApprovalGate:
		if promptYesNo(scanner, "approve?") {
			return sess.Resume(context.Background(), types.DecisionApproved, nil)
		}
		return sess.Resume(context.Background(), types.DecisionRejected, nil)

	case interrupt.KindToolReview:
		choice := prompt(scanner, "approve / reject / update")
		switch choice {
		case "approve":
			return sess.Resume(context.Background(), types.DecisionApproved, nil)
		case "reject":
			feedback := prompt(scanner, "feedback")
			return sess.Resume(context.Background(), types.DecisionRejected, feedback)
		case "update":
			args := prompt(scanner, "new arguments (JSON)")
			return sess.Resume(context.Background(), types.DecisionUpdate, args)
		default:
			return fmt.Errorf("unknown choice %q", choice)
		}

	case interrupt.KindOutputReview:
		if promptYesNo(scanner, "approve output?") {
			return sess.Resume(context.Background(), types.DecisionApproved, nil)
		}
		notes := prompt(scanner, "review notes")
		return sess.Resume(context.Background(), types.DecisionReview, notes)

	case interrupt.KindContextInput:
		input := prompt(scanner, "additional context")
		return sess.Resume(context.Background(), types.DecisionContinue, input)

	default:
		return fmt.Errorf("unhandled interrupt kind %v", pending.Kind)
	}
}

func prompt(scanner *bufio.Scanner, label string) string {
	fmt.Printf("%s> ", label)
	if !scanner.Scan() {
		return ""
	}
	return strings.TrimSpace(scanner.Text())
}

func promptYesNo(scanner *bufio.Scanner, label string) bool {
	answer := prompt(scanner, label+" [y/n]")
	return answer == "y" || answer == "yes"
}

func printDelta(msg types.ChatMessage) {
	name := msg.Name
	if name == "" {
		name = string(msg.Type)
	}
	if msg.ToolOutput != "" {
		fmt.Printf("%s [tool output]: %s\n", name, msg.ToolOutput)
		return
	}
	if msg.Content != "" {
		fmt.Printf("%s: %s\n", name, msg.Content)
	}
}

func runThreads(args []string) {
	fs := flag.NewFlagSet("threads", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	cfg := loadConfig(*configPath)

	store, err := history.New(cfg.History)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open history store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	ids, err := store.Threads(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list threads: %v\n", err)
		os.Exit(1)
	}
	if len(ids) == 0 {
		fmt.Println("No saved threads.")
		return
	}
	for _, id := range ids {
		fmt.Println(id)
	}
}
