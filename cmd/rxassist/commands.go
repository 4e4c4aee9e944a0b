package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/rxassist/internal/api"
	"github.com/kalambet/rxassist/internal/attach"
	"github.com/kalambet/rxassist/internal/chat"
	"github.com/kalambet/rxassist/internal/config"
)

// --- chat ---

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive conversation with the store assistant",
	Long: `Start an interactive conversation with the store assistant.

In-conversation commands:
  /attach <path>   upload a JPEG, PNG, or PDF and stage it for the next message
  /remove <id>     discard a staged attachment
  /confirm         confirm a pending destructive action
  /cancel          cancel a pending destructive action
  /reset           clear the conversation (also deletes backend history)
  /status          show connection state and staged attachments
  /quit            exit`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		setupLogging(cfg)

		ctrl, store, err := buildController(cfg)
		if err != nil {
			return err
		}
		if store != nil {
			defer store.Close()
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return runChatLoop(ctx, ctrl)
	},
}

func runChatLoop(ctx context.Context, ctrl *chat.Controller) error {
	for _, turn := range ctrl.Turns() {
		renderTurn(turn)
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Fprint(os.Stdout, colorize(colorBold, "you> "))
		if !scanner.Scan() {
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if quit := runChatCommand(ctx, ctrl, line); quit {
				return nil
			}
			continue
		}

		sendAndRender(ctx, ctrl, line)
	}
}

func runChatCommand(ctx context.Context, ctrl *chat.Controller, line string) (quit bool) {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/quit", "/exit":
		return true
	case "/reset":
		ctrl.Reset()
		printSuccess("Conversation cleared")
		for _, turn := range ctrl.Turns() {
			renderTurn(turn)
		}
	case "/attach":
		if arg == "" {
			printError("usage: /attach <path>")
			return false
		}
		att, err := attachFile(ctx, ctrl, arg)
		if err != nil {
			printError("attach failed: %v", err)
			return false
		}
		printSuccess("Staged %s (%s)", att.Name, att.ID)
		if att.AnalysisSummary != "" {
			printStatus("analysis", "%s", att.AnalysisSummary)
		}
	case "/remove":
		if ctrl.RemoveAttachment(arg) {
			printSuccess("Removed attachment %s", arg)
		} else {
			printError("no staged attachment %s", arg)
		}
	case "/confirm":
		resolvePending(ctx, ctrl, true)
	case "/cancel":
		resolvePending(ctx, ctrl, false)
	case "/status":
		printStatus("connection", "%s", ctrl.ConnState())
		if id := ctrl.ConversationID(); id != "" {
			printStatus("conversation", "%s", id)
		}
		for _, att := range ctrl.StagedAttachments() {
			printStatus("staged", "%s (%s, %d bytes)", att.Name, att.ID, att.SizeBytes)
		}
	default:
		printError("unknown command %s", cmd)
	}
	return false
}

func sendAndRender(ctx context.Context, ctrl *chat.Controller, text string) {
	turn, err := ctrl.Send(ctx, text)
	if err != nil {
		if errors.Is(err, chat.ErrEmptyInput) {
			printError("nothing to send")
		} else {
			printWarning("send dropped: %v", err)
		}
		return
	}
	renderTurn(turn)
	renderPending(ctrl)
}

func resolvePending(ctx context.Context, ctrl *chat.Controller, confirm bool) {
	var (
		turn chat.Turn
		err  error
	)
	if confirm {
		turn, err = ctrl.Confirm(ctx)
	} else {
		turn, err = ctrl.Cancel(ctx)
	}
	if err != nil {
		printError("%v", err)
		return
	}
	renderTurn(turn)
}

func renderTurn(turn chat.Turn) {
	if turn.Author != chat.AuthorAgent {
		return
	}
	if turn.IsError {
		printWarning("%s", turn.Content)
	} else {
		printAgent("%s", turn.Content)
	}
	for _, s := range turn.Suggestions {
		fmt.Fprintf(os.Stdout, "    · %s\n", s)
	}
	for _, a := range turn.FollowUpActions {
		fmt.Fprintf(os.Stdout, "    [%s]\n", a.Label)
	}
}

func renderPending(ctrl *chat.Controller) {
	if req := ctrl.PendingConfirmation(); req != nil {
		printWarning("Awaiting confirmation: %s (/confirm or /cancel)", req.TargetDescription)
	}
	if ctrl.ConnState() == chat.ConnDegraded {
		printStatus("connection", "degraded")
	}
}

func attachFile(ctx context.Context, ctrl *chat.Controller, path string) (*attach.Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return ctrl.Attach(ctx, attach.File{
		Name:     filepath.Base(path),
		MIMEType: mime.TypeByExtension(filepath.Ext(path)),
		Data:     data,
	})
}

// --- send ---

var sendCmd = &cobra.Command{
	Use:   "send <message>",
	Short: "Send a single message and print the assistant's reply",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		setupLogging(cfg)

		ctrl, store, err := buildController(cfg)
		if err != nil {
			return err
		}
		if store != nil {
			defer store.Close()
		}

		file, _ := cmd.Flags().GetString("file")
		if file != "" {
			if _, err := attachFile(cmd.Context(), ctrl, file); err != nil {
				return err
			}
		}

		turn, err := ctrl.Send(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		renderTurn(turn)
		renderPending(ctrl)
		return nil
	},
}

// --- upload ---

var uploadCmd = &cobra.Command{
	Use:   "upload <path>",
	Short: "Upload a document for analysis and print the result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		setupLogging(cfg)

		ctrl, store, err := buildController(cfg)
		if err != nil {
			return err
		}
		if store != nil {
			defer store.Close()
		}

		att, err := attachFile(cmd.Context(), ctrl, args[0])
		if err != nil {
			return err
		}

		printSuccess("Analyzed %s", att.Name)
		printStatus("url", "%s", att.RemoteURL)
		printStatus("summary", "%s", att.AnalysisSummary)
		if att.PageCount > 0 {
			printStatus("pages", "%d", att.PageCount)
		}
		for _, s := range att.AnalysisSuggestions {
			fmt.Fprintf(os.Stdout, "    · %s\n", s)
		}
		return nil
	},
}

// --- history ---

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List locally archived conversations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		setupLogging(cfg)

		ctrl, store, err := buildController(cfg)
		if err != nil {
			return err
		}
		_ = ctrl
		if store == nil {
			return fmt.Errorf("transcript archive unavailable")
		}
		defer store.Close()

		ids, err := store.Conversations()
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			fmt.Fprintln(os.Stdout, "no archived conversations")
			return nil
		}

		for _, id := range ids {
			turns, err := store.ListTurns(id)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "%s (%d turns)\n", colorize(colorBold, id), len(turns))
			for _, t := range turns {
				fmt.Fprintf(os.Stdout, "  %s %s: %s\n",
					t.CreatedAt.Local().Format("2006-01-02 15:04"), t.Author, firstLine(t.Content))
			}
		}
		return nil
	},
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " …"
	}
	return s
}

// --- mock-server ---

var mockServerCmd = &cobra.Command{
	Use:   "mock-server",
	Short: "Run a mock assistant backend for local development",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		setupLogging(cfg)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		addr := fmt.Sprintf("127.0.0.1:%d", cfg.Mock.Port)
		srv := &http.Server{
			Addr:    addr,
			Handler: api.NewMockHandler(api.MockDeps{Token: cfg.Mock.Token}),
		}

		errCh := make(chan error, 1)
		go func() {
			fmt.Fprintf(os.Stderr, "mock assistant backend listening on %s\n", addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case <-ctx.Done():
			fmt.Fprintln(os.Stderr, "shutting down...")
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

// --- mcp ---

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the assistant as MCP tools over stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		setupLogging(cfg)

		ctrl, store, err := buildController(cfg)
		if err != nil {
			return err
		}
		if store != nil {
			defer store.Close()
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return serveMCP(ctx, ctrl)
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	sendCmd.Flags().String("file", "", "attach a file to the message")
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(mockServerCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(configCmd)
}
