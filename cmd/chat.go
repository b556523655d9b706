package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"copilot/internal/model"
	"copilot/internal/pkg/logger"
	"copilot/internal/server"
	"copilot/internal/service"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the copilot in the terminal",
	Long: `Start an interactive session. Commands:
  /new            start a new conversation
  /list           list saved conversations
  /open <id>      switch to a saved conversation
  /retry          resend the last message after a failure
  /quit           exit`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)

	flags := chatCmd.Flags()
	flags.StringP("query", "q", "", "send a single message and exit")
	flags.StringP("location", "l", "", "current page hint, e.g. /d/node-exporter")
	flags.String("storage", "local", "conversation storage (local/memory/redis/mongo/oss)")
	addMCPFlags(chatCmd)

	_ = viper.BindPFlag("copilot.location_hint", flags.Lookup("location"))
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if cmd.Flags().Changed("storage") {
		cfg.Storage.Type, _ = cmd.Flags().GetString("storage")
	}
	applyMCPFlags(cmd, &cfg.Copilot.MCP)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	// 日志写到 stderr，避免与对话输出混在一起
	if cfg.Log.Output == "" || cfg.Log.Output == "stdout" {
		logCfg := cfg.Log
		logCfg.Output = "stderr"
		if err := logger.Init(&logCfg); err != nil {
			return fmt.Errorf("failed to init logger: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc, deps, err := server.NewCopilotService(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer deps.Close(ctx)

	enabled, err := svc.Enabled(ctx)
	if err != nil {
		return err
	}
	if !enabled {
		return errors.New("copilot is disabled: set ai.api_key or COPILOT_AI_API_KEY")
	}

	out := cmd.OutOrStdout()

	if query, _ := cmd.Flags().GetString("query"); query != "" {
		return runTurn(ctx, out, svc, func() error { return svc.Submit(ctx, query) })
	}

	printHistory(out, svc.Snapshot())
	fmt.Fprintln(out, "Type a message, /new, /list, /open <id>, /retry or /quit.")

	scanner := bufio.NewScanner(cmd.InOrStdin())
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		switch fields[0] {
		case "/quit", "/exit":
			return nil
		case "/new":
			svc.ResetConversation()
			fmt.Fprintln(out, "Started a new conversation.")
		case "/list":
			printConversations(out, svc.Conversations(ctx))
		case "/open":
			if len(fields) < 2 {
				fmt.Fprintln(out, "usage: /open <id>")
				continue
			}
			if err := svc.OpenConversation(ctx, fields[1]); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				continue
			}
			printHistory(out, svc.Snapshot())
		case "/retry":
			if err := runTurn(ctx, out, svc, func() error { return svc.SubmitRetry(ctx) }); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
		default:
			if err := runTurn(ctx, out, svc, func() error { return svc.Submit(ctx, line) }); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
		}
	}
}

// runTurn 发起一轮对话并把快照增量打印到终端，直到本轮结束
func runTurn(ctx context.Context, out io.Writer, svc *service.CopilotService, start func() error) error {
	ch, cancel := svc.Subscribe()
	defer cancel()
	// 丢弃订阅时的当前快照
	<-ch

	if err := start(); err != nil {
		return err
	}

	p := &turnPrinter{out: out, seen: map[string]bool{}}
	for {
		select {
		case snap, ok := <-ch:
			if !ok {
				return nil
			}
			p.print(snap)
			if !snap.IsStreaming {
				fmt.Fprintln(out)
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// turnPrinter 只打印新增的内容与工具状态变化
type turnPrinter struct {
	out       io.Writer
	assistant string
	printed   string
	seen      map[string]bool
}

func (p *turnPrinter) print(snap model.Snapshot) {
	for _, tc := range snap.ToolCalls {
		key := tc.ID
		if !tc.Running {
			key += ":done"
		}
		if p.seen[key] {
			continue
		}
		p.seen[key] = true
		switch {
		case tc.Running:
			fmt.Fprintf(p.out, "\n  [tool] %s %s\n", tc.Name, tc.Arguments)
		case tc.Error != "":
			fmt.Fprintf(p.out, "  [tool] %s failed: %s\n", tc.Name, tc.Error)
		default:
			fmt.Fprintf(p.out, "  [tool] %s done (%dms)\n", tc.Name, durationMs(tc))
		}
	}

	var last model.Message
	for i := len(snap.Messages) - 1; i >= 0; i-- {
		if snap.Messages[i].Role == model.RoleAssistant {
			last = snap.Messages[i]
			break
		}
	}
	if last.ID != p.assistant {
		p.assistant = last.ID
		p.printed = ""
	}
	if strings.HasPrefix(last.Content, p.printed) {
		fmt.Fprint(p.out, last.Content[len(p.printed):])
	} else {
		// 内容被替换（新一轮或最终错误信息）时整段重打
		fmt.Fprint(p.out, "\n"+last.Content)
	}
	p.printed = last.Content
}

func durationMs(tc model.ToolCallState) int64 {
	if tc.DurationMs == nil {
		return 0
	}
	return *tc.DurationMs
}

func printHistory(out io.Writer, snap model.Snapshot) {
	for _, m := range snap.Messages {
		switch m.Role {
		case model.RoleUser:
			fmt.Fprintf(out, "> %s\n", m.Content)
		case model.RoleAssistant:
			if m.Content != "" {
				fmt.Fprintf(out, "%s\n\n", m.Content)
			}
		}
	}
}

func printConversations(out io.Writer, list []model.Conversation) {
	if len(list) == 0 {
		fmt.Fprintln(out, "No saved conversations.")
		return
	}
	for _, c := range list {
		fmt.Fprintf(out, "%s  %s  %s\n", c.ID, c.UpdatedAt.Format("2006-01-02 15:04"), c.Title)
	}
}
