// chatprobe joins a running chat server over websocket for manual testing.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
	"github.com/zhouzirui/z-chat/backend/internal/service/bot"
)

func main() {
	// Load .env file so PORT matches the local server
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

type probeOptions struct {
	url     string
	name    string
	timeout time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &probeOptions{}

	root := &cobra.Command{
		Use:          "chatprobe",
		Short:        "Join the chat websocket, send messages and print server events",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.url, "url", defaultURL(), "websocket endpoint")
	root.PersistentFlags().StringVar(&opts.name, "name", "probe", "display name used for sent messages")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 45*time.Second, "how long to wait for events")

	root.AddCommand(newSendCmd(opts), newWatchCmd(opts))
	return root
}

func newSendCmd(opts *probeOptions) *cobra.Command {
	var replyTo, replyBody string

	cmd := &cobra.Command{
		Use:   "send <message>",
		Short: "Send one message and wait for the bot's reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			conn, err := dial(ctx, opts.url)
			if err != nil {
				return err
			}
			defer conn.Close()

			payload := chat.MessagePayload{Name: opts.name, Message: strings.Join(args, " ")}
			if replyTo != "" || replyBody != "" {
				payload.ReplyTo = &chat.ReplyTo{Username: replyTo, Message: replyBody}
			}
			if err := writeEvent(conn, chat.EventMessage, payload); err != nil {
				return err
			}

			return readEvents(ctx, conn, cmd.OutOrStdout(), func(env chat.Envelope) bool {
				switch env.Event {
				case chat.EventChatError:
					return true
				case chat.EventChatMessage:
					var msg chat.ChatMessage
					return json.Unmarshal(env.Data, &msg) == nil && msg.Name == bot.Name
				}
				return false
			})
		},
	}
	cmd.Flags().StringVar(&replyTo, "reply-to", "", "username of the message being replied to")
	cmd.Flags().StringVar(&replyBody, "reply-body", "", "text of the message being replied to")
	return cmd
}

func newWatchCmd(opts *probeOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print every event until the timeout or Ctrl-C",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			conn, err := dial(ctx, opts.url)
			if err != nil {
				return err
			}
			defer conn.Close()

			err = readEvents(ctx, conn, cmd.OutOrStdout(), func(chat.Envelope) bool { return false })
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}

func defaultURL() string {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "4000"
	}
	if strings.HasPrefix(port, ":") {
		return "ws://localhost" + port + "/ws"
	}
	if strings.Contains(port, ":") {
		return "ws://" + port + "/ws"
	}
	return "ws://localhost:" + port + "/ws"
}

func dial(ctx context.Context, url string) (*websocket.Conn, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return conn, nil
}

func writeEvent(conn *websocket.Conn, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return conn.WriteJSON(chat.Envelope{Event: event, Data: data})
}

// readEvents prints events until done reports true, the context ends or the connection fails.
func readEvents(ctx context.Context, conn *websocket.Conn, out io.Writer, done func(chat.Envelope) bool) error {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		var env chat.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read event: %w", err)
		}

		fmt.Fprintf(out, "%s  %-13s %s\n", time.Now().Format("15:04:05.000"), env.Event, env.Data)
		if done(env) {
			return nil
		}
	}
}
