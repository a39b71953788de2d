package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	twitch "github.com/gempir/go-twitch-irc/v4"

	"github.com/onnwee/clipqueue/command"
	"github.com/onnwee/clipqueue/engine"
	"github.com/onnwee/clipqueue/telemetry"
)

// Sink receives what chat produces. *engine.Engine implements it.
type Sink interface {
	Submit(ctx context.Context, rawURL, sender string) (engine.Outcome, error)
	Execute(ctx context.Context, cmd command.Command, who command.Identity) error
}

// Listener reads one channel's chat and feeds submissions and commands to a Sink.
type Listener struct {
	Channel    string
	Username   string
	OAuthToken string
	// Prefix marks command messages (default "!cq").
	Prefix string
	Sink   Sink
	Logger *slog.Logger
}

func (l *Listener) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.Default().With(slog.String("component", "chat"))
	}
	return l.Logger
}

func (l *Listener) prefix() string {
	if l.Prefix == "" {
		return command.DefaultPrefix
	}
	return l.Prefix
}

// Run joins the channel and handles messages until ctx is done.
func (l *Listener) Run(ctx context.Context) error {
	if l.Channel == "" {
		return errors.New("chat: channel not set")
	}
	log := l.logger()
	var client *twitch.Client
	if l.Username != "" && l.OAuthToken != "" {
		token := l.OAuthToken
		if !strings.HasPrefix(token, "oauth:") {
			token = "oauth:" + token
		}
		client = twitch.NewClient(l.Username, token)
	} else {
		log.Info("twitch bot credentials not set; joining chat anonymously")
		client = twitch.NewAnonymousClient()
	}

	client.OnConnect(func() {
		log.Info("connected to twitch chat", slog.String("channel", l.Channel))
	})
	client.OnPrivateMessage(func(msg twitch.PrivateMessage) {
		l.handle(ctx, msg)
	})

	// Handle context cancellation by closing the client
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = client.Disconnect()
		case <-done:
		}
	}()
	defer close(done)

	client.Join(strings.ToLower(strings.TrimPrefix(l.Channel, "#")))
	err := client.Connect()
	if ctx.Err() != nil || errors.Is(err, twitch.ErrClientDisconnected) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("twitch chat: %w", err)
	}
	return nil
}

// handle dispatches one chat message.
func (l *Listener) handle(ctx context.Context, msg twitch.PrivateMessage) {
	telemetry.RecordChatMessage()
	who := identity(msg.User)
	log := l.logger()

	if fields := strings.Fields(msg.Message); len(fields) > 0 && strings.EqualFold(fields[0], l.prefix()) {
		cmd, ok := command.Parse(msg.Message, l.prefix())
		if !ok {
			return
		}
		if err := l.Sink.Execute(ctx, cmd, who); err != nil {
			log.Debug("chat command rejected", slog.String("command", cmd.String()), slog.String("by", who.Name), slog.Any("err", err))
		}
		return
	}
	for _, u := range ExtractURLs(msg.Message) {
		out, err := l.Sink.Submit(ctx, u, who.Name)
		if err != nil {
			log.Warn("submission failed", slog.String("url", u), slog.Any("err", err))
			return
		}
		if out != engine.Unresolved {
			log.Debug("chat submission", slog.String("url", u), slog.String("by", who.Name), slog.String("outcome", string(out)))
		}
	}
}

func identity(u twitch.User) command.Identity {
	name := u.Name
	if name == "" {
		name = u.DisplayName
	}
	return command.Identity{
		Name:        name,
		Moderator:   u.Badges["moderator"] > 0,
		Broadcaster: u.Badges["broadcaster"] > 0,
	}
}
