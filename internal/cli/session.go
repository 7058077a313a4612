package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/tOgg1/discuss/internal/bus"
	"github.com/tOgg1/discuss/internal/chat"
	"github.com/tOgg1/discuss/internal/config"
	"github.com/tOgg1/discuss/internal/logging"
	"github.com/tOgg1/discuss/internal/models"
	"github.com/tOgg1/discuss/internal/rpc"
)

// session is an authenticated connection with its chat state loaded.
type session struct {
	user    rpc.Session
	logger  zerolog.Logger
	manager *chat.Manager
	// feed is set when the session was opened with the push feed.
	feed *bus.Client
}

type sessionOptions struct {
	withFeed bool
	notifier chat.Notifier
}

// login authenticates against the configured server, prompting for the
// password when none is configured and stdin is a terminal.
func login(ctx context.Context, cfg *config.Config, prompt io.Writer) (*rpc.Client, rpc.Session, error) {
	if strings.TrimSpace(cfg.Server.Login) == "" {
		return nil, rpc.Session{}, Exitf(ExitCodeUsage, "server.login is not configured (set DISCUSS_SERVER_LOGIN)")
	}
	password := cfg.Server.Password
	if password == "" {
		var err error
		password, err = readPassword(os.Stdin, prompt, cfg.Server.Login)
		if err != nil {
			return nil, rpc.Session{}, err
		}
	}

	client, err := rpc.New(rpc.Options{
		BaseURL: cfg.Server.URL,
		Timeout: cfg.Server.Timeout,
	})
	if err != nil {
		return nil, rpc.Session{}, Exitf(ExitCodeFailure, "%v", err)
	}
	user, err := client.Authenticate(ctx, cfg.Server.Database, cfg.Server.Login, password)
	if err != nil {
		return nil, rpc.Session{}, Exitf(ExitCodeFailure, "%v", err)
	}
	return client, user, nil
}

func readPassword(in *os.File, prompt io.Writer, login string) (string, error) {
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		// Piped input: first line is the password.
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && line == "" {
			return "", Exitf(ExitCodeUsage, "no password configured (set DISCUSS_SERVER_PASSWORD)")
		}
		return strings.TrimRight(line, "\r\n"), nil
	}
	fmt.Fprintf(prompt, "Password for %s: ", login)
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(prompt)
	if err != nil {
		return "", Exitf(ExitCodeFailure, "read password: %v", err)
	}
	return string(raw), nil
}

func openSession(ctx context.Context, cfg *config.Config, prompt io.Writer, opts sessionOptions) (*session, error) {
	client, user, err := login(ctx, cfg, prompt)
	if err != nil {
		return nil, err
	}
	logger := logging.WithSession(user.Database, user.PartnerID)
	s := &session{user: user, logger: logger}

	loc, err := cfg.Chat.Location()
	if err != nil {
		return nil, Exitf(ExitCodeUsage, "chat.timezone: %v", err)
	}
	chatOpts := chat.Options{
		Location:        loc,
		PartnerID:       user.PartnerID,
		PageSize:        cfg.Chat.PageSize,
		ChatterPageSize: cfg.Chat.ChatterPageSize,
		PreviewMaxSize:  cfg.Chat.PreviewMaxSize,
		SeenThrottle:    cfg.Chat.SeenThrottle,
		Mobile:          cfg.Chat.Mobile,
		Notifier:        opts.notifier,
		Logger:          &logger,
	}
	if opts.withFeed {
		feed, err := bus.New(bus.Options{
			URL:               cfg.BusURL(),
			Jar:               client.CookieJar(),
			DialTimeout:       cfg.Bus.DialTimeout,
			ReconnectInterval: cfg.Bus.ReconnectInterval,
			Buffer:            cfg.Bus.Buffer,
		})
		if err != nil {
			return nil, Exitf(ExitCodeFailure, "%v", err)
		}
		s.feed = feed
		chatOpts.Presence = feed
	}

	s.manager = chat.New(client, chatOpts)
	if err := s.manager.Start(ctx); err != nil {
		return nil, Exitf(ExitCodeFailure, "%v", err)
	}
	return s, nil
}

func (s *session) Close() {
	s.manager.Close()
}

// resolveChannel finds a channel by id or by name, with or without a
// leading '#'. Names match case-insensitively.
func resolveChannel(channels []*models.Channel, ref string) (*models.Channel, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, Exitf(ExitCodeUsage, "no channel given and none selected (see discuss use)")
	}
	for _, ch := range channels {
		if string(ch.ID) == ref {
			return ch, nil
		}
	}
	name := strings.TrimPrefix(ref, "#")
	var found *models.Channel
	for _, ch := range channels {
		if !strings.EqualFold(ch.Name, name) {
			continue
		}
		if found != nil {
			return nil, Exitf(ExitCodeUsage, "channel name %q is ambiguous; use its id", name)
		}
		found = ch
	}
	if found == nil {
		return nil, Exitf(ExitCodeFailure, "%v: %s", chat.ErrChannelNotFound, ref)
	}
	return found, nil
}

// channelRef returns arg, or the channel selected on the configured server
// when arg is empty.
func channelRef(store *config.ContextStore, cfg *config.Config, arg string) (string, error) {
	if strings.TrimSpace(arg) != "" {
		return arg, nil
	}
	current, err := store.Load()
	if err != nil {
		return "", Exitf(ExitCodeFailure, "%v", err)
	}
	return current.ChannelFor(cfg), nil
}
