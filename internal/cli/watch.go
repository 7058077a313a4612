package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tOgg1/discuss/internal/events"
	"github.com/tOgg1/discuss/internal/htmltext"
	"github.com/tOgg1/discuss/internal/logging"
	"github.com/tOgg1/discuss/internal/models"
)

const watchSubscriptionID = "cli-watch"

func newWatchCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow channels live",
		Long: "Connect to the notification feed and print chat events until interrupted.\n" +
			"With --json, each event is written as one JSON object per line.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			channelArg, _ := cmd.Flags().GetString("channel")
			notify, _ := cmd.Flags().GetBool("notify")

			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sessOpts := sessionOptions{withFeed: true}
			if notify {
				sessOpts.notifier = &bellNotifier{out: cmd.ErrOrStderr()}
			}
			s, err := openSession(ctx, cfg, cmd.ErrOrStderr(), sessOpts)
			if err != nil {
				return err
			}
			defer s.Close()

			filter := events.Filter{}
			if channelArg != "" {
				ch, err := resolveChannel(s.manager.Channels(), mailboxAlias(channelArg))
				if err != nil {
					return err
				}
				filter.ChannelID = ch.ID
			}

			printer := &eventPrinter{out: cmd.OutOrStdout(), json: opts.json, now: time.Now}
			if err := s.manager.Events().Subscribe(watchSubscriptionID, filter, printer.handle); err != nil {
				return Exitf(ExitCodeFailure, "subscribe: %v", err)
			}
			defer func() { _ = s.manager.Events().Unsubscribe(watchSubscriptionID) }()

			ctx = logging.WithContext(ctx, s.logger.With().Str("component", "watch").Logger())
			logger := logging.FromContext(ctx)
			logger.Info().Str("url", cfg.BusURL()).Str("user", s.user.Name).Msg("following notification feed")

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return s.feed.Run(gctx) })
			g.Go(func() error { return s.manager.Run(gctx, s.feed.Batches()) })
			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return Exitf(ExitCodeFailure, "%v", err)
			}
			return printer.err()
		},
	}
	cmd.Flags().String("channel", "", "only show events of this channel")
	cmd.Flags().Bool("notify", false, "ring the terminal bell on notifications")
	return cmd
}

// eventPrinter writes bus events as they are published. Handlers may run
// on several goroutines.
type eventPrinter struct {
	out  io.Writer
	json bool
	now  func() time.Time

	mu       sync.Mutex
	writeErr error
}

func (p *eventPrinter) handle(ev *models.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writeErr != nil {
		return
	}
	if p.json {
		p.writeErr = writeJSONLine(p.out, newEventView(ev))
		return
	}
	line := formatEvent(ev, p.now())
	if line == "" {
		return
	}
	_, p.writeErr = fmt.Fprintln(p.out, line)
}

func (p *eventPrinter) err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writeErr != nil {
		return Exitf(ExitCodeFailure, "write event: %v", p.writeErr)
	}
	return nil
}

// bellNotifier rings the terminal bell and prints the notification.
type bellNotifier struct {
	mu  sync.Mutex
	out io.Writer
}

func (n *bellNotifier) Notify(title, content string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintf(n.out, "\a%s %s\n", noticeStyle.Render(htmltext.StripHTML(title)), htmltext.Inline(content))
}
