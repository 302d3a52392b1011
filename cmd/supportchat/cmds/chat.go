package cmds

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/supportchat/pkg/conversation"
	"github.com/go-go-golems/supportchat/pkg/events"
	"github.com/go-go-golems/supportchat/pkg/exchange"
	"github.com/go-go-golems/supportchat/pkg/security"
	"github.com/go-go-golems/supportchat/pkg/ui"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

func NewChatCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the support assistant",
		Long: "Opens a chat session against the answering service. A full-screen UI is used when " +
			"stdin and stdout are terminals, a line-oriented prompt otherwise.",
		Args: cobra.NoArgs,
		RunE: runChat,
	}

	cmd.Flags().String("endpoint", exchange.DefaultEndpoint, "URL of the answering service chat endpoint")
	cmd.Flags().Duration("timeout", exchange.DefaultTimeout, "Deadline for each exchange (0 disables it)")
	cmd.Flags().Bool("plain", false, "Use the line-oriented prompt even on a terminal")
	cmd.Flags().Bool("print-events", false, "Dump exchange events as JSON to stderr (line mode only)")

	return cmd
}

func runChat(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	endpoint := viper.GetString("endpoint")
	if err := security.ValidateEndpoint(endpoint, security.LocalServicePolicy); err != nil {
		return errors.Wrap(err, "invalid --endpoint")
	}

	interactive := !viper.GetBool("plain") && ui.IsTerminal(os.Stdin) && ui.IsTerminal(os.Stdout)
	if interactive {
		logConfig := LogConfigFromViper()
		logConfig.Interactive = true
		if err := InitLogger(logConfig); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	router, err := events.NewEventRouter(events.WithLogger(events.NewWatermillLogger(log.Logger)))
	if err != nil {
		return err
	}
	defer func() {
		_ = router.Close()
	}()

	pm := events.NewPublisherManager()
	pm.SubscribePublisher(events.TopicExchange, router.Publisher)
	router.AddHandler("log-events", events.TopicExchange, events.LogEventsFunc(log.Logger))
	if viper.GetBool("print-events") {
		if interactive {
			log.Warn().Msg("--print-events is ignored in the full-screen UI, use --plain")
		} else {
			router.AddHandler("dump-events", events.TopicExchange, events.DumpRawEventsFunc(os.Stderr))
		}
	}

	client := exchange.NewClient(
		endpoint,
		exchange.WithTimeout(viper.GetDuration("timeout")),
		exchange.WithPublisherManager(pm),
	)
	store := conversation.NewStore(client)

	log.Debug().
		Str("endpoint", client.Endpoint()).
		Dur("timeout", client.Timeout()).
		Bool("interactive", interactive).
		Msg("starting chat")

	eg := errgroup.Group{}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	eg.Go(func() error {
		defer cancel()
		return router.Run(ctx)
	})

	eg.Go(func() error {
		defer cancel()
		<-router.Running()

		if interactive {
			return runTUI(ctx, store)
		}
		err := ui.RunLines(ctx, store, os.Stdin, cmd.OutOrStdout(), ui.WithWidth(ui.TerminalWidth(os.Stdout, 80)))
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	return eg.Wait()
}

func runTUI(ctx context.Context, store *conversation.Store) error {
	model := ui.NewModel(ctx, store, ui.WithRendererFactory(ui.NewMarkdownRenderer))
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}
