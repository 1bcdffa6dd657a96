package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"snowchat/internal/client"
	"snowchat/internal/config"
	"snowchat/internal/flist"
	"snowchat/internal/log"
	"snowchat/internal/proto"
	"snowchat/internal/state"
	"snowchat/internal/store/sqlite"
)

func newRunCommand() *cobra.Command {
	var (
		cfgPath   string
		account   string
		password  string
		character string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect to the chat server and talk from the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides := config.Config{Account: account, Password: password, Character: character}
			return runClient(cmd.Context(), cfgPath, overrides)
		},
	}
	cmd.Flags().StringVar(&cfgPath, "config", "", "path to config.yaml")
	cmd.Flags().StringVar(&account, "account", "", "account name (overrides config)")
	cmd.Flags().StringVar(&password, "password", "", "account password (overrides config)")
	cmd.Flags().StringVar(&character, "character", "", "character to log in as (overrides config)")
	return cmd
}

func runClient(parent context.Context, cfgPath string, overrides config.Config) error {
	bootLogger := log.New("info")
	cfg, resolved, err := config.Load(bootLogger, cfgPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", resolved, err)
	}
	cfg.UpdateFrom(overrides)

	logger := log.New(cfg.LogLevel)
	if cfg.Account == "" || cfg.Password == "" {
		return errors.New("account and password are required (config file or flags)")
	}

	tickets := flist.New(logger, cfg.Account, cfg.Password, flist.Options{
		BaseURL:   cfg.APIBaseURL,
		UserAgent: client.DefaultClientName + "/" + client.DefaultClientVersion,
	})

	character := cfg.Character
	if character == "" {
		// Fall back to the account's default character from the site.
		if _, err := tickets.Ticket(parent); err != nil {
			return fmt.Errorf("log in to site: %w", err)
		}
		character = tickets.DefaultCharacter()
		if character == "" {
			return errors.New("no character given and the account has no default")
		}
	}

	opts := client.Options{
		ServerURL:     cfg.ServerURL,
		Account:       cfg.Account,
		Character:     character,
		PingInterval:  cfg.PingInterval,
		ReconnectBase: cfg.ReconnectBase,
		ReconnectMax:  cfg.ReconnectMax,
		MaxAttempts:   cfg.ReconnectAttempts,
		QueueCapacity: cfg.QueueCapacity,
		HistoryLimit:  cfg.HistoryLimit,
		Tickets:       tickets,
		Site:          tickets,
	}
	if cfg.LogDBPath != "" {
		archive, err := sqlite.New(cfg.LogDBPath)
		if err != nil {
			return fmt.Errorf("open chat log: %w", err)
		}
		defer archive.Close()
		opts.Archive = archive
	}

	engine := client.New(logger, opts)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sub := engine.State().Subscribe(state.Scope{Kind: state.ScopeAll}, 256)
	defer sub.Close()
	go printEvents(engine.State(), sub)
	go readCommands(ctx, cancel, engine)

	fmt.Printf("Logging in as %s. Type /help for commands, Ctrl+C to quit.\n", character)
	err = engine.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// printEvents renders the delta stream to stdout.
func printEvents(st *state.Store, sub *state.Subscription) {
	for d := range sub.C {
		switch d.Kind {
		case state.DeltaConnState:
			fmt.Printf("* connection: %s\n", d.Conn)
		case state.DeltaChannelMessage:
			if d.Message != nil {
				fmt.Printf("[%s] %s: %s\n", d.Channel, d.Message.Sender, d.Message.Text)
			}
		case state.DeltaPrivateMessage:
			if d.Message != nil {
				fmt.Printf("(pm %s) %s: %s\n", d.Partner, d.Message.Sender, d.Message.Text)
			}
		case state.DeltaChannelJoined:
			fmt.Printf("* %s joined %s\n", d.Character, d.Channel)
		case state.DeltaChannelLeft:
			fmt.Printf("* %s left %s\n", d.Character, d.Channel)
		case state.DeltaNotice:
			if d.Message != nil {
				fmt.Printf("* notice: %s\n", d.Message.Text)
			}
		case state.DeltaInvite:
			if d.Invite != nil {
				fmt.Printf("* %s invites you to %s\n", d.Invite.Sender, d.Invite.Title)
			}
		case state.DeltaResync:
			// The stream overflowed; a real UI would re-snapshot here.
			snap := st.Snapshot()
			fmt.Printf("* resync: %d channels, %d characters online\n", len(snap.Channels), len(snap.Characters))
		}
	}
}

// readCommands turns stdin lines into engine intents. Plain lines go to
// the most recently joined channel.
func readCommands(ctx context.Context, quit context.CancelFunc, engine *client.Client) {
	scanner := bufio.NewScanner(os.Stdin)
	current := ""
	pending := make(map[int]flist.FriendRequest)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var err error
		switch {
		case line == "/quit":
			quit()
			return
		case line == "/help":
			fmt.Println("/join <channel>, /leave <channel>, /msg <channel> <text>, /priv <character>|<text>, /status <status> [message], /channels, /bookmark <character>, /unbookmark <character>, /requests, /accept <id>, /deny <id>, /quit")
			continue
		case line == "/channels":
			err = engine.RequestChannelList()
		case strings.HasPrefix(line, "/bookmark "):
			err = engine.Bookmark(ctx, strings.TrimSpace(strings.TrimPrefix(line, "/bookmark ")))
		case strings.HasPrefix(line, "/unbookmark "):
			err = engine.Unbookmark(ctx, strings.TrimSpace(strings.TrimPrefix(line, "/unbookmark ")))
		case line == "/requests":
			var reqs []flist.FriendRequest
			reqs, err = engine.FriendRequests(ctx)
			for _, r := range reqs {
				pending[r.ID] = r
				fmt.Printf("* request %d: %s -> %s\n", r.ID, r.Source, r.Dest)
			}
		case strings.HasPrefix(line, "/accept "):
			id, convErr := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "/accept ")))
			if convErr != nil {
				fmt.Println("usage: /accept <id> (see /requests)")
				continue
			}
			req, ok := pending[id]
			if !ok {
				fmt.Println("unknown request id, run /requests first")
				continue
			}
			err = engine.AcceptFriendRequest(ctx, req)
		case strings.HasPrefix(line, "/deny "):
			id, convErr := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "/deny ")))
			if convErr != nil {
				fmt.Println("usage: /deny <id> (see /requests)")
				continue
			}
			err = engine.DenyFriendRequest(ctx, id)
		case strings.HasPrefix(line, "/join "):
			current = strings.TrimSpace(strings.TrimPrefix(line, "/join "))
			err = engine.JoinChannel(current)
		case strings.HasPrefix(line, "/leave "):
			err = engine.LeaveChannel(strings.TrimSpace(strings.TrimPrefix(line, "/leave ")))
		case strings.HasPrefix(line, "/msg "):
			rest := strings.TrimPrefix(line, "/msg ")
			channel, text, ok := strings.Cut(rest, " ")
			if !ok {
				fmt.Println("usage: /msg <channel> <text>")
				continue
			}
			err = engine.SendMessage(channel, text)
		case strings.HasPrefix(line, "/priv "):
			// Character names may contain spaces, so the separator is |.
			rest := strings.TrimPrefix(line, "/priv ")
			who, text, ok := strings.Cut(rest, "|")
			if !ok {
				fmt.Println("usage: /priv <character>|<text>")
				continue
			}
			err = engine.SendPrivate(strings.TrimSpace(who), strings.TrimSpace(text))
		case strings.HasPrefix(line, "/status "):
			rest := strings.TrimPrefix(line, "/status ")
			status, message, _ := strings.Cut(rest, " ")
			err = engine.SetStatus(proto.CharacterStatus(status), message)
		case strings.HasPrefix(line, "/"):
			fmt.Println("unknown command, try /help")
			continue
		default:
			if current == "" {
				fmt.Println("join a channel first: /join <channel>")
				continue
			}
			err = engine.SendMessage(current, line)
		}
		if err != nil {
			fmt.Printf("! %v\n", err)
		}
	}
}
