// Command peer joins a room on a signaling server and negotiates a peer
// connection from the terminal. Useful as a call testbed: run it twice
// with the same room id and the two processes connect to each other.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/huddle-p2p/huddle/internal/adapters/rtc"
	"github.com/huddle-p2p/huddle/internal/client"
	"github.com/huddle-p2p/huddle/internal/domain"
	"github.com/huddle-p2p/huddle/internal/negotiate"
)

var (
	serverURL      string
	roomID         string
	peerID         string
	displayName    string
	pollInterval   time.Duration
	connectTimeout time.Duration
	responderWait  time.Duration
	verbose        bool
)

var rootCmd = &cobra.Command{
	Use:   "peer",
	Short: "Join a Huddle room and negotiate a peer connection",
	RunE:  run,
}

func init() {
	rootCmd.Flags().StringVarP(&serverURL, "server", "s", "http://localhost:8080", "signaling server base URL")
	rootCmd.Flags().StringVarP(&roomID, "room", "r", "", "room identifier to join")
	rootCmd.Flags().StringVar(&peerID, "peer-id", "", "peer identifier (random when empty)")
	rootCmd.Flags().StringVarP(&displayName, "name", "n", "", "display name")
	rootCmd.Flags().DurationVar(&pollInterval, "poll-interval", 500*time.Millisecond, "mailbox drain interval")
	rootCmd.Flags().DurationVar(&connectTimeout, "connect-timeout", 10*time.Second, "bounded wait for negotiation progress")
	rootCmd.Flags().DurationVar(&responderWait, "responder-wait", 30*time.Second, "initiator's bound on a responder appearing")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	_ = rootCmd.MarkFlagRequired("room")
}

func run(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if peerID == "" {
		peerID = uuid.NewString()
	}

	c := client.New(serverURL)

	iceServers, err := c.ICEServers(ctx)
	if err != nil {
		return err
	}

	// The event feed nudges the session to poll as soon as the directory
	// changes; polling alone would still get there.
	var notify chan struct{}
	if events, err := c.WatchRoom(ctx, domain.RoomID(roomID)); err != nil {
		log.Warn().Err(err).Msg("event feed unavailable, falling back to polling only")
	} else {
		notify = make(chan struct{}, 1)
		go func() {
			for ev := range events {
				log.Info().Str("event", ev.Type).Msg("room event")
				select {
				case notify <- struct{}{}:
				default:
				}
			}
		}()
	}

	session, err := negotiate.New(negotiate.Config{
		RoomID:         domain.RoomID(roomID),
		PeerID:         domain.PeerID(peerID),
		DisplayName:    displayName,
		Signaler:       c,
		NewTransport:   rtc.NewFactory(iceServers),
		PollInterval:   pollInterval,
		ConnectTimeout: connectTimeout,
		ResponderWait:  responderWait,
		Notify:         notify,
	})
	if err != nil {
		return err
	}

	go func() {
		<-session.Connected()
		log.Info().Str("room", roomID).Str("strategy", session.Strategy().String()).Msg("connected")
	}()

	log.Info().Str("server", serverURL).Str("room", roomID).Str("peer", peerID).Msg("joining")
	err = session.Run(ctx)
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	cobra.OnInitialize(func() {
		if verbose {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		}
	})

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("peer failed")
		os.Exit(1)
	}
}
