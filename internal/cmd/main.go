package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rebutly/podium/internal/debate"
	"github.com/rebutly/podium/internal/judge"
	"github.com/rebutly/podium/internal/media"
	"github.com/rebutly/podium/internal/rooms"
	"github.com/rebutly/podium/internal/signaling"
	"github.com/rebutly/podium/internal/speech"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("LOG_PRETTY") != "" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("podium exited with error")
	}
}

func run() error {
	cfg, err := loadConfig(getEnv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		return err
	}

	roomID, err := uuid.Parse(os.Getenv("PODIUM_ROOM_ID"))
	if err != nil {
		log.Fatal().Msg("PODIUM_ROOM_ID environment variable is required")
	}
	userID, err := uuid.Parse(os.Getenv("PODIUM_USER_ID"))
	if err != nil {
		log.Fatal().Msg("PODIUM_USER_ID environment variable is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := setupDatabase()
	if err != nil {
		return err
	}
	defer database.Close()

	natsCfg := signaling.DefaultNATSConfig()
	if cfg.Signaling.URL != "" {
		natsCfg.URL = cfg.Signaling.URL
	}
	channel, err := signaling.NewNATSChannel(natsCfg, roomID)
	if err != nil {
		return err
	}
	defer channel.Close()

	clock := clockwork.NewRealClock()
	repo := rooms.NewRepository(database)
	loader := rooms.NewApp(repo, channel, clock, roomID, userID)

	state, err := loader.Join(ctx)
	if err != nil {
		// Load failures are terminal: no retry, the user navigates away.
		return err
	}

	topic := "This House believes that social media does more harm than good"
	if state.Room.Topic != nil && *state.Room.Topic != "" {
		topic = *state.Room.Topic
	}

	var capturer speech.Capturer
	if cfg.Services.SpeechGatewayURL != "" {
		capturer = speech.NewWSCapturer(speech.DefaultWSConfig(cfg.Services.SpeechGatewayURL))
	}

	var tokens *media.TokenClient
	if cfg.Services.FunctionsURL != "" {
		tokens = media.NewTokenClient(cfg.Services.FunctionsURL, cfg.serviceTimeout())
	}

	evaluator := judge.NewClient(cfg.Services.FunctionsURL, cfg.serviceTimeout())

	controller := debate.NewController(
		debate.Config{
			RoomID:          roomID,
			LocalUserID:     userID,
			Topic:           topic,
			Format:          state.Room.FormatOrDefault(),
			EntryPhase:      state.EntryPhase,
			TransitionDelay: cfg.transitionDelay(),
			MicEnabled:      cfg.Debate.MicEnabled,
		},
		clock,
		channel,
		nil, // media transport is supplied by the embedding application
		tokens,
		capturer,
		evaluator,
		loader,
		loader,
		state.Participants,
	)

	go logNotices(ctx, controller.Notices())

	if err := controller.Run(ctx); err != nil {
		return err
	}

	// Settle the room record on the way out.
	switch controller.Snapshot().Phase {
	case debate.PhaseResults:
		if err := loader.Complete(context.WithoutCancel(ctx)); err != nil {
			log.Warn().Err(err).Msg("failed to mark room completed")
		}
	default:
		if err := loader.Leave(context.WithoutCancel(ctx)); err != nil {
			log.Warn().Err(err).Msg("failed to mark room abandoned")
		}
	}
	return nil
}

func logNotices(ctx context.Context, notices <-chan debate.Notice) {
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-notices:
			log.Info().Str("level", string(n.Level)).Msg(n.Message)
		}
	}
}
