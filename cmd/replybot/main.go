package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/yahayao/replybot/internal/bot"
	"github.com/yahayao/replybot/internal/logging"
)

func main() {
	confPath := flag.String("conf", "conf/config.json", "path to the bot config file")
	verbosity := flag.Int("v", 0, "log verbosity (0=info, 1=debug, 2=trace)")
	flag.Parse()

	logging.Setup(*verbosity)

	cfg, err := bot.LoadConfig(*confPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	b, err := bot.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("init bot")
	}

	if err := b.Start(); err != nil {
		log.Fatal().Err(err).Msg("start bot")
	}
	defer b.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Msg("running, press Ctrl+C to stop")
	<-ctx.Done()
}
