package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/chatterbox/internal/client/cli"
	"github.com/dmitrijs2005/chatterbox/internal/client/config"
	"github.com/dmitrijs2005/chatterbox/internal/flagx"
)

func main() {

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfig()
	app, err := cli.NewApp(cfg)

	if err != nil {
		log.Fatalf("%v", err)
		return
	}

	args := flagx.StripArgs(os.Args[1:], []string{"-a", "-token", "-t", "-c", "-config", "--config"})
	if err := app.Run(ctx, args); err != nil {
		log.Fatalf("%v", err)
	}

}
