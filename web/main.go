package main

import (
	"os"

	"github.com/urfave/cli"

	"github.com/df07/go-envmap-prefilter/pkg/log"
	"github.com/df07/go-envmap-prefilter/web/server"
)

var logger = log.New("web")

func main() {
	app := cli.NewApp()
	app.Name = "envmap-prefilter-web"
	app.Usage = "serve the environment map prefilter over HTTP"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.IntFlag{
			Name:  "port",
			Value: 8080,
			Usage: "port to serve on",
		},
		cli.StringFlag{
			Name:  "sources",
			Value: "sources",
			Usage: "directory with panoramas and cube face directories",
		},
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
	}
	app.Action = func(ctx *cli.Context) error {
		if ctx.Bool("v") {
			log.SetLevel(log.Info)
		}

		port := ctx.Int("port")
		webServer := server.NewServer(port, ctx.String("sources"))

		logger.Noticef("Environment Map Prefilter Web Server")
		logger.Noticef("Serving sources from %s", ctx.String("sources"))
		return webServer.Start()
	}

	if err := app.Run(os.Args); err != nil {
		logger.Errorf("Error starting server: %v", err)
		os.Exit(1)
	}
}
