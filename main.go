package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"dio.wtf/nxcontrol/joycontrol"
	"dio.wtf/nxcontrol/joycontrol/amiibo"
	"dio.wtf/nxcontrol/joycontrol/blob"
	"dio.wtf/nxcontrol/joycontrol/cli"
	"dio.wtf/nxcontrol/joycontrol/config"
	"dio.wtf/nxcontrol/joycontrol/log"
	"dio.wtf/nxcontrol/joycontrol/mcu"
	"dio.wtf/nxcontrol/joycontrol/memory"
	"github.com/alecthomas/kong"
	kongtoml "github.com/alecthomas/kong-toml"
	kongyaml "github.com/alecthomas/kong-yaml"
)

func main() {
	jsonPaths, yamlPaths, tomlPaths := config.CandidatePaths(config.FindUserConfig(os.Args[1:]))

	var cfg config.CLI
	kctx := kong.Parse(&cfg,
		kong.Name("nxcontrol"),
		kong.Description("Emulates a Nintendo Switch controller over Bluetooth"),
		kong.UsageOnError(),
		kong.Configuration(kong.JSON, jsonPaths...),
		kong.Configuration(kongyaml.Loader, yamlPaths...),
		kong.Configuration(kongtoml.Loader, tomlPaths...),
	)

	log.SetLevel(cfg.Log.Level)
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if nil != err {
			fmt.Fprintln(os.Stderr, "failed to open log file:", err)
			os.Exit(2)
		}
		defer f.Close()
		log.SetOutput(f)
	}

	kctx.FatalIfErrorf(run(&cfg))
}

func run(cfg *config.CLI) error {
	c, err := cfg.ControllerType()
	if nil != err {
		return err
	}
	store := blob.NewFileStore()

	var spiFlash *memory.FlashMemory
	if cfg.SpiFlash != "" {
		spiFlash, err = memory.Load(store, cfg.SpiFlash)
	} else {
		spiFlash, err = memory.New(nil)
	}
	if nil != err {
		return err
	}

	mcuOptions := []mcu.Option{
		mcu.WithWriteHook(func(tag *amiibo.Tag) {
			if err := tag.Save(store); nil != err {
				log.Error(err)
			}
		}),
	}
	if cfg.RemoveAfterWrite {
		mcuOptions = append(mcuOptions, mcu.WithRemoveAfterWrite())
	}
	protocol := joycontrol.NewProtocol(c, spiFlash, cfg.Reconnect, joycontrol.WithMcuOptions(mcuOptions...))

	var serverOptions []joycontrol.ServerOption
	if cfg.Reconnect {
		serverOptions = append(serverOptions, joycontrol.WithReconnect(cfg.Host))
	}
	server, err := joycontrol.NewServer(protocol, serverOptions...)
	if nil != err {
		return err
	}
	defer server.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.InfoF("Emulating %s", c)
	errCh := make(chan error, 1)
	go func() { errCh <- server.Run(ctx) }()

	if cfg.Nfc != "" {
		tag, err := amiibo.Load(store, cfg.Nfc)
		if nil != err {
			return err
		}
		go func() {
			if err := protocol.SetNfc(ctx, tag); nil != err && !errors.Is(err, context.Canceled) {
				log.Error(err)
			}
		}()
	}

	if cfg.Interactive {
		if err := cli.Run(ctx, cli.NewShell(protocol, store)); nil != err {
			log.Error(err)
		}
		stop()
	}

	if err := <-errCh; nil != err && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
