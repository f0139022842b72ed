// Copyright (c) 2026 Substrate Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// wireframed serves HTTP/1.1 traffic with the wireframe engine. It
// exists mostly as a smoke harness for the wire-level packages; the
// handler echoes request metadata back to the caller.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/substratehq/wireframe/config"
	"github.com/substratehq/wireframe/message"
	"github.com/substratehq/wireframe/server"
)

type serverConfig struct {
	Addr      string `config:"addr"`
	Workers   int    `config:"workers"`
	Backlog   int    `config:"backlog"`
	ChunkSize int    `config:"chunk_size"`
}

func main() {
	if err := buildCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildCmd() *cobra.Command {
	var cfgPath string

	cmd := &cobra.Command{
		Use:          "wireframed",
		Short:        "Serve HTTP/1.1 traffic with the wireframe engine",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cfgPath)
			if err != nil {
				return err
			}

			log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

			srv := server.New(
				echoHandler(),
				server.Addr(cfg.Addr),
				server.Workers(cfg.Workers),
				server.Backlog(cfg.Backlog),
				server.ChunkSize(cfg.ChunkSize),
				server.LogHandler(log.Handler()),
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, os.Kill)
			defer stop()

			log.Info("listening", slog.String("addr", cfg.Addr))
			return srv.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&cfgPath, "config", "", "path to a YAML config file")
	return cmd
}

// loadConfig layers environment variables over the optional YAML file.
func loadConfig(path string) (serverConfig, error) {
	cfg := serverConfig{
		Addr:      ":8080",
		Workers:   64,
		Backlog:   128,
		ChunkSize: message.DefaultChunkSize,
	}

	var srcs []config.Source
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return cfg, err
		}
		defer f.Close()
		srcs = append(srcs, config.FromYaml(f))
	}
	srcs = append(srcs, config.FromEnv("WIREFRAME"))

	m, err := config.Read(srcs...)
	if err != nil {
		return cfg, err
	}
	return cfg, m.Unmarshal(&cfg)
}

func echoHandler() server.Handler {
	return server.HandlerFunc(func(req *message.Incoming, res *message.Outgoing) {
		// io.EOF is the normal outcome for a bodyless request
		body, err := req.ReadString()
		if err != nil && !errors.Is(err, io.EOF) {
			res.SetStatus(400)
			res.End()
			return
		}

		res.SetStatus(200)
		res.SetHeader("Content-Type", "text/plain")
		res.WriteString(fmt.Sprintf("%s %s\n", req.Method(), req.Target()))
		if len(body) > 0 {
			res.WriteString(body)
		}
		res.End()
	})
}
