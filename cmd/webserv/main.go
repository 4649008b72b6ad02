package main

import (
	"flag"
	"log"

	"github.com/watt-labs/webserv/internal/config"
	"github.com/watt-labs/webserv/internal/reactor"
)

func main() {
	configPath := flag.String("config", "webserv.conf", "path to the server configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("webserv: failed to load config %s: %v", *configPath, err)
	}

	r, err := reactor.New(cfg)
	if err != nil {
		log.Fatalf("webserv: failed to start reactor: %v", err)
	}

	log.Printf("webserv: %s %s starting, %d virtual host(s)", cfg.Name, cfg.Version, len(cfg.Servers))
	if err := r.Run(); err != nil {
		log.Fatalf("webserv: event loop exited: %v", err)
	}
}
