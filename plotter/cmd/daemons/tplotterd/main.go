// tplotterd serves the chart plotter: charts, the bootstrap page and the
// renderer websocket driven by the plotter loop.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/mitchellh/go-homedir"

	"marine/gogroup"
	"marine/plotter/charts"
	"marine/plotter/connection"
	"marine/plotter/core"
	"marine/plotter/libmain"
	"marine/plotter/log"
	"marine/plotter/settings"
	"marine/plotter/ws"
)

var (
	defaultHost   = "localhost"
	settingsFile  = ""
	redisDB       = 0
	redisHost     = ""
	redisPassword = ""
)

func init() {
	flag.StringVar(&defaultHost, "default-host", "localhost", "Host of relative \":port\" provider addresses")
	flag.StringVar(&settingsFile, "settings", "~/.plotter/settings.json", "File keeping the persisted settings")
	flag.IntVar(&redisDB, "redis-db", 0, "redis database to keep settings there")
	flag.StringVar(&redisHost, "redis-host", "", "redis host:port keeping the settings instead of the file")
	flag.StringVar(&redisPassword, "redis-password", "", "redis password to connect to host")
}

func persister() (settings.Persister, func()) {
	if redisHost != "" {
		pool := &redis.Pool{
			Dial: func() (redis.Conn, error) {
				return redis.Dial("tcp", redisHost, redis.DialDatabase(redisDB), redis.DialPassword(redisPassword))
			},
		}
		return settings.NewRedisPersister(pool), func() { pool.Close() }
	}
	file, err := homedir.Expand(settingsFile)
	if err != nil {
		log.Warn("settings file %v: %v", settingsFile, err)
		file = filepath.Base(settingsFile)
	}
	return settings.FilePersister{Path: file}, func() {}
}

func main() {
	libmain.Main(func(ctxt gogroup.GoGroup) {
		env, err := libmain.LoadEnv()
		if err != nil {
			log.Fatal("%v", err)
		}
		log.Info("starting plotter on port %v, charts in %v", env.Port, env.ChartsPath)

		catalog, err := charts.NewCatalog(env.ChartsPath)
		if err != nil {
			log.Fatal("chart catalog: %v", err)
		}
		defer catalog.Close()
		if err := catalog.Refresh(); err != nil {
			log.Warn("charts: %v", err)
		}
		if err := catalog.Watch(ctxt); err != nil {
			log.Warn("charts will not be reloaded: %v", err)
		}

		persist, closePersist := persister()
		defer closePersist()
		blob, err := persist.Load()
		if err != nil {
			log.Error("persisted settings ignored: %v", err)
			blob = nil
		}
		initial := libmain.LoadClientConfig(env.ClientConfigFile)
		s, sources, err := settings.Load(initial, blob)
		if err != nil {
			log.Error("settings: %v", err)
		}

		client := cleanhttp.DefaultPooledClient()
		hub := ws.NewHub(ctxt)
		plotter := core.New(core.Config{
			Store:        settings.NewStore(s, persist),
			Hub:          hub,
			Resolver:     &charts.Resolver{Local: catalog, Client: client, DefaultHost: defaultHost},
			ChartSources: sources,
			Connection:   connection.Options{DefaultHost: defaultHost, HTTPClient: client},
			HTTPClient:   client,
		})
		ctxt.Go(func(ctxt gogroup.GoGroup) error {
			return plotter.Run(ctxt)
		})

		site := libmain.Site{
			ClientConfigFile: env.ClientConfigFile,
			PublicPath:       env.PublicPath,
			Catalog:          catalog,
			Socket:           hub,
		}
		server := &http.Server{
			Addr:    fmt.Sprintf(":%d", env.Port),
			Handler: site.Router(),
		}
		libmain.KillGroup.Go(func(g gogroup.GoGroup) error {
			<-ctxt.Done()
			shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdown)
		})
		log.Info("Listening %v", env.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("service failed: %v", err)
		}
	})
}
