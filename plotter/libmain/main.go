// Package libmain holds the process scaffolding shared by plotter daemons:
// flags, logging setup, signal handling and the HTTP surface.
package libmain

import (
	"flag"
	"fmt"
	stdlog "log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"path"
	"runtime"
	"syscall"

	"github.com/kardianos/osext"

	"marine/gogroup"
	"marine/plotter/log"
)

var (
	// Background routines must exit before the process does.
	Background gogroup.GoGroup
	// KillGroup routines are abandoned on exit.
	KillGroup gogroup.GoGroup

	ProfilePort  string
	PrintVersion bool
)

func init() {
	flag.StringVar(&ProfilePort, "profile", "", "Profile and listen on this port e.g. localhost:6060")
	flag.BoolVar(&PrintVersion, "version", false, "Print version then exit")
}

// Main parses flags, sets up logging and runs realMain in the Background
// group. It returns once every Background routine has finished.
func Main(realMain func(gogroup.GoGroup)) {
	flag.Parse()
	log.RegisterTracers()

	exe, err := osext.Executable()
	if err != nil {
		stdlog.Fatalf("Cannot find executable: %v", err)
	}
	name := path.Base(exe)
	if PrintVersion {
		fmt.Printf("plotter %v version: %v build date %v\n", name, VersionNumber, VersionDate)
		os.Exit(0)
	}
	profile(ProfilePort)
	log.Init(name)

	Background = gogroup.New(nil, "background")
	Background.ErrCallback(reportBackgroundError)
	KillGroup = Background.Child("killgroup")
	go cancelOnSignal()

	Background.Run(func(g gogroup.GoGroup) error {
		realMain(g)
		return nil
	})
	// Keeps the group non-empty until it is canceled.
	Background.Run(func(g gogroup.GoGroup) error {
		<-g.Done()
		return nil
	})
	Background.Wait()
	Background.Cancel(nil)
}

func profile(addr string) {
	if addr == "" {
		runtime.SetBlockProfileRate(0)
		runtime.SetCPUProfileRate(0)
		return
	}
	runtime.SetBlockProfileRate(10)
	runtime.SetCPUProfileRate(1000)
	go func() { stdlog.Println(http.ListenAndServe(addr, nil)) }()
}

func reportBackgroundError(err error) {
	if pe, ok := err.(gogroup.PanicError); ok {
		log.Error("Panic in background goroutine: %v\n%v", pe.Msg, pe.Stack)
		return
	}
	log.Error("Error in background goroutine: %v", err)
}

// cancelOnSignal cancels Background on the first SIGINT or SIGTERM and
// exits on the second. In development the first one exits.
func cancelOnSignal() {
	sigch := make(chan os.Signal, 2)
	signal.Notify(sigch, os.Interrupt, syscall.SIGTERM)
	sig := <-sigch
	if EnvDevelopment() {
		log.Info("Got %v with %v=development, exiting", sig, EnvName)
		os.Exit(1)
	}
	log.Info("Got %v, shutting down", sig)
	Background.Cancel(nil)
	sig = <-sigch
	log.Info("Got second %v, exiting", sig)
	os.Exit(1)
}

func EnvDevelopment() bool {
	return os.Getenv(EnvName) == "development"
}
