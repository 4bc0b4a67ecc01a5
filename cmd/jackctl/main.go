package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/viper"

	"github.com/Honorable-Knights-of-the-Roundtable/jackwrapper/internal/config"
	"github.com/Honorable-Knights-of-the-Roundtable/jackwrapper/internal/recorder"
	"github.com/Honorable-Knights-of-the-Roundtable/jackwrapper/internal/utils"
	"github.com/Honorable-Knights-of-the-Roundtable/jackwrapper/pkg/jack"
)

const usage = `usage: jackctl [-configFilePath path] command [arguments]

commands:
  version                          print the version of the JACK library
  ports [pattern] [flags]          list ports, e.g. ports system "output|physical"
  connect source destination       connect two ports
  disconnect source destination    disconnect two ports
  record source file [duration]    record a port to a .WAV file until interrupted
`

func main() {
	configFilePath := flag.String("configFilePath", "config.yaml", "Set the file path to the config file.")
	flag.Usage = func() { fmt.Fprint(flag.CommandLine.Output(), usage) }
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	if err := config.LoadConfig(*configFilePath); err != nil {
		panic(err)
	}
	logFilePointer, level, err := utils.ConfigureDefaultLogger(
		viper.GetString("loglevel"),
		viper.GetString("logfile"),
		slog.HandlerOptions{},
	)
	if err != nil {
		slog.Error("error while configuring default logger", "err", err)
		panic(err)
	}
	if logFilePointer != nil {
		defer logFilePointer.Close()
	}

	cfg, err := config.Current()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	// --------------------------------------------------------------------------------

	s, err := jack.Load(cfg.LibraryPaths, jack.WithLogger(slog.Default()))
	if err != nil {
		slog.Error("could not load the JACK library", "err", err)
		os.Exit(1)
	}
	s.SetLoggingLevel(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, s, cfg, flag.Args(), os.Stdout)
	stop()
	if closeErr := s.Close(); closeErr != nil {
		slog.Warn("error while closing server", "err", closeErr)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "jackctl:", err)
		os.Exit(1)
	}
}

var errUsage = errors.New("wrong arguments, see jackctl -h")

func run(ctx context.Context, s *jack.Server, cfg config.Config, args []string, out io.Writer) error {
	command, args := args[0], args[1:]
	if command == "version" {
		fmt.Fprintln(out, s.Version())
		return nil
	}

	c, err := openClient(s, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if code := s.ClientClose(c); code != 0 {
			slog.Warn("could not close client", "code", code)
		}
	}()

	switch command {
	case "ports":
		return listPorts(s, c, args, out)
	case "connect", "disconnect":
		if len(args) != 2 {
			return errUsage
		}
		connect := s.Connect
		if command == "disconnect" {
			connect = s.Disconnect
		}
		if code := connect(c, args[0], args[1]); code != 0 {
			return fmt.Errorf("%s %s %s: code %d", command, args[0], args[1], code)
		}
		return nil
	case "record":
		return record(ctx, s, c, cfg, args, out)
	default:
		return fmt.Errorf("unknown command %q: %w", command, errUsage)
	}
}

func openClient(s *jack.Server, cfg config.Config) (*jack.ClientHandle, error) {
	c, status := s.ClientOpen(cfg.ClientName, cfg.Options, cfg.ServerName)
	if c == nil {
		return nil, fmt.Errorf("could not open client %q: %s", cfg.ClientName, status)
	}
	if status.HasNameNotUnique() {
		slog.Info("client name taken, using another", "requested", cfg.ClientName, "name", c.Name())
	}
	return c, nil
}

func listPorts(s *jack.Server, c *jack.ClientHandle, args []string, out io.Writer) error {
	if len(args) > 2 {
		return errUsage
	}
	var pattern string
	var flags jack.PortFlags
	if len(args) > 0 {
		pattern = args[0]
	}
	if len(args) > 1 {
		var err error
		if flags, err = jack.ParsePortFlags(args[1]); err != nil {
			return err
		}
	}

	names, err := s.GetPorts(c, pattern, "", flags)
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Fprintln(out, name)
	}
	return nil
}

func record(ctx context.Context, s *jack.Server, c *jack.ClientHandle, cfg config.Config, args []string, out io.Writer) error {
	if len(args) < 2 || len(args) > 3 {
		return errUsage
	}
	if len(args) == 3 {
		d, err := time.ParseDuration(args[2])
		if err != nil {
			return err
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	r, err := recorder.New(s, c, recorder.Config{
		Path:       args[1],
		Source:     args[0],
		SampleRate: cfg.RecordSampleRate,
		BitDepth:   cfg.RecordBitDepth,
		Queue:      cfg.RecordQueue,
		Buffers:    cfg.PoolBuffers,
	})
	if err != nil {
		return err
	}
	if err := r.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	stats, err := r.Stop()
	fmt.Fprintf(out, "recorded %d frames to %s, %d cycles dropped, %d failed\n",
		stats.Frames, args[1], stats.Dropped, stats.Failed)
	return err
}
