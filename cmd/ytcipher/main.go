package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	_ "time/tzdata"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/famomatic/ytcipher/client"
	"github.com/famomatic/ytcipher/internal/cli"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := cli.ParseArgs(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	v, err := client.NewViper(opts.ConfigFile)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitError
	}
	cli.Apply(v, opts)
	cfg, err := client.DecodeConfig(v)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitError
	}
	logger, err := client.NewLogger(cfg.Log, stderr)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitError
	}
	cfg.Logger = logger

	c, err := client.New(cfg)
	if err != nil {
		logger.WithError(err).Error("init client")
		return exitError
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch {
	case opts.PlayerURLOnly:
		err = printPlayerURL(ctx, c, stdout)
	case opts.Solving():
		err = solve(ctx, c, opts, stdout)
	default:
		if opts.ConfigFile != "" && !opts.ListFormats && !opts.PrintJSON && !opts.SkipDownload {
			watchLogLevel(v, logger)
		}
		err = handleVideo(ctx, c, opts, stdout, stderr)
	}
	if err != nil {
		logger.WithError(err).Error("failed")
		return exitError
	}
	return exitOK
}

// watchLogLevel re-reads the log level when the config file changes. The
// console gate set up by NewLogger keeps its original level.
func watchLogLevel(v *viper.Viper, logger *logrus.Logger) {
	v.OnConfigChange(func(e fsnotify.Event) {
		level := client.ParseLevel(v.GetString("log.level"))
		if v.GetString("log.file") != "" {
			if fileLevel := client.ParseLevel(v.GetString("log.file_level")); fileLevel > level {
				level = fileLevel
			}
		}
		logger.SetLevel(level)
		logger.WithField("file", e.Name).Infof("log level now %s", level)
	})
	v.WatchConfig()
}

func printPlayerURL(ctx context.Context, c *client.Client, stdout io.Writer) error {
	playerURL, err := c.PlayerURL(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, playerURL)
	return nil
}

func solve(ctx context.Context, c *client.Client, opts cli.Options, stdout io.Writer) error {
	scriptURL := opts.PlayerURL
	if scriptURL == "" {
		var err error
		if scriptURL, err = c.PlayerURL(ctx); err != nil {
			return err
		}
	}
	if opts.SolveSig != "" {
		sig, err := c.DecipherSignature(ctx, scriptURL, opts.SolveSig)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "sig %s\n", sig)
	}
	if opts.SolveN != "" {
		n, err := c.TransformN(ctx, scriptURL, opts.SolveN)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "n %s\n", n)
	}
	return nil
}

func handleVideo(ctx context.Context, c *client.Client, opts cli.Options, stdout, stderr io.Writer) error {
	input := opts.URLs[0]
	if opts.PrintJSON || opts.ListFormats || opts.SkipDownload {
		info, err := c.GetVideo(ctx, input)
		if err != nil {
			return err
		}
		switch {
		case opts.PrintJSON:
			enc := json.NewEncoder(stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		case opts.ListFormats:
			fmt.Fprintf(stdout, "%s\n", info.Title)
			for _, f := range info.Formats {
				fmt.Fprintln(stdout, formatLine(f))
			}
		default:
			fmt.Fprintf(stdout, "%s: %s (%d formats, best itag %d)\n", info.ID, info.Title, len(info.Formats), info.Best.Itag)
		}
		return nil
	}

	dopts := cli.DownloadOptions(opts)
	if opts.OutputPath == "-" {
		_, err := c.Download(ctx, input, stdout, dopts)
		return err
	}
	dopts.Progress = progressPrinter(stderr)
	res, err := c.DownloadFile(ctx, input, dopts)
	fmt.Fprintln(stderr)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "saved %s (itag %d, %d bytes)\n", res.OutputPath, res.Format.Itag, res.Bytes)
	return nil
}

func formatLine(f client.FormatInfo) string {
	kind := "audio+video"
	switch {
	case f.HasVideo && !f.HasAudio:
		kind = "video only"
	case f.HasAudio && !f.HasVideo:
		kind = "audio only"
	}
	quality := f.QualityLabel
	if quality == "" {
		quality = f.AudioQuality
	}
	return fmt.Sprintf("%-5d %-5s %-12s %-11s %6d kbps  %-8s %s",
		f.Itag, f.Container, quality, kind, f.Bitrate/1000, f.Protocol, strings.Join(f.Codecs, ","))
}

func progressPrinter(w io.Writer) client.ProgressFunc {
	last := -1
	return func(written, total int64) {
		if total <= 0 {
			fmt.Fprintf(w, "\r%d bytes", written)
			return
		}
		pct := int(written * 100 / total)
		if pct == last {
			return
		}
		last = pct
		fmt.Fprintf(w, "\r%3d%% of %d bytes", pct, total)
	}
}
