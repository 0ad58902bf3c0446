package main

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/blukai/blockparty/internal/gameclient"
	"github.com/kelseyhightower/envconfig"
	"github.com/olekukonko/tablewriter"
	"github.com/phuslu/log"
)

type Config struct {
	Timeout time.Duration `envconfig:"TIMEOUT" default:"5s"`
	Verbose bool          `envconfig:"VERBOSE"`
}

func loadConfig() (*Config, error) {
	config := new(Config)
	if err := envconfig.Process("BLOCKPARTY_PING", config); err != nil {
		return nil, err
	}
	return config, nil
}

func configureLogger(verbose bool) *log.Logger {
	logger := log.DefaultLogger

	logger.Level = log.WarnLevel
	if verbose {
		logger.Level = log.DebugLevel
	}
	logger.TimeFormat = "15:04:05"
	logger.Writer = &log.ConsoleWriter{
		Writer:         os.Stderr,
		ColorOutput:    true,
		QuoteString:    true,
		EndWithMessage: true,
	}

	return &logger
}

type result struct {
	address string
	status  *gameclient.Status
	latency time.Duration
	err     error
}

func ping(address string, timeout time.Duration, logger *log.Logger) result {
	if _, _, err := net.SplitHostPort(address); err != nil {
		address = net.JoinHostPort(address, "25565")
	}
	r := result{address: address}

	c, err := gameclient.NewClient("tcp", address, logger)
	if err != nil {
		r.err = err
		return r
	}
	defer c.Close()
	c.SetTimeout(timeout)

	r.status, r.latency, r.err = c.Status()
	return r
}

func render(results []result) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"address", "version", "players", "latency", "motd"})
	table.SetAutoWrapText(false)

	for _, r := range results {
		if r.err != nil {
			table.Append([]string{r.address, "-", "-", "-", r.err.Error()})
			continue
		}
		table.Append([]string{
			r.address,
			fmt.Sprintf("%s (%d)", r.status.Version.Name, r.status.Version.Protocol),
			strconv.Itoa(r.status.Players.Online) + "/" + strconv.Itoa(r.status.Players.Max),
			r.latency.Round(time.Millisecond).String(),
			r.status.Description.Text,
		})
	}
	table.Render()

	var sample [][]string
	for _, r := range results {
		if r.err != nil {
			continue
		}
		for _, p := range r.status.Players.Sample {
			sample = append(sample, []string{r.address, p.Name, p.ID})
		}
	}
	if len(sample) == 0 {
		return
	}
	table = tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"address", "player", "id"})
	table.AppendBulk(sample)
	table.Render()
}

func erringMain() error {
	config, err := loadConfig()
	if err != nil {
		return fmt.Errorf("could not process config: %w", err)
	}
	if len(os.Args) < 2 {
		return fmt.Errorf("usage: %s host[:port]...", os.Args[0])
	}

	logger := configureLogger(config.Verbose)

	results := make([]result, 0, len(os.Args)-1)
	for _, address := range os.Args[1:] {
		results = append(results, ping(address, config.Timeout, logger))
	}
	render(results)

	for _, r := range results {
		if r.err != nil {
			return fmt.Errorf("could not ping %s: %w", r.address, r.err)
		}
	}
	return nil
}

func main() {
	if err := erringMain(); err != nil {
		fmt.Fprintf(os.Stderr, "fucky wucky! %v\n", err)
		os.Exit(42)
	}
}
