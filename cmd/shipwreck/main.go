package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/stephenwright/shipwreck"
	"github.com/stephenwright/shipwreck/lib/session"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "get":
		if err := runGet(args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	case "browse":
		if err := runBrowse(args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	case "version":
		fmt.Printf("shipwreck version %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`shipwreck - Siren hypermedia API browser

Usage:
  shipwreck <command> [arguments]

Commands:
  get <path>            Fetch an entity and print it
  browse [path]         Browse an API interactively
  version               Print version
  help                  Show this help

Options:
  --base <uri>          API root (overrides config and saved session)
  --token <token>       Bearer token (overrides config and saved session)
  --config <file>       Config file (default ~/.shipwreck.yaml)
  --raw                 Print the raw JSON document (get only)
  --verbose             Debug logging

Examples:
  shipwreck get https://api.example.com/
  shipwreck --base https://api.example.com get /items/1
  shipwreck browse`)
}

// fileConfig is the on-disk configuration.
type fileConfig struct {
	BaseURI string            `yaml:"base_uri"`
	Token   string            `yaml:"token"`
	Session string            `yaml:"session"`
	Targets []fileConfigScope `yaml:"targets"`
}

type fileConfigScope struct {
	Prefix  string            `yaml:"prefix"`
	Headers map[string]string `yaml:"headers"`
}

// options are the parsed command line flags plus remaining arguments.
type options struct {
	base    string
	token   string
	config  string
	raw     bool
	verbose bool
	args    []string
}

func parseArgs(args []string) (options, error) {
	var opts options
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch arg {
		case "--base", "--token", "--config":
			if i+1 >= len(args) {
				return opts, fmt.Errorf("%s requires a value", arg)
			}
			i++
			switch arg {
			case "--base":
				opts.base = args[i]
			case "--token":
				opts.token = args[i]
			case "--config":
				opts.config = args[i]
			}
		case "--raw":
			opts.raw = true
		case "--verbose":
			opts.verbose = true
		default:
			opts.args = append(opts.args, arg)
		}
	}
	return opts, nil
}

func loadConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return cfg, nil
		}
		path = filepath.Join(home, ".shipwreck.yaml")
		if _, err := os.Stat(path); err != nil {
			return cfg, nil
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// newClient builds a client from flags and config. Session state lives
// in a file next to the config so base and token survive between runs.
func newClient(opts options) (*shipwreck.Client, error) {
	cfg, err := loadConfig(opts.config)
	if err != nil {
		return nil, err
	}

	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	sessionPath := cfg.Session
	if sessionPath == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			sessionPath = filepath.Join(home, ".shipwreck.session")
		}
	}
	var storage session.Storage
	if sessionPath != "" {
		storage = session.NewFile(sessionPath)
	} else {
		storage = session.NewMemory()
	}

	client := shipwreck.New(
		shipwreck.WithStorage(storage),
		shipwreck.WithLogger(log),
	)

	for _, scope := range cfg.Targets {
		header := http.Header{}
		for key, value := range scope.Headers {
			header.Set(key, value)
		}
		client.Store().AddTarget(scope.Prefix, header)
	}

	base := opts.base
	if base == "" && client.BaseURI() == "" {
		base = cfg.BaseURI
	}
	if base != "" {
		if err := client.SetBaseURI(base); err != nil {
			return nil, err
		}
	}
	token := opts.token
	if token == "" && client.Token() == "" {
		token = cfg.Token
	}
	if token != "" {
		if err := client.SetToken(token); err != nil {
			return nil, err
		}
	}
	return client, nil
}

func runGet(args []string) error {
	opts, err := parseArgs(args)
	if err != nil {
		return err
	}
	if len(opts.args) != 1 {
		return fmt.Errorf("get requires exactly one path")
	}
	client, err := newClient(opts)
	if err != nil {
		return err
	}
	res, err := client.Fetch(context.Background(), opts.args[0])
	if err != nil {
		return err
	}
	if res.Entity == nil {
		if res.Response != nil {
			return fmt.Errorf("request failed, status: %d (%s)", res.Response.StatusCode, opts.args[0])
		}
		return fmt.Errorf("no entity returned")
	}
	if opts.raw {
		fmt.Println(string(res.Entity.Raw()))
		return nil
	}
	printEntity(os.Stdout, res.Entity)
	return nil
}
