package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/babarot/kura/internal/config"
	"github.com/babarot/kura/internal/core/types"
	"github.com/babarot/kura/internal/env"
	"github.com/babarot/kura/internal/providers"
	"github.com/babarot/kura/internal/registry"
	"github.com/babarot/kura/internal/trash"
	"github.com/babarot/kura/internal/utils/debug"
	"github.com/babarot/kura/internal/utils/log"
	"github.com/jessevdk/go-flags"
)

type Option struct {
	Config   string `long:"config" description:"Path to config file" default:""`
	Provider string `short:"p" long:"provider" description:"Provider id; detected from the address when omitted"`

	Meta MetaOption `group:"Meta Options"`

	Commands
}

type MetaOption struct {
	Version bool   `short:"V" long:"version" description:"Show version"`
	Verbose bool   `short:"v" long:"verbose" description:"Write debug records to stderr"`
	Debug   string `long:"debug" description:"View debug logs (default: \"full\")" optional-value:"full" optional:"yes" choice:"full" choice:"live"`
}

// Commands are the subcommands. Each one runs exactly one registry request
// per address.
type Commands struct {
	Ls        lsCommand        `command:"ls" description:"List a folder"`
	Cat       catCommand       `command:"cat" description:"Print file content"`
	Put       putCommand       `command:"put" description:"Upload a local file"`
	Mkdir     mkdirCommand     `command:"mkdir" description:"Create a folder"`
	Mv        mvCommand        `command:"mv" description:"Move or rename an entry"`
	Versions  versionsCommand  `command:"versions" description:"List the revisions of a file"`
	Revert    revertCommand    `command:"revert" description:"Bring back an earlier revision of a file"`
	Rm        rmCommand        `command:"rm" description:"Delete entries (to the trash when the provider has one)"`
	Status    statusCommand    `command:"status" description:"Show the lifecycle state of an entry"`
	Trash     trashCommand     `command:"trash" description:"List trashed entries"`
	Restore   restoreCommand   `command:"restore" description:"Restore a trashed entry"`
	Purge     purgeCommand     `command:"purge" description:"Permanently delete an entry"`
	Empty     emptyCommand     `command:"empty" description:"Empty the trash"`
	Info      infoCommand      `command:"info" description:"Show provider capabilities"`
	Providers providersCommand `command:"providers" description:"List configured providers"`
}

func (c *Commands) bind(cli *CLI) {
	c.Ls.cli = cli
	c.Cat.cli = cli
	c.Put.cli = cli
	c.Mkdir.cli = cli
	c.Mv.cli = cli
	c.Versions.cli = cli
	c.Revert.cli = cli
	c.Rm.cli = cli
	c.Status.cli = cli
	c.Trash.cli = cli
	c.Restore.cli = cli
	c.Purge.cli = cli
	c.Empty.cli = cli
	c.Info.cli = cli
	c.Providers.cli = cli
}

type CLI struct {
	version Version
	option  Option
	config  config.Config

	out io.Writer
	log *slog.Logger

	registry *registry.Registry
	closer   io.Closer
	ctx      context.Context
}

// Run parses os.Args and runs the selected command
func Run(v Version) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	c := &CLI{version: v, out: os.Stdout, ctx: ctx}
	return c.Run(os.Args[1:])
}

func (c *CLI) Run(args []string) error {
	var opt Option
	opt.bind(c)

	parser := flags.NewParser(&opt, flags.Default)
	parser.Name = c.version.AppName
	parser.SubcommandsOptional = true
	parser.CommandHandler = func(cmd flags.Commander, args []string) error {
		c.option = opt
		return c.handle(cmd, args, parser)
	}

	_, err := parser.ParseArgs(args)
	if flags.WroteHelp(err) {
		return nil
	}
	return err
}

func (c *CLI) handle(cmd flags.Commander, args []string, parser *flags.Parser) error {
	if c.option.Meta.Version {
		fmt.Fprint(c.out, c.version.Print())
		return nil
	}

	if err := c.setup(); err != nil {
		return err
	}
	defer c.close()

	slog.Debug("run started", "version", c.version.String())
	defer slog.Debug("run finished")

	switch c.option.Meta.Debug {
	case "live":
		return debug.Logs(c.out, env.KURA_LOG_PATH, c.config.Logging, true)
	case "full":
		return debug.Logs(c.out, env.KURA_LOG_PATH, c.config.Logging, false)
	}

	if cmd == nil {
		parser.WriteHelp(c.out)
		return nil
	}
	if err := cmd.Execute(args); err != nil {
		c.log.Error("command failed", "error", err)
		return err
	}
	return nil
}

// setup loads the config and builds the logger, the trash engine and the
// provider registry. A registry set beforehand is kept as is.
func (c *CLI) setup() error {
	if c.ctx == nil {
		c.ctx = context.Background()
	}
	if c.registry != nil {
		if c.log == nil {
			c.log = slog.Default()
		}
		return nil
	}

	cfg, err := config.Parse(c.option.Config)
	if err != nil {
		return err
	}
	c.config = cfg

	logger, closer, err := log.FromConfig(cfg.Logging, log.NewRunID(), c.option.Meta.Verbose, log.AsDefault())
	if err != nil {
		return err
	}
	c.log, c.closer = logger, closer

	reg, err := newRegistry(cfg, logger)
	if err != nil {
		return err
	}
	c.registry = reg
	return nil
}

func newRegistry(cfg config.Config, logger *slog.Logger) (*registry.Registry, error) {
	conflict, err := trash.ParseConflictPolicy(cfg.Core.Restore.Conflict)
	if err != nil {
		return nil, err
	}
	engine, err := trash.NewEngine(trash.Config{
		DefaultConflict: conflict,
		Concurrency:     cfg.Core.EmptyTrash.Concurrency,
		Actor:           actor(),
		Logger:          logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize trash engine: %w", err)
	}

	reg := registry.New(registry.WithEngine(engine), registry.WithLogger(logger))
	if err := providers.Load(cfg, reg, logger); err != nil {
		return nil, fmt.Errorf("failed to load providers: %w", err)
	}
	return reg, nil
}

func actor() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "kura"
}

func (c *CLI) close() {
	if c.closer != nil {
		_ = c.closer.Close()
	}
}

var errNoProvider = errors.New("no provider given: pass --provider")

// target resolves raw into a provider id and address. --provider wins
// over detection.
func (c *CLI) target(raw string) (string, types.Address, error) {
	p, addr, err := c.registry.Resolve(c.option.Provider, raw)
	if err != nil {
		return "", types.Address{}, err
	}
	return p.ID(), addr, nil
}

// providerID is the provider of commands that take no address. Without
// --provider it only succeeds when exactly one provider is configured.
func (c *CLI) providerID() (string, error) {
	if c.option.Provider != "" {
		return c.option.Provider, nil
	}
	ids := c.registry.IDs()
	if len(ids) != 1 {
		return "", errNoProvider
	}
	return ids[0], nil
}

func (c *CLI) dispatch(id string, op registry.Operation, addr types.Address, opts registry.Options) (registry.Response, error) {
	return c.registry.Dispatch(c.ctx, registry.Request{
		ProviderID: id,
		Operation:  op,
		Address:    addr,
		Options:    opts,
	})
}
