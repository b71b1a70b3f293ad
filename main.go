package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/ipfs-force-community/metrics"
	logging "github.com/ipfs/go-log/v2"
	"github.com/mitchellh/go-homedir"
	"github.com/multiformats/go-multiaddr"
	manet "github.com/multiformats/go-multiaddr/net"
	"github.com/urfave/cli/v2"
	"go.opencensus.io/plugin/ochttp"
	"golang.org/x/term"

	"github.com/ipfs-force-community/sophon-connector/api"
	"github.com/ipfs-force-community/sophon-connector/cmds"
	"github.com/ipfs-force-community/sophon-connector/config"
	connectorMetrics "github.com/ipfs-force-community/sophon-connector/metrics"
	"github.com/ipfs-force-community/sophon-connector/utils"
	"github.com/ipfs-force-community/sophon-connector/version"
	"github.com/ipfs-force-community/sophon-connector/wallets/inapp"
)

var log = logging.Logger("main")

func main() {
	app := &cli.App{
		Name:  "sophon-connector",
		Usage: "sophon-connector keeps wallet connections for local dapps",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "listen",
				Usage: "host address and port the connector api will listen on",
				Value: "/ip4/127.0.0.1/tcp/45133",
			},
			&cli.StringFlag{
				Name:    "repo",
				EnvVars: []string{"SOPHON_CONNECTOR_PATH"},
				Value:   "~/.sophon-connector",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Value: "INFO",
			},
		},
		Before: func(cctx *cli.Context) error {
			return logging.SetLogLevel("*", cctx.String("log-level"))
		},
		Commands: []*cli.Command{
			initCmd, runCmd, cmds.WalletCmds, cmds.ChainCmds, cmds.RelayCmds,
		},
	}
	app.Version = version.UserVersion
	if err := app.Run(os.Args); err != nil {
		log.Warn(err)
		os.Exit(1)
	}
}

var initCmd = &cli.Command{
	Name:  "init",
	Usage: "write the default config into the repo",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "force", Usage: "overwrite an existing config"},
		&cli.BoolFlag{Name: "mnemonic", Usage: "prompt for the mnemonic that seeds embedded wallet keys"},
	},
	Action: func(cctx *cli.Context) error {
		repo, err := homedir.Expand(cctx.String("repo"))
		if err != nil {
			return err
		}
		if err := os.MkdirAll(repo, 0755); err != nil {
			return err
		}
		cfgPath := filepath.Join(repo, config.ConfigFile)
		if _, err := os.Stat(cfgPath); err == nil && !cctx.Bool("force") {
			return fmt.Errorf("config %s already exists", cfgPath)
		}
		cfg := config.DefaultConfig()
		if cctx.IsSet("listen") {
			cfg.API.ListenAddress = cctx.String("listen")
		}
		if cctx.Bool("mnemonic") {
			if cfg.InApp.Mnemonic, err = promptMnemonic(); err != nil {
				return err
			}
		}
		if err := config.WriteConfig(cfgPath, cfg); err != nil {
			return err
		}
		fmt.Println("config written to", cfgPath)
		return nil
	},
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "start sophon-connector daemon",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "jaeger-proxy", EnvVars: []string{"SOPHON_CONNECTOR_JAEGER_PROXY"}},
		&cli.Float64Flag{Name: "trace-sampler", EnvVars: []string{"SOPHON_CONNECTOR_TRACE_SAMPLER"}, Value: 1.0},
	},
	Action: func(cctx *cli.Context) error {
		repo, err := homedir.Expand(cctx.String("repo"))
		if err != nil {
			return err
		}
		cfg, err := loadConfig(repo)
		if err != nil {
			return err
		}
		if cctx.IsSet("listen") {
			cfg.API.ListenAddress = cctx.String("listen")
		}
		if cctx.IsSet("jaeger-proxy") {
			cfg.Trace.JaegerTracingEnabled = true
			cfg.Trace.JaegerEndpoint = cctx.String("jaeger-proxy")
			cfg.Trace.ProbabilitySampler = cctx.Float64("trace-sampler")
		}
		return RunMain(cctx.Context, repo, cfg)
	},
}

func promptMnemonic() (string, error) {
	_, _ = fmt.Fprint(os.Stderr, "mnemonic: ")
	data, err := term.ReadPassword(int(os.Stdin.Fd()))
	_, _ = fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read mnemonic: %w", err)
	}
	mnemonic := strings.Join(strings.Fields(string(data)), " ")
	if _, err := inapp.NewHDEnclave(mnemonic, 0); err != nil {
		return "", err
	}
	return mnemonic, nil
}

func loadConfig(repo string) (*config.Config, error) {
	cfgPath := filepath.Join(repo, config.ConfigFile)
	cfg, err := config.ReadConfig(cfgPath)
	if err == nil {
		return cfg, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config %s: %w", cfgPath, err)
	}
	log.Warnf("config %s not found, use default", cfgPath)
	if err := os.MkdirAll(repo, 0755); err != nil {
		return nil, err
	}
	return config.DefaultConfig(), nil
}

func RunMain(ctx context.Context, repo string, cfg *config.Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log.Infof("sophon-connector current version %s, listen %s", version.UserVersion, cfg.API.ListenAddress)

	n, err := buildNode(ctx, repo, cfg)
	if err != nil {
		return err
	}
	defer n.close(context.Background())

	go n.mgr.RestoreConnection(ctx)

	if err := connectorMetrics.SetupMetrics(ctx, cfg.Metrics, n); err != nil {
		return err
	}

	localJwt, err := utils.NewLocalJwtClient(repo)
	if err != nil {
		return fmt.Errorf("make token failed:%s", err.Error())
	}
	if err = localJwt.SaveToken(); err != nil {
		return err
	}

	handler := api.NewRPCHandler(api.NewConnectorAPIImpl(n.mgr, n.hub), localJwt, api.ServerOptions{
		AllowedOrigins: cfg.API.AllowedOrigins,
		RatePerMinute:  cfg.API.RatePerMinute,
		HealthChecks:   n.healthChecks(),
	})

	if repoter, err := metrics.RegisterJaeger(cfg.Trace.ServerName, cfg.Trace); err != nil {
		return fmt.Errorf("register %s JaegerRepoter to %s failed:%w", cfg.Trace.ServerName, cfg.Trace.JaegerEndpoint, err)
	} else if repoter != nil {
		log.Infof("register jaeger-tracing exporter to %s, with node-name:%s", cfg.Trace.JaegerEndpoint, cfg.Trace.ServerName)
		defer metrics.UnregisterJaeger(repoter)
		handler = &ochttp.Handler{Handler: handler}
	}
	srv := &http.Server{Handler: handler}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			log.Warnw("received shutdown", "signal", sig)
		case <-ctx.Done():
			log.Warn("received shutdown")
		}

		log.Info("Shutting down...")
		if err := srv.Shutdown(context.TODO()); err != nil {
			log.Errorf("shutting down RPC server failed: %s", err)
		}
	}()

	addr, err := multiaddr.NewMultiaddr(cfg.API.ListenAddress)
	if err != nil {
		return err
	}
	nl, err := manet.Listen(addr)
	if err != nil {
		return err
	}

	log.Infof("start to rpc listen %s", nl.Addr())
	if err = srv.Serve(manet.NetListener(nl)); err != nil && err != http.ErrServerClosed {
		return err
	}

	log.Info("Graceful shutdown successful")
	return nil
}
