package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/centrifuge/go-substrate-rpc-client/v4/signature"
	"github.com/google/uuid"
	"github.com/litentry/assertion-deploy/contracts"
	"github.com/litentry/assertion-deploy/deploy"
	"github.com/litentry/assertion-deploy/internal/substrate"
	"github.com/litentry/assertion-deploy/rpc/enclave"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// well-known development account allowed in test networks only.
	defaultSigner = "//Alice"

	// generic Substrate SS58 address format.
	ss58Prefix = 42
)

func main() {
	err := newApp().Run(os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, "deployment failed:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "deploy-assertion",
		Usage: "deploy assertion contract to the Litentry parachain",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "chain",
				Usage:    fmt.Sprintf("target network, one of %v", deploy.Networks()),
				EnvVars:  []string{"CHAIN"},
				Required: true,
			},
			&cli.StringFlag{
				Name:     "contract",
				Usage:    "name of the compiled assertion contract",
				EnvVars:  []string{"CONTRACT"},
				Required: true,
			},
			&cli.StringFlag{
				Name:    "secrets",
				Usage:   "space-separated contract secrets",
				EnvVars: []string{"SECRETS"},
			},
			&cli.StringFlag{
				Name:    "artifacts",
				Usage:   "directory with compiled contracts",
				EnvVars: []string{"ARTIFACTS_DIR"},
				Value:   "artifacts",
			},
			&cli.StringFlag{
				Name:    "config",
				Usage:   "YAML file overriding built-in network settings",
				EnvVars: []string{"DEPLOY_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "signer",
				Usage:   "secret URI of the signing account (default " + defaultSigner + " in local and dev networks)",
				EnvVars: []string{"SIGNER_URI"},
			},
			&cli.IntFlag{
				Name:  "scan-blocks",
				Usage: "number of blocks to wait for the deployment confirmation",
			},
			&cli.DurationFlag{
				Name:  "worker-timeout",
				Usage: "timeout of the TEE worker requests",
				Value: 30 * time.Second,
			},
			&cli.BoolFlag{
				Name:    "debug",
				Usage:   "enable debug logs",
				EnvVars: []string{"DEBUG"},
			},
		},
		Action: runDeploy,
	}
}

func runDeploy(c *cli.Context) error {
	network, err := deploy.ParseNetwork(c.String("chain"))
	if err != nil {
		return err
	}

	cfg, err := loadConfig(c.String("config"))
	if err != nil {
		return err
	}

	netCfg, err := cfg.network(network)
	if err != nil {
		return err
	}

	scanBlocks := cfg.ScanBlocks
	if c.IsSet("scan-blocks") {
		scanBlocks = c.Int("scan-blocks")
	}
	if scanBlocks < 0 {
		return fmt.Errorf("negative number of blocks to scan %d", scanBlocks)
	}

	logger, err := newLogger(c.Bool("debug"))
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger = logger.With(zap.Stringer("run", uuid.New()), zap.String("network", string(network)))

	signer, err := newSigner(network, c.String("signer"))
	if err != nil {
		return err
	}

	contract, err := contracts.Read(os.DirFS(c.String("artifacts")), c.String("contract"))
	if err != nil {
		return fmt.Errorf("load contract: %w", err)
	}

	logger.Info("connecting to the parachain...", zap.String("endpoint", netCfg.RPCEndpoint))

	chain, err := substrate.Dial(substrate.Prm{
		Logger:   logger,
		Endpoint: netCfg.RPCEndpoint,
		Signer:   signer,
		Calls:    cfg.callNames(),
	})
	if err != nil {
		return err
	}
	defer chain.Close()

	worker := enclave.New(netCfg.WorkerEndpoint, enclave.Options{
		DialTimeout:        c.Duration("worker-timeout"),
		RequestTimeout:     c.Duration("worker-timeout"),
		InsecureSkipVerify: netCfg.InsecureWorker,
	})

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rep, err := deploy.Deploy(ctx, deploy.Prm{
		Logger:     logger,
		Blockchain: chain,
		Worker:     worker,
		Network:    network,
		Contract:   contract,
		Secrets:    parseSecrets(c.String("secrets")),
		Events:     cfg.eventNames(),
		ScanBlocks: scanBlocks,
	})
	if err != nil {
		return err
	}

	printReport(c.App.Writer, rep, netCfg)

	return nil
}

func newLogger(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if debug {
		cfg.Level.SetLevel(zapcore.DebugLevel)
	}

	return cfg.Build()
}

// newSigner returns key pair signing deployment transactions. Well-known
// development account is used if uri is not set in test networks.
func newSigner(network deploy.Network, uri string) (signature.KeyringPair, error) {
	if uri == "" {
		if !network.IsTest() {
			return signature.KeyringPair{}, fmt.Errorf("signer is required for '%s' network", network)
		}
		uri = defaultSigner
	}

	kp, err := signature.KeyringPairFromSecret(uri, ss58Prefix)
	if err != nil {
		return signature.KeyringPair{}, fmt.Errorf("derive signer key pair: %w", err)
	}

	return kp, nil
}

// parseSecrets splits space-separated secrets dropping empty ones.
func parseSecrets(s string) []string {
	var res []string

	for _, secret := range strings.Split(s, " ") {
		if secret != "" {
			res = append(res, secret)
		}
	}

	return res
}
