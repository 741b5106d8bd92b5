package main

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/latchguard/go-lock-agent/internal/api"
	"github.com/latchguard/go-lock-agent/internal/api/router"
	"github.com/latchguard/go-lock-agent/internal/auth"
	"github.com/latchguard/go-lock-agent/internal/config"
	"github.com/latchguard/go-lock-agent/internal/credential"
	"github.com/latchguard/go-lock-agent/internal/identity"
	"github.com/latchguard/go-lock-agent/internal/ledger"
	"github.com/latchguard/go-lock-agent/internal/registration"
	"github.com/latchguard/go-lock-agent/internal/revocation"
	"github.com/latchguard/go-lock-agent/internal/storage"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatal().Err(err).Msg("Command failed")
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "lock-agent",
		Short: "Device agent managing lock identities and verifiable credentials",
	}
	root.AddCommand(newServeCmd())
	root.AddCommand(newEnvCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the agent HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func newEnvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "Print the resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.DefaultServerConfigFromEnv()
			return json.NewEncoder(cmd.OutOrStdout()).Encode(cfg)
		},
	}
}

func runServer() error {
	cfg := config.DefaultServerConfigFromEnv()
	initLogger(cfg.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	kv, err := newKVStore(ctx, cfg.Redis)
	if err != nil {
		return err
	}

	identities := identity.NewStore(kv)
	credentials := credential.NewStore(kv)

	writer, reader, source, watcher := connectLedger(ctx, cfg.Chain)

	opts := []registration.Option{registration.WithTimeout(cfg.Chain.RegistrationTimeout)}
	if watcher != nil {
		opts = append(opts, registration.WithReceiptWatcher(watcher))
	}
	coordinator := registration.NewCoordinator(identities, writer, source, opts...)
	coordinator.Start(ctx)

	s := api.NewServer(cfg)
	s.Tokens = auth.NewTokenManager(cfg.Auth.Secret, cfg.Auth.Issuer, cfg.Auth.TokenDuration)
	s.Identities = identities
	s.Credentials = credentials
	s.Issuer = credential.NewIssuer()
	s.Registration = coordinator
	s.Revocation = revocation.NewCoordinator(credentials, writer)
	s.Ledger = reader
	router.Init(s)

	go func() {
		if err := s.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()
	log.Info().Str("listen_address", cfg.Echo.ListenAddress).Msg("Agent started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if errs := s.Shutdown(shutdownCtx); len(errs) > 0 {
		return errs[0]
	}
	return nil
}

func initLogger(cfg config.Logger) {
	zerolog.SetGlobalLevel(cfg.Level)
	if cfg.PrettyPrintConsole {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func newKVStore(ctx context.Context, cfg config.Redis) (storage.KVStore, error) {
	if !cfg.Enabled {
		log.Warn().Msg("Redis disabled, using in-memory store; data will not survive restarts")
		return storage.NewMemoryStore(), nil
	}

	redisOpts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	client := goredis.NewClient(redisOpts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	log.Info().Str("url", cfg.URL).Msg("Connected to redis")
	return storage.NewRedisStore(client), nil
}

// nullSource satisfies the confirmation source interface when the agent runs
// without a ledger connection. Registrations fail fast with ErrNotConnected.
type nullSource struct {
	ch chan ledger.Confirmation
}

func (s *nullSource) Confirmations() <-chan ledger.Confirmation { return s.ch }
func (s *nullSource) Close() error                              { return nil }

func connectLedger(ctx context.Context, cfg config.Chain) (ledger.Writer, ledger.Reader, ledger.ConfirmationSource, func(ledger.TxHandle)) {
	offline := func(reason error) (ledger.Writer, ledger.Reader, ledger.ConfirmationSource, func(ledger.TxHandle)) {
		log.Warn().Err(reason).Msg("Running without ledger connection; registration and revocation are disabled")
		return nil, nil, &nullSource{ch: make(chan ledger.Confirmation)}, nil
	}

	if cfg.ContractAddress == "" || cfg.WalletPrivateKey == "" {
		return offline(errors.New("chain contract address or wallet key not configured"))
	}

	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return offline(err)
	}

	adapter, err := ledger.NewEthereumAdapter(client, cfg.ContractAddress, big.NewInt(cfg.ChainID), cfg.WalletPrivateKey)
	if err != nil {
		return offline(err)
	}

	if cfg.ConfirmationMode == "poll" {
		poller, err := ledger.NewReceiptPoller(ctx, client, cfg.ContractAddress, 3*time.Second)
		if err != nil {
			return offline(err)
		}
		log.Info().Str("rpc_url", cfg.RPCURL).Msg("Ledger connected, polling receipts for confirmations")
		return adapter, adapter, poller, poller.Watch
	}

	subscription, err := ledger.NewEventSubscription(ctx, client, cfg.ContractAddress)
	if err != nil {
		return offline(err)
	}
	log.Info().Str("rpc_url", cfg.RPCURL).Msg("Ledger connected, subscribed to registration events")
	return adapter, adapter, subscription, nil
}
