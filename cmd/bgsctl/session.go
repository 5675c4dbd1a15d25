package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"bgsim/internal/config"
	"bgsim/internal/logging"
	"bgsim/internal/telemetry"
	"bgsim/pkg/bgs"
)

const serviceName = "bgsctl"

// session holds what one command invocation needs: resolved settings, a client
// and the tracing shutdown hook.
type session struct {
	cfg      *config.Config
	client   *bgs.Client
	shutdown func(context.Context) error
}

func newSession(cmd *cobra.Command) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger := logging.NewLogger(cfg.LogLevel, cmd.ErrOrStderr())

	shutdown, err := telemetry.Setup(cmd.Context(), serviceName, cfg.Telemetry.Endpoint, cfg.Telemetry.Enabled)
	if err != nil {
		return nil, fmt.Errorf("setup telemetry: %w", err)
	}

	m := experiment()
	client, err := bgs.New(bgs.Options{
		StoreKind:    cfg.Store,
		DBPath:       cfg.DBPath,
		ArtifactsDir: cfg.ArtifactsDir,
		Model:        &m,
		Logger:       logger,
	})
	if err != nil {
		_ = shutdown(cmd.Context())
		return nil, err
	}
	return &session{cfg: cfg, client: client, shutdown: shutdown}, nil
}

func (s *session) close(ctx context.Context) {
	_ = s.client.Close()
	_ = s.shutdown(ctx)
}

// loadConfig resolves defaults, the config file, BGS_* variables and then the
// flags the user set explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()
	path, _ := flags.GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	overrides := []struct {
		flag   string
		target *string
	}{
		{"format", &cfg.Format},
		{"store", &cfg.Store},
		{"db-path", &cfg.DBPath},
		{"log-level", &cfg.LogLevel},
		{"artifacts-dir", &cfg.ArtifactsDir},
	}
	for _, o := range overrides {
		if flags.Changed(o.flag) {
			*o.target, _ = flags.GetString(o.flag)
		}
	}
	if flags.Lookup("workers") != nil && flags.Changed("workers") {
		cfg.Workers, _ = flags.GetInt("workers")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
