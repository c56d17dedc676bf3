package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/HerbHall/hostenroll/internal/config"
	"github.com/HerbHall/hostenroll/internal/facts"
	"github.com/HerbHall/hostenroll/internal/foreman"
	"github.com/HerbHall/hostenroll/internal/mqtt"
)

// newFactSource builds the fact source for a registration. Tests replace it.
var newFactSource = func(cfg facts.Config, logger *zap.Logger) facts.Source {
	return facts.NewFacter(cfg, logger)
}

type registerOptions struct {
	server      string
	hostgroup   string
	metricsFile string
	noInstall   bool
}

func newRegisterCmd(root *rootOptions) *cobra.Command {
	opts := &registerOptions{}

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create this machine's host record in Foreman",
		Long: `Register creates a host record for this machine in Foreman.

A host with the same name is deleted first. Registration fails if a different
host already holds this machine's IP or MAC address. When the config has no
foreman section, nothing is done.

On success the new host ID is printed to stdout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRegister(cmd, root, opts)
		},
	}

	cmd.Flags().StringVar(&opts.server, "server", "", "Foreman API URL (overrides foreman.server)")
	cmd.Flags().StringVar(&opts.hostgroup, "hostgroup", "", "hostgroup label (overrides foreman.hostgroup)")
	cmd.Flags().StringVar(&opts.metricsFile, "metrics-file", "", "write Prometheus metrics to this file when done")
	cmd.Flags().BoolVar(&opts.noInstall, "no-install", false, "do not install facter when it is missing")
	return cmd
}

func runRegister(cmd *cobra.Command, root *rootOptions, opts *registerOptions) error {
	v, logger, err := root.load(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clientCfg, factCfg, mqttCfg, err := decodeSections(v)
	if err != nil {
		return err
	}
	if opts.noInstall {
		factCfg.Install = false
	}

	spec := foreman.DefaultAttributeSpec()
	settings, err := config.Section(v, "foreman", foreman.SettingKeys(spec)...)
	if err != nil {
		return err
	}
	settings = applyFlagOverrides(settings, opts)

	reg := prometheus.NewRegistry()
	metrics := foreman.NewMetrics(reg)

	var prereq foreman.Prerequisite
	if factCfg.Install {
		prereq = facts.NewInstaller(factCfg.Path, factCfg.Package, logger.Named("installer"))
	}
	registrar := foreman.NewRegistrar(spec, newFactSource(factCfg, logger.Named("facter")), clientCfg, metrics, logger.Named("registrar"))
	module := foreman.NewModule(registrar, prereq, logger.Named("foreman"))

	announcer := mqtt.NewAnnouncer(mqttCfg, logger.Named("mqtt"))
	if err := announcer.Connect(); err != nil {
		logger.Warn("mqtt unavailable; registration events will not be published", zap.Error(err))
	}
	defer announcer.Close()

	hostID, ran, regErr := module.Handle(ctx, settings)

	if err := announcer.Announce(registrationEvent(settings, hostID, ran, regErr)); err != nil {
		logger.Warn("failed to announce registration", zap.Error(err))
	}
	if opts.metricsFile != "" {
		if err := prometheus.WriteToTextfile(opts.metricsFile, reg); err != nil {
			logger.Warn("failed to write metrics file", zap.String("path", opts.metricsFile), zap.Error(err))
		}
	}

	if regErr != nil {
		return regErr
	}
	if ran {
		fmt.Fprintln(cmd.OutOrStdout(), hostID)
	}
	return nil
}

func decodeSections(v *viper.Viper) (foreman.ClientConfig, facts.Config, mqtt.Config, error) {
	clientCfg := foreman.DefaultClientConfig()
	if err := v.UnmarshalKey("client", &clientCfg); err != nil {
		return clientCfg, facts.Config{}, mqtt.Config{}, fmt.Errorf("decode client config: %w", err)
	}
	factCfg := facts.DefaultConfig()
	if err := v.UnmarshalKey("facter", &factCfg); err != nil {
		return clientCfg, factCfg, mqtt.Config{}, fmt.Errorf("decode facter config: %w", err)
	}
	mqttCfg := mqtt.DefaultConfig()
	if err := v.UnmarshalKey("mqtt", &mqttCfg); err != nil {
		return clientCfg, factCfg, mqttCfg, fmt.Errorf("decode mqtt config: %w", err)
	}
	return clientCfg, factCfg, mqttCfg, nil
}

// applyFlagOverrides copies settings and layers --server and --hostgroup on
// top. A flag alone is enough to make the foreman section configured.
func applyFlagOverrides(settings map[string]any, opts *registerOptions) map[string]any {
	if opts.server == "" && opts.hostgroup == "" {
		return settings
	}
	out := make(map[string]any, len(settings)+2)
	for k, val := range settings {
		out[k] = val
	}
	if opts.server != "" {
		out[foreman.KeyServer] = opts.server
	}
	if opts.hostgroup != "" {
		out[foreman.KeyHostgroup] = opts.hostgroup
	}
	return out
}

func registrationEvent(settings map[string]any, hostID int, ran bool, err error) mqtt.Event {
	ev := mqtt.Event{
		HostID:  hostID,
		Server:  cast.ToString(settings[foreman.KeyServer]),
		Outcome: mqtt.OutcomeRegistered,
	}
	if name, herr := os.Hostname(); herr == nil {
		ev.Host = name
	}
	switch {
	case !ran:
		ev.Outcome = mqtt.OutcomeSkipped
	case err != nil:
		ev.Outcome = mqtt.OutcomeFailed
		ev.Error = err.Error()
	}
	return ev
}
