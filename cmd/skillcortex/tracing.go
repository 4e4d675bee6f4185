package main

import (
	"context"

	"github.com/spf13/viper"

	"github.com/jingkaihe/skillcortex/pkg/telemetry"
	"github.com/jingkaihe/skillcortex/pkg/version"
)

// initTracing initializes the OpenTelemetry tracing system
func initTracing(ctx context.Context) (func(context.Context) error, error) {
	config := telemetry.Config{
		Enabled:        viper.GetBool("tracing.enabled"),
		ServiceName:    "skillcortex",
		ServiceVersion: version.Get().Version,
		SamplerType:    viper.GetString("tracing.sampler_type"),
		SamplerRatio:   viper.GetFloat64("tracing.sampler_ratio"),
	}

	return telemetry.InitTracer(ctx, config)
}

// Initialize global flags for tracing
func init() {
	rootCmd.PersistentFlags().Bool("tracing-enabled", false, "Enable OpenTelemetry tracing")
	rootCmd.PersistentFlags().String("tracing-sampler", "always", "Tracing sampler type (always, never, ratio)")
	rootCmd.PersistentFlags().Float64("tracing-ratio", 0.1, "Sampling ratio when using ratio sampler")

	viper.BindPFlag("tracing.enabled", rootCmd.PersistentFlags().Lookup("tracing-enabled"))
	viper.BindPFlag("tracing.sampler_type", rootCmd.PersistentFlags().Lookup("tracing-sampler"))
	viper.BindPFlag("tracing.sampler_ratio", rootCmd.PersistentFlags().Lookup("tracing-ratio"))
}
