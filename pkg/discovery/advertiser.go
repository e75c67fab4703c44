package discovery

import (
	"context"
	"log/slog"
	"time"
)

// Advertiser provides mDNS service advertising capabilities.
type Advertiser interface {
	// Advertise starts advertising the endpoint, replacing a previous
	// advertisement.
	Advertise(ctx context.Context, info *ServiceInfo) error

	// Update replaces the TXT records of the running advertisement.
	Update(info *ServiceInfo) error

	// Stop withdraws the advertisement. Stopping when nothing is
	// advertised is not an error.
	Stop() error
}

// AdvertiserConfig configures advertiser behavior.
type AdvertiserConfig struct {
	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string

	// TTL is the DNS record TTL.
	// Default: 120 seconds.
	TTL time.Duration

	// Logger for advertisement lifecycle. Nil disables logging.
	Logger *slog.Logger
}

// DefaultAdvertiserConfig returns the default advertiser configuration.
func DefaultAdvertiserConfig() AdvertiserConfig {
	return AdvertiserConfig{
		Interface: "",
		TTL:       DefaultTTL,
	}
}

// Run advertises info until ctx is cancelled and then withdraws the
// advertisement. It returns the Advertise error, or the Stop error after
// cancellation.
func Run(ctx context.Context, adv Advertiser, info *ServiceInfo) error {
	if err := adv.Advertise(ctx, info); err != nil {
		return err
	}
	<-ctx.Done()
	return adv.Stop()
}
