package detector

import (
	"context"
	"fmt"
	"io"

	"github.com/dmitrymomot/devicekit/pkg/config"
	"github.com/dmitrymomot/devicekit/pkg/source"
)

// NewFromConfig builds an engine from cfg. When the updater is enabled the
// source is opened and the periodic loop started; an engine that opened its
// own source closes it on Close. Explicit opts apply after cfg.
func NewFromConfig(ctx context.Context, cfg config.Config, opts ...Option) (*Engine, error) {
	base := []Option{
		WithPatches(cfg.Database.Patches...),
		WithCapabilities(cfg.Database.Capabilities...),
		WithCacheSize(cfg.Database.CacheSize),
		WithUpdateInterval(cfg.Updater.Interval),
		WithFetchTimeout(cfg.Updater.FetchTimeout),
		WithMaxDownloadSize(cfg.Updater.MaxDownloadSize),
	}

	var src source.Source
	if cfg.Updater.Source != "" {
		var err error
		src, err = source.Open(ctx, cfg.Updater.Source,
			source.WithTimeouts(cfg.Updater.ConnectTimeout, cfg.Updater.FetchTimeout),
			source.WithS3(source.S3Config{
				Region:         cfg.S3.Region,
				AccessKeyID:    cfg.S3.AccessKeyID,
				SecretKey:      cfg.S3.SecretKey,
				Endpoint:       cfg.S3.Endpoint,
				ForcePathStyle: cfg.S3.ForcePathStyle,
			}),
			source.WithRedisRetry(cfg.Redis.RetryAttempts, cfg.Redis.RetryInterval, cfg.Redis.ConnectTimeout),
		)
		if err != nil {
			return nil, fmt.Errorf("open update source: %w", err)
		}
		base = append(base, WithSource(src))
	}

	e, err := New(ctx, cfg.Database.RootPath, append(base, opts...)...)
	if err != nil {
		closeSource(src)
		return nil, err
	}
	if src != nil {
		if c, ok := src.(io.Closer); ok && e.opts.source == src {
			e.ownedSource = c
		} else if e.opts.source != src {
			closeSource(src)
		}
	}

	if cfg.Updater.Enabled {
		if err := e.updater.Start(0); err != nil {
			_ = e.Close()
			return nil, err
		}
	}
	return e, nil
}

func closeSource(src source.Source) {
	if c, ok := src.(io.Closer); ok {
		_ = c.Close()
	}
}
