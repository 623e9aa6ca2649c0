package source

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Option configures Open.
type Option func(*openOptions)

type openOptions struct {
	httpOpts []HTTPOption
	s3       S3Config
	s3Opts   []S3Option
	redis    RedisConfig
	redisCli RedisClient
}

// WithHTTPOptions passes options to the HTTP source.
func WithHTTPOptions(opts ...HTTPOption) Option {
	return func(o *openOptions) {
		o.httpOpts = append(o.httpOpts, opts...)
	}
}

// WithS3 supplies region, credentials and endpoint for s3:// locations.
// Bucket and key always come from the location.
func WithS3(cfg S3Config, opts ...S3Option) Option {
	return func(o *openOptions) {
		o.s3 = cfg
		o.s3Opts = append(o.s3Opts, opts...)
	}
}

// WithRedisRetry tunes the connection retries for redis:// locations.
func WithRedisRetry(attempts int, interval, connectTimeout time.Duration) Option {
	return func(o *openOptions) {
		o.redis.RetryAttempts = attempts
		o.redis.RetryInterval = interval
		o.redis.ConnectTimeout = connectTimeout
	}
}

// WithRedisClient reuses an existing client for redis:// locations; the
// source then does not close it.
func WithRedisClient(client RedisClient) Option {
	return func(o *openOptions) {
		o.redisCli = client
	}
}

// WithTimeouts sets the connect and transfer timeouts of network sources.
func WithTimeouts(connect, transfer time.Duration) Option {
	return func(o *openOptions) {
		o.httpOpts = append(o.httpOpts, WithConnectTimeout(connect), WithTransferTimeout(transfer))
		if connect > 0 {
			o.redis.ConnectTimeout = connect
		}
	}
}

// Open builds a source from a location:
//
//	/var/lib/devices.zip, file:///var/lib/devices.zip
//	https://example.com/devices.zip
//	s3://bucket/path/devices.zip
//	redis://:password@host:6379/0?key=devices&version_key=devices:version
//
// Sources that hold connections implement io.Closer.
func Open(ctx context.Context, location string, opts ...Option) (Source, error) {
	if location == "" {
		return nil, fmt.Errorf("%w: empty location", ErrInvalidLocation)
	}

	o := &openOptions{}
	for _, opt := range opts {
		opt(o)
	}

	u, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLocation, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "":
		return NewFileSource(location)
	case "file":
		p := u.Path
		if u.Host != "" && u.Host != "localhost" {
			return nil, fmt.Errorf("%w: remote file host %q", ErrInvalidLocation, u.Host)
		}
		return NewFileSource(p)
	case "http", "https":
		return NewHTTPSource(location, o.httpOpts...)
	case "s3":
		cfg := o.s3
		cfg.Bucket = u.Host
		cfg.Key = strings.TrimPrefix(u.Path, "/")
		return NewS3Source(ctx, cfg, o.s3Opts...)
	case "redis", "rediss":
		return openRedis(ctx, u, o)
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidLocation, u.Scheme)
	}
}

func openRedis(ctx context.Context, u *url.URL, o *openOptions) (Source, error) {
	q := u.Query()
	key := q.Get("key")
	versionKey := q.Get("version_key")
	if key == "" {
		return nil, fmt.Errorf("%w: redis location needs a key parameter", ErrInvalidLocation)
	}

	if o.redisCli != nil {
		return NewRedisSource(o.redisCli, key, versionKey)
	}

	// go-redis rejects query options it does not know.
	q.Del("key")
	q.Del("version_key")
	conn := *u
	conn.RawQuery = q.Encode()

	cfg := o.redis
	cfg.ConnectionURL = conn.String()
	client, err := ConnectRedis(ctx, cfg)
	if err != nil {
		return nil, err
	}

	src, err := NewRedisSource(client, key, versionKey)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	src.closer = client
	return src, nil
}
