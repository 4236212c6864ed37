package mongo

import "time"

// Options configures the MongoDB client.
type Options struct {
	URI            string
	Database       string
	MaxPoolSize    uint64
	ConnectTimeout time.Duration
}

type Option func(*Options)

// WithURI sets the connection string.
func WithURI(uri string) Option {
	return func(o *Options) {
		if uri != "" {
			o.URI = uri
		}
	}
}

// WithDatabase selects the database holding the collections.
func WithDatabase(name string) Option {
	return func(o *Options) {
		if name != "" {
			o.Database = name
		}
	}
}

// WithMaxPoolSize bounds the driver connection pool.
func WithMaxPoolSize(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.MaxPoolSize = uint64(n)
		}
	}
}

// WithConnectTimeout bounds the initial ping.
func WithConnectTimeout(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.ConnectTimeout = d
		}
	}
}

func defaultOptions() Options {
	return Options{
		Database:       "emergency_db",
		MaxPoolSize:    50,
		ConnectTimeout: 5 * time.Second,
	}
}
