package config

import (
	"errors"
	"fmt"
	"time"
)

func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	switch c.StoreDriver {
	case StoreDriverMongo:
		if c.MongoURI == "" {
			return errors.New("MONGO_URI is required for the mongo store driver")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.StoreDriver)
	}
	if err := positive("ACCESS_TOKEN_TTL", c.AccessTTL); err != nil {
		return err
	}
	if err := positive("REFRESH_TOKEN_TTL", c.RefreshTTL); err != nil {
		return err
	}
	return positive("REQUEST_TIMEOUT", c.RequestTTL)
}

func positive(key string, value time.Duration) error {
	if value <= 0 {
		return fmt.Errorf("%s must be positive", key)
	}
	return nil
}
