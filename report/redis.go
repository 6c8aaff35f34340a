// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package report

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisOpts configures a Redis sink.
type RedisOpts struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
	// Channel receives every Record as JSON through Pub/Sub.
	Channel string
	// ListKey keeps the last MaxLen records. Empty disables the list.
	ListKey string
	MaxLen  int64
}

// Redis is a Sink publishing Records as JSON.
type Redis struct {
	client redis.Cmdable
	close  func() error
	opts   RedisOpts
	log    logrus.FieldLogger
}

// NewRedis connects to the server and checks it with a PING.
func NewRedis(ctx context.Context, opts RedisOpts, log logrus.FieldLogger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
		PoolSize: opts.PoolSize,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("report: connecting to redis %s: %w", opts.Addr, err)
	}
	log.WithField("addr", opts.Addr).Info("redis connected")
	return newRedis(client, client.Close, opts, log), nil
}

func newRedis(client redis.Cmdable, closer func() error, opts RedisOpts, log logrus.FieldLogger) *Redis {
	if opts.MaxLen <= 0 {
		opts.MaxLen = 1000
	}
	return &Redis{client: client, close: closer, opts: opts, log: log}
}

// Send implements Sink.
func (r *Redis) Send(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("report: encoding record: %w", err)
	}
	if err := r.client.Publish(ctx, r.opts.Channel, data).Err(); err != nil {
		return fmt.Errorf("report: publishing record: %w", err)
	}
	if r.opts.ListKey == "" {
		return nil
	}
	if err := r.client.LPush(ctx, r.opts.ListKey, data).Err(); err != nil {
		r.log.Warnf("report: saving record to list: %v", err)
		return nil
	}
	if err := r.client.LTrim(ctx, r.opts.ListKey, 0, r.opts.MaxLen-1).Err(); err != nil {
		r.log.Warnf("report: trimming list: %v", err)
	}
	return nil
}

type failure struct {
	Error     string `json:"error"`
	Timestamp int64  `json:"timestamp"`
}

// Fail implements Sink. It publishes the error on the channel only.
func (r *Redis) Fail(ctx context.Context, err error) error {
	data, jerr := json.Marshal(failure{Error: err.Error(), Timestamp: time.Now().UnixMilli()})
	if jerr != nil {
		return jerr
	}
	return r.client.Publish(ctx, r.opts.Channel, data).Err()
}

// Close implements Sink.
func (r *Redis) Close() error {
	if r.close == nil {
		return nil
	}
	return r.close()
}

var _ Sink = &Redis{}
