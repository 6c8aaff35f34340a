// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package report

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/GermanBionicSystems/airnode/dht11"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

// fakeRedis records the commands used by the sink. Other methods of the
// embedded nil Cmdable panic.
type fakeRedis struct {
	redis.Cmdable
	published []string
	pushed    []string
	trimmed   []int64
	pushErr   error
}

func (f *fakeRedis) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	f.published = append(f.published, channel+" "+string(message.([]byte)))
	return redis.NewIntResult(1, nil)
}

func (f *fakeRedis) LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	if f.pushErr != nil {
		return redis.NewIntResult(0, f.pushErr)
	}
	for _, v := range values {
		f.pushed = append(f.pushed, key+" "+string(v.([]byte)))
	}
	return redis.NewIntResult(int64(len(f.pushed)), nil)
}

func (f *fakeRedis) LTrim(ctx context.Context, key string, start, stop int64) *redis.StatusCmd {
	f.trimmed = append(f.trimmed, start, stop)
	return redis.NewStatusResult("OK", nil)
}

func TestRedis_Send(t *testing.T) {
	f := &fakeRedis{}
	log, _ := test.NewNullLogger()
	r := newRedis(f, nil, RedisOpts{Channel: "air_data", ListKey: "air:node1:data"}, log)
	rec := sample
	rec.Time = time.UnixMilli(1000)
	if err := r.Send(context.Background(), rec); err != nil {
		t.Fatal(err)
	}
	data, _ := json.Marshal(rec)
	if len(f.published) != 1 || f.published[0] != "air_data "+string(data) {
		t.Fatalf("published %q", f.published)
	}
	if len(f.pushed) != 1 || f.pushed[0] != "air:node1:data "+string(data) {
		t.Fatalf("pushed %q", f.pushed)
	}
	if len(f.trimmed) != 2 || f.trimmed[0] != 0 || f.trimmed[1] != 999 {
		t.Fatalf("trimmed %v", f.trimmed)
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestRedis_listFailure(t *testing.T) {
	f := &fakeRedis{pushErr: errors.New("OOM")}
	log, hook := test.NewNullLogger()
	r := newRedis(f, nil, RedisOpts{Channel: "air_data", ListKey: "k", MaxLen: 10}, log)
	if err := r.Send(context.Background(), sample); err != nil {
		t.Fatalf("a list failure must not fail Send: %v", err)
	}
	if e := hook.LastEntry(); e == nil || e.Level != logrus.WarnLevel {
		t.Fatal("list failure must be logged")
	}
	if len(f.trimmed) != 0 {
		t.Fatal("no trim after failed push")
	}
}

func TestRedis_Fail(t *testing.T) {
	f := &fakeRedis{}
	log, _ := test.NewNullLogger()
	r := newRedis(f, nil, RedisOpts{Channel: "air_data"}, log)
	if err := r.Fail(context.Background(), dht11.ErrNoResponse); err != nil {
		t.Fatal(err)
	}
	if len(f.published) != 1 {
		t.Fatalf("published %q", f.published)
	}
	var msg failure
	if err := json.Unmarshal([]byte(f.published[0][len("air_data "):]), &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Error != dht11.ErrNoResponse.Error() {
		t.Fatalf("error %q", msg.Error)
	}
}

func TestNewRedis_fail(t *testing.T) {
	log, _ := test.NewNullLogger()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := NewRedis(ctx, RedisOpts{Addr: "127.0.0.1:1"}, log); err == nil {
		t.Fatal("expected connection error")
	}
}
