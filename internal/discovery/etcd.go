// Package discovery announces this node in etcd under a leased key so that
// operators and load balancers can find live cache nodes.
package discovery

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

func NewClient(endpoints []string, dialTimeout time.Duration) (*clientv3.Client, error) {
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: dialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("etcd client %v: %w", endpoints, err)
	}
	return cli, nil
}

// NodeKey returns the registration key of id under prefix.
func NodeKey(prefix, id string) string {
	return path.Join("/", prefix, id)
}

// NodeID is the inverse of NodeKey.
func NodeID(prefix, key string) string {
	return strings.TrimPrefix(key, prefixDir(prefix))
}

// prefixDir is prefix as an absolute path with one trailing slash.
func prefixDir(prefix string) string {
	dir := path.Join("/", prefix)
	if dir != "/" {
		dir += "/"
	}
	return dir
}

// Registration is a node entry kept alive by a lease.
type Registration struct {
	cli    *clientv3.Client
	lease  clientv3.LeaseID
	key    string
	cancel context.CancelFunc
	log    *zap.Logger
}

// RegisterNode writes addr under NodeKey(prefix, id) with a ttl-second lease
// and keeps the lease alive until Deregister is called.
func RegisterNode(ctx context.Context, cli *clientv3.Client, prefix, id, addr string, ttl int64, log *zap.Logger) (*Registration, error) {
	if log == nil {
		log = zap.NewNop()
	}
	lease, err := cli.Grant(ctx, ttl)
	if err != nil {
		return nil, fmt.Errorf("grant lease: %w", err)
	}
	key := NodeKey(prefix, id)
	if _, err := cli.Put(ctx, key, addr, clientv3.WithLease(lease.ID)); err != nil {
		return nil, fmt.Errorf("put %s: %w", key, err)
	}

	kctx, cancel := context.WithCancel(context.Background())
	ch, err := cli.KeepAlive(kctx, lease.ID)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("keepalive: %w", err)
	}
	go func() {
		for range ch {
		}
		if kctx.Err() == nil {
			log.Warn("discovery.keepalive.lost", zap.String("key", key))
		}
	}()

	log.Info("discovery.registered", zap.String("key", key), zap.String("addr", addr), zap.Int64("lease", int64(lease.ID)))
	return &Registration{cli: cli, lease: lease.ID, key: key, cancel: cancel, log: log}, nil
}

func (r *Registration) Key() string { return r.key }

// Deregister stops the keep-alive and revokes the lease, deleting the key.
func (r *Registration) Deregister(ctx context.Context) error {
	r.cancel()
	if _, err := r.cli.Revoke(ctx, r.lease); err != nil {
		return fmt.Errorf("revoke lease: %w", err)
	}
	r.log.Info("discovery.deregistered", zap.String("key", r.key))
	return nil
}

// ListNodes returns id -> addr for every registered node.
func ListNodes(ctx context.Context, cli *clientv3.Client, prefix string) (map[string]string, error) {
	resp, err := cli.Get(ctx, prefixDir(prefix), clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	out := make(map[string]string, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		out[NodeID(prefix, string(kv.Key))] = string(kv.Value)
	}
	return out, nil
}
