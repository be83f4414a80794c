// Package resbridge exposes managed resources (processes, databases,
// in-memory stores) as named, typed attributes and notification lists behind
// one concurrency-safe connector facade.
//
// # Architecture
//
// resbridge is organised in layers:
//
// 1. Locked cells (pkg/cell): a value guarded by a reader/writer lock, read
// and mutated only through functions run under the lock.
//
// 2. Entity types (pkg/entity): each attribute bridges a back-end native type
// and a canonical wire type through a connector family's converter table.
// Arrays can be exposed as Index/Value row tables.
//
// 3. The connector facade (pkg/connector): an attribute registry and a
// notification registry, each in its own cell, calling a back-end's Hooks.
// Batch operations split one timeout budget across their items.
//
// 4. Connectors (pkg/connectors/...): memory, process (gopsutil) and
// sqlquery (database/sql with pgx, MySQL and SQLite drivers). Each registers
// itself with pkg/connector/registry from init.
//
// # Quick Start
//
//	import (
//	    "context"
//	    "time"
//
//	    "github.com/ajitpratap0/resbridge/pkg/config"
//	    "github.com/ajitpratap0/resbridge/pkg/connector/registry"
//	    _ "github.com/ajitpratap0/resbridge/pkg/connectors/process"
//	)
//
//	cfg := config.NewBaseConfig("self", "process")
//	cfg.Attributes = []config.AttributeConfig{{ID: "rss", Name: "rss_bytes"}}
//
//	c, err := registry.Create(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close(ctx)
//
//	rss, err := c.GetAttribute(ctx, "rss", time.Second, nil)
//
// # Command Line
//
// cmd/resbridge drives any configured connector from the shell:
//
//	resbridge --config orders.yaml read --all
//	resbridge --config orders.yaml write limit=20
//	resbridge --config orders.yaml watch alarms
//	resbridge --config orders.yaml serve --metrics-addr :9464
//
// # Observability
//
// Logging uses zap, metrics are Prometheus collectors registered with
// promauto, and every facade call runs in an OpenTelemetry span.
package resbridge
