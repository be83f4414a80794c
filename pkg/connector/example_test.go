package connector_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/resbridge/pkg/config"
	"github.com/ajitpratap0/resbridge/pkg/connector"
	"github.com/ajitpratap0/resbridge/pkg/connector/registry"
	"github.com/ajitpratap0/resbridge/pkg/connectors/memory"
)

// Example builds a memory connector from configuration, writes an attribute
// and observes the change notification.
func Example() {
	ctx := context.Background()

	cfg := config.NewBaseConfig("demo", "memory")
	cfg.Attributes = []config.AttributeConfig{
		{ID: "speed", Options: map[string]string{"type": "int64", "initial": "10"}},
	}
	cfg.Lists = []config.NotificationConfig{{ListID: "changes", Category: memory.ChangeCategory}}

	c, err := registry.Create(ctx, cfg, connector.WithLogger(zap.NewNop()))
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close(ctx)

	if _, err := c.Subscribe(ctx, "changes", connector.ListenerFunc(func(n connector.Notification) {
		ch := n.Data.(memory.Change)
		fmt.Printf("%s: %v -> %v\n", ch.Attribute, ch.Old, ch.New)
	})); err != nil {
		log.Fatal(err)
	}

	if _, err := c.SetAttribute(ctx, "speed", time.Second, "25"); err != nil {
		log.Fatal(err)
	}
	v, err := c.GetAttribute(ctx, "speed", time.Second, nil)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(v)

	// Output:
	// speed: 10 -> 25
	// 25
}

// ExampleConnector_Close shows that a closed connector rejects every call.
func ExampleConnector_Close() {
	ctx := context.Background()
	c, err := registry.Create(ctx, config.NewBaseConfig("demo", "memory"), connector.WithLogger(zap.NewNop()))
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(c.Close(ctx) == nil)
	_, err = c.GetAttribute(ctx, "speed", time.Second, nil)
	fmt.Println(err != nil, c.IsClosed())

	// Output:
	// true
	// true true
}
