package config_test

import (
	"fmt"
	"log"

	"github.com/ajitpratap0/resbridge/pkg/config"
)

// ExampleNewBaseConfig demonstrates creating a new base configuration
// with default values.
func ExampleNewBaseConfig() {
	cfg := config.NewBaseConfig("host", "process")

	fmt.Printf("Read Timeout: %s\n", cfg.Timeouts.Read)
	fmt.Printf("Action Timeout: %s\n", cfg.Timeouts.Action)
	fmt.Printf("Sequence: %s\n", cfg.Notifications.Sequence)

	// Output:
	// Read Timeout: 5s
	// Action Timeout: 30s
	// Sequence: global
}

// ExampleParse shows loading YAML content with defaults applied afterwards.
func ExampleParse() {
	yaml := []byte(`
name: demo
type: memory
timeouts:
  read: 250ms
attributes:
  - id: greeting
    options:
      initial: hello
`)

	var cfg config.BaseConfig
	if err := config.Parse(yaml, &cfg); err != nil {
		log.Fatal(err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	fmt.Println(cfg.Timeouts.Read, cfg.Timeouts.Write)
	fmt.Println(cfg.Attributes[0].AttributeName(), cfg.Attributes[0].Options["initial"])

	// Output:
	// 250ms 5s
	// greeting hello
}
