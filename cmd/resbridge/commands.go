package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"runtime"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/resbridge/pkg/connector"
	"github.com/ajitpratap0/resbridge/pkg/connector/registry"
	"github.com/ajitpratap0/resbridge/pkg/logger"
)

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "resbridge v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

func typesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List the connector types compiled into this binary",
		Run: func(cmd *cobra.Command, _ []string) {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TYPE\tVERSION\tCAPABILITIES\tDESCRIPTION")
			for _, info := range registry.ListConnectorInfo() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", info.Name, info.Version, strings.Join(info.Capabilities, ","), info.Description)
			}
			_ = w.Flush()
		},
	}
}

func (a *app) listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the configured attributes and notification lists",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			c, _, cleanup, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			attrs, err := c.ListRegisteredAttributes()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ATTRIBUTE\tNAME\tNAMESPACE\tACCESS\tTYPE")
			for _, id := range sortedIDs(attrs) {
				md := attrs[id]
				typ := "?"
				if et, err := md.Type(); err == nil {
					typ = et.String()
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", id, md.Name(), md.Namespace(), access(md), typ)
			}
			_ = w.Flush()

			lists, err := c.ListNotifications()
			if err != nil {
				return err
			}
			if len(lists) == 0 {
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout())
			w = tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "LIST\tCATEGORY\tLISTENERS\tDESCRIPTION")
			for _, id := range lists {
				md, err := c.GetNotificationInfo(id)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", id, md.Category(), md.ListenerCount(), md.Description())
			}
			return w.Flush()
		},
	}
}

func access(md *connector.AttributeMetadata) string {
	switch {
	case md.CanRead() && md.CanWrite():
		return "rw"
	case md.CanRead():
		return "r"
	case md.CanWrite():
		return "w"
	}
	return "-"
}

func sortedIDs(attrs map[string]*connector.AttributeMetadata) []string {
	ids := make([]string, 0, len(attrs))
	for id := range attrs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (a *app) readCommand() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "read [ids...]",
		Short: "Read attributes and print them as JSON",
		Long: `Read attributes in one batch and print them as a JSON object keyed by id.
Values are rendered in their attribute's wire type. The command fails when a
requested attribute could not be read.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return fmt.Errorf("name at least one attribute or pass --all")
			}
			ctx := cmd.Context()
			c, cfg, cleanup, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			values := map[string]any{}
			var read []string
			if all {
				values, err = c.Snapshot(ctx, cfg.Timeouts.Read)
				if err != nil {
					return err
				}
			} else {
				read, err = c.GetAttributes(ctx, args, values, cfg.Timeouts.Read)
				if err != nil {
					return err
				}
			}

			if err := printJSON(cmd, wireValues(c, values)); err != nil {
				return err
			}
			if missing := difference(args, read); !all && len(missing) > 0 {
				return fmt.Errorf("attributes not read: %s", strings.Join(missing, ", "))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Read every readable attribute")
	return cmd
}

func difference(want, got []string) []string {
	seen := make(map[string]bool, len(got))
	for _, id := range got {
		seen[id] = true
	}
	var missing []string
	for _, id := range want {
		if !seen[id] {
			missing = append(missing, id)
		}
	}
	return missing
}

func (a *app) writeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "write id=value...",
		Short: "Write attributes in one batch",
		Long: `Write attributes in one batch. Every pair is attempted; the command fails
when any write does.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parsePairs(args)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			c, cfg, cleanup, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			ok, err := c.SetAttributes(ctx, values, cfg.Timeouts.Write)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("one or more writes failed")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d attributes\n", len(values))
			return nil
		},
	}
}

func (a *app) invokeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "invoke action [key=value...]",
		Short: "Invoke a connector action",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parsePairs(args[1:])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			c, cfg, cleanup, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := c.InvokeAction(ctx, args[0], params, cfg.Timeouts.Action)
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}
}

func parsePairs(args []string) (map[string]any, error) {
	values := make(map[string]any, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("expected key=value, got %q", arg)
		}
		values[k] = v
	}
	return values, nil
}

func (a *app) watchCommand() *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "watch listID",
		Short: "Print notifications of a list as JSON lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			c, _, cleanup, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			events := make(chan connector.Notification, 64)
			id, err := c.Subscribe(ctx, args[0], connector.ListenerFunc(func(n connector.Notification) {
				select {
				case events <- n:
				default:
					logger.Warn("watch output is behind, dropping notification", zap.Uint64("sequence", n.Sequence))
				}
			}))
			if err != nil {
				return err
			}
			defer func() { _, _ = c.Unsubscribe(context.Background(), id) }()

			enc := gojson.NewEncoder(cmd.OutOrStdout())
			for seen := 0; count <= 0 || seen < count; seen++ {
				select {
				case <-ctx.Done():
					return nil
				case n := <-events:
					if err := enc.Encode(n); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&count, "count", 0, "Exit after this many notifications (0 waits for a signal)")
	return cmd
}

func (a *app) serveCommand() *cobra.Command {
	var (
		addr     string
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve Prometheus metrics while sampling every attribute",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if interval <= 0 {
				return fmt.Errorf("--interval must be positive, got %s", interval)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			c, cfg, cleanup, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			if addr == "" {
				addr = cfg.Metrics.Address
			}
			mux := http.NewServeMux()
			mux.Handle(cfg.Metrics.Path, promhttp.Handler())
			srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
			log := logger.Get().With(zap.String("component", "serve"), zap.String("addr", addr))

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				log.Info("serving metrics", zap.String("path", cfg.Metrics.Path))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			g.Go(func() error {
				ticker := time.NewTicker(interval)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return nil
					case <-ticker.C:
						values, err := c.Snapshot(ctx, cfg.Timeouts.Read)
						if err != nil {
							return err
						}
						log.Debug("sampled attributes", zap.Int("count", len(values)))
					}
				}
			})
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&addr, "metrics-addr", "", "Listen address (defaults to metrics.address from the configuration)")
	cmd.Flags().DurationVar(&interval, "interval", 15*time.Second, "How often every attribute is sampled")
	return cmd
}

// wireValues renders each value in its attribute's wire type, falling back to
// the native value when no conversion applies.
func wireValues(c *connector.Connector, values map[string]any) map[string]any {
	out := make(map[string]any, len(values))
	for id, v := range values {
		out[id] = v
		md, err := c.GetAttributeInfo(id)
		if err != nil || v == nil {
			continue
		}
		et, err := md.Type()
		if err != nil {
			continue
		}
		if w, err := et.ConvertTo(v, et.Type()); err == nil {
			out[id] = w
		}
	}
	return out
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := gojson.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}
