package main

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/ryanuber/columnize"
	"github.com/spf13/cobra"

	"github.com/yanglinqiang/ignite"
)

type app struct {
	opts   globalOptions
	stdout io.Writer
	stderr io.Writer
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}
	root := &cobra.Command{
		Use:           "ignitectl",
		Short:         "Manage caches of an Apache Ignite cluster",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	a.opts.register(root.PersistentFlags())

	var withSizes bool
	cmdCaches := &cobra.Command{
		Use:   "caches",
		Short: "List cache names",
		Args:  cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, ig ignite.Ignite, _ []string) error {
			return a.listCaches(ctx, ig, withSizes)
		}),
	}
	cmdCaches.Flags().BoolVar(&withSizes, "sizes", false, "Print the number of entries of every cache")

	cmdCreate := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a cache",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, ig ignite.Ignite, args []string) error {
			c, err := ignite.CreateCache[string, any](ctx, ig, args[0])
			if err != nil {
				return err
			}
			defer closeQuietly(ctx, c)
			fmt.Fprintf(a.stdout, "created cache %s\n", c.Name())
			return nil
		}),
	}

	cmdDestroy := &cobra.Command{
		Use:   "destroy NAME",
		Short: "Destroy a cache and its entries",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, ig ignite.Ignite, args []string) error {
			if err := ig.DestroyCache(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "destroyed cache %s\n", args[0])
			return nil
		}),
	}

	cmdGet := &cobra.Command{
		Use:   "get CACHE KEY",
		Short: "Print the value of a key",
		Args:  cobra.ExactArgs(2),
		RunE: a.runOnCache(func(ctx context.Context, c ignite.Cache[string, any], args []string) error {
			v, ok, err := c.Get(ctx, args[1])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("key %q not found in cache %s", args[1], c.Name())
			}
			fmt.Fprintln(a.stdout, formatValue(v))
			return nil
		}),
	}

	var create bool
	cmdPut := &cobra.Command{
		Use:   "put CACHE KEY VALUE",
		Short: "Store a string value",
		Args:  cobra.ExactArgs(3),
		RunE: a.run(func(ctx context.Context, ig ignite.Ignite, args []string) error {
			acquire := ignite.GetCache[string, any]
			if create {
				acquire = ignite.GetOrCreateCache[string, any]
			}
			c, err := acquire(ctx, ig, args[0])
			if err != nil {
				return err
			}
			defer closeQuietly(ctx, c)
			return c.Put(ctx, args[1], args[2])
		}),
	}
	cmdPut.Flags().BoolVar(&create, "create", false, "Create the cache if it does not exist")

	cmdRemove := &cobra.Command{
		Use:   "remove CACHE KEY...",
		Short: "Remove keys",
		Args:  cobra.MinimumNArgs(2),
		RunE: a.runOnCache(func(ctx context.Context, c ignite.Cache[string, any], args []string) error {
			return c.RemoveAll(ctx, args[1:]...)
		}),
	}

	cmdSize := &cobra.Command{
		Use:   "size CACHE",
		Short: "Print the number of entries",
		Args:  cobra.ExactArgs(1),
		RunE: a.runOnCache(func(ctx context.Context, c ignite.Cache[string, any], _ []string) error {
			sz, err := c.Size(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, sz)
			return nil
		}),
	}

	cmdClear := &cobra.Command{
		Use:   "clear CACHE",
		Short: "Remove every entry of a cache",
		Args:  cobra.ExactArgs(1),
		RunE: a.runOnCache(func(ctx context.Context, c ignite.Cache[string, any], _ []string) error {
			return c.Clear(ctx)
		}),
	}

	root.AddCommand(cmdCaches, cmdCreate, cmdDestroy, cmdGet, cmdPut, cmdRemove, cmdSize, cmdClear)
	return root
}

// run connects before calling fn and disconnects after it.
func (a *app) run(fn func(ctx context.Context, ig ignite.Ignite, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		ig, err := a.opts.connect(ctx, cmd.Flags(), a.stderr)
		if err != nil {
			return err
		}
		defer func() {
			_ = ig.Close(ctx)
		}()
		return fn(ctx, ig, args)
	}
}

// runOnCache calls fn with the existing cache named by the first argument.
func (a *app) runOnCache(fn func(ctx context.Context, c ignite.Cache[string, any], args []string) error) func(cmd *cobra.Command, args []string) error {
	return a.run(func(ctx context.Context, ig ignite.Ignite, args []string) error {
		c, err := ignite.GetCache[string, any](ctx, ig, args[0])
		if err != nil {
			return err
		}
		defer closeQuietly(ctx, c)
		return fn(ctx, c, args)
	})
}

func (a *app) listCaches(ctx context.Context, ig ignite.Ignite, withSizes bool) error {
	names, err := ig.CacheNames(ctx)
	if err != nil {
		return err
	}
	sort.Strings(names)
	if !withSizes {
		for _, name := range names {
			fmt.Fprintln(a.stdout, name)
		}
		return nil
	}
	rows := []string{"NAME | SIZE"}
	for _, name := range names {
		c, err := ignite.GetCache[string, any](ctx, ig, name)
		if err != nil {
			return err
		}
		sz, err := c.Size(ctx)
		closeQuietly(ctx, c)
		if err != nil {
			return err
		}
		rows = append(rows, fmt.Sprintf("%s | %d", name, sz))
	}
	fmt.Fprintln(a.stdout, columnize.SimpleFormat(rows))
	return nil
}

func closeQuietly(ctx context.Context, c ignite.Cache[string, any]) {
	_ = c.Close(ctx)
}

func formatValue(v any) string {
	switch val := v.(type) {
	case []byte:
		return fmt.Sprintf("%x", val)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprintf("%v", val)
	}
}
