package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/banshee-data/dragtree/internal/api"
	"github.com/banshee-data/dragtree/internal/db"
	"github.com/banshee-data/dragtree/internal/httputil"
)

func runSubcommand(name string, args []string) error {
	switch name {
	case "migrate":
		return db.RunMigrateCommand(args, *dbPath, os.Stdout)
	case "ctl":
		return runCtl(args, httputil.NewStandardClient(nil), os.Stdout)
	case "help":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown command: %s", name)
	}
}

// runCtl sends one command to a running controller.
func runCtl(args []string, hc httputil.HTTPClient, out io.Writer) error {
	fs := flag.NewFlagSet("ctl", flag.ContinueOnError)
	fs.SetOutput(out)
	addr := fs.String("addr", "http://localhost:8080", "Controller base URL")
	timeout := fs.Duration("timeout", 5*time.Second, "Request timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: dragtree ctl [--addr URL] start|reset|status|press <lane>")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	c := api.NewClient(hc, *addr)

	switch cmd := fs.Arg(0); cmd {
	case "start":
		if err := c.Start(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "race started")
	case "reset":
		if err := c.Reset(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "race reset")
	case "press":
		if fs.NArg() < 2 {
			return fmt.Errorf("usage: dragtree ctl press <lane>")
		}
		laneID, err := strconv.Atoi(fs.Arg(1))
		if err != nil {
			return fmt.Errorf("invalid lane %q", fs.Arg(1))
		}
		if err := c.Press(ctx, laneID); err != nil {
			return err
		}
		fmt.Fprintf(out, "lane %d button pressed\n", laneID)
	case "status":
		s, err := c.Status(ctx)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	default:
		return fmt.Errorf("unknown ctl command: %s", cmd)
	}
	return nil
}
