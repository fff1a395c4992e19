// Command threadlog analyzes task logs written by threadpool.LoggingPool.
//
//	threadlog stats log.txt
//	threadlog activity -dt 0.1 [-t0 0] [-t1 2.5] [-workers 4] log.txt
//	threadlog jobs log.txt
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	lg "github.com/Andrej220/go-utils/zlog"

	"github.com/azargarov/threadpool"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		lg.FromContext(context.Background()).Error("threadlog failed", lg.Any("error", err))
		fmt.Fprintln(os.Stderr, "threadlog:", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: threadlog <stats|activity|jobs> [flags] <log>")
	}
	cmd, args := args[0], args[1:]

	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	dt := fs.Float64("dt", 0.1, "activity sampling step in seconds")
	t0 := fs.Float64("t0", 0, "first sample time")
	t1 := fs.Float64("t1", 0, "last sample time (0 = last stop)")
	workers := fs.Int("workers", 0, "number of worker columns (0 = from log)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%s: expected exactly one log file, got %d", cmd, fs.NArg())
	}

	log, err := threadpool.ReadLogFile(fs.Arg(0))
	if err != nil {
		return err
	}

	switch cmd {
	case "stats":
		return threadpool.WriteStats(out, threadpool.ComputeStats(log))
	case "activity":
		a, err := threadpool.ComputeActivity(log, *dt, threadpool.ActivityOptions{
			T0:      *t0,
			T1:      *t1,
			Workers: *workers,
		})
		if err != nil {
			return err
		}
		return threadpool.WriteActivity(out, a)
	case "jobs":
		for _, w := range log.Workers() {
			for _, j := range log[w] {
				if _, err := fmt.Fprintf(out, "%d\t%d\t%.6f\t%.6f\t%.6f\n", w, j.ID, j.Start, j.Stop, j.Duration()); err != nil {
					return err
				}
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}
