/*
Starts a batch-scheduler simulation: loads a platform and a workload, opens
the EDC socket, runs the simulation to completion, and writes the trace/CSV
outputs.

For usage details, run batsim with the command line flag -h or --help.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/oar-team/batsim-sub001/internal/clog"
	"github.com/oar-team/batsim-sub001/internal/config"
	"github.com/oar-team/batsim-sub001/internal/edc"
	"github.com/oar-team/batsim-sub001/internal/execution"
	"github.com/oar-team/batsim-sub001/internal/jobs"
	"github.com/oar-team/batsim-sub001/internal/kernel"
	"github.com/oar-team/batsim-sub001/internal/orchestrator"
	"github.com/oar-team/batsim-sub001/internal/platform"
	"github.com/oar-team/batsim-sub001/internal/power"
	"github.com/oar-team/batsim-sub001/internal/simerr"
	"github.com/oar-team/batsim-sub001/internal/submitter"
	"github.com/oar-team/batsim-sub001/internal/trace"
	"github.com/oar-team/batsim-sub001/internal/workload"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "batsim: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Parse(args)
	if err != nil {
		return simerr.New(simerr.Configuration, err)
	}
	clog.SetLevel(cfg.Verbosity)

	pf, err := platform.Load(cfg.PlatformFile)
	if err != nil {
		return simerr.New(simerr.Configuration, err)
	}
	machineReg, err := platform.BuildRegistry(pf, cfg.MasterHost, false)
	if err != nil {
		return simerr.New(simerr.Configuration, err)
	}

	wl, err := workload.Load(cfg.WorkloadFile)
	if err != nil {
		return simerr.New(simerr.WorkloadInvalid, err)
	}

	listener, err := edc.ListenUnix(cfg.SocketPath)
	if err != nil {
		return simerr.New(simerr.TransportLoss, err)
	}
	defer listener.Close()

	runID := uuid.NewString()
	log := clog.New("server[%s] ", runID[:8])
	log.Infof("waiting for EDC to connect on %s", cfg.SocketPath)

	transport, err := edc.Accept(listener)
	if err != nil {
		return simerr.New(simerr.TransportLoss, err)
	}
	defer transport.Close()

	k := kernel.New()
	model := kernel.LinearTimingModel{FlopsPerSecond: 1e9, BytesPerSecond: 1e9}

	jobReg := jobs.NewRegistry()
	for _, j := range wl.Jobs {
		jobReg.Add(j)
	}

	exec := execution.New(k, machineReg, wl.Profiles, model, log)
	trans := power.New(k, machineReg, model, log)
	link := edc.New(k, transport, log)
	orch := orchestrator.New(k, machineReg, jobReg, exec, trans, link, log, false)

	g, ctx := errgroup.WithContext(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	result := make(chan error, 1)
	k.Spawn(func() {
		submitter.Run(k, wl.Arrivals)
		result <- orch.Run()
	})

	g.Go(func() error {
		select {
		case err := <-result:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	g.Go(func() error {
		select {
		case sig := <-sigCh:
			return fmt.Errorf("batsim: interrupted by signal %v", sig)
		case <-ctx.Done():
			return nil
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return simerr.New(simerr.InvariantViolation, err)
	}

	writer := trace.New(cfg.ExportPrefix)
	for _, j := range jobReg.All() {
		writer.RecordJob(j, j.Allocation.StringHyphen())
	}
	summary, err := writer.Flush(link.MicrosecondsUsed)
	if err != nil {
		return simerr.New(simerr.Configuration, err)
	}
	trace.PrintSummary(os.Stdout, summary)

	return nil
}
