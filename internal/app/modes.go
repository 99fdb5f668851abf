package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/acpsuite/settlebot/internal/acp"
	"github.com/acpsuite/settlebot/internal/dispatch"
	"github.com/acpsuite/settlebot/internal/trigger"
)

// buildPipeline assembles the dispatcher and trigger flow shared by both
// modes: jobs go to the dispatcher, settled opens feed the trigger flow, and
// settlement events fan out to the notifier.
func (a *App) buildPipeline(deps *Dependencies) (*dispatch.Dispatcher, *trigger.Flow, error) {
	source, err := a.triggerSource(deps)
	if err != nil {
		return nil, nil, err
	}

	flow := trigger.NewFlow(deps.Ledger, source, deps.Base, a.logger)
	flow.SetNotifier(deps.Notifier)

	d := dispatch.New(deps.Ledger, deps.Fares, deps.Quoter, deps.Base, deps.LockManager, a.logger)
	d.SetOpenedListener(flow)
	d.SetNotifier(deps.Notifier)

	return d, flow, nil
}

// triggerSource selects where operator decisions come from.
func (a *App) triggerSource(deps *Dependencies) (trigger.Source, error) {
	switch strings.ToLower(a.cfg.Trigger.Source) {
	case "console":
		return trigger.NewConsoleSource(os.Stdin, os.Stdout), nil
	case "redis":
		if deps.SignalBus == nil {
			return nil, fmt.Errorf("app: trigger source %q requires redis", a.cfg.Trigger.Source)
		}
		return trigger.NewBusSource(deps.SignalBus), nil
	default:
		return nil, fmt.Errorf("app: unknown trigger source %q", a.cfg.Trigger.Source)
	}
}

// ServeMode connects to the live gateway and settles jobs until the context is
// cancelled.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode",
		slog.String("gateway", a.cfg.ACP.GatewayURL),
	)

	d, flow, err := a.buildPipeline(deps)
	if err != nil {
		return err
	}

	client := acp.NewClient(a.cfg.ACP.GatewayURL, a.cfg.ACP.EntityID, deps.Signer, a.logger)
	client.OnJob(d.HandleJob)

	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("app: connect gateway: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return flow.Run(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		return client.Close()
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// SimulateMode drives the dispatcher from the scripted in-process gateway, so
// the whole settlement flow can be exercised without gateway credentials.
func (a *App) SimulateMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting simulate mode")

	d, flow, err := a.buildPipeline(deps)
	if err != nil {
		return err
	}

	gw := acp.NewSimGateway(
		d.HandleJob,
		common.HexToAddress(a.cfg.Sim.BuyerAddress),
		common.HexToAddress(a.cfg.Sim.ProviderAddress),
		a.cfg.Sim.StepDelay.Duration,
		a.logger,
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return flow.Run(ctx)
	})
	g.Go(func() error {
		return gw.Run(ctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
