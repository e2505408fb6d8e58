package app

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/talkgrid/waplane/internal/domain"
	"github.com/talkgrid/waplane/internal/engine"
	"github.com/talkgrid/waplane/pkg/metrics"
	"go.uber.org/zap"
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

func (a *Application) initJob() {
	loc, _ := time.LoadLocation(a.appConfig.System.Location)
	a.sched = cron.New(cron.WithLocation(loc), cron.WithParser(cronParser))

	if spec := a.appConfig.Job.NodeProbeInterval; spec != "" {
		_, err := a.sched.AddFunc(spec, func() {
			a.ProbeNodes(context.Background())
		})
		if err != nil {
			zap.S().Errorf("init job error %s", err.Error())
		}
	}

	a.sched.Start()
}

// StartBackgroundJobs is a Start hook for callers that defer job startup.
func (a *Application) StartBackgroundJobs(ctx context.Context) {
	a.ProbeNodes(ctx)
}

// pingEngine is swappable in tests.
var pingEngine = func(ctx context.Context, addr string) error {
	cli, err := engine.New(addr)
	if err != nil {
		return err
	}
	return cli.Ping(ctx)
}

// ProbeNodes pings every node's engine API and records status and latency.
// Unreachable nodes stay in the registry; placement keeps working off the
// recorded status.
func (a *Application) ProbeNodes(ctx context.Context) {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()

	nodes, err := a.registry.Nodes.List(ctx)
	if err != nil {
		zap.L().Error("node probe: list failed", zap.Error(err))
		return
	}
	for i := range nodes {
		node := &nodes[i]
		start := time.Now()
		err := pingEngine(ctx, node.EngineAddr)
		latency := int(time.Since(start).Milliseconds())

		status := domain.NodeStatusOK
		if err != nil {
			status = domain.NodeStatusUnreachable
			latency = 0
			zap.L().Warn("node probe failed",
				zap.String("node", node.Name),
				zap.String("engine_addr", node.EngineAddr),
				zap.Error(err))
		}
		metrics.NodeProbes.WithLabelValues(status).Inc()
		if err := a.registry.Nodes.UpdateProbe(ctx, node.ID, status, latency); err != nil {
			zap.L().Error("node probe: update failed",
				zap.Int64("node_id", node.ID), zap.Error(err))
		}
	}
}
