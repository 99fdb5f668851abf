package acp

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/acpsuite/settlebot/internal/domain"
)

// SimGateway replays a scripted buyer session against the job handler
// without a live gateway: open a position, swap a token, then close the
// position, each through both protocol phases. It exists so the agent can be
// demonstrated end to end from a single process.
type SimGateway struct {
	handler  JobHandler
	buyer    common.Address
	provider common.Address
	delay    time.Duration
	logger   *slog.Logger

	nextJobID uint64
}

// NewSimGateway creates a SimGateway driving the given handler. delay is the
// pause between consecutive callbacks, standing in for on-chain settlement
// time.
func NewSimGateway(handler JobHandler, buyer, provider common.Address, delay time.Duration, logger *slog.Logger) *SimGateway {
	return &SimGateway{
		handler:   handler,
		buyer:     buyer,
		provider:  provider,
		delay:     delay,
		logger:    logger.With(slog.String("component", "sim_gateway")),
		nextJobID: 1,
	}
}

// Run plays the scripted session, then blocks until the context is cancelled
// so operator-trigger prompts stay serviceable.
func (g *SimGateway) Run(ctx context.Context) error {
	openReq, _ := json.Marshal(domain.OpenPositionPayload{
		Symbol:     "ETH",
		Amount:     2,
		TakeProfit: domain.ThresholdConfig{Percentage: 10},
		StopLoss:   domain.ThresholdConfig{Percentage: 5},
	})
	swapReq, _ := json.Marshal(domain.SwapTokenPayload{
		FromSymbol:          "WETH",
		ToSymbol:            "VIRTUAL",
		Amount:              0.5,
		FromContractAddress: "0x4200000000000000000000000000000000000006",
		ToContractAddress:   "0x0b3e328455c4059eeb9e3f84b5543f74e24e7e1b",
	})
	closeReq, _ := json.Marshal(domain.ClosePositionPayload{Symbol: "ETH"})

	script := []struct {
		name        domain.JobName
		requirement json.RawMessage
	}{
		{domain.JobOpenPosition, openReq},
		{domain.JobSwapToken, swapReq},
		{domain.JobClosePosition, closeReq},
	}

	for _, step := range script {
		id := g.nextJobID
		g.nextJobID++

		for _, phase := range []domain.JobPhase{domain.PhaseRequest, domain.PhaseTransaction} {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(g.delay):
			}

			job := newSimJob(id, step.name, phase, step.requirement, g.buyer, g.provider, g.logger)
			if err := g.handler(ctx, job); err != nil {
				g.logger.Error("scripted job failed",
					slog.String("job_id", job.ID()),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	g.logger.Info("script complete, waiting for operator triggers")
	<-ctx.Done()
	return ctx.Err()
}

// simJob is an in-process ProtocolJob whose response actions only log what a
// live gateway would transmit.
type simJob struct {
	id          uint64
	name        domain.JobName
	phase       domain.JobPhase
	requirement json.RawMessage
	buyer       common.Address
	provider    common.Address
	logger      *slog.Logger
}

func newSimJob(id uint64, name domain.JobName, phase domain.JobPhase, req json.RawMessage, buyer, provider common.Address, logger *slog.Logger) *simJob {
	return &simJob{
		id:          id,
		name:        name,
		phase:       phase,
		requirement: req,
		buyer:       buyer,
		provider:    provider,
		logger:      logger,
	}
}

func (j *simJob) ID() string                      { return "sim-" + strconv.FormatUint(j.id, 10) }
func (j *simJob) Phase() domain.JobPhase          { return j.phase }
func (j *simJob) Name() domain.JobName            { return j.name }
func (j *simJob) ClientAddress() common.Address   { return j.buyer }
func (j *simJob) ProviderAddress() common.Address { return j.provider }
func (j *simJob) Requirement() json.RawMessage    { return j.requirement }

func (j *simJob) SignMemo(ctx context.Context, accept bool, message string) error {
	j.logger.Info("sim: memo signed",
		slog.Bool("accept", accept),
		slog.String("message", message),
	)
	return nil
}

func (j *simJob) Respond(ctx context.Context, accept bool, message string) error {
	j.logger.Info("sim: responded",
		slog.Bool("accept", accept),
		slog.String("message", message),
	)
	return nil
}

func (j *simJob) CreatePayableRequirement(ctx context.Context, message string, amount domain.Fare, recipient common.Address) error {
	j.logger.Info("sim: payable requirement",
		slog.String("message", message),
		slog.String("amount", amount.String()),
		slog.String("recipient", recipient.Hex()),
	)
	return nil
}

func (j *simJob) Deliver(ctx context.Context, message string) error {
	j.logger.Info("sim: delivered", slog.String("message", message))
	return nil
}

func (j *simJob) DeliverPayable(ctx context.Context, message string, amount domain.Fare) error {
	j.logger.Info("sim: payable delivered",
		slog.String("message", message),
		slog.String("amount", amount.String()),
	)
	return nil
}

func (j *simJob) CreatePayableNotification(ctx context.Context, message string, amount domain.Fare) error {
	j.logger.Info("sim: payable notification",
		slog.String("message", message),
		slog.String("amount", amount.String()),
	)
	return nil
}

var _ domain.ProtocolJob = (*simJob)(nil)
