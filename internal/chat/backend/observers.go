package backend

import (
	"context"
	"time"

	logx "github.com/Chative-core-poc-v1/sqlchat/pkg/logger"
)

// CallInfo describes one backend request.
type CallInfo struct {
	Endpoint  Endpoint
	URL       string
	RequestID string
	Started   time.Time
}

// Observer receives lifecycle callbacks around every backend request.
// Any callback may be nil.
type Observer struct {
	OnStart func(ctx context.Context, info *CallInfo) context.Context
	OnEnd   func(ctx context.Context, info *CallInfo, status int)
	OnError func(ctx context.Context, info *CallInfo, err error)
}

func (o *Observer) start(ctx context.Context, info *CallInfo) context.Context {
	if o == nil || o.OnStart == nil {
		return ctx
	}
	return o.OnStart(ctx, info)
}

func (o *Observer) end(ctx context.Context, info *CallInfo, status int) {
	if o != nil && o.OnEnd != nil {
		o.OnEnd(ctx, info, status)
	}
}

func (o *Observer) fail(ctx context.Context, info *CallInfo, err error) {
	if o != nil && o.OnError != nil {
		o.OnError(ctx, info, err)
	}
}

// NewLogObserver logs request start, completion and failure with latency.
func NewLogObserver() *Observer {
	return &Observer{
		OnStart: func(ctx context.Context, info *CallInfo) context.Context {
			logx.Debug().
				Str("component", "backend").
				Str("endpoint", string(info.Endpoint)).
				Str("request_id", info.RequestID).
				Msg("request start")
			return ctx
		},
		OnEnd: func(ctx context.Context, info *CallInfo, status int) {
			logx.Debug().
				Str("component", "backend").
				Str("endpoint", string(info.Endpoint)).
				Str("request_id", info.RequestID).
				Int("status", status).
				Dur("latency", time.Since(info.Started)).
				Msg("request end")
		},
		OnError: func(ctx context.Context, info *CallInfo, err error) {
			logx.Warn().
				Err(err).
				Str("component", "backend").
				Str("endpoint", string(info.Endpoint)).
				Str("request_id", info.RequestID).
				Dur("latency", time.Since(info.Started)).
				Msg("request failed")
		},
	}
}
