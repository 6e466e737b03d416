package cloudapi

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/sre-norns/cloudapi/pkg/bark"
	"github.com/sre-norns/cloudapi/pkg/tags"
	"github.com/sre-norns/cloudapi/pkg/vmapi"
	"go.uber.org/zap"
)

const (
	DefaultPageSize        = 1000
	DefaultMaxPageSize     = 1000
	DefaultUpstreamTimeout = 10 * time.Second
)

var (
	ErrNoClient = errors.New("no VM API client provided")
	ErrNoCodec  = errors.New("no continuation token codec provided")
)

// Options tune the listing service.
type Options struct {
	Limits          bark.Limits
	UpstreamTimeout time.Duration
}

// DefaultOptions returns options used when none are configured.
func DefaultOptions() Options {
	return Options{
		Limits: bark.Limits{
			Default: DefaultPageSize,
			Max:     DefaultMaxPageSize,
		},
		UpstreamTimeout: DefaultUpstreamTimeout,
	}
}

// Service lists machines of an account.
// It holds no per-request state and is safe for concurrent use.
type Service struct {
	client  vmapi.Client
	codec   *TokenCodec
	log     *zap.Logger
	metrics *Metrics
	options Options
}

// NewService creates a listing service. Log and metrics are optional.
func NewService(client vmapi.Client, codec *TokenCodec, log *zap.Logger, metrics *Metrics, options Options) (*Service, error) {
	if client == nil {
		return nil, ErrNoClient
	}
	if codec == nil {
		return nil, ErrNoCodec
	}
	if log == nil {
		log = zap.NewNop()
	}

	defaults := DefaultOptions()
	if options.Limits.Default <= 0 {
		options.Limits.Default = defaults.Limits.Default
	}
	if options.Limits.Max <= 0 {
		options.Limits.Max = defaults.Limits.Max
	}
	if options.UpstreamTimeout <= 0 {
		options.UpstreamTimeout = defaults.UpstreamTimeout
	}

	return &Service{
		client:  client,
		codec:   codec,
		log:     log,
		metrics: metrics,
		options: options,
	}, nil
}

func fieldErrorsOf(err error) FieldErrors {
	var result FieldErrors
	errors.As(err, &result)
	return result
}

// ListMachines returns a page of machines of the account matching query parameters.
// Query parameters are checked before VM API is called; a request with invalid ones makes no calls.
// If ctx is canceled while waiting for VM API, ctx error is returned as is.
func (s *Service) ListMachines(ctx context.Context, account string, values url.Values) (Page, error) {
	query, parseErr := ParseListQuery(values)
	query.Account = account

	input, translateErr := Translate(query)
	if err := AsFieldErrorsOrNil(fieldErrorsOf(parseErr), fieldErrorsOf(translateErr)); err != nil {
		s.log.Debug("rejected listing query", zap.String("account", account), zap.Strings("fields", fieldErrorsOf(err).Fields()))
		return Page{}, NewError(InvalidFilter, err, "%v", err)
	}

	fingerprint := Fingerprint(input)
	req := PageRequest{
		Limit: s.options.Limits.Clamp(query.Limit),
	}
	if query.Offset != nil {
		req.Offset = *query.Offset
	}
	if values.Has(ParamToken) {
		cursor, err := s.codec.Decode(query.Token, fingerprint)
		if err != nil {
			return Page{}, err
		}
		req.After = &cursor
	}

	vms, err := s.fetch(ctx, input)
	if err != nil {
		return Page{}, err
	}

	machines := make([]Machine, 0, len(vms))
	for _, vm := range vms {
		if input.Tags != nil && !input.Tags.Matches(tags.FromValues(vm.Tags)) {
			continue
		}

		m, anomalies := ToMachine(vm, MapOptions{Credentials: query.Credentials})
		s.report(anomalies)
		machines = append(machines, m)
	}

	page := Paginate(machines, req, fingerprint)
	if page.Next != nil {
		token, err := s.codec.Encode(*page.Next)
		if err != nil {
			return Page{}, NewError(InternalError, err, "failed to issue continuation token")
		}
		page.NextToken = token
	}

	return page, nil
}

func (s *Service) fetch(ctx context.Context, input vmapi.ListVmsInput) ([]vmapi.Vm, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.options.UpstreamTimeout)
	defer cancel()

	start := time.Now()
	vms, err := s.client.ListVms(callCtx, input)

	outcome := outcomeOK
	switch {
	case err == nil:
	case ctx.Err() != nil:
		outcome = outcomeCanceled
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded):
		outcome = outcomeTimeout
	default:
		outcome = outcomeError
	}
	s.metrics.observeUpstream(outcome, time.Since(start))

	if err == nil {
		return vms, nil
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	s.log.Warn("VM API request failed",
		zap.String("owner_uuid", input.OwnerUUID),
		zap.String("outcome", outcome),
		zap.Duration("timeout", s.options.UpstreamTimeout),
		zap.Error(err),
	)

	message := "VM API is unavailable"
	if outcome == outcomeTimeout {
		message = fmt.Sprintf("VM API did not respond within %v", s.options.UpstreamTimeout)
	}
	return nil, NewError(UpstreamUnavailable, err, "%s", message)
}

func (s *Service) report(anomalies []Anomaly) {
	for _, a := range anomalies {
		s.log.Warn("VM record mapping anomaly",
			zap.String("vm_uuid", a.VM),
			zap.String("field", a.Field),
			zap.String("value", a.Value),
			zap.String("reason", a.Reason),
		)
		s.metrics.countAnomaly(a.Field)
	}
}
