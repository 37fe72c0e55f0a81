package tracing

import (
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/AnnixInvestments/annix-sub017/config"
)

const flushTimeout = 10 * time.Second

// Tracer records distribution work as New Relic transactions. Every method accepts a nil
// transaction so callers never branch on whether tracing is on.
type Tracer interface {
	StartTransaction(name string) *newrelic.Transaction
	StartSpan(name string, txn *newrelic.Transaction) *newrelic.Segment
	EndTransaction(txn *newrelic.Transaction)
	RecordError(txn *newrelic.Transaction, err error)
	AddAttribute(txn *newrelic.Transaction, key string, value interface{})
	Application() *newrelic.Application
	Close()
}

// NewRelicTracer is the agent backed Tracer. The zero value traces nothing.
type NewRelicTracer struct {
	app *newrelic.Application
}

// NewTracer connects the agent, or returns the zero value tracer when no license key is set
func NewTracer(cfg config.TracingConfig) (Tracer, error) {
	if cfg.LicenseKey == "" {
		log.Warn().Msg("Tracing disabled: no New Relic license key configured")
		return &NewRelicTracer{}, nil
	}

	app, err := newrelic.NewApplication(
		newrelic.ConfigAppName(cfg.AppName),
		newrelic.ConfigLicense(cfg.LicenseKey),
		newrelic.ConfigDistributedTracerEnabled(cfg.DistribTracing),
		newrelic.ConfigAppLogForwardingEnabled(cfg.LogEnabled),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to start New Relic agent for %q", cfg.AppName)
	}
	log.Info().Str("app_name", cfg.AppName).Msg("New Relic tracing enabled")
	return &NewRelicTracer{app: app}, nil
}

// Run wraps fn in a named transaction and notices the error it returns
func Run(t Tracer, name string, fn func(txn *newrelic.Transaction) error) error {
	txn := t.StartTransaction(name)
	defer t.EndTransaction(txn)
	err := fn(txn)
	t.RecordError(txn, err)
	return err
}

func (t *NewRelicTracer) StartTransaction(name string) *newrelic.Transaction {
	if t.app == nil {
		return nil
	}
	return t.app.StartTransaction(name)
}

// StartSpan opens a segment; without a transaction it returns a detached segment whose End
// does nothing
func (t *NewRelicTracer) StartSpan(name string, txn *newrelic.Transaction) *newrelic.Segment {
	if txn == nil {
		return &newrelic.Segment{}
	}
	return txn.StartSegment(name)
}

func (t *NewRelicTracer) EndTransaction(txn *newrelic.Transaction) {
	if txn != nil {
		txn.End()
	}
}

func (t *NewRelicTracer) RecordError(txn *newrelic.Transaction, err error) {
	if txn != nil && err != nil {
		txn.NoticeError(err)
	}
}

func (t *NewRelicTracer) AddAttribute(txn *newrelic.Transaction, key string, value interface{}) {
	if txn != nil {
		txn.AddAttribute(key, value)
	}
}

// Application is handed to the gin middleware; nil when tracing is off
func (t *NewRelicTracer) Application() *newrelic.Application {
	return t.app
}

// Close flushes buffered transactions before exit
func (t *NewRelicTracer) Close() {
	if t.app == nil {
		return
	}
	t.app.Shutdown(flushTimeout)
	log.Info().Msg("New Relic agent flushed")
}
