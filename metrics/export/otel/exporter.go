package otel

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	goReset "github.com/MrEthical07/goReset"
	"github.com/MrEthical07/goReset/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() goReset.MetricsSnapshot
	AuditDropped() uint64
	DeliveryDropped() uint64
}

// latencyGauges reports one histogram as a cumulative bucket gauge keyed by
// the "le" attribute plus a sample count gauge.
type latencyGauges struct {
	id      goReset.MetricID
	buckets metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
}

// OTelExporter observes engine metrics on every collection cycle of the
// supplied meter.
type OTelExporter struct {
	source       metricsSource
	registration metric.Registration

	counters     map[goReset.MetricID]metric.Int64ObservableCounter
	latency      []latencyGauges
	auditDropped metric.Int64ObservableCounter
	queueDropped metric.Int64ObservableCounter
}

// bucketLabels are the "le" attribute sets, +Inf last.
var bucketLabels = func() []attribute.Set {
	out := make([]attribute.Set, 0, len(internaldefs.HistogramUpperBounds)+1)
	for _, b := range internaldefs.HistogramUpperBounds {
		out = append(out, attribute.NewSet(attribute.String("le", strconv.FormatFloat(b, 'g', -1, 64))))
	}
	return append(out, attribute.NewSet(attribute.String("le", "+Inf")))
}()

func NewOTelExporter(meter metric.Meter, engine *goReset.Engine) (*OTelExporter, error) {
	return NewOTelExporterFromSource(meter, engine)
}

func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{
		source:   source,
		counters: make(map[goReset.MetricID]metric.Int64ObservableCounter, len(internaldefs.CounterDefs)),
	}
	var observables []metric.Observable

	counter := func(name, help string) (metric.Int64ObservableCounter, error) {
		ins, err := meter.Int64ObservableCounter(name, metric.WithDescription(help))
		if err != nil {
			return nil, fmt.Errorf("create observable counter %s: %w", name, err)
		}
		observables = append(observables, ins)
		return ins, nil
	}
	gauge := func(name, help string) (metric.Int64ObservableGauge, error) {
		ins, err := meter.Int64ObservableGauge(name, metric.WithDescription(help))
		if err != nil {
			return nil, fmt.Errorf("create observable gauge %s: %w", name, err)
		}
		observables = append(observables, ins)
		return ins, nil
	}

	var err error
	for _, def := range internaldefs.CounterDefs {
		if e.counters[def.ID], err = counter(def.Name, def.Help); err != nil {
			return nil, err
		}
	}
	for _, def := range internaldefs.HistogramDefs {
		g := latencyGauges{id: def.ID}
		if g.buckets, err = gauge(def.Name+"_bucket", def.Help+" Cumulative bucket counts."); err != nil {
			return nil, err
		}
		if g.count, err = gauge(def.Name+"_count", def.Help+" Sample count."); err != nil {
			return nil, err
		}
		e.latency = append(e.latency, g)
	}
	if e.auditDropped, err = counter(internaldefs.AuditDroppedName, internaldefs.AuditDroppedHelp); err != nil {
		return nil, err
	}
	if e.queueDropped, err = counter(internaldefs.DeliveryQueueDroppedName, internaldefs.DeliveryQueueDroppedHelp); err != nil {
		return nil, err
	}

	e.registration, err = meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return e, nil
}

func (e *OTelExporter) observe(_ context.Context, o metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()
	for id, ins := range e.counters {
		o.ObserveInt64(ins, int64(snapshot.Counters[id]))
	}
	for _, g := range e.latency {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[g.id]))
		for i, set := range bucketLabels {
			o.ObserveInt64(g.buckets, int64(cumulative[i]), metric.WithAttributeSet(set))
		}
		o.ObserveInt64(g.count, int64(cumulative[len(cumulative)-1]))
	}
	o.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
	o.ObserveInt64(e.queueDropped, int64(e.source.DeliveryDropped()))
	return nil
}

func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
