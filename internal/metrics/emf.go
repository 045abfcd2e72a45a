// Package metrics emits custom metrics as Embedded Metrics Format (EMF) JSON
// lines. Each Recorder produces one line per Flush on the configured output,
// which a log shipper can turn into CloudWatch metrics or which can simply be
// grepped locally.
//
// See: https://docs.aws.amazon.com/AmazonCloudWatch/latest/monitoring/CloudWatch_Embedded_Metric_Format_Specification.html
package metrics

import (
	"encoding/json"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Namespace is the metric namespace for all sketch-render metrics.
const Namespace = "SketchRender"

// Standard CloudWatch metric units.
const (
	UnitMilliseconds = "Milliseconds"
	UnitCount        = "Count"
	UnitBytes        = "Bytes"
	UnitNone         = "None"
)

// metricDef holds the name and unit for a single metric.
type metricDef struct {
	Name string `json:"Name"`
	Unit string `json:"Unit"`
}

// emfDirective is the _aws metadata block required by EMF.
type emfDirective struct {
	Timestamp         int64      `json:"Timestamp"`
	CloudWatchMetrics []cwMetric `json:"CloudWatchMetrics"`
}

// cwMetric defines a metric namespace, dimensions, and metric definitions.
type cwMetric struct {
	Namespace  string      `json:"Namespace"`
	Dimensions [][]string  `json:"Dimensions"`
	Metrics    []metricDef `json:"Metrics"`
}

// Recorder accumulates dimensions, metrics, and properties for a single EMF flush.
// It is NOT safe for concurrent use from multiple goroutines; create one per operation.
type Recorder struct {
	namespace  string
	dimensions map[string]string
	metrics    map[string]metricDef
	values     map[string]any
	properties map[string]any
}

var (
	outMu   sync.Mutex
	out     io.Writer = io.Discard
	service string
)

// SetOutput directs flushed documents to w. Metrics are discarded until this
// is called.
func SetOutput(w io.Writer) {
	outMu.Lock()
	defer outMu.Unlock()
	if w == nil {
		w = io.Discard
	}
	out = w
}

// SetService sets the Service dimension added to every new Recorder.
func SetService(name string) {
	outMu.Lock()
	defer outMu.Unlock()
	service = name
}

// New creates a new Recorder with the given namespace. It adds the Service
// dimension when one is configured.
func New(namespace string) *Recorder {
	r := &Recorder{
		namespace:  namespace,
		dimensions: make(map[string]string),
		metrics:    make(map[string]metricDef),
		values:     make(map[string]any),
		properties: make(map[string]any),
	}
	outMu.Lock()
	if service != "" {
		r.dimensions["Service"] = service
	}
	outMu.Unlock()
	return r
}

// Dimension adds a dimension key-value pair.
func (r *Recorder) Dimension(key, value string) *Recorder {
	r.dimensions[key] = value
	return r
}

// Metric records a named metric value with a unit.
// Use the Unit* constants (UnitMilliseconds, UnitCount, UnitBytes, UnitNone).
func (r *Recorder) Metric(name string, value float64, unit string) *Recorder {
	r.metrics[name] = metricDef{Name: name, Unit: unit}
	r.values[name] = value
	return r
}

// Count is a convenience for recording a count metric (value = 1).
func (r *Recorder) Count(name string) *Recorder {
	return r.Metric(name, 1, UnitCount)
}

// Property adds a non-metric field to the document.
func (r *Recorder) Property(key string, value any) *Recorder {
	r.properties[key] = value
	return r
}

// Flush serializes the document as a single JSON line.
// After flushing, the Recorder should not be reused.
func (r *Recorder) Flush() {
	if len(r.metrics) == 0 {
		return
	}

	doc := make(map[string]any)

	names := make([]string, 0, len(r.metrics))
	for name := range r.metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	metricDefs := make([]metricDef, 0, len(names))
	for _, name := range names {
		metricDefs = append(metricDefs, r.metrics[name])
	}

	dimKeys := make([]string, 0, len(r.dimensions))
	for k := range r.dimensions {
		dimKeys = append(dimKeys, k)
	}
	sort.Strings(dimKeys)

	doc["_aws"] = emfDirective{
		Timestamp: time.Now().UnixMilli(),
		CloudWatchMetrics: []cwMetric{{
			Namespace:  r.namespace,
			Dimensions: [][]string{dimKeys},
			Metrics:    metricDefs,
		}},
	}

	for k, v := range r.dimensions {
		doc[k] = v
	}
	for k, v := range r.values {
		doc[k] = v
	}
	for k, v := range r.properties {
		doc[k] = v
	}

	data, err := json.Marshal(doc)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to marshal metrics")
		return
	}

	outMu.Lock()
	defer outMu.Unlock()
	// One document per line
	if _, err := out.Write(append(data, '\n')); err != nil {
		log.Warn().Err(err).Msg("Failed to write metrics")
	}
}
