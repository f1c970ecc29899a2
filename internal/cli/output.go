// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"gopkg.in/yaml.v3"

	"github.com/aclements/perfharness/harness"
)

// A resultWriter emits the results of each iteration in one output format.
type resultWriter interface {
	Write(iteration int, r *harness.Results) error
	Flush() error
}

func newResultWriter(format string, w io.Writer) (resultWriter, error) {
	switch format {
	case "text":
		return &textWriter{w: w}, nil
	case "json":
		return &jsonWriter{enc: json.NewEncoder(w)}, nil
	case "yaml":
		return &yamlWriter{enc: yaml.NewEncoder(w)}, nil
	case "prom":
		return newPromWriter(w), nil
	}
	return nil, fmt.Errorf("unknown format %q", format)
}

type textWriter struct {
	w io.Writer
}

var heading = color.New(color.FgCyan, color.Bold)

func (t *textWriter) Write(iteration int, r *harness.Results) error {
	if _, err := heading.Fprintf(t.w, "iteration %d\n", iteration); err != nil {
		return err
	}
	return harness.WriteReport(t.w, r)
}

func (t *textWriter) Flush() error { return nil }

// jsonWriter writes one object per line. Results stay a list so their order
// survives.
type jsonWriter struct {
	enc *json.Encoder
}

type jsonRecord struct {
	Iteration int              `json:"iteration"`
	Results   []harness.Result `json:"results"`
}

func (j *jsonWriter) Write(iteration int, r *harness.Results) error {
	return j.enc.Encode(jsonRecord{Iteration: iteration, Results: r.Entries()})
}

func (j *jsonWriter) Flush() error { return nil }

// yamlWriter writes one document per iteration with results as an ordered
// mapping.
type yamlWriter struct {
	enc *yaml.Encoder
}

func (y *yamlWriter) Write(iteration int, r *harness.Results) error {
	results := &yaml.Node{Kind: yaml.MappingNode}
	for _, e := range r.Entries() {
		results.Content = append(results.Content,
			scalar("!!str", e.Key),
			scalar("", strconv.FormatFloat(e.Value, 'g', -1, 64)),
		)
	}
	doc := &yaml.Node{Kind: yaml.MappingNode, Content: []*yaml.Node{
		scalar("!!str", "iteration"), scalar("", strconv.Itoa(iteration)),
		scalar("!!str", "results"), results,
	}}
	return y.enc.Encode(doc)
}

func (y *yamlWriter) Flush() error { return y.enc.Close() }

func scalar(tag, value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}
}

// promWriter collects every iteration into a gauge and writes the text
// exposition format on Flush.
type promWriter struct {
	w     io.Writer
	reg   *prometheus.Registry
	gauge *prometheus.GaugeVec
}

func newPromWriter(w io.Writer) *promWriter {
	p := &promWriter{
		w:   w,
		reg: prometheus.NewRegistry(),
		gauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "perfharness_result",
			Help: "Statistic measured over one benchmark iteration.",
		}, []string{"key", "iteration"}),
	}
	p.reg.MustRegister(p.gauge)
	return p
}

func (p *promWriter) Write(iteration int, r *harness.Results) error {
	it := strconv.Itoa(iteration)
	for _, e := range r.Entries() {
		p.gauge.WithLabelValues(e.Key, it).Set(e.Value)
	}
	return nil
}

func (p *promWriter) Flush() error {
	mfs, err := p.reg.Gather()
	if err != nil {
		return err
	}
	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(p.w, mf); err != nil {
			return err
		}
	}
	return nil
}
