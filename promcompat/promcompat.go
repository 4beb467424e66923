// Package promcompat converts snapshots into the Prometheus
// client_model protobuf types for interop with the Go Prometheus
// ecosystem. Text and OpenMetrics exposition remain the job of the
// consuming formatter.
package promcompat

import (
	"time"

	dto "github.com/prometheus/client_model/go"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/metricsafe-go/metricsafe/snapshot"
)

// ToMetricFamily converts a summary snapshot into a client_model metric
// family. Exemplars are not representable on summary quantiles in
// client_model and are omitted.
func ToMetricFamily(s *snapshot.SummarySnapshot) *dto.MetricFamily {
	metadata := s.Metadata()
	dataPoints := s.DataPoints()
	metrics := make([]*dto.Metric, 0, len(dataPoints))
	for _, dataPoint := range dataPoints {
		metrics = append(metrics, toMetric(dataPoint))
	}
	family := &dto.MetricFamily{
		Name:   proto.String(metadata.Name()),
		Type:   dto.MetricType_SUMMARY.Enum(),
		Metric: metrics,
	}
	if help := metadata.Help(); help != "" {
		family.Help = proto.String(help)
	}
	if unit := metadata.Unit(); unit != "" {
		family.Unit = proto.String(unit)
	}
	return family
}

func toMetric(dataPoint *snapshot.SummaryDataPointSnapshot) *dto.Metric {
	quantiles := dataPoint.Quantiles()
	dtoQuantiles := make([]*dto.Quantile, 0, len(quantiles))
	for _, quantile := range quantiles {
		dtoQuantiles = append(dtoQuantiles, &dto.Quantile{
			Quantile: proto.Float64(quantile.Quantile),
			Value:    proto.Float64(quantile.Value),
		})
	}
	labels := dataPoint.Labels()
	pairs := make([]*dto.LabelPair, 0, len(labels))
	for _, label := range labels {
		pairs = append(pairs, &dto.LabelPair{
			Name:  proto.String(label.Name),
			Value: proto.String(label.Value),
		})
	}
	metric := &dto.Metric{
		Label: pairs,
		Summary: &dto.Summary{
			SampleCount:      proto.Uint64(dataPoint.Count()),
			SampleSum:        proto.Float64(dataPoint.Sum()),
			Quantile:         dtoQuantiles,
			CreatedTimestamp: timestamppb.New(time.UnixMilli(dataPoint.CreatedTimestampMillis())),
		},
	}
	if scrapeMillis := dataPoint.ScrapeTimestampMillis(); scrapeMillis != 0 {
		metric.TimestampMs = proto.Int64(scrapeMillis)
	}
	return metric
}
