package metric

import "github.com/prometheus/client_golang/prometheus"

// SizeFunc reports the on-disk size of a store: LSM tree and value log bytes.
type SizeFunc func() (lsm, vlog int64)

// StoreCollector exports the size of an on-disk store at scrape time.
type StoreCollector struct {
	size     SizeFunc
	lsmDesc  *prometheus.Desc
	vlogDesc *prometheus.Desc
}

// NewStoreCollector creates a collector for the store named store.
func NewStoreCollector(store string, size SizeFunc) *StoreCollector {
	labels := prometheus.Labels{"store": store}
	return &StoreCollector{
		size: size,
		lsmDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "store", "lsm_bytes"),
			"Size of the store's LSM tree in bytes", nil, labels),
		vlogDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "store", "vlog_bytes"),
			"Size of the store's value log in bytes", nil, labels),
	}
}

// Describe implements prometheus.Collector.
func (c *StoreCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.lsmDesc
	ch <- c.vlogDesc
}

// Collect implements prometheus.Collector.
func (c *StoreCollector) Collect(ch chan<- prometheus.Metric) {
	lsm, vlog := c.size()
	ch <- prometheus.MustNewConstMetric(c.lsmDesc, prometheus.GaugeValue, float64(lsm))
	ch <- prometheus.MustNewConstMetric(c.vlogDesc, prometheus.GaugeValue, float64(vlog))
}
