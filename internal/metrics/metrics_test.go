package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.PagesRead.Inc()
	m.ChecksumFailures.WithLabelValues("page").Add(2)

	require.Equal(t, 1.0, testutil.ToFloat64(m.PagesRead))
	require.Equal(t, 2.0, testutil.ToFloat64(m.ChecksumFailures.WithLabelValues("page")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, family := range families {
		names = append(names, family.GetName())
	}
	require.Contains(t, names, "pst_page_reads_total")
	require.Contains(t, names, "pst_checksum_failures_total")
}

func TestNewWithoutRegistry(t *testing.T) {
	m := New(nil)
	m.BlocksRead.Inc()
	require.Equal(t, 1.0, testutil.ToFloat64(m.BlocksRead))
}
