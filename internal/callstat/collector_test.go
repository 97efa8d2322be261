package callstat

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/memscope/internal/acquire"
)

func TestCollectorDisabled(t *testing.T) {
	t.Parallel()

	c := NewCollector(newTestRegistry(1))
	require.Equal(t, 1, testutil.CollectAndCount(c))
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(`
# HELP memscope_call_statistics_enabled 1 when call statistics are being recorded.
# TYPE memscope_call_statistics_enabled gauge
memscope_call_statistics_enabled 0
`), "memscope_call_statistics_enabled"))
}

func TestCollectorExportsCounters(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(500_000, WithForeign(stubForeign{stats: validForeign()}))
	r.SetEnabled(true)
	r.End(KindMemReadEx, r.Start())

	c := NewCollector(r)
	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(c))

	families, err := reg.Gather()
	require.NoError(t, err)

	var found bool
	for _, mf := range families {
		if mf.GetName() != "memscope_call_seconds_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["layer"] == "engine" && labels["operation"] == "VMMDLL_MemReadEx" {
				require.InDelta(t, 0.5, m.GetCounter().GetValue(), 1e-9)
				found = true
			}
		}
	}
	require.True(t, found, "engine MemReadEx series missing")

	want := 1 + 2*(KindCount+int(acquire.KindMax)+1)
	require.Equal(t, want, testutil.CollectAndCount(c))
}
