package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCheckoutObserve(t *testing.T) {
	c := NewCheckout(prometheus.NewRegistry())

	c.Observe("cart", "ok", 12*time.Millisecond)
	c.Observe("cart", "ok", 3*time.Millisecond)
	c.Observe("items", "insufficient_stock", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.Outcomes.WithLabelValues("cart", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Outcomes.WithLabelValues("items", "insufficient_stock")))
}

func TestNilCheckoutIsNoop(t *testing.T) {
	var c *Checkout
	assert.NotPanics(t, func() { c.Observe("items", "ok", time.Second) })
}
