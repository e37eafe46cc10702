package runtime

import (
	stderrors "errors"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeOK        = "ok"
	outcomeRejected  = "rejected"
	outcomeException = "exception"
)

type metrics struct {
	invocations *prometheus.CounterVec
	exceptions  *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		invocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "callgate",
				Name:      "invocations_total",
				Help:      "Guest function invocations by outcome",
			},
			[]string{"outcome"},
		),
		exceptions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "callgate",
				Name:      "exceptions_total",
				Help:      "Exceptions raised at the call boundary by cause",
			},
			[]string{"cause"},
		),
	}
	if reg == nil {
		return m, nil
	}

	var err error
	if m.invocations, err = register(reg, m.invocations); err != nil {
		return nil, err
	}
	if m.exceptions, err = register(reg, m.exceptions); err != nil {
		return nil, err
	}
	return m, nil
}

// register adds c to reg, reusing an identical collector registered by
// another runtime.
func register(reg prometheus.Registerer, c *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if stderrors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
			return existing, nil
		}
	}
	return nil, err
}
