package metrics

import "github.com/prometheus/client_golang/prometheus"

// CirculationMetrics counts desk operations so dashboards can watch lending volume.
type CirculationMetrics struct {
	loansCreated        prometheus.Counter
	loansReturned       prometheus.Counter
	loansExtended       prometheus.Counter
	reservationsCreated prometheus.Counter
	reservationsExpired prometheus.Counter
	finesAssessed       prometheus.Counter
}

// NewCirculationMetrics registers circulation counters on the provided registerer.
func NewCirculationMetrics(reg prometheus.Registerer) *CirculationMetrics {
	if reg == nil {
		return &CirculationMetrics{}
	}
	m := &CirculationMetrics{
		loansCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "loans_created_total",
			Help: "Loans handed out at the desk.",
		}),
		loansReturned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "loans_returned_total",
			Help: "Loans returned.",
		}),
		loansExtended: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "loans_extended_total",
			Help: "Loan extensions granted.",
		}),
		reservationsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reservations_created_total",
			Help: "Reservations placed in hold queues.",
		}),
		reservationsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reservations_expired_total",
			Help: "Reservations expired by the sweep.",
		}),
		finesAssessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fines_assessed_total",
			Help: "Overdue fines assessed.",
		}),
	}
	reg.MustRegister(
		m.loansCreated, m.loansReturned, m.loansExtended,
		m.reservationsCreated, m.reservationsExpired, m.finesAssessed,
	)
	return m
}

func (m *CirculationMetrics) IncLoansCreated() {
	if m == nil || m.loansCreated == nil {
		return
	}
	m.loansCreated.Inc()
}

func (m *CirculationMetrics) IncLoansReturned() {
	if m == nil || m.loansReturned == nil {
		return
	}
	m.loansReturned.Inc()
}

func (m *CirculationMetrics) IncLoansExtended() {
	if m == nil || m.loansExtended == nil {
		return
	}
	m.loansExtended.Inc()
}

func (m *CirculationMetrics) IncReservationsCreated() {
	if m == nil || m.reservationsCreated == nil {
		return
	}
	m.reservationsCreated.Inc()
}

func (m *CirculationMetrics) AddReservationsExpired(n int) {
	if m == nil || m.reservationsExpired == nil || n <= 0 {
		return
	}
	m.reservationsExpired.Add(float64(n))
}

func (m *CirculationMetrics) IncFinesAssessed() {
	if m == nil || m.finesAssessed == nil {
		return
	}
	m.finesAssessed.Inc()
}
