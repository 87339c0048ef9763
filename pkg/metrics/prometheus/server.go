// Package prometheus provides Prometheus-backed implementations of the
// metrics interfaces. Constructors return nil when the registry has not
// been initialized, which callers treat as "metrics disabled".
package prometheus

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/feelus/cns-server/pkg/metrics"
)

// serverMetrics is the Prometheus implementation of metrics.ServerMetrics.
type serverMetrics struct {
	datagramsIn     *prometheus.CounterVec
	datagramsOut    *prometheus.CounterVec
	drops           *prometheus.CounterVec
	retransmits     prometheus.Counter
	replays         prometheus.Counter
	sessionsAdded   prometheus.Counter
	sessionsRemoved *prometheus.CounterVec
	activeSessions  prometheus.Gauge
	queuedFrames    prometheus.Gauge
}

// NewServerMetrics creates a new Prometheus-backed ServerMetrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewServerMetrics() metrics.ServerMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &serverMetrics{
		datagramsIn: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "cns_datagrams_received_total",
				Help: "Total number of datagrams received by command",
			},
			[]string{"command"},
		),
		datagramsOut: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "cns_datagrams_sent_total",
				Help: "Total number of datagrams sent by command",
			},
			[]string{"command"},
		),
		drops: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "cns_datagrams_dropped_total",
				Help: "Total number of inbound datagrams dropped before dispatch by cause",
			},
			[]string{"cause"},
		),
		retransmits: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "cns_retransmits_total",
				Help: "Total number of head-of-queue frames retransmitted",
			},
		),
		replays: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "cns_ack_replays_total",
				Help: "Total number of duplicate frames answered with a replayed acknowledgment",
			},
		),
		sessionsAdded: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "cns_sessions_admitted_total",
				Help: "Total number of client sessions admitted",
			},
		),
		sessionsRemoved: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "cns_sessions_removed_total",
				Help: "Total number of client sessions removed by cause",
			},
			[]string{"cause"},
		),
		activeSessions: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "cns_sessions_active",
				Help: "Current number of client sessions",
			},
		),
		queuedFrames: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "cns_outbound_frames_queued",
				Help: "Current number of frames waiting in outbound queues",
			},
		),
	}
}

func (m *serverMetrics) RecordDatagramIn(command string) {
	m.datagramsIn.WithLabelValues(command).Inc()
}

func (m *serverMetrics) RecordDatagramOut(command string) {
	m.datagramsOut.WithLabelValues(command).Inc()
}

func (m *serverMetrics) RecordDrop(cause string) {
	m.drops.WithLabelValues(cause).Inc()
}

func (m *serverMetrics) RecordRetransmit() {
	m.retransmits.Inc()
}

func (m *serverMetrics) RecordReplay() {
	m.replays.Inc()
}

func (m *serverMetrics) RecordSessionAdmitted() {
	m.sessionsAdded.Inc()
}

func (m *serverMetrics) RecordSessionRemoved(cause string) {
	m.sessionsRemoved.WithLabelValues(cause).Inc()
}

func (m *serverMetrics) SetActiveSessions(count int) {
	m.activeSessions.Set(float64(count))
}

func (m *serverMetrics) SetQueuedFrames(count int) {
	m.queuedFrames.Set(float64(count))
}

// gameMetrics is the Prometheus implementation of metrics.GameMetrics.
type gameMetrics struct {
	gamesCreated  prometheus.Counter
	gamesStarted  prometheus.Counter
	gamesFinished *prometheus.CounterVec
	dieRolls      *prometheus.CounterVec
	figureMoves   *prometheus.CounterVec
	turnTimeouts  prometheus.Counter
	activeGames   *prometheus.GaugeVec
}

// NewGameMetrics creates a new Prometheus-backed GameMetrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewGameMetrics() metrics.GameMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &gameMetrics{
		gamesCreated: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "cns_games_created_total",
				Help: "Total number of games created",
			},
		),
		gamesStarted: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "cns_games_started_total",
				Help: "Total number of games started",
			},
		),
		gamesFinished: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "cns_games_finished_total",
				Help: "Total number of games torn down by cause",
			},
			[]string{"cause"},
		),
		dieRolls: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "cns_die_rolls_total",
				Help: "Total number of die rolls by value",
			},
			[]string{"value"},
		),
		figureMoves: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "cns_figure_moves_total",
				Help: "Total number of figure moves by kind",
			},
			[]string{"kind"},
		),
		turnTimeouts: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "cns_turn_timeouts_total",
				Help: "Total number of turns skipped because the player went silent",
			},
		),
		activeGames: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cns_games_active",
				Help: "Current number of games by lifecycle state",
			},
			[]string{"state"},
		),
	}
}

func (m *gameMetrics) RecordGameCreated() {
	m.gamesCreated.Inc()
}

func (m *gameMetrics) RecordGameStarted() {
	m.gamesStarted.Inc()
}

func (m *gameMetrics) RecordGameFinished(cause string) {
	m.gamesFinished.WithLabelValues(cause).Inc()
}

func (m *gameMetrics) RecordDieRoll(value int) {
	m.dieRolls.WithLabelValues(strconv.Itoa(value)).Inc()
}

func (m *gameMetrics) RecordFigureMove(kind string) {
	m.figureMoves.WithLabelValues(kind).Inc()
}

func (m *gameMetrics) RecordTurnTimeout() {
	m.turnTimeouts.Inc()
}

func (m *gameMetrics) SetActiveGames(state string, count int) {
	m.activeGames.WithLabelValues(state).Set(float64(count))
}
