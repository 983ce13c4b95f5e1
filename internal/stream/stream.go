// Package stream serves live gas runs to browsers over WebSocket. Every
// connection gets its own seeded run; each step's snapshot is sent as a JSON
// frame before the step is taken.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/san-kum/gassim/internal/analysis"
	"github.com/san-kum/gassim/internal/config"
	"github.com/san-kum/gassim/internal/dynamo"
	"github.com/san-kum/gassim/internal/experiment"
	"gonum.org/v1/gonum/spatial/r2"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 25 * time.Second
	readLimit  = 1 << 10
)

// Frame is one snapshot on the wire.
type Frame struct {
	Step      int          `json:"step"`
	Time      float64      `json:"time"`
	Positions [][2]float64 `json:"positions"`
	Speeds    []float64    `json:"speeds"`
}

// Meta describes the run a connection will receive.
type Meta struct {
	Count             int     `json:"count"`
	Mass              float64 `json:"mass"`
	Radius            float64 `json:"radius"`
	BoxSize           float64 `json:"box_size"`
	InitialSpeed      float64 `json:"initial_speed"`
	Dt                float64 `json:"dt"`
	Steps             int     `json:"steps"`
	Rule              string  `json:"rule"`
	Seed              int64   `json:"seed"`
	MeanSpeed         float64 `json:"theory_mean_speed"`
	MostProbableSpeed float64 `json:"theory_most_probable_speed"`
}

func newFrame(f dynamo.Frame) Frame {
	out := Frame{
		Step:      f.Step,
		Time:      f.Time,
		Positions: make([][2]float64, len(f.Positions)),
		Speeds:    make([]float64, len(f.Velocities)),
	}
	for i, p := range f.Positions {
		out.Positions[i] = [2]float64{p.X, p.Y}
	}
	for i, v := range f.Velocities {
		out.Speeds[i] = r2.Norm(v)
	}
	return out
}

type Server struct {
	cfg      *config.Config
	registry *experiment.Registry
	interval time.Duration
	logger   *log.Logger
	upgrader websocket.Upgrader
}

// NewServer streams runs of cfg. Frames are paced at the run's own timestep
// until WithInterval changes it.
func NewServer(cfg *config.Config, registry *experiment.Registry) *Server {
	if registry == nil {
		registry = experiment.NewRegistry()
	}
	return &Server{
		cfg:      cfg,
		registry: registry,
		interval: time.Duration(cfg.SimConfig().Timestep() * float64(time.Second)),
		logger:   log.New(io.Discard),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// WithInterval sets the pause between frames; zero sends as fast as the
// connection allows.
func (s *Server) WithInterval(d time.Duration) *Server {
	s.interval = d
	return s
}

func (s *Server) WithLogger(l *log.Logger) *Server {
	if l != nil {
		s.logger = l
	}
	return s
}

// Handler exposes /ws for frames and /meta for the run description. Both
// accept an optional seed query parameter.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/meta", s.handleMeta)
	return mux
}

// Serve listens on addr until ctx is done.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Info("streaming", "addr", addr, "ws", "/ws", "meta", "/meta")

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), writeWait)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

// runConfig applies the request's seed to a copy of the server config.
func (s *Server) runConfig(r *http.Request) (*config.Config, error) {
	cfg := s.cfg.Clone()
	if v := r.URL.Query().Get("seed"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, err
		}
		cfg.Seed = seed
	}
	return cfg, nil
}

func (s *Server) handleMeta(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.runConfig(r)
	if err != nil {
		http.Error(w, "invalid seed", http.StatusBadRequest)
		return
	}
	mb := analysis.MaxwellBoltzmann{Mass: cfg.Mass, InitialSpeed: cfg.InitialSpeed}
	meta := Meta{
		Count:             cfg.Count,
		Mass:              cfg.Mass,
		Radius:            cfg.Radius,
		BoxSize:           cfg.BoxSize,
		InitialSpeed:      cfg.InitialSpeed,
		Dt:                cfg.SimConfig().Timestep(),
		Steps:             cfg.Steps,
		Rule:              cfg.Rule,
		Seed:              cfg.Seed,
		MeanSpeed:         mb.MeanSpeed(),
		MostProbableSpeed: mb.MostProbableSpeed(),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(meta); err != nil {
		s.logger.Warn("meta write failed", "err", err)
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.runConfig(r)
	if err != nil {
		http.Error(w, "invalid seed", http.StatusBadRequest)
		return
	}
	exp := experiment.New(cfg, s.registry).WithLogger(s.logger)
	if err := exp.Setup("energy_drift"); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadLimit(readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	// Reads only drive control frames; a read error means the client left.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	logger := s.logger.With("remote", r.RemoteAddr, "seed", cfg.Seed)
	sender := newSender(ctx, cancel, conn, s.interval)
	defer sender.stop()
	exp.GetSimulator().AddObserver(sender)

	result, err := exp.Run(ctx)
	switch {
	case sender.err != nil:
		logger.Warn("stream write failed", "err", sender.err)
		return
	case errors.Is(err, dynamo.ErrContextCanceled):
		logger.Info("client disconnected", "frames", sender.sent)
		return
	case err != nil:
		logger.Error("run failed", "err", err)
		closeWith(conn, websocket.CloseInternalServerErr, err.Error())
		return
	}
	logger.Info("stream finished", "frames", sender.sent, "energy_drift", result.EnergyDrift)
	closeWith(conn, websocket.CloseNormalClosure, "done")
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}

// sender is the observer that writes frames. It runs on the simulation
// goroutine, so it is the only writer of data frames on the connection.
type sender struct {
	ctx      context.Context
	cancel   context.CancelFunc
	conn     *websocket.Conn
	ticker   *time.Ticker
	lastPing time.Time
	sent     int
	err      error
}

func newSender(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, interval time.Duration) *sender {
	s := &sender{ctx: ctx, cancel: cancel, conn: conn, lastPing: time.Now()}
	if interval > 0 {
		s.ticker = time.NewTicker(interval)
	}
	return s
}

func (s *sender) stop() {
	if s.ticker != nil {
		s.ticker.Stop()
	}
}

func (s *sender) OnStep(f dynamo.Frame) {
	if s.err != nil {
		return
	}
	if s.ticker != nil {
		select {
		case <-s.ctx.Done():
			return
		case <-s.ticker.C:
		}
	}

	if time.Since(s.lastPing) >= pingPeriod {
		if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
			s.fail(err)
			return
		}
		s.lastPing = time.Now()
	}

	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteJSON(newFrame(f)); err != nil {
		s.fail(err)
		return
	}
	s.sent++
}

func (s *sender) fail(err error) {
	s.err = err
	s.cancel()
}
