// Package wsapi exposes the streaming orchestrator over a WebSocket: JSON
// command/status messages in one direction, binary spectrum/sweep frames in
// the other, multiplexed on a single connection per client.
package wsapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/cwsl/specengine/internal/agc"
	"github.com/cwsl/specengine/internal/dsp"
	"github.com/cwsl/specengine/internal/playback"
	"github.com/cwsl/specengine/internal/stream"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:    8192,
	WriteBufferSize:   65536,
	EnableCompression: false,
	CheckOrigin:       func(r *http.Request) bool { return true },
}

// Command is a client-to-server JSON message.
type Command struct {
	Type      string  `json:"type"`
	Frequency float64 `json:"frequency,omitempty"`
	Gain      float64 `json:"gain,omitempty"`
	Bandwidth float64 `json:"bandwidth,omitempty"`

	Window          string   `json:"window,omitempty"`
	DCRemoval       *bool    `json:"dc_removal,omitempty"`
	OverlapSave     *bool    `json:"overlap_save,omitempty"`
	AveragingMode   string   `json:"averaging_mode,omitempty"`
	AveragingCount  *int     `json:"averaging_count,omitempty"`
	AveragingAlpha  *float64 `json:"averaging_alpha,omitempty"`
	PeakHold        *bool    `json:"peak_hold,omitempty"`
	PeakHoldDecayDB *float64 `json:"peak_hold_decay_db,omitempty"`
	ResetPeakHold   bool     `json:"reset_peak_hold,omitempty"`

	DetectionEnabled *bool    `json:"detection_enabled,omitempty"`
	ThresholdDB      *float64 `json:"threshold_db,omitempty"`

	AGCEnabled *bool    `json:"agc_enabled,omitempty"`
	TargetDBFS *float64 `json:"target_dbfs,omitempty"`

	FreqStart  float64 `json:"freq_start,omitempty"`
	FreqEnd    float64 `json:"freq_end,omitempty"`
	RecordPath string  `json:"path,omitempty"`
	Speed      float64 `json:"speed,omitempty"`
	Loop       bool    `json:"loop,omitempty"`
	Seconds    float64 `json:"seconds,omitempty"`

	SampleRate float64 `json:"sample_rate,omitempty"`
	FFTSize    int     `json:"fft_size,omitempty"`

	SignalID       string `json:"signal_id,omitempty"`
	Classification string `json:"classification,omitempty"`
	Notes          string `json:"notes,omitempty"`
	ActiveOnly     bool   `json:"active_only,omitempty"`

	RecordingName string `json:"recording_name,omitempty"`
}

// Reply is a server-to-client JSON message, sent as a text frame alongside
// the binary spectrum stream.
type Reply struct {
	Type   string `json:"type"`
	Error  string `json:"error,omitempty"`
	Status any    `json:"status,omitempty"`
}

// Server upgrades HTTP connections into the command/status/stream protocol.
type Server struct {
	mgr    *stream.Manager
	logger *log.Logger
}

// New creates a Server bound to the given orchestrator.
func New(mgr *stream.Manager, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{mgr: mgr, logger: logger}
}

// ServeHTTP upgrades the connection and runs its reader/writer loops until
// either side disconnects.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("wsapi: upgrade failed: %v", err)
		return
	}
	clientID := uuid.NewString()
	s.logger.Printf("wsapi: client %s connected", clientID)

	frames, unsubscribe := s.mgr.Subscribe(32)
	defer unsubscribe()

	var writeMu sync.Mutex
	writeJSON := func(v any) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		return conn.WriteJSON(v)
	}
	writeBinary := func(b []byte) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		return conn.WriteMessage(websocket.BinaryMessage, b)
	}

	done := make(chan struct{})
	var closeOnce sync.Once
	closeConn := func() {
		closeOnce.Do(func() { close(done); conn.Close() })
	}

	go func() {
		defer closeConn()
		for {
			select {
			case <-done:
				return
			case frame, ok := <-frames:
				if !ok {
					return
				}
				if err := writeBinary(frame); err != nil {
					return
				}
			}
		}
	}()

	conn.SetReadDeadline(time.Time{})
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var cmd Command
		var reply Reply
		if err := json.Unmarshal(data, &cmd); err != nil {
			reply = Reply{Type: "error", Error: "malformed command: " + err.Error()}
		} else {
			reply = s.dispatch(cmd)
		}
		if err := writeJSON(reply); err != nil {
			break
		}
	}
	closeConn()
	s.logger.Printf("wsapi: client %s disconnected", clientID)
}

func (s *Server) dispatch(cmd Command) Reply {
	switch cmd.Type {
	case "start_live":
		if err := s.mgr.StartLive(context.Background()); err != nil {
			return errReply(err)
		}
		return okReply("start_live")

	case "stop":
		s.mgr.Stop()
		return okReply("stop")

	case "pause":
		if err := s.mgr.Pause(); err != nil {
			return errReply(err)
		}
		return okReply("pause")

	case "resume":
		if err := s.mgr.Resume(context.Background()); err != nil {
			return errReply(err)
		}
		return okReply("resume")

	case "set_frequency":
		s.mgr.SetFrequency(cmd.Frequency)
		return okReply("set_frequency")

	case "set_gain":
		s.mgr.SetGain(cmd.Gain)
		return okReply("set_gain")

	case "set_bandwidth":
		s.mgr.SetBandwidth(cmd.Bandwidth)
		return okReply("set_bandwidth")

	case "set_dsp_params":
		if err := s.mgr.ApplyDSPParams(dsp.SetParam{
			Window:          strPtr(cmd.Window),
			DCRemoval:       cmd.DCRemoval,
			OverlapSave:     cmd.OverlapSave,
			AveragingMode:   strPtr(cmd.AveragingMode),
			AveragingCount:  cmd.AveragingCount,
			AveragingAlpha:  cmd.AveragingAlpha,
			PeakHold:        cmd.PeakHold,
			PeakHoldDecayDB: cmd.PeakHoldDecayDB,
			ResetPeakHold:   cmd.ResetPeakHold,
		}); err != nil {
			return errReply(err)
		}
		return okReply("set_dsp_params")

	case "set_detection":
		if cmd.DetectionEnabled != nil {
			s.mgr.SetDetectorEnabled(*cmd.DetectionEnabled)
		}
		if cmd.ThresholdDB != nil {
			p := s.mgr.DetectionStatus().Params
			p.ThresholdDB = *cmd.ThresholdDB
			s.mgr.SetDetectorParams(p)
		}
		return okReply("set_detection")

	case "set_agc":
		p := agc.Params{}
		if cmd.AGCEnabled != nil {
			p.Enabled = *cmd.AGCEnabled
		}
		if cmd.TargetDBFS != nil {
			p.TargetDBFS = *cmd.TargetDBFS
		}
		s.mgr.SetAGCParams(p)
		return okReply("set_agc")

	case "start_sweep":
		if cmd.FreqStart >= cmd.FreqEnd {
			return Reply{Type: "error", Error: "freq_start must be less than freq_end"}
		}
		go func() {
			if err := s.mgr.RunSweep(context.Background(), cmd.FreqStart, cmd.FreqEnd, sweepIDFromNow()); err != nil {
				s.logger.Printf("wsapi: sweep error: %v", err)
			}
		}()
		return okReply("start_sweep")

	case "stop_sweep":
		s.mgr.StopSweep()
		return okReply("stop_sweep")

	case "start_iq_recording":
		name, err := s.mgr.StartIQRecording()
		if err != nil {
			return errReply(err)
		}
		return Reply{Type: "ok", Status: map[string]string{"filename": name}}

	case "stop_iq_recording":
		name := s.mgr.StopIQRecording()
		return Reply{Type: "ok", Status: map[string]string{"filename": name}}

	case "start_spectrum_recording":
		name, err := s.mgr.StartSpectrumRecording()
		if err != nil {
			return errReply(err)
		}
		return Reply{Type: "ok", Status: map[string]string{"filename": name}}

	case "stop_spectrum_recording":
		name := s.mgr.StopSpectrumRecording()
		return Reply{Type: "ok", Status: map[string]string{"filename": name}}

	case "start_playback":
		p, err := playback.Open(cmd.RecordPath+".raw", cmd.RecordPath+".json", s.logger)
		if err != nil {
			return errReply(err)
		}
		if err := s.mgr.StartPlayback(context.Background(), p); err != nil {
			return errReply(err)
		}
		return okReply("start_playback")

	case "playback_pause":
		s.mgr.PlaybackPause()
		return okReply("playback_pause")

	case "playback_resume":
		s.mgr.PlaybackResume()
		return okReply("playback_resume")

	case "playback_set_speed":
		if err := s.mgr.PlaybackSetSpeed(cmd.Speed); err != nil {
			return errReply(err)
		}
		return okReply("playback_set_speed")

	case "playback_set_loop":
		s.mgr.PlaybackSetLoop(cmd.Loop)
		return okReply("playback_set_loop")

	case "playback_seek":
		if err := s.mgr.PlaybackSeek(cmd.Seconds); err != nil {
			return errReply(err)
		}
		return okReply("playback_seek")

	case "set_sample_rate":
		s.mgr.SetSampleRate(cmd.SampleRate)
		return okReply("set_sample_rate")

	case "set_fft_size":
		if err := s.mgr.SetFFTSize(cmd.FFTSize); err != nil {
			return errReply(err)
		}
		return okReply("set_fft_size")

	case "check_device":
		if err := s.mgr.CheckDevice(); err != nil {
			return errReply(err)
		}
		return okReply("check_device")

	case "sweep_status":
		return Reply{Type: "sweep_status", Status: s.mgr.SweepStatus()}

	case "detection_status":
		return Reply{Type: "detection_status", Status: s.mgr.DetectionStatus()}

	case "signal_list":
		signals, err := s.mgr.SignalList(cmd.ActiveOnly)
		if err != nil {
			return errReply(err)
		}
		return Reply{Type: "signal_list", Status: signals}

	case "signal_classify":
		if err := s.mgr.SignalClassify(cmd.SignalID, cmd.Classification, cmd.Notes); err != nil {
			return errReply(err)
		}
		return okReply("signal_classify")

	case "signal_delete":
		if err := s.mgr.SignalDelete(cmd.SignalID); err != nil {
			return errReply(err)
		}
		return okReply("signal_delete")

	case "signal_db_stats":
		stats, err := s.mgr.SignalDBStats()
		if err != nil {
			return errReply(err)
		}
		return Reply{Type: "signal_db_stats", Status: stats}

	case "rec_list":
		recs, err := s.mgr.RecordingList()
		if err != nil {
			return errReply(err)
		}
		return Reply{Type: "rec_list", Status: recs}

	case "rec_delete":
		if err := s.mgr.RecordingDelete(cmd.RecordingName); err != nil {
			return errReply(err)
		}
		return okReply("rec_delete")

	case "rec_status":
		return Reply{Type: "rec_status", Status: s.mgr.RecordingStatus()}

	case "status":
		return Reply{Type: "status", Status: s.mgr.Status()}

	default:
		return Reply{Type: "error", Error: "unknown command type: " + cmd.Type}
	}
}

func okReply(msgType string) Reply { return Reply{Type: "ok", Status: msgType} }

func errReply(err error) Reply { return Reply{Type: "error", Error: err.Error()} }

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func sweepIDFromNow() uint32 {
	return uint32(time.Now().UnixNano() / int64(time.Millisecond) % (1 << 31))
}
