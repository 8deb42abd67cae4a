package indengine

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"indcore/internal/indicator"
)

// reloadResponse is the body of a successful POST /reload.
type reloadResponse struct {
	Status    string `json:"status"`
	Preserved int    `json:"preserved"`
	Created   int    `json:"created"`
	NeedsFill []int  `json:"needs_fill,omitempty"`
	Warmed    int    `json:"warmed"`
}

// apiHandler serves the control endpoints on top of the metrics server.
type apiHandler struct {
	proc *processor
	// queueTimeout bounds how long a request waits for the processor to
	// pick it up.
	queueTimeout time.Duration
	// onReload, if set, sees every config set that was applied.
	onReload func(ctx context.Context, configs []indicator.TFConfig)
}

func (h *apiHandler) routes(handle func(pattern string, h http.Handler)) {
	handle("/reload", http.HandlerFunc(h.handleReload))
	handle("/reset", http.HandlerFunc(h.handleReset))
	handle("/configs", http.HandlerFunc(h.handleConfigs))
}

// handleReload handles POST /reload with a JSON []indicator.TFConfig body.
func (h *apiHandler) handleReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	var newConfigs []indicator.TFConfig
	if err := json.NewDecoder(r.Body).Decode(&newConfigs); err != nil {
		http.Error(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	reply, err := h.reload(r.Context(), newConfigs)
	switch {
	case errors.Is(err, indicator.ErrInvalidConfig), errors.Is(err, indicator.ErrUnknownType):
		http.Error(w, "validation: "+err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, reloadResponse{
		Status:    "ok",
		Preserved: reply.Stats.Preserved,
		Created:   reply.Stats.Created,
		NeedsFill: reply.Stats.NeedsFill,
		Warmed:    reply.Warmed,
	})
}

// reload validates up front so a bad request never waits for the processor.
func (h *apiHandler) reload(ctx context.Context, configs []indicator.TFConfig) (reloadReply, error) {
	if err := indicator.ValidateConfigs(configs); err != nil {
		return reloadReply{}, err
	}
	if h.queueTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.queueTimeout)
		defer cancel()
	}
	var (
		reply reloadReply
		rerr  error
	)
	err := h.proc.do(ctx, func() {
		reply, rerr = h.proc.reload(configs)
	})
	if err != nil {
		return reply, err
	}
	if rerr != nil {
		return reply, rerr
	}
	slog.Info("indicator configs reloaded",
		slog.Int("preserved", reply.Stats.Preserved), slog.Int("created", reply.Stats.Created),
		slog.Any("needs_fill", reply.Stats.NeedsFill), slog.Int("warmed", reply.Warmed))
	if h.onReload != nil {
		h.onReload(ctx, configs)
	}
	return reply, nil
}

// handleReset handles POST /reset?key=EXCHANGE:TOKEN.
func (h *apiHandler) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	key := r.URL.Query().Get("key")
	if key == "" {
		http.Error(w, "missing key", http.StatusBadRequest)
		return
	}
	var n int
	if err := h.proc.do(r.Context(), func() { n = h.proc.engine.Reset(key) }); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	slog.Info("token state reset", slog.String("key", key), slog.Int("instances", n))
	writeJSON(w, map[string]any{"status": "ok", "key": key, "instances": n})
}

// handleConfigs handles GET /configs.
func (h *apiHandler) handleConfigs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}
	var configs []indicator.TFConfig
	if err := h.proc.do(r.Context(), func() { configs = h.proc.engine.Configs() }); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, configs)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("response encode failed", slog.Any("error", err))
	}
}

// startConfigSubscriber listens on Redis Pub/Sub for indicator spec
// strings and reloads every enabled TF with them.
func (svc *Service) startConfigSubscriber(ctx context.Context) {
	pubsub, err := svc.redisReader.SubscribeChannel(ctx, svc.cfg.ConfigChannel)
	if err != nil {
		slog.Warn("dynamic reload disabled", slog.Any("error", err))
		return
	}
	slog.Info("subscribed for dynamic reload", slog.String("channel", svc.cfg.ConfigChannel))

	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				slog.Info("received config update", slog.String("payload", msg.Payload))
				svc.reloadFromSpecs(ctx, msg.Payload)
			}
		}
	}()
}

// reloadFromSpecs parses an INDICATOR_CONFIGS-style string and reloads.
func (svc *Service) reloadFromSpecs(ctx context.Context, payload string) {
	specs, err := indicator.ParseSpecs(payload)
	if err != nil {
		slog.Warn("invalid config update", slog.Any("error", err))
		return
	}
	if _, err := svc.api.reload(ctx, indicator.ExpandTFs(specs, svc.tfs)); err != nil {
		slog.Warn("config update rejected", slog.Any("error", err))
	}
}
