package httptransport

import (
	"encoding/json"
	"net/http"

	"leadpipe/internal/lead"
	"leadpipe/internal/pipeline"
	"leadpipe/internal/platform/middleware"
	pkgerrors "leadpipe/pkg/errors"
	"leadpipe/pkg/httputil"
)

// HandlePipelineStream handles GET /pipeline/stream: a server-sent event
// stream of full pipeline snapshots. Every relevant change produces one
// "snapshot" event whose data is the complete, ordered lead set; clients
// replace their local state with each event rather than patching it.
//
// The stream ends when the client disconnects or the view fails on both the
// ordered and fallback paths, in which case a final "error" event is sent.
func (h *Handler) HandlePipelineStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := middleware.GetIdentity(ctx)

	filter, err := h.parseFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteError(w, pkgerrors.New(pkgerrors.CodeInternal, "streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// The view delivers from a single goroutine; serializing onto the
	// response writer needs no extra locking. Snapshots are full
	// replacements, so when the client is slow the oldest pending event is
	// dropped in favor of the newest.
	type event struct {
		name string
		data []byte
	}
	events := make(chan event, 8)
	send := func(ev event) {
		for {
			select {
			case events <- ev:
				return
			default:
			}
			select {
			case <-events:
			default:
			}
		}
	}

	view := pipeline.New(h.watcher,
		func(snapshot []lead.Lead) {
			data, err := json.Marshal(snapshot)
			if err != nil {
				return
			}
			send(event{name: "snapshot", data: data})
		},
		pipeline.WithErrorHandler(func(err error) {
			data, _ := json.Marshal(map[string]string{"error": string(pkgerrors.CodeOf(err))})
			send(event{name: "error", data: data})
		}),
		pipeline.WithLogger(h.logger),
	)
	if err := view.Open(filter); err != nil {
		h.logger.ErrorContext(ctx, "pipeline stream failed to open", "actor", actor, "error", err)
		return
	}
	defer view.Close()

	h.logger.InfoContext(ctx, "pipeline stream opened", "actor", actor)
	for {
		select {
		case <-ctx.Done():
			h.logger.InfoContext(ctx, "pipeline stream closed", "actor", actor)
			return
		case ev := <-events:
			if _, err := w.Write([]byte("event: " + ev.name + "\ndata: ")); err != nil {
				return
			}
			if _, err := w.Write(append(ev.data, '\n', '\n')); err != nil {
				return
			}
			flusher.Flush()
			if ev.name == "error" {
				return
			}
		}
	}
}
