package node

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/andrebq/pingpong/internal/monads"
	"github.com/andrebq/pingpong/profile"
	"github.com/andrebq/pingpong/protocol"
)

type (
	Whoami struct {
		Identity    string    `json:"identity"`
		Fingerprint string    `json:"fingerprint"`
		Username    string    `json:"username,omitempty"`
		Now         time.Time `json:"now"`
	}
)

func whoamiFrom(prof *profile.Profile, local protocol.NodeIdentity) func(context.Context) (Whoami, error) {
	return func(ctx context.Context) (Whoami, error) {
		name, err := prof.GetUsername(ctx)
		if err != nil {
			return Whoami{}, err
		}
		return Whoami{
			Identity:    local.String(),
			Fingerprint: local.Fingerprint(),
			Username:    monads.Default(name, monads.Self("")),
			Now:         time.Now(),
		}, nil
	}
}

// NewStatusHandler serves liveness and identity information about the node.
func NewStatusHandler(whoami func(context.Context) (Whoami, error)) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health/liveness", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(struct {
			Now time.Time `json:"now"`
		}{Now: time.Now()})
	})
	mux.HandleFunc("GET /node/whoami", func(w http.ResponseWriter, r *http.Request) {
		info, err := whoami(r.Context())
		if err != nil {
			slog.Error("Unable to describe node", "err", err)
			http.Error(w, "unable to load profile", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(info)
	})
	return mux
}

func serveStatus(ctx context.Context, addr string, handler http.Handler) error {
	srv := http.Server{
		ReadTimeout:       time.Minute,
		WriteTimeout:      time.Minute,
		ReadHeaderTimeout: time.Second * 10,
		MaxHeaderBytes:    1_000_000,
		Addr:              addr,
		Handler:           handler,
	}
	go func() {
		<-ctx.Done()
		timeout, cancel := context.WithTimeout(context.Background(), time.Second*10)
		srv.Shutdown(timeout)
		cancel()
	}()
	slog.Info("Starting status API", "addr", srv.Addr)
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
