package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/homar/homar/internal/health"
)

func (r *Runtime) Run(ctx context.Context) error {
	r.logger.Info("homar runtime starting", "addr", r.cfg.HTTPAddr, "timezone", r.cfg.Timezone)
	r.health.Set("runtime", health.StateOK, "runtime loop started")
	r.health.Set("scheduler", health.StateOK, "registry armed")
	r.health.Set("approvals", health.StateOK, "coordinator ready")

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		r.health.Set("api", health.StateOK, "listening")
		err := r.httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			r.health.Set("api", health.StateStopped, "stopped")
			return nil
		}
		if err != nil {
			r.health.Set("api", health.StateDegraded, err.Error())
		}
		return err
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.ShutdownGraceSec)*time.Second)
		defer cancel()
		return r.httpServer.Shutdown(shutdownCtx)
	})

	err := group.Wait()
	r.registry.Close()
	r.health.Set("runtime", health.StateStopped, "stopped")
	r.health.Set("scheduler", health.StateStopped, "stopped")
	return err
}

func (r *Runtime) Close() error {
	if r.store == nil {
		return nil
	}
	return r.store.Close()
}
