package archive

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/puzpuzpuz/xsync/v4"
	"github.com/rs/zerolog"
	"github.com/sirrobot01/photozip/internal/utils"
)

// Registry tracks live sessions for the debug endpoints and the stats job.
type Registry struct {
	sessions *xsync.Map[string, *Session]
	logger   zerolog.Logger

	served      atomic.Int64
	aborted     atomic.Int64
	bytesServed atomic.Int64
}

type Stats struct {
	Active      int    `json:"active"`
	Served      int64  `json:"served"`
	Aborted     int64  `json:"aborted"`
	BytesServed int64  `json:"bytes_served"`
	Transferred string `json:"transferred"`
}

func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		sessions: xsync.NewMap[string, *Session](),
		logger:   logger,
	}
}

func (r *Registry) add(s *Session) {
	r.sessions.Store(s.ID, s)
}

func (r *Registry) remove(s *Session, err error) {
	r.sessions.Delete(s.ID)
	r.served.Add(1)
	r.bytesServed.Add(s.Bytes())
	if IsAbort(err) {
		r.aborted.Add(1)
	}
}

func (r *Registry) Get(id string) (*Session, bool) {
	return r.sessions.Load(id)
}

func (r *Registry) Len() int {
	return r.sessions.Size()
}

// Sessions returns a snapshot of live sessions, oldest first.
func (r *Registry) Sessions() []SessionInfo {
	infos := make([]SessionInfo, 0, r.sessions.Size())
	r.sessions.Range(func(_ string, s *Session) bool {
		infos = append(infos, s.Info())
		return true
	})
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].StartedAt.Before(infos[j].StartedAt)
	})
	return infos
}

func (r *Registry) Stats() Stats {
	bytes := r.bytesServed.Load()
	return Stats{
		Active:      r.Len(),
		Served:      r.served.Load(),
		Aborted:     r.aborted.Load(),
		BytesServed: bytes,
		Transferred: utils.FormatSize(bytes),
	}
}

// StartReporter logs registry stats on the given interval until ctx ends.
func (r *Registry) StartReporter(ctx context.Context, interval string) error {
	jd, err := utils.ConvertToJobDef(interval)
	if err != nil {
		return err
	}
	scheduler, err := gocron.NewScheduler(gocron.WithLocation(time.Local))
	if err != nil {
		return err
	}
	if _, err := scheduler.NewJob(jd, gocron.NewTask(func() {
		stats := r.Stats()
		r.logger.Info().
			Int("active", stats.Active).
			Int64("served", stats.Served).
			Int64("aborted", stats.Aborted).
			Str("transferred", stats.Transferred).
			Msg("Archive sessions")
	}), gocron.WithContext(ctx)); err != nil {
		return err
	}
	scheduler.Start()
	r.logger.Debug().Msgf("Stats job scheduled every %s", interval)

	<-ctx.Done()
	return scheduler.Shutdown()
}
