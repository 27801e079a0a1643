package storage

import (
	"sync"

	"github.com/rs/zerolog"

	"airsync/state"
)

// DefaultRecorderQueueSize bounds pending history writes.
const DefaultRecorderQueueSize = 128

// Recorder writes device and notification history from store events. Writes
// run on one background goroutine so observers never wait on SQLite.
type Recorder struct {
	db  *Store
	log zerolog.Logger

	jobs chan func() error
	stop chan struct{}
	wg   sync.WaitGroup

	mu        sync.Mutex
	deviceKey string

	closeOnce sync.Once
}

// NewRecorder starts a recorder backed by db.
func NewRecorder(db *Store, log zerolog.Logger) *Recorder {
	r := &Recorder{
		db:   db,
		log:  log.With().Str("component", "history").Logger(),
		jobs: make(chan func() error, DefaultRecorderQueueSize),
		stop: make(chan struct{}),
	}
	r.wg.Add(1)
	go r.run()
	return r
}

// Attach subscribes the recorder to st and returns the cancel func.
func (r *Recorder) Attach(st *state.Store) func() {
	return st.Subscribe(r.Observe, state.DeviceChanged, state.NotificationsChanged)
}

// Observe is a state.Observer.
func (r *Recorder) Observe(event state.Event) {
	switch event.Kind {
	case state.DeviceChanged:
		r.mu.Lock()
		if event.Device == nil {
			r.deviceKey = ""
			r.mu.Unlock()
			return
		}
		device := *event.Device
		r.deviceKey = device.CompositeKey()
		r.mu.Unlock()

		r.enqueue(func() error {
			return r.db.UpsertDevice(Device{
				Key:       device.CompositeKey(),
				Name:      device.Name,
				IPAddress: device.IPAddress,
				Port:      device.Port,
			})
		})

	case state.NotificationsChanged:
		if event.Added != nil {
			n := *event.Added
			r.mu.Lock()
			var deviceKey *string
			if r.deviceKey != "" {
				key := r.deviceKey
				deviceKey = &key
			}
			r.mu.Unlock()

			r.enqueue(func() error {
				return r.db.LogNotification(NotificationRecord{
					ID:        n.ID,
					NID:       n.NID,
					DeviceKey: deviceKey,
					Title:     n.Title,
					Body:      n.Body,
					App:       n.App,
					Package:   n.Package,
				})
			})
		}
		if event.RemovedNID != "" {
			nid := event.RemovedNID
			dismissedAt := nowUnixMilli()
			r.enqueue(func() error {
				_, err := r.db.MarkNotificationDismissed(nid, dismissedAt)
				return err
			})
		}
	}
}

// Close flushes queued writes and stops the worker. The database stays open.
func (r *Recorder) Close() {
	r.closeOnce.Do(func() {
		close(r.stop)
		r.wg.Wait()
	})
}

func (r *Recorder) enqueue(job func() error) {
	select {
	case <-r.stop:
		return
	default:
	}
	select {
	case r.jobs <- job:
	default:
		r.log.Warn().Msg("history queue full, dropping write")
	}
}

func (r *Recorder) run() {
	defer r.wg.Done()
	for {
		select {
		case job := <-r.jobs:
			r.apply(job)
		case <-r.stop:
			for {
				select {
				case job := <-r.jobs:
					r.apply(job)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) apply(job func() error) {
	if err := job(); err != nil {
		r.log.Warn().Err(err).Msg("history write failed")
	}
}
