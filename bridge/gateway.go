package bridge

import (
	"github.com/petermattis/goid"
	"go.uber.org/zap"

	"github.com/objlink/objlink/errors"
	"github.com/objlink/objlink/vm"
)

// attachment is one thread's cached gateway state. detachOnExit controls
// whether handle shutdown tears the attachment down; threads owned by the
// managed runtime itself (callback delivery) must keep theirs, because
// detaching them would corrupt the runtime's thread bookkeeping.
type attachment struct {
	env          *vm.Env
	detachOnExit bool
}

// AttachCurrentThread lazily attaches the calling thread to the managed
// runtime and caches the attachment for the thread's remaining lifetime.
// It is idempotent per thread: a thread that already holds a live
// attachment gets it back without a second handshake.
func (r *Runtime) AttachCurrentThread() (*vm.Env, error) {
	return r.attach(true)
}

// AttachCurrentThreadAsDaemon attaches the calling thread without
// detach-on-exit, for threads spawned by the managed runtime itself.
func (r *Runtime) AttachCurrentThreadAsDaemon() (*vm.Env, error) {
	return r.attach(false)
}

func (r *Runtime) attach(detachOnExit bool) (*vm.Env, error) {
	if r.closed.Load() || r.vm == nil {
		return nil, errors.RuntimeUnavailable("no runtime handle available to attach through")
	}

	id := goid.Get()
	if cached, ok := r.attachments.Load(id); ok {
		a := cached.(*attachment)
		if a.env.Valid() {
			return a.env, nil
		}
		// Another handle sharing the runtime detached this thread; purge
		// the stale cache and attach fresh.
		r.attachments.Delete(id)
	}

	// Another handle sharing the runtime may have attached this thread
	// already; adopt that attachment rather than failing the handshake.
	env, ok := r.vm.EnvFor(id)
	if !ok {
		var err error
		env, err = r.vm.Attach(id)
		if err != nil {
			return nil, errors.AttachFailed(id, err)
		}
	}

	r.attachments.Store(id, &attachment{env: env, detachOnExit: detachOnExit})
	r.log.Debug("thread attached through gateway",
		zap.Int64("thread", id), zap.Bool("detach_on_exit", detachOnExit))
	return env, nil
}

// DetachCurrentThread tears down the calling thread's attachment. Calls
// into the runtime from this thread after detaching fail until it attaches
// again.
func (r *Runtime) DetachCurrentThread() error {
	id := goid.Get()
	if _, ok := r.attachments.LoadAndDelete(id); !ok {
		return errors.RuntimeUnavailable("calling thread is not attached")
	}
	return r.vm.Detach(id)
}
