package bridge

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/objlink/objlink/errors"
	"github.com/objlink/objlink/vm"
)

// callbackMethod is the well-known member a class must expose to receive a
// channel token. The runtime hands the token back verbatim with every
// emission, and the bridge resolves it to the registered receiver.
const callbackMethod = "initializeCallbackChannel"

const receiverBuffer = 128

var (
	callbackToken atomic.Int64

	callbackMu       sync.Mutex
	callbackChannels = make(map[int64]*registration)
)

type registration struct {
	rt    *Runtime
	ch    chan *Instance
	done  chan struct{}
	token int64
}

// InstanceReceiver is the host end of a callback channel: managed code
// emits objects through a registered token and the bridge delivers them
// here as owned handles, in emission order per token.
//
// Registrations are process-global and never reclaimed; a receiver that is
// closed stops accepting deliveries but its token stays allocated for the
// life of the process.
type InstanceReceiver struct {
	reg *registration
}

// Recv blocks until the next emitted object arrives. The returned handle
// is owned by the caller and must be released like any other.
func (r *InstanceReceiver) Recv() (*Instance, error) {
	select {
	case inst := <-r.reg.ch:
		return inst, nil
	case <-r.reg.done:
		// Drain anything delivered before close.
		select {
		case inst := <-r.reg.ch:
			return inst, nil
		default:
		}
		return nil, errors.ChannelClosed(r.reg.token)
	}
}

// RecvTimeout is Recv with a deadline.
func (r *InstanceReceiver) RecvTimeout(d time.Duration) (*Instance, error) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case inst := <-r.reg.ch:
		return inst, nil
	case <-r.reg.done:
		select {
		case inst := <-r.reg.ch:
			return inst, nil
		default:
		}
		return nil, errors.ChannelClosed(r.reg.token)
	case <-timer.C:
		return nil, errors.RecvTimeout("no callback within " + d.String())
	}
}

// Close stops accepting deliveries. Emissions against a closed receiver
// are logged and dropped, never a failure in managed code. The token is
// not reclaimed.
func (r *InstanceReceiver) Close() {
	callbackMu.Lock()
	defer callbackMu.Unlock()
	select {
	case <-r.reg.done:
	default:
		close(r.reg.done)
	}
}

func register(rt *Runtime) *registration {
	reg := &registration{
		rt:    rt,
		ch:    make(chan *Instance, receiverBuffer),
		done:  make(chan struct{}),
		token: callbackToken.Add(1),
	}
	callbackMu.Lock()
	callbackChannels[reg.token] = reg
	callbackMu.Unlock()
	return reg
}

// InitCallbackChannel allocates a callback token, registers a receiver for
// it, and hands the token to the instance through its channel-init method.
// The instance keeps the token and may emit through it from any thread.
func (r *Runtime) InitCallbackChannel(inst *Instance) (*InstanceReceiver, error) {
	if err := inst.guard(); err != nil {
		return nil, err
	}
	reg := register(r)
	tokenArg, err := LongArg(reg.token).IntoPrimitive()
	if err != nil {
		return nil, err
	}
	res, err := r.Invoke(inst, callbackMethod, tokenArg)
	if err != nil {
		return nil, err
	}
	_ = res.Close()
	return &InstanceReceiver{reg: reg}, nil
}

// InvokeToChannel registers a receiver, passes its token to the instance's
// channel-init method, and then invokes the named method. Objects the
// invocation emits arrive on the returned receiver.
func (r *Runtime) InvokeToChannel(inst *Instance, method string, args ...InvocationArg) (*InstanceReceiver, error) {
	recv, err := r.InitCallbackChannel(inst)
	if err != nil {
		return nil, err
	}
	res, err := r.Invoke(inst, method, args...)
	if err != nil {
		return nil, err
	}
	_ = res.Close()
	return recv, nil
}

// deliverToChannel is the emission sink wired into the runtime. It runs on
// the runtime's dispatch goroutine and must never panic: an unknown token
// or a closed receiver is logged and the reference released.
func deliverToChannel(token int64, ref vm.Ref) {
	callbackMu.Lock()
	reg := callbackChannels[token]
	callbackMu.Unlock()
	if reg == nil {
		Logger().Warn("callback for unregistered token dropped",
			zap.Int64("token", token))
		return
	}
	env, err := reg.rt.attach(false)
	if err != nil {
		Logger().Error("callback delivery attach failed",
			zap.Int64("token", token), zap.Error(err))
		return
	}
	inst, err := reg.rt.wrap(env, ref)
	if err != nil {
		Logger().Error("callback reference lookup failed",
			zap.Int64("token", token), zap.Error(err))
		return
	}
	select {
	case <-reg.done:
		Logger().Warn("callback for closed receiver dropped",
			zap.Int64("token", token))
		_ = env.DeleteRef(ref)
		return
	default:
	}
	select {
	case reg.ch <- inst:
	case <-reg.done:
		Logger().Warn("callback for closed receiver dropped",
			zap.Int64("token", token))
		_ = env.DeleteRef(ref)
	}
}
