package bridge

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/objlink/objlink/errors"
	"github.com/objlink/objlink/provision"
	"github.com/objlink/objlink/vm"
)

// The managed runtime is a process-wide singleton: once created it lives for
// the rest of the process and cannot be recreated. Building a second Runtime
// returns a new handle sharing the same underlying runtime.
var (
	procMu sync.Mutex
	procVM *vm.VM
)

// Builder configures and creates a Runtime handle.
type Builder struct {
	classpath []string
	options   []string
	assetsDir string
	settings  *provision.Settings
	logger    *zap.Logger
}

// NewBuilder returns a builder with default settings.
func NewBuilder() *Builder {
	return &Builder{}
}

// ClasspathEntry appends one classpath entry.
func (b *Builder) ClasspathEntry(entry string) *Builder {
	b.classpath = append(b.classpath, entry)
	return b
}

// ClasspathEntries appends several classpath entries in order.
func (b *Builder) ClasspathEntries(entries ...string) *Builder {
	b.classpath = append(b.classpath, entries...)
	return b
}

// Option appends one runtime startup option.
func (b *Builder) Option(opt string) *Builder {
	b.options = append(b.options, opt)
	return b
}

// WithSettings sets the artifact provisioning settings.
func (b *Builder) WithSettings(s *provision.Settings) *Builder {
	b.settings = s
	return b
}

// AssetsDir overrides the classpath staging directory used by artifact
// deployment.
func (b *Builder) AssetsDir(dir string) *Builder {
	b.assetsDir = dir
	return b
}

// WithLogger sets the handle's logger.
func (b *Builder) WithLogger(l *zap.Logger) *Builder {
	b.logger = l
	return b
}

// Build creates the Runtime handle, starting the managed runtime on first
// use. The classpath and startup options only take effect for the process's
// first handle; later handles share the already running runtime.
func (b *Builder) Build() (*Runtime, error) {
	log := b.logger
	if log == nil {
		log = Logger()
	}

	procMu.Lock()
	if procVM == nil {
		procVM = vm.New(vm.Options{
			Classpath:      b.classpath,
			StartupOptions: b.options,
			Logger:         log,
		})
		procVM.SetCallbackSink(deliverToChannel)
	}
	machine := procVM
	procMu.Unlock()

	id := uuid.NewString()
	rt := &Runtime{
		id:        id,
		vm:        machine,
		log:       log.With(zap.String("runtime_id", id)),
		assetsDir: b.assetsDir,
		settings:  b.settings,
	}
	rt.log.Debug("runtime handle created")
	return rt, nil
}

// New creates a Runtime handle with default configuration.
func New() (*Runtime, error) {
	return NewBuilder().Build()
}

// Runtime is one host-side handle to the managed runtime. It carries the
// per-thread attachment cache; the underlying runtime is shared with every
// other handle in the process. Handles are cheap; applications typically
// hold one and pass it around explicitly.
type Runtime struct {
	id  string
	vm  *vm.VM
	log *zap.Logger

	attachments sync.Map // thread id -> *attachment
	closed      atomic.Bool

	assetsDir  string
	settings   *provision.Settings
	deployOnce sync.Once
	deployer   *provision.Deployer
	deployErr  error
}

// ID returns the handle's unique identifier, used in log correlation.
func (r *Runtime) ID() string { return r.id }

// RegisterClass adds a class to the managed runtime's registry.
func (r *Runtime) RegisterClass(c *vm.Class) error {
	if r.closed.Load() {
		return errors.RuntimeUnavailable("runtime handle has been shut down")
	}
	return r.vm.Register(c)
}

// LiveRefs returns the number of live managed references, for leak checks.
func (r *Runtime) LiveRefs() int { return r.vm.LiveRefs() }

// Shutdown invalidates this handle and detaches every thread attached
// through it, except threads attached as daemons. The underlying managed
// runtime keeps running: it cannot be recreated once torn down, so it is
// only stopped with the process.
func (r *Runtime) Shutdown() {
	if r.closed.Swap(true) {
		return
	}
	r.attachments.Range(func(key, value any) bool {
		a := value.(*attachment)
		if a.detachOnExit {
			if err := r.vm.Detach(a.env.ThreadID()); err != nil {
				r.log.Warn("detach on shutdown failed", zap.Error(err))
			}
		}
		r.attachments.Delete(key)
		return true
	})
	r.log.Debug("runtime handle shut down")
}

// DeployArtifact resolves an artifact descriptor onto the classpath staging
// directory. Artifact resolution is an external collaborator; the bridge
// only records the resulting jar as an additional classpath entry.
func (r *Runtime) DeployArtifact(a provision.Artifact) error {
	if r.closed.Load() {
		return errors.RuntimeUnavailable("runtime handle has been shut down")
	}
	r.deployOnce.Do(func() {
		dir := r.assetsDir
		if dir == "" {
			dir = provision.DefaultAssetsDir
		}
		r.deployer, r.deployErr = provision.NewDeployer(dir, r.settings, r.log)
	})
	if r.deployErr != nil {
		return errors.DeployFailed(a.Coordinate(), r.deployErr)
	}
	_, err := r.deployer.Deploy(a)
	return err
}
