package container_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-nix/framework/container"
)

// ── fixtures ─────────────────────────────────────────────────────────────────

type noDeps struct{ n int }

type serviceNeedingLogger struct{ logger Logger }

func newServiceNeedingLogger(logger Logger) *serviceNeedingLogger {
	return &serviceNeedingLogger{logger: logger}
}

type mailer struct {
	transport string
	retries   int
	logger    Logger
}

func newMailer(transport string, retries int, logger Logger) *mailer {
	return &mailer{transport: transport, retries: retries, logger: logger}
}

type consoleLogger struct{ lines []string }

func (l *consoleLogger) Log(s string) { l.lines = append(l.lines, s) }

type repo struct{ db *noDeps }

func newRepo(db *noDeps) *repo { return &repo{db: db} }

type userService struct{ repo *repo }

func newUserService(r *repo) *userService { return &userService{repo: r} }

type cycleA struct{ b *cycleB }
type cycleB struct{ a *cycleA }

func newCycleA(b *cycleB) *cycleA { return &cycleA{b: b} }
func newCycleB(a *cycleA) *cycleB { return &cycleB{a: a} }

func newAuto() *container.AutoResolvingContainer {
	return container.NewAutoResolving(container.New())
}

// ── Get ───────────────────────────────────────────────────────────────────────

func TestAuto_GetDelegatesAndCaches(t *testing.T) {
	base := container.New()
	calls := 0
	base.Set("svc", func(c *container.Container) any { calls++; return "value" })
	a := container.NewAutoResolving(base)

	for i := 0; i < 3; i++ {
		got, err := a.Get("svc")
		require.NoError(t, err)
		assert.Equal(t, "value", got)
	}
	assert.Equal(t, 1, calls)
	assert.Same(t, base, a.Base())
}

func TestAuto_GetDoesNotAutowire(t *testing.T) {
	a := newAuto()
	_, err := a.Get(container.TypeKey(&noDeps{}))
	assert.ErrorIs(t, err, container.ErrServiceNotFound)
}

func TestAuto_SetAndResetDropCache(t *testing.T) {
	a := newAuto()
	a.Set("k", "one")
	_, _ = a.Get("k")

	a.Set("k", "two")
	assert.Equal(t, "two", container.MustResolve[string](a, "k"))

	a.Reset("k")
	assert.False(t, a.Has("k"))
	_, err := a.Get("k")
	assert.ErrorIs(t, err, container.ErrServiceNotFound)
}

func TestAuto_AliasSharesCacheSlot(t *testing.T) {
	a := newAuto()
	a.Set("config", "v1")
	a.Base().Alias("config", "pkg.Config")

	assert.Equal(t, "v1", container.MustResolve[string](a, "pkg.Config"))
	assert.Equal(t, "config", a.Base().Canonical("pkg.Config"))

	a.Set("config", "v2")
	assert.Equal(t, "v2", container.MustResolve[string](a, "pkg.Config"))

	a.Set("pkg.Config", "v3")
	assert.Equal(t, "v3", container.MustResolve[string](a, "config"))

	a.Reset("config")
	assert.False(t, a.Has("pkg.Config"))
	_, err := a.Get("pkg.Config")
	assert.ErrorIs(t, err, container.ErrServiceNotFound)
}

// ── Make ──────────────────────────────────────────────────────────────────────

func TestAuto_MakeWithoutDependencies(t *testing.T) {
	a := newAuto()

	first, err := container.Build[*noDeps](a)
	require.NoError(t, err)
	second, err := container.Build[*noDeps](a)
	require.NoError(t, err)

	assert.NotSame(t, first, second)
}

func TestAuto_MakeSingleton(t *testing.T) {
	a := newAuto()

	first, err := container.Build[*noDeps](a, container.AsSingleton())
	require.NoError(t, err)
	second, err := container.Build[*noDeps](a, container.AsSingleton())
	require.NoError(t, err)
	assert.Same(t, first, second)

	key := container.TypeKey(&noDeps{})
	fromBase, err := a.Base().Get(key)
	require.NoError(t, err)
	assert.Same(t, first, fromBase)
}

func TestAuto_ConcurrentSingletonBuildsOnce(t *testing.T) {
	a := newAuto()
	builds := 0
	var mu sync.Mutex
	a.MustProvide(func() *noDeps {
		mu.Lock()
		defer mu.Unlock()
		builds++
		return &noDeps{n: builds}
	})

	var wg sync.WaitGroup
	out := make([]*noDeps, 16)
	for i := range out {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out[i], _ = container.Build[*noDeps](a, container.AsSingleton())
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, builds)
	for _, v := range out {
		assert.Same(t, out[0], v)
	}
}

func TestAuto_NullableInterfaceWithoutBinding(t *testing.T) {
	a := newAuto()
	a.MustProvide(newServiceNeedingLogger, container.Optional("logger"))

	svc, err := container.Build[*serviceNeedingLogger](a)
	require.NoError(t, err)
	assert.Nil(t, svc.logger)
}

func TestAuto_InterfaceFromContainer(t *testing.T) {
	a := newAuto()
	logger := &consoleLogger{}
	a.Set(container.TypeKey((*Logger)(nil)), logger)
	a.MustProvide(newServiceNeedingLogger, container.Optional("logger"))

	svc, err := container.Build[*serviceNeedingLogger](a)
	require.NoError(t, err)
	assert.Same(t, logger, svc.logger)
}

func TestAuto_InterfaceNotFound(t *testing.T) {
	a := newAuto()
	a.MustProvide(newServiceNeedingLogger, container.Named("logger"))

	_, err := container.Build[*serviceNeedingLogger](a)
	require.Error(t, err)
	assert.ErrorIs(t, err, container.ErrServiceNotFound)

	var nf *container.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "logger", nf.Param)
	assert.Equal(t, container.TypeKey(&serviceNeedingLogger{}), nf.Context)
}

func TestAuto_RecursiveBuild(t *testing.T) {
	a := newAuto()
	a.MustProvide(newRepo)
	a.MustProvide(newUserService)

	svc, err := container.Build[*userService](a)
	require.NoError(t, err)
	require.NotNil(t, svc.repo)
	assert.NotNil(t, svc.repo.db)
}

func TestAuto_ParameterPriority(t *testing.T) {
	a := newAuto()
	a.MustProvide(newMailer,
		container.Named("transport"),
		container.Default("retries", 3),
		container.Optional("logger"),
	)
	key := container.TypeKey(&mailer{})

	_, err := a.Make(key)
	assert.ErrorIs(t, err, container.ErrContainer, "scalar without default cannot be autowired")

	m, err := a.Make(key, container.WithArg("transport", "smtp"))
	require.NoError(t, err)
	assert.Equal(t, "smtp", m.(*mailer).transport)
	assert.Equal(t, 3, m.(*mailer).retries)

	m, err = a.Make(key,
		container.WithArgAt(0, "ses"),
		container.WithArgAt(1, 5),
		container.WithArg("retries", 7),
	)
	require.NoError(t, err)
	assert.Equal(t, "ses", m.(*mailer).transport)
	assert.Equal(t, 7, m.(*mailer).retries, "by-name wins over by-position")
}

func TestAuto_ArgumentTypeMismatch(t *testing.T) {
	a := newAuto()
	a.MustProvide(newMailer, container.Named("transport"), container.Default("retries", 3))

	_, err := a.Make(container.TypeKey(&mailer{}), container.WithArg("transport", 12))
	assert.ErrorIs(t, err, container.ErrContainer)
}

func TestAuto_ContextualBinding(t *testing.T) {
	a := newAuto()
	a.MustProvide(newMailer, container.Named("transport"), container.Default("retries", 3), container.Optional("logger"))
	key := container.TypeKey(&mailer{})

	a.When(key).Needs("transport").GiveValue("sendmail")
	a.When(key).Needs("logger").Give(func(*container.AutoResolvingContainer) (any, error) {
		return &consoleLogger{}, nil
	})

	m, err := container.Build[*mailer](a)
	require.NoError(t, err)
	assert.Equal(t, "sendmail", m.transport)
	assert.IsType(t, &consoleLogger{}, m.logger)

	m, err = container.Build[*mailer](a, container.WithArg("transport", "smtp"))
	require.NoError(t, err)
	assert.Equal(t, "smtp", m.transport)
}

func TestAuto_ContextualFactoryError(t *testing.T) {
	a := newAuto()
	a.MustProvide(newMailer, container.Named("transport"))
	key := container.TypeKey(&mailer{})
	a.When(key).Needs("transport").Give(func(*container.AutoResolvingContainer) (any, error) {
		return nil, errors.New("vault sealed")
	})

	_, err := a.Make(key)
	assert.ErrorIs(t, err, container.ErrContainer)
	assert.Contains(t, err.Error(), "vault sealed")
}

func TestAuto_CircularDependency(t *testing.T) {
	a := newAuto()
	a.MustProvide(newCycleA)
	a.MustProvide(newCycleB)

	_, err := container.Build[*cycleA](a)
	require.Error(t, err)
	assert.ErrorIs(t, err, container.ErrCircularDependency)

	var cyc *container.CircularDependencyError
	require.True(t, errors.As(err, &cyc))
	keyA, keyB := container.TypeKey(&cycleA{}), container.TypeKey(&cycleB{})
	assert.Equal(t, []string{keyA, keyB, keyA}, cyc.Chain)
	assert.Contains(t, err.Error(), keyA+" -> "+keyB+" -> "+keyA)

	_, err = container.Build[*cycleA](a)
	assert.ErrorIs(t, err, container.ErrCircularDependency, "the guard is released after a failure")
}

func TestAuto_FactoryMakeCycle(t *testing.T) {
	a := newAuto()
	a.MustProvide(newServiceNeedingLogger)
	loggerKey := container.TypeKey((*Logger)(nil))
	a.Set(loggerKey, func(c *container.Container) (any, error) {
		svc, err := container.Build[*serviceNeedingLogger](a)
		if err != nil {
			return nil, err
		}
		return svc.logger, nil
	})

	done := make(chan error, 1)
	go func() {
		_, err := a.Get(loggerKey)
		done <- err
	}()

	var err error
	select {
	case err = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Get blocked")
	}
	assert.ErrorIs(t, err, container.ErrCircularDependency)

	var cyc *container.CircularDependencyError
	require.True(t, errors.As(err, &cyc))
	assert.Equal(t, []string{loggerKey, loggerKey}, cyc.Chain)

	a.Set(loggerKey, &consoleLogger{})
	svc, err := container.Build[*serviceNeedingLogger](a)
	require.NoError(t, err)
	assert.NotNil(t, svc.logger)
}

func TestAuto_NotInstantiable(t *testing.T) {
	a := newAuto()
	_, err := container.Build[Logger](a)
	assert.ErrorIs(t, err, container.ErrContainer)

	_, err = a.Make("never.Seen")
	assert.ErrorIs(t, err, container.ErrContainer)
}

func TestAuto_ConstructorError(t *testing.T) {
	a := newAuto()
	a.MustProvide(func() (*noDeps, error) { return nil, errors.New("boom") })

	_, err := container.Build[*noDeps](a)
	assert.ErrorIs(t, err, container.ErrContainer)
	assert.Contains(t, err.Error(), "boom")
}

func TestAuto_ProvideValidation(t *testing.T) {
	a := newAuto()
	assert.Error(t, a.Provide(nil))
	assert.Error(t, a.Provide("not a func"))
	assert.Error(t, a.Provide(func() {}))
	assert.Error(t, a.Provide(func() (*noDeps, string) { return nil, "" }))
	assert.Error(t, a.Provide(func(...int) *noDeps { return nil }))
	assert.Error(t, a.Provide(func() *noDeps { return nil }, container.Named("a")))
	assert.Panics(t, func() { a.MustProvide(42) })
}
