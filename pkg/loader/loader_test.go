package loader

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/build1/unityconfig/pkg/configerr"
	"github.com/build1/unityconfig/pkg/settings"
)

type gameConfig struct {
	Name  string `json:"name,omitempty"`
	Level int    `json:"level,omitempty"`
}

type repoMock struct{ mock.Mock }

func (m *repoMock) Load(ctx context.Context) (gameConfig, error) {
	args := m.Called(ctx)
	return args.Get(0).(gameConfig), args.Error(1)
}

type cacheMock struct{ repoMock }

func (m *cacheMock) Save(ctx context.Context, v gameConfig) error {
	return m.Called(ctx, v).Error(0)
}

type remoteMock struct{ mock.Mock }

func (m *remoteMock) LoadWith(ctx context.Context, s settings.Settings) (gameConfig, error) {
	args := m.Called(ctx, s)
	return args.Get(0).(gameConfig), args.Error(1)
}

var (
	primaryCfg  = gameConfig{Name: "primary"}
	fallbackCfg = gameConfig{Name: "fallback"}
	cachedCfg   = gameConfig{Name: "cached"}
	remoteCfg   = gameConfig{Name: "remote", Level: 7}
)

type LoaderTestSuite struct {
	suite.Suite
	ctx      context.Context
	primary  *repoMock
	fallback *repoMock
	cache    *cacheMock
	remote   *remoteMock
}

func (s *LoaderTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.primary = new(repoMock)
	s.fallback = new(repoMock)
	s.cache = new(cacheMock)
	s.remote = new(remoteMock)
}

func (s *LoaderTestSuite) loader(st settings.Settings) *Loader[gameConfig] {
	l, err := New(Options[gameConfig]{
		Settings: settings.Static(st),
		Primary:  s.primary,
		Fallback: s.fallback,
		Cache:    s.cache,
		Remote:   s.remote,
	})
	s.Require().NoError(err)
	s.T().Cleanup(l.Close)
	return l
}

func remoteSettings(fallback, cache, fast bool) settings.Settings {
	return settings.Settings{
		Source:             settings.SourceRemote,
		ParameterName:      settings.DefaultParameterName,
		FallbackEnabled:    fallback,
		FallbackTimeout:    3000,
		CacheEnabled:       cache,
		FastLoadingEnabled: fast,
	}
}

func (s *LoaderTestSuite) assertCacheUntouched() {
	s.cache.AssertNotCalled(s.T(), "Load", mock.Anything)
	s.cache.AssertNotCalled(s.T(), "Save", mock.Anything, mock.Anything)
}

func (s *LoaderTestSuite) TestLocalSourceOnlyReadsPrimary() {
	testCases := []struct {
		name string
		st   settings.Settings
	}{
		{name: "all off", st: settings.Settings{Source: "dev"}},
		{name: "fallback on", st: settings.Settings{Source: "dev", FallbackEnabled: true}},
		{name: "everything on", st: settings.Settings{Source: "qa", FallbackEnabled: true, CacheEnabled: true, FastLoadingEnabled: true}},
		{name: "decomposed", st: settings.Settings{Source: "qa", Mode: settings.ModeDecomposed, CacheEnabled: true}},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			s.SetupTest()
			s.primary.On("Load", mock.Anything).Return(primaryCfg, nil).Once()
			l := s.loader(tc.st)

			v, err := l.Load(s.ctx)

			s.Require().NoError(err)
			s.Equal(primaryCfg, v)
			s.primary.AssertExpectations(s.T())
			s.remote.AssertNotCalled(s.T(), "LoadWith", mock.Anything, mock.Anything)
			s.fallback.AssertNotCalled(s.T(), "Load", mock.Anything)
			s.assertCacheUntouched()
		})
	}
}

func (s *LoaderTestSuite) TestLocalSourceError() {
	s.primary.On("Load", mock.Anything).Return(gameConfig{}, configerr.New(configerr.ResourceNotFound, "config"))
	l := s.loader(settings.Settings{Source: "dev", FallbackEnabled: true})

	_, err := l.Load(s.ctx)

	s.Equal(configerr.ResourceNotFound, configerr.KindOf(err))
	s.fallback.AssertNotCalled(s.T(), "Load", mock.Anything)
	s.Equal(Failed, l.State())
}

func (s *LoaderTestSuite) TestNoFallbackPropagatesEveryError() {
	kinds := []configerr.Kind{
		configerr.Unknown,
		configerr.NetworkError,
		configerr.FieldNotFound,
		configerr.ResourceNotFound,
		configerr.ParsingError,
		configerr.FirebaseRemoteConfigUnavailable,
	}

	for _, kind := range kinds {
		s.Run(kind.String(), func() {
			s.SetupTest()
			s.remote.On("LoadWith", mock.Anything, mock.Anything).Return(gameConfig{}, configerr.New(kind, "remote"))
			// cache and fast loading are cleared with fallback
			l := s.loader(remoteSettings(false, true, true))

			_, err := l.Load(s.ctx)

			s.Require().Error(err)
			s.Equal(kind, configerr.KindOf(err))
			s.fallback.AssertNotCalled(s.T(), "Load", mock.Anything)
			s.assertCacheUntouched()
		})
	}
}

func (s *LoaderTestSuite) TestFallbackWithoutCache() {
	for _, kind := range []configerr.Kind{configerr.NetworkError, configerr.ParsingError} {
		s.Run(kind.String(), func() {
			s.SetupTest()
			s.remote.On("LoadWith", mock.Anything, mock.Anything).Return(gameConfig{}, configerr.New(kind, "remote"))
			s.fallback.On("Load", mock.Anything).Return(fallbackCfg, nil).Once()
			l := s.loader(remoteSettings(true, false, false))

			v, err := l.Load(s.ctx)

			s.Require().NoError(err)
			s.Equal(fallbackCfg, v)
			s.fallback.AssertExpectations(s.T())
			s.assertCacheUntouched()
		})
	}
}

func (s *LoaderTestSuite) TestFallbackErrorIsReturned() {
	s.remote.On("LoadWith", mock.Anything, mock.Anything).Return(gameConfig{}, configerr.New(configerr.NetworkError, "offline"))
	s.fallback.On("Load", mock.Anything).Return(gameConfig{}, configerr.New(configerr.ParsingError, "{bad"))
	l := s.loader(remoteSettings(true, false, false))

	_, err := l.Load(s.ctx)

	s.Equal(configerr.ParsingError, configerr.KindOf(err))
	s.fallback.AssertNumberOfCalls(s.T(), "Load", 1)
}

func (s *LoaderTestSuite) TestFallbackDoesNotMaskMisconfiguration() {
	kinds := []configerr.Kind{configerr.FieldNotFound, configerr.FirebaseRemoteConfigUnavailable, configerr.Unknown}

	for _, kind := range kinds {
		s.Run(kind.String(), func() {
			s.SetupTest()
			s.remote.On("LoadWith", mock.Anything, mock.Anything).Return(gameConfig{}, configerr.New(kind, "remote"))
			l := s.loader(remoteSettings(true, true, false))

			_, err := l.Load(s.ctx)

			s.Equal(kind, configerr.KindOf(err))
			s.fallback.AssertNotCalled(s.T(), "Load", mock.Anything)
			s.assertCacheUntouched()
		})
	}
}

func (s *LoaderTestSuite) TestRemoteSuccessWritesCache() {
	s.remote.On("LoadWith", mock.Anything, mock.Anything).Return(remoteCfg, nil)
	s.cache.On("Save", mock.Anything, remoteCfg).Return(nil).Once()
	l := s.loader(remoteSettings(true, true, false))

	v, err := l.Load(s.ctx)

	s.Require().NoError(err)
	s.Equal(remoteCfg, v)
	s.cache.AssertExpectations(s.T())
	s.cache.AssertNotCalled(s.T(), "Load", mock.Anything)
	s.Equal(Succeeded, l.State())
}

func (s *LoaderTestSuite) TestRemoteSuccessWithoutCache() {
	s.remote.On("LoadWith", mock.Anything, mock.Anything).Return(remoteCfg, nil)
	l := s.loader(remoteSettings(true, false, false))

	v, err := l.Load(s.ctx)

	s.Require().NoError(err)
	s.Equal(remoteCfg, v)
	s.assertCacheUntouched()
}

func (s *LoaderTestSuite) TestCacheWriteFailureDoesNotFailLoad() {
	s.remote.On("LoadWith", mock.Anything, mock.Anything).Return(remoteCfg, nil)
	s.cache.On("Save", mock.Anything, remoteCfg).Return(errors.New("disk full"))
	l := s.loader(remoteSettings(true, true, false))

	v, err := l.Load(s.ctx)

	s.Require().NoError(err)
	s.Equal(remoteCfg, v)
}

func (s *LoaderTestSuite) TestRemoteFailureServesCache() {
	s.remote.On("LoadWith", mock.Anything, mock.Anything).Return(gameConfig{}, configerr.New(configerr.NetworkError, "offline"))
	s.cache.On("Load", mock.Anything).Return(cachedCfg, nil).Once()
	l := s.loader(remoteSettings(true, true, false))

	v, err := l.Load(s.ctx)

	s.Require().NoError(err)
	s.Equal(cachedCfg, v)
	s.fallback.AssertNotCalled(s.T(), "Load", mock.Anything)
}

func (s *LoaderTestSuite) TestUnusableCacheEscalatesOnce() {
	for _, kind := range []configerr.Kind{configerr.ResourceNotFound, configerr.ParsingError} {
		s.Run(kind.String(), func() {
			s.SetupTest()
			s.remote.On("LoadWith", mock.Anything, mock.Anything).Return(gameConfig{}, configerr.New(configerr.ParsingError, "remote"))
			s.cache.On("Load", mock.Anything).Return(gameConfig{}, configerr.New(kind, "cache")).Once()
			s.fallback.On("Load", mock.Anything).Return(fallbackCfg, nil).Once()
			l := s.loader(remoteSettings(true, true, false))

			v, err := l.Load(s.ctx)

			s.Require().NoError(err)
			s.Equal(fallbackCfg, v)
			s.cache.AssertNumberOfCalls(s.T(), "Load", 1)
			s.fallback.AssertNumberOfCalls(s.T(), "Load", 1)
		})
	}
}

func (s *LoaderTestSuite) TestOtherCacheErrorsPropagate() {
	s.remote.On("LoadWith", mock.Anything, mock.Anything).Return(gameConfig{}, configerr.New(configerr.NetworkError, "offline"))
	s.cache.On("Load", mock.Anything).Return(gameConfig{}, configerr.New(configerr.Unknown, "busy"))
	l := s.loader(remoteSettings(true, true, false))

	_, err := l.Load(s.ctx)

	s.Equal(configerr.Unknown, configerr.KindOf(err))
	s.fallback.AssertNotCalled(s.T(), "Load", mock.Anything)
}

func (s *LoaderTestSuite) TestRemoteUnavailable() {
	l, err := New(Options[gameConfig]{
		Settings: settings.Static(remoteSettings(true, true, true)),
		Primary:  s.primary,
		Fallback: s.fallback,
		Cache:    s.cache,
	})
	s.Require().NoError(err)
	defer l.Close()

	_, err = l.Load(s.ctx)

	s.Equal(configerr.FirebaseRemoteConfigUnavailable, configerr.KindOf(err))
	s.fallback.AssertNotCalled(s.T(), "Load", mock.Anything)
	s.assertCacheUntouched()
}

func (s *LoaderTestSuite) TestInconsistentSnapshotIsTightened() {
	// fast loading without cache behaves like the plain remote path
	s.remote.On("LoadWith", mock.Anything, mock.MatchedBy(func(st settings.Settings) bool {
		return !st.FastLoadingEnabled && !st.CacheEnabled && st.FallbackEnabled
	})).Return(remoteCfg, nil).Once()
	l := s.loader(remoteSettings(true, false, true))

	v, err := l.Load(s.ctx)

	s.Require().NoError(err)
	s.Equal(remoteCfg, v)
	s.remote.AssertExpectations(s.T())
	s.assertCacheUntouched()
}

func (s *LoaderTestSuite) TestNonConfigErrorsAreClassified() {
	s.remote.On("LoadWith", mock.Anything, mock.Anything).Return(gameConfig{}, errors.New("boom"))
	l := s.loader(remoteSettings(true, false, false))

	_, err := l.Load(s.ctx)

	var cerr *configerr.Error
	s.Require().ErrorAs(err, &cerr)
	s.Equal(configerr.Unknown, cerr.Kind)
}

func (s *LoaderTestSuite) TestClosedLoaderRefuses() {
	l := s.loader(settings.Settings{Source: "dev"})
	l.Close()

	_, err := l.Load(s.ctx)

	s.Equal(configerr.Unknown, configerr.KindOf(err))
	s.primary.AssertNotCalled(s.T(), "Load", mock.Anything)
}

func TestLoaderSuite(t *testing.T) {
	suite.Run(t, new(LoaderTestSuite))
}

func TestNewRequiresBundles(t *testing.T) {
	_, err := New(Options[gameConfig]{})
	require.ErrorIs(t, err, ErrNoBundle)
}

func TestStateString(t *testing.T) {
	require.Equal(t, "idle", Idle.String())
	require.Equal(t, "resolving", Resolving.String())
	require.Equal(t, "succeeded", Succeeded.String())
	require.Equal(t, "failed", Failed.String())
}
