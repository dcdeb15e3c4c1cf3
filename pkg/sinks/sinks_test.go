package sinks

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitSink(t *testing.T) {
	t.Parallel()
	logger := logrus.New()
	for name := range sinks {
		name := name
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			s, err := InitSink(name, viper.New(), logger)
			require.NoError(t, err)
			assert.NotNil(t, s)
		})
	}
}

func TestInitSinkUnknown(t *testing.T) {
	t.Parallel()
	s, err := InitSink("graphite", viper.New(), logrus.New())
	require.Error(t, err)
	assert.Nil(t, s)

	_, err = InitSink("", viper.New(), logrus.New())
	require.Error(t, err)
}
