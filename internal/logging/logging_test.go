package logging_test

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/zecs-dev/zecs/internal/logging"
)

func Test_New_DefaultsToInfoLevelAndTextFormatter(t *testing.T) {
	// Act
	l := logging.New(logging.Options{})

	// Assert
	assert.Equal(t, logrus.InfoLevel, l.GetLevel())
	_, isText := l.Formatter.(*logrus.TextFormatter)
	assert.True(t, isText)
}

func Test_New_UnparseableLevelFallsBackToInfo(t *testing.T) {
	// Act
	l := logging.New(logging.Options{Level: "not-a-level"})

	// Assert
	assert.Equal(t, logrus.InfoLevel, l.GetLevel())
}

func Test_New_ParsesExplicitLevel(t *testing.T) {
	// Act
	l := logging.New(logging.Options{Level: "debug"})

	// Assert
	assert.Equal(t, logrus.DebugLevel, l.GetLevel())
}

func Test_New_JSONSelectsJSONFormatter(t *testing.T) {
	// Act
	l := logging.New(logging.Options{JSON: true})

	// Assert
	_, isJSON := l.Formatter.(*logrus.JSONFormatter)
	assert.True(t, isJSON)
}

func Test_New_WritesToProvidedOutput(t *testing.T) {
	// Arrange
	var buf bytes.Buffer
	l := logging.New(logging.Options{Output: &buf, Level: "info"})

	// Act
	l.Info("hello")

	// Assert
	assert.Contains(t, buf.String(), "hello")
}
