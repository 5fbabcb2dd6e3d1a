package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestPackageFunctions_NoopBeforeInit(t *testing.T) {
	CloseDefaultLogger()
	assert.Nil(t, Default())

	// Не должно паниковать
	Debug("debug %d", 1)
	Info("info %d", 2)
	Warn("warn %d", 3)
	Error("error %d", 4)
}

func TestPackageFunctions_UseObserver(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	UseLogger(FromZap(zap.New(core)))
	defer CloseDefaultLogger()

	Info("мир %s создан", "Annex")
	Warn("NaN в позиции сущности %d", 42)
	Debug("отладка")

	require.Equal(t, 3, logs.Len())
	entries := logs.All()
	assert.Equal(t, "мир Annex создан", entries[0].Message)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "NaN в позиции сущности 42", entries[1].Message)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.DebugLevel, entries[2].Level)
}

func TestGetComponentLogger(t *testing.T) {
	CloseDefaultLogger()
	nop := GetComponentLogger("correction")
	require.NotNil(t, nop)
	nop.Info("без вывода")

	core, logs := observer.New(zapcore.DebugLevel)
	UseLogger(FromZap(zap.New(core)))
	defer CloseDefaultLogger()

	GetComponentLogger("hook").Warn("перехват %s", "OnRep_ReplicatedMovement")
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "hook", logs.All()[0].LoggerName)
}

func TestLogLevel_String(t *testing.T) {
	assert.Equal(t, "DEBUG", DEBUG.String())
	assert.Equal(t, "ERROR", ERROR.String())
	assert.Equal(t, "UNKNOWN", LogLevel(99).String())
}
